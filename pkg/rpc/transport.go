// Copyright 2024 The RangeKV Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

// Package rpc provides the network layer of the client: a Transport that
// moves one store request to one region's store, and a Controller that
// drives a sub-request through the transport, refreshing stale routing
// information as needed.
package rpc

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/rangekv/client-go/pkg/kvpb"
	"github.com/rangekv/client-go/pkg/util/syncutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// storeMethod is the full gRPC method name of the store service's unary
// request entry point.
const storeMethod = "/rangekv.Store/Request"

// Transport sends one request to the store at addr and returns its
// response. Implementations must be safe for concurrent use; the dispatcher
// sends to distinct regions in parallel. An error return means the request
// could not be exchanged at all; store-side failures travel in
// StoreResponse.Error.
//
// Transport exists as an interface so tests can substitute an in-memory
// implementation for the network.
type Transport interface {
	Send(ctx context.Context, addr string, req *kvpb.StoreRequest) (*kvpb.StoreResponse, error)
}

// GRPCTransport is the production Transport. It dials store addresses
// lazily and caches the connections for reuse across calls.
type GRPCTransport struct {
	dialOpts []grpc.DialOption

	mu struct {
		syncutil.Mutex
		conns map[string]*grpc.ClientConn
	}
}

var _ Transport = (*GRPCTransport)(nil)

// NewGRPCTransport creates a GRPCTransport. Additional dial options (e.g.
// transport credentials) are applied after the defaults.
func NewGRPCTransport(dialOpts ...grpc.DialOption) *GRPCTransport {
	t := &GRPCTransport{
		dialOpts: append([]grpc.DialOption{
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithDefaultCallOptions(grpc.ForceCodec(codec{})),
		}, dialOpts...),
	}
	t.mu.conns = make(map[string]*grpc.ClientConn)
	return t
}

// Send implements the Transport interface.
func (t *GRPCTransport) Send(
	ctx context.Context, addr string, req *kvpb.StoreRequest,
) (*kvpb.StoreResponse, error) {
	conn, err := t.dial(ctx, addr)
	if err != nil {
		return nil, errors.Wrapf(err, "dialing store %s", addr)
	}
	resp := &kvpb.StoreResponse{}
	if err := conn.Invoke(ctx, storeMethod, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (t *GRPCTransport) dial(ctx context.Context, addr string) (*grpc.ClientConn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if conn, ok := t.mu.conns[addr]; ok {
		return conn, nil
	}
	conn, err := grpc.DialContext(ctx, addr, t.dialOpts...)
	if err != nil {
		return nil, err
	}
	t.mu.conns[addr] = conn
	return conn, nil
}

// Close tears down all cached connections.
func (t *GRPCTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var firstErr error
	for addr, conn := range t.mu.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(t.mu.conns, addr)
	}
	return firstErr
}
