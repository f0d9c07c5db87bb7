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

package rpc

import (
	"testing"

	"github.com/rangekv/client-go/pkg/kvpb"
	"github.com/rangekv/client-go/pkg/util/leaktest"
	"github.com/stretchr/testify/require"
)

func TestCodecRoundTrip(t *testing.T) {
	defer leaktest.AfterTest(t)()

	req := &kvpb.StoreRequest{
		Context: kvpb.RequestContext{
			RegionID: 7,
			Epoch:    kvpb.RegionEpoch{Version: 3, ConfVersion: 1},
		},
		Method: kvpb.BatchCompareAndSet,
		BatchCompareAndSet: &kvpb.BatchCompareAndSetRequest{
			Kvs: []kvpb.KeyValue{
				{Key: kvpb.Key("apple"), Value: []byte("1")},
				{Key: kvpb.Key("banana"), Value: []byte("2")},
			},
			ExpectedValues: [][]byte{[]byte("0"), nil},
			Atomic:         true,
		},
	}

	var c codec
	data, err := c.Marshal(req)
	require.NoError(t, err)

	decoded := &kvpb.StoreRequest{}
	require.NoError(t, c.Unmarshal(data, decoded))
	require.Equal(t, req.Context, decoded.Context)
	require.Equal(t, req.Method, decoded.Method)
	require.NotNil(t, decoded.BatchCompareAndSet)
	require.True(t, decoded.BatchCompareAndSet.Atomic)
	require.Len(t, decoded.BatchCompareAndSet.Kvs, 2)
	require.Equal(t, kvpb.Key("banana"), decoded.BatchCompareAndSet.Kvs[1].Key)

	_, err = c.Marshal("not a message")
	require.Error(t, err)
}
