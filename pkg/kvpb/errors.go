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

package kvpb

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// InvalidArgumentError indicates that a request was malformed before any
// routing or network work happened, e.g. mismatched batch lengths or an
// inverted key range.
type InvalidArgumentError struct {
	Message string
}

// NewInvalidArgumentf creates an InvalidArgumentError.
func NewInvalidArgumentf(format string, args ...interface{}) error {
	return &InvalidArgumentError{Message: fmt.Sprintf(format, args...)}
}

func (e *InvalidArgumentError) Error() string {
	return "invalid argument: " + e.Message
}

// IsInvalidArgument returns whether err is an InvalidArgumentError.
func IsInvalidArgument(err error) bool {
	return errors.HasType(err, (*InvalidArgumentError)(nil))
}

// RoutingError indicates that a key could not be resolved to a region. It is
// raised before any sub-request is dispatched, so a logical operation that
// fails with a RoutingError has had no effect.
type RoutingError struct {
	Key   Key
	cause error
}

// NewRoutingError wraps a directory lookup failure for key.
func NewRoutingError(key Key, cause error) error {
	return &RoutingError{Key: key, cause: cause}
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("unable to resolve key %s to a region: %v", e.Key, e.cause)
}

// Unwrap returns the underlying directory failure.
func (e *RoutingError) Unwrap() error { return e.cause }

// IsRoutingError returns whether err is a RoutingError.
func IsRoutingError(err error) bool {
	return errors.HasType(err, (*RoutingError)(nil))
}

// RegionError indicates that a sub-request failed after dispatch against one
// region. It carries the identity of the region so partial failures of a
// batch can be attributed.
type RegionError struct {
	RegionID RegionID
	// Stale is set when the store rejected the request because the routing
	// information (epoch) was out of date. Stale errors are retried by the
	// RPC controller after refreshing the directory entry; above that layer
	// they are terminal like any other region failure.
	Stale   bool
	Message string
}

// NewRegionError creates a RegionError from a wire ResponseError.
func NewRegionError(respErr *ResponseError) error {
	return &RegionError{
		RegionID: respErr.RegionID,
		Stale:    respErr.Code == ErrorEpochStale || respErr.Code == ErrorRegionNotFound,
		Message:  respErr.Message,
	}
}

// NewRegionErrorf creates a non-stale RegionError.
func NewRegionErrorf(id RegionID, format string, args ...interface{}) error {
	return &RegionError{RegionID: id, Message: fmt.Sprintf(format, args...)}
}

func (e *RegionError) Error() string {
	if e.Stale {
		return fmt.Sprintf("region %d: stale routing: %s", e.RegionID, e.Message)
	}
	return fmt.Sprintf("region %d: %s", e.RegionID, e.Message)
}

// IsRegionError returns whether err is a RegionError.
func IsRegionError(err error) bool {
	return errors.HasType(err, (*RegionError)(nil))
}

// IsStaleRegionError returns whether err is a RegionError caused by stale
// routing information.
func IsStaleRegionError(err error) bool {
	var regionErr *RegionError
	return errors.As(err, &regionErr) && regionErr.Stale
}
