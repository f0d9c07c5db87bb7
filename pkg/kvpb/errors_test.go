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
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func TestInvalidArgumentError(t *testing.T) {
	err := NewInvalidArgumentf("kvs size %d must equal expected values size %d", 3, 2)
	require.True(t, IsInvalidArgument(err))
	require.ErrorContains(t, err, "kvs size 3")

	// Classification survives wrapping.
	wrapped := errors.Wrap(err, "batch rejected")
	require.True(t, IsInvalidArgument(wrapped))

	require.False(t, IsInvalidArgument(fmt.Errorf("boom")))
	require.False(t, IsRoutingError(err))
}

func TestRoutingError(t *testing.T) {
	cause := fmt.Errorf("meta service unavailable")
	err := NewRoutingError(Key("apple"), cause)
	require.True(t, IsRoutingError(err))
	require.ErrorContains(t, err, "apple")
	require.ErrorIs(t, err, cause)
	require.False(t, IsRegionError(err))
}

func TestRegionErrorStaleness(t *testing.T) {
	for _, tc := range []struct {
		code  ErrorCode
		stale bool
	}{
		{ErrorEpochStale, true},
		{ErrorRegionNotFound, true},
		{ErrorUnknown, false},
		{ErrorKeyOutOfRange, false},
	} {
		err := NewRegionError(&ResponseError{
			Code:     tc.code,
			Message:  "store said no",
			RegionID: 7,
		})
		require.True(t, IsRegionError(err), "code %v", tc.code)
		require.Equal(t, tc.stale, IsStaleRegionError(err), "code %v", tc.code)
		require.ErrorContains(t, err, "region 7")
	}

	err := NewRegionErrorf(9, "%s: connection refused", BatchPut)
	require.True(t, IsRegionError(err))
	require.False(t, IsStaleRegionError(err))
}
