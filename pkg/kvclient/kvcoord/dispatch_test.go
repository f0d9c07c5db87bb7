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

package kvcoord

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rangekv/client-go/pkg/kvpb"
	"github.com/rangekv/client-go/pkg/util/leaktest"
	"github.com/stretchr/testify/require"
)

func TestRunSubBatchesRunsFirstOnCaller(t *testing.T) {
	defer leaktest.AfterTest(t)()
	ctx := context.Background()

	type goroutineID struct{}
	callerCtx := context.WithValue(ctx, goroutineID{}, "caller")

	var firstSawCaller bool
	var spawned int32
	subs := make([]*subBatch, 4)
	for i := range subs {
		i := i
		sb := &subBatch{}
		sb.run = func(ctx context.Context) {
			if i == 0 {
				firstSawCaller = ctx.Value(goroutineID{}) == "caller"
			} else {
				atomic.AddInt32(&spawned, 1)
			}
		}
		subs[i] = sb
	}
	runSubBatches(callerCtx, subs, 0)

	require.True(t, firstSawCaller)
	require.Equal(t, int32(3), spawned)
}

func TestRunSubBatchesNoCancellationOnFailure(t *testing.T) {
	defer leaktest.AfterTest(t)()
	ctx := context.Background()

	// The first sub-batch fails immediately; every sibling must still run
	// to completion and record its own outcome.
	var ran int32
	subs := make([]*subBatch, 5)
	for i := range subs {
		i := i
		sb := &subBatch{}
		sb.run = func(context.Context) {
			atomic.AddInt32(&ran, 1)
			if i == 0 {
				sb.err = fmt.Errorf("boom")
			}
		}
		subs[i] = sb
	}
	runSubBatches(ctx, subs, 0)

	require.Equal(t, int32(5), ran)
	require.Error(t, subs[0].err)
	for _, sb := range subs[1:] {
		require.NoError(t, sb.err)
	}
}

func TestRunSubBatchesHonorsParallelismCap(t *testing.T) {
	defer leaktest.AfterTest(t)()
	ctx := context.Background()

	// The cap applies to spawned workers only. Each worker holds its slot
	// briefly so overlapping execution is observable in the peak gauge.
	const limit = 2
	var cur, peak int32
	var ran int32
	subs := make([]*subBatch, 8)
	for i := range subs {
		i := i
		sb := &subBatch{}
		sb.run = func(context.Context) {
			atomic.AddInt32(&ran, 1)
			if i == 0 {
				return
			}
			n := atomic.AddInt32(&cur, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&cur, -1)
		}
		subs[i] = sb
	}
	runSubBatches(ctx, subs, limit)

	require.Equal(t, int32(len(subs)), ran)
	require.LessOrEqual(t, atomic.LoadInt32(&peak), int32(limit))
	require.Positive(t, atomic.LoadInt32(&peak))
}

func TestPartitionByRegionGroupsAndOrders(t *testing.T) {
	defer leaktest.AfterTest(t)()
	ctx := context.Background()
	lookup := newTestLookup(threeRegions()...)

	keys := []kvpb.Key{
		kvpb.Key("tomato"), kvpb.Key("apple"), kvpb.Key("mango"),
		kvpb.Key("avocado"), kvpb.Key("tuna"),
	}
	groups, err := partitionByRegion(ctx, lookup, keys, func(k kvpb.Key) kvpb.Key { return k })
	require.NoError(t, err)

	require.Len(t, groups, 3)
	require.Equal(t, []kvpb.Key{kvpb.Key("tomato"), kvpb.Key("tuna")}, groups[0].items)
	require.Equal(t, []kvpb.Key{kvpb.Key("apple"), kvpb.Key("avocado")}, groups[1].items)
	require.Equal(t, []kvpb.Key{kvpb.Key("mango")}, groups[2].items)
	// One lookup per item; grouping adds none.
	require.Equal(t, len(keys), lookup.lookupCount())
}
