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

package regioncache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rangekv/client-go/pkg/kvpb"
	"github.com/rangekv/client-go/pkg/util/leaktest"
	"github.com/stretchr/testify/require"
)

// testDescriptorDB is a RegionDescriptorDB backed by a static region table.
// It counts lookups and can be paused to hold them in flight.
type testDescriptorDB struct {
	regions []kvpb.RegionDescriptor

	lookupCount int64
	pauseChan   atomic.Value // chan struct{}
}

func newTestDescriptorDB(regions ...kvpb.RegionDescriptor) *testDescriptorDB {
	return &testDescriptorDB{regions: regions}
}

func (db *testDescriptorDB) RegionLookup(
	_ context.Context, key kvpb.Key,
) (kvpb.RegionDescriptor, error) {
	if ch, ok := db.pauseChan.Load().(chan struct{}); ok && ch != nil {
		<-ch
	}
	atomic.AddInt64(&db.lookupCount, 1)
	for _, r := range db.regions {
		if r.ContainsKey(key) {
			return r, nil
		}
	}
	return kvpb.RegionDescriptor{}, fmt.Errorf("no region for key %s", key)
}

func (db *testDescriptorDB) lookups() int64 {
	return atomic.LoadInt64(&db.lookupCount)
}

// pause makes subsequent lookups block until the returned function is
// called.
func (db *testDescriptorDB) pause() func() {
	ch := make(chan struct{})
	db.pauseChan.Store(ch)
	return func() {
		db.pauseChan.Store((chan struct{})(nil))
		close(ch)
	}
}

func descriptor(id kvpb.RegionID, start, end string) kvpb.RegionDescriptor {
	return kvpb.RegionDescriptor{
		RegionID: id,
		StartKey: kvpb.Key(start),
		EndKey:   kvpb.Key(end),
	}
}

func TestCacheLookupAndHit(t *testing.T) {
	defer leaktest.AfterTest(t)()
	ctx := context.Background()
	db := newTestDescriptorDB(
		descriptor(1, "a", "m"),
		descriptor(2, "m", "z"),
	)
	c := NewCache(db)

	desc, err := c.LookupRegion(ctx, kvpb.Key("apple"))
	require.NoError(t, err)
	require.Equal(t, kvpb.RegionID(1), desc.RegionID)
	require.EqualValues(t, 1, db.lookups())

	// Any key inside the cached span is a hit.
	desc, err = c.LookupRegion(ctx, kvpb.Key("banana"))
	require.NoError(t, err)
	require.Equal(t, kvpb.RegionID(1), desc.RegionID)
	require.EqualValues(t, 1, db.lookups())

	// A key beyond the span misses and fetches the neighbor.
	desc, err = c.LookupRegion(ctx, kvpb.Key("mango"))
	require.NoError(t, err)
	require.Equal(t, kvpb.RegionID(2), desc.RegionID)
	require.EqualValues(t, 2, db.lookups())
	require.Equal(t, 2, c.Len())
}

func TestCacheLookupFailure(t *testing.T) {
	defer leaktest.AfterTest(t)()
	ctx := context.Background()
	c := NewCache(newTestDescriptorDB(descriptor(1, "a", "m")))

	_, err := c.LookupRegion(ctx, kvpb.Key("zebra"))
	require.Error(t, err)
	require.True(t, kvpb.IsRoutingError(err))
	require.Zero(t, c.Len(), "failed lookups must not populate the cache")
}

func TestCacheEvictByID(t *testing.T) {
	defer leaktest.AfterTest(t)()
	ctx := context.Background()
	db := newTestDescriptorDB(descriptor(1, "a", "m"))
	c := NewCache(db)

	_, err := c.LookupRegion(ctx, kvpb.Key("apple"))
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())

	c.EvictByID(ctx, 1)
	require.Zero(t, c.Len())

	// Evicting an absent region is a no-op.
	c.EvictByID(ctx, 42)

	_, err = c.LookupRegion(ctx, kvpb.Key("apple"))
	require.NoError(t, err)
	require.EqualValues(t, 2, db.lookups())
}

func TestCacheInsertClearsOverlapping(t *testing.T) {
	defer leaktest.AfterTest(t)()
	ctx := context.Background()
	c := NewCache(newTestDescriptorDB())

	// Seed [a,m) and [m,z), then observe a merge into [a,z).
	c.Insert(ctx, descriptor(1, "a", "m"))
	c.Insert(ctx, descriptor(2, "m", "z"))
	require.Equal(t, 2, c.Len())

	c.Insert(ctx, descriptor(3, "a", "z"))
	require.Equal(t, 1, c.Len())

	desc, err := c.LookupRegion(ctx, kvpb.Key("apple"))
	require.NoError(t, err)
	require.Equal(t, kvpb.RegionID(3), desc.RegionID)

	// A split of [a,z) replaces only what it overlaps.
	c.Insert(ctx, descriptor(4, "a", "g"))
	require.Equal(t, 1, c.Len(), "old span overlapping the split is dropped")
	c.Insert(ctx, descriptor(5, "g", "z"))
	require.Equal(t, 2, c.Len())

	// Adjacent spans survive each other.
	c.Insert(ctx, descriptor(6, "z", "zz"))
	require.Equal(t, 3, c.Len())
}

func TestCacheCoalescesConcurrentLookups(t *testing.T) {
	defer leaktest.AfterTest(t)()
	ctx := context.Background()
	db := newTestDescriptorDB(descriptor(1, "a", "m"))
	c := NewCache(db)

	resume := db.pause()
	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	started := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			started <- struct{}{}
			_, errs[i] = c.LookupRegion(ctx, kvpb.Key("apple"))
		}()
	}
	for i := 0; i < n; i++ {
		<-started
	}
	resume()
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	// Concurrent misses for the key share the in-flight database lookup. A
	// straggler arriving after it resolved may trigger its own, but there
	// is no thundering herd of n.
	require.Less(t, db.lookups(), int64(n))
}

func TestCacheClear(t *testing.T) {
	defer leaktest.AfterTest(t)()
	ctx := context.Background()
	c := NewCache(newTestDescriptorDB())
	c.Insert(ctx, descriptor(1, "a", "m"))
	c.Insert(ctx, descriptor(2, "m", "z"))
	require.Equal(t, 2, c.Len())
	c.Clear()
	require.Zero(t, c.Len())
}
