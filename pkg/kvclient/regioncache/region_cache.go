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

// Package regioncache caches region descriptors for arbitrary keys.
// Descriptors are initially queried from the meta service through a
// RegionDescriptorDB and cached for subsequent lookups. Entries are evicted
// when the RPC layer discovers they are stale.
package regioncache

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/btree"
	"github.com/rangekv/client-go/pkg/kvpb"
	"github.com/rangekv/client-go/pkg/util/log"
	"github.com/rangekv/client-go/pkg/util/syncutil"
	"golang.org/x/sync/singleflight"
)

// cacheBTreeDegree is the degree of the descriptor btree. There is little
// point in optimizing this value.
const cacheBTreeDegree = 8

// RegionDescriptorDB is a type which can query region descriptors from an
// authoritative source, typically the cluster's meta service. This interface
// is used by Cache to retrieve information which will be cached; it is also
// the mock point for tests.
type RegionDescriptorDB interface {
	// RegionLookup returns the descriptor of the region owning key at the
	// time of the call. It fails with an error if no region owns the key or
	// the meta service is unavailable.
	RegionLookup(ctx context.Context, key kvpb.Key) (kvpb.RegionDescriptor, error)
}

// cacheEntry holds one descriptor; entries are ordered in the btree by their
// region start key.
type cacheEntry struct {
	desc kvpb.RegionDescriptor
}

// Less implements the btree.Item interface.
func (e *cacheEntry) Less(than btree.Item) bool {
	return e.desc.StartKey.Less(than.(*cacheEntry).desc.StartKey)
}

// Cache is used to retrieve region descriptors for arbitrary keys. A Cache
// is safe for concurrent use by multiple goroutines. Descriptors handed out
// are value-copied snapshots; nothing mutates a descriptor after it leaves
// the cache.
type Cache struct {
	db RegionDescriptorDB

	mu struct {
		syncutil.RWMutex
		tree *btree.BTree
		// byID indexes the tree's entries for eviction by region identity.
		byID map[kvpb.RegionID]*cacheEntry
	}

	// lookups coalesces concurrent misses for the same key onto a single
	// database lookup.
	lookups singleflight.Group
}

// NewCache returns a new Cache which will populate itself from db.
func NewCache(db RegionDescriptorDB) *Cache {
	c := &Cache{db: db}
	c.mu.tree = btree.New(cacheBTreeDegree)
	c.mu.byID = make(map[kvpb.RegionID]*cacheEntry)
	return c
}

// LookupRegion returns the descriptor of the region owning key, consulting
// the cache first and the descriptor database on a miss. Lookup failures are
// returned as kvpb.RoutingError.
func (c *Cache) LookupRegion(ctx context.Context, key kvpb.Key) (kvpb.RegionDescriptor, error) {
	if desc, ok := c.getCached(key); ok {
		return desc, nil
	}

	// Miss. Multiple goroutines racing on the same key share one lookup.
	res, err, _ := c.lookups.Do(string(key), func() (interface{}, error) {
		desc, err := c.db.RegionLookup(ctx, key)
		if err != nil {
			return kvpb.RegionDescriptor{}, err
		}
		if !desc.ContainsKey(key) {
			return kvpb.RegionDescriptor{}, errors.Newf(
				"directory returned %s which does not contain the key", desc)
		}
		c.Insert(ctx, desc)
		return desc, nil
	})
	if err != nil {
		return kvpb.RegionDescriptor{}, kvpb.NewRoutingError(key, err)
	}
	return res.(kvpb.RegionDescriptor), nil
}

func (c *Cache) getCached(key kvpb.Key) (kvpb.RegionDescriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var match *cacheEntry
	c.mu.tree.DescendLessOrEqual(&cacheEntry{desc: kvpb.RegionDescriptor{StartKey: key}},
		func(i btree.Item) bool {
			match = i.(*cacheEntry)
			return false
		})
	if match == nil || !match.desc.ContainsKey(key) {
		return kvpb.RegionDescriptor{}, false
	}
	return match.desc, true
}

// Insert adds a descriptor to the cache, removing any cached entries whose
// spans overlap it first. Newer information always wins: a split or merge
// observed by one lookup invalidates whatever the cache held for the
// affected keyspace.
func (c *Cache) Insert(ctx context.Context, desc kvpb.RegionDescriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearOverlappingLocked(ctx, desc)
	e := &cacheEntry{desc: desc}
	c.mu.tree.ReplaceOrInsert(e)
	c.mu.byID[desc.RegionID] = e
}

func (c *Cache) clearOverlappingLocked(ctx context.Context, desc kvpb.RegionDescriptor) {
	var overlapping []*cacheEntry
	c.mu.tree.DescendLessOrEqual(&cacheEntry{desc: kvpb.RegionDescriptor{StartKey: desc.EndKey}},
		func(i btree.Item) bool {
			e := i.(*cacheEntry)
			if e.desc.StartKey.Compare(desc.EndKey) >= 0 {
				// Starts at or beyond the new span's end; merely adjacent.
				return true
			}
			if e.desc.EndKey.Compare(desc.StartKey) <= 0 {
				// Ends at or before the new span's start; nothing further
				// down can overlap either.
				return false
			}
			overlapping = append(overlapping, e)
			return true
		})
	for _, e := range overlapping {
		if log.V(2) {
			log.Infof(ctx, "evicting overlapped descriptor: %s", e.desc)
		}
		c.deleteLocked(e)
	}
}

func (c *Cache) deleteLocked(e *cacheEntry) {
	c.mu.tree.Delete(e)
	if cur, ok := c.mu.byID[e.desc.RegionID]; ok && cur == e {
		delete(c.mu.byID, e.desc.RegionID)
	}
}

// EvictByID removes the cached descriptor for the given region, if present.
// It is called by the RPC layer when a store reports that the routing
// information the client used is stale.
func (c *Cache) EvictByID(ctx context.Context, id kvpb.RegionID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.mu.byID[id]
	if !ok {
		return
	}
	if log.V(1) {
		log.Infof(ctx, "evicting stale descriptor: %s", e.desc)
	}
	c.deleteLocked(e)
}

// Clear removes all cached descriptors.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mu.tree.Clear(false /* addNodesToFreelist */)
	c.mu.byID = make(map[kvpb.RegionID]*cacheEntry)
}

// Len returns the number of cached descriptors.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mu.tree.Len()
}
