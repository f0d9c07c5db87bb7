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

// Package kvcoord routes logical key-value operations across regions. A
// logical batch is partitioned into one sub-request per owning region, the
// sub-requests are executed concurrently, and their outcomes are merged
// under a first-failure-wins policy which preserves all partial successes.
//
// Routing is resolved once per call. Batch conditional writes are atomic per
// region and deliberately not atomic across regions; a batch spanning three
// regions may apply on two and fail on the third, which the caller observes
// as a partial success.
package kvcoord

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rangekv/client-go/pkg/kvclient/regioncache"
	"github.com/rangekv/client-go/pkg/kvpb"
	"github.com/rangekv/client-go/pkg/rpc"
	"github.com/rangekv/client-go/pkg/util/retry"
)

// Config tunes a RawKV client.
type Config struct {
	// Retry configures the RPC controller's backoff when refreshing stale
	// routing information. No retries happen above that layer.
	Retry retry.Options
	// MaxParallel caps the number of spawned workers per logical call; the
	// sub-request executed on the calling goroutine is not counted. Zero
	// means one worker per region beyond the first, unbounded.
	MaxParallel int
}

// DefaultConfig returns the configuration used by NewRawKV when the caller
// does not override it.
func DefaultConfig() Config {
	return Config{
		Retry: retry.Options{
			InitialBackoff: 50 * time.Millisecond,
			MaxBackoff:     2 * time.Second,
			Multiplier:     2,
			MaxRetries:     5,
		},
	}
}

// regionLookup is the slice of the region directory the coordinator
// consumes: resolve one key to the region presently owning it.
type regionLookup interface {
	LookupRegion(ctx context.Context, key kvpb.Key) (kvpb.RegionDescriptor, error)
}

// sender performs one sub-request against one region. Implemented by
// rpc.Controller; substituted in tests.
type sender interface {
	Call(ctx context.Context, region kvpb.RegionDescriptor, req *kvpb.StoreRequest) (*kvpb.StoreResponse, error)
}

// RawKV is a client for the raw key-value surface of the store. It holds no
// per-call state and is safe for concurrent use by multiple goroutines.
type RawKV struct {
	cfg    Config
	lookup regionLookup
	sender sender
}

// NewRawKV creates a RawKV resolving regions through db and sending store
// requests through transport.
func NewRawKV(cfg Config, db regioncache.RegionDescriptorDB, transport rpc.Transport) *RawKV {
	cache := regioncache.NewCache(db)
	return &RawKV{
		cfg:    cfg,
		lookup: cache,
		sender: rpc.NewController(transport, cache, cfg.Retry),
	}
}

// Get returns the value stored at key, or nil if the key has no value.
func (r *RawKV) Get(ctx context.Context, key kvpb.Key) ([]byte, error) {
	region, err := r.lookup.LookupRegion(ctx, key)
	if err != nil {
		return nil, err
	}
	resp, err := r.sender.Call(ctx, region, &kvpb.StoreRequest{
		Method: kvpb.Get,
		Get:    &kvpb.GetRequest{Key: key},
	})
	if err != nil {
		return nil, err
	}
	if resp.Get == nil {
		return nil, errors.AssertionFailedf("store returned no %s payload", kvpb.Get)
	}
	return resp.Get.Value, nil
}

// BatchGet returns the key/value pairs stored for keys. Keys without a value
// are absent from the result. On a partial failure the pairs fetched from
// the regions that succeeded are returned alongside the first failure.
func (r *RawKV) BatchGet(ctx context.Context, keys []kvpb.Key) ([]kvpb.KeyValue, error) {
	groups, err := partitionByRegion(ctx, r.lookup, keys, func(k kvpb.Key) kvpb.Key { return k })
	if err != nil {
		return nil, err
	}

	subs := make([]*subBatch, 0, len(groups))
	for _, g := range groups {
		subs = append(subs, r.newSubBatch(g.region, &kvpb.StoreRequest{
			Method:   kvpb.BatchGet,
			BatchGet: &kvpb.BatchGetRequest{Keys: g.items},
		}, func(sb *subBatch, resp *kvpb.StoreResponse) error {
			if resp.BatchGet == nil {
				return errors.AssertionFailedf("store returned no %s payload", kvpb.BatchGet)
			}
			sb.kvs = resp.BatchGet.Kvs
			return nil
		}))
	}
	runSubBatches(ctx, subs, r.cfg.MaxParallel)

	err = firstFailure(ctx, subs)
	var kvs []kvpb.KeyValue
	for _, sb := range subs {
		if sb.err == nil {
			kvs = append(kvs, sb.kvs...)
		}
	}
	return kvs, err
}

// Put stores value at key, replacing any existing value.
func (r *RawKV) Put(ctx context.Context, key kvpb.Key, value []byte) error {
	region, err := r.lookup.LookupRegion(ctx, key)
	if err != nil {
		return err
	}
	_, err = r.sender.Call(ctx, region, &kvpb.StoreRequest{
		Method: kvpb.Put,
		Put:    &kvpb.PutRequest{Kv: kvpb.KeyValue{Key: key, Value: value}},
	})
	return err
}

// BatchPut stores every pair in kvs. Pairs owned by regions that succeed are
// durable even if another region fails.
func (r *RawKV) BatchPut(ctx context.Context, kvs []kvpb.KeyValue) error {
	groups, err := partitionByRegion(ctx, r.lookup, kvs, func(kv kvpb.KeyValue) kvpb.Key { return kv.Key })
	if err != nil {
		return err
	}

	subs := make([]*subBatch, 0, len(groups))
	for _, g := range groups {
		subs = append(subs, r.newSubBatch(g.region, &kvpb.StoreRequest{
			Method:   kvpb.BatchPut,
			BatchPut: &kvpb.BatchPutRequest{Kvs: g.items},
		}, nil))
	}
	runSubBatches(ctx, subs, r.cfg.MaxParallel)
	return firstFailure(ctx, subs)
}

// PutIfAbsent stores value at key only if the key currently has no value.
// It reports whether the write took effect.
func (r *RawKV) PutIfAbsent(ctx context.Context, key kvpb.Key, value []byte) (bool, error) {
	region, err := r.lookup.LookupRegion(ctx, key)
	if err != nil {
		return false, err
	}
	resp, err := r.sender.Call(ctx, region, &kvpb.StoreRequest{
		Method:      kvpb.PutIfAbsent,
		PutIfAbsent: &kvpb.PutIfAbsentRequest{Kv: kvpb.KeyValue{Key: key, Value: value}},
	})
	if err != nil {
		return false, err
	}
	if resp.PutIfAbsent == nil {
		return false, errors.AssertionFailedf("store returned no %s payload", kvpb.PutIfAbsent)
	}
	return resp.PutIfAbsent.Applied, nil
}

// BatchPutIfAbsent applies PutIfAbsent to every pair in kvs and reports the
// per-key outcomes. Evaluation is atomic within each region and not atomic
// across regions.
func (r *RawKV) BatchPutIfAbsent(ctx context.Context, kvs []kvpb.KeyValue) ([]kvpb.KeyOpState, error) {
	groups, err := partitionByRegion(ctx, r.lookup, kvs, func(kv kvpb.KeyValue) kvpb.Key { return kv.Key })
	if err != nil {
		return nil, err
	}

	subs := make([]*subBatch, 0, len(groups))
	for _, g := range groups {
		g := g
		subs = append(subs, r.newSubBatch(g.region, &kvpb.StoreRequest{
			Method:           kvpb.BatchPutIfAbsent,
			BatchPutIfAbsent: &kvpb.BatchPutIfAbsentRequest{Kvs: g.items, Atomic: true},
		}, func(sb *subBatch, resp *kvpb.StoreResponse) error {
			if resp.BatchPutIfAbsent == nil {
				return errors.AssertionFailedf("store returned no %s payload", kvpb.BatchPutIfAbsent)
			}
			return decodeOpStates(sb, g.items, resp.BatchPutIfAbsent.Applied)
		}))
	}
	runSubBatches(ctx, subs, r.cfg.MaxParallel)
	return mergeOpStates(ctx, subs)
}

// Delete removes any value stored at key.
func (r *RawKV) Delete(ctx context.Context, key kvpb.Key) error {
	region, err := r.lookup.LookupRegion(ctx, key)
	if err != nil {
		return err
	}
	// Single-key deletion rides the batch-delete request with one key.
	_, err = r.sender.Call(ctx, region, &kvpb.StoreRequest{
		Method:      kvpb.BatchDelete,
		BatchDelete: &kvpb.BatchDeleteRequest{Keys: []kvpb.Key{key}},
	})
	return err
}

// BatchDelete removes every key in keys. Keys owned by regions that succeed
// are removed even if another region fails.
func (r *RawKV) BatchDelete(ctx context.Context, keys []kvpb.Key) error {
	groups, err := partitionByRegion(ctx, r.lookup, keys, func(k kvpb.Key) kvpb.Key { return k })
	if err != nil {
		return err
	}

	subs := make([]*subBatch, 0, len(groups))
	for _, g := range groups {
		subs = append(subs, r.newSubBatch(g.region, &kvpb.StoreRequest{
			Method:      kvpb.BatchDelete,
			BatchDelete: &kvpb.BatchDeleteRequest{Keys: g.items},
		}, nil))
	}
	runSubBatches(ctx, subs, r.cfg.MaxParallel)
	return firstFailure(ctx, subs)
}

// DeleteRange removes all keys in [start, end), with withStart and withEnd
// independently widening or narrowing each boundary. It returns the number
// of keys removed by the sub-ranges that succeeded; on a partial failure the
// count of the successful sub-ranges is returned alongside the first
// failure.
func (r *RawKV) DeleteRange(
	ctx context.Context, start, end kvpb.Key, withStart, withEnd bool,
) (int64, error) {
	if start.Compare(end) >= 0 {
		return 0, kvpb.NewInvalidArgumentf("start key %s must sort before end key %s", start, end)
	}

	slices, deleteEndKey, err := sliceRangeByRegion(ctx, r.lookup, start, end, withStart, withEnd)
	if err != nil {
		return 0, err
	}

	subs := make([]*subBatch, 0, len(slices)+1)
	if deleteEndKey {
		// The requested end coincides with a region boundary and was asked
		// for inclusively; no bulk sub-range can cover it, so the key gets a
		// dedicated single-key deletion against its owning region. It is
		// placed first so it runs on the calling goroutine while the bulk
		// sub-ranges are in flight; its count participates only if it
		// succeeds, and its failure is an ordinary candidate for the
		// first-failure result. The lookup happens here, before dispatch,
		// like every other routing decision.
		region, err := r.lookup.LookupRegion(ctx, end)
		if err != nil {
			return 0, err
		}
		subs = append(subs, r.newSubBatch(region, &kvpb.StoreRequest{
			Method:      kvpb.BatchDelete,
			BatchDelete: &kvpb.BatchDeleteRequest{Keys: []kvpb.Key{end}},
		}, func(sb *subBatch, resp *kvpb.StoreResponse) error {
			sb.deleted = 1
			return nil
		}))
	}
	for _, sl := range slices {
		subs = append(subs, r.newSubBatch(sl.region, &kvpb.StoreRequest{
			Method:      kvpb.DeleteRange,
			DeleteRange: &kvpb.DeleteRangeRequest{Range: sl.span},
		}, func(sb *subBatch, resp *kvpb.StoreResponse) error {
			if resp.DeleteRange == nil {
				return errors.AssertionFailedf("store returned no %s payload", kvpb.DeleteRange)
			}
			sb.deleted = resp.DeleteRange.DeletedCount
			return nil
		}))
	}
	runSubBatches(ctx, subs, r.cfg.MaxParallel)

	err = firstFailure(ctx, subs)
	var deleted int64
	for _, sb := range subs {
		if sb.err == nil {
			deleted += sb.deleted
		}
	}
	return deleted, err
}

// CompareAndSet stores value at key only if the current value equals
// expected. It reports whether the write took effect.
func (r *RawKV) CompareAndSet(
	ctx context.Context, key kvpb.Key, value, expected []byte,
) (bool, error) {
	region, err := r.lookup.LookupRegion(ctx, key)
	if err != nil {
		return false, err
	}
	resp, err := r.sender.Call(ctx, region, &kvpb.StoreRequest{
		Method: kvpb.CompareAndSet,
		CompareAndSet: &kvpb.CompareAndSetRequest{
			Kv:            kvpb.KeyValue{Key: key, Value: value},
			ExpectedValue: expected,
		},
	})
	if err != nil {
		return false, err
	}
	if resp.CompareAndSet == nil {
		return false, errors.AssertionFailedf("store returned no %s payload", kvpb.CompareAndSet)
	}
	return resp.CompareAndSet.Applied, nil
}

// casEntry pairs one kv with the expected value guarding it through
// partitioning.
type casEntry struct {
	kv       kvpb.KeyValue
	expected []byte
}

// BatchCompareAndSet applies CompareAndSet to every pair in kvs, guarded by
// the index-aligned expected values, and reports the per-key outcomes.
// Evaluation is atomic within each region and not atomic across regions.
func (r *RawKV) BatchCompareAndSet(
	ctx context.Context, kvs []kvpb.KeyValue, expectedValues [][]byte,
) ([]kvpb.KeyOpState, error) {
	if len(kvs) != len(expectedValues) {
		return nil, kvpb.NewInvalidArgumentf(
			"kvs size %d must equal expected values size %d", len(kvs), len(expectedValues))
	}

	entries := make([]casEntry, len(kvs))
	for i, kv := range kvs {
		entries[i] = casEntry{kv: kv, expected: expectedValues[i]}
	}
	groups, err := partitionByRegion(ctx, r.lookup, entries, func(e casEntry) kvpb.Key { return e.kv.Key })
	if err != nil {
		return nil, err
	}

	subs := make([]*subBatch, 0, len(groups))
	for _, g := range groups {
		g := g
		req := &kvpb.BatchCompareAndSetRequest{
			Kvs:            make([]kvpb.KeyValue, len(g.items)),
			ExpectedValues: make([][]byte, len(g.items)),
			Atomic:         true,
		}
		for i, e := range g.items {
			req.Kvs[i] = e.kv
			req.ExpectedValues[i] = e.expected
		}
		subs = append(subs, r.newSubBatch(g.region, &kvpb.StoreRequest{
			Method:             kvpb.BatchCompareAndSet,
			BatchCompareAndSet: req,
		}, func(sb *subBatch, resp *kvpb.StoreResponse) error {
			if resp.BatchCompareAndSet == nil {
				return errors.AssertionFailedf("store returned no %s payload", kvpb.BatchCompareAndSet)
			}
			kvsOnly := make([]kvpb.KeyValue, len(g.items))
			for i, e := range g.items {
				kvsOnly[i] = e.kv
			}
			return decodeOpStates(sb, kvsOnly, resp.BatchCompareAndSet.Applied)
		}))
	}
	runSubBatches(ctx, subs, r.cfg.MaxParallel)
	return mergeOpStates(ctx, subs)
}

// decodeOpStates zips a sub-batch's request pairs with the store's
// index-aligned applied flags into the sub-batch's state slot.
func decodeOpStates(sb *subBatch, kvs []kvpb.KeyValue, applied []bool) error {
	if len(applied) != len(kvs) {
		return errors.AssertionFailedf(
			"store returned %d outcomes for %d keys", len(applied), len(kvs))
	}
	sb.states = make([]kvpb.KeyOpState, len(kvs))
	for i, kv := range kvs {
		sb.states[i] = kvpb.KeyOpState{Key: kv.Key, Applied: applied[i]}
	}
	return nil
}

// mergeOpStates merges the per-key outcomes of the sub-batches that
// succeeded and pairs them with the first failure, if any.
func mergeOpStates(ctx context.Context, subs []*subBatch) ([]kvpb.KeyOpState, error) {
	err := firstFailure(ctx, subs)
	var states []kvpb.KeyOpState
	for _, sb := range subs {
		if sb.err == nil {
			states = append(states, sb.states...)
		}
	}
	return states, err
}
