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

	"github.com/rangekv/client-go/pkg/kvpb"
	"github.com/rangekv/client-go/pkg/util/log"
)

// subBatch is the unit of dispatch: one region, the work to perform against
// it, and a private slot for the outcome. During fan-out each worker touches
// only its own subBatch, so no locking is needed; the join barrier in
// runSubBatches is the single synchronization point before the slots are
// read.
//
// run is a closure captured at construction time which performs the store
// call and fills the slots below, so the dispatcher never inspects the
// concrete request kind.
type subBatch struct {
	region kvpb.RegionDescriptor
	method kvpb.Method
	run    func(ctx context.Context)

	// Outcome slots, owned exclusively by run until the join barrier.
	err     error
	kvs     []kvpb.KeyValue
	states  []kvpb.KeyOpState
	deleted int64
}

// newSubBatch builds a subBatch whose run closure sends req through the
// client's sender and, on success, lets onSuccess decode the response into
// the outcome slots.
func (r *RawKV) newSubBatch(
	region kvpb.RegionDescriptor,
	req *kvpb.StoreRequest,
	onSuccess func(sb *subBatch, resp *kvpb.StoreResponse) error,
) *subBatch {
	sb := &subBatch{region: region, method: req.Method}
	sb.run = func(ctx context.Context) {
		resp, err := r.sender.Call(ctx, region, req)
		if err != nil {
			sb.err = err
			return
		}
		if onSuccess != nil {
			sb.err = onSuccess(sb, resp)
		}
	}
	return sb
}

// regionBatch is the partitioner's output for one region: the descriptor
// snapshot and the input items routed to it, in input order.
type regionBatch[T any] struct {
	region kvpb.RegionDescriptor
	items  []T
}

// partitionByRegion groups items by the region owning their key. Every item
// lands in exactly one group; group order is the order regions are first
// encountered and carries no meaning to callers. The first item whose key
// cannot be resolved aborts the whole partition with the lookup error and
// nothing is dispatched.
func partitionByRegion[T any](
	ctx context.Context, lookup regionLookup, items []T, keyOf func(T) kvpb.Key,
) ([]regionBatch[T], error) {
	byID := make(map[kvpb.RegionID]int)
	var groups []regionBatch[T]
	for _, item := range items {
		desc, err := lookup.LookupRegion(ctx, keyOf(item))
		if err != nil {
			return nil, err
		}
		i, ok := byID[desc.RegionID]
		if !ok {
			i = len(groups)
			byID[desc.RegionID] = i
			groups = append(groups, regionBatch[T]{region: desc})
		}
		groups[i].items = append(groups[i].items, item)
	}
	return groups, nil
}

// firstFailure scans completed sub-batches in dispatch order and returns the
// first recorded failure, if any. Every failure is logged; only the first
// becomes the call's result, and partial successes are never discarded on
// its account (the caller merges them regardless).
func firstFailure(ctx context.Context, subs []*subBatch) error {
	var result error
	for _, sb := range subs {
		if sb.err == nil {
			continue
		}
		log.Warningf(ctx, "%s to region %d failed: %v", sb.method, sb.region.RegionID, sb.err)
		if result == nil {
			result = sb.err
		}
	}
	return result
}
