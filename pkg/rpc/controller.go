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
	"context"

	"github.com/cockroachdb/errors"
	"github.com/rangekv/client-go/pkg/kvclient/regioncache"
	"github.com/rangekv/client-go/pkg/kvpb"
	"github.com/rangekv/client-go/pkg/util/log"
	"github.com/rangekv/client-go/pkg/util/retry"
)

// Controller performs one sub-request against one region. It owns the
// retry-on-stale-routing duty: when the store rejects a request because the
// captured epoch is out of date, the controller evicts the cached
// descriptor, re-resolves the region, and retries with backoff. All other
// failures are returned to the dispatch layer unchanged, which performs no
// retries of its own.
type Controller struct {
	transport Transport
	cache     *regioncache.Cache
	retryOpts retry.Options
}

// NewController creates a Controller sending through transport and
// refreshing routing information in cache.
func NewController(
	transport Transport, cache *regioncache.Cache, retryOpts retry.Options,
) *Controller {
	return &Controller{transport: transport, cache: cache, retryOpts: retryOpts}
}

// Call sends req to the store serving region and returns the response.
// region is the descriptor snapshot captured at partition time; the request
// context is (re-)stamped from it on every attempt.
func (c *Controller) Call(
	ctx context.Context, region kvpb.RegionDescriptor, req *kvpb.StoreRequest,
) (*kvpb.StoreResponse, error) {
	var lastErr error
	for r := retry.StartWithCtx(ctx, c.retryOpts); r.Next(); {
		req.Context = kvpb.RequestContext{
			RegionID: region.RegionID,
			Epoch:    region.Epoch,
		}

		resp, err := c.transport.Send(ctx, region.Addr, req)
		if err != nil {
			return nil, kvpb.NewRegionErrorf(region.RegionID, "%s: %v", req.Method, err)
		}
		if resp.Error == nil {
			return resp, nil
		}

		regionErr := kvpb.NewRegionError(resp.Error)
		if !kvpb.IsStaleRegionError(regionErr) {
			return nil, regionErr
		}
		lastErr = regionErr

		// The store moved on since we resolved routing. Refresh the
		// directory entry and retry against the new owner. A lookup failure
		// here is terminal for the sub-request.
		c.cache.EvictByID(ctx, region.RegionID)
		fresh, lookupErr := c.cache.LookupRegion(ctx, region.StartKey)
		if lookupErr != nil {
			return nil, lookupErr
		}
		if !fresh.StartKey.Equal(region.StartKey) || !fresh.EndKey.Equal(region.EndKey) {
			// The region's boundaries changed under us (split or merge).
			// The sub-request's items no longer map onto a single region,
			// and re-partitioning mid-call is not this layer's job; report
			// the stale failure to the caller.
			return nil, lastErr
		}
		if log.V(1) {
			log.Infof(ctx, "retrying %s against %s (attempt %d): %v",
				req.Method, fresh, r.CurrentAttempt()+1, regionErr)
		}
		region = fresh
	}
	if lastErr == nil {
		// The loop was cut short before the first attempt.
		lastErr = errors.Wrapf(ctx.Err(), "%s to region %d aborted", req.Method, region.RegionID)
	}
	return nil, lastErr
}
