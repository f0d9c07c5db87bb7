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

	"golang.org/x/sync/errgroup"
)

// runSubBatches executes every sub-batch exactly once and returns only after
// all of them have completed. The first sub-batch runs on the calling
// goroutine; the remaining N-1 are spawned. A single-region call therefore
// costs no extra goroutine, and worker creation is bounded by the number of
// distinct target regions.
//
// maxParallel, if positive, caps the number of concurrently running spawned
// workers; excess sub-batches queue until a slot frees up. The caller-run
// sub-batch is not counted against the cap, preserving the small-N shape.
//
// There is no early cancellation: a failed sub-batch does not abort its
// in-flight siblings, and each records its outcome only in its own slot.
func runSubBatches(ctx context.Context, subs []*subBatch, maxParallel int) {
	if len(subs) == 0 {
		return
	}

	// Deliberately not errgroup.WithContext: sub-batch failures are
	// reported through the slots, never through the group, so siblings run
	// to completion.
	var g errgroup.Group
	if maxParallel > 0 {
		g.SetLimit(maxParallel)
	}
	for _, sb := range subs[1:] {
		sb := sb
		g.Go(func() error {
			sb.run(ctx)
			return nil
		})
	}

	subs[0].run(ctx)

	_ = g.Wait()
}
