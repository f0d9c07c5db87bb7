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

	"github.com/cockroachdb/errors"
	"github.com/rangekv/client-go/pkg/kvpb"
)

// rangeSlice is one region's share of a decomposed key range.
type rangeSlice struct {
	region kvpb.RegionDescriptor
	span   kvpb.RangeWithOptions
}

// sliceRangeByRegion decomposes [start, end) with the given inclusivity
// flags into per-region sub-ranges, walking region boundaries left to right.
// The returned slices concatenate to exactly the requested range: no gap, no
// overlap, original flags at the extreme ends, and "start inclusive, end
// exclusive" at every internal boundary.
//
// If the requested end coincides exactly with a region boundary and withEnd
// is set, the end key cannot be covered by any sub-range (each is exclusive
// of its declared end); deleteEndKey is then returned true and the caller
// must remove that single key separately.
//
// A lookup failure aborts the decomposition; partial slices are discarded
// and nothing is dispatched.
func sliceRangeByRegion(
	ctx context.Context, lookup regionLookup, start, end kvpb.Key, withStart, withEnd bool,
) (slices []rangeSlice, deleteEndKey bool, _ error) {
	cursor := start
	cursorInclusive := withStart
	for {
		desc, err := lookup.LookupRegion(ctx, cursor)
		if err != nil {
			return nil, false, err
		}
		if desc.EndKey.Compare(cursor) <= 0 {
			return nil, false, errors.AssertionFailedf(
				"range decomposition made no progress: %s does not extend past cursor %s", desc, cursor)
		}

		switch cmp := end.Compare(desc.EndKey); {
		case cmp < 0:
			// The remainder of the requested range lies inside this region.
			slices = append(slices, rangeSlice{
				region: desc,
				span: kvpb.RangeWithOptions{
					Start: cursor, End: end, WithStart: cursorInclusive, WithEnd: withEnd,
				},
			})
			return slices, false, nil
		case cmp > 0:
			// The range continues beyond this region. The region boundary is
			// not deleted here; it belongs to the next region, which picks
			// it up with an inclusive start.
			slices = append(slices, rangeSlice{
				region: desc,
				span: kvpb.RangeWithOptions{
					Start: cursor, End: desc.EndKey, WithStart: cursorInclusive, WithEnd: false,
				},
			})
			cursor = desc.EndKey
			cursorInclusive = true
		default:
			// The requested end is exactly this region's boundary. The bulk
			// sub-range stops short of it; the key itself, if requested,
			// needs a dedicated deletion.
			slices = append(slices, rangeSlice{
				region: desc,
				span: kvpb.RangeWithOptions{
					Start: cursor, End: end, WithStart: cursorInclusive, WithEnd: false,
				},
			})
			return slices, withEnd, nil
		}
	}
}
