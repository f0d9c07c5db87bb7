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
	"bytes"
	"fmt"

	"github.com/cockroachdb/redact"
)

// Key is an ordered byte string addressing a single entry in the store. Keys
// sort bytewise; region boundaries are expressed in the same ordering.
type Key []byte

// Compare returns -1, 0 or 1 depending on whether k sorts before, equal to,
// or after o.
func (k Key) Compare(o Key) int {
	return bytes.Compare(k, o)
}

// Equal returns whether two keys are identical.
func (k Key) Equal(o Key) bool {
	return bytes.Equal(k, o)
}

// Less returns whether k sorts before o.
func (k Key) Less(o Key) bool {
	return bytes.Compare(k, o) < 0
}

// String returns a human-readable form of the key.
func (k Key) String() string {
	return fmt.Sprintf("%q", []byte(k))
}

// SafeFormat implements the redact.SafeFormatter interface. Keys are user
// data and are redacted in log output.
func (k Key) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("%q", []byte(k))
}

// RegionID is a unique identifier for a region within the directory.
type RegionID int64

// SafeValue implements the redact.SafeValue interface.
func (RegionID) SafeValue() {}

// RegionEpoch is the version token attached to a region. A mismatch between
// the epoch a client captured at lookup time and the epoch the store holds
// means the client's routing information is stale.
type RegionEpoch struct {
	// Version is bumped by splits and merges.
	Version int64 `protobuf:"varint,1,opt,name=version,proto3" json:"version,omitempty"`
	// ConfVersion is bumped by replica configuration changes.
	ConfVersion int64 `protobuf:"varint,2,opt,name=conf_version,json=confVersion,proto3" json:"conf_version,omitempty"`
}

// Equal returns whether two epochs are the same version.
func (e RegionEpoch) Equal(o RegionEpoch) bool {
	return e.Version == o.Version && e.ConfVersion == o.ConfVersion
}

func (e RegionEpoch) String() string {
	return fmt.Sprintf("%d.%d", e.Version, e.ConfVersion)
}

// RegionDescriptor is an immutable snapshot of a region as observed at
// lookup time: identity, epoch, the half-open key span [StartKey, EndKey)
// the region owns, and the address of the store serving it. The directory
// may return a different descriptor for the same key later; a descriptor is
// never mutated after it leaves the directory.
type RegionDescriptor struct {
	RegionID RegionID
	Epoch    RegionEpoch
	StartKey Key
	EndKey   Key
	// Addr is the network address of the store currently serving the region.
	Addr string
}

// ContainsKey returns whether the region's span contains key.
func (d RegionDescriptor) ContainsKey(key Key) bool {
	return d.StartKey.Compare(key) <= 0 && key.Compare(d.EndKey) < 0
}

func (d RegionDescriptor) String() string {
	return fmt.Sprintf("region %d [%s,%s) @%s", d.RegionID, d.StartKey, d.EndKey, d.Epoch)
}

// KeyValue is a single key/value pair. Both halves are raw byte strings.
type KeyValue struct {
	Key   Key    `protobuf:"bytes,1,opt,name=key,proto3,casttype=Key" json:"key,omitempty"`
	Value []byte `protobuf:"bytes,2,opt,name=value,proto3" json:"value,omitempty"`
}

// KeyOpState is the outcome of a conditional per-key operation: Applied is
// true if the write took effect and false if the condition did not hold.
type KeyOpState struct {
	Key     Key
	Applied bool
}

// RangeWithOptions is a half-open key range [Start, End) with independent
// inclusivity flags for each boundary, as used by ranged deletion.
type RangeWithOptions struct {
	Start     Key  `protobuf:"bytes,1,opt,name=start,proto3,casttype=Key" json:"start,omitempty"`
	End       Key  `protobuf:"bytes,2,opt,name=end,proto3,casttype=Key" json:"end,omitempty"`
	WithStart bool `protobuf:"varint,3,opt,name=with_start,json=withStart,proto3" json:"with_start,omitempty"`
	WithEnd   bool `protobuf:"varint,4,opt,name=with_end,json=withEnd,proto3" json:"with_end,omitempty"`
}

func (r RangeWithOptions) String() string {
	l, h := '(', ')'
	if r.WithStart {
		l = '['
	}
	if r.WithEnd {
		h = ']'
	}
	return fmt.Sprintf("%c%s,%s%c", l, r.Start, r.End, h)
}
