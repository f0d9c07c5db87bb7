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
	"github.com/gogo/protobuf/proto"
)

// Method identifies the kind of a store request. The set is closed: every
// sub-request dispatched to a region carries exactly one of these.
type Method int32

const (
	// Get fetches the value for one key.
	Get Method = iota
	// BatchGet fetches values for a set of keys within one region.
	BatchGet
	// Put writes one key/value pair.
	Put
	// BatchPut writes a set of key/value pairs within one region.
	BatchPut
	// PutIfAbsent writes a key/value pair only if the key has no value.
	PutIfAbsent
	// BatchPutIfAbsent is the region-local batch form of PutIfAbsent.
	BatchPutIfAbsent
	// BatchDelete removes a set of keys within one region. Single-key
	// deletion is a BatchDelete with one key.
	BatchDelete
	// DeleteRange removes all keys in a sub-range owned by one region.
	DeleteRange
	// CompareAndSet writes a key/value pair only if the current value
	// matches an expected value.
	CompareAndSet
	// BatchCompareAndSet is the region-local batch form of CompareAndSet.
	BatchCompareAndSet
)

var methodNames = map[Method]string{
	Get:                "Get",
	BatchGet:           "BatchGet",
	Put:                "Put",
	BatchPut:           "BatchPut",
	PutIfAbsent:        "PutIfAbsent",
	BatchPutIfAbsent:   "BatchPutIfAbsent",
	BatchDelete:        "BatchDelete",
	DeleteRange:        "DeleteRange",
	CompareAndSet:      "CompareAndSet",
	BatchCompareAndSet: "BatchCompareAndSet",
}

func (m Method) String() string {
	if s, ok := methodNames[m]; ok {
		return s
	}
	return "Unknown"
}

// SafeValue implements the redact.SafeValue interface.
func (Method) SafeValue() {}

// RequestContext carries the routing information captured at lookup time.
// The store rejects the request with a stale-epoch error if the region has
// moved on since.
type RequestContext struct {
	RegionID RegionID    `protobuf:"varint,1,opt,name=region_id,json=regionId,proto3,casttype=RegionID" json:"region_id,omitempty"`
	Epoch    RegionEpoch `protobuf:"bytes,2,opt,name=epoch,proto3" json:"epoch"`
}

// ErrorCode classifies a store-side failure on the wire.
type ErrorCode int32

const (
	// ErrorUnknown is a store failure with no finer classification.
	ErrorUnknown ErrorCode = iota
	// ErrorEpochStale means the request's epoch no longer matches the
	// region; the routing entry must be refreshed before retrying.
	ErrorEpochStale
	// ErrorRegionNotFound means the addressed store no longer serves the
	// region at all.
	ErrorRegionNotFound
	// ErrorKeyOutOfRange means a key in the request falls outside the
	// region's span.
	ErrorKeyOutOfRange
)

// ResponseError is the store-side failure attached to a StoreResponse.
type ResponseError struct {
	Code     ErrorCode `protobuf:"varint,1,opt,name=code,proto3,casttype=ErrorCode" json:"code,omitempty"`
	Message  string    `protobuf:"bytes,2,opt,name=message,proto3" json:"message,omitempty"`
	RegionID RegionID  `protobuf:"varint,3,opt,name=region_id,json=regionId,proto3,casttype=RegionID" json:"region_id,omitempty"`
}

// GetRequest and friends are the per-method payloads. Exactly one payload is
// populated in a StoreRequest, selected by Method.

type GetRequest struct {
	Key Key `protobuf:"bytes,1,opt,name=key,proto3,casttype=Key" json:"key,omitempty"`
}

type GetResponse struct {
	Value []byte `protobuf:"bytes,1,opt,name=value,proto3" json:"value,omitempty"`
}

type BatchGetRequest struct {
	Keys []Key `protobuf:"bytes,1,rep,name=keys,proto3,castrepeated=Key" json:"keys,omitempty"`
}

type BatchGetResponse struct {
	Kvs []KeyValue `protobuf:"bytes,1,rep,name=kvs,proto3" json:"kvs"`
}

type PutRequest struct {
	Kv KeyValue `protobuf:"bytes,1,opt,name=kv,proto3" json:"kv"`
}

type PutResponse struct {
}

type BatchPutRequest struct {
	Kvs []KeyValue `protobuf:"bytes,1,rep,name=kvs,proto3" json:"kvs"`
}

type BatchPutResponse struct {
}

type PutIfAbsentRequest struct {
	Kv KeyValue `protobuf:"bytes,1,opt,name=kv,proto3" json:"kv"`
}

type PutIfAbsentResponse struct {
	Applied bool `protobuf:"varint,1,opt,name=applied,proto3" json:"applied,omitempty"`
}

type BatchPutIfAbsentRequest struct {
	Kvs []KeyValue `protobuf:"bytes,1,rep,name=kvs,proto3" json:"kvs"`
	// Atomic requests region-local atomic evaluation: either every absent
	// key in the batch is written or none is.
	Atomic bool `protobuf:"varint,2,opt,name=atomic,proto3" json:"atomic,omitempty"`
}

type BatchPutIfAbsentResponse struct {
	// Applied is index-aligned with the request's Kvs.
	Applied []bool `protobuf:"varint,1,rep,name=applied,proto3" json:"applied,omitempty"`
}

type BatchDeleteRequest struct {
	Keys []Key `protobuf:"bytes,1,rep,name=keys,proto3,castrepeated=Key" json:"keys,omitempty"`
}

type BatchDeleteResponse struct {
}

type DeleteRangeRequest struct {
	Range RangeWithOptions `protobuf:"bytes,1,opt,name=range,proto3" json:"range"`
}

type DeleteRangeResponse struct {
	DeletedCount int64 `protobuf:"varint,1,opt,name=deleted_count,json=deletedCount,proto3" json:"deleted_count,omitempty"`
}

type CompareAndSetRequest struct {
	Kv            KeyValue `protobuf:"bytes,1,opt,name=kv,proto3" json:"kv"`
	ExpectedValue []byte   `protobuf:"bytes,2,opt,name=expected_value,json=expectedValue,proto3" json:"expected_value,omitempty"`
}

type CompareAndSetResponse struct {
	Applied bool `protobuf:"varint,1,opt,name=applied,proto3" json:"applied,omitempty"`
}

type BatchCompareAndSetRequest struct {
	Kvs []KeyValue `protobuf:"bytes,1,rep,name=kvs,proto3" json:"kvs"`
	// ExpectedValues is index-aligned with Kvs.
	ExpectedValues [][]byte `protobuf:"bytes,2,rep,name=expected_values,json=expectedValues,proto3" json:"expected_values,omitempty"`
	Atomic         bool     `protobuf:"varint,3,opt,name=atomic,proto3" json:"atomic,omitempty"`
}

type BatchCompareAndSetResponse struct {
	// Applied is index-aligned with the request's Kvs.
	Applied []bool `protobuf:"varint,1,rep,name=applied,proto3" json:"applied,omitempty"`
}

// StoreRequest is the unit sent to one region's store: routing context, the
// method, and the single populated payload for that method.
type StoreRequest struct {
	Context RequestContext `protobuf:"bytes,1,opt,name=context,proto3" json:"context"`
	Method  Method         `protobuf:"varint,2,opt,name=method,proto3,casttype=Method" json:"method,omitempty"`

	Get                *GetRequest                `protobuf:"bytes,3,opt,name=get,proto3" json:"get,omitempty"`
	BatchGet           *BatchGetRequest           `protobuf:"bytes,4,opt,name=batch_get,json=batchGet,proto3" json:"batch_get,omitempty"`
	Put                *PutRequest                `protobuf:"bytes,5,opt,name=put,proto3" json:"put,omitempty"`
	BatchPut           *BatchPutRequest           `protobuf:"bytes,6,opt,name=batch_put,json=batchPut,proto3" json:"batch_put,omitempty"`
	PutIfAbsent        *PutIfAbsentRequest        `protobuf:"bytes,7,opt,name=put_if_absent,json=putIfAbsent,proto3" json:"put_if_absent,omitempty"`
	BatchPutIfAbsent   *BatchPutIfAbsentRequest   `protobuf:"bytes,8,opt,name=batch_put_if_absent,json=batchPutIfAbsent,proto3" json:"batch_put_if_absent,omitempty"`
	BatchDelete        *BatchDeleteRequest        `protobuf:"bytes,9,opt,name=batch_delete,json=batchDelete,proto3" json:"batch_delete,omitempty"`
	DeleteRange        *DeleteRangeRequest        `protobuf:"bytes,10,opt,name=delete_range,json=deleteRange,proto3" json:"delete_range,omitempty"`
	CompareAndSet      *CompareAndSetRequest      `protobuf:"bytes,11,opt,name=compare_and_set,json=compareAndSet,proto3" json:"compare_and_set,omitempty"`
	BatchCompareAndSet *BatchCompareAndSetRequest `protobuf:"bytes,12,opt,name=batch_compare_and_set,json=batchCompareAndSet,proto3" json:"batch_compare_and_set,omitempty"`
}

// StoreResponse mirrors StoreRequest: either Error is set, or the payload
// matching the request's method is.
type StoreResponse struct {
	Error *ResponseError `protobuf:"bytes,1,opt,name=error,proto3" json:"error,omitempty"`

	Get                *GetResponse                `protobuf:"bytes,3,opt,name=get,proto3" json:"get,omitempty"`
	BatchGet           *BatchGetResponse           `protobuf:"bytes,4,opt,name=batch_get,json=batchGet,proto3" json:"batch_get,omitempty"`
	Put                *PutResponse                `protobuf:"bytes,5,opt,name=put,proto3" json:"put,omitempty"`
	BatchPut           *BatchPutResponse           `protobuf:"bytes,6,opt,name=batch_put,json=batchPut,proto3" json:"batch_put,omitempty"`
	PutIfAbsent        *PutIfAbsentResponse        `protobuf:"bytes,7,opt,name=put_if_absent,json=putIfAbsent,proto3" json:"put_if_absent,omitempty"`
	BatchPutIfAbsent   *BatchPutIfAbsentResponse   `protobuf:"bytes,8,opt,name=batch_put_if_absent,json=batchPutIfAbsent,proto3" json:"batch_put_if_absent,omitempty"`
	BatchDelete        *BatchDeleteResponse        `protobuf:"bytes,9,opt,name=batch_delete,json=batchDelete,proto3" json:"batch_delete,omitempty"`
	DeleteRange        *DeleteRangeResponse        `protobuf:"bytes,10,opt,name=delete_range,json=deleteRange,proto3" json:"delete_range,omitempty"`
	CompareAndSet      *CompareAndSetResponse      `protobuf:"bytes,11,opt,name=compare_and_set,json=compareAndSet,proto3" json:"compare_and_set,omitempty"`
	BatchCompareAndSet *BatchCompareAndSetResponse `protobuf:"bytes,12,opt,name=batch_compare_and_set,json=batchCompareAndSet,proto3" json:"batch_compare_and_set,omitempty"`
}

// proto.Message boilerplate. The store protocol is spoken through the gogo
// runtime, which marshals these by reflection over the field tags.

func (m *RegionEpoch) Reset()         { *m = RegionEpoch{} }
func (m *RegionEpoch) ProtoMessage()  {}
func (m *KeyValue) Reset()            { *m = KeyValue{} }
func (m *KeyValue) String() string    { return proto.CompactTextString(m) }
func (m *KeyValue) ProtoMessage()     {}
func (m *RangeWithOptions) Reset()    { *m = RangeWithOptions{} }
func (m *RangeWithOptions) ProtoMessage() {}

func (m *RequestContext) Reset()         { *m = RequestContext{} }
func (m *RequestContext) String() string { return proto.CompactTextString(m) }
func (m *RequestContext) ProtoMessage()  {}

func (m *ResponseError) Reset()         { *m = ResponseError{} }
func (m *ResponseError) String() string { return proto.CompactTextString(m) }
func (m *ResponseError) ProtoMessage()  {}

func (m *GetRequest) Reset()          { *m = GetRequest{} }
func (m *GetRequest) String() string  { return proto.CompactTextString(m) }
func (m *GetRequest) ProtoMessage()   {}
func (m *GetResponse) Reset()         { *m = GetResponse{} }
func (m *GetResponse) String() string { return proto.CompactTextString(m) }
func (m *GetResponse) ProtoMessage()  {}

func (m *BatchGetRequest) Reset()          { *m = BatchGetRequest{} }
func (m *BatchGetRequest) String() string  { return proto.CompactTextString(m) }
func (m *BatchGetRequest) ProtoMessage()   {}
func (m *BatchGetResponse) Reset()         { *m = BatchGetResponse{} }
func (m *BatchGetResponse) String() string { return proto.CompactTextString(m) }
func (m *BatchGetResponse) ProtoMessage()  {}

func (m *PutRequest) Reset()          { *m = PutRequest{} }
func (m *PutRequest) String() string  { return proto.CompactTextString(m) }
func (m *PutRequest) ProtoMessage()   {}
func (m *PutResponse) Reset()         { *m = PutResponse{} }
func (m *PutResponse) String() string { return proto.CompactTextString(m) }
func (m *PutResponse) ProtoMessage()  {}

func (m *BatchPutRequest) Reset()          { *m = BatchPutRequest{} }
func (m *BatchPutRequest) String() string  { return proto.CompactTextString(m) }
func (m *BatchPutRequest) ProtoMessage()   {}
func (m *BatchPutResponse) Reset()         { *m = BatchPutResponse{} }
func (m *BatchPutResponse) String() string { return proto.CompactTextString(m) }
func (m *BatchPutResponse) ProtoMessage()  {}

func (m *PutIfAbsentRequest) Reset()          { *m = PutIfAbsentRequest{} }
func (m *PutIfAbsentRequest) String() string  { return proto.CompactTextString(m) }
func (m *PutIfAbsentRequest) ProtoMessage()   {}
func (m *PutIfAbsentResponse) Reset()         { *m = PutIfAbsentResponse{} }
func (m *PutIfAbsentResponse) String() string { return proto.CompactTextString(m) }
func (m *PutIfAbsentResponse) ProtoMessage()  {}

func (m *BatchPutIfAbsentRequest) Reset()          { *m = BatchPutIfAbsentRequest{} }
func (m *BatchPutIfAbsentRequest) String() string  { return proto.CompactTextString(m) }
func (m *BatchPutIfAbsentRequest) ProtoMessage()   {}
func (m *BatchPutIfAbsentResponse) Reset()         { *m = BatchPutIfAbsentResponse{} }
func (m *BatchPutIfAbsentResponse) String() string { return proto.CompactTextString(m) }
func (m *BatchPutIfAbsentResponse) ProtoMessage()  {}

func (m *BatchDeleteRequest) Reset()          { *m = BatchDeleteRequest{} }
func (m *BatchDeleteRequest) String() string  { return proto.CompactTextString(m) }
func (m *BatchDeleteRequest) ProtoMessage()   {}
func (m *BatchDeleteResponse) Reset()         { *m = BatchDeleteResponse{} }
func (m *BatchDeleteResponse) String() string { return proto.CompactTextString(m) }
func (m *BatchDeleteResponse) ProtoMessage()  {}

func (m *DeleteRangeRequest) Reset()          { *m = DeleteRangeRequest{} }
func (m *DeleteRangeRequest) String() string  { return proto.CompactTextString(m) }
func (m *DeleteRangeRequest) ProtoMessage()   {}
func (m *DeleteRangeResponse) Reset()         { *m = DeleteRangeResponse{} }
func (m *DeleteRangeResponse) String() string { return proto.CompactTextString(m) }
func (m *DeleteRangeResponse) ProtoMessage()  {}

func (m *CompareAndSetRequest) Reset()          { *m = CompareAndSetRequest{} }
func (m *CompareAndSetRequest) String() string  { return proto.CompactTextString(m) }
func (m *CompareAndSetRequest) ProtoMessage()   {}
func (m *CompareAndSetResponse) Reset()         { *m = CompareAndSetResponse{} }
func (m *CompareAndSetResponse) String() string { return proto.CompactTextString(m) }
func (m *CompareAndSetResponse) ProtoMessage()  {}

func (m *BatchCompareAndSetRequest) Reset()          { *m = BatchCompareAndSetRequest{} }
func (m *BatchCompareAndSetRequest) String() string  { return proto.CompactTextString(m) }
func (m *BatchCompareAndSetRequest) ProtoMessage()   {}
func (m *BatchCompareAndSetResponse) Reset()         { *m = BatchCompareAndSetResponse{} }
func (m *BatchCompareAndSetResponse) String() string { return proto.CompactTextString(m) }
func (m *BatchCompareAndSetResponse) ProtoMessage()  {}

func (m *StoreRequest) Reset()          { *m = StoreRequest{} }
func (m *StoreRequest) String() string  { return proto.CompactTextString(m) }
func (m *StoreRequest) ProtoMessage()   {}
func (m *StoreResponse) Reset()         { *m = StoreResponse{} }
func (m *StoreResponse) String() string { return proto.CompactTextString(m) }
func (m *StoreResponse) ProtoMessage()  {}

func init() {
	proto.RegisterType((*RequestContext)(nil), "kvpb.RequestContext")
	proto.RegisterType((*ResponseError)(nil), "kvpb.ResponseError")
	proto.RegisterType((*KeyValue)(nil), "kvpb.KeyValue")
	proto.RegisterType((*RangeWithOptions)(nil), "kvpb.RangeWithOptions")
	proto.RegisterType((*StoreRequest)(nil), "kvpb.StoreRequest")
	proto.RegisterType((*StoreResponse)(nil), "kvpb.StoreResponse")
}
