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
	"github.com/cockroachdb/errors"
	"github.com/gogo/protobuf/proto"
)

const codecName = "proto"

// codec marshals the store protocol with the gogo runtime. gRPC's default
// proto codec only accepts protoc-gen-go message types; ours are gogo
// messages, so calls force this codec instead.
type codec struct{}

func (codec) Marshal(v interface{}) ([]byte, error) {
	msg, ok := v.(proto.Message)
	if !ok {
		return nil, errors.Newf("unexpected message type %T", v)
	}
	return proto.Marshal(msg)
}

func (codec) Unmarshal(data []byte, v interface{}) error {
	msg, ok := v.(proto.Message)
	if !ok {
		return errors.Newf("unexpected message type %T", v)
	}
	return proto.Unmarshal(data, msg)
}

func (codec) Name() string {
	return codecName
}
