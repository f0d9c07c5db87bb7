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

package log

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/cockroachdb/logtags"
	"github.com/stretchr/testify/require"
)

func TestLogFormatting(t *testing.T) {
	var buf bytes.Buffer
	defer SetOutput(SetOutput(&buf))

	ctx := logtags.AddTag(context.Background(), "region", 7)
	Infof(ctx, "dispatching %d sub-requests", 3)
	Warningf(ctx, "sub-request failed")

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	require.True(t, strings.HasPrefix(lines[0], "I"), "got %q", lines[0])
	require.Contains(t, lines[0], "[region=7]")
	require.Contains(t, lines[0], "dispatching 3 sub-requests")
	require.True(t, strings.HasPrefix(lines[1], "W"), "got %q", lines[1])
}

func TestVerbosityGate(t *testing.T) {
	defer SetVerbosity(SetVerbosity(2))
	require.True(t, V(1))
	require.True(t, V(2))
	require.False(t, V(3))
}
