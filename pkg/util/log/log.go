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

// Package log provides the client's structured logging facade. Log entries
// carry the tags attached to the context via logtags and are formatted with
// redaction-aware printing, so user keys and values never land in plain text
// output.
package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/logtags"
	"github.com/cockroachdb/redact"
	"github.com/rangekv/client-go/pkg/util/syncutil"
)

// Severity identifies the severity of a log entry.
type Severity int

const (
	// SeverityInfo is used for informational messages.
	SeverityInfo Severity = iota
	// SeverityWarning is used for situations which may impair the current
	// operation but not the client as a whole.
	SeverityWarning
	// SeverityError is used for operation failures.
	SeverityError
	// SeverityFatal terminates the process after logging.
	SeverityFatal
)

var severityChar = [...]byte{'I', 'W', 'E', 'F'}

var verbosity int32

var output struct {
	syncutil.Mutex
	w io.Writer
}

func init() {
	output.w = os.Stderr
}

// SetVerbosity sets the global verbosity level consulted by V. It returns
// the previous value.
func SetVerbosity(level int) int {
	return int(atomic.SwapInt32(&verbosity, int32(level)))
}

// V returns whether the global verbosity level is at least the requested
// level. Use as a gate for expensive log statements:
//
//	if log.V(2) {
//		log.Infof(ctx, "...")
//	}
func V(level int32) bool {
	return atomic.LoadInt32(&verbosity) >= level
}

// SetOutput redirects log output to w. It returns the previous writer.
// Intended for tests.
func SetOutput(w io.Writer) io.Writer {
	output.Lock()
	defer output.Unlock()
	prev := output.w
	output.w = w
	return prev
}

func logfDepth(ctx context.Context, sev Severity, format string, args ...interface{}) {
	var buf redact.StringBuilder
	buf.Printf(format, args...)
	msg := buf.RedactableString().StripMarkers()

	tags := ""
	if b := logtags.FromContext(ctx); b != nil {
		tags = " [" + b.String() + "]"
	}

	line := fmt.Sprintf("%c%s%s %s\n",
		severityChar[sev], time.Now().Format("060102 15:04:05.000000"), tags, msg)

	output.Lock()
	fmt.Fprint(output.w, line)
	output.Unlock()

	if sev == SeverityFatal {
		os.Exit(255)
	}
}

// Infof logs to the INFO channel.
func Infof(ctx context.Context, format string, args ...interface{}) {
	logfDepth(ctx, SeverityInfo, format, args...)
}

// Warningf logs to the WARNING channel.
func Warningf(ctx context.Context, format string, args ...interface{}) {
	logfDepth(ctx, SeverityWarning, format, args...)
}

// Errorf logs to the ERROR channel.
func Errorf(ctx context.Context, format string, args ...interface{}) {
	logfDepth(ctx, SeverityError, format, args...)
}

// Fatalf logs to the ERROR channel and terminates the process.
func Fatalf(ctx context.Context, format string, args ...interface{}) {
	logfDepth(ctx, SeverityFatal, format, args...)
}
