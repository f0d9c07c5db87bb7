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

// Package retry provides a retry helper with exponential backoff.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Options provides reusable configuration of Retry objects.
type Options struct {
	// InitialBackoff is the backoff after the first failed attempt.
	InitialBackoff time.Duration
	// MaxBackoff caps the backoff between attempts.
	MaxBackoff time.Duration
	// Multiplier is applied to the backoff after each failed attempt.
	Multiplier float64
	// RandomizationFactor randomizes each backoff by up to this fraction in
	// either direction. Set to -1 to disable randomization.
	RandomizationFactor float64
	// MaxRetries is the maximum number of retries after the first attempt;
	// 0 for infinite.
	MaxRetries int
	// Closer, if set, aborts the retry loop when closed.
	Closer <-chan struct{}
}

// Retry implements the public methods necessary to control an exponential-
// backoff retry loop. Use the convenience function Start to create a loop:
//
//	for r := retry.Start(opts); r.Next(); {
//		// ...
//	}
type Retry struct {
	opts           Options
	ctx            context.Context
	currentAttempt int
	isReset        bool
}

// Start returns a new Retry initialized to some default values. The Retry
// can then be used in an exponential-backoff retry loop.
func Start(opts Options) Retry {
	return StartWithCtx(context.Background(), opts)
}

// StartWithCtx returns a new Retry initialized to some default values. The
// retry loop additionally terminates when the context is canceled.
func StartWithCtx(ctx context.Context, opts Options) Retry {
	if opts.InitialBackoff == 0 {
		opts.InitialBackoff = 50 * time.Millisecond
	}
	if opts.MaxBackoff == 0 {
		opts.MaxBackoff = 2 * time.Second
	}
	if opts.RandomizationFactor == 0 {
		opts.RandomizationFactor = 0.15
	}
	if opts.Multiplier == 0 {
		opts.Multiplier = 2
	}

	r := Retry{opts: opts, ctx: ctx}
	r.Reset()
	return r
}

// Reset resets the Retry to its initial state, meaning that the next call to
// Next will return true immediately and subsequent calls will behave as if
// they had followed the very first attempt (i.e. their backoffs will be
// short).
func (r *Retry) Reset() {
	select {
	case <-r.opts.Closer:
		// When the closer has fired, don't even start the first attempt.
		return
	case <-r.ctx.Done():
		return
	default:
	}
	r.currentAttempt = 0
	r.isReset = true
}

// CurrentAttempt returns the index of the current attempt, starting at 0 for
// the first attempt.
func (r *Retry) CurrentAttempt() int {
	return r.currentAttempt
}

func (r Retry) retryIn() time.Duration {
	backoff := float64(r.opts.InitialBackoff) * math.Pow(r.opts.Multiplier, float64(r.currentAttempt))
	if maxBackoff := float64(r.opts.MaxBackoff); backoff > maxBackoff {
		backoff = maxBackoff
	}

	if r.opts.RandomizationFactor < 0 {
		return time.Duration(backoff)
	}
	var delta = r.opts.RandomizationFactor * backoff
	// Get a random value from the range [backoff - delta, backoff + delta].
	// The formula used below has a +1 because if the delta is 0 the formula
	// is rand.Int63n(1) which causes a panic.
	return time.Duration(rand.Int63n(int64(2*delta)+1) + int64(backoff-delta))
}

// Next returns whether the retry loop should continue, and blocks for the
// appropriate length of time before yielding back to the caller.
//
// Next is guaranteed to return true on its first call, immediately after
// Start or Reset.
func (r *Retry) Next() bool {
	if r.isReset {
		r.isReset = false
		return true
	}

	if r.opts.MaxRetries > 0 && r.currentAttempt >= r.opts.MaxRetries {
		return false
	}

	// Wait before retry.
	select {
	case <-time.After(r.retryIn()):
		r.currentAttempt++
		return true
	case <-r.opts.Closer:
		return false
	case <-r.ctx.Done():
		return false
	}
}
