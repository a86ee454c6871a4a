// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package rate provides a rate limiter.
package rate

import (
	"sync"
	"time"

	"github.com/cockroachdb/tokenbucket"
)

// A Limiter controls how frequently events are allowed to happen. It
// implements a token bucket of size b, initially full and refilled at rate r
// tokens per second. Limiter is thread-safe.
type Limiter struct {
	mu struct {
		sync.Mutex
		tb tokenbucket.TokenBucket
	}
}

// NewLimiter returns a new Limiter that allows events up to rate r and
// permits bursts of at most b tokens.
func NewLimiter(r float64, b float64) *Limiter {
	l := &Limiter{}
	l.mu.tb.Init(tokenbucket.TokensPerSecond(r), tokenbucket.Tokens(b))
	return l
}

// Wait sleeps until enough tokens are available. If n is more than the
// burst, the token bucket will go into debt, delaying future operations.
func (l *Limiter) Wait(n float64) {
	for {
		l.mu.Lock()
		ok, d := l.mu.tb.TryToFulfill(tokenbucket.Tokens(n))
		l.mu.Unlock()
		if ok {
			return
		}
		time.Sleep(d)
	}
}
