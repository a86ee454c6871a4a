// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package cachekey mints the 128-bit identifiers that name block-cache
// entries. Keys derived from sstables are unique per physical byte range
// with overwhelming probability, across processes, hosts and database
// clones; keys for ephemeral use are unique within one cache instance or
// one process lifetime and cannot collide with sstable-derived keys.
package cachekey

import (
	"fmt"
	"sync/atomic"

	"github.com/cockroachdb/blockcache/internal/invariants"
	"github.com/cockroachdb/redact"
)

// CacheKey is a 128-bit block-cache key held as two 64-bit words. Equality
// and hashing are structural over both words.
//
// Value space plan:
//
//	sessionEtc64 | offsetEtc64   | Only generated by
//	-------------+---------------+------------------------------------
//	           0 |             0 | reserved for the zero "empty" key
//	           0 |  > 0, < 1<<63 | UniqueForCacheLifetime
//	           0 |      >= 1<<63 | UniqueForProcessLifetime
//	         > 0 |           any | OffsetableCacheKey.WithOffset
type CacheKey struct {
	sessionEtc64 uint64
	offsetEtc64  uint64
}

// IsEmpty reports whether k is the reserved zero key. No mint path produces
// it.
func (k CacheKey) IsEmpty() bool {
	return k == CacheKey{}
}

// SessionEtc64 returns the first key word. It is shared by all keys derived
// from the same sstable (in the common case), which makes it usable as a
// prefix for session-scoped cache management.
func (k CacheKey) SessionEtc64() uint64 {
	return k.sessionEtc64
}

// OffsetEtc64 returns the second key word.
func (k CacheKey) OffsetEtc64() uint64 {
	return k.offsetEtc64
}

// String implements fmt.Stringer.
func (k CacheKey) String() string {
	return fmt.Sprintf("%016x%016x", k.sessionEtc64, k.offsetEtc64)
}

// SafeFormat implements redact.SafeFormatter. Key words are derived values
// and safe to log.
func (k CacheKey) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("%016x%016x", redact.SafeUint(k.sessionEtc64), redact.SafeUint(k.offsetEtc64))
}

// IDSource hands out ids that are unique within one cache instance. It is
// implemented by cache.Cache.
type IDSource interface {
	// NewID returns a fresh id. Ids are strictly increasing starting at 0;
	// the top bit is never set under realistic use.
	NewID() uint64
}

// UniqueForCacheLifetime mints a key that is unique within the lifetime of
// the given cache instance and cannot collide with any sstable-derived or
// process-lifetime key.
func UniqueForCacheLifetime(src IDSource) CacheKey {
	// +1 so that all zeros stays reserved for the empty key.
	id := src.NewID() + 1
	if invariants.Enabled && id>>63 != 0 {
		panic("blockcache: cache id space exhausted")
	}
	return CacheKey{sessionEtc64: 0, offsetEtc64: id}
}

// processKeyCounter counts the keys minted by UniqueForProcessLifetime. The
// zero value is usable, so no initialization order concerns; the minted ids
// count down from MaxUint64.
var processKeyCounter atomic.Uint64

// UniqueForProcessLifetime mints a key that is unique within the lifetime of
// the process. Safe for concurrent use; the counter read is relaxed in the
// sense that it orders nothing besides itself.
func UniqueForProcessLifetime() CacheKey {
	// Counting down from MaxUint64 keeps these ids disjoint from the
	// counting-up UniqueForCacheLifetime range.
	id := ^(processKeyCounter.Add(1) - 1)
	if invariants.Enabled && id>>63 != 1 {
		panic("blockcache: process id space exhausted")
	}
	return CacheKey{sessionEtc64: 0, offsetEtc64: id}
}
