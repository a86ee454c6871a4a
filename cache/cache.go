// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package cache implements a sharded in-memory block cache keyed by
// cachekey.CacheKey. Blocks are sharded by a hash of the key words, with
// each shard running an independent LRU. Because all keys derived from one
// sstable share their session word, a whole session's blocks can be evicted
// by prefix without scanning (see Cache.EvictSession).
//
// The cache also hands out the instance-unique ids consumed by
// cachekey.UniqueForCacheLifetime.
package cache

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/cockroachdb/blockcache/cachekey"
	"github.com/cockroachdb/blockcache/internal/invariants"
)

// Cache is a sharded LRU block cache. It is created with a reference count
// of 1; each user adds a reference, and the creator usually releases theirs
// once the cache has been handed off:
//
//	c := cache.New(size)
//	defer c.Unref()
type Cache struct {
	refs    atomic.Int64
	idAlloc atomic.Uint64
	maxSize int64
	shards  []shard
}

var _ cachekey.IDSource = (*Cache)(nil)

// New creates a cache of the given total size in bytes, sharded across
// processors for concurrency.
func New(size int64) *Cache {
	// The probability that two processors contend on the same shard grows
	// superlinearly in the processor count, but more shards dilute the
	// per-shard LRU history. 4 shards per processor is the compromise,
	// constrained to 4 total when the division would produce tiny shards.
	m := 4 * runtime.GOMAXPROCS(0)
	const minimumShardSize = 4 << 20
	if m > 4 && size/int64(m) < minimumShardSize {
		m = 4
	}
	return NewWithShards(size, m)
}

// NewWithShards creates a cache of the given total size with the specified
// shard count.
func NewWithShards(size int64, shards int) *Cache {
	return newCache(size, shards, nil)
}

// NewWithSecondary creates a cache whose LRU evictions are folded into the
// given compressed secondary tier, and whose misses consult it.
func NewWithSecondary(size int64, shards int, secondary *SecondaryCache) *Cache {
	return newCache(size, shards, secondary)
}

func newCache(size int64, shards int, secondary *SecondaryCache) *Cache {
	c := &Cache{
		maxSize: size,
		shards:  make([]shard, shards),
	}
	c.refs.Store(1)
	for i := range c.shards {
		c.shards[i].init(size/int64(len(c.shards)), secondary)
	}
	invariants.SetFinalizer(c, func(c *Cache) {
		if v := c.refs.Load(); v > 0 {
			panic(fmt.Sprintf("blockcache: cache (%p) leaked with reference count: %d", c, v))
		}
	})
	return c
}

// Ref adds a reference to the cache. The cache only remains valid as long as
// a reference is held.
func (c *Cache) Ref() {
	if v := c.refs.Add(1); v <= 1 {
		panic(fmt.Sprintf("blockcache: inconsistent reference count: %d", v))
	}
}

// Unref releases a reference on the cache, freeing the shards when the last
// reference drops.
func (c *Cache) Unref() {
	v := c.refs.Add(-1)
	switch {
	case v < 0:
		panic(fmt.Sprintf("blockcache: inconsistent reference count: %d", v))
	case v == 0:
		c.shards = nil
	}
}

// NewID returns an id that is unique within this cache instance. Ids are
// strictly increasing starting at 0. Implements cachekey.IDSource.
func (c *Cache) NewID() uint64 {
	return c.idAlloc.Add(1) - 1
}

// Get returns the cached block for key, or nil. The returned slice is shared
// with the cache and must not be modified. A miss consults the secondary
// tier, if configured, promoting its hit back into the primary.
func (c *Cache) Get(key cachekey.CacheKey) []byte {
	s := c.getShard(key)
	if buf := s.get(key); buf != nil {
		return buf
	}
	if s.secondary == nil {
		return nil
	}
	buf, err := s.secondary.GetAndEvict(key)
	if err != nil || buf == nil {
		// A secondary corruption is not a cache error: the entry was dropped
		// and the caller re-reads from the source.
		return nil
	}
	s.set(key, buf)
	return buf
}

// Peek returns the cached block for key without refreshing its recency and
// without recording a hit or miss. It does not consult the secondary tier.
func (c *Cache) Peek(key cachekey.CacheKey) []byte {
	return c.getShard(key).peek(key)
}

// Set stores the block for key, overwriting any existing value. The cache
// takes ownership of buf.
func (c *Cache) Set(key cachekey.CacheKey, buf []byte) {
	c.getShard(key).set(key, buf)
}

// Delete removes the cached block for key, if any.
func (c *Cache) Delete(key cachekey.CacheKey) {
	c.getShard(key).delete(key)
}

// EvictSession removes every resident block whose key carries the given
// session prefix (see cachekey.OffsetableCacheKey.SessionPrefix). In the
// common encoding case this covers all blocks of all sstables minted under
// one db session.
func (c *Cache) EvictSession(prefix uint64) {
	for i := range c.shards {
		c.shards[i].evictSession(prefix)
	}
}

// MaxSize returns the configured cache size.
func (c *Cache) MaxSize() int64 {
	return c.maxSize
}

// Size returns the current space used by the cache.
func (c *Cache) Size() int64 {
	var size int64
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.RLock()
		size += s.mu.size
		s.mu.RUnlock()
	}
	return size
}

func (c *Cache) getShard(key cachekey.CacheKey) *shard {
	h := keyHash(&key, 0)
	return &c.shards[uint64(h)%uint64(len(c.shards))]
}
