// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package cache

import (
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/blockcache/cachekey"
)

// shard is one slice of the cache. Each shard runs its own LRU list over a
// swiss-table block map, with a per-session-prefix ring to support prefix
// eviction without scanning.
type shard struct {
	hits   atomic.Int64
	misses atomic.Int64

	mu struct {
		sync.RWMutex
		blocks blockMap
		// sessions maps a session prefix to an arbitrary entry of that
		// session's ring, or is missing the key if none are resident.
		sessions map[uint64]*entry
		// lru is the most-recently-used entry; lru.prev is the eviction
		// candidate. nil when the shard is empty.
		lru     *entry
		size    int64
		maxSize int64
		count   int64
	}

	// secondary, if non-nil, receives blocks evicted from this shard.
	secondary *SecondaryCache
}

func (s *shard) init(maxSize int64, secondary *SecondaryCache) {
	s.mu.blocks.Init(16)
	s.mu.sessions = make(map[uint64]*entry)
	s.mu.maxSize = maxSize
	s.secondary = secondary
}

// get returns the cached block for key, or nil. A hit refreshes the entry's
// LRU position.
func (s *shard) get(key cachekey.CacheKey) []byte {
	s.mu.Lock()
	e, ok := s.mu.blocks.Get(key)
	if !ok {
		s.mu.Unlock()
		s.misses.Add(1)
		return nil
	}
	s.moveToFrontLocked(e)
	buf := e.buf
	s.mu.Unlock()
	s.hits.Add(1)
	return buf
}

// peek returns the cached block for key without refreshing its LRU position
// and without touching the hit/miss counters.
func (s *shard) peek(key cachekey.CacheKey) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.mu.blocks.Get(key)
	if !ok {
		return nil
	}
	return e.buf
}

// set inserts or overwrites the block for key, evicting from the LRU tail as
// needed to respect the shard budget.
func (s *shard) set(key cachekey.CacheKey, buf []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.mu.blocks.Get(key); ok {
		s.mu.size += int64(len(buf)) - int64(len(e.buf))
		e.buf = buf
		e.size = entrySize(buf)
		s.moveToFrontLocked(e)
		s.evictOverBudgetLocked()
		return
	}

	e := (&entry{key: key, buf: buf, size: entrySize(buf)}).init()
	s.mu.blocks.Put(key, e)
	s.mu.size += e.size
	s.mu.count++
	if s.mu.lru != nil {
		s.mu.lru.link(e)
	}
	s.mu.lru = e

	prefix := key.SessionEtc64()
	if head, ok := s.mu.sessions[prefix]; ok {
		head.linkSession(e)
	} else {
		s.mu.sessions[prefix] = e
	}

	s.evictOverBudgetLocked()
}

// delete removes the block for key, if resident.
func (s *shard) delete(key cachekey.CacheKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.mu.blocks.Get(key)
	if !ok {
		return
	}
	s.removeLocked(e, false /* toSecondary */)
}

// evictSession removes every resident block whose key carries the given
// session prefix.
func (s *shard) evictSession(prefix uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		e, ok := s.mu.sessions[prefix]
		if !ok {
			return
		}
		s.removeLocked(e, false /* toSecondary */)
	}
}

func (s *shard) moveToFrontLocked(e *entry) {
	if s.mu.lru == e {
		return
	}
	e.unlink()
	s.mu.lru.link(e)
	s.mu.lru = e
}

func (s *shard) evictOverBudgetLocked() {
	for s.mu.size > s.mu.maxSize && s.mu.count > 0 {
		s.removeLocked(s.mu.lru.lruLink.prev, true /* toSecondary */)
	}
}

// removeLocked unlinks e from all structures. If toSecondary is set and a
// secondary tier is configured, the block is folded into it.
func (s *shard) removeLocked(e *entry, toSecondary bool) {
	if toSecondary && s.secondary != nil {
		s.secondary.Set(e.key, e.buf)
	}

	next := e.unlink()
	if s.mu.lru == e {
		s.mu.lru = next
		if next == e {
			s.mu.lru = nil
		}
	}

	prefix := e.key.SessionEtc64()
	sessNext := e.unlinkSession()
	if s.mu.sessions[prefix] == e {
		if sessNext == e {
			delete(s.mu.sessions, prefix)
		} else {
			s.mu.sessions[prefix] = sessNext
		}
	}

	s.mu.blocks.Delete(e.key)
	s.mu.size -= e.size
	s.mu.count--
	e.buf = nil
}

func (s *shard) metrics() Metrics {
	s.mu.RLock()
	m := Metrics{
		Size:  s.mu.size,
		Count: s.mu.count,
	}
	s.mu.RUnlock()
	m.Hits = s.hits.Load()
	m.Misses = s.misses.Load()
	return m
}

// entrySize is the budget charge for a cached block: payload plus a fixed
// estimate of the per-entry bookkeeping.
func entrySize(buf []byte) int64 {
	const entryOverhead = 120
	return int64(len(buf)) + entryOverhead
}
