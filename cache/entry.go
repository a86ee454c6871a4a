// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package cache

import "github.com/cockroachdb/blockcache/cachekey"

// entry holds one cached block. Entries are linked into two intrusive rings:
// lruLink orders the entries of a shard by recency, and sessionLink chains
// the entries sharing a session prefix so that EvictSession need not scan
// the whole shard.
type entry struct {
	key     cachekey.CacheKey
	buf     []byte
	size    int64
	lruLink struct {
		next *entry
		prev *entry
	}
	sessionLink struct {
		next *entry
		prev *entry
	}
}

func (e *entry) init() *entry {
	e.lruLink.next = e
	e.lruLink.prev = e
	e.sessionLink.next = e
	e.sessionLink.prev = e
	return e
}

// link inserts s before e in the LRU ring.
func (e *entry) link(s *entry) {
	s.lruLink.prev = e.lruLink.prev
	s.lruLink.prev.lruLink.next = s
	s.lruLink.next = e
	s.lruLink.next.lruLink.prev = s
}

// unlink removes e from its LRU ring and returns the entry that followed it.
func (e *entry) unlink() *entry {
	next := e.lruLink.next
	e.lruLink.prev.lruLink.next = e.lruLink.next
	e.lruLink.next.lruLink.prev = e.lruLink.prev
	e.lruLink.prev = e
	e.lruLink.next = e
	return next
}

// linkSession inserts s before e in the session ring.
func (e *entry) linkSession(s *entry) {
	s.sessionLink.prev = e.sessionLink.prev
	s.sessionLink.prev.sessionLink.next = s
	s.sessionLink.next = e
	s.sessionLink.next.sessionLink.prev = s
}

// unlinkSession removes e from its session ring and returns the entry that
// followed it.
func (e *entry) unlinkSession() *entry {
	next := e.sessionLink.next
	e.sessionLink.prev.sessionLink.next = e.sessionLink.next
	e.sessionLink.next.sessionLink.prev = e.sessionLink.prev
	e.sessionLink.prev = e
	e.sessionLink.next = e
	return next
}
