// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package cache

import (
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/blockcache/cachekey"
	"github.com/cockroachdb/errors"
)

// ErrCorruption marks errors caused by a stored block failing its checksum
// or failing to decompress. Test with errors.Is.
var ErrCorruption = errors.New("blockcache: corrupted secondary block")

// secondaryEntry is one compressed block. Entries form a FIFO ring: head is
// the newest, head.prev the oldest.
type secondaryEntry struct {
	key         cachekey.CacheKey
	compressed  []byte
	rawLen      int
	compression Compression
	checksum    uint64
	next, prev  *secondaryEntry
}

// SecondaryCache is an in-memory compressed tier behind the primary cache.
// Blocks evicted from the primary are folded in compressed; a primary miss
// that hits here pays a decompression instead of a read from the source.
// Every stored payload carries an xxhash checksum verified on the way out.
type SecondaryCache struct {
	compression Compression
	hits        atomic.Int64
	misses      atomic.Int64

	mu struct {
		sync.Mutex
		blocks  map[cachekey.CacheKey]*secondaryEntry
		fifo    *secondaryEntry
		size    int64
		maxSize int64
	}
}

// NewSecondaryCache creates a secondary tier with the given compressed-byte
// budget and codec.
func NewSecondaryCache(maxSize int64, compression Compression) *SecondaryCache {
	sc := &SecondaryCache{compression: compression}
	sc.mu.blocks = make(map[cachekey.CacheKey]*secondaryEntry)
	sc.mu.maxSize = maxSize
	return sc
}

// Set folds a block into the tier, compressing it and evicting the oldest
// entries as needed. Overwrites any existing entry for key.
func (sc *SecondaryCache) Set(key cachekey.CacheKey, block []byte) {
	compressed := compress(sc.compression, block)
	e := &secondaryEntry{
		key:         key,
		compressed:  compressed,
		rawLen:      len(block),
		compression: compressionForEncode(sc.compression, len(block)),
		checksum:    xxhash.Sum64(compressed),
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	if old, ok := sc.mu.blocks[key]; ok {
		sc.removeLocked(old)
	}
	sc.mu.blocks[key] = e
	if sc.mu.fifo == nil {
		e.next, e.prev = e, e
	} else {
		e.prev = sc.mu.fifo.prev
		e.prev.next = e
		e.next = sc.mu.fifo
		sc.mu.fifo.prev = e
	}
	sc.mu.fifo = e
	sc.mu.size += int64(len(compressed))

	for sc.mu.size > sc.mu.maxSize && len(sc.mu.blocks) > 1 {
		sc.removeLocked(sc.mu.fifo.prev)
	}
	if sc.mu.size > sc.mu.maxSize {
		// A single block over budget: drop it rather than keep an oversized
		// tier.
		sc.removeLocked(e)
	}
}

// GetAndEvict returns the decompressed block for key and removes it from
// the tier (the caller promotes it to the primary cache). A checksum or
// decode failure removes the entry and returns an error marked
// ErrCorruption.
func (sc *SecondaryCache) GetAndEvict(key cachekey.CacheKey) ([]byte, error) {
	sc.mu.Lock()
	e, ok := sc.mu.blocks[key]
	if ok {
		sc.removeLocked(e)
	}
	sc.mu.Unlock()
	if !ok {
		sc.misses.Add(1)
		return nil, nil
	}

	if got := xxhash.Sum64(e.compressed); got != e.checksum {
		sc.misses.Add(1)
		return nil, errors.Mark(
			errors.Errorf("checksum mismatch for %s: %x != %x", e.key, got, e.checksum),
			ErrCorruption)
	}
	buf := make([]byte, e.rawLen)
	if err := decompressInto(e.compression, buf, e.compressed); err != nil {
		sc.misses.Add(1)
		return nil, errors.Mark(err, ErrCorruption)
	}
	sc.hits.Add(1)
	return buf, nil
}

func (sc *SecondaryCache) removeLocked(e *secondaryEntry) {
	if e.next == e {
		sc.mu.fifo = nil
	} else {
		e.prev.next = e.next
		e.next.prev = e.prev
		if sc.mu.fifo == e {
			sc.mu.fifo = e.next
		}
	}
	e.next, e.prev = nil, nil
	delete(sc.mu.blocks, e.key)
	sc.mu.size -= int64(len(e.compressed))
}

// Size returns the compressed bytes currently held.
func (sc *SecondaryCache) Size() int64 {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.mu.size
}

// Count returns the number of blocks currently held.
func (sc *SecondaryCache) Count() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return len(sc.mu.blocks)
}

// Metrics returns the hit/miss counters.
func (sc *SecondaryCache) Metrics() (hits, misses int64) {
	return sc.hits.Load(), sc.misses.Load()
}
