// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package cache

import (
	"github.com/cockroachdb/blockcache/cachekey"
	"github.com/cockroachdb/swiss"
)

// keyHash hashes a CacheKey for the swiss table. The key words are already
// well mixed by derivation, so a Fibonacci multiply of each word suffices.
func keyHash(k *cachekey.CacheKey, seed uintptr) uintptr {
	const m = 11400714819323198485
	h := uint64(seed)
	h ^= k.SessionEtc64() * m
	h ^= k.OffsetEtc64() * m
	return uintptr(h)
}

var blockMapOptions = []swiss.Option[cachekey.CacheKey, *entry]{
	swiss.WithHash[cachekey.CacheKey, *entry](keyHash),
	swiss.WithMaxBucketCapacity[cachekey.CacheKey, *entry](1 << 16),
}

// blockMap maps cache keys to their entries within one shard.
type blockMap struct {
	swiss.Map[cachekey.CacheKey, *entry]
}

func (m *blockMap) Init(initialCapacity int) {
	m.Map.Init(initialCapacity, blockMapOptions...)
}
