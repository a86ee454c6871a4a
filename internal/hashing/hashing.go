// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package hashing provides the non-cryptographic hash functions used by
// cache-key derivation. The functions are deterministic and stable within a
// deployed binary; they carry no cross-release stability guarantee (cache
// contents do not survive a restart).
package hashing

import "github.com/zeebo/xxh3"

// Hash64 returns a 64-bit XXH3 hash of b, mixed with seed. Changing any bit
// of either input changes roughly half of the output bits.
func Hash64(b []byte, seed uint64) uint64 {
	return xxh3.HashSeed(b, seed)
}

// Hash2x64 returns 128 bits of XXH3-derived state as an (upper, lower) pair.
func Hash2x64(b []byte) (upper, lower uint64) {
	h := xxh3.Hash128(b)
	return h.Hi, h.Lo
}
