// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package cachekey

import (
	"github.com/cockroachdb/blockcache/internal/hashing"
	"github.com/cockroachdb/blockcache/internal/invariants"
	"github.com/cockroachdb/blockcache/sessionid"
)

// OffsetableCacheKey is the base from which per-block cache keys for one
// sstable are derived. Construct it once per sstable open, then call
// WithOffset for each block access. It is an immutable value, freely
// copyable and shareable across goroutines.
//
// Value plan, assuming session ids come from sessionid.Generator (an upper
// entropy word plus a lower counter word). Outputs are bitwise-xors of the
// constituent pieces, low bits on the left:
//
//	|------------------------- sessionEtc64 --------------------------|
//	| ++++++++++++++++++ session id lower word ++++++++++++++++++++++ |
//	|-----------------------------------------------------------------|
//	|                                               | ... file number |
//	|                                               | overflow & meta |
//	|-----------------------------------------------------------------|
//
//	|------------------------- offsetEtc64 ---------------------------|
//	| hash of: db id, seeded with session id upper word +++++++++++++ |
//	|-----------------------------------------------------------------|
//	| block offset .................. |                               |
//	|-----------------------------------------------------------------|
//	|                                              | file number, 0-3 |
//	|                                              | lower bytes      |
//	|-----------------------------------------------------------------|
//
// Based on maxOffset, a maximal count of 0-3 whole bytes of the file number
// is folded into offsetEtc64. The count is encoded in two bits of metadata
// going into sessionEtc64, with the common case of 3 bytes encoded as 0 so
// that sessionEtc64 is unmodified by file-number concerns in the common
// case. The file-number bytes are bit-reversed into the high bits of
// offsetEtc64 so the low bits stay zero, reserved for the offset xor in
// WithOffset.
//
// Nothing prevents the overflow-and-metadata field from overlapping the
// session counter in sessionEtc64, but reaching such a case requires an
// intractable combination of large offsets, large file numbers, and a large
// number of session ids generated in a single process. Keys minted from
// files under 1TB are unique within a process until sessions * max file
// number reaches 2^86.
type OffsetableCacheKey struct {
	sessionEtc64 uint64
	offsetEtc64  uint64

	// maxOffset is retained in invariant builds only, to check WithOffset
	// arguments.
	maxOffset invariants.Value[uint64]
}

// MakeOffsetableCacheKey derives the base key for the sstable identified by
// (dbID, dbSessionID, fileNum). maxOffset is an inclusive upper bound on the
// offsets that will be passed to WithOffset for this file; it determines how
// the bits of offsetEtc64 are split between offset and file number.
//
// All inputs are accepted. A dbSessionID that does not decode is hashed
// instead; a malformed id means the upstream caller already lost its
// uniqueness guarantee, and a hashed id is strictly better than refusing to
// operate.
func MakeOffsetableCacheKey(
	dbID, dbSessionID string, fileNum uint64, maxOffset uint64,
) OffsetableCacheKey {
	sessionUpper, sessionLower, err := sessionid.Decode(dbSessionID)
	if err != nil {
		sessionUpper, sessionLower = hashing.Hash2x64([]byte(dbSessionID))
	}

	// Hash the session upper word (~39 bits of entropy) and the db id (~122
	// bits of entropy) for cross-process, cross-host uniqueness entropy.
	dbHash := hashing.Hash64([]byte(dbID), sessionUpper)
	return makeOffsetableCacheKey(sessionUpper, sessionLower, dbHash, fileNum, maxOffset)
}

func makeOffsetableCacheKey(
	sessionUpper, sessionLower, dbHash, fileNum, maxOffset uint64,
) OffsetableCacheKey {
	var k OffsetableCacheKey
	k.maxOffset.Store(maxOffset)

	// Exactly preserve (in common cases; see the modifiers below) the session
	// lower word, so that session ids generated during one process lifetime
	// stay exactly distinguished. It forms the common prefix shared by all
	// blocks of the sstable.
	k.sessionEtc64 = sessionLower
	k.offsetEtc64 = dbHash

	// Figure out how many whole bytes of fileNum can be packed into
	// offsetEtc64 alongside any offset in [0, maxOffset]. The encoding
	// supports at most 3 bytes; or-ing in 1<<32 pins floorLog2 to at least 32
	// (and in particular keeps it defined for maxOffset == 0).
	fileNumBytes := (63 - floorLog2(maxOffset|1<<32)) / 8
	fileNumBits := fileNumBytes * 8
	if invariants.Enabled {
		if fileNumBytes < 0 || fileNumBytes > 3 {
			panic("blockcache: file-number byte count out of range")
		}
		// A larger byte count must not have fit (the shift would chop bytes
		// off maxOffset).
		if fileNumBytes != 3 && maxOffset<<(fileNumBits+8)>>(fileNumBits+8) == maxOffset {
			panic("blockcache: file-number byte count not maximal")
		}
	}

	// Pack the low bytes of fileNum into the high bits of offsetEtc64,
	// leaving the low bits zero for WithOffset.
	offsetEtcModifier := reverseBits(fileNum & (1<<fileNumBits - 1))
	if invariants.Enabled && offsetEtcModifier<<fileNumBits != 0 {
		panic("blockcache: file-number bits overlap the offset field")
	}

	// The overflow and 3-fileNumBytes (likely both zero) go into the session
	// word, packed into the high bits to minimize interference with the
	// session counter in the low bits.
	sessionEtcModifier := reverseBits(fileNum>>fileNumBits<<2 | uint64(3-fileNumBytes))
	if invariants.Enabled && sessionEtcModifier != 0 &&
		fileNum <= 0xffffff && maxOffset <= 0xffffffffff {
		panic("blockcache: session word modified outside the extreme cases")
	}

	k.sessionEtc64 ^= sessionEtcModifier
	k.offsetEtc64 ^= offsetEtcModifier

	// The generator guarantees a non-zero session lower word, but that is not
	// sufficient to guarantee a non-zero sessionEtc64 after the xor above.
	// Zero is reserved for the unique-mint key ranges.
	if k.sessionEtc64 == 0 {
		k.sessionEtc64 = sessionUpper | 1
	}
	return k
}

// Base returns the cache key for offset zero. It equals WithOffset(0).
func (k OffsetableCacheKey) Base() CacheKey {
	return CacheKey{sessionEtc64: k.sessionEtc64, offsetEtc64: k.offsetEtc64}
}

// SessionPrefix returns the word shared by every key this base derives (in
// the common case also by sibling sstables of the same session). Cache
// implementations use it for prefix-scoped eviction.
func (k OffsetableCacheKey) SessionPrefix() uint64 {
	return k.sessionEtc64
}

// WithOffset derives the cache key for the block at the given byte offset.
// offset must be in [0, maxOffset]; the low bits of offsetEtc64 were kept
// clear for it, so the xor cannot collide with the file-number field.
func (k OffsetableCacheKey) WithOffset(offset uint64) CacheKey {
	if invariants.Enabled {
		if max := k.maxOffset.Get(); offset > max {
			panic("blockcache: offset exceeds the maxOffset the key was built with")
		}
	}
	return CacheKey{
		sessionEtc64: k.sessionEtc64,
		offsetEtc64:  k.offsetEtc64 ^ offset,
	}
}
