// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package cachekey

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"testing"

	"github.com/cockroachdb/blockcache/sessionid"
	"github.com/cockroachdb/datadriven"
	"github.com/stretchr/testify/require"
)

// TestDerive drives the derivation over literal inputs with the db hash
// pinned (default 0), so that both output words are computable by hand. The
// real db hash only xors uniformly into offsetEtc64 and cannot change the
// structure being checked here.
func TestDerive(t *testing.T) {
	datadriven.RunTest(t, "testdata/derive", func(t *testing.T, d *datadriven.TestData) string {
		switch d.Cmd {
		case "derive":
			sessionUpper := scanUint64(t, d, "session-upper")
			sessionLower := scanUint64(t, d, "session-lower")
			fileNum := scanUint64(t, d, "file-num")
			maxOffset := scanUint64(t, d, "max-offset")
			var dbHash uint64
			if d.HasArg("db-hash") {
				dbHash = scanUint64(t, d, "db-hash")
			}

			k := makeOffsetableCacheKey(sessionUpper, sessionLower, dbHash, fileNum, maxOffset)
			var buf strings.Builder
			fmt.Fprintf(&buf, "session-etc64: %016x\n", k.sessionEtc64)
			fmt.Fprintf(&buf, "offset-etc64:  %016x\n", k.offsetEtc64)
			if d.HasArg("offset") {
				offset := scanUint64(t, d, "offset")
				fmt.Fprintf(&buf, "with-offset:   %s\n", k.WithOffset(offset))
			}
			return buf.String()

		default:
			d.Fatalf(t, "unknown command: %s", d.Cmd)
			return ""
		}
	})
}

func scanUint64(t *testing.T, d *datadriven.TestData, name string) uint64 {
	t.Helper()
	var s string
	d.ScanArgs(t, name, &s)
	v, err := strconv.ParseUint(s, 0, 64)
	require.NoError(t, err)
	return v
}

// knownSessionID builds an id that decodes to exactly (upper, lower).
func knownSessionID(t *testing.T, upper, lower uint64) string {
	t.Helper()
	require.Less(t, upper, uint64(1)<<39)
	id := sessionid.Encode(upper, lower)
	u, l, err := sessionid.Decode(id)
	require.NoError(t, err)
	require.Equal(t, upper, u)
	require.Equal(t, lower, l)
	return id
}

func TestWithOffsetDistinct(t *testing.T) {
	id := knownSessionID(t, 0x12345678, 0xaa)
	const maxOffset = 1 << 20
	k := MakeOffsetableCacheKey("db-A", id, 0x123, maxOffset)

	rng := rand.New(rand.NewPCG(0, 98765))
	seen := make(map[CacheKey]struct{})
	offsets := []uint64{0, 1, 2, maxOffset - 1, maxOffset}
	for i := 0; i < 1000; i++ {
		offsets = append(offsets, rng.Uint64N(maxOffset+1))
	}
	for _, off := range offsets {
		key := k.WithOffset(off)
		require.False(t, key.IsEmpty())
		require.NotZero(t, key.SessionEtc64())
		seen[key] = struct{}{}
	}
	// Every distinct offset must map to a distinct key; the only duplicates
	// come from duplicated random offsets.
	uniqueOffsets := make(map[uint64]struct{})
	for _, off := range offsets {
		uniqueOffsets[off] = struct{}{}
	}
	require.Equal(t, len(uniqueOffsets), len(seen))
}

func TestSiblingFilesShareSessionWord(t *testing.T) {
	id := knownSessionID(t, 0x1f2e3d4c, 0x17)
	const maxOffset = 1<<40 - 1 // common case: 3 file-number bytes

	k1 := MakeOffsetableCacheKey("db-A", id, 0x000123, maxOffset)
	k2 := MakeOffsetableCacheKey("db-A", id, 0x000124, maxOffset)
	require.Equal(t, k1.SessionPrefix(), k2.SessionPrefix())

	for _, off := range []uint64{0, 1, 4096, maxOffset} {
		a, b := k1.WithOffset(off), k2.WithOffset(off)
		require.Equal(t, a.SessionEtc64(), b.SessionEtc64())
		require.NotEqual(t, a, b)
	}
}

func TestSessionsDistinguished(t *testing.T) {
	id1 := knownSessionID(t, 0x12345678, 1)
	id2 := knownSessionID(t, 0x12345678, 2)
	k1 := MakeOffsetableCacheKey("db-A", id1, 7, 1<<30)
	k2 := MakeOffsetableCacheKey("db-A", id2, 7, 1<<30)
	require.NotEqual(t, k1.WithOffset(0), k2.WithOffset(0))
	require.NotEqual(t, k1.SessionPrefix(), k2.SessionPrefix())
}

func TestDBIDsDistinguished(t *testing.T) {
	id := knownSessionID(t, 0x665544, 3)
	seen := make(map[CacheKey]struct{})
	for i := 0; i < 100; i++ {
		k := MakeOffsetableCacheKey(fmt.Sprintf("db-%d", i), id, 7, 1<<30)
		key := k.WithOffset(0)
		_, dup := seen[key]
		require.False(t, dup)
		seen[key] = struct{}{}
	}
}

func TestBaseEqualsWithOffsetZero(t *testing.T) {
	id := knownSessionID(t, 0xabcdef, 0x42)
	k := MakeOffsetableCacheKey("db-A", id, 9, 1<<25)
	require.Equal(t, k.Base(), k.WithOffset(0))
}

func TestDerivationDeterministic(t *testing.T) {
	id := knownSessionID(t, 0x777, 0x888)
	k1 := MakeOffsetableCacheKey("db-B", id, 0x5678, 1<<33)
	k2 := MakeOffsetableCacheKey("db-B", id, 0x5678, 1<<33)
	require.Equal(t, k1.Base(), k2.Base())
	require.Equal(t, k1.WithOffset(12345), k2.WithOffset(12345))
}

func TestMalformedSessionIDFallback(t *testing.T) {
	// Ids that fail structured decode fall back to hashing the raw bytes.
	// The result must still be a valid, deterministic, non-empty key.
	for _, id := range []string{"", "not base 36 at all!", "x", strings.Repeat("Q", 40)} {
		k1 := MakeOffsetableCacheKey("db-A", id, 1, 1<<20)
		k2 := MakeOffsetableCacheKey("db-A", id, 1, 1<<20)
		require.Equal(t, k1.Base(), k2.Base())
		require.False(t, k1.WithOffset(0).IsEmpty())
		require.NotZero(t, k1.SessionPrefix())
	}

	// Distinct malformed ids yield distinct keys.
	k1 := MakeOffsetableCacheKey("db-A", "malformed one!", 1, 1<<20)
	k2 := MakeOffsetableCacheKey("db-A", "malformed two!", 1, 1<<20)
	require.NotEqual(t, k1.WithOffset(0), k2.WithOffset(0))
}

func TestSentinelAvoidance(t *testing.T) {
	// A session lower word of zero with no file-number overflow would leave
	// sessionEtc64 zero after the modifier xor; the derivation must replace
	// it with sessionUpper|1 so the key stays out of the unique-mint ranges.
	k := makeOffsetableCacheKey(0x12345678, 0, 0, 0x123, 1<<32)
	require.Equal(t, uint64(0x12345679), k.sessionEtc64)

	// Same, reached through a modifier collision rather than a zero lower
	// word: fileNum 0xff000123 contributes reverseBits(0x3fc) to the
	// session word.
	k = makeOffsetableCacheKey(0x4242, 0x3fc0000000000000, 0, 0xff000123, 1<<32)
	require.Equal(t, uint64(0x4242|1), k.sessionEtc64)

	key := k.WithOffset(0)
	require.NotZero(t, key.SessionEtc64(), "must not collide with unique-mint ranges")
}

func TestOffsetFieldDisjointFromFileNumber(t *testing.T) {
	// With dbHash pinned to zero, the low bits of offsetEtc64 must be zero:
	// they are reserved for the offset xor.
	for _, tc := range []struct {
		maxOffset uint64
		bits      int // file-number bits packed into offsetEtc64
	}{
		{0, 24},              // promoted to 2^32; 3 file-number bytes
		{1<<32 - 1, 24},      // still 3 bytes
		{1 << 40, 16},        // 2 bytes
		{1 << 48, 8},         // 1 byte
		{1 << 60, 0},         // everything overflows to the session word
		{^uint64(0) >> 1, 0}, // 2^63-1
	} {
		k := makeOffsetableCacheKey(1, 2, 0, ^uint64(0), tc.maxOffset)
		if tc.bits == 0 {
			require.Zero(t, k.offsetEtc64)
			continue
		}
		require.Zero(t, k.offsetEtc64&(uint64(1)<<(64-tc.bits)-1),
			"low %d bits must be clear (max-offset %#x)", 64-tc.bits, tc.maxOffset)
	}
}

func BenchmarkMakeOffsetableCacheKey(b *testing.B) {
	id := sessionid.Encode(0x12345678, 0xaa)
	for i := 0; i < b.N; i++ {
		_ = MakeOffsetableCacheKey("benchdb", id, uint64(i), 1<<32)
	}
}

func BenchmarkWithOffset(b *testing.B) {
	id := sessionid.Encode(0x12345678, 0xaa)
	k := MakeOffsetableCacheKey("benchdb", id, 42, 1<<40)
	var sink CacheKey
	for i := 0; i < b.N; i++ {
		sink = k.WithOffset(uint64(i) & (1<<40 - 1))
	}
	_ = sink
}
