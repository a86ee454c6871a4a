// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package cachekey

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type testIDSource struct {
	next uint64
}

func (s *testIDSource) NewID() uint64 {
	id := s.next
	s.next++
	return id
}

func TestUniqueForCacheLifetime(t *testing.T) {
	src := &testIDSource{}
	seen := make(map[CacheKey]struct{})
	for i := 0; i < 1000; i++ {
		k := UniqueForCacheLifetime(src)
		require.False(t, k.IsEmpty())
		require.Zero(t, k.SessionEtc64())
		require.GreaterOrEqual(t, k.OffsetEtc64(), uint64(1))
		require.Zero(t, k.OffsetEtc64()>>63, "top bit must be clear")
		_, dup := seen[k]
		require.False(t, dup)
		seen[k] = struct{}{}
	}
}

func TestUniqueForProcessLifetime(t *testing.T) {
	seen := make(map[CacheKey]struct{})
	for i := 0; i < 1000; i++ {
		k := UniqueForProcessLifetime()
		require.False(t, k.IsEmpty())
		require.Zero(t, k.SessionEtc64())
		require.Equal(t, uint64(1), k.OffsetEtc64()>>63, "top bit must be set")
		_, dup := seen[k]
		require.False(t, dup)
		seen[k] = struct{}{}
	}
}

func TestUniqueForProcessLifetimeConcurrent(t *testing.T) {
	const workers = 8
	const perWorker = 1000

	results := make([][]CacheKey, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			keys := make([]CacheKey, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				keys = append(keys, UniqueForProcessLifetime())
			}
			results[w] = keys
		}(w)
	}
	wg.Wait()

	seen := make(map[CacheKey]struct{})
	for _, keys := range results {
		for _, k := range keys {
			require.Equal(t, uint64(1), k.OffsetEtc64()>>63)
			_, dup := seen[k]
			require.False(t, dup)
			seen[k] = struct{}{}
		}
	}
}

func TestEmptyKey(t *testing.T) {
	var k CacheKey
	require.True(t, k.IsEmpty())
	require.Equal(t, "00000000000000000000000000000000", k.String())
}

func TestKeyString(t *testing.T) {
	k := CacheKey{sessionEtc64: 0xaa, offsetEtc64: 0xc480000000001000}
	require.Equal(t, "00000000000000aac480000000001000", k.String())
}
