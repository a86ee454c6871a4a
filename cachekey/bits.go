// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package cachekey

import "math/bits"

// floorLog2 returns the 0-based position of the most significant set bit of
// v. v must be greater than zero.
func floorLog2(v uint64) int {
	return bits.Len64(v) - 1
}

// reverseBits moves bit i of v to bit 63-i.
func reverseBits(v uint64) uint64 {
	return bits.Reverse64(v)
}
