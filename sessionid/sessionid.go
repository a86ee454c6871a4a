// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package sessionid mints and decodes db session ids. A session id is
// generated each time a process opens a database; it encodes an (upper,
// lower) pair of 64-bit words where upper carries unstructured entropy drawn
// at process start and lower is a per-process monotonic counter.
//
// The textual form is 20 uppercase base-36 characters. Preserving lower
// exactly is slightly tricky: 36^12 is slightly more than 62 bits, so the
// low 62 bits of lower are written as 12 digits and the top two bits ride
// along with upper in the remaining 8 digits. 8 digits hold ~41.3 bits, so
// roughly 39 bits of upper survive the round trip.
package sessionid

import (
	"github.com/cockroachdb/errors"
)

// EncodedLen is the length of an encoded session id.
const EncodedLen = 20

const base36Digits = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Encode returns the textual form of the (upper, lower) session id pair.
func Encode(upper, lower uint64) string {
	var buf [EncodedLen]byte
	a := upper<<2 | lower>>62
	b := lower & (1<<62 - 1)
	putBase36(buf[:8], a)
	putBase36(buf[8:], b)
	return string(buf[:])
}

// Decode parses a textual session id into its (upper, lower) pair. Anything
// from 13 to 24 base-36 characters is accepted; the exact encoded length is
// not required. A non-nil error means the input is not a structured session
// id at all (callers typically fall back to hashing the raw bytes).
func Decode(s string) (upper, lower uint64, err error) {
	switch n := len(s); {
	case n == 0:
		return 0, 0, errors.New("missing session id")
	case n < 13:
		return 0, 0, errors.Errorf("session id %q too short", s)
	case n > 24:
		return 0, 0, errors.Errorf("session id %q too long", s)
	}
	a, ok := parseBase36(s[:len(s)-12])
	if !ok {
		return 0, 0, errors.Errorf("bad digit in session id %q", s)
	}
	b, ok := parseBase36(s[len(s)-12:])
	if !ok {
		return 0, 0, errors.Errorf("bad digit in session id %q", s)
	}
	upper = a >> 2
	lower = b&(1<<62-1) | a<<62
	return upper, lower, nil
}

// putBase36 writes v to buf as base-36 digits, most significant first,
// discarding anything that doesn't fit in len(buf) digits.
func putBase36(buf []byte, v uint64) {
	for i := len(buf) - 1; i >= 0; i-- {
		buf[i] = base36Digits[v%36]
		v /= 36
	}
}

// parseBase36 accepts upper and lower case digits.
func parseBase36(s string) (v uint64, ok bool) {
	for i := 0; i < len(s); i++ {
		c := s[i]
		var digit uint64
		switch {
		case c >= '0' && c <= '9':
			digit = uint64(c - '0')
		case c >= 'A' && c <= 'Z':
			digit = uint64(c-'A') + 10
		case c >= 'a' && c <= 'z':
			digit = uint64(c-'a') + 10
		default:
			return 0, false
		}
		v = v*36 + digit
	}
	return v, true
}
