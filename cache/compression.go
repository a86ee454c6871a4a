// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package cache

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/minio/minlz"
)

// Compression selects the codec used by the secondary tier.
type Compression uint8

const (
	NoCompression Compression = iota
	SnappyCompression
	MinLZCompression
	ZstdCompression
)

// String implements fmt.Stringer.
func (c Compression) String() string {
	switch c {
	case NoCompression:
		return "none"
	case SnappyCompression:
		return "snappy"
	case MinLZCompression:
		return "minlz"
	case ZstdCompression:
		return "zstd"
	default:
		return "unknown"
	}
}

// ParseCompression is the inverse of String.
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "none":
		return NoCompression, nil
	case "snappy":
		return SnappyCompression, nil
	case "minlz":
		return MinLZCompression, nil
	case "zstd":
		return ZstdCompression, nil
	default:
		return 0, errors.Errorf("unknown compression %q", s)
	}
}

var zstdEncoder = sync.OnceValue(func() *zstd.Encoder {
	e, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic(errors.Wrap(err, "blockcache: zstd encoder"))
	}
	return e
})

var zstdDecoder = sync.OnceValue(func() *zstd.Decoder {
	d, err := zstd.NewReader(nil)
	if err != nil {
		panic(errors.Wrap(err, "blockcache: zstd decoder"))
	}
	return d
})

// compress returns a fresh buffer holding src encoded with c.
func compress(c Compression, src []byte) []byte {
	switch c {
	case NoCompression:
		buf := make([]byte, len(src))
		copy(buf, src)
		return buf
	case SnappyCompression:
		return snappy.Encode(nil, src)
	case MinLZCompression:
		// MinLZ cannot encode blocks greater than 8MB; fall back to snappy
		// (MinLZ can decode snappy-compressed blocks, but we record the
		// codec per entry, so no trickery is needed here).
		if len(src) > minlz.MaxBlockSize {
			return snappy.Encode(nil, src)
		}
		buf, err := minlz.Encode(nil, src, minlz.LevelBalanced)
		if err != nil {
			panic(errors.Wrap(err, "blockcache: minlz compression"))
		}
		return buf
	case ZstdCompression:
		return zstdEncoder().EncodeAll(src, nil)
	default:
		panic(errors.AssertionFailedf("unknown compression %d", c))
	}
}

// compressionForEncode resolves the codec actually recorded for a block of
// the given length (the MinLZ size fallback).
func compressionForEncode(c Compression, srcLen int) Compression {
	if c == MinLZCompression && srcLen > minlz.MaxBlockSize {
		return SnappyCompression
	}
	return c
}

// decompressInto decodes src into buf, which must be exactly the decoded
// length.
func decompressInto(c Compression, buf, src []byte) error {
	switch c {
	case NoCompression:
		if copy(buf, src) != len(src) || len(buf) != len(src) {
			return errors.Errorf("uncompressed block of %d bytes into buffer of %d", len(src), len(buf))
		}
		return nil
	case SnappyCompression:
		result, err := snappy.Decode(buf, src)
		if err != nil {
			return err
		}
		if len(result) != len(buf) || (len(result) > 0 && &result[0] != &buf[0]) {
			return errors.Errorf("snappy decompressed into unexpected buffer")
		}
		return nil
	case MinLZCompression:
		result, err := minlz.Decode(buf, src)
		if err != nil {
			return err
		}
		if len(result) != len(buf) || (len(result) > 0 && &result[0] != &buf[0]) {
			return errors.Errorf("minlz decompressed into unexpected buffer")
		}
		return nil
	case ZstdCompression:
		result, err := zstdDecoder().DecodeAll(src, buf[:0])
		if err != nil {
			return err
		}
		if len(result) != len(buf) {
			return errors.Errorf("zstd decompressed %d bytes, expected %d", len(result), len(buf))
		}
		return nil
	default:
		return errors.AssertionFailedf("unknown compression %d", c)
	}
}
