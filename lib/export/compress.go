// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package export

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionTag identifies the per-entry compression algorithm.
// Stored in the archive index (1 byte); the values are format
// constants.
type CompressionTag uint8

const (
	// CompressionNone stores the entry as-is. Chosen when probing
	// shows the payload does not compress (media blobs, packfiles).
	CompressionNone CompressionTag = 0

	// CompressionLZ4 is block LZ4: modest ratios, very cheap decode.
	// Chosen for payloads that compress a little.
	CompressionLZ4 CompressionTag = 1

	// CompressionZstd is zstd at its default level: the pick for
	// text-like payloads (source files, serialized metadata).
	CompressionZstd CompressionTag = 2
)

// String returns the tag's name for index listings.
func (tag CompressionTag) String() string {
	switch tag {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(tag))
	}
}

// The zstd encoder and decoder are stateless under EncodeAll/
// DecodeAll and safe for concurrent use, so one of each serves the
// whole package.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("export: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("export: zstd decoder initialization failed: " + err.Error())
	}
}

var errIncompressible = errors.New("export: payload is incompressible")

// compress probes the payload and returns the smallest useful
// encoding: zstd when the ratio is clearly worth it, LZ4 when the
// payload compresses a little, the input itself otherwise.
func compress(payload []byte) ([]byte, CompressionTag) {
	if len(payload) == 0 {
		return payload, CompressionNone
	}

	compressed := zstdEncoder.EncodeAll(payload, nil)
	ratio := float64(len(payload)) / float64(len(compressed))
	switch {
	case ratio >= 1.5:
		return compressed, CompressionZstd
	case ratio >= 1.1:
		if block, err := compressLZ4(payload); err == nil {
			return block, CompressionLZ4
		}
		return compressed, CompressionZstd
	default:
		return payload, CompressionNone
	}
}

// decompress reverses compress. The size must match the recorded
// plaintext size exactly.
func decompress(data []byte, tag CompressionTag, size int) ([]byte, error) {
	switch tag {
	case CompressionNone:
		if len(data) != size {
			return nil, fmt.Errorf("export: stored entry is %d bytes, index says %d", len(data), size)
		}
		return data, nil

	case CompressionLZ4:
		payload := make([]byte, size)
		read, err := lz4.UncompressBlock(data, payload)
		if err != nil {
			return nil, fmt.Errorf("export: lz4 decompress: %w", err)
		}
		if read != size {
			return nil, fmt.Errorf("export: lz4 produced %d bytes, index says %d", read, size)
		}
		return payload, nil

	case CompressionZstd:
		payload, err := zstdDecoder.DecodeAll(data, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("export: zstd decompress: %w", err)
		}
		if len(payload) != size {
			return nil, fmt.Errorf("export: zstd produced %d bytes, index says %d", len(payload), size)
		}
		return payload, nil

	default:
		return nil, fmt.Errorf("export: unknown compression tag %d", tag)
	}
}

func compressLZ4(payload []byte) ([]byte, error) {
	destination := make([]byte, lz4.CompressBlockBound(len(payload)))
	written, err := lz4.CompressBlock(payload, destination, nil)
	if err != nil {
		return nil, fmt.Errorf("export: lz4 compress: %w", err)
	}
	if written == 0 || written >= len(payload) {
		return nil, errIncompressible
	}
	return destination[:written], nil
}
