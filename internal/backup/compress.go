// Tillvault - Retail Inventory & Sales Management
// Copyright 2026 The Tillvault Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tillvault/tillvault

package backup

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// Compression algorithms supported for archive payloads. Compression always
// runs before encryption; compressing ciphertext is ineffective.
const (
	AlgorithmGzip = "gzip"
	AlgorithmZstd = "zstd"
)

// Compressor compresses and decompresses snapshot bytes.
type Compressor interface {
	// Algorithm returns the algorithm name recorded in archive metadata.
	Algorithm() string

	// Compress returns the compressed form of data.
	Compress(data []byte) ([]byte, error)

	// Decompress reverses Compress. A malformed stream returns
	// ErrCorruptStream, never a panic; archives from a future format can
	// decrypt cleanly and still fail here.
	Decompress(data []byte) ([]byte, error)
}

// NewCompressor returns a Compressor for the named algorithm. Level applies
// to gzip only (1-9).
func NewCompressor(algorithm string, level int) (Compressor, error) {
	switch algorithm {
	case AlgorithmGzip:
		if level < gzip.BestSpeed || level > gzip.BestCompression {
			return nil, fmt.Errorf("gzip level must be between %d and %d, got %d",
				gzip.BestSpeed, gzip.BestCompression, level)
		}
		return &gzipCompressor{level: level}, nil
	case AlgorithmZstd:
		return &zstdCompressor{}, nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", algorithm)
	}
}

type gzipCompressor struct {
	level int
}

func (g *gzipCompressor) Algorithm() string { return AlgorithmGzip }

func (g *gzipCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	zw, err := gzip.NewWriterLevel(&buf, g.level)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("gzip write failed: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("gzip close failed: %w", err)
	}

	return buf.Bytes(), nil
}

func (g *gzipCompressor) Decompress(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptStream, err)
	}
	defer zr.Close() //nolint:errcheck // Read errors are surfaced below

	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptStream, err)
	}
	return out, nil
}

type zstdCompressor struct{}

func (z *zstdCompressor) Algorithm() string { return AlgorithmZstd }

func (z *zstdCompressor) Compress(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	out := enc.EncodeAll(data, nil)
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("zstd close failed: %w", err)
	}
	return out, nil
}

func (z *zstdCompressor) Decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	defer dec.Close()

	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptStream, err)
	}
	return out, nil
}
