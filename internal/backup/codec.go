// Tillvault - Retail Inventory & Sales Management
// Copyright 2026 The Tillvault Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tillvault/tillvault

// Archive container format.
//
// Byte layout of one archive file:
//
//	[4 bytes, big-endian u32]  metadata_length = N
//	[N bytes, UTF-8 JSON]      ArchiveMetadata
//	[remaining bytes]          payload = encrypt(compress(snapshot))
//
// The metadata block comes first so provenance, timestamp, and checksum are
// readable without the passphrase; listing archives never decrypts anything.

package backup

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-json"
)

// maxMetadataLength bounds the metadata block. Anything larger is a corrupt
// or hostile file, not real metadata.
const maxMetadataLength = 1 << 20

// EncodeArchive writes the container to w: length-prefixed JSON metadata
// followed by the payload.
func EncodeArchive(w io.Writer, md *ArchiveMetadata, payload []byte) error {
	metaJSON, err := json.Marshal(md)
	if err != nil {
		return fmt.Errorf("failed to marshal archive metadata: %w", err)
	}

	if err := binary.Write(w, binary.BigEndian, uint32(len(metaJSON))); err != nil {
		return fmt.Errorf("failed to write metadata length: %w", err)
	}
	if _, err := w.Write(metaJSON); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("failed to write payload: %w", err)
	}

	return nil
}

// DecodeMetadata reads and validates the metadata block, leaving r
// positioned at the start of the payload. This is all that listing needs.
func DecodeMetadata(r io.Reader) (*ArchiveMetadata, error) {
	var metaLen uint32
	if err := binary.Read(r, binary.BigEndian, &metaLen); err != nil {
		return nil, fmt.Errorf("%w: missing metadata length", ErrTruncatedArchive)
	}
	if metaLen == 0 || metaLen > maxMetadataLength {
		return nil, fmt.Errorf("%w: implausible metadata length %d", ErrTruncatedArchive, metaLen)
	}

	metaJSON := make([]byte, metaLen)
	if _, err := io.ReadFull(r, metaJSON); err != nil {
		return nil, fmt.Errorf("%w: metadata block cut short", ErrTruncatedArchive)
	}

	var md ArchiveMetadata
	if err := json.Unmarshal(metaJSON, &md); err != nil {
		return nil, fmt.Errorf("invalid archive metadata: %w", err)
	}

	if md.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("%w: got version %d, expected %d",
			ErrUnsupportedFormatVersion, md.FormatVersion, FormatVersion)
	}
	if md.ChecksumSHA256 == "" {
		return nil, errors.New("invalid archive metadata: missing checksum")
	}

	return &md, nil
}

// DecodeArchive reads the container: metadata block plus the full payload.
// CompressedSize records the payload length at encode time, so any shortfall
// in available bytes is a truncated archive.
func DecodeArchive(r io.Reader) (*ArchiveMetadata, []byte, error) {
	md, err := DecodeMetadata(r)
	if err != nil {
		return nil, nil, err
	}

	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read archive payload: %w", err)
	}
	if int64(len(payload)) != md.CompressedSize {
		return nil, nil, fmt.Errorf("%w: payload is %d bytes, metadata promises %d",
			ErrTruncatedArchive, len(payload), md.CompressedSize)
	}

	return md, payload, nil
}
