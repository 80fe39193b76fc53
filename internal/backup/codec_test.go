// Tillvault - Retail Inventory & Sales Management
// Copyright 2026 The Tillvault Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tillvault/tillvault

package backup

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
	"time"
)

func testMetadata(payload []byte) *ArchiveMetadata {
	return &ArchiveMetadata{
		FormatVersion:  FormatVersion,
		ID:             "0d1f6a6e-8f2c-4a8e-9d3b-1f7c5e2a9b4d",
		CreatedAt:      time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC),
		Trigger:        TriggerManual,
		OriginalSize:   int64(len(payload)),
		CompressedSize: int64(len(payload)),
		ChecksumSHA256: "aa11bb22cc33dd44ee55ff6600112233445566778899aabbccddeeff00112233",
	}
}

// TestArchiveRoundTrip tests encode then decode of a full container
func TestArchiveRoundTrip(t *testing.T) {
	payload := []byte("not really compressed, but a payload")
	md := testMetadata(payload)
	md.Tags = map[string]string{"store": "12"}

	var buf bytes.Buffer
	if err := EncodeArchive(&buf, md, payload); err != nil {
		t.Fatalf("EncodeArchive failed: %v", err)
	}

	got, gotPayload, err := DecodeArchive(&buf)
	if err != nil {
		t.Fatalf("DecodeArchive failed: %v", err)
	}

	if got.ID != md.ID {
		t.Errorf("expected ID %s, got %s", md.ID, got.ID)
	}
	if !got.CreatedAt.Equal(md.CreatedAt) {
		t.Errorf("expected CreatedAt %s, got %s", md.CreatedAt, got.CreatedAt)
	}
	if got.Tags["store"] != "12" {
		t.Errorf("expected tag store=12, got %q", got.Tags["store"])
	}
	if !bytes.Equal(gotPayload, payload) {
		t.Error("payload did not survive the round trip")
	}
}

// TestDecodeMetadataOnly tests that listing reads the header without the payload
func TestDecodeMetadataOnly(t *testing.T) {
	payload := []byte("payload bytes that listing should never need")
	md := testMetadata(payload)

	var buf bytes.Buffer
	if err := EncodeArchive(&buf, md, payload); err != nil {
		t.Fatalf("EncodeArchive failed: %v", err)
	}

	got, err := DecodeMetadata(&buf)
	if err != nil {
		t.Fatalf("DecodeMetadata failed: %v", err)
	}
	if got.ID != md.ID {
		t.Errorf("expected ID %s, got %s", md.ID, got.ID)
	}
	// The payload must still be unread in the buffer.
	if buf.Len() != len(payload) {
		t.Errorf("expected %d unread payload bytes, got %d", len(payload), buf.Len())
	}
}

// TestDecodeTruncatedArchive tests shortfall detection at every boundary
func TestDecodeTruncatedArchive(t *testing.T) {
	payload := []byte("0123456789abcdef0123456789abcdef")
	md := testMetadata(payload)

	var buf bytes.Buffer
	if err := EncodeArchive(&buf, md, payload); err != nil {
		t.Fatalf("EncodeArchive failed: %v", err)
	}
	full := buf.Bytes()

	tests := []struct {
		name string
		data []byte
	}{
		{"empty file", nil},
		{"partial length prefix", full[:2]},
		{"metadata cut short", full[:10]},
		{"payload cut short", full[:len(full)-5]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := DecodeArchive(bytes.NewReader(tt.data)); !errors.Is(err, ErrTruncatedArchive) {
				t.Errorf("expected ErrTruncatedArchive, got %v", err)
			}
		})
	}
}

// TestDecodeUnsupportedVersion tests the format version gate
func TestDecodeUnsupportedVersion(t *testing.T) {
	payload := []byte("payload")
	md := testMetadata(payload)
	md.FormatVersion = FormatVersion + 1

	var buf bytes.Buffer
	if err := EncodeArchive(&buf, md, payload); err != nil {
		t.Fatalf("EncodeArchive failed: %v", err)
	}

	if _, _, err := DecodeArchive(&buf); !errors.Is(err, ErrUnsupportedFormatVersion) {
		t.Errorf("expected ErrUnsupportedFormatVersion, got %v", err)
	}
}

// TestDecodeMissingChecksum tests rejection of headers without a checksum
func TestDecodeMissingChecksum(t *testing.T) {
	payload := []byte("payload")
	md := testMetadata(payload)
	md.ChecksumSHA256 = ""

	var buf bytes.Buffer
	if err := EncodeArchive(&buf, md, payload); err != nil {
		t.Fatalf("EncodeArchive failed: %v", err)
	}

	if _, _, err := DecodeArchive(&buf); err == nil {
		t.Error("expected error for missing checksum")
	}
}

// TestDecodeImplausibleMetadataLength tests the metadata size bound
func TestDecodeImplausibleMetadataLength(t *testing.T) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, uint32(maxMetadataLength+1)); err != nil {
		t.Fatalf("binary.Write failed: %v", err)
	}
	buf.WriteString("{}")

	if _, err := DecodeMetadata(&buf); !errors.Is(err, ErrTruncatedArchive) {
		t.Errorf("expected ErrTruncatedArchive, got %v", err)
	}
}

// TestDecodeGarbageMetadata tests rejection of non-JSON metadata blocks
func TestDecodeGarbageMetadata(t *testing.T) {
	var buf bytes.Buffer
	garbage := []byte("definitely not json")
	if err := binary.Write(&buf, binary.BigEndian, uint32(len(garbage))); err != nil {
		t.Fatalf("binary.Write failed: %v", err)
	}
	buf.Write(garbage)

	if _, err := DecodeMetadata(&buf); err == nil {
		t.Error("expected error for garbage metadata")
	}
}
