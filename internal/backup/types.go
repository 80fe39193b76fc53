// Tillvault - Retail Inventory & Sales Management
// Copyright 2026 The Tillvault Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tillvault/tillvault

package backup

import (
	"time"
)

// FormatVersion is the archive container format version written by this
// build. Decoding rejects any other value.
const FormatVersion = 1

// File extensions for archives. The metadata block is present in both; the
// extension only signals whether the payload is encrypted.
const (
	PlainExt     = ".bak"
	EncryptedExt = ".bak.enc"
)

// Trigger indicates what initiated a backup.
type Trigger string

const (
	// TriggerManual indicates the backup was requested by a caller.
	TriggerManual Trigger = "manual"

	// TriggerScheduled indicates the backup was created by the scheduler.
	TriggerScheduled Trigger = "scheduled"
)

// ArchiveMetadata is the JSON metadata block at the head of every archive
// file. It is readable without the passphrase so archives can be listed and
// audited without decrypting.
//
// The checksum is always computed over the raw, uncompressed snapshot before
// compression and encryption, and re-verified after decompression on restore.
type ArchiveMetadata struct {
	FormatVersion  int               `json:"format_version"`
	ID             string            `json:"id"`
	CreatedAt      time.Time         `json:"created_at"`
	Trigger        Trigger           `json:"trigger"`
	Description    string            `json:"description,omitempty"`
	OriginalSize   int64             `json:"original_size"`
	CompressedSize int64             `json:"compressed_size"`
	Compressed     bool              `json:"compression"`
	Algorithm      string            `json:"compression_algorithm,omitempty"`
	Encrypted      bool              `json:"encrypted"`
	ChecksumSHA256 string            `json:"checksum_sha256"`
	KDFIterations  int               `json:"kdf_iterations,omitempty"`
	Salt           []byte            `json:"salt,omitempty"`
	Nonce          []byte            `json:"nonce,omitempty"`
	AuthTag        []byte            `json:"auth_tag,omitempty"`
	Tags           map[string]string `json:"custom_tags,omitempty"`
}

// ArchiveSummary describes one archive on disk, built from its metadata
// block and file stats. Payloads are never decrypted to produce a summary.
type ArchiveSummary struct {
	// Unique identifier for the archive
	ID string `json:"id"`

	// File name within the backup directory
	Name string `json:"name"`

	// Absolute path to the archive file
	Path string `json:"path"`

	// When the archive was created
	CreatedAt time.Time `json:"created_at"`

	// Size of the archive file on disk
	FileSize int64 `json:"file_size"`

	// Size of the raw snapshot before compression/encryption
	OriginalSize int64 `json:"original_size"`

	// Whether the payload is compressed
	Compressed bool `json:"compressed"`

	// Whether the payload is encrypted
	Encrypted bool `json:"encrypted"`

	// What triggered the backup
	Trigger Trigger `json:"trigger"`

	// Caller-provided description
	Description string `json:"description,omitempty"`

	// Caller-provided tags
	Tags map[string]string `json:"tags,omitempty"`
}

// RestoreReport is returned by a restore operation so the caller can offer
// an undo path.
type RestoreReport struct {
	// The archive that was restored
	ArchiveID string `json:"archive_id"`

	// Path the snapshot was written to
	TargetPath string `json:"target_path"`

	// Whether the checksum was verified after decrypt+decompress
	Verified bool `json:"verified"`

	// Path of the rollback copy of the previous target, empty if the
	// target did not exist before the restore
	RollbackPath string `json:"rollback_path,omitempty"`

	// Number of snapshot bytes written
	BytesRestored int64 `json:"bytes_restored"`

	// Duration of the restore operation
	Duration time.Duration `json:"duration_ms"`
}

// VerificationReport is returned by VerifyBackup. Verification runs the full
// decrypt/decompress/checksum pipeline into memory and never touches the
// restore target.
type VerificationReport struct {
	// The archive that was verified
	ArchiveID string `json:"archive_id"`

	// Whether AEAD authentication succeeded
	Authentic bool `json:"authentic"`

	// Whether the recomputed checksum matched the metadata
	ChecksumMatch bool `json:"checksum_match"`

	// Checksum recorded in the archive metadata
	Expected string `json:"expected"`

	// Checksum recomputed from the decrypted, decompressed payload
	Actual string `json:"actual"`
}

// RetentionPolicy defines how archives are retained. Zero values disable the
// corresponding rule.
type RetentionPolicy struct {
	// Maximum number of archives to keep (0 = unlimited)
	MaxCount int `json:"max_count" koanf:"max_count"`

	// Maximum age of archives in days (0 = unlimited)
	MaxAgeDays int `json:"max_age_days" koanf:"max_age_days"`
}

// DefaultRetentionPolicy returns a sensible default retention policy.
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{
		MaxCount:   30,
		MaxAgeDays: 90,
	}
}

// ScheduleConfig defines when automatic backups run.
type ScheduleConfig struct {
	// Enable automatic scheduled backups
	Enabled bool `json:"enabled" koanf:"enabled"`

	// Time between backups
	Interval time.Duration `json:"interval" koanf:"interval"`
}

// DefaultScheduleConfig returns the default schedule configuration.
func DefaultScheduleConfig() ScheduleConfig {
	return ScheduleConfig{
		Enabled:  false,
		Interval: 24 * time.Hour,
	}
}

// Stats contains aggregate statistics over the archives in the backup
// directory, recomputed on demand from the directory scan.
type Stats struct {
	// Total number of archives
	TotalCount int `json:"total_count"`

	// Total disk space used by archives
	TotalSizeBytes int64 `json:"total_size_bytes"`

	// Number of encrypted archives
	EncryptedCount int `json:"encrypted_count"`

	// Date of oldest archive, zero when there are none
	OldestArchive time.Time `json:"oldest_archive"`

	// Date of newest archive, zero when there are none
	NewestArchive time.Time `json:"newest_archive"`
}
