// Tillvault - Retail Inventory & Sales Management
// Copyright 2026 The Tillvault Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tillvault/tillvault

package backup

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrWeakPassphrase is returned when a passphrase is shorter than the
	// minimum length.
	ErrWeakPassphrase = errors.New("passphrase too short")

	// ErrOperationInProgress is returned when another backup or restore
	// already holds the lock for the backup directory.
	ErrOperationInProgress = errors.New("another backup or restore operation is in progress")

	// ErrSnapshotUnavailable is returned when the data store cannot produce
	// a consistent snapshot.
	ErrSnapshotUnavailable = errors.New("data store snapshot unavailable")

	// ErrCorruptStream is returned when decompression fails after a
	// successful decrypt.
	ErrCorruptStream = errors.New("corrupt compressed stream")

	// ErrAuthenticationFailed is returned when AEAD decryption fails,
	// either because the passphrase is wrong or the ciphertext was tampered
	// with. The two cases are intentionally indistinguishable.
	ErrAuthenticationFailed = errors.New("authentication failed: wrong passphrase or tampered archive")

	// ErrIntegrityCheckFailed is returned when the plaintext checksum does
	// not match the archive metadata after a successful decrypt. Distinct
	// from ErrAuthenticationFailed: the payload decrypted correctly but is
	// logically corrupt.
	ErrIntegrityCheckFailed = errors.New("integrity check failed: snapshot checksum mismatch")

	// ErrUnsupportedFormatVersion is returned when an archive declares a
	// format version this build does not understand.
	ErrUnsupportedFormatVersion = errors.New("unsupported archive format version")

	// ErrTruncatedArchive is returned when an archive file is shorter than
	// its metadata promises.
	ErrTruncatedArchive = errors.New("truncated archive")

	// ErrEncryptionUnavailable is returned when an encrypted archive is
	// requested but no cipher is configured. Encrypted backups never fall
	// back to plaintext.
	ErrEncryptionUnavailable = errors.New("encryption unavailable: no passphrase configured")

	// ErrArchiveNotFound is returned when no archive matches the requested
	// identifier.
	ErrArchiveNotFound = errors.New("archive not found")
)

// DeleteFailure records a single archive that could not be removed during
// pruning.
type DeleteFailure struct {
	Name string
	Err  error
}

// RetentionDeleteError collects per-archive deletion failures from a prune
// run. One failed delete does not abort pruning of the rest; the caller
// receives every failure here instead.
type RetentionDeleteError struct {
	Failures []DeleteFailure
}

func (e *RetentionDeleteError) Error() string {
	names := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		names = append(names, f.Name)
	}
	return fmt.Sprintf("retention: failed to delete %d archive(s): %s",
		len(e.Failures), strings.Join(names, ", "))
}
