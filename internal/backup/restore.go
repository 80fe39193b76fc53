// Tillvault - Retail Inventory & Sales Management
// Copyright 2026 The Tillvault Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tillvault/tillvault

/*
restore.go - Restore and Verification

Restore Process:
 1. Locate the archive and acquire the operation gate
 2. Decode header and payload, re-derive the key from the salt and
    iteration count recorded in the header
 3. Authenticate and decrypt, then decompress
 4. Compare the SHA-256 of the recovered bytes against the header
 5. Only after all checks pass: copy the live target aside as a
    rollback, write the recovered bytes to a temp file and rename it
    over the target, then reopen the store

Verification runs the same pipeline entirely in memory and never
touches the target. All failures surface before any mutation, so a bad
passphrase or a corrupted archive leaves the live data untouched.
*/

//nolint:staticcheck // File documentation, not package doc
package backup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/tillvault/tillvault/internal/logging"
)

// RollbackSuffix is appended to the target path for the pre-restore
// safety copy. A repeat restore overwrites the previous rollback.
const RollbackSuffix = ".rollback"

// recoverSnapshot runs the decrypt / decompress / checksum pipeline and
// returns the original snapshot bytes along with the recomputed checksum.
// The checksum is "" when the pipeline fails before the checksum stage.
func (e *Engine) recoverSnapshot(md *ArchiveMetadata, payload []byte) ([]byte, string, error) {
	data := payload

	if md.Encrypted {
		if e.passphrase == "" {
			return nil, "", ErrEncryptionUnavailable
		}
		cipher, err := e.cipherFor(md.Salt, md.KDFIterations)
		if err != nil {
			return nil, "", err
		}
		data, err = cipher.Decrypt(md.Nonce, data, md.AuthTag)
		if err != nil {
			return nil, "", err
		}
	}

	if md.Compressed {
		// Level only affects compression; any valid level decompresses.
		comp, err := NewCompressor(md.Algorithm, 6)
		if err != nil {
			return nil, "", err
		}
		data, err = comp.Decompress(data)
		if err != nil {
			return nil, "", err
		}
	}

	sum := sha256.Sum256(data)
	actual := hex.EncodeToString(sum[:])
	if actual != md.ChecksumSHA256 {
		return nil, actual, fmt.Errorf("%w: expected %s, got %s", ErrIntegrityCheckFailed, md.ChecksumSHA256, actual)
	}

	if int64(len(data)) != md.OriginalSize {
		return nil, actual, fmt.Errorf("%w: recovered %d bytes, header says %d", ErrIntegrityCheckFailed, len(data), md.OriginalSize)
	}

	return data, actual, nil
}

// readArchive opens and fully decodes an archive file.
func readArchive(path string) (*ArchiveMetadata, []byte, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path is resolved from the configured backup directory
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("%w: %s", ErrArchiveNotFound, path)
		}
		return nil, nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close() //nolint:errcheck

	return DecodeArchive(f)
}

// copyFile copies src to dst, preserving nothing but the bytes. Used for
// the rollback copy; the target's permissions are reapplied to the copy.
func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src) //nolint:gosec // G304: src is the configured restore target
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode) //nolint:gosec // G304: dst derives from the restore target
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close() //nolint:errcheck
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close() //nolint:errcheck
		return err
	}
	return out.Close()
}

// writeRollback copies the current target aside before it is replaced.
// Returns "" when the target does not exist yet.
func writeRollback(targetPath string) (string, error) {
	info, err := os.Stat(targetPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to stat restore target: %w", err)
	}

	rollbackPath := targetPath + RollbackSuffix
	if err := copyFile(targetPath, rollbackPath, info.Mode().Perm()); err != nil {
		return "", fmt.Errorf("failed to write rollback copy: %w", err)
	}
	return rollbackPath, nil
}

// replaceTarget atomically replaces targetPath with the given bytes.
func replaceTarget(targetPath string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(targetPath), ".restore-*")
	if err != nil {
		return fmt.Errorf("failed to create restore temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()        //nolint:errcheck
		os.Remove(tmpPath) //nolint:errcheck
		return fmt.Errorf("failed to write restore temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()        //nolint:errcheck
		os.Remove(tmpPath) //nolint:errcheck
		return fmt.Errorf("failed to sync restore temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath) //nolint:errcheck
		return fmt.Errorf("failed to close restore temp file: %w", err)
	}

	if err := os.Rename(tmpPath, targetPath); err != nil {
		os.Remove(tmpPath) //nolint:errcheck
		return fmt.Errorf("failed to replace restore target: %w", err)
	}
	return nil
}

// RestoreBackup replaces the target file with the contents of the named
// archive. The target is untouched unless every integrity check passes;
// a rollback copy of the previous contents sits beside it afterwards.
func (e *Engine) RestoreBackup(ctx context.Context, ref, targetPath string) (*RestoreReport, error) {
	start := time.Now()
	report, err := e.restoreBackup(ctx, ref, targetPath)
	recordRestore(time.Since(start), err)
	if report != nil {
		report.Duration = time.Since(start)
	}
	return report, err
}

func (e *Engine) restoreBackup(ctx context.Context, ref, targetPath string) (*RestoreReport, error) {
	summary, err := e.retention.Find(ref)
	if err != nil {
		return nil, err
	}

	release, err := gate.acquire(e.cfg.BackupDir)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	md, payload, err := readArchive(summary.Path)
	if err != nil {
		return nil, err
	}

	data, _, err := e.recoverSnapshot(md, payload)
	if err != nil {
		logging.Error().Err(err).Str("archive_id", md.ID).Msg("Restore aborted before touching target")
		return nil, err
	}

	rollbackPath, err := writeRollback(targetPath)
	if err != nil {
		return nil, err
	}

	if err := replaceTarget(targetPath, data); err != nil {
		return nil, err
	}

	report := &RestoreReport{
		ArchiveID:     md.ID,
		TargetPath:    targetPath,
		Verified:      true,
		RollbackPath:  rollbackPath,
		BytesRestored: int64(len(data)),
	}

	// The target has already been replaced at this point, so the caller
	// gets the report (and with it the rollback path) even when the
	// reopen fails.
	if err := e.store.Reopen(targetPath); err != nil {
		return report, fmt.Errorf("restore succeeded but store reopen failed: %w", err)
	}

	logging.Info().
		Str("archive_id", md.ID).
		Str("target", targetPath).
		Str("rollback", rollbackPath).
		Int64("bytes", int64(len(data))).
		Msg("Restore complete")

	return report, nil
}

// VerifyBackup runs the full restore pipeline in memory against the
// named archive. It acquires no lock and never writes anything, so it is
// safe to run while backups are being taken.
func (e *Engine) VerifyBackup(ref string) (*VerificationReport, error) {
	summary, err := e.retention.Find(ref)
	if err != nil {
		recordVerification("error")
		return nil, err
	}

	md, payload, err := readArchive(summary.Path)
	if err != nil {
		recordVerification("error")
		return nil, err
	}

	report := &VerificationReport{
		ArchiveID: md.ID,
		Expected:  md.ChecksumSHA256,
	}

	_, actual, err := e.recoverSnapshot(md, payload)
	switch {
	case err == nil:
		report.Actual = actual
		report.Authentic = true
		report.ChecksumMatch = true
		recordVerification("ok")
	case errors.Is(err, ErrAuthenticationFailed):
		recordVerification("authentication_failed")
		return report, err
	case errors.Is(err, ErrIntegrityCheckFailed):
		report.Actual = actual
		report.Authentic = true
		recordVerification("checksum_mismatch")
		return report, err
	default:
		recordVerification("error")
		return report, err
	}

	return report, nil
}
