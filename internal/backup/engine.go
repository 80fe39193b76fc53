// Tillvault - Retail Inventory & Sales Management
// Copyright 2026 The Tillvault Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tillvault/tillvault

/*
engine.go - Backup Engine Core

This file contains the backup engine struct and the archive creation
pipeline for protecting the Tillvault data file.

Archive Creation Process:
 1. Acquire the per-directory operation gate (fail fast if busy)
 2. Quiesce the store (flush pending writes) and take a snapshot
 3. Compute the SHA-256 checksum of the raw snapshot
 4. Compress (gzip or zstd), then encrypt (AES-256-GCM) when enabled
 5. Build the archive header and write length-prefix + header + payload
    to a hidden temp file in the backup directory
 6. fsync, close, then rename into place so readers only ever see
    complete archives
 7. Apply the retention policy (failures logged, never fatal)

Security:
  - Keys are derived per configuration with PBKDF2-HMAC-SHA256; the
    passphrase is held in memory only and never persisted
  - Each archive records its own salt and iteration count, so archives
    written before a passphrase rotation stay restorable
  - Archive files have restricted permissions (0640)
*/

//nolint:staticcheck // File documentation, not package doc
package backup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tillvault/tillvault/internal/logging"
)

// Store is the data source being protected. Snapshot must return a
// point-in-time consistent copy of the data; Reopen is called after a
// restore has replaced the underlying file.
type Store interface {
	// Snapshot returns a consistent copy of the current data
	Snapshot(ctx context.Context) ([]byte, error)
	// Reopen reloads the store from the given path after a restore
	Reopen(path string) error
}

// Quiescer is an optional interface a Store may implement to flush
// pending writes before a snapshot is taken.
type Quiescer interface {
	Quiesce(ctx context.Context) error
}

// Engine orchestrates backup, restore and verification of a single data
// file. One Engine per backup directory; concurrent operations against
// the same directory are rejected by the operation gate.
type Engine struct {
	cfg       *Config
	store     Store
	retention *RetentionManager

	// policyMu guards cfg.Retention, which the scheduler reads while
	// callers may reconfigure it.
	policyMu sync.RWMutex

	crypto     *CryptoSettings
	passphrase string
}

// NewEngine creates a backup engine. When encryption is enabled in the
// configuration, the persisted crypto settings are loaded (or initialized
// on first use) and the passphrase is validated against the policy.
func NewEngine(cfg *Config, store Store) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("backup configuration is required")
	}
	if store == nil {
		return nil, fmt.Errorf("a store is required")
	}

	if cfg.Enabled {
		if err := cfg.EnsureBackupDir(); err != nil {
			return nil, err
		}
	}

	e := &Engine{
		cfg:       cfg,
		store:     store,
		retention: NewRetentionManager(cfg.BackupDir),
	}

	if cfg.Encryption.Enabled {
		if err := e.SetPassphrase(cfg.Encryption.Passphrase, cfg.Encryption.Iterations); err != nil {
			return nil, err
		}
	}

	return e, nil
}

// Retention exposes the engine's retention manager for listing, stats
// and manual pruning.
func (e *Engine) Retention() *RetentionManager {
	return e.retention
}

// ConfigureRetention replaces the retention policy applied after each
// backup. Safe to call while the scheduler is running.
func (e *Engine) ConfigureRetention(policy RetentionPolicy) error {
	if policy.MaxCount < 0 || policy.MaxAgeDays < 0 {
		return fmt.Errorf("retention limits must not be negative")
	}
	e.policyMu.Lock()
	e.cfg.Retention = policy
	e.policyMu.Unlock()
	return nil
}

// retentionPolicy returns the current policy under the read lock.
func (e *Engine) retentionPolicy() RetentionPolicy {
	e.policyMu.RLock()
	defer e.policyMu.RUnlock()
	return e.cfg.Retention
}

// SetPassphrase validates and installs the encryption passphrase. On
// first use a fresh salt is generated and the crypto settings are
// persisted beside the archives; iterations <= 0 selects the default
// PBKDF2 cost. Once the settings file exists its salt and iteration
// count win; RotatePassphrase is the path that regenerates them.
func (e *Engine) SetPassphrase(passphrase string, iterations int) error {
	if err := CheckPassphrase(passphrase); err != nil {
		return err
	}

	settings, err := LoadCryptoSettings(e.cfg.BackupDir)
	if err != nil {
		return err
	}
	if settings == nil || !settings.EncryptionEnabled {
		salt, err := NewSalt()
		if err != nil {
			return err
		}
		if iterations <= 0 {
			iterations = DefaultKDFIterations
		}
		settings = &CryptoSettings{
			EncryptionEnabled: true,
			KDF:               kdfName,
			Salt:              salt,
			Iterations:        iterations,
		}
		if err := settings.Save(e.cfg.BackupDir); err != nil {
			return err
		}
		logging.Info().Int("iterations", settings.Iterations).Msg("Encryption initialized")
	}

	e.crypto = settings
	e.passphrase = passphrase
	return nil
}

// RotatePassphrase installs a new passphrase under a freshly generated
// salt and persists the updated crypto settings. Archives written before
// the rotation stay restorable because each archive header records the
// salt and iteration count it was encrypted under; only the passphrase
// that was current at write time is needed to open them.
func (e *Engine) RotatePassphrase(passphrase string, iterations int) error {
	if err := CheckPassphrase(passphrase); err != nil {
		return err
	}

	salt, err := NewSalt()
	if err != nil {
		return err
	}
	if iterations <= 0 {
		iterations = DefaultKDFIterations
	}

	settings := &CryptoSettings{
		EncryptionEnabled: true,
		KDF:               kdfName,
		Salt:              salt,
		Iterations:        iterations,
	}
	if err := settings.Save(e.cfg.BackupDir); err != nil {
		return err
	}

	e.crypto = settings
	e.passphrase = passphrase
	logging.Info().Int("iterations", iterations).Msg("Encryption passphrase rotated")
	return nil
}

// cipherFor builds a cipher for the engine's current crypto settings.
func (e *Engine) cipherFor(salt []byte, iterations int) (Cipher, error) {
	if e.passphrase == "" {
		return NewUnavailableCipher(), nil
	}
	key, err := DeriveKey(e.passphrase, salt, iterations)
	if err != nil {
		return nil, err
	}
	return NewAESGCM(key)
}

// archiveName builds the file name for a new archive. The timestamp
// keeps directory listings chronological; the ID fragment breaks ties.
func archiveName(id string, createdAt time.Time, encrypted bool) string {
	ext := PlainExt
	if encrypted {
		ext = EncryptedExt
	}
	return fmt.Sprintf("%s-%s%s", createdAt.UTC().Format("20060102-150405"), id[:8], ext)
}

// snapshot quiesces the store if it supports it and takes the snapshot.
func (e *Engine) snapshot(ctx context.Context) ([]byte, error) {
	if q, ok := e.store.(Quiescer); ok {
		if err := q.Quiesce(ctx); err != nil {
			return nil, fmt.Errorf("%w: quiesce failed: %v", ErrSnapshotUnavailable, err)
		}
	}

	data, err := e.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSnapshotUnavailable, err)
	}
	return data, nil
}

// preparePayload compresses and encrypts the snapshot according to the
// configuration, filling in the metadata fields as it goes.
func (e *Engine) preparePayload(snapshot []byte, md *ArchiveMetadata) ([]byte, error) {
	payload := snapshot

	if e.cfg.Compression.Enabled {
		comp, err := NewCompressor(e.cfg.Compression.Algorithm, e.cfg.Compression.Level)
		if err != nil {
			return nil, err
		}
		payload, err = comp.Compress(payload)
		if err != nil {
			return nil, fmt.Errorf("compression failed: %w", err)
		}
		md.Compressed = true
		md.Algorithm = comp.Algorithm()
	}

	if e.cfg.Encryption.Enabled {
		if e.crypto == nil {
			return nil, ErrEncryptionUnavailable
		}
		cipher, err := e.cipherFor(e.crypto.Salt, e.crypto.Iterations)
		if err != nil {
			return nil, err
		}
		nonce, ciphertext, tag, err := cipher.Encrypt(payload)
		if err != nil {
			return nil, err
		}
		payload = ciphertext
		md.Encrypted = true
		md.KDFIterations = e.crypto.Iterations
		md.Salt = e.crypto.Salt
		md.Nonce = nonce
		md.AuthTag = tag
	}

	md.CompressedSize = int64(len(payload))
	return payload, nil
}

// writeArchive writes the archive to a hidden temp file and renames it
// into place. The archive is never visible under its final name until it
// is complete and synced.
func writeArchive(dir, name string, md *ArchiveMetadata, payload []byte) (string, error) {
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		tmp.Close()        //nolint:errcheck
		os.Remove(tmpPath) //nolint:errcheck
	}

	if err := EncodeArchive(tmp, md, payload); err != nil {
		cleanup()
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return "", fmt.Errorf("failed to sync archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath) //nolint:errcheck
		return "", fmt.Errorf("failed to close archive: %w", err)
	}

	if err := os.Chmod(tmpPath, 0o640); err != nil {
		os.Remove(tmpPath) //nolint:errcheck
		return "", fmt.Errorf("failed to set archive permissions: %w", err)
	}

	finalPath := filepath.Join(dir, name)
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath) //nolint:errcheck
		return "", fmt.Errorf("failed to finalize archive: %w", err)
	}
	return finalPath, nil
}

// CreateBackup snapshots the store and writes a new archive. Triggered
// either manually or by the scheduler; the trigger is recorded in the
// archive header.
func (e *Engine) CreateBackup(ctx context.Context, trigger Trigger, description string, tags map[string]string) (*ArchiveSummary, error) {
	start := time.Now()
	summary, err := e.createBackup(ctx, trigger, description, tags)
	recordBackup(trigger, time.Since(start), summarySize(summary), err)
	return summary, err
}

func summarySize(s *ArchiveSummary) int64 {
	if s == nil {
		return 0
	}
	return s.FileSize
}

func (e *Engine) createBackup(ctx context.Context, trigger Trigger, description string, tags map[string]string) (*ArchiveSummary, error) {
	if !e.cfg.Enabled {
		return nil, fmt.Errorf("backups are disabled")
	}

	release, err := gate.acquire(e.cfg.BackupDir)
	if err != nil {
		return nil, err
	}
	defer release()

	snapshot, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(snapshot)
	md := &ArchiveMetadata{
		FormatVersion:  FormatVersion,
		ID:             uuid.New().String(),
		CreatedAt:      time.Now().UTC(),
		Trigger:        trigger,
		Description:    description,
		OriginalSize:   int64(len(snapshot)),
		ChecksumSHA256: hex.EncodeToString(sum[:]),
		Tags:           tags,
	}

	payload, err := e.preparePayload(snapshot, md)
	if err != nil {
		return nil, err
	}

	name := archiveName(md.ID, md.CreatedAt, md.Encrypted)
	path, err := writeArchive(e.cfg.BackupDir, name, md, payload)
	if err != nil {
		return nil, err
	}

	logging.Info().
		Str("archive_id", md.ID).
		Str("file", name).
		Str("trigger", string(trigger)).
		Int64("original_size", md.OriginalSize).
		Int64("stored_size", md.CompressedSize).
		Bool("encrypted", md.Encrypted).
		Msg("Backup created")

	// Prune after every successful backup. A retention failure must not
	// fail the backup that just succeeded.
	if _, err := e.retention.Prune(e.retentionPolicy()); err != nil {
		var rde *RetentionDeleteError
		if errors.As(err, &rde) {
			logging.Warn().Err(rde).Msg("Retention pruning left undeletable archives")
		} else {
			logging.Warn().Err(err).Msg("Retention pruning failed")
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat archive: %w", err)
	}

	return &ArchiveSummary{
		ID:           md.ID,
		Name:         name,
		Path:         path,
		CreatedAt:    md.CreatedAt,
		FileSize:     info.Size(),
		OriginalSize: md.OriginalSize,
		Compressed:   md.Compressed,
		Encrypted:    md.Encrypted,
		Trigger:      md.Trigger,
		Description:  md.Description,
		Tags:         md.Tags,
	}, nil
}
