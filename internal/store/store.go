// Tillvault - Retail Inventory & Sales Management
// Copyright 2026 The Tillvault Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tillvault/tillvault

// Package store provides the file-backed data source protected by the
// backup engine.
package store

import (
	"context"
	"fmt"
	"os"
	"sync"
)

// FileStore exposes a single data file as a snapshot source. Snapshot
// reads are serialized against Reopen so a restore can swap the file out
// from under concurrent readers safely.
type FileStore struct {
	mu   sync.RWMutex
	path string
}

// NewFileStore creates a file store over the given path. The file does
// not need to exist yet; a missing file fails at snapshot time, which
// keeps restore-into-empty-target workflows possible.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the current data file path.
func (fs *FileStore) Path() string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.path
}

// Snapshot returns the full contents of the data file.
func (fs *FileStore) Snapshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	data, err := os.ReadFile(fs.path) //nolint:gosec // G304: path is the configured data file
	if err != nil {
		return nil, fmt.Errorf("failed to read data file: %w", err)
	}
	return data, nil
}

// Reopen points the store at the restored file. Called by the engine
// after a restore replaces the data file on disk.
func (fs *FileStore) Reopen(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("restored data file unavailable: %w", err)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.path = path
	return nil
}
