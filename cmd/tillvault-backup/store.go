// Tillvault - Retail Inventory & Sales Management
// Copyright 2026 The Tillvault Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tillvault/tillvault

package main

import (
	"github.com/tillvault/tillvault/internal/backup"
	"github.com/tillvault/tillvault/internal/store"
)

// newStore wraps the configured data file as the snapshot source.
func newStore(cfg *backup.Config) *store.FileStore {
	return store.NewFileStore(cfg.DataFile)
}
