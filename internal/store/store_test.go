// Tillvault - Retail Inventory & Sales Management
// Copyright 2026 The Tillvault Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tillvault/tillvault

package store

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

// TestSnapshot tests reading the data file
func TestSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.db")
	contents := []byte("inventory rows")
	if err := os.WriteFile(path, contents, 0o600); err != nil {
		t.Fatalf("failed to write data file: %v", err)
	}

	fs := NewFileStore(path)
	if fs.Path() != path {
		t.Errorf("expected path %s, got %s", path, fs.Path())
	}

	snap, err := fs.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if !bytes.Equal(snap, contents) {
		t.Error("snapshot does not match file contents")
	}
}

// TestSnapshotMissingFile tests the missing data file case
func TestSnapshotMissingFile(t *testing.T) {
	fs := NewFileStore(filepath.Join(t.TempDir(), "absent.db"))
	if _, err := fs.Snapshot(context.Background()); err == nil {
		t.Error("expected error for missing data file")
	}
}

// TestSnapshotCancelledContext tests context handling
func TestSnapshotCancelledContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.db")
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fs := NewFileStore(path)
	if _, err := fs.Snapshot(ctx); err == nil {
		t.Error("expected error for cancelled context")
	}
}

// TestReopen tests repointing the store after a restore
func TestReopen(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.db")
	second := filepath.Join(dir, "second.db")
	if err := os.WriteFile(first, []byte("one"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(second, []byte("two"), 0o600); err != nil {
		t.Fatal(err)
	}

	fs := NewFileStore(first)
	if err := fs.Reopen(second); err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}

	snap, err := fs.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if !bytes.Equal(snap, []byte("two")) {
		t.Error("snapshot should come from the reopened file")
	}

	if err := fs.Reopen(filepath.Join(dir, "missing.db")); err == nil {
		t.Error("expected error for missing restore target")
	}
}
