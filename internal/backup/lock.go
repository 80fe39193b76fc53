// Tillvault - Retail Inventory & Sales Management
// Copyright 2026 The Tillvault Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tillvault/tillvault

package backup

import (
	"fmt"
	"path/filepath"
	"sync"
)

// operationGate enforces that at most one backup-or-restore operation is in
// flight per backup directory. Acquisition never blocks: a second caller
// fails fast with ErrOperationInProgress instead of queueing behind an
// operation of unknown duration.
type operationGate struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func newOperationGate() *operationGate {
	return &operationGate{held: make(map[string]struct{})}
}

// acquire locks the directory and returns a release function. Directories
// are keyed by resolved absolute path so aliases of the same directory
// contend on one lock.
func (g *operationGate) acquire(dir string) (func(), error) {
	key, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve backup directory %s: %w", dir, err)
	}
	if resolved, err := filepath.EvalSymlinks(key); err == nil {
		key = resolved
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, taken := g.held[key]; taken {
		return nil, fmt.Errorf("%w: %s", ErrOperationInProgress, key)
	}
	g.held[key] = struct{}{}

	release := func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		delete(g.held, key)
	}
	return release, nil
}

// gate is process-wide so independent Engine instances pointed at the same
// backup directory still exclude each other.
var gate = newOperationGate()
