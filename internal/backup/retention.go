// Tillvault - Retail Inventory & Sales Management
// Copyright 2026 The Tillvault Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tillvault/tillvault

package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/tillvault/tillvault/internal/logging"
)

// RetentionManager enumerates, locates and prunes archives in a backup
// directory. Archives are self-describing; the directory itself is the
// catalog, so every listing is a fresh scan.
type RetentionManager struct {
	dir string
}

// NewRetentionManager creates a retention manager for the given directory.
func NewRetentionManager(dir string) *RetentionManager {
	return &RetentionManager{dir: dir}
}

// isArchiveName reports whether a file name carries an archive extension.
// Temp files from in-flight backups use a ".tmp-" prefix and never match.
func isArchiveName(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	return strings.HasSuffix(name, PlainExt) || strings.HasSuffix(name, EncryptedExt)
}

// readSummary opens an archive and builds its summary from the header
// alone; the payload is never read.
func readSummary(path string, info os.FileInfo) (*ArchiveSummary, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path comes from a directory scan of the configured backup dir
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close() //nolint:errcheck

	md, err := DecodeMetadata(f)
	if err != nil {
		return nil, err
	}

	return &ArchiveSummary{
		ID:           md.ID,
		Name:         info.Name(),
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

// ListArchives scans the backup directory and returns summaries sorted by
// creation time, newest first. Unreadable or foreign files are skipped
// with a warning; one bad file must not hide the rest of the catalog.
func (rm *RetentionManager) ListArchives() ([]*ArchiveSummary, error) {
	entries, err := os.ReadDir(rm.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var summaries []*ArchiveSummary
	for _, entry := range entries {
		if entry.IsDir() || !isArchiveName(entry.Name()) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		path := filepath.Join(rm.dir, entry.Name())
		summary, err := readSummary(path, info)
		if err != nil {
			logging.Warn().Err(err).Str("file", entry.Name()).Msg("Skipping unreadable archive")
			continue
		}
		summaries = append(summaries, summary)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})

	return summaries, nil
}

// Find locates an archive by ID or file name. Returns
// ErrArchiveNotFound if no archive matches.
func (rm *RetentionManager) Find(ref string) (*ArchiveSummary, error) {
	summaries, err := rm.ListArchives()
	if err != nil {
		return nil, err
	}

	for _, s := range summaries {
		if s.ID == ref || s.Name == ref {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrArchiveNotFound, ref)
}

// Delete removes a single archive by ID or name. Returns
// ErrArchiveNotFound if it does not exist.
func (rm *RetentionManager) Delete(ref string) error {
	summary, err := rm.Find(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(summary.Path); err != nil {
		return fmt.Errorf("failed to delete archive %s: %w", summary.Name, err)
	}
	logging.Info().Str("archive_id", summary.ID).Str("file", summary.Name).Msg("Archive deleted")
	return nil
}

// selectExpired returns archives older than the policy's maximum age.
// Summaries must be sorted newest first.
func selectExpired(summaries []*ArchiveSummary, policy RetentionPolicy, now time.Time) []*ArchiveSummary {
	if policy.MaxAgeDays <= 0 {
		return nil
	}
	cutoff := now.AddDate(0, 0, -policy.MaxAgeDays)

	var expired []*ArchiveSummary
	for _, s := range summaries {
		if s.CreatedAt.Before(cutoff) {
			expired = append(expired, s)
		}
	}
	return expired
}

// selectExcess returns the oldest archives beyond the policy's maximum
// count, after accounting for already-selected deletions.
func selectExcess(summaries []*ArchiveSummary, policy RetentionPolicy, doomed map[string]bool) []*ArchiveSummary {
	if policy.MaxCount <= 0 {
		return nil
	}

	remaining := 0
	for _, s := range summaries {
		if !doomed[s.ID] {
			remaining++
		}
	}
	over := remaining - policy.MaxCount
	if over <= 0 {
		return nil
	}

	// Walk oldest to newest and pick the surplus.
	var excess []*ArchiveSummary
	for i := len(summaries) - 1; i >= 0 && over > 0; i-- {
		s := summaries[i]
		if doomed[s.ID] {
			continue
		}
		excess = append(excess, s)
		over--
	}
	return excess
}

// Prune deletes archives that violate the retention policy and returns
// how many were removed. Deletion failures are collected, not fatal: a
// single stubborn file must not block pruning of the rest, and the caller
// gets a RetentionDeleteError naming every failure.
func (rm *RetentionManager) Prune(policy RetentionPolicy) (int, error) {
	summaries, err := rm.ListArchives()
	if err != nil {
		return 0, err
	}
	if len(summaries) == 0 {
		return 0, nil
	}

	now := time.Now()
	doomed := make(map[string]bool)

	toDelete := selectExpired(summaries, policy, now)
	for _, s := range toDelete {
		doomed[s.ID] = true
	}
	toDelete = append(toDelete, selectExcess(summaries, policy, doomed)...)

	deleted := 0
	var failures []DeleteFailure
	for _, s := range toDelete {
		if err := os.Remove(s.Path); err != nil {
			failures = append(failures, DeleteFailure{Name: s.Name, Err: err})
			continue
		}
		deleted++
		logging.Debug().Str("archive_id", s.ID).Str("file", s.Name).Msg("Pruned archive")
	}

	recordPrune(deleted, len(failures))
	if deleted > 0 {
		logging.Info().Int("deleted_count", deleted).Msg("Retention policy applied")
	}

	if len(failures) > 0 {
		return deleted, &RetentionDeleteError{Failures: failures}
	}
	return deleted, nil
}

// Stats summarizes the current archive catalog.
func (rm *RetentionManager) Stats() (*Stats, error) {
	summaries, err := rm.ListArchives()
	if err != nil {
		return nil, err
	}

	stats := &Stats{TotalCount: len(summaries)}
	for _, s := range summaries {
		stats.TotalSizeBytes += s.FileSize
		if s.Encrypted {
			stats.EncryptedCount++
		}
		if stats.OldestArchive.IsZero() || s.CreatedAt.Before(stats.OldestArchive) {
			stats.OldestArchive = s.CreatedAt
		}
		if s.CreatedAt.After(stats.NewestArchive) {
			stats.NewestArchive = s.CreatedAt
		}
	}
	return stats, nil
}
