// Tillvault - Retail Inventory & Sales Management
// Copyright 2026 The Tillvault Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tillvault/tillvault

package backup

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Backup Metrics
	backupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tillvault_backups_total",
			Help: "Total number of backup attempts",
		},
		[]string{"trigger", "status"}, // trigger: "manual", "scheduled"; status: "success", "failure"
	)

	backupDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tillvault_backup_duration_seconds",
			Help:    "Duration of backup creation in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	backupBytesWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tillvault_backup_bytes_written_total",
			Help: "Total bytes written to backup archives (post-compression, post-encryption)",
		},
	)

	// Restore Metrics
	restoresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tillvault_restores_total",
			Help: "Total number of restore attempts",
		},
		[]string{"status"},
	)

	restoreDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tillvault_restore_duration_seconds",
			Help:    "Duration of restore operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Verification Metrics
	verificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tillvault_verifications_total",
			Help: "Total number of archive verifications",
		},
		[]string{"result"}, // "ok", "authentication_failed", "checksum_mismatch", "error"
	)

	// Retention Metrics
	retentionDeletions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tillvault_retention_deletions_total",
			Help: "Total number of archives deleted by retention pruning",
		},
	)

	retentionDeleteErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tillvault_retention_delete_errors_total",
			Help: "Total number of archive deletions that failed during pruning",
		},
	)
)

// recordBackup records the outcome of a backup attempt.
func recordBackup(trigger Trigger, duration time.Duration, bytesWritten int64, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	backupsTotal.WithLabelValues(string(trigger), status).Inc()
	if err == nil {
		backupDuration.Observe(duration.Seconds())
		backupBytesWritten.Add(float64(bytesWritten))
	}
}

// recordRestore records the outcome of a restore attempt.
func recordRestore(duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	restoresTotal.WithLabelValues(status).Inc()
	if err == nil {
		restoreDuration.Observe(duration.Seconds())
	}
}

// recordVerification records the result of an archive verification.
func recordVerification(result string) {
	verificationsTotal.WithLabelValues(result).Inc()
}

// recordPrune records the outcome of a retention pruning pass.
func recordPrune(deleted, failed int) {
	retentionDeletions.Add(float64(deleted))
	if failed > 0 {
		retentionDeleteErrors.Add(float64(failed))
	}
}
