// Tillvault - Retail Inventory & Sales Management
// Copyright 2026 The Tillvault Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tillvault/tillvault

// Package backup provides encrypted backup and restore functionality for
// the Tillvault data file, with compression, retention policies, and
// scheduled operation.
//
// # Overview
//
// The backup package implements a complete protection pipeline:
//   - Point-in-time snapshots via the Store interface
//   - GZIP and ZSTD compression support
//   - AES-256-GCM authenticated encryption (optional)
//   - PBKDF2-HMAC-SHA256 key derivation with a persisted salt
//   - SHA-256 integrity verification on every restore
//   - Count and age based retention with automatic pruning
//   - Interval scheduling with an immediate first backup
//
// # Architecture
//
// The package consists of several components:
//
//	Engine           - Orchestrates backup, restore and verification
//	RetentionManager - Lists, locates and prunes archives
//	Scheduler        - Drives periodic backups
//	Config           - Layered configuration (defaults, YAML, environment)
//
// # Archive Format
//
// Each archive is a single file:
//
//	[4 bytes, big-endian u32]  metadata length
//	[N bytes, UTF-8 JSON]      archive metadata
//	[remaining bytes]          encrypt(compress(snapshot))
//
// The metadata block carries provenance, the plaintext checksum, and the
// key derivation parameters, so archives can be listed without the
// passphrase and stay restorable after a configuration change.
//
// # Safety Properties
//
// A restore never touches the live target until the payload has been
// authenticated, decompressed and checksum-verified in memory. The
// previous target contents survive as a rollback copy beside the target.
// Archives become visible in the backup directory only via atomic rename,
// so a crashed backup can never be mistaken for a complete one.
//
// # Usage
//
// Basic usage:
//
//	cfg, err := backup.LoadConfig("")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	engine, err := backup.NewEngine(cfg, store.NewFileStore(cfg.DataFile))
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	summary, err := engine.CreateBackup(ctx, backup.TriggerManual, "before migration", nil)
package backup
