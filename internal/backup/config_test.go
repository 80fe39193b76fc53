// Tillvault - Retail Inventory & Sales Management
// Copyright 2026 The Tillvault Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tillvault/tillvault

package backup

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestDefaultConfig tests the default configuration values
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if !cfg.Enabled {
		t.Error("expected Enabled=true")
	}
	if !cfg.Compression.Enabled {
		t.Error("expected compression enabled")
	}
	if cfg.Compression.Algorithm != AlgorithmGzip {
		t.Errorf("expected gzip, got %s", cfg.Compression.Algorithm)
	}
	if cfg.Compression.Level != 6 {
		t.Errorf("expected level 6, got %d", cfg.Compression.Level)
	}
	if cfg.Encryption.Enabled {
		t.Error("encryption should be off until a passphrase is configured")
	}
	if cfg.Encryption.Iterations != DefaultKDFIterations {
		t.Errorf("expected %d iterations, got %d", DefaultKDFIterations, cfg.Encryption.Iterations)
	}
	if cfg.Retention.MaxCount != 30 {
		t.Errorf("expected MaxCount=30, got %d", cfg.Retention.MaxCount)
	}
	if cfg.Retention.MaxAgeDays != 90 {
		t.Errorf("expected MaxAgeDays=90, got %d", cfg.Retention.MaxAgeDays)
	}
	if cfg.Schedule.Enabled {
		t.Error("scheduling should be off by default")
	}
	if cfg.Schedule.Interval != 24*time.Hour {
		t.Errorf("expected 24h interval, got %s", cfg.Schedule.Interval)
	}
}

// TestConfigValidation tests validation rules
func TestConfigValidation(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.BackupDir = "/var/lib/tillvault/backups"
		cfg.DataFile = "/var/lib/tillvault/data.db"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(*Config) {}, false},
		{"disabled skips validation", func(c *Config) {
			c.Enabled = false
			c.BackupDir = ""
			c.DataFile = ""
		}, false},
		{"missing backup dir", func(c *Config) { c.BackupDir = "" }, true},
		{"missing data file", func(c *Config) { c.DataFile = "" }, true},
		{"bad compression algorithm", func(c *Config) { c.Compression.Algorithm = "brotli" }, true},
		{"gzip level too high", func(c *Config) { c.Compression.Level = 12 }, true},
		{"zstd ignores level", func(c *Config) {
			c.Compression.Algorithm = AlgorithmZstd
			c.Compression.Level = 0
		}, false},
		{"encryption without passphrase", func(c *Config) { c.Encryption.Enabled = true }, true},
		{"encryption with passphrase", func(c *Config) {
			c.Encryption.Enabled = true
			c.Encryption.Passphrase = "Tr0ub4dor&3"
		}, false},
		{"negative retention", func(c *Config) { c.Retention.MaxCount = -1 }, true},
		{"schedule interval too short", func(c *Config) {
			c.Schedule.Enabled = true
			c.Schedule.Interval = 30 * time.Second
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

// TestLoadConfigFromFile tests the YAML layer over defaults
func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "tillvault.yaml")
	content := []byte(`
enabled: true
data_file: /var/lib/tillvault/data.db
backup_dir: /var/lib/tillvault/backups
compression:
  algorithm: zstd
retention:
  max_count: 7
`)
	if err := os.WriteFile(yamlPath, content, 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadConfig(yamlPath)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Compression.Algorithm != AlgorithmZstd {
		t.Errorf("expected zstd from file, got %s", cfg.Compression.Algorithm)
	}
	if cfg.Retention.MaxCount != 7 {
		t.Errorf("expected max_count 7 from file, got %d", cfg.Retention.MaxCount)
	}
	// Defaults below the file still apply.
	if cfg.Retention.MaxAgeDays != 90 {
		t.Errorf("expected default MaxAgeDays=90, got %d", cfg.Retention.MaxAgeDays)
	}
}

// TestLoadConfigEnvOverride tests that environment wins over the file
func TestLoadConfigEnvOverride(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "tillvault.yaml")
	content := []byte(`
data_file: /var/lib/tillvault/data.db
backup_dir: /var/lib/tillvault/backups
retention:
  max_count: 7
`)
	if err := os.WriteFile(yamlPath, content, 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("TILLVAULT_RETENTION_MAX_COUNT", "3")
	t.Setenv("TILLVAULT_COMPRESSION_ALGORITHM", "zstd")

	cfg, err := LoadConfig(yamlPath)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Retention.MaxCount != 3 {
		t.Errorf("expected env max_count 3, got %d", cfg.Retention.MaxCount)
	}
	if cfg.Compression.Algorithm != AlgorithmZstd {
		t.Errorf("expected env algorithm zstd, got %s", cfg.Compression.Algorithm)
	}
}

// TestEnvTransform tests the environment variable mapping
func TestEnvTransform(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"TILLVAULT_BACKUP_DIR", "backup_dir"},
		{"TILLVAULT_COMPRESSION_LEVEL", "compression.level"},
		{"TILLVAULT_ENCRYPTION_PASSPHRASE", "encryption.passphrase"},
		{"TILLVAULT_SCHEDULE_INTERVAL", "schedule.interval"},
		{"TILLVAULT_UNRELATED_THING", ""},
	}

	for _, tt := range tests {
		if got := envTransformFunc(tt.in); got != tt.want {
			t.Errorf("envTransformFunc(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// TestCryptoSettingsRoundTrip tests save and load of persisted settings
func TestCryptoSettingsRoundTrip(t *testing.T) {
	dir := t.TempDir()

	salt, err := NewSalt()
	if err != nil {
		t.Fatalf("NewSalt failed: %v", err)
	}
	settings := &CryptoSettings{
		EncryptionEnabled: true,
		KDF:               kdfName,
		Salt:              salt,
		Iterations:        DefaultKDFIterations,
	}
	if err := settings.Save(dir); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadCryptoSettings(dir)
	if err != nil {
		t.Fatalf("LoadCryptoSettings failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected settings, got nil")
	}
	if !loaded.EncryptionEnabled {
		t.Error("expected encryption enabled")
	}
	if !bytes.Equal(loaded.Salt, salt) {
		t.Error("salt did not survive the round trip")
	}
	if loaded.Iterations != DefaultKDFIterations {
		t.Errorf("expected %d iterations, got %d", DefaultKDFIterations, loaded.Iterations)
	}
}

// TestLoadCryptoSettingsMissing tests the first-run case
func TestLoadCryptoSettingsMissing(t *testing.T) {
	settings, err := LoadCryptoSettings(t.TempDir())
	if err != nil {
		t.Fatalf("LoadCryptoSettings failed: %v", err)
	}
	if settings != nil {
		t.Error("expected nil settings for missing file")
	}
}

// TestLoadCryptoSettingsRejectsUnknownKDF tests KDF validation
func TestLoadCryptoSettingsRejectsUnknownKDF(t *testing.T) {
	dir := t.TempDir()
	salt, _ := NewSalt()
	settings := &CryptoSettings{
		EncryptionEnabled: true,
		KDF:               "scrypt",
		Salt:              salt,
		Iterations:        1000,
	}
	if err := settings.Save(dir); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := LoadCryptoSettings(dir); err == nil {
		t.Error("expected error for unknown kdf")
	}
}

// TestRetentionDeleteError tests the aggregate error message
func TestRetentionDeleteError(t *testing.T) {
	err := &RetentionDeleteError{Failures: []DeleteFailure{
		{Name: "a.bak", Err: errors.New("permission denied")},
		{Name: "b.bak", Err: errors.New("busy")},
	}}

	msg := err.Error()
	if msg == "" {
		t.Fatal("expected non-empty message")
	}
	for _, want := range []string{"2", "a.bak", "b.bak"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
}
