// Tillvault - Retail Inventory & Sales Management
// Copyright 2026 The Tillvault Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tillvault/tillvault

package backup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Config holds all backup engine configuration. It is constructed once at
// startup and passed into the engine; there is no ambient mutable state.
type Config struct {
	// Enable backup functionality
	Enabled bool `koanf:"enabled"`

	// Path to the application data file that gets snapshotted
	DataFile string `koanf:"data_file"`

	// Directory to store archives
	BackupDir string `koanf:"backup_dir"`

	// Compression settings
	Compression CompressionConfig `koanf:"compression"`

	// Encryption settings
	Encryption EncryptionConfig `koanf:"encryption"`

	// Retention policy
	Retention RetentionPolicy `koanf:"retention"`

	// Schedule configuration
	Schedule ScheduleConfig `koanf:"schedule"`
}

// CompressionConfig defines compression settings for archives.
type CompressionConfig struct {
	// Enable compression
	Enabled bool `koanf:"enabled"`

	// Compression algorithm (gzip, zstd)
	Algorithm string `koanf:"algorithm"`

	// Compression level (1-9, gzip only)
	Level int `koanf:"level"`
}

// EncryptionConfig defines encryption settings. The passphrase is supplied
// at runtime (environment or prompt) and is never written to disk; only the
// salt and iteration count are persisted, in the crypto settings file.
type EncryptionConfig struct {
	// Enable encryption
	Enabled bool `koanf:"enabled"`

	// Passphrase for key derivation
	Passphrase string `koanf:"passphrase"`

	// PBKDF2 iteration count
	Iterations int `koanf:"iterations"`
}

// DefaultConfig returns a Config with sensible defaults. Defaults are
// applied first, then overridden by config file and environment variables.
func DefaultConfig() *Config {
	return &Config{
		Enabled:   true,
		DataFile:  "",
		BackupDir: "",
		Compression: CompressionConfig{
			Enabled:   true,
			Algorithm: AlgorithmGzip,
			Level:     6,
		},
		Encryption: EncryptionConfig{
			Enabled:    false,
			Passphrase: "",
			Iterations: DefaultKDFIterations,
		},
		Retention: DefaultRetentionPolicy(),
		Schedule:  DefaultScheduleConfig(),
	}
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "TILLVAULT_CONFIG"

// DefaultConfigPaths lists where config files are searched, in order.
var DefaultConfigPaths = []string{
	"tillvault.yaml",
	"tillvault.yml",
	"/etc/tillvault/tillvault.yaml",
}

// LoadConfig loads configuration by layering struct defaults, an optional
// YAML file, and TILLVAULT_* environment variables (highest priority).
func LoadConfig(path string) (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	if err := k.Load(structs.Provider(DefaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file (optional)
	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// Layer 3: environment variables
	if err := k.Load(env.Provider("TILLVAULT_", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first config file that exists, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps TILLVAULT_* environment variables to config paths.
// Unmapped variables are skipped so stray environment does not pollute the
// configuration.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, "TILLVAULT_"))

	envMappings := map[string]string{
		"enabled":    "enabled",
		"data_file":  "data_file",
		"backup_dir": "backup_dir",

		"compression_enabled":   "compression.enabled",
		"compression_algorithm": "compression.algorithm",
		"compression_level":     "compression.level",

		"encryption_enabled":    "encryption.enabled",
		"encryption_passphrase": "encryption.passphrase",
		"encryption_iterations": "encryption.iterations",

		"retention_max_count": "retention.max_count",
		"retention_max_days":  "retention.max_age_days",

		"schedule_enabled":  "schedule.enabled",
		"schedule_interval": "schedule.interval",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil // Nothing to validate if backups are disabled
	}

	if c.BackupDir == "" {
		return errors.New("backup_dir is required when backups are enabled")
	}
	if c.DataFile == "" {
		return errors.New("data_file is required when backups are enabled")
	}

	if c.Compression.Enabled {
		if c.Compression.Algorithm != AlgorithmGzip && c.Compression.Algorithm != AlgorithmZstd {
			return fmt.Errorf("compression.algorithm must be one of: gzip, zstd; got %q", c.Compression.Algorithm)
		}
		if c.Compression.Algorithm == AlgorithmGzip && (c.Compression.Level < 1 || c.Compression.Level > 9) {
			return fmt.Errorf("compression.level must be between 1 and 9, got %d", c.Compression.Level)
		}
	}

	if c.Encryption.Enabled {
		if err := CheckPassphrase(c.Encryption.Passphrase); err != nil {
			return err
		}
		if c.Encryption.Iterations < 0 {
			return fmt.Errorf("encryption.iterations must not be negative, got %d", c.Encryption.Iterations)
		}
	}

	if c.Retention.MaxCount < 0 || c.Retention.MaxAgeDays < 0 {
		return errors.New("retention limits must not be negative")
	}

	if c.Schedule.Enabled && c.Schedule.Interval < time.Minute {
		return fmt.Errorf("schedule.interval must be at least 1 minute, got %s", c.Schedule.Interval)
	}

	return nil
}

// EnsureBackupDir creates the backup directory if it doesn't exist.
func (c *Config) EnsureBackupDir() error {
	if err := os.MkdirAll(c.BackupDir, 0o750); err != nil {
		return fmt.Errorf("failed to create backup directory %s: %w", c.BackupDir, err)
	}
	return nil
}

// cryptoSettingsFile is the name of the persisted encryption settings file
// inside the backup directory.
const cryptoSettingsFile = "encryption.json"

// kdfName is the only key derivation function this build writes or accepts.
const kdfName = "PBKDF2-HMAC-SHA256"

// CryptoSettings is the encryption configuration persisted beside the
// archives: everything needed to re-derive the key except the passphrase.
// Written once, when encryption is first enabled.
type CryptoSettings struct {
	EncryptionEnabled bool   `json:"encryption_enabled"`
	KDF               string `json:"kdf"`
	Salt              []byte `json:"salt"`
	Iterations        int    `json:"iterations"`
}

// LoadCryptoSettings reads the persisted settings from the backup
// directory. Returns (nil, nil) when the file does not exist yet.
func LoadCryptoSettings(dir string) (*CryptoSettings, error) {
	data, err := os.ReadFile(filepath.Join(dir, cryptoSettingsFile)) //nolint:gosec // G304: path is the configured backup directory
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read crypto settings: %w", err)
	}

	var s CryptoSettings
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse crypto settings: %w", err)
	}

	if s.EncryptionEnabled {
		if s.KDF != kdfName {
			return nil, fmt.Errorf("unsupported kdf %q in crypto settings", s.KDF)
		}
		if len(s.Salt) != SaltLength {
			return nil, fmt.Errorf("invalid salt length %d in crypto settings", len(s.Salt))
		}
	}

	return &s, nil
}

// Save persists the settings to the backup directory with restricted
// permissions.
func (s *CryptoSettings) Save(dir string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal crypto settings: %w", err)
	}

	path := filepath.Join(dir, cryptoSettingsFile)
	if err := os.WriteFile(path, data, 0o600); err != nil { //nolint:gosec // Settings file permissions are intentionally restricted
		return fmt.Errorf("failed to write crypto settings: %w", err)
	}
	return nil
}
