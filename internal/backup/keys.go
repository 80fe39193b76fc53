// Tillvault - Retail Inventory & Sales Management
// Copyright 2026 The Tillvault Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tillvault/tillvault

package backup

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// SaltLength is the fixed length of the persisted KDF salt.
	SaltLength = 16

	// KeyLength is the derived key length (AES-256).
	KeyLength = 32

	// DefaultKDFIterations is the default PBKDF2 iteration count.
	DefaultKDFIterations = 200_000

	// MinPassphraseLength is the shortest passphrase accepted when
	// enabling encryption.
	MinPassphraseLength = 8
)

// CheckPassphrase rejects passphrases below the minimum length.
func CheckPassphrase(passphrase string) error {
	if len(passphrase) < MinPassphraseLength {
		return fmt.Errorf("%w: need at least %d characters", ErrWeakPassphrase, MinPassphraseLength)
	}
	return nil
}

// NewSalt returns SaltLength bytes from a cryptographically strong source.
// A salt is generated once per backup configuration, not per archive, so the
// same passphrase re-derives the same key across process restarts.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// DeriveKey derives a 256-bit key from a passphrase and salt using
// PBKDF2-HMAC-SHA256. Deterministic for identical inputs; the derived key is
// held only in process memory and never persisted.
func DeriveKey(passphrase string, salt []byte, iterations int) ([]byte, error) {
	if err := CheckPassphrase(passphrase); err != nil {
		return nil, err
	}
	if len(salt) != SaltLength {
		return nil, fmt.Errorf("invalid salt length: got %d, want %d", len(salt), SaltLength)
	}
	if iterations <= 0 {
		iterations = DefaultKDFIterations
	}

	return pbkdf2.Key([]byte(passphrase), salt, iterations, KeyLength, sha256.New), nil
}
