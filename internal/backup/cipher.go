// Tillvault - Retail Inventory & Sales Management
// Copyright 2026 The Tillvault Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tillvault/tillvault

// Cipher implementations for archive payloads.
//
// Encryption Algorithm:
//   - AES-256-GCM (authenticated encryption)
//   - 12-byte random nonce per archive, never reused with the same key
//   - 16-byte authentication tag, stored in the archive metadata
//
// Decryption always uses the AEAD's combined open-and-verify. There is no
// separate verify step, so a wrong key and tampered ciphertext are
// indistinguishable in both result and timing.

package backup

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
)

const (
	// NonceSize is the GCM nonce size in bytes.
	NonceSize = 12

	// TagSize is the GCM authentication tag size in bytes.
	TagSize = 16
)

// Cipher encrypts and decrypts archive payloads. Implementations must treat
// every Encrypt call as requiring a fresh nonce.
type Cipher interface {
	// Encrypt seals plaintext under a fresh random nonce and returns the
	// nonce, the ciphertext, and the authentication tag separately.
	Encrypt(plaintext []byte) (nonce, ciphertext, tag []byte, err error)

	// Decrypt opens the ciphertext, verifying the tag. Returns
	// ErrAuthenticationFailed on any mismatch.
	Decrypt(nonce, ciphertext, tag []byte) ([]byte, error)
}

// aeadCipher is the AES-256-GCM Cipher.
type aeadCipher struct {
	aead cipher.AEAD
}

// NewAESGCM returns a Cipher using AES-256-GCM with the given 32-byte key.
func NewAESGCM(key []byte) (Cipher, error) {
	if len(key) != KeyLength {
		return nil, fmt.Errorf("invalid key length: got %d, want %d", len(key), KeyLength)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &aeadCipher{aead: gcm}, nil
}

func (c *aeadCipher) Encrypt(plaintext []byte) ([]byte, []byte, []byte, error) {
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Seal appends the tag to the ciphertext; split it off so the tag can
	// live in the metadata block.
	sealed := c.aead.Seal(nil, nonce, plaintext, nil)
	split := len(sealed) - TagSize

	return nonce, sealed[:split], sealed[split:], nil
}

func (c *aeadCipher) Decrypt(nonce, ciphertext, tag []byte) ([]byte, error) {
	if len(nonce) != NonceSize {
		return nil, fmt.Errorf("%w: bad nonce length %d", ErrAuthenticationFailed, len(nonce))
	}
	if len(tag) != TagSize {
		return nil, fmt.Errorf("%w: bad tag length %d", ErrAuthenticationFailed, len(tag))
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	return plaintext, nil
}

// unavailableCipher fails every operation. It stands in when no passphrase
// is configured so a request for an encrypted archive fails loudly instead
// of silently writing plaintext.
type unavailableCipher struct{}

// NewUnavailableCipher returns a Cipher whose every call fails with
// ErrEncryptionUnavailable.
func NewUnavailableCipher() Cipher {
	return unavailableCipher{}
}

func (unavailableCipher) Encrypt([]byte) ([]byte, []byte, []byte, error) {
	return nil, nil, nil, ErrEncryptionUnavailable
}

func (unavailableCipher) Decrypt([]byte, []byte, []byte) ([]byte, error) {
	return nil, ErrEncryptionUnavailable
}
