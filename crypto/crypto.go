// Package crypto implements the symmetric primitives used to protect
// ledger documents at rest: a deterministic passphrase-based key
// derivation and an AES-256-GCM authenticated cipher whose blobs carry
// their own nonce.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/text/unicode/norm"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32

	// NonceSize is the GCM nonce length in bytes (96 bits).
	NonceSize = 12

	kdfIterations = 100_000

	// documentSalt is a fixed application-wide salt. It is deliberately
	// constant: the same secret must derive the same key on every device
	// without storing per-user salts. The salt provides domain
	// separation, not brute-force resistance.
	documentSalt = "expense-tracker-salt-v1"

	// credentialSalt separates keys derived from platform credential IDs
	// from keys derived from user secrets.
	credentialSalt = "webauthn-password-encryption-v1"
)

// ErrDecryption is returned whenever a blob cannot be opened. A wrong
// key, a tampered ciphertext, and a truncated blob are indistinguishable
// by construction; callers must treat them identically.
var ErrDecryption = errors.New("decryption failed")

// DeriveKey derives the document encryption key from a user secret.
// It is deterministic: the same secret always yields the same key.
// The secret is NFKD-normalized first so that visually identical
// passphrases typed on different platforms derive the same key.
func DeriveKey(secret string) []byte {
	normalized := norm.NFKD.String(secret)
	return pbkdf2.Key([]byte(normalized), []byte(documentSalt), kdfIterations, KeySize, sha256.New)
}

// DeriveCredentialKey derives the key that protects a secret stored in
// the credential vault. The key material is the platform credential ID,
// so the stored secret is only recoverable while that credential exists.
func DeriveCredentialKey(credentialID string) []byte {
	return pbkdf2.Key([]byte(credentialID), []byte(credentialSalt), kdfIterations, KeySize, sha256.New)
}

// Encrypt seals plaintext with AES-256-GCM under the given key. Every
// call draws a fresh random nonce; the returned blob is nonce followed
// by ciphertext and authentication tag.
func Encrypt(plaintext, key []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("invalid key size: got %d, want %d", len(key), KeySize)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a blob produced by Encrypt. All failure modes collapse
// into ErrDecryption.
func Decrypt(blob, key []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("invalid key size: got %d, want %d", len(key), KeySize)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	if len(blob) < NonceSize {
		return nil, ErrDecryption
	}
	nonce, ciphertext := blob[:NonceSize], blob[NonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryption
	}
	return plaintext, nil
}

// RandomBytes returns n cryptographically random bytes.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generating random bytes: %w", err)
	}
	return b, nil
}
