// Package codec converts domain documents to and from the text form
// persisted in the remote store: JSON, optionally encrypted and
// base64-encoded.
//
// Reads auto-detect the stored format by peeking at the first character.
// This keeps the store able to read documents written before encryption
// was enabled, but it is a known sharp edge: plaintext legacy content is
// parsed as-is even when a secret is configured, which can mask a
// misconfiguration. The behavior is preserved deliberately for
// compatibility with documents already at rest.
package codec

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/oriolbns/despesa/crypto"
)

// ErrFormat is returned when stored content is neither valid plaintext
// JSON nor a decryptable blob.
var ErrFormat = errors.New("unrecognized document format")

// ErrSecretRequired is returned when content looks encrypted but no key
// was supplied.
var ErrSecretRequired = errors.New("content appears encrypted but no secret is configured")

// Prepare serializes doc for storage. With a non-nil key the JSON is
// encrypted and base64-encoded; with a nil key it is stored as indented
// plaintext JSON (public-repo deployments).
func Prepare(doc any, key []byte) (string, error) {
	if key == nil {
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encoding document: %w", err)
		}
		return string(data), nil
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encoding document: %w", err)
	}
	blob, err := crypto.Encrypt(data, key)
	if err != nil {
		return "", fmt.Errorf("encrypting document: %w", err)
	}
	return base64.StdEncoding.EncodeToString(blob), nil
}

// Parse decodes stored content into out. Content starting with '{' or
// '[' is treated as plaintext JSON and never decrypted. Anything else is
// base64-decoded and decrypted; if that fails the content gets one last
// chance as plain JSON before Parse reports ErrFormat.
func Parse(content string, key []byte, out any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return fmt.Errorf("empty content: %w", ErrFormat)
	}

	if trimmed[0] == '{' || trimmed[0] == '[' {
		if err := json.Unmarshal([]byte(trimmed), out); err != nil {
			return fmt.Errorf("parsing JSON document: %w: %v", ErrFormat, err)
		}
		return nil
	}

	if key == nil {
		return ErrSecretRequired
	}

	if plaintext, err := decryptText(trimmed, key); err == nil {
		if err := json.Unmarshal(plaintext, out); err != nil {
			return fmt.Errorf("parsing decrypted document: %w: %v", ErrFormat, err)
		}
		return nil
	}

	// Legacy fallback: plaintext documents that don't start with a JSON
	// bracket (e.g. a bare scalar) still parse here.
	if err := json.Unmarshal([]byte(trimmed), out); err == nil {
		return nil
	}
	return fmt.Errorf("content is neither valid JSON nor decryptable (the configured secret may be wrong): %w", ErrFormat)
}

func decryptText(content string, key []byte) ([]byte, error) {
	// Base64 at rest may carry line breaks inserted by the remote store.
	compact := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, content)

	blob, err := base64.StdEncoding.DecodeString(compact)
	if err != nil {
		return nil, fmt.Errorf("decoding blob: %w", err)
	}
	return crypto.Decrypt(blob, key)
}
