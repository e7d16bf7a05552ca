// Package session holds the unlocked encryption secret for the lifetime
// of a login session. The secret lives in a memguard enclave (encrypted
// at rest in memory) and is wiped on logout; it is never persisted, so a
// process restart always requires re-authentication.
package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/awnumar/memguard"

	"github.com/oriolbns/despesa/crypto"
)

// MinSecretLength is the shortest secret accepted at login.
const MinSecretLength = 8

var (
	// ErrNotAuthenticated is returned when no session is active.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrSecretTooShort is returned by Login for secrets under
	// MinSecretLength characters.
	ErrSecretTooShort = fmt.Errorf("secret must be at least %d characters", MinSecretLength)

	// ErrSecretUnavailable indicates a degraded session: authenticated
	// but the secret enclave cannot be opened. Callers must fail fast
	// rather than fall back to plaintext.
	ErrSecretUnavailable = errors.New("session secret unavailable")
)

// Gate guards access to the session secret. The zero value is a valid,
// logged-out gate. Authentication state and secret presence are tracked
// separately, but Login sets both and Logout clears both.
type Gate struct {
	mu            sync.Mutex
	secret        *memguard.Enclave
	authenticated bool
}

// NewGate returns a logged-out Gate.
func NewGate() *Gate {
	return &Gate{}
}

// Login stores the secret and marks the session authenticated. The
// secret is moved into an enclave; the caller should not retain copies.
func (g *Gate) Login(secret string) error {
	if len(secret) < MinSecretLength {
		return ErrSecretTooShort
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.secret = memguard.NewEnclave([]byte(secret))
	g.authenticated = true
	return nil
}

// Logout clears both the authentication flag and the secret.
func (g *Gate) Logout() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.secret = nil
	g.authenticated = false
}

// Authenticated reports whether a session is active.
func (g *Gate) Authenticated() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.authenticated
}

// Secret returns the session secret, for flows that need the raw value
// rather than the derived key (e.g. sealing it into the credential
// vault at biometric enrollment).
func (g *Gate) Secret() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.authenticated {
		return "", ErrNotAuthenticated
	}
	if g.secret == nil {
		return "", ErrSecretUnavailable
	}

	buf, err := g.secret.Open()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSecretUnavailable, err)
	}
	defer buf.Destroy()

	return string(buf.Bytes()), nil
}

// Key derives the document encryption key from the session secret.
// It fails with ErrNotAuthenticated when logged out and with
// ErrSecretUnavailable when the session is degraded (authenticated flag
// set but no recoverable secret).
func (g *Gate) Key() ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.authenticated {
		return nil, ErrNotAuthenticated
	}
	if g.secret == nil {
		return nil, ErrSecretUnavailable
	}

	buf, err := g.secret.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSecretUnavailable, err)
	}
	defer buf.Destroy()

	return crypto.DeriveKey(string(buf.Bytes())), nil
}
