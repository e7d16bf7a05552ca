// Package vault gates access to the user's symmetric secret behind a
// platform biometric credential. Enrollment creates a device-bound
// public-key credential and seals the secret under a key derived from
// the credential's ID; a successful assertion unseals it, so the user
// can unlock a session without typing the secret again.
package vault

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/protocol/webauthncose"

	"github.com/oriolbns/despesa/crypto"
)

var (
	// ErrUnsupported means the platform has no usable biometric
	// authenticator.
	ErrUnsupported = errors.New("platform authenticator not available")

	// ErrOffline means the connectivity check failed. Enrollment
	// requires the same network the remote store needs, since the
	// unsealed secret is used for remote I/O immediately afterwards.
	ErrOffline = errors.New("network unavailable")

	// ErrNoCredential means no credential is enrolled for the username.
	ErrNoCredential = errors.New("no credential registered")

	// ErrCredentialInvalid means the stored credential is no longer
	// usable and has been removed; the user must enroll again.
	ErrCredentialInvalid = errors.New("credential no longer valid, re-registration required")
)

const (
	challengeSize = 32

	defaultRPID          = "localhost"
	defaultRPName        = "Despesa"
	defaultCreateTimeout = 30 * time.Second
	defaultAssertTimeout = 10 * time.Second
)

// Vault manages biometric enrollment and secret recovery.
type Vault struct {
	auth  Authenticator
	creds CredentialStore

	rpID          string
	rpName        string
	createTimeout time.Duration
	assertTimeout time.Duration
	online        func(ctx context.Context) error
}

// Option configures a Vault.
type Option func(*Vault)

// WithRelyingParty sets the relying party identity bound into new
// credentials.
func WithRelyingParty(id, name string) Option {
	return func(v *Vault) {
		v.rpID = id
		v.rpName = name
	}
}

// WithTimeouts overrides the ceremony timeouts for enrollment and
// assertion.
func WithTimeouts(create, assert time.Duration) Option {
	return func(v *Vault) {
		v.createTimeout = create
		v.assertTimeout = assert
	}
}

// WithConnectivityCheck installs a probe run before enrollment. When nil
// (the default) no connectivity check is performed.
func WithConnectivityCheck(check func(ctx context.Context) error) Option {
	return func(v *Vault) {
		v.online = check
	}
}

// New creates a Vault over the given platform authenticator and
// credential store.
func New(auth Authenticator, creds CredentialStore, opts ...Option) *Vault {
	v := &Vault{
		auth:          auth,
		creds:         creds,
		rpID:          defaultRPID,
		rpName:        defaultRPName,
		createTimeout: defaultCreateTimeout,
		assertTimeout: defaultAssertTimeout,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// CheckCapability probes the platform for biometric support. It never
// fails; any probe error is reported as an unsupported platform.
func (v *Vault) CheckCapability(ctx context.Context) Capability {
	return v.auth.Capability(ctx)
}

// Register enrolls a biometric credential for username and seals secret
// under it. An existing credential for the same username is replaced.
func (v *Vault) Register(ctx context.Context, username, secret string) (string, error) {
	capability := v.auth.Capability(ctx)
	if !capability.Supported || !capability.PlatformAuthenticator {
		if capability.Reason != "" {
			return "", fmt.Errorf("%w: %s", ErrUnsupported, capability.Reason)
		}
		return "", ErrUnsupported
	}
	if v.online != nil {
		if err := v.online(ctx); err != nil {
			return "", fmt.Errorf("%w: %v", ErrOffline, err)
		}
	}

	challenge, err := crypto.RandomBytes(challengeSize)
	if err != nil {
		return "", fmt.Errorf("generating challenge: %w", err)
	}

	opts := &protocol.PublicKeyCredentialCreationOptions{
		Challenge: challenge,
		RelyingParty: protocol.RelyingPartyEntity{
			CredentialEntity: protocol.CredentialEntity{Name: v.rpName},
			ID:               v.rpID,
		},
		User: protocol.UserEntity{
			CredentialEntity: protocol.CredentialEntity{Name: username},
			DisplayName:      username,
			ID:               []byte(username),
		},
		Parameters: []protocol.CredentialParameter{
			{Type: protocol.PublicKeyCredentialType, Algorithm: webauthncose.AlgES256},
			{Type: protocol.PublicKeyCredentialType, Algorithm: webauthncose.AlgRS256},
		},
		AuthenticatorSelection: protocol.AuthenticatorSelection{
			AuthenticatorAttachment: protocol.Platform,
			ResidentKey:             protocol.ResidentKeyRequirementDiscouraged,
			UserVerification:        protocol.VerificationRequired,
		},
		Attestation: protocol.PreferNoAttestation,
		Timeout:     int(v.createTimeout.Milliseconds()),
	}

	ctx, cancel := context.WithTimeout(ctx, v.createTimeout)
	defer cancel()

	credentialID, err := v.auth.Create(ctx, opts)
	if err != nil {
		return "", fmt.Errorf("creating credential: %w", err)
	}

	sealed, err := crypto.Encrypt([]byte(secret), crypto.DeriveCredentialKey(credentialID))
	if err != nil {
		return "", fmt.Errorf("sealing secret: %w", err)
	}

	cred := StoredCredential{
		CredentialID:    credentialID,
		Username:        username,
		CreatedAt:       time.Now().UTC(),
		EncryptedSecret: sealed,
	}
	if err := v.creds.Put(cred); err != nil {
		return "", fmt.Errorf("storing credential: %w", err)
	}
	return credentialID, nil
}

// Authenticate runs a biometric assertion for username and returns the
// unsealed secret. When the platform reports the credential as no longer
// usable, the local record is removed before ErrCredentialInvalid is
// returned so the next attempt starts from a clean slate.
func (v *Vault) Authenticate(ctx context.Context, username string) (string, error) {
	cred, err := v.creds.Get(username)
	if err != nil {
		return "", err
	}

	rawID, err := base64.RawURLEncoding.DecodeString(cred.CredentialID)
	if err != nil {
		return "", fmt.Errorf("decoding stored credential id: %w", err)
	}

	challenge, err := crypto.RandomBytes(challengeSize)
	if err != nil {
		return "", fmt.Errorf("generating challenge: %w", err)
	}

	opts := &protocol.PublicKeyCredentialRequestOptions{
		Challenge:      challenge,
		RelyingPartyID: v.rpID,
		AllowedCredentials: []protocol.CredentialDescriptor{{
			Type:         protocol.PublicKeyCredentialType,
			CredentialID: rawID,
			Transport:    []protocol.AuthenticatorTransport{protocol.Internal},
		}},
		UserVerification: protocol.VerificationRequired,
		Timeout:          int(v.assertTimeout.Milliseconds()),
	}

	ctx, cancel := context.WithTimeout(ctx, v.assertTimeout)
	defer cancel()

	assertedID, err := v.auth.Assert(ctx, opts)
	if err != nil {
		if credentialGone(err) {
			v.creds.Delete(username)
			return "", fmt.Errorf("%w: %v", ErrCredentialInvalid, err)
		}
		return "", fmt.Errorf("asserting credential: %w", err)
	}

	secret, err := crypto.Decrypt(cred.EncryptedSecret, crypto.DeriveCredentialKey(assertedID))
	if err != nil {
		// The platform verified the user but the sealed secret does not
		// open under the asserted credential's key. The record is stale.
		v.creds.Delete(username)
		return "", fmt.Errorf("%w: sealed secret does not match credential", ErrCredentialInvalid)
	}
	return string(secret), nil
}

// CheckCredentialHealth reports whether username has an enrolled
// credential whose sealed secret is still recoverable on this platform.
// It never prompts the user; callers use it to decide whether to offer
// biometric login at all.
func (v *Vault) CheckCredentialHealth(ctx context.Context, username string) bool {
	capability := v.auth.Capability(ctx)
	if !capability.Supported || !capability.PlatformAuthenticator {
		return false
	}
	cred, err := v.creds.Get(username)
	if err != nil || len(cred.EncryptedSecret) == 0 {
		return false
	}
	_, err = crypto.Decrypt(cred.EncryptedSecret, crypto.DeriveCredentialKey(cred.CredentialID))
	return err == nil
}

// RemoveCredential deletes the stored credential for username, if any.
func (v *Vault) RemoveCredential(username string) error {
	return v.creds.Delete(username)
}
