package vault

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
)

// fakeAuthenticator scripts the platform boundary for tests. It hands out
// a fixed credential ID on Create and echoes a configurable ID on Assert.
type fakeAuthenticator struct {
	capability Capability

	createID  string
	createErr error

	assertID  string
	assertErr error

	lastCreate *protocol.PublicKeyCredentialCreationOptions
	lastAssert *protocol.PublicKeyCredentialRequestOptions
	assertCalls int
}

func (f *fakeAuthenticator) Capability(context.Context) Capability { return f.capability }

func (f *fakeAuthenticator) Create(_ context.Context, opts *protocol.PublicKeyCredentialCreationOptions) (string, error) {
	f.lastCreate = opts
	if f.createErr != nil {
		return "", f.createErr
	}
	return f.createID, nil
}

func (f *fakeAuthenticator) Assert(_ context.Context, opts *protocol.PublicKeyCredentialRequestOptions) (string, error) {
	f.lastAssert = opts
	f.assertCalls++
	if f.assertErr != nil {
		return "", f.assertErr
	}
	return f.assertID, nil
}

func platformCapable() Capability {
	return Capability{Supported: true, PlatformAuthenticator: true}
}

func testCredentialID() string {
	return base64.RawURLEncoding.EncodeToString([]byte("test-credential-0001"))
}

func TestRegisterUnsupportedPlatform(t *testing.T) {
	auth := &fakeAuthenticator{capability: Capability{Supported: true}}
	v := New(auth, NewMemoryCredentialStore())

	if _, err := v.Register(context.Background(), "oriol", "correct-horse-battery"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}

func TestRegisterOffline(t *testing.T) {
	auth := &fakeAuthenticator{capability: platformCapable(), createID: testCredentialID()}
	v := New(auth, NewMemoryCredentialStore(),
		WithConnectivityCheck(func(context.Context) error {
			return errors.New("no route to host")
		}))

	if _, err := v.Register(context.Background(), "oriol", "correct-horse-battery"); !errors.Is(err, ErrOffline) {
		t.Errorf("expected ErrOffline, got %v", err)
	}
}

func TestRegisterStoresSealedSecret(t *testing.T) {
	auth := &fakeAuthenticator{capability: platformCapable(), createID: testCredentialID()}
	creds := NewMemoryCredentialStore()
	v := New(auth, creds, WithRelyingParty("despesa.example", "Despesa"))

	id, err := v.Register(context.Background(), "oriol", "correct-horse-battery")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if id != testCredentialID() {
		t.Errorf("unexpected credential id %q", id)
	}

	stored, err := creds.Get("oriol")
	if err != nil {
		t.Fatalf("credential not stored: %v", err)
	}
	if stored.CredentialID != id || stored.Username != "oriol" {
		t.Errorf("unexpected stored credential %+v", stored)
	}
	if len(stored.EncryptedSecret) == 0 {
		t.Fatal("secret not sealed into stored credential")
	}
	if string(stored.EncryptedSecret) == "correct-horse-battery" {
		t.Error("secret stored in plaintext")
	}
	if stored.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func TestRegisterCeremonyOptions(t *testing.T) {
	auth := &fakeAuthenticator{capability: platformCapable(), createID: testCredentialID()}
	v := New(auth, NewMemoryCredentialStore(), WithRelyingParty("despesa.example", "Despesa"))

	if _, err := v.Register(context.Background(), "oriol", "correct-horse-battery"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	opts := auth.lastCreate
	if opts == nil {
		t.Fatal("Create never called")
	}
	if len(opts.Challenge) != challengeSize {
		t.Errorf("challenge length = %d, want %d", len(opts.Challenge), challengeSize)
	}
	if opts.RelyingParty.ID != "despesa.example" || opts.RelyingParty.Name != "Despesa" {
		t.Errorf("unexpected relying party %+v", opts.RelyingParty)
	}
	if opts.AuthenticatorSelection.AuthenticatorAttachment != protocol.Platform {
		t.Error("platform attachment not requested")
	}
	if opts.AuthenticatorSelection.UserVerification != protocol.VerificationRequired {
		t.Error("user verification not required")
	}
	if opts.Attestation != protocol.PreferNoAttestation {
		t.Errorf("unexpected attestation preference %q", opts.Attestation)
	}
	if len(opts.Parameters) != 2 {
		t.Errorf("expected 2 credential parameters, got %d", len(opts.Parameters))
	}
	if opts.Timeout != int((30 * time.Second).Milliseconds()) {
		t.Errorf("unexpected timeout %d", opts.Timeout)
	}
}

func TestRegisterReplacesExistingCredential(t *testing.T) {
	auth := &fakeAuthenticator{capability: platformCapable(), createID: testCredentialID()}
	creds := NewMemoryCredentialStore()
	v := New(auth, creds)

	if _, err := v.Register(context.Background(), "oriol", "first-secret"); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}

	auth.createID = base64.RawURLEncoding.EncodeToString([]byte("test-credential-0002"))
	if _, err := v.Register(context.Background(), "oriol", "second-secret"); err != nil {
		t.Fatalf("second Register failed: %v", err)
	}

	stored, err := creds.Get("oriol")
	if err != nil {
		t.Fatalf("credential not stored: %v", err)
	}
	if stored.CredentialID != auth.createID {
		t.Errorf("old credential not replaced, got %q", stored.CredentialID)
	}
}

func TestAuthenticateRecoversSecret(t *testing.T) {
	id := testCredentialID()
	auth := &fakeAuthenticator{capability: platformCapable(), createID: id, assertID: id}
	creds := NewMemoryCredentialStore()
	v := New(auth, creds, WithRelyingParty("despesa.example", "Despesa"))

	if _, err := v.Register(context.Background(), "oriol", "correct-horse-battery"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	secret, err := v.Authenticate(context.Background(), "oriol")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if secret != "correct-horse-battery" {
		t.Errorf("recovered secret = %q", secret)
	}

	opts := auth.lastAssert
	if opts == nil {
		t.Fatal("Assert never called")
	}
	if opts.RelyingPartyID != "despesa.example" {
		t.Errorf("unexpected relying party id %q", opts.RelyingPartyID)
	}
	if len(opts.AllowedCredentials) != 1 {
		t.Fatalf("expected 1 allowed credential, got %d", len(opts.AllowedCredentials))
	}
	allowed := opts.AllowedCredentials[0]
	if base64.RawURLEncoding.EncodeToString(allowed.CredentialID) != id {
		t.Error("allow list does not name the stored credential")
	}
	if opts.UserVerification != protocol.VerificationRequired {
		t.Error("user verification not required")
	}
	if opts.Timeout != int((10 * time.Second).Milliseconds()) {
		t.Errorf("unexpected timeout %d", opts.Timeout)
	}
}

func TestAuthenticateNoCredential(t *testing.T) {
	auth := &fakeAuthenticator{capability: platformCapable()}
	v := New(auth, NewMemoryCredentialStore())

	if _, err := v.Authenticate(context.Background(), "oriol"); !errors.Is(err, ErrNoCredential) {
		t.Errorf("expected ErrNoCredential, got %v", err)
	}
}

func TestAuthenticateInvalidatedCredentialRemoved(t *testing.T) {
	for _, tc := range []struct {
		name string
		err  *PlatformError
	}{
		{"InvalidState", &PlatformError{Name: "InvalidStateError", Message: "The object is in an invalid state"}},
		{"NotAllowed", &PlatformError{Name: "NotAllowedError", Message: "The operation is not allowed"}},
		{"MessageSignature", &PlatformError{Name: "UnknownError", Message: "no matching credential on authenticator"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			id := testCredentialID()
			auth := &fakeAuthenticator{capability: platformCapable(), createID: id, assertID: id}
			creds := NewMemoryCredentialStore()
			v := New(auth, creds)

			if _, err := v.Register(context.Background(), "oriol", "correct-horse-battery"); err != nil {
				t.Fatalf("Register failed: %v", err)
			}

			auth.assertErr = tc.err
			if _, err := v.Authenticate(context.Background(), "oriol"); !errors.Is(err, ErrCredentialInvalid) {
				t.Fatalf("expected ErrCredentialInvalid, got %v", err)
			}

			if _, err := creds.Get("oriol"); !errors.Is(err, ErrNoCredential) {
				t.Error("invalidated credential was not removed")
			}
		})
	}
}

func TestAuthenticateTransientFailureKeepsCredential(t *testing.T) {
	id := testCredentialID()
	auth := &fakeAuthenticator{capability: platformCapable(), createID: id, assertID: id}
	creds := NewMemoryCredentialStore()
	v := New(auth, creds)

	if _, err := v.Register(context.Background(), "oriol", "correct-horse-battery"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	auth.assertErr = errors.New("ceremony interrupted")
	if _, err := v.Authenticate(context.Background(), "oriol"); errors.Is(err, ErrCredentialInvalid) {
		t.Fatal("transient failure must not invalidate the credential")
	}

	if _, err := creds.Get("oriol"); err != nil {
		t.Error("credential removed after transient failure")
	}
}

func TestAuthenticateSealMismatchRemovesCredential(t *testing.T) {
	id := testCredentialID()
	auth := &fakeAuthenticator{capability: platformCapable(), createID: id}
	creds := NewMemoryCredentialStore()
	v := New(auth, creds)

	if _, err := v.Register(context.Background(), "oriol", "correct-horse-battery"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	// The platform asserts a different credential than the one the
	// secret was sealed under.
	auth.assertID = base64.RawURLEncoding.EncodeToString([]byte("test-credential-0002"))
	if _, err := v.Authenticate(context.Background(), "oriol"); !errors.Is(err, ErrCredentialInvalid) {
		t.Fatalf("expected ErrCredentialInvalid, got %v", err)
	}
	if _, err := creds.Get("oriol"); !errors.Is(err, ErrNoCredential) {
		t.Error("mismatched credential was not removed")
	}
}

func TestCheckCredentialHealth(t *testing.T) {
	ctx := context.Background()
	id := testCredentialID()
	auth := &fakeAuthenticator{capability: platformCapable(), createID: id}
	creds := NewMemoryCredentialStore()
	v := New(auth, creds)

	if v.CheckCredentialHealth(ctx, "oriol") {
		t.Error("health check passed with no credential enrolled")
	}

	if _, err := v.Register(ctx, "oriol", "correct-horse-battery"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if !v.CheckCredentialHealth(ctx, "oriol") {
		t.Error("health check failed for a freshly enrolled credential")
	}
	if auth.assertCalls != 0 {
		t.Error("health check must not prompt the user")
	}

	auth.capability = Capability{Supported: true, Reason: "no platform authenticator"}
	if v.CheckCredentialHealth(ctx, "oriol") {
		t.Error("health check passed without platform authenticator support")
	}
	auth.capability = platformCapable()

	stored, _ := creds.Get("oriol")
	stored.EncryptedSecret[0] ^= 0xff
	creds.Put(*stored)
	if v.CheckCredentialHealth(ctx, "oriol") {
		t.Error("health check passed for a corrupted sealed secret")
	}
}

func TestRemoveCredential(t *testing.T) {
	id := testCredentialID()
	auth := &fakeAuthenticator{capability: platformCapable(), createID: id}
	creds := NewMemoryCredentialStore()
	v := New(auth, creds)

	if _, err := v.Register(context.Background(), "oriol", "correct-horse-battery"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := v.RemoveCredential("oriol"); err != nil {
		t.Fatalf("RemoveCredential failed: %v", err)
	}
	if _, err := creds.Get("oriol"); !errors.Is(err, ErrNoCredential) {
		t.Error("credential still present after removal")
	}
}
