package vault

import (
	"context"
	"errors"
	"strings"

	"github.com/go-webauthn/webauthn/protocol"
)

// Capability reports what the platform authenticator can do. A negative
// result is never an error: detection failures degrade to "unsupported",
// with Reason saying why when the platform can tell.
type Capability struct {
	Supported             bool
	PlatformAuthenticator bool
	Reason                string
}

// Authenticator is the platform biometric boundary. Implementations wrap
// whatever credential API the host environment exposes; the vault only
// cares about the ceremony inputs and the resulting credential ID.
type Authenticator interface {
	// Capability probes for platform authenticator support. It must not
	// return an error; probe failures are reported as a zero Capability.
	Capability(ctx context.Context) Capability

	// Create runs a credential creation ceremony and returns the new
	// credential's ID in base64url form.
	Create(ctx context.Context, opts *protocol.PublicKeyCredentialCreationOptions) (string, error)

	// Assert runs an assertion ceremony against the allowed credentials
	// and returns the asserted credential's ID in base64url form.
	Assert(ctx context.Context, opts *protocol.PublicKeyCredentialRequestOptions) (string, error)
}

// PlatformError carries the platform's error name alongside its message,
// mirroring how browser credential APIs report ceremony failures.
type PlatformError struct {
	Name    string
	Message string
}

func (e *PlatformError) Error() string {
	if e.Name == "" {
		return e.Message
	}
	return e.Name + ": " + e.Message
}

// credentialGone reports whether err carries one of the platform failure
// signatures that mean the stored credential is no longer usable, as
// opposed to the user cancelling or a transient fault. InvalidStateError
// and NotAllowedError are what platforms raise after biometric
// re-enrollment invalidates device-bound credentials.
func credentialGone(err error) bool {
	var pe *PlatformError
	if !errors.As(err, &pe) {
		return false
	}
	switch pe.Name {
	case "InvalidStateError", "NotAllowedError":
		return true
	}
	msg := strings.ToLower(pe.Message)
	return strings.Contains(msg, "credential") || strings.Contains(msg, "authenticator")
}
