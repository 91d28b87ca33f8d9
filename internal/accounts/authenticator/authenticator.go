// Package authenticator defines the capability boundary to the operating
// system's credential/WebAuthn API. The core never builds an authenticator;
// it only invokes one through this interface, and each platform (or test)
// supplies its own implementation.
package authenticator

import (
	"context"
	"errors"

	"github.com/go-webauthn/webauthn/protocol"
)

// Sentinel platform errors. Implementations must return one of these (wrapped
// is fine) so callers can classify the outcome with errors.Is.
var (
	// ErrUserCancelled: the user dismissed the biometric/gesture prompt.
	// Never auto-retried.
	ErrUserCancelled = errors.New("user cancelled")

	// ErrNotSupported: no platform authenticator exists on this device/build.
	ErrNotSupported = errors.New("platform authenticator not supported")

	// ErrTimeout: the ceremony's timeout budget elapsed before the user
	// completed the gesture.
	ErrTimeout = errors.New("authenticator timed out")

	// ErrNoCredentialAvailable: no resident/allowed credential matched the
	// request.
	ErrNoCredentialAvailable = errors.New("no credential available")

	// ErrUnknown: any other platform failure.
	ErrUnknown = errors.New("authenticator failure")
)

// Client invokes the platform authenticator to create or assert a passkey.
//
// Each call is one logical operation: it ends in a credential response or a
// typed platform error, and must honor ctx cancellation promptly so an
// abandoned ceremony does not leave a prompt dangling.
type Client interface {
	RegisterPasskey(ctx context.Context, options protocol.PublicKeyCredentialCreationOptions) (*protocol.CredentialCreationResponse, error)
	AuthenticateWithPasskey(ctx context.Context, options protocol.PublicKeyCredentialRequestOptions) (*protocol.CredentialAssertionResponse, error)
	IsAvailable() bool
}

// Unavailable is the Client for builds without an OS authenticator (servers,
// plain terminals). Every ceremony call fails with ErrNotSupported.
type Unavailable struct{}

func (Unavailable) RegisterPasskey(context.Context, protocol.PublicKeyCredentialCreationOptions) (*protocol.CredentialCreationResponse, error) {
	return nil, ErrNotSupported
}

func (Unavailable) AuthenticateWithPasskey(context.Context, protocol.PublicKeyCredentialRequestOptions) (*protocol.CredentialAssertionResponse, error) {
	return nil, ErrNotSupported
}

func (Unavailable) IsAvailable() bool { return false }
