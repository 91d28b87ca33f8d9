package models

import (
	"errors"
	"fmt"
)

// Kind classifies a failure of the account subsystem. Callers branch on the
// kind (and machine code) only; human-readable presentation is the UI's job.
type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation: local or server-side input rejection. Never retried.
	KindValidation
	// KindSession: invalid/expired ceremony session token. The ceremony must
	// be restarted from begin.
	KindSession
	// KindPlatform: the platform authenticator failed or was cancelled.
	KindPlatform
	// KindAuthentication: the server rejected credential verification.
	KindAuthentication
	// KindToken: invalid access/refresh token. Triggers full sign-out.
	KindToken
	// KindNetwork: transport-level failure; safe for the caller to retry.
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindSession:
		return "session"
	case KindPlatform:
		return "platform"
	case KindAuthentication:
		return "authentication"
	case KindToken:
		return "token"
	case KindNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// Machine codes carried by Error. Server-originated codes match the wire
// contract verbatim; client-originated ones use the same shape.
const (
	CodeInvalidUsername           = "INVALID_USERNAME"
	CodeUsernameTaken             = "USERNAME_TAKEN"
	CodeValidationFailed          = "VALIDATION_FAILED"
	CodeSessionNotFound           = "SESSION_NOT_FOUND"
	CodeSessionExpired            = "SESSION_EXPIRED"
	CodeInvalidSessionToken       = "INVALID_SESSION_TOKEN"
	CodeUserCancelled             = "USER_CANCELLED"
	CodeNotSupported              = "NOT_SUPPORTED"
	CodeTimeout                   = "TIMEOUT"
	CodeNoCredentialAvailable     = "NO_CREDENTIAL_AVAILABLE"
	CodePlatformFailure           = "PLATFORM_FAILURE"
	CodePasskeyVerificationFailed = "PASSKEY_VERIFICATION_FAILED"
	CodeAuthenticationFailed      = "AUTHENTICATION_FAILED"
	CodeInvalidToken              = "INVALID_TOKEN"
	CodeTokenExpired              = "TOKEN_EXPIRED"
	CodeInvalidRefreshToken       = "INVALID_REFRESH_TOKEN"
	CodeNetworkFailure            = "NETWORK_FAILURE"
	CodeUnexpectedStatus          = "UNEXPECTED_STATUS"
	CodeNotAuthenticated          = "NOT_AUTHENTICATED"
)

// Error is the subsystem's failure value: a kind for coarse branching, a
// machine code for exact matching, and the underlying cause for wrapping.
type Error struct {
	Kind Kind
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%s): %v", e.Kind, e.Code, e.Err)
	}
	return fmt.Sprintf("%s (%s)", e.Kind, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// E constructs an *Error. err may be nil.
func E(kind Kind, code string, err error) *Error {
	return &Error{Kind: kind, Code: code, Err: err}
}

// KindOf extracts the Kind from err, or KindUnknown if err does not carry one.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// CodeOf extracts the machine code from err, or "" if none.
func CodeOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}
