package api

import (
	"context"

	"github.com/go-webauthn/webauthn/protocol"

	"github.com/daybookhq/accounts-go/internal/accounts/models"
)

// Client is the contract with the remote account service. Implementations
// map one call to one HTTP round trip and return taxonomy errors
// (*models.Error); they never retry on their own.
type Client interface {
	// CheckUsername reports whether username is free to register.
	CheckUsername(ctx context.Context, username string) (bool, error)

	// BeginCreate starts an account-creation ceremony. The result carries the
	// ceremony session token and the registration options (challenge, relying
	// party, user handle, algorithms, timeout, exclusion list).
	BeginCreate(ctx context.Context, req BeginCreateRequest) (*BeginCreateResult, error)

	// CompleteCreate finishes an account-creation ceremony with the signed
	// attestation produced by the platform authenticator.
	CompleteCreate(ctx context.Context, sessionToken string, credential *protocol.CredentialCreationResponse) (*CeremonyResult, error)

	// BeginAuthenticate starts an authentication ceremony. An empty username
	// requests a discoverable-credential (resident key) challenge.
	BeginAuthenticate(ctx context.Context, username string) (*BeginAuthenticateResult, error)

	// CompleteAuthenticate finishes an authentication ceremony with the
	// signed assertion.
	CompleteAuthenticate(ctx context.Context, sessionToken string, assertion *protocol.CredentialAssertionResponse) (*CeremonyResult, error)

	// RefreshToken exchanges the refresh token for a new access token.
	RefreshToken(ctx context.Context, refreshToken string) (string, error)

	// GetAccount fetches the authenticated account.
	GetAccount(ctx context.Context, accessToken string) (*models.Account, error)

	// UpdateProfile updates displayName/username/bio; empty fields are left
	// unchanged server-side.
	UpdateProfile(ctx context.Context, accessToken string, req UpdateProfileRequest) (*models.Account, error)

	// DeletePasskey revokes one credential.
	DeletePasskey(ctx context.Context, accessToken string, credentialID string) error

	// SignOut revokes the device's tokens server-side. Best effort; callers
	// clear local state regardless of the outcome.
	SignOut(ctx context.Context, accessToken string) error
}

// BeginCreateRequest carries the profile the new account should have.
type BeginCreateRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Bio         string `json:"bio,omitempty"`
}

// BeginCreateResult is the server's answer to BeginCreate.
type BeginCreateResult struct {
	SessionToken        string                                      `json:"sessionToken"`
	RegistrationOptions protocol.PublicKeyCredentialCreationOptions `json:"registrationOptions"`
}

// BeginAuthenticateResult is the server's answer to BeginAuthenticate.
// AuthenticationOptions.AllowedCredentials is empty for discoverable flows;
// the client passes it through to the authenticator without interpreting it.
type BeginAuthenticateResult struct {
	SessionToken          string                                     `json:"sessionToken"`
	AuthenticationOptions protocol.PublicKeyCredentialRequestOptions `json:"authenticationOptions"`
}

// CeremonyResult is the payload of both complete calls: the account record
// and the freshly minted token pair.
type CeremonyResult struct {
	Account models.Account `json:"account"`
	Tokens  models.Tokens  `json:"tokens"`
}

// UpdateProfileRequest carries a partial profile update.
type UpdateProfileRequest struct {
	DisplayName string `json:"displayName,omitempty"`
	Username    string `json:"username,omitempty"`
	Bio         string `json:"bio,omitempty"`
}
