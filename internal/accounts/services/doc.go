// Package services contains the orchestration layer of the account
// subsystem: AuthService drives the passkey ceremonies (create account,
// authenticate) against the transport and the platform authenticator, and
// TokenRefresher owns the access/refresh token lifecycle for protected
// calls.
//
// Both write the shared account state (internal/accounts/state); nothing
// else in the process is allowed to.
package services
