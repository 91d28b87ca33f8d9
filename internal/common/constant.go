// Package common contains shared constants and sentinel errors used across
// the account client components.
package common

const (
	// AuthorizationHeaderName carries the bearer token on protected requests.
	AuthorizationHeaderName = "Authorization"

	// BearerPrefix prefixes the token value in the Authorization header.
	BearerPrefix = "Bearer "

	// JSONContentType is the content type for all request and response bodies.
	JSONContentType = "application/json"
)
