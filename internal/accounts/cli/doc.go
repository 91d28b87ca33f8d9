// Package cli implements a small interactive shell over the account
// services: availability checks, passkey registration/login (where a
// platform authenticator is wired), profile inspection and updates, passkey
// revocation, and sign-out. It exists for development and manual testing;
// real UIs embed the services directly.
package cli
