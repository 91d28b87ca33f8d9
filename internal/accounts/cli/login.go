package cli

import (
	"context"
	"os"
)

// Login runs the authentication ceremony. An empty username triggers a
// discoverable-credential sign-in where the platform presents whatever
// passkeys it holds for this origin.
func (a *App) Login(ctx context.Context) error {
	username, err := getSimpleText(a.reader, "Username (leave empty to pick a passkey)", os.Stdout)
	if err != nil {
		return err
	}

	account, err := a.auth.Authenticate(ctx, username)
	if err != nil {
		printlnFn("Sign-in failed:", err)
		return err
	}

	printlnFn("Signed in as", account.Username)
	return nil
}

// Logout signs the current account out. Local credentials are cleared even
// when the server cannot be reached.
func (a *App) Logout(ctx context.Context) error {
	if err := a.auth.SignOut(ctx); err != nil {
		printlnFn("Sign-out finished with a warning:", err)
		return err
	}
	printlnFn("Signed out.")
	return nil
}
