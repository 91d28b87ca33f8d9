package cli

import (
	"context"
	"fmt"
	"os"
)

// getSimpleText is an indirection used to facilitate testing. It points to
// the interactive input helper and can be swapped in tests.
var getSimpleText = GetSimpleText

// Check reports whether a username is free to register.
func (a *App) Check(ctx context.Context, username string) error {
	available, err := a.auth.CheckUsernameAvailability(ctx, username)
	if err != nil {
		printlnFn("Check failed:", err)
		return err
	}
	if available {
		printlnFn(fmt.Sprintf("%q is available", username))
	} else {
		printlnFn(fmt.Sprintf("%q is taken", username))
	}
	return nil
}

// Register prompts for a username and display name and runs the
// account-creation ceremony. The platform authenticator does the passkey
// work; without one the ceremony fails with a capability error.
func (a *App) Register(ctx context.Context) error {
	if !a.authnOK {
		printlnFn("No platform authenticator is available in this build; registration needs one.")
	}

	username, err := getSimpleText(a.reader, "Choose a username", os.Stdout)
	if err != nil {
		return err
	}
	displayName, err := getSimpleText(a.reader, "Display name", os.Stdout)
	if err != nil {
		return err
	}
	bio, err := getSimpleText(a.reader, "Bio (optional)", os.Stdout)
	if err != nil {
		return err
	}

	account, err := a.auth.CreateAccount(ctx, username, displayName, bio)
	if err != nil {
		printlnFn("Registration failed:", err)
		return err
	}

	printlnFn("Welcome,", account.DisplayName+"!")
	return nil
}
