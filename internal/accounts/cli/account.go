package cli

import (
	"context"
	"fmt"
	"os"
)

// WhoAmI prints the authenticated account's profile.
func (a *App) WhoAmI(ctx context.Context) error {
	account, err := a.auth.GetAccountInfo(ctx)
	if err != nil {
		printlnFn("Could not load the account:", err)
		return err
	}

	printlnFn("Username:    ", account.Username)
	printlnFn("Display name:", account.DisplayName)
	if account.Bio != "" {
		printlnFn("Bio:         ", account.Bio)
	}
	printlnFn("Passkeys:    ", fmt.Sprintf("%d", len(account.Credentials)))
	return nil
}

// Update prompts for new profile fields and submits them. Empty answers
// leave the corresponding field unchanged.
func (a *App) Update(ctx context.Context) error {
	displayName, err := getSimpleText(a.reader, "New display name (empty keeps current)", os.Stdout)
	if err != nil {
		return err
	}
	username, err := getSimpleText(a.reader, "New username (empty keeps current)", os.Stdout)
	if err != nil {
		return err
	}
	bio, err := getSimpleText(a.reader, "New bio (empty keeps current)", os.Stdout)
	if err != nil {
		return err
	}

	if displayName == "" && username == "" && bio == "" {
		printlnFn("Nothing to update.")
		return nil
	}

	account, err := a.auth.UpdateProfile(ctx, displayName, username, bio)
	if err != nil {
		printlnFn("Update failed:", err)
		return err
	}

	printlnFn("Profile updated for", account.Username)
	return nil
}
