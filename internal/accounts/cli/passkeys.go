package cli

import (
	"context"
	"fmt"
)

// Passkeys lists the passkeys registered on the account.
func (a *App) Passkeys(ctx context.Context) error {
	account, err := a.auth.GetAccountInfo(ctx)
	if err != nil {
		printlnFn("Could not load the account:", err)
		return err
	}

	if len(account.Credentials) == 0 {
		printlnFn("No passkeys registered.")
		return nil
	}

	for _, c := range account.Credentials {
		line := fmt.Sprintf("%s  %s", c.CredentialID, c.Nickname)
		if c.DeviceInfo != "" {
			line += " (" + c.DeviceInfo + ")"
		}
		if c.LastUsedAt != nil {
			line += "  last used " + c.LastUsedAt.Format("2006-01-02")
		}
		printlnFn(line)
	}
	return nil
}

// Revoke removes a passkey by its credential id.
func (a *App) Revoke(ctx context.Context, credentialID string) error {
	if err := a.auth.DeletePasskey(ctx, credentialID); err != nil {
		printlnFn("Revoke failed:", err)
		return err
	}
	printlnFn("Passkey revoked.")
	return nil
}
