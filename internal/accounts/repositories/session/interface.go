// Package session persists the device's single account session. All
// operations are atomic with respect to each other: a concurrent Get during
// a Save observes either the old or the new session in full, never a mix.
package session

import (
	"context"

	"github.com/daybookhq/accounts-go/internal/accounts/models"
)

// Repository stores at most one session, replaced wholesale.
type Repository interface {
	// Save replaces the stored session.
	Save(ctx context.Context, sess models.Session) error

	// Get returns the stored session, or nil when none exists.
	Get(ctx context.Context) (*models.Session, error)

	// Clear removes the stored session. Clearing an empty store is not an
	// error.
	Clear(ctx context.Context) error
}
