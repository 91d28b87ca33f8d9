package services

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"github.com/daybookhq/accounts-go/internal/accounts/api"
	"github.com/daybookhq/accounts-go/internal/accounts/models"
	"github.com/daybookhq/accounts-go/internal/accounts/repositories/session"
	"github.com/daybookhq/accounts-go/internal/accounts/state"
	"github.com/daybookhq/accounts-go/internal/common"
	"github.com/daybookhq/accounts-go/internal/logging"
)

// expiryLeeway renews an access token slightly before its exp claim so a
// request does not race the server-side clock.
const expiryLeeway = 30 * time.Second

const refreshKey = "refresh"

// TokenRefresher keeps the access token fresh. Refresh is single-flight per
// process: concurrent callers share one network round trip and one outcome.
// A failed refresh always clears local authentication state; stale tokens
// are never kept.
type TokenRefresher struct {
	api      api.Client
	sessions session.Repository
	state    *state.AccountState
	log      logging.Logger
	group    singleflight.Group
}

func NewTokenRefresher(apiClient api.Client, sessions session.Repository, st *state.AccountState, log logging.Logger) *TokenRefresher {
	if log == nil {
		log = logging.Nop{}
	}
	return &TokenRefresher{api: apiClient, sessions: sessions, state: st, log: log}
}

// Refresh exchanges the stored refresh token for a new access token and
// atomically replaces the stored session. Concurrent callers await the same
// in-flight attempt; each still honors its own context.
func (r *TokenRefresher) Refresh(ctx context.Context) (*models.Session, error) {
	ch := r.group.DoChan(refreshKey, func() (any, error) {
		// Detached from the first caller so its cancellation does not poison
		// the outcome every waiter shares.
		return r.refresh(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		sess := res.Val.(models.Session)
		return &sess, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *TokenRefresher) refresh(ctx context.Context) (models.Session, error) {
	sess, err := r.sessions.Get(ctx)
	if err != nil {
		return models.Session{}, err
	}
	if sess == nil || sess.RefreshToken == "" {
		r.signOutLocal(ctx)
		return models.Session{}, models.E(models.KindToken, models.CodeNotAuthenticated, common.ErrNotAuthenticated)
	}

	accessToken, err := r.api.RefreshToken(ctx, sess.RefreshToken)
	if err != nil {
		r.log.Warn(ctx, "token refresh failed, signing out", "error", err)
		r.signOutLocal(ctx)
		if models.KindOf(err) == models.KindUnknown {
			err = models.E(models.KindToken, models.CodeInvalidRefreshToken, err)
		}
		return models.Session{}, err
	}

	updated := models.Session{
		AccessToken:  accessToken,
		RefreshToken: sess.RefreshToken,
		AccountID:    sess.AccountID,
	}
	if err := r.sessions.Save(ctx, updated); err != nil {
		r.signOutLocal(ctx)
		return models.Session{}, err
	}

	r.log.Debug(ctx, "access token refreshed", "account_id", updated.AccountID)
	return updated, nil
}

// signOutLocal clears the persisted session and the published account state.
func (r *TokenRefresher) signOutLocal(ctx context.Context) {
	if err := r.sessions.Clear(ctx); err != nil {
		r.log.Error(ctx, "failed to clear session", "error", err)
	}
	r.state.Clear()
}

// WithAuthRetry runs call with the current access token. If the token's exp
// claim has already passed, it refreshes first. If call reports an
// authorization failure, it refreshes exactly once and re-runs call; a second
// authorization failure is returned as-is. There is never more than one
// refresh attempt per invocation.
func WithAuthRetry[T any](ctx context.Context, r *TokenRefresher, call func(ctx context.Context, accessToken string) (T, error)) (T, error) {
	var zero T

	sess, err := r.sessions.Get(ctx)
	if err != nil {
		return zero, err
	}
	if sess == nil {
		return zero, models.E(models.KindToken, models.CodeNotAuthenticated, common.ErrNotAuthenticated)
	}

	if accessTokenExpired(sess.AccessToken) {
		refreshed, err := r.Refresh(ctx)
		if err != nil {
			return zero, err
		}
		return call(ctx, refreshed.AccessToken)
	}

	out, err := call(ctx, sess.AccessToken)
	if err == nil || !models.IsKind(err, models.KindToken) {
		return out, err
	}

	refreshed, rerr := r.Refresh(ctx)
	if rerr != nil {
		return zero, rerr
	}
	return call(ctx, refreshed.AccessToken)
}

// accessTokenExpired inspects the JWT exp claim without verifying the
// signature (verification is the server's job). Tokens that do not parse or
// carry no exp are treated as live and left for the server to judge.
func accessTokenExpired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return time.Until(exp.Time) < expiryLeeway
}
