package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/google/uuid"

	"github.com/daybookhq/accounts-go/internal/accounts/api"
	"github.com/daybookhq/accounts-go/internal/accounts/authenticator"
	"github.com/daybookhq/accounts-go/internal/accounts/models"
	"github.com/daybookhq/accounts-go/internal/accounts/repositories/session"
	"github.com/daybookhq/accounts-go/internal/accounts/state"
	"github.com/daybookhq/accounts-go/internal/common"
	"github.com/daybookhq/accounts-go/internal/logging"
)

// AuthService drives the two passkey ceremonies as state machines.
//
// Contract:
//   - CheckUsernameAvailability: one transport round trip, no local state.
//   - CreateAccount / Authenticate: begin -> platform call -> complete;
//     strictly sequential, cancellable, never persists a partial session.
//   - SignOut: local state is cleared even when the server revoke fails.
//   - GetAccountInfo / UpdateProfile / DeletePasskey: protected calls via
//     the retry-once-after-refresh combinator.
//
// At most one ceremony of each kind is in flight; beginning a new one
// supersedes (cancels) the previous one, and a superseded ceremony's late
// result is discarded.
type AuthService struct {
	api       api.Client
	platform  authenticator.Client
	sessions  session.Repository
	state     *state.AccountState
	refresher *TokenRefresher
	log       logging.Logger
	validate  *inputValidator

	mu     sync.Mutex
	active map[models.CeremonyKind]*ceremony
	phases map[models.CeremonyKind]models.AuthPhase
}

// ceremony is the transient, in-memory state of one begin/complete exchange.
// It is never persisted; a process restart always starts from begin.
type ceremony struct {
	id           string
	kind         models.CeremonyKind
	cancel       context.CancelFunc
	sessionToken string
}

// NewAuthService wires the orchestrator. log may be nil.
func NewAuthService(apiClient api.Client, platform authenticator.Client, sessions session.Repository, st *state.AccountState, refresher *TokenRefresher, log logging.Logger) *AuthService {
	if log == nil {
		log = logging.Nop{}
	}
	return &AuthService{
		api:       apiClient,
		platform:  platform,
		sessions:  sessions,
		state:     st,
		refresher: refresher,
		log:       log,
		validate:  newInputValidator(),
		active:    make(map[models.CeremonyKind]*ceremony),
		phases:    make(map[models.CeremonyKind]models.AuthPhase),
	}
}

// Phase reports the phase of the most recent ceremony of the given kind.
func (s *AuthService) Phase(kind models.CeremonyKind) models.AuthPhase {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.phases[kind]; ok {
		return p
	}
	return models.PhaseIdle
}

// CheckUsernameAvailability reports whether username can be registered.
// The username's shape is validated locally before any network call.
func (s *AuthService) CheckUsernameAvailability(ctx context.Context, username string) (bool, error) {
	if err := s.validate.username(username); err != nil {
		return false, err
	}
	return s.api.CheckUsername(ctx, username)
}

// CreateAccount runs the account-creation ceremony end to end: validate,
// begin, platform registration, complete, persist session, publish account.
func (s *AuthService) CreateAccount(ctx context.Context, username, displayName, bio string) (*models.Account, error) {
	if err := s.validate.newAccount(username, displayName, bio); err != nil {
		return nil, err
	}

	c, cctx := s.beginCeremony(ctx, models.CeremonyRegistration)
	defer s.endCeremony(c)

	begin, err := s.api.BeginCreate(cctx, api.BeginCreateRequest{
		Username:    username,
		DisplayName: displayName,
		Bio:         bio,
	})
	if err != nil {
		return nil, s.fail(c, err)
	}
	s.setPhase(c, models.PhaseBegan)
	c.sessionToken = begin.SessionToken

	s.setPhase(c, models.PhaseAwaitingPlatform)
	credential, err := s.invokeRegister(cctx, begin.RegistrationOptions)
	if err != nil {
		return nil, s.fail(c, err)
	}
	if !s.isCurrent(c) {
		return nil, s.fail(c, superseded())
	}

	s.setPhase(c, models.PhaseCompleting)
	result, err := s.api.CompleteCreate(cctx, c.sessionToken, credential)
	if err != nil {
		return nil, s.fail(c, err)
	}
	if !s.isCurrent(c) {
		return nil, s.fail(c, superseded())
	}

	if err := s.persistSession(cctx, result); err != nil {
		return nil, s.fail(c, err)
	}
	s.setPhase(c, models.PhaseSucceeded)
	s.log.Info(ctx, "account created", "account_id", result.Account.ID, "username", result.Account.Username)
	return &result.Account, nil
}

// Authenticate runs the authentication ceremony. An empty username requests
// a discoverable-credential (resident key) challenge; otherwise the server
// scopes the allow list to that user.
func (s *AuthService) Authenticate(ctx context.Context, username string) (*models.Account, error) {
	if username != "" {
		if err := s.validate.username(username); err != nil {
			return nil, err
		}
	}

	c, cctx := s.beginCeremony(ctx, models.CeremonyAuthentication)
	defer s.endCeremony(c)

	begin, err := s.api.BeginAuthenticate(cctx, username)
	if err != nil {
		return nil, s.fail(c, err)
	}
	s.setPhase(c, models.PhaseBegan)
	c.sessionToken = begin.SessionToken

	s.setPhase(c, models.PhaseAwaitingPlatform)
	assertion, err := s.invokeAssert(cctx, begin.AuthenticationOptions)
	if err != nil {
		return nil, s.fail(c, err)
	}
	if !s.isCurrent(c) {
		return nil, s.fail(c, superseded())
	}

	s.setPhase(c, models.PhaseCompleting)
	result, err := s.api.CompleteAuthenticate(cctx, c.sessionToken, assertion)
	if err != nil {
		return nil, s.fail(c, err)
	}
	if !s.isCurrent(c) {
		return nil, s.fail(c, superseded())
	}

	if err := s.persistSession(cctx, result); err != nil {
		return nil, s.fail(c, err)
	}
	s.setPhase(c, models.PhaseSucceeded)
	s.log.Info(ctx, "authenticated", "account_id", result.Account.ID)
	return &result.Account, nil
}

// SignOut revokes the tokens server-side (best effort) and unconditionally
// clears local session and account state. A network failure never blocks the
// local sign-out.
func (s *AuthService) SignOut(ctx context.Context) error {
	sess, err := s.sessions.Get(ctx)
	if err == nil && sess != nil && sess.AccessToken != "" {
		if err := s.api.SignOut(ctx, sess.AccessToken); err != nil {
			s.log.Warn(ctx, "server-side sign-out failed", "error", err)
		}
	}

	clearErr := s.sessions.Clear(ctx)
	s.state.Clear()
	return clearErr
}

// GetAccountInfo fetches the authenticated account, refreshing the access
// token at most once on an authorization failure, and republishes it.
func (s *AuthService) GetAccountInfo(ctx context.Context) (*models.Account, error) {
	account, err := WithAuthRetry(ctx, s.refresher, func(ctx context.Context, accessToken string) (*models.Account, error) {
		return s.api.GetAccount(ctx, accessToken)
	})
	if err != nil {
		return nil, err
	}
	s.state.Set(account)
	return account, nil
}

// UpdateProfile updates displayName/username/bio; empty fields are left
// unchanged. The updated account replaces the published one wholesale.
func (s *AuthService) UpdateProfile(ctx context.Context, displayName, username, bio string) (*models.Account, error) {
	if err := s.validate.profileUpdate(username, displayName, bio); err != nil {
		return nil, err
	}
	account, err := WithAuthRetry(ctx, s.refresher, func(ctx context.Context, accessToken string) (*models.Account, error) {
		return s.api.UpdateProfile(ctx, accessToken, api.UpdateProfileRequest{
			DisplayName: displayName,
			Username:    username,
			Bio:         bio,
		})
	})
	if err != nil {
		return nil, err
	}
	s.state.Set(account)
	return account, nil
}

// DeletePasskey revokes one credential, with the same retry-once pattern.
func (s *AuthService) DeletePasskey(ctx context.Context, credentialID string) error {
	if credentialID == "" {
		return models.E(models.KindValidation, models.CodeValidationFailed, errors.New("credential id is required"))
	}
	_, err := WithAuthRetry(ctx, s.refresher, func(ctx context.Context, accessToken string) (struct{}, error) {
		return struct{}{}, s.api.DeletePasskey(ctx, accessToken, credentialID)
	})
	return err
}

// IsAuthenticated reports whether a session is persisted on this device.
func (s *AuthService) IsAuthenticated(ctx context.Context) bool {
	sess, err := s.sessions.Get(ctx)
	return err == nil && sess != nil
}

// RestoreSession republishes the account for a session that survived a
// process restart. With no stored session it returns (nil, nil). A token
// failure during restore has already cleared the session (fail closed); a
// network failure leaves it in place for a later retry.
func (s *AuthService) RestoreSession(ctx context.Context) (*models.Account, error) {
	sess, err := s.sessions.Get(ctx)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, nil
	}
	return s.GetAccountInfo(ctx)
}

//
// ceremony plumbing
//

// beginCeremony cancels any in-flight ceremony of the same kind and installs
// a new one. The returned context is the ceremony's lifetime: cancelled when
// the caller abandons it or a newer ceremony supersedes it.
func (s *AuthService) beginCeremony(ctx context.Context, kind models.CeremonyKind) (*ceremony, context.Context) {
	cctx, cancel := context.WithCancel(ctx)
	c := &ceremony{id: uuid.NewString(), kind: kind, cancel: cancel}

	s.mu.Lock()
	if prev := s.active[kind]; prev != nil {
		s.log.Debug(ctx, "superseding in-flight ceremony", "kind", kind)
		prev.cancel()
	}
	s.active[kind] = c
	s.phases[kind] = models.PhaseIdle
	s.mu.Unlock()

	return c, cctx
}

// endCeremony drops the ceremony (and with it the client's reference to the
// server-side session token) and releases its context.
func (s *AuthService) endCeremony(c *ceremony) {
	s.mu.Lock()
	if s.active[c.kind] == c {
		delete(s.active, c.kind)
	}
	s.mu.Unlock()
	c.cancel()
}

func (s *AuthService) isCurrent(c *ceremony) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active[c.kind] == c
}

// setPhase records the phase unless the ceremony has been superseded.
func (s *AuthService) setPhase(c *ceremony, phase models.AuthPhase) {
	s.mu.Lock()
	if s.active[c.kind] == c {
		s.phases[c.kind] = phase
	}
	s.mu.Unlock()
}

// fail marks the ceremony failed. A superseded ceremony does not touch the
// phase; it belongs to its successor now.
func (s *AuthService) fail(c *ceremony, err error) error {
	s.mu.Lock()
	if s.active[c.kind] == c {
		s.phases[c.kind] = models.PhaseFailed
	}
	s.mu.Unlock()
	return err
}

func superseded() error {
	return models.E(models.KindPlatform, models.CodeUserCancelled, common.ErrCeremonySuperseded)
}

// invokeRegister calls the platform authenticator under the server-supplied
// timeout budget (milliseconds, WebAuthn convention).
func (s *AuthService) invokeRegister(ctx context.Context, opts protocol.PublicKeyCredentialCreationOptions) (*protocol.CredentialCreationResponse, error) {
	pctx, cancel := ceremonyContext(ctx, opts.Timeout)
	defer cancel()

	credential, err := s.platform.RegisterPasskey(pctx, opts)
	if err != nil {
		return nil, classifyPlatformError(ctx, pctx, err)
	}
	return credential, nil
}

func (s *AuthService) invokeAssert(ctx context.Context, opts protocol.PublicKeyCredentialRequestOptions) (*protocol.CredentialAssertionResponse, error) {
	pctx, cancel := ceremonyContext(ctx, opts.Timeout)
	defer cancel()

	assertion, err := s.platform.AuthenticateWithPasskey(pctx, opts)
	if err != nil {
		return nil, classifyPlatformError(ctx, pctx, err)
	}
	return assertion, nil
}

func ceremonyContext(ctx context.Context, timeoutMillis int) (context.Context, context.CancelFunc) {
	if timeoutMillis <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(timeoutMillis)*time.Millisecond)
}

// classifyPlatformError maps an authenticator failure onto the platform
// error taxonomy. Caller cancellation (abandoned or superseded ceremony) is
// UserCancelled; an elapsed timeout budget is Timeout, not UserCancelled.
func classifyPlatformError(ctx, pctx context.Context, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return models.E(models.KindPlatform, models.CodeUserCancelled, context.Canceled)
	case errors.Is(pctx.Err(), context.DeadlineExceeded) || errors.Is(err, authenticator.ErrTimeout):
		return models.E(models.KindPlatform, models.CodeTimeout, err)
	case errors.Is(err, authenticator.ErrUserCancelled):
		return models.E(models.KindPlatform, models.CodeUserCancelled, err)
	case errors.Is(err, authenticator.ErrNotSupported):
		return models.E(models.KindPlatform, models.CodeNotSupported, err)
	case errors.Is(err, authenticator.ErrNoCredentialAvailable):
		return models.E(models.KindPlatform, models.CodeNoCredentialAvailable, err)
	default:
		return models.E(models.KindPlatform, models.CodePlatformFailure, err)
	}
}

// persistSession saves the new session and publishes the account. Nothing is
// published unless the save succeeded.
func (s *AuthService) persistSession(ctx context.Context, result *api.CeremonyResult) error {
	sess := models.Session{
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
		AccountID:    result.Account.ID,
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	s.state.Set(&result.Account)
	return nil
}
