package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/stretchr/testify/require"

	"github.com/daybookhq/accounts-go/internal/accounts/api"
	"github.com/daybookhq/accounts-go/internal/accounts/authenticator"
	"github.com/daybookhq/accounts-go/internal/accounts/models"
	"github.com/daybookhq/accounts-go/internal/accounts/repositories/session"
	"github.com/daybookhq/accounts-go/internal/accounts/state"
)

// ---- fake transport ----

type fakeAPI struct {
	mu sync.Mutex

	CheckRet          bool
	CheckErr          error
	CheckCalls        int
	LastCheckUsername string

	BeginCreateRet   *api.BeginCreateResult
	BeginCreateErr   error
	BeginCreateCalls int
	LastBeginCreate  api.BeginCreateRequest

	CompleteCreateRet       *api.CeremonyResult
	CompleteCreateErr       error
	CompleteCreateCalls     int
	LastCompleteCreateToken string
	LastCompleteCreateCred  *protocol.CredentialCreationResponse

	BeginAuthRet          *api.BeginAuthenticateResult
	BeginAuthErr          error
	BeginAuthCalls        int
	LastBeginAuthUsername string

	CompleteAuthRet       *api.CeremonyResult
	CompleteAuthErr       error
	CompleteAuthCalls     int
	LastCompleteAuthToken string

	RefreshRet       string
	RefreshErr       error
	RefreshDelay     time.Duration
	RefreshCalls     int
	LastRefreshToken string

	GetAccountRet       *models.Account
	GetAccountErrs      []error
	GetAccountCalls     int
	LastGetAccountToken string

	UpdateRet     *models.Account
	UpdateErr     error
	LastUpdateReq api.UpdateProfileRequest

	DeletePasskeyErr      error
	LastDeletedCredential string

	SignOutErr   error
	SignOutCalls int
}

func (f *fakeAPI) CheckUsername(ctx context.Context, username string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CheckCalls++
	f.LastCheckUsername = username
	return f.CheckRet, f.CheckErr
}

func (f *fakeAPI) BeginCreate(ctx context.Context, req api.BeginCreateRequest) (*api.BeginCreateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.BeginCreateCalls++
	f.LastBeginCreate = req
	return f.BeginCreateRet, f.BeginCreateErr
}

func (f *fakeAPI) CompleteCreate(ctx context.Context, sessionToken string, credential *protocol.CredentialCreationResponse) (*api.CeremonyResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CompleteCreateCalls++
	f.LastCompleteCreateToken = sessionToken
	f.LastCompleteCreateCred = credential
	return f.CompleteCreateRet, f.CompleteCreateErr
}

func (f *fakeAPI) BeginAuthenticate(ctx context.Context, username string) (*api.BeginAuthenticateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.BeginAuthCalls++
	f.LastBeginAuthUsername = username
	return f.BeginAuthRet, f.BeginAuthErr
}

func (f *fakeAPI) CompleteAuthenticate(ctx context.Context, sessionToken string, assertion *protocol.CredentialAssertionResponse) (*api.CeremonyResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CompleteAuthCalls++
	f.LastCompleteAuthToken = sessionToken
	return f.CompleteAuthRet, f.CompleteAuthErr
}

func (f *fakeAPI) RefreshToken(ctx context.Context, refreshToken string) (string, error) {
	f.mu.Lock()
	f.RefreshCalls++
	f.LastRefreshToken = refreshToken
	delay := f.RefreshDelay
	ret, err := f.RefreshRet, f.RefreshErr
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	return ret, err
}

func (f *fakeAPI) GetAccount(ctx context.Context, accessToken string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.GetAccountCalls++
	f.LastGetAccountToken = accessToken
	var err error
	if len(f.GetAccountErrs) > 0 {
		err = f.GetAccountErrs[0]
		f.GetAccountErrs = f.GetAccountErrs[1:]
	}
	if err != nil {
		return nil, err
	}
	return f.GetAccountRet, nil
}

func (f *fakeAPI) UpdateProfile(ctx context.Context, accessToken string, req api.UpdateProfileRequest) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastUpdateReq = req
	return f.UpdateRet, f.UpdateErr
}

func (f *fakeAPI) DeletePasskey(ctx context.Context, accessToken string, credentialID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastDeletedCredential = credentialID
	return f.DeletePasskeyErr
}

func (f *fakeAPI) SignOut(ctx context.Context, accessToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SignOutCalls++
	return f.SignOutErr
}

func (f *fakeAPI) refreshCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.RefreshCalls
}

// ---- fake platform authenticator ----

type fakePlatform struct {
	mu sync.Mutex

	RegisterRet  *protocol.CredentialCreationResponse
	RegisterErr  error
	RegisterHook func(ctx context.Context) error
	LastRegister protocol.PublicKeyCredentialCreationOptions

	AssertRet  *protocol.CredentialAssertionResponse
	AssertErr  error
	AssertHook func(ctx context.Context) error
	LastAssert protocol.PublicKeyCredentialRequestOptions
}

func (f *fakePlatform) RegisterPasskey(ctx context.Context, options protocol.PublicKeyCredentialCreationOptions) (*protocol.CredentialCreationResponse, error) {
	f.mu.Lock()
	f.LastRegister = options
	hook := f.RegisterHook
	ret, err := f.RegisterRet, f.RegisterErr
	f.mu.Unlock()
	if hook != nil {
		if herr := hook(ctx); herr != nil {
			return nil, herr
		}
	}
	return ret, err
}

func (f *fakePlatform) AuthenticateWithPasskey(ctx context.Context, options protocol.PublicKeyCredentialRequestOptions) (*protocol.CredentialAssertionResponse, error) {
	f.mu.Lock()
	f.LastAssert = options
	hook := f.AssertHook
	ret, err := f.AssertRet, f.AssertErr
	f.mu.Unlock()
	if hook != nil {
		if herr := hook(ctx); herr != nil {
			return nil, herr
		}
	}
	return ret, err
}

func (f *fakePlatform) IsAvailable() bool { return true }

// blockUntilDone makes a platform call hang until its context ends, the way
// a real OS prompt waits for the user.
func blockUntilDone(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

// ---- helpers ----

func testAccount() models.Account {
	return models.Account{ID: "acc-1", Username: "alice123", DisplayName: "Alice"}
}

func testCeremonyResult() *api.CeremonyResult {
	return &api.CeremonyResult{
		Account: testAccount(),
		Tokens:  models.Tokens{AccessToken: "access-1", RefreshToken: "refresh-1"},
	}
}

func newTestService(fa *fakeAPI, fp *fakePlatform) (*AuthService, *session.MemoryRepository, *state.AccountState) {
	sessions := session.NewMemoryRepository()
	st := state.New()
	refresher := NewTokenRefresher(fa, sessions, st, nil)
	svc := NewAuthService(fa, fp, sessions, st, refresher, nil)
	return svc, sessions, st
}

// ---- TESTS ----

func TestCreateAccount_Success_PersistsSessionAndPublishesAccount(t *testing.T) {
	fa := &fakeAPI{
		BeginCreateRet: &api.BeginCreateResult{
			SessionToken:        "ceremony-1",
			RegistrationOptions: protocol.PublicKeyCredentialCreationOptions{Timeout: 60000},
		},
		CompleteCreateRet: testCeremonyResult(),
	}
	fp := &fakePlatform{RegisterRet: &protocol.CredentialCreationResponse{}}
	svc, sessions, st := newTestService(fa, fp)

	account, err := svc.CreateAccount(context.Background(), "alice123", "Alice", "hi")
	require.NoError(t, err)
	require.Equal(t, "alice123", account.Username)

	require.Equal(t, api.BeginCreateRequest{Username: "alice123", DisplayName: "Alice", Bio: "hi"}, fa.LastBeginCreate)
	require.Equal(t, "ceremony-1", fa.LastCompleteCreateToken)

	sess, err := sessions.Get(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sess)
	require.Equal(t, "access-1", sess.AccessToken)
	require.Equal(t, "refresh-1", sess.RefreshToken)
	require.Equal(t, "acc-1", sess.AccountID)

	current, ok := st.Current()
	require.True(t, ok)
	require.Equal(t, "alice123", current.Username)

	require.Equal(t, models.PhaseSucceeded, svc.Phase(models.CeremonyRegistration))
}

func TestCreateAccount_InvalidInput_NoNetworkCall(t *testing.T) {
	fa := &fakeAPI{}
	svc, sessions, _ := newTestService(fa, &fakePlatform{})

	cases := []struct {
		name                        string
		username, displayName, bio string
	}{
		{"username too short", "ab", "Alice", ""},
		{"username bad characters", "alice!", "Alice", ""},
		{"display name missing", "alice123", "", ""},
		{"bio too long", "alice123", "Alice", string(make([]byte, 501))},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateAccount(context.Background(), tc.username, tc.displayName, tc.bio)
			require.Error(t, err)
			require.True(t, models.IsKind(err, models.KindValidation))
		})
	}

	require.Equal(t, 0, fa.BeginCreateCalls)
	sess, err := sessions.Get(context.Background())
	require.NoError(t, err)
	require.Nil(t, sess)
}

func TestCreateAccount_PlatformCancelled_NoCompleteNoSession(t *testing.T) {
	fa := &fakeAPI{
		BeginCreateRet: &api.BeginCreateResult{SessionToken: "ceremony-1"},
	}
	fp := &fakePlatform{RegisterErr: authenticator.ErrUserCancelled}
	svc, sessions, _ := newTestService(fa, fp)

	_, err := svc.CreateAccount(context.Background(), "alice123", "Alice", "")
	require.Error(t, err)
	require.True(t, models.IsKind(err, models.KindPlatform))
	require.Equal(t, models.CodeUserCancelled, models.CodeOf(err))

	require.Equal(t, 0, fa.CompleteCreateCalls)
	sess, err := sessions.Get(context.Background())
	require.NoError(t, err)
	require.Nil(t, sess)
	require.Equal(t, models.PhaseFailed, svc.Phase(models.CeremonyRegistration))
}

func TestCreateAccount_CompleteFails_NoSession(t *testing.T) {
	fa := &fakeAPI{
		BeginCreateRet:    &api.BeginCreateResult{SessionToken: "ceremony-1"},
		CompleteCreateErr: models.E(models.KindSession, models.CodeSessionExpired, errors.New("ceremony expired")),
	}
	fp := &fakePlatform{RegisterRet: &protocol.CredentialCreationResponse{}}
	svc, sessions, st := newTestService(fa, fp)

	_, err := svc.CreateAccount(context.Background(), "alice123", "Alice", "")
	require.Error(t, err)
	require.Equal(t, models.CodeSessionExpired, models.CodeOf(err))

	sess, err := sessions.Get(context.Background())
	require.NoError(t, err)
	require.Nil(t, sess)
	_, ok := st.Current()
	require.False(t, ok)
}

func TestCreateAccount_CallerCancelsDuringPlatformPrompt(t *testing.T) {
	fa := &fakeAPI{
		BeginCreateRet: &api.BeginCreateResult{SessionToken: "ceremony-1"},
	}
	fp := &fakePlatform{RegisterHook: blockUntilDone}
	svc, sessions, _ := newTestService(fa, fp)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := svc.CreateAccount(ctx, "alice123", "Alice", "")
		done <- err
	}()

	require.Eventually(t, func() bool {
		return svc.Phase(models.CeremonyRegistration) == models.PhaseAwaitingPlatform
	}, time.Second, 5*time.Millisecond)
	cancel()

	err := <-done
	require.Error(t, err)
	require.Equal(t, models.CodeUserCancelled, models.CodeOf(err))

	require.Equal(t, 0, fa.CompleteCreateCalls)
	sess, err := sessions.Get(context.Background())
	require.NoError(t, err)
	require.Nil(t, sess)
}

func TestCreateAccount_SupersededByNewCeremony(t *testing.T) {
	fa := &fakeAPI{
		BeginCreateRet:    &api.BeginCreateResult{SessionToken: "ceremony-1"},
		CompleteCreateRet: testCeremonyResult(),
	}
	fp := &fakePlatform{RegisterHook: blockUntilDone}
	svc, _, _ := newTestService(fa, fp)

	first := make(chan error, 1)
	go func() {
		_, err := svc.CreateAccount(context.Background(), "alice123", "Alice", "")
		first <- err
	}()

	require.Eventually(t, func() bool {
		return svc.Phase(models.CeremonyRegistration) == models.PhaseAwaitingPlatform
	}, time.Second, 5*time.Millisecond)

	// The second attempt cancels the first one's prompt.
	fp.mu.Lock()
	fp.RegisterHook = nil
	fp.RegisterRet = &protocol.CredentialCreationResponse{}
	fp.mu.Unlock()

	_, err := svc.CreateAccount(context.Background(), "alice123", "Alice", "")
	require.NoError(t, err)

	err = <-first
	require.Error(t, err)
	require.Equal(t, models.CodeUserCancelled, models.CodeOf(err))

	// Only the surviving ceremony completed.
	require.Equal(t, 1, fa.CompleteCreateCalls)
}

func TestCreateAccount_PlatformTimeoutBudget(t *testing.T) {
	fa := &fakeAPI{
		BeginCreateRet: &api.BeginCreateResult{
			SessionToken:        "ceremony-1",
			RegistrationOptions: protocol.PublicKeyCredentialCreationOptions{Timeout: 30},
		},
	}
	fp := &fakePlatform{RegisterHook: blockUntilDone}
	svc, sessions, _ := newTestService(fa, fp)

	_, err := svc.CreateAccount(context.Background(), "alice123", "Alice", "")
	require.Error(t, err)
	require.True(t, models.IsKind(err, models.KindPlatform))
	require.Equal(t, models.CodeTimeout, models.CodeOf(err))

	sess, err := sessions.Get(context.Background())
	require.NoError(t, err)
	require.Nil(t, sess)
}

func TestAuthenticate_Success_PersistsSession(t *testing.T) {
	fa := &fakeAPI{
		BeginAuthRet: &api.BeginAuthenticateResult{
			SessionToken:          "ceremony-2",
			AuthenticationOptions: protocol.PublicKeyCredentialRequestOptions{Timeout: 60000},
		},
		CompleteAuthRet: testCeremonyResult(),
	}
	fp := &fakePlatform{AssertRet: &protocol.CredentialAssertionResponse{}}
	svc, sessions, st := newTestService(fa, fp)

	account, err := svc.Authenticate(context.Background(), "alice123")
	require.NoError(t, err)
	require.Equal(t, "acc-1", account.ID)

	require.Equal(t, "alice123", fa.LastBeginAuthUsername)
	require.Equal(t, "ceremony-2", fa.LastCompleteAuthToken)

	sess, err := sessions.Get(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sess)
	_, ok := st.Current()
	require.True(t, ok)
}

func TestAuthenticate_EmptyUsernameIsDiscoverable(t *testing.T) {
	fa := &fakeAPI{
		BeginAuthRet:    &api.BeginAuthenticateResult{SessionToken: "ceremony-2"},
		CompleteAuthRet: testCeremonyResult(),
	}
	fp := &fakePlatform{AssertRet: &protocol.CredentialAssertionResponse{}}
	svc, _, _ := newTestService(fa, fp)

	_, err := svc.Authenticate(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, 1, fa.BeginAuthCalls)
	require.Equal(t, "", fa.LastBeginAuthUsername)
}

func TestAuthenticate_NoCredentialAvailable(t *testing.T) {
	fa := &fakeAPI{
		BeginAuthRet: &api.BeginAuthenticateResult{SessionToken: "ceremony-2"},
	}
	fp := &fakePlatform{AssertErr: authenticator.ErrNoCredentialAvailable}
	svc, sessions, _ := newTestService(fa, fp)

	_, err := svc.Authenticate(context.Background(), "")
	require.Error(t, err)
	require.Equal(t, models.CodeNoCredentialAvailable, models.CodeOf(err))
	require.Equal(t, 0, fa.CompleteAuthCalls)

	sess, err := sessions.Get(context.Background())
	require.NoError(t, err)
	require.Nil(t, sess)
}

func TestCheckUsernameAvailability(t *testing.T) {
	fa := &fakeAPI{CheckRet: true}
	svc, _, _ := newTestService(fa, &fakePlatform{})

	available, err := svc.CheckUsernameAvailability(context.Background(), "alice123")
	require.NoError(t, err)
	require.True(t, available)
	require.Equal(t, "alice123", fa.LastCheckUsername)

	// Repeating the check gives the same answer; it holds no local state.
	again, err := svc.CheckUsernameAvailability(context.Background(), "alice123")
	require.NoError(t, err)
	require.Equal(t, available, again)
	require.Equal(t, 2, fa.CheckCalls)

	_, err = svc.CheckUsernameAvailability(context.Background(), "a!")
	require.Error(t, err)
	require.Equal(t, models.CodeInvalidUsername, models.CodeOf(err))
	require.Equal(t, 2, fa.CheckCalls)
}

func TestSignOut_ClearsLocalStateEvenWhenRevokeFails(t *testing.T) {
	fa := &fakeAPI{SignOutErr: errors.New("server unreachable")}
	svc, sessions, st := newTestService(fa, &fakePlatform{})

	require.NoError(t, sessions.Save(context.Background(), models.Session{
		AccessToken: "access-1", RefreshToken: "refresh-1", AccountID: "acc-1",
	}))
	acc := testAccount()
	st.Set(&acc)

	require.NoError(t, svc.SignOut(context.Background()))
	require.Equal(t, 1, fa.SignOutCalls)

	sess, err := sessions.Get(context.Background())
	require.NoError(t, err)
	require.Nil(t, sess)
	_, ok := st.Current()
	require.False(t, ok)
}

func TestSignOut_NoSession_StillClears(t *testing.T) {
	fa := &fakeAPI{}
	svc, _, st := newTestService(fa, &fakePlatform{})

	require.NoError(t, svc.SignOut(context.Background()))
	require.Equal(t, 0, fa.SignOutCalls)
	_, ok := st.Current()
	require.False(t, ok)
}

func TestGetAccountInfo_PublishesAccount(t *testing.T) {
	acc := testAccount()
	fa := &fakeAPI{GetAccountRet: &acc}
	svc, sessions, st := newTestService(fa, &fakePlatform{})

	require.NoError(t, sessions.Save(context.Background(), models.Session{
		AccessToken: "access-1", RefreshToken: "refresh-1", AccountID: "acc-1",
	}))

	got, err := svc.GetAccountInfo(context.Background())
	require.NoError(t, err)
	require.Equal(t, "alice123", got.Username)
	require.Equal(t, "access-1", fa.LastGetAccountToken)

	current, ok := st.Current()
	require.True(t, ok)
	require.Equal(t, "acc-1", current.ID)
}

func TestUpdateProfile_SendsPartialUpdate(t *testing.T) {
	updated := testAccount()
	updated.DisplayName = "Alice B"
	fa := &fakeAPI{UpdateRet: &updated}
	svc, sessions, st := newTestService(fa, &fakePlatform{})

	require.NoError(t, sessions.Save(context.Background(), models.Session{
		AccessToken: "access-1", RefreshToken: "refresh-1", AccountID: "acc-1",
	}))

	got, err := svc.UpdateProfile(context.Background(), "Alice B", "", "")
	require.NoError(t, err)
	require.Equal(t, "Alice B", got.DisplayName)
	require.Equal(t, api.UpdateProfileRequest{DisplayName: "Alice B"}, fa.LastUpdateReq)

	current, ok := st.Current()
	require.True(t, ok)
	require.Equal(t, "Alice B", current.DisplayName)
}

func TestDeletePasskey_RequiresCredentialID(t *testing.T) {
	fa := &fakeAPI{}
	svc, sessions, _ := newTestService(fa, &fakePlatform{})

	err := svc.DeletePasskey(context.Background(), "")
	require.Error(t, err)
	require.True(t, models.IsKind(err, models.KindValidation))

	require.NoError(t, sessions.Save(context.Background(), models.Session{
		AccessToken: "access-1", RefreshToken: "refresh-1", AccountID: "acc-1",
	}))
	require.NoError(t, svc.DeletePasskey(context.Background(), "cred-9"))
	require.Equal(t, "cred-9", fa.LastDeletedCredential)
}

func TestRestoreSession_NoStoredSession(t *testing.T) {
	svc, _, _ := newTestService(&fakeAPI{}, &fakePlatform{})

	account, err := svc.RestoreSession(context.Background())
	require.NoError(t, err)
	require.Nil(t, account)
}

func TestRestoreSession_RepublishesAccount(t *testing.T) {
	acc := testAccount()
	fa := &fakeAPI{GetAccountRet: &acc}
	svc, sessions, st := newTestService(fa, &fakePlatform{})

	require.NoError(t, sessions.Save(context.Background(), models.Session{
		AccessToken: "access-1", RefreshToken: "refresh-1", AccountID: "acc-1",
	}))

	account, err := svc.RestoreSession(context.Background())
	require.NoError(t, err)
	require.Equal(t, "alice123", account.Username)
	_, ok := st.Current()
	require.True(t, ok)
}
