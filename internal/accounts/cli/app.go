package cli

import (
	"bufio"
	"context"
	"log/slog"
	"os"

	"github.com/daybookhq/accounts-go/internal/accounts/api"
	"github.com/daybookhq/accounts-go/internal/accounts/authenticator"
	"github.com/daybookhq/accounts-go/internal/accounts/config"
	"github.com/daybookhq/accounts-go/internal/accounts/models"
	"github.com/daybookhq/accounts-go/internal/accounts/repositories"
	sessionrepo "github.com/daybookhq/accounts-go/internal/accounts/repositories/session"
	"github.com/daybookhq/accounts-go/internal/accounts/services"
	"github.com/daybookhq/accounts-go/internal/accounts/state"
	"github.com/daybookhq/accounts-go/internal/logging"

	_ "modernc.org/sqlite"
)

// accountService is the surface the shell needs from the services layer.
// *services.AuthService satisfies it; tests provide a stub.
type accountService interface {
	CheckUsernameAvailability(ctx context.Context, username string) (bool, error)
	CreateAccount(ctx context.Context, username, displayName, bio string) (*models.Account, error)
	Authenticate(ctx context.Context, username string) (*models.Account, error)
	SignOut(ctx context.Context) error
	GetAccountInfo(ctx context.Context) (*models.Account, error)
	UpdateProfile(ctx context.Context, displayName, username, bio string) (*models.Account, error)
	DeletePasskey(ctx context.Context, credentialID string) error
	RestoreSession(ctx context.Context) (*models.Account, error)
}

type App struct {
	config  *config.Config
	auth    accountService
	state   *state.AccountState
	reader  *bufio.Reader
	authnOK bool
}

// NewApp wires the full client stack: sqlite session store, HTTP transport,
// refresher, auth service. The platform authenticator defaults to the
// Unavailable stub; desktop/mobile builds swap in their own via authn.
func NewApp(c *config.Config, authn authenticator.Client) (*App, error) {
	ctx := context.Background()

	db, err := repositories.InitDatabase(ctx, c.SessionDBPath)
	if err != nil {
		return nil, err
	}

	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	sessions := sessionrepo.NewSQLiteRepository(db)
	accountState := state.New()
	transport := api.NewHTTPClient(c.ServerBaseURL, c.RequestTimeout, log)
	refresher := services.NewTokenRefresher(transport, sessions, accountState, log)

	if authn == nil {
		authn = authenticator.Unavailable{}
	}
	auth := services.NewAuthService(transport, authn, sessions, accountState, refresher, log)

	return &App{
		config:  c,
		auth:    auth,
		state:   accountState,
		reader:  bufio.NewReader(os.Stdin),
		authnOK: authn.IsAvailable(),
	}, nil
}

// Run restores any persisted session and drops into the REPL.
func (a *App) Run(ctx context.Context) {
	if account, err := a.auth.RestoreSession(ctx); err == nil && account != nil {
		printlnFn("Welcome back, " + account.DisplayName)
	}
	a.Root(ctx)
}

func (a *App) isLoggedIn() bool {
	_, ok := a.state.Current()
	return ok
}

func (a *App) statusLine() string {
	if account, ok := a.state.Current(); ok {
		return "(" + account.Username + ")"
	}
	return ""
}
