package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/protocol"

	"github.com/daybookhq/accounts-go/internal/accounts/models"
	"github.com/daybookhq/accounts-go/internal/common"
	"github.com/daybookhq/accounts-go/internal/logging"
)

const defaultRequestTimeout = 15 * time.Second

// HTTPClient implements Client over JSON/HTTPS.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	log     logging.Logger
}

// NewHTTPClient builds an HTTPClient for the given base URL
// (e.g. "https://accounts.example.com"). timeout bounds each round trip;
// zero means the default. log may be nil.
func NewHTTPClient(baseURL string, timeout time.Duration, log logging.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	if log == nil {
		log = logging.Nop{}
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

type successEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// do performs one round trip: marshal body (if any), set headers, decode the
// success envelope into out (if non-nil), or map an error body to a taxonomy
// error.
func (c *HTTPClient) do(ctx context.Context, method, path, accessToken string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", common.JSONContentType)
	}
	req.Header.Set("Accept", common.JSONContentType)
	if accessToken != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+accessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug(ctx, "request failed", "method", method, "path", path, "error", err)
		return models.E(models.KindNetwork, models.CodeNetworkFailure, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.E(models.KindNetwork, models.CodeNetworkFailure, err)
	}

	if resp.StatusCode >= 400 {
		return errorFromResponse(resp.StatusCode, raw)
	}

	var env successEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return models.E(models.KindNetwork, models.CodeUnexpectedStatus, fmt.Errorf("decode response: %w", err))
	}
	if !env.Success {
		return models.E(models.KindNetwork, models.CodeUnexpectedStatus, fmt.Errorf("response not marked successful"))
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return models.E(models.KindNetwork, models.CodeUnexpectedStatus, fmt.Errorf("decode response data: %w", err))
		}
	}
	return nil
}

// errorFromResponse maps an error body (or a bare status) onto the taxonomy.
func errorFromResponse(status int, raw []byte) error {
	var env errorEnvelope
	_ = json.Unmarshal(raw, &env)

	code := env.Error.Code
	kind, known := kindForCode(code)
	if !known {
		kind = kindForStatus(status)
		if code == "" {
			code = models.CodeUnexpectedStatus
		}
	}
	return models.E(kind, code, fmt.Errorf("http %d: %s", status, env.Error.Message))
}

func kindForCode(code string) (models.Kind, bool) {
	switch code {
	case models.CodeInvalidUsername, models.CodeUsernameTaken, models.CodeValidationFailed:
		return models.KindValidation, true
	case models.CodeSessionNotFound, models.CodeSessionExpired, models.CodeInvalidSessionToken:
		return models.KindSession, true
	case models.CodePasskeyVerificationFailed, models.CodeAuthenticationFailed:
		return models.KindAuthentication, true
	case models.CodeInvalidToken, models.CodeTokenExpired, models.CodeInvalidRefreshToken:
		return models.KindToken, true
	default:
		return models.KindUnknown, false
	}
}

func kindForStatus(status int) models.Kind {
	switch status {
	case http.StatusBadRequest:
		return models.KindValidation
	case http.StatusUnauthorized:
		return models.KindToken
	default:
		return models.KindNetwork
	}
}

func (c *HTTPClient) CheckUsername(ctx context.Context, username string) (bool, error) {
	var data struct {
		Available bool `json:"available"`
	}
	body := struct {
		Username string `json:"username"`
	}{Username: username}
	if err := c.do(ctx, http.MethodPost, "/accounts/username/check", "", body, &data); err != nil {
		return false, err
	}
	return data.Available, nil
}

func (c *HTTPClient) BeginCreate(ctx context.Context, req BeginCreateRequest) (*BeginCreateResult, error) {
	var data BeginCreateResult
	if err := c.do(ctx, http.MethodPost, "/accounts/create/begin", "", req, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func (c *HTTPClient) CompleteCreate(ctx context.Context, sessionToken string, credential *protocol.CredentialCreationResponse) (*CeremonyResult, error) {
	body := struct {
		SessionToken string                              `json:"sessionToken"`
		Credential   *protocol.CredentialCreationResponse `json:"credential"`
	}{SessionToken: sessionToken, Credential: credential}

	var data CeremonyResult
	if err := c.do(ctx, http.MethodPost, "/accounts/create/complete", "", body, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func (c *HTTPClient) BeginAuthenticate(ctx context.Context, username string) (*BeginAuthenticateResult, error) {
	body := struct {
		Username string `json:"username,omitempty"`
	}{Username: username}

	var data BeginAuthenticateResult
	if err := c.do(ctx, http.MethodPost, "/accounts/auth/begin", "", body, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func (c *HTTPClient) CompleteAuthenticate(ctx context.Context, sessionToken string, assertion *protocol.CredentialAssertionResponse) (*CeremonyResult, error) {
	body := struct {
		SessionToken string                               `json:"sessionToken"`
		Credential   *protocol.CredentialAssertionResponse `json:"credential"`
	}{SessionToken: sessionToken, Credential: assertion}

	var data CeremonyResult
	if err := c.do(ctx, http.MethodPost, "/accounts/auth/complete", "", body, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func (c *HTTPClient) RefreshToken(ctx context.Context, refreshToken string) (string, error) {
	body := struct {
		RefreshToken string `json:"refreshToken"`
	}{RefreshToken: refreshToken}

	var data struct {
		AccessToken string `json:"accessToken"`
	}
	if err := c.do(ctx, http.MethodPost, "/accounts/token/refresh", "", body, &data); err != nil {
		return "", err
	}
	return data.AccessToken, nil
}

func (c *HTTPClient) GetAccount(ctx context.Context, accessToken string) (*models.Account, error) {
	var data models.Account
	if err := c.do(ctx, http.MethodGet, "/accounts/me", accessToken, nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func (c *HTTPClient) UpdateProfile(ctx context.Context, accessToken string, req UpdateProfileRequest) (*models.Account, error) {
	var data models.Account
	if err := c.do(ctx, http.MethodPut, "/accounts/me", accessToken, req, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func (c *HTTPClient) DeletePasskey(ctx context.Context, accessToken string, credentialID string) error {
	path := "/passkeys/" + url.PathEscape(credentialID)
	return c.do(ctx, http.MethodDelete, path, accessToken, nil, nil)
}

func (c *HTTPClient) SignOut(ctx context.Context, accessToken string) error {
	return c.do(ctx, http.MethodPost, "/accounts/signout", accessToken, nil, nil)
}
