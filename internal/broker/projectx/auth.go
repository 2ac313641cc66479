// Package projectx implements the ProjectX Gateway broker: a persistent
// WebSocket market hub for real-time quotes plus a REST client for auth,
// history, portfolio, and order placement.
package projectx

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/alanyoungcy/quantagent/internal/domain"
)

// DefaultTokenLifetime is how long a gateway JWT stays valid.
const DefaultTokenLifetime = 24 * time.Hour

type loginRequest struct {
	UserName string `json:"userName"`
	APIKey   string `json:"apiKey"`
}

type loginResponse struct {
	Token        string `json:"token"`
	Success      bool   `json:"success"`
	ErrorMessage string `json:"errorMessage"`
}

// AuthSession manages the gateway JWT. The token is refreshed in the
// background at 23/24 of its lifetime so the hub connection never observes an
// expired credential.
type AuthSession struct {
	http     *resty.Client
	username string
	apiKey   string
	lifetime time.Duration
	logger   *slog.Logger

	mu    sync.RWMutex
	token string
}

// NewAuthSession creates an AuthSession against the given REST base URL.
func NewAuthSession(baseURL, username, apiKey string, lifetime time.Duration, logger *slog.Logger) *AuthSession {
	if lifetime <= 0 {
		lifetime = DefaultTokenLifetime
	}
	return &AuthSession{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(30 * time.Second),
		username: username,
		apiKey:   apiKey,
		lifetime: lifetime,
		logger:   logger.With(slog.String("component", "projectx_auth")),
	}
}

// Login authenticates with the API key and stores the JWT. A rejected
// credential is a fatal domain.ErrAuth, never retried.
func (a *AuthSession) Login(ctx context.Context) error {
	var out loginResponse
	resp, err := a.http.R().
		SetContext(ctx).
		SetBody(loginRequest{UserName: a.username, APIKey: a.apiKey}).
		SetResult(&out).
		Post("/api/Auth/loginKey")
	if err != nil {
		return fmt.Errorf("projectx: login: %v: %w", err, domain.ErrTransport)
	}
	if resp.StatusCode() == 401 || resp.StatusCode() == 403 || (resp.IsSuccess() && !out.Success) {
		return fmt.Errorf("projectx: login rejected for %q: %s: %w", a.username, out.ErrorMessage, domain.ErrAuth)
	}
	if resp.IsError() {
		return fmt.Errorf("projectx: login status %d: %w", resp.StatusCode(), domain.ErrTransport)
	}

	a.mu.Lock()
	a.token = out.Token
	a.mu.Unlock()
	a.logger.Info("authenticated", slog.String("user", a.username))
	return nil
}

// Token returns the current JWT.
func (a *AuthSession) Token() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token
}

// Run refreshes the token at 23/24 of its lifetime until ctx is cancelled.
// A refresh rejection surfaces as domain.ErrAuth and stops the loop.
func (a *AuthSession) Run(ctx context.Context) error {
	interval := a.lifetime / 24 * 23
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := a.validate(ctx); err != nil {
				return err
			}
		}
	}
}

// validate extends the current session token without re-authenticating.
func (a *AuthSession) validate(ctx context.Context) error {
	var out loginResponse
	resp, err := a.http.R().
		SetContext(ctx).
		SetAuthToken(a.Token()).
		SetResult(&out).
		Post("/api/Auth/validate")
	if err != nil {
		// Transient; the next tick retries. Login-level failures below are not.
		a.logger.Warn("token refresh failed, will retry", slog.String("error", err.Error()))
		return nil
	}
	if resp.StatusCode() == 401 || resp.StatusCode() == 403 {
		return fmt.Errorf("projectx: token refresh rejected: %w", domain.ErrAuth)
	}
	if out.Token != "" {
		a.mu.Lock()
		a.token = out.Token
		a.mu.Unlock()
		a.logger.Debug("token refreshed")
	}
	return nil
}

// client returns the session's REST client, for the other projectx pieces.
func (a *AuthSession) client() *resty.Client { return a.http }
