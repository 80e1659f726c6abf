// Package auth delegates authentication to the external auth service and
// resolves the calling user from the session cookie that service issues.
//
// This backend never sees passwords at rest and never signs tokens: login,
// user info and token validation are forwarded as-is; the session cookie is
// only decoded to read the user id.
package auth

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"

	"github.com/sakif/openwiki/internal/apperror"
	"github.com/sakif/openwiki/internal/metrics"
	"github.com/sakif/openwiki/internal/model"
)

const upstreamName = "auth"

// Config describes where the auth service lives and how sessions are read.
type Config struct {
	BaseURL        string
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
	SessionCookie  string
	DefaultUserID  string
}

func DefaultConfig() Config {
	return Config{
		BaseURL:        "http://127.0.0.1:5001",
		ConnectTimeout: 10 * time.Second,
		RequestTimeout: 30 * time.Second,
		SessionCookie:  "session",
		DefaultUserID:  "4",
	}
}

// Gateway is the client for the auth service. Safe for concurrent use.
type Gateway struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewGateway(cfg Config, logger *slog.Logger) *Gateway {
	d := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = d.BaseURL
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = d.ConnectTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = d.RequestTimeout
	}
	if cfg.SessionCookie == "" {
		cfg.SessionCookie = d.SessionCookie
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext

	return &Gateway{
		cfg: cfg,
		http: &http.Client{
			Timeout:   cfg.RequestTimeout,
			Transport: transport,
		},
		logger: logger,
	}
}

// SessionCookie is the name of the cookie carrying the session credential.
func (g *Gateway) SessionCookie() string {
	return g.cfg.SessionCookie
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login exchanges credentials for a bearer token.
//
// Errors:
//   - ErrValidation: blank username or password (nothing is sent)
//   - ErrUnauthenticated: the service answered with a non-200 status, or 200 without a token
//   - ErrUpstream: the service could not be reached or answered garbage
func (g *Gateway) Login(ctx context.Context, username, password string) (string, error) {
	if strings.TrimSpace(username) == "" {
		return "", apperror.ValidationFailed("username", "username is required")
	}
	if password == "" {
		return "", apperror.ValidationFailed("password", "password is required")
	}

	body, err := json.Marshal(loginRequest{Username: username, Password: password})
	if err != nil {
		return "", fmt.Errorf("auth: encoding login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("auth: building login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	status, respBody, err := g.do(g.http, req, "login")
	if err != nil {
		return "", err
	}

	// Never log the request body: it holds the password.
	g.logger.Info("login attempt", slog.String("username", username), slog.Int("status", status))

	if status != http.StatusOK {
		return "", apperror.Unauthenticated(fmt.Sprintf("login failed with status %d", status))
	}

	var resp loginResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", apperror.Upstream("auth service returned malformed JSON", err)
	}
	if resp.Token == "" {
		return "", apperror.Unauthenticated("login response did not include a token")
	}

	return resp.Token, nil
}

// GetUserInfo returns the user document the auth service holds for token,
// passed through unchanged.
func (g *Gateway) GetUserInfo(ctx context.Context, token string) (model.UserInfo, error) {
	if token == "" {
		return nil, apperror.Unauthenticated("missing bearer token")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.BaseURL+"/auth/user", nil)
	if err != nil {
		return nil, fmt.Errorf("auth: building user request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	status, body, err := g.do(g.bearerClient(ctx, token), req, "user_info")
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, apperror.Unauthenticated(fmt.Sprintf("failed to get user info: status %d", status))
	}

	var info model.UserInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, apperror.Upstream("auth service returned malformed JSON", err)
	}
	if info == nil {
		info = model.UserInfo{}
	}
	return info, nil
}

// ValidateToken reports whether the auth service accepts token.
// Any failure to get an answer counts as "not valid".
func (g *Gateway) ValidateToken(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.BaseURL+"/auth/validate", nil)
	if err != nil {
		return false
	}

	status, _, err := g.do(g.bearerClient(ctx, token), req, "validate_token")
	return err == nil && accepted(status)
}

// ValidateSession reports whether the auth service accepts a session cookie value.
func (g *Gateway) ValidateSession(ctx context.Context, session string) bool {
	if session == "" {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.BaseURL+"/auth/validate", nil)
	if err != nil {
		return false
	}
	req.AddCookie(&http.Cookie{Name: g.cfg.SessionCookie, Value: session})

	status, _, err := g.do(g.http, req, "validate_session")
	return err == nil && accepted(status)
}

// ResolveUserIDFromSession returns the user id carried by a session
// credential, or the configured default id when it cannot be read.
// Callers that need to know which case happened use ParseSession.
func (g *Gateway) ResolveUserIDFromSession(credential string) string {
	identity := ParseSession(credential)
	if !identity.Resolved {
		return g.cfg.DefaultUserID
	}
	return identity.UserID
}

// accepted is the success rule shared by the validate calls: any 2xx.
func accepted(status int) bool {
	return status >= 200 && status < 300
}

// bearerClient returns a client that sends "Authorization: Bearer <token>"
// on top of the gateway's own transport and timeouts.
func (g *Gateway) bearerClient(ctx context.Context, token string) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.http)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	client.Timeout = g.cfg.RequestTimeout
	return client
}

// do executes req and returns status and body. Only transport-level failures
// are errors; any HTTP status is returned to the caller to interpret.
func (g *Gateway) do(client *http.Client, req *http.Request, operation string) (int, []byte, error) {
	start := time.Now()

	resp, err := client.Do(req)
	if err != nil {
		metrics.RecordUpstream(upstreamName, operation, metrics.OutcomeFailure, time.Since(start))
		g.logger.Warn("auth service request failed",
			slog.String("operation", operation),
			slog.String("error", err.Error()),
		)
		return 0, nil, apperror.Upstream("auth service unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		metrics.RecordUpstream(upstreamName, operation, metrics.OutcomeFailure, time.Since(start))
		return 0, nil, apperror.Upstream("reading auth service response", err)
	}

	outcome := metrics.OutcomeSuccess
	if resp.StatusCode >= 500 {
		outcome = metrics.OutcomeFailure
	}
	metrics.RecordUpstream(upstreamName, operation, outcome, time.Since(start))

	return resp.StatusCode, body, nil
}
