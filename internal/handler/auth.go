package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/openwiki/internal/apperror"
	"github.com/sakif/openwiki/internal/model"
)

// AuthGateway is the subset of *auth.Gateway the handlers use.
type AuthGateway interface {
	Login(ctx context.Context, username, password string) (string, error)
	GetUserInfo(ctx context.Context, token string) (model.UserInfo, error)
	ValidateToken(ctx context.Context, token string) bool
	ValidateSession(ctx context.Context, session string) bool
	SessionCookie() string
}

// AuthHandler forwards authentication calls to the external auth service.
//
// This service holds no credentials of its own:
//   - HandleLogin    → exchange username/password for a token
//   - HandleUser     → fetch the profile behind a bearer token
//   - HandleValidate → ask whether a token or session cookie is still good
type AuthHandler struct {
	gateway AuthGateway
	logger  *slog.Logger
}

func NewAuthHandler(gateway AuthGateway, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{gateway: gateway, logger: logger}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type validateResponse struct {
	Valid bool `json:"valid"`
}

// HandleLogin forwards credentials and returns the issued token.
//
// HTTP: POST /api/auth/login
// REQUEST BODY: {"username": "mario", "password": "..."}
// RESPONSE: {"token": "..."}; 401 when the auth service refuses the login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	token, err := h.gateway.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: token})
}

// HandleUser returns the auth service's user document for the bearer token.
//
// HTTP: GET /api/auth/user
// HEADER: Authorization: Bearer <token>
func (h *AuthHandler) HandleUser(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, h.logger, apperror.Unauthenticated("missing bearer token"))
		return
	}

	info, err := h.gateway.GetUserInfo(r.Context(), token)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, info)
}

// HandleValidate reports whether the caller's credential is accepted. A
// bearer token is checked first; otherwise the session cookie is.
//
// HTTP: GET /api/auth/validate
// RESPONSE: {"valid": true|false}, always 200
func (h *AuthHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	valid := false

	if token := bearerToken(r); token != "" {
		valid = h.gateway.ValidateToken(r.Context(), token)
	} else if cookie, err := r.Cookie(h.gateway.SessionCookie()); err == nil && cookie.Value != "" {
		valid = h.gateway.ValidateSession(r.Context(), cookie.Value)
	}

	writeJSON(w, http.StatusOK, validateResponse{Valid: valid})
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
// The scheme is matched case-insensitively.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
