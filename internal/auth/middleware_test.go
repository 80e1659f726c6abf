package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// echoUserID writes the id Identity stored in the context.
var echoUserID = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	id, ok := UserIDFromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Write([]byte(id))
})

func TestIdentity(t *testing.T) {
	gw := NewGateway(DefaultConfig(), discardLogger())

	tests := []struct {
		name       string
		require    bool
		cookie     string
		wantStatus int
		wantBody   string
	}{
		{"valid session", false, flaskCookie(t, `{"user_id":"11"}`), http.StatusOK, "11"},
		{"no cookie falls back to default", false, "", http.StatusOK, "4"},
		{"malformed cookie falls back to default", false, "not-a-session", http.StatusOK, "4"},
		{"valid session when required", true, flaskCookie(t, `{"user_id":11}`), http.StatusOK, "11"},
		{"no cookie when required", true, "", http.StatusUnauthorized, ""},
		{"malformed cookie when required", true, "x.y", http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/articles", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "session", Value: tt.cookie})
			}
			rec := httptest.NewRecorder()

			Identity(gw, tt.require, discardLogger())(echoUserID).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Errorf("user id = %q, want %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestIdentity_UsesConfiguredDefaultUser(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DefaultUserID = "99"
	gw := NewGateway(cfg, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/articles", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: "garbage"})
	rec := httptest.NewRecorder()

	Identity(gw, false, discardLogger())(echoUserID).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != gw.ResolveUserIDFromSession("garbage") || got != "99" {
		t.Errorf("user id = %q, want 99", got)
	}
}

func TestUserIDFromContext_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if id, ok := UserIDFromContext(req.Context()); ok || id != "" {
		t.Errorf("UserIDFromContext() = (%q, %v), want (\"\", false)", id, ok)
	}
}
