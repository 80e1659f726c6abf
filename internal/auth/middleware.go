package auth

import (
	"context"
	"log/slog"
	"net/http"
)

// contextKey is unexported so no other package can read or shadow our values.
type contextKey string

const userIDKey contextKey = "userID"

// Identity resolves the calling user from the session cookie and stores the
// id in the request context for UserIDFromContext.
//
// When the cookie is missing or unreadable the behaviour depends on require:
//   - require=false: the request continues as the gateway's default user,
//     and a WARN line records why
//   - require=true:  the request is rejected with 401 and the chain stops
//
// MIDDLEWARE PATTERN IN GO:
// A middleware takes an http.Handler and returns a new one that wraps it.
// Chi applies them in a chain: req → M1 → M2 → Handler → M2 → M1 → resp
func Identity(gw *Gateway, require bool, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var credential string
			if cookie, err := r.Cookie(gw.SessionCookie()); err == nil {
				credential = cookie.Value
			}

			identity := ParseSession(credential)
			if !identity.Resolved && require {
				logger.Info("rejecting request without a readable session",
					slog.String("path", r.URL.Path),
					slog.String("reason", identity.Reason),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthenticated","message":"valid session required"}`))
				return
			}

			userID := gw.ResolveUserIDFromSession(credential)
			if !identity.Resolved {
				logger.Warn("session not resolved, using default user",
					slog.String("path", r.URL.Path),
					slog.String("reason", identity.Reason),
					slog.String("user_id", userID),
				)
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext returns the user id stored by Identity.
// Returns ("", false) outside an Identity-wrapped route.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// WithUserID returns a copy of ctx carrying userID. Mostly for tests.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}
