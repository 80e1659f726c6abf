package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/openwiki/internal/metrics"
)

// unmatchedRoute labels requests that matched no route, so random paths
// cannot blow up label cardinality.
const unmatchedRoute = "unmatched"

// Metrics records request count and latency per method, route pattern and
// status. The route label is the chi pattern ("/api/articles/{id}"), never
// the raw path.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := wrap(w)

		next.ServeHTTP(wrapped, r)

		// The pattern is only complete once routing has finished.
		route := unmatchedRoute
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		metrics.RecordAPIRequest(r.Method, route, wrapped.statusCode, time.Since(start))
	})
}
