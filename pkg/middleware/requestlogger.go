package middleware

import (
	"log/slog"
	"net/http"

	"github.com/Swiftdaops/QuickClean/pkg/logger"
)

// RequestLogger returns middleware that builds a request-scoped logger
// enriched with correlation_id, session_id, trace_id and span_id, then stores
// it in context via logger.NewContext.
//
// The session ID is read from the named cookie when the browser already has
// one; handlers that mint a new session re-enrich the logger themselves.
//
// Mount it AFTER RequestLogging and Tracing.
func RequestLogger(base *slog.Logger, sessionCookie string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if sessionCookie != "" {
				if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
					ctx = logger.WithSessionID(ctx, c.Value)
				}
			}

			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
