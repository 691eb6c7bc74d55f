// Package middleware provides HTTP middleware for the admin API: request
// identification, JWT authentication, rate limiting, and request logging.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"deskaudit/internal/domain"
)

// RequestID returns an HTTP middleware that assigns a unique request ID to
// each request. If the incoming request already carries an X-Request-ID
// header it is reused; otherwise a new UUID is generated. The ID is set on
// the response header and stored in the request context, where the audit
// logger picks it up as the entry's request/correlation id.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		correlation := r.Header.Get("X-Correlation-ID")
		if correlation == "" {
			correlation = id
		}
		w.Header().Set("X-Request-ID", id)
		ctx := domain.WithCorrelation(r.Context(), domain.Correlation{
			RequestID:     id,
			CorrelationID: correlation,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDFromContext extracts the request ID from the context.
// Returns an empty string if no request ID is present.
func RequestIDFromContext(ctx context.Context) string {
	c, _ := domain.CorrelationFromContext(ctx)
	return c.RequestID
}
