package middleware

import (
	"net/http"

	"pricedeck/internal/logger"

	"github.com/google/uuid"
)

// RequestIDHeader is the response header carrying the per-request ID.
// Callers quote it when reporting a failed submission.
const RequestIDHeader = "X-Request-Id"

// RequestID assigns every request a correlation ID, stores it on the
// request context for logging and echoes it in the response header. An
// ID supplied by the client is kept so a CLI retry can carry the same
// ID across attempts.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		w.Header().Set(RequestIDHeader, id)
		ctx := logger.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
