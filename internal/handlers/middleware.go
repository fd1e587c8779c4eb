package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"weather-compare/pkg/logging"
)

// RequestIDMiddleware tags every request with an identifier that the
// structured logger picks up from the context, and echoes it back in the
// X-Request-ID header. An incoming X-Request-ID is preserved.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), logging.RequestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
