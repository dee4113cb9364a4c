package middleware

import (
	"net/http"

	"github.com/oks-citadel/svcauth/internal/correlation"
)

// CorrelationIDMiddleware propagates the caller's correlation ID unchanged,
// or generates one, and echoes it on the response.
func CorrelationIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(correlation.Header)
		if id == "" {
			id = correlation.New()
		}
		w.Header().Set(correlation.Header, id)

		ctx := correlation.WithID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
