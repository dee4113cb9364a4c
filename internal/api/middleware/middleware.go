package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/oks-citadel/svcauth/internal/api/presenter"
	"github.com/oks-citadel/svcauth/internal/correlation"
)

// CodeInternal is returned when a handler panics.
const CodeInternal = "internal_error"

// LoggingMiddleware attaches a request-scoped logger to the context and emits
// one line per request once the handler returns. Fields added further down
// the chain (the verified caller, for example) end up on that line.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		l := log.With().
			Str("correlation_id", correlation.FromContext(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Logger()
		ctx := l.WithContext(r.Context())
		zerolog.Ctx(ctx).Debug().Msg("request.started")

		rw := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r.WithContext(ctx))

		// liveness probes are noise unless they fail
		if r.URL.Path == "/health" && rw.status < http.StatusBadRequest {
			return
		}

		evt := zerolog.Ctx(ctx).Info()
		if rw.status >= http.StatusInternalServerError {
			evt = zerolog.Ctx(ctx).Error()
		} else if rw.status >= http.StatusBadRequest {
			evt = zerolog.Ctx(ctx).Warn()
		}
		evt.Int("status", rw.status).
			Int64("bytes", rw.written).
			Dur("duration", time.Since(start)).
			Msg("request.handled")
	})
}

// RecoverMiddleware turns a handler panic into a 500 with the usual error body.
func RecoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			log.Ctx(r.Context()).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("panic.recovered")
			presenter.ErrorCode(w, r, "internal server error", CodeInternal, http.StatusInternalServerError)
		}()
		next.ServeHTTP(w, r)
	})
}

type responseRecorder struct {
	http.ResponseWriter
	status      int
	written     int64
	wroteHeader bool
}

func (w *responseRecorder) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseRecorder) Write(b []byte) (int, error) {
	w.wroteHeader = true
	n, err := w.ResponseWriter.Write(b)
	w.written += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *responseRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
