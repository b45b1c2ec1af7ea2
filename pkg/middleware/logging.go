package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"ghostrecon/pkg/logging"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// RequestLogger injects a request-scoped logger into the context and logs
// each request once it completes.
func RequestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := r.Header.Get("X-Request-ID")
			if reqID == "" {
				reqID = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", reqID)

			attrs := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr),
				logging.RequestID(reqID),
			}
			if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
				attrs = append(attrs, logging.TraceID(sc.TraceID().String()), logging.SpanID(sc.SpanID().String()))
			}
			reqLog := log.With(attrs...)

			wrapped := wrap(w)
			next.ServeHTTP(wrapped, r.WithContext(logging.WithContext(r.Context(), reqLog)))

			level := slog.LevelInfo
			if wrapped.statusCode >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			reqLog.Log(r.Context(), level, "http - request - completed",
				slog.Int("status", wrapped.statusCode),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}
