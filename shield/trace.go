package shield

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hazyhaar/alttext/idgen"
	"github.com/hazyhaar/alttext/kit"
)

var newRequestID = idgen.UUIDv7()

// TraceID assigns each request an id, echoed in X-Request-ID, stored with
// kit.WithRequestID and attached to a per-request logger. An incoming
// X-Request-ID is kept.
func TraceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" || len(id) > 64 {
			id = newRequestID()
		}
		w.Header().Set("X-Request-ID", id)

		logger := slog.Default().With(
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
		)
		logger.Debug("shield: request", "remote_addr", r.RemoteAddr)

		ctx := kit.WithRequestID(r.Context(), id)
		ctx = context.WithValue(ctx, LoggerKey, logger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetLogger returns the per-request logger, or slog.Default().
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
