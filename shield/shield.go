// Package shield provides the HTTP middleware stack of the alttext API:
// security headers, body limits, HEAD handling and per-request tracing.
//
//	r := chi.NewRouter()
//	for _, mw := range shield.DefaultStack(4 << 20) {
//		r.Use(mw)
//	}
package shield

import "net/http"

type contextKey string

// LoggerKey is the context key of the per-request logger.
const LoggerKey contextKey = "shield_logger"

// DefaultStack returns HeadToGet, SecurityHeaders, MaxBody and TraceID in
// that order.
func DefaultStack(maxBody int64) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(DefaultHeaders()),
		MaxBody(maxBody),
		TraceID,
	}
}
