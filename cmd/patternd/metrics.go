package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/patterncore/pattern/observability"
)

type statusCapturingWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusCapturingWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// metricsMiddleware records one HTTP observation per request, keyed by
// chi's matched route pattern rather than the raw path, so
// "/agents/{name}/messages" stays a single time series regardless of which
// agent was called.
func metricsMiddleware(inst *observability.Instruments) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &statusCapturingWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			inst.Record(r.Context(), r.Method, route, wrapped.statusCode, time.Since(start))
		})
	}
}
