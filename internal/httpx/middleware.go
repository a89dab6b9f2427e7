// Package httpx holds HTTP helpers shared by the local servers inboxctl
// runs (the login callback and the metrics endpoint).
package httpx

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/inboxpilot/internal/logging"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// RequestLogger logs one debug record per request. Query strings are left
// out since they may carry credentials.
func RequestLogger(log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Debug(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration_ms", time.Since(start).Milliseconds(),
				"bytes", ww.BytesWritten(),
			)
		})
	}
}

// Health answers liveness probes.
func Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
