package metrics

import (
	"net/http"

	"github.com/dmitrijs2005/inboxpilot/internal/httpx"
	"github.com/dmitrijs2005/inboxpilot/internal/logging"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Router serves /metrics and /health.
func (m *Metrics) Router(log logging.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(httpx.RequestLogger(log))

	r.Get("/health", httpx.Health)
	r.Method(http.MethodGet, "/metrics", m.Handler())
	return r
}
