package proxy

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AriHenrique/dyrasql/internal/middleware"
)

// Router builds the full HTTP handler for the statement protocol and
// routing API. Per-request deadlines for proxied calls (submission,
// follow-ups) are set inside each handler (against DataTimeout/
// ProbeTimeout), not by a blanket middleware here — a long-running
// statement submission must not be cut off by a generic request
// timeout. The short, bounded control endpoints get a blanket
// middleware.Timeout instead, since none of them proxy an
// open-ended upstream call.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(s.log))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(s.cfg.RoutingTimeout, s.log))
		r.Get("/health", s.Health)
		r.Get("/loginType", s.LoginType)
		r.Post("/loginType", s.LoginType)
		r.Get("/v1/info", s.Info)
		r.Post("/api/v1/route", s.RouteQuery)
		r.Post("/api/v1/metrics", s.SaveMetrics)
	})

	r.Get("/v1/statement", s.GetStatementNotAllowed)
	r.Post("/v1/statement", s.Statement)

	r.NotFound(s.CatchAll)
	r.MethodNotAllowed(s.CatchAll)

	return r
}

// MetricsHandler exposes Prometheus metrics on the ambient path,
// separate from the business-facing /api/v1/metrics endpoint.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
