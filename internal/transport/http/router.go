// Package httptransport assembles the admin HTTP surface: middleware chain,
// health and metrics endpoints, and the per-entity admin routes.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"concord/internal/platform/health"
	request "concord/pkg/platform/middleware/request"
)

const (
	requestTimeout = 30 * time.Second
	maxBodyBytes   = 1 << 20 // 1 MiB
)

// Registrar mounts a group of routes on a router. Implemented by the entity
// handlers.
type Registrar interface {
	Register(r chi.Router)
}

// Deps carries everything the router needs.
type Deps struct {
	Logger  *slog.Logger
	Health  *health.Handler
	Latency *request.Metrics

	Tenants Registrar
	Users   Registrar
	Roles   Registrar
}

// NewRouter wires the middleware stack, the operational endpoints, and the
// admin API under /admin.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(request.Recovery(deps.Logger))
	r.Use(request.RequestID)
	r.Use(request.Logger(deps.Logger))
	r.Use(request.Timeout(requestTimeout))
	r.Use(request.BodyLimit(maxBodyBytes))
	r.Use(request.ContentTypeJSON)
	r.Use(request.LatencyMiddleware(deps.Latency))

	deps.Health.Register(r)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/admin", func(admin chi.Router) {
		deps.Tenants.Register(admin)
		deps.Users.Register(admin)
		deps.Roles.Register(admin)
	})

	return r
}
