// Package httptransport assembles the domain handlers into one chi router.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pension/internal/platform/metrics"
	"pension/pkg/platform/httputil"
	"pension/pkg/platform/middleware/admin"
	"pension/pkg/platform/middleware/auth"
	"pension/pkg/platform/middleware/metadata"
	"pension/pkg/platform/middleware/request"
	"pension/pkg/platform/middleware/requesttime"
)

// RouteRegistrar is implemented by every domain handler.
type RouteRegistrar interface {
	Register(r chi.Router)
}

// MemberRoutes adds the admin-only registration route to a RouteRegistrar.
type MemberRoutes interface {
	RouteRegistrar
	RegisterCreate(r chi.Router)
}

// Config is everything the router needs. Employers and Jobs may be nil;
// their routes are then not mounted.
type Config struct {
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	Validator  auth.JWTValidator
	AdminToken string

	Members       MemberRoutes
	Contributions RouteRegistrar
	Benefits      RouteRegistrar
	Employers     RouteRegistrar
	Jobs          RouteRegistrar
}

// NewRouter mounts:
//
//	/healthz, /metrics                  open
//	POST /members, /employers/*,
//	/admin/jobs/*                       X-Admin-Token
//	/members/{memberID}/...             bearer token of that member or an admin
func NewRouter(cfg Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(logger))
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(request.Logger(logger))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(admin.RequireAdminToken(cfg.AdminToken, logger))
		cfg.Members.RegisterCreate(r)
		if cfg.Employers != nil {
			cfg.Employers.Register(r)
		}
		if cfg.Jobs != nil {
			cfg.Jobs.Register(r)
		}
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(cfg.Validator, logger))
		r.Use(auth.RequireSelfOrAdmin("memberID", logger))
		cfg.Members.Register(r)
		cfg.Contributions.Register(r)
		cfg.Benefits.Register(r)
	})

	return r
}
