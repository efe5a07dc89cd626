package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apperrors "regsys/internal/errors"
	"regsys/internal/middleware"
	"regsys/internal/websocket"
)

// RouterConfig lists what the router serves.
type RouterConfig struct {
	License     *LicenseHandler
	Hub         *websocket.Hub
	Metrics     http.Handler
	RateLimiter *middleware.RateLimiter
	EnableIssue bool
	Logger      *slog.Logger
}

// NewRouter assembles the loopback API.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredLogger(cfg.Logger))
	r.Use(middleware.Recoverer(cfg.Logger))

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		_ = render.Render(w, req, apperrors.NewProblemDetails(http.StatusNotFound, apperrors.TypeNotFound,
			"Not Found", "no such endpoint", req.URL.Path))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	limit := func(next http.Handler) http.Handler { return next }
	if cfg.RateLimiter != nil {
		limit = cfg.RateLimiter.Handler
	}

	r.Route("/api/license", func(r chi.Router) {
		cfg.License.RegisterRoutes(r, limit, cfg.EnableIssue)
		if cfg.Hub != nil {
			r.Get("/events", func(w http.ResponseWriter, req *http.Request) {
				websocket.ServeWS(cfg.Hub, w, req)
			})
		}
	})

	return r
}
