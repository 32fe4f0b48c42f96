package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JosephRemingston/insightAI/internal/metrics"
	"github.com/JosephRemingston/insightAI/internal/transport/http/handlers"
	"github.com/JosephRemingston/insightAI/internal/transport/http/middleware"
)

// Options: HTTP router build parameters.
type Options struct {
	Logger    *slog.Logger
	Timeout   time.Duration
	Metrics   *metrics.Metrics // nil disables HTTP metrics
	StartedAt time.Time        // reported as uptime by /health
}

// API is what the router needs from the business layer.
type API interface {
	handlers.Vault
	middleware.Authenticator
}

// NewRouter builds the chi handler with middleware and routes attached.
func NewRouter(api API, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.StartedAt.IsZero() {
		opts.StartedAt = time.Now()
	}

	root := chi.NewRouter()

	// outer -> inner.
	root.Use(
		middleware.Recover(),
		middleware.RequestID(), // before logging
		middleware.Logging(opts.Logger),
		middleware.Metrics(opts.Metrics),
	)
	if opts.Timeout > 0 {
		root.Use(middleware.Timeout(opts.Timeout))
	}

	h := handlers.New(api, opts.StartedAt)
	registerRoutes(root, h, middleware.RequireAuth(api))

	return root
}

func registerRoutes(r chi.Router, h *handlers.Handlers, requireAuth middleware.Middleware) {
	r.Get("/health", h.Health)

	// auth
	r.Post("/auth/signup", h.Signup)
	r.Post("/auth/login", h.Login)
	r.Post("/auth/refresh", h.Refresh)

	r.Group(func(r chi.Router) {
		r.Use(requireAuth)

		r.Post("/auth/logout", h.Logout)

		// connection
		r.Post("/connection/get-connection-string", h.SaveConnection)
		r.Post("/connection/connect-to-database", h.Connect)
		r.Post("/connection/disconnect-database", h.Disconnect)
		r.Get("/connection/status", h.ConnectionStatus)
	})
}
