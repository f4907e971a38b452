package api

import (
	"net/http"

	"github.com/Rrens/crm/internal/api/handler"
	customMiddleware "github.com/Rrens/crm/internal/api/middleware"
	"github.com/Rrens/crm/internal/config"
	"github.com/Rrens/crm/internal/domain"
	"github.com/Rrens/crm/internal/metrics"
	"github.com/Rrens/crm/internal/ratelimit"
	"github.com/Rrens/crm/internal/security"
	"github.com/Rrens/crm/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies are the driver-specific pieces the router wires together.
type Dependencies struct {
	Users      domain.UserRepository
	Workspaces domain.WorkspaceRepository
	Clients    domain.ClientRepository

	// Publisher receives committed events; nil discards them.
	Publisher domain.EventPublisher
	// Activity serves the workspace feed; nil yields empty feeds.
	Activity domain.ActivityFeed
	// RateLimiter is optional; requests are not limited without it.
	RateLimiter ratelimit.Limiter

	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Ready    map[string]handler.Pinger
}

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.Logger(deps.Metrics))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Server.MiddlewareTimeout))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	jwtManager := security.NewJWTManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenTTL,
		cfg.Auth.RefreshTokenTTL,
	)
	identity := customMiddleware.ContextIdentity{}

	// Services
	authz := service.NewAuthorizationService(deps.Workspaces, deps.Metrics)
	authService := service.NewAuthService(deps.Users, jwtManager)
	workspaceService := service.NewWorkspaceService(deps.Workspaces, deps.Users, authz, deps.Publisher, deps.Metrics)
	clientService := service.NewClientService(
		deps.Clients,
		deps.Workspaces,
		authz,
		deps.Publisher,
		deps.Metrics,
		cfg.Clients.DefaultPageSize,
		cfg.Clients.MaxPageSize,
	)
	activityService := service.NewActivityService(deps.Activity, authz)

	// Handlers
	authHandler := handler.NewAuthHandler(authService, identity)
	workspaceHandler := handler.NewWorkspaceHandler(workspaceService, activityService, identity)
	clientHandler := handler.NewClientHandler(clientService, identity)

	authMiddleware := customMiddleware.NewAuthMiddleware(jwtManager)

	if cfg.Metrics.Enabled && deps.Gatherer != nil {
		r.Handle(cfg.Metrics.Path, promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handler.HealthCheck)
		r.Get("/ready", handler.ReadyCheck(deps.Ready))

		// Auth routes (public)
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			if deps.RateLimiter != nil {
				r.Use(customMiddleware.NewRateLimitMiddleware(deps.RateLimiter, deps.Metrics).Limit)
			}

			r.Get("/me", authHandler.Me)

			r.Route("/workspaces", func(r chi.Router) {
				r.Get("/", workspaceHandler.List)
				r.Post("/", workspaceHandler.Create)
				r.Get("/by-slug/{slug}", workspaceHandler.GetBySlug)

				r.Route("/{workspaceID}", func(r chi.Router) {
					r.Use(customMiddleware.WorkspaceContext)

					r.Get("/", workspaceHandler.Get)
					r.Patch("/", workspaceHandler.Update)
					r.Delete("/", workspaceHandler.Delete)
					r.Post("/restore", workspaceHandler.Restore)
					r.Delete("/permanent", workspaceHandler.HardDelete)
					r.Get("/activity", workspaceHandler.Activity)

					r.Route("/members", func(r chi.Router) {
						r.Get("/", workspaceHandler.ListMembers)
						r.Post("/", workspaceHandler.InviteMember)
						r.Post("/accept", workspaceHandler.AcceptInvite)
						r.Patch("/{userID}", workspaceHandler.UpdateMember)
						r.Delete("/{userID}", workspaceHandler.RemoveMember)
					})

					r.Route("/clients", func(r chi.Router) {
						r.Get("/", clientHandler.List)
						r.Post("/", clientHandler.Create)

						r.Route("/{clientID}", func(r chi.Router) {
							r.Get("/", clientHandler.Get)
							r.Patch("/", clientHandler.Update)
							r.Delete("/", clientHandler.Delete)
							r.Post("/restore", clientHandler.Restore)
							r.Delete("/permanent", clientHandler.HardDelete)
						})
					})
				})
			})
		})
	})

	return r
}
