package router

import (
	"net/http"

	"opmelink-api/internal/handler"
	"opmelink-api/internal/metrics"
	"opmelink-api/internal/middleware"
	"opmelink-api/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Config holds the configuration for creating a router.
// Nil handlers leave their routes unmounted.
type Config struct {
	Logger  *zap.Logger
	Metrics *metrics.Metrics

	Handler             *handler.Handler
	SyncHandler         *handler.SyncHandler
	RecordHandler       *handler.RecordHandler
	CaseHandler         *handler.CaseHandler
	SummaryHandler      *handler.SummaryHandler
	RestrictionHandler  *handler.RestrictionHandler
	ImplantHandler      *handler.ImplantHandler
	NotificationHandler *handler.NotificationHandler
	AuthHandler         *handler.AuthHandler
	AdminHandler        *handler.AdminHandler

	AuthMiddleware func(http.Handler) http.Handler
	SyncSecret     string
	LoginKey       string
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(logger, cfg.Metrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-Token", "X-Login-Key"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// PUBLIC routes (no auth required)
	r.Handle("/metrics", cfg.Metrics.Handler())
	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Handler != nil {
			r.Get("/health", cfg.Handler.Health)
			r.Get("/ready", cfg.Handler.Ready)
		}

		// Scheduled trigger, shared secret
		if cfg.SyncHandler != nil {
			r.With(middleware.RequireSyncSecret(cfg.SyncSecret)).Post("/sync", cfg.SyncHandler.Sync)
		}

		// Admin endpoints, X-Login-Key
		if cfg.AdminHandler != nil {
			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireLoginKey(cfg.LoginKey))
				r.Post("/tokens", cfg.AdminHandler.IssueToken)
				r.Get("/stats", cfg.AdminHandler.GetStats)
				r.Get("/sync-runs", cfg.AdminHandler.SyncRuns)
			})
		}

		// Session endpoints, X-Token
		r.Group(func(r chi.Router) {
			if cfg.AuthMiddleware != nil {
				r.Use(cfg.AuthMiddleware)
			}

			if cfg.AuthHandler != nil {
				r.Get("/auth/me", cfg.AuthHandler.Me)
				r.Post("/auth/revoke", cfg.AuthHandler.RevokeToken)
			}

			if cfg.SyncHandler != nil {
				r.Post("/records/fetch", cfg.SyncHandler.Fetch)
			}
			if cfg.RecordHandler != nil {
				r.Get("/records", cfg.RecordHandler.List)
				r.Get("/records/{case_id}", cfg.RecordHandler.Get)
			}

			if cfg.CaseHandler != nil {
				r.Route("/cases/{case_id}", func(r chi.Router) {
					r.Post("/scan", cfg.CaseHandler.Scan)
					r.Get("/links", cfg.CaseHandler.Links)
				})
			}

			if cfg.SummaryHandler != nil {
				r.Get("/summary/daily", cfg.SummaryHandler.Daily)
			}

			if cfg.RestrictionHandler != nil {
				r.Get("/restrictions", cfg.RestrictionHandler.List)
				r.Post("/restrictions", cfg.RestrictionHandler.Create)
				r.Delete("/restrictions", cfg.RestrictionHandler.Delete)
			}

			if cfg.ImplantHandler != nil {
				r.Get("/implants", cfg.ImplantHandler.List)
				r.Post("/implants", cfg.ImplantHandler.Save)
			}

			if cfg.NotificationHandler != nil {
				r.With(middleware.RequireRole(model.RoleReception)).
					Get("/notifications", cfg.NotificationHandler.Stream)
			}
		})
	})

	return r
}
