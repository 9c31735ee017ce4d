package router

import (
	"net/http"

	"kplays-api/internal/handler"
	"kplays-api/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config holds the configuration for creating a router. Nil handlers leave
// their routes unregistered.
type Config struct {
	Handler          *handler.Handler
	GameHandler      *handler.GameHandler
	StatsHandler     *handler.StatsHandler
	RequestHandler   *handler.RequestHandler
	AnalyticsHandler *handler.AnalyticsHandler
	AuthHandler      *handler.AuthHandler
	AdminHandler     *handler.AdminHandler

	SessionMiddleware func(http.Handler) http.Handler
	AdminMiddleware   func(http.Handler) http.Handler

	MetricsPath    string // empty disables /metrics
	AllowedOrigins []string
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "If-None-Match", "X-Request-ID", middleware.SessionHeader, handler.ViewerHeader},
		ExposedHeaders:   []string{"X-Request-ID", "ETag"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if cfg.SessionMiddleware != nil {
		r.Use(cfg.SessionMiddleware)
	}

	if cfg.MetricsPath != "" {
		r.Handle(cfg.MetricsPath, promhttp.Handler())
	}

	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Health check endpoints
		if cfg.Handler != nil {
			r.Get("/health", cfg.Handler.Health)
			r.Get("/ready", cfg.Handler.Ready)
		}

		if h := cfg.GameHandler; h != nil {
			r.Route("/games", func(r chi.Router) {
				r.Get("/", h.List)
				r.Get("/search", h.Search)
				r.Get("/events", h.Events)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", h.Get)
					r.Post("/view", h.View)
					r.Get("/download", h.Download)
					r.Get("/comments", h.Comments)
					r.Post("/comments", h.AddComment)
					r.Get("/events", h.GameEvents)
				})
			})
		}

		if h := cfg.StatsHandler; h != nil {
			r.Get("/stats", h.Dashboard)
			r.Get("/youtube", h.YouTube)
		}

		if h := cfg.RequestHandler; h != nil {
			r.Post("/requests", h.Submit)
		}

		if h := cfg.AnalyticsHandler; h != nil {
			r.Post("/analytics/performance", h.RecordPerformance)
			r.Post("/analytics/clicks", h.RecordClick)
		}

		if h := cfg.AuthHandler; h != nil {
			r.Route("/auth", func(r chi.Router) {
				r.Post("/signup", h.SignUp)
				r.Post("/signin", h.SignIn)
				r.Post("/signout", h.SignOut)
				r.Post("/refresh", h.Refresh)
				r.Get("/session", h.Session)
			})
		}

		// Admin endpoints require the admin's session.
		if h := cfg.AdminHandler; h != nil {
			r.Route("/admin", func(r chi.Router) {
				if cfg.AdminMiddleware != nil {
					r.Use(cfg.AdminMiddleware)
				}

				r.Get("/games", h.Games)
				r.Post("/games", h.CreateGame)
				r.Post("/games/bulk", h.BulkCreate)
				r.Post("/games/reorder", h.Reorder)
				r.Put("/games/{id}", h.UpdateGame)
				r.Delete("/games/{id}", h.DeleteGame)
				r.Put("/games/{id}/priority", h.UpdatePriority)

				r.Get("/overview", h.Overview)
				r.Get("/requests", h.Requests)
				r.Get("/system", h.System)
				r.Post("/cache/invalidate", h.InvalidateCache)
				r.Post("/maintenance/fix-priorities", h.FixPriorities)
				r.Post("/maintenance/arrange", h.ArrangeByCreation)

				if a := cfg.AnalyticsHandler; a != nil {
					r.Get("/performance", a.Report)
					r.Delete("/performance", a.Clear)
				}
			})
		}
	})

	return r
}
