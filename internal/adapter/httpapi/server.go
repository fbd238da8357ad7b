package httpapi

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/simaogato/wealthflow-valuation/internal/usecase/contribution"
	"github.com/simaogato/wealthflow-valuation/internal/usecase/dashboard"
	"github.com/simaogato/wealthflow-valuation/internal/usecase/investment"
	"github.com/simaogato/wealthflow-valuation/internal/usecase/valuation"
)

// Config holds server configuration
type Config struct {
	Port     int
	APIToken string
	Log      zerolog.Logger
	Clock    func() time.Time

	Valuation    *valuation.ValuationService
	Dashboard    *dashboard.DashboardService
	Investment   *investment.InvestmentService
	Contribution *contribution.ContributionService
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	token  string
	now    func() time.Time

	valuation    *valuation.ValuationService
	dashboard    *dashboard.DashboardService
	investment   *investment.InvestmentService
	contribution *contribution.ContributionService
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	s := &Server{
		router:       chi.NewRouter(),
		log:          cfg.Log.With().Str("component", "http").Logger(),
		token:        cfg.APIToken,
		now:          cfg.Clock,
		valuation:    cfg.Valuation,
		dashboard:    cfg.Dashboard,
		investment:   cfg.Investment,
		contribution: cfg.Contribution,
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the root handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(30 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/net-worth", s.handleNetWorth)

		r.Route("/assets", func(r chi.Router) {
			r.Post("/", s.handleCreateAsset)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/value", s.handleAssetValue)
				r.Get("/growth", s.handleAssetGrowth)
				r.Get("/profit", s.handleAssetProfit)
				r.Post("/investments", s.handleAddInvestment)
				r.Put("/strategy", s.handleChangeStrategy)
				r.Put("/manual-value", s.handleSetManualValue)
			})
		})

		r.Route("/contribution-plans", func(r chi.Router) {
			r.Post("/", s.handleCreatePlan)
			r.Post("/run", s.handleRunPlans)
		})

		r.Route("/script-cache", func(r chi.Router) {
			r.Delete("/", s.handleClearScriptCache)
			r.Post("/invalidate", s.handleInvalidateScriptCache)
		})

		r.Post("/scripts/run", s.handleRunScript)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

// authMiddleware requires the API token as a bearer token or bare Authorization value
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if header == "" {
			respondError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		token := header
		if len(token) > len("bearer ") && strings.EqualFold(token[:len("bearer ")], "bearer ") {
			token = strings.TrimSpace(token[len("bearer "):])
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.token)) != 1 {
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		next.ServeHTTP(w, r)
	})
}
