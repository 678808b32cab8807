package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/edvin/backupvault/internal/api/handler"
	mw "github.com/edvin/backupvault/internal/api/middleware"
	"github.com/edvin/backupvault/internal/config"
	"github.com/edvin/backupvault/internal/core"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	router         chi.Router
	logger         zerolog.Logger
	services       *core.Services
	db             Pinger
	temporalClient temporalclient.Client
	cfg            *config.Config
}

// NewServer wires the HTTP routes. temporalClient is nil when jobs run on the
// in-process pool; readiness then only checks the database.
func NewServer(logger zerolog.Logger, services *core.Services, db Pinger, temporalClient temporalclient.Client, cfg *config.Config) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		logger:         logger.With().Str("component", "api").Logger(),
		services:       services,
		db:             db,
		temporalClient: temporalClient,
		cfg:            cfg,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(mw.Metrics)
}

func (s *Server) setupRoutes() {
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	// Payment notifications are unauthenticated; the payment is verified
	// with Mollie before anything changes.
	webhook := handler.NewWebhook(s.services.Plan)
	s.router.Post("/webhooks/mollie", webhook.Mollie)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.Auth([]byte(s.cfg.JWTSecret), s.cfg.JWTIssuer))

		backup := handler.NewBackup(s.services.Backup)
		r.Post("/backups", backup.Create)
		r.Get("/backups", backup.List)
		r.Get("/backups/{id}", backup.Get)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if err := s.db.Ping(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("readiness: database ping failed")
		checks["database"] = "unavailable"
		healthy = false
	} else {
		checks["database"] = "ok"
	}

	if s.temporalClient != nil {
		if _, err := s.temporalClient.CheckHealth(ctx, &temporalclient.CheckHealthRequest{}); err != nil {
			s.logger.Warn().Err(err).Msg("readiness: temporal health check failed")
			checks["temporal"] = "unavailable"
			healthy = false
		} else {
			checks["temporal"] = "ok"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(checks)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
