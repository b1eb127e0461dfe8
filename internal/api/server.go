// Package api wires the HTTP surface: operator routes behind API key auth,
// unauthenticated device routes, and the realtime websocket.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/bundlenudge/bundlenudge/internal/api/handler"
	mw "github.com/bundlenudge/bundlenudge/internal/api/middleware"
	"github.com/bundlenudge/bundlenudge/internal/config"
	"github.com/bundlenudge/bundlenudge/internal/core"
	"github.com/bundlenudge/bundlenudge/internal/hub"
	"github.com/bundlenudge/bundlenudge/internal/storage"
)

type Server struct {
	router   chi.Router
	logger   zerolog.Logger
	services *core.Services
	pool     *pgxpool.Pool
	rdb      *redis.Client
	hub      *hub.Hub
	uploader *storage.Uploader
	cfg      *config.Config
}

func NewServer(logger zerolog.Logger, pool *pgxpool.Pool, rdb *redis.Client, services *core.Services, eventHub *hub.Hub, uploader *storage.Uploader, cfg *config.Config) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		logger:   logger,
		services: services,
		pool:     pool,
		rdb:      rdb,
		hub:      eventHub,
		uploader: uploader,
		cfg:      cfg,
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

	device := handler.NewDevice(s.services.Check, s.services.Telemetry, s.uploader)
	realtime := handler.NewRealtime(s.hub)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Device routes are unauthenticated: installs hold no credentials.
		r.Route("/device", func(r chi.Router) {
			r.Post("/check", device.Check)
			r.Post("/telemetry", device.Telemetry)
			r.Get("/bundles/{appID}/{hash}", device.DownloadBundle)
		})

		// Operator routes.
		r.Group(func(r chi.Router) {
			r.Use(mw.Auth(s.pool))

			app := handler.NewApp(s.services.App)
			r.Get("/apps", app.List)
			r.Post("/apps", app.Create)
			r.Get("/apps/{id}", app.Get)

			upload := handler.NewUpload(s.services.Upload)
			r.Post("/apps/{appID}/bundles", upload.Submit)
			r.Get("/uploads/{jobID}", upload.GetJob)

			release := handler.NewRelease(s.services.Release, s.services.Upload, s.services.Telemetry)
			r.Get("/apps/{appID}/releases", release.ListByApp)
			r.Post("/apps/{appID}/releases", release.Create)
			r.Get("/releases/{id}", release.Get)
			r.Post("/releases/{id}/activate", release.Activate)
			r.Post("/releases/{id}/pause", release.Pause)
			r.Post("/releases/{id}/resume", release.Resume)
			r.Put("/releases/{id}/rollout", release.UpdateRollout)
			r.Post("/releases/{id}/promote", release.Promote)
			r.Post("/releases/{id}/rollback", release.Rollback)
			r.Get("/releases/{id}/telemetry", release.ListTelemetry)

			channel := handler.NewChannel(s.services.Channel)
			r.Get("/apps/{appID}/channels", channel.ListByApp)
			r.Post("/apps/{appID}/channels", channel.Create)
			r.Get("/channels/{id}", channel.Get)

			apiKey := handler.NewAPIKey(s.services.APIKey)
			r.Post("/api-keys", apiKey.Create)
			r.Delete("/api-keys/{id}", apiKey.Revoke)

			r.Get("/realtime", realtime.Connect)
			r.Get("/realtime/sessions", realtime.Sessions)
		})
	})

	// Service-to-service surface, guarded by the shared internal token.
	s.router.Route("/internal", func(r chi.Router) {
		r.Use(mw.InternalAuth(s.cfg.InternalToken))
		r.Post("/broadcast", realtime.Broadcast)
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

	if err := s.pool.Ping(ctx); err != nil {
		checks["db"] = err.Error()
		healthy = false
	} else {
		checks["db"] = "ok"
	}

	if err := s.rdb.Ping(ctx).Err(); err != nil {
		checks["redis"] = err.Error()
		healthy = false
	} else {
		checks["redis"] = "ok"
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
