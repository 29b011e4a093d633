package api

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/sendgrid-analytics/internal/analytics"
	"github.com/ignite/sendgrid-analytics/internal/config"
	"github.com/ignite/sendgrid-analytics/internal/datanorm"
	"github.com/ignite/sendgrid-analytics/internal/report"
	"github.com/ignite/sendgrid-analytics/internal/storage"
)

// Deps are the collaborators the API serves from. Cache, Archive and Redis
// may be nil.
type Deps struct {
	Sessions *storage.SessionStore
	Importer *datanorm.Importer
	Engine   *analytics.Engine
	Cache    storage.ResultCache
	Reports  *report.Builder
	Archive  *storage.ReportArchive
	Redis    *redis.Client
}

// Server represents the API server
type Server struct {
	config  config.ServerConfig
	handler http.Handler
	server  *http.Server
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, deps Deps) *Server {
	handlers := NewHandlers(cfg, deps)

	var bucket BucketChecker
	if deps.Archive != nil {
		bucket = deps.Archive
	}
	health := NewHealthChecker(deps.Redis, bucket, deps.Sessions)

	return &Server{
		config:  cfg.Server,
		handler: SetupRoutes(handlers, health, cfg.Server.AllowedOrigins),
	}
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadTimeout:       s.config.ReadTimeout(),
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      s.config.WriteTimeout(),
		IdleTimeout:       120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing
func (s *Server) Handler() http.Handler {
	return s.handler
}
