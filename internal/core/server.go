// Package core provides the HTTP chassis for the webhook endpoint: a chi
// router with request correlation, structured request logging, panic
// recovery, and health probes. Domain handlers are mounted by the
// application entry point through RouteRegistrars, which keeps core free of
// handler imports.
package core

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"subgate/internal/config"
)

// RouteRegistrar mounts a group of domain routes on the router.
type RouteRegistrar func(r chi.Router)

// Server bundles the router with its cross-cutting dependencies.
type Server struct {
	Config          *config.Config
	Logger          *slog.Logger
	HealthProbes    []HealthProbe
	RouteRegistrars []RouteRegistrar

	router *chi.Mux
}

// NewServer initializes the server and fails fast on missing dependencies.
// The caller mounts routes via MountRoutes after construction.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config: cfg,
		Logger: logger,
		router: chi.NewRouter(),
	}, nil
}

// MountRoutes installs the middleware chain, the health endpoint, and every
// registered domain route group.
func (s *Server) MountRoutes() {
	s.router.Use(s.Recoverer)
	s.router.Use(RequestIDMiddleware)
	s.router.Use(RequestLogger(s.Logger))

	s.router.Get("/health", s.HandleHealth)

	for _, registrar := range s.RouteRegistrars {
		registrar(s.router)
	}
}

// Handler returns the router as an http.Handler for http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}
