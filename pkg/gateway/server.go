// Package gateway exposes the assistant over HTTP: a JSON chat endpoint,
// a websocket variant with progress frames, login, session administration,
// health, and Prometheus metrics. Every route except login, health, and
// metrics requires a valid X-API-Key header.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/maiahq/maia/internal/metrics"
	"github.com/maiahq/maia/pkg/apikey"
	"github.com/maiahq/maia/pkg/orchestrator"
)

// Server is the HTTP front door for the assistant.
type Server struct {
	addr         string
	server       *http.Server
	upgrader     websocket.Upgrader
	orchestrator *orchestrator.Orchestrator
	authority    *apikey.Authority
	metrics      *metrics.Metrics
	logger       zerolog.Logger
}

// Config holds server configuration.
type Config struct {
	Host         string
	Port         int
	Orchestrator *orchestrator.Orchestrator
	Authority    *apikey.Authority
	Metrics      *metrics.Metrics
	Logger       zerolog.Logger
}

// NewServer creates a gateway server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.Orchestrator == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}
	if cfg.Authority == nil {
		return nil, fmt.Errorf("api key authority is required")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewMetrics()
	}

	s := &Server{
		addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		orchestrator: cfg.Orchestrator,
		authority:    cfg.Authority,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for now
			},
		},
	}
	return s, nil
}

// Handler builds the route tree. Exposed so tests can drive the server
// through httptest without binding a port.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", s.metrics.Handler())
	r.Post("/api/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAPIKey)
		r.Post("/api/chat", s.handleChat)
		r.Get("/ws/chat", s.handleChatSocket)
		r.Get("/api/sessions", s.handleListSessions)
		r.Get("/api/sessions/{sessionID}", s.handleSessionInfo)
		r.Delete("/api/sessions/{sessionID}", s.handleDeleteSession)
	})

	return r
}

// Start begins serving. It does not block.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info().Str("addr", s.addr).Msg("Starting gateway")

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Gateway server error")
		}
	}()
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info().Msg("Shutting down gateway")
	return s.server.Shutdown(ctx)
}
