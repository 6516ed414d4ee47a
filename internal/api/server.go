// Package api exposes the daemon's control surface to the browser
// extension and local tooling.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/goodtune/focusd/internal/analysis"
	"github.com/goodtune/focusd/internal/config"
	"github.com/goodtune/focusd/internal/session"
	"github.com/goodtune/focusd/internal/storage"
	"github.com/goodtune/focusd/internal/watch"
)

// SessionController is the slice of the session manager the API uses.
type SessionController interface {
	StartFocus(ctx context.Context, d time.Duration) session.Status
	StartBreak(ctx context.Context, d time.Duration) session.Status
	End(ctx context.Context) session.Status
	Status() session.Status
}

// TabController is the slice of the tab watcher the API uses.
type TabController interface {
	Handle(ctx context.Context, ev watch.Event)
	AnalyzeNow(ctx context.Context, tabID string, page analysis.Page) analysis.Verdict
}

// Server is the control API HTTP server.
type Server struct {
	cfg      config.ServerConfig
	sessions SessionController
	tabs     TabController
	stats    storage.StatsStore
	logs     storage.LogStore
	server   *http.Server
	router   *mux.Router
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
	logger   zerolog.Logger
}

// NewServer creates the control API server.
func NewServer(cfg config.ServerConfig, sessions SessionController, tabs TabController, stats storage.StatsStore, logs storage.LogStore, logger zerolog.Logger) *Server {
	router := mux.NewRouter()

	s := &Server{
		cfg:      cfg,
		sessions: sessions,
		tabs:     tabs,
		stats:    stats,
		logs:     logs,
		router:   router,
		logger:   logger.With().Str("component", "api").Logger(),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.BindAddress, cfg.APIPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Use(LoggingMiddleware(s.logger))
	if len(s.cfg.AllowedOrigins) > 0 {
		s.router.Use(CORSMiddleware(s.cfg.AllowedOrigins))
	}

	// OPTIONS is routed so the CORS middleware sees extension
	// preflight requests.
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	s.router.HandleFunc("/session/start", s.handleSessionStart).Methods(http.MethodPost, http.MethodOptions)
	s.router.HandleFunc("/session/break", s.handleSessionBreak).Methods(http.MethodPost, http.MethodOptions)
	s.router.HandleFunc("/session/end", s.handleSessionEnd).Methods(http.MethodPost, http.MethodOptions)
	s.router.HandleFunc("/session/status", s.handleSessionStatus).Methods(http.MethodGet, http.MethodOptions)
	s.router.HandleFunc("/session/stats", s.handleSessionStats).Methods(http.MethodGet, http.MethodOptions)

	s.router.HandleFunc("/analyze-distraction", s.handleAnalyzeDistraction).Methods(http.MethodPost, http.MethodOptions)
	s.router.HandleFunc("/tab/event", s.handleTabEvent).Methods(http.MethodPost, http.MethodOptions)

	s.router.HandleFunc("/log/url", s.handleLogURL).Methods(http.MethodPost, http.MethodOptions)
	s.router.HandleFunc("/log/url", s.handleQueryURLs).Methods(http.MethodGet)
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Handler returns the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the API server.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting control API server")
	go func() {
		var err error
		if s.listener != nil {
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Control API server error")
		}
	}()
	return nil
}

// Stop gracefully stops the API server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("Stopping control API server")
	return s.server.Shutdown(ctx)
}
