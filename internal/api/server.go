// Package api exposes OpsCopilot conversations over HTTP and WebSocket.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/BTreeMap/OpsCopilot/internal/flow"
	"github.com/BTreeMap/OpsCopilot/internal/metrics"
	"github.com/BTreeMap/OpsCopilot/internal/preferences"
	"github.com/BTreeMap/OpsCopilot/internal/store"
)

// Server defaults.
const (
	DefaultAddr         = ":8080"
	DefaultReadTimeout  = 15 * time.Second
	DefaultWriteTimeout = 15 * time.Second
	// maxBodyBytes caps request bodies.
	maxBodyBytes = 1 << 20
)

// Opts holds configuration for the API server.
type Opts struct {
	Addr        string
	Store       store.Store
	Theme       *preferences.Theme
	FlowOptions []flow.Option
}

// Option configures the server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithStore sets the store used for transcripts and flow state.
func WithStore(st store.Store) Option {
	return func(o *Opts) { o.Store = st }
}

// WithTheme sets the loaded theme preference.
func WithTheme(t *preferences.Theme) Option {
	return func(o *Opts) { o.Theme = t }
}

// WithFlowOptions adds options applied to every new session.
func WithFlowOptions(opts ...flow.Option) Option {
	return func(o *Opts) { o.FlowOptions = append(o.FlowOptions, opts...) }
}

// Server serves the OpsCopilot REST and streaming API.
type Server struct {
	addr       string
	router     *mux.Router
	sessions   *SessionManager
	store      store.Store
	theme      *preferences.Theme
	upgrader   websocket.Upgrader
	httpServer *http.Server
}

// NewServer builds a server. A store and theme are required.
func NewServer(opts ...Option) (*Server, error) {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("api server requires a store")
	}
	if cfg.Theme == nil {
		return nil, fmt.Errorf("api server requires a theme preference")
	}

	flowOpts := []flow.Option{
		flow.WithArchive(cfg.Store),
		flow.WithStateManager(flow.NewStoreBasedStateManager(cfg.Store)),
	}
	flowOpts = append(flowOpts, cfg.FlowOptions...)

	s := &Server{
		addr:     cfg.Addr,
		router:   mux.NewRouter(),
		sessions: NewSessionManager(flowOpts...),
		store:    cfg.Store,
		theme:    cfg.Theme,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.registerRoutes()
	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}
	slog.Debug("Server created", "addr", s.addr)
	return s, nil
}

func (s *Server) registerRoutes() {
	s.router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	s.router.NotFoundHandler = http.HandlerFunc(notFoundHandler)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowedHandler)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.NotFoundHandler = http.HandlerFunc(notFoundHandler)
	api.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowedHandler)

	api.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet)

	api.HandleFunc("/sessions", s.createSessionHandler).Methods(http.MethodPost)
	api.HandleFunc("/sessions", s.listSessionsHandler).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", s.getSessionHandler).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", s.deleteSessionHandler).Methods(http.MethodDelete)
	api.HandleFunc("/sessions/{id}/messages", s.submitMessageHandler).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/actions", s.actionHandler).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/cancel", s.cancelHandler).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/activity", s.activityHandler).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/transcript", s.transcriptHandler).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/timers", s.timersHandler).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/stream", s.streamHandler)

	api.HandleFunc("/preferences/theme", s.getThemeHandler).Methods(http.MethodGet)
	api.HandleFunc("/preferences/theme", s.setThemeHandler).Methods(http.MethodPut)
	api.HandleFunc("/preferences/theme/toggle", s.toggleThemeHandler).Methods(http.MethodPost)
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Sessions returns the session manager.
func (s *Server) Sessions() *SessionManager {
	return s.sessions
}

// Start serves until Shutdown is called. It returns nil after a clean shutdown.
func (s *Server) Start() error {
	slog.Info("API server listening", "addr", s.addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("API server failed", "error", err)
		return err
	}
	return nil
}

// Shutdown closes every session and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.sessions.CloseAll()
	slog.Info("API server shutting down")
	return s.httpServer.Shutdown(ctx)
}
