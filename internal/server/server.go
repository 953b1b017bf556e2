// Package server provides the HTTP API, MJPEG preview and websocket events
// for livecapture.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/ayusman/livecapture/internal/app"
	"github.com/ayusman/livecapture/internal/capture"
	"github.com/ayusman/livecapture/internal/logging"
	"github.com/ayusman/livecapture/internal/server/api"
	"github.com/ayusman/livecapture/internal/store"
	"github.com/sirupsen/logrus"
)

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	// App, when set, enables session control, the preview stream and
	// websocket events.
	App *app.App
	// Encode overrides the JPEG encoder of the preview stream.
	Encode func(*capture.Frame) ([]byte, error)
	Log    *logrus.Entry
}

// Server represents the HTTP server for livecapture.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	events *EventHub
	log    *logrus.Entry

	mu   sync.Mutex
	http *http.Server
}

// New creates a new Server with the given configuration. With an App it
// registers the event hub as presenter and result callback.
func New(config Config) *Server {
	log := config.Log
	if log == nil {
		log = logging.For("server")
	}
	if config.Store == nil && config.App != nil {
		config.Store = config.App.Store()
	}

	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
		log:    log,
	}
	if config.App != nil {
		s.events = NewEventHub(log)
		config.App.AddPresenter(s.events)
		config.App.RegisterResultCallback(s.events.Result)
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Store != nil || s.config.App != nil {
		var controller api.Controller
		if s.config.App != nil {
			controller = s.config.App
		}
		sessions := api.NewSessionHandler(s.config.Store, controller)
		s.mux.Handle("/api/sessions", sessions)
		s.mux.Handle("/api/sessions/", sessions)
	}

	if s.config.App != nil {
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.App.Feed(), s.config.Encode))
		s.mux.Handle("/api/events", s.events)
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// Events returns the websocket hub, or nil without an App.
func (s *Server) Events() *EventHub {
	return s.events
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.config.App != nil {
		response["capture"] = s.config.App.Current() != nil
		response["clients"] = s.events.Clients()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe starts the HTTP server on the given address and blocks
// until Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.http = srv
	s.mu.Unlock()

	s.log.WithField("addr", addr).Info("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops a server started with ListenAndServe.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
