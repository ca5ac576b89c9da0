package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/harun/tanya/internal/observability"
	"github.com/harun/tanya/internal/tracing"
	"github.com/harun/tanya/pkg/runtime"
)

// Server exposes the conversation engine over HTTP: session lifecycle,
// message handling, trace inspection and a live trace stream.
type Server struct {
	host    string
	port    int
	runtime *runtime.Runtime

	server   *http.Server
	upgrader websocket.Upgrader
	stream   *streamHub

	logger zerolog.Logger

	isShuttingDown bool
	shutdownMu     sync.RWMutex
	inFlightReqs   sync.WaitGroup
}

// Config holds server configuration
type Config struct {
	Host    string
	Port    int
	Runtime *runtime.Runtime
	Logger  zerolog.Logger
}

// New creates a server.
func New(cfg Config) (*Server, error) {
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.Runtime == nil {
		return nil, fmt.Errorf("runtime is required")
	}

	s := &Server{
		host:    cfg.Host,
		port:    cfg.Port,
		runtime: cfg.Runtime,
		stream:  newStreamHub(cfg.Logger),
		logger:  cfg.Logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	s.stream.attach(cfg.Runtime)

	return s, nil
}

// routes builds the HTTP mux.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/sessions", s.wrap(s.handleStartSession))
	mux.HandleFunc("POST /v1/sessions/{id}/messages", s.wrap(s.handleMessage))
	mux.HandleFunc("GET /v1/sessions/{id}", s.wrap(s.handleGetSession))
	mux.HandleFunc("DELETE /v1/sessions/{id}", s.wrap(s.handleClearSession))
	mux.HandleFunc("GET /v1/sessions/{id}/trace", s.wrap(s.handleTrace))
	mux.HandleFunc("GET /v1/sessions/{id}/summary", s.wrap(s.handleSummary))
	mux.HandleFunc("GET /v1/sessions/{id}/trace/stream", s.handleTraceStream)

	mux.Handle("/metrics", observability.MetricsHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	return mux
}

// Start starts the server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.host, s.port),
		Handler: s.routes(),
	}

	s.logger.Info().Str("host", s.host).Int("port", s.port).Msg("Starting HTTP server")

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("HTTP server error")
		}
	}()

	return nil
}

// Stop gracefully stops the server.
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down HTTP server")

	done := make(chan struct{})
	go func() {
		s.inFlightReqs.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("All in-flight requests completed")
	case <-time.After(30 * time.Second):
		s.logger.Warn().Msg("Shutdown timeout reached, forcing close")
	}

	s.stream.closeAll()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info().Msg("HTTP server stopped")
	return nil
}

// wrap applies shutdown gating, in-flight accounting and request-scoped
// tracing context to a handler.
func (s *Server) wrap(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.shutdownMu.RLock()
		if s.isShuttingDown {
			s.shutdownMu.RUnlock()
			http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
			return
		}
		s.shutdownMu.RUnlock()

		s.inFlightReqs.Add(1)
		defer s.inFlightReqs.Done()

		ctx := tracing.NewRequestContext(r.Context())
		w.Header().Set("X-Request-Id", tracing.GetRequestID(ctx))

		handler(w, r.WithContext(ctx))
	}
}
