package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/nao1215/spoilerguard/internal/dom"
	"github.com/nao1215/spoilerguard/internal/engine"
	"github.com/nao1215/spoilerguard/internal/fetch"
	"github.com/nao1215/spoilerguard/internal/source"
	"github.com/nao1215/spoilerguard/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// DefaultMaxSessions caps the number of open page sessions. The oldest
	// session is closed when a new one would exceed it.
	DefaultMaxSessions = 32

	// maxRequestBody bounds JSON and markup request bodies.
	maxRequestBody = 1 << 20

	shutdownTimeout = 5 * time.Second
)

// EngineFactory builds an engine for a freshly loaded document.
type EngineFactory func(doc *dom.Document, src *source.Adapter) *engine.Engine

// Server is the local reading proxy. It loads pages, redacts them and keeps
// one engine per page session so that reveals, mode switches and content
// updates act on live state.
type Server struct {
	router      *chi.Mux
	broker      *store.Broker
	messenger   source.Messenger
	src         *source.Adapter
	loader      fetch.Loader
	newEngine   EngineFactory
	gatherer    prometheus.Gatherer
	logger      *slog.Logger
	maxSessions int

	baseCtx context.Context
	stop    context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*pageSession
	order    []string
}

type pageSession struct {
	id      string
	engine  *engine.Engine
	cancel  context.CancelFunc
	created time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithGatherer sets the registry exposed on /metrics.
// Default: prometheus.DefaultGatherer.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		if g != nil {
			s.gatherer = g
		}
	}
}

// WithMessenger sets the keyword store seen by page sessions.
// Default: the broker itself.
func WithMessenger(m source.Messenger) Option {
	return func(s *Server) {
		if m != nil {
			s.messenger = m
		}
	}
}

// WithMaxSessions overrides DefaultMaxSessions.
func WithMaxSessions(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxSessions = n
		}
	}
}

// New returns a Server. broker backs both the message relay and the
// keyword source of every session; loader fetches pages for /view.
func New(broker *store.Broker, loader fetch.Loader, factory EngineFactory, opts ...Option) *Server {
	s := &Server{
		broker:      broker,
		loader:      loader,
		newEngine:   factory,
		gatherer:    prometheus.DefaultGatherer,
		logger:      slog.Default(),
		maxSessions: DefaultMaxSessions,
		sessions:    make(map[string]*pageSession),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.messenger == nil {
		s.messenger = broker
	}
	s.src = source.New(s.messenger, s.logger)
	s.baseCtx, s.stop = context.WithCancel(context.Background())
	s.router = s.routes()
	return s
}

func (s *Server) routes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.logger))

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Get("/static/reveal.js", s.handleRevealScript)
	r.Post("/api/messages", s.handleMessage)
	r.Get("/view", s.handleView)

	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/", s.handleSession)
		r.Delete("/", s.handleCloseSession)
		r.Post("/reveal/{spoilerID}", s.handleReveal)
		r.Post("/mode", s.handleMode)
		r.Post("/content", s.handleContent)
		r.Post("/reset", s.handleReset)
	})
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully and closes every session.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	if err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// Close stops every session watcher.
func (s *Server) Close() {
	s.stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ps := range s.sessions {
		ps.cancel()
		delete(s.sessions, id)
	}
	s.order = nil
}

// open registers a session for eng and starts its mutation watcher.
func (s *Server) open(eng *engine.Engine) *pageSession {
	ctx, cancel := context.WithCancel(s.baseCtx)
	ps := &pageSession{
		id:      uuid.NewString(),
		engine:  eng,
		cancel:  cancel,
		created: time.Now(),
	}
	go func() {
		if err := eng.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("watcher stopped", "session", ps.id, "error", err)
		}
	}()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[ps.id] = ps
	s.order = append(s.order, ps.id)
	for len(s.order) > s.maxSessions {
		oldest := s.order[0]
		s.order = s.order[1:]
		if old, ok := s.sessions[oldest]; ok {
			old.cancel()
			delete(s.sessions, oldest)
			s.logger.Debug("session evicted", "session", oldest)
		}
	}
	return ps
}

func (s *Server) lookup(id string) (*pageSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps, ok := s.sessions[id]
	return ps, ok
}

func (s *Server) closeSession(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps, ok := s.sessions[id]
	if !ok {
		return false
	}
	ps.cancel()
	delete(s.sessions, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// SessionCount returns the number of open sessions.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
