// Package api serves the scoreboard read-only over HTTP so that a second
// screen or a stats collector can follow a test.
package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/hrm"
	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/results"
	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/roster"
	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/safego"
	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/shuttle"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
	writeTimeout      = 30 * time.Second
)

// FrameSource supplies the latest test frame; *shuttle.Driver is one.
type FrameSource interface {
	Frame() shuttle.Frame
}

// HeartRates supplies the latest heart-rate reading per player; *hrm.Tracker is one.
type HeartRates interface {
	Latest() map[int]hrm.Reading
}

// SessionStore lists stored results; *results.SQLiteStore is one.
type SessionStore interface {
	Sessions(ctx context.Context) ([]string, error)
	ListSession(ctx context.Context, sessionID string) ([]results.Result, error)
}

// Option configures optional collaborators.
type Option func(*Server)

func WithHeartRates(h HeartRates) Option {
	return func(s *Server) { s.heartRates = h }
}

func WithSessionStore(st SessionStore) Option {
	return func(s *Server) { s.store = st }
}

// Server wraps the chi router and the scoreboard it exposes.
type Server struct {
	router     *chi.Mux
	frames     FrameSource
	roster     *roster.Roster
	heartRates HeartRates
	store      SessionStore
	registry   *prometheus.Registry
	logger     *log.Logger
	addr       string

	mu       sync.Mutex
	httpSrv  *http.Server
	listener net.Listener
	wg       sync.WaitGroup
}

func NewServer(addr string, frames FrameSource, r *roster.Roster, logger *log.Logger, opts ...Option) *Server {
	if frames == nil {
		panic("Server: frames cannot be nil")
	}
	if r == nil {
		panic("Server: roster cannot be nil")
	}
	if logger == nil {
		panic("Server: logger cannot be nil")
	}

	srv := &Server{
		router: chi.NewRouter(),
		frames: frames,
		roster: r,
		logger: logger,
		addr:   addr,
	}
	for _, opt := range opts {
		opt(srv)
	}
	srv.registry = newRegistry(srv)

	srv.router.Use(middleware.RequestID)
	srv.router.Use(middleware.Recoverer)
	srv.router.Use(srv.loggingMiddleware)
	srv.router.Use(metricsMiddleware)
	srv.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	srv.routes()

	return srv
}

func (s *Server) routes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Handle("/metrics", metricsHandler(s.registry))

	s.router.Get("/v1/state", s.handleGetState)
	s.router.Get("/v1/stats", s.handleGetStats)
	s.router.Get("/v1/protocol", s.handleGetProtocol)

	s.router.Route("/v1/players", func(r chi.Router) {
		r.Get("/", s.handleListPlayers)
		r.Get("/{id}", s.handleGetPlayer)
	})

	s.router.Route("/v1/sessions", func(r chi.Router) {
		r.Get("/", s.handleListSessions)
		r.Get("/{id}/results", s.handleGetSessionResults)
	})
}

// Router returns the chi router, for tests and embedding.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start binds the address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}

	httpSrv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
	}

	s.mu.Lock()
	s.httpSrv = httpSrv
	s.listener = ln
	s.mu.Unlock()

	s.wg.Add(1)
	safego.Go(s.logger, "api.Serve", func() {
		defer s.wg.Done()
		s.logger.Printf("API: Listening on %s", ln.Addr())
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("API: Server error: %v", err)
		}
	})
	return nil
}

// Addr is the bound address once started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Shutdown stops the server, waiting briefly for in-flight requests.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	httpSrv := s.httpSrv
	s.httpSrv = nil
	s.mu.Unlock()
	if httpSrv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := httpSrv.Shutdown(ctx)
	s.wg.Wait()
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Printf("API: Server stopped")
	return nil
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Printf("API: %s %s %d %dms [%s]",
			r.Method, r.URL.Path, ww.Status(),
			time.Since(start).Milliseconds(),
			middleware.GetReqID(r.Context()))
	})
}
