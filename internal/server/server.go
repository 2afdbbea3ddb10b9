// Package server implements the detour HTTP API.
//
// Each session owns a router. Clients create a session, post transactions
// to it and read back the resulting routes:
//
//	POST   /sessions                    create a session (body: parameters)
//	GET    /sessions/{id}               current routes and failures
//	POST   /sessions/{id}/transactions  queue and commit operations
//	DELETE /sessions/{id}               drop a session
//	GET    /metrics                     observability counters
//	GET    /healthz                     liveness
//
// Operations use the scene format of package scene. Errors are JSON bodies
// with the error code; see package httputil for the status mapping.
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/detour/pkg/buildinfo"
	"github.com/matzehuels/detour/pkg/observability"
	"github.com/matzehuels/detour/pkg/router"
	"github.com/matzehuels/detour/pkg/session"
)

// Default server settings.
const (
	DefaultAddr            = ":8080"
	DefaultCleanupInterval = time.Minute
	shutdownTimeout        = 10 * time.Second
)

// Config configures a Server.
type Config struct {
	Addr string

	// Params are the router parameters sessions start from. Parameters
	// posted when creating a session are merged over them.
	Params router.Parameters

	SessionTTL      time.Duration
	MaxSessions     int
	CleanupInterval time.Duration

	Logger   *log.Logger
	Counters *observability.Counters
}

// ValidateAndSetDefaults fills unset fields and validates the parameters.
func (c *Config) ValidateAndSetDefaults() error {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.Params == (router.Parameters{}) {
		c.Params = router.Defaults()
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = session.DefaultTTL
	}
	if c.MaxSessions <= 0 {
		c.MaxSessions = session.DefaultMaxSessions
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = DefaultCleanupInterval
	}
	if c.Logger == nil {
		c.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if c.Counters == nil {
		c.Counters = observability.NewCounters()
	}
	return c.Params.ValidateAndSetDefaults()
}

// Server serves the HTTP API.
type Server struct {
	cfg     Config
	store   session.Store
	logger  *log.Logger
	hooks   *observability.Counters
	handler http.Handler
}

// New creates a server.
func New(cfg Config) (*Server, error) {
	if err := cfg.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	s := &Server{
		cfg:    cfg,
		store:  session.NewMemoryStore(cfg.MaxSessions),
		logger: cfg.Logger,
		hooks:  cfg.Counters,
	}
	s.handler = s.routes()
	return s, nil
}

// Handler returns the HTTP handler of the API.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", s.handleMetrics)
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Post("/transactions", s.handleTransaction)
		})
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
// Expired sessions are dropped every CleanupInterval.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.cleanupLoop(ctx)

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.Addr, "version", buildinfo.Version)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) cleanupLoop(ctx context.Context) {
	t := time.NewTicker(s.cfg.CleanupInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n, _ := s.store.Cleanup(ctx); n > 0 {
				s.logger.Debug("expired sessions removed", "count", n)
			}
		}
	}
}

// observe logs requests and reports them to the hooks.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		s.hooks.OnRequest(r.Context(), r.Method, r.URL.Path)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		d := time.Since(start)
		s.hooks.OnResponse(r.Context(), r.Method, r.URL.Path, status, d)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration", d,
			"request_id", middleware.GetReqID(r.Context()))
	})
}
