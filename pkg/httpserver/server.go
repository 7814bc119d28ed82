package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mselser95/polymarket-hedge/pkg/healthprobe"
	"github.com/mselser95/polymarket-hedge/pkg/lock"
	"github.com/mselser95/polymarket-hedge/pkg/types"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Executor runs hedge pair executions.
type Executor interface {
	Execute(ctx context.Context, req *types.ExecutionRequest) (types.TradeResult, error)
}

// Session is the account session exposed over HTTP.
type Session interface {
	Unlock(password string) error
	Lock()
	IsUnlocked() bool
	Address() common.Address
}

// PairSource looks up hedge pairs by id.
type PairSource interface {
	Get(ctx context.Context, pairID string) (*types.HedgePair, error)
}

// Server provides the hedge API plus metrics and health endpoints.
type Server struct {
	server        *http.Server
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
}

// Config holds server configuration.
type Config struct {
	Port          string
	Logger        *zap.Logger
	HealthChecker *healthprobe.HealthChecker

	// Executor and Session enable the execution and session routes.
	Executor Executor
	Session  Session
	Locker   lock.Locker

	// Pairs and Progress are optional.
	Pairs    PairSource
	Progress http.Handler

	// LockWait bounds how long an execution waits for a concurrent one on the same account.
	LockWait time.Duration
	// WriteTimeout must exceed the longest execution.
	WriteTimeout time.Duration
}

// New creates a new HTTP server.
func New(cfg *Config) *Server {
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Minute
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           NewRouter(cfg),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{
		server:        server,
		logger:        cfg.Logger,
		healthChecker: cfg.HealthChecker,
	}
}

// NewRouter builds the route table.
func NewRouter(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))

		r.Get("/metrics", promhttp.Handler().ServeHTTP)
		r.Get("/health", cfg.HealthChecker.Health())
		r.Get("/ready", cfg.HealthChecker.Ready())
	})

	if cfg.Progress != nil {
		r.Handle("/ws/executions", cfg.Progress)
	}

	h := &handlers{
		executor: cfg.Executor,
		session:  cfg.Session,
		locker:   cfg.Locker,
		pairs:    cfg.Pairs,
		lockWait: cfg.LockWait,
		logger:   cfg.Logger,
	}
	if h.locker == nil {
		h.locker = lock.NewMemoryLocker()
	}
	if h.lockWait <= 0 {
		h.lockWait = 30 * time.Second
	}

	r.Route("/api", func(r chi.Router) {
		if cfg.Executor != nil && cfg.Session != nil {
			// no request timeout: legs are bounded by the engine
			r.Post("/hedge/execute", h.execute)
		}

		if cfg.Session != nil {
			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(30 * time.Second))
				r.Post("/session/unlock", h.unlock)
				r.Post("/session/lock", h.lock)
				r.Get("/session", h.sessionStatus)
			})
		}

		if cfg.Pairs != nil {
			r.With(middleware.Timeout(30*time.Second)).Get("/pairs/{pairID}", h.pair)
		}
	})

	return r
}

// Start starts the HTTP server.
// This is a blocking call that returns when the server stops or encounters an error.
func (s *Server) Start() error {
	s.logger.Info("http-server-starting", zap.String("addr", s.server.Addr))

	err := s.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http-server-shutting-down")

	err := s.server.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("http-server-shutdown-complete")
	return nil
}
