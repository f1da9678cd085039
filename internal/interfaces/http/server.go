// Package http serves the Bake Assist chat API.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/bakeassist/bakeassist/internal/agent"
	"github.com/bakeassist/bakeassist/internal/config"
	"github.com/bakeassist/bakeassist/internal/security"
	"github.com/bakeassist/bakeassist/internal/store"
	"github.com/bakeassist/bakeassist/internal/system/metrics"
)

// ChatRunner executes one chat turn for a verified customer.
type ChatRunner interface {
	Run(ctx context.Context, req *agent.RunRequest) (*agent.RunResult, error)
}

// CustomerDirectory lists and verifies customers.
type CustomerDirectory interface {
	ListCustomers(ctx context.Context) ([]store.Customer, error)
	CustomerExists(ctx context.Context, customerNumber string) (bool, error)
}

// Server is the HTTP + WebSocket front end.
type Server struct {
	router    *gin.Engine
	cfg       *config.Config
	logger    *slog.Logger
	runner    ChatRunner
	customers CustomerDirectory
	limiter   security.Limiter
	metrics   *metrics.Metrics
	upgrader  websocket.Upgrader
	startedAt time.Time

	wsPongWait   time.Duration
	wsPingPeriod time.Duration
}

// Option configures optional server collaborators.
type Option func(*Server)

// WithLimiter enables per-customer rate limiting of chat requests.
func WithLimiter(l security.Limiter) Option {
	return func(s *Server) { s.limiter = l }
}

// WithMetrics records HTTP metrics and serves /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// NewServer creates the server and registers its routes.
func NewServer(cfg *config.Config, runner ChatRunner, customers CustomerDirectory, logger *slog.Logger, opts ...Option) *Server {
	switch cfg.Server.Mode {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		router:    gin.New(),
		cfg:       cfg,
		logger:    logger.With("component", "http"),
		runner:    runner,
		customers: customers,
		startedAt: time.Now(),

		wsPongWait:   wsPongWait,
		wsPingPeriod: wsPingPeriod,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.originAllowed,
	}

	s.router.Use(requestIDMiddleware())
	s.router.Use(loggerMiddleware(s.logger, s.metrics))
	s.router.Use(recoveryMiddleware(s.logger))
	s.router.Use(corsMiddleware(cfg.Server.CORSOrigins))
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/", s.handleIndex)
	s.router.GET("/health", s.handleHealth)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	api := s.router.Group("/api")
	{
		api.GET("/customers", s.handleCustomers)
		api.POST("/chat", s.handleChat)
		api.GET("/chat/ws", s.handleChatWS)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := s.cfg.ListenAddr()
	s.logger.Info("starting HTTP server", "address", addr)

	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	listenErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			listenErr <- err
		}
	}()

	select {
	case err := <-listenErr:
		return fmt.Errorf("server failed to start: %w\n  -> Is another Bake Assist instance running on %s?", err, addr)
	case <-time.After(200 * time.Millisecond):
	}

	select {
	case err := <-listenErr:
		return fmt.Errorf("server runtime error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Info("shutting down HTTP server")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.Server.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
