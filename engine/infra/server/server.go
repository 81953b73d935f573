package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/514-labs/moosestack/engine/infra/monitoring"
	"github.com/514-labs/moosestack/pkg/logger"
	"github.com/gin-gonic/gin"
)

const (
	statusHealthy   = "ok"
	statusUnhealthy = "unhealthy"
	healthTimeout   = 2 * time.Second
	httpReadTimeout = 15 * time.Second
	httpIdleTimeout = 60 * time.Second
	shutdownTimeout = 5 * time.Second
)

// HealthChecker reports whether the worker can serve tasks.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server exposes liveness and Prometheus metrics for the worker process.
type Server struct {
	monitoring *monitoring.Service
	health     HealthChecker
	version    string
	router     *gin.Engine

	mu         sync.Mutex
	httpServer *http.Server
}

func NewServer(service *monitoring.Service, health HealthChecker, version string) *Server {
	s := &Server{
		monitoring: service,
		health:     health,
		version:    version,
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.monitoring.GinMiddleware())
	router.GET("/health", CreateHealthHandler(s.health, s.version))
	router.GET(s.monitoring.Config().Path, gin.WrapH(s.monitoring.ExporterHandler()))
	return router
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the monitoring address and serves until Shutdown.
// It returns once the listener is bound.
func (s *Server) Start(ctx context.Context) error {
	addr := s.monitoring.Config().Address()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	srv := &http.Server{
		Handler:     s.router,
		ReadTimeout: httpReadTimeout,
		IdleTimeout: httpIdleTimeout,
		BaseContext: func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()
	log := logger.FromContext(ctx)
	log.Info("Starting metrics server", "address", fmt.Sprintf("http://%s", listener.Addr()))
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server stopped", "error", err)
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.httpServer = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
