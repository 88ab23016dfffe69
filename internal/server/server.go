// Package server provides the HTTP server for gpumon.
// It wires routing, middleware, the telemetry handlers and the Prometheus
// endpoint onto a gin engine.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shepherd-project/gpumon/internal/api"
	"github.com/shepherd-project/gpumon/internal/logger"
	"github.com/shepherd-project/gpumon/internal/metrics"
)

// Telemetry is what the server needs from the GPU layer.
// *gpu.Service implements it.
type Telemetry interface {
	api.SnapshotSource
	api.Detector
}

// Config contains server configuration
type Config struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	CORSEnabled    bool
	AllowedOrigins []string

	MetricsEnabled bool
	MetricsPath    string
	// ScrapeTimeout bounds one /metrics collection. Zero means unbounded.
	ScrapeTimeout time.Duration
}

// Server represents the HTTP server
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	listener   net.Listener
	config     *Config
	log        *logger.Logger

	gpuHandler  *api.GPUHandler
	infoHandler *api.InfoHandler
	registry    *prometheus.Registry

	mu sync.Mutex
	wg sync.WaitGroup
}

// NewServer creates a new HTTP server
func NewServer(config *Config, telemetry Telemetry, log *logger.Logger) (*Server, error) {
	if config == nil {
		return nil, errors.New("server config is nil")
	}
	if telemetry == nil {
		return nil, errors.New("telemetry source is nil")
	}
	if log == nil {
		log = logger.GetLogger()
	}

	s := &Server{
		config:      config,
		log:         log,
		gpuHandler:  api.NewGPUHandler(telemetry, log),
		infoHandler: api.NewInfoHandler(telemetry),
	}

	if config.MetricsEnabled {
		if config.MetricsPath == "" {
			config.MetricsPath = "/metrics"
		}
		s.registry = prometheus.NewRegistry()
		if err := s.registry.Register(metrics.NewCollector(telemetry, config.ScrapeTimeout, log)); err != nil {
			return nil, fmt.Errorf("failed to register GPU collector: %w", err)
		}
		s.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	gin.SetMode(gin.ReleaseMode)
	s.engine = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

// setupMiddleware configures server middleware
func (s *Server) setupMiddleware() {
	s.engine.Use(
		api.RequestID(),
		api.RecoveryMiddleware(s.log),
		api.LoggerMiddleware(s.log),
	)
	if s.config.CORSEnabled {
		s.engine.Use(api.CORSMiddleware(s.config.AllowedOrigins))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.engine.GET("/healthz", api.Health)

	apiGroup := s.engine.Group("/api")
	{
		apiGroup.GET("/gpu", s.gpuHandler.GetTelemetry)
		apiGroup.GET("/info", s.infoHandler.GetInfo)
	}

	if s.registry != nil {
		s.engine.GET(s.config.MetricsPath, gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
			ErrorLog: promLogger{s.log},
		})))
	}
}

// promLogger adapts the application logger to promhttp.Logger.
type promLogger struct {
	log *logger.Logger
}

func (p promLogger) Println(v ...interface{}) {
	p.log.Error(v...)
}

// Start binds the listen address and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Check if already started
	if s.httpServer != nil {
		return fmt.Errorf("server already started")
	}

	addr := net.JoinHostPort(s.config.Host, fmt.Sprint(s.config.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.listener = ln
	s.httpServer = &http.Server{
		Handler:      s.engine,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	httpServer := s.httpServer

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.log.Infof("HTTP server listening on %s", ln.Addr())
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Errorf("HTTP server error: %v", err)
		}
		s.log.Info("HTTP server stopped")
	}()

	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop stops the HTTP server gracefully, waiting up to 30 seconds.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx expires, then closes the remaining connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	httpServer := s.httpServer
	s.httpServer = nil
	s.listener = nil
	s.mu.Unlock()

	if httpServer == nil {
		return fmt.Errorf("server not started")
	}

	s.log.Info("Shutting down HTTP server...")
	err := httpServer.Shutdown(ctx)
	if err != nil {
		s.log.Warnf("Graceful shutdown failed, forcing close: %v", err)
		httpServer.Close()
	}
	s.wg.Wait()
	return err
}

// GetEngine returns the Gin engine (for testing)
func (s *Server) GetEngine() *gin.Engine {
	return s.engine
}
