package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"lexvoice-server/pkg/metrics"
	"lexvoice-server/pkg/version"
)

// MetricsProvider exposes call counts for the status and health endpoints
type MetricsProvider interface {
	GetActiveCallCount() int
	GetMetrics() map[string]interface{}
}

// ConnectionReporter reports an external connection's health (AMQP)
type ConnectionReporter interface {
	IsConnected() bool
}

// Server is the HTTP server carrying the carrier webhook, the media
// WebSocket endpoint, health checks, and metrics
type Server struct {
	config          *Config
	logger          *logrus.Logger
	httpServer      *http.Server
	mux             *http.ServeMux
	metricsProvider MetricsProvider
	amqpReporter    ConnectionReporter
	startTime       time.Time
}

// NewServer creates a new HTTP server instance
func NewServer(logger *logrus.Logger, config *Config, metricsProvider MetricsProvider) *Server {
	if config == nil {
		config = DefaultConfig()
	}

	server := &Server{
		config:          config,
		logger:          logger,
		metricsProvider: metricsProvider,
		startTime:       time.Now(),
	}

	mux := http.NewServeMux()
	server.mux = mux

	addServerHeader := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Server", version.ServerHeader())
			next(w, r)
		}
	}

	mux.HandleFunc("/health", addServerHeader(server.HealthHandler))
	mux.HandleFunc("/health/live", addServerHeader(server.LivenessHandler))
	mux.HandleFunc("/health/ready", addServerHeader(server.ReadinessHandler))
	mux.HandleFunc("/status", addServerHeader(server.statusHandler))

	if config.EnableMetrics {
		if registry := metrics.GetRegistry(); registry != nil {
			promHandler := promhttp.HandlerFor(
				registry,
				promhttp.HandlerOpts{
					EnableOpenMetrics: true,
					Registry:          registry,
				},
			)
			mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Server", version.ServerHeader())
				promHandler.ServeHTTP(w, r)
			})
			logger.Info("Prometheus metrics endpoint enabled at /metrics")
		}
	} else {
		logger.Info("Metrics endpoint disabled")
	}

	server.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      mux,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	return server
}

// RegisterHandler adds a custom handler to the server
func (s *Server) RegisterHandler(path string, handler http.HandlerFunc) {
	s.mux.HandleFunc(path, handler)
	s.logger.WithField("path", path).Info("Registered HTTP handler")
}

// SetAMQPReporter sets the AMQP connection reporter for health checks
func (s *Server) SetAMQPReporter(reporter ConnectionReporter) {
	s.amqpReporter = reporter
}

// Start starts the HTTP server in a goroutine
func (s *Server) Start() {
	go func() {
		s.logger.WithField("port", s.config.Port).Info("HTTP server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Error("HTTP server failed")
		}
	}()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server...")
	return s.httpServer.Shutdown(ctx)
}

// statusHandler handles the /status endpoint
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":     "ok",
		"uptime":     time.Since(s.startTime).String(),
		"version":    version.Version,
		"started_at": s.startTime.Format(time.RFC3339),
	}

	if s.metricsProvider != nil {
		status["active_calls"] = s.metricsProvider.GetActiveCallCount()
		for k, v := range s.metricsProvider.GetMetrics() {
			status[k] = v
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(status)
}
