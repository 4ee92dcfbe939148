package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/nspcc-dev/node-crawler/pkg/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Service serves the crawler's Prometheus registry over HTTP. It is
// disabled unless the Prometheus config section enables it.
type Service struct {
	http *http.Server
	cfg  config.BasicService
	log  *zap.Logger
}

// NewPrometheusService creates a new service for serving reg on the
// configured address.
func NewPrometheusService(cfg config.BasicService, reg *prometheus.Registry, log *zap.Logger) *Service {
	return &Service{
		http: &http.Server{
			Addr:              cfg.Address,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		},
		cfg: cfg,
		log: log,
	}
}

// Start runs the HTTP server on its own goroutine. It is a no-op when the
// service is disabled.
func (s *Service) Start() {
	if !s.cfg.Enabled {
		s.log.Info("prometheus service hasn't started since it's disabled")
		return
	}
	s.log.Info("starting prometheus service", zap.String("endpoint", s.http.Addr))
	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Warn("prometheus service failed", zap.String("endpoint", s.http.Addr), zap.Error(err))
		}
	}()
}

// ShutDown stops the HTTP server, waiting for in-flight scrapes to finish.
func (s *Service) ShutDown() {
	if !s.cfg.Enabled {
		return
	}
	s.log.Info("shutting down prometheus service", zap.String("endpoint", s.http.Addr))
	if err := s.http.Shutdown(context.Background()); err != nil {
		s.log.Warn("prometheus service shutdown failed", zap.Error(err))
	}
}
