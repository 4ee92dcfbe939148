package metrics

import (
	"testing"

	"github.com/nspcc-dev/node-crawler/pkg/config"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func TestDisabledServiceIsNoop(t *testing.T) {
	s := NewPrometheusService(config.BasicService{}, prometheus.NewRegistry(), zap.NewNop())
	s.Start()
	s.ShutDown()
}
