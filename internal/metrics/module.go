package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Raikerian/go-voice-mesh/internal/config"
)

// Module provides the registry, the collectors and the optional HTTP endpoint.
var Module = fx.Module("metrics",
	fx.Provide(
		NewRegistry,
		NewFromRegistry,
	),
	fx.Invoke(registerServer),
)

// NewRegistry creates a registry carrying the process and runtime collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// NewFromRegistry registers the conference collectors on reg.
func NewFromRegistry(reg *prometheus.Registry) *Metrics {
	return New(reg)
}

func registerServer(lc fx.Lifecycle, cfg *config.Config, reg *prometheus.Registry, logger *zap.Logger) {
	if cfg.Metrics.Addr == "" {
		logger.Debug("Metrics endpoint disabled")
		return
	}

	srv := NewServer(cfg.Metrics.Addr, reg, logger)
	lc.Append(fx.Hook{
		OnStart: srv.Start,
		OnStop:  func(ctx context.Context) error { return srv.Stop(ctx) },
	})
}
