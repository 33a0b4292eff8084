// Package matchbridge wires the bridge, its logging and its metrics into a
// process built from registered modules.
package matchbridge

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/czx-lab/matchbridge/bridge"
	"github.com/czx-lab/matchbridge/config"
	"github.com/czx-lab/matchbridge/network/metrics"
	"github.com/czx-lab/matchbridge/prometheus"
	"github.com/czx-lab/matchbridge/xlog"
	"go.uber.org/zap"
)

var version = "0.3.0"

// Version returns the current version of matchbridge.
func Version() string {
	return version
}

// Run registers mods, starts them and blocks until SIGINT or SIGTERM.
func Run(mods ...Module) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	RunContext(ctx, mods...)
}

// RunContext is Run with the shutdown signal taken from ctx.
func RunContext(ctx context.Context, mods ...Module) {
	xlog.Write().Info("matchbridge: starting up", zap.String("version", version), zap.Int("modules", len(mods)))

	for i := range mods {
		Register(mods[i])
	}

	Init()
	<-ctx.Done()

	xlog.Write().Info("matchbridge: shutting down", zap.NamedError("cause", context.Cause(ctx)))

	Destroy()
	_ = xlog.Sync()
}

// Setup loads the configuration at path, installs the logger it describes,
// starts the metrics endpoint when enabled and builds a bridge. The
// returned func stops the metrics endpoint and unregisters the attempt
// metrics; call it after the bridge is closed.
func Setup(path string, opts ...bridge.Option) (*bridge.Bridge, config.Config, func(), error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, config.Config{}, nil, err
	}

	xconf := cfg.XLog()
	xlog.Load(&xconf)

	shutdown := func() {}
	if cfg.Metrics.Enabled {
		if err := prometheus.Start(cfg.Prometheus()); err != nil {
			return nil, config.Config{}, nil, fmt.Errorf("matchbridge: metrics: %w", err)
		}
		cm := metrics.NewCliMetrics(cfg.CliMetrics())
		shutdown = func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := prometheus.Shutdown(ctx); err != nil {
				xlog.Write().Warn("matchbridge: metrics shutdown", zap.Error(err))
			}
			if err := cm.Close(); err != nil {
				xlog.Write().Warn("matchbridge: metrics unregister", zap.Error(err))
			}
		}
		opts = append([]bridge.Option{bridge.WithMetrics(cm)}, opts...)
	}
	if len(cfg.Player.Name) > 0 {
		opts = append([]bridge.Option{bridge.WithPlayer(cfg.Player.Name, cfg.Player.Trophies)}, opts...)
	}

	return bridge.New(cfg.Bridge(), opts...), cfg, shutdown, nil
}
