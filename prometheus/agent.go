// Package prometheus toggles metric reporting and serves the scrape
// endpoint.
package prometheus

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/czx-lab/matchbridge/xlog"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	mu      sync.Mutex
	server  *http.Server
	addr    net.Addr
	enabled atomic.Bool
)

// A Config is a prometheus config.
type Config struct {
	Host string
	Port int
	Path string
	// default prom.DefaultGatherer
	Gatherer prom.Gatherer
}

// Enabled reports whether Prometheus metrics are enabled.
func Enabled() bool {
	return enabled.Load()
}

// Enable enables Prometheus metrics.
func Enable() {
	enabled.Store(true)
}

// Disable stops metric updates. A running endpoint keeps serving the
// values collected so far.
func Disable() {
	enabled.Store(false)
}

// Handler returns the scrape handler for g.
func Handler(g prom.Gatherer) http.Handler {
	if g == nil {
		g = prom.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Start enables metrics and serves them on c.Host:c.Port. Only the first
// call starts a server.
func Start(c Config) error {
	defaultConfig(&c)

	mu.Lock()
	defer mu.Unlock()

	if server != nil {
		return nil
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", c.Host, c.Port))
	if err != nil {
		return fmt.Errorf("prometheus: listen: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle(c.Path, Handler(c.Gatherer))
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	server, addr = srv, ln.Addr()
	Enable()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			xlog.Write().Error("prometheus: metrics server stopped", zap.Error(err))
		}
	}()
	xlog.Write().Info("prometheus: serving metrics", zap.Stringer("addr", addr), zap.String("path", c.Path))
	return nil
}

// Addr returns the address of the running endpoint, or nil.
func Addr() net.Addr {
	mu.Lock()
	defer mu.Unlock()

	return addr
}

// Shutdown stops the endpoint started by Start.
func Shutdown(ctx context.Context) error {
	mu.Lock()
	srv := server
	server, addr = nil, nil
	mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func defaultConfig(conf *Config) {
	if conf.Path == "" {
		conf.Path = "/metrics"
	}
	if conf.Port == 0 {
		conf.Port = 9101
	}
}
