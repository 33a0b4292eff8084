// Package metrics wraps prometheus vectors behind small interfaces. Updates
// are dropped while prometheus reporting is disabled.
package metrics

import (
	"errors"

	"github.com/czx-lab/matchbridge/prometheus"
	prom "github.com/prometheus/client_golang/prometheus"
)

type (
	// VectorOption defines options for creating metric vectors.
	VectorOption struct {
		Namespace string
		Subsystem string
		Name      string
		Help      string
		Labels    []string
		// registry the vector joins, default prom.DefaultRegisterer
		Registerer prom.Registerer
	}
	// Metrics defines the interface for metrics collection and reporting.
	Metrics interface {
		// Close unregisters the metric.
		Close() error
	}
	// Counter defines the interface for a counter metric.
	Counter interface {
		Metrics
		Inc(labels ...string)
		Add(delta float64, labels ...string)
	}
	// Gauge defines the interface for a gauge metric.
	Gauge interface {
		Metrics
		Set(value float64, labels ...string)
		Inc(labels ...string)
		Dec(labels ...string)
		Add(delta float64, labels ...string)
		Sub(delta float64, labels ...string)
	}
	// Histogram defines the interface for a histogram metric.
	Histogram interface {
		Metrics
		Observe(value float64, labels ...string)
	}
	// Summary defines the interface for a summary metric.
	Summary interface {
		Metrics
		Observe(value float64, labels ...string)
	}
)

func update(fn func()) {
	if !prometheus.Enabled() {
		return
	}
	fn()
}

func registerer(conf *VectorOption) prom.Registerer {
	if conf.Registerer == nil {
		return prom.DefaultRegisterer
	}
	return conf.Registerer
}

// register adds c to reg. When an identical collector is already there,
// for instance from a second bridge in the same process, that one is
// returned instead.
func register[T prom.Collector](reg prom.Registerer, c T) T {
	err := reg.Register(c)
	if err == nil {
		return c
	}

	var are prom.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(T); ok {
			return existing
		}
	}
	panic(err)
}

func unregister(reg prom.Registerer, c prom.Collector, kind string) error {
	if reg.Unregister(c) {
		return nil
	}
	return errors.New("failed to unregister " + kind + " metric")
}
