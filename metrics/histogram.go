package metrics

import (
	prom "github.com/prometheus/client_golang/prometheus"
)

type (
	// A HistogramVecOpts is a histogram vector options.
	HistogramVecOpts struct {
		VectorOption
		Buckets     []float64
		ConstLabels map[string]string
	}
	promHistogram struct {
		reg       prom.Registerer
		histogram *prom.HistogramVec
	}
)

func NewHistogram(conf *HistogramVecOpts) Histogram {
	if conf == nil {
		return nil
	}
	reg := registerer(&conf.VectorOption)
	vec := register(reg, prom.NewHistogramVec(prom.HistogramOpts{
		Namespace:   conf.Namespace,
		Subsystem:   conf.Subsystem,
		Name:        conf.Name,
		Help:        conf.Help,
		Buckets:     conf.Buckets,
		ConstLabels: conf.ConstLabels,
	}, conf.Labels))
	return &promHistogram{
		reg:       reg,
		histogram: vec,
	}
}

// Close implements Histogram.
func (p *promHistogram) Close() error {
	return unregister(p.reg, p.histogram, "histogram")
}

// Observe implements Histogram.
func (p *promHistogram) Observe(value float64, labels ...string) {
	update(func() {
		p.histogram.WithLabelValues(labels...).Observe(value)
	})
}

var _ Histogram = (*promHistogram)(nil)
