package metrics

import (
	prom "github.com/prometheus/client_golang/prometheus"
)

type (
	// A SummaryVecOpts is a summary vector options
	SummaryVecOpts struct {
		VecOpt     VectorOption
		Objectives map[float64]float64
	}

	promSummary struct {
		reg     prom.Registerer
		summary *prom.SummaryVec
	}
)

var _ Summary = (*promSummary)(nil)

func NewSummary(conf *SummaryVecOpts) Summary {
	if conf == nil {
		return nil
	}
	reg := registerer(&conf.VecOpt)
	vec := register(reg, prom.NewSummaryVec(prom.SummaryOpts{
		Namespace:  conf.VecOpt.Namespace,
		Subsystem:  conf.VecOpt.Subsystem,
		Name:       conf.VecOpt.Name,
		Help:       conf.VecOpt.Help,
		Objectives: conf.Objectives,
	}, conf.VecOpt.Labels))
	return &promSummary{
		reg:     reg,
		summary: vec,
	}
}

// Close implements Summary.
func (p *promSummary) Close() error {
	return unregister(p.reg, p.summary, "summary")
}

// Observe implements Summary.
func (p *promSummary) Observe(value float64, labels ...string) {
	update(func() {
		p.summary.WithLabelValues(labels...).Observe(value)
	})
}
