package metrics

import (
	"errors"
	"time"

	"github.com/czx-lab/matchbridge/metrics"
	"github.com/czx-lab/matchbridge/network"
	prom "github.com/prometheus/client_golang/prometheus"
)

type (
	// CliMetrics holds the metrics of matchmaking attempts and their
	// connections.
	CliMetrics struct {
		// attempt metrics
		attempts metrics.Counter
		active   metrics.Gauge
		outcomes metrics.Counter
		duration metrics.Histogram

		// frame metrics
		skipped metrics.Counter
		frames  metrics.Summary

		// data transfer metrics
		receivedBytes metrics.Counter
		sentBytes     metrics.Counter
	}
	// CliMetricsConf defines the configuration for client metrics
	CliMetricsConf struct {
		Namespace  string
		Subsystem  string
		Registerer prom.Registerer
	}
)

var _ network.ClientMetrics = (*CliMetrics)(nil)

// NewCliMetrics registers the matchmaking metric set with conf.Registerer.
// Building it twice against the same registry shares the collectors.
func NewCliMetrics(conf CliMetricsConf) *CliMetrics {
	opt := func(name, help string, labels ...string) metrics.VectorOption {
		return metrics.VectorOption{
			Namespace:  conf.Namespace,
			Subsystem:  conf.Subsystem,
			Name:       name,
			Help:       help,
			Labels:     labels,
			Registerer: conf.Registerer,
		}
	}
	attempts := opt("attempts_total", "total number of matchmaking attempts")
	active := opt("active_attempts", "current number of in-flight attempts")
	outcomes := opt("outcomes_total", "finished attempts by outcome", "outcome") // match/connect/send/read/closed/timeout/cancelled
	skipped := opt("skipped_frames_total", "frames that were not a match result")
	received := opt("received_bytes_total", "total bytes received")
	sent := opt("sent_bytes_total", "total bytes sent")

	return &CliMetrics{
		attempts:      metrics.NewCounter(&attempts),
		active:        metrics.NewGauge(&active),
		outcomes:      metrics.NewCounter(&outcomes),
		skipped:       metrics.NewCounter(&skipped),
		receivedBytes: metrics.NewCounter(&received),
		sentBytes:     metrics.NewCounter(&sent),
		duration: metrics.NewHistogram(&metrics.HistogramVecOpts{
			VectorOption: opt("attempt_duration_seconds", "attempt duration in seconds"),
			Buckets:      []float64{0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 180},
		}),
		frames: metrics.NewSummary(&metrics.SummaryVecOpts{
			VecOpt:     opt("frames_per_attempt", "frames read per attempt"),
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}),
	}
}

// AddReceivedBytes implements network.ClientMetrics.
func (c *CliMetrics) AddReceivedBytes(bytes int) {
	c.receivedBytes.Add(float64(bytes))
}

// AddSentBytes implements network.ClientMetrics.
func (c *CliMetrics) AddSentBytes(bytes int) {
	c.sentBytes.Add(float64(bytes))
}

// Close implements network.ClientMetrics. It unregisters every collector.
func (c *CliMetrics) Close() error {
	return errors.Join(
		c.attempts.Close(),
		c.active.Close(),
		c.outcomes.Close(),
		c.duration.Close(),
		c.skipped.Close(),
		c.frames.Close(),
		c.receivedBytes.Close(),
		c.sentBytes.Close(),
	)
}

// DecActive implements network.ClientMetrics.
func (c *CliMetrics) DecActive() {
	c.active.Dec()
}

// IncActive implements network.ClientMetrics.
func (c *CliMetrics) IncActive() {
	c.active.Inc()
}

// IncAttempts implements network.ClientMetrics.
func (c *CliMetrics) IncAttempts() {
	c.attempts.Inc()
}

// IncOutcome implements network.ClientMetrics.
func (c *CliMetrics) IncOutcome(outcome string) {
	c.outcomes.Inc(outcome)
}

// IncSkippedFrames implements network.ClientMetrics.
func (c *CliMetrics) IncSkippedFrames() {
	c.skipped.Inc()
}

// ObserveDuration implements network.ClientMetrics.
func (c *CliMetrics) ObserveDuration(duration time.Duration) {
	c.duration.Observe(duration.Seconds())
}

// ObserveFrames implements network.ClientMetrics.
func (c *CliMetrics) ObserveFrames(n int) {
	c.frames.Observe(float64(n))
}
