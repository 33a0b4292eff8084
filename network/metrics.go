package network

import "time"

// ClientMetrics defines the interface for matchmaking client metrics.
type ClientMetrics interface {
	// Attempt metrics
	// Increment the number of started attempts
	IncAttempts()
	// Increment the count of in-flight attempts
	IncActive()
	// Decrement the count of in-flight attempts
	DecActive()
	// Increment the count of finished attempts by outcome
	IncOutcome(outcome string)
	// Observe how long an attempt took
	ObserveDuration(duration time.Duration)

	// Frame metrics
	// Increment the count of frames that were not a match result
	IncSkippedFrames()
	// Observe how many frames an attempt read
	ObserveFrames(n int)

	// Data transfer metrics
	// Add the number of bytes sent
	AddSentBytes(bytes int)
	// Add the number of bytes received
	AddReceivedBytes(bytes int)

	// Shutdown the metrics tracking system
	Close() error
}

type NoopClientMetrics struct{}

// AddReceivedBytes implements ClientMetrics.
func (n *NoopClientMetrics) AddReceivedBytes(bytes int) {}

// AddSentBytes implements ClientMetrics.
func (n *NoopClientMetrics) AddSentBytes(bytes int) {}

// Close implements ClientMetrics.
func (n *NoopClientMetrics) Close() error { return nil }

// DecActive implements ClientMetrics.
func (n *NoopClientMetrics) DecActive() {}

// IncActive implements ClientMetrics.
func (n *NoopClientMetrics) IncActive() {}

// IncAttempts implements ClientMetrics.
func (n *NoopClientMetrics) IncAttempts() {}

// IncOutcome implements ClientMetrics.
func (n *NoopClientMetrics) IncOutcome(outcome string) {}

// IncSkippedFrames implements ClientMetrics.
func (n *NoopClientMetrics) IncSkippedFrames() {}

// ObserveDuration implements ClientMetrics.
func (n *NoopClientMetrics) ObserveDuration(duration time.Duration) {}

// ObserveFrames implements ClientMetrics.
func (n *NoopClientMetrics) ObserveFrames(count int) {}

var _ ClientMetrics = (*NoopClientMetrics)(nil)
