package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncRegistration is a no-op.
func (n *NoopRecorder) IncRegistration(status string) {}

// IncActivation is a no-op.
func (n *NoopRecorder) IncActivation(status string) {}

// IncLogin is a no-op.
func (n *NoopRecorder) IncLogin(status string) {}

// IncLogout is a no-op.
func (n *NoopRecorder) IncLogout() {}

// IncSweepEnqueued is a no-op.
func (n *NoopRecorder) IncSweepEnqueued(status string) {}

// ObserveSweepDuration is a no-op.
func (n *NoopRecorder) ObserveSweepDuration(duration time.Duration) {}

// AddSweepRemoved is a no-op.
func (n *NoopRecorder) AddSweepRemoved(count int64) {}
