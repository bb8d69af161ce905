// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Account lifecycle metrics
	IncRegistration(status string) // status: "created", "email_taken", "delivery_failed", "error"
	IncActivation(status string)   // status: "success", "invalid_token", "error"

	// Session metrics
	IncLogin(status string) // status: "success", "invalid_credentials", "not_activated", "error"
	IncLogout()

	// Sweeper metrics
	IncSweepEnqueued(status string) // status: "success" or "dropped"
	ObserveSweepDuration(duration time.Duration)
	AddSweepRemoved(count int64)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
