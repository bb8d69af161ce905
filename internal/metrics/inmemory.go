package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	Registrations        map[string]uint64
	Activations          map[string]uint64
	Logins               map[string]uint64
	Logouts              uint64
	SweepsEnqueued       map[string]uint64
	SweepDurationCount   uint64
	SweepDurationTotalNs int64
	SweepTokensRemoved   int64
}

// InMemoryRecorder stores metrics in memory for tests and the /metrics
// endpoint.
type InMemoryRecorder struct {
	mu             sync.Mutex
	registrations  map[string]uint64
	activations    map[string]uint64
	logins         map[string]uint64
	sweepsEnqueued map[string]uint64

	logouts              uint64
	sweepDurationCount   uint64
	sweepDurationTotalNs int64
	sweepTokensRemoved   int64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		registrations:  make(map[string]uint64),
		activations:    make(map[string]uint64),
		logins:         make(map[string]uint64),
		sweepsEnqueued: make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		Registrations:        copyCounts(m.registrations),
		Activations:          copyCounts(m.activations),
		Logins:               copyCounts(m.logins),
		Logouts:              atomic.LoadUint64(&m.logouts),
		SweepsEnqueued:       copyCounts(m.sweepsEnqueued),
		SweepDurationCount:   atomic.LoadUint64(&m.sweepDurationCount),
		SweepDurationTotalNs: atomic.LoadInt64(&m.sweepDurationTotalNs),
		SweepTokensRemoved:   atomic.LoadInt64(&m.sweepTokensRemoved),
	}
}

// IncRegistration increments the registration counter for a status.
func (m *InMemoryRecorder) IncRegistration(status string) {
	m.incLabeled(m.registrations, status)
}

// IncActivation increments the activation counter for a status.
func (m *InMemoryRecorder) IncActivation(status string) {
	m.incLabeled(m.activations, status)
}

// IncLogin increments the login counter for a status.
func (m *InMemoryRecorder) IncLogin(status string) {
	m.incLabeled(m.logins, status)
}

// IncLogout increments the logout counter.
func (m *InMemoryRecorder) IncLogout() {
	atomic.AddUint64(&m.logouts, 1)
}

// IncSweepEnqueued increments the sweep enqueue counter for a status.
func (m *InMemoryRecorder) IncSweepEnqueued(status string) {
	m.incLabeled(m.sweepsEnqueued, status)
}

// ObserveSweepDuration records how long a sweep took.
func (m *InMemoryRecorder) ObserveSweepDuration(duration time.Duration) {
	atomic.AddUint64(&m.sweepDurationCount, 1)
	atomic.AddInt64(&m.sweepDurationTotalNs, duration.Nanoseconds())
}

// AddSweepRemoved adds to the total of removed activation tokens.
func (m *InMemoryRecorder) AddSweepRemoved(count int64) {
	atomic.AddInt64(&m.sweepTokensRemoved, count)
}

func (m *InMemoryRecorder) incLabeled(counts map[string]uint64, status string) {
	m.mu.Lock()
	counts[status]++
	m.mu.Unlock()
}

func copyCounts(src map[string]uint64) map[string]uint64 {
	dst := make(map[string]uint64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
