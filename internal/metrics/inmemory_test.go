package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestInMemoryRecorder(t *testing.T) {
	t.Parallel()

	m := NewInMemory()
	m.IncRegistration("created")
	m.IncRegistration("created")
	m.IncRegistration("email_taken")
	m.IncActivation("success")
	m.IncLogin("invalid_credentials")
	m.IncLogout()
	m.IncSweepEnqueued("success")
	m.ObserveSweepDuration(30 * time.Millisecond)
	m.AddSweepRemoved(5)

	snap := m.Snapshot()
	if snap.Registrations["created"] != 2 {
		t.Errorf("expected 2 created registrations, got %d", snap.Registrations["created"])
	}
	if snap.Registrations["email_taken"] != 1 {
		t.Errorf("expected 1 email_taken registration, got %d", snap.Registrations["email_taken"])
	}
	if snap.Activations["success"] != 1 {
		t.Errorf("expected 1 successful activation, got %d", snap.Activations["success"])
	}
	if snap.Logins["invalid_credentials"] != 1 {
		t.Errorf("expected 1 failed login, got %d", snap.Logins["invalid_credentials"])
	}
	if snap.Logouts != 1 {
		t.Errorf("expected 1 logout, got %d", snap.Logouts)
	}
	if snap.SweepsEnqueued["success"] != 1 {
		t.Errorf("expected 1 enqueued sweep, got %d", snap.SweepsEnqueued["success"])
	}
	if snap.SweepDurationCount != 1 {
		t.Errorf("expected 1 duration observation, got %d", snap.SweepDurationCount)
	}
	if snap.SweepTokensRemoved != 5 {
		t.Errorf("expected 5 removed tokens, got %d", snap.SweepTokensRemoved)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	t.Parallel()

	m := NewInMemory()
	m.IncLogin("success")

	snap := m.Snapshot()
	snap.Logins["success"] = 99

	if got := m.Snapshot().Logins["success"]; got != 1 {
		t.Errorf("snapshot must not alias internal state, got %d", got)
	}
}

func TestInMemoryRecorder_Concurrent(t *testing.T) {
	t.Parallel()

	m := NewInMemory()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.IncRegistration("created")
				m.IncLogout()
				m.AddSweepRemoved(1)
			}
		}()
	}
	wg.Wait()

	snap := m.Snapshot()
	if snap.Registrations["created"] != 1000 {
		t.Errorf("expected 1000 registrations, got %d", snap.Registrations["created"])
	}
	if snap.Logouts != 1000 {
		t.Errorf("expected 1000 logouts, got %d", snap.Logouts)
	}
	if snap.SweepTokensRemoved != 1000 {
		t.Errorf("expected 1000 removed, got %d", snap.SweepTokensRemoved)
	}
}
