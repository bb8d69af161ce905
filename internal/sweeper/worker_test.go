package sweeper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/gatehouse/gatehouse/internal/metrics"
)

type fakeTokenStore struct {
	mu      sync.Mutex
	removed int64
	calls   int
	err     error
}

func (f *fakeTokenStore) DeleteExpiredActivationTokens(_ context.Context, _ time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.removed, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSweep(t *testing.T) {
	t.Parallel()

	store := &fakeTokenStore{removed: 3}
	recorder := metrics.NewInMemory()
	w := NewWorker(nil, store, testLogger(), "test-consumer", recorder)

	if err := w.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	if store.calls != 1 {
		t.Errorf("expected one store call, got %d", store.calls)
	}

	snap := recorder.Snapshot()
	if snap.SweepTokensRemoved != 3 {
		t.Errorf("expected 3 removed tokens recorded, got %d", snap.SweepTokensRemoved)
	}
	if snap.SweepDurationCount != 1 {
		t.Errorf("expected one duration observation, got %d", snap.SweepDurationCount)
	}
}

func TestSweep_StoreError(t *testing.T) {
	t.Parallel()

	store := &fakeTokenStore{err: errors.New("connection lost")}
	w := NewWorker(nil, store, testLogger(), "test-consumer", nil)

	if err := w.Sweep(context.Background()); err == nil {
		t.Fatal("expected error when the store fails")
	}
}

func TestSweep_NothingExpired(t *testing.T) {
	t.Parallel()

	store := &fakeTokenStore{removed: 0}
	recorder := metrics.NewInMemory()
	w := NewWorker(nil, store, testLogger(), "test-consumer", recorder)

	if err := w.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if snap := recorder.Snapshot(); snap.SweepTokensRemoved != 0 {
		t.Errorf("expected 0 removed tokens, got %d", snap.SweepTokensRemoved)
	}
}

func TestShutdown_NotStarted(t *testing.T) {
	t.Parallel()

	w := NewWorker(nil, &fakeTokenStore{}, testLogger(), "test-consumer", nil)

	if err := w.Shutdown(context.Background()); err != nil {
		t.Errorf("shutdown of an unstarted worker should be a no-op, got %v", err)
	}
}

func TestMaybeClaimPending_Throttled(t *testing.T) {
	t.Parallel()

	w := NewWorker(nil, &fakeTokenStore{}, testLogger(), "test-consumer", nil)

	// A recent claim pass suppresses the next one; no Redis call is made
	// (the nil client would panic otherwise).
	w.lastClaim = time.Now()
	messages, err := w.maybeClaimPending(context.Background())
	if err != nil {
		t.Fatalf("maybeClaimPending failed: %v", err)
	}
	if messages != nil {
		t.Errorf("throttled claim should return nothing, got %d messages", len(messages))
	}

	// Disabling either knob turns the pass off entirely.
	w.lastClaim = time.Time{}
	w.claimInterval = 0
	if _, err := w.maybeClaimPending(context.Background()); err != nil {
		t.Fatalf("disabled claim should be a no-op, got %v", err)
	}
}

func TestIsConsumerGroupExistsError(t *testing.T) {
	t.Parallel()

	if !isConsumerGroupExistsError(errors.New("BUSYGROUP Consumer Group name already exists")) {
		t.Error("BUSYGROUP reply should be recognized")
	}
	if isConsumerGroupExistsError(errors.New("connection refused")) {
		t.Error("other errors must not be treated as group-exists")
	}
	if isConsumerGroupExistsError(nil) {
		t.Error("nil is not an error")
	}
}
