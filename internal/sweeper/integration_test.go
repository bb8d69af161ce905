package sweeper

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gatehouse/gatehouse/internal/testutil"
)

func newRedisClient(t *testing.T) (context.Context, *redis.Client) {
	t.Helper()

	ctx := context.Background()
	redisURL := testutil.RequireEnv(t, "REDIS_URL")

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		t.Fatalf("parse redis url: %v", err)
	}
	client := redis.NewClient(opt)
	t.Cleanup(func() {
		_ = client.Close()
	})

	if err := testutil.FlushRedis(ctx, client); err != nil {
		t.Fatalf("flush redis: %v", err)
	}

	return ctx, client
}

func TestEnqueue(t *testing.T) {
	ctx, client := newRedisClient(t)

	p := NewPublisher(client, testLogger(), nil)

	streamID, err := p.Enqueue(ctx)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if streamID == "" {
		t.Fatal("expected a stream ID")
	}

	length, err := client.XLen(ctx, StreamKey).Result()
	if err != nil {
		t.Fatalf("xlen: %v", err)
	}
	if length != 1 {
		t.Fatalf("expected 1 entry on the stream, got %d", length)
	}
}

func TestWorkerConsumesSweepJobs(t *testing.T) {
	ctx, client := newRedisClient(t)

	store := &fakeTokenStore{removed: 2}
	w := NewWorker(client, store, testLogger(), "integration-consumer", nil)
	w.blockTimeout = 200 * time.Millisecond

	p := NewPublisher(client, testLogger(), nil)
	if _, err := p.Enqueue(ctx); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := p.Enqueue(ctx); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.Run(runCtx)
	}()

	deadline := time.After(5 * time.Second)
	for {
		store.mu.Lock()
		calls := store.calls
		store.mu.Unlock()
		if calls > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("worker did not process the sweep job in time")
		case <-time.After(50 * time.Millisecond):
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 5*time.Second)
	defer shutdownCancel()
	if err := w.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := <-errCh; err != nil && err != context.Canceled {
		t.Fatalf("worker run: %v", err)
	}

	// Both jobs are acked by the single sweep that covered them.
	pending, err := client.XPending(ctx, StreamKey, ConsumerGroup).Result()
	if err != nil {
		t.Fatalf("xpending: %v", err)
	}
	if pending.Count != 0 {
		t.Errorf("expected no pending jobs, got %d", pending.Count)
	}
}

func TestWorkerReclaimsAbandonedJobs(t *testing.T) {
	ctx, client := newRedisClient(t)

	p := NewPublisher(client, testLogger(), nil)
	if _, err := p.Enqueue(ctx); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	// A consumer reads the job and dies before acking, leaving it in its
	// pending list where the ">" cursor never revisits it.
	if err := client.XGroupCreateMkStream(ctx, StreamKey, ConsumerGroup, "0").Err(); err != nil && !isConsumerGroupExistsError(err) {
		t.Fatalf("create group: %v", err)
	}
	if _, err := client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    ConsumerGroup,
		Consumer: "crashed-consumer",
		Streams:  []string{StreamKey, ">"},
		Count:    1,
	}).Result(); err != nil {
		t.Fatalf("xreadgroup: %v", err)
	}

	store := &fakeTokenStore{removed: 1}
	w := NewWorker(client, store, testLogger(), "rescue-consumer", nil)
	w.blockTimeout = 100 * time.Millisecond
	w.claimInterval = time.Millisecond
	w.claimIdle = 10 * time.Millisecond

	time.Sleep(20 * time.Millisecond) // Let the job reach the idle threshold.

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.Run(runCtx)
	}()

	deadline := time.After(5 * time.Second)
	for {
		pending, err := client.XPending(ctx, StreamKey, ConsumerGroup).Result()
		if err != nil {
			t.Fatalf("xpending: %v", err)
		}
		if pending.Count == 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("abandoned job was never reclaimed, %d still pending", pending.Count)
		case <-time.After(50 * time.Millisecond):
		}
	}

	store.mu.Lock()
	calls := store.calls
	store.mu.Unlock()
	if calls == 0 {
		t.Error("reclaimed job should have triggered a sweep")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 5*time.Second)
	defer shutdownCancel()
	if err := w.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := <-errCh; err != nil && err != context.Canceled {
		t.Fatalf("worker run: %v", err)
	}
}
