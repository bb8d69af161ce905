package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gatehouse/gatehouse/internal/metrics"
)

const (
	// ConsumerGroup is the Redis consumer group name.
	ConsumerGroup = "sweeper_workers"

	// DefaultBlockTimeout is how long to block waiting for jobs.
	DefaultBlockTimeout = 5 * time.Second

	// DefaultBatchSize is the max jobs read per poll. Sweeps are idempotent,
	// so a batch collapses into however many deletes actually match.
	DefaultBatchSize = 10

	// DefaultClaimInterval is how often to scan pending messages.
	DefaultClaimInterval = 10 * time.Second

	// DefaultClaimIdle is the idle time before reclaiming pending messages.
	DefaultClaimIdle = 30 * time.Second
)

// TokenStore is the slice of the repository the worker needs.
type TokenStore interface {
	DeleteExpiredActivationTokens(ctx context.Context, now time.Time) (int64, error)
}

// Worker consumes sweep jobs and deletes expired activation tokens.
type Worker struct {
	redis        *redis.Client
	store        TokenStore
	logger       *slog.Logger
	metrics      metrics.Recorder
	consumerID   string
	blockTimeout time.Duration
	batchSize    int

	claimInterval time.Duration
	claimIdle     time.Duration
	claimStartID  string
	lastClaim     time.Time

	started  bool
	draining bool
	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.Mutex
}

// NewWorker creates a new sweeper worker.
func NewWorker(client *redis.Client, store TokenStore, logger *slog.Logger, consumerID string, recorder metrics.Recorder) *Worker {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Worker{
		redis:        client,
		store:        store,
		logger:       logger.With("component", "sweeper.worker", "consumer_id", consumerID),
		metrics:      recorder,
		consumerID:    consumerID,
		blockTimeout:  DefaultBlockTimeout,
		batchSize:     DefaultBatchSize,
		claimInterval: DefaultClaimInterval,
		claimIdle:     DefaultClaimIdle,
		claimStartID:  "0-0",
	}
}

// Run starts the worker loop. Blocks until context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return errors.New("worker already started")
	}
	w.started = true
	w.done = make(chan struct{})
	ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	defer close(w.done)

	// Ensure consumer group exists
	if err := w.ensureConsumerGroup(ctx); err != nil {
		return fmt.Errorf("ensure consumer group: %w", err)
	}

	w.logger.Info("sweeper worker started")

	for {
		w.mu.Lock()
		draining := w.draining
		w.mu.Unlock()

		if draining {
			w.logger.Info("sweeper worker draining, stopping")
			return nil
		}

		select {
		case <-ctx.Done():
			w.logger.Info("sweeper worker stopping")
			return ctx.Err()
		default:
			if err := w.processOnce(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				w.logger.Error("process error", "error", err)
				time.Sleep(1 * time.Second)
			}
		}
	}
}

// Shutdown gracefully stops the worker, completing any in-flight sweep.
// It implements server.ShutdownFunc for integration with graceful shutdown.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return nil
	}
	w.draining = true
	cancel := w.cancel
	done := w.done
	w.mu.Unlock()

	w.logger.Info("sweeper worker shutdown initiated")

	if cancel != nil {
		cancel()
	}

	if done != nil {
		select {
		case <-done:
			w.logger.Info("sweeper worker shutdown complete")
			return nil
		case <-ctx.Done():
			w.logger.Warn("sweeper worker shutdown timed out")
			return ctx.Err()
		}
	}
	return nil
}

// ensureConsumerGroup creates the consumer group if it doesn't exist.
func (w *Worker) ensureConsumerGroup(ctx context.Context) error {
	err := w.redis.XGroupCreateMkStream(ctx, StreamKey, ConsumerGroup, "0").Err()
	if err != nil && !isConsumerGroupExistsError(err) {
		return err
	}
	return nil
}

// processOnce reads a batch of sweep jobs, runs a single sweep, and acks.
// Jobs stuck in another consumer's pending list are reclaimed first, so a
// batch abandoned by a crashed or erroring worker is retried here.
func (w *Worker) processOnce(ctx context.Context) error {
	claimed, err := w.maybeClaimPending(ctx)
	if err != nil {
		w.logger.Warn("failed to claim pending messages", "error", err)
	}

	messages := claimed
	if len(messages) == 0 {
		messages, err = w.readBatch(ctx)
		if err != nil {
			return err
		}
	}

	var messageIDs []string
	for _, msg := range messages {
		messageIDs = append(messageIDs, msg.ID)
	}

	if len(messageIDs) == 0 {
		return nil
	}

	// One sweep covers every queued job in the batch.
	if err := w.Sweep(ctx); err != nil {
		// Do not ACK; the jobs stay pending and a claim pass retries them.
		return err
	}

	if err := w.redis.XAck(ctx, StreamKey, ConsumerGroup, messageIDs...).Err(); err != nil {
		return fmt.Errorf("xack: %w", err)
	}
	return nil
}

// readBatch reads new sweep jobs for this consumer.
func (w *Worker) readBatch(ctx context.Context) ([]redis.XMessage, error) {
	streams, err := w.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    ConsumerGroup,
		Consumer: w.consumerID,
		Streams:  []string{StreamKey, ">"},
		Count:    int64(w.batchSize),
		Block:    w.blockTimeout,
	}).Result()

	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // No jobs within the block window
		}
		return nil, fmt.Errorf("xreadgroup: %w", err)
	}

	var messages []redis.XMessage
	for _, stream := range streams {
		messages = append(messages, stream.Messages...)
	}
	return messages, nil
}

// maybeClaimPending checks for stuck pending messages and reclaims them.
// The ">" cursor only ever delivers new entries, so without this pass a job
// left unacked by a failed or crashed consumer would sit in its pending list
// forever.
func (w *Worker) maybeClaimPending(ctx context.Context) ([]redis.XMessage, error) {
	if w.claimInterval <= 0 || w.claimIdle <= 0 {
		return nil, nil
	}
	if !w.lastClaim.IsZero() && time.Since(w.lastClaim) < w.claimInterval {
		return nil, nil
	}

	w.lastClaim = time.Now()
	messages, start, err := w.redis.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   StreamKey,
		Group:    ConsumerGroup,
		Consumer: w.consumerID,
		MinIdle:  w.claimIdle,
		Start:    w.claimStartID,
		Count:    int64(w.batchSize),
	}).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("xautoclaim: %w", err)
	}
	if start != "" {
		w.claimStartID = start
	}
	return messages, nil
}

// Sweep deletes every activation token whose expiry is strictly in the past.
// Running it with nothing expired is a no-op. Safe to run concurrently with
// token consumption: the row-level locking in the store resolves the race and
// the losing side simply deletes zero rows.
func (w *Worker) Sweep(ctx context.Context) error {
	start := time.Now()
	removed, err := w.store.DeleteExpiredActivationTokens(ctx, start.UTC())
	if err != nil {
		return fmt.Errorf("delete expired tokens: %w", err)
	}

	w.metrics.ObserveSweepDuration(time.Since(start))
	w.metrics.AddSweepRemoved(removed)

	w.logger.Info("sweep complete",
		"removed", removed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// isConsumerGroupExistsError checks for the BUSYGROUP reply Redis returns
// when the group was already created.
func isConsumerGroupExistsError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "BUSYGROUP")
}
