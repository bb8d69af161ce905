// Package sweeper removes expired activation tokens through a Redis-backed
// job queue. Registration enqueues a sweep without awaiting it; a worker
// consumes the jobs and deletes stale rows.
package sweeper

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/gatehouse/gatehouse/internal/metrics"
)

const (
	// StreamKey is the Redis stream carrying sweep jobs.
	StreamKey = "stream:token_sweeps"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 10000

	// PublishTimeout is the max time to wait for a Redis publish.
	PublishTimeout = 100 * time.Millisecond
)

// Job is a single sweep request on the stream.
type Job struct {
	ID          string `json:"id"`
	RequestedAt int64  `json:"t"` // Unix milliseconds
}

// Publisher enqueues sweep jobs to the Redis stream.
type Publisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewPublisher creates a new sweep-job publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Publisher{
		redis:   client,
		logger:  logger.With("component", "sweeper.publisher"),
		metrics: recorder,
	}
}

// Enqueue adds a sweep job to the stream synchronously.
func (p *Publisher) Enqueue(ctx context.Context) (string, error) {
	job := Job{
		ID:          ulid.Make().String(),
		RequestedAt: time.Now().UnixMilli(),
	}

	data, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("marshal job: %w", err)
	}

	result, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true, // ~MAXLEN for performance
		ID:     "*",  // Auto-generate ID
		Values: map[string]interface{}{
			"payload": string(data),
		},
	}).Result()

	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}

	return result, nil
}

// EnqueueAsync schedules a sweep without blocking the caller.
// Errors are logged but not returned (fire-and-forget); the request path
// never waits on the broker.
func (p *Publisher) EnqueueAsync() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
		defer cancel()

		streamID, err := p.Enqueue(ctx)
		if err != nil {
			p.logger.Warn("failed to enqueue sweep job", "error", err)
			p.metrics.IncSweepEnqueued("dropped")
			return
		}

		p.logger.Debug("sweep job enqueued", "stream_id", streamID)
		p.metrics.IncSweepEnqueued("success")
	}()
}
