// Package broker provides the Redis task-broker connection.
package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Broker wraps the Redis client carrying background-job streams.
type Broker struct {
	client *redis.Client
}

// New creates a new Broker from a Redis URL.
func New(ctx context.Context, brokerURL string) (*Broker, error) {
	opt, err := redis.ParseURL(brokerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse broker URL: %w", err)
	}

	// Connection pool settings
	opt.PoolSize = 10
	opt.MinIdleConns = 2
	opt.PoolTimeout = 4 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute

	client := redis.NewClient(opt)

	// Verify connection
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping broker: %w", err)
	}

	return &Broker{client: client}, nil
}

// Ping checks broker connectivity.
func (b *Broker) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (b *Broker) Close() error {
	return b.client.Close()
}

// Client returns the underlying Redis client.
// Use sparingly - prefer adding methods to Broker.
func (b *Broker) Client() *redis.Client {
	return b.client
}
