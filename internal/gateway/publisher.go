package gateway

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

const latestSnapshotTTL = 24 * time.Hour

// Publisher mirrors portfolio snapshots to Redis so out-of-process consumers
// (alerting jobs, other dashboards) can subscribe without hitting the broker.
type Publisher struct {
	rdb *goredis.Client
}

// NewPublisher connects to Redis and verifies the connection.
func NewPublisher(ctx context.Context, addr string) (*Publisher, error) {
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &Publisher{rdb: rdb}, nil
}

// Client exposes the underlying Redis client for health checks.
func (p *Publisher) Client() *goredis.Client { return p.rdb }

// Publish sends the snapshot on the account's PubSub channel and stores it
// under a latest-value key so late subscribers can catch up with a GET.
func (p *Publisher) Publish(ctx context.Context, actID string, payload []byte) error {
	if actID == "" {
		actID = "default"
	}
	channel := "pub:portfolio:" + actID
	key := "latest:portfolio:" + actID

	pipe := p.rdb.Pipeline()
	pipe.Publish(ctx, channel, payload)
	pipe.Set(ctx, key, payload, latestSnapshotTTL)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

// Close releases the Redis connection.
func (p *Publisher) Close() error { return p.rdb.Close() }
