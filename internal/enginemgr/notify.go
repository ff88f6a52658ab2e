package enginemgr

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisNotifier publishes hot-reload events to a Redis pub/sub channel so
// sibling manager instances (a fleet of embedding processes sharing one
// rule store) can react to a configuration change. Optional: wiring a
// Manager's notifier is the caller's choice, per SPEC_FULL.md's domain
// stack section.
type RedisNotifier struct {
	client  *redis.Client
	channel string
	timeout time.Duration
}

// NewRedisNotifier builds a RedisNotifier publishing to channel on the
// Redis instance at addr.
func NewRedisNotifier(addr, channel string) *RedisNotifier {
	return &RedisNotifier{
		client:  redis.NewClient(&redis.Options{Addr: addr}),
		channel: channel,
		timeout: 2 * time.Second,
	}
}

// Notify publishes event to the configured channel. Errors are swallowed
// by design: a missed hot-reload notification degrades other instances to
// their previous engine, which is safe, not a correctness failure for the
// instance doing the publishing.
func (n *RedisNotifier) Notify(event string) {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()
	n.client.Publish(ctx, n.channel, event)
}

// Close releases the underlying Redis client.
func (n *RedisNotifier) Close() error {
	return n.client.Close()
}
