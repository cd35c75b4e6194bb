package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix is prepended to channel names to form list keys.
const DefaultRedisPrefix = "itunes-scraper:errors:"

// RedisSink pushes messages onto one Redis list per channel.
type RedisSink struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisSink wraps an existing client. An empty prefix uses
// [DefaultRedisPrefix].
func NewRedisSink(client *redis.Client, prefix string) *RedisSink {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisSink{client: client, prefix: prefix, now: time.Now}
}

// DialRedis connects to addr and verifies the connection with PING.
func DialRedis(ctx context.Context, addr, prefix string) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return NewRedisSink(client, prefix), nil
}

// Key returns the list key for channel.
func (s *RedisSink) Key(channel string) string {
	return s.prefix + safeChannel(channel)
}

func (s *RedisSink) Append(ctx context.Context, channel, message string) error {
	line := s.now().Format(TimestampLayout) + message
	if err := s.client.RPush(ctx, s.Key(channel), line).Err(); err != nil {
		return fmt.Errorf("push %s log: %w", channel, err)
	}
	return nil
}

// Close closes the underlying client.
func (s *RedisSink) Close() error {
	return s.client.Close()
}
