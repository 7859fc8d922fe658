package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// redisClient is the part of go-redis the publisher needs.
type redisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher fans events out to a Redis pub/sub channel as JSON.
type RedisPublisher struct {
	client  redisClient
	channel string
}

// NewRedisPublisher returns nil when client is nil so callers can skip publishing.
func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	if client == nil {
		return nil
	}
	return &RedisPublisher{client: client, channel: channel}
}

// Channel returns the target channel name.
func (p *RedisPublisher) Channel() string {
	return p.channel
}

// Publish encodes event and sends it, returning the number of receivers.
func (p *RedisPublisher) Publish(ctx context.Context, event Event) (int64, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("encode event %s: %w", event.ID, err)
	}
	receivers, err := p.client.Publish(ctx, p.channel, body).Result()
	if err != nil {
		return 0, fmt.Errorf("publish event %s: %w", event.ID, err)
	}
	return receivers, nil
}
