package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultEventsChannel is the pub/sub channel live notifications are published on.
const DefaultEventsChannel = "streamwatch:events"

// RedisPublisher fans notifications out to other services over Redis pub/sub.
type RedisPublisher struct {
	rdb     redis.Cmdable
	channel string
}

func NewRedisPublisher(rdb redis.Cmdable, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultEventsChannel
	}
	return &RedisPublisher{rdb: rdb, channel: channel}
}

func (p *RedisPublisher) SinkName() string { return "redis" }

func (p *RedisPublisher) Deliver(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return &DeliveryError{Sink: "redis", Err: fmt.Errorf("failed to marshal message: %w", err)}
	}
	if err := p.rdb.Publish(ctx, p.channel, data).Err(); err != nil {
		return &DeliveryError{Sink: "redis", Err: err}
	}
	return nil
}
