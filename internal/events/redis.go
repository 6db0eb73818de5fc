package events

import (
	"context"
	"encoding/json"
	"fmt"

	"parkease/internal/domain"

	"github.com/redis/go-redis/v9"
)

// RedisAPI is the subset of *redis.Client the publisher needs.
type RedisAPI interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher broadcasts events on a pub/sub channel.
type RedisPublisher struct {
	client  RedisAPI
	channel string
}

func NewRedisPublisher(client RedisAPI, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, event domain.ReservationEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish to %s: %w", p.channel, err)
	}
	return nil
}
