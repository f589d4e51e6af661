// internal/database/redis.go
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// EventsChannel carries realtime events between service instances.
const EventsChannel = "chat:events"

// NewRedis parses a redis:// URL and verifies the connection.
func NewRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

// PublishEvent publishes a realtime event payload.
func PublishEvent(ctx context.Context, client *redis.Client, payload []byte) error {
	if client == nil {
		return fmt.Errorf("redis client not initialized")
	}
	return client.Publish(ctx, EventsChannel, payload).Err()
}

// SubscribeEvents subscribes to realtime events from all instances.
func SubscribeEvents(ctx context.Context, client *redis.Client) *redis.PubSub {
	if client == nil {
		return nil
	}
	return client.Subscribe(ctx, EventsChannel)
}
