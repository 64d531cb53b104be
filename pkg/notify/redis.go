package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/mockbird/mockbird/pkg/logging"
)

// RedisBus fans events out across replicas over Redis pub/sub. Each
// user gets one channel; every replica serving a websocket for that
// user subscribes to it.
type RedisBus struct {
	client *redis.Client
	log    *slog.Logger
}

// NewRedisBus connects to Redis and verifies the connection.
func NewRedisBus(ctx context.Context, addr string, log *slog.Logger) (*RedisBus, error) {
	if log == nil {
		log = logging.Nop()
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cannot connect to redis at %s: %w", addr, err)
	}

	log.Info("redis connection established", "addr", addr)
	return &RedisBus{client: client, log: log}, nil
}

func channelFor(userID string) string {
	return "captures:" + userID
}

// Publish implements Bus.
func (b *RedisBus) Publish(ctx context.Context, userID string, ev *Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("cannot encode event: %w", err)
	}
	if err := b.client.Publish(ctx, channelFor(userID), payload).Err(); err != nil {
		return fmt.Errorf("cannot publish event for user %s: %w", userID, err)
	}
	return nil
}

// Subscribe implements Bus.
func (b *RedisBus) Subscribe(ctx context.Context, userID string) (<-chan *Event, func(), error) {
	pubsub := b.client.Subscribe(ctx, channelFor(userID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("cannot subscribe for user %s: %w", userID, err)
	}

	out := make(chan *Event, subscriberBuffer)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.log.Warn("dropping malformed event", "user_id", userID, "error", err)
				continue
			}
			select {
			case out <- &ev:
			default:
				b.log.Warn("dropping event for slow subscriber", "user_id", userID)
			}
		}
	}()

	cancel := func() { _ = pubsub.Close() }
	return out, cancel, nil
}

// Close implements Bus.
func (b *RedisBus) Close() error {
	return b.client.Close()
}
