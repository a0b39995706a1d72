package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"gov_queue/internal/logging"
)

// RedisPublisher publishes events on "<prefix><session_id>" so every API
// replica's websocket hub can relay them.
type RedisPublisher struct {
	client *redis.Client
	prefix string
}

func NewRedisPublisher(client *redis.Client, prefix string) *RedisPublisher {
	return &RedisPublisher{client: client, prefix: prefix}
}

func (p *RedisPublisher) Publish(ctx context.Context, sessionID uuid.UUID, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.client.Publish(ctx, p.prefix+sessionID.String(), payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Relay subscribes to all session channels and forwards decoded events to a
// local publisher (the websocket hub). It returns when ctx is cancelled.
func Relay(ctx context.Context, client *redis.Client, prefix string, local Publisher) error {
	sub := client.PSubscribe(ctx, prefix+"*")
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis psubscribe: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			sessionID, err := uuid.Parse(strings.TrimPrefix(msg.Channel, prefix))
			if err != nil {
				logging.Warn().Str("channel", msg.Channel).Msg("relay: unexpected channel")
				continue
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				logging.Warn().Err(err).Str("channel", msg.Channel).Msg("relay: bad payload")
				continue
			}
			if err := local.Publish(ctx, sessionID, event); err != nil {
				logging.Warn().Err(err).Str("session_id", sessionID.String()).Msg("relay: local publish failed")
			}
		}
	}
}
