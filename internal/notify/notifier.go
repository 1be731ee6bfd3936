package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Notifier delivers a human-readable message to a recipient. Delivery
// is best effort: callers must never fail a state transition because a
// notification could not be sent.
type Notifier interface {
	Send(ctx context.Context, recipient, message string) error
}

type message struct {
	Recipient string    `json:"recipient"`
	Message   string    `json:"message"`
	SentAt    time.Time `json:"sent_at"`
}

// RedisPublisher publishes notifications on a Redis pub/sub channel for
// a downstream delivery worker to pick up.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{
		client:  client,
		channel: channel,
	}
}

func (p *RedisPublisher) Send(ctx context.Context, recipient, msg string) error {
	data, err := json.Marshal(message{
		Recipient: recipient,
		Message:   msg,
		SentAt:    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// LogNotifier writes notifications to the process log. Used in dev and
// as a fallback when no Redis channel is configured.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(_ context.Context, recipient, msg string) error {
	log.Printf("notify recipient=%s message=%q", recipient, msg)
	return nil
}
