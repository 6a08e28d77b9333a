package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"vibehive/contract"
	"vibehive/domain"

	"github.com/redis/go-redis/v9"
)

const (
	channelPrefix  = "vibehive:room:"
	channelPattern = channelPrefix + "*"
	pingTimeout    = 3 * time.Second
)

var _ contract.Broker = (*RedisBroker)(nil)

// RedisBroker relays room publications between instances over redis pub/sub.
// Every room maps to its own channel, subscribers listen to all of them.
type RedisBroker struct {
	log    *slog.Logger
	client *redis.Client
}

// NewRedisBroker connects to url and checks the server answers.
func NewRedisBroker(ctx context.Context, url string, log *slog.Logger) (*RedisBroker, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	client := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return NewRedisBrokerFromClient(client, log), nil
}

func NewRedisBrokerFromClient(client *redis.Client, log *slog.Logger) *RedisBroker {
	return &RedisBroker{log: log, client: client}
}

func (b *RedisBroker) Publish(ctx context.Context, envelope contract.Envelope) error {
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("redis: encode envelope: %w", err)
	}
	if err = b.client.Publish(ctx, RoomChannel(envelope.Room), data).Err(); err != nil {
		return fmt.Errorf("redis: publish: %w", err)
	}
	return nil
}

// Subscribe hands every envelope published by any instance to handle.
// It blocks until ctx is done or the subscription breaks.
func (b *RedisBroker) Subscribe(ctx context.Context, handle func(contract.Envelope)) error {
	sub := b.client.PSubscribe(ctx, channelPattern)
	defer func() { _ = sub.Close() }()

	// Surface connection errors now instead of on the first message.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis: psubscribe: %w", err)
	}
	b.log.Info("Redis relay subscribed", "pattern", channelPattern)

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return fmt.Errorf("redis: subscription closed")
			}
			var envelope contract.Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
				b.log.Warn("Dropping malformed relay envelope", "channel", msg.Channel, "error", err)
				continue
			}
			handle(envelope)
		}
	}
}

func (b *RedisBroker) Close() error {
	return b.client.Close()
}

// RoomChannel names the redis channel of a room: vibehive:room:{kind}:{id}.
func RoomChannel(room domain.RoomKey) string {
	return channelPrefix + room.String()
}
