package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBroker relays events through Redis pub/sub so that every API
// instance sees changes made on the others.
type RedisBroker struct {
	client *redis.Client
	prefix string
}

// NewRedisBroker creates a broker on an existing client. The client is
// owned by the caller.
func NewRedisBroker(client *redis.Client, prefix string) *RedisBroker {
	if prefix == "" {
		prefix = "kplays"
	}
	slog.Info("redis event broker ready", "prefix", prefix)
	return &RedisBroker{client: client, prefix: prefix + ":events:"}
}

// Publish sends ev to the channel of topic.
func (b *RedisBroker) Publish(ctx context.Context, topic string, ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	return b.client.Publish(ctx, b.prefix+topic, payload).Err()
}

// Subscribe listens on the channel of topic.
func (b *RedisBroker) Subscribe(ctx context.Context, topic string) (*Subscription, error) {
	ps := b.client.Subscribe(ctx, b.prefix+topic)
	// Wait for the subscription confirmation so early publishes are not lost.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	out := make(chan Event, subscriberBuffer)
	stop := make(chan struct{})
	sub := &Subscription{C: out}
	sub.close = func() {
		close(stop)
		_ = ps.Close()
	}

	go func() {
		defer close(out)
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				sub.Close()
				return
			case <-stop:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					slog.Warn("discarding malformed event", "channel", msg.Channel, "error", err)
					continue
				}
				select {
				case out <- ev:
				default:
					slog.Debug("dropping event for slow subscriber", "topic", topic, "type", ev.Type)
				}
			}
		}
	}()

	return sub, nil
}

// Close is a no-op; subscriptions close individually and the client is
// owned by the caller.
func (b *RedisBroker) Close() error {
	return nil
}

var (
	_ Broker = (*MemoryBroker)(nil)
	_ Broker = (*RedisBroker)(nil)
)
