// Package events distributes catalog change notifications to subscribers.
package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"kplays-api/pkg/uid"
)

// Topics
const (
	TopicGames = "games"
)

// Event types
const (
	GameCreated    = "game.created"
	GameUpdated    = "game.updated"
	GameDeleted    = "game.deleted"
	GamesReset     = "games.reset" // bulk changes such as reorder or import
	CountersBumped = "game.counters"
	CommentCreated = "comment.created"
)

// InstanceID identifies this process as the origin of the events it publishes.
var InstanceID = uid.New()

// ErrClosed is returned when publishing on a closed broker.
var ErrClosed = errors.New("broker closed")

// GameTopic returns the per-game topic.
func GameTopic(id string) string {
	return "game:" + id
}

// Event is a change notification.
type Event struct {
	Type   string    `json:"type"`
	GameID string    `json:"game_id,omitempty"`
	Origin string    `json:"origin,omitempty"`
	At     time.Time `json:"at"`
}

// Local reports whether this process published ev.
func (ev Event) Local() bool {
	return ev.Origin == InstanceID
}

// Broker publishes events to topic subscribers.
type Broker interface {
	Publish(ctx context.Context, topic string, ev Event) error
	Subscribe(ctx context.Context, topic string) (*Subscription, error)
	Close() error
}

// Subscription delivers events on C until Close is called or the
// subscribing context ends.
type Subscription struct {
	C <-chan Event

	once  sync.Once
	close func()
}

// Close stops delivery. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(s.close)
}

const subscriberBuffer = 16

// MemoryBroker fans events out inside the process. Slow subscribers miss
// events rather than block publishers.
type MemoryBroker struct {
	mu     sync.RWMutex
	subs   map[string]map[chan Event]chan struct{}
	closed bool
}

// NewMemoryBroker creates an in-process broker.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: make(map[string]map[chan Event]chan struct{})}
}

// Publish delivers ev to every current subscriber of topic.
func (b *MemoryBroker) Publish(ctx context.Context, topic string, ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}
	for ch := range b.subs[topic] {
		select {
		case ch <- ev:
		default:
			slog.Debug("dropping event for slow subscriber", "topic", topic, "type", ev.Type)
		}
	}
	return nil
}

// Subscribe registers a subscriber on topic.
func (b *MemoryBroker) Subscribe(ctx context.Context, topic string) (*Subscription, error) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[chan Event]chan struct{})
	}
	done := make(chan struct{})
	b.subs[topic][ch] = done
	b.mu.Unlock()

	sub := &Subscription{C: ch}
	sub.close = func() { b.remove(topic, ch) }

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-done:
		}
	}()

	return sub, nil
}

func (b *MemoryBroker) remove(topic string, ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subs[topic]
	if !ok {
		return
	}
	done, ok := subs[ch]
	if !ok {
		return
	}
	delete(subs, ch)
	if len(subs) == 0 {
		delete(b.subs, topic)
	}
	close(done)
	close(ch)
}

// Close closes every subscription.
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for topic, subs := range b.subs {
		for ch, done := range subs {
			close(done)
			close(ch)
		}
		delete(b.subs, topic)
	}
	return nil
}

// Subscribers returns the number of subscribers on topic.
func (b *MemoryBroker) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// PublishGame sends ev on the catalog topic and on the game's own topic.
func PublishGame(ctx context.Context, b Broker, ev Event) {
	if b == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	if ev.Origin == "" {
		ev.Origin = InstanceID
	}
	if err := b.Publish(ctx, TopicGames, ev); err != nil {
		slog.Warn("failed to publish event", "topic", TopicGames, "type", ev.Type, "error", err)
	}
	if ev.GameID == "" {
		return
	}
	if err := b.Publish(ctx, GameTopic(ev.GameID), ev); err != nil {
		slog.Warn("failed to publish event", "topic", GameTopic(ev.GameID), "type", ev.Type, "error", err)
	}
}
