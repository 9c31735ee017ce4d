package events

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.C:
		require.True(t, ok, "subscription closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestMemoryBrokerDelivers(t *testing.T) {
	b := NewMemoryBroker()
	defer b.Close()

	sub, err := b.Subscribe(context.Background(), TopicGames)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, b.Publish(context.Background(), TopicGames, Event{Type: GameCreated, GameID: "g1"}))

	ev := receive(t, sub)
	assert.Equal(t, GameCreated, ev.Type)
	assert.Equal(t, "g1", ev.GameID)
	assert.False(t, ev.At.IsZero())
}

func TestMemoryBrokerTopicsAreIsolated(t *testing.T) {
	b := NewMemoryBroker()
	defer b.Close()

	sub, err := b.Subscribe(context.Background(), GameTopic("g2"))
	require.NoError(t, err)

	PublishGame(context.Background(), b, Event{Type: GameUpdated, GameID: "g1"})
	PublishGame(context.Background(), b, Event{Type: GameUpdated, GameID: "g2"})

	ev := receive(t, sub)
	assert.Equal(t, "g2", ev.GameID)
	assert.Len(t, sub.C, 0)
}

func TestMemoryBrokerDropsForSlowSubscriber(t *testing.T) {
	b := NewMemoryBroker()
	defer b.Close()

	sub, err := b.Subscribe(context.Background(), TopicGames)
	require.NoError(t, err)

	for i := 0; i < subscriberBuffer+5; i++ {
		require.NoError(t, b.Publish(context.Background(), TopicGames, Event{Type: GameUpdated}))
	}
	assert.Len(t, sub.C, subscriberBuffer)
}

func TestMemoryBrokerContextCancelUnsubscribes(t *testing.T) {
	b := NewMemoryBroker()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := b.Subscribe(ctx, TopicGames)
	require.NoError(t, err)
	assert.Equal(t, 1, b.Subscribers(TopicGames))

	cancel()
	assert.Eventually(t, func() bool { return b.Subscribers(TopicGames) == 0 }, time.Second, 10*time.Millisecond)

	_, ok := <-sub.C
	assert.False(t, ok)
	sub.Close()
}

func TestMemoryBrokerClose(t *testing.T) {
	b := NewMemoryBroker()
	sub, err := b.Subscribe(context.Background(), TopicGames)
	require.NoError(t, err)

	require.NoError(t, b.Close())
	_, ok := <-sub.C
	assert.False(t, ok)
	sub.Close()

	assert.ErrorIs(t, b.Publish(context.Background(), TopicGames, Event{}), ErrClosed)
	_, err = b.Subscribe(context.Background(), TopicGames)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMemoryBrokerCloseReleasesWatcher(t *testing.T) {
	b := NewMemoryBroker()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	before := runtime.NumGoroutine()
	for i := 0; i < 100; i++ {
		sub, err := b.Subscribe(ctx, TopicGames)
		require.NoError(t, err)
		sub.Close()
	}

	assert.Zero(t, b.Subscribers(TopicGames))
	assert.Eventually(t, func() bool { return runtime.NumGoroutine() <= before+5 }, time.Second, 10*time.Millisecond,
		"closing a subscription must not leave its goroutine waiting on a live context")

	for i := 0; i < 100; i++ {
		_, err := b.Subscribe(ctx, TopicGames)
		require.NoError(t, err)
	}
	require.NoError(t, b.Close())
	assert.Eventually(t, func() bool { return runtime.NumGoroutine() <= before+5 }, time.Second, 10*time.Millisecond,
		"closing the broker releases every subscription")
}
