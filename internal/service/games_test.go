package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"kplays-api/internal/cache"
	"kplays-api/internal/events"
	"kplays-api/internal/model"
	"kplays-api/internal/repository"
	"kplays-api/internal/search"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGameService(t *testing.T) (*GameService, *spyStore, *cache.MemoryCache, *fakeClock) {
	t.Helper()
	store := newSpyStore()
	seedABC(t, store)
	clock := newFakeClock()
	c := newTestCache(clock)
	svc := NewGameService(store, c, nil, nil, nil, GameServiceConfig{Views: newTestCache(clock)})
	svc.now = clock.Now
	return svc, store, c, clock
}

func TestListServesFromCacheUntilExpiry(t *testing.T) {
	svc, store, _, clock := newTestGameService(t)
	ctx := context.Background()

	games, err := svc.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, titles(games))

	require.NoError(t, store.CreateGame(ctx, &model.Game{Title: "D", Type: model.CategoryPC, Priority: 20}))

	games, err = svc.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, games, 3, "cached list is served")

	clock.Advance(5 * time.Minute)
	games, err = svc.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"D", "A", "B", "C"}, titles(games))
}

func TestListFilters(t *testing.T) {
	svc, _, _, _ := newTestGameService(t)

	games, err := svc.List(context.Background(), ListFilter{Category: model.CategoryPC})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C"}, titles(games))

	games, err = svc.List(context.Background(), ListFilter{Search: "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, titles(games))
}

func TestGetNotFound(t *testing.T) {
	svc, _, _, _ := newTestGameService(t)

	_, err := svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestTrackViewOncePerWindow(t *testing.T) {
	svc, store, _, clock := newTestGameService(t)
	ctx := context.Background()

	counted, err := svc.TrackView(ctx, "viewer-1", "a")
	require.NoError(t, err)
	assert.True(t, counted)

	clock.Advance(23 * time.Hour)
	counted, err = svc.TrackView(ctx, "viewer-1", "a")
	require.NoError(t, err)
	assert.False(t, counted)

	counted, err = svc.TrackView(ctx, "viewer-2", "a")
	require.NoError(t, err)
	assert.True(t, counted)

	g, err := store.GetGame(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(2), g.Views)

	clock.Advance(time.Hour)
	counted, err = svc.TrackView(ctx, "viewer-1", "a")
	require.NoError(t, err)
	assert.True(t, counted)
}

func TestTrackViewConcurrentSameViewerCountsOnce(t *testing.T) {
	svc, store, _, _ := newTestGameService(t)
	ctx := context.Background()

	var counted int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := svc.TrackView(ctx, "viewer-1", "a")
			assert.NoError(t, err)
			if ok {
				atomic.AddInt32(&counted, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), counted)
	g, err := store.GetGame(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), g.Views)
}

func TestViewMarkersKeepOutOfPageCacheQuota(t *testing.T) {
	store := newSpyStore()
	seedABC(t, store)
	pages := cache.NewMemoryCache(cache.WithQuota(8 << 10))
	svc := NewGameService(store, pages, nil, nil, nil, GameServiceConfig{})
	ctx := context.Background()

	_, err := svc.List(ctx, ListFilter{})
	require.NoError(t, err)

	for i := 0; i < 500; i++ {
		counted, err := svc.TrackView(ctx, fmt.Sprintf("viewer-%03d", i), "a")
		require.NoError(t, err)
		require.True(t, counted)
	}

	counted, err := svc.TrackView(ctx, "viewer-000", "a")
	require.NoError(t, err)
	assert.False(t, counted, "a repeat view is not counted again")

	_, err = pages.Get(ctx, KeyGamesList)
	assert.NoError(t, err, "the list stays cached")

	g, err := store.GetGame(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(500), g.Views)
}

func TestTrackViewUpdatesCachedDetail(t *testing.T) {
	svc, _, _, _ := newTestGameService(t)
	ctx := context.Background()

	g, err := svc.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(0), g.Views)

	_, err = svc.TrackView(ctx, "viewer-1", "a")
	require.NoError(t, err)

	g, err = svc.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), g.Views)
}

func TestTrackViewRequiresViewer(t *testing.T) {
	svc, _, _, _ := newTestGameService(t)

	_, err := svc.TrackView(context.Background(), " ", "a")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestTrackDownload(t *testing.T) {
	svc, store, _, _ := newTestGameService(t)
	ctx := context.Background()

	link, err := svc.TrackDownload(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "https://dl.example.com/a", link)

	_, err = svc.TrackDownload(ctx, "b")
	assert.ErrorIs(t, err, ErrNoDownload)

	a, _ := store.GetGame(ctx, "a")
	b, _ := store.GetGame(ctx, "b")
	assert.Equal(t, int64(1), a.Downloads)
	assert.Equal(t, int64(0), b.Downloads)
}

func TestAddCommentBlankIsNoop(t *testing.T) {
	svc, store, _, _ := newTestGameService(t)
	ctx := context.Background()

	_, err := svc.AddComment(ctx, "a", "kim", "   \n\t ")
	assert.ErrorIs(t, err, ErrEmptyComment)
	assert.Equal(t, 0, store.commentCreates)

	comments, err := svc.Comments(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, comments)
}

func TestAddCommentDefaultsToGuest(t *testing.T) {
	svc, store, _, _ := newTestGameService(t)
	ctx := context.Background()

	c, err := svc.AddComment(ctx, "a", "", "  great game  ")
	require.NoError(t, err)
	assert.Equal(t, model.DefaultCommenter, c.Username)
	assert.Equal(t, "great game", c.Text)
	assert.Equal(t, 1, store.commentCreates)

	_, err = svc.AddComment(ctx, "missing", "kim", "hello")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSearchUsesIndex(t *testing.T) {
	store := newSpyStore()
	seedABC(t, store)
	require.NoError(t, store.UpdateGame(context.Background(), "b",
		model.GameUpdate{Description: strPtr("open world racing")}))

	idx, err := search.NewIndex()
	require.NoError(t, err)
	defer idx.Close()

	svc := NewGameService(store, cache.NewMemoryCache(), nil, idx, nil, GameServiceConfig{})
	require.NoError(t, svc.RebuildIndex(context.Background()))

	games, err := svc.Search(context.Background(), "racing", model.CategoryAll, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, titles(games))
}

func TestWatchEvictsChangedGames(t *testing.T) {
	store := newSpyStore()
	seedABC(t, store)
	broker := events.NewMemoryBroker()
	defer broker.Close()

	c := cache.NewMemoryCache()
	svc := NewGameService(store, c, nil, nil, broker, GameServiceConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := svc.Get(ctx, "a")
	require.NoError(t, err)
	_, err = svc.List(ctx, ListFilter{})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = svc.Watch(ctx)
	}()
	require.Eventually(t, func() bool { return broker.Subscribers(events.TopicGames) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, broker.Publish(ctx, events.TopicGames,
		events.Event{Type: events.GameUpdated, GameID: "a", Origin: "other-instance"}))

	assert.Eventually(t, func() bool {
		_, errDetail := c.Get(ctx, DetailKey("a"))
		_, errList := c.Get(ctx, KeyGamesList)
		return cache.IsMiss(errDetail) && cache.IsMiss(errList)
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func strPtr(s string) *string { return &s }
