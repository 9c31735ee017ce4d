package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"kplays-api/internal/cache"
	"kplays-api/internal/events"
	"kplays-api/internal/model"
	"kplays-api/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdmin(t *testing.T) (*AdminService, *spyStore, *cache.MemoryCache, *events.MemoryBroker) {
	t.Helper()
	store := newSpyStore()
	seedABC(t, store)
	c := cache.NewMemoryCache()
	broker := events.NewMemoryBroker()
	t.Cleanup(func() { broker.Close() })
	return NewAdminService(store, c, broker, time.Minute), store, c, broker
}

func cachedList(t *testing.T, c cache.Cache) []model.Game {
	t.Helper()
	var games []model.Game
	require.NoError(t, cache.GetJSON(context.Background(), c, KeyGamesList, &games))
	return games
}

func TestCreateGameWritesThrough(t *testing.T) {
	admin, store, c, broker := newTestAdmin(t)
	ctx := context.Background()

	sub, err := broker.Subscribe(ctx, events.TopicGames)
	require.NoError(t, err)
	defer sub.Close()

	g, st := admin.CreateGame(ctx, model.Game{Title: "  D ", Type: "PC"})
	require.True(t, st.OK, st.String())
	assert.Equal(t, `✅ Game "D" added`, st.String())
	assert.Equal(t, 11, g.Priority, "unset priority goes to the top")
	assert.Equal(t, model.CategoryPC, g.Type)

	assert.Equal(t, []string{"D", "A", "B", "C"}, titles(cachedList(t, c)))

	stored, err := store.GetGame(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "D", stored.Title)

	select {
	case ev := <-sub.C:
		assert.Equal(t, events.GameCreated, ev.Type)
		assert.Equal(t, g.ID, ev.GameID)
		assert.True(t, ev.Local())
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}
}

func TestCreateGameCollidingPriorityMovesToTop(t *testing.T) {
	admin, _, _, _ := newTestAdmin(t)

	g, st := admin.CreateGame(context.Background(), model.Game{Title: "D", Type: model.CategoryAndroid, Priority: 8})
	require.True(t, st.OK)
	assert.Equal(t, 11, g.Priority)

	g, st = admin.CreateGame(context.Background(), model.Game{Title: "E", Type: model.CategoryAndroid, Priority: 7})
	require.True(t, st.OK)
	assert.Equal(t, 7, g.Priority)
}

func TestCreateGameRejectsInvalid(t *testing.T) {
	admin, _, _, _ := newTestAdmin(t)

	_, st := admin.CreateGame(context.Background(), model.Game{Title: " ", Type: model.CategoryPC})
	assert.False(t, st.OK)
	assert.ErrorIs(t, st.Err, ErrInvalidInput)

	_, st = admin.CreateGame(context.Background(), model.Game{Title: "X", Type: "console"})
	assert.ErrorIs(t, st.Err, ErrInvalidCategory)
	assert.True(t, strings.HasPrefix(st.String(), "❌ "))
}

func TestBulkCreateAssignsDistinctPriorities(t *testing.T) {
	admin, _, c, _ := newTestAdmin(t)

	games, st := admin.BulkCreate(context.Background(), []model.Game{
		{Title: "D", Type: model.CategoryPC},
		{Title: "E", Type: model.CategoryPC, Priority: 10},
		{Title: "F", Type: model.CategoryPC, Priority: 3},
	})
	require.True(t, st.OK, st.String())
	assert.Equal(t, "Added 3 games", st.Message)
	assert.Equal(t, 11, games[0].Priority)
	assert.Equal(t, 12, games[1].Priority)
	assert.Equal(t, 3, games[2].Priority)

	assert.Equal(t, []string{"E", "D", "A", "B", "C", "F"}, titles(cachedList(t, c)))
}

func TestUpdatePriorityRejectsDuplicate(t *testing.T) {
	admin, store, _, _ := newTestAdmin(t)
	ctx := context.Background()

	st := admin.UpdatePriority(ctx, "c", 8)
	assert.False(t, st.OK)
	assert.ErrorIs(t, st.Err, ErrDuplicatePriority)
	assert.Equal(t, `❌ Priority 8 already used by "B"`, st.String())

	c, err := store.GetGame(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, 5, c.Priority)

	st = admin.UpdatePriority(ctx, "c", 20)
	require.True(t, st.OK)
	games, err := admin.Games(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A", "B"}, titles(games))
}

func TestUpdateGameFailureLeavesSnapshot(t *testing.T) {
	admin, store, c, _ := newTestAdmin(t)
	ctx := context.Background()

	_, err := admin.Games(ctx)
	require.NoError(t, err)

	store.failUpdate = true
	st := admin.UpdateGame(ctx, "a", model.GameUpdate{Title: strPtr("Z")})
	assert.False(t, st.OK)
	assert.ErrorIs(t, st.Err, errBoom)

	_, err = c.Get(ctx, KeyGamesList)
	assert.True(t, cache.IsMiss(err), "nothing written through on failure")

	store.failUpdate = false
	st = admin.UpdateGame(ctx, "a", model.GameUpdate{Title: strPtr("Z")})
	require.True(t, st.OK)
	assert.Equal(t, []string{"Z", "B", "C"}, titles(cachedList(t, c)))
}

func TestUpdateGameValidation(t *testing.T) {
	admin, _, _, _ := newTestAdmin(t)
	ctx := context.Background()

	assert.ErrorIs(t, admin.UpdateGame(ctx, "a", model.GameUpdate{}).Err, ErrInvalidInput)
	assert.ErrorIs(t, admin.UpdateGame(ctx, "a", model.GameUpdate{Title: strPtr(" ")}).Err, ErrInvalidInput)

	p := 8
	assert.ErrorIs(t, admin.UpdateGame(ctx, "a", model.GameUpdate{Priority: &p}).Err, ErrDuplicatePriority)
	assert.ErrorIs(t, admin.UpdateGame(ctx, "zz", model.GameUpdate{Title: strPtr("x")}).Err, repository.ErrNotFound)
}

func TestDeleteGame(t *testing.T) {
	admin, _, c, _ := newTestAdmin(t)
	ctx := context.Background()

	st := admin.DeleteGame(ctx, "b")
	require.True(t, st.OK)
	assert.Equal(t, []string{"A", "C"}, titles(cachedList(t, c)))

	st = admin.DeleteGame(ctx, "b")
	assert.ErrorIs(t, st.Err, repository.ErrNotFound)
}

func TestReorderRenumbersAndPersists(t *testing.T) {
	admin, store, c, _ := newTestAdmin(t)
	ctx := context.Background()

	ordered, st := admin.Reorder(ctx, 2, 0)
	require.True(t, st.OK, st.String())
	assert.Equal(t, []string{"C", "A", "B"}, titles(ordered))
	assert.Equal(t, 3, store.priorityWrites)

	stored, err := store.ListGames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A", "B"}, titles(stored))
	assert.Equal(t, 3, stored[0].Priority)
	assert.Equal(t, 2, stored[1].Priority)
	assert.Equal(t, 1, stored[2].Priority)

	assert.Equal(t, []string{"C", "A", "B"}, titles(cachedList(t, c)))
}

func TestReorderSameIndexIsNoop(t *testing.T) {
	admin, store, _, _ := newTestAdmin(t)

	_, st := admin.Reorder(context.Background(), 1, 1)
	require.True(t, st.OK)
	assert.Equal(t, 0, store.priorityWrites)

	_, st = admin.Reorder(context.Background(), 0, 5)
	assert.ErrorIs(t, st.Err, ErrInvalidInput)
}

func TestReorderPartialFailureIsReported(t *testing.T) {
	admin, store, _, _ := newTestAdmin(t)
	store.failPriorityID = "a"

	ordered, st := admin.Reorder(context.Background(), 2, 0)
	assert.False(t, st.OK)
	assert.Contains(t, st.Message, "A")
	assert.Equal(t, []string{"C", "A", "B"}, titles(ordered))
}

func TestOverviewAndRequests(t *testing.T) {
	admin, store, _, _ := newTestAdmin(t)
	ctx := context.Background()

	require.NoError(t, store.IncrementCounters(ctx, "c", 9, 0))
	ov, err := admin.Overview(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, ov.Summary.Total)
	assert.Equal(t, "C", ov.Top[0].Title)

	for i := 0; i < 3; i++ {
		require.NoError(t, store.CreateRequest(ctx, &model.GameRequest{GameName: "X", Platform: "pc"}))
	}
	reqs, total, err := admin.Requests(ctx, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, reqs, 1)
}

func TestInvalidateCache(t *testing.T) {
	admin, _, c, _ := newTestAdmin(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, KeyGamesList, []byte(`[]`), time.Minute))
	require.NoError(t, c.Set(ctx, DetailKey("a"), []byte(`{}`), time.Minute))
	require.NoError(t, c.Set(ctx, "session:kps_x", []byte(`{}`), time.Minute))

	n, st := admin.InvalidateCache(ctx, "")
	require.True(t, st.OK)
	assert.Equal(t, 2, n)

	_, err := c.Get(ctx, "session:kps_x")
	assert.NoError(t, err)
}

func TestWatchDropsSnapshotOnForeignChange(t *testing.T) {
	admin, store, c, broker := newTestAdmin(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := admin.Games(ctx)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, admin.Watch(ctx))
	}()
	require.Eventually(t, func() bool { return broker.Subscribers(events.TopicGames) == 1 }, time.Second, 5*time.Millisecond)

	// Another process moves A off priority 10.
	require.NoError(t, store.UpdatePriority(ctx, "a", 1))
	events.PublishGame(ctx, broker, events.Event{Type: events.GameUpdated, GameID: "a", Origin: "kpctl"})

	require.Eventually(t, func() bool {
		admin.mu.Lock()
		defer admin.mu.Unlock()
		return admin.coll == nil
	}, time.Second, 5*time.Millisecond)

	st := admin.UpdatePriority(ctx, "c", 10)
	require.True(t, st.OK, st.String())
	assert.Equal(t, []string{"C", "B", "A"}, titles(cachedList(t, c)))

	cancel()
	<-done
}
