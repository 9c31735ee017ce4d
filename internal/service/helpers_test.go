package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"kplays-api/internal/cache"
	"kplays-api/internal/model"
	"kplays-api/internal/repository"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// spyStore counts writes and can be told to fail them.
type spyStore struct {
	*repository.MemoryStore
	mu             sync.Mutex
	commentCreates int
	priorityWrites int
	failUpdate     bool
	failPriorityID string
}

var errBoom = errors.New("boom")

func newSpyStore() *spyStore {
	return &spyStore{MemoryStore: repository.NewMemoryStore()}
}

func (s *spyStore) CreateComment(ctx context.Context, c *model.Comment) error {
	s.mu.Lock()
	s.commentCreates++
	s.mu.Unlock()
	return s.MemoryStore.CreateComment(ctx, c)
}

func (s *spyStore) UpdateGame(ctx context.Context, id string, u model.GameUpdate) error {
	if s.failUpdate {
		return errBoom
	}
	return s.MemoryStore.UpdateGame(ctx, id, u)
}

func (s *spyStore) UpdatePriority(ctx context.Context, id string, p int) error {
	s.mu.Lock()
	s.priorityWrites++
	s.mu.Unlock()
	if id == s.failPriorityID {
		return errBoom
	}
	return s.MemoryStore.UpdatePriority(ctx, id, p)
}

// seedABC stores A(10), B(8), C(5) with ids a, b, c.
func seedABC(t *testing.T, s repository.GameRepository) {
	t.Helper()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	games := []*model.Game{
		{ID: "a", Title: "A", Type: model.CategoryPC, Priority: 10, CreatedAt: base, Download: "https://dl.example.com/a"},
		{ID: "b", Title: "B", Type: model.CategoryAndroid, Priority: 8, CreatedAt: base.Add(time.Hour)},
		{ID: "c", Title: "C", Type: model.CategoryPC, Priority: 5, CreatedAt: base.Add(2 * time.Hour)},
	}
	require.NoError(t, s.CreateGames(context.Background(), games))
}

func titles(games []model.Game) []string {
	out := make([]string, len(games))
	for i, g := range games {
		out[i] = g.Title
	}
	return out
}

func newTestCache(clock *fakeClock) *cache.MemoryCache {
	return cache.NewMemoryCache(cache.WithClock(clock.Now))
}
