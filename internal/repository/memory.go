package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"kplays-api/internal/model"
	"kplays-api/pkg/uid"
)

// MemoryStore implements Store in process memory. It backs DB_TYPE=memory
// and the service tests.
type MemoryStore struct {
	mu       sync.RWMutex
	games    map[string]model.Game
	comments []model.Comment
	requests []model.GameRequest
	users    map[string]model.User
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		games: make(map[string]model.Game),
		users: make(map[string]model.User),
	}
}

func cloneGame(g model.Game) model.Game {
	g.Screenshots = append(model.Screenshots{}, g.Screenshots...)
	return g
}

// ListGames returns all games ordered by priority desc, created_at desc.
func (s *MemoryStore) ListGames(ctx context.Context) ([]model.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	games := make([]model.Game, 0, len(s.games))
	for _, g := range s.games {
		games = append(games, cloneGame(g))
	}
	sort.SliceStable(games, func(i, j int) bool {
		if games[i].Priority != games[j].Priority {
			return games[i].Priority > games[j].Priority
		}
		return games[i].CreatedAt.After(games[j].CreatedAt)
	})
	return games, nil
}

// GetGame retrieves a game by ID.
func (s *MemoryStore) GetGame(ctx context.Context, id string) (*model.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.games[id]
	if !ok {
		return nil, ErrNotFound
	}
	g = cloneGame(g)
	return &g, nil
}

// CreateGame inserts a game.
func (s *MemoryStore) CreateGame(ctx context.Context, game *model.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prepareGame(game)
	if _, ok := s.games[game.ID]; ok {
		return ErrDuplicate
	}
	s.games[game.ID] = cloneGame(*game)
	return nil
}

// CreateGames inserts several games; nothing is stored if any ID collides.
func (s *MemoryStore) CreateGames(ctx context.Context, games []*model.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, g := range games {
		prepareGame(g)
		if _, ok := s.games[g.ID]; ok {
			return ErrDuplicate
		}
	}
	for _, g := range games {
		s.games[g.ID] = cloneGame(*g)
	}
	return nil
}

// UpdateGame applies a partial update.
func (s *MemoryStore) UpdateGame(ctx context.Context, id string, u model.GameUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.games[id]
	if !ok {
		return ErrNotFound
	}
	u.Apply(&g)
	s.games[id] = g
	return nil
}

// UpdatePriority sets a single game's priority.
func (s *MemoryStore) UpdatePriority(ctx context.Context, id string, priority int) error {
	return s.UpdateGame(ctx, id, model.GameUpdate{Priority: &priority})
}

// DeleteGame removes a game and its comments.
func (s *MemoryStore) DeleteGame(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.games[id]; !ok {
		return ErrNotFound
	}
	delete(s.games, id)

	kept := s.comments[:0]
	for _, c := range s.comments {
		if c.GameID != id {
			kept = append(kept, c)
		}
	}
	s.comments = kept
	return nil
}

// IncrementCounters adds to a game's counters.
func (s *MemoryStore) IncrementCounters(ctx context.Context, id string, views, downloads int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.games[id]
	if !ok {
		return ErrNotFound
	}
	g.Views += views
	g.Downloads += downloads
	s.games[id] = g
	return nil
}

// ApplyCounterDeltas adds buffered deltas. Unknown games are skipped.
func (s *MemoryStore) ApplyCounterDeltas(ctx context.Context, deltas []model.CounterDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range deltas {
		g, ok := s.games[d.GameID]
		if !ok {
			continue
		}
		g.Views += d.Views
		g.Downloads += d.Downloads
		s.games[d.GameID] = g
	}
	return nil
}

// ListComments returns the newest comments of a game.
func (s *MemoryStore) ListComments(ctx context.Context, gameID string, limit int) ([]model.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	comments := []model.Comment{}
	for _, c := range s.comments {
		if c.GameID == gameID {
			comments = append(comments, c)
		}
	}
	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].CreatedAt.After(comments[j].CreatedAt)
	})
	if limit > 0 && len(comments) > limit {
		comments = comments[:limit]
	}
	return comments, nil
}

// CreateComment inserts a comment.
func (s *MemoryStore) CreateComment(ctx context.Context, c *model.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = uid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	s.comments = append(s.comments, *c)
	return nil
}

// CreateRequest stores a game request.
func (s *MemoryStore) CreateRequest(ctx context.Context, r *model.GameRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = uid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	s.requests = append(s.requests, *r)
	return nil
}

// ListRequests returns requests newest first with the total count.
func (s *MemoryStore) ListRequests(ctx context.Context, limit, offset int) ([]model.GameRequest, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := append([]model.GameRequest(nil), s.requests...)
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := int64(len(all))
	if offset >= len(all) {
		return []model.GameRequest{}, total, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, total, nil
}

// CreateUser inserts a user.
func (s *MemoryStore) CreateUser(ctx context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(u.Email)
	if _, ok := s.users[key]; ok {
		return ErrDuplicate
	}
	if u.ID == "" {
		u.ID = uid.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	s.users[key] = *u
	return nil
}

// GetUserByEmail finds a user by email.
func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[strings.ToLower(email)]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

// GetStats returns record counts.
func (s *MemoryStore) GetStats(ctx context.Context) (map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]interface{}{
		"dialect":       "memory",
		"games":         int64(len(s.games)),
		"comments":      int64(len(s.comments)),
		"game_requests": int64(len(s.requests)),
		"users":         int64(len(s.users)),
	}, nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
