package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"kplays-api/internal/cache"
	"kplays-api/internal/events"
	"kplays-api/internal/listing"
	"kplays-api/internal/model"
	"kplays-api/internal/repository"
)

// AdminRepo is the part of the store the dashboard needs.
type AdminRepo interface {
	repository.GameRepository
	repository.RequestRepository
}

// Overview is the dashboard header.
type Overview struct {
	Summary listing.Summary `json:"summary"`
	Top     []model.Game    `json:"top"`
}

// AdminService applies dashboard mutations to the store and then patches
// its in-memory snapshot the same way the store did, instead of
// re-fetching. The patched list is written through to the public list
// cache and a change event is published. A failed mutation leaves the
// snapshot untouched.
type AdminService struct {
	mu      sync.Mutex
	repo    AdminRepo
	cache   cache.Cache
	broker  events.Broker
	listTTL time.Duration
	coll    *listing.Collection
	now     func() time.Time
}

// NewAdminService creates the reconciler. broker may be nil.
func NewAdminService(repo AdminRepo, c cache.Cache, broker events.Broker, listTTL time.Duration) *AdminService {
	if listTTL <= 0 {
		listTTL = 5 * time.Minute
	}
	return &AdminService{
		repo:    repo,
		cache:   c,
		broker:  broker,
		listTTL: listTTL,
		now:     time.Now,
	}
}

// Games reloads the snapshot from the store and returns it.
func (s *AdminService) Games(ctx context.Context) ([]model.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.reload(ctx); err != nil {
		return nil, err
	}
	return s.coll.Items(), nil
}

func (s *AdminService) reload(ctx context.Context) error {
	games, err := s.repo.ListGames(ctx)
	if err != nil {
		return fmt.Errorf("failed to load games: %w", err)
	}
	s.coll = listing.NewCollection(games)
	return nil
}

func (s *AdminService) ensureLoaded(ctx context.Context) error {
	if s.coll != nil {
		return nil
	}
	return s.reload(ctx)
}

// Watch drops the snapshot whenever another process changes the catalogue,
// so the next mutation starts from the store. It returns when ctx ends or
// the broker closes.
func (s *AdminService) Watch(ctx context.Context) error {
	if s.broker == nil {
		return nil
	}
	sub, err := s.broker.Subscribe(ctx, events.TopicGames)
	if err != nil {
		return fmt.Errorf("failed to watch games: %w", err)
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.C:
			if !ok {
				return nil
			}
			if ev.Local() {
				continue
			}
			s.mu.Lock()
			s.coll = nil
			s.mu.Unlock()
			slog.Debug("admin snapshot dropped", "type", ev.Type, "game_id", ev.GameID, "origin", ev.Origin)
		}
	}
}

// writeThrough stores the snapshot as the public list and announces the change.
func (s *AdminService) writeThrough(ctx context.Context, ev events.Event) {
	if err := cache.SetJSON(ctx, s.cache, KeyGamesList, s.coll.Items(), s.listTTL); err != nil {
		slog.Warn("failed to write list cache", "error", err)
	}
	if ev.GameID != "" {
		_ = s.cache.Delete(ctx, DetailKey(ev.GameID))
	}
	events.PublishGame(ctx, s.broker, ev)
}

func validateGame(g *model.Game) error {
	g.Title = strings.TrimSpace(g.Title)
	if g.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	c, ok := model.ParseCategory(string(g.Type))
	if !ok || c == model.CategoryAll {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, g.Type)
	}
	g.Type = c
	if g.Screenshots == nil {
		g.Screenshots = model.Screenshots{}
	}
	return nil
}

// nextPriority keeps a requested priority unless it is unset or taken,
// in which case the game goes to the top.
func nextPriority(coll *listing.Collection, requested int, taken map[int]bool) int {
	if requested > 0 && !taken[requested] {
		if _, used := coll.PriorityOwner(requested, ""); !used {
			return requested
		}
	}
	p := coll.MaxPriority() + 1
	for taken[p] {
		p++
	}
	return p
}

// CreateGame adds a game.
func (s *AdminService) CreateGame(ctx context.Context, g model.Game) (model.Game, Status) {
	if err := validateGame(&g); err != nil {
		return model.Game{}, Failure(err, "Invalid game: %v", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		return model.Game{}, Failure(err, "Failed to load games: %v", err)
	}

	g.Priority = nextPriority(s.coll, g.Priority, nil)
	if g.CreatedAt.IsZero() {
		g.CreatedAt = s.now().UTC()
	}

	if err := s.repo.CreateGame(ctx, &g); err != nil {
		slog.Error("failed to create game", "title", g.Title, "error", err)
		return model.Game{}, Failure(err, "Failed to add game: %v", err)
	}

	s.coll.Insert(g)
	s.writeThrough(ctx, events.Event{Type: events.GameCreated, GameID: g.ID})
	return g, Success("Game %q added", g.Title)
}

// BulkCreate adds several games in one batch.
func (s *AdminService) BulkCreate(ctx context.Context, games []model.Game) ([]model.Game, Status) {
	if len(games) == 0 {
		err := fmt.Errorf("%w: no games given", ErrInvalidInput)
		return nil, Failure(err, "No games to add")
	}
	for i := range games {
		if err := validateGame(&games[i]); err != nil {
			return nil, Failure(err, "Invalid game #%d: %v", i+1, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		return nil, Failure(err, "Failed to load games: %v", err)
	}

	taken := make(map[int]bool, len(games))
	ptrs := make([]*model.Game, len(games))
	now := s.now().UTC()
	for i := range games {
		games[i].Priority = nextPriority(s.coll, games[i].Priority, taken)
		taken[games[i].Priority] = true
		if games[i].CreatedAt.IsZero() {
			games[i].CreatedAt = now
		}
		ptrs[i] = &games[i]
	}

	if err := s.repo.CreateGames(ctx, ptrs); err != nil {
		slog.Error("failed to bulk create games", "count", len(games), "error", err)
		return nil, Failure(err, "Failed to add games: %v", err)
	}

	s.coll.Insert(games...)
	s.writeThrough(ctx, events.Event{Type: events.GamesReset})
	return games, Success("Added %d games", len(games))
}

// UpdateGame applies a partial update.
func (s *AdminService) UpdateGame(ctx context.Context, id string, u model.GameUpdate) Status {
	if u.IsEmpty() {
		return Failure(fmt.Errorf("%w: nothing to update", ErrInvalidInput), "Nothing to update")
	}
	if u.Title != nil {
		t := strings.TrimSpace(*u.Title)
		if t == "" {
			return Failure(fmt.Errorf("%w: title is required", ErrInvalidInput), "Title cannot be empty")
		}
		u.Title = &t
	}
	if u.Type != nil {
		c, ok := model.ParseCategory(string(*u.Type))
		if !ok || c == model.CategoryAll {
			return Failure(ErrInvalidCategory, "Invalid category %q", *u.Type)
		}
		u.Type = &c
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		return Failure(err, "Failed to load games: %v", err)
	}
	if u.Priority != nil {
		if owner, used := s.coll.PriorityOwner(*u.Priority, id); used {
			return Failure(ErrDuplicatePriority, "Priority %d already used by %q", *u.Priority, owner.Title)
		}
	}

	if err := s.repo.UpdateGame(ctx, id, u); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Failure(err, "Game not found")
		}
		slog.Error("failed to update game", "game_id", id, "error", err)
		return Failure(err, "Failed to update game: %v", err)
	}

	s.coll.Patch(id, u.Apply)
	s.writeThrough(ctx, events.Event{Type: events.GameUpdated, GameID: id})
	return Success("Game updated")
}

// UpdatePriority sets one game's priority. A priority held by another game
// is rejected.
func (s *AdminService) UpdatePriority(ctx context.Context, id string, priority int) Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		return Failure(err, "Failed to load games: %v", err)
	}
	if owner, used := s.coll.PriorityOwner(priority, id); used {
		return Failure(ErrDuplicatePriority, "Priority %d already used by %q", priority, owner.Title)
	}

	if err := s.repo.UpdatePriority(ctx, id, priority); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Failure(err, "Game not found")
		}
		slog.Error("failed to update priority", "game_id", id, "error", err)
		return Failure(err, "Failed to update priority: %v", err)
	}

	s.coll.Patch(id, func(g *model.Game) { g.Priority = priority })
	s.writeThrough(ctx, events.Event{Type: events.GameUpdated, GameID: id})
	return Success("Priority set to %d", priority)
}

// DeleteGame removes a game.
func (s *AdminService) DeleteGame(ctx context.Context, id string) Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		return Failure(err, "Failed to load games: %v", err)
	}

	if err := s.repo.DeleteGame(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Failure(err, "Game not found")
		}
		slog.Error("failed to delete game", "game_id", id, "error", err)
		return Failure(err, "Failed to delete game: %v", err)
	}

	s.coll.Remove(id)
	s.writeThrough(ctx, events.Event{Type: events.GameDeleted, GameID: id})
	return Success("Game deleted")
}

// Reorder moves the game at from to position to and renumbers the whole
// list. Each changed priority is persisted on its own; a failed write is
// reported but not rolled back.
func (s *AdminService) Reorder(ctx context.Context, from, to int) ([]model.Game, Status) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		return nil, Failure(err, "Failed to load games: %v", err)
	}
	if from == to && from >= 0 && from < s.coll.Len() {
		return s.coll.Items(), Success("Order unchanged")
	}

	ordered, changes, err := listing.Reorder(s.coll.Items(), from, to)
	if err != nil {
		return nil, Failure(fmt.Errorf("%w: %v", ErrInvalidInput, err), "Invalid move: %v", err)
	}

	var failed []string
	for _, c := range changes {
		if err := s.repo.UpdatePriority(ctx, c.ID, c.New); err != nil {
			slog.Warn("failed to persist priority", "game_id", c.ID, "priority", c.New, "error", err)
			failed = append(failed, c.Title)
		}
	}

	s.coll.Replace(ordered)
	s.writeThrough(ctx, events.Event{Type: events.GamesReset})

	if len(failed) > 0 {
		err := fmt.Errorf("failed to persist %d of %d priorities", len(failed), len(changes))
		return ordered, Failure(err, "Reordered, but saving failed for: %s", strings.Join(failed, ", "))
	}
	return ordered, Success("Reordered %d games", len(changes))
}

// Overview returns totals and the ten most viewed games.
func (s *AdminService) Overview(ctx context.Context) (Overview, error) {
	games, err := s.Games(ctx)
	if err != nil {
		return Overview{}, err
	}
	return Overview{Summary: listing.Summarize(games), Top: listing.TopByViews(games, 10)}, nil
}

// Requests returns a page of game requests and the total count.
func (s *AdminService) Requests(ctx context.Context, page, limit int) ([]model.GameRequest, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.repo.ListRequests(ctx, limit, (page-1)*limit)
}

// InvalidateCache drops cache entries whose key contains pattern. A blank
// pattern drops the game entries.
func (s *AdminService) InvalidateCache(ctx context.Context, pattern string) (int, Status) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		pattern = "game"
	}
	n, err := s.cache.Invalidate(ctx, pattern)
	if err != nil {
		return 0, Failure(err, "Failed to invalidate cache: %v", err)
	}
	return n, Success("Removed %d cache entries", n)
}
