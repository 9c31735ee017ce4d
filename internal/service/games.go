package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"kplays-api/internal/cache"
	"kplays-api/internal/events"
	"kplays-api/internal/listing"
	"kplays-api/internal/model"
	"kplays-api/internal/repository"
	"kplays-api/internal/search"
)

// CommentLimit is the number of comments shown on a detail page.
const CommentLimit = 20

// GameRepo is the part of the store the public loaders need.
type GameRepo interface {
	repository.GameRepository
	repository.CommentRepository
}

// GameServiceConfig holds the loader lifetimes.
type GameServiceConfig struct {
	ListTTL    time.Duration
	DetailTTL  time.Duration
	ViewWindow time.Duration
	// Views holds the per-viewer view markers. It must not share a quota
	// with the page cache; nil gets an unbounded memory cache.
	Views cache.Cache
}

// ListFilter narrows the public list.
type ListFilter struct {
	Search   string
	Category model.Category
}

// GameService serves the public list and detail pages: cache first,
// store on a miss.
type GameService struct {
	repo     GameRepo
	cache    cache.Cache
	views    cache.Cache
	counters CounterSink
	index    *search.Index
	broker   events.Broker
	cfg      GameServiceConfig
	now      func() time.Time
}

// NewGameService creates the loader. index and broker may be nil.
func NewGameService(repo GameRepo, c cache.Cache, counters CounterSink, index *search.Index, broker events.Broker, cfg GameServiceConfig) *GameService {
	if cfg.ListTTL <= 0 {
		cfg.ListTTL = 5 * time.Minute
	}
	if cfg.DetailTTL <= 0 {
		cfg.DetailTTL = 15 * time.Minute
	}
	if cfg.ViewWindow <= 0 {
		cfg.ViewWindow = 24 * time.Hour
	}
	if counters == nil {
		counters = NewDirectCounters(repo)
	}
	views := cfg.Views
	if views == nil {
		views = cache.NewMemoryCache(cache.WithName("views"))
	}
	return &GameService{
		repo:     repo,
		cache:    c,
		views:    views,
		counters: counters,
		index:    index,
		broker:   broker,
		cfg:      cfg,
		now:      time.Now,
	}
}

func (s *GameService) loadAll(ctx context.Context) ([]model.Game, error) {
	return cache.GetOrLoad(ctx, s.cache, KeyGamesList, s.cfg.ListTTL, s.repo.ListGames)
}

// List returns the ordered catalogue narrowed by filter.
func (s *GameService) List(ctx context.Context, filter ListFilter) ([]model.Game, error) {
	games, err := s.loadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load games: %w", err)
	}
	return listing.Filter(games, filter.Search, filter.Category), nil
}

// Get returns one game with any buffered counter increments applied.
func (s *GameService) Get(ctx context.Context, id string) (*model.Game, error) {
	g, err := cache.GetOrLoad(ctx, s.cache, DetailKey(id), s.cfg.DetailTTL, func(ctx context.Context) (*model.Game, error) {
		return s.repo.GetGame(ctx, id)
	})
	if err != nil {
		return nil, err
	}

	if s.counters.Buffered() {
		delta, err := s.counters.Pending(ctx, id)
		if err != nil {
			slog.Warn("failed to read pending counters", "game_id", id, "error", err)
		} else {
			g.Views += delta.Views
			g.Downloads += delta.Downloads
		}
	}
	return g, nil
}

// Search runs a full-text query, best match first. Without an index it
// falls back to the title filter.
func (s *GameService) Search(ctx context.Context, q string, category model.Category, limit int) ([]model.Game, error) {
	games, err := s.loadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load games: %w", err)
	}
	if s.index == nil {
		out := listing.Filter(games, q, category)
		if limit > 0 && len(out) > limit {
			out = out[:limit]
		}
		return out, nil
	}

	ids, err := s.index.Search(q, category, limit)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]model.Game, len(games))
	for _, g := range games {
		byID[g.ID] = g
	}
	out := make([]model.Game, 0, len(ids))
	for _, id := range ids {
		if g, ok := byID[id]; ok {
			out = append(out, g)
		}
	}
	return out, nil
}

// TrackView counts a view of id by viewerID unless the same viewer already
// counted one within the view window. It reports whether a view was counted.
// The view marker is claimed atomically, so concurrent views by one viewer
// count once.
func (s *GameService) TrackView(ctx context.Context, viewerID, id string) (bool, error) {
	if strings.TrimSpace(viewerID) == "" {
		return false, fmt.Errorf("%w: viewer id is required", ErrInvalidInput)
	}

	if _, err := s.Get(ctx, id); err != nil {
		return false, err
	}

	key := ViewKey(viewerID, id)
	claimed, err := s.views.SetNX(ctx, key, []byte(s.now().UTC().Format(time.RFC3339)), s.cfg.ViewWindow)
	if err != nil {
		return false, fmt.Errorf("failed to record view: %w", err)
	}
	if !claimed {
		return false, nil
	}

	if err := s.counters.Add(ctx, id, 1, 0); err != nil {
		_ = s.views.Delete(ctx, key)
		return false, fmt.Errorf("failed to count view: %w", err)
	}

	s.afterCount(ctx, id)
	return true, nil
}

// TrackDownload counts a download and returns the link to redirect to.
func (s *GameService) TrackDownload(ctx context.Context, id string) (string, error) {
	g, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(g.Download) == "" {
		return "", ErrNoDownload
	}
	if err := s.counters.Add(ctx, id, 0, 1); err != nil {
		return "", fmt.Errorf("failed to count download: %w", err)
	}
	s.afterCount(ctx, id)
	return g.Download, nil
}

func (s *GameService) afterCount(ctx context.Context, id string) {
	if !s.counters.Buffered() {
		_ = s.cache.Delete(ctx, DetailKey(id))
	}
	if s.broker != nil {
		ev := events.Event{Type: events.CountersBumped, GameID: id, Origin: events.InstanceID}
		if err := s.broker.Publish(ctx, events.GameTopic(id), ev); err != nil {
			slog.Debug("failed to publish counter event", "game_id", id, "error", err)
		}
	}
}

// Comments returns the most recent comments of a game, newest first.
func (s *GameService) Comments(ctx context.Context, id string) ([]model.Comment, error) {
	return s.repo.ListComments(ctx, id, CommentLimit)
}

// AddComment stores a comment. Blank text is rejected before the store is
// touched; a blank name posts as Guest.
func (s *GameService) AddComment(ctx context.Context, id, username, text string) (*model.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyComment
	}
	username = strings.TrimSpace(username)
	if username == "" {
		username = model.DefaultCommenter
	}

	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	c := &model.Comment{GameID: id, Username: username, Text: text, CreatedAt: s.now().UTC()}
	if err := s.repo.CreateComment(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to add comment: %w", err)
	}

	if s.broker != nil {
		ev := events.Event{Type: events.CommentCreated, GameID: id, Origin: events.InstanceID}
		if err := s.broker.Publish(ctx, events.GameTopic(id), ev); err != nil {
			slog.Debug("failed to publish comment event", "game_id", id, "error", err)
		}
	}
	return c, nil
}

// RebuildIndex loads every game from the store into the search index.
func (s *GameService) RebuildIndex(ctx context.Context) error {
	if s.index == nil {
		return nil
	}
	games, err := s.repo.ListGames(ctx)
	if err != nil {
		return fmt.Errorf("failed to load games for indexing: %w", err)
	}
	if err := s.index.Reindex(games); err != nil {
		return err
	}
	slog.Info("search index rebuilt", "games", len(games))
	return nil
}

// Watch follows catalogue changes until ctx ends: the detail entry of a
// changed game is evicted and the search index refreshed. Changes published
// by other instances also evict the list entry.
func (s *GameService) Watch(ctx context.Context) error {
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
			s.apply(ctx, ev)
		}
	}
}

func (s *GameService) apply(ctx context.Context, ev events.Event) {
	if ev.GameID != "" {
		_ = s.cache.Delete(ctx, DetailKey(ev.GameID))
	}
	if !ev.Local() {
		_ = s.cache.Delete(ctx, KeyGamesList)
	}
	if s.index == nil {
		return
	}

	switch {
	case ev.Type == events.GameDeleted:
		if err := s.index.Delete(ev.GameID); err != nil {
			slog.Warn("failed to drop game from index", "game_id", ev.GameID, "error", err)
		}
	case ev.Type == events.GamesReset || ev.GameID == "":
		if err := s.RebuildIndex(ctx); err != nil {
			slog.Warn("failed to rebuild index", "error", err)
		}
	default:
		g, err := s.repo.GetGame(ctx, ev.GameID)
		if errors.Is(err, repository.ErrNotFound) {
			_ = s.index.Delete(ev.GameID)
			return
		}
		if err != nil {
			slog.Warn("failed to reload game for index", "game_id", ev.GameID, "error", err)
			return
		}
		if err := s.index.Upsert(*g); err != nil {
			slog.Warn("failed to index game", "game_id", ev.GameID, "error", err)
		}
	}
}
