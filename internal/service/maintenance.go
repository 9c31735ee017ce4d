package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"kplays-api/internal/cache"
	"kplays-api/internal/events"
	"kplays-api/internal/listing"
	"kplays-api/internal/model"
	"kplays-api/internal/repository"

	"gopkg.in/yaml.v3"
)

// MaintenanceResult reports a bulk fix. Failed lists the titles whose write failed.
type MaintenanceResult struct {
	Total   int                      `json:"total"`
	Changed []listing.PriorityChange `json:"changed"`
	Failed  []string                 `json:"failed"`
}

// Status summarizes the result for the operator.
func (r MaintenanceResult) Status() Status {
	if len(r.Failed) > 0 {
		err := fmt.Errorf("%d updates failed", len(r.Failed))
		return Failure(err, "Updated %d of %d games, failed: %s",
			len(r.Changed)-len(r.Failed), r.Total, strings.Join(r.Failed, ", "))
	}
	return Success("Updated %d of %d games", len(r.Changed), r.Total)
}

// MaintenanceService repairs and imports catalogue data.
type MaintenanceService struct {
	repo   repository.GameRepository
	cache  cache.Cache
	broker events.Broker
}

// NewMaintenanceService creates a new maintenance service. c and broker may be nil.
func NewMaintenanceService(repo repository.GameRepository, c cache.Cache, broker events.Broker) *MaintenanceService {
	return &MaintenanceService{repo: repo, cache: c, broker: broker}
}

// FixPriorities renumbers the current order so priorities are unique:
// the game at position i of n gets n - i.
func (s *MaintenanceService) FixPriorities(ctx context.Context) (MaintenanceResult, error) {
	games, err := s.repo.ListGames(ctx)
	if err != nil {
		return MaintenanceResult{}, fmt.Errorf("failed to load games: %w", err)
	}
	listing.SortByPriority(games)
	return s.renumber(ctx, games)
}

// ArrangeByCreation renumbers so the newest game comes first.
func (s *MaintenanceService) ArrangeByCreation(ctx context.Context) (MaintenanceResult, error) {
	games, err := s.repo.ListGames(ctx)
	if err != nil {
		return MaintenanceResult{}, fmt.Errorf("failed to load games: %w", err)
	}
	listing.SortByCreated(games)
	return s.renumber(ctx, games)
}

func (s *MaintenanceService) renumber(ctx context.Context, games []model.Game) (MaintenanceResult, error) {
	_, changes := listing.Renumber(games)
	res := MaintenanceResult{Total: len(games), Changed: changes, Failed: []string{}}
	if res.Changed == nil {
		res.Changed = []listing.PriorityChange{}
	}

	for _, c := range changes {
		if err := s.repo.UpdatePriority(ctx, c.ID, c.New); err != nil {
			slog.Error("failed to update priority", "game_id", c.ID, "title", c.Title, "error", err)
			res.Failed = append(res.Failed, c.Title)
			continue
		}
		slog.Debug("priority updated", "title", c.Title, "old", c.Old, "new", c.New)
	}

	if len(changes) > 0 {
		s.announce(ctx)
	}
	return res, nil
}

// Import formats accepted by ImportLegacy.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ImportLegacy reads an array of documents in the old shape and inserts
// them in one batch. Missing counters start at zero and a missing
// description falls back to "desc".
func (s *MaintenanceService) ImportLegacy(ctx context.Context, r io.Reader, format string) (int, error) {
	var docs []model.LegacyGame
	switch strings.ToLower(format) {
	case FormatJSON, "":
		if err := json.NewDecoder(r).Decode(&docs); err != nil {
			return 0, fmt.Errorf("%w: decode json: %v", ErrInvalidInput, err)
		}
	case FormatYAML, "yml":
		if err := yaml.NewDecoder(r).Decode(&docs); err != nil {
			return 0, fmt.Errorf("%w: decode yaml: %v", ErrInvalidInput, err)
		}
	default:
		return 0, fmt.Errorf("%w: unknown format %q", ErrInvalidInput, format)
	}

	games := make([]*model.Game, 0, len(docs))
	for i, d := range docs {
		g := d.ToGame()
		if strings.TrimSpace(g.Title) == "" {
			return 0, fmt.Errorf("%w: document %d has no title", ErrInvalidInput, i+1)
		}
		if g.Type == "" {
			g.Type = model.CategoryPC
		}
		games = append(games, &g)
	}
	if len(games) == 0 {
		return 0, nil
	}

	if err := s.repo.CreateGames(ctx, games); err != nil {
		return 0, fmt.Errorf("failed to import games: %w", err)
	}

	slog.Info("legacy games imported", "count", len(games))
	s.announce(ctx)
	return len(games), nil
}

func (s *MaintenanceService) announce(ctx context.Context) {
	if s.cache != nil {
		if _, err := s.cache.Invalidate(ctx, "game"); err != nil {
			slog.Warn("failed to invalidate game cache", "error", err)
		}
	}
	events.PublishGame(ctx, s.broker, events.Event{Type: events.GamesReset})
}
