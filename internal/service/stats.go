package service

import (
	"context"
	"fmt"

	"kplays-api/internal/listing"
	"kplays-api/internal/model"
	"kplays-api/internal/repository"
)

// DashboardQuery selects and orders the stats table.
type DashboardQuery struct {
	Search   string
	Category model.Category
	Sort     string
	Desc     bool
}

// Dashboard is the stats page payload. Summary covers the whole catalogue,
// Games only the filtered rows.
type Dashboard struct {
	Summary listing.Summary `json:"summary"`
	Games   []model.Game    `json:"games"`
}

// StatsService builds the stats page from a fresh read of the store.
type StatsService struct {
	repo repository.GameRepository
}

// NewStatsService creates a new stats service.
func NewStatsService(repo repository.GameRepository) *StatsService {
	return &StatsService{repo: repo}
}

// Dashboard loads every game, summarizes and returns the filtered, sorted table.
func (s *StatsService) Dashboard(ctx context.Context, q DashboardQuery) (*Dashboard, error) {
	games, err := s.repo.ListGames(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load games: %w", err)
	}

	rows := listing.Filter(games, q.Search, q.Category)
	if q.Sort != "" {
		rows = listing.SortGames(rows, q.Sort, q.Desc)
	}
	return &Dashboard{Summary: listing.Summarize(games), Games: rows}, nil
}
