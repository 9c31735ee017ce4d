package listing

import (
	"math"
	"sort"
	"strings"

	"kplays-api/internal/model"
)

// Summary aggregates the catalogue for the dashboard header.
type Summary struct {
	Total          int     `json:"total"`
	PC             int     `json:"pc"`
	Android        int     `json:"android"`
	TotalViews     int64   `json:"total_views"`
	TotalDownloads int64   `json:"total_downloads"`
	AvgPriority    float64 `json:"avg_priority"`
}

// Summarize computes totals over games. The average priority is rounded to one decimal.
func Summarize(games []model.Game) Summary {
	s := Summary{Total: len(games)}
	prioritySum := 0
	for _, g := range games {
		switch g.Type {
		case model.CategoryPC:
			s.PC++
		case model.CategoryAndroid:
			s.Android++
		}
		s.TotalViews += g.Views
		s.TotalDownloads += g.Downloads
		prioritySum += g.Priority
	}
	if len(games) > 0 {
		s.AvgPriority = math.Round(float64(prioritySum)/float64(len(games))*10) / 10
	}
	return s
}

// Sort keys accepted by SortGames.
const (
	SortTitle     = "title"
	SortViews     = "views"
	SortDownloads = "downloads"
	SortPriority  = "priority"
)

// SortGames orders a copy of games by key. Unknown keys sort by priority.
// Ties keep the incoming order.
func SortGames(games []model.Game, key string, desc bool) []model.Game {
	out := make([]model.Game, len(games))
	copy(out, games)

	less := func(a, b model.Game) bool { return a.Priority < b.Priority }
	switch key {
	case SortTitle:
		less = func(a, b model.Game) bool { return strings.ToLower(a.Title) < strings.ToLower(b.Title) }
	case SortViews:
		less = func(a, b model.Game) bool { return a.Views < b.Views }
	case SortDownloads:
		less = func(a, b model.Game) bool { return a.Downloads < b.Downloads }
	}

	sort.SliceStable(out, func(i, j int) bool {
		if desc {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})
	return out
}

// TopByViews returns the n most viewed games.
func TopByViews(games []model.Game, n int) []model.Game {
	out := SortGames(games, SortViews, true)
	if len(out) > n {
		out = out[:n]
	}
	return out
}
