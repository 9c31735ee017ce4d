// Package listing holds the ordered game collection and the pure
// transformations applied to it: sorting, optimistic patches, re-ordering
// and the aggregate stats shown on the dashboard.
package listing

import (
	"sort"
	"strings"

	"kplays-api/internal/model"
)

// SortByPriority orders games by priority descending, newest first on ties.
func SortByPriority(games []model.Game) {
	sort.SliceStable(games, func(i, j int) bool {
		if games[i].Priority != games[j].Priority {
			return games[i].Priority > games[j].Priority
		}
		return games[i].CreatedAt.After(games[j].CreatedAt)
	})
}

// SortByCreated orders games newest first.
func SortByCreated(games []model.Game) {
	sort.SliceStable(games, func(i, j int) bool {
		return games[i].CreatedAt.After(games[j].CreatedAt)
	})
}

// Collection is an in-memory ordered list of games. It is not safe for
// concurrent use; callers guard it.
type Collection struct {
	items []model.Game
}

// NewCollection copies games and sorts them by priority.
func NewCollection(games []model.Game) *Collection {
	items := make([]model.Game, len(games))
	copy(items, games)
	SortByPriority(items)
	return &Collection{items: items}
}

// Items returns a copy of the ordered games.
func (c *Collection) Items() []model.Game {
	out := make([]model.Game, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of games.
func (c *Collection) Len() int {
	return len(c.items)
}

// Find returns the game with id and its position.
func (c *Collection) Find(id string) (model.Game, int, bool) {
	for i, g := range c.items {
		if g.ID == id {
			return g, i, true
		}
	}
	return model.Game{}, -1, false
}

// Insert adds games and re-sorts.
func (c *Collection) Insert(games ...model.Game) {
	c.items = append(c.items, games...)
	SortByPriority(c.items)
}

// Patch applies fn to the game with id and re-sorts. It reports whether the game exists.
func (c *Collection) Patch(id string, fn func(*model.Game)) bool {
	_, i, ok := c.Find(id)
	if !ok {
		return false
	}
	fn(&c.items[i])
	SortByPriority(c.items)
	return true
}

// Remove deletes the game with id, keeping the order of the rest.
func (c *Collection) Remove(id string) bool {
	_, i, ok := c.Find(id)
	if !ok {
		return false
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	return true
}

// Replace swaps the whole content, used after a re-order.
func (c *Collection) Replace(games []model.Game) {
	c.items = make([]model.Game, len(games))
	copy(c.items, games)
}

// PriorityOwner returns another game already holding priority.
func (c *Collection) PriorityOwner(priority int, excludeID string) (model.Game, bool) {
	for _, g := range c.items {
		if g.Priority == priority && g.ID != excludeID {
			return g, true
		}
	}
	return model.Game{}, false
}

// MaxPriority returns the highest priority, or 0 when empty.
func (c *Collection) MaxPriority() int {
	max := 0
	for _, g := range c.items {
		if g.Priority > max {
			max = g.Priority
		}
	}
	return max
}

// Filter keeps games whose title contains term (case-insensitive) and whose
// type matches category. An empty term or CategoryAll disables that filter.
func Filter(games []model.Game, term string, category model.Category) []model.Game {
	term = strings.ToLower(strings.TrimSpace(term))
	out := make([]model.Game, 0, len(games))
	for _, g := range games {
		if term != "" && !strings.Contains(strings.ToLower(g.Title), term) {
			continue
		}
		if category != "" && category != model.CategoryAll && g.Type != category {
			continue
		}
		out = append(out, g)
	}
	return out
}
