package listing

import (
	"testing"
	"time"

	"kplays-api/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func game(id string, priority int, ageHours int) model.Game {
	return model.Game{
		ID:        id,
		Title:     "Game " + id,
		Type:      model.CategoryPC,
		Priority:  priority,
		CreatedAt: base.Add(-time.Duration(ageHours) * time.Hour),
	}
}

func ids(games []model.Game) []string {
	out := make([]string, len(games))
	for i, g := range games {
		out[i] = g.ID
	}
	return out
}

func TestSortByPriorityTieBreaksOnCreated(t *testing.T) {
	games := []model.Game{game("old", 5, 10), game("top", 9, 50), game("new", 5, 1)}
	SortByPriority(games)
	assert.Equal(t, []string{"top", "new", "old"}, ids(games))
}

func TestCollectionInsertKeepsOrder(t *testing.T) {
	c := NewCollection([]model.Game{game("a", 10, 0), game("b", 5, 0)})
	c.Insert(game("c", 7, 0))
	assert.Equal(t, []string{"a", "c", "b"}, ids(c.Items()))
}

func TestCollectionPatchResorts(t *testing.T) {
	c := NewCollection([]model.Game{game("a", 10, 0), game("b", 5, 0)})

	ok := c.Patch("b", func(g *model.Game) { g.Priority = 20 })
	require.True(t, ok)
	assert.Equal(t, []string{"b", "a"}, ids(c.Items()))

	assert.False(t, c.Patch("missing", func(*model.Game) {}))
}

func TestCollectionRemove(t *testing.T) {
	c := NewCollection([]model.Game{game("a", 3, 0), game("b", 2, 0), game("c", 1, 0)})
	require.True(t, c.Remove("b"))
	assert.Equal(t, []string{"a", "c"}, ids(c.Items()))
	assert.False(t, c.Remove("b"))
	assert.Equal(t, 2, c.Len())
}

func TestCollectionItemsIsACopy(t *testing.T) {
	c := NewCollection([]model.Game{game("a", 3, 0)})
	items := c.Items()
	items[0].Title = "changed"

	g, _, ok := c.Find("a")
	require.True(t, ok)
	assert.Equal(t, "Game a", g.Title)
}

func TestPriorityOwner(t *testing.T) {
	c := NewCollection([]model.Game{game("a", 3, 0), game("b", 2, 0)})

	owner, ok := c.PriorityOwner(2, "a")
	require.True(t, ok)
	assert.Equal(t, "b", owner.ID)

	_, ok = c.PriorityOwner(2, "b")
	assert.False(t, ok)
	assert.Equal(t, 3, c.MaxPriority())
}

func TestFilter(t *testing.T) {
	games := []model.Game{
		{ID: "1", Title: "Need for Speed", Type: model.CategoryPC},
		{ID: "2", Title: "Subway Surfers", Type: model.CategoryAndroid},
		{ID: "3", Title: "Speedball", Type: model.CategoryAndroid},
	}

	assert.Equal(t, []string{"1", "3"}, ids(Filter(games, "SPEED", model.CategoryAll)))
	assert.Equal(t, []string{"3"}, ids(Filter(games, "speed", model.CategoryAndroid)))
	assert.Equal(t, []string{"1"}, ids(Filter(games, "", model.CategoryPC)))
	assert.Len(t, Filter(games, "  ", ""), 3)
}
