package listing

import (
	"fmt"

	"kplays-api/internal/model"
)

// PriorityChange records a game whose priority moved.
type PriorityChange struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Old   int    `json:"old"`
	New   int    `json:"new"`
}

// Reorder moves the game at from to position to and renumbers the list so
// the game at index i gets priority len-i. It returns the new order and the
// games whose priority changed. The input slice is not modified.
func Reorder(games []model.Game, from, to int) ([]model.Game, []PriorityChange, error) {
	n := len(games)
	if from < 0 || from >= n || to < 0 || to >= n {
		return nil, nil, fmt.Errorf("reorder %d -> %d out of range for %d items", from, to, n)
	}

	out := make([]model.Game, 0, n)
	out = append(out, games[:from]...)
	out = append(out, games[from+1:]...)

	moved := games[from]
	out = append(out, model.Game{})
	copy(out[to+1:], out[to:])
	out[to] = moved

	changes := renumber(out)
	return out, changes, nil
}

// Renumber assigns len-i to the game at index i of an already ordered list.
func Renumber(games []model.Game) ([]model.Game, []PriorityChange) {
	out := make([]model.Game, len(games))
	copy(out, games)
	return out, renumber(out)
}

func renumber(games []model.Game) []PriorityChange {
	var changes []PriorityChange
	n := len(games)
	for i := range games {
		want := n - i
		if games[i].Priority != want {
			changes = append(changes, PriorityChange{
				ID:    games[i].ID,
				Title: games[i].Title,
				Old:   games[i].Priority,
				New:   want,
			})
			games[i].Priority = want
		}
	}
	return changes
}
