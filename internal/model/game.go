package model

import (
	"strings"
	"time"
)

// Category is the platform a game targets.
type Category string

const (
	CategoryPC      Category = "pc"
	CategoryAndroid Category = "android"
	// CategoryAll is only meaningful as a filter.
	CategoryAll Category = "all"
)

// ParseCategory normalizes a category name. ok is false for unknown values.
func ParseCategory(s string) (Category, bool) {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case CategoryPC:
		return CategoryPC, true
	case CategoryAndroid:
		return CategoryAndroid, true
	case CategoryAll, "":
		return CategoryAll, true
	}
	return "", false
}

// Game is a listing item.
type Game struct {
	ID           string      `json:"id" yaml:"id"`
	Title        string      `json:"title" yaml:"title"`
	Description  string      `json:"description" yaml:"description"`
	Type         Category    `json:"type" yaml:"type"`
	Image        string      `json:"img" yaml:"img"`
	Download     string      `json:"download" yaml:"download"`
	TrailerURL   string      `json:"trailer_url,omitempty" yaml:"trailer_url"`
	Requirements string      `json:"requirements,omitempty" yaml:"requirements"`
	Screenshots  Screenshots `json:"screenshots" yaml:"screenshots"`
	Priority     int         `json:"priority" yaml:"priority"`
	Views        int64       `json:"views" yaml:"views"`
	Downloads    int64       `json:"downloads" yaml:"downloads"`
	CreatedAt    time.Time   `json:"created_at" yaml:"created_at"`
}

// GameUpdate is a partial update; nil fields are left unchanged.
type GameUpdate struct {
	Title        *string      `json:"title,omitempty"`
	Description  *string      `json:"description,omitempty"`
	Type         *Category    `json:"type,omitempty"`
	Image        *string      `json:"img,omitempty"`
	Download     *string      `json:"download,omitempty"`
	TrailerURL   *string      `json:"trailer_url,omitempty"`
	Requirements *string      `json:"requirements,omitempty"`
	Screenshots  *Screenshots `json:"screenshots,omitempty"`
	Priority     *int         `json:"priority,omitempty"`
}

// IsEmpty reports whether the update changes nothing.
func (u GameUpdate) IsEmpty() bool {
	return u.Title == nil && u.Description == nil && u.Type == nil && u.Image == nil &&
		u.Download == nil && u.TrailerURL == nil && u.Requirements == nil &&
		u.Screenshots == nil && u.Priority == nil
}

// Apply performs the same transformation on g that the store performs on the row.
func (u GameUpdate) Apply(g *Game) {
	if u.Title != nil {
		g.Title = *u.Title
	}
	if u.Description != nil {
		g.Description = *u.Description
	}
	if u.Type != nil {
		g.Type = *u.Type
	}
	if u.Image != nil {
		g.Image = *u.Image
	}
	if u.Download != nil {
		g.Download = *u.Download
	}
	if u.TrailerURL != nil {
		g.TrailerURL = *u.TrailerURL
	}
	if u.Requirements != nil {
		g.Requirements = *u.Requirements
	}
	if u.Screenshots != nil {
		g.Screenshots = append(Screenshots(nil), (*u.Screenshots)...)
	}
	if u.Priority != nil {
		g.Priority = *u.Priority
	}
}

// CounterDelta is a pending increment of a game's counters.
type CounterDelta struct {
	GameID    string `json:"game_id"`
	Views     int64  `json:"views"`
	Downloads int64  `json:"downloads"`
}

// LegacyGame is the document shape of the old store, where the description
// lived under "desc" and counters could be missing.
type LegacyGame struct {
	Title        string      `json:"title" yaml:"title"`
	Desc         string      `json:"desc" yaml:"desc"`
	Description  string      `json:"description" yaml:"description"`
	Type         string      `json:"type" yaml:"type"`
	Image        string      `json:"img" yaml:"img"`
	Download     string      `json:"download" yaml:"download"`
	TrailerURL   string      `json:"trailer_url" yaml:"trailer_url"`
	Requirements string      `json:"requirements" yaml:"requirements"`
	Screenshots  Screenshots `json:"screenshots" yaml:"screenshots"`
	Priority     *int        `json:"priority" yaml:"priority"`
	Views        *int64      `json:"views" yaml:"views"`
	Downloads    *int64      `json:"downloads" yaml:"downloads"`
	CreatedAt    *time.Time  `json:"created_at" yaml:"created_at"`
}

// ToGame maps a legacy document onto the current shape.
func (l LegacyGame) ToGame() Game {
	g := Game{
		Title:        l.Title,
		Description:  l.Description,
		Image:        l.Image,
		Download:     l.Download,
		TrailerURL:   l.TrailerURL,
		Requirements: l.Requirements,
		Screenshots:  l.Screenshots,
	}
	if g.Description == "" {
		g.Description = l.Desc
	}
	if c, ok := ParseCategory(l.Type); ok && c != CategoryAll {
		g.Type = c
	}
	if l.Priority != nil {
		g.Priority = *l.Priority
	}
	if l.Views != nil {
		g.Views = *l.Views
	}
	if l.Downloads != nil {
		g.Downloads = *l.Downloads
	}
	if l.CreatedAt != nil {
		g.CreatedAt = *l.CreatedAt
	}
	return g
}
