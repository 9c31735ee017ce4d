package service

import "errors"

var (
	ErrEmptyComment       = errors.New("comment text is empty")
	ErrInvalidCategory    = errors.New("invalid category")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrDuplicatePriority  = errors.New("priority already used")
	ErrNoDownload         = errors.New("game has no download link")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotConfigured      = errors.New("not configured")
)

// Cache keys shared by the loaders and the admin reconciler.
const (
	KeyGamesList      = "games_cache"
	KeyYouTubeGallery = "youtube_gallery"
)

// DetailKey is the cache key of a game's detail entry.
func DetailKey(id string) string {
	return "game_" + id
}

// ViewKey records when viewer last counted a view of game id.
func ViewKey(viewerID, id string) string {
	return "kp_view_" + viewerID + "_" + id
}
