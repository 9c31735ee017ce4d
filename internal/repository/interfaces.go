package repository

import (
	"context"
	"errors"

	"kplays-api/internal/model"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when a unique field is already taken.
	ErrDuplicate = errors.New("duplicate record")
)

// GameRepository defines game data access methods.
type GameRepository interface {
	// ListGames returns all games ordered by priority desc, created_at desc.
	ListGames(ctx context.Context) ([]model.Game, error)

	// GetGame retrieves a game by ID. Returns ErrNotFound if missing.
	GetGame(ctx context.Context, id string) (*model.Game, error)

	// CreateGame inserts a game, filling ID and CreatedAt when empty.
	CreateGame(ctx context.Context, game *model.Game) error

	// CreateGames inserts several games in one batch.
	CreateGames(ctx context.Context, games []*model.Game) error

	// UpdateGame applies a partial update. Returns ErrNotFound if missing.
	UpdateGame(ctx context.Context, id string, update model.GameUpdate) error

	// UpdatePriority sets a single game's priority.
	UpdatePriority(ctx context.Context, id string, priority int) error

	// DeleteGame removes a game and its comments.
	DeleteGame(ctx context.Context, id string) error

	// IncrementCounters adds to a game's view and download counters.
	IncrementCounters(ctx context.Context, id string, views, downloads int64) error

	// ApplyCounterDeltas adds many buffered deltas at once.
	ApplyCounterDeltas(ctx context.Context, deltas []model.CounterDelta) error
}

// CommentRepository defines comment data access methods.
type CommentRepository interface {
	// ListComments returns the newest comments of a game, newest first.
	ListComments(ctx context.Context, gameID string, limit int) ([]model.Comment, error)

	// CreateComment inserts a comment, filling ID and CreatedAt when empty.
	CreateComment(ctx context.Context, comment *model.Comment) error
}

// RequestRepository defines game request data access methods.
type RequestRepository interface {
	// CreateRequest stores a game request.
	CreateRequest(ctx context.Context, req *model.GameRequest) error

	// ListRequests returns requests newest first with the total count.
	ListRequests(ctx context.Context, limit, offset int) ([]model.GameRequest, int64, error)
}

// UserRepository defines dashboard account data access methods.
type UserRepository interface {
	// CreateUser inserts a user. Returns ErrDuplicate if the email is taken.
	CreateUser(ctx context.Context, user *model.User) error

	// GetUserByEmail finds a user. Returns ErrNotFound if missing.
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
}

// Store bundles every repository a backend provides.
type Store interface {
	GameRepository
	CommentRepository
	RequestRepository
	UserRepository

	// GetStats returns statistics about the backing database.
	GetStats(ctx context.Context) (map[string]interface{}, error)

	// Ping checks connectivity.
	Ping(ctx context.Context) error

	// Close closes the repository connection.
	Close() error
}
