package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQL has no CREATE INDEX IF NOT EXISTS, so indexes are declared inline.
var mysqlDialect = dialect{
	name: "mysql",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS games (
			id VARCHAR(36) PRIMARY KEY,
			title VARCHAR(255) NOT NULL,
			description TEXT NOT NULL,
			type VARCHAR(16) NOT NULL DEFAULT 'pc',
			img TEXT NOT NULL,
			download TEXT NOT NULL,
			trailer_url TEXT NOT NULL,
			requirements TEXT NOT NULL,
			screenshots TEXT NOT NULL,
			priority INT NOT NULL DEFAULT 0,
			views BIGINT NOT NULL DEFAULT 0,
			downloads BIGINT NOT NULL DEFAULT 0,
			created_at DATETIME(6) NOT NULL,
			INDEX idx_games_order (priority, created_at)
		)`,
		`CREATE TABLE IF NOT EXISTS comments (
			id VARCHAR(36) PRIMARY KEY,
			game_id VARCHAR(36) NOT NULL,
			username VARCHAR(255) NOT NULL,
			text TEXT NOT NULL,
			created_at DATETIME(6) NOT NULL,
			INDEX idx_comments_game (game_id, created_at)
		)`,
		`CREATE TABLE IF NOT EXISTS game_requests (
			id VARCHAR(36) PRIMARY KEY,
			game_name VARCHAR(255) NOT NULL,
			user_name VARCHAR(255) NOT NULL,
			user_email VARCHAR(255) NOT NULL,
			platform VARCHAR(32) NOT NULL,
			description TEXT NOT NULL,
			created_at DATETIME(6) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(36) PRIMARY KEY,
			email VARCHAR(255) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			created_at DATETIME(6) NOT NULL
		)`,
	},
	sizeQuery: `SELECT COALESCE(SUM(data_length + index_length), 0) FROM information_schema.tables WHERE table_schema = DATABASE()`,
}

// NewMySQLStore opens a MySQL connection pool.
// dsn must include parseTime=true so DATETIME columns scan into time.Time.
func NewMySQLStore(dsn string) (*SQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	store, err := newSQLStore(db, mysqlDialect)
	if err != nil {
		db.Close()
		return nil, err
	}

	slog.Info("mysql store initialized")
	return store, nil
}
