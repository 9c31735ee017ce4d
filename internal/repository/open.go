package repository

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"kplays-api/internal/config"
)

// Open connects to the store selected by cfg.Type.
func Open(cfg config.DatabaseConfig) (Store, error) {
	switch strings.ToLower(cfg.Type) {
	case "mongodb", "mongo":
		return NewMongoStore(cfg.MongoURI, cfg.MongoDatabase)
	case "postgres", "postgresql":
		return NewPostgresStore(cfg.PostgresDSN())
	case "mysql", "mariadb":
		return NewMySQLStore(cfg.MySQLDSN())
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite", "":
		if dir := filepath.Dir(cfg.Path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		return NewSQLiteStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown database type %q", cfg.Type)
	}
}
