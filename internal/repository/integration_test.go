//go:build integration

package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestPostgresStore(t *testing.T) {
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("kplays"),
		postgres.WithUsername("kplays"),
		postgres.WithPassword("kplays"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	runStoreSuite(t, func(t *testing.T) Store {
		s, err := NewPostgresStore(dsn)
		require.NoError(t, err)
		truncate(t, s)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func truncate(t *testing.T, s *SQLStore) {
	_, err := s.db.Exec(`TRUNCATE games, comments, game_requests, users`)
	require.NoError(t, err)
}

func TestMongoStore(t *testing.T) {
	ctx := context.Background()

	container, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	n := 0
	runStoreSuite(t, func(t *testing.T) Store {
		n++
		s, err := NewMongoStore(uri, fmt.Sprintf("kplays_test_%d", n))
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}
