package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"kplays-api/internal/config"
	"kplays-api/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreSuite exercises the behaviour every Store backend must share.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	seed := func(t *testing.T, s Store) []*model.Game {
		games := []*model.Game{
			{Title: "Alpha", Type: model.CategoryPC, Priority: 10, CreatedAt: base},
			{Title: "Beta", Type: model.CategoryAndroid, Priority: 8, CreatedAt: base.Add(time.Hour)},
			{Title: "Gamma", Type: model.CategoryPC, Priority: 8, CreatedAt: base.Add(2 * time.Hour),
				Screenshots: model.Screenshots{"a.png", "b.png"}},
		}
		require.NoError(t, s.CreateGames(context.Background(), games))
		return games
	}

	t.Run("ListGamesOrder", func(t *testing.T) {
		s := newStore(t)
		seed(t, s)

		games, err := s.ListGames(context.Background())
		require.NoError(t, err)
		require.Len(t, games, 3)
		assert.Equal(t, "Alpha", games[0].Title)
		assert.Equal(t, "Gamma", games[1].Title)
		assert.Equal(t, "Beta", games[2].Title)
	})

	t.Run("GetGame", func(t *testing.T) {
		s := newStore(t)
		games := seed(t, s)

		g, err := s.GetGame(context.Background(), games[2].ID)
		require.NoError(t, err)
		assert.Equal(t, "Gamma", g.Title)
		assert.Equal(t, model.Screenshots{"a.png", "b.png"}, g.Screenshots)
		assert.True(t, g.CreatedAt.Equal(base.Add(2*time.Hour)))

		_, err = s.GetGame(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("CreateGameFillsDefaults", func(t *testing.T) {
		s := newStore(t)
		g := &model.Game{Title: "Delta", Type: model.CategoryPC}
		require.NoError(t, s.CreateGame(context.Background(), g))

		assert.NotEmpty(t, g.ID)
		assert.False(t, g.CreatedAt.IsZero())
		assert.NotNil(t, g.Screenshots)
	})

	t.Run("UpdateGame", func(t *testing.T) {
		s := newStore(t)
		games := seed(t, s)

		title := "Alpha Remastered"
		shots := model.Screenshots{"x.png"}
		require.NoError(t, s.UpdateGame(context.Background(), games[0].ID,
			model.GameUpdate{Title: &title, Screenshots: &shots}))

		g, err := s.GetGame(context.Background(), games[0].ID)
		require.NoError(t, err)
		assert.Equal(t, title, g.Title)
		assert.Equal(t, shots, g.Screenshots)
		assert.Equal(t, 10, g.Priority)

		err = s.UpdateGame(context.Background(), "missing", model.GameUpdate{Title: &title})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("UpdatePriority", func(t *testing.T) {
		s := newStore(t)
		games := seed(t, s)

		require.NoError(t, s.UpdatePriority(context.Background(), games[1].ID, 20))
		list, err := s.ListGames(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "Beta", list[0].Title)

		assert.ErrorIs(t, s.UpdatePriority(context.Background(), "missing", 1), ErrNotFound)
	})

	t.Run("DeleteGameRemovesComments", func(t *testing.T) {
		s := newStore(t)
		games := seed(t, s)
		ctx := context.Background()

		require.NoError(t, s.CreateComment(ctx, &model.Comment{GameID: games[0].ID, Username: "kim", Text: "nice"}))
		require.NoError(t, s.DeleteGame(ctx, games[0].ID))

		_, err := s.GetGame(ctx, games[0].ID)
		assert.ErrorIs(t, err, ErrNotFound)

		comments, err := s.ListComments(ctx, games[0].ID, 20)
		require.NoError(t, err)
		assert.Empty(t, comments)

		assert.ErrorIs(t, s.DeleteGame(ctx, games[0].ID), ErrNotFound)
	})

	t.Run("Counters", func(t *testing.T) {
		s := newStore(t)
		games := seed(t, s)
		ctx := context.Background()

		require.NoError(t, s.IncrementCounters(ctx, games[0].ID, 1, 0))
		require.NoError(t, s.ApplyCounterDeltas(ctx, []model.CounterDelta{
			{GameID: games[0].ID, Views: 4, Downloads: 2},
			{GameID: games[1].ID, Downloads: 3},
		}))

		a, err := s.GetGame(ctx, games[0].ID)
		require.NoError(t, err)
		assert.Equal(t, int64(5), a.Views)
		assert.Equal(t, int64(2), a.Downloads)

		b, err := s.GetGame(ctx, games[1].ID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), b.Downloads)

		assert.ErrorIs(t, s.IncrementCounters(ctx, "missing", 1, 0), ErrNotFound)
	})

	t.Run("CommentsNewestFirstWithLimit", func(t *testing.T) {
		s := newStore(t)
		games := seed(t, s)
		ctx := context.Background()

		for i := 0; i < 3; i++ {
			require.NoError(t, s.CreateComment(ctx, &model.Comment{
				GameID:    games[0].ID,
				Username:  "guest",
				Text:      string(rune('a' + i)),
				CreatedAt: base.Add(time.Duration(i) * time.Minute),
			}))
		}

		comments, err := s.ListComments(ctx, games[0].ID, 2)
		require.NoError(t, err)
		require.Len(t, comments, 2)
		assert.Equal(t, "c", comments[0].Text)
		assert.Equal(t, "b", comments[1].Text)
	})

	t.Run("RequestsPaginated", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		for i := 0; i < 5; i++ {
			require.NoError(t, s.CreateRequest(ctx, &model.GameRequest{
				GameName:  string(rune('A' + i)),
				Platform:  "pc",
				CreatedAt: base.Add(time.Duration(i) * time.Minute),
			}))
		}

		page, total, err := s.ListRequests(ctx, 2, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)
		require.Len(t, page, 2)
		assert.Equal(t, "D", page[0].GameName)
		assert.Equal(t, "C", page[1].GameName)
	})

	t.Run("Users", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		u := &model.User{Email: "admin@example.com", PasswordHash: "hash"}
		require.NoError(t, s.CreateUser(ctx, u))
		assert.ErrorIs(t, s.CreateUser(ctx, &model.User{Email: "admin@example.com", PasswordHash: "x"}), ErrDuplicate)

		got, err := s.GetUserByEmail(ctx, "admin@example.com")
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)
		assert.Equal(t, "hash", got.PasswordHash)

		_, err = s.GetUserByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Stats", func(t *testing.T) {
		s := newStore(t)
		seed(t, s)

		stats, err := s.GetStats(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(3), stats["games"])
		assert.NoError(t, s.Ping(context.Background()))
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		return NewMemoryStore()
	})
}

func TestSQLiteStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "kplays.db"))
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestSQLStoreRebind(t *testing.T) {
	s := &SQLStore{dialect: postgresDialect}
	assert.Equal(t, "UPDATE games SET priority = $1 WHERE id = $2",
		s.q("UPDATE games SET priority = ? WHERE id = ?"))

	s = &SQLStore{dialect: sqliteDialect}
	assert.Equal(t, "SELECT ?", s.q("SELECT ?"))
}

func TestDecodeScreenshots(t *testing.T) {
	assert.Equal(t, model.Screenshots{"a.png", "b.png"}, decodeScreenshots(`["a.png","b.png"]`))
	assert.Equal(t, model.Screenshots{"a.png"}, decodeScreenshots([]interface{}{"a.png", 3, " "}))
	assert.Equal(t, model.Screenshots{}, decodeScreenshots(nil))
}

func TestOpen(t *testing.T) {
	s, err := Open(config.DatabaseConfig{Type: "sqlite", Path: filepath.Join(t.TempDir(), "nested", "kplays.db")})
	require.NoError(t, err)
	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.Close())

	s, err = Open(config.DatabaseConfig{Type: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = Open(config.DatabaseConfig{Type: "cassandra"})
	assert.Error(t, err)
}
