package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"kplays-api/internal/model"
	"kplays-api/pkg/uid"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// dialect captures what differs between the SQL backends.
type dialect struct {
	name         string
	dollarParams bool     // $1, $2 ... instead of ?
	schema       []string // executed one by one at startup
	sizeQuery    string   // returns the database size in bytes, optional
}

// SQLStore implements Store on database/sql. The SQLite, PostgreSQL and
// MySQL constructors share it and only differ in dialect and pool settings.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

const gameColumns = `id, title, description, type, img, download, trailer_url, requirements,
	screenshots, priority, views, downloads, created_at`

func newSQLStore(db *sql.DB, d dialect) (*SQLStore, error) {
	s := &SQLStore{db: db, dialect: d}
	if err := s.createTables(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// createTables creates the schema if it does not exist.
func (s *SQLStore) createTables(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// q rewrites ? placeholders for dialects that number them.
func (s *SQLStore) q(query string) string {
	if !s.dialect.dollarParams {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanGame(row rowScanner) (*model.Game, error) {
	var g model.Game
	var gameType, screenshots string
	err := row.Scan(&g.ID, &g.Title, &g.Description, &gameType, &g.Image, &g.Download,
		&g.TrailerURL, &g.Requirements, &screenshots, &g.Priority, &g.Views, &g.Downloads, &g.CreatedAt)
	if err != nil {
		return nil, err
	}
	g.Type = model.Category(gameType)
	g.Screenshots = model.ParseScreenshots(screenshots)
	return &g, nil
}

func prepareGame(g *model.Game) {
	if g.ID == "" {
		g.ID = uid.New()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now()
	}
	g.CreatedAt = g.CreatedAt.UTC()
	if g.Screenshots == nil {
		g.Screenshots = model.Screenshots{}
	}
}

func gameArgs(g *model.Game) []interface{} {
	return []interface{}{g.ID, g.Title, g.Description, string(g.Type), g.Image, g.Download,
		g.TrailerURL, g.Requirements, g.Screenshots.String(), g.Priority, g.Views, g.Downloads, g.CreatedAt}
}

// ListGames returns all games ordered by priority desc, created_at desc.
func (s *SQLStore) ListGames(ctx context.Context) ([]model.Game, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+gameColumns+` FROM games ORDER BY priority DESC, created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	defer rows.Close()

	games := []model.Game{}
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		games = append(games, *g)
	}
	return games, rows.Err()
}

// GetGame retrieves a game by ID.
func (s *SQLStore) GetGame(ctx context.Context, id string) (*model.Game, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+gameColumns+` FROM games WHERE id = ?`), id)
	g, err := scanGame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	return g, nil
}

const insertGame = `INSERT INTO games (` + gameColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// CreateGame inserts a game.
func (s *SQLStore) CreateGame(ctx context.Context, game *model.Game) error {
	prepareGame(game)
	if _, err := s.db.ExecContext(ctx, s.q(insertGame), gameArgs(game)...); err != nil {
		return fmt.Errorf("failed to insert game: %w", err)
	}
	return nil
}

// CreateGames inserts several games in a single transaction.
func (s *SQLStore) CreateGames(ctx context.Context, games []*model.Game) error {
	if len(games) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.q(insertGame))
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, g := range games {
		prepareGame(g)
		if _, err := stmt.ExecContext(ctx, gameArgs(g)...); err != nil {
			return fmt.Errorf("failed to batch insert game %q: %w", g.Title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// UpdateGame applies a partial update.
func (s *SQLStore) UpdateGame(ctx context.Context, id string, u model.GameUpdate) error {
	var sets []string
	var args []interface{}
	add := func(col string, v interface{}) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}

	if u.Title != nil {
		add("title", *u.Title)
	}
	if u.Description != nil {
		add("description", *u.Description)
	}
	if u.Type != nil {
		add("type", string(*u.Type))
	}
	if u.Image != nil {
		add("img", *u.Image)
	}
	if u.Download != nil {
		add("download", *u.Download)
	}
	if u.TrailerURL != nil {
		add("trailer_url", *u.TrailerURL)
	}
	if u.Requirements != nil {
		add("requirements", *u.Requirements)
	}
	if u.Screenshots != nil {
		add("screenshots", u.Screenshots.String())
	}
	if u.Priority != nil {
		add("priority", *u.Priority)
	}

	if len(sets) == 0 {
		_, err := s.GetGame(ctx, id)
		return err
	}

	args = append(args, id)
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE games SET `+strings.Join(sets, ", ")+` WHERE id = ?`), args...)
	if err != nil {
		return fmt.Errorf("failed to update game: %w", err)
	}
	return expectRow(res)
}

// UpdatePriority sets a single game's priority.
func (s *SQLStore) UpdatePriority(ctx context.Context, id string, priority int) error {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE games SET priority = ? WHERE id = ?`), priority, id)
	if err != nil {
		return fmt.Errorf("failed to update priority: %w", err)
	}
	return expectRow(res)
}

// DeleteGame removes a game and its comments.
func (s *SQLStore) DeleteGame(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM comments WHERE game_id = ?`), id); err != nil {
		return fmt.Errorf("failed to delete comments: %w", err)
	}
	res, err := tx.ExecContext(ctx, s.q(`DELETE FROM games WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete game: %w", err)
	}
	if err := expectRow(res); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const incrementCounters = `UPDATE games SET views = views + ?, downloads = downloads + ? WHERE id = ?`

// IncrementCounters adds to a game's counters.
func (s *SQLStore) IncrementCounters(ctx context.Context, id string, views, downloads int64) error {
	res, err := s.db.ExecContext(ctx, s.q(incrementCounters), views, downloads, id)
	if err != nil {
		return fmt.Errorf("failed to increment counters: %w", err)
	}
	return expectRow(res)
}

// ApplyCounterDeltas adds buffered deltas in one transaction. Deltas for
// games that no longer exist are skipped.
func (s *SQLStore) ApplyCounterDeltas(ctx context.Context, deltas []model.CounterDelta) error {
	if len(deltas) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.q(incrementCounters))
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, d := range deltas {
		if _, err := stmt.ExecContext(ctx, d.Views, d.Downloads, d.GameID); err != nil {
			return fmt.Errorf("failed to apply counters for %s: %w", d.GameID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListComments returns the newest comments of a game.
func (s *SQLStore) ListComments(ctx context.Context, gameID string, limit int) ([]model.Comment, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, game_id, username, text, created_at FROM comments
		WHERE game_id = ? ORDER BY created_at DESC LIMIT ?`), gameID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	comments := []model.Comment{}
	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(&c.ID, &c.GameID, &c.Username, &c.Text, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// CreateComment inserts a comment.
func (s *SQLStore) CreateComment(ctx context.Context, c *model.Comment) error {
	if c.ID == "" {
		c.ID = uid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO comments (id, game_id, username, text, created_at) VALUES (?, ?, ?, ?, ?)`),
		c.ID, c.GameID, c.Username, c.Text, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert comment: %w", err)
	}
	return nil
}

// CreateRequest stores a game request.
func (s *SQLStore) CreateRequest(ctx context.Context, r *model.GameRequest) error {
	if r.ID == "" {
		r.ID = uid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO game_requests (id, game_name, user_name, user_email, platform, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		r.ID, r.GameName, r.UserName, r.UserEmail, r.Platform, r.Description, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert game request: %w", err)
	}
	return nil
}

// ListRequests returns requests newest first with the total count.
func (s *SQLStore) ListRequests(ctx context.Context, limit, offset int) ([]model.GameRequest, int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM game_requests`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count game requests: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, game_name, user_name, user_email, platform, description, created_at
		FROM game_requests ORDER BY created_at DESC LIMIT ? OFFSET ?`), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list game requests: %w", err)
	}
	defer rows.Close()

	requests := []model.GameRequest{}
	for rows.Next() {
		var r model.GameRequest
		if err := rows.Scan(&r.ID, &r.GameName, &r.UserName, &r.UserEmail, &r.Platform, &r.Description, &r.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan game request: %w", err)
		}
		requests = append(requests, r)
	}
	return requests, total, rows.Err()
}

// CreateUser inserts a user.
func (s *SQLStore) CreateUser(ctx context.Context, u *model.User) error {
	if u.ID == "" {
		u.ID = uid.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`),
		u.ID, u.Email, u.PasswordHash, u.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetUserByEmail finds a user by email.
func (s *SQLStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT id, email, password_hash, created_at FROM users WHERE email = ?`), email).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// GetStats returns statistics about the database.
func (s *SQLStore) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := map[string]interface{}{"dialect": s.dialect.name}

	for _, table := range []string{"games", "comments", "game_requests", "users"} {
		var count int64
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
			return nil, err
		}
		stats[table] = count
	}

	if s.dialect.sizeQuery != "" {
		var size int64
		if err := s.db.QueryRowContext(ctx, s.dialect.sizeQuery).Scan(&size); err == nil {
			stats["db_size_bytes"] = size
		}
	}

	dbStats := s.db.Stats()
	stats["connections"] = map[string]interface{}{
		"open":     dbStats.OpenConnections,
		"in_use":   dbStats.InUse,
		"idle":     dbStats.Idle,
		"max_open": dbStats.MaxOpenConnections,
	}

	return stats, nil
}

// Ping checks connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Ensure SQLStore implements Store
var _ Store = (*SQLStore)(nil)
