package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"kplays-api/internal/model"
	"kplays-api/pkg/uid"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoStore implements Store using MongoDB.
type MongoStore struct {
	client   *mongo.Client
	db       *mongo.Database
	games    *mongo.Collection
	comments *mongo.Collection
	requests *mongo.Collection
	users    *mongo.Collection
}

// NewMongoStore connects to MongoDB and ensures indexes.
func NewMongoStore(uri, database string) (*MongoStore, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(50).
		SetMinPoolSize(5).
		SetMaxConnIdleTime(5 * time.Minute).
		SetRetryWrites(true)

	client, err := mongo.Connect(clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	s := NewMongoStoreFromDatabase(ctx, client.Database(database))
	s.client = client

	slog.Info("mongodb store connected", "database", database)
	return s, nil
}

// NewMongoStoreFromDatabase wraps an existing database handle. The caller
// keeps ownership of the client.
func NewMongoStoreFromDatabase(ctx context.Context, db *mongo.Database) *MongoStore {
	s := &MongoStore{
		db:       db,
		games:    db.Collection("games"),
		comments: db.Collection("comments"),
		requests: db.Collection("game_requests"),
		users:    db.Collection("users"),
	}

	indexes := []struct {
		coll  *mongo.Collection
		model mongo.IndexModel
	}{
		{s.games, mongo.IndexModel{Keys: bson.D{{Key: "priority", Value: -1}, {Key: "created_at", Value: -1}}}},
		{s.comments, mongo.IndexModel{Keys: bson.D{{Key: "game_id", Value: 1}, {Key: "created_at", Value: -1}}}},
		{s.requests, mongo.IndexModel{Keys: bson.D{{Key: "created_at", Value: -1}}}},
		{s.users, mongo.IndexModel{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)}},
	}
	for _, idx := range indexes {
		if _, err := idx.coll.Indexes().CreateOne(ctx, idx.model); err != nil {
			slog.Warn("failed to create mongodb index", "collection", idx.coll.Name(), "error", err)
		}
	}

	return s
}

// gameDocument is the stored form of a game. Older documents keep the
// description under "desc", screenshots as text, and may lack counters.
type gameDocument struct {
	ID           string      `bson:"_id"`
	Title        string      `bson:"title"`
	Description  string      `bson:"description"`
	Desc         string      `bson:"desc,omitempty"`
	Type         string      `bson:"type"`
	Image        string      `bson:"img"`
	Download     string      `bson:"download"`
	TrailerURL   string      `bson:"trailer_url"`
	Requirements string      `bson:"requirements"`
	Screenshots  interface{} `bson:"screenshots"`
	Priority     int         `bson:"priority"`
	Views        int64       `bson:"views"`
	Downloads    int64       `bson:"downloads"`
	CreatedAt    time.Time   `bson:"created_at"`
}

func newGameDocument(g *model.Game) gameDocument {
	return gameDocument{
		ID:           g.ID,
		Title:        g.Title,
		Description:  g.Description,
		Type:         string(g.Type),
		Image:        g.Image,
		Download:     g.Download,
		TrailerURL:   g.TrailerURL,
		Requirements: g.Requirements,
		Screenshots:  []string(g.Screenshots),
		Priority:     g.Priority,
		Views:        g.Views,
		Downloads:    g.Downloads,
		CreatedAt:    g.CreatedAt,
	}
}

func (d gameDocument) toModel() model.Game {
	g := model.Game{
		ID:           d.ID,
		Title:        d.Title,
		Description:  d.Description,
		Type:         model.Category(d.Type),
		Image:        d.Image,
		Download:     d.Download,
		TrailerURL:   d.TrailerURL,
		Requirements: d.Requirements,
		Screenshots:  decodeScreenshots(d.Screenshots),
		Priority:     d.Priority,
		Views:        d.Views,
		Downloads:    d.Downloads,
		CreatedAt:    d.CreatedAt,
	}
	if g.Description == "" {
		g.Description = d.Desc
	}
	return g
}

func decodeScreenshots(v interface{}) model.Screenshots {
	switch s := v.(type) {
	case string:
		return model.ParseScreenshots(s)
	case bson.A:
		return toStrings(s)
	case []interface{}:
		return toStrings(s)
	}
	return model.Screenshots{}
}

func toStrings(list []interface{}) model.Screenshots {
	out := model.Screenshots{}
	for _, item := range list {
		if str, ok := item.(string); ok && strings.TrimSpace(str) != "" {
			out = append(out, strings.TrimSpace(str))
		}
	}
	return out
}

// ListGames returns all games ordered by priority desc, created_at desc.
func (s *MongoStore) ListGames(ctx context.Context) ([]model.Game, error) {
	opts := options.Find().SetSort(bson.D{{Key: "priority", Value: -1}, {Key: "created_at", Value: -1}})
	cursor, err := s.games.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []gameDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode games: %w", err)
	}

	games := make([]model.Game, 0, len(docs))
	for _, d := range docs {
		games = append(games, d.toModel())
	}
	return games, nil
}

// GetGame retrieves a game by ID.
func (s *MongoStore) GetGame(ctx context.Context, id string) (*model.Game, error) {
	var doc gameDocument
	err := s.games.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	g := doc.toModel()
	return &g, nil
}

// CreateGame inserts a game.
func (s *MongoStore) CreateGame(ctx context.Context, game *model.Game) error {
	prepareGame(game)
	if _, err := s.games.InsertOne(ctx, newGameDocument(game)); err != nil {
		return fmt.Errorf("failed to insert game: %w", err)
	}
	return nil
}

// CreateGames inserts several games with one InsertMany.
func (s *MongoStore) CreateGames(ctx context.Context, games []*model.Game) error {
	if len(games) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(games))
	for _, g := range games {
		prepareGame(g)
		docs = append(docs, newGameDocument(g))
	}
	if _, err := s.games.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert games: %w", err)
	}
	return nil
}

// UpdateGame applies a partial update.
func (s *MongoStore) UpdateGame(ctx context.Context, id string, u model.GameUpdate) error {
	set := bson.M{}
	if u.Title != nil {
		set["title"] = *u.Title
	}
	if u.Description != nil {
		set["description"] = *u.Description
	}
	if u.Type != nil {
		set["type"] = string(*u.Type)
	}
	if u.Image != nil {
		set["img"] = *u.Image
	}
	if u.Download != nil {
		set["download"] = *u.Download
	}
	if u.TrailerURL != nil {
		set["trailer_url"] = *u.TrailerURL
	}
	if u.Requirements != nil {
		set["requirements"] = *u.Requirements
	}
	if u.Screenshots != nil {
		set["screenshots"] = []string(*u.Screenshots)
	}
	if u.Priority != nil {
		set["priority"] = *u.Priority
	}

	if len(set) == 0 {
		_, err := s.GetGame(ctx, id)
		return err
	}

	res, err := s.games.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update game: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdatePriority sets a single game's priority.
func (s *MongoStore) UpdatePriority(ctx context.Context, id string, priority int) error {
	res, err := s.games.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"priority": priority}})
	if err != nil {
		return fmt.Errorf("failed to update priority: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteGame removes a game and its comments.
func (s *MongoStore) DeleteGame(ctx context.Context, id string) error {
	res, err := s.games.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete game: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	if _, err := s.comments.DeleteMany(ctx, bson.M{"game_id": id}); err != nil {
		slog.Warn("failed to delete comments of removed game", "game_id", id, "error", err)
	}
	return nil
}

// IncrementCounters adds to a game's counters.
func (s *MongoStore) IncrementCounters(ctx context.Context, id string, views, downloads int64) error {
	res, err := s.games.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$inc": bson.M{"views": views, "downloads": downloads}})
	if err != nil {
		return fmt.Errorf("failed to increment counters: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ApplyCounterDeltas adds buffered deltas with one unordered bulk write.
func (s *MongoStore) ApplyCounterDeltas(ctx context.Context, deltas []model.CounterDelta) error {
	if len(deltas) == 0 {
		return nil
	}

	models := make([]mongo.WriteModel, 0, len(deltas))
	for _, d := range deltas {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": d.GameID}).
			SetUpdate(bson.M{"$inc": bson.M{"views": d.Views, "downloads": d.Downloads}}))
	}

	if _, err := s.games.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false)); err != nil {
		return fmt.Errorf("failed to apply counters: %w", err)
	}
	return nil
}

// ListComments returns the newest comments of a game.
func (s *MongoStore) ListComments(ctx context.Context, gameID string, limit int) ([]model.Comment, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.comments.Find(ctx, bson.M{"game_id": gameID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer cursor.Close(ctx)

	comments := []model.Comment{}
	if err := cursor.All(ctx, &comments); err != nil {
		return nil, fmt.Errorf("failed to decode comments: %w", err)
	}
	return comments, nil
}

// CreateComment inserts a comment.
func (s *MongoStore) CreateComment(ctx context.Context, c *model.Comment) error {
	if c.ID == "" {
		c.ID = uid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if _, err := s.comments.InsertOne(ctx, c); err != nil {
		return fmt.Errorf("failed to insert comment: %w", err)
	}
	return nil
}

// CreateRequest stores a game request.
func (s *MongoStore) CreateRequest(ctx context.Context, r *model.GameRequest) error {
	if r.ID == "" {
		r.ID = uid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if _, err := s.requests.InsertOne(ctx, r); err != nil {
		return fmt.Errorf("failed to insert game request: %w", err)
	}
	return nil
}

// ListRequests returns requests with pagination.
func (s *MongoStore) ListRequests(ctx context.Context, limit, offset int) ([]model.GameRequest, int64, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))

	cursor, err := s.requests.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list game requests: %w", err)
	}
	defer cursor.Close(ctx)

	requests := []model.GameRequest{}
	if err := cursor.All(ctx, &requests); err != nil {
		return nil, 0, fmt.Errorf("failed to decode game requests: %w", err)
	}

	count, err := s.requests.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count game requests: %w", err)
	}
	return requests, count, nil
}

// CreateUser inserts a user.
func (s *MongoStore) CreateUser(ctx context.Context, u *model.User) error {
	if u.ID == "" {
		u.ID = uid.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := s.users.InsertOne(ctx, u)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetUserByEmail finds a user by email.
func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := s.users.FindOne(ctx, bson.M{"email": email}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// GetStats returns statistics about the collections.
func (s *MongoStore) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := map[string]interface{}{"dialect": "mongodb"}

	for name, coll := range map[string]*mongo.Collection{
		"games":         s.games,
		"comments":      s.comments,
		"game_requests": s.requests,
		"users":         s.users,
	} {
		count, err := coll.CountDocuments(ctx, bson.M{})
		if err != nil {
			return stats, err
		}
		stats[name] = count
	}

	var dbStats bson.M
	if err := s.db.RunCommand(ctx, bson.D{{Key: "dbStats", Value: 1}}).Decode(&dbStats); err == nil {
		switch size := dbStats["dataSize"].(type) {
		case int64:
			stats["db_size_bytes"] = size
		case int32:
			stats["db_size_bytes"] = int64(size)
		case float64:
			stats["db_size_bytes"] = int64(size)
		}
	}

	return stats, nil
}

// Ping checks connectivity.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

// Close disconnects the client if this store owns it.
func (s *MongoStore) Close() error {
	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Ensure MongoStore implements Store
var _ Store = (*MongoStore)(nil)
