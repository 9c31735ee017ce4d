package model

import "time"

// DefaultCommenter is used when a comment is posted without a name.
const DefaultCommenter = "Guest"

// Comment is a visitor comment attached to a game.
type Comment struct {
	ID        string    `json:"id" bson:"_id"`
	GameID    string    `json:"game_id" bson:"game_id"`
	Username  string    `json:"username" bson:"username"`
	Text      string    `json:"text" bson:"text"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}
