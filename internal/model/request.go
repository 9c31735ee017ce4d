package model

import "time"

// GameRequest is a visitor's request for a game to be added.
type GameRequest struct {
	ID          string    `json:"id" bson:"_id"`
	GameName    string    `json:"game_name" bson:"game_name"`
	UserName    string    `json:"user_name" bson:"user_name"`
	UserEmail   string    `json:"user_email" bson:"user_email"`
	Platform    string    `json:"platform" bson:"platform"`
	Description string    `json:"description" bson:"description"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
}
