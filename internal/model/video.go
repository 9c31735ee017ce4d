package model

import "time"

// Video is an entry of the channel gallery.
type Video struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Thumbnail   string    `json:"thumbnail"`
	PublishedAt time.Time `json:"published_at"`
	Duration    int       `json:"duration"` // seconds, 0 when unknown
	Views       int64     `json:"views"`
	URL         string    `json:"url"`
}

// Gallery splits a channel's uploads into regular videos and shorts.
type Gallery struct {
	Videos    []Video   `json:"videos"`
	Shorts    []Video   `json:"shorts"`
	Source    string    `json:"source"` // api or feed
	FetchedAt time.Time `json:"fetched_at"`
}
