package model

import "time"

// PerformanceSample is one page-load measurement reported by a client.
type PerformanceSample struct {
	Timestamp time.Time `json:"timestamp"`
	LoadTime  float64   `json:"load_time"`
	Page      string    `json:"page"`
	UserAgent string    `json:"user_agent"`
}

// ClickSample is one tracked click reported by a client.
type ClickSample struct {
	Timestamp time.Time `json:"timestamp"`
	Element   string    `json:"element"`
	Text      string    `json:"text"`
	Page      string    `json:"page"`
}
