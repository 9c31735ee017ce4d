package service

import (
	"math"
	"strings"
	"sync"
	"time"

	"kplays-api/internal/model"
)

// Ring sizes of the analytics log.
const (
	MaxPerformanceSamples = 100
	MaxClickSamples       = 50
	maxClickText          = 50
	recentSamples         = 10
)

// PerformanceReport summarizes the collected samples.
type PerformanceReport struct {
	AverageLoadTime float64                   `json:"average_load_time"`
	Samples         int                       `json:"samples"`
	TotalClicks     int                       `json:"total_clicks"`
	Recent          []model.PerformanceSample `json:"recent"`
	RecentClicks    []model.ClickSample       `json:"recent_clicks"`
}

// AnalyticsService keeps the most recent client measurements in memory.
type AnalyticsService struct {
	mu     sync.Mutex
	perf   []model.PerformanceSample
	clicks []model.ClickSample
	now    func() time.Time
}

// NewAnalyticsService creates an empty analytics log.
func NewAnalyticsService() *AnalyticsService {
	return &AnalyticsService{now: time.Now}
}

// RecordPerformance appends a page-load sample, dropping the oldest beyond the cap.
func (s *AnalyticsService) RecordPerformance(sample model.PerformanceSample) {
	if sample.Timestamp.IsZero() {
		sample.Timestamp = s.now().UTC()
	}
	if sample.LoadTime < 0 || math.IsNaN(sample.LoadTime) || math.IsInf(sample.LoadTime, 0) {
		sample.LoadTime = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.perf = append(s.perf, sample)
	if len(s.perf) > MaxPerformanceSamples {
		s.perf = s.perf[len(s.perf)-MaxPerformanceSamples:]
	}
}

// RecordClick appends a click sample. Text is cut to 50 characters.
func (s *AnalyticsService) RecordClick(sample model.ClickSample) {
	if sample.Timestamp.IsZero() {
		sample.Timestamp = s.now().UTC()
	}
	sample.Text = strings.TrimSpace(sample.Text)
	if r := []rune(sample.Text); len(r) > maxClickText {
		sample.Text = string(r[:maxClickText])
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.clicks = append(s.clicks, sample)
	if len(s.clicks) > MaxClickSamples {
		s.clicks = s.clicks[len(s.clicks)-MaxClickSamples:]
	}
}

// Report returns the averages and the ten most recent samples, newest first.
func (s *AnalyticsService) Report() PerformanceReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := PerformanceReport{
		Samples:      len(s.perf),
		TotalClicks:  len(s.clicks),
		Recent:       []model.PerformanceSample{},
		RecentClicks: []model.ClickSample{},
	}

	var sum float64
	for _, p := range s.perf {
		sum += p.LoadTime
	}
	if len(s.perf) > 0 {
		r.AverageLoadTime = math.Round(sum / float64(len(s.perf)))
	}

	for i := len(s.perf) - 1; i >= 0 && len(r.Recent) < recentSamples; i-- {
		r.Recent = append(r.Recent, s.perf[i])
	}
	for i := len(s.clicks) - 1; i >= 0 && len(r.RecentClicks) < recentSamples; i-- {
		r.RecentClicks = append(r.RecentClicks, s.clicks[i])
	}
	return r
}

// Clear drops every sample.
func (s *AnalyticsService) Clear() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.perf = nil
	s.clicks = nil
	return Success("Performance data cleared")
}
