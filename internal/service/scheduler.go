package service

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// RefreshConfig holds configuration for the refresh scheduler.
type RefreshConfig struct {
	// Interval is how often the job runs. Zero disables the scheduler.
	Interval time.Duration

	// InitialDelay is the wait before the first run.
	// Default: 5 seconds
	InitialDelay time.Duration

	// Timeout bounds a single run.
	// Default: 1 minute
	Timeout time.Duration
}

// RefreshScheduler runs a job periodically, such as reloading the video gallery.
type RefreshScheduler struct {
	name      string
	job       func(ctx context.Context) error
	config    RefreshConfig
	ticker    *time.Ticker
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	isRunning bool
	mu        sync.Mutex
}

// NewRefreshScheduler creates a new refresh scheduler.
func NewRefreshScheduler(name string, job func(ctx context.Context) error, config RefreshConfig) *RefreshScheduler {
	if config.InitialDelay == 0 {
		config.InitialDelay = 5 * time.Second
	}
	if config.Timeout == 0 {
		config.Timeout = time.Minute
	}

	return &RefreshScheduler{
		name:   name,
		job:    job,
		config: config,
		stopCh: make(chan struct{}),
	}
}

// Start begins the refresh loop. It does nothing when the interval is zero.
func (s *RefreshScheduler) Start() {
	s.mu.Lock()
	if s.isRunning || s.config.Interval <= 0 {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.ticker = time.NewTicker(s.config.Interval)
	s.mu.Unlock()

	slog.Info("refresh scheduler started", "component", s.name, "interval", s.config.Interval)

	s.wg.Add(1)
	go s.run()
}

func (s *RefreshScheduler) run() {
	defer s.wg.Done()

	select {
	case <-time.After(s.config.InitialDelay):
		s.RunNow()
	case <-s.stopCh:
		return
	}

	for {
		select {
		case <-s.ticker.C:
			s.RunNow()
		case <-s.stopCh:
			slog.Info("refresh scheduler stopped", "component", s.name)
			return
		}
	}
}

// RunNow runs the job once.
func (s *RefreshScheduler) RunNow() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Timeout)
	defer cancel()

	start := time.Now()
	if err := s.job(ctx); err != nil {
		slog.Error("refresh failed", "component", s.name, "error", err)
		return err
	}
	slog.Debug("refresh done", "component", s.name, "took", time.Since(start))
	return nil
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *RefreshScheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
		s.isRunning = false
		s.mu.Unlock()
	})
	s.wg.Wait()
}
