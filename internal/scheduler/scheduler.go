// Package scheduler runs a job now and then on a fixed interval until stopped.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job is one run of periodic work. It should return promptly once ctx is done.
type Job func(ctx context.Context)

// Scheduler runs a Job periodically on its own goroutine.
type Scheduler struct {
	name     string
	interval time.Duration
	job      Job
	logger   *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// New creates a scheduler for job. A nil logger means slog.Default().
func New(name string, interval time.Duration, job Job, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		name:     name,
		interval: interval,
		job:      job,
		logger:   logger.With("job", name),
	}
}

// Start runs the job once immediately, then on each tick. Calling Start on a
// running scheduler, or with a non-positive interval, does nothing.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running || s.interval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
	s.logger.Info("scheduler started", "interval", s.interval)
}

// Stop cancels the scheduler and waits for the current run (if any) to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.running = false
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduled job panicked", "panic", r)
		}
	}()
	start := time.Now()
	s.job(ctx)
	s.logger.Debug("scheduled job finished", "duration", time.Since(start))
}
