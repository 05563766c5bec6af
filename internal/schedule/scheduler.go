package schedule

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Scheduler runs one-shot deferred callbacks (auto-delete of notices,
// auto-unmute). Jobs are fire-at-time-T and cannot be cancelled once
// scheduled; callbacks must therefore be idempotent.
type Scheduler struct {
	logger *slog.Logger

	mu      sync.Mutex
	wg      sync.WaitGroup
	stopped bool
}

// New creates a scheduler.
func New(logger *slog.Logger) *Scheduler {
	return &Scheduler{logger: logger}
}

// Once schedules fn to run after delay. The name is only used for log
// correlation.
func (s *Scheduler) Once(delay time.Duration, name string, fn func(ctx context.Context)) {
	jobID := uuid.New().String()
	s.logger.Debug("job scheduled", "job", name, "job_id", jobID, "delay", delay)

	time.AfterFunc(delay, func() {
		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			s.logger.Debug("job dropped after stop", "job", name, "job_id", jobID)
			return
		}
		s.wg.Add(1)
		s.mu.Unlock()
		defer s.wg.Done()

		s.logger.Debug("job firing", "job", name, "job_id", jobID)
		fn(context.Background())
	})
}

// Stop prevents further jobs from firing and waits for running ones up to
// the given timeout. Timers that have not fired become no-ops; they only
// perform idempotent cleanup, so losing them across a restart is tolerated.
func (s *Scheduler) Stop(timeout time.Duration) {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		s.logger.Warn("scheduler stop timeout, running jobs abandoned")
	}
}
