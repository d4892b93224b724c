// Package jobs drives the watcher on a fixed interval in daemon mode.
package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/capitol-watch/internal/watcher"
)

// Runner executes one watcher cycle.
type Runner interface {
	Run(ctx context.Context) (watcher.Result, error)
}

// Scheduler runs the watcher immediately and then on every tick. Runs happen
// on the Start goroutine, so they never overlap within one process.
type Scheduler struct {
	logger   *zap.Logger
	runner   Runner
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewScheduler(logger *zap.Logger, runner Runner, interval time.Duration) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		logger:   logger,
		runner:   runner,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start blocks until ctx is canceled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("scheduler.started", zap.Duration("interval", s.interval))
	s.runOnce(ctx)

	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx)
		case <-s.stopCh:
			s.logger.Info("scheduler.stopped", zap.String("reason", "stop"))
			return
		case <-ctx.Done():
			s.logger.Info("scheduler.stopped", zap.String("reason", "context canceled"))
			return
		}
	}
}

// Stop halts the loop after the current run.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	res, err := s.runner.Run(ctx)
	switch {
	case errors.Is(err, watcher.ErrRunInProgress):
		s.logger.Info("scheduler.run_skipped", zap.String("reason", "locked"))
	case err != nil:
		s.logger.Error("scheduler.run_failed",
			zap.String("run_id", res.RunID),
			zap.String("status", res.Status),
			zap.Error(err))
	}
}
