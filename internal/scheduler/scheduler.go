package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// JobFunc is the work run on each tick
type JobFunc func(ctx context.Context) error

// Scheduler runs the daily pipeline on a cron schedule
type Scheduler struct {
	cron    *cron.Cron
	run     JobFunc
	timeout time.Duration
	ctx     context.Context
	logger  *zap.Logger
}

// New creates a Scheduler. Each run is bounded by timeout when positive.
func New(ctx context.Context, run JobFunc, timeout time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		run:     run,
		timeout: timeout,
		ctx:     ctx,
		logger:  logger,
	}
}

// Register adds the daily run at expr (six-field cron with seconds)
func (s *Scheduler) Register(expr string) error {
	if _, err := s.cron.AddFunc(expr, s.tick); err != nil {
		return fmt.Errorf("register daily run: %w", err)
	}
	s.logger.Info("Daily run scheduled", zap.String("cron", expr))
	return nil
}

// Start starts the cron scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Scheduler started")
}

// Stop stops the scheduler and waits for a running job to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

// Next returns when the first registered job fires next
func (s *Scheduler) Next() (time.Time, bool) {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}, false
	}
	return entries[0].Next, true
}

// RunNow executes the job immediately
func (s *Scheduler) RunNow(ctx context.Context) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	start := time.Now()
	err := s.run(ctx)
	if err != nil {
		s.logger.Error("Scheduled run failed", zap.Error(err), zap.Duration("took", time.Since(start)))
		return err
	}
	s.logger.Info("Scheduled run finished", zap.Duration("took", time.Since(start)))
	return nil
}

func (s *Scheduler) tick() {
	_ = s.RunNow(s.ctx)
}
