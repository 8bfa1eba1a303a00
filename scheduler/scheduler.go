// Package scheduler runs the periodic activity sync followed by a full
// position recomputation.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type Syncer interface {
	SyncAll(ctx context.Context) error
}

type Recomputer interface {
	RecomputeAll(ctx context.Context) error
}

type Config struct {
	CronSpec string // e.g. "0 */6 * * *", server local time
	Timeout  time.Duration
}

type Scheduler struct {
	c          *cron.Cron
	config     Config
	syncer     Syncer
	recomputer Recomputer
	logger     *zap.Logger
	running    atomic.Bool
}

// New registers the job. syncer may be nil when no activity provider is
// configured; the tick then only recomputes.
func New(cfg Config, syncer Syncer, recomputer Recomputer, logger *zap.Logger) (*Scheduler, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Minute
	}
	s := &Scheduler{
		c:          cron.New(),
		config:     cfg,
		syncer:     syncer,
		recomputer: recomputer,
		logger:     logger,
	}
	if _, err := s.c.AddFunc(cfg.CronSpec, s.tick); err != nil {
		return nil, fmt.Errorf("invalid cron spec %q: %w", cfg.CronSpec, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.logger.Info("starting scheduler", zap.String("cron", s.config.CronSpec))
	s.c.Start()
}

// Stop waits for a running tick to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.c.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out with a job still running")
	}
}

func (s *Scheduler) tick() {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("previous scheduler run still in progress, skipping tick")
		return
	}
	defer s.running.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), s.config.Timeout)
	defer cancel()
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("scheduler run failed", zap.Error(err))
	}
}

// RunOnce syncs and then recomputes. A failed sync does not stop the
// recomputation.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()
	var errs []error

	if s.syncer != nil {
		if err := s.syncer.SyncAll(ctx); err != nil {
			s.logger.Error("activity sync failed", zap.Error(err))
			errs = append(errs, fmt.Errorf("sync: %w", err))
		}
	}
	if err := s.recomputer.RecomputeAll(ctx); err != nil {
		errs = append(errs, fmt.Errorf("recompute: %w", err))
	}

	s.logger.Info("scheduler run finished",
		zap.Duration("took", time.Since(start)),
		zap.Int("errors", len(errs)),
	)
	return errors.Join(errs...)
}
