package indexer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"marketScope/internal/model"
)

// Passer runs one indexing pass.
type Passer interface {
	RunPass(ctx context.Context) (model.PassSummary, error)
}

// Scheduler triggers a pass immediately and then once per interval until ctx is done.
// A failed pass is logged and retried on the next tick.
type Scheduler struct {
	passer   Passer
	interval time.Duration
	logger   *zap.Logger
}

func NewScheduler(passer Passer, interval time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Scheduler{passer: passer, interval: interval, logger: logger}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if _, err := s.passer.RunPass(ctx); err != nil && ctx.Err() == nil {
		s.logger.Warn("scheduled pass failed", zap.Error(err), zap.Duration("retry_in", s.interval))
	}
}
