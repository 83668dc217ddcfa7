// Package jobs runs periodic maintenance: the nightly streak sweep and the
// purge of idle lesson sessions and stale cache entries.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const DefaultPurgeSpec = "@every 10m"

type StreakSweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

// Purger drops expired in-memory entries and reports how many went.
type Purger interface {
	Purge() int
}

type Scheduler struct {
	cron    *cron.Cron
	streaks StreakSweeper
	purgers map[string]Purger
	logger  *zap.Logger
}

// New registers the sweep on sweepSpec and every purger on purgeSpec.
// Specs use the standard five-field cron syntax or descriptors.
func New(loc *time.Location, sweepSpec, purgeSpec string, streaks StreakSweeper, purgers map[string]Purger, logger *zap.Logger) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	if purgeSpec == "" {
		purgeSpec = DefaultPurgeSpec
	}
	s := &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		streaks: streaks,
		purgers: purgers,
		logger:  logger,
	}
	if _, err := s.cron.AddFunc(sweepSpec, func() { s.SweepStreaks(context.Background()) }); err != nil {
		return nil, fmt.Errorf("streak sweep spec %q: %w", sweepSpec, err)
	}
	if _, err := s.cron.AddFunc(purgeSpec, s.PurgeAll); err != nil {
		return nil, fmt.Errorf("purge spec %q: %w", purgeSpec, err)
	}
	return s, nil
}

// Start runs the scheduler until ctx is done, then waits for running jobs.
func (s *Scheduler) Start(ctx context.Context) {
	s.cron.Start()
	s.logger.Info("cron scheduler started", zap.Int("jobs", len(s.cron.Entries())))
	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("cron scheduler stopped")
}

func (s *Scheduler) SweepStreaks(ctx context.Context) {
	n, err := s.streaks.Sweep(ctx)
	if err != nil {
		s.logger.Error("streak sweep failed", zap.Error(err))
		return
	}
	s.logger.Info("streak sweep done", zap.Int64("reset", n))
}

func (s *Scheduler) PurgeAll() {
	for name, p := range s.purgers {
		if n := p.Purge(); n > 0 {
			s.logger.Debug("purged expired entries", zap.String("cache", name), zap.Int("count", n))
		}
	}
}
