package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/influxdata/cron"
	"go.uber.org/zap"
)

// Scheduler runs alert checks on a cron schedule until its context is
// cancelled.
type Scheduler struct {
	checker  *Checker
	logger   *zap.Logger
	clock    clock.Clock
	schedule cron.Parsed

	// Notify, when set, is called after a check that created alerts.
	Notify func(ctx context.Context, result *CheckResult)
}

// NewScheduler parses the cron expression and builds a scheduler.
func NewScheduler(checker *Checker, schedule string, logger *zap.Logger, clk clock.Clock) (*Scheduler, error) {
	parsed, err := cron.ParseUTC(schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid alert schedule %q: %w", schedule, err)
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Scheduler{
		checker:  checker,
		logger:   logger,
		clock:    clk,
		schedule: parsed,
	}, nil
}

// Run blocks, checking alerts at each scheduled time, until ctx is
// cancelled. Check failures are logged and the loop keeps going.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		now := s.clock.Now().UTC()
		next, err := s.schedule.Next(now)
		if err != nil {
			return fmt.Errorf("failed to compute next alert check: %w", err)
		}
		s.logger.Debug("next alert check scheduled", zap.Time("at", next))

		timer := s.clock.Timer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		s.runOnce(ctx)
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	result, err := s.checker.Run(checkCtx)
	if err != nil {
		s.logger.Error("scheduled alert check failed", zap.Error(err))
		return
	}
	if _, err := s.checker.Cleanup(checkCtx); err != nil {
		s.logger.Error("alert cleanup failed", zap.Error(err))
	}
	if result.Created > 0 && s.Notify != nil {
		s.Notify(checkCtx, result)
	}
}
