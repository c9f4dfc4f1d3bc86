package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs reconciliation cycles on a cron schedule. Each firing uses
// the wall-clock time as the trigger time.
type Scheduler struct {
	cron   *cron.Cron
	engine *Engine
	logger *slog.Logger
}

// NewScheduler creates a scheduler that triggers the engine on the given
// cron expression (standard five-field syntax, or descriptors like @hourly).
func NewScheduler(engine *Engine, schedule string, logger *slog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:   cron.New(),
		engine: engine,
		logger: logger,
	}

	_, err := s.cron.AddFunc(schedule, func() {
		ctx := context.Background()
		trigger := time.Now().UTC()
		report, runErr := engine.Reconcile(ctx, trigger)
		if runErr != nil {
			s.logger.Error("scheduled reconciliation failed", "trigger_time", trigger, "error", runErr)
			return
		}
		if len(report.Errors) > 0 {
			s.logger.Warn("scheduled reconciliation finished with item errors",
				"trigger_time", trigger, "item_errors", len(report.Errors))
		}
	})
	if err != nil {
		return nil, err
	}

	return s, nil
}

// Start begins firing on schedule.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("reconciliation scheduler started")
}

// Stop stops the scheduler and waits for an in-flight cycle to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("reconciliation scheduler stopped")
}
