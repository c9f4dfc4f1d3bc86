// Package reconcile implements the three-phase trip/group reconciliation
// engine: archive groups whose trip departed long ago, sync membership for
// groups still in the monitoring window, and provision groups for trips
// departing soon.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"crewsync/internal/domain"
)

// Config holds the engine's window constants and owner accounts. All values
// are supplied by the caller; the engine keeps no ambient global state.
type Config struct {
	ArchiveAfter  time.Duration // groups whose trip departed more than this ago are archived
	MonitorWindow time.Duration // groups whose trip departed within this window still get membership sync
	CreateBefore  time.Duration // trips departing within this horizon get a group
	SettleDelay   time.Duration // wait after group creation before adding members

	ArchiveOwnerUPN string // sole member/owner left on archived groups
	ActiveOwnerUPN  string // placeholder owner never removed from active groups

	MaxConcurrent   int // per-phase fan-out limit
	DisplayLocation *time.Location // timezone for departure dates in group names
	TeamSettings    domain.TeamSettings
}

// Engine runs reconciliation cycles. Safe for concurrent cycles with
// different trigger times; overlapping cycles racing on the same trip are
// not guarded beyond the tracking store's de-duplication lookup.
type Engine struct {
	trips  domain.TripRepository
	store  domain.TrackingStore
	dir    domain.Directory
	cfg    Config
	logger *slog.Logger

	// settle waits out directory propagation after group creation.
	// Replaced in tests.
	settle func(ctx context.Context, d time.Duration) error
}

// New creates a reconciliation engine.
func New(trips domain.TripRepository, store domain.TrackingStore, dir domain.Directory, cfg Config, logger *slog.Logger) *Engine {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 8
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.UTC
	}
	return &Engine{
		trips:  trips,
		store:  store,
		dir:    dir,
		cfg:    cfg,
		logger: logger,
		settle: sleepContext,
	}
}

// Reconcile runs one full cycle for the given trigger time: archive, then
// update, then create. Phases are strictly sequential; candidates within a
// phase fan out concurrently. Per-candidate failures are collected into the
// report and never abort the cycle; only failure to read a candidate set
// does.
func (e *Engine) Reconcile(ctx context.Context, trigger time.Time) (*domain.ReconciliationReport, error) {
	started := time.Now()
	report := &domain.ReconciliationReport{TriggerTime: trigger}
	collector := &itemErrors{}

	e.logger.Info("reconciliation cycle started", "trigger_time", trigger)

	archived, err := e.runArchivePhase(ctx, trigger, collector)
	if err != nil {
		return nil, fmt.Errorf("archive phase: %w", err)
	}
	report.Archived = archived

	updated, err := e.runUpdatePhase(ctx, trigger, collector)
	if err != nil {
		return nil, fmt.Errorf("update phase: %w", err)
	}
	report.Updated = updated

	created, err := e.runCreatePhase(ctx, trigger, collector)
	if err != nil {
		return nil, fmt.Errorf("create phase: %w", err)
	}
	report.Created = created

	report.Errors = collector.items()
	report.Duration = time.Since(started)

	e.logger.Info("reconciliation cycle finished",
		"trigger_time", trigger,
		"archived", report.Archived,
		"updated", report.Updated,
		"created", report.Created,
		"item_errors", len(report.Errors),
		"duration", report.Duration,
	)
	return report, nil
}

// forEach fans candidates out with the configured concurrency limit and
// waits for all of them. Item errors go to the collector; the returned count
// is the number of successful items.
func forEach[T any](ctx context.Context, limit int, items []T, run func(ctx context.Context, item T) error, onErr func(item T, err error)) int {
	var (
		g, gctx = errgroup.WithContext(ctx)
		mu      sync.Mutex
		ok      int
	)
	g.SetLimit(limit)
	for _, item := range items {
		g.Go(func() error {
			if err := run(gctx, item); err != nil {
				onErr(item, err)
				return nil // item failures never cancel siblings
			}
			mu.Lock()
			ok++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return ok
}

// itemErrors accumulates per-candidate failures across concurrent items.
type itemErrors struct {
	mu   sync.Mutex
	errs []domain.ItemError
}

func (c *itemErrors) add(phase, tripID, groupID string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, domain.ItemError{
		Phase:   phase,
		TripID:  tripID,
		GroupID: groupID,
		Message: err.Error(),
	})
}

func (c *itemErrors) items() []domain.ItemError {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errs
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
