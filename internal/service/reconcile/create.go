package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crewsync/internal/domain"
)

// runCreatePhase provisions groups for trips departing within the create
// horizon that have no tracked group yet. The existence check on the
// tracking record, not on the remote group, is the de-duplication guard
// against double-provisioning on overlapping trigger runs.
func (e *Engine) runCreatePhase(ctx context.Context, trigger time.Time, collector *itemErrors) (int, error) {
	horizon := trigger.Add(e.cfg.CreateBefore)

	// Both bounds inclusive: a trip departing exactly at the horizon gets
	// its group this cycle.
	trips, err := e.trips.FindDepartingInRange(ctx, trigger, horizon)
	if err != nil {
		return 0, fmt.Errorf("list departing trips: %w", err)
	}

	var candidates []domain.Trip
	for _, trip := range trips {
		_, err := e.store.GetByTrip(ctx, trip.ID)
		if err == nil {
			continue // already provisioned
		}
		var notFound *domain.NotFoundError
		if !errors.As(err, &notFound) {
			return 0, fmt.Errorf("check tracking record for trip %s: %w", trip.ID, err)
		}
		candidates = append(candidates, trip)
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	e.logger.Info("create phase", "horizon", horizon, "candidates", len(candidates))

	created := forEach(ctx, e.cfg.MaxConcurrent, candidates,
		func(ctx context.Context, trip domain.Trip) error {
			return e.createGroup(ctx, &trip, trigger, collector)
		},
		func(trip domain.Trip, err error) {
			e.logger.Warn("group provisioning failed", "trip_id", trip.ID, "error", err)
			collector.add(domain.PhaseCreate, trip.ID, "", err)
		})

	return created, nil
}

// createGroup provisions one group for a trip. If the directory-side
// creation fails, no tracking record is persisted and the trip is retried
// next cycle. Once the group exists the record is persisted immediately,
// before member adds, so a mid-procedure failure can't lead to a duplicate
// group on the next run; missing members are healed by the update phase.
func (e *Engine) createGroup(ctx context.Context, trip *domain.Trip, trigger time.Time, collector *itemErrors) error {
	name := GroupName(trip, e.cfg.DisplayLocation)
	description := GroupDescription(trip, e.cfg.DisplayLocation)
	alias := GroupAlias(trip)

	group, err := e.dir.CreateFullGroup(ctx, name, description, alias, e.cfg.TeamSettings)
	if err != nil {
		return fmt.Errorf("create group: %w", err)
	}

	record := &domain.TrackedGroup{
		GroupID:      group.ID,
		TripID:       trip.ID,
		CreationTime: trigger,
		TripSnapshot: *trip,
	}
	if err := e.store.Upsert(ctx, record); err != nil {
		return fmt.Errorf("persist tracking record for group %s: %w", group.ID, err)
	}

	e.logger.Info("group created", "group_id", group.ID, "trip_id", trip.ID, "display_name", name)

	// Let the directory propagate the new group before touching membership.
	if err := e.settle(ctx, e.cfg.SettleDelay); err != nil {
		return err
	}

	for _, crew := range trip.Crew {
		if err := e.addCrewMember(ctx, group.ID, crew.PrincipalName); err != nil {
			// The group and record exist; a missing member is healed by the
			// next update phase rather than failing the creation.
			e.logger.Warn("initial member add failed",
				"group_id", group.ID, "trip_id", trip.ID,
				"principal", crew.PrincipalName, "error", err)
			collector.add(domain.PhaseCreate, trip.ID, group.ID, err)
		}
	}

	return nil
}

func (e *Engine) addCrewMember(ctx context.Context, groupID, principalName string) error {
	user, err := e.dir.ResolveUser(ctx, principalName)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", principalName, err)
	}
	if err := e.dir.AddMember(ctx, groupID, user.ID); err != nil {
		return fmt.Errorf("add %s: %w", principalName, err)
	}
	return nil
}
