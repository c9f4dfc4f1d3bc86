package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"crewsync/internal/domain"
)

// runUpdatePhase syncs group membership against the current crew roster for
// every active group still inside the monitoring window.
func (e *Engine) runUpdatePhase(ctx context.Context, trigger time.Time, collector *itemErrors) (int, error) {
	floor := trigger.Add(-e.cfg.MonitorWindow)

	all, err := e.store.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("list tracked groups: %w", err)
	}

	var candidates []domain.TrackedGroup
	for _, g := range all {
		// Trips that haven't departed, or departed within the window.
		if g.Active() && g.TripSnapshot.DepartureTime.After(floor) {
			candidates = append(candidates, g)
		}
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	e.logger.Info("update phase", "monitor_floor", floor, "candidates", len(candidates))

	updated := forEach(ctx, e.cfg.MaxConcurrent, candidates,
		func(ctx context.Context, g domain.TrackedGroup) error {
			return e.updateGroup(ctx, &g)
		},
		func(g domain.TrackedGroup, err error) {
			e.logger.Warn("membership sync failed", "group_id", g.GroupID, "trip_id", g.TripID, "error", err)
			collector.add(domain.PhaseUpdate, g.TripID, g.GroupID, err)
		})

	return updated, nil
}

// updateGroup diffs the live crew roster against current remote membership
// and applies the difference, then persists the fresh trip snapshot. Remote
// membership is the source of truth and is re-read on every sync.
func (e *Engine) updateGroup(ctx context.Context, g *domain.TrackedGroup) error {
	trip, err := e.trips.Get(ctx, g.TripID)
	if err != nil {
		return fmt.Errorf("fetch trip: %w", err)
	}

	members, err := e.dir.ListMembers(ctx, g.GroupID)
	if err != nil {
		return fmt.Errorf("list members: %w", err)
	}

	toAdd, toRemove := membershipDiff(trip.Crew, members, e.cfg.ActiveOwnerUPN, e.cfg.ArchiveOwnerUPN)

	for _, upn := range toAdd {
		user, err := e.dir.ResolveUser(ctx, upn)
		if err != nil {
			return fmt.Errorf("resolve crew member %s: %w", upn, err)
		}
		if err := e.dir.AddMember(ctx, g.GroupID, user.ID); err != nil {
			return fmt.Errorf("add member %s: %w", upn, err)
		}
	}
	for _, user := range toRemove {
		if err := e.dir.RemoveMember(ctx, g.GroupID, user.ID); err != nil {
			return fmt.Errorf("remove member %s: %w", user.UserPrincipalName, err)
		}
	}

	if len(toAdd) > 0 || len(toRemove) > 0 {
		e.logger.Info("membership synced",
			"group_id", g.GroupID, "trip_id", g.TripID,
			"added", len(toAdd), "removed", len(toRemove))
	}

	g.TripSnapshot = *trip
	if err := e.store.Upsert(ctx, g); err != nil {
		return fmt.Errorf("persist snapshot: %w", err)
	}
	return nil
}

// membershipDiff computes the crew/member difference by principal name,
// case-insensitively. Returned adds are principal names still to resolve;
// removes are resolved directory users. Protected principals (the active
// and archive owner placeholders) are never removed.
func membershipDiff(crew []domain.CrewMember, members []domain.DirectoryUser, protected ...string) (toAdd []string, toRemove []domain.DirectoryUser) {
	current := make(map[string]bool, len(members))
	for _, m := range members {
		current[strings.ToLower(m.UserPrincipalName)] = true
	}
	wanted := make(map[string]bool, len(crew))
	for _, c := range crew {
		wanted[strings.ToLower(c.PrincipalName)] = true
	}
	isProtected := make(map[string]bool, len(protected))
	for _, p := range protected {
		if p != "" {
			isProtected[strings.ToLower(p)] = true
		}
	}

	seen := make(map[string]bool, len(crew))
	for _, c := range crew {
		key := strings.ToLower(c.PrincipalName)
		if !current[key] && !seen[key] {
			seen[key] = true
			toAdd = append(toAdd, c.PrincipalName)
		}
	}
	for _, m := range members {
		upn := strings.ToLower(m.UserPrincipalName)
		if !wanted[upn] && !isProtected[upn] {
			toRemove = append(toRemove, m)
		}
	}
	return toAdd, toRemove
}
