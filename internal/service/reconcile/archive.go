package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"crewsync/internal/directory"
	"crewsync/internal/domain"
)

// ArchivedTag is prepended to the display name of archived groups. The
// directory offers no true archival, so stripping membership and tagging the
// name is how a group is retired.
const ArchivedTag = "[ARCHIVED]"

// runArchivePhase retires groups whose trip departed before the archive
// cutoff. Failed candidates stay active and are retried on the next trigger.
func (e *Engine) runArchivePhase(ctx context.Context, trigger time.Time, collector *itemErrors) (int, error) {
	cutoff := trigger.Add(-e.cfg.ArchiveAfter)

	// Groups are provisioned before departure, so creation_time < cutoff is
	// a superset of departure_time < cutoff; the exact window check follows.
	active, err := e.store.FindActiveCreatedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list active groups: %w", err)
	}

	var candidates []domain.TrackedGroup
	for _, g := range active {
		// Strictly before the cutoff: a trip departing exactly at the
		// cutoff is not archived yet.
		if g.TripSnapshot.DepartureTime.Before(cutoff) {
			candidates = append(candidates, g)
		}
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	e.logger.Info("archive phase", "cutoff", cutoff, "candidates", len(candidates))

	archived := forEach(ctx, e.cfg.MaxConcurrent, candidates,
		func(ctx context.Context, g domain.TrackedGroup) error {
			if err := e.archiveGroup(ctx, &g); err != nil {
				if !isGone(err) {
					return err
				}
				// The remote group vanished out of band; the record is
				// still retired so it stops being a candidate.
				e.logger.Warn("remote group missing, archiving record only",
					"group_id", g.GroupID, "trip_id", g.TripID)
			}
			t := trigger
			g.ArchivalTime = &t
			if err := e.store.Upsert(ctx, &g); err != nil {
				return fmt.Errorf("persist archival: %w", err)
			}
			e.logger.Info("group archived", "group_id", g.GroupID, "trip_id", g.TripID)
			return nil
		},
		func(g domain.TrackedGroup, err error) {
			e.logger.Warn("archive failed", "group_id", g.GroupID, "trip_id", g.TripID, "error", err)
			collector.add(domain.PhaseArchive, g.TripID, g.GroupID, err)
		})

	return archived, nil
}

// archiveGroup strips a group down to the archive owner and tags its name.
// Every step re-reads current state and tolerates "already in desired
// state", so a partially archived group is safe to resume on a later cycle.
//
// Owner removal runs last: in delegated mode the service identity loses its
// ability to mutate the group the moment it stops being an owner, so all
// other mutations must already be done.
func (e *Engine) archiveGroup(ctx context.Context, g *domain.TrackedGroup) error {
	var archiveOwner *domain.DirectoryUser
	if e.cfg.ArchiveOwnerUPN != "" {
		u, err := e.dir.ResolveUser(ctx, e.cfg.ArchiveOwnerUPN)
		if err != nil {
			return fmt.Errorf("resolve archive owner %s: %w", e.cfg.ArchiveOwnerUPN, err)
		}
		archiveOwner = u
	}

	members, err := e.dir.ListMembers(ctx, g.GroupID)
	if err != nil {
		return fmt.Errorf("list members: %w", err)
	}
	owners, err := e.dir.ListOwners(ctx, g.GroupID)
	if err != nil {
		return fmt.Errorf("list owners: %w", err)
	}

	// Seat the archive owner before anyone else is removed. Checked by
	// identity against the fetched lists, not blindly re-added.
	if archiveOwner != nil {
		if !containsUserID(members, archiveOwner.ID) {
			if err := e.dir.AddMember(ctx, g.GroupID, archiveOwner.ID); err != nil {
				return fmt.Errorf("add archive owner as member: %w", err)
			}
		}
		if !containsUserID(owners, archiveOwner.ID) {
			if err := e.dir.AddOwner(ctx, g.GroupID, archiveOwner.ID); err != nil {
				return fmt.Errorf("add archive owner as owner: %w", err)
			}
		}
	}

	// Remove every member except the archive owner.
	for _, m := range members {
		if archiveOwner != nil && m.ID == archiveOwner.ID {
			continue
		}
		if err := e.dir.RemoveMember(ctx, g.GroupID, m.ID); err != nil {
			return fmt.Errorf("remove member %s: %w", m.UserPrincipalName, err)
		}
	}

	// Tag the display name, unless a previous partial run already did.
	remote, err := e.dir.GetGroup(ctx, g.GroupID)
	if err != nil {
		return fmt.Errorf("get group: %w", err)
	}
	if !strings.HasPrefix(remote.DisplayName, ArchivedTag) {
		tagged := ArchivedTag + " " + remote.DisplayName
		if err := e.dir.UpdateGroupName(ctx, g.GroupID, tagged); err != nil {
			return fmt.Errorf("rename group: %w", err)
		}
	}

	// Owner removal MUST stay the final step (self-lockout protection).
	// Re-read owners: the archive owner may have been added above.
	owners, err = e.dir.ListOwners(ctx, g.GroupID)
	if err != nil {
		return fmt.Errorf("re-list owners: %w", err)
	}
	for _, o := range owners {
		if archiveOwner != nil && o.ID == archiveOwner.ID {
			continue
		}
		if err := e.dir.RemoveOwner(ctx, g.GroupID, o.ID); err != nil {
			return fmt.Errorf("remove owner %s: %w", o.UserPrincipalName, err)
		}
	}

	return nil
}

// containsUserID reports whether the list holds a user with the given
// directory object id.
func containsUserID(users []domain.DirectoryUser, id string) bool {
	for _, u := range users {
		if u.ID == id {
			return true
		}
	}
	return false
}

// isGone reports whether the remote group no longer exists; archival of a
// vanished group is treated as done.
func isGone(err error) bool {
	return directory.IsNotFound(err)
}
