package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"crewsync/internal/domain"
)

// TrackedGroupRepo persists the trip → provisioned-group mapping.
type TrackedGroupRepo struct {
	db *sql.DB
}

func NewTrackedGroupRepo(db *sql.DB) *TrackedGroupRepo {
	return &TrackedGroupRepo{db: db}
}

// Upsert inserts or replaces the record for a group. The trip_id UNIQUE
// constraint guarantees at most one record per trip; inserting a second
// group for the same trip returns a ConflictError.
func (r *TrackedGroupRepo) Upsert(ctx context.Context, g *domain.TrackedGroup) error {
	snapshot, err := json.Marshal(g.TripSnapshot)
	if err != nil {
		return fmt.Errorf("marshal trip snapshot: %w", err)
	}

	var archival any
	if g.ArchivalTime != nil {
		archival = g.ArchivalTime.UTC()
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO tracked_groups (group_id, trip_id, creation_time, archival_time, trip_snapshot)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (group_id) DO UPDATE SET
		   archival_time = excluded.archival_time,
		   trip_snapshot = excluded.trip_snapshot`,
		g.GroupID, g.TripID, g.CreationTime.UTC(), archival, string(snapshot))
	return mapDBError(err)
}

// Delete removes the record for a group. Used by the teardown/reset path
// only; archived records are otherwise kept.
func (r *TrackedGroupRepo) Delete(ctx context.Context, groupID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM tracked_groups WHERE group_id = ?`, groupID)
	return mapDBError(err)
}

// GetByGroup returns the record for the given directory group id.
func (r *TrackedGroupRepo) GetByGroup(ctx context.Context, groupID string) (*domain.TrackedGroup, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT group_id, trip_id, creation_time, archival_time, trip_snapshot
		 FROM tracked_groups WHERE group_id = ?`, groupID)
	g, err := scanTrackedGroup(row)
	if err != nil {
		return nil, mapDBError(err)
	}
	return g, nil
}

// GetByTrip returns the record for the given trip id. This lookup is the
// de-duplication guard against double-provisioning on overlapping runs.
func (r *TrackedGroupRepo) GetByTrip(ctx context.Context, tripID string) (*domain.TrackedGroup, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT group_id, trip_id, creation_time, archival_time, trip_snapshot
		 FROM tracked_groups WHERE trip_id = ?`, tripID)
	g, err := scanTrackedGroup(row)
	if err != nil {
		return nil, mapDBError(err)
	}
	return g, nil
}

// FindActiveCreatedBefore returns active records (no archival time) created
// strictly before t.
func (r *TrackedGroupRepo) FindActiveCreatedBefore(ctx context.Context, t time.Time) ([]domain.TrackedGroup, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT group_id, trip_id, creation_time, archival_time, trip_snapshot
		 FROM tracked_groups
		 WHERE archival_time IS NULL AND creation_time < ?
		 ORDER BY creation_time`, t.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck
	return collectTrackedGroups(rows)
}

// ListAll returns every record, active and archived.
func (r *TrackedGroupRepo) ListAll(ctx context.Context) ([]domain.TrackedGroup, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT group_id, trip_id, creation_time, archival_time, trip_snapshot
		 FROM tracked_groups ORDER BY creation_time`)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck
	return collectTrackedGroups(rows)
}

func collectTrackedGroups(rows *sql.Rows) ([]domain.TrackedGroup, error) {
	var groups []domain.TrackedGroup
	for rows.Next() {
		g, err := scanTrackedGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, *g)
	}
	return groups, rows.Err()
}

func scanTrackedGroup(row rowScanner) (*domain.TrackedGroup, error) {
	var (
		g        domain.TrackedGroup
		archival sql.NullTime
		snapshot string
	)
	if err := row.Scan(&g.GroupID, &g.TripID, &g.CreationTime, &archival, &snapshot); err != nil {
		return nil, err
	}
	if archival.Valid {
		t := archival.Time
		g.ArchivalTime = &t
	}
	if err := json.Unmarshal([]byte(snapshot), &g.TripSnapshot); err != nil {
		return nil, fmt.Errorf("unmarshal trip snapshot for group %s: %w", g.GroupID, err)
	}
	return &g, nil
}
