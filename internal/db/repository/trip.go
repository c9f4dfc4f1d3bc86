package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"crewsync/internal/domain"
)

// TripRepo reads trip records from SQLite. Trips are owned by an external
// operations system; the write path exists for seeding only.
type TripRepo struct {
	db *sql.DB
}

func NewTripRepo(db *sql.DB) *TripRepo {
	return &TripRepo{db: db}
}

// Get returns the trip with the given id.
func (r *TripRepo) Get(ctx context.Context, id string) (*domain.Trip, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, departure_time, flights, crew FROM trips WHERE id = ?`, id)
	trip, err := scanTrip(row)
	if err != nil {
		return nil, mapDBError(err)
	}
	return trip, nil
}

// FindDepartingInRange returns trips with start <= departure_time <= end,
// inclusive on both bounds, ordered by departure time.
func (r *TripRepo) FindDepartingInRange(ctx context.Context, start, end time.Time) ([]domain.Trip, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, departure_time, flights, crew FROM trips
		 WHERE departure_time >= ? AND departure_time <= ?
		 ORDER BY departure_time`, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var trips []domain.Trip
	for rows.Next() {
		trip, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		trips = append(trips, *trip)
	}
	return trips, rows.Err()
}

// Upsert inserts or replaces a trip. Seed/test path; production trips come
// from the external operations system.
func (r *TripRepo) Upsert(ctx context.Context, trip *domain.Trip) error {
	if err := trip.Validate(); err != nil {
		return err
	}
	flights, err := json.Marshal(trip.Flights)
	if err != nil {
		return fmt.Errorf("marshal flights: %w", err)
	}
	crew, err := json.Marshal(trip.Crew)
	if err != nil {
		return fmt.Errorf("marshal crew: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO trips (id, departure_time, flights, crew)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   departure_time = excluded.departure_time,
		   flights        = excluded.flights,
		   crew           = excluded.crew,
		   updated_at     = CURRENT_TIMESTAMP`,
		trip.ID, trip.DepartureTime.UTC(), string(flights), string(crew))
	return mapDBError(err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrip(row rowScanner) (*domain.Trip, error) {
	var (
		trip    domain.Trip
		flights string
		crew    string
	)
	if err := row.Scan(&trip.ID, &trip.DepartureTime, &flights, &crew); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(flights), &trip.Flights); err != nil {
		return nil, fmt.Errorf("unmarshal flights for trip %s: %w", trip.ID, err)
	}
	if err := json.Unmarshal([]byte(crew), &trip.Crew); err != nil {
		return nil, fmt.Errorf("unmarshal crew for trip %s: %w", trip.ID, err)
	}
	return &trip, nil
}
