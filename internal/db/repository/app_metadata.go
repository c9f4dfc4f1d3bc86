package repository

import (
	"context"
	"database/sql"

	"crewsync/internal/domain"
)

// Well-known app_metadata keys.
const (
	MetaKeyUserToken    = "user_token"    // cached delegated-mode token (JSON)
	MetaKeyPendingOAuth = "pending_oauth" // state nonce for an in-flight login
)

// MetadataRepo is a small key/value store for singleton app state.
type MetadataRepo struct {
	db *sql.DB
}

func NewMetadataRepo(db *sql.DB) *MetadataRepo {
	return &MetadataRepo{db: db}
}

func (r *MetadataRepo) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM app_metadata WHERE key = ?`, key).Scan(&value)
	if err != nil {
		return "", mapDBError(err)
	}
	return value, nil
}

func (r *MetadataRepo) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO app_metadata (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET
		   value = excluded.value,
		   updated_at = CURRENT_TIMESTAMP`, key, value)
	return mapDBError(err)
}

func (r *MetadataRepo) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM app_metadata WHERE key = ?`, key)
	return mapDBError(err)
}

// Compile-time interface checks.
var (
	_ domain.MetadataStore = (*MetadataRepo)(nil)
	_ domain.TrackingStore = (*TrackedGroupRepo)(nil)
	_ domain.TripRepository = (*TripRepo)(nil)
)
