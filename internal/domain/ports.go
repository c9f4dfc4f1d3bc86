package domain

import (
	"context"
	"time"
)

// TripRepository is the read-mostly source of trip records.
// Implemented by repository.TripRepo.
type TripRepository interface {
	Get(ctx context.Context, id string) (*Trip, error)
	// FindDepartingInRange returns trips with start <= departureTime <= end.
	// Both bounds are inclusive.
	FindDepartingInRange(ctx context.Context, start, end time.Time) ([]Trip, error)
}

// TrackingStore persists the trip → provisioned-group mapping.
// Implemented by repository.TrackedGroupRepo. Writes are scoped per record
// (keyed by group/trip id) so concurrent writes to different trips never
// conflict.
type TrackingStore interface {
	Upsert(ctx context.Context, group *TrackedGroup) error
	Delete(ctx context.Context, groupID string) error
	GetByGroup(ctx context.Context, groupID string) (*TrackedGroup, error)
	GetByTrip(ctx context.Context, tripID string) (*TrackedGroup, error)
	// FindActiveCreatedBefore returns records with no archival time whose
	// creationTime is strictly before the given instant.
	FindActiveCreatedBefore(ctx context.Context, t time.Time) ([]TrackedGroup, error)
	ListAll(ctx context.Context) ([]TrackedGroup, error)
}

// MetadataStore is a small key/value collection for singleton app state:
// pending OAuth state, cached user tokens.
// Implemented by repository.MetadataRepo.
type MetadataStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// TeamSettings controls the managed-group conversion on the directory side.
type TeamSettings struct {
	AllowMemberCreateChannels bool `json:"allow_member_create_channels"`
	AllowGuests               bool `json:"allow_guests"`
}

// Directory is the engine's view of the remote group-management API.
// Implemented by directory.Client. All operations are blocking round-trips;
// the client handles token refresh and propagation retries internally.
type Directory interface {
	GetGroup(ctx context.Context, groupID string) (*DirectoryGroup, error)
	UpdateGroupName(ctx context.Context, groupID, displayName string) error
	DeleteGroup(ctx context.Context, groupID string) error

	// CreateFullGroup creates a plain group and converts it into a managed
	// one, never leaving an orphaned plain group behind on failure.
	CreateFullGroup(ctx context.Context, displayName, description, aliasHint string, settings TeamSettings) (*DirectoryGroup, error)
	ConvertToManagedGroup(ctx context.Context, groupID string, settings TeamSettings) (*DirectoryGroup, error)

	// ListMembers and ListOwners return user-type principals only.
	ListMembers(ctx context.Context, groupID string) ([]DirectoryUser, error)
	ListOwners(ctx context.Context, groupID string) ([]DirectoryUser, error)

	// Membership mutations tolerate "already in desired state" and
	// "not found" as success.
	AddMember(ctx context.Context, groupID, userID string) error
	RemoveMember(ctx context.Context, groupID, userID string) error
	AddOwner(ctx context.Context, groupID, userID string) error
	RemoveOwner(ctx context.Context, groupID, userID string) error

	ResolveUser(ctx context.Context, principalName string) (*DirectoryUser, error)
}
