package domain

import "time"

// TrackedGroup links a trip to the collaboration group provisioned for it.
// GroupID is assigned by the directory on creation. TripID is unique: at most
// one active record exists per trip. ArchivalTime is nil while the group is
// active and is set exactly once when the group is archived; after that the
// record is immutable except for explicit teardown.
type TrackedGroup struct {
	GroupID      string     `json:"group_id"`
	TripID       string     `json:"trip_id"`
	CreationTime time.Time  `json:"creation_time"`
	ArchivalTime *time.Time `json:"archival_time,omitempty"`

	// TripSnapshot is the trip value as of the last successful sync into the
	// group. Phase decisions (archive cutoff, monitor window) read departure
	// time from the snapshot, not from the live trip.
	TripSnapshot Trip `json:"trip_snapshot"`
}

// Active reports whether the group has not been archived yet.
func (g *TrackedGroup) Active() bool {
	return g.ArchivalTime == nil
}
