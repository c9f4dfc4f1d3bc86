package domain

import "time"

// Reconciliation phases, as reported in per-item errors.
const (
	PhaseArchive = "archive"
	PhaseUpdate  = "update"
	PhaseCreate  = "create"
)

// ItemError records a single candidate that failed during a cycle. Item
// failures never abort the cycle; they are retried on the next trigger.
type ItemError struct {
	Phase   string `json:"phase"`
	TripID  string `json:"trip_id,omitempty"`
	GroupID string `json:"group_id,omitempty"`
	Message string `json:"message"`
}

// ReconciliationReport summarises one reconciliation cycle.
type ReconciliationReport struct {
	TriggerTime time.Time   `json:"trigger_time"`
	Archived    int         `json:"archived"`
	Updated     int         `json:"updated"`
	Created     int         `json:"created"`
	Errors      []ItemError `json:"errors,omitempty"`
	Duration    time.Duration `json:"duration_ns"`
}
