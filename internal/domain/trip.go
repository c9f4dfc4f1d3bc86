// Package domain defines core types, interfaces, and errors for the crew
// group reconciliation service.
package domain

import (
	"strings"
	"time"
)

// FlightLeg is a single flight segment of a trip.
type FlightLeg struct {
	FlightNumber string `json:"flight_number"`
	Origin       string `json:"origin"`
	Destination  string `json:"destination"`
}

// CrewMember is one crew assignment on a trip. PrincipalName is the unique
// directory sign-in name (UPN); DisplayName is optional.
type CrewMember struct {
	PrincipalName string `json:"principal_name"`
	DisplayName   string `json:"display_name,omitempty"`
}

// Trip is a crew rotation: an ordered, non-empty list of flight legs with a
// departure time and a crew roster. Trips are owned by an external operations
// system; the engine only reads them.
type Trip struct {
	ID            string       `json:"id"`
	DepartureTime time.Time    `json:"departure_time"`
	Flights       []FlightLeg  `json:"flights"`
	Crew          []CrewMember `json:"crew"`
}

// HasCrewMember reports whether the roster contains the given principal name.
// Principal names compare case-insensitively.
func (t *Trip) HasCrewMember(principalName string) bool {
	for _, m := range t.Crew {
		if strings.EqualFold(m.PrincipalName, principalName) {
			return true
		}
	}
	return false
}

// Validate checks the structural invariants of a trip.
func (t *Trip) Validate() error {
	if t.ID == "" {
		return ErrValidation("trip id is required")
	}
	if t.DepartureTime.IsZero() {
		return ErrValidation("trip %s: departure time is required", t.ID)
	}
	if len(t.Flights) == 0 {
		return ErrValidation("trip %s: at least one flight leg is required", t.ID)
	}
	for i, f := range t.Flights {
		if f.FlightNumber == "" || f.Origin == "" || f.Destination == "" {
			return ErrValidation("trip %s: flight leg %d is incomplete", t.ID, i)
		}
	}
	for i, m := range t.Crew {
		if m.PrincipalName == "" {
			return ErrValidation("trip %s: crew member %d has no principal name", t.ID, i)
		}
	}
	return nil
}
