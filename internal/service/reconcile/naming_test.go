package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"crewsync/internal/domain"
)

func TestGroupName(t *testing.T) {
	dep := time.Date(2026, 7, 4, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		flights []domain.FlightLeg
		want    string
	}{
		{
			name: "round trip",
			flights: []domain.FlightLeg{
				{FlightNumber: "101", Origin: "JFK", Destination: "LHR"},
				{FlightNumber: "102", Origin: "LHR", Destination: "JFK"},
			},
			want: "FLT 101/102 JFK-LHR-JFK 04Jul",
		},
		{
			name: "repeated flight number collapses",
			flights: []domain.FlightLeg{
				{FlightNumber: "205", Origin: "SFO", Destination: "SEA"},
				{FlightNumber: "205", Origin: "SEA", Destination: "SFO"},
			},
			want: "FLT 205 SFO-SEA-SFO 04Jul",
		},
		{
			name: "positioning gap keeps both airports",
			flights: []domain.FlightLeg{
				{FlightNumber: "310", Origin: "JFK", Destination: "LHR"},
				{FlightNumber: "311", Origin: "CDG", Destination: "JFK"},
			},
			want: "FLT 310/311 JFK-LHR-CDG-JFK 04Jul",
		},
		{
			name: "single leg",
			flights: []domain.FlightLeg{
				{FlightNumber: "42", Origin: "BOS", Destination: "ORD"},
			},
			want: "FLT 42 BOS-ORD 04Jul",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trip := &domain.Trip{ID: "TR-1", DepartureTime: dep, Flights: tt.flights}
			assert.Equal(t, tt.want, GroupName(trip, time.UTC))
		})
	}
}

func TestGroupName_DisplayTimezone(t *testing.T) {
	// 02:00 UTC on July 5th is still July 4th on the US east coast.
	trip := &domain.Trip{
		ID:            "TR-1",
		DepartureTime: time.Date(2026, 7, 5, 2, 0, 0, 0, time.UTC),
		Flights:       []domain.FlightLeg{{FlightNumber: "101", Origin: "JFK", Destination: "LHR"}},
	}
	est := time.FixedZone("EDT", -4*3600)
	assert.Equal(t, "FLT 101 JFK-LHR 04Jul", GroupName(trip, est))
	assert.Equal(t, "FLT 101 JFK-LHR 05Jul", GroupName(trip, time.UTC))
}

func TestGroupDescription(t *testing.T) {
	trip := &domain.Trip{
		ID:            "TR-9",
		DepartureTime: time.Date(2026, 7, 4, 9, 30, 0, 0, time.UTC),
	}
	got := GroupDescription(trip, time.UTC)
	assert.Equal(t, "Crew group for trip TR-9 departing Sat 04 Jul 2026 09:30 UTC", got)
}

func TestGroupAlias(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"TR-1234", "trip-tr-1234"},
		{"TR 1234 B", "trip-tr-1234-b"},
		{"Trip_42", "trip-trip-42"},
		{"A/B#9", "trip-ab9"},
	}
	for _, tt := range tests {
		trip := &domain.Trip{ID: tt.id}
		assert.Equal(t, tt.want, GroupAlias(trip), "id %q", tt.id)
	}
}
