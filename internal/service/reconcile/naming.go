package reconcile

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"crewsync/internal/domain"
)

// GroupName derives the human-readable display name for a trip's group:
// deduplicated slash-joined flight numbers, the dash-joined airport route,
// and the departure date in the reference timezone.
//
// Example: "FLT 101/102 JFK-LHR-JFK 04Jul"
func GroupName(trip *domain.Trip, loc *time.Location) string {
	return fmt.Sprintf("FLT %s %s %s",
		flightNumbers(trip),
		route(trip),
		trip.DepartureTime.In(loc).Format("02Jan"))
}

// GroupDescription derives the group description from trip data.
func GroupDescription(trip *domain.Trip, loc *time.Location) string {
	return fmt.Sprintf("Crew group for trip %s departing %s",
		trip.ID,
		trip.DepartureTime.In(loc).Format("Mon 02 Jan 2006 15:04 MST"))
}

// GroupAlias derives the directory mail nickname from the trip id,
// lowercased and restricted to letters, digits, and dashes.
func GroupAlias(trip *domain.Trip) string {
	var b strings.Builder
	b.WriteString("trip-")
	for _, r := range strings.ToLower(trip.ID) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '-' || r == '_' || r == ' ':
			b.WriteByte('-')
		}
	}
	return b.String()
}

// flightNumbers joins the trip's flight numbers with slashes, dropping
// repeats while preserving first-seen order.
func flightNumbers(trip *domain.Trip) string {
	seen := make(map[string]bool, len(trip.Flights))
	var nums []string
	for _, f := range trip.Flights {
		if !seen[f.FlightNumber] {
			seen[f.FlightNumber] = true
			nums = append(nums, f.FlightNumber)
		}
	}
	return strings.Join(nums, "/")
}

// route joins the trip's airports with dashes: the first leg's origin, then
// each leg's destination. A leg whose origin differs from the previous
// destination (a positioning gap) contributes its origin too.
func route(trip *domain.Trip) string {
	if len(trip.Flights) == 0 {
		return ""
	}
	stops := []string{trip.Flights[0].Origin}
	for _, f := range trip.Flights {
		if last := stops[len(stops)-1]; f.Origin != last {
			stops = append(stops, f.Origin)
		}
		stops = append(stops, f.Destination)
	}
	return strings.Join(stops, "-")
}
