package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"crewsync/internal/domain"
)

// tripFile is the YAML layout accepted by "trips seed".
type tripFile struct {
	Trips []tripSpec `yaml:"trips"`
}

type tripSpec struct {
	ID            string     `yaml:"id"`
	DepartureTime time.Time  `yaml:"departure_time"`
	Flights       []legSpec  `yaml:"flights"`
	Crew          []crewSpec `yaml:"crew"`
}

type legSpec struct {
	FlightNumber string `yaml:"flight_number"`
	Origin       string `yaml:"origin"`
	Destination  string `yaml:"destination"`
}

type crewSpec struct {
	PrincipalName string `yaml:"principal_name"`
	DisplayName   string `yaml:"display_name"`
}

func (s tripSpec) toDomain() domain.Trip {
	trip := domain.Trip{
		ID:            s.ID,
		DepartureTime: s.DepartureTime,
	}
	for _, f := range s.Flights {
		trip.Flights = append(trip.Flights, domain.FlightLeg{
			FlightNumber: f.FlightNumber,
			Origin:       f.Origin,
			Destination:  f.Destination,
		})
	}
	for _, c := range s.Crew {
		trip.Crew = append(trip.Crew, domain.CrewMember{
			PrincipalName: c.PrincipalName,
			DisplayName:   c.DisplayName,
		})
	}
	return trip
}

func newTripsCmd(o *opts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trips",
		Short: "Manage trip records on a dev server",
	}
	cmd.AddCommand(newTripsSeedCmd(o), newTripsGetCmd(o))
	return cmd
}

func newTripsSeedCmd(o *opts) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed trips from a YAML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			var spec tripFile
			if err := yaml.Unmarshal(raw, &spec); err != nil {
				return fmt.Errorf("parse %s: %w", file, err)
			}
			if len(spec.Trips) == 0 {
				return fmt.Errorf("%s contains no trips", file)
			}

			client := o.client()
			for _, t := range spec.Trips {
				trip := t.toDomain()
				if err := client.SeedTrip(cmd.Context(), &trip); err != nil {
					return fmt.Errorf("seed trip %s: %w", t.ID, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "seeded %s (departs %s)\n",
					trip.ID, trip.DepartureTime.Format(time.RFC3339))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "trips.yaml", "YAML file with trips to seed")
	return cmd
}

func newTripsGetCmd(o *opts) *cobra.Command {
	return &cobra.Command{
		Use:   "get <trip-id>",
		Short: "Show one trip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			trip, err := o.client().GetTrip(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), trip)
		},
	}
}
