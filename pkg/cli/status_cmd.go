package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCmd(o *opts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [group-id]",
		Short: "Show tracked groups",
		Long:  "List all tracked groups, or show one record in full.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				group, err := o.client().GetGroup(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(out, group)
			}

			groups, err := o.client().ListGroups(cmd.Context())
			if err != nil {
				return err
			}
			if o.output == "json" {
				return printJSON(out, groups)
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "GROUP ID\tTRIP\tDEPARTURE\tCREATED\tSTATE")
			for _, g := range groups {
				state := "active"
				if !g.Active() {
					state = "archived " + g.ArchivalTime.Format("2006-01-02")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					g.GroupID,
					g.TripID,
					g.TripSnapshot.DepartureTime.Format(time.RFC3339),
					g.CreationTime.Format("2006-01-02"),
					state)
			}
			return w.Flush()
		},
	}
	return cmd
}
