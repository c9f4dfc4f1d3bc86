package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newReconcileCmd(o *opts) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Trigger one reconciliation cycle",
		Long:  "Trigger one archive/update/create cycle. Use --at to replay a specific trigger time.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var trigger *time.Time
			if at != "" {
				parsed, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("--at must be RFC3339 (e.g. 2026-07-01T12:00:00Z): %w", err)
				}
				trigger = &parsed
			}

			if err := o.requireSecret(); err != nil {
				return err
			}

			report, err := o.client().Reconcile(cmd.Context(), trigger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if o.output == "json" {
				return printJSON(out, report)
			}

			fmt.Fprintf(out, "Trigger time: %s\n", report.TriggerTime.Format(time.RFC3339))
			fmt.Fprintf(out, "Archived: %d  Updated: %d  Created: %d\n",
				report.Archived, report.Updated, report.Created)
			if len(report.Errors) > 0 {
				fmt.Fprintf(out, "Item errors (%d):\n", len(report.Errors))
				for _, e := range report.Errors {
					fmt.Fprintf(out, "  [%s] trip=%s group=%s: %s\n", e.Phase, e.TripID, e.GroupID, e.Message)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "Trigger time (RFC3339); defaults to server time")
	return cmd
}
