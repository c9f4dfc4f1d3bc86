// Package cli implements the crewsync command-line interface.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// opts carries the resolved global flags into subcommands.
type opts struct {
	server string
	token  string
	secret string
	output string
}

func (o *opts) client() *Client {
	return NewClient(o.server, o.token, o.secret)
}

// requireSecret ensures a trigger secret is available, prompting on a
// terminal when none was supplied by flag or environment.
func (o *opts) requireSecret() error {
	if o.secret != "" {
		return nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil // let the server decide; dev servers run without a secret
	}
	fmt.Fprint(os.Stderr, "Trigger secret: ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("read secret: %w", err)
	}
	o.secret = string(raw)
	return nil
}

func newRootCmd() *cobra.Command {
	o := &opts{}

	rootCmd := &cobra.Command{
		Use:           "crewsync",
		Short:         "Trip crew group reconciliation CLI",
		Long:          "Command-line interface for the crewsync reconciliation service.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			// Precedence: flag > environment > default.
			if !cmd.Flags().Changed("server") {
				if v := os.Getenv("CREWSYNC_SERVER"); v != "" {
					o.server = v
				}
			}
			if !cmd.Flags().Changed("token") {
				if v := os.Getenv("CREWSYNC_TOKEN"); v != "" {
					o.token = v
				}
			}
			if !cmd.Flags().Changed("secret") {
				if v := os.Getenv("CREWSYNC_TRIGGER_SECRET"); v != "" {
					o.secret = v
				}
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&o.server, "server", "http://localhost:8080", "Service URL")
	rootCmd.PersistentFlags().StringVar(&o.token, "token", "", "Bearer token for dashboard endpoints")
	rootCmd.PersistentFlags().StringVar(&o.secret, "secret", "", "Shared secret for trigger endpoints")
	rootCmd.PersistentFlags().StringVarP(&o.output, "output", "o", "table", "Output format (table, json)")

	rootCmd.AddCommand(
		newReconcileCmd(o),
		newStatusCmd(o),
		newTripsCmd(o),
		newTeardownCmd(o),
	)

	return rootCmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
