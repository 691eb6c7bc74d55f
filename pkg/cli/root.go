// Package cli implements the auditctl operator command line: chain
// verification, DLQ maintenance, entry queries, and export against a
// running audit API.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
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

func newRootCmd() *cobra.Command {
	opts := &clientOptions{}

	rootCmd := &cobra.Command{
		Use:           "auditctl",
		Short:         "Audit trail operator CLI",
		Long:          "Command-line interface for the audit trail service API: chain verification, DLQ maintenance, and export.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			// Env fallbacks: flag > env > default.
			if opts.host == "" {
				if v := os.Getenv("AUDITCTL_HOST"); v != "" {
					opts.host = v
				} else {
					opts.host = "http://localhost:8080"
				}
			}
			if opts.token == "" {
				opts.token = os.Getenv("AUDITCTL_TOKEN")
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.host, "host", "", "audit API base URL (env AUDITCTL_HOST)")
	flags.StringVar(&opts.token, "token", "", "JWT bearer token (env AUDITCTL_TOKEN)")
	flags.StringVarP(&opts.output, "output", "o", "table", "output format: table or json")

	rootCmd.AddCommand(
		newVerifyCmd(opts),
		newEntriesCmd(opts),
		newDLQCmd(opts),
		newExportCmd(opts),
		newCommandsCmd(opts),
	)
	return rootCmd
}
