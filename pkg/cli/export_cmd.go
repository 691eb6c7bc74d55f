package cli

import (
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/spf13/cobra"
)

func newExportCmd(opts *clientOptions) *cobra.Command {
	var (
		format   string
		outFile  string
		from     string
		to       string
		action   string
		entityTy string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export audit entries as JSONL or CSV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format != "jsonl" && format != "csv" {
				return fmt.Errorf("unsupported format %q: use jsonl or csv", format)
			}

			query := url.Values{"format": {format}}
			for name, v := range map[string]string{
				"from":       from,
				"to":         to,
				"action":     action,
				"entityType": entityTy,
			} {
				if v != "" {
					query.Set(name, v)
				}
			}

			var w io.Writer = cmd.OutOrStdout()
			if outFile != "" {
				f, err := os.Create(outFile)
				if err != nil {
					return fmt.Errorf("create %s: %w", outFile, err)
				}
				defer f.Close() //nolint:errcheck
				w = f
			}

			client := newAPIClient(opts)
			if err := client.stream("/v1/audit/export", query, w); err != nil {
				return err
			}
			if outFile != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", outFile)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&format, "format", "jsonl", "export format: jsonl or csv")
	flags.StringVarP(&outFile, "out", "f", "", "write to file instead of stdout")
	flags.StringVar(&from, "from", "", "range start (RFC 3339)")
	flags.StringVar(&to, "to", "", "range end (RFC 3339)")
	flags.StringVar(&action, "action", "", "filter by action")
	flags.StringVar(&entityTy, "entity-type", "", "filter by entity type")

	return cmd
}
