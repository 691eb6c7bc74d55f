package cli

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

func newDLQCmd(opts *clientOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dlq",
		Short: "Inspect and retry parked audit events",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List unresolved dead-letter entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var page struct {
				Data []struct {
					ID          string `json:"id"`
					Reason      string `json:"reason"`
					RetryCount  int    `json:"retryCount"`
					LastRetryAt string `json:"lastRetryAt,omitempty"`
					LastError   string `json:"lastError,omitempty"`
					Exhausted   bool   `json:"exhausted"`
					CreatedAt   string `json:"createdAt"`
				} `json:"data"`
				NextPageToken string `json:"nextPageToken,omitempty"`
				Total         int64  `json:"total"`
			}
			client := newAPIClient(opts)
			if err := client.getJSON("/v1/audit/dlq", nil, &page); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.jsonOutput() {
				return printJSON(out, page)
			}
			for _, e := range page.Data {
				state := fmt.Sprintf("retries=%d", e.RetryCount)
				if e.Exhausted {
					state += " (exhausted)"
				}
				fmt.Fprintf(out, "%s  %s  %-14s %s\n", e.CreatedAt, e.ID, state, e.Reason)
				if e.LastError != "" {
					fmt.Fprintf(out, "    last error: %s\n", e.LastError)
				}
			}
			fmt.Fprintf(out, "Total unresolved: %d\n", page.Total)
			return nil
		},
	}

	var maxRetries int
	retryCmd := &cobra.Command{
		Use:   "retry",
		Short: "Replay retryable dead-letter entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			query := url.Values{}
			if maxRetries > 0 {
				query.Set("maxRetries", fmt.Sprint(maxRetries))
			}

			var stats struct {
				Attempted int `json:"attempted"`
				Succeeded int `json:"succeeded"`
				Failed    int `json:"failed"`
			}
			client := newAPIClient(opts)
			path := "/v1/audit/dlq/retry"
			if len(query) > 0 {
				path += "?" + query.Encode()
			}
			if err := client.postJSON(path, nil, &stats); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.jsonOutput() {
				return printJSON(out, stats)
			}
			fmt.Fprintf(out, "Attempted: %d\nSucceeded: %d\nFailed:    %d\n",
				stats.Attempted, stats.Succeeded, stats.Failed)
			return nil
		},
	}
	retryCmd.Flags().IntVar(&maxRetries, "max-retries", 0, "override the retry ceiling for this pass")

	cmd.AddCommand(listCmd, retryCmd)
	return cmd
}
