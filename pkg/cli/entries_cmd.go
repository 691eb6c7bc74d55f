package cli

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

type entryListItem struct {
	ID         string `json:"id"`
	Timestamp  string `json:"ts"`
	Action     string `json:"action"`
	ActorEmail string `json:"actorEmail,omitempty"`
	EntityType string `json:"entityType"`
	EntityID   string `json:"entityId"`
	Hash       string `json:"hash"`
}

func newEntriesCmd(opts *clientOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entries",
		Short: "Query audit log entries",
	}

	var (
		action     string
		actorEmail string
		entityType string
		entityID   string
		from       string
		to         string
		pageToken  string
		maxResults int
	)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List audit entries, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			query := url.Values{}
			for name, v := range map[string]string{
				"action":     action,
				"actorEmail": actorEmail,
				"entityType": entityType,
				"entityId":   entityID,
				"from":       from,
				"to":         to,
				"pageToken":  pageToken,
			} {
				if v != "" {
					query.Set(name, v)
				}
			}
			if maxResults > 0 {
				query.Set("maxResults", fmt.Sprint(maxResults))
			}

			var page struct {
				Data          []entryListItem `json:"data"`
				NextPageToken string          `json:"nextPageToken,omitempty"`
				Total         int64           `json:"total"`
			}
			client := newAPIClient(opts)
			if err := client.getJSON("/v1/audit/entries", query, &page); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.jsonOutput() {
				return printJSON(out, page)
			}
			for _, e := range page.Data {
				fmt.Fprintf(out, "%s  %-24s %-12s %s/%s  %s\n",
					e.Timestamp, e.Action, e.ActorEmail, e.EntityType, e.EntityID, e.ID)
			}
			fmt.Fprintf(out, "Total: %d\n", page.Total)
			if page.NextPageToken != "" {
				fmt.Fprintf(out, "Next page: --page-token %s\n", page.NextPageToken)
			}
			return nil
		},
	}

	flags := listCmd.Flags()
	flags.StringVar(&action, "action", "", "filter by action, e.g. ticket.created")
	flags.StringVar(&actorEmail, "actor-email", "", "filter by actor email")
	flags.StringVar(&entityType, "entity-type", "", "filter by entity type")
	flags.StringVar(&entityID, "entity-id", "", "filter by entity ID")
	flags.StringVar(&from, "from", "", "range start (RFC 3339)")
	flags.StringVar(&to, "to", "", "range end (RFC 3339)")
	flags.StringVar(&pageToken, "page-token", "", "continuation token from a previous page")
	flags.IntVar(&maxResults, "max-results", 0, "page size")

	getCmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Fetch a single audit entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var entry map[string]any
			client := newAPIClient(opts)
			if err := client.getJSON("/v1/audit/entries/"+url.PathEscape(args[0]), nil, &entry); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entry)
		},
	}

	cmd.AddCommand(listCmd, getCmd)
	return cmd
}
