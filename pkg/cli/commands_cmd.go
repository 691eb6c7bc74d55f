package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// commandEntry describes a single CLI command for introspection output.
type commandEntry struct {
	Path  string      `json:"path"`
	Short string      `json:"short"`
	Args  string      `json:"args,omitempty"`
	Flags []flagEntry `json:"flags,omitempty"`
}

// flagEntry describes a single flag for introspection output.
type flagEntry struct {
	Name    string `json:"name"`
	Short   string `json:"shorthand,omitempty"`
	Type    string `json:"type"`
	Default string `json:"default,omitempty"`
	Usage   string `json:"usage,omitempty"`
}

func newCommandsCmd(opts *clientOptions) *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "commands",
		Short: "List available commands with their flags",
		Long:  "Introspects the command tree and lists every command with its path, flags, and description. Works offline.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries := walkCommands(cmd.Root(), "")

			if filter != "" {
				needle := strings.ToLower(filter)
				var kept []commandEntry
				for _, e := range entries {
					if strings.Contains(strings.ToLower(e.Path+" "+e.Short), needle) {
						kept = append(kept, e)
					}
				}
				entries = kept
			}

			out := cmd.OutOrStdout()
			if opts.jsonOutput() {
				return printJSON(out, entries)
			}
			for _, e := range entries {
				fmt.Fprintf(out, "%-28s %s\n", e.Path, e.Short)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", "substring search across command paths and descriptions")
	return cmd
}

// walkCommands collects the runnable commands of the cobra tree. A parent
// with its own RunE (like verify, which also has subcommands) is listed too.
func walkCommands(cmd *cobra.Command, parentPath string) []commandEntry {
	var entries []commandEntry
	for _, child := range cmd.Commands() {
		if child.Hidden || child.Name() == "help" || child.Name() == "completion" {
			continue
		}

		path := child.Name()
		if parentPath != "" {
			path = parentPath + " " + child.Name()
		}

		if child.Runnable() {
			args := ""
			if useParts := strings.Fields(child.Use); len(useParts) > 1 {
				args = strings.Join(useParts[1:], " ")
			}
			entries = append(entries, commandEntry{
				Path:  path,
				Short: child.Short,
				Args:  args,
				Flags: collectFlags(child),
			})
		}
		if child.HasSubCommands() {
			entries = append(entries, walkCommands(child, path)...)
		}
	}
	return entries
}

func collectFlags(cmd *cobra.Command) []flagEntry {
	var flags []flagEntry
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Hidden || f.Name == "help" {
			return
		}
		flags = append(flags, flagEntry{
			Name:    f.Name,
			Short:   f.Shorthand,
			Type:    f.Value.Type(),
			Default: f.DefValue,
			Usage:   f.Usage,
		})
	})
	return flags
}
