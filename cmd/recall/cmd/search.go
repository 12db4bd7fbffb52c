package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/recallmcp/recall/internal/searcher"
)

func newSearchCmd() *cobra.Command {
	var project string
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Search past conversations",
		Long: `Resolve a natural-language query to pointers into the conversation logs.
With --project, that project's index is refreshed first under a bounded
budget; without it, every indexed project is searched as-is.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			resp, err := a.searcher.Search(cmd.Context(), searcher.SearchRequest{
				Query:   strings.Join(args, " "),
				Project: project,
				Limit:   limit,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if resp.IndexWarning != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", resp.IndexWarning)
			}
			if len(resp.Results) == 0 {
				fmt.Fprintln(out, "No results.")
				return nil
			}

			for i, r := range resp.Results {
				fmt.Fprintf(out, "%2d. [%.4f] %s:%d (%s)\n", i+1, r.Score, r.Payload.FilePath, r.Payload.Line, r.Payload.Role)
				preview := strings.ReplaceAll(r.Payload.Preview, "\n", " ")
				fmt.Fprintf(out, "    %s\n", preview)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "Project to search (refreshes its index first)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum results (1-50, default from config)")
	return cmd
}
