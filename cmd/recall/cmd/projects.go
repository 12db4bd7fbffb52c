package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/recallmcp/recall/internal/state"
)

func newProjectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List projects with conversation logs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			projects, err := a.indexer.Projects()
			if err != nil {
				return err
			}

			indexed, err := a.states.ListProjects()
			if err != nil {
				return err
			}
			// State directories hold sanitized names; compare on that form.
			indexedSet := make(map[string]bool, len(indexed))
			for _, p := range indexed {
				indexedSet[state.Sanitize(p)] = true
			}

			out := cmd.OutOrStdout()
			if len(projects) == 0 {
				fmt.Fprintln(out, "No projects found.")
				return nil
			}
			for _, p := range projects {
				marker := " "
				if indexedSet[state.Sanitize(p)] {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %s\n", marker, p)
			}
			fmt.Fprintln(out, "\n* indexed")
			return nil
		},
	}
}
