package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <project>",
		Short: "Show a project's index status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			status, err := a.indexer.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Project:        %s\n", status.Project)
			fmt.Fprintf(out, "Collection:     %s\n", status.Collection)
			fmt.Fprintf(out, "Files tracked:  %d\n", status.FilesTracked)
			fmt.Fprintf(out, "Total indexed:  %d\n", status.TotalIndexed)
			fmt.Fprintf(out, "Vector count:   %d\n", status.VectorCount)
			return nil
		},
	}
}
