package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newIndexCmd() *cobra.Command {
	var full bool

	cmd := &cobra.Command{
		Use:   "index <project>",
		Short: "Index new conversation log content for a project",
		Long: `Process any log lines appended since the last run and write their
embeddings to the vector store. With --full, the project's vectors are
dropped and every log file is rebuilt from the start.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			summary, err := a.indexer.Index(cmd.Context(), args[0], full)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Project:          %s\n", summary.Project)
			fmt.Fprintf(out, "Files processed:  %d\n", summary.FilesProcessed)
			fmt.Fprintf(out, "Records indexed:  %d\n", summary.RecordsIndexed)
			fmt.Fprintf(out, "Records skipped:  %d\n", summary.RecordsSkipped)
			fmt.Fprintf(out, "Duration:         %s\n", summary.Duration.Round(time.Millisecond))
			for _, e := range summary.Errors {
				fmt.Fprintf(out, "Error: %s\n", e)
			}
			if len(summary.Errors) > 0 {
				return fmt.Errorf("%d file(s) failed", len(summary.Errors))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "Rebuild the project's index from scratch")
	return cmd
}
