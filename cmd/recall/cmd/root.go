// Package cmd provides the CLI commands for recall.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/recallmcp/recall/internal/config"
	"github.com/recallmcp/recall/internal/vecstore"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var debugMode bool

// NewRootCmd creates the root command for the recall CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recall",
		Short: "Semantic search over your past AI conversations",
		Long: `Recall indexes append-only conversation logs into a vector store and
answers natural-language queries with pointers (file and line) back into
the original logs.

Most users run 'recall serve' once, registered as an MCP server; the
other commands exist for scripting and debugging.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate(fmt.Sprintf(
		"recall version {{.Version}}\nBuild Time: %s\nBuild Mode: %s\nSQLite Driver: %s\nVector Extension: %v\n",
		buildTime, vecstore.BuildMode, vecstore.DriverName, vecstore.VectorExtensionAvailable))

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newProjectsCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// newLogger builds the process logger. Logs always go to stderr; stdout is
// reserved for command output and, under serve, the MCP protocol.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if debugMode {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// loadConfig loads configuration from disk and environment.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	return cfg, nil
}
