package cmd

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/recallmcp/recall/internal/mcp"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		Long: `Start the MCP server. The server speaks the protocol on stdout, so all
logging goes to stderr. Register it with your assistant's MCP configuration
and use the search, reindex, index_status, and list_projects tools.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			slog.SetDefault(logger)

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			srv, err := mcp.NewServer(cfg, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger.Info("mcp server listening on stdio",
				"version", version,
				"state_dir", cfg.StateDir,
				"logs_dir", cfg.LogsDir,
				"backend", cfg.Vector.Backend)
			return srv.Serve(ctx)
		},
	}
}
