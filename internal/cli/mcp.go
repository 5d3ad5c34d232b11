package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	copilotmcp "github.com/perts/copilot/internal/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  "Commands for running the copilot MCP (Model Context Protocol) server.",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the copilot MCP server on stdio",
	Long: `Start the copilot MCP server on stdio transport.

The server exposes step navigation as MCP tools that AI assistants can
call: list_steps, navigate, suggest_cycle_dates, list_cycles, get_metrics.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Loader == nil || CycleMgr == nil {
			return fmt.Errorf("copilot services not initialized")
		}

		team := teamFlag
		if team == "" {
			team = TeamID
		}
		srv := copilotmcp.NewServer(copilotmcp.Deps{
			Loader:      Loader,
			Cycles:      CycleMgr,
			Metrics:     MetricsCalc,
			Events:      Events,
			Clock:       Clock,
			DefaultTeam: team,
		}, appVersion)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("running MCP server: %w", err)
		}

		return nil
	},
}

func init() {
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}
