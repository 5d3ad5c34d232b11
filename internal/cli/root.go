package cli

import (
	"context"
	"fmt"

	"github.com/perts/copilot/internal/core"
	"github.com/spf13/cobra"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

var teamFlag string

var rootCmd = &cobra.Command{
	Use:   "copilot",
	Short: "Copilot - step navigation for team improvement programs",
	Long: `Copilot guides a team through a program's steps: one-off steps such as
an introduction, and a repeated step for every data collection cycle.

It resolves which step a team should be on, schedules cycle dates, and
records module progress. Data lives next to .copilotrc, or in COPILOT_HOME.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "copilot %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&teamFlag, "team", "", "Team id (overrides team_id in .copilotrc)")
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// currentTeam returns the team selected by --team or configuration.
func currentTeam() (string, error) {
	if teamFlag != "" {
		return teamFlag, nil
	}
	if TeamID != "" {
		return TeamID, nil
	}
	return "", fmt.Errorf("no team selected: set team_id in .copilotrc or pass --team")
}

// loadTeam reads the selected team's program, cycles and responses.
func loadTeam(ctx context.Context) (*core.TeamContext, error) {
	if Loader == nil {
		return nil, fmt.Errorf("loader not initialized")
	}
	teamID, err := currentTeam()
	if err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return Loader.Load(ctx, teamID)
}
