package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage dismissed notices",
	Long: `Manage notices the user has dismissed, such as the reminder to schedule
undated cycles. Settings are kept in settings.yaml in the data directory.`,
}

func requireSettings() error {
	if Settings == nil {
		return fmt.Errorf("settings store not initialized")
	}
	return Settings.Load()
}

var settingsDismissCmd = &cobra.Command{
	Use:   "dismiss <notice>",
	Short: "Dismiss a notice",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSettings(); err != nil {
			return err
		}
		now := time.Now()
		if Clock != nil {
			now = Clock()
		}
		Settings.Dismiss(args[0], now)
		if err := Settings.Save(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Dismissed %s.\n", args[0])
		return nil
	},
}

var settingsResetAll bool

var settingsResetCmd = &cobra.Command{
	Use:   "reset [notice]",
	Short: "Show a dismissed notice again",
	Args: func(cmd *cobra.Command, args []string) error {
		if settingsResetAll {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSettings(); err != nil {
			return err
		}
		key := ""
		if len(args) == 1 {
			key = args[0]
		}
		Settings.Reset(key)
		if err := Settings.Save(); err != nil {
			return err
		}
		if key == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "All notices reset.")
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Reset %s.\n", key)
		}
		return nil
	},
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List dismissed notices",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSettings(); err != nil {
			return err
		}
		keys := Settings.Dismissed()
		if len(keys) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No dismissed notices.")
			return nil
		}
		for _, k := range keys {
			fmt.Fprintln(cmd.OutOrStdout(), k)
		}
		return nil
	},
}

func init() {
	settingsResetCmd.Flags().BoolVar(&settingsResetAll, "all", false, "Reset every dismissed notice")

	settingsCmd.AddCommand(settingsDismissCmd)
	settingsCmd.AddCommand(settingsResetCmd)
	settingsCmd.AddCommand(settingsShowCmd)
	rootCmd.AddCommand(settingsCmd)
}
