package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/perts/copilot/internal/core"
	"github.com/perts/copilot/pkg/models"
	"github.com/spf13/cobra"
)

var cycleCmd = &cobra.Command{
	Use:   "cycle",
	Short: "Manage the team's cycles",
	Long: `Manage the dated rounds of data collection the team runs.

Cycle ids may be given in full (Cycle_...) or without the prefix.`,
}

func requireCycleMgr() (string, error) {
	if CycleMgr == nil {
		return "", fmt.Errorf("cycle manager not initialized")
	}
	return currentTeam()
}

var cycleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cycles in order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		teamID, err := requireCycleMgr()
		if err != nil {
			return err
		}
		cycles, err := CycleMgr.ListCycles(teamID)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(cycles) == 0 {
			fmt.Fprintln(out, "No cycles.")
			return nil
		}

		current, err := CycleMgr.CurrentCycle(teamID)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  %-3s %-44s %-10s %-10s %s\n", "#", "UID", "START", "END", "EXTENDED")
		for _, c := range cycles {
			mark := " "
			if current != nil && current.UID == c.UID {
				mark = currentStyle.Render("*")
			}
			fmt.Fprintf(out, "%s %-3d %-44s %-10s %-10s %s\n", mark, c.Ordinal, c.UID,
				dateOrDash(c.StartDate), dateOrDash(c.EndDate), dateOrDash(c.ExtendedEndDate))
		}
		return nil
	},
}

var cycleInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the team's initial cycles",
	Long: `Create the program's minimum number of undated cycles, or a single
school-year cycle when the program does not use cycles.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		teamID, err := requireCycleMgr()
		if err != nil {
			return err
		}
		existing, err := CycleMgr.ListCycles(teamID)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return fmt.Errorf("team %s already has %d cycle(s)", teamID, len(existing))
		}
		created, err := CycleMgr.CreateForTeam(teamID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %d cycle(s).\n", len(created))
		for _, c := range created {
			printCycle(cmd.OutOrStdout(), c)
		}
		return nil
	},
}

var cycleAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Append an undated cycle",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		teamID, err := requireCycleMgr()
		if err != nil {
			return err
		}
		c, err := CycleMgr.AddCycle(teamID)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Added cycle:")
		printCycle(cmd.OutOrStdout(), *c)
		return nil
	},
}

var cycleRemoveCmd = &cobra.Command{
	Use:   "remove <cycle-id>",
	Short: "Remove a cycle and renumber the rest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		teamID, err := requireCycleMgr()
		if err != nil {
			return err
		}
		uid := core.LongUID("Cycle", args[0])
		if err := CycleMgr.RemoveCycle(teamID, uid); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s.\n", uid)
		return nil
	},
}

var cycleDatesClear bool

var cycleDatesCmd = &cobra.Command{
	Use:   "dates <cycle-id> [start end]",
	Short: "Set a cycle's start and end dates",
	Long: `Set a cycle's dates (YYYY-MM-DD). Cycles are reordered by start date and
each cycle's extended end date is recomputed. Use --clear to remove both
dates.

The dates are rejected when the cycle is too short, ends before it starts,
or overlaps another cycle.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if cycleDatesClear {
			return cobra.ExactArgs(1)(cmd, args)
		}
		return cobra.ExactArgs(3)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		teamID, err := requireCycleMgr()
		if err != nil {
			return err
		}
		uid := core.LongUID("Cycle", args[0])

		var start, end *time.Time
		if !cycleDatesClear {
			s, err := time.Parse(time.DateOnly, args[1])
			if err != nil {
				return fmt.Errorf("parsing start date: %w", err)
			}
			e, err := time.Parse(time.DateOnly, args[2])
			if err != nil {
				return fmt.Errorf("parsing end date: %w", err)
			}
			start, end = &s, &e
		}

		c, err := CycleMgr.SetDates(teamID, uid, start, end)
		if err != nil {
			return err
		}
		printCycle(cmd.OutOrStdout(), *c)
		return nil
	},
}

var cycleSuggestCmd = &cobra.Command{
	Use:   "suggest <cycle-id>",
	Short: "Fill in default dates for an undated cycle",
	Long: `Propose and save a two week, Monday to Friday date range for a cycle,
based on the dates of its neighbours. Nothing is saved when no sensible
range exists; set the dates by hand with "copilot cycle dates".`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		teamID, err := requireCycleMgr()
		if err != nil {
			return err
		}
		uid := core.LongUID("Cycle", args[0])
		c, err := CycleMgr.GetCycle(teamID, uid)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if c.HasDates() {
			fmt.Fprintf(out, "%s already has dates %s to %s.\n", uid, dateOrDash(c.StartDate), dateOrDash(c.EndDate))
			return nil
		}

		p, err := CycleMgr.SuggestDates(teamID, uid)
		if err != nil {
			return err
		}
		if p.Empty() {
			fmt.Fprintln(out, "No dates proposed; set them with \"copilot cycle dates\".")
			return nil
		}
		fmt.Fprintf(out, "Scheduled %s: %s to %s\n", uid, p.Start.Format(time.DateOnly), p.End.Format(time.DateOnly))
		return nil
	},
}

var cycleAdvanceCmd = &cobra.Command{
	Use:   "advance <cycle-id>",
	Short: "Mark a cycle complete and move to the next one",
	Long: `Mark the cycle's step complete and show the next cycle. A new cycle is
added when this was the last one.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		teamID, err := requireCycleMgr()
		if err != nil {
			return err
		}
		if ResponseMgr == nil {
			return fmt.Errorf("response manager not initialized")
		}
		next, err := core.CompleteAndAdvance(CycleMgr, ResponseMgr, teamID, core.LongUID("Cycle", args[0]))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Next cycle:")
		printCycle(cmd.OutOrStdout(), *next)
		return nil
	},
}

var cycleCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show the cycle running today",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		teamID, err := requireCycleMgr()
		if err != nil {
			return err
		}
		c, err := CycleMgr.CurrentCycle(teamID)
		if err != nil {
			return err
		}
		if c == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "No cycle is running today.")
			return nil
		}
		printCycle(cmd.OutOrStdout(), *c)
		return nil
	},
}

func printCycle(w io.Writer, c models.Cycle) {
	fmt.Fprintf(w, "  Cycle %d  %s\n", c.Ordinal, c.UID)
	fmt.Fprintf(w, "    dates:    %s to %s\n", dateOrDash(c.StartDate), dateOrDash(c.EndDate))
	if c.ExtendedEndDate != nil {
		fmt.Fprintf(w, "    extended: %s\n", c.ExtendedEndDate.Format(time.DateOnly))
	}
}

func dateOrDash(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.DateOnly)
}

func init() {
	cycleDatesCmd.Flags().BoolVar(&cycleDatesClear, "clear", false, "Remove the cycle's dates")

	cycleCmd.AddCommand(cycleListCmd)
	cycleCmd.AddCommand(cycleInitCmd)
	cycleCmd.AddCommand(cycleAddCmd)
	cycleCmd.AddCommand(cycleRemoveCmd)
	cycleCmd.AddCommand(cycleDatesCmd)
	cycleCmd.AddCommand(cycleSuggestCmd)
	cycleCmd.AddCommand(cycleAdvanceCmd)
	cycleCmd.AddCommand(cycleCurrentCmd)
	rootCmd.AddCommand(cycleCmd)
}
