package cli

import (
	"fmt"
	"os"

	"github.com/perts/copilot/internal/core"
	"github.com/perts/copilot/pkg/models"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var programCmd = &cobra.Command{
	Use:   "program",
	Short: "Inspect program definitions",
}

var programListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available programs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Programs == nil {
			return fmt.Errorf("program source not initialized")
		}
		programs, err := Programs.ListPrograms()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, p := range programs {
			mark := " "
			if Program != nil && Program.Label == p.Label {
				mark = currentStyle.Render("*")
			}
			fmt.Fprintf(out, "%s %-10s %s\n", mark, p.Label, p.Name)
		}
		return nil
	},
}

var programShowCmd = &cobra.Command{
	Use:   "show [label]",
	Short: "Show a program's steps and cycle rules",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Programs == nil {
			return fmt.Errorf("program source not initialized")
		}
		var p *models.Program
		if len(args) == 1 {
			var err error
			if p, err = Programs.GetProgram(args[0]); err != nil {
				return err
			}
		} else if Program != nil {
			p = Program
		} else {
			return fmt.Errorf("no program configured: pass a label")
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, titleStyle.Render(p.Name))
		fmt.Fprintf(out, "label: %s\n", p.Label)
		if p.UseCycles {
			maxLabel := "unlimited"
			if p.MaxCycles > 0 {
				maxLabel = fmt.Sprint(p.MaxCycles)
			}
			fmt.Fprintf(out, "cycles: %d to %s, at least %d weekdays each\n", p.MinCycles, maxLabel, p.MinCycleWeekdays)
		} else {
			fmt.Fprintln(out, "cycles: one per school year")
		}
		for i, s := range p.Steps {
			name := s.Name
			if s.Type == models.StepTypeCycle {
				name = core.CycleStepName(s, 1) + ", ..."
			}
			fmt.Fprintf(out, "%2d. %-7s %s\n", i+1, s.Type, name)
			for _, t := range s.Tasks {
				extra := ""
				if t.Pages > 1 {
					extra = fmt.Sprintf(" (%d pages)", t.Pages)
				}
				fmt.Fprintf(out, "      %-7s %s%s\n", t.Type, t.Title, extra)
			}
		}
		return nil
	},
}

var programValidateCmd = &cobra.Command{
	Use:   "validate [file...]",
	Short: "Check program definitions for errors",
	Long: `Check program definitions. With no arguments every available program is
checked; otherwise the given YAML files are.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var programs []models.Program
		if len(args) == 0 {
			if Programs == nil {
				return fmt.Errorf("program source not initialized")
			}
			var err error
			if programs, err = Programs.ListPrograms(); err != nil {
				return err
			}
		}
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}
			var p models.Program
			if err := yaml.Unmarshal(data, &p); err != nil {
				return fmt.Errorf("parsing %s: %w", path, err)
			}
			programs = append(programs, p)
		}

		out := cmd.OutOrStdout()
		failed := 0
		for i := range programs {
			if err := core.ValidateProgram(&programs[i]); err != nil {
				fmt.Fprintln(out, warnStyle.Render(err.Error()))
				failed++
				continue
			}
			fmt.Fprintf(out, "%s %s\n", completeStyle.Render("ok"), programs[i].Label)
		}
		if failed > 0 {
			return fmt.Errorf("%d program(s) invalid", failed)
		}
		return nil
	},
}

func init() {
	programCmd.AddCommand(programListCmd)
	programCmd.AddCommand(programShowCmd)
	programCmd.AddCommand(programValidateCmd)
	rootCmd.AddCommand(programCmd)
}
