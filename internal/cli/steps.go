package cli

import (
	"fmt"
	"io"

	"github.com/perts/copilot/internal/core"
	"github.com/perts/copilot/pkg/models"
	"github.com/spf13/cobra"
)

// maxRedirects bounds how many redirects goto follows. Two hops cover an
// unknown step: steps root, then the default step.
const maxRedirects = 3

var stepsCmd = &cobra.Command{
	Use:   "steps",
	Short: "List the team's display steps",
	Long: `List every step the team sees, in order. Cycle steps appear once per
cycle. The step marked ">" is where the team lands by default; "x" marks
completed steps.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tc, err := loadTeam(cmd.Context())
		if err != nil {
			return err
		}
		v, err := core.BuildView(models.DisplayMenu, tc, "")
		if err != nil {
			return err
		}
		renderView(cmd.OutOrStdout(), v)
		printUndatedNotice(cmd.OutOrStdout(), tc)
		return nil
	},
}

// NoticeUndatedCycles is the settings key of the undated cycles reminder.
const NoticeUndatedCycles = "undated-cycles"

// printUndatedNotice reminds the user to schedule cycles that have no
// dates, unless the reminder was dismissed.
func printUndatedNotice(w io.Writer, tc *core.TeamContext) {
	if !tc.Program.UseCycles {
		return
	}
	if Settings != nil {
		if err := Settings.Load(); err == nil && Settings.IsDismissed(NoticeUndatedCycles) {
			return
		}
	}
	undated := 0
	for _, c := range tc.Cycles {
		if !c.HasDates() {
			undated++
		}
	}
	if undated == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, helpStyle.Render(fmt.Sprintf(
		"%d cycle(s) have no dates. Schedule them with \"copilot cycle suggest <id>\".\n"+
			"Hide this with \"copilot settings dismiss %s\".", undated, NoticeUndatedCycles)))
}

var gotoDisplay string

var gotoCmd = &cobra.Command{
	Use:   "goto [route]",
	Short: "Resolve a step route",
	Long: `Resolve a route or bare step key and show the step it lands on.

With no route the team is sent to its default step. A route naming a step
that no longer exists, such as a removed cycle, redirects to the steps root
and from there to the default step. Redirects are printed as they happen.

Examples:
  copilot goto
  copilot goto introduction
  copilot goto /teams/abc/steps/cycle/Cycle_123/Survey --display taskmodule`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		display, err := models.ParseDisplay(gotoDisplay)
		if err != nil {
			return err
		}
		tc, err := loadTeam(cmd.Context())
		if err != nil {
			return err
		}

		route := ""
		if len(args) == 1 {
			route = args[0]
		}

		out := cmd.OutOrStdout()
		v, err := resolveView(out, display, tc, route)
		if err != nil {
			return err
		}
		renderView(out, v)
		return nil
	},
}

// resolveView builds the view for route, following redirects. An empty
// route starts at the steps root.
func resolveView(out io.Writer, display models.Display, tc *core.TeamContext, route string) (core.View, error) {
	if route == "" {
		route = core.ToProgramSteps(tc.TeamID)
	}
	for hop := 0; ; hop++ {
		v, err := core.BuildView(display, tc, route)
		if err != nil {
			return nil, err
		}
		r, ok := v.(core.RedirectView)
		if !ok {
			return v, nil
		}
		if r.To == route || hop >= maxRedirects {
			return v, nil
		}
		fmt.Fprintf(out, "%s %s\n", pendingStyle.Render("redirect"), r.To)
		logRedirect(tc.TeamID, route, r.To)
		route = r.To
	}
}

func logRedirect(teamID, from, to string) {
	if Events == nil {
		return
	}
	_ = Events.LogEvent(core.EventNavigationRedirect, map[string]any{
		"team_id": teamID,
		"from":    from,
		"to":      to,
	})
}

// renderView prints any view.
func renderView(w io.Writer, v core.View) {
	switch v := v.(type) {
	case core.MenuView:
		if len(v.Steps) == 0 {
			fmt.Fprintln(w, "No steps.")
			return
		}
		for i, s := range v.Steps {
			fmt.Fprintf(w, "%s %2d. %-28s %s\n", stepMark(s), i+1, s.Step.Name, pendingStyle.Render(s.Route))
		}

	case core.TasklistView:
		fmt.Fprintln(w, headerStyle.Render(v.Step.Step.Name))
		fmt.Fprintf(w, "  route: %s\n", v.Step.Route)
		if v.Step.Complete {
			fmt.Fprintln(w, "  "+completeStyle.Render("step complete"))
		}
		for _, t := range v.Tasks {
			switch t.Task.Type {
			case models.TaskTypeModule:
				fmt.Fprintf(w, "  %s %-28s %s\n", progressLabel(t.Progress), t.Task.Title, pendingStyle.Render(t.Route))
			case models.TaskTypeLink:
				fmt.Fprintf(w, "  link %-28s %s\n", t.Task.Title, pendingStyle.Render(t.Route))
			default:
				fmt.Fprintf(w, "       %s\n", t.Task.Title)
			}
		}
		if v.Previous != "" {
			fmt.Fprintf(w, "  previous: %s\n", v.Previous)
		}
		if v.Next != "" {
			fmt.Fprintf(w, "  next:     %s\n", v.Next)
		}

	case core.TaskModuleView:
		fmt.Fprintf(w, "%s / %s\n", headerStyle.Render(v.Step.Step.Name), v.Task.Title)
		fmt.Fprintf(w, "  route: %s\n", v.Route)
		progress := 0
		if v.Response != nil {
			progress = v.Response.Progress
		}
		fmt.Fprintf(w, "  progress: %s\n", progressLabel(progress))
		if v.Task.Pages > 1 {
			fmt.Fprintf(w, "  page: %d of %d\n", v.ContinuePage, v.Task.Pages)
		}

	case core.SummaryView:
		fmt.Fprintf(w, "%d of %d steps complete\n", v.Completed, len(v.Steps))
		for _, s := range v.Steps {
			fmt.Fprintf(w, "%s %s\n", stepMark(s), s.Step.Name)
		}

	case core.RedirectView:
		fmt.Fprintf(w, "%s %s\n", warnStyle.Render("redirect"), v.To)
	}
}

func init() {
	gotoCmd.Flags().StringVar(&gotoDisplay, "display", string(models.DisplayTasklist), "Display to render: menu, tasklist, taskmodule, summary")
	rootCmd.AddCommand(stepsCmd)
	rootCmd.AddCommand(gotoCmd)
}
