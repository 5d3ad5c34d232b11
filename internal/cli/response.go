package cli

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/perts/copilot/internal/core"
	"github.com/perts/copilot/pkg/models"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var responseCmd = &cobra.Command{
	Use:   "response",
	Short: "Record and inspect module responses",
}

var (
	responseType   string
	responseUser   string
	responsePage   int
	responsePages  int
	responseValues map[string]string
	responseForce  bool
	responseSince  string
)

var responseSaveCmd = &cobra.Command{
	Use:   "save <step> <module>",
	Short: "Save answers to a module",
	Long: `Save answers to a module of a step. The step is a single step label or
a cycle id. Values are given as --set key=value and parsed as YAML
scalars, so numbers and booleans keep their type.

Progress only moves forward. For paged modules pass --page; the final page
completes the module.

Pass --since with the time the answers were loaded, as printed by
"response show". A save is rejected when another session changed one of
the same answers after that time; re-run with --force to overwrite them.
Without --since the save is based on the answers stored now.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if ResponseMgr == nil {
			return fmt.Errorf("response manager not initialized")
		}
		tc, err := loadTeam(cmd.Context())
		if err != nil {
			return err
		}
		step, err := findStep(tc, args[0])
		if err != nil {
			return err
		}
		task, err := findModule(tc, step, args[1])
		if err != nil {
			return err
		}

		typ := models.ResponseType(responseType)
		switch typ {
		case models.ResponseTypeUser, models.ResponseTypeTeam, models.ResponseTypeCycle:
		default:
			return fmt.Errorf("unknown response type %q: must be User, Team or Cycle", responseType)
		}
		if typ == models.ResponseTypeUser && responseUser == "" {
			return fmt.Errorf("--user is required for User responses")
		}

		req := core.SaveRequest{
			Type:        typ,
			UserID:      responseUser,
			TeamID:      tc.TeamID,
			ParentID:    step.ParentLabel,
			ModuleLabel: task.Label,
			Force:       responseForce,
		}
		if responsePage > 0 {
			req.Page = responsePage
			req.TotalPages = responsePages
			if req.TotalPages == 0 {
				req.TotalPages = task.Pages
			}
		}

		values, err := parseValues(responseValues)
		if err != nil {
			return err
		}
		previous, err := ResponseMgr.GetResponse(models.ResponseKey{
			Type:        typ,
			UserID:      req.UserID,
			TeamID:      req.TeamID,
			ParentID:    req.ParentID,
			ModuleLabel: req.ModuleLabel,
		})
		if err != nil {
			return err
		}
		var prevBody map[string]models.BodyValue
		if previous != nil {
			prevBody = previous.Body
		}
		if responseSince != "" {
			loaded, err := time.Parse(time.RFC3339, responseSince)
			if err != nil {
				return fmt.Errorf("parsing --since: %w", err)
			}
			req.Body = core.FormValuesLoadedAt(values, prevBody, loaded)
		} else {
			req.Body = core.FormValuesToBody(values, prevBody)
		}

		resp, err := ResponseMgr.SaveResponse(req)
		if err != nil {
			return err
		}
		printResponse(cmd.OutOrStdout(), *resp)
		return nil
	},
}

var responseShowCmd = &cobra.Command{
	Use:   "show [step]",
	Short: "Show recorded responses",
	Long:  `Show the team's responses, optionally only those of one step.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tc, err := loadTeam(cmd.Context())
		if err != nil {
			return err
		}
		parent := ""
		if len(args) == 1 {
			step, err := findStep(tc, args[0])
			if err != nil {
				return err
			}
			parent = step.ParentLabel
		}

		out := cmd.OutOrStdout()
		shown := 0
		for _, r := range tc.Responses {
			if parent != "" && r.ParentID != parent {
				continue
			}
			printResponse(out, r)
			shown++
		}
		if shown == 0 {
			fmt.Fprintln(out, "No responses.")
		}
		return nil
	},
}

// findStep resolves a step label or cycle id, short or long, against the
// team's display steps.
func findStep(tc *core.TeamContext, key string) (models.DisplayStep, error) {
	steps := tc.Navigator.Steps()
	if i, ok := core.ResolveStepForRoute(steps, key); ok {
		return steps[i], nil
	}
	if i, ok := core.ResolveStepForRoute(steps, core.LongUID("Cycle", key)); ok {
		return steps[i], nil
	}
	return models.DisplayStep{}, fmt.Errorf("unknown step %q", key)
}

func findModule(tc *core.TeamContext, step models.DisplayStep, label string) (models.TaskDefinition, error) {
	def := tc.Program.Steps[step.DefinitionIndex]
	for _, t := range def.Tasks {
		if t.Type == models.TaskTypeModule && t.Label == label {
			return t, nil
		}
	}
	return models.TaskDefinition{}, fmt.Errorf("step %s has no module %q", step.Name, label)
}

// parseValues decodes each value as a YAML scalar.
func parseValues(raw map[string]string) (map[string]any, error) {
	values := make(map[string]any, len(raw))
	for k, s := range raw {
		var v any
		if err := yaml.Unmarshal([]byte(s), &v); err != nil {
			return nil, fmt.Errorf("parsing value of %s: %w", k, err)
		}
		values[k] = v
	}
	return values, nil
}

func printResponse(w io.Writer, r models.Response) {
	who := string(r.Type)
	if r.UserID != "" {
		who += " " + r.UserID
	}
	fmt.Fprintf(w, "%s %s / %s (%s)\n", progressLabel(r.Progress), r.ParentID, r.ModuleLabel, who)
	if r.Page > 0 {
		fmt.Fprintf(w, "      page %d\n", r.Page)
	}
	keys := make([]string, 0, len(r.Body))
	for k := range r.Body {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		bv := r.Body[k]
		modified := "-"
		if bv.Modified != nil {
			modified = bv.Modified.Format(time.RFC3339Nano)
		}
		fmt.Fprintf(w, "      %s = %v  %s\n", k, bv.Value, pendingStyle.Render(modified))
	}
}

func init() {
	responseSaveCmd.Flags().StringVar(&responseType, "type", string(models.ResponseTypeTeam), "Response scope: User, Team or Cycle")
	responseSaveCmd.Flags().StringVar(&responseUser, "user", "", "User id for User responses")
	responseSaveCmd.Flags().IntVar(&responsePage, "page", 0, "Page submitted within a paged module")
	responseSaveCmd.Flags().IntVar(&responsePages, "pages", 0, "Total pages (defaults to the module's page count)")
	responseSaveCmd.Flags().StringToStringVar(&responseValues, "set", nil, "Answer as key=value (repeatable)")
	responseSaveCmd.Flags().BoolVar(&responseForce, "force", false, "Overwrite answers changed by another session")
	responseSaveCmd.Flags().StringVar(&responseSince, "since", "", "Time the answers were loaded (RFC 3339); later changes are conflicts")

	responseCmd.AddCommand(responseSaveCmd)
	responseCmd.AddCommand(responseShowCmd)
	rootCmd.AddCommand(responseCmd)
}
