package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/perts/copilot/internal/observability"
	"github.com/spf13/cobra"
)

var (
	metricsJSON    bool
	metricsSince   string
	metricsAllTeam bool
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Display cycle and response metrics",
	Long: `Display counts derived from the event log: cycles created, removed and
scheduled, responses saved and completed, save conflicts and navigation
redirects.

Metrics cover the selected team unless --all-teams is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if MetricsCalc == nil {
			return fmt.Errorf("metrics calculator not initialized (observability may be disabled)")
		}

		sinceTime, err := parseSinceDuration(metricsSince)
		if err != nil {
			return fmt.Errorf("parsing --since: %w", err)
		}

		filter := observability.EventFilter{Since: &sinceTime}
		if !metricsAllTeam {
			if filter.TeamID, err = currentTeam(); err != nil {
				return err
			}
		}

		metrics, err := MetricsCalc.Calculate(filter)
		if err != nil {
			return fmt.Errorf("calculating metrics: %w", err)
		}

		out := cmd.OutOrStdout()
		if metricsJSON {
			data, err := json.MarshalIndent(metrics, "", "  ")
			if err != nil {
				return fmt.Errorf("formatting metrics as JSON: %w", err)
			}
			fmt.Fprintln(out, string(data))
			return nil
		}

		printMetrics(out, metrics, sinceTime)
		return nil
	},
}

func printMetrics(out io.Writer, metrics *observability.Metrics, since time.Time) {
	fmt.Fprintf(out, "Metrics (since %s)\n\n", since.Format(time.DateOnly))
	fmt.Fprintf(out, "  %-24s %d\n", "Events recorded:", metrics.EventCount)
	fmt.Fprintf(out, "  %-24s %d\n", "Cycles created:", metrics.CyclesCreated)
	fmt.Fprintf(out, "  %-24s %d\n", "Cycles removed:", metrics.CyclesRemoved)
	fmt.Fprintf(out, "  %-24s %d\n", "Cycle dates set:", metrics.CycleDatesSet)
	fmt.Fprintf(out, "  %-24s %d\n", "Responses saved:", metrics.ResponsesSaved)
	fmt.Fprintf(out, "  %-24s %d\n", "Modules completed:", metrics.ModulesCompleted)
	fmt.Fprintf(out, "  %-24s %d (%.0f%%)\n", "Save conflicts:", metrics.Conflicts, metrics.ConflictRate()*100)
	fmt.Fprintf(out, "  %-24s %d\n", "Redirects:", metrics.Redirects)

	printCounts(out, "Responses by module", metrics.ResponsesByModule)
	if len(metrics.EventsByTeam) > 1 {
		printCounts(out, "Events by team", metrics.EventsByTeam)
	}

	if metrics.OldestEvent != nil {
		fmt.Fprintf(out, "\n  %-24s %s\n", "Oldest event:", metrics.OldestEvent.Format(time.RFC3339))
	}
	if metrics.NewestEvent != nil {
		fmt.Fprintf(out, "  %-24s %s\n", "Newest event:", metrics.NewestEvent.Format(time.RFC3339))
	}
}

func printCounts(out io.Writer, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(out, "\n  %s:\n", title)
	for _, k := range keys {
		fmt.Fprintf(out, "    %-20s %d\n", k+":", counts[k])
	}
}

// parseSinceDuration parses a human-friendly duration string like "7d", "30d",
// or "24h" and returns the corresponding time in the past.
func parseSinceDuration(s string) (time.Time, error) {
	now := time.Now().UTC()
	s = strings.TrimSpace(s)
	if s == "" {
		return now.AddDate(0, 0, -7), nil
	}

	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid day duration %q", s)
		}
		return now.AddDate(0, 0, -days), nil
	}

	if strings.HasSuffix(s, "h") {
		hours, err := strconv.Atoi(strings.TrimSuffix(s, "h"))
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid hour duration %q", s)
		}
		return now.Add(-time.Duration(hours) * time.Hour), nil
	}

	return time.Time{}, fmt.Errorf("unsupported duration format %q (use e.g. 7d, 30d, 24h)", s)
}

func init() {
	metricsCmd.Flags().BoolVar(&metricsJSON, "json", false, "Output metrics as JSON")
	metricsCmd.Flags().StringVar(&metricsSince, "since", "30d", "Time window for metrics (e.g. 7d, 30d, 24h)")
	metricsCmd.Flags().BoolVar(&metricsAllTeam, "all-teams", false, "Include every team's events")
	rootCmd.AddCommand(metricsCmd)
}
