// Package mcp provides an MCP (Model Context Protocol) server that exposes
// step navigation and cycle scheduling as tools for AI assistants.
package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/perts/copilot/internal/core"
	"github.com/perts/copilot/internal/observability"
	"github.com/perts/copilot/pkg/models"
)

// TeamLoader loads one team's program state.
type TeamLoader interface {
	Load(ctx context.Context, teamID string) (*core.TeamContext, error)
}

// Deps are the services the server exposes. Metrics and Events may be nil.
type Deps struct {
	Loader  TeamLoader
	Cycles  core.CycleManager
	Metrics observability.MetricsCalculator
	Events  core.EventLogger
	Clock   core.Clock
	// DefaultTeam is used when a tool call names no team.
	DefaultTeam string
}

// Server wraps copilot services and exposes them as MCP tools.
type Server struct {
	server *gomcp.Server
	deps   Deps
}

// NewServer creates a new MCP server over deps.
func NewServer(deps Deps, version string) *Server {
	if version == "" {
		version = "dev"
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}

	s := &Server{deps: deps}
	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "copilot", Version: version},
		nil,
	)
	s.registerTools()
	return s
}

// Run serves MCP on stdio, blocking until the client disconnects or the
// context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type teamInput struct {
	TeamID string `json:"team_id,omitempty" jsonschema:"team id; defaults to the configured team"`
}

type stepOutput struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	ParentLabel string `json:"parent_label"`
	Ordinal     int    `json:"ordinal,omitempty"`
	Route       string `json:"route"`
	Complete    bool   `json:"complete"`
	Default     bool   `json:"default"`
}

type listStepsOutput struct {
	Steps        []stepOutput `json:"steps"`
	DefaultRoute string       `json:"default_route,omitempty"`
}

type navigateInput struct {
	TeamID string `json:"team_id,omitempty" jsonschema:"team id; defaults to the configured team"`
	Route  string `json:"route,omitempty" jsonschema:"a step key or a full /teams/.../steps route; empty resolves the default step"`
}

type navigateOutput struct {
	Redirect string      `json:"redirect,omitempty"`
	Step     *stepOutput `json:"step,omitempty"`
	Previous string      `json:"previous,omitempty"`
	Next     string      `json:"next,omitempty"`
}

type suggestInput struct {
	TeamID  string `json:"team_id,omitempty" jsonschema:"team id; defaults to the configured team"`
	CycleID string `json:"cycle_id" jsonschema:"the cycle to schedule, with or without the Cycle_ prefix"`
	Apply   bool   `json:"apply,omitempty" jsonschema:"save the proposal to the cycle"`
}

type suggestOutput struct {
	CycleID  string `json:"cycle_id"`
	Proposed bool   `json:"proposed"`
	Start    string `json:"start,omitempty"`
	End      string `json:"end,omitempty"`
	Applied  bool   `json:"applied"`
}

type cycleOutput struct {
	UID             string `json:"uid"`
	Ordinal         int    `json:"ordinal"`
	StartDate       string `json:"start_date,omitempty"`
	EndDate         string `json:"end_date,omitempty"`
	ExtendedEndDate string `json:"extended_end_date,omitempty"`
	Current         bool   `json:"current"`
}

type listCyclesOutput struct {
	Cycles []cycleOutput `json:"cycles"`
	Count  int           `json:"count"`
}

type getMetricsInput struct {
	TeamID string `json:"team_id,omitempty" jsonschema:"limit to one team; empty covers every team"`
	Since  string `json:"since,omitempty" jsonschema:"time window for metrics (e.g. 7d, 30d, 24h). Defaults to 30d."`
}

type metricsOutput struct {
	CyclesCreated     int            `json:"cycles_created"`
	CyclesRemoved     int            `json:"cycles_removed"`
	CycleDatesSet     int            `json:"cycle_dates_set"`
	ResponsesSaved    int            `json:"responses_saved"`
	ModulesCompleted  int            `json:"modules_completed"`
	Conflicts         int            `json:"conflicts"`
	Redirects         int            `json:"redirects"`
	ResponsesByModule map[string]int `json:"responses_by_module"`
	EventCount        int            `json:"event_count"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_steps",
		Description: "List a team's display steps in order, with completion and the default step marked.",
	}, s.handleListSteps)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "navigate",
		Description: "Resolve a step route for a team. Returns the step with previous/next routes, or a redirect when the route is empty or names a missing step.",
	}, s.handleNavigate)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "suggest_cycle_dates",
		Description: "Propose a two week Monday to Friday date range for a cycle based on its neighbours. Set apply to save it.",
	}, s.handleSuggest)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_cycles",
		Description: "List a team's cycles in order with their dates. The cycle running today is marked current.",
	}, s.handleListCycles)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_metrics",
		Description: "Get counts from the event log: cycles created and scheduled, responses saved, conflicts and redirects.",
	}, s.handleGetMetrics)
}

// --- Tool handlers ---

func (s *Server) handleListSteps(ctx context.Context, _ *gomcp.CallToolRequest, input teamInput) (*gomcp.CallToolResult, listStepsOutput, error) {
	tc, errRes := s.load(ctx, input.TeamID)
	if errRes != nil {
		return errRes, listStepsOutput{}, nil
	}

	v, err := core.BuildView(models.DisplayMenu, tc, "")
	if err != nil {
		return errorResult(fmt.Sprintf("listing steps: %s", err)), listStepsOutput{}, nil
	}
	menu := v.(core.MenuView)

	out := listStepsOutput{Steps: make([]stepOutput, len(menu.Steps))}
	for i, st := range menu.Steps {
		out.Steps[i] = toStepOutput(st)
		if st.Default {
			out.DefaultRoute = st.Route
		}
	}
	return nil, out, nil
}

func (s *Server) handleNavigate(ctx context.Context, _ *gomcp.CallToolRequest, input navigateInput) (*gomcp.CallToolResult, navigateOutput, error) {
	tc, errRes := s.load(ctx, input.TeamID)
	if errRes != nil {
		return errRes, navigateOutput{}, nil
	}

	var nav core.Navigation
	if strings.HasPrefix(input.Route, "/") {
		var err error
		if nav, err = tc.Navigator.NavigatePath(input.Route); err != nil {
			return errorResult(err.Error()), navigateOutput{}, nil
		}
	} else {
		nav = tc.Navigator.Navigate(input.Route)
	}

	if nav.Redirected() {
		if s.deps.Events != nil {
			_ = s.deps.Events.LogEvent(core.EventNavigationRedirect, map[string]any{
				"team_id": tc.TeamID,
				"from":    input.Route,
				"to":      nav.Redirect,
			})
		}
		return nil, navigateOutput{Redirect: nav.Redirect}, nil
	}
	if nav.Step == nil {
		return errorResult("team has no steps"), navigateOutput{}, nil
	}

	def, hasDefault := tc.Navigator.Default()
	st := core.StepStatus{
		Step:     *nav.Step,
		Route:    core.DisplayStepRoute(tc.TeamID, *nav.Step),
		Complete: core.StepComplete(tc.Responses, *nav.Step),
		Default:  hasDefault && def.ParentLabel == nav.Step.ParentLabel,
	}
	step := toStepOutput(st)
	return nil, navigateOutput{Step: &step, Previous: nav.Previous, Next: nav.Next}, nil
}

func (s *Server) handleSuggest(_ context.Context, _ *gomcp.CallToolRequest, input suggestInput) (*gomcp.CallToolResult, suggestOutput, error) {
	if s.deps.Cycles == nil {
		return errorResult("cycle manager not available"), suggestOutput{}, nil
	}
	if input.CycleID == "" {
		return errorResult("cycle_id is required"), suggestOutput{}, nil
	}
	teamID, errRes := s.team(input.TeamID)
	if errRes != nil {
		return errRes, suggestOutput{}, nil
	}
	uid := core.LongUID("Cycle", input.CycleID)
	out := suggestOutput{CycleID: uid}

	var proposal core.DateProposal
	if input.Apply {
		var err error
		if proposal, err = s.deps.Cycles.SuggestDates(teamID, uid); err != nil {
			return errorResult(fmt.Sprintf("scheduling cycle %s: %s", uid, err)), suggestOutput{}, nil
		}
		out.Applied = !proposal.Empty()
	} else {
		cycle, err := s.deps.Cycles.GetCycle(teamID, uid)
		if err != nil {
			return errorResult(err.Error()), suggestOutput{}, nil
		}
		cycles, err := s.deps.Cycles.ListCycles(teamID)
		if err != nil {
			return errorResult(err.Error()), suggestOutput{}, nil
		}
		proposal = core.TwoWeeksMondayToFriday(*cycle, cycles, s.deps.Clock())
	}

	if !proposal.Empty() {
		out.Proposed = true
		out.Start = proposal.Start.Format(time.DateOnly)
		out.End = proposal.End.Format(time.DateOnly)
	}
	return nil, out, nil
}

func (s *Server) handleListCycles(_ context.Context, _ *gomcp.CallToolRequest, input teamInput) (*gomcp.CallToolResult, listCyclesOutput, error) {
	if s.deps.Cycles == nil {
		return errorResult("cycle manager not available"), listCyclesOutput{}, nil
	}
	teamID, errRes := s.team(input.TeamID)
	if errRes != nil {
		return errRes, listCyclesOutput{}, nil
	}

	cycles, err := s.deps.Cycles.ListCycles(teamID)
	if err != nil {
		return errorResult(fmt.Sprintf("listing cycles: %s", err)), listCyclesOutput{}, nil
	}
	current, err := s.deps.Cycles.CurrentCycle(teamID)
	if err != nil {
		return errorResult(fmt.Sprintf("finding current cycle: %s", err)), listCyclesOutput{}, nil
	}

	out := listCyclesOutput{Cycles: make([]cycleOutput, len(cycles)), Count: len(cycles)}
	for i, c := range cycles {
		out.Cycles[i] = cycleOutput{
			UID:             c.UID,
			Ordinal:         c.Ordinal,
			StartDate:       formatDate(c.StartDate),
			EndDate:         formatDate(c.EndDate),
			ExtendedEndDate: formatDate(c.ExtendedEndDate),
			Current:         current != nil && current.UID == c.UID,
		}
	}
	return nil, out, nil
}

func (s *Server) handleGetMetrics(_ context.Context, _ *gomcp.CallToolRequest, input getMetricsInput) (*gomcp.CallToolResult, metricsOutput, error) {
	if s.deps.Metrics == nil {
		return errorResult("metrics calculator not available (observability may be disabled)"), emptyMetricsOutput(), nil
	}

	sinceStr := input.Since
	if sinceStr == "" {
		sinceStr = "30d"
	}
	sinceTime, err := parseSince(sinceStr)
	if err != nil {
		return errorResult(fmt.Sprintf("parsing since duration: %s", err)), emptyMetricsOutput(), nil
	}

	metrics, err := s.deps.Metrics.Calculate(observability.EventFilter{Since: &sinceTime, TeamID: input.TeamID})
	if err != nil {
		return errorResult(fmt.Sprintf("calculating metrics: %s", err)), emptyMetricsOutput(), nil
	}

	out := metricsOutput{
		CyclesCreated:     metrics.CyclesCreated,
		CyclesRemoved:     metrics.CyclesRemoved,
		CycleDatesSet:     metrics.CycleDatesSet,
		ResponsesSaved:    metrics.ResponsesSaved,
		ModulesCompleted:  metrics.ModulesCompleted,
		Conflicts:         metrics.Conflicts,
		Redirects:         metrics.Redirects,
		ResponsesByModule: metrics.ResponsesByModule,
		EventCount:        metrics.EventCount,
	}
	if out.ResponsesByModule == nil {
		out.ResponsesByModule = make(map[string]int)
	}
	return nil, out, nil
}

// --- Helpers ---

func (s *Server) team(teamID string) (string, *gomcp.CallToolResult) {
	if teamID == "" {
		teamID = s.deps.DefaultTeam
	}
	if teamID == "" {
		return "", errorResult("team_id is required: no team is configured")
	}
	return teamID, nil
}

func (s *Server) load(ctx context.Context, teamID string) (*core.TeamContext, *gomcp.CallToolResult) {
	if s.deps.Loader == nil {
		return nil, errorResult("loader not available")
	}
	teamID, errRes := s.team(teamID)
	if errRes != nil {
		return nil, errRes
	}
	tc, err := s.deps.Loader.Load(ctx, teamID)
	if err != nil {
		return nil, errorResult(fmt.Sprintf("loading team %s: %s", teamID, err))
	}
	return tc, nil
}

func toStepOutput(st core.StepStatus) stepOutput {
	return stepOutput{
		Name:        st.Step.Name,
		Type:        string(st.Step.Type),
		ParentLabel: st.Step.ParentLabel,
		Ordinal:     st.Step.Ordinal,
		Route:       st.Route,
		Complete:    st.Complete,
		Default:     st.Default,
	}
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.DateOnly)
}

func emptyMetricsOutput() metricsOutput {
	return metricsOutput{ResponsesByModule: make(map[string]int)}
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}

// parseSince parses a human-friendly duration string like "7d", "30d", or "24h"
// into the corresponding time in the past.
func parseSince(s string) (time.Time, error) {
	now := time.Now().UTC()

	if len(s) < 2 {
		return time.Time{}, fmt.Errorf("invalid duration %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]
	var num int
	if _, err := fmt.Sscanf(numStr, "%d", &num); err != nil {
		return time.Time{}, fmt.Errorf("invalid duration %q: %w", s, err)
	}

	switch suffix {
	case 'd':
		return now.AddDate(0, 0, -num), nil
	case 'h':
		return now.Add(-time.Duration(num) * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported duration suffix %q (use d or h)", string(suffix))
	}
}
