package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/perts/copilot/internal/core"
	"github.com/perts/copilot/internal/observability"
	"github.com/perts/copilot/internal/storage"
	"github.com/perts/copilot/pkg/models"
)

// --- Fake implementations ---

type fakePrograms map[string]models.Program

func (f fakePrograms) GetProgram(label string) (*models.Program, error) {
	p, ok := f[label]
	if !ok {
		return nil, fmt.Errorf("program %s: %w", label, models.ErrNotFound)
	}
	return &p, nil
}

func (f fakePrograms) ListPrograms() ([]models.Program, error) {
	var out []models.Program
	for _, p := range f {
		out = append(out, p)
	}
	return out, nil
}

type fakeMetricsCalculator struct {
	metrics *observability.Metrics
	filter  observability.EventFilter
}

func (f *fakeMetricsCalculator) Calculate(filter observability.EventFilter) (*observability.Metrics, error) {
	f.filter = filter
	return f.metrics, nil
}

type recordingEvents struct {
	types []string
}

func (r *recordingEvents) LogEvent(eventType string, _ map[string]any) error {
	r.types = append(r.types, eventType)
	return nil
}

// --- Test helpers ---

const testTeam = "Team_1"

// Wednesday.
var today = time.Date(2026, time.October, 14, 0, 0, 0, 0, time.UTC)

func testProgram() models.Program {
	return models.Program{
		Label:            "pilot",
		Name:             "Pilot",
		UseCycles:        true,
		MinCycles:        2,
		MinCycleWeekdays: 5,
		Steps: []models.StepDefinition{
			{Type: models.StepTypeSingle, Label: "introduction", Name: "Introduction", Tasks: []models.TaskDefinition{
				{Label: "Welcome", Title: "Welcome", Type: models.TaskTypeModule},
			}},
			{Type: models.StepTypeCycle, Label: "cycle", Tasks: []models.TaskDefinition{
				{Label: "Survey", Title: "Survey", Type: models.TaskTypeModule, Pages: 3},
			}},
		},
	}
}

type fixture struct {
	deps      Deps
	cycles    core.CycleManager
	responses core.ResponseManager
	events    *recordingEvents
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	prog := testProgram()
	cycleStore := storage.NewCycleFileStore(dir)
	responseStore := storage.NewResponseFileStore(dir)
	clock := core.FixedClock(today)
	events := &recordingEvents{}

	f := &fixture{
		cycles:    core.NewCycleManager(&prog, cycleStore, clock, nil),
		responses: core.NewResponseManager(responseStore, clock, nil),
		events:    events,
	}
	f.deps = Deps{
		Loader:      core.NewLoader(fakePrograms{"pilot": prog}, cycleStore, responseStore, "pilot"),
		Cycles:      f.cycles,
		Events:      events,
		Clock:       clock,
		DefaultTeam: testTeam,
	}
	if _, err := f.cycles.CreateForTeam(testTeam); err != nil {
		t.Fatalf("creating cycles: %v", err)
	}
	return f
}

// callTool is a helper that connects a client to the server and calls a tool.
func callTool(t *testing.T, srv *Server, toolName string, args map[string]any) *gomcp.CallToolResult {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client := gomcp.NewClient(&gomcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)

	t1, t2 := gomcp.NewInMemoryTransports()

	// Connect server (non-blocking).
	go func() {
		_ = srv.MCPServer().Run(ctx, t1)
	}()

	session, err := client.Connect(ctx, t2, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	defer session.Close()

	result, err := session.CallTool(ctx, &gomcp.CallToolParams{
		Name:      toolName,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("call tool %s: %v", toolName, err)
	}

	return result
}

// decode reads a tool's structured output, falling back to its text.
func decode(t *testing.T, result *gomcp.CallToolResult, out any) {
	t.Helper()
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}
	if err := json.Unmarshal([]byte(extractText(result)), out); err == nil {
		return
	}
	data, err := json.Marshal(result.StructuredContent)
	if err != nil {
		t.Fatalf("marshalling structured content: %v", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		t.Fatalf("unmarshalling output: %v (text was: %s)", err, extractText(result))
	}
}

// --- Tests ---

func TestListSteps(t *testing.T) {
	f := newFixture(t)
	srv := NewServer(f.deps, "test")

	var out listStepsOutput
	decode(t, callTool(t, srv, "list_steps", map[string]any{}), &out)

	if len(out.Steps) != 3 {
		t.Fatalf("expected 3 steps (introduction + 2 cycles), got %d", len(out.Steps))
	}
	if out.Steps[0].ParentLabel != "introduction" || !out.Steps[0].Default {
		t.Errorf("first step = %+v, want default introduction", out.Steps[0])
	}
	if out.Steps[1].Name != "Cycle 1" || out.Steps[2].Name != "Cycle 2" {
		t.Errorf("cycle names = %q, %q", out.Steps[1].Name, out.Steps[2].Name)
	}
	if out.DefaultRoute != "/teams/1/steps/single/introduction" {
		t.Errorf("default route = %q", out.DefaultRoute)
	}
}

func TestListSteps_DefaultMovesPastCompletedSteps(t *testing.T) {
	f := newFixture(t)
	if _, err := f.responses.MarkStepComplete(testTeam, "introduction", true); err != nil {
		t.Fatalf("marking complete: %v", err)
	}
	srv := NewServer(f.deps, "test")

	var out listStepsOutput
	decode(t, callTool(t, srv, "list_steps", map[string]any{"team_id": testTeam}), &out)

	if !out.Steps[0].Complete {
		t.Error("introduction should be complete")
	}
	if !out.Steps[1].Default {
		t.Errorf("expected first cycle to be default, got %+v", out.Steps)
	}
}

func TestNavigate_EmptyRouteRedirects(t *testing.T) {
	f := newFixture(t)
	srv := NewServer(f.deps, "test")

	var out navigateOutput
	decode(t, callTool(t, srv, "navigate", map[string]any{}), &out)

	if out.Redirect != "/teams/1/steps/single/introduction" {
		t.Errorf("redirect = %q", out.Redirect)
	}
	if len(f.events.types) != 1 || f.events.types[0] != core.EventNavigationRedirect {
		t.Errorf("events = %v, want one redirect", f.events.types)
	}
}

func TestNavigate_KnownStep(t *testing.T) {
	f := newFixture(t)
	srv := NewServer(f.deps, "test")

	var out navigateOutput
	decode(t, callTool(t, srv, "navigate", map[string]any{"route": "/teams/1/steps/single/introduction"}), &out)

	if out.Step == nil || out.Step.ParentLabel != "introduction" {
		t.Fatalf("step = %+v", out.Step)
	}
	if out.Previous != "" {
		t.Errorf("first step should have no previous, got %q", out.Previous)
	}
	if out.Next == "" {
		t.Error("expected a next route")
	}
}

func TestNavigate_MissingCycleRedirectsToStepsRoot(t *testing.T) {
	f := newFixture(t)
	srv := NewServer(f.deps, "test")

	var out navigateOutput
	decode(t, callTool(t, srv, "navigate", map[string]any{"route": "Cycle_deleted"}), &out)

	if out.Redirect != "/teams/1/steps" {
		t.Errorf("redirect = %q, want steps root", out.Redirect)
	}
}

func TestNavigate_BadRoute(t *testing.T) {
	f := newFixture(t)
	srv := NewServer(f.deps, "test")

	result := callTool(t, srv, "navigate", map[string]any{"route": "/nowhere"})
	if !result.IsError {
		t.Fatal("expected error result for malformed route")
	}
}

func TestSuggestCycleDates_DryRunDoesNotSave(t *testing.T) {
	f := newFixture(t)
	cycles, _ := f.cycles.ListCycles(testTeam)
	srv := NewServer(f.deps, "test")

	var out suggestOutput
	decode(t, callTool(t, srv, "suggest_cycle_dates", map[string]any{"cycle_id": cycles[0].UID}), &out)

	if !out.Proposed || out.Applied {
		t.Fatalf("out = %+v, want proposed and not applied", out)
	}
	// No previous cycle: start today and run two weeks.
	if out.Start != "2026-10-14" || out.End != "2026-10-28" {
		t.Errorf("proposal = %s..%s, want 2026-10-14..2026-10-28", out.Start, out.End)
	}

	c, err := f.cycles.GetCycle(testTeam, cycles[0].UID)
	if err != nil {
		t.Fatalf("getting cycle: %v", err)
	}
	if c.StartDate != nil {
		t.Error("dry run must not save dates")
	}
}

func TestSuggestCycleDates_Apply(t *testing.T) {
	f := newFixture(t)
	cycles, _ := f.cycles.ListCycles(testTeam)
	srv := NewServer(f.deps, "test")

	var out suggestOutput
	decode(t, callTool(t, srv, "suggest_cycle_dates", map[string]any{
		"cycle_id": core.ShortUID(cycles[0].UID),
		"apply":    true,
	}), &out)

	if !out.Applied {
		t.Fatalf("expected proposal to be applied: %+v", out)
	}
	c, err := f.cycles.GetCycle(testTeam, cycles[0].UID)
	if err != nil {
		t.Fatalf("getting cycle: %v", err)
	}
	if !c.HasDates() {
		t.Error("expected cycle to have dates after apply")
	}
}

func TestSuggestCycleDates_UnknownCycle(t *testing.T) {
	f := newFixture(t)
	srv := NewServer(f.deps, "test")

	result := callTool(t, srv, "suggest_cycle_dates", map[string]any{"cycle_id": "missing"})
	if !result.IsError {
		t.Fatal("expected error result for unknown cycle")
	}
}

func TestListCycles(t *testing.T) {
	f := newFixture(t)
	cycles, _ := f.cycles.ListCycles(testTeam)
	start := today.AddDate(0, 0, -2)
	end := today.AddDate(0, 0, 5)
	if _, err := f.cycles.SetDates(testTeam, cycles[1].UID, &start, &end); err != nil {
		t.Fatalf("setting dates: %v", err)
	}
	srv := NewServer(f.deps, "test")

	var out listCyclesOutput
	decode(t, callTool(t, srv, "list_cycles", map[string]any{}), &out)

	if out.Count != 2 {
		t.Fatalf("count = %d, want 2", out.Count)
	}
	// The dated cycle sorts first.
	first := out.Cycles[0]
	if first.UID != cycles[1].UID || first.Ordinal != 1 || !first.Current {
		t.Errorf("first cycle = %+v, want the dated, current cycle", first)
	}
	if first.StartDate != "2026-10-12" || first.EndDate != "2026-10-19" {
		t.Errorf("dates = %s..%s", first.StartDate, first.EndDate)
	}
}

func TestNoTeamConfigured(t *testing.T) {
	f := newFixture(t)
	f.deps.DefaultTeam = ""
	srv := NewServer(f.deps, "test")

	result := callTool(t, srv, "list_cycles", map[string]any{})
	if !result.IsError {
		t.Fatal("expected error result without a team")
	}
}

func TestGetMetrics(t *testing.T) {
	f := newFixture(t)
	calc := &fakeMetricsCalculator{metrics: &observability.Metrics{
		CyclesCreated:     2,
		ResponsesSaved:    5,
		Conflicts:         1,
		ResponsesByModule: map[string]int{"Survey": 5},
		EventCount:        8,
	}}
	f.deps.Metrics = calc
	srv := NewServer(f.deps, "test")

	var out metricsOutput
	decode(t, callTool(t, srv, "get_metrics", map[string]any{"since": "7d", "team_id": testTeam}), &out)

	if out.CyclesCreated != 2 || out.ResponsesSaved != 5 || out.Conflicts != 1 {
		t.Errorf("unexpected metrics: %+v", out)
	}
	if out.ResponsesByModule["Survey"] != 5 {
		t.Errorf("responses by module = %v", out.ResponsesByModule)
	}
	if calc.filter.TeamID != testTeam || calc.filter.Since == nil {
		t.Errorf("filter = %+v", calc.filter)
	}
}

func TestGetMetricsDisabled(t *testing.T) {
	f := newFixture(t)
	srv := NewServer(f.deps, "test")

	result := callTool(t, srv, "get_metrics", map[string]any{})
	if !result.IsError {
		t.Fatal("expected error result when metrics are disabled")
	}
}

func TestParseSince(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"7d", false},
		{"30d", false},
		{"24h", false},
		{"1h", false},
		{"", true},
		{"x", true},
		{"7x", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := parseSince(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseSince(%q) error = %v, wantErr = %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

// extractText extracts the text from the first TextContent in a CallToolResult.
func extractText(result *gomcp.CallToolResult) string {
	for _, c := range result.Content {
		if tc, ok := c.(*gomcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}
