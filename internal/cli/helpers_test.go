package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/perts/copilot/internal/core"
	"github.com/perts/copilot/internal/storage"
	"github.com/perts/copilot/pkg/models"
	"github.com/spf13/cobra"
)

const testTeam = "Team_1"

// Wednesday.
var today = time.Date(2026, time.October, 14, 0, 0, 0, 0, time.UTC)

const pilotProgram = `label: pilot
name: Pilot Program
use_cycles: true
min_cycles: 2
max_cycles: 3
min_cycle_weekdays: 5
steps:
  - type: single
    label: introduction
    name: Introduction
    tasks:
      - label: Welcome
        title: Welcome
        type: module
        pages: 3
      - label: guide
        title: Guide
        type: link
        to: /guide
  - type: cycle
    label: cycle
    tasks:
      - label: Survey
        title: Survey
        type: module
  - type: single
    label: conclusion
    name: Conclusion
    tasks:
      - label: Reflection
        title: Reflection
        type: module
`

type recordingEvents struct {
	mu    sync.Mutex
	types []string
}

func (r *recordingEvents) LogEvent(eventType string, _ map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, eventType)
	return nil
}

func (r *recordingEvents) count(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.types {
		if t == eventType {
			n++
		}
	}
	return n
}

// setupCLI wires the package services to YAML stores in a temp directory
// running the pilot program, and restores the previous wiring afterwards.
func setupCLI(t *testing.T) *recordingEvents {
	t.Helper()

	origBase, origTeam, origClock := BasePath, TeamID, Clock
	origPrograms, origProgram, origLoader := Programs, Program, Loader
	origCycles, origResponses, origSettings, origEvents := CycleMgr, ResponseMgr, Settings, Events
	origEventLog, origMetrics := EventLog, MetricsCalc
	origTeamFlag, origDisplay := teamFlag, gotoDisplay
	t.Cleanup(func() {
		BasePath, TeamID, Clock = origBase, origTeam, origClock
		Programs, Program, Loader = origPrograms, origProgram, origLoader
		CycleMgr, ResponseMgr, Settings, Events = origCycles, origResponses, origSettings, origEvents
		EventLog, MetricsCalc = origEventLog, origMetrics
		teamFlag, gotoDisplay = origTeamFlag, origDisplay
	})

	dir := t.TempDir()
	programsDir := filepath.Join(dir, "programs")
	if err := os.MkdirAll(programsDir, 0o750); err != nil {
		t.Fatalf("creating programs dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(programsDir, "pilot.yaml"), []byte(pilotProgram), 0o600); err != nil {
		t.Fatalf("writing program: %v", err)
	}

	loader := storage.NewProgramLoader(programsDir)
	prog, err := loader.GetProgram("pilot")
	if err != nil {
		t.Fatalf("loading program: %v", err)
	}

	dataDir := filepath.Join(dir, ".copilot")
	cycleStore := storage.NewCycleFileStore(dataDir)
	responseStore := storage.NewResponseFileStore(dataDir)
	events := &recordingEvents{}

	BasePath = dir
	TeamID = testTeam
	Clock = core.FixedClock(today)
	Programs = loader
	Program = prog
	Loader = core.NewLoader(loader, cycleStore, responseStore, prog.Label)
	CycleMgr = core.NewCycleManager(prog, cycleStore, Clock, events)
	ResponseMgr = core.NewResponseManager(responseStore, Clock, events)
	Settings = storage.NewSettingsStore(dataDir)
	Events = events
	EventLog = nil
	MetricsCalc = nil
	teamFlag = ""
	gotoDisplay = string(models.DisplayTasklist)
	return events
}

// withCycles creates the team's initial cycles and returns them.
func withCycles(t *testing.T) []models.Cycle {
	t.Helper()
	cycles, err := CycleMgr.CreateForTeam(testTeam)
	if err != nil {
		t.Fatalf("creating cycles: %v", err)
	}
	return cycles
}

// run invokes cmd's RunE and returns what it printed.
func run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	defer cmd.SetOut(nil)
	err := cmd.RunE(cmd, args)
	return buf.String(), err
}

func mustRun(t *testing.T, cmd *cobra.Command, args ...string) string {
	t.Helper()
	out, err := run(t, cmd, args...)
	if err != nil {
		t.Fatalf("%s %v: unexpected error: %v", cmd.Name(), args, err)
	}
	return out
}
