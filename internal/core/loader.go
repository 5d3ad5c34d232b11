package core

import (
	"context"
	"fmt"

	"github.com/perts/copilot/pkg/models"
	"golang.org/x/sync/errgroup"
)

// TeamContext is everything a view needs to render one team's program. It
// is built once per request by a Loader and never mutated.
type TeamContext struct {
	TeamID    string
	Program   *models.Program
	Cycles    []models.Cycle
	Responses []models.Response
	Navigator *Navigator
}

// Loader fetches a team's program, cycles and responses.
type Loader struct {
	programs     ProgramSource
	cycles       CycleStore
	responses    ResponseStore
	programLabel string
}

// NewLoader creates a Loader for teams running the program labelled
// programLabel.
func NewLoader(programs ProgramSource, cycles CycleStore, responses ResponseStore, programLabel string) *Loader {
	return &Loader{
		programs:     programs,
		cycles:       cycles,
		responses:    responses,
		programLabel: programLabel,
	}
}

// Load reads the three sources concurrently and resolves the team's display
// steps. The first failure cancels the others.
func (l *Loader) Load(ctx context.Context, teamID string) (*TeamContext, error) {
	tc := &TeamContext{TeamID: teamID}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := l.programs.GetProgram(l.programLabel)
		if err != nil {
			return fmt.Errorf("loading program %s: %w", l.programLabel, err)
		}
		tc.Program = p
		return ctx.Err()
	})
	g.Go(func() error {
		cycles, err := l.cycles.ListCycles(teamID)
		if err != nil {
			return fmt.Errorf("loading cycles: %w", err)
		}
		tc.Cycles = cycles
		return ctx.Err()
	})
	g.Go(func() error {
		responses, err := l.responses.ListResponses(teamID)
		if err != nil {
			return fmt.Errorf("loading responses: %w", err)
		}
		tc.Responses = responses
		return ctx.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	nav, err := NewNavigator(teamID, tc.Program.Steps, tc.Cycles, tc.Responses)
	if err != nil {
		return nil, fmt.Errorf("program %s: %w", tc.Program.Label, err)
	}
	tc.Navigator = nav
	return tc, nil
}
