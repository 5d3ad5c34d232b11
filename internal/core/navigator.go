package core

import (
	"github.com/perts/copilot/pkg/models"
)

// Navigation is the outcome of resolving a route against a team's steps.
// Exactly one of Redirect or Step is set.
type Navigation struct {
	// Redirect is the route to send the caller to instead of rendering.
	Redirect string
	Step     *models.DisplayStep
	Index    int
	Previous string
	Next     string
}

// Redirected reports whether the navigation resolved to a redirect.
func (n Navigation) Redirected() bool {
	return n.Redirect != ""
}

// Navigator answers routing questions for one team's task list.
type Navigator struct {
	teamID    string
	steps     []models.DisplayStep
	responses []models.Response
}

// NewNavigator resolves display steps and returns a Navigator over them.
// It fails only on program configuration errors.
func NewNavigator(teamID string, defs []models.StepDefinition, cycles []models.Cycle, responses []models.Response) (*Navigator, error) {
	steps, err := ResolveDisplaySteps(defs, cycles)
	if err != nil {
		return nil, err
	}
	return &Navigator{teamID: teamID, steps: steps, responses: responses}, nil
}

// Steps returns the resolved display steps.
func (n *Navigator) Steps() []models.DisplayStep {
	return n.steps
}

// Default returns the step a team lands on with no step in the route.
func (n *Navigator) Default() (models.DisplayStep, bool) {
	return DefaultDisplayStep(n.responses, n.steps)
}

// Navigate resolves routeKey. An empty key redirects to the default step.
// An unknown key, for example a cycle deleted elsewhere, redirects to the
// steps root so the default is recomputed. A program with no steps yields
// an empty Navigation.
func (n *Navigator) Navigate(routeKey string) Navigation {
	if routeKey == "" {
		def, ok := n.Default()
		if !ok {
			return Navigation{Index: -1}
		}
		return Navigation{Redirect: DisplayStepRoute(n.teamID, def), Index: -1}
	}

	idx, ok := ResolveStepForRoute(n.steps, routeKey)
	if !ok {
		return Navigation{Redirect: ToProgramSteps(n.teamID), Index: -1}
	}

	step := n.steps[idx]
	nav := Navigation{Step: &step, Index: idx}
	prev, next := Neighbors(n.steps, idx)
	if prev != nil {
		nav.Previous = DisplayStepRoute(n.teamID, *prev)
	}
	if next != nil {
		nav.Next = DisplayStepRoute(n.teamID, *next)
	}
	return nav
}

// NavigatePath resolves a full program route. The steps root resolves like
// an empty key.
func (n *Navigator) NavigatePath(path string) (Navigation, error) {
	r, err := ParseStepRoute(path)
	if err != nil {
		return Navigation{}, err
	}
	return n.Navigate(r.ParentLabel), nil
}
