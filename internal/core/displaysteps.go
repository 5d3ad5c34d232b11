package core

import (
	"errors"
	"fmt"
	"sort"

	"github.com/perts/copilot/pkg/models"
)

// ErrMultipleCycleSteps is returned when a program configures more than one
// cycle step. It is a configuration defect, not a runtime condition.
var ErrMultipleCycleSteps = errors.New("configuration error, there must be only one cycle step")

// ResolveDisplaySteps derives the routable steps from configured step
// definitions and the team's cycles. Single definitions pass through; the
// cycle definition is expanded once per cycle in ordinal order. Authored
// order is preserved.
func ResolveDisplaySteps(defs []models.StepDefinition, cycles []models.Cycle) ([]models.DisplayStep, error) {
	if err := checkCycleSteps(defs); err != nil {
		return nil, err
	}

	ordered := make([]models.Cycle, len(cycles))
	copy(ordered, cycles)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Ordinal < ordered[j].Ordinal
	})

	steps := make([]models.DisplayStep, 0, len(defs)+len(ordered))
	for i, def := range defs {
		switch def.Type {
		case models.StepTypeSingle:
			steps = append(steps, models.DisplayStep{
				Type:            models.StepTypeSingle,
				ParentLabel:     def.Label,
				Label:           def.Label,
				Name:            def.Name,
				DefinitionIndex: i,
			})
		case models.StepTypeCycle:
			for _, c := range ordered {
				steps = append(steps, models.DisplayStep{
					Type:            models.StepTypeCycle,
					ParentLabel:     c.UID,
					Label:           def.Label,
					Name:            CycleStepName(def, c.Ordinal),
					Ordinal:         c.Ordinal,
					DefinitionIndex: i,
				})
			}
		}
	}
	return steps, nil
}

func checkCycleSteps(defs []models.StepDefinition) error {
	n := 0
	for _, def := range defs {
		if def.Type == models.StepTypeCycle {
			n++
		}
	}
	if n > 1 {
		return fmt.Errorf("%w (found %d)", ErrMultipleCycleSteps, n)
	}
	return nil
}

// CycleStepName names the display step for the cycle with the given
// ordinal: the definition's override if one exists, else "Cycle N".
func CycleStepName(def models.StepDefinition, ordinal int) string {
	if ordinal >= 1 && ordinal <= len(def.Names) && def.Names[ordinal-1] != "" {
		return def.Names[ordinal-1]
	}
	return fmt.Sprintf("Cycle %d", ordinal)
}

// StepComplete reports whether responses contain a full-progress completion
// record for the step.
func StepComplete(responses []models.Response, step models.DisplayStep) bool {
	for i := range responses {
		r := &responses[i]
		if r.IsStepCompletion() && r.ParentID == step.ParentLabel && r.Complete() {
			return true
		}
	}
	return false
}

// DefaultDisplayStep chooses the first step that is not complete or, when
// every step is complete, the last one. It returns false for an empty list.
func DefaultDisplayStep(responses []models.Response, steps []models.DisplayStep) (models.DisplayStep, bool) {
	if len(steps) == 0 {
		return models.DisplayStep{}, false
	}
	for _, s := range steps {
		if !StepComplete(responses, s) {
			return s, true
		}
	}
	return steps[len(steps)-1], true
}

// ResolveStepForRoute returns the index of the step routed by key.
func ResolveStepForRoute(steps []models.DisplayStep, key string) (int, bool) {
	for i, s := range steps {
		if s.ParentLabel == key {
			return i, true
		}
	}
	return -1, false
}

// Neighbors returns the steps before and after index, nil at either end.
func Neighbors(steps []models.DisplayStep, index int) (prev, next *models.DisplayStep) {
	if index < 0 || index >= len(steps) {
		return nil, nil
	}
	if index > 0 {
		p := steps[index-1]
		prev = &p
	}
	if index < len(steps)-1 {
		n := steps[index+1]
		next = &n
	}
	return prev, next
}
