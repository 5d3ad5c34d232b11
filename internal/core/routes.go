package core

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/perts/copilot/pkg/models"
)

// ShortUID strips the "Kind_" prefix from a uid for use in routes.
func ShortUID(uid string) string {
	if i := strings.IndexByte(uid, '_'); i >= 0 {
		return uid[i+1:]
	}
	return uid
}

// LongUID restores a uid from its short form. Values that already carry a
// prefix are returned unchanged.
func LongUID(kind, id string) string {
	if id == "" || strings.Contains(id, "_") {
		return id
	}
	return kind + "_" + id
}

// ToProgramSteps is the route that redirects to the team's default step.
func ToProgramSteps(teamID string) string {
	return fmt.Sprintf("/teams/%s/steps", ShortUID(teamID))
}

// ToProgramStep is the route of one display step.
func ToProgramStep(teamID string, stepType models.StepType, parentLabel string) string {
	return fmt.Sprintf("%s/%s/%s", ToProgramSteps(teamID), stepType, parentLabel)
}

// DisplayStepRoute is the route of step for the team.
func DisplayStepRoute(teamID string, step models.DisplayStep) string {
	return ToProgramStep(teamID, step.Type, step.ParentLabel)
}

// ToProgramModule is the route of a module within a step.
func ToProgramModule(teamID string, stepType models.StepType, parentLabel, moduleLabel string) string {
	return fmt.Sprintf("%s/%s", ToProgramStep(teamID, stepType, parentLabel), moduleLabel)
}

// ToProgramModulePage is the route of one page of a paged module.
func ToProgramModulePage(teamID string, stepType models.StepType, parentLabel, moduleLabel string, page, totalPages int) string {
	return fmt.Sprintf("%s/%d/%d", ToProgramModule(teamID, stepType, parentLabel, moduleLabel), page, totalPages)
}

// StepRoute is a parsed program route. Fields past the last present path
// segment are zero.
type StepRoute struct {
	TeamID      string
	StepType    models.StepType
	ParentLabel string
	ModuleLabel string
	Page        int
	TotalPages  int
}

// ParseStepRoute parses any of the program step routes.
func ParseStepRoute(path string) (StepRoute, error) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 3 || parts[0] != "teams" || parts[2] != "steps" || parts[1] == "" {
		return StepRoute{}, fmt.Errorf("parsing route %q: not a program steps route", path)
	}

	r := StepRoute{TeamID: LongUID("Team", parts[1])}
	rest := parts[3:]
	switch len(rest) {
	case 0, 2, 3, 5:
	default:
		return StepRoute{}, fmt.Errorf("parsing route %q: unexpected segment count", path)
	}

	if len(rest) >= 2 {
		st := models.StepType(rest[0])
		if st != models.StepTypeSingle && st != models.StepTypeCycle {
			return StepRoute{}, fmt.Errorf("parsing route %q: unknown step type %q", path, rest[0])
		}
		r.StepType = st
		r.ParentLabel = rest[1]
	}
	if len(rest) >= 3 {
		r.ModuleLabel = rest[2]
	}
	if len(rest) == 5 {
		page, err := strconv.Atoi(rest[3])
		if err != nil {
			return StepRoute{}, fmt.Errorf("parsing route %q: page: %w", path, err)
		}
		total, err := strconv.Atoi(rest[4])
		if err != nil {
			return StepRoute{}, fmt.Errorf("parsing route %q: total pages: %w", path, err)
		}
		r.Page = page
		r.TotalPages = total
	}
	return r, nil
}
