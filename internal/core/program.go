package core

import (
	"fmt"
	"strings"

	"github.com/perts/copilot/pkg/models"
)

// ValidateProgram checks a program definition for configuration errors
// that would break step resolution or routing.
func ValidateProgram(p *models.Program) error {
	if p == nil {
		return fmt.Errorf("program is nil")
	}

	var errs []string
	if p.Label == "" {
		errs = append(errs, "label must not be empty")
	}
	if p.MaxCycles > 0 && p.MinCycles > p.MaxCycles {
		errs = append(errs, fmt.Sprintf("min_cycles %d exceeds max_cycles %d", p.MinCycles, p.MaxCycles))
	}
	if p.MinCycleWeekdays < 0 {
		errs = append(errs, "min_cycle_weekdays must not be negative")
	}

	if err := checkCycleSteps(p.Steps); err != nil {
		errs = append(errs, err.Error())
	}

	labels := make(map[string]bool)
	for i, s := range p.Steps {
		switch s.Type {
		case models.StepTypeSingle:
			if s.Label == "" {
				errs = append(errs, fmt.Sprintf("step %d: single steps need a label", i))
			} else if labels[s.Label] {
				errs = append(errs, fmt.Sprintf("step %d: duplicate label %q", i, s.Label))
			}
			if strings.Contains(s.Label, "/") {
				errs = append(errs, fmt.Sprintf("step %d: label %q must not contain '/'", i, s.Label))
			}
			labels[s.Label] = true
		case models.StepTypeCycle:
		default:
			errs = append(errs, fmt.Sprintf("step %d: unknown type %q", i, s.Type))
		}

		for j, task := range s.Tasks {
			switch task.Type {
			case models.TaskTypeModule:
				if task.Label == "" {
					errs = append(errs, fmt.Sprintf("step %d task %d: modules need a label", i, j))
				}
			case models.TaskTypeLink:
				if task.To == "" {
					errs = append(errs, fmt.Sprintf("step %d task %d: links need a target", i, j))
				}
			case models.TaskTypeInline:
			default:
				errs = append(errs, fmt.Sprintf("step %d task %d: unknown type %q", i, j, task.Type))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("program %s is invalid:\n  - %s", p.Label, strings.Join(errs, "\n  - "))
	}
	return nil
}
