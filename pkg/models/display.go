package models

import "fmt"

// DisplayStep is a step as it is routed and displayed, not as it is
// configured. Cycle definitions produce one DisplayStep per cycle.
type DisplayStep struct {
	Type StepType `json:"type"`
	// ParentLabel is the single step's label or the cycle uid. It is the
	// route key and the parent_id of responses recorded for the step.
	ParentLabel     string `json:"parent_label"`
	Label           string `json:"label,omitempty"`
	Name            string `json:"name"`
	Ordinal         int    `json:"ordinal,omitempty"`
	DefinitionIndex int    `json:"definition_index"`
}

// Display is the way a step is rendered.
type Display string

const (
	DisplayMenu       Display = "menu"
	DisplayTasklist   Display = "tasklist"
	DisplayTaskModule Display = "taskmodule"
	DisplaySummary    Display = "summary"
)

// Displays lists every Display variant.
var Displays = []Display{DisplayMenu, DisplayTasklist, DisplayTaskModule, DisplaySummary}

// ParseDisplay converts s to a Display, rejecting unknown values.
func ParseDisplay(s string) (Display, error) {
	for _, d := range Displays {
		if string(d) == s {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown display %q: must be one of menu, tasklist, taskmodule, summary", s)
}
