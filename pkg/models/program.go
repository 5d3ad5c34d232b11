package models

// StepType distinguishes steps shown once from steps repeated per cycle.
type StepType string

const (
	StepTypeSingle StepType = "single"
	StepTypeCycle  StepType = "cycle"
)

// TaskType describes how a task inside a step is presented.
type TaskType string

const (
	TaskTypeModule TaskType = "module"
	TaskTypeInline TaskType = "inline"
	TaskTypeLink   TaskType = "link"
)

// TaskDefinition is one unit of work inside a step.
type TaskDefinition struct {
	Label       string   `yaml:"label"`
	Title       string   `yaml:"title"`
	Type        TaskType `yaml:"type"`
	CaptainOnly bool     `yaml:"captain_only,omitempty"`
	// Pages is the number of pages in a paged module, including the final
	// confirmation page. Zero or one means the module is not paged.
	Pages int    `yaml:"pages,omitempty"`
	To    string `yaml:"to,omitempty"`
}

// StepDefinition is an authored program step. Single steps are routed by
// Label; the cycle step is expanded once per team cycle.
type StepDefinition struct {
	Type  StepType `yaml:"type"`
	Label string   `yaml:"label,omitempty"`
	Name  string   `yaml:"name,omitempty"`
	// Names overrides the default "Cycle N" naming for cycle steps, indexed
	// by cycle ordinal minus one.
	Names []string         `yaml:"names,omitempty"`
	Tasks []TaskDefinition `yaml:"tasks,omitempty"`
}

// Program is a program configuration: its steps and cycle constraints.
type Program struct {
	Label            string           `yaml:"label"`
	Name             string           `yaml:"name"`
	UseCycles        bool             `yaml:"use_cycles"`
	MinCycles        int              `yaml:"min_cycles"`
	MaxCycles        int              `yaml:"max_cycles"`
	MinCycleWeekdays int              `yaml:"min_cycle_weekdays"`
	Steps            []StepDefinition `yaml:"steps"`
}

// CycleStep returns the program's cycle step definition, if any.
func (p *Program) CycleStep() (StepDefinition, bool) {
	for _, s := range p.Steps {
		if s.Type == StepTypeCycle {
			return s, true
		}
	}
	return StepDefinition{}, false
}
