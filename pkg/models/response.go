package models

import "time"

// ResponseType is the scope a response is recorded at.
type ResponseType string

const (
	ResponseTypeUser  ResponseType = "User"
	ResponseTypeTeam  ResponseType = "Team"
	ResponseTypeCycle ResponseType = "Cycle"
)

// StepCompleteModule is the module label of team responses that mark a
// whole step complete.
const StepCompleteModule = "StepComplete"

// BodyValue is a single response body field with the time it was last
// written. Modified is nil for values the server has never stored.
type BodyValue struct {
	Value    any        `yaml:"value" json:"value"`
	Modified *time.Time `yaml:"modified,omitempty" json:"modified,omitempty"`
}

// Response is a stored answer set tied to a step or cycle.
type Response struct {
	UID         string               `yaml:"uid" json:"uid"`
	Type        ResponseType         `yaml:"type" json:"type"`
	UserID      string               `yaml:"user_id,omitempty" json:"user_id,omitempty"`
	TeamID      string               `yaml:"team_id" json:"team_id"`
	ParentID    string               `yaml:"parent_id" json:"parent_id"`
	ModuleLabel string               `yaml:"module_label" json:"module_label"`
	Progress    int                  `yaml:"progress" json:"progress"`
	Page        int                  `yaml:"page,omitempty" json:"page,omitempty"`
	Body        map[string]BodyValue `yaml:"body,omitempty" json:"body,omitempty"`
	Created     time.Time            `yaml:"created" json:"created"`
	Modified    time.Time            `yaml:"modified" json:"modified"`
}

// IsStepCompletion reports whether the response is the team-level record
// that marks a step complete.
func (r *Response) IsStepCompletion() bool {
	return r.Type == ResponseTypeTeam && r.ModuleLabel == StepCompleteModule
}

// Complete reports whether the response has reached full progress.
func (r *Response) Complete() bool {
	return r.Progress >= 100
}

// ResponseKey is the unique index of a response: at most one response
// exists per type, user, team, parent and module.
type ResponseKey struct {
	Type        ResponseType
	UserID      string
	TeamID      string
	ParentID    string
	ModuleLabel string
}

// Key returns the index key of r.
func (r *Response) Key() ResponseKey {
	return ResponseKey{
		Type:        r.Type,
		UserID:      r.UserID,
		TeamID:      r.TeamID,
		ParentID:    r.ParentID,
		ModuleLabel: r.ModuleLabel,
	}
}
