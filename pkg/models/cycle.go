package models

import "time"

// Cycle is a team-scoped, dated round of survey collection. Ordinal is
// 1-based and determines display order.
type Cycle struct {
	UID             string     `yaml:"uid" json:"uid"`
	TeamID          string     `yaml:"team_id" json:"team_id"`
	Ordinal         int        `yaml:"ordinal" json:"ordinal"`
	StartDate       *time.Time `yaml:"start_date,omitempty" json:"start_date,omitempty"`
	EndDate         *time.Time `yaml:"end_date,omitempty" json:"end_date,omitempty"`
	ExtendedEndDate *time.Time `yaml:"extended_end_date,omitempty" json:"extended_end_date,omitempty"`
	MeetingLocation string     `yaml:"meeting_location,omitempty" json:"meeting_location,omitempty"`
	ResolutionDate  *time.Time `yaml:"resolution_date,omitempty" json:"resolution_date,omitempty"`
	Created         time.Time  `yaml:"created" json:"created"`
	Modified        time.Time  `yaml:"modified" json:"modified"`
}

// HasDates reports whether both start and end dates are set.
func (c *Cycle) HasDates() bool {
	return c.StartDate != nil && c.EndDate != nil
}
