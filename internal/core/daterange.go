package core

import (
	"time"

	"github.com/perts/copilot/pkg/models"
)

// DefaultCycleDays is how many days a default-scheduled cycle runs.
const DefaultCycleDays = 14

// DateProposal is a suggested date range for a cycle. The zero value means
// no proposal: the caller leaves the dates for manual entry.
type DateProposal struct {
	Start *time.Time
	End   *time.Time
}

// Empty reports whether the heuristic declined to propose dates.
func (p DateProposal) Empty() bool {
	return p.Start == nil || p.End == nil
}

// Day truncates t to its calendar date at UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NextWeekday returns the first date strictly after from that falls on wd.
func NextWeekday(wd time.Weekday, from time.Time) time.Time {
	from = Day(from)
	delta := (int(wd) - int(from.Weekday()) + 7) % 7
	if delta == 0 {
		delta = 7
	}
	return from.AddDate(0, 0, delta)
}

// PreviousWeekday returns the last date strictly before from that falls on wd.
func PreviousWeekday(wd time.Weekday, from time.Time) time.Time {
	from = Day(from)
	delta := (int(from.Weekday()) - int(wd) + 7) % 7
	if delta == 0 {
		delta = 7
	}
	return from.AddDate(0, 0, -delta)
}

// TwoWeeksMondayToFriday proposes default dates for cycle given its sibling
// cycles. Start is today or the first Monday after the previous cycle ends,
// whichever is later. End is two weeks after start or the Friday before the
// next cycle starts, whichever is earlier.
//
// No proposal is made when the cycle already has a date, when the previous
// cycle exists without an end date (cycles are scheduled in order), or when
// the range would be empty.
func TwoWeeksMondayToFriday(cycle models.Cycle, cycles []models.Cycle, today time.Time) DateProposal {
	if cycle.StartDate != nil || cycle.EndDate != nil {
		return DateProposal{}
	}

	var prev, next *models.Cycle
	for i := range cycles {
		c := &cycles[i]
		if c.UID != "" && c.UID == cycle.UID {
			continue
		}
		switch c.Ordinal {
		case cycle.Ordinal - 1:
			prev = c
		case cycle.Ordinal + 1:
			next = c
		}
	}

	if prev != nil && prev.EndDate == nil {
		return DateProposal{}
	}

	start := Day(today)
	if prev != nil {
		if monday := NextWeekday(time.Monday, *prev.EndDate); monday.After(start) {
			start = monday
		}
	}

	end := start.AddDate(0, 0, DefaultCycleDays)
	if next != nil && next.StartDate != nil {
		if friday := PreviousWeekday(time.Friday, *next.StartDate); friday.Before(end) {
			end = friday
		}
	}

	if start.After(end) {
		return DateProposal{}
	}
	return DateProposal{Start: &start, End: &end}
}
