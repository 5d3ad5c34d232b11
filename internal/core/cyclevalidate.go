package core

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/perts/copilot/pkg/models"
)

// MaxMeetingLocationLength bounds Cycle.MeetingLocation.
const MaxMeetingLocationLength = 200

// ValidationError collects every problem found with a cycle.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("cycle validation failed:\n  - %s", strings.Join(e.Problems, "\n  - "))
}

// CycleLengthMessage is the problem reported for a too-short cycle.
func CycleLengthMessage(minWeekdays int) string {
	weeks := int(math.Round(float64(minWeekdays) / 5))
	return fmt.Sprintf("Cycle should be at least %d week(s) (%d weekdays).", weeks, minWeekdays)
}

// CountWeekdays counts Monday through Friday dates in [start, end].
func CountWeekdays(start, end time.Time) int {
	n := 0
	for d := Day(start); !d.After(Day(end)); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			n++
		}
	}
	return n
}

// WithinOtherCycle reports whether date falls inside the date range of any
// cycle in others except cycle itself. Cycles without both dates contain no
// dates.
func WithinOtherCycle(date time.Time, cycle models.Cycle, others []models.Cycle) bool {
	d := Day(date)
	for i := range others {
		o := &others[i]
		if o.UID == cycle.UID || !o.HasDates() {
			continue
		}
		if !d.Before(Day(*o.StartDate)) && !d.After(Day(*o.EndDate)) {
			return true
		}
	}
	return false
}

// ValidateCycle checks cycle against the program's minimum length and the
// team's other cycles. It returns nil or a *ValidationError.
func ValidateCycle(cycle models.Cycle, others []models.Cycle, minWeekdays int) error {
	var problems []string

	if cycle.HasDates() {
		start, end := Day(*cycle.StartDate), Day(*cycle.EndDate)
		if start.After(end) {
			problems = append(problems, "Start date must not be after end date.")
		} else if minWeekdays > 0 && CountWeekdays(start, end) < minWeekdays {
			problems = append(problems, CycleLengthMessage(minWeekdays))
		}
	}

	for _, d := range []*time.Time{cycle.StartDate, cycle.EndDate} {
		if d != nil && WithinOtherCycle(*d, cycle, others) {
			problems = append(problems, fmt.Sprintf("Date %s overlaps another cycle.", d.Format(time.DateOnly)))
		}
	}

	if len(cycle.MeetingLocation) > MaxMeetingLocationLength {
		problems = append(problems, fmt.Sprintf("Meeting location must be %d characters or less.", MaxMeetingLocationLength))
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
