package core

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/perts/copilot/pkg/models"
)

var (
	// ErrMaxCycles is returned when adding a cycle would exceed the
	// program's max_cycles.
	ErrMaxCycles = errors.New("program cycle limit reached")

	// ErrCycleNotFound is returned when a cycle uid does not belong to the team.
	ErrCycleNotFound = errors.New("cycle not found")

	// ErrCyclesOverlap is returned when two cycles' date ranges overlap.
	ErrCyclesOverlap = errors.New("cycle dates overlap")
)

// CycleManager defines team cycle operations.
type CycleManager interface {
	ListCycles(teamID string) ([]models.Cycle, error)
	GetCycle(teamID, uid string) (*models.Cycle, error)
	AddCycle(teamID string) (*models.Cycle, error)
	CreateForTeam(teamID string) ([]models.Cycle, error)
	RemoveCycle(teamID, uid string) error
	SetDates(teamID, uid string, start, end *time.Time) (*models.Cycle, error)
	SuggestDates(teamID, uid string) (DateProposal, error)
	CurrentCycle(teamID string) (*models.Cycle, error)
}

type cycleManager struct {
	program *models.Program
	store   CycleStore
	clock   Clock
	events  EventLogger
}

// NewCycleManager creates a CycleManager for teams running program.
// events may be nil.
func NewCycleManager(program *models.Program, store CycleStore, clock Clock, events EventLogger) CycleManager {
	if clock == nil {
		clock = time.Now
	}
	return &cycleManager{program: program, store: store, clock: clock, events: events}
}

// NewCycleUID returns a fresh cycle uid.
func NewCycleUID() string {
	return "Cycle_" + uuid.NewString()
}

func (m *cycleManager) logEvent(eventType string, data map[string]any) {
	if m.events != nil {
		_ = m.events.LogEvent(eventType, data)
	}
}

func (m *cycleManager) ListCycles(teamID string) ([]models.Cycle, error) {
	cycles, err := m.store.ListCycles(teamID)
	if err != nil {
		return nil, fmt.Errorf("listing cycles for %s: %w", teamID, err)
	}
	sort.SliceStable(cycles, func(i, j int) bool {
		return cycles[i].Ordinal < cycles[j].Ordinal
	})
	return cycles, nil
}

func (m *cycleManager) GetCycle(teamID, uid string) (*models.Cycle, error) {
	c, err := m.store.GetCycle(uid)
	if errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrCycleNotFound, uid)
	}
	if err != nil {
		return nil, fmt.Errorf("getting cycle %s: %w", uid, err)
	}
	if c.TeamID != teamID {
		return nil, fmt.Errorf("%w: %s", ErrCycleNotFound, uid)
	}
	return c, nil
}

func (m *cycleManager) newCycle(teamID string, ordinal int) models.Cycle {
	now := m.clock().UTC()
	return models.Cycle{
		UID:      NewCycleUID(),
		TeamID:   teamID,
		Ordinal:  ordinal,
		Created:  now,
		Modified: now,
	}
}

// update runs fn inside the store's locked update. Errors from fn come back
// unchanged; store failures are wrapped with action.
func (m *cycleManager) update(teamID, action string, fn func(cycles []models.Cycle) ([]models.Cycle, []string, error)) error {
	var fnErr error
	err := m.store.UpdateCycles(teamID, func(cycles []models.Cycle) ([]models.Cycle, []string, error) {
		put, remove, err := fn(cycles)
		fnErr = err
		return put, remove, err
	})
	if err != nil && fnErr == nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	return err
}

func (m *cycleManager) AddCycle(teamID string) (*models.Cycle, error) {
	var c models.Cycle
	err := m.update(teamID, "adding cycle", func(cycles []models.Cycle) ([]models.Cycle, []string, error) {
		if m.program.MaxCycles > 0 && len(cycles) >= m.program.MaxCycles {
			return nil, nil, fmt.Errorf("adding cycle: %w (max %d)", ErrMaxCycles, m.program.MaxCycles)
		}
		c = m.newCycle(teamID, len(cycles)+1)
		return []models.Cycle{c}, nil, nil
	})
	if err != nil {
		return nil, err
	}
	m.logEvent(EventCycleCreated, map[string]any{"team_id": teamID, "cycle_id": c.UID, "ordinal": c.Ordinal})
	return &c, nil
}

// CreateForTeam creates a new team's initial cycles: min_cycles undated
// cycles, or a single school-year cycle when the program is cycleless.
// Ordinals continue after any cycles the team already has.
func (m *cycleManager) CreateForTeam(teamID string) ([]models.Cycle, error) {
	var created []models.Cycle
	err := m.update(teamID, "creating cycles for "+teamID, func(cycles []models.Cycle) ([]models.Cycle, []string, error) {
		created = nil
		offset := len(cycles)
		if !m.program.UseCycles {
			today := Day(m.clock())
			start, end := CyclelessStartDate(today), CyclelessEndDate(today)
			c := m.newCycle(teamID, offset+1)
			c.StartDate, c.EndDate = &start, &end
			created = append(created, c)
		} else {
			for i := 0; i < m.program.MinCycles; i++ {
				created = append(created, m.newCycle(teamID, offset+i+1))
			}
		}
		return created, nil, nil
	})
	if err != nil {
		return nil, err
	}
	if len(created) == 0 {
		return nil, nil
	}
	for _, c := range created {
		m.logEvent(EventCycleCreated, map[string]any{"team_id": teamID, "cycle_id": c.UID, "ordinal": c.Ordinal})
	}
	return created, nil
}

func (m *cycleManager) RemoveCycle(teamID, uid string) error {
	err := m.update(teamID, "removing cycle "+uid, func(cycles []models.Cycle) ([]models.Cycle, []string, error) {
		idx := indexOfCycle(cycles, uid)
		if idx < 0 {
			return nil, nil, fmt.Errorf("%w: %s", ErrCycleNotFound, uid)
		}
		remaining := append(cycles[:idx:idx], cycles[idx+1:]...)
		return renumber(remaining), []string{uid}, nil
	})
	if err != nil {
		return err
	}
	m.logEvent(EventCycleRemoved, map[string]any{"team_id": teamID, "cycle_id": uid})
	return nil
}

func indexOfCycle(cycles []models.Cycle, uid string) int {
	for i := range cycles {
		if cycles[i].UID == uid {
			return i
		}
	}
	return -1
}

// renumber assigns contiguous ordinals in slice order and returns the
// cycles whose ordinal changed.
func renumber(cycles []models.Cycle) []models.Cycle {
	var changed []models.Cycle
	for i := range cycles {
		if cycles[i].Ordinal != i+1 {
			cycles[i].Ordinal = i + 1
			changed = append(changed, cycles[i])
		}
	}
	return changed
}

func (m *cycleManager) SetDates(teamID, uid string, start, end *time.Time) (*models.Cycle, error) {
	if start != nil {
		d := Day(*start)
		start = &d
	}
	if end != nil {
		d := Day(*end)
		end = &d
	}

	var saved models.Cycle
	err := m.update(teamID, "saving cycle dates", func(cycles []models.Cycle) ([]models.Cycle, []string, error) {
		idx := indexOfCycle(cycles, uid)
		if idx < 0 {
			return nil, nil, fmt.Errorf("%w: %s", ErrCycleNotFound, uid)
		}
		cycle := cycles[idx]
		cycle.StartDate, cycle.EndDate = start, end
		cycle.Modified = m.clock().UTC()

		if err := ValidateCycle(cycle, cycles, m.program.MinCycleWeekdays); err != nil {
			return nil, nil, err
		}
		cycles[idx] = cycle
		ordered, err := ReorderAndExtend(cycles)
		if err != nil {
			return nil, nil, err
		}
		saved = ordered[indexOfCycle(ordered, uid)]
		return ordered, nil, nil
	})
	if err != nil {
		return nil, err
	}

	m.logEvent(EventCycleDatesSet, map[string]any{
		"team_id":  teamID,
		"cycle_id": uid,
		"start":    formatDate(start),
		"end":      formatDate(end),
	})
	return &saved, nil
}

// SuggestDates applies TwoWeeksMondayToFriday to the cycle and saves the
// proposal when there is one. An empty proposal is not an error.
func (m *cycleManager) SuggestDates(teamID, uid string) (DateProposal, error) {
	cycle, err := m.GetCycle(teamID, uid)
	if err != nil {
		return DateProposal{}, err
	}
	cycles, err := m.ListCycles(teamID)
	if err != nil {
		return DateProposal{}, err
	}

	proposal := TwoWeeksMondayToFriday(*cycle, cycles, m.clock())
	if proposal.Empty() {
		return proposal, nil
	}
	if _, err := m.SetDates(teamID, uid, proposal.Start, proposal.End); err != nil {
		return DateProposal{}, fmt.Errorf("applying suggested dates: %w", err)
	}
	return proposal, nil
}

func (m *cycleManager) CurrentCycle(teamID string) (*models.Cycle, error) {
	cycles, err := m.ListCycles(teamID)
	if err != nil {
		return nil, err
	}
	today := Day(m.clock())
	for i := range cycles {
		c := &cycles[i]
		if c.StartDate == nil || Day(*c.StartDate).After(today) {
			continue
		}
		if c.EndDate != nil && !Day(*c.EndDate).Before(today) {
			return c, nil
		}
		if c.ExtendedEndDate != nil && !Day(*c.ExtendedEndDate).Before(today) {
			return c, nil
		}
	}
	return nil, nil
}

// ReorderAndExtend orders a team's cycles by start date, placing undated
// cycles last by ordinal, renumbers ordinals, and derives each cycle's
// extended end date. It returns ErrCyclesOverlap when consecutive dated
// cycles overlap.
func ReorderAndExtend(cycles []models.Cycle) ([]models.Cycle, error) {
	if len(cycles) == 0 {
		return nil, nil
	}

	var dated, undated []models.Cycle
	for _, c := range cycles {
		if c.StartDate != nil {
			dated = append(dated, c)
		} else {
			undated = append(undated, c)
		}
	}
	sort.SliceStable(dated, func(i, j int) bool {
		return dated[i].StartDate.Before(*dated[j].StartDate)
	})
	sort.SliceStable(undated, func(i, j int) bool {
		return undated[i].Ordinal < undated[j].Ordinal
	})

	ordered := append(dated, undated...)
	renumber(ordered)

	for i := 0; i < len(ordered)-1; i++ {
		cur, next := ordered[i], ordered[i+1]
		if cur.EndDate != nil && next.StartDate != nil && !cur.EndDate.Before(*next.StartDate) {
			return nil, fmt.Errorf("%w: %s and %s", ErrCyclesOverlap, cur.UID, next.UID)
		}
	}

	extendDates(ordered)
	return ordered, nil
}

// extendDates attributes the gap after each dated cycle to it: through the
// day before the next cycle starts, or through the program's end.
func extendDates(ordered []models.Cycle) {
	var programEnd time.Time
	if ordered[0].StartDate != nil {
		programEnd = CyclelessEndDate(*ordered[0].StartDate)
	}

	for i := range ordered {
		c := &ordered[i]
		if !c.HasDates() {
			c.ExtendedEndDate = nil
			continue
		}
		ext := programEnd
		if i+1 < len(ordered) && ordered[i+1].StartDate != nil {
			ext = Day(*ordered[i+1].StartDate).AddDate(0, 0, -1)
		}
		c.ExtendedEndDate = &ext
	}
}

// CyclelessStartDate returns the July 1 on or before d.
func CyclelessStartDate(d time.Time) time.Time {
	year := d.Year()
	if d.Month() < time.July {
		year--
	}
	return time.Date(year, time.July, 1, 0, 0, 0, 0, time.UTC)
}

// CyclelessEndDate returns the June 30 on or after d.
func CyclelessEndDate(d time.Time) time.Time {
	year := d.Year()
	if d.Month() > time.June {
		year++
	}
	return time.Date(year, time.June, 30, 0, 0, 0, 0, time.UTC)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.DateOnly)
}

// CompleteAndAdvance marks the cycle's step complete for the team and
// returns the cycle after it, adding one when uid is the team's last cycle.
func CompleteAndAdvance(cycles CycleManager, responses ResponseManager, teamID, uid string) (*models.Cycle, error) {
	current, err := cycles.GetCycle(teamID, uid)
	if err != nil {
		return nil, err
	}
	if _, err := responses.MarkStepComplete(teamID, current.UID, true); err != nil {
		return nil, fmt.Errorf("completing cycle %s: %w", uid, err)
	}

	all, err := cycles.ListCycles(teamID)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].Ordinal == current.Ordinal+1 {
			return &all[i], nil
		}
	}
	return cycles.AddCycle(teamID)
}
