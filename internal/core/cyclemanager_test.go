package core

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/perts/copilot/pkg/models"
	"pgregory.net/rapid"
)

func newTestCycleManager(t *testing.T, prog models.Program, now time.Time) (CycleManager, *memCycleStore, *recordingEvents) {
	t.Helper()
	store := newMemCycleStore()
	events := &recordingEvents{}
	return NewCycleManager(&prog, store, FixedClock(now), events), store, events
}

func TestCreateForTeam_MinCycles(t *testing.T) {
	cm, _, events := newTestCycleManager(t, testProgram(), today)

	created, err := cm.CreateForTeam("Team_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(created) != 3 {
		t.Fatalf("created %d cycles, want 3", len(created))
	}
	for i, c := range created {
		if c.Ordinal != i+1 {
			t.Errorf("cycle %d ordinal = %d", i, c.Ordinal)
		}
		if !strings.HasPrefix(c.UID, "Cycle_") {
			t.Errorf("cycle uid %q missing prefix", c.UID)
		}
		if c.StartDate != nil || c.EndDate != nil {
			t.Errorf("cycle %d should be undated", i)
		}
	}
	if n := events.count(EventCycleCreated); n != 3 {
		t.Errorf("cycle.created events = %d, want 3", n)
	}
}

func TestCreateForTeam_Cycleless(t *testing.T) {
	prog := testProgram()
	prog.UseCycles = false
	cm, _, _ := newTestCycleManager(t, prog, today)

	created, err := cm.CreateForTeam("Team_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("created %d cycles, want 1", len(created))
	}
	c := created[0]
	if !c.StartDate.Equal(date(2026, time.July, 1)) || !c.EndDate.Equal(date(2027, time.June, 30)) {
		t.Errorf("cycleless dates = %s..%s", c.StartDate, c.EndDate)
	}
}

func TestCyclelessDatesSpring(t *testing.T) {
	d := date(2027, time.March, 3)
	if got := CyclelessStartDate(d); !got.Equal(date(2026, time.July, 1)) {
		t.Errorf("CyclelessStartDate = %s", got)
	}
	if got := CyclelessEndDate(d); !got.Equal(date(2027, time.June, 30)) {
		t.Errorf("CyclelessEndDate = %s", got)
	}
}

func TestAddCycle_MaxCycles(t *testing.T) {
	prog := testProgram()
	prog.MaxCycles = 3
	cm, _, _ := newTestCycleManager(t, prog, today)
	if _, err := cm.CreateForTeam("Team_1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := cm.AddCycle("Team_1")
	if !errors.Is(err, ErrMaxCycles) {
		t.Fatalf("expected ErrMaxCycles, got %v", err)
	}
}

func TestAddCycle_AppendsOrdinal(t *testing.T) {
	cm, _, _ := newTestCycleManager(t, testProgram(), today)
	if _, err := cm.CreateForTeam("Team_1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c, err := cm.AddCycle("Team_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Ordinal != 4 {
		t.Errorf("ordinal = %d, want 4", c.Ordinal)
	}
}

func TestRemoveCycle_Renumbers(t *testing.T) {
	cm, _, events := newTestCycleManager(t, testProgram(), today)
	created, _ := cm.CreateForTeam("Team_1")

	if err := cm.RemoveCycle("Team_1", created[0].UID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cycles, _ := cm.ListCycles("Team_1")
	if len(cycles) != 2 {
		t.Fatalf("got %d cycles, want 2", len(cycles))
	}
	if cycles[0].UID != created[1].UID || cycles[0].Ordinal != 1 || cycles[1].Ordinal != 2 {
		t.Errorf("cycles not renumbered: %+v", cycles)
	}
	if events.count(EventCycleRemoved) != 1 {
		t.Error("expected cycle.removed event")
	}
}

func TestRemoveCycle_OtherTeam(t *testing.T) {
	cm, _, _ := newTestCycleManager(t, testProgram(), today)
	created, _ := cm.CreateForTeam("Team_1")

	err := cm.RemoveCycle("Team_2", created[0].UID)
	if !errors.Is(err, ErrCycleNotFound) {
		t.Fatalf("expected ErrCycleNotFound, got %v", err)
	}
}

func TestSetDates_ReordersAndExtends(t *testing.T) {
	cm, _, _ := newTestCycleManager(t, testProgram(), today)
	created, _ := cm.CreateForTeam("Team_1")
	c1, c3 := created[0], created[2]

	got, err := cm.SetDates("Team_1", c3.UID, datePtr(2026, time.November, 2), datePtr(2026, time.November, 13))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Ordinal != 1 {
		t.Errorf("dated cycle ordinal = %d, want 1", got.Ordinal)
	}
	if got.ExtendedEndDate == nil || !got.ExtendedEndDate.Equal(date(2027, time.June, 30)) {
		t.Errorf("extended end = %v, want program end", got.ExtendedEndDate)
	}

	if _, err := cm.SetDates("Team_1", c1.UID, datePtr(2026, time.October, 19), datePtr(2026, time.October, 30)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cycles, _ := cm.ListCycles("Team_1")
	order := []string{cycles[0].UID, cycles[1].UID, cycles[2].UID}
	want := []string{c1.UID, c3.UID, created[1].UID}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
		if cycles[i].Ordinal != i+1 {
			t.Errorf("cycle %d ordinal = %d", i, cycles[i].Ordinal)
		}
	}
	if !cycles[0].ExtendedEndDate.Equal(date(2026, time.November, 1)) {
		t.Errorf("first extended end = %s, want 2026-11-01", cycles[0].ExtendedEndDate)
	}
	if cycles[2].ExtendedEndDate != nil {
		t.Errorf("undated cycle has extended end %s", cycles[2].ExtendedEndDate)
	}
}

func TestSetDates_ValidationFails(t *testing.T) {
	cm, _, _ := newTestCycleManager(t, testProgram(), today)
	created, _ := cm.CreateForTeam("Team_1")

	_, err := cm.SetDates("Team_1", created[0].UID, datePtr(2026, time.October, 19), datePtr(2026, time.October, 20))
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !strings.Contains(verr.Error(), "Cycle should be at least 1 week(s) (5 weekdays).") {
		t.Errorf("unexpected message: %s", verr.Error())
	}
}

func TestSetDates_Enveloping(t *testing.T) {
	cm, _, _ := newTestCycleManager(t, testProgram(), today)
	created, _ := cm.CreateForTeam("Team_1")

	if _, err := cm.SetDates("Team_1", created[0].UID, datePtr(2026, time.October, 19), datePtr(2026, time.October, 30)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := cm.SetDates("Team_1", created[1].UID, datePtr(2026, time.October, 12), datePtr(2026, time.November, 6))
	if !errors.Is(err, ErrCyclesOverlap) {
		t.Fatalf("expected ErrCyclesOverlap, got %v", err)
	}
}

func TestSuggestDates_Persists(t *testing.T) {
	cm, store, events := newTestCycleManager(t, testProgram(), today)
	created, _ := cm.CreateForTeam("Team_1")

	p, err := cm.SuggestDates("Team_1", created[0].UID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Empty() {
		t.Fatal("expected a proposal")
	}
	stored, _ := store.GetCycle(created[0].UID)
	if stored.StartDate == nil || !stored.StartDate.Equal(today) {
		t.Errorf("stored start = %v, want %s", stored.StartDate, today)
	}
	if events.count(EventCycleDatesSet) != 1 {
		t.Error("expected cycle.dates_set event")
	}

	// The second cycle's previous now has an end date, so it also gets one.
	p2, err := cm.SuggestDates("Team_1", created[1].UID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p2.Empty() || p2.Start.Weekday() != time.Monday || !p2.Start.After(*p.End) {
		t.Errorf("second proposal = %v..%v", p2.Start, p2.End)
	}
}

func TestSuggestDates_NoProposalLeavesCycle(t *testing.T) {
	cm, store, _ := newTestCycleManager(t, testProgram(), today)
	created, _ := cm.CreateForTeam("Team_1")

	p, err := cm.SuggestDates("Team_1", created[1].UID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.Empty() {
		t.Fatalf("expected no proposal while the previous cycle is undated")
	}
	stored, _ := store.GetCycle(created[1].UID)
	if stored.StartDate != nil {
		t.Error("cycle should remain undated")
	}
}

func TestCurrentCycle(t *testing.T) {
	prog := testProgram()
	store := newMemCycleStore()
	setup := NewCycleManager(&prog, store, FixedClock(today), nil)
	created, _ := setup.CreateForTeam("Team_1")
	if _, err := setup.SetDates("Team_1", created[0].UID, datePtr(2026, time.October, 19), datePtr(2026, time.October, 30)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		now  time.Time
		want string
	}{
		{date(2026, time.October, 14), ""},
		{date(2026, time.October, 19), created[0].UID},
		{date(2026, time.October, 31), created[0].UID},
	}
	for _, tt := range tests {
		cm := NewCycleManager(&prog, store, FixedClock(tt.now), nil)
		c, err := cm.CurrentCycle("Team_1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got := ""
		if c != nil {
			got = c.UID
		}
		if got != tt.want {
			t.Errorf("CurrentCycle(%s) = %q, want %q", tt.now.Format(time.DateOnly), got, tt.want)
		}
	}
}

func TestCompleteAndAdvance(t *testing.T) {
	prog := testProgram()
	prog.MinCycles = 2
	cm, _, _ := newTestCycleManager(t, prog, today)
	rm := NewResponseManager(newMemResponseStore(), FixedClock(today), nil)
	created, _ := cm.CreateForTeam("Team_1")

	next, err := CompleteAndAdvance(cm, rm, "Team_1", created[0].UID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.UID != created[1].UID {
		t.Errorf("next = %s, want %s", next.UID, created[1].UID)
	}

	added, err := CompleteAndAdvance(cm, rm, "Team_1", created[1].UID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if added.Ordinal != 3 {
		t.Errorf("added ordinal = %d, want 3", added.Ordinal)
	}

	responses, _ := rm.ListResponses("Team_1")
	steps := []models.DisplayStep{{ParentLabel: created[0].UID}, {ParentLabel: created[1].UID}}
	for _, s := range steps {
		if !StepComplete(responses, s) {
			t.Errorf("step %s not complete", s.ParentLabel)
		}
	}
}

// Ordinals stay contiguous from 1 through any sequence of adds and removes.
func TestProperty_OrdinalsContiguous(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		prog := testProgram()
		prog.MaxCycles = 0
		cm := NewCycleManager(&prog, newMemCycleStore(), FixedClock(today), nil)
		if _, err := cm.CreateForTeam("Team_1"); err != nil {
			rt.Fatalf("unexpected error: %v", err)
		}

		ops := rapid.SliceOfN(rapid.Bool(), 1, 20).Draw(rt, "ops")
		for i, add := range ops {
			cycles, _ := cm.ListCycles("Team_1")
			if add || len(cycles) == 0 {
				if _, err := cm.AddCycle("Team_1"); err != nil {
					rt.Fatalf("add %d: %v", i, err)
				}
			} else {
				idx := rapid.IntRange(0, len(cycles)-1).Draw(rt, "remove")
				if err := cm.RemoveCycle("Team_1", cycles[idx].UID); err != nil {
					rt.Fatalf("remove %d: %v", i, err)
				}
			}

			cycles, _ = cm.ListCycles("Team_1")
			for j, c := range cycles {
				if c.Ordinal != j+1 {
					rt.Fatalf("after op %d ordinals = %v", i, ordinalsOf(cycles))
				}
			}
		}
	})
}

func ordinalsOf(cycles []models.Cycle) []int {
	out := make([]int, len(cycles))
	for i, c := range cycles {
		out[i] = c.Ordinal
	}
	return out
}
