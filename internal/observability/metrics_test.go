package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCalculator_Calculate(t *testing.T) {
	log, _ := newTestLog(t)
	base := time.Date(2026, time.October, 14, 9, 0, 0, 0, time.UTC)
	rec := NewRecorder(log, nil, func() time.Time {
		base = base.Add(time.Minute)
		return base
	})

	require.NoError(t, rec.LogEvent(EventCycleCreated, map[string]any{"team_id": "Team_1", "ordinal": 1}))
	require.NoError(t, rec.LogEvent(EventCycleCreated, map[string]any{"team_id": "Team_1", "ordinal": 2}))
	require.NoError(t, rec.LogEvent(EventCycleDatesSet, map[string]any{"team_id": "Team_1"}))
	require.NoError(t, rec.LogEvent(EventResponseSaved, map[string]any{"team_id": "Team_1", "module": "Survey", "progress": 34}))
	require.NoError(t, rec.LogEvent(EventResponseSaved, map[string]any{"team_id": "Team_2", "module": "Survey", "progress": 100}))
	require.NoError(t, rec.LogEvent(EventResponseConflict, map[string]any{"team_id": "Team_2", "module": "Survey"}))
	require.NoError(t, rec.LogEvent(EventNavigationRedirect, map[string]any{"team_id": "Team_1", "to": "/teams/1/steps"}))
	require.NoError(t, rec.LogEvent(EventCycleRemoved, map[string]any{"team_id": "Team_1"}))

	m, err := NewMetricsCalculator(log).Calculate(EventFilter{})
	require.NoError(t, err)

	assert.Equal(t, 8, m.EventCount)
	assert.Equal(t, 2, m.CyclesCreated)
	assert.Equal(t, 1, m.CyclesRemoved)
	assert.Equal(t, 1, m.CycleDatesSet)
	assert.Equal(t, 2, m.ResponsesSaved)
	assert.Equal(t, 1, m.ModulesCompleted)
	assert.Equal(t, 1, m.Conflicts)
	assert.Equal(t, 1, m.Redirects)
	assert.Equal(t, 2, m.ResponsesByModule["Survey"])
	assert.Equal(t, map[string]int{"Team_1": 6, "Team_2": 2}, m.EventsByTeam)
	assert.InDelta(t, 1.0/3.0, m.ConflictRate(), 1e-9)
	require.NotNil(t, m.OldestEvent)
	assert.True(t, m.OldestEvent.Before(*m.NewestEvent))

	team2, err := NewMetricsCalculator(log).Calculate(EventFilter{TeamID: "Team_2"})
	require.NoError(t, err)
	assert.Equal(t, 2, team2.EventCount)
}

func TestMetrics_EmptyLog(t *testing.T) {
	log, _ := newTestLog(t)
	m, err := NewMetricsCalculator(log).Calculate(EventFilter{})
	require.NoError(t, err)
	assert.Zero(t, m.EventCount)
	assert.Zero(t, m.ConflictRate())
	assert.Nil(t, m.OldestEvent)
}
