package observability

import (
	"fmt"
	"time"
)

// Metrics holds counts derived from the event log.
type Metrics struct {
	CyclesCreated     int            `json:"cycles_created"`
	CyclesRemoved     int            `json:"cycles_removed"`
	CycleDatesSet     int            `json:"cycle_dates_set"`
	ResponsesSaved    int            `json:"responses_saved"`
	ModulesCompleted  int            `json:"modules_completed"`
	Conflicts         int            `json:"conflicts"`
	Redirects         int            `json:"redirects"`
	ResponsesByModule map[string]int `json:"responses_by_module"`
	EventsByTeam      map[string]int `json:"events_by_team"`
	EventCount        int            `json:"event_count"`
	OldestEvent       *time.Time     `json:"oldest_event,omitempty"`
	NewestEvent       *time.Time     `json:"newest_event,omitempty"`
}

// ConflictRate is the share of save attempts rejected as conflicts.
func (m *Metrics) ConflictRate() float64 {
	attempts := m.ResponsesSaved + m.Conflicts
	if attempts == 0 {
		return 0
	}
	return float64(m.Conflicts) / float64(attempts)
}

// MetricsCalculator derives metrics from the event log.
type MetricsCalculator interface {
	Calculate(filter EventFilter) (*Metrics, error)
}

type metricsCalculator struct {
	eventLog EventLog
}

// NewMetricsCalculator creates a MetricsCalculator that reads from eventLog.
func NewMetricsCalculator(eventLog EventLog) MetricsCalculator {
	return &metricsCalculator{eventLog: eventLog}
}

// Calculate aggregates every event matching filter.
func (mc *metricsCalculator) Calculate(filter EventFilter) (*Metrics, error) {
	events, err := mc.eventLog.Read(filter)
	if err != nil {
		return nil, fmt.Errorf("reading events for metrics: %w", err)
	}

	m := &Metrics{
		ResponsesByModule: make(map[string]int),
		EventsByTeam:      make(map[string]int),
		EventCount:        len(events),
	}

	for i, event := range events {
		t := event.Time
		if i == 0 {
			m.OldestEvent = &t
		}
		m.NewestEvent = &t

		if team := event.TeamID(); team != "" {
			m.EventsByTeam[team]++
		}

		switch event.Type {
		case EventCycleCreated:
			m.CyclesCreated++
		case EventCycleRemoved:
			m.CyclesRemoved++
		case EventCycleDatesSet:
			m.CycleDatesSet++
		case EventResponseSaved:
			m.ResponsesSaved++
			if module, ok := event.Data["module"].(string); ok {
				m.ResponsesByModule[module]++
			}
			// JSON numbers decode as float64.
			if p, ok := event.Data["progress"].(float64); ok && p >= 100 {
				m.ModulesCompleted++
			}
		case EventResponseConflict:
			m.Conflicts++
		case EventNavigationRedirect:
			m.Redirects++
		}
	}
	return m, nil
}
