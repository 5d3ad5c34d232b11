package core

// EventLogger is the subset of the observability event log that core
// services need. Defining it here avoids importing the observability package.
type EventLogger interface {
	LogEvent(eventType string, data map[string]any) error
}

// Domain event types written by the cycle and response managers and by
// navigation.
const (
	EventCycleCreated       = "cycle.created"
	EventCycleRemoved       = "cycle.removed"
	EventCycleDatesSet      = "cycle.dates_set"
	EventResponseSaved      = "response.saved"
	EventResponseConflict   = "response.conflict"
	EventNavigationRedirect = "navigation.redirect"
)
