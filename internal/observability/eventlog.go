package observability

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/perts/copilot/internal/core"
)

// Event levels.
const (
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// Domain event types, as emitted by core.
const (
	EventCycleCreated       = core.EventCycleCreated
	EventCycleRemoved       = core.EventCycleRemoved
	EventCycleDatesSet      = core.EventCycleDatesSet
	EventResponseSaved      = core.EventResponseSaved
	EventResponseConflict   = core.EventResponseConflict
	EventNavigationRedirect = core.EventNavigationRedirect
)

// EventFileName is the event log's file name inside the base directory.
const EventFileName = ".copilot_events.jsonl"

// Event is one line of the event log.
type Event struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Type    string         `json:"type"`
	Message string         `json:"msg"`
	Data    map[string]any `json:"data,omitempty"`
}

// TeamID returns the team the event concerns, if it names one.
func (e Event) TeamID() string {
	id, _ := e.Data["team_id"].(string)
	return id
}

// EventFilter specifies criteria for reading events. Zero fields match
// everything.
type EventFilter struct {
	Since *time.Time
	Until *time.Time
	// Type matches exactly, or by prefix when it ends in ".".
	Type   string
	Level  string
	TeamID string
}

// EventLog defines the interface for writing and reading events.
type EventLog interface {
	Write(event Event) error
	Read(filter EventFilter) ([]Event, error)
	Close() error
}

// LevelFor returns the level an event type is recorded at.
func LevelFor(eventType string) string {
	switch eventType {
	case EventResponseConflict, EventNavigationRedirect:
		return LevelWarn
	default:
		return LevelInfo
	}
}

// MessageFor returns a one-line description of an event.
func MessageFor(eventType string, data map[string]any) string {
	switch eventType {
	case EventCycleCreated:
		return fmt.Sprintf("cycle %v created", data["ordinal"])
	case EventCycleRemoved:
		return fmt.Sprintf("cycle %v removed", data["cycle_id"])
	case EventCycleDatesSet:
		return fmt.Sprintf("cycle dates set to %v..%v", data["start"], data["end"])
	case EventResponseSaved:
		return fmt.Sprintf("%v saved at %v%%", data["module"], data["progress"])
	case EventResponseConflict:
		return fmt.Sprintf("%v save rejected: stale fields", data["module"])
	case EventNavigationRedirect:
		return fmt.Sprintf("redirected to %v", data["to"])
	default:
		return eventType
	}
}

// jsonlEventLog implements EventLog using an append-only JSONL file.
type jsonlEventLog struct {
	path string
	file *os.File
	mu   sync.Mutex
}

// NewJSONLEventLog creates a new EventLog backed by a JSONL file at path.
func NewJSONLEventLog(path string) (EventLog, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening event log: %w", err)
	}
	return &jsonlEventLog{path: path, file: f}, nil
}

// Write appends a JSON-encoded event followed by a newline.
func (l *jsonlEventLog) Write(event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.file.Write(data); err != nil {
		return fmt.Errorf("writing event: %w", err)
	}
	return nil
}

// Read scans the log and returns events matching filter, oldest first.
// Malformed lines are skipped.
func (l *jsonlEventLog) Read(filter EventFilter) ([]Event, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening event log for reading: %w", err)
	}
	defer func() { _ = f.Close() }()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			continue
		}
		if filter.matches(event) {
			events = append(events, event)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning event log: %w", err)
	}
	return events, nil
}

// Close closes the underlying log file.
func (l *jsonlEventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("closing event log: %w", err)
	}
	return nil
}

func (f EventFilter) matches(event Event) bool {
	if f.Since != nil && event.Time.Before(*f.Since) {
		return false
	}
	if f.Until != nil && event.Time.After(*f.Until) {
		return false
	}
	if f.Type != "" {
		if strings.HasSuffix(f.Type, ".") {
			if !strings.HasPrefix(event.Type, f.Type) {
				return false
			}
		} else if event.Type != f.Type {
			return false
		}
	}
	if f.Level != "" && event.Level != f.Level {
		return false
	}
	if f.TeamID != "" && event.TeamID() != f.TeamID {
		return false
	}
	return true
}
