package core

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/perts/copilot/pkg/models"
)

// --- In-memory stores used across core tests ---

type memCycleStore struct {
	mu     sync.Mutex
	cycles map[string]models.Cycle
}

func newMemCycleStore() *memCycleStore {
	return &memCycleStore{cycles: make(map[string]models.Cycle)}
}

func (s *memCycleStore) ListCycles(teamID string) ([]models.Cycle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Cycle
	for _, c := range s.cycles {
		if c.TeamID == teamID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ordinal < out[j].Ordinal })
	return out, nil
}

func (s *memCycleStore) GetCycle(uid string) (*models.Cycle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cycles[uid]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &c, nil
}

func (s *memCycleStore) PutCycle(c models.Cycle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycles[c.UID] = c
	return nil
}

func (s *memCycleStore) PutCycles(cycles []models.Cycle) error {
	for _, c := range cycles {
		if err := s.PutCycle(c); err != nil {
			return err
		}
	}
	return nil
}

func (s *memCycleStore) DeleteCycle(uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cycles[uid]; !ok {
		return models.ErrNotFound
	}
	delete(s.cycles, uid)
	return nil
}

func (s *memCycleStore) UpdateCycles(teamID string, fn func([]models.Cycle) ([]models.Cycle, []string, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var cycles []models.Cycle
	for _, c := range s.cycles {
		if c.TeamID == teamID {
			cycles = append(cycles, c)
		}
	}
	sort.Slice(cycles, func(i, j int) bool { return cycles[i].Ordinal < cycles[j].Ordinal })

	put, remove, err := fn(cycles)
	if err != nil {
		return err
	}
	for _, uid := range remove {
		if _, ok := s.cycles[uid]; !ok {
			return models.ErrNotFound
		}
		delete(s.cycles, uid)
	}
	for _, c := range put {
		s.cycles[c.UID] = c
	}
	return nil
}

type memResponseStore struct {
	mu        sync.Mutex
	responses map[models.ResponseKey]models.Response
	failList  error
}

func newMemResponseStore() *memResponseStore {
	return &memResponseStore{responses: make(map[models.ResponseKey]models.Response)}
}

func (s *memResponseStore) ListResponses(teamID string) ([]models.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failList != nil {
		return nil, s.failList
	}
	var out []models.Response
	for _, r := range s.responses {
		if r.TeamID == teamID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out, nil
}

func (s *memResponseStore) FindResponse(key models.ResponseKey) (*models.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.responses[key]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &r, nil
}

func (s *memResponseStore) PutResponse(r models.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[r.Key()] = r
	return nil
}

func (s *memResponseStore) UpdateResponse(key models.ResponseKey, fn func(*models.Response) (models.Response, error)) (*models.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var current *models.Response
	if r, ok := s.responses[key]; ok {
		current = &r
	}
	next, err := fn(current)
	if err != nil {
		return nil, err
	}
	if next.Key() != key {
		return nil, fmt.Errorf("saving response %s: key does not match", next.UID)
	}
	s.responses[key] = next
	return &next, nil
}

type memPrograms map[string]models.Program

func (p memPrograms) GetProgram(label string) (*models.Program, error) {
	prog, ok := p[label]
	if !ok {
		return nil, fmt.Errorf("program %s: %w", label, models.ErrNotFound)
	}
	return &prog, nil
}

func (p memPrograms) ListPrograms() ([]models.Program, error) {
	var out []models.Program
	for _, prog := range p {
		out = append(out, prog)
	}
	return out, nil
}

type recordingEvents struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingEvents) LogEvent(eventType string, _ map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType)
	return nil
}

func (r *recordingEvents) count(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == eventType {
			n++
		}
	}
	return n
}

// --- Fixtures ---

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := date(y, m, d)
	return &t
}

func testProgram() models.Program {
	return models.Program{
		Label:            "cset",
		Name:             "Copilot Elevate",
		UseCycles:        true,
		MinCycles:        3,
		MaxCycles:        8,
		MinCycleWeekdays: 5,
		Steps: []models.StepDefinition{
			{Type: models.StepTypeSingle, Label: "introduction", Name: "Introduction", Tasks: []models.TaskDefinition{
				{Label: "Welcome", Title: "Welcome", Type: models.TaskTypeModule},
				{Label: "Guide", Title: "Guide", Type: models.TaskTypeLink, To: "https://example.org/guide"},
			}},
			{Type: models.StepTypeCycle, Label: "cycle", Names: []string{"Kickoff"}, Tasks: []models.TaskDefinition{
				{Label: "CycleDates", Title: "Set dates", Type: models.TaskTypeInline},
				{Label: "Survey", Title: "Survey", Type: models.TaskTypeModule, Pages: 4},
			}},
			{Type: models.StepTypeSingle, Label: "conclusion", Name: "Conclusion", Tasks: []models.TaskDefinition{
				{Label: "Reflection", Title: "Reflection", Type: models.TaskTypeModule},
			}},
		},
	}
}

func completion(parentID string, progress int) models.Response {
	return models.Response{
		UID:         "Response_" + parentID,
		Type:        models.ResponseTypeTeam,
		TeamID:      "Team_1",
		ParentID:    parentID,
		ModuleLabel: models.StepCompleteModule,
		Progress:    progress,
	}
}
