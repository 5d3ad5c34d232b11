package core

import (
	"time"

	"github.com/perts/copilot/pkg/models"
)

// CycleStore persists cycles. Implementations return models.ErrNotFound for
// missing cycles. Defined here to keep core independent of storage.
type CycleStore interface {
	ListCycles(teamID string) ([]models.Cycle, error)
	GetCycle(uid string) (*models.Cycle, error)
	PutCycle(cycle models.Cycle) error
	PutCycles(cycles []models.Cycle) error
	DeleteCycle(uid string) error
	// UpdateCycles runs fn on the team's cycles, ordered by ordinal, while
	// holding the store's write lock, then writes put and deletes remove.
	// Nothing is written when fn returns an error, and that error is
	// returned unchanged.
	UpdateCycles(teamID string, fn func(cycles []models.Cycle) (put []models.Cycle, remove []string, err error)) error
}

// ResponseStore persists responses. FindResponse returns models.ErrNotFound
// when no response matches the key.
type ResponseStore interface {
	ListResponses(teamID string) ([]models.Response, error)
	FindResponse(key models.ResponseKey) (*models.Response, error)
	PutResponse(response models.Response) error
	// UpdateResponse runs fn on the response at key, nil when there is none,
	// while holding the store's write lock and stores the result. The result
	// must keep key. Nothing is written when fn returns an error, and that
	// error is returned unchanged.
	UpdateResponse(key models.ResponseKey, fn func(current *models.Response) (models.Response, error)) (*models.Response, error)
}

// ProgramSource provides program configurations by label.
type ProgramSource interface {
	GetProgram(label string) (*models.Program, error)
	ListPrograms() ([]models.Program, error)
}

// Clock returns the current time. Tests and pinned configs substitute a
// fixed clock.
type Clock func() time.Time

// FixedClock returns a Clock that always reports t.
func FixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}
