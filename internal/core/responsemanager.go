package core

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/perts/copilot/pkg/models"
)

// ErrConflict is returned when a save would overwrite response fields that
// changed since the caller last read them.
var ErrConflict = errors.New("response changed since it was loaded")

// ConflictError names the response body keys whose stored values are newer
// than the caller's copy. Nothing from the rejected save is written.
type ConflictError struct {
	Keys []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: conflicting keys %s", ErrConflict, strings.Join(e.Keys, ", "))
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// SaveRequest is one submission of a module form.
type SaveRequest struct {
	Type        models.ResponseType
	UserID      string
	TeamID      string
	ParentID    string
	ModuleLabel string
	// Page and TotalPages locate the submission within a paged module.
	// Both zero means the module is not paged.
	Page       int
	TotalPages int
	// Body holds the submitted values with the modified time the caller
	// last saw for each key.
	Body map[string]models.BodyValue
	// Force overwrites conflicting keys after the caller has acknowledged
	// the conflict.
	Force bool
}

// ResponseManager defines response persistence with progress tracking and
// optimistic conflict detection.
type ResponseManager interface {
	ListResponses(teamID string) ([]models.Response, error)
	GetResponse(key models.ResponseKey) (*models.Response, error)
	SaveResponse(req SaveRequest) (*models.Response, error)
	MarkStepComplete(teamID, parentID string, complete bool) (*models.Response, error)
}

type responseManager struct {
	store  ResponseStore
	clock  Clock
	events EventLogger
}

// NewResponseManager creates a ResponseManager. events may be nil.
func NewResponseManager(store ResponseStore, clock Clock, events EventLogger) ResponseManager {
	if clock == nil {
		clock = time.Now
	}
	return &responseManager{store: store, clock: clock, events: events}
}

func (m *responseManager) logEvent(eventType string, data map[string]any) {
	if m.events != nil {
		_ = m.events.LogEvent(eventType, data)
	}
}

func (m *responseManager) ListResponses(teamID string) ([]models.Response, error) {
	responses, err := m.store.ListResponses(teamID)
	if err != nil {
		return nil, fmt.Errorf("listing responses for %s: %w", teamID, err)
	}
	return responses, nil
}

// GetResponse returns the response at key, or nil when none exists.
func (m *responseManager) GetResponse(key models.ResponseKey) (*models.Response, error) {
	r, err := m.store.FindResponse(key)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding response: %w", err)
	}
	return r, nil
}

func (m *responseManager) SaveResponse(req SaveRequest) (*models.Response, error) {
	if req.TeamID == "" || req.ParentID == "" || req.ModuleLabel == "" {
		return nil, fmt.Errorf("saving response: team, parent and module are required")
	}
	if req.Type != models.ResponseTypeUser {
		req.UserID = ""
	}

	key := models.ResponseKey{
		Type:        req.Type,
		UserID:      req.UserID,
		TeamID:      req.TeamID,
		ParentID:    req.ParentID,
		ModuleLabel: req.ModuleLabel,
	}
	progress := PageProgress(req.Page, req.TotalPages)

	var fnErr error
	saved, err := m.store.UpdateResponse(key, func(existing *models.Response) (models.Response, error) {
		now := m.clock().UTC()
		var resp models.Response
		var err error
		if existing == nil {
			resp = models.Response{
				UID:         "Response_" + uuid.NewString(),
				Type:        req.Type,
				UserID:      req.UserID,
				TeamID:      req.TeamID,
				ParentID:    req.ParentID,
				ModuleLabel: req.ModuleLabel,
				Progress:    progress,
				Page:        req.Page,
				Created:     now,
			}
			resp.Body, err = MixBody(nil, req.Body, req.Force, now)
		} else {
			resp = *existing
			// Progress and page only advance.
			if progress > resp.Progress {
				resp.Progress = progress
			}
			if req.Page > resp.Page {
				resp.Page = req.Page
			}
			resp.Body, err = MixBody(existing.Body, req.Body, req.Force, now)
		}
		if err != nil {
			fnErr = err
			return models.Response{}, err
		}
		resp.Modified = now
		return resp, nil
	})
	if err != nil {
		if errors.Is(fnErr, ErrConflict) {
			m.logEvent(EventResponseConflict, map[string]any{
				"team_id":   req.TeamID,
				"parent_id": req.ParentID,
				"module":    req.ModuleLabel,
			})
		}
		if fnErr != nil {
			return nil, err
		}
		return nil, fmt.Errorf("saving response: %w", err)
	}
	m.logEvent(EventResponseSaved, map[string]any{
		"team_id":   saved.TeamID,
		"parent_id": saved.ParentID,
		"module":    saved.ModuleLabel,
		"progress":  saved.Progress,
	})
	return saved, nil
}

// errNoCompletion stops a clear when there is nothing to clear.
var errNoCompletion = errors.New("no step completion")

// MarkStepComplete records or clears the team's completion of a step.
// Clearing writes progress 0 directly since saves never lower progress.
func (m *responseManager) MarkStepComplete(teamID, parentID string, complete bool) (*models.Response, error) {
	if complete {
		return m.SaveResponse(SaveRequest{
			Type:        models.ResponseTypeTeam,
			TeamID:      teamID,
			ParentID:    parentID,
			ModuleLabel: models.StepCompleteModule,
			Force:       true,
		})
	}

	key := models.ResponseKey{
		Type:        models.ResponseTypeTeam,
		TeamID:      teamID,
		ParentID:    parentID,
		ModuleLabel: models.StepCompleteModule,
	}
	cleared, err := m.store.UpdateResponse(key, func(existing *models.Response) (models.Response, error) {
		if existing == nil {
			return models.Response{}, errNoCompletion
		}
		resp := *existing
		resp.Progress = 0
		resp.Modified = m.clock().UTC()
		return resp, nil
	})
	if errors.Is(err, errNoCompletion) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("clearing step completion: %w", err)
	}
	return cleared, nil
}

// PageProgress converts a page position into percent progress. Unpaged
// submissions and the final page count as complete. The final page of a
// paged module is a confirmation page, so it is not counted.
func PageProgress(page, totalPages int) int {
	if page <= 0 || totalPages <= 1 || page >= totalPages {
		return 100
	}
	return int(math.Ceil(float64(page) / float64(totalPages-1) * 100))
}

// ContinuePage returns the page a user resumes a paged module on: the page
// after the last one recorded, unless the module is already complete.
func ContinuePage(resp *models.Response, totalPages int) int {
	if resp == nil || resp.Page == 0 || resp.Complete() {
		return 1
	}
	if resp.Page+1 <= totalPages {
		return resp.Page + 1
	}
	return totalPages
}

// FormValuesToBody wraps plain form values for submission, carrying the
// modified time of each key from previous, the body the caller loaded.
func FormValuesToBody(values map[string]any, previous map[string]models.BodyValue) map[string]models.BodyValue {
	body := make(map[string]models.BodyValue, len(values))
	for k, v := range values {
		bv := models.BodyValue{Value: v}
		if prev, ok := previous[k]; ok {
			bv.Modified = prev.Modified
		}
		body[k] = bv
	}
	return body
}

// FormValuesLoadedAt wraps plain form values for a caller that loaded the
// response at loaded. Keys stored at or before loaded carry their stored
// time, so they save cleanly. Keys changed after loaded carry loaded, which
// MixBody reports as a conflict.
func FormValuesLoadedAt(values map[string]any, stored map[string]models.BodyValue, loaded time.Time) map[string]models.BodyValue {
	body := make(map[string]models.BodyValue, len(values))
	for k, v := range values {
		bv := models.BodyValue{Value: v}
		if cur, ok := stored[k]; ok {
			if cur.Modified == nil || !cur.Modified.After(loaded) {
				bv.Modified = cur.Modified
			} else {
				ts := loaded
				bv.Modified = &ts
			}
		}
		body[k] = bv
	}
	return body
}

// MixBody merges incoming into stored. New keys are added; unchanged values
// keep their timestamps; a value submitted with the stored timestamp is
// written. A value submitted with an older timestamp is a conflict, and any
// conflict rejects the whole merge unless force is set.
func MixBody(stored, incoming map[string]models.BodyValue, force bool, now time.Time) (map[string]models.BodyValue, error) {
	body := make(map[string]models.BodyValue, len(stored)+len(incoming))
	for k, v := range stored {
		body[k] = v
	}

	var conflicted []string
	for k, in := range incoming {
		cur, exists := body[k]
		write := false
		switch {
		case force, !exists:
			write = true
		case reflect.DeepEqual(in.Value, cur.Value):
		case sameTime(in.Modified, cur.Modified):
			write = true
		case in.Modified == nil, cur.Modified != nil && in.Modified.Before(*cur.Modified):
			conflicted = append(conflicted, k)
		default:
			return nil, fmt.Errorf("mixing response body: key %s has modified time newer than stored", k)
		}

		if write {
			ts := now
			body[k] = models.BodyValue{Value: in.Value, Modified: &ts}
		}
	}

	if len(conflicted) > 0 {
		sort.Strings(conflicted)
		return nil, &ConflictError{Keys: conflicted}
	}
	return body, nil
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
