package storage

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/perts/copilot/pkg/models"
)

// ResponsesFileName is the YAML file holding every team's responses.
const ResponsesFileName = "responses.yaml"

// ResponseFile represents the top-level structure of responses.yaml.
type ResponseFile struct {
	Version   string            `yaml:"version"`
	Responses []models.Response `yaml:"responses"`
}

// ResponseFileStore keeps responses in a YAML file. At most one response
// exists per models.ResponseKey; PutResponse replaces by key.
type ResponseFileStore struct {
	dataDir string
}

// NewResponseFileStore creates a store that reads and writes
// responses.yaml in dataDir.
func NewResponseFileStore(dataDir string) *ResponseFileStore {
	return &ResponseFileStore{dataDir: dataDir}
}

// Path returns the location of responses.yaml.
func (s *ResponseFileStore) Path() string {
	return filepath.Join(s.dataDir, ResponsesFileName)
}

func (s *ResponseFileStore) load() (ResponseFile, error) {
	rf := ResponseFile{Version: fileVersion}
	if err := readYAML(s.Path(), &rf); err != nil {
		return ResponseFile{}, fmt.Errorf("loading responses: %w", err)
	}
	return rf, nil
}

func (s *ResponseFileStore) ListResponses(teamID string) ([]models.Response, error) {
	rf, err := s.load()
	if err != nil {
		return nil, err
	}
	var out []models.Response
	for _, r := range rf.Responses {
		if r.TeamID == teamID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Created.Before(out[j].Created)
	})
	return out, nil
}

func (s *ResponseFileStore) FindResponse(key models.ResponseKey) (*models.Response, error) {
	rf, err := s.load()
	if err != nil {
		return nil, err
	}
	for i := range rf.Responses {
		if rf.Responses[i].Key() == key {
			r := rf.Responses[i]
			return &r, nil
		}
	}
	return nil, fmt.Errorf("response %s/%s: %w", key.ParentID, key.ModuleLabel, models.ErrNotFound)
}

func (s *ResponseFileStore) PutResponse(response models.Response) error {
	_, err := s.UpdateResponse(response.Key(), func(*models.Response) (models.Response, error) {
		return response, nil
	})
	return err
}

// UpdateResponse loads, changes and writes the response at key under one
// file lock.
func (s *ResponseFileStore) UpdateResponse(key models.ResponseKey, fn func(current *models.Response) (models.Response, error)) (*models.Response, error) {
	var saved models.Response
	err := withFileLock(s.Path(), func() error {
		rf, err := s.load()
		if err != nil {
			return err
		}

		idx := -1
		var current *models.Response
		for i := range rf.Responses {
			if rf.Responses[i].Key() == key {
				idx = i
				r := rf.Responses[i]
				current = &r
				break
			}
		}

		next, err := fn(current)
		if err != nil {
			return err
		}
		if next.UID == "" {
			return fmt.Errorf("saving response: uid must not be empty")
		}
		if next.Key() != key {
			return fmt.Errorf("saving response %s: key does not match", next.UID)
		}
		if idx >= 0 {
			rf.Responses[idx] = next
		} else {
			rf.Responses = append(rf.Responses, next)
		}

		if err := writeYAML(s.Path(), &rf); err != nil {
			return fmt.Errorf("saving responses: %w", err)
		}
		saved = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}
