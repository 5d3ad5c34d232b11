package storage

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/perts/copilot/pkg/models"
)

// CyclesFileName is the YAML file holding every team's cycles.
const CyclesFileName = "cycles.yaml"

// CycleFile represents the top-level structure of cycles.yaml.
type CycleFile struct {
	Version string                  `yaml:"version"`
	Cycles  map[string]models.Cycle `yaml:"cycles"`
}

// CycleFileStore keeps cycles in a YAML file keyed by uid. Every call
// reloads the file under an exclusive lock, so several processes may share
// one data directory.
type CycleFileStore struct {
	dataDir string
}

// NewCycleFileStore creates a store that reads and writes cycles.yaml in
// dataDir.
func NewCycleFileStore(dataDir string) *CycleFileStore {
	return &CycleFileStore{dataDir: dataDir}
}

// Path returns the location of cycles.yaml.
func (s *CycleFileStore) Path() string {
	return filepath.Join(s.dataDir, CyclesFileName)
}

func (s *CycleFileStore) load() (CycleFile, error) {
	cf := CycleFile{Version: fileVersion}
	if err := readYAML(s.Path(), &cf); err != nil {
		return CycleFile{}, fmt.Errorf("loading cycles: %w", err)
	}
	if cf.Cycles == nil {
		cf.Cycles = make(map[string]models.Cycle)
	}
	return cf, nil
}

func (s *CycleFileStore) update(fn func(cf *CycleFile) error) error {
	return withFileLock(s.Path(), func() error {
		cf, err := s.load()
		if err != nil {
			return err
		}
		if err := fn(&cf); err != nil {
			return err
		}
		if err := writeYAML(s.Path(), &cf); err != nil {
			return fmt.Errorf("saving cycles: %w", err)
		}
		return nil
	})
}

func (s *CycleFileStore) ListCycles(teamID string) ([]models.Cycle, error) {
	cf, err := s.load()
	if err != nil {
		return nil, err
	}
	return teamCycles(cf, teamID), nil
}

func teamCycles(cf CycleFile, teamID string) []models.Cycle {
	var cycles []models.Cycle
	for _, c := range cf.Cycles {
		if c.TeamID == teamID {
			cycles = append(cycles, c)
		}
	}
	sort.Slice(cycles, func(i, j int) bool {
		if cycles[i].Ordinal != cycles[j].Ordinal {
			return cycles[i].Ordinal < cycles[j].Ordinal
		}
		return cycles[i].UID < cycles[j].UID
	})
	return cycles
}

func (s *CycleFileStore) GetCycle(uid string) (*models.Cycle, error) {
	cf, err := s.load()
	if err != nil {
		return nil, err
	}
	c, ok := cf.Cycles[uid]
	if !ok {
		return nil, fmt.Errorf("cycle %s: %w", uid, models.ErrNotFound)
	}
	return &c, nil
}

func (s *CycleFileStore) PutCycle(cycle models.Cycle) error {
	return s.PutCycles([]models.Cycle{cycle})
}

// PutCycles writes every cycle in one locked update.
func (s *CycleFileStore) PutCycles(cycles []models.Cycle) error {
	for _, c := range cycles {
		if c.UID == "" {
			return fmt.Errorf("saving cycle: uid must not be empty")
		}
	}
	return s.update(func(cf *CycleFile) error {
		for _, c := range cycles {
			cf.Cycles[c.UID] = c
		}
		return nil
	})
}

func (s *CycleFileStore) DeleteCycle(uid string) error {
	return s.update(func(cf *CycleFile) error {
		if _, ok := cf.Cycles[uid]; !ok {
			return fmt.Errorf("removing cycle %s: %w", uid, models.ErrNotFound)
		}
		delete(cf.Cycles, uid)
		return nil
	})
}

// UpdateCycles runs fn on the team's cycles and applies its changes inside
// one locked update.
func (s *CycleFileStore) UpdateCycles(teamID string, fn func(cycles []models.Cycle) ([]models.Cycle, []string, error)) error {
	return s.update(func(cf *CycleFile) error {
		put, remove, err := fn(teamCycles(*cf, teamID))
		if err != nil {
			return err
		}
		for _, uid := range remove {
			if _, ok := cf.Cycles[uid]; !ok {
				return fmt.Errorf("removing cycle %s: %w", uid, models.ErrNotFound)
			}
			delete(cf.Cycles, uid)
		}
		for _, c := range put {
			if c.UID == "" {
				return fmt.Errorf("saving cycle: uid must not be empty")
			}
			cf.Cycles[c.UID] = c
		}
		return nil
	})
}
