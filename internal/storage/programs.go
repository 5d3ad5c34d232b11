package storage

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/perts/copilot/pkg/models"
	"gopkg.in/yaml.v3"
)

//go:embed programs/*.yaml
var builtinPrograms embed.FS

// ErrProgramNotFound is returned when no program has the requested label.
var ErrProgramNotFound = fmt.Errorf("program %w", models.ErrNotFound)

// ProgramLoader reads program definitions. Built-in programs are compiled
// in; YAML files in an optional directory add programs or replace built-ins
// with the same label.
type ProgramLoader struct {
	dir string
}

// NewProgramLoader creates a loader. dir may be empty.
func NewProgramLoader(dir string) *ProgramLoader {
	return &ProgramLoader{dir: dir}
}

// GetProgram returns the program with the given label.
func (l *ProgramLoader) GetProgram(label string) (*models.Program, error) {
	programs, err := l.load()
	if err != nil {
		return nil, err
	}
	p, ok := programs[label]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProgramNotFound, label)
	}
	return &p, nil
}

// ListPrograms returns every program sorted by label.
func (l *ProgramLoader) ListPrograms() ([]models.Program, error) {
	programs, err := l.load()
	if err != nil {
		return nil, err
	}
	out := make([]models.Program, 0, len(programs))
	for _, p := range programs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

func (l *ProgramLoader) load() (map[string]models.Program, error) {
	programs := make(map[string]models.Program)

	builtin, err := fs.Glob(builtinPrograms, "programs/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("listing built-in programs: %w", err)
	}
	for _, name := range builtin {
		data, err := builtinPrograms.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("reading built-in program %s: %w", name, err)
		}
		if err := addProgram(programs, name, data); err != nil {
			return nil, err
		}
	}

	if l.dir == "" {
		return programs, nil
	}
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return programs, nil
		}
		return nil, fmt.Errorf("reading programs directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !isYAML(e.Name()) {
			continue
		}
		path := filepath.Join(l.dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading program %s: %w", e.Name(), err)
		}
		if err := addProgram(programs, e.Name(), data); err != nil {
			return nil, err
		}
	}
	return programs, nil
}

func addProgram(programs map[string]models.Program, name string, data []byte) error {
	var p models.Program
	if err := yaml.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("parsing program %s: %w", name, err)
	}
	if p.Label == "" {
		p.Label = strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	}
	programs[p.Label] = p
	return nil
}

func isYAML(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".yaml" || ext == ".yml"
}
