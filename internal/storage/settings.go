package storage

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// SettingsFileName is the YAML file holding per-user UI settings.
const SettingsFileName = "settings.yaml"

// SettingsFile represents the top-level structure of settings.yaml.
type SettingsFile struct {
	Version   string               `yaml:"version"`
	Dismissed map[string]time.Time `yaml:"dismissed"`
}

// SettingsStore holds user settings such as dismissed notices. Callers Load
// it once at session start and Save after changing it.
type SettingsStore struct {
	mu   sync.RWMutex
	path string
	data SettingsFile
}

// NewSettingsStore creates a store backed by settings.yaml in dataDir.
func NewSettingsStore(dataDir string) *SettingsStore {
	return &SettingsStore{
		path: filepath.Join(dataDir, SettingsFileName),
		data: SettingsFile{Version: fileVersion, Dismissed: make(map[string]time.Time)},
	}
}

// Load reads settings from disk. A missing file yields empty settings.
func (s *SettingsStore) Load() error {
	sf := SettingsFile{Version: fileVersion}
	if err := readYAML(s.path, &sf); err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}
	if sf.Dismissed == nil {
		sf.Dismissed = make(map[string]time.Time)
	}
	s.mu.Lock()
	s.data = sf
	s.mu.Unlock()
	return nil
}

// Save writes settings to disk.
func (s *SettingsStore) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := writeYAML(s.path, &s.data); err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	return nil
}

// Dismiss records that the notice identified by key was dismissed at t.
func (s *SettingsStore) Dismiss(key string, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Dismissed[key] = t.UTC()
}

// IsDismissed reports whether key has been dismissed.
func (s *SettingsStore) IsDismissed(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data.Dismissed[key]
	return ok
}

// Reset clears the dismissal of key, or of every key when key is empty.
func (s *SettingsStore) Reset(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key == "" {
		s.data.Dismissed = make(map[string]time.Time)
		return
	}
	delete(s.data.Dismissed, key)
}

// Dismissed returns the dismissed keys in sorted order.
func (s *SettingsStore) Dismissed() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data.Dismissed))
	for k := range s.data.Dismissed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
