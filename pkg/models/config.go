package models

import "time"

// StorageBackend selects where cycles and responses are persisted.
type StorageBackend string

const (
	BackendYAML   StorageBackend = "yaml"
	BackendSQLite StorageBackend = "sqlite"
)

// StorageConfig holds persistence settings.
type StorageConfig struct {
	Backend StorageBackend `yaml:"backend" mapstructure:"backend"`
	// Path is the sqlite database file, relative to the base path.
	Path string `yaml:"path,omitempty" mapstructure:"path"`
}

// LogConfig holds diagnostic logging settings.
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
	File  string `yaml:"file,omitempty" mapstructure:"file"`
}

// GlobalConfig holds settings read from .copilotrc via Viper.
type GlobalConfig struct {
	TeamID      string        `yaml:"team_id" mapstructure:"team_id"`
	Program     string        `yaml:"program" mapstructure:"program"`
	ProgramsDir string        `yaml:"programs_dir,omitempty" mapstructure:"programs_dir"`
	Storage     StorageConfig `yaml:"storage" mapstructure:"storage"`
	Log         LogConfig     `yaml:"log" mapstructure:"log"`
	// Today pins the calendar date used for date heuristics. Nil means the
	// system clock.
	Today *time.Time `yaml:"today,omitempty" mapstructure:"today"`
}
