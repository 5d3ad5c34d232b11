// Package core contains the business logic for Copilot: display step
// resolution and navigation, cycle scheduling and validation, response
// saving with conflict detection, configuration, and team data loading.
package core

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/perts/copilot/pkg/models"
	"github.com/spf13/viper"
)

// ConfigFileName is the base name of the config file, without extension.
const ConfigFileName = ".copilotrc"

// validLabelPattern matches program labels and team ids.
var validLabelPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// validLogLevels is the set of accepted log.level values.
var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true, "off": true,
}

// ConfigurationManager defines the interface for loading and validating
// configuration from the .copilotrc file.
type ConfigurationManager interface {
	LoadGlobalConfig() (*models.GlobalConfig, error)
	ValidateConfig(cfg *models.GlobalConfig) error
}

// viperConfigManager implements ConfigurationManager using Viper for
// reading YAML configuration files.
type viperConfigManager struct {
	// basePath is the root directory where .copilotrc resides.
	basePath string
}

// NewConfigurationManager creates a new ConfigurationManager that reads
// configuration files relative to basePath.
func NewConfigurationManager(basePath string) ConfigurationManager {
	return &viperConfigManager{basePath: basePath}
}

// DefaultGlobalConfig returns a GlobalConfig populated with sensible defaults.
func DefaultGlobalConfig() *models.GlobalConfig {
	return &models.GlobalConfig{
		TeamID:  "",
		Program: "cset",
		Storage: models.StorageConfig{
			Backend: models.BackendYAML,
			Path:    "copilot.db",
		},
		Log: models.LogConfig{
			Level: "off",
		},
	}
}

// LoadGlobalConfig reads .copilotrc from the base path using Viper.
// Environment variables prefixed COPILOT_ override file values. If the file
// does not exist, defaults are returned.
func (cm *viperConfigManager) LoadGlobalConfig() (*models.GlobalConfig, error) {
	cfg := DefaultGlobalConfig()

	v := viper.New()
	v.SetConfigName(ConfigFileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)
	v.SetEnvPrefix("COPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set Viper defaults so missing keys fall back gracefully.
	v.SetDefault("team_id", cfg.TeamID)
	v.SetDefault("program", cfg.Program)
	v.SetDefault("programs_dir", cfg.ProgramsDir)
	v.SetDefault("storage.backend", string(cfg.Storage.Backend))
	v.SetDefault("storage.path", cfg.Storage.Path)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.file", cfg.Log.File)
	v.SetDefault("today", "")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading %s: %w", ConfigFileName, err)
		}
	}

	cfg.TeamID = v.GetString("team_id")
	cfg.Program = v.GetString("program")
	cfg.ProgramsDir = v.GetString("programs_dir")
	cfg.Storage.Backend = models.StorageBackend(v.GetString("storage.backend"))
	cfg.Storage.Path = v.GetString("storage.path")
	cfg.Log.Level = v.GetString("log.level")
	cfg.Log.File = v.GetString("log.file")

	if today := v.GetString("today"); today != "" {
		t, err := time.Parse(time.DateOnly, today)
		if err != nil {
			return nil, fmt.Errorf("parsing today %q: %w", today, err)
		}
		cfg.Today = &t
	}

	return cfg, nil
}

// ValidateConfig checks the configuration for invalid values and returns a
// single error listing every problem.
func (cm *viperConfigManager) ValidateConfig(cfg *models.GlobalConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var errs []string

	if cfg.TeamID != "" && !validLabelPattern.MatchString(cfg.TeamID) {
		errs = append(errs, fmt.Sprintf("team_id %q is invalid, must match [A-Za-z0-9_-]{1,64}", cfg.TeamID))
	}

	if cfg.Program == "" {
		errs = append(errs, "program must not be empty")
	} else if !validLabelPattern.MatchString(cfg.Program) {
		errs = append(errs, fmt.Sprintf("program %q is invalid, must match [A-Za-z0-9_-]{1,64}", cfg.Program))
	}

	switch cfg.Storage.Backend {
	case models.BackendYAML:
	case models.BackendSQLite:
		if cfg.Storage.Path == "" {
			errs = append(errs, "storage.path must not be empty for the sqlite backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("storage.backend %q is invalid, must be one of: yaml, sqlite", cfg.Storage.Backend))
	}

	if !validLogLevels[cfg.Log.Level] {
		errs = append(errs, fmt.Sprintf("log.level %q is invalid, must be one of: debug, info, warn, error, off", cfg.Log.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// ClockFor returns the clock implied by cfg: pinned when today is
// set, the system clock otherwise.
func ClockFor(cfg *models.GlobalConfig) Clock {
	if cfg != nil && cfg.Today != nil {
		return FixedClock(*cfg.Today)
	}
	return time.Now
}
