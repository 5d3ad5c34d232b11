// Package internal provides the App struct that wires all components of
// Copilot together and initializes the CLI layer.
package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/perts/copilot/internal/cli"
	"github.com/perts/copilot/internal/core"
	"github.com/perts/copilot/internal/observability"
	"github.com/perts/copilot/internal/storage"
	"github.com/perts/copilot/pkg/models"
	"go.uber.org/zap"
)

// DataDirName is the directory under the base path holding the YAML stores
// and user settings.
const DataDirName = ".copilot"

// App holds all service dependencies for Copilot.
type App struct {
	BasePath string
	DataDir  string
	Config   *models.GlobalConfig

	// Configuration
	ConfigMgr core.ConfigurationManager

	// Storage layer
	Programs  *storage.ProgramLoader
	Program   *models.Program
	Cycles    core.CycleStore
	Responses core.ResponseStore
	SQLite    *storage.SQLiteStore
	Settings  *storage.SettingsStore

	// Core services
	Clock       core.Clock
	Loader      *core.Loader
	CycleMgr    core.CycleManager
	ResponseMgr core.ResponseManager

	// Observability
	Logger      *zap.Logger
	EventLog    observability.EventLog
	Recorder    *observability.Recorder
	MetricsCalc observability.MetricsCalculator

	// Store files the task list watches for outside changes.
	watchFiles []string
}

// NewApp creates and wires all components of Copilot. basePath is the
// directory containing .copilotrc, or COPILOT_HOME.
func NewApp(basePath string) (*App, error) {
	app := &App{BasePath: basePath, DataDir: filepath.Join(basePath, DataDirName)}

	// --- Configuration ---
	app.ConfigMgr = core.NewConfigurationManager(basePath)
	cfg, err := app.ConfigMgr.LoadGlobalConfig()
	if err != nil {
		return nil, err
	}
	if err := app.ConfigMgr.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	app.Config = cfg
	app.Clock = core.ClockFor(cfg)

	// --- Observability ---
	app.Logger, err = observability.NewLogger(cfg.Log, basePath)
	if err != nil {
		return nil, err
	}
	eventLogPath := filepath.Join(basePath, observability.EventFileName)
	app.EventLog, err = observability.NewJSONLEventLog(eventLogPath)
	if err != nil {
		// Non-fatal: run without the event log and metrics.
		app.Logger.Warn("event log disabled", zap.String("path", eventLogPath), zap.Error(err))
		app.EventLog = nil
	}
	if app.EventLog != nil {
		app.MetricsCalc = observability.NewMetricsCalculator(app.EventLog)
	}
	// Events carry wall time even when today is pinned, since metrics
	// windows are measured from time.Now.
	app.Recorder = observability.NewRecorder(app.EventLog, app.Logger, time.Now)

	// --- Storage layer ---
	programsDir := cfg.ProgramsDir
	if programsDir != "" && !filepath.IsAbs(programsDir) {
		programsDir = filepath.Join(basePath, programsDir)
	}
	app.Programs = storage.NewProgramLoader(programsDir)
	app.Program, err = app.Programs.GetProgram(cfg.Program)
	if err != nil {
		_ = app.closeObservability()
		return nil, err
	}
	if err := core.ValidateProgram(app.Program); err != nil {
		_ = app.closeObservability()
		return nil, err
	}

	switch cfg.Storage.Backend {
	case models.BackendSQLite:
		dbPath := cfg.Storage.Path
		if !filepath.IsAbs(dbPath) {
			dbPath = filepath.Join(basePath, dbPath)
		}
		app.SQLite, err = storage.OpenSQLiteStore(dbPath)
		if err != nil {
			_ = app.closeObservability()
			return nil, err
		}
		app.Cycles = app.SQLite
		app.Responses = app.SQLite
		// Writes land in the WAL first.
		base := filepath.Base(dbPath)
		app.watchFiles = []string{base, base + "-wal"}
	default:
		app.Cycles = storage.NewCycleFileStore(app.DataDir)
		app.Responses = storage.NewResponseFileStore(app.DataDir)
		app.watchFiles = []string{storage.CyclesFileName, storage.ResponsesFileName}
	}
	app.Settings = storage.NewSettingsStore(app.DataDir)

	// --- Core services ---
	app.CycleMgr = core.NewCycleManager(app.Program, app.Cycles, app.Clock, app.Recorder)
	app.ResponseMgr = core.NewResponseManager(app.Responses, app.Clock, app.Recorder)
	app.Loader = core.NewLoader(app.Programs, app.Cycles, app.Responses, app.Program.Label)

	app.Logger.Debug("app initialized",
		zap.String("base_path", basePath),
		zap.String("program", app.Program.Label),
		zap.String("backend", string(cfg.Storage.Backend)),
	)

	// --- Wire CLI ---
	cli.BasePath = basePath
	cli.TeamID = cfg.TeamID
	cli.Clock = app.Clock
	cli.Programs = app.Programs
	cli.Program = app.Program
	cli.Loader = app.Loader
	cli.CycleMgr = app.CycleMgr
	cli.ResponseMgr = app.ResponseMgr
	cli.Settings = app.Settings
	cli.Events = app.Recorder
	cli.EventLog = app.EventLog
	cli.MetricsCalc = app.MetricsCalc
	cli.Logger = app.Logger
	cli.WatchDir = app.watchDir()
	cli.WatchFiles = app.watchFiles

	return app, nil
}

func (a *App) watchDir() string {
	if a.SQLite != nil {
		return filepath.Dir(a.SQLite.Path())
	}
	return a.DataDir
}

// Close releases resources held by the App: the database, the event log
// file handle and buffered log output. It is safe to call on a partially
// initialized App.
func (a *App) Close() error {
	var firstErr error
	if a.SQLite != nil {
		if err := a.SQLite.Close(); err != nil {
			firstErr = fmt.Errorf("closing database: %w", err)
		}
	}
	if err := a.closeObservability(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (a *App) closeObservability() error {
	var err error
	if a.EventLog != nil {
		err = a.EventLog.Close()
		a.EventLog = nil
	}
	if a.Logger != nil {
		// Sync errors on stderr are ignored.
		_ = a.Logger.Sync()
	}
	return err
}

// ResolveBasePath determines the base path for Copilot's data. It checks
// the COPILOT_HOME env var, then walks up from the current directory
// looking for .copilotrc, then falls back to the current directory.
func ResolveBasePath() string {
	if home := os.Getenv("COPILOT_HOME"); home != "" {
		return home
	}
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, core.ConfigFileName)); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	cwd, _ := os.Getwd()
	return cwd
}
