package cli

import (
	"github.com/perts/copilot/internal/core"
	"github.com/perts/copilot/internal/observability"
	"github.com/perts/copilot/internal/storage"
	"github.com/perts/copilot/pkg/models"
	"go.uber.org/zap"
)

// Service instances, set during app initialization in app.go.
var (
	BasePath string
	// TeamID is the configured team; the --team flag overrides it.
	TeamID string
	// Clock is the calendar used for date heuristics and timestamps.
	Clock core.Clock

	Programs    core.ProgramSource
	Program     *models.Program
	Loader      *core.Loader
	CycleMgr    core.CycleManager
	ResponseMgr core.ResponseManager
	Settings    *storage.SettingsStore
	// Events receives navigation events. It may be nil.
	Events core.EventLogger

	EventLog    observability.EventLog
	MetricsCalc observability.MetricsCalculator
	Logger      *zap.Logger

	// WatchDir and WatchFiles tell the task list which store files to watch
	// for changes made by other processes.
	WatchDir   string
	WatchFiles []string
)
