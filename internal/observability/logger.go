package observability

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/perts/copilot/pkg/models"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the diagnostic logger from cfg. Level "off" or empty
// yields a no-op logger. A relative log file is resolved against basePath;
// with no file, logs go to stderr.
func NewLogger(cfg models.LogConfig, basePath string) (*zap.Logger, error) {
	if cfg.Level == "" || cfg.Level == "off" {
		return zap.NewNop(), nil
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(level)
	config.Sampling = nil
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}

	if cfg.File != "" {
		path := cfg.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(basePath, path)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
		config.OutputPaths = []string{path}
	}

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}

// Recorder writes domain events to the event log and mirrors them to the
// diagnostic logger. Either sink may be nil.
type Recorder struct {
	log    EventLog
	logger *zap.Logger
	now    func() time.Time
}

// NewRecorder creates a Recorder. now defaults to time.Now.
func NewRecorder(log EventLog, logger *zap.Logger, now func() time.Time) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Recorder{log: log, logger: logger, now: now}
}

// LogEvent records one event.
func (r *Recorder) LogEvent(eventType string, data map[string]any) error {
	level := LevelFor(eventType)
	msg := MessageFor(eventType, data)

	fields := make([]zap.Field, 0, len(data)+1)
	fields = append(fields, zap.String("event", eventType))
	for k, v := range data {
		fields = append(fields, zap.Any(k, v))
	}
	if level == LevelWarn {
		r.logger.Warn(msg, fields...)
	} else {
		r.logger.Debug(msg, fields...)
	}

	if r.log == nil {
		return nil
	}
	return r.log.Write(Event{
		Time:    r.now().UTC(),
		Level:   level,
		Type:    eventType,
		Message: msg,
		Data:    data,
	})
}
