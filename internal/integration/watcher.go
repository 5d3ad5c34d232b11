// Package integration connects Copilot to its environment. The store
// watcher reports when another process changes the data files so open
// views can reload.
package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce batches the burst of events a single save produces.
const DefaultDebounce = 200 * time.Millisecond

// StoreWatcher watches a data directory and reports changes to a fixed set
// of file names. Changes arriving within the debounce window are delivered
// as one notification.
type StoreWatcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	dir      string
	names    map[string]bool
	debounce time.Duration
	logger   *zap.Logger

	changes chan []string
	pending map[string]bool
	lastAt  time.Time

	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// NewStoreWatcher creates a watcher for the named files in dir. logger may
// be nil.
func NewStoreWatcher(dir string, names []string, debounce time.Duration, logger *zap.Logger) (*StoreWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[filepath.Base(n)] = true
	}

	return &StoreWatcher{
		watcher:  w,
		dir:      dir,
		names:    set,
		debounce: debounce,
		logger:   logger,
		changes:  make(chan []string, 1),
		pending:  make(map[string]bool),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Changes delivers the names of files changed since the last notification.
// It is closed when the watcher stops.
func (sw *StoreWatcher) Changes() <-chan []string {
	return sw.changes
}

// Start begins watching. It does not block.
func (sw *StoreWatcher) Start(ctx context.Context) error {
	sw.mu.Lock()
	if sw.running {
		sw.mu.Unlock()
		return nil
	}
	sw.running = true
	sw.mu.Unlock()

	if err := os.MkdirAll(sw.dir, 0o750); err != nil {
		return fmt.Errorf("creating watched directory: %w", err)
	}
	if err := sw.watcher.Add(sw.dir); err != nil {
		return fmt.Errorf("watching %s: %w", sw.dir, err)
	}
	sw.logger.Debug("store watcher started", zap.String("dir", sw.dir))

	go sw.run(ctx)
	return nil
}

// Stop stops the watcher and waits for its goroutine to exit. It is safe
// to call more than once.
func (sw *StoreWatcher) Stop() {
	sw.mu.Lock()
	if !sw.running {
		sw.mu.Unlock()
		_ = sw.watcher.Close()
		return
	}
	sw.running = false
	sw.mu.Unlock()

	close(sw.stopCh)
	<-sw.doneCh
	if err := sw.watcher.Close(); err != nil {
		sw.logger.Warn("closing store watcher", zap.Error(err))
	}
}

func (sw *StoreWatcher) run(ctx context.Context) {
	defer close(sw.doneCh)
	defer close(sw.changes)

	ticker := time.NewTicker(sw.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sw.stopCh:
			return

		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			sw.handleEvent(event)

		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			sw.logger.Warn("store watcher error", zap.Error(err))

		case <-ticker.C:
			sw.flush(ctx)
		}
	}
}

func (sw *StoreWatcher) handleEvent(event fsnotify.Event) {
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) &&
		!event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) {
		return
	}
	name := filepath.Base(event.Name)
	if !sw.names[name] {
		return
	}
	sw.logger.Debug("store file changed", zap.String("file", name), zap.String("op", event.Op.String()))
	sw.pending[name] = true
	sw.lastAt = time.Now()
}

// flush delivers pending changes once the debounce window has passed
// without new events.
func (sw *StoreWatcher) flush(ctx context.Context) {
	if len(sw.pending) == 0 || time.Since(sw.lastAt) < sw.debounce {
		return
	}
	names := make([]string, 0, len(sw.pending))
	for n := range sw.pending {
		names = append(names, n)
	}
	sw.pending = make(map[string]bool)

	select {
	case sw.changes <- names:
	case <-ctx.Done():
	case <-sw.stopCh:
	}
}
