package workspace

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/haasonsaas/agentcore/internal/events"
)

// Watcher publishes file events for changes made to the workspace by
// anything other than the file tools.
type Watcher struct {
	guard     *Guard
	bus       *events.Bus
	sessionID string
	logger    *slog.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewWatcher creates a watcher for the guard's root.
func NewWatcher(guard *Guard, bus *events.Bus, sessionID string, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		guard:     guard,
		bus:       bus,
		sessionID: sessionID,
		logger:    logger.With("component", "workspace"),
	}
}

// Start begins watching the workspace tree. Calling Start twice is a no-op.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher != nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = watcher
	if err := w.addTree(w.guard.Root()); err != nil {
		_ = watcher.Close()
		w.watcher = nil
		return err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.wg.Add(1)
	go w.loop(watchCtx, watcher)
	return nil
}

// Close stops the watcher and waits for the event loop to exit.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	watcher := w.watcher
	w.watcher = nil
	w.mu.Unlock()

	var err error
	if watcher != nil {
		err = watcher.Close()
	}
	w.wg.Wait()
	return err
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			w.logger.Debug("failed to watch workspace path", "path", path, "error", err)
		}
		return nil
	})
}

func (w *Watcher) loop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			w.handle(ctx, watcher, event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("workspace watch error", "error", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, watcher *fsnotify.Watcher, event fsnotify.Event) {
	rel := w.guard.Rel(event.Name)
	switch {
	case event.Has(fsnotify.Create):
		info, err := os.Stat(event.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			if err := watcher.Add(event.Name); err != nil {
				w.logger.Debug("failed to watch new directory", "path", rel, "error", err)
			}
			return
		}
		w.bus.Emit(ctx, w.sessionID, events.FileCreated{Path: rel, Size: info.Size(), Source: "watcher"})
	case event.Has(fsnotify.Write):
		info, err := os.Stat(event.Name)
		if err != nil || info.IsDir() {
			return
		}
		w.bus.Emit(ctx, w.sessionID, events.FileUpdated{Path: rel, Size: info.Size(), Source: "watcher"})
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.bus.Emit(ctx, w.sessionID, events.FileDeleted{Path: rel, Source: "watcher"})
	}
}
