// Package filewatcher provides file system monitoring adapters.
package filewatcher

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/0xcro3dile/ragstream/internal/domain/ports"
	"github.com/0xcro3dile/ragstream/internal/logger"
)

const defaultDebounce = 300 * time.Millisecond

// FSNotifyWatcher implements ports.FileWatcher using fsnotify. Bursts of
// events for the same path are coalesced into one.
type FSNotifyWatcher struct {
	watcher    *fsnotify.Watcher
	extensions map[string]struct{}
	debounce   time.Duration
	log        *logger.Logger
}

var _ ports.FileWatcher = (*FSNotifyWatcher)(nil)

// NewFSNotifyWatcher creates a watcher for files with the given extensions.
func NewFSNotifyWatcher(extensions []string, log *logger.Logger) (*FSNotifyWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if len(extensions) == 0 {
		extensions = []string{".pdf", ".txt", ".md"}
	}
	if log == nil {
		log = logger.Nop()
	}

	exts := make(map[string]struct{}, len(extensions))
	for _, e := range extensions {
		exts[strings.ToLower(e)] = struct{}{}
	}

	return &FSNotifyWatcher{
		watcher:    w,
		extensions: exts,
		debounce:   defaultDebounce,
		log:        log.With("component", "filewatcher"),
	}, nil
}

// Scan lists files already present in dir that match the watched extensions.
func (w *FSNotifyWatcher) Scan(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !w.isWatchedExtension(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	return paths, nil
}

// Watch starts monitoring the directory and emits events.
func (w *FSNotifyWatcher) Watch(ctx context.Context, dir string) (<-chan ports.FileEvent, error) {
	if err := w.watcher.Add(dir); err != nil {
		return nil, err
	}
	w.log.Info("watching directory", "dir", dir)

	events := make(chan ports.FileEvent, 100)
	go w.loop(ctx, events)
	return events, nil
}

func (w *FSNotifyWatcher) loop(ctx context.Context, events chan<- ports.FileEvent) {
	defer close(events)

	pending := make(map[string]ports.FileOperation)
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.isWatchedExtension(event.Name) {
				continue
			}
			op, ok := translate(event.Op)
			if !ok {
				continue
			}
			pending[event.Name] = merge(pending[event.Name], op, hasKey(pending, event.Name))
			timer.Reset(w.debounce)

		case <-timer.C:
			if !flush(ctx, events, pending) {
				return
			}
			pending = make(map[string]ports.FileOperation)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("watcher error", "error", err)
		}
	}
}

// flush emits pending events in path order. It returns false when ctx ends.
func flush(ctx context.Context, events chan<- ports.FileEvent, pending map[string]ports.FileOperation) bool {
	paths := make([]string, 0, len(pending))
	for p := range pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		select {
		case events <- ports.FileEvent{Path: p, Operation: pending[p]}:
		case <-ctx.Done():
			return false
		}
	}
	return true
}

func translate(op fsnotify.Op) (ports.FileOperation, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return ports.FileCreated, true
	case op.Has(fsnotify.Write):
		return ports.FileModified, true
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return ports.FileDeleted, true
	}
	return 0, false
}

// merge folds a new operation into the one already pending for a path.
// A delete always wins; a create followed by writes stays a create.
func merge(prev, next ports.FileOperation, seen bool) ports.FileOperation {
	if !seen || next == ports.FileDeleted {
		return next
	}
	if prev == ports.FileDeleted {
		// deleted then recreated within the window
		return ports.FileModified
	}
	if prev == ports.FileCreated {
		return ports.FileCreated
	}
	return next
}

func hasKey(m map[string]ports.FileOperation, k string) bool {
	_, ok := m[k]
	return ok
}

// Stop stops the watcher.
func (w *FSNotifyWatcher) Stop() error {
	return w.watcher.Close()
}

// isWatchedExtension checks if the file has a watched extension.
func (w *FSNotifyWatcher) isWatchedExtension(path string) bool {
	_, ok := w.extensions[strings.ToLower(filepath.Ext(path))]
	return ok
}
