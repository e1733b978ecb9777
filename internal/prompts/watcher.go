package prompts

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watcher clears a Loader's cache when template files in a directory change.
type Watcher struct {
	loader *Loader
	dir    string
	logger *slog.Logger

	// onChange, if set, runs after the cache has been cleared.
	onChange func(filename string)
}

// NewWatcher creates a watcher for dir. It does nothing until Run is called.
func NewWatcher(loader *Loader, dir string, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{loader: loader, dir: dir, logger: logger}
}

// OnChange registers a callback invoked with the changed filename.
func (w *Watcher) OnChange(fn func(filename string)) {
	w.onChange = fn
}

// Run watches until ctx is cancelled. Writes trigger a validation pass that
// is logged; any create, write, remove or rename of a .md file clears the
// cache.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	w.logger.Info("watching prompt templates", "dir", w.dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("prompt watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	name := filepath.Base(ev.Name)
	if !strings.HasSuffix(name, extension) {
		return
	}
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return
	}

	w.logger.Info("prompt template changed", "file", name, "op", ev.Op.String())
	w.loader.ClearCache()

	if ev.Has(fsnotify.Write) {
		if res := w.loader.Validate(name); res.Valid {
			w.logger.Info("prompt template is valid", "file", name)
		} else {
			w.logger.Warn("prompt template has errors", "file", name, "errors", res.Errors)
		}
	}

	if w.onChange != nil {
		w.onChange(name)
	}
}
