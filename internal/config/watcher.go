package config

import (
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches the loaded config file for changes and calls Reload on
// the Loader automatically — the hot-reload half of live configuration.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	loader    *Loader
	callbacks []func(cfg *Config)
	done      chan struct{}
	logger    *slog.Logger
}

// NewWatcher creates a Watcher for the file loader is currently tracking.
// loader.Load must have been called first. Call Start to begin watching.
func NewWatcher(loader *Loader, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsWatcher: fsw,
		loader:    loader,
		done:      make(chan struct{}),
		logger:    logger.With("component", "config.Watcher"),
	}
	loader.SetWatcher(w)

	if path := loader.FilePath(); path != "" {
		if err := fsw.Add(filepath.Dir(path)); err != nil {
			w.logger.Warn("could not watch config directory", "path", path, "error", err)
		}
	}

	return w, nil
}

// OnChange registers a callback invoked (synchronously, on the watcher
// goroutine) with the freshly reloaded config after every successful
// reload.
func (w *Watcher) OnChange(fn func(cfg *Config)) {
	w.callbacks = append(w.callbacks, fn)
}

// Start begins watching in a background goroutine. Returns immediately.
func (w *Watcher) Start() error {
	go w.loop()
	return nil
}

// Stop shuts the watcher down and releases its fsnotify handle.
func (w *Watcher) Stop() error {
	close(w.done)
	return w.fsWatcher.Close()
}

func (w *Watcher) loop() {
	watched := w.loader.FilePath()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(watched) {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
				continue
			}
			if err := w.loader.Reload(); err != nil {
				w.logger.Error("config reload failed", "path", watched, "error", err)
				continue
			}
			w.logger.Info("config reloaded", "path", watched)
			cfg := w.loader.Get()
			for _, fn := range w.callbacks {
				fn(cfg)
			}
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("fsnotify error", "error", err)
		}
	}
}
