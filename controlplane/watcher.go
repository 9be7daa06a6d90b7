package controlplane

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher hot-reloads the registry when the config file changes on disk.
// It watches the containing directory because editors and the store itself
// replace the file by rename, which drops a watch placed on the file.
type Watcher struct {
	store    *Store
	logger   zerolog.Logger
	debounce time.Duration
}

// NewWatcher wires a watcher around the store's persistence path.
func NewWatcher(store *Store, logger zerolog.Logger) *Watcher {
	return &Watcher{store: store, logger: logger, debounce: 200 * time.Millisecond}
}

// Run blocks until the context is cancelled. An invalid file is logged and
// skipped; the live registry is never disturbed by a bad edit.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	dir := filepath.Dir(w.store.Path())
	if err := fw.Add(dir); err != nil {
		return err
	}
	target := filepath.Base(w.store.Path())

	var timer *time.Timer
	reload := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			// Collapse editor write bursts into one reload.
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case <-reload:
			if err := w.store.LoadFromDisk(); err != nil {
				w.logger.Warn().Err(err).Msg("config reload skipped")
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("config watcher error")
		}
	}
}
