package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/codefionn/crewschnell/internal/logger"
)

const debounceDuration = 100 * time.Millisecond

// Watcher reloads the config file when it changes on disk and hands the
// result to a callback. Editors often replace the file instead of writing in
// place, so the parent directory is watched rather than the file itself.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	onLoad  func(*Config)
	log     *logger.Logger
}

// NewWatcher starts watching path. The callback runs on the watcher goroutine
// for every successful reload.
func NewWatcher(path string, log *logger.Logger, onLoad func(*Config)) (*Watcher, error) {
	if log == nil {
		log = logger.Global()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}

	return &Watcher{
		path:    path,
		watcher: fsw,
		onLoad:  onLoad,
		log:     log,
	}, nil
}

// Run processes events until ctx is done. Rapid event bursts are debounced
// into a single reload.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	debounce := time.NewTimer(0)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !debounce.Stop() {
				select {
				case <-debounce.C:
				default:
				}
			}
			debounce.Reset(debounceDuration)

		case <-debounce.C:
			cfg, err := Load(w.path)
			if err != nil {
				w.log.Warn("config: reload of %s failed: %v", w.path, err)
				continue
			}
			w.log.Info("config: reloaded %s", w.path)
			w.onLoad(cfg)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("config: watcher error: %v", err)

		case <-ctx.Done():
			return
		}
	}
}
