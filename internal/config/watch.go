package config

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vthunder/engram/internal/logging"
)

// Watcher reloads a YAML config file into a Store whenever the file
// changes on disk, modeled on codenerd's MangleWatcher
// (internal/core/mangle_watcher.go): an fsnotify watcher on the
// containing directory, debounced, feeding a single target.
type Watcher struct {
	watcher     *fsnotify.Watcher
	path        string
	store       *Store
	debounce    time.Duration
	lastEvent   time.Time
	stopCh      chan struct{}
	doneCh      chan struct{}
}

// NewWatcher creates a Watcher for path, writing reloaded configs into store.
func NewWatcher(path string, store *Store) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}
	return &Watcher{
		watcher:  w,
		path:     path,
		store:    store,
		debounce: 200 * time.Millisecond,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start runs the watch loop in a goroutine until Stop is called.
func (w *Watcher) Start() {
	go w.run()
}

func (w *Watcher) run() {
	defer close(w.doneCh)
	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if !(ev.Op&(fsnotify.Write|fsnotify.Create) != 0) {
				continue
			}
			now := time.Now()
			if now.Sub(w.lastEvent) < w.debounce {
				continue
			}
			w.lastEvent = now
			cfg, err := Load(w.path)
			if err != nil {
				logging.Warn("config", "reload of %s failed: %v", w.path, err)
				continue
			}
			w.store.Set(cfg)
			logging.Info("config", "reloaded %s", w.path)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Warn("config", "watch error: %v", err)
		}
	}
}

// Stop terminates the watch loop and releases the underlying fsnotify
// watcher.
func (w *Watcher) Stop() {
	close(w.stopCh)
	w.watcher.Close()
	<-w.doneCh
}
