// watcher.go: filesystem-driven hot reload of extensions
//
// Copyright (C) 2026 Stormy-RPG
// SPDX-License-Identifier: AGPL-3.0-only

package mailbot

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agilira/go-timecache"
	"github.com/fsnotify/fsnotify"
)

// lifecycle is the slice of the host the watcher drives. Kept narrow so tests
// can substitute a recorder for the real host.
type lifecycle interface {
	Reload(key string) error
	Unload(key string) error
}

// WatcherOptions configures a ChangeWatcher.
type WatcherOptions struct {
	Scan     ScanOptions
	Debounce time.Duration
	Logger   Logger
}

// ChangeWatcher watches the extension root and translates file events into
// lifecycle operations: a modified module is reloaded, a deleted or
// renamed-away module is unloaded, a created one is ignored until its first
// modification. Bursts of events for the same path are debounced with a
// timestamp window: an event arriving within the window of the last accepted
// event for that path is dropped outright, so a burst triggers at most one
// reload and trailing noise is never replayed later.
//
// All watcher state is owned by the single event-loop goroutine; lifecycle
// errors are logged, never propagated, because a broken extension must not
// stop the watcher from reacting to the fix-up edit that follows.
type ChangeWatcher struct {
	root string
	host lifecycle
	opts ScanOptions
	log  Logger
	fsw  *fsnotify.Watcher

	debounce atomic.Int64

	stopOnce sync.Once
	done     chan struct{}
}

// NewChangeWatcher creates a watcher over root driving the given lifecycle.
func NewChangeWatcher(root string, host lifecycle, opts WatcherOptions) (*ChangeWatcher, error) {
	opts.Scan.setDefaults()
	if opts.Debounce <= 0 {
		opts.Debounce = 500 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = DefaultLogger()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, NewWatcherError("failed to create filesystem watcher", err)
	}

	w := &ChangeWatcher{
		root: root,
		host: host,
		opts: opts.Scan,
		log:  opts.Logger,
		fsw:  fsw,
		done: make(chan struct{}),
	}
	w.debounce.Store(int64(opts.Debounce))
	return w, nil
}

// SetDebounce adjusts the debounce window at runtime. Safe to call while the
// event loop is running; the runtime config watcher uses this.
func (w *ChangeWatcher) SetDebounce(d time.Duration) {
	if d <= 0 {
		return
	}
	w.debounce.Store(int64(d))
}

// Debounce returns the current debounce window.
func (w *ChangeWatcher) Debounce() time.Duration {
	return time.Duration(w.debounce.Load())
}

// Start registers the watched directories and launches the event loop.
func (w *ChangeWatcher) Start(ctx context.Context) error {
	if err := w.addTree(w.root); err != nil {
		w.fsw.Close()
		return err
	}
	go w.eventLoop(ctx)
	w.log.Info("Extension watcher has been started", "root", w.root, "debounce", w.Debounce())
	return nil
}

// Stop terminates the event loop and releases the filesystem watches.
func (w *ChangeWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.fsw.Close()
		w.log.Info("Extension watcher has been stopped")
	})
}

// addTree watches dir and every package sub-directory below it.
func (w *ChangeWatcher) addTree(dir string) error {
	if err := w.fsw.Add(dir); err != nil {
		return NewWatcherError("failed to watch "+dir, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		sub := filepath.Join(dir, entry.Name())
		if hasPackageMarker(sub, w.opts.PackageMarker) {
			if err := w.addTree(sub); err != nil {
				return err
			}
		}
	}
	return nil
}

// eventLoop drains filesystem events until Stop or context cancellation.
// lastAccepted maps path -> nanosecond timestamp of the last event that
// passed the debounce window; it is touched only by this goroutine.
func (w *ChangeWatcher) eventLoop(ctx context.Context) {
	lastAccepted := make(map[string]int64)

	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event, lastAccepted)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("Filesystem watcher error", "error", err)
		}
	}
}

func (w *ChangeWatcher) handleEvent(event fsnotify.Event, lastAccepted map[string]int64) {
	// A created package directory joins the watch set; created files are
	// otherwise ignored, the first real modification loads them.
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if hasPackageMarker(event.Name, w.opts.PackageMarker) {
				if err := w.addTree(event.Name); err != nil {
					w.log.Warn("Failed to watch new package directory", "path", event.Name, "error", err)
				}
			}
		}
		return
	}

	key, ok := keyForPath(w.root, event.Name, w.opts)
	if !ok {
		return
	}

	switch {
	case event.Has(fsnotify.Write):
		// Only write events are debounced: an editor save burst must
		// collapse to one reload, but a removal is a distinct state change
		// and always unloads, even right after an accepted write.
		now := timecache.CachedTimeNano()
		if last, seen := lastAccepted[event.Name]; seen && now-last < w.debounce.Load() {
			return
		}
		lastAccepted[event.Name] = now

		w.log.Info("Extension modified, reloading", "key", key, "path", event.Name)
		if err := w.host.Reload(key); err != nil {
			w.log.Error("Hot reload failed", "key", key, "error", err)
		}
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		delete(lastAccepted, event.Name)

		w.log.Info("Extension removed, unloading", "key", key, "path", event.Name)
		if err := w.host.Unload(key); err != nil && !IsExtensionNotLoaded(err) {
			w.log.Error("Unload after removal failed", "key", key, "error", err)
		}
	}
}
