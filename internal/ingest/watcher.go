// ABOUTME: Watcher triggers a debounced callback when supported documents change
// ABOUTME: Built on fsnotify; new subdirectories are added to the watch as they appear
package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/harper/cenly/internal/logger"
)

// DefaultDebounce is the quiet period before a change burst triggers a rebuild
const DefaultDebounce = 2 * time.Second

// Watcher watches a document directory
type Watcher struct {
	dir      string
	accepts  func(string) bool
	debounce time.Duration
	onChange func(context.Context)
	logger   *log.Logger

	fs        *fsnotify.Watcher
	closeOnce sync.Once
}

// NewWatcher watches dir recursively. onChange runs on the Run goroutine once
// events for accepted files have been quiet for debounce.
func NewWatcher(dir string, accepts func(string) bool, debounce time.Duration, onChange func(context.Context), l *log.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("watch root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch root %s is not a directory", dir)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	w := &Watcher{
		dir:      dir,
		accepts:  accepts,
		debounce: debounce,
		onChange: onChange,
		logger:   logger.OrDiscard(l),
		fs:       fw,
	}
	if err := w.addTree(dir); err != nil {
		_ = fw.Close()
		return nil, err
	}
	return w, nil
}

// Run delivers debounced change notifications until ctx is done or the watcher is closed
func (w *Watcher) Run(ctx context.Context) error {
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	w.logger.Info("watching documents", "dir", w.dir, "debounce", w.debounce)
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) && w.isDir(ev.Name) {
				if err := w.addTree(ev.Name); err != nil {
					w.logger.Warn("cannot watch new directory", "path", ev.Name, "err", err)
				}
				continue
			}
			if !w.Relevant(ev) {
				continue
			}
			w.logger.Debug("document changed", "path", ev.Name, "op", ev.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "err", err)

		case <-fire:
			fire = nil
			w.onChange(ctx)
		}
	}
}

// Relevant reports whether ev should schedule a rebuild
func (w *Watcher) Relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	if w.accepts == nil {
		return true
	}
	return w.accepts(ev.Name)
}

// Close stops watching; it is safe to call more than once
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() { err = w.fs.Close() })
	return err
}

func (w *Watcher) isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && isHidden(d.Name()) {
			return fs.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}
