// Package watch re-triggers report runs when watched source directories
// change.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces bursts of filesystem events into one trigger.
const DefaultDebounce = 500 * time.Millisecond

// Watcher watches a set of directory trees and invokes a callback after
// changes settle.
type Watcher struct {
	fsw      *fsnotify.Watcher
	logger   *log.Logger
	debounce time.Duration
	ignore   []string
}

// New creates a Watcher over the given root directories. Paths under any of
// the ignore prefixes, and dot-directories, are not watched. A zero debounce
// uses DefaultDebounce.
func New(roots, ignore []string, debounce time.Duration, logger *log.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w := &Watcher{
		fsw:      fsw,
		logger:   logger,
		debounce: debounce,
		ignore:   ignore,
	}
	for _, root := range roots {
		if err := w.addTree(root); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

// Close stops the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Run blocks, invoking fn after each settled burst of changes, until the
// context is canceled.
func (w *Watcher) Run(ctx context.Context, fn func()) error {
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if w.ignored(event.Name) {
				continue
			}
			if event.Op.Has(fsnotify.Create) {
				// New directories need to be picked up mid-run.
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						w.logger.Printf("Warning: failed to watch new directory %s: %v", event.Name, err)
					}
				}
			}
			w.logger.Printf("Change detected: %s (%s)", event.Name, event.Op)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				fire = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Printf("Watcher error: %v", err)
		case <-fire:
			timer = nil
			fire = nil
			fn()
		}
	}
}

// addTree registers root and all its non-ignored subdirectories.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		if path != root && strings.HasPrefix(base, ".") {
			return filepath.SkipDir
		}
		if w.ignored(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

// ignored reports whether path falls under an ignored prefix.
func (w *Watcher) ignored(path string) bool {
	for _, prefix := range w.ignore {
		if prefix == "" {
			continue
		}
		rel, err := filepath.Rel(prefix, path)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
