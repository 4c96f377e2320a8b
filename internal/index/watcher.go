package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounce is how long the watcher waits for a burst of events to settle.
const debounce = 200 * time.Millisecond

// EventCallback is called for every changed note once a burst of events has
// settled and the index has been invalidated.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, path string)

// Watch starts an fsnotify watcher on root and marks x dirty whenever a note
// changes, until ctx is cancelled. Events are debounced; each settled burst
// invalidates the index once and triggers a background rebuild.
//
// New directories created at runtime are automatically added to the watch
// list.
func Watch(ctx context.Context, x *Indexer, root string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	var timer *time.Timer
	var timerCh <-chan time.Time
	pending := make(map[string]string)

	schedule := func(rel, kind string) {
		// A create followed by writes is still a create.
		if prev, ok := pending[rel]; !ok || prev != "created" || kind == "deleted" {
			pending[rel] = kind
		}
		if timer == nil {
			timer = time.NewTimer(debounce)
			timerCh = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			x.Invalidate()
			x.Trigger()
			logger.Debug("watcher: invalidated", slog.Int("changes", len(pending)))
			for rel, kind := range pending {
				if cb != nil {
					cb(kind, rel)
				}
				delete(pending, rel)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					// Notes may already exist in a directory moved into place.
					queueNewDir(root, absPath, schedule)
					continue
				}
			}

			if !strings.HasSuffix(absPath, ".md") {
				continue
			}
			rel, relErr := filepath.Rel(root, absPath)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)
			if x.scanner.Excluded(rel) {
				continue
			}

			switch {
			case ev.Op&fsnotify.Create != 0:
				schedule(rel, "created")
			case ev.Op&fsnotify.Write != 0:
				schedule(rel, "updated")
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				// fsnotify reports a rename on the old path only; the new
				// path arrives as a separate create.
				schedule(rel, "deleted")
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// queueNewDir schedules every note already present in a new directory.
func queueNewDir(root, dir string, schedule func(rel, kind string)) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".md") {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		schedule(filepath.ToSlash(rel), "created")
		return nil
	})
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
