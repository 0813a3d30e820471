// Package watch observes the org tree with fsnotify and runs a handler once
// changes settle.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the tree must stay quiet before a pass runs.
const DefaultDebounce = 300 * time.Millisecond

// Handler is called with the sorted, slash-separated paths that changed
// since the previous pass.
type Handler func(ctx context.Context, changed []string)

// Options configures a watcher.
type Options struct {
	Root     string
	Ext      string
	Debounce time.Duration
	// SkipDirs are directory names never watched (artifact and VCS dirs).
	SkipDirs []string
	// Ignore drops individual relative paths, such as generated artifacts.
	Ignore func(rel string) bool
}

// Watch starts an fsnotify watcher on opts.Root and calls h after each burst
// of changes until ctx is cancelled. Directories created at runtime are
// added to the watch list.
func Watch(ctx context.Context, opts Options, logger *slog.Logger, h Handler) error {
	if opts.Ext == "" {
		opts.Ext = ".md"
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, opts.Root, opts.SkipDirs); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", opts.Root))

	pending := make(map[string]struct{})
	var timer *time.Timer
	var fire <-chan time.Time

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(opts.Debounce)
			fire = timer.C
		} else {
			timer.Reset(opts.Debounce)
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

		case <-fire:
			timer, fire = nil, nil
			if len(pending) == 0 {
				continue
			}
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			slices.Sort(changed)
			clear(pending)
			logger.Debug("watcher: pass", slog.Int("changed", len(changed)))
			h(ctx, changed)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			rel, relErr := filepath.Rel(opts.Root, ev.Name)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)
			if skipped(rel, opts.SkipDirs) {
				continue
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name, opts.SkipDirs); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", rel),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", rel))
					}
					// Files may land in the directory before it is watched.
					pending[rel] = struct{}{}
					schedule()
					continue
				}
			}

			// A removed or renamed directory has no extension; count it too.
			isDirChange := ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 && filepath.Ext(rel) == ""
			if !strings.HasSuffix(rel, opts.Ext) && !isDirChange {
				continue
			}
			if opts.Ignore != nil && opts.Ignore(rel) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			pending[rel] = struct{}{}
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func skipped(rel string, skipDirs []string) bool {
	for _, part := range strings.Split(rel, "/") {
		if slices.Contains(skipDirs, part) {
			return true
		}
	}
	return false
}

// addDirsRecursive adds root and all its subdirectories to the watcher,
// pruning skipDirs.
func addDirsRecursive(w *fsnotify.Watcher, root string, skipDirs []string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && slices.Contains(skipDirs, d.Name()) {
			return fs.SkipDir
		}
		return w.Add(path)
	})
}
