// Package watch loads JIIX documents dropped into a directory.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/inkmath/internal/checksum"
	"github.com/starford/inkmath/internal/storage"
)

// Debounce is how long a document must stay quiet before it is loaded.
const Debounce = 150 * time.Millisecond

// Loader installs a document read from path.
type Loader func(ctx context.Context, path string, data []byte) error

// EventCallback is called after a watcher-driven change. kind is one of
// "loaded", "rejected" or "deleted".
type EventCallback func(kind string, path string)

// Watch watches the store root and every subdirectory until ctx is
// cancelled. Created or rewritten documents are loaded once they have been
// quiet for Debounce; a document whose content did not change since it was
// last loaded is skipped.
func Watch(ctx context.Context, store *storage.FS, logger *slog.Logger, load Loader, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := store.Root()
	if err := addDirsRecursive(w, root); err != nil {
		return err
	}
	logger.Info("watch: started", slog.String("root", root))

	d := &dispatcher{store: store, logger: logger, load: load, cb: cb, seen: make(map[string]string)}
	dirty := make(map[string]struct{})
	var timer *time.Timer
	var fire <-chan time.Time
	schedule := func(rel string) {
		dirty[rel] = struct{}{}
		if timer == nil {
			timer = time.NewTimer(Debounce)
			fire = timer.C
		} else {
			timer.Reset(Debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watch: stopped")
			return nil

		case <-fire:
			paths := make([]string, 0, len(dirty))
			for p := range dirty {
				paths = append(paths, p)
			}
			clear(dirty)
			slices.Sort(paths)
			for _, p := range paths {
				d.loadPath(ctx, p)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watch: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					for _, rel := range documentsUnder(store, ev.Name) {
						schedule(rel)
					}
					continue
				}
			}

			if !storage.IsDocument(filepath.Base(ev.Name)) {
				continue
			}
			rel, relErr := store.Rel(ev.Name)
			if relErr != nil {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				schedule(rel)
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				delete(dirty, rel)
				delete(d.seen, rel)
				logger.Debug("watch: document gone", slog.String("path", rel))
				if cb != nil {
					cb("deleted", rel)
				}
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watch: error", slog.String("error", watchErr.Error()))
		}
	}
}

type dispatcher struct {
	store  storage.Provider
	logger *slog.Logger
	load   Loader
	cb     EventCallback
	seen   map[string]string // path -> checksum of the last loaded content
}

func (d *dispatcher) loadPath(ctx context.Context, rel string) {
	data, err := d.store.Read(rel)
	if err != nil {
		d.logger.Warn("watch: read failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	sum := checksum.Document(data)
	if d.seen[rel] == sum {
		return
	}
	d.seen[rel] = sum
	if err := d.load(ctx, rel, data); err != nil {
		d.logger.Warn("watch: load failed", slog.String("path", rel), slog.String("error", err.Error()))
		if d.cb != nil {
			d.cb("rejected", rel)
		}
		return
	}
	d.logger.Debug("watch: loaded", slog.String("path", rel))
	if d.cb != nil {
		d.cb("loaded", rel)
	}
}

// LoadLatest loads the most recently modified document in the store, if
// any, and returns its path.
func LoadLatest(ctx context.Context, store storage.Provider, logger *slog.Logger, load Loader) (string, error) {
	metas, err := store.List("")
	if err != nil {
		return "", err
	}
	if len(metas) == 0 {
		return "", nil
	}
	latest := metas[0]
	for _, m := range metas[1:] {
		if m.UpdatedAt.After(latest.UpdatedAt) {
			latest = m
		}
	}
	data, err := store.Read(latest.Path)
	if err != nil {
		return "", err
	}
	if err := load(ctx, latest.Path, data); err != nil {
		return "", err
	}
	logger.Info("watch: loaded latest document", slog.String("path", latest.Path))
	return latest.Path, nil
}

func documentsUnder(store *storage.FS, dir string) []string {
	var out []string
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !storage.IsDocument(d.Name()) {
			return nil
		}
		if rel, relErr := store.Rel(path); relErr == nil {
			out = append(out, rel)
		}
		return nil
	})
	return out
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
