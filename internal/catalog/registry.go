package catalog

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Registry holds the current catalog and swaps it atomically on reload.
type Registry struct {
	fsys    fs.FS
	current atomic.Pointer[Catalog]
	onLoad  func(*Catalog)
	onError func(error)
}

// NewRegistry loads the catalog from fsys.
func NewRegistry(fsys fs.FS) (*Registry, error) {
	r := &Registry{fsys: fsys}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// OnLoad registers a callback run after every successful load, including the
// current catalog immediately.
func (r *Registry) OnLoad(fn func(*Catalog)) {
	r.onLoad = fn
	if c := r.current.Load(); c != nil && fn != nil {
		fn(c)
	}
}

// OnError registers a callback run after every failed reload.
func (r *Registry) OnError(fn func(error)) {
	r.onError = fn
}

// Current returns the most recently loaded catalog.
func (r *Registry) Current() *Catalog {
	return r.current.Load()
}

// Reload re-reads the content. On failure the previous catalog stays active.
func (r *Registry) Reload() error {
	c, err := Load(r.fsys)
	if err != nil {
		if r.onError != nil {
			r.onError(err)
		}
		return fmt.Errorf("load catalog: %w", err)
	}
	r.current.Store(c)
	if r.onLoad != nil {
		r.onLoad(c)
	}
	return nil
}

// Watch reloads the catalog when YAML files in dir change. Bursts of events are
// coalesced by debounce. Watch blocks until ctx is done.
func (r *Registry) Watch(ctx context.Context, dir string, debounce time.Duration) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create content watcher: %w", err)
	}
	defer func() {
		if closeErr := w.Close(); closeErr != nil {
			slog.Debug("Failed to close content watcher", "error", closeErr)
		}
	}()

	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	slog.Info("Watching content directory", "dir", dir, "debounce", debounce)

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !isContentFile(ev.Name) || ev.Op == fsnotify.Chmod {
				continue
			}
			timer.Reset(debounce)
		case werr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Content watcher error", "error", werr)
		case <-timer.C:
			if err := r.Reload(); err != nil {
				slog.Error("Content reload failed, keeping previous catalog", "error", err)
				continue
			}
			c := r.Current()
			slog.Info("Content reloaded", "lessons", len(c.Lessons()), "projects", len(c.Projects()))
		}
	}
}

func isContentFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

// DirFS returns the filesystem for a content directory after checking it exists.
func DirFS(dir string) (fs.FS, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("stat content dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("content dir %s is not a directory", dir)
	}
	return os.DirFS(dir), nil
}
