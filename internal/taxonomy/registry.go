package taxonomy

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce collapses the burst of events editors emit on save.
const reloadDebounce = 250 * time.Millisecond

// Registry hands out the current table and swaps it atomically on reload.
type Registry struct {
	current atomic.Pointer[Table]
	path    string
}

// NewRegistry loads the table at path, or the embedded default when path is empty.
func NewRegistry(path string) (*Registry, error) {
	r := &Registry{path: path}
	if path == "" {
		r.current.Store(Default())
		return r, nil
	}
	t, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	r.current.Store(t)
	slog.Info("Taxonomy loaded", "path", path, "rules", len(t.Rules), "vocabulary", len(t.Vocabulary))
	return r, nil
}

// NewStaticRegistry wraps a fixed table.
func NewStaticRegistry(t *Table) *Registry {
	r := &Registry{}
	r.current.Store(t)
	return r
}

// Current returns the active table.
func (r *Registry) Current() *Table {
	return r.current.Load()
}

// Reload re-reads the file. On failure the previous table stays active.
func (r *Registry) Reload() error {
	if r.path == "" {
		return nil
	}
	t, err := LoadFile(r.path)
	if err != nil {
		slog.Warn("Registry.Reload: keeping previous taxonomy", "path", r.path, "error", err)
		return err
	}
	r.current.Store(t)
	slog.Info("Registry.Reload: taxonomy reloaded", "path", r.path, "rules", len(t.Rules))
	return nil
}

// Watch reloads the table whenever its file changes, until ctx is done.
// The parent directory is watched so atomic-rename saves are picked up too.
func (r *Registry) Watch(ctx context.Context) error {
	if r.path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(r.path)); err != nil {
		watcher.Close()
		return err
	}
	target := filepath.Clean(r.path)

	go func() {
		defer watcher.Close()
		var pending <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
					pending = time.After(reloadDebounce)
				}
			case <-pending:
				pending = nil
				_ = r.Reload()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("Registry.Watch: watcher error", "error", err)
			}
		}
	}()
	slog.Debug("Registry.Watch: watching taxonomy", "path", r.path)
	return nil
}
