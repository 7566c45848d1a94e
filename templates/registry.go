package templates

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Registry holds the live template set and swaps it on reload.
type Registry struct {
	mu       sync.RWMutex
	set      *Set
	logger   *zap.Logger
	onChange []func(oldVersion, newVersion string)
}

// NewRegistry wraps an initial set.
func NewRegistry(set *Set, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{set: set, logger: logger.Named("templates")}
}

// Current returns the active set.
func (r *Registry) Current() *Set {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.set
}

// Version returns the active set version.
func (r *Registry) Version() string {
	if s := r.Current(); s != nil {
		return s.Version
	}
	return ""
}

// OnChange registers a callback fired after a reload changes the version.
func (r *Registry) OnChange(fn func(oldVersion, newVersion string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = append(r.onChange, fn)
}

// Replace installs a new set and fires callbacks if the version moved.
func (r *Registry) Replace(set *Set) {
	if set == nil {
		return
	}
	r.mu.Lock()
	old := ""
	if r.set != nil {
		old = r.set.Version
	}
	r.set = set
	cbs := append([]func(string, string){}, r.onChange...)
	r.mu.Unlock()

	if old == set.Version {
		return
	}
	r.logger.Info("template set replaced", zap.String("old_version", old), zap.String("new_version", set.Version))
	for _, fn := range cbs {
		fn(old, set.Version)
	}
}

// Reload reads path and installs it.
func (r *Registry) Reload(path string) error {
	set, err := LoadFile(path)
	if err != nil {
		return err
	}
	r.Replace(set)
	return nil
}

// Watch reloads path whenever it is written. It blocks until ctx is done.
// A broken file is logged and the previous set stays active.
func (r *Registry) Watch(ctx context.Context, path string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	// Watch the directory so editors that replace the file are still seen.
	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	target := filepath.Clean(path)
	r.logger.Info("watching template set", zap.String("path", target))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if err := r.Reload(path); err != nil {
				r.logger.Warn("template reload failed", zap.String("path", path), zap.Error(err))
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("template watcher error", zap.Error(err))
		}
	}
}
