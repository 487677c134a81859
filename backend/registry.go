package backend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// ErrBackendExists is returned when registering a duplicate backend.
var ErrBackendExists = errors.New("backend already registered")

// Registry tracks backend instances by name.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Backend
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		backends: make(map[string]Backend),
	}
}

// Register adds a backend to the registry.
func (r *Registry) Register(b Backend) error {
	if b == nil {
		return fmt.Errorf("backend is nil")
	}
	name := b.Name()
	if name == "" {
		return fmt.Errorf("backend name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.backends[name]; exists {
		return fmt.Errorf("%w: %s", ErrBackendExists, name)
	}
	r.backends[name] = b
	return nil
}

// Unregister stops and removes the named backend.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	b, exists := r.backends[name]
	delete(r.backends, name)
	r.mu.Unlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrBackendNotFound, name)
	}
	return b.Stop()
}

// Get retrieves a backend by name.
func (r *Registry) Get(name string) (Backend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.backends[name]
	return b, ok
}

// List returns all backends sorted by name.
func (r *Registry) List() []Backend {
	r.mu.RLock()
	out := make([]Backend, 0, len(r.backends))
	for _, b := range r.backends {
		out = append(out, b)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// ListEnabled returns enabled backends only.
func (r *Registry) ListEnabled() []Backend {
	all := r.List()
	out := make([]Backend, 0, len(all))
	for _, b := range all {
		if b.Enabled() {
			out = append(out, b)
		}
	}
	return out
}

// ListByKind returns backends matching the given kind.
func (r *Registry) ListByKind(kind string) []Backend {
	all := r.List()
	out := make([]Backend, 0, len(all))
	for _, b := range all {
		if b.Kind() == kind {
			out = append(out, b)
		}
	}
	return out
}

// Names returns backend names sorted for deterministic output.
func (r *Registry) Names() []string {
	all := r.List()
	out := make([]string, 0, len(all))
	for _, b := range all {
		out = append(out, b.Name())
	}
	return out
}

// Len returns the number of registered backends.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.backends)
}

// StartAll starts all enabled backends, stopping at the first failure.
func (r *Registry) StartAll(ctx context.Context) error {
	for _, b := range r.ListEnabled() {
		if err := b.Start(ctx); err != nil {
			return fmt.Errorf("starting %s: %w", b.Name(), err)
		}
	}
	return nil
}

// StopAll stops and removes every backend. All backends are stopped even if
// some fail; the failures are combined.
func (r *Registry) StopAll() error {
	r.mu.Lock()
	all := r.backends
	r.backends = make(map[string]Backend)
	r.mu.Unlock()

	names := make([]string, 0, len(all))
	for n := range all {
		names = append(names, n)
	}
	sort.Strings(names)

	var errs *multierror.Error
	for _, n := range names {
		if err := all[n].Stop(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("stopping %s: %w", n, err))
		}
	}
	return errs.ErrorOrNil()
}
