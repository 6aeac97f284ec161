// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package instance implements the generic per-daemon-kind instance
// registry shared by rp_sla, rp_rip1, and the Control Plane's HTTP
// surfaces: create, get (with a "latest" alias), list, delete.
package instance

import (
	"sync"
	"sync/atomic"

	"github.com/wrgeorge1983/rtrcp/internal/errors"
	"github.com/wrgeorge1983/rtrcp/internal/system"
)

// Registry holds every live instance of a single daemon kind (one
// Registry[*sla.Daemon], one Registry[*rip1.Daemon], one
// Registry[*cp.Daemon] per process), keyed by its 8-character id. The
// most recently created instance is also reachable via the reserved id
// "latest" (system.LatestInstanceID), modeled as an atomic cell per the
// design note that this must not become ambient global state.
type Registry[T any] struct {
	mu        sync.RWMutex
	instances map[string]T
	latest    atomic.Pointer[latestEntry[T]]
}

type latestEntry[T any] struct {
	id    string
	value T
}

// NewRegistry returns an empty Registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{instances: make(map[string]T)}
}

// Create registers value under a freshly generated id and marks it as
// the new "latest" instance, returning the id.
func (r *Registry[T]) Create(value T) string {
	id := system.NewInstanceID()

	r.mu.Lock()
	r.instances[id] = value
	r.mu.Unlock()

	r.latest.Store(&latestEntry[T]{id: id, value: value})
	return id
}

// Get returns the instance registered under id, resolving the reserved
// alias "latest" to the most recently created instance. Returns
// KindNotFound if id doesn't resolve to any instance.
func (r *Registry[T]) Get(id string) (T, error) {
	var zero T

	if id == system.LatestInstanceID {
		entry := r.latest.Load()
		if entry == nil {
			return zero, errors.New(errors.KindNotFound, "no instances have been created yet")
		}
		return entry.value, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	value, ok := r.instances[id]
	if !ok {
		return zero, errors.Attr(errors.New(errors.KindNotFound, "no such instance"), "instance_id", id)
	}
	return value, nil
}

// List returns every registered instance id.
func (r *Registry[T]) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.instances))
	for id := range r.instances {
		ids = append(ids, id)
	}
	return ids
}

// Delete removes the instance registered under id, resolving the
// reserved alias "latest" first, and returns the id actually targeted.
// Idempotent per §6: deleting an unknown or already-deleted id is a
// successful no-op rather than an error, mirroring the original's
// protocol_instances.pop(instance_id, None). Deleting the current
// "latest" instance clears the latest pointer; it is never retargeted to
// some other remaining instance, since insertion order among the
// survivors is not a meaningful replacement for "most recently created".
func (r *Registry[T]) Delete(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	resolved := id
	if id == system.LatestInstanceID {
		if entry := r.latest.Load(); entry != nil {
			resolved = entry.id
		} else {
			resolved = ""
		}
	}

	delete(r.instances, resolved)

	if entry := r.latest.Load(); entry != nil && entry.id == resolved {
		r.latest.Store(nil)
	}
	return resolved
}
