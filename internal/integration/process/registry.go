package process

import (
	"fmt"
	"sort"
	"sync"
)

// DefaultRegistry is the process-wide table shared by all engines that do
// not configure their own.
var DefaultRegistry = NewRegistry()

// Registry maps process IDs to the handles of running processes.
//
// Registry is safe for concurrent use. Registration, lookup and removal are
// atomic with respect to each other.
type Registry struct {
	mu      sync.RWMutex
	entries map[int]*Handle
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[int]*Handle),
	}
}

// Register adds h under its PID.
//
// An entry left behind by a process that has already been reaped is
// replaced, since the operating system may recycle its PID. Registering
// over a live entry returns ErrDuplicatePID.
func (r *Registry) Register(h *Handle) error {
	if h == nil {
		return fmt.Errorf("register: nil handle")
	}
	pid := h.PID()
	if pid <= 0 {
		return fmt.Errorf("register: %w", ErrProcessNotStarted)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.entries[pid]; ok && existing != h && existing.Alive() {
		return fmt.Errorf("register pid %d: %w", pid, ErrDuplicatePID)
	}
	r.entries[pid] = h
	return nil
}

// Lookup returns the handle registered under pid.
// Returns ErrNotFound if there is none.
func (r *Registry) Lookup(pid int) (*Handle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.entries[pid]
	if !ok {
		return nil, ErrNotFound
	}
	return h, nil
}

// Deregister removes whatever is registered under pid.
func (r *Registry) Deregister(pid int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, pid)
}

// Remove deletes h if it is still the entry for its PID.
// Returns false when the PID now belongs to another handle or is absent.
func (r *Registry) Remove(h *Handle) bool {
	if h == nil {
		return false
	}
	pid := h.PID()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entries[pid] != h {
		return false
	}
	delete(r.entries, pid)
	return true
}

// List returns all registered handles ordered by PID.
func (r *Registry) List() []*Handle {
	r.mu.RLock()
	result := make([]*Handle, 0, len(r.entries))
	for _, h := range r.entries {
		result = append(result, h)
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].PID() < result[j].PID()
	})
	return result
}

// Count returns the number of registered handles.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
