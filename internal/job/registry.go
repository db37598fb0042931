package job

import (
	"sort"
	"sync"
)

// Registry indexes jobs by id. Each id owns one slot for the life of the
// registry: purging a job keeps its id reserved.
type Registry struct {
	mu     sync.RWMutex
	jobs   map[string]*Job
	purged map[string]struct{}
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{
		jobs:   make(map[string]*Job),
		purged: make(map[string]struct{}),
	}
}

// Reserve inserts j under its id, failing if the id was ever used
func (r *Registry) Reserve(j *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[j.ID]; ok {
		return &ConflictError{JobID: j.ID}
	}
	if _, ok := r.purged[j.ID]; ok {
		return &ConflictError{JobID: j.ID}
	}
	r.jobs[j.ID] = j
	return nil
}

// release frees a reservation whose job never started
func (r *Registry) release(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, id)
}

// tombstone marks id as used without holding a job
func (r *Registry) tombstone(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, id)
	r.purged[id] = struct{}{}
}

// Get returns the job registered under id
func (r *Registry) Get(id string) (*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return j, nil
}

// Purge drops a terminal job. Running jobs cannot be purged.
func (r *Registry) Purge(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if !j.Status().IsTerminal() {
		return ErrNotReady
	}
	delete(r.jobs, id)
	r.purged[id] = struct{}{}
	return nil
}

// IDs returns the ids of held jobs in sorted order
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.jobs))
	for id := range r.jobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
