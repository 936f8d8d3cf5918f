package ecs

import (
	"errors"
	"slices"
	"sync"
)

// DependencyManager tracks the jobs reading and writing each component type.
type DependencyManager interface {
	// CompleteDependencies blocks until every job conflicting with the given access
	// finished and returns their joined errors.
	CompleteDependencies(types []ComponentType) error
	// AddDependency registers h as touching the given types.
	AddDependency(types []ComponentType, h JobHandle)
	// DependencyFor returns the combined handle a job with the given access waits on.
	DependencyFor(types []ComponentType) JobHandle
}

// DependencyTracker is the default DependencyManager. A write waits for the last
// writer and every reader since; a read waits for the last writer only.
type DependencyTracker struct {
	mu      sync.Mutex
	writers map[ComponentID]JobHandle
	readers map[ComponentID][]JobHandle
}

func NewDependencyTracker() *DependencyTracker {
	return &DependencyTracker{
		writers: make(map[ComponentID]JobHandle),
		readers: make(map[ComponentID][]JobHandle),
	}
}

func (t *DependencyTracker) conflicting(types []ComponentType) []JobHandle {
	var out []JobHandle
	for _, ct := range types {
		if w, ok := t.writers[ct.ID]; ok {
			out = append(out, w)
		}
		if !ct.IsReadOnly() {
			out = append(out, t.readers[ct.ID]...)
		}
	}
	return out
}

func (t *DependencyTracker) CompleteDependencies(types []ComponentType) error {
	t.mu.Lock()
	handles := t.conflicting(types)
	t.mu.Unlock()

	var errs []error
	for _, h := range handles {
		if err := h.Complete(); err != nil {
			errs = append(errs, err)
		}
	}
	t.prune(handles)
	return errors.Join(errs...)
}

func (t *DependencyTracker) AddDependency(types []ComponentType, h JobHandle) {
	if h.job == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, ct := range types {
		if ct.IsReadOnly() {
			t.readers[ct.ID] = append(t.readers[ct.ID], h)
			continue
		}
		t.writers[ct.ID] = h
		delete(t.readers, ct.ID)
	}
}

func (t *DependencyTracker) DependencyFor(types []ComponentType) JobHandle {
	t.mu.Lock()
	defer t.mu.Unlock()
	return CombineDependencies(t.conflicting(types)...)
}

// prune forgets the given handles once they completed.
func (t *DependencyTracker) prune(done []JobHandle) {
	if len(done) == 0 {
		return
	}
	completed := func(h JobHandle) bool {
		return h.IsCompleted() && slices.Contains(done, h)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, w := range t.writers {
		if completed(w) {
			delete(t.writers, id)
		}
	}
	for id, rs := range t.readers {
		rs = slices.DeleteFunc(rs, completed)
		if len(rs) == 0 {
			delete(t.readers, id)
		} else {
			t.readers[id] = rs
		}
	}
}
