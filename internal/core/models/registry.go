package models

import (
	"sync"
)

// Registry assigns entity ids on first use and resolves them back to live
// entities. Ids are never reused within one registry.
type Registry struct {
	mu       sync.RWMutex
	last     EntityID
	entities map[EntityID]Entity
}

func NewRegistry() *Registry {
	return &Registry{entities: make(map[EntityID]Entity)}
}

// ID returns the id of e, registering it if needed. A released entity is
// registered again under the id it already carries. A nil entity has id zero.
func (r *Registry) ID(e Entity) EntityID {
	if e == nil {
		return 0
	}
	h := e.handle()
	if id := h.ID(); id != 0 && r.Contains(id) {
		return id
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if id := h.ID(); id != 0 {
		r.entities[id] = e
		return id
	}
	r.last++
	h.id.Store(uint64(r.last))
	r.entities[r.last] = e
	return r.last
}

// Lookup resolves an id to its entity.
func (r *Registry) Lookup(id EntityID) (Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entities[id]
	return e, ok
}

// Contains reports whether id is currently registered.
func (r *Registry) Contains(id EntityID) bool {
	_, ok := r.Lookup(id)
	return ok
}

// Remove unregisters id and clears the entity's handle. A later ID call
// registers the entity again under a fresh id.
func (r *Registry) Remove(id EntityID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entities[id]
	if !ok {
		return false
	}
	delete(r.entities, id)
	e.handle().id.Store(0)
	return true
}

// Release unregisters id but leaves the entity's handle set, so operations
// already built for the entity keep addressing it.
func (r *Registry) Release(id EntityID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entities[id]; !ok {
		return false
	}
	delete(r.entities, id)
	return true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entities)
}

// LookupNode resolves id to a scene node.
func (r *Registry) LookupNode(id EntityID) (*Node, bool) {
	e, ok := r.Lookup(id)
	if !ok {
		return nil, false
	}
	n, ok := e.(*Node)
	return n, ok
}
