package session

import (
	"slices"
	"sync"
)

// entry keeps info and position together so readers never observe one
// without the other.
type entry struct {
	info     Info
	position int
}

// Registry stores session state keyed by ID along with each session's
// position in the tab container.
//
// The event loop is the only writer, but every method takes the registry's
// own lock so a second writer cannot corrupt it. Absence is never an error:
// sessions may be closed while their jobs are still running.
type Registry struct {
	mu      sync.RWMutex
	entries map[ID]*entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[ID]*entry),
	}
}

// Create inserts info at position. Returns false, leaving the registry
// untouched, if info.ID is already present.
func (r *Registry) Create(info Info, position int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[info.ID]; exists {
		return false
	}
	r.entries[info.ID] = &entry{info: info.Clone(), position: position}
	return true
}

// Put inserts or overwrites info at position. Only re-fetch uses this;
// opening a session goes through Create.
func (r *Registry) Put(info Info, position int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[info.ID] = &entry{info: info.Clone(), position: position}
}

// Lookup returns a detached copy of the session's info.
func (r *Registry) Lookup(id ID) (Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return Info{}, false
	}
	return e.info.Clone(), true
}

// PositionOf returns the session's current position.
func (r *Registry) PositionOf(id ID) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return NoPosition, false
	}
	return e.position, true
}

// SetPosition records a new position for an existing session.
func (r *Registry) SetPosition(id ID, position int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return false
	}
	e.position = position
	return true
}

// Update replaces the info of an existing session. Returns false without
// inserting anything if the session is gone.
func (r *Registry) Update(id ID, info Info) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return false
	}
	info.ID = id
	e.info = info.Clone()
	return true
}

// Remove deletes the session and releases its position. Sessions after the
// released position shift down by one, matching the tab container.
func (r *Registry) Remove(id ID) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return NoPosition, false
	}
	delete(r.entries, id)

	for _, other := range r.entries {
		if other.position > e.position {
			other.position--
		}
	}
	return e.position, true
}

// IDAt returns the session at position.
func (r *Registry) IDAt(position int) (ID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for id, e := range r.entries {
		if e.position == position {
			return id, true
		}
	}
	return "", false
}

// IDs returns all session IDs ordered by position.
func (r *Registry) IDs() []ID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]ID, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b ID) int {
		return r.entries[a].position - r.entries[b].position
	})
	return ids
}

// Len returns the number of sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
