package overlay

import (
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
)

// Registry is the bounded collection of live entities. It is the only
// component that mounts or unmounts visuals in its container.
type Registry struct {
	max       int
	container Container
	factory   VisualFactory
	clock     clockwork.Clock

	mu      sync.Mutex
	byID    map[ID]*entry
	ordered []*entry // creation order
}

// entry is the registry's own record. Callers only ever see Entity copies.
type entry struct {
	entity Entity
}

// NewRegistry creates an empty registry admitting at most max entities.
func NewRegistry(max int, container Container, factory VisualFactory, clock clockwork.Clock) *Registry {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Registry{
		max:       max,
		container: container,
		factory:   factory,
		clock:     clock,
		byID:      make(map[ID]*entry),
	}
}

// Place admits a new entity anchored at anchor with its visual initially at
// at. When the registry is full it returns ErrAdmissionRejected and changes
// nothing.
func (r *Registry) Place(anchor LngLat, at Point) (ID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.ordered) >= r.max {
		return "", fmt.Errorf("%w (%d/%d)", ErrAdmissionRejected, len(r.ordered), r.max)
	}

	id := newID()
	for r.byID[id] != nil {
		id = newID()
	}
	v := r.factory(id, anchor)
	v.SetPosition(at)
	r.container.Mount(v)

	e := &entry{entity: Entity{ID: id, Anchor: anchor, Visual: v, CreatedAt: r.clock.Now()}}
	r.byID[id] = e
	r.ordered = append(r.ordered, e)
	return id, nil
}

// Remove unmounts and releases the entity's visual. It reports whether the
// entity was present; removing an absent id is a no-op.
func (r *Registry) Remove(id ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byID[id]
	if !ok {
		return false
	}
	delete(r.byID, id)
	for i, o := range r.ordered {
		if o == e {
			r.ordered = append(r.ordered[:i], r.ordered[i+1:]...)
			break
		}
	}
	r.container.Unmount(e.entity.Visual)
	e.entity.Visual.Release()
	return true
}

// ForEach calls fn with a copy of every entity alive when the call started,
// in creation order. fn may remove entities: each remaining entity is still
// visited once, and entities removed before their turn are skipped.
func (r *Registry) ForEach(fn func(e Entity)) {
	r.mu.Lock()
	entries := make([]*entry, len(r.ordered))
	copy(entries, r.ordered)
	r.mu.Unlock()

	for _, e := range entries {
		r.mu.Lock()
		alive := r.byID[e.entity.ID] == e
		r.mu.Unlock()
		if alive {
			fn(e.entity)
		}
	}
}

// Snapshot returns copies of the live entities in creation order.
func (r *Registry) Snapshot() []Entity {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entity, len(r.ordered))
	for i, e := range r.ordered {
		out[i] = e.entity
	}
	return out
}

// Get returns a copy of the entity with the given id.
func (r *Registry) Get(id ID) (Entity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	if !ok {
		return Entity{}, false
	}
	return e.entity, true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ordered)
}

// Max returns the admission limit.
func (r *Registry) Max() int { return r.max }

// Clear removes every entity and returns how many were removed.
func (r *Registry) Clear() int {
	n := 0
	for _, e := range r.Snapshot() {
		if r.Remove(e.ID) {
			n++
		}
	}
	return n
}
