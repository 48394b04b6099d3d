package weakref

import (
	"github.com/google/uuid"
	"github.com/hypernetix/weakling/libs/logging"
)

// Entry is one live (identity, object) pair of an IdentityMap snapshot
type Entry[T any] struct {
	ID    uint64
	Value *T
}

// IdentityMap maps identity tokens to weak handles and forgets entries of
// collected objects. Every operation starts with a cleanup pass that drains
// the map's queue, so no background goroutine is involved.
//
// Adding an object that is already present keeps its entry and handle.
//
// IdentityMap is not safe for concurrent use, see SyncIdentityMap.
// The zero value is an empty map ready to use.
type IdentityMap[T any] struct {
	entries map[uint64]*Handle[T]
	queue   *Queue[T]
	name    string
	logger  *logging.Logger
}

func NewIdentityMap[T any]() *IdentityMap[T] {
	m := &IdentityMap[T]{}
	m.lazyInit()
	return m
}

func (m *IdentityMap[T]) lazyInit() {
	if m.entries != nil {
		return
	}
	m.entries = make(map[uint64]*Handle[T])
	m.queue = NewQueue[T]()
	m.name = uuid.NewString()
	m.logger = logging.MainLogger.WithService("weakref").WithField("map", m.name)
}

// Name returns the instance name used in log records
func (m *IdentityMap[T]) Name() string {
	m.lazyInit()
	return m.name
}

// Add stores a weak handle to obj and returns obj's identity token
func (m *IdentityMap[T]) Add(obj *T) (uint64, error) {
	m.Cleanup()

	id, err := IdentityOf(obj)
	if err != nil {
		return 0, err
	}
	if h, ok := m.entries[id]; ok && h.Value() == obj {
		return id, nil
	}

	h, err := NewHandle(obj, m.queue)
	if err != nil {
		return 0, err
	}

	m.entries[h.ID()] = h
	m.logger.Trace("added %s", h)
	return h.ID(), nil
}

// Get returns the live object stored under id. Unknown ids and collected
// objects, delivered or not, both yield false.
func (m *IdentityMap[T]) Get(id uint64) (*T, bool) {
	m.Cleanup()

	h, ok := m.entries[id]
	if !ok {
		return nil, false
	}

	v := h.Value()
	if v == nil {
		// collected but not delivered yet
		delete(m.entries, id)
		return nil, false
	}
	return v, true
}

// Delete removes the entry stored under id, it reports whether there was one
func (m *IdentityMap[T]) Delete(id uint64) bool {
	m.Cleanup()

	if _, ok := m.entries[id]; !ok {
		return false
	}
	delete(m.entries, id)
	return true
}

// Size returns the entry count after a cleanup pass. Entries whose objects
// were collected but not delivered yet are still counted.
func (m *IdentityMap[T]) Size() int {
	m.Cleanup()
	return len(m.entries)
}

// Snapshot returns the live (identity, object) pairs after a cleanup pass.
// The order is unspecified.
func (m *IdentityMap[T]) Snapshot() []Entry[T] {
	m.Cleanup()

	out := make([]Entry[T], 0, len(m.entries))
	for id, h := range m.entries {
		v := h.Value()
		if v == nil {
			delete(m.entries, id)
			continue
		}
		out = append(out, Entry[T]{ID: id, Value: v})
	}
	return out
}

// Cleanup drains the map's queue and removes the entries of delivered
// handles. It returns the number of removed entries.
func (m *IdentityMap[T]) Cleanup() int {
	m.lazyInit()

	purged := 0
	for {
		h, ok := m.queue.Poll()
		if !ok {
			break
		}
		// the entry may already be gone or replaced by a newer handle
		if cur, found := m.entries[h.ID()]; found && cur == h {
			delete(m.entries, h.ID())
			purged++
		}
	}

	if purged > 0 {
		m.logger.Trace("purged %d collected entries, %d left", purged, len(m.entries))
	}
	return purged
}
