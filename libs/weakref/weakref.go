// Package weakref provides weak handles, reference queues notified by the
// garbage collector, and identity maps that prune entries of collected objects.
//
// A Handle refers to an object without keeping it alive. A Handle created with
// a Queue is delivered into that queue by the runtime cleanup goroutine after
// its referent was collected. IdentityMap builds on both: it maps identity
// tokens to handles and drains its own queue at the start of every operation.
//
// Delivery is eventual: it happens after a collection cycle reclaimed the
// referent, never synchronously with dropping the last reference. Use a
// Collector to force collections in tests.
//
// Tiny pointer-free objects (less than 16 bytes) may share an allocation with
// other objects and live longer than expected, the same applies to weak.Make.
package weakref

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"weak"
)

// Handle is a weak reference to a *T. The zero value is not usable, use NewHandle.
type Handle[T any] struct {
	ptr      weak.Pointer[T]
	id       uint64
	queue    *Queue[T]
	enqueued atomic.Bool
}

// NewHandle creates a weak handle to obj. If q is not nil the handle is
// delivered into q once obj was collected.
func NewHandle[T any](obj *T, q *Queue[T]) (*Handle[T], error) {
	if err := validateTarget(obj); err != nil {
		return nil, err
	}

	h := &Handle[T]{
		ptr:   weak.Make(obj),
		id:    identityOf(obj),
		queue: q,
	}
	if q != nil {
		runtime.AddCleanup(obj, deliver[T], h)
	}
	return h, nil
}

func deliver[T any](h *Handle[T]) {
	h.queue.enqueue(h)
}

// Get returns the referent, or ErrReferentCollected if it was collected
func (h *Handle[T]) Get() (*T, error) {
	if v := h.ptr.Value(); v != nil {
		return v, nil
	}
	return nil, ErrReferentCollected
}

// Value returns the referent or nil
func (h *Handle[T]) Value() *T {
	return h.ptr.Value()
}

// IsAlive reports whether the referent was not collected yet.
// Once false it stays false.
func (h *Handle[T]) IsAlive() bool {
	return h.ptr.Value() != nil
}

// ID returns the identity token of the referent captured at construction,
// it stays readable after the referent died
func (h *Handle[T]) ID() uint64 {
	return h.id
}

// Queue returns the queue the handle reports to, nil if none
func (h *Handle[T]) Queue() *Queue[T] {
	return h.queue
}

func (h *Handle[T]) String() string {
	return fmt.Sprintf("weakref.Handle[%s]{id: %d, alive: %t}", typeName[T](), h.id, h.IsAlive())
}
