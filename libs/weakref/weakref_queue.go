package weakref

import (
	"context"
	"sync"
	"time"

	"github.com/hypernetix/weakling/libs/utils"
)

// Queue receives handles whose referents were collected, in delivery order.
// The runtime cleanup goroutine is the producer, any number of goroutines may
// consume with Poll and Remove; each handle is returned exactly once.
type Queue[T any] struct {
	mu    utils.DebugMutex
	items []*Handle[T]

	readyOnce sync.Once
	ready     chan struct{}
}

func NewQueue[T any]() *Queue[T] {
	q := &Queue[T]{}
	q.readyChan()
	return q
}

// readyChan holds at most one pending wakeup for blocked consumers
func (q *Queue[T]) readyChan() chan struct{} {
	q.readyOnce.Do(func() {
		q.ready = make(chan struct{}, 1)
	})
	return q.ready
}

func (q *Queue[T]) signal() {
	select {
	case q.readyChan() <- struct{}{}:
	default:
	}
}

func (q *Queue[T]) enqueue(h *Handle[T]) {
	if !h.enqueued.CompareAndSwap(false, true) {
		return
	}

	q.mu.Lock()
	q.items = append(q.items, h)
	q.mu.Unlock()

	q.signal()
}

// Poll returns the next delivered handle without blocking
func (q *Queue[T]) Poll() (*Handle[T], bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, false
	}

	h := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	} else {
		// pass the wakeup on to the next blocked consumer
		q.signal()
	}
	return h, true
}

// Remove blocks until a handle is delivered or ctx is done
func (q *Queue[T]) Remove(ctx context.Context) (*Handle[T], bool) {
	ready := q.readyChan()
	for {
		if h, ok := q.Poll(); ok {
			return h, true
		}
		select {
		case <-ready:
		case <-ctx.Done():
			return nil, false
		}
	}
}

// RemoveTimeout blocks until a handle is delivered or the timeout elapses.
// A timeout <= 0 waits indefinitely.
func (q *Queue[T]) RemoveTimeout(timeout time.Duration) (*Handle[T], bool) {
	if timeout <= 0 {
		return q.Remove(context.Background())
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return q.Remove(ctx)
}

// Len returns the number of delivered handles not consumed yet
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
