package weakref

import (
	"time"

	"github.com/hypernetix/weakling/libs/utils"
)

// SyncIdentityMap is an IdentityMap guarded by a mutex.
// The zero value is an empty map ready to use.
type SyncIdentityMap[T any] struct {
	mu utils.DebugMutex
	m  IdentityMap[T]
}

func NewSyncIdentityMap[T any]() *SyncIdentityMap[T] {
	return &SyncIdentityMap[T]{}
}

func (s *SyncIdentityMap[T]) Add(obj *T) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.Add(obj)
}

func (s *SyncIdentityMap[T]) Get(id uint64) (*T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.Get(id)
}

func (s *SyncIdentityMap[T]) Delete(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.Delete(id)
}

func (s *SyncIdentityMap[T]) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.Size()
}

func (s *SyncIdentityMap[T]) Snapshot() []Entry[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.Snapshot()
}

func (s *SyncIdentityMap[T]) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.Cleanup()
}

// Do runs fn with the map locked, fn must not call methods of s
func (s *SyncIdentityMap[T]) Do(fn func(m *IdentityMap[T])) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.m)
}

// TryDo is like Do but gives up when the lock can't be taken within timeout
func (s *SyncIdentityMap[T]) TryDo(timeout time.Duration, fn func(m *IdentityMap[T])) bool {
	if !s.mu.TryLockWithTimeout(timeout) {
		return false
	}
	defer s.mu.Unlock()
	fn(&s.m)
	return true
}
