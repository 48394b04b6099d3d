package weakref

import (
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//go:noinline
func addDetachedSync(t *testing.T, m *SyncIdentityMap[testObject], id int) {
	_, err := m.Add(newTestObject(id))
	assert.NoError(t, err)
}

func TestSyncIdentityMap_ConcurrentUse(t *testing.T) {
	const workers = 8
	const perWorker = 50

	m := NewSyncIdentityMap[testObject]()
	kept := make([][]*testObject, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				obj := newTestObject(w*perWorker + i)
				id, err := m.Add(obj)
				if !assert.NoError(t, err) {
					return
				}
				got, ok := m.Get(id)
				assert.True(t, ok)
				assert.Same(t, obj, got)
				kept[w] = append(kept[w], obj)
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, workers*perWorker, m.Size())
	assert.Len(t, m.Snapshot(), workers*perWorker)
	runtime.KeepAlive(kept)
}

func TestSyncIdentityMap_CleansConcurrently(t *testing.T) {
	m := NewSyncIdentityMap[testObject]()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				addDetachedSync(t, m, w*25+i)
			}
		}(w)
	}
	wg.Wait()
	assert.Equal(t, 100, m.Size())

	stop := make(chan struct{})
	var readers sync.WaitGroup
	for r := 0; r < 4; r++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				select {
				case <-stop:
					return
				default:
					m.Snapshot()
					m.Cleanup()
				}
			}
		}()
	}

	collectUntil(t, func() bool { return m.Size() == 0 })
	close(stop)
	readers.Wait()
}

func TestSyncIdentityMap_Do(t *testing.T) {
	var m SyncIdentityMap[testObject]
	a := newTestObject(1)
	b := newTestObject(2)

	var ids []uint64
	m.Do(func(im *IdentityMap[testObject]) {
		for _, obj := range []*testObject{a, b} {
			id, err := im.Add(obj)
			require.NoError(t, err)
			ids = append(ids, id)
		}
	})

	require.Len(t, ids, 2)
	got, ok := m.Get(ids[1])
	require.True(t, ok)
	assert.Same(t, b, got)
	assert.True(t, m.Delete(ids[0]))
	assert.Equal(t, 1, m.Size())

	runtime.KeepAlive(a)
	runtime.KeepAlive(b)
}

func TestSyncIdentityMap_TryDo(t *testing.T) {
	m := NewSyncIdentityMap[testObject]()

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Do(func(*IdentityMap[testObject]) {
			close(entered)
			<-release
		})
	}()
	<-entered

	called := false
	assert.False(t, m.TryDo(20*time.Millisecond, func(*IdentityMap[testObject]) { called = true }))
	assert.False(t, called)

	close(release)
	<-done

	assert.True(t, m.TryDo(20*time.Millisecond, func(*IdentityMap[testObject]) { called = true }))
	assert.True(t, called)
}
