package utils

import (
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hypernetix/weakling/libs/logging"
)

var (
	mutexDebugEnabled atomic.Bool
	warnAfterLockWait atomic.Int64
)

const defaultWarnAfterLockWait = 30 * time.Second

func init() {
	warnAfterLockWait.Store(int64(defaultWarnAfterLockWait))
}

// SetMutexDebug enables or disables mutex debugging globally
func SetMutexDebug(enabled bool) {
	mutexDebugEnabled.Store(enabled)
}

// MutexDebug reports whether mutex debugging is enabled
func MutexDebug() bool {
	return mutexDebugEnabled.Load()
}

// SetMutexDeadlockWarningDelay sets how long a goroutine may wait for a
// DebugMutex before a potential deadlock is reported
func SetMutexDeadlockWarningDelay(d time.Duration) {
	if d <= 0 {
		d = defaultWarnAfterLockWait
	}
	warnAfterLockWait.Store(int64(d))
}

func mutexDeadlockWarningDelay() time.Duration {
	return time.Duration(warnAfterLockWait.Load())
}

type lockHolder struct {
	goID  int64
	site  string
	since time.Time
	stack string
}

// DebugMutex is a drop-in replacement for sync.Mutex. With mutex debugging
// enabled it remembers the holder, reports re-entrant locking, unlocking from
// a foreign goroutine and waits longer than the deadlock warning delay.
type DebugMutex struct {
	sync.Mutex

	state   sync.Mutex
	holder  lockHolder
	tracked atomic.Bool
}

func (m *DebugMutex) Lock() {
	if !MutexDebug() {
		m.Mutex.Lock()
		return
	}

	goID := getGoID()
	site := callerSite(2)

	if h, ok := m.currentHolder(); ok && h.goID == goID {
		logging.Error("Potential deadlock detected - goroutine %d attempting to lock mutex at %s\n%s\nthat it already holds since %s at %s\n%s",
			goID, site, captureStack(), h.since.Format(time.RFC3339), h.site, h.stack)
	}

	if m.Mutex.TryLock() {
		m.acquired(goID, site)
		return
	}

	done := make(chan struct{})
	go m.watchWait(goID, site, done)
	m.Mutex.Lock()
	close(done)
	m.acquired(goID, site)
}

func (m *DebugMutex) TryLock() bool {
	if !m.Mutex.TryLock() {
		return false
	}
	if MutexDebug() {
		m.acquired(getGoID(), callerSite(2))
	}
	return true
}

// TryLockWithTimeout polls TryLock until it succeeds or the timeout elapses
func (m *DebugMutex) TryLockWithTimeout(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if m.TryLock() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}

	if m.TryLock() {
		return true
	}

	if MutexDebug() {
		if h, ok := m.currentHolder(); ok {
			logging.Trace("mutex.TryLockWithTimeout(%s) failed, locked by goroutine #%d since %s at %s",
				timeout, h.goID, h.since.Format(time.RFC3339), h.site)
		}
	}
	return false
}

func (m *DebugMutex) Unlock() {
	if m.tracked.Load() {
		if MutexDebug() {
			if h, ok := m.currentHolder(); ok {
				if goID := getGoID(); goID != h.goID {
					logging.Error("Mutex unlocked by goroutine %d at %s but was locked by goroutine #%d at %s\n%s",
						goID, callerSite(2), h.goID, h.site, h.stack)
				}
			}
		}
		m.state.Lock()
		m.holder = lockHolder{}
		m.tracked.Store(false)
		m.state.Unlock()
	}
	m.Mutex.Unlock()
}

// GetOwner returns the ID of the goroutine holding the lock, 0 if the mutex
// is free or the holder was not tracked
func (m *DebugMutex) GetOwner() int64 {
	h, _ := m.currentHolder()
	return h.goID
}

// IsLocked reports whether a tracked holder owns the mutex.
// Locks taken while mutex debugging is disabled are not tracked.
func (m *DebugMutex) IsLocked() bool {
	_, ok := m.currentHolder()
	return ok
}

// LockedAt returns when the tracked holder acquired the mutex
func (m *DebugMutex) LockedAt() time.Time {
	h, _ := m.currentHolder()
	return h.since
}

func (m *DebugMutex) acquired(goID int64, site string) {
	m.state.Lock()
	m.holder = lockHolder{goID: goID, site: site, since: time.Now(), stack: captureStack()}
	m.tracked.Store(true)
	m.state.Unlock()
}

func (m *DebugMutex) currentHolder() (lockHolder, bool) {
	m.state.Lock()
	defer m.state.Unlock()
	return m.holder, m.tracked.Load()
}

func (m *DebugMutex) watchWait(goID int64, site string, done <-chan struct{}) {
	delay := mutexDeadlockWarningDelay()
	ticker := time.NewTicker(delay)
	defer ticker.Stop()

	waited := time.Duration(0)
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			waited += delay
			h, ok := m.currentHolder()
			if !ok {
				logging.Warn("Potential deadlock - goroutine %d waiting for mutex for %s at %s", goID, waited, site)
				continue
			}
			logging.Warn("Potential deadlock - goroutine %d waiting for mutex for %s at %s, held by goroutine %d since %s at %s\n%s",
				goID, waited, site, h.goID, h.since.Format(time.RFC3339), h.site, h.stack)
		}
	}
}

// getGoID extracts the goroutine ID from the runtime stack header
func getGoID() int64 {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	idStr := strings.TrimPrefix(string(buf[:n]), "goroutine ")
	idStr = strings.TrimSpace(strings.Split(idStr, " ")[0])
	var id int64
	if _, err := fmt.Sscanf(idStr, "%d", &id); err != nil {
		logging.Warn("Failed to parse goroutine ID from '%s': %v", idStr, err)
		return 0
	}
	return id
}

func callerSite(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", file, line)
}

// captureStack returns the current stack without the DebugMutex frames
func captureStack() string {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	lines := strings.Split(string(buf[:n]), "\n")
	// header + 2 lines per frame for captureStack, acquired and Lock
	if len(lines) > 7 {
		return strings.Join(lines[7:], "\n")
	}
	return string(buf[:n])
}
