package weakref

import (
	"runtime"
	"sync"
	"unsafe"
	"weak"
)

// Identity tokens are process-wide, assigned on first sight of an object and
// never reused, even after the object is freed. Zero is never a valid token.
var (
	identityMu   sync.Mutex
	identities   = make(map[any]uint64)
	lastIdentity uint64
)

// IdentityOf returns the identity token of the object obj points to.
// The token is stable for the object's lifetime and independent of its content.
func IdentityOf[T any](obj *T) (uint64, error) {
	if err := validateTarget(obj); err != nil {
		return 0, err
	}
	return identityOf(obj), nil
}

func identityOf[T any](obj *T) uint64 {
	var key any = weak.Make(obj)

	identityMu.Lock()
	defer identityMu.Unlock()

	if id, ok := identities[key]; ok {
		return id
	}

	lastIdentity++
	id := lastIdentity
	identities[key] = id
	runtime.AddCleanup(obj, forgetIdentity, key)
	return id
}

func forgetIdentity(key any) {
	identityMu.Lock()
	delete(identities, key)
	identityMu.Unlock()
}

// trackedIdentities is the number of live objects holding a token
func trackedIdentities() int {
	identityMu.Lock()
	defer identityMu.Unlock()
	return len(identities)
}

func validateTarget[T any](obj *T) error {
	if obj == nil {
		return invalidTarget[T]("nil")
	}
	// all zero-sized allocations share one address that is never collected
	var zero T
	if unsafe.Sizeof(zero) == 0 {
		return invalidTarget[T]("zero-sized")
	}
	return nil
}
