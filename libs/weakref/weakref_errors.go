package weakref

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrReferentCollected is returned by Handle.Get once the referent was
	// garbage collected. It is a routine outcome, not a program defect.
	ErrReferentCollected = errors.New("weakref: illegal reference - referent was collected")

	// ErrInvalidWeakTarget is returned when a value can't be weakly referenced:
	// nil pointers and pointers to zero-sized types.
	ErrInvalidWeakTarget = errors.New("weakref: invalid weak reference target")
)

func typeName[T any]() string {
	return reflect.TypeFor[T]().String()
}

func invalidTarget[T any](reason string) error {
	return fmt.Errorf("%w: %s *%s", ErrInvalidWeakTarget, reason, typeName[T]())
}
