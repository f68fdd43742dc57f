package silo

import (
	"fmt"
	"reflect"

	"github.com/pkg/errors"
)

// ComponentLimitError reports an attempt to register a 65th distinct
// component type on a World; Mask has no room left for it.
type ComponentLimitError struct {
	Type reflect.Type
}

func (e ComponentLimitError) Error() string {
	return fmt.Sprintf("component limit exceeded: cannot register %v, a world may hold at most %d distinct component types", e.Type, MaxComponentTypes)
}

// BorrowConflictError is the panic payload raised when a query tries to
// acquire a shared or exclusive borrow on a column that is already held
// incompatibly.
type BorrowConflictError struct {
	Type reflect.Type
}

func (e BorrowConflictError) Error() string {
	return fmt.Sprintf("conflicting queries: column %v is already borrowed incompatibly", e.Type)
}

// TypeMismatchError reports an internal access of a column using a Go type
// that does not match the type the column was created for.
type TypeMismatchError struct {
	Expected reflect.Type
	Got      reflect.Type
}

func (e TypeMismatchError) Error() string {
	return fmt.Sprintf("component type mismatch: column holds %v, accessed as %v", e.Expected, e.Got)
}

// BundleArityError reports a Spawn or EntityBuilder chain exceeding
// MaxBundleArity components.
type BundleArityError struct {
	Arity int
}

func (e BundleArityError) Error() string {
	return fmt.Sprintf("bundle arity %d exceeds maximum of %d", e.Arity, MaxBundleArity)
}

// WorldLockedError reports an attempted mutation while a query iterator
// holds the world locked.
type WorldLockedError struct{}

func (e WorldLockedError) Error() string {
	return "world is locked: cannot spawn, despawn, or alter components while a query iterator is active"
}

// traced annotates err with a stack trace at the point it crosses out of
// this package, the way bark.AddTrace does for the teacher.
func traced(err error) error {
	return errors.WithStack(err)
}
