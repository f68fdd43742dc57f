package silo

import (
	"reflect"
	"unsafe"
)

// ComponentID is the bit position a component type occupies in a Mask,
// assigned in first-registration order on a per-World basis.
type ComponentID uint8

// typeInfo is the type-erased description a blobColumn needs to store and
// later release values of a registered component type.
type typeInfo struct {
	typ  reflect.Type
	size uintptr
	drop func(unsafe.Pointer)
}

// dropFnFor builds the destructor a blobColumn calls before overwriting or
// discarding a slot, so that pointer/slice/map/interface fields release
// their referents instead of being silently duplicated by the next push.
func dropFnFor(t reflect.Type) func(unsafe.Pointer) {
	zero := reflect.Zero(t)
	return func(p unsafe.Pointer) {
		reflect.NewAt(t, p).Elem().Set(zero)
	}
}

// componentRegistry maps Go types to ComponentIDs for a single World. It is
// deliberately per-World rather than process-global: two worlds in the same
// process may assign the same component type a different bit, which is why
// Mask values and ComponentIDs from one World must never be used with
// another.
type componentRegistry struct {
	typeToID map[reflect.Type]ComponentID
	infos    []typeInfo
}

func newComponentRegistry() *componentRegistry {
	return &componentRegistry{
		typeToID: make(map[reflect.Type]ComponentID),
	}
}

func (r *componentRegistry) register(t reflect.Type) ComponentID {
	if id, ok := r.typeToID[t]; ok {
		return id
	}
	if len(r.infos) >= MaxComponentTypes {
		panic(traced(ComponentLimitError{Type: t}))
	}
	id := ComponentID(len(r.infos))
	r.infos = append(r.infos, typeInfo{
		typ:  t,
		size: t.Size(),
		drop: dropFnFor(t),
	})
	r.typeToID[t] = id
	return id
}

func (r *componentRegistry) idFor(t reflect.Type) (ComponentID, bool) {
	id, ok := r.typeToID[t]
	return id, ok
}

func (r *componentRegistry) info(id ComponentID) typeInfo {
	return r.infos[id]
}

// valueBytes copies v (a boxed component value of static type t) into a
// freshly allocated T and returns a pointer to it, giving callers a stable
// unsafe.Pointer to memcpy from. The temporary is left for the garbage
// collector once the copy into a column completes.
func valueBytes(t reflect.Type, v any) unsafe.Pointer {
	rv := reflect.New(t)
	rv.Elem().Set(reflect.ValueOf(v))
	return unsafe.Pointer(rv.Pointer())
}
