package silo

import (
	"reflect"
	"unsafe"
)

// World owns one component registry, the archetype table, and the entity
// generational index. It is the sole mutation surface for spawning,
// despawning, and inserting or removing components.
type World struct {
	registry   *componentRegistry
	archetypes []*Archetype
	byMask     map[Mask]archetypeID
	entities   *entities
	cache      *queryCache
	lockCount  int
}

// NewWorld creates an empty World.
func NewWorld() *World {
	return &World{
		registry: newComponentRegistry(),
		byMask:   make(map[Mask]archetypeID),
		entities: newEntities(),
		cache:    newQueryCache(),
	}
}

func (w *World) registerType(t reflect.Type) ComponentID {
	return w.registry.register(t)
}

// archetypeFor returns the archetype for mask, creating it if this is the
// first time the World has seen that component set. Lookup is by map, not
// by scanning the archetype slice, per spec's explicit resolution of its
// own open question on this point.
func (w *World) archetypeFor(mask Mask) *Archetype {
	if id, ok := w.byMask[mask]; ok {
		return w.archetypes[id]
	}
	id := archetypeID(len(w.archetypes))
	arch := newArchetype(id, mask)
	w.archetypes = append(w.archetypes, arch)
	w.byMask[mask] = id
	return arch
}

// Archetypes exposes the World's archetype table for introspection, chunked
// query access, and benchmarking.
func (w *World) Archetypes() []*Archetype {
	return w.archetypes
}

func (w *World) locked() bool { return w.lockCount > 0 }

func (w *World) lock()   { w.lockCount++ }
func (w *World) unlock() { w.lockCount-- }

// checkUnlocked panics if a query iterator currently holds the world,
// since Go has no borrow checker to make that a compile error the way the
// original Rust source's `&mut self` receiver does.
func (w *World) checkUnlocked() {
	if w.locked() {
		panic(traced(WorldLockedError{}))
	}
}

// Spawn creates a new entity carrying the given components as a single
// atomic bundle. Spawn() with no arguments is equivalent to SpawnEmpty.
func (w *World) Spawn(components ...any) Entity {
	w.checkUnlocked()
	if len(components) > MaxBundleArity {
		panic(traced(BundleArityError{Arity: len(components)}))
	}
	e := w.entities.create()
	bundle := Bundle(components)
	if len(bundle) == 0 {
		return e
	}
	mask := bundle.bitmask(w)
	arch := w.archetypeFor(mask)
	bundle.put(w, e, arch)
	w.entities.setLocation(e, location{archetype: arch.id, row: uint32(arch.Count() - 1)})
	return e
}

// SpawnEmpty creates a new entity with no components.
func (w *World) SpawnEmpty() Entity {
	w.checkUnlocked()
	return w.entities.create()
}

// IsAlive reports whether e still refers to its originally spawned entity.
func (w *World) IsAlive(e Entity) bool {
	return w.entities.isAlive(e)
}

// Despawn destroys e, relocating whichever entity occupied the last row of
// e's archetype into the vacated row. A stale or already-despawned handle
// is a silent no-op.
func (w *World) Despawn(e Entity) {
	w.checkUnlocked()
	meta, ok := w.entities.meta(e)
	if !ok {
		return
	}
	if !meta.loc.isEmpty() {
		arch := w.archetypes[meta.loc.archetype]
		moved, hasMoved := arch.swapRemove(int(meta.loc.row))
		if hasMoved {
			w.entities.setLocation(moved, meta.loc)
		}
	}
	w.entities.despawn(e)
}

func (w *World) LiveEntityCount() int  { return w.entities.liveCount() }
func (w *World) TotalEntityCount() int { return w.entities.totalCount() }

// insertComponentBytes implements the four cases spec.md mandates for
// insert_component: overwrite in place when the entity already carries the
// component, an archetypal move when it carries some but not this one, a
// move out of the EMPTY sentinel into a fresh single-component archetype,
// and no-op for a stale handle.
func (w *World) insertComponentBytes(e Entity, id ComponentID, src unsafe.Pointer) {
	meta, ok := w.entities.meta(e)
	if !ok {
		return
	}
	info := w.registry.info(id)
	bit := uint8(id)

	if !meta.loc.isEmpty() {
		arch := w.archetypes[meta.loc.archetype]
		if arch.mask.has(bit) {
			col, _ := arch.column(id)
			old := col.getBytes(int(meta.loc.row))
			info.drop(old)
			copyBytes(old, src, info.size)
			return
		}

		targetMask := arch.mask.mark(bit)
		target := w.archetypeFor(targetMask)
		row := meta.loc.row
		moved, hasMoved := arch.moveTo(int(row), func(cid ComponentID, cinfo typeInfo, bytes unsafe.Pointer) {
			target.ensureColumn(cid, cinfo)
			target.insertBytes(cid, bytes)
		})
		target.ensureColumn(id, info)
		target.insertBytes(id, src)
		target.insertRow(e)
		if hasMoved {
			w.entities.setLocation(moved, location{archetype: arch.id, row: row})
		}
		w.entities.setLocation(e, location{archetype: target.id, row: uint32(target.Count() - 1)})
		return
	}

	target := w.archetypeFor(Mask(0).mark(bit))
	target.ensureColumn(id, info)
	target.insertBytes(id, src)
	target.insertRow(e)
	w.entities.setLocation(e, location{archetype: target.id, row: uint32(target.Count() - 1)})
}

func (w *World) removeComponentID(e Entity, id ComponentID) {
	meta, ok := w.entities.meta(e)
	if !ok || meta.loc.isEmpty() {
		return
	}
	arch := w.archetypes[meta.loc.archetype]
	bit := uint8(id)
	if !arch.mask.has(bit) {
		return
	}
	remaining := arch.mask.unmark(bit)
	row := meta.loc.row

	if remaining.isEmpty() {
		moved, hasMoved := arch.swapRemove(int(row))
		if hasMoved {
			w.entities.setLocation(moved, location{archetype: arch.id, row: row})
		}
		w.entities.setLocation(e, emptyLocation)
		return
	}

	target := w.archetypeFor(remaining)
	moved, hasMoved := arch.moveTo(int(row), func(cid ComponentID, cinfo typeInfo, bytes unsafe.Pointer) {
		if cid == id {
			if bytes != nil {
				cinfo.drop(bytes)
			}
			return
		}
		target.ensureColumn(cid, cinfo)
		target.insertBytes(cid, bytes)
	})
	target.insertRow(e)
	if hasMoved {
		w.entities.setLocation(moved, location{archetype: arch.id, row: row})
	}
	w.entities.setLocation(e, location{archetype: target.id, row: uint32(target.Count() - 1)})
}

// InsertComponent attaches value to e, overwriting any existing component
// of the same type in place. A stale handle is a silent no-op.
func InsertComponent[T any](w *World, e Entity, value T) {
	w.checkUnlocked()
	id := w.registerType(reflect.TypeFor[T]())
	w.insertComponentBytes(e, id, unsafe.Pointer(&value))
}

// RemoveComponent detaches T from e, if present. A stale handle or a
// missing component is a silent no-op.
func RemoveComponent[T any](w *World, e Entity) {
	w.checkUnlocked()
	id, ok := w.registry.idFor(reflect.TypeFor[T]())
	if !ok {
		return
	}
	w.removeComponentID(e, id)
}

// HasComponent reports whether e currently carries a T.
func HasComponent[T any](w *World, e Entity) bool {
	meta, ok := w.entities.meta(e)
	if !ok || meta.loc.isEmpty() {
		return false
	}
	id, ok := w.registry.idFor(reflect.TypeFor[T]())
	if !ok {
		return false
	}
	return w.archetypes[meta.loc.archetype].mask.has(uint8(id))
}

// GetComponent returns a pointer to e's T component, or (nil, false) if e
// is stale or lacks that component.
func GetComponent[T any](w *World, e Entity) (*T, bool) {
	meta, ok := w.entities.meta(e)
	if !ok || meta.loc.isEmpty() {
		return nil, false
	}
	id, ok := w.registry.idFor(reflect.TypeFor[T]())
	if !ok {
		return nil, false
	}
	arch := w.archetypes[meta.loc.archetype]
	col, ok := arch.column(id)
	if !ok {
		return nil, false
	}
	return columnGet[T](col, int(meta.loc.row)), true
}
