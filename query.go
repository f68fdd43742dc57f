package silo

import (
	"iter"
	"reflect"
	"strconv"
)

// FetchKind distinguishes the three fetch atoms spec.md names: a shared
// read of a component, an exclusive read, and the entity handle itself.
type FetchKind uint8

const (
	fetchRead FetchKind = iota
	fetchWrite
	fetchEntity
)

// FetchSpec is one atom of a query's fetch tuple. Entity fetches carry no
// ComponentID since they need no column.
type FetchSpec struct {
	kind FetchKind
	id   ComponentID
}

// FilterSpec folds into a query's (required, excluded) mask pair. With
// adds a bit to required; Without adds it to excluded and also clears it
// from required, so a With<T> immediately followed by Without<T> on the
// same type degenerates to a plain exclusion rather than an unsatisfiable
// contradiction — the same combine() order the original query engine uses.
type FilterSpec func(required, excluded Mask) (Mask, Mask)

// ComponentType is a typed handle to a registered component, the silo
// analogue of the teacher's AccessibleComponent[T]: it builds fetch specs,
// filter specs, and reads/writes the component's value at a cursor or by
// entity.
type ComponentType[T any] struct {
	id ComponentID
}

// RegisterComponent registers (or looks up) T against w and returns a typed
// handle to it.
func RegisterComponent[T any](w *World) ComponentType[T] {
	return ComponentType[T]{id: w.registerType(reflect.TypeFor[T]())}
}

func (c ComponentType[T]) ID() ComponentID { return c.id }

// Read produces a shared-borrow fetch atom: &T in spec terms.
func (c ComponentType[T]) Read() FetchSpec { return FetchSpec{kind: fetchRead, id: c.id} }

// Write produces an exclusive-borrow fetch atom: &mut T in spec terms.
func (c ComponentType[T]) Write() FetchSpec { return FetchSpec{kind: fetchWrite, id: c.id} }

// With produces a filter atom requiring T's presence without fetching it.
func (c ComponentType[T]) With() FilterSpec {
	bit := uint8(c.id)
	return func(required, excluded Mask) (Mask, Mask) {
		return required.mark(bit), excluded
	}
}

// Without produces a filter atom requiring T's absence.
func (c ComponentType[T]) Without() FilterSpec {
	bit := uint8(c.id)
	return func(required, excluded Mask) (Mask, Mask) {
		return required.unmark(bit), excluded.mark(bit)
	}
}

// Get returns a pointer to T at the cursor's current row. Panics if the
// current archetype has no such column; callers normally only call Get for
// components the cursor actually fetched.
func (c ComponentType[T]) Get(cursor *Cursor) *T {
	col, _ := cursor.current.column(c.id)
	return columnGet[T](col, cursor.row)
}

// GetChecked is Get, but reports whether the column exists instead of
// panicking.
func (c ComponentType[T]) GetChecked(cursor *Cursor) (*T, bool) {
	col, ok := cursor.current.column(c.id)
	if !ok {
		return nil, false
	}
	return columnGet[T](col, cursor.row), true
}

// GetFromEntity reads T directly off e, bypassing any active cursor.
func (c ComponentType[T]) GetFromEntity(w *World, e Entity) (*T, bool) {
	return GetComponent[T](w, e)
}

// Slice exposes T's whole column for archetype a as a contiguous slice, for
// chunked iteration.
func (c ComponentType[T]) Slice(a *Archetype) []T {
	col, ok := a.column(c.id)
	if !ok {
		return nil
	}
	return columnSlice[T](col)
}

// FetchEntity is the fetch atom yielding the row's Entity handle, fetching
// no column and requiring no borrow.
func FetchEntity() FetchSpec { return FetchSpec{kind: fetchEntity} }

// queryCacheEntry is one (required, excluded) shape's cached match set: the
// index past which the archetype table has already been scanned, and the
// archetypes found to match up to that point. Because new archetypes are
// only ever appended, re-matching a query only has to scan the suffix added
// since the last refresh.
type queryCacheEntry struct {
	highWaterMark int
	matched       []archetypeID
}

// queryCache is the World-level cache of query shapes to matched archetype
// lists, built on the generic SimpleCache the teacher ships but never wires
// into its own query path; here it backs exactly that role, keyed by the
// stringified mask pair instead of an arbitrary caller key.
type queryCache struct {
	store Cache[queryCacheEntry]
}

func newQueryCache() *queryCache {
	return &queryCache{store: FactoryNewCache[queryCacheEntry](MaxQueryCacheEntries)}
}

func maskKey(required, excluded Mask) string {
	return strconv.FormatUint(uint64(required), 16) + ":" + strconv.FormatUint(uint64(excluded), 16)
}

func (c *queryCache) entry(required, excluded Mask) *queryCacheEntry {
	key := maskKey(required, excluded)
	if idx, ok := c.store.GetIndex(key); ok {
		return c.store.GetItem(idx)
	}
	idx, err := c.store.Register(key, queryCacheEntry{})
	if err != nil {
		panic(traced(err))
	}
	return c.store.GetItem(idx)
}

// refresh extends e's matched list over any archetypes appended since its
// last refresh, and returns it.
func (c *queryCache) refresh(required, excluded Mask, archetypes []*Archetype) *queryCacheEntry {
	e := c.entry(required, excluded)
	n := len(archetypes)
	for i := e.highWaterMark; i < n; i++ {
		a := archetypes[i]
		if a.mask.containsAll(required) && a.mask.containsNone(excluded) {
			e.matched = append(e.matched, archetypeID(i))
		}
	}
	e.highWaterMark = n
	return e
}

// Cursor iterates the rows matching a fetch tuple and filter set. Query
// construction has no tuple-arity limit: both fetches and filters are plain
// Go slices, which trivially satisfies spec's "support at least 16" by not
// bounding arity at all, the same variadic style the teacher's own
// Query.And(items ...interface{}) already uses.
type Cursor struct {
	world    *World
	fetches  []FetchSpec
	required Mask
	excluded Mask

	entry   *queryCacheEntry
	matchAt int
	current *Archetype
	row     int
	started bool
}

// Query builds a Cursor over w fetching the given atoms. Call Filter to add
// With/Without constraints before the first Next.
func (w *World) Query(fetches ...FetchSpec) *Cursor {
	c := &Cursor{world: w, fetches: fetches, row: -1}
	for _, f := range fetches {
		if f.kind != fetchEntity {
			c.required = c.required.mark(uint8(f.id))
		}
	}
	return c
}

// Filter folds With/Without atoms into the cursor's required/excluded
// masks. Must be called before the first Next.
func (c *Cursor) Filter(filters ...FilterSpec) *Cursor {
	for _, f := range filters {
		c.required, c.excluded = f(c.required, c.excluded)
	}
	return c
}

func (c *Cursor) ensureMatched() {
	if c.entry != nil {
		return
	}
	c.entry = c.world.cache.refresh(c.required, c.excluded, c.world.archetypes)
}

// hasAllColumns guards the self-conflicting-filter edge case: if a filter
// cleared a fetched component's bit from required (With<T> undone by a
// later Without<T>), an archetype lacking that column could still pass the
// mask test. Skipping archetypes that don't actually carry every fetched
// column makes such a query correctly yield zero rows instead of panicking
// on a missing column mid-iteration.
func (c *Cursor) hasAllColumns(a *Archetype) bool {
	for _, f := range c.fetches {
		if f.kind == fetchEntity {
			continue
		}
		if _, ok := a.column(f.id); !ok {
			return false
		}
	}
	return true
}

func (c *Cursor) acquireArchetype(a *Archetype) {
	for i, f := range c.fetches {
		if f.kind == fetchEntity {
			continue
		}
		col, _ := a.column(f.id)
		var ok bool
		if f.kind == fetchRead {
			ok = col.borrowShared()
		} else {
			ok = col.borrowExclusive()
		}
		if !ok {
			c.releaseUpTo(a, i)
			panic(traced(BorrowConflictError{Type: col.info.typ}))
		}
	}
}

func (c *Cursor) releaseUpTo(a *Archetype, n int) {
	for i := 0; i < n; i++ {
		f := c.fetches[i]
		if f.kind == fetchEntity {
			continue
		}
		col, _ := a.column(f.id)
		if f.kind == fetchRead {
			col.releaseShared()
		} else {
			col.releaseExclusive()
		}
	}
}

func (c *Cursor) releaseArchetype(a *Archetype) {
	c.releaseUpTo(a, len(c.fetches))
}

// Next advances the cursor to the next matching row, returning false once
// exhausted. The world is locked against mutation from the first Next
// until the cursor is exhausted or Reset.
func (c *Cursor) Next() bool {
	c.ensureMatched()
	if !c.started {
		c.started = true
		c.world.lock()
	}
	for {
		if c.current != nil {
			if c.row+1 < c.current.Count() {
				c.row++
				return true
			}
			c.releaseArchetype(c.current)
			c.current = nil
		}
		if c.matchAt >= len(c.entry.matched) {
			c.Reset()
			return false
		}
		a := c.world.archetypes[c.entry.matched[c.matchAt]]
		c.matchAt++
		if a.Count() == 0 || !c.hasAllColumns(a) {
			continue
		}
		c.acquireArchetype(a)
		c.current = a
		c.row = 0
		return true
	}
}

// Reset releases any held borrows and the world lock, and rewinds the
// cursor so it can be iterated again from the start.
func (c *Cursor) Reset() {
	if c.current != nil {
		c.releaseArchetype(c.current)
		c.current = nil
	}
	if c.started {
		c.world.unlock()
		c.started = false
	}
	c.matchAt = 0
	c.row = -1
}

// Entity returns the row's entity handle.
func (c *Cursor) Entity() Entity {
	return c.current.rows[c.row]
}

// ForEach calls f once per matching row.
func (c *Cursor) ForEach(f func()) {
	for c.Next() {
		f()
	}
}

// Entities returns a range-over-func sequence of matching rows' entities,
// releasing borrows and the world lock on early break as well as normal
// exhaustion.
func (c *Cursor) Entities() iter.Seq[Entity] {
	return func(yield func(Entity) bool) {
		for c.Next() {
			if !yield(c.Entity()) {
				c.Reset()
				return
			}
		}
	}
}

// ForEachChunk visits every matching archetype with more than zero rows,
// borrowing each fetched column for the duration of f. Use ComponentType's
// Slice method inside f to get contiguous, SIMD-friendly access instead of
// per-row Get calls.
func (c *Cursor) ForEachChunk(f func(a *Archetype)) {
	c.ensureMatched()
	c.world.lock()
	defer c.world.unlock()
	for _, id := range c.entry.matched {
		a := c.world.archetypes[id]
		if a.Count() == 0 || !c.hasAllColumns(a) {
			continue
		}
		c.acquireArchetype(a)
		f(a)
		c.releaseArchetype(a)
	}
}

// TotalMatched returns the total row count across every matching archetype.
func (c *Cursor) TotalMatched() int {
	c.ensureMatched()
	total := 0
	for _, id := range c.entry.matched {
		total += c.world.archetypes[id].Count()
	}
	return total
}
