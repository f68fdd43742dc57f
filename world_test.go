package silo

import (
	"reflect"
	"testing"
)

type compA struct{ N int }
type compB struct{ N int }
type compC struct{}

// Scenario 1: overwrite in place.
func TestInsertComponentOverwritesInPlace(t *testing.T) {
	w := NewWorld()
	RegisterComponent[compA](w)

	e := w.Spawn(compA{N: 10})
	InsertComponent(w, e, compA{N: 77})

	got, ok := GetComponent[compA](w, e)
	if !ok || got.N != 77 {
		t.Fatalf("GetComponent = %+v, %v; want {77} true", got, ok)
	}
	if len(w.Archetypes()) != 1 {
		t.Fatalf("archetype count = %d, want 1", len(w.Archetypes()))
	}
}

// Scenario 2: archetypal move in.
func TestInsertComponentMovesToNewArchetype(t *testing.T) {
	w := NewWorld()
	RegisterComponent[compA](w)
	RegisterComponent[compB](w)

	e := w.Spawn(compA{N: 1})
	InsertComponent(w, e, compB{N: 2})

	if len(w.Archetypes()) != 2 {
		t.Fatalf("archetype count = %d, want 2", len(w.Archetypes()))
	}
	if w.Archetypes()[0].Count() != 0 {
		t.Errorf("original archetype count = %d, want 0", w.Archetypes()[0].Count())
	}
	if w.Archetypes()[1].Count() != 1 {
		t.Errorf("new archetype count = %d, want 1", w.Archetypes()[1].Count())
	}
	a, ok := GetComponent[compA](w, e)
	if !ok || a.N != 1 {
		t.Errorf("compA = %+v, %v; want {1} true", a, ok)
	}
	b, ok := GetComponent[compB](w, e)
	if !ok || b.N != 2 {
		t.Errorf("compB = %+v, %v; want {2} true", b, ok)
	}
}

// Scenario 3: archetypal move out.
func TestRemoveComponentMovesToSmallerArchetype(t *testing.T) {
	w := NewWorld()
	RegisterComponent[compA](w)
	RegisterComponent[compB](w)
	RegisterComponent[compC](w)

	e := w.Spawn(compA{N: 1}, compB{N: 2}, compC{})
	RemoveComponent[compB](w, e)

	meta, ok := w.entities.meta(e)
	if !ok {
		t.Fatal("entity not alive")
	}
	arch := w.archetypes[meta.loc.archetype]
	if arch.Count() != 1 {
		t.Errorf("target archetype count = %d, want 1", arch.Count())
	}
	if HasComponent[compB](w, e) {
		t.Error("HasComponent[compB] = true after remove")
	}
	a, ok := GetComponent[compA](w, e)
	if !ok || a.N != 1 {
		t.Errorf("compA = %+v, %v; want {1} true", a, ok)
	}
}

// Scenario 4: despawn and relocate.
func TestDespawnRelocatesLastRow(t *testing.T) {
	w := NewWorld()
	RegisterComponent[compA](w)
	RegisterComponent[compB](w)

	e1 := w.Spawn(compA{N: 1}, compB{N: 2})
	e2 := w.Spawn(compA{N: 3}, compB{N: 4})

	w.Despawn(e1)

	a, ok := GetComponent[compA](w, e2)
	if !ok || a.N != 3 {
		t.Fatalf("compA on e2 = %+v, %v; want {3} true", a, ok)
	}
	meta, ok := w.entities.meta(e2)
	if !ok || meta.loc.row != 0 {
		t.Errorf("e2 row = %d, want 0", meta.loc.row)
	}
	arch := w.archetypes[meta.loc.archetype]
	if arch.Count() != 1 {
		t.Errorf("archetype count = %d, want 1", arch.Count())
	}
	if w.IsAlive(e1) {
		t.Error("e1 reports alive after despawn")
	}
}

// Scenario 5: filtered query with mutation.
func TestFilteredQueryMutation(t *testing.T) {
	w := NewWorld()
	a := RegisterComponent[compA](w)
	b := RegisterComponent[compB](w)
	c := RegisterComponent[compC](w)

	match := w.Spawn(compA{N: 10}, compB{N: 20}, compC{})
	w.Spawn(compA{N: 300}, compB{N: 400})

	cursor := w.Query(a.Write(), b.Write()).Filter(c.With())
	rows := 0
	for cursor.Next() {
		rows++
		av := a.Get(cursor)
		bv := b.Get(cursor)
		av.N += bv.N
		bv.N += av.N
	}
	if rows != 1 {
		t.Fatalf("matched rows = %d, want 1", rows)
	}

	av, _ := GetComponent[compA](w, match)
	bv, _ := GetComponent[compB](w, match)
	if av.N != 30 || bv.N != 50 {
		t.Errorf("A,B = %d,%d; want 30,50", av.N, bv.N)
	}
}

// Scenario 6: generational safety.
func TestGenerationalSafety(t *testing.T) {
	w := NewWorld()
	RegisterComponent[compA](w)

	e := w.Spawn(compA{N: 1})
	w.Despawn(e)
	e2 := w.Spawn(compA{N: 2})

	if e2.Index() != e.Index() {
		t.Fatalf("expected slot reuse: e.index=%d e2.index=%d", e.Index(), e2.Index())
	}
	if e2.Generation() == e.Generation() {
		t.Error("e2 generation did not advance past e's")
	}
	if _, ok := GetComponent[compA](w, e); ok {
		t.Error("GetComponent on stale handle e returned ok=true")
	}
	v, ok := GetComponent[compA](w, e2)
	if !ok || v.N != 2 {
		t.Errorf("GetComponent(e2) = %+v, %v; want {2} true", v, ok)
	}
}

// Boundary: 64 successful registrations then a panic on the 65th.
func TestComponentLimitPanicsOn65th(t *testing.T) {
	w := NewWorld()
	for i := 0; i < MaxComponentTypes; i++ {
		t := newDistinctType(i)
		w.registerType(t)
	}

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic on 65th distinct component type")
		}
		if _, ok := r.(error); !ok {
			t.Fatalf("recovered value is not an error: %v", r)
		}
	}()
	w.registerType(newDistinctType(MaxComponentTypes))
}

// ZST components are visible via HasComponent/GetComponent/iteration despite
// occupying zero bytes of column storage.
func TestZeroSizedComponentVisibility(t *testing.T) {
	w := NewWorld()
	c := RegisterComponent[compC](w)

	e := w.Spawn(compC{})

	if !HasComponent[compC](w, e) {
		t.Error("HasComponent[compC] = false")
	}
	if _, ok := GetComponent[compC](w, e); !ok {
		t.Error("GetComponent[compC] ok = false")
	}

	cursor := w.Query(c.Read())
	rows := 0
	for cursor.Next() {
		rows++
	}
	if rows != 1 {
		t.Errorf("matched rows = %d, want 1", rows)
	}
}

// Despawn-then-respawn slot reuse rejects the stale handle while the new
// handle into the same slot works, mirroring TestGenerationalSafety for
// component-less entities created with SpawnEmpty.
func TestDespawnRespawnRejectsStaleHandle(t *testing.T) {
	w := NewWorld()
	e := w.SpawnEmpty()
	w.Despawn(e)
	e2 := w.SpawnEmpty()

	if w.IsAlive(e) {
		t.Error("stale handle reports alive")
	}
	if !w.IsAlive(e2) {
		t.Error("new handle reports not alive")
	}
	if e.Index() != e2.Index() {
		t.Fatalf("expected slot reuse: %d != %d", e.Index(), e2.Index())
	}
}

func TestMutateWhileQueryLockedPanics(t *testing.T) {
	w := NewWorld()
	a := RegisterComponent[compA](w)
	w.Spawn(compA{N: 1})

	cursor := w.Query(a.Read())
	if !cursor.Next() {
		t.Fatal("expected at least one row")
	}

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic spawning while a cursor is active")
		}
		cursor.Reset()
	}()
	w.Spawn(compA{N: 2})
}

// newDistinctType returns a unique reflect.Type per call, used to exhaust
// the component table without declaring 65 named struct types by hand:
// [i+1]byte is a distinct array type for every i.
func newDistinctType(i int) reflect.Type {
	return reflect.ArrayOf(i+1, reflect.TypeOf(byte(0)))
}
