/*
Package silo is an archetype-based data store for Entity-Component-System
designs: entities are grouped into archetypes by the exact set of
component types they carry, so that iterating entities with a given
combination of components walks tightly packed, cache-friendly columns
instead of scattered individual records.

Core Concepts:

  - Entity: a generational handle identifying one row in the World.
  - Component: any Go type carried by an entity; registered lazily the
    first time it is spawned, inserted, or fetched.
  - Archetype: the set of entities sharing an exact component Mask, each
    component stored in its own contiguous column.
  - Cursor: iterates the rows matching a fetch tuple and filter set,
    caching archetype matches across calls.

Basic Usage:

	world := silo.NewWorld()

	position := silo.RegisterComponent[Position](world)
	velocity := silo.RegisterComponent[Velocity](world)

	e := world.Spawn(Position{X: 1}, Velocity{X: 2})

	cursor := world.Query(position.Write(), velocity.Read())
	for cursor.Next() {
		pos := position.Get(cursor)
		vel := velocity.Get(cursor)
		pos.X += vel.X
	}

silo has no serialization, networking, or scheduling surface; it is only
the storage and query engine underneath an ECS.
*/
package silo
