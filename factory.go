package silo

// factory implements the factory pattern for silo's constructors.
type factory struct{}

// Factory is the global factory instance for creating silo worlds.
var Factory factory

// NewWorld creates a new, empty World.
func (f factory) NewWorld() *World {
	return NewWorld()
}

// FactoryNewCache creates a new Cache with the specified capacity.
func FactoryNewCache[T any](cap int) Cache[T] {
	return &SimpleCache[T]{
		itemIndices: make(map[string]int),
		maxCapacity: cap,
	}
}
