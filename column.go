package silo

import (
	"reflect"
	"sync/atomic"
	"unsafe"
)

// blobColumn is a type-erased, growable, contiguous store for one
// component type within one archetype: push/swap_remove/get over a raw
// []byte buffer sized by typeInfo.size, the same unsafe.Pointer-over-[]byte
// technique edwinsyarief-lazyecs uses for its archetype columns, generalized
// here with a captured destructor and a borrow counter neither of that
// package's plain-data columns need.
//
// A borrow of 0 means free, >0 counts concurrent shared borrows, -1 marks a
// single exclusive borrow. The counter only arbitrates against misuse
// within one goroutine's query nesting (see World's single-threaded
// cooperative model); it is atomic for the same reason the teacher's own
// primitives are, not because this package promises thread safety.
type blobColumn struct {
	info     typeInfo
	data     []byte
	length   int
	capacity int
	borrow   atomic.Int32
}

func newBlobColumn(info typeInfo) *blobColumn {
	return &blobColumn{info: info}
}

func (c *blobColumn) zeroSized() bool {
	return c.info.size == 0
}

func (c *blobColumn) Len() int {
	return c.length
}

func (c *blobColumn) grow() {
	newCap := initialColumnCapacity
	if c.capacity > 0 {
		newCap = c.capacity * 2
	}
	newData := make([]byte, uintptr(newCap)*c.info.size)
	copy(newData, c.data)
	c.data = newData
	c.capacity = newCap
}

// pushBytes appends one element by copying info.size bytes from src. It
// does not invoke any destructor on src; the caller is transferring
// ownership of those bytes into the column.
func (c *blobColumn) pushBytes(src unsafe.Pointer) {
	if c.zeroSized() {
		c.length++
		return
	}
	if c.length == c.capacity {
		c.grow()
	}
	dst := unsafe.Pointer(&c.data[uintptr(c.length)*c.info.size])
	copyBytes(dst, src, c.info.size)
	c.length++
}

func (c *blobColumn) getBytes(row int) unsafe.Pointer {
	if c.zeroSized() {
		return unsafe.Pointer(c)
	}
	return unsafe.Pointer(&c.data[uintptr(row)*c.info.size])
}

// swapRemove removes row by swapping it with the last occupied slot and
// shrinking length by one, mirroring Vec::swap_remove: the slot previously
// at row now holds whatever was at the old last slot, and the returned
// pointer addresses the old contents of row (now sitting at the old last
// slot, still physically present in the backing array even though it is
// outside the new logical length). The caller must consume or drop that
// pointer before the next push, which will overwrite it. Returns nil for a
// zero-sized type, since there is nothing to drop or relocate.
func (c *blobColumn) swapRemove(row int) unsafe.Pointer {
	if c.zeroSized() {
		c.length--
		return nil
	}
	last := c.length - 1
	if row != last {
		c.swapSlots(row, last)
	}
	ptr := c.getBytes(last)
	c.length--
	return ptr
}

func (c *blobColumn) swapSlots(a, b int) {
	size := c.info.size
	aOff := uintptr(a) * size
	bOff := uintptr(b) * size
	scratch := make([]byte, size)
	copy(scratch, c.data[aOff:aOff+size])
	copy(c.data[aOff:aOff+size], c.data[bOff:bOff+size])
	copy(c.data[bOff:bOff+size], scratch)
}

func (c *blobColumn) borrowShared() bool {
	for {
		cur := c.borrow.Load()
		if cur < 0 {
			return false
		}
		if c.borrow.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

func (c *blobColumn) borrowExclusive() bool {
	return c.borrow.CompareAndSwap(0, -1)
}

func (c *blobColumn) releaseShared() {
	c.borrow.Add(-1)
}

func (c *blobColumn) releaseExclusive() {
	c.borrow.Store(0)
}

func copyBytes(dst, src unsafe.Pointer, n uintptr) {
	dstSlice := unsafe.Slice((*byte)(dst), int(n))
	srcSlice := unsafe.Slice((*byte)(src), int(n))
	copy(dstSlice, srcSlice)
}

// checkColumnType panics with a TypeMismatchError if T is not the type the
// column was created for. The comparison is two reflect.Type pointer
// compares, cheap enough to run unconditionally rather than gating it
// behind a debug build tag.
func checkColumnType[T any](c *blobColumn) {
	if want := reflect.TypeFor[T](); c.info.typ != want {
		panic(traced(TypeMismatchError{Expected: c.info.typ, Got: want}))
	}
}

// columnGet returns a typed pointer to row. For a zero-sized T every value
// is identical, so a fresh T is handed back rather than aliasing into the
// (non-existent) backing buffer.
func columnGet[T any](c *blobColumn, row int) *T {
	checkColumnType[T](c)
	if c.zeroSized() {
		return new(T)
	}
	return (*T)(c.getBytes(row))
}

// columnSlice exposes the column's live elements as a []T for chunked,
// SIMD-friendly iteration.
func columnSlice[T any](c *blobColumn) []T {
	checkColumnType[T](c)
	if c.length == 0 {
		return nil
	}
	if c.zeroSized() {
		return make([]T, c.length)
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&c.data[0])), c.length)
}
