package atomforge

import (
	"fmt"
	"unsafe"
)

// Memory is a provider of mapped shared memory. Base may legally differ
// between processes (the same file mapped at different virtual addresses),
// which is why nothing in this package caches the result: every operation
// re-derives its working address through Base at call time.
//
// Implementations must keep the backing memory mapped and valid for as long
// as any Region handed out over it is in use.
type Memory interface {
	// Base returns the current start address of the mapping.
	Base() unsafe.Pointer

	// Size returns the mapped length in bytes.
	Size() int
}

// Region is a borrowed view of [off, off+len) inside a Memory. It owns
// nothing: creating or dropping a Region never maps, unmaps, or zeroes
// anything. The first-bind flag records whether this physical range is
// being bound for the first time (fresh, zero-initialized allocation) or
// re-attached by another process; primitives use it to decide whether to
// run their one-time initialization.
type Region struct {
	mem   Memory
	off   int
	n     int
	first bool
}

// NewRegion builds a Region over m. The range must lie inside the mapping.
// firstBind must be true exactly once per physical range, across all
// processes; that contract belongs to the allocator, and this package never
// second-guesses it by inspecting the bytes.
func NewRegion(m Memory, off, size int, firstBind bool) (Region, error) {
	if m == nil {
		return Region{}, fmt.Errorf("atomforge: new region: nil memory")
	}
	if off < 0 || size <= 0 || off > m.Size()-size {
		return Region{}, fmt.Errorf("atomforge: new region [%d:%d) of %d bytes: %w",
			off, off+size, m.Size(), ErrOutOfBounds)
	}
	return Region{mem: m, off: off, n: size, first: firstBind}, nil
}

// BytesRegion wraps a caller-owned byte slice as a Region. Useful for
// single-process callers and tests; the slice obviously cannot be shared
// with another process. The caller must keep the slice alive and must not
// move its contents (no append).
func BytesRegion(b []byte, firstBind bool) Region {
	return Region{mem: &sliceMemory{b: b}, off: 0, n: len(b), first: firstBind}
}

// Len returns the length of the region in bytes.
func (r Region) Len() int { return r.n }

// FirstBind reports whether this handle represents the first bind of the
// underlying physical range.
func (r Region) FirstBind() bool { return r.first }

// pointer derives the current working address. Never cached by callers.
func (r Region) pointer() unsafe.Pointer {
	return unsafe.Add(r.mem.Base(), r.off)
}

// Bytes returns the region's bytes as a slice over the live mapping.
// Valid only while the backing Memory stays mapped.
func (r Region) Bytes() []byte {
	return unsafe.Slice((*byte)(r.pointer()), r.n)
}

type sliceMemory struct {
	b []byte
}

func (m *sliceMemory) Base() unsafe.Pointer {
	return unsafe.Pointer(unsafe.SliceData(m.b))
}

func (m *sliceMemory) Size() int { return len(m.b) }
