package atomforge

import (
	"math"
	"strconv"
)

// Scalar is the closed set of value types an Atomic can hold. The widths
// are fixed by the shared-memory layout, so the constraint admits the exact
// types only, no named aliases.
type Scalar interface {
	int32 | uint32 | int64 | uint64 | float64
}

// Integer is the subset of Scalar with min/max bounds and overflow detection.
type Integer interface {
	int32 | uint32 | int64 | uint64
}

// Kind tags one of the five scalar instantiations. It drives the per-kind
// dispatch to the underlying load/store/fetch-add primitives.
type Kind uint8

const (
	Int32 Kind = iota
	Uint32
	Int64
	Uint64
	Float64
)

// KindOf reports the Kind for T.
func KindOf[T Scalar]() Kind {
	var zero T
	switch any(zero).(type) {
	case int32:
		return Int32
	case uint32:
		return Uint32
	case int64:
		return Int64
	case uint64:
		return Uint64
	default:
		return Float64
	}
}

// Size returns the number of backing bytes the kind occupies.
func (k Kind) Size() int {
	switch k {
	case Int32, Uint32:
		return 4
	default:
		return 8
	}
}

// Align returns the alignment the backing address must satisfy for the
// hardware atomic instructions to be valid. Equal to Size for every kind.
func (k Kind) Align() int {
	return k.Size()
}

// LockFree reports whether the hardware provides a lock-free atomic object
// of this kind's width. 8-byte kinds are only trusted on 64-bit targets:
// the Go runtime emulates aligned 64-bit atomics on some 32-bit platforms,
// and that emulation does not extend across process boundaries.
func (k Kind) LockFree() bool {
	if k.Size() == 8 {
		return strconv.IntSize == 64
	}
	return true
}

func (k Kind) String() string {
	switch k {
	case Int32:
		return "int32"
	case Uint32:
		return "uint32"
	case Int64:
		return "int64"
	case Uint64:
		return "uint64"
	case Float64:
		return "float64"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// SizeOf returns the backing size of T in bytes. Allocators use it to size
// regions before binding.
func SizeOf[T Scalar]() int {
	return KindOf[T]().Size()
}

// AlignOf returns the required backing alignment of T in bytes.
func AlignOf[T Scalar]() int {
	return KindOf[T]().Align()
}

// LockFree reports whether Bind[T] can succeed on this platform.
func LockFree[T Scalar]() bool {
	return KindOf[T]().LockFree()
}

// MinOf returns the smallest representable value of T.
func MinOf[T Integer]() T {
	var zero T
	switch any(zero).(type) {
	case int32:
		v := int32(math.MinInt32)
		return T(v)
	case int64:
		v := int64(math.MinInt64)
		return T(v)
	default:
		return 0
	}
}

// MaxOf returns the largest representable value of T.
func MaxOf[T Integer]() T {
	var zero T
	switch any(zero).(type) {
	case int32:
		v := int32(math.MaxInt32)
		return T(v)
	case uint32:
		v := uint32(math.MaxUint32)
		return T(v)
	case int64:
		v := int64(math.MaxInt64)
		return T(v)
	default:
		v := uint64(math.MaxUint64)
		return T(v)
	}
}
