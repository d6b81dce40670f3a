package atomforge

import (
	"fmt"
	"math"
	"sync/atomic"
)

// Atomic is a T-typed view over SizeOf[T]() bytes of a shared Region.
// Every mutation is a single hardware atomic instruction (or a bounded
// compare-and-swap loop for float64 addition), so no partial-write state is
// ever observable from any process. All operations are sequentially
// consistent.
//
// An Atomic is safe for concurrent use by any number of goroutines and, when
// the Region is backed by shared memory, by any number of processes.
type Atomic[T Scalar] struct {
	region Region
	kind   Kind
}

// Bind constructs an Atomic[T] over r.
//
// Fails with ErrUnsupported when the platform has no lock-free atomic of
// T's width (the type is structurally absent rather than silently emulated),
// ErrTooSmall when r is shorter than SizeOf[T](), and ErrUnaligned when the
// derived address does not satisfy AlignOf[T]().
//
// On the first bind of a physical range the value is set to zero; a re-bind
// leaves the current value untouched. The distinction comes solely from the
// Region's first-bind flag, never from inspecting the bytes.
func Bind[T Scalar](r Region) (*Atomic[T], error) {
	k := KindOf[T]()
	if !k.LockFree() {
		return nil, fmt.Errorf("atomforge: bind %s: %w", k, ErrUnsupported)
	}
	if r.Len() < k.Size() {
		return nil, fmt.Errorf("atomforge: bind %s: region is %d bytes, need %d: %w",
			k, r.Len(), k.Size(), ErrTooSmall)
	}
	if uintptr(r.pointer())%uintptr(k.Align()) != 0 {
		return nil, fmt.Errorf("atomforge: bind %s: address %#x needs %d-byte alignment: %w",
			k, r.pointer(), k.Align(), ErrUnaligned)
	}
	a := &Atomic[T]{region: r, kind: k}
	if r.FirstBind() {
		a.Set(0)
	}
	return a, nil
}

// Kind returns the scalar kind this Atomic was instantiated with.
func (a *Atomic[T]) Kind() Kind { return a.kind }

// Get returns the current value. Sequentially consistent load.
func (a *Atomic[T]) Get() T {
	p := a.region.pointer()
	switch a.kind {
	case Int32:
		return T(atomic.LoadInt32((*int32)(p)))
	case Uint32:
		return T(atomic.LoadUint32((*uint32)(p)))
	case Int64:
		return T(atomic.LoadInt64((*int64)(p)))
	case Uint64:
		return T(atomic.LoadUint64((*uint64)(p)))
	default:
		return T(math.Float64frombits(atomic.LoadUint64((*uint64)(p))))
	}
}

// Set overwrites the current value. Sequentially consistent store.
func (a *Atomic[T]) Set(v T) {
	p := a.region.pointer()
	switch a.kind {
	case Int32:
		atomic.StoreInt32((*int32)(p), int32(v))
	case Uint32:
		atomic.StoreUint32((*uint32)(p), uint32(v))
	case Int64:
		atomic.StoreInt64((*int64)(p), int64(v))
	case Uint64:
		atomic.StoreUint64((*uint64)(p), uint64(v))
	default:
		atomic.StoreUint64((*uint64)(p), math.Float64bits(float64(v)))
	}
}

// Add atomically adds delta and returns the value held before the addition.
//
// Integer kinds use a single fetch-and-add with two's-complement wraparound.
// If the mathematical sum is not representable, Add returns ErrOverflow —
// but the wrapped value is already stored by then; the error is advisory,
// not transactional. Rolling back would require a compare-and-swap retry
// loop, which would defeat the point of using fetch-and-add.
//
// Float64 uses a compare-and-swap retry loop and never reports overflow;
// IEEE-754 semantics (infinities, NaN propagation) apply as-is.
func (a *Atomic[T]) Add(delta T) (T, error) {
	return a.add(delta, true)
}

// WrappingAdd is Add without overflow reporting: the wrapped result stands
// and no error is returned.
func (a *Atomic[T]) WrappingAdd(delta T) T {
	old, _ := a.add(delta, false)
	return old
}

func (a *Atomic[T]) add(delta T, check bool) (T, error) {
	p := a.region.pointer()
	switch a.kind {
	case Int32:
		d := int32(delta)
		wrapped := atomic.AddInt32((*int32)(p), d)
		old := wrapped - d
		if check && signedOverflow(old, d, wrapped) {
			return T(old), a.overflowErr(T(old), delta)
		}
		return T(old), nil
	case Uint32:
		d := uint32(delta)
		wrapped := atomic.AddUint32((*uint32)(p), d)
		old := wrapped - d
		if check && wrapped < old {
			return T(old), a.overflowErr(T(old), delta)
		}
		return T(old), nil
	case Int64:
		d := int64(delta)
		wrapped := atomic.AddInt64((*int64)(p), d)
		old := wrapped - d
		if check && signedOverflow(old, d, wrapped) {
			return T(old), a.overflowErr(T(old), delta)
		}
		return T(old), nil
	case Uint64:
		d := uint64(delta)
		wrapped := atomic.AddUint64((*uint64)(p), d)
		old := wrapped - d
		if check && wrapped < old {
			return T(old), a.overflowErr(T(old), delta)
		}
		return T(old), nil
	default:
		d := float64(delta)
		u := (*uint64)(p)
		for {
			oldBits := atomic.LoadUint64(u)
			old := math.Float64frombits(oldBits)
			if atomic.CompareAndSwapUint64(u, oldBits, math.Float64bits(old+d)) {
				return T(old), nil
			}
		}
	}
}

func (a *Atomic[T]) overflowErr(old, delta T) error {
	return fmt.Errorf("atomforge: %v + %v does not fit in %s: %w", old, delta, a.kind, ErrOverflow)
}

// signedOverflow reports whether old+delta overflowed given the wrapped
// result. The sign test is exact: wraparound moves the result to the wrong
// side of old if and only if the true sum is unrepresentable.
func signedOverflow[T int32 | int64](old, delta, wrapped T) bool {
	return (delta > 0 && wrapped < old) || (delta < 0 && wrapped > old)
}
