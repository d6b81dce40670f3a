package atomforge

import (
	"math"
	"strconv"
	"testing"
)

func TestKindOf(t *testing.T) {
	if k := KindOf[int32](); k != Int32 {
		t.Errorf("KindOf[int32] = %v, want Int32", k)
	}
	if k := KindOf[uint32](); k != Uint32 {
		t.Errorf("KindOf[uint32] = %v, want Uint32", k)
	}
	if k := KindOf[int64](); k != Int64 {
		t.Errorf("KindOf[int64] = %v, want Int64", k)
	}
	if k := KindOf[uint64](); k != Uint64 {
		t.Errorf("KindOf[uint64] = %v, want Uint64", k)
	}
	if k := KindOf[float64](); k != Float64 {
		t.Errorf("KindOf[float64] = %v, want Float64", k)
	}
}

func TestKind_SizeAlign(t *testing.T) {
	tests := []struct {
		kind Kind
		size int
	}{
		{Int32, 4},
		{Uint32, 4},
		{Int64, 8},
		{Uint64, 8},
		{Float64, 8},
	}
	for _, tt := range tests {
		if got := tt.kind.Size(); got != tt.size {
			t.Errorf("%v.Size() = %d, want %d", tt.kind, got, tt.size)
		}
		// alignment tracks width for every kind
		if got := tt.kind.Align(); got != tt.size {
			t.Errorf("%v.Align() = %d, want %d", tt.kind, got, tt.size)
		}
	}
}

func TestKind_String(t *testing.T) {
	if s := Uint64.String(); s != "uint64" {
		t.Errorf("Uint64.String() = %q", s)
	}
	if s := Kind(42).String(); s != "kind(42)" {
		t.Errorf("Kind(42).String() = %q", s)
	}
}

func TestKind_LockFree(t *testing.T) {
	if !Int32.LockFree() || !Uint32.LockFree() {
		t.Error("32-bit kinds must be lock-free everywhere")
	}

	want := strconv.IntSize == 64
	for _, k := range []Kind{Int64, Uint64, Float64} {
		if got := k.LockFree(); got != want {
			t.Errorf("%v.LockFree() = %v, want %v on a %d-bit target", k, got, want, strconv.IntSize)
		}
	}
}

func TestBounds(t *testing.T) {
	if got := MinOf[int32](); got != math.MinInt32 {
		t.Errorf("MinOf[int32] = %d", got)
	}
	if got := MaxOf[int32](); got != math.MaxInt32 {
		t.Errorf("MaxOf[int32] = %d", got)
	}
	if got := MinOf[uint32](); got != 0 {
		t.Errorf("MinOf[uint32] = %d", got)
	}
	if got := MaxOf[uint32](); got != math.MaxUint32 {
		t.Errorf("MaxOf[uint32] = %d", got)
	}
	if got := MinOf[int64](); got != math.MinInt64 {
		t.Errorf("MinOf[int64] = %d", got)
	}
	if got := MaxOf[int64](); got != math.MaxInt64 {
		t.Errorf("MaxOf[int64] = %d", got)
	}
	if got := MinOf[uint64](); got != 0 {
		t.Errorf("MinOf[uint64] = %d", got)
	}
	if got := MaxOf[uint64](); got != math.MaxUint64 {
		t.Errorf("MaxOf[uint64] = %d", got)
	}
}

func TestSizeOfMatchesKind(t *testing.T) {
	if SizeOf[float64]() != Float64.Size() {
		t.Error("SizeOf[float64] disagrees with Float64.Size()")
	}
	if AlignOf[int32]() != Int32.Align() {
		t.Error("AlignOf[int32] disagrees with Int32.Align()")
	}
	if LockFree[uint32]() != Uint32.LockFree() {
		t.Error("LockFree[uint32] disagrees with Uint32.LockFree()")
	}
}
