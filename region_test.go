package atomforge

import (
	"errors"
	"testing"
	"unsafe"
)

// alignedBytes returns an n-byte slice backed by uint64 words, so the first
// byte is always 8-byte aligned. Heap byte slices carry no alignment
// guarantee, which matters for every Bind in these tests.
func alignedBytes(n int) []byte {
	words := make([]uint64, (n+7)/8)
	return unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), n)
}

func TestNewRegion_Bounds(t *testing.T) {
	mem := &sliceMemory{b: alignedBytes(64)}

	tests := []struct {
		name      string
		off, size int
	}{
		{"negative offset", -1, 8},
		{"zero size", 0, 0},
		{"negative size", 8, -8},
		{"past the end", 60, 8},
		{"way past the end", 1 << 20, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegion(mem, tt.off, tt.size, false)
			if !errors.Is(err, ErrOutOfBounds) {
				t.Fatalf("err = %v, want ErrOutOfBounds", err)
			}
		})
	}
}

func TestNewRegion_NilMemory(t *testing.T) {
	if _, err := NewRegion(nil, 0, 8, false); err == nil {
		t.Fatal("expected error for nil memory")
	}
}

func TestNewRegion_OK(t *testing.T) {
	mem := &sliceMemory{b: alignedBytes(64)}
	r, err := NewRegion(mem, 16, 8, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Len() != 8 {
		t.Errorf("Len() = %d, want 8", r.Len())
	}
	if !r.FirstBind() {
		t.Error("FirstBind() = false, want true")
	}
}

func TestBytesRegion_SharesBacking(t *testing.T) {
	buf := alignedBytes(16)
	r := BytesRegion(buf, false)

	r.Bytes()[3] = 0xAB
	if buf[3] != 0xAB {
		t.Error("write through Region not visible in backing slice")
	}
	if len(r.Bytes()) != 16 {
		t.Errorf("len(Bytes()) = %d, want 16", len(r.Bytes()))
	}
}

func TestRegion_OffsetPointer(t *testing.T) {
	mem := &sliceMemory{b: alignedBytes(64)}
	r, err := NewRegion(mem, 24, 8, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := uintptr(mem.Base()) + 24
	if got := uintptr(unsafe.Pointer(&r.Bytes()[0])); got != want {
		t.Errorf("region starts at %#x, want %#x", got, want)
	}
}
