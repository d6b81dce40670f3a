package atomforge

import "testing"

func benchAtomic[T Scalar](b *testing.B) *Atomic[T] {
	b.Helper()
	a, err := Bind[T](BytesRegion(alignedBytes(SizeOf[T]()), true))
	if err != nil {
		b.Fatalf("bind: %v", err)
	}
	return a
}

func BenchmarkGet_Uint64(b *testing.B) {
	a := benchAtomic[uint64](b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = a.Get()
	}
}

func BenchmarkAdd_Uint64(b *testing.B) {
	a := benchAtomic[uint64](b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		a.WrappingAdd(1)
	}
}

func BenchmarkAdd_Uint64Checked(b *testing.B) {
	a := benchAtomic[uint64](b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = a.Add(1)
	}
}

func BenchmarkAdd_Float64(b *testing.B) {
	a := benchAtomic[float64](b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		a.WrappingAdd(1)
	}
}

func BenchmarkAdd_Uint64Parallel(b *testing.B) {
	a := benchAtomic[uint64](b)
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			a.WrappingAdd(1)
		}
	})
}
