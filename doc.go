// Package atomforge provides cross-process shared-memory primitives: atomic
// scalars (int32, uint32, int64, uint64, float64) and a crash-recoverable
// mutex, both living at fixed offsets inside memory shared between
// independent processes.
//
// The package never owns the memory it operates on. An external allocator
// hands out a Region — a borrowed (memory, offset, length) view plus a flag
// saying whether this is the first bind of that physical range — and the
// primitives re-derive their working address from the Region on every
// operation. Segment is the bundled Region provider: a file-backed
// MAP_SHARED mapping that multiple processes can open by path.
//
// All atomic operations are sequentially consistent. Integer Add is a single
// hardware fetch-and-add with two's-complement wraparound; overflow is
// reported after the fact, with the wrapped value already stored. Float64
// Add is a compare-and-swap retry loop. On targets where a width has no
// native lock-free atomic, Bind refuses with ErrUnsupported instead of
// silently emulating atomicity.
//
// The mutex is a futex word holding the owner's PID. It is process-shared,
// error-checking (releasing a lock you do not hold fails), and robust: if
// the holding process dies, the next acquirer gets the lock together with
// ErrOwnerDied and is responsible for validating whatever the lock was
// protecting.
package atomforge
