//go:build linux

package atomforge

import (
	"errors"
	"fmt"
	"sync/atomic"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

const futexSupported = true

// Futex ops without FUTEX_PRIVATE_FLAG: the waiters live in different
// processes, so the kernel has to match them by physical page, not by mm.
const (
	futexWaitOp = 0 // FUTEX_WAIT
	futexWakeOp = 1 // FUTEX_WAKE
)

// futexWait parks the calling thread until the value at addr changes from
// val, a wake arrives, or d elapses. d < 0 waits forever. Spurious returns
// are expected and fine; callers always re-check the protected condition.
//
// The wait goes through unix.Syscall6, not RawSyscall6, so the runtime
// knows the thread is in a blocking syscall and keeps scheduling other
// goroutines — the wait may span processes and be arbitrarily long.
func futexWait(addr *uint32, val uint32, d time.Duration) error {
	// re-check right before the syscall: a wake delivered between the
	// caller's load and here would otherwise be lost
	if atomic.LoadUint32(addr) != val {
		return nil
	}

	var errno syscall.Errno
	if d >= 0 {
		ts := unix.NsecToTimespec(int64(d))
		_, _, errno = unix.Syscall6(
			unix.SYS_FUTEX,
			uintptr(unsafe.Pointer(addr)),
			futexWaitOp,
			uintptr(val),
			uintptr(unsafe.Pointer(&ts)),
			0, 0,
		)
	} else {
		_, _, errno = unix.Syscall6(
			unix.SYS_FUTEX,
			uintptr(unsafe.Pointer(addr)),
			futexWaitOp,
			uintptr(val),
			0, 0, 0,
		)
	}

	switch errno {
	case 0:
		return nil
	case unix.EAGAIN, unix.EINTR:
		// EAGAIN <- the value changed before we slept; EINTR <- signal.
		// both look like spurious wakeups to the caller
		return nil
	case unix.ETIMEDOUT:
		return errFutexTimeout
	default:
		return fmt.Errorf("futex wait: %w", errno)
	}
}

// futexWake wakes up to n threads parked on addr, in any process. Returns
// how many were actually woken.
func futexWake(addr *uint32, n int) (int, error) {
	r1, _, errno := unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		futexWakeOp,
		uintptr(n),
		0, 0, 0,
	)
	if errno != 0 {
		return 0, fmt.Errorf("futex wake: %w", errno)
	}
	return int(r1), nil
}

// pidAlive reports whether a process with the given PID exists. Signal 0
// performs the permission and existence checks without delivering anything;
// EPERM still means the process is there.
func pidAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	return !errors.Is(err, unix.ESRCH)
}
