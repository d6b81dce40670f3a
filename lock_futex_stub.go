//go:build !linux

package atomforge

import "time"

// No cross-process wait/wake primitive here. MutexSupported reports false
// and mutex construction fails with ErrUnsupported; these stubs only keep
// the package compiling.
const futexSupported = false

func futexWait(addr *uint32, val uint32, d time.Duration) error {
	return ErrUnsupported
}

func futexWake(addr *uint32, n int) (int, error) {
	return 0, ErrUnsupported
}

func pidAlive(pid int) bool {
	return true
}
