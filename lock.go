package atomforge

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"
)

const (
	// MutexSize is the number of backing bytes a Mutex needs. The control
	// block is one futex word plus reserved space.
	MutexSize = 8

	// MutexAlign is the required backing alignment: the futex word must sit
	// on a 4-byte boundary.
	MutexAlign = 4
)

// Control word layout. Unlocked is 0. While locked, the low bits carry the
// holder's PID; the top two bits flag parked waiters and a holder that died
// without releasing.
const (
	mutexWaiters   = 1 << 31
	mutexOwnerDied = 1 << 30
	mutexOwnerMask = mutexOwnerDied - 1
)

// errFutexTimeout is the internal signal that a bounded futex wait elapsed.
var errFutexTimeout = errors.New("atomforge: futex wait timed out")

// Mutex is a cross-process mutual exclusion lock living in a shared Region.
//
// It is process-shared (any process mapping the region can lock it),
// error-checking (Release by a process that does not hold it fails with
// ErrNotOwner) and, unless WithoutRobust is given, robust: when the holding
// process dies, the next acquirer is handed the lock together with
// ErrOwnerDied. The data the lock protected may be mid-update at that
// point; recovering it is the caller's job, this layer cannot know what
// invariant the lock was guarding. Metrics-style idempotent or commutative
// updates tolerate this naturally; anything else needs its own validation.
//
// Ownership is tracked per process, not per goroutine. As with sync.Mutex,
// pairing Acquire and Release across goroutines of one process is the
// caller's discipline.
type Mutex struct {
	region Region
	cfg    lockConfig
}

// InitMutex initializes the control block in r and returns the Mutex. Must
// be called exactly once per physical region, before any process binds it;
// r therefore has to carry the first-bind flag. Everyone else uses
// BindMutex. Initializing an already-initialized block from a second
// process corrupts whatever state the lock is in, which is why the
// allocator's construct-once contract is enforced here via the flag rather
// than by inspecting the bytes.
func InitMutex(r Region, opts ...LockOption) (*Mutex, error) {
	if !r.FirstBind() {
		return nil, fmt.Errorf("atomforge: init mutex: region is a re-bind, use BindMutex")
	}
	m, err := newMutex(r, opts)
	if err != nil {
		return nil, err
	}
	atomic.StoreUint32(m.word(), 0)
	return m, nil
}

// BindMutex attaches to a control block that another process (or an earlier
// incarnation of this one) already initialized with InitMutex.
func BindMutex(r Region, opts ...LockOption) (*Mutex, error) {
	if r.FirstBind() {
		return nil, fmt.Errorf("atomforge: bind mutex: region is a first bind, use InitMutex")
	}
	return newMutex(r, opts)
}

func newMutex(r Region, opts []LockOption) (*Mutex, error) {
	if !MutexSupported() {
		return nil, fmt.Errorf("atomforge: mutex: %w", ErrUnsupported)
	}
	if r.Len() < MutexSize {
		return nil, fmt.Errorf("atomforge: mutex: region is %d bytes, need %d: %w",
			r.Len(), MutexSize, ErrTooSmall)
	}
	if uintptr(r.pointer())%MutexAlign != 0 {
		return nil, fmt.Errorf("atomforge: mutex: address %#x needs %d-byte alignment: %w",
			r.pointer(), MutexAlign, ErrUnaligned)
	}
	return &Mutex{region: r, cfg: applyLockOptions(opts)}, nil
}

// MutexSupported reports whether this platform provides the cross-process
// wait/wake primitive the Mutex is built on. When false, InitMutex and
// BindMutex fail with ErrUnsupported and callers must fall back to their
// own locking.
func MutexSupported() bool { return futexSupported }

func (m *Mutex) word() *uint32 {
	return (*uint32)(m.region.pointer())
}

// Acquire blocks until the lock is held and returns true.
//
// If the previous holder died while holding the lock, Acquire still
// succeeds — the returned bool is true and the lock is held — but the error
// is ErrOwnerDied, flagging that the protected data may be inconsistent.
// Check it with errors.Is; any other non-nil error means the lock was NOT
// acquired and carries the underlying OS failure.
//
// Robust death detection probes the holder's PID with a zero signal. A PID
// recycled by the OS can make a dead holder look alive; the wait then
// simply continues until the new holder of that PID's lock releases, so
// liveness degrades but mutual exclusion never does.
func (m *Mutex) Acquire() (bool, error) {
	return m.acquire(true, 0, false)
}

// TryAcquire attempts to take the lock without blocking. Returns false,
// not an error, when the lock is already held elsewhere.
func (m *Mutex) TryAcquire() (bool, error) {
	return m.acquire(false, 0, false)
}

// AcquireTimeout is Acquire with a bounded wait. The timeout converts to an
// absolute deadline once, at call entry, so internal retries cannot drift
// it. Returns false on expiry.
func (m *Mutex) AcquireTimeout(d time.Duration) (bool, error) {
	if d < 0 {
		d = 0
	}
	return m.acquire(true, d, true)
}

func (m *Mutex) acquire(block bool, timeout time.Duration, timed bool) (bool, error) {
	w := m.word()
	self := uint32(os.Getpid()) & mutexOwnerMask

	var deadline time.Time
	if timed {
		deadline = time.Now().Add(timeout)
	}

	// once we have parked we can no longer tell whether other waiters are
	// asleep, so from then on we take the lock with the waiters bit set and
	// let Release wake one of them
	waited := false

	for {
		cur := atomic.LoadUint32(w)
		if cur&mutexOwnerMask == 0 {
			next := self | (cur & mutexWaiters)
			if waited {
				next |= mutexWaiters
			}
			if atomic.CompareAndSwapUint32(w, cur, next) {
				if cur&mutexOwnerDied != 0 {
					return true, fmt.Errorf("atomforge: acquire: %w", ErrOwnerDied)
				}
				return true, nil
			}
			continue
		}

		if !block {
			return false, nil
		}
		if timed && !time.Now().Before(deadline) {
			m.passBaton(w)
			return false, nil
		}

		if cur&mutexWaiters == 0 {
			if !atomic.CompareAndSwapUint32(w, cur, cur|mutexWaiters) {
				continue
			}
			cur |= mutexWaiters
		}

		// wait in bounded slices when robust so a dead holder is noticed
		wait := time.Duration(-1)
		if timed {
			wait = time.Until(deadline)
			if wait < 0 {
				wait = 0
			}
		}
		if m.cfg.robust && (wait < 0 || wait > m.cfg.deathCheck) {
			wait = m.cfg.deathCheck
		}

		err := futexWait(w, cur, wait)
		switch {
		case err == nil:
		case errors.Is(err, errFutexTimeout):
			if m.cfg.robust {
				m.reapDeadOwner(w)
			}
		default:
			return false, fmt.Errorf("atomforge: acquire: %w", err)
		}

		waited = true
	}
}

// reapDeadOwner checks whether the current holder's process is gone and, if
// so, forces the lock open with the owner-died flag set. Whichever waiter
// wins the subsequent CAS gets the lock and the ErrOwnerDied signal.
func (m *Mutex) reapDeadOwner(w *uint32) {
	cur := atomic.LoadUint32(w)
	owner := int(cur & mutexOwnerMask)
	if owner == 0 || pidAlive(owner) {
		return
	}
	atomic.CompareAndSwapUint32(w, cur, (cur&mutexWaiters)|mutexOwnerDied)
}

// passBaton hands a pending wakeup to another waiter when a timed acquire
// gives up while the lock is free. Without it, the wakeup this waiter
// consumed could strand a remaining sleeper.
func (m *Mutex) passBaton(w *uint32) {
	if atomic.LoadUint32(w)&mutexOwnerMask == 0 {
		_, _ = futexWake(w, 1)
	}
}

// Release unlocks. Fails with ErrNotOwner when this process does not hold
// the lock — the error-checking semantics, misuse is reported rather than
// silently corrupting the lock state.
//
// Any other non-nil error comes from waking waiters and is reported after
// the word has already been cleared: the lock IS released at that point.
// Do not call Release again on that path; it would fail with ErrNotOwner
// (or worse, release a lock re-taken by another goroutine of this process).
func (m *Mutex) Release() error {
	w := m.word()
	self := uint32(os.Getpid()) & mutexOwnerMask

	for {
		cur := atomic.LoadUint32(w)
		if cur&mutexOwnerMask != self {
			return fmt.Errorf("atomforge: release: %w", ErrNotOwner)
		}
		if atomic.CompareAndSwapUint32(w, cur, 0) {
			if cur&mutexWaiters != 0 {
				if _, err := futexWake(w, 1); err != nil {
					return fmt.Errorf("atomforge: release: %w", err)
				}
			}
			return nil
		}
	}
}

// Do runs fn while holding the lock: it acquires (blocking indefinitely),
// runs fn, and releases on every exit path — including a panic in fn,
// which propagates after the lock is released. A leaked cross-process lock
// would wedge every process sharing the segment, so release happens in a
// defer. Errors from the acquisition (including an advisory ErrOwnerDied),
// from fn, and from the release are joined; a failed acquisition returns
// before fn runs.
func (m *Mutex) Do(fn func() error) (err error) {
	ok, aerr := m.Acquire()
	if !ok {
		return aerr
	}
	defer func() {
		err = errors.Join(aerr, err, m.Release())
	}()
	return fn()
}
