package atomforge

import "time"

// defaultDeathCheckInterval bounds how long a robust waiter sleeps before
// probing whether the lock holder is still alive.
const defaultDeathCheckInterval = 100 * time.Millisecond

// LockOption configures how a Mutex is initialized or bound. The
// configuration is explicit and per-mutex; there is no process-global
// attribute state.
type LockOption func(*lockConfig)

type lockConfig struct {
	robust     bool
	deathCheck time.Duration
}

// WithoutRobust disables owner-death detection. Waiters sleep until woken
// or timed out and never probe the holder's liveness; if the holding
// process dies the lock stays held forever. Use only when a supervisor
// guarantees holders cannot die mid-critical-section.
func WithoutRobust() LockOption {
	return func(c *lockConfig) {
		c.robust = false
	}
}

// WithDeathCheckInterval sets how often a robust waiter wakes to check
// whether the lock holder is still alive. Shorter intervals recover faster
// from a dead holder at the cost of more wakeups. Values <= 0 keep the
// default of 100ms.
func WithDeathCheckInterval(d time.Duration) LockOption {
	return func(c *lockConfig) {
		if d > 0 {
			c.deathCheck = d
		}
	}
}

func applyLockOptions(opts []LockOption) lockConfig {
	cfg := lockConfig{
		robust:     true,
		deathCheck: defaultDeathCheckInterval,
	}
	for _, o := range opts {
		o(&cfg)
	}
	return cfg
}
