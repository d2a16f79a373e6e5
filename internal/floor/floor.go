// Package floor implements the single-holder "floor" arbiter (spec.md
// §4.1): whoever holds the floor may transmit; everyone else is denied
// until release or timeout. It is deliberately the simplest possible
// serializing actor — a mutex — matching spec.md §5's allowance of
// "one lock or a serializing actor" and the teacher's own preference for
// a plain sync.Mutex guarding small in-memory state (sfuRoom, sfuServer
// in webrtc/sfu.go).
package floor

import (
	"sync"
	"time"
)

// Reserved holder ids, distinct from any real clientId (spec.md §4.1).
const (
	ServerMicHolder = "__server_mic__"
	ExternalHolder  = "external"
)

// None reports no current holder.
const None = ""

// State is a point-in-time snapshot of the floor, safe to copy and hand
// out to callers (e.g. for a ptt_status broadcast or the dashboard API).
type State struct {
	Holder        string
	GrantedAt     time.Time
	MaxDuration   time.Duration
}

// IsIdle reports whether the floor is unheld.
func (s State) IsIdle() bool { return s.Holder == None }

// Arbiter owns the single global floor. All mutations funnel through its
// mutex, satisfying the "floor state transitions are totally ordered"
// guarantee in spec.md §5.
type Arbiter struct {
	mu          sync.Mutex
	holder      string
	grantedAt   time.Time
	maxDuration time.Duration
}

// New creates an Arbiter. maxDuration of 0 disables the timeout sweeper,
// per spec.md §3 ("maxDurationMillis (0 disables timeout)").
func New(maxDuration time.Duration) *Arbiter {
	return &Arbiter{maxDuration: maxDuration}
}

// RequestFloor attempts to grant the floor to holder. Returns true and the
// grant time on success; false and the current holder on contention.
func (a *Arbiter) RequestFloor(holder string) (granted bool, currentHolder string, grantedAt time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.holder != None {
		return false, a.holder, a.grantedAt
	}
	a.holder = holder
	a.grantedAt = time.Now()
	return true, a.holder, a.grantedAt
}

// ReleaseFloor releases the floor only if holder is the current holder.
// A mismatched release is silently ignored — spec.md §4.1 calls this out
// explicitly: it prevents a stale client from ejecting the real speaker.
func (a *Arbiter) ReleaseFloor(holder string) (released bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.holder == None || a.holder != holder {
		return false
	}
	a.holder = None
	a.grantedAt = time.Time{}
	return true
}

// ForceRelease unconditionally clears the floor (used by
// POST /api/dash/ptt/release, spec.md §4.10) and reports who, if anyone,
// was evicted.
func (a *Arbiter) ForceRelease() (evicted string, wasHeld bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.holder == None {
		return None, false
	}
	evicted = a.holder
	a.holder = None
	a.grantedAt = time.Time{}
	return evicted, true
}

// SweepTimeout evicts the current holder if maxDuration is set and has
// elapsed. Returns the evicted holder id, or ("", false) if nothing to do.
func (a *Arbiter) SweepTimeout() (evicted string, didEvict bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.maxDuration <= 0 || a.holder == None {
		return None, false
	}
	if time.Since(a.grantedAt) <= a.maxDuration {
		return None, false
	}
	evicted = a.holder
	a.holder = None
	a.grantedAt = time.Time{}
	return evicted, true
}

// Snapshot returns the current state.
func (a *Arbiter) Snapshot() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return State{Holder: a.holder, GrantedAt: a.grantedAt, MaxDuration: a.maxDuration}
}

// StartSweeper runs SweepTimeout on an interval until stop is closed,
// invoking onEvict with the evicted holder id whenever a sweep fires.
// The interval is deliberately shorter than any plausible maxDuration so
// the eviction happens close to the deadline without a per-grant timer.
func (a *Arbiter) StartSweeper(stop <-chan struct{}, onEvict func(holder string)) {
	if a.maxDuration <= 0 {
		return
	}
	interval := a.maxDuration / 10
	if interval < 250*time.Millisecond {
		interval = 250 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if holder, ok := a.SweepTimeout(); ok {
					onEvict(holder)
				}
			}
		}
	}()
}

// IsReserved reports whether holder is a non-client reserved id.
func IsReserved(holder string) bool {
	return holder == ServerMicHolder || holder == ExternalHolder
}
