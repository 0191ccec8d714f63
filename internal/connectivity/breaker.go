package connectivity

import (
	"sync"
	"time"
)

// probeBreaker rate-limits active probes against a backend that keeps
// failing. While open it answers "offline" instantly instead of burning a
// probe timeout on every UI interaction; after cooldown one probe is let
// through to test recovery (Closed → Open → Half-Open).
type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

type probeBreaker struct {
	mu          sync.Mutex
	state       breakerState
	failures    int
	lastFailure time.Time

	failureThreshold int
	cooldown         time.Duration
}

func newProbeBreaker(failureThreshold int, cooldown time.Duration) *probeBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 3
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &probeBreaker{failureThreshold: failureThreshold, cooldown: cooldown}
}

// allow reports whether a probe may run now. Transitions open → half-open
// after the cooldown elapses.
func (b *probeBreaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == breakerOpen {
		if time.Since(b.lastFailure) >= b.cooldown {
			b.state = breakerHalfOpen
			return true
		}
		return false
	}
	return true
}

func (b *probeBreaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = breakerClosed
	b.failures = 0
}

func (b *probeBreaker) onFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	b.lastFailure = time.Now()
	if b.state == breakerHalfOpen || b.failures >= b.failureThreshold {
		b.state = breakerOpen
		b.failures = 0
	}
}
