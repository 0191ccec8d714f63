// Package connectivity answers the question "are we really online".
//
// The fast flag (IsOnline) is the platform-style signal: last known state,
// updated by probe results and by the outcome of real requests. It is cheap
// enough for instant UI decisions but produces false positives — it can say
// online while nothing actually routes to the back office. Every consequential
// decision (session restore, triggering sync, gating registry close) MUST go
// through CheckActualConnectivity, which performs a real bounded round-trip.
// Do not "simplify" call sites down to the flag; the split is deliberate.
package connectivity

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// Pinger is the network round-trip the oracle probes with.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Oracle tracks and verifies connectivity to the back office.
type Oracle struct {
	pinger       Pinger
	probeTimeout time.Duration
	breaker      *probeBreaker

	// online is the fast flag. true is only a hint; false is trustworthy
	// enough to commit to offline mode without a probe.
	online atomic.Bool

	mu          sync.Mutex
	subscribers []func(online bool)
}

// NewOracle starts optimistic: the first consequential decision runs a real
// probe anyway, and starting pessimistic would flash offline UI on boot.
func NewOracle(pinger Pinger, probeTimeout time.Duration) *Oracle {
	o := &Oracle{
		pinger:       pinger,
		probeTimeout: probeTimeout,
		breaker:      newProbeBreaker(3, 30*time.Second),
	}
	o.online.Store(true)
	return o
}

// IsOnline is the fast, synchronous flag. Suitable only for instant UI
// decisions and as a short-circuit to offline mode.
func (o *Oracle) IsOnline() bool {
	return o.online.Load()
}

// CheckActualConnectivity performs a real network round-trip with a short
// bounded timeout and returns false on ANY failure, including timeout. It
// never hangs: the probe deadline is o.probeTimeout regardless of ctx.
// The breaker suppresses repeat probes against a recently-dead backend —
// a suppressed probe reports offline, which is exactly what the last real
// probe established.
func (o *Oracle) CheckActualConnectivity(ctx context.Context) bool {
	if !o.breaker.allow() {
		return false
	}

	probeCtx, cancel := context.WithTimeout(ctx, o.probeTimeout)
	defer cancel()

	err := o.pinger.Ping(probeCtx)
	if err != nil {
		o.breaker.onFailure()
		o.setOnline(false)
		log.Debug().Err(err).Msg("connectivity: probe failed")
		return false
	}
	o.breaker.onSuccess()
	o.setOnline(true)
	return true
}

// ReportRequestOutcome feeds real request results back into the fast flag:
// a failed sale submission is better evidence than any platform signal.
func (o *Oracle) ReportRequestOutcome(succeeded bool) {
	if succeeded {
		o.breaker.onSuccess()
	}
	o.setOnline(succeeded)
}

// Subscribe registers fn to run on every online/offline transition.
func (o *Oracle) Subscribe(fn func(online bool)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.subscribers = append(o.subscribers, fn)
}

func (o *Oracle) setOnline(online bool) {
	if o.online.Swap(online) == online {
		return
	}
	if online {
		log.Info().Msg("connectivity: back online")
	} else {
		log.Warn().Msg("connectivity: offline")
	}
	o.mu.Lock()
	subs := make([]func(bool), len(o.subscribers))
	copy(subs, o.subscribers)
	o.mu.Unlock()
	for _, fn := range subs {
		fn(online)
	}
}
