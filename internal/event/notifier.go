// Package event fans agent notifications out to the till UI. Every state
// transition relevant to money (sync start/finish, close accepted/rejected,
// variance over threshold, connectivity changes) produces an explicit,
// specific event — a generic "something went wrong" is not acceptable for
// financial operations.
package event

import (
	"sync"
	"time"
)

// Event types pushed to the UI stream.
const (
	SyncStarted           = "sync.started"
	SyncFinished          = "sync.finished"
	TotalsChanged         = "totals.changed"
	OperationQueued       = "operation.queued"
	RegistryOpened        = "registry.opened"
	RegistryClosed        = "registry.closed"
	RegistryCloseRejected = "registry.close_rejected"
	VarianceOverThreshold = "variance.over_threshold"
	WentOnline            = "connectivity.online"
	WentOffline           = "connectivity.offline"
	SessionExpired        = "auth.session_expired"
)

// Event is one notification.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
	At   time.Time   `json:"at"`
}

// Notifier is an in-process publish/subscribe hub. Subscribers are UI event
// streams: slow consumers are skipped rather than allowed to block the money
// path, since the UI can always re-fetch current state.
type Notifier struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[int]chan Event)}
}

// Publish delivers ev to every subscriber without blocking.
func (n *Notifier) Publish(evType string, data interface{}) {
	ev := Event{Type: evType, Data: data, At: time.Now().UTC()}
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs {
		select {
		case ch <- ev:
		default: // subscriber is behind — drop, UI state is re-fetchable
		}
	}
}

// Subscribe returns a buffered event channel and a cancel func that must be
// called when the consumer goes away.
func (n *Notifier) Subscribe() (<-chan Event, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.next
	n.next++
	ch := make(chan Event, 32)
	n.subs[id] = ch
	cancel := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if sub, ok := n.subs[id]; ok {
			delete(n.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}
