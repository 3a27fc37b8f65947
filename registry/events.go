package registry

import (
	"time"

	"github.com/custodia/guardian-recovery-backend/interfaces"
)

// EventKind labels a ledger state transition.
type EventKind string

const (
	EventGuardianAdded     EventKind = "guardian_added"
	EventGuardianRemoved   EventKind = "guardian_removed"
	EventThresholdSet      EventKind = "threshold_set"
	EventRecoveryInitiated EventKind = "recovery_initiated"
	EventRecoveryApproved  EventKind = "recovery_approved"
	EventRecoveryExecuted  EventKind = "recovery_executed"
	EventRecoveryCancelled EventKind = "recovery_cancelled"
)

// Event records one successful ledger mutation. Failed calls emit nothing.
type Event struct {
	Kind      EventKind                 `json:"kind"`
	Owner     interfaces.AccountAddress `json:"owner"`
	Actor     interfaces.AccountAddress `json:"actor,omitempty"`
	RequestID uint64                    `json:"request_id,omitempty"`
	Weight    uint64                    `json:"weight,omitempty"`
	Timestamp time.Time                 `json:"timestamp"`
}

// record appends an event. Callers hold r.mu.
func (r *LedgerReplica) record(ev Event) {
	ev.Timestamp = r.timestamp()
	r.events = append(r.events, ev)
	if r.log != nil {
		r.log.Info("Ledger event", "kind", ev.Kind, "owner", ev.Owner.String(), "actor", ev.Actor.String(), "requestID", ev.RequestID, "weight", ev.Weight)
	}
}

// Events returns the replica's event log in emission order.
func (r *LedgerReplica) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// EventsFor returns the events touching the given owner.
func (r *LedgerReplica) EventsFor(owner interfaces.AccountAddress) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := []Event{}
	for _, ev := range r.events {
		if ev.Owner.Equal(owner) {
			out = append(out, ev)
		}
	}
	return out
}
