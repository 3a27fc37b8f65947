package registry

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia/guardian-recovery-backend/interfaces"
	"github.com/ethereum/go-ethereum/core/types"
)

// LedgerReplica implements the interfaces.LedgerRegistry state machine in
// process. Mutating calls return an empty transaction to satisfy the same
// surface as the onchain client.
type LedgerReplica struct {
	mu sync.Mutex

	guardians     map[interfaces.AccountAddress][]interfaces.Guardian
	thresholds    map[interfaces.AccountAddress]uint64
	requests      map[uint64]*interfaces.RecoveryRequest
	activeRequest map[interfaces.AccountAddress]uint64
	nextRequestID uint64

	domains []string
	events  []Event
	log     *slog.Logger

	now    func() time.Time
	lastTS time.Time
}

// ReplicaOption configures a LedgerReplica.
type ReplicaOption func(*LedgerReplica)

// WithClock overrides the replica's time source.
func WithClock(now func() time.Time) ReplicaOption {
	return func(r *LedgerReplica) { r.now = now }
}

// WithLogger makes the replica log each recorded event.
func WithLogger(log *slog.Logger) ReplicaOption {
	return func(r *LedgerReplica) { r.log = log }
}

// NewLedgerReplica creates an empty replica.
func NewLedgerReplica(opts ...ReplicaOption) *LedgerReplica {
	r := &LedgerReplica{
		guardians:     make(map[interfaces.AccountAddress][]interfaces.Guardian),
		thresholds:    make(map[interfaces.AccountAddress]uint64),
		requests:      make(map[uint64]*interfaces.RecoveryRequest),
		activeRequest: make(map[interfaces.AccountAddress]uint64),
		nextRequestID: 1,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// timestamp returns the current time, clamped monotonically non-decreasing.
// Ledger timestamps never move backwards even if the wall clock does.
func (r *LedgerReplica) timestamp() time.Time {
	ts := r.now()
	if ts.Before(r.lastTS) {
		ts = r.lastTS
	}
	r.lastTS = ts
	return ts
}

func (r *LedgerReplica) activeGuardian(owner, guardian interfaces.AccountAddress) (uint64, bool) {
	for _, g := range r.guardians[owner] {
		if g.Status == interfaces.GuardianActive && g.Address.Equal(guardian) {
			return g.Weight, true
		}
	}
	return 0, false
}

func (r *LedgerReplica) activeWeight(owner interfaces.AccountAddress) uint64 {
	var sum uint64
	for _, g := range r.guardians[owner] {
		if g.Status == interfaces.GuardianActive {
			sum += g.Weight
		}
	}
	return sum
}

func (r *LedgerReplica) activeCount(owner interfaces.AccountAddress) int {
	count := 0
	for _, g := range r.guardians[owner] {
		if g.Status == interfaces.GuardianActive {
			count++
		}
	}
	return count
}

// AddGuardian appends a guardian for the owner.
func (r *LedgerReplica) AddGuardian(owner, guardian interfaces.AccountAddress, label string, weight uint64) (*types.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if guardian.IsZero() {
		return nil, fmt.Errorf("%w: guardian address must not be zero", interfaces.ErrInvalidInput)
	}
	if guardian.Equal(owner) {
		return nil, fmt.Errorf("%w: owner cannot guard themselves", interfaces.ErrInvalidInput)
	}
	if weight == 0 {
		return nil, fmt.Errorf("%w: guardian weight must be positive", interfaces.ErrInvalidInput)
	}
	if _, active := r.activeGuardian(owner, guardian); active {
		return nil, fmt.Errorf("%w: guardian %s already active", interfaces.ErrAlreadyExists, guardian)
	}
	if r.activeCount(owner) >= interfaces.MaxGuardians {
		return nil, fmt.Errorf("%w: owner already has %d guardians", interfaces.ErrInvalidInput, interfaces.MaxGuardians)
	}

	r.guardians[owner] = append(r.guardians[owner], interfaces.Guardian{
		Address:      guardian,
		Label:        label,
		Weight:       weight,
		Status:       interfaces.GuardianActive,
		RegisteredAt: r.timestamp(),
	})
	r.record(Event{Kind: EventGuardianAdded, Owner: owner, Actor: guardian, Weight: weight})
	return &types.Transaction{}, nil
}

// RemoveGuardian soft-deletes an active guardian.
func (r *LedgerReplica) RemoveGuardian(owner, guardian interfaces.AccountAddress) (*types.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.guardians[owner]
	for i := range list {
		if list[i].Status == interfaces.GuardianActive && list[i].Address.Equal(guardian) {
			list[i].Status = interfaces.GuardianRevoked
			r.record(Event{Kind: EventGuardianRemoved, Owner: owner, Actor: guardian})
			return &types.Transaction{}, nil
		}
	}
	return nil, fmt.Errorf("%w: guardian %s not active for owner %s", interfaces.ErrNotFound, guardian, owner)
}

// SetThreshold sets the owner's recovery threshold weight.
func (r *LedgerReplica) SetThreshold(owner interfaces.AccountAddress, threshold uint64) (*types.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if threshold < interfaces.MinThreshold {
		return nil, fmt.Errorf("%w: threshold %d below minimum %d", interfaces.ErrInvalidInput, threshold, interfaces.MinThreshold)
	}
	if sum := r.activeWeight(owner); threshold > sum {
		return nil, fmt.Errorf("%w: threshold %d exceeds active guardian weight %d", interfaces.ErrInvalidInput, threshold, sum)
	}

	r.thresholds[owner] = threshold
	r.record(Event{Kind: EventThresholdSet, Owner: owner, Weight: threshold})
	return &types.Transaction{}, nil
}

// InitiateRecovery creates the owner's single active recovery request.
func (r *LedgerReplica) InitiateRecovery(caller, owner, newOwner interfaces.AccountAddress) (uint64, *types.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if newOwner.IsZero() {
		return 0, nil, fmt.Errorf("%w: new owner address must not be zero", interfaces.ErrInvalidInput)
	}
	if owner.Equal(newOwner) {
		return 0, nil, fmt.Errorf("%w: new owner must differ from owner", interfaces.ErrInvalidInput)
	}

	threshold, ok := r.thresholds[owner]
	if !ok || threshold < interfaces.MinThreshold {
		return 0, nil, fmt.Errorf("%w: owner %s has no recovery threshold", interfaces.ErrNotConfigured, owner)
	}
	if _, active := r.activeGuardian(owner, caller); !active {
		return 0, nil, fmt.Errorf("%w: %s is not an active guardian of %s", interfaces.ErrNotAuthorized, caller, owner)
	}

	if id, ok := r.activeRequest[owner]; ok {
		if req := r.requests[id]; req != nil && !req.Terminal() {
			return 0, nil, fmt.Errorf("%w: request %d already active for owner %s", interfaces.ErrAlreadyActive, id, owner)
		}
	}

	ts := r.timestamp()
	id := r.nextRequestID
	r.nextRequestID++

	r.requests[id] = &interfaces.RecoveryRequest{
		ID:           id,
		Owner:        owner,
		NewOwner:     newOwner,
		Threshold:    threshold,
		Approvals:    make(map[interfaces.AccountAddress]bool),
		InitiatedAt:  ts,
		ExecuteAfter: ts.Add(interfaces.RecoveryDelay),
	}
	r.activeRequest[owner] = id
	r.record(Event{Kind: EventRecoveryInitiated, Owner: owner, Actor: caller, RequestID: id})

	return id, &types.Transaction{}, nil
}

// ApproveRecovery adds the calling guardian's weight to the request.
func (r *LedgerReplica) ApproveRecovery(caller interfaces.AccountAddress, requestID uint64) (*types.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.requests[requestID]
	if !ok {
		return nil, fmt.Errorf("%w: request %d", interfaces.ErrNotFound, requestID)
	}
	if req.Executed {
		return nil, fmt.Errorf("%w: request %d", interfaces.ErrAlreadyExecuted, requestID)
	}
	if req.Cancelled {
		return nil, fmt.Errorf("%w: request %d", interfaces.ErrAlreadyCancelled, requestID)
	}

	weight, active := r.activeGuardian(req.Owner, caller)
	if !active {
		return nil, fmt.Errorf("%w: %s is not an active guardian of %s", interfaces.ErrNotAuthorized, caller, req.Owner)
	}
	if req.Approvals[caller] {
		return nil, fmt.Errorf("%w: guardian %s already approved request %d", interfaces.ErrAlreadyApproved, caller, requestID)
	}

	req.Approvals[caller] = true
	req.ApprovalWeight += weight
	r.record(Event{Kind: EventRecoveryApproved, Owner: req.Owner, Actor: caller, RequestID: requestID, Weight: weight})
	return &types.Transaction{}, nil
}

// ExecuteRecovery transplants the owner's active guardians and threshold to
// the new owner. The old owner's configuration is not retained.
func (r *LedgerReplica) ExecuteRecovery(caller interfaces.AccountAddress, requestID uint64) (*types.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.requests[requestID]
	if !ok {
		return nil, fmt.Errorf("%w: request %d", interfaces.ErrNotFound, requestID)
	}
	if req.Executed {
		return nil, fmt.Errorf("%w: request %d", interfaces.ErrAlreadyExecuted, requestID)
	}
	if req.Cancelled {
		return nil, fmt.Errorf("%w: request %d", interfaces.ErrAlreadyCancelled, requestID)
	}

	ts := r.timestamp()
	if ts.Before(req.ExecuteAfter) {
		return nil, &interfaces.TimeLockError{Remaining: req.ExecuteAfter.Sub(ts)}
	}
	if req.ApprovalWeight < req.Threshold {
		return nil, &interfaces.ThresholdNotMetError{Collected: req.ApprovalWeight, Required: req.Threshold}
	}

	// Transplant: only currently active guardians carry over.
	transplanted := make([]interfaces.Guardian, 0, len(r.guardians[req.Owner]))
	for _, g := range r.guardians[req.Owner] {
		if g.Status == interfaces.GuardianActive {
			transplanted = append(transplanted, g)
		}
	}
	r.guardians[req.NewOwner] = transplanted
	r.thresholds[req.NewOwner] = req.Threshold

	delete(r.guardians, req.Owner)
	delete(r.thresholds, req.Owner)
	delete(r.activeRequest, req.Owner)

	req.Executed = true
	r.record(Event{Kind: EventRecoveryExecuted, Owner: req.Owner, Actor: caller, RequestID: requestID})
	return &types.Transaction{}, nil
}

// CancelRecovery marks the request cancelled and clears the owner's
// active-request slot.
func (r *LedgerReplica) CancelRecovery(caller interfaces.AccountAddress, requestID uint64) (*types.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.requests[requestID]
	if !ok {
		return nil, fmt.Errorf("%w: request %d", interfaces.ErrNotFound, requestID)
	}
	if req.Executed {
		return nil, fmt.Errorf("%w: request %d", interfaces.ErrAlreadyExecuted, requestID)
	}
	if req.Cancelled {
		return nil, fmt.Errorf("%w: request %d", interfaces.ErrAlreadyCancelled, requestID)
	}

	_, isGuardian := r.activeGuardian(req.Owner, caller)
	if !caller.Equal(req.Owner) && !isGuardian {
		return nil, fmt.Errorf("%w: %s may not cancel request %d", interfaces.ErrNotAuthorized, caller, requestID)
	}

	req.Cancelled = true
	delete(r.activeRequest, req.Owner)
	r.record(Event{Kind: EventRecoveryCancelled, Owner: req.Owner, Actor: caller, RequestID: requestID})
	return &types.Transaction{}, nil
}

// Guardians returns all guardians recorded for the owner, revoked included.
func (r *LedgerReplica) Guardians(owner interfaces.AccountAddress) ([]interfaces.Guardian, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]interfaces.Guardian, len(r.guardians[owner]))
	copy(out, r.guardians[owner])
	return out, nil
}

// Threshold returns the owner's recovery threshold, zero if unset.
func (r *LedgerReplica) Threshold(owner interfaces.AccountAddress) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.thresholds[owner], nil
}

// ActiveRequest returns the owner's active recovery request.
func (r *LedgerReplica) ActiveRequest(owner interfaces.AccountAddress) (*interfaces.RecoveryRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.activeRequest[owner]
	if !ok {
		return nil, fmt.Errorf("%w: no active request for owner %s", interfaces.ErrNotFound, owner)
	}
	return r.copyRequest(r.requests[id]), nil
}

// Request returns a recovery request by id.
func (r *LedgerReplica) Request(id uint64) (*interfaces.RecoveryRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.requests[id]
	if !ok {
		return nil, fmt.Errorf("%w: request %d", interfaces.ErrNotFound, id)
	}
	return r.copyRequest(req), nil
}

func (r *LedgerReplica) copyRequest(req *interfaces.RecoveryRequest) *interfaces.RecoveryRequest {
	out := *req
	out.Approvals = make(map[interfaces.AccountAddress]bool, len(req.Approvals))
	for k, v := range req.Approvals {
		out.Approvals[k] = v
	}
	return &out
}

// RegisterServiceDomain records a recovery-service domain name.
func (r *LedgerReplica) RegisterServiceDomain(domain string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.domains = append(r.domains, domain)
	return nil
}

// ServiceDomainNames returns registered recovery-service domain names.
func (r *LedgerReplica) ServiceDomainNames() ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, len(r.domains))
	copy(out, r.domains)
	return out, nil
}
