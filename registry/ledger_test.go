package registry

import (
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/custodia/guardian-recovery-backend/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addr(b byte) interfaces.AccountAddress {
	var a interfaces.AccountAddress
	a[19] = b
	return a
}

// fakeClock is a manually advanced time source.
type fakeClock struct {
	current time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{current: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.current }
func (c *fakeClock) Advance(d time.Duration) { c.current = c.current.Add(d) }
func (c *fakeClock) Rewind(d time.Duration)  { c.current = c.current.Add(-d) }

func TestAddGuardianValidation(t *testing.T) {
	r := NewLedgerReplica()
	owner := addr(1)

	_, err := r.AddGuardian(owner, owner, "self", 1)
	assert.ErrorIs(t, err, interfaces.ErrInvalidInput, "Owner cannot guard themselves")

	_, err = r.AddGuardian(owner, interfaces.AccountAddress{}, "zero", 1)
	assert.ErrorIs(t, err, interfaces.ErrInvalidInput, "Zero address is not a guardian")

	_, err = r.AddGuardian(owner, addr(2), "weightless", 0)
	assert.ErrorIs(t, err, interfaces.ErrInvalidInput, "Zero weight is rejected")

	_, err = r.AddGuardian(owner, addr(2), "alice", 1)
	require.NoError(t, err, "Adding a valid guardian should succeed")

	_, err = r.AddGuardian(owner, addr(2), "alice again", 1)
	assert.ErrorIs(t, err, interfaces.ErrAlreadyExists, "Duplicate active guardian is rejected")

	for i := 3; i < 2+interfaces.MaxGuardians; i++ {
		_, err = r.AddGuardian(owner, addr(byte(i)), fmt.Sprintf("g%d", i), 1)
		require.NoError(t, err, "Adding guardian %d should succeed", i)
	}

	_, err = r.AddGuardian(owner, addr(200), "overflow", 1)
	assert.ErrorIs(t, err, interfaces.ErrInvalidInput, "Guardian cap is enforced")
}

func TestRemoveGuardian(t *testing.T) {
	r := NewLedgerReplica()
	owner := addr(1)

	_, err := r.RemoveGuardian(owner, addr(2))
	assert.ErrorIs(t, err, interfaces.ErrNotFound, "Removing an unknown guardian fails")

	_, err = r.AddGuardian(owner, addr(2), "alice", 2)
	require.NoError(t, err, "Adding a guardian should succeed")

	_, err = r.RemoveGuardian(owner, addr(2))
	require.NoError(t, err, "Removing an active guardian should succeed")

	_, err = r.RemoveGuardian(owner, addr(2))
	assert.ErrorIs(t, err, interfaces.ErrNotFound, "A revoked guardian is no longer removable")

	// Soft delete keeps the record.
	guardians, err := r.Guardians(owner)
	require.NoError(t, err, "Guardians should succeed")
	require.Len(t, guardians, 1, "Revoked guardian remains recorded")
	assert.Equal(t, interfaces.GuardianRevoked, guardians[0].Status, "Status should be revoked")

	// Re-adding after revocation is allowed.
	_, err = r.AddGuardian(owner, addr(2), "alice", 3)
	assert.NoError(t, err, "A revoked guardian can be added again")
}

func TestSetThresholdBounds(t *testing.T) {
	r := NewLedgerReplica()
	owner := addr(1)

	_, err := r.AddGuardian(owner, addr(2), "alice", 2)
	require.NoError(t, err, "Adding a guardian should succeed")
	_, err = r.AddGuardian(owner, addr(3), "bob", 1)
	require.NoError(t, err, "Adding a guardian should succeed")

	_, err = r.SetThreshold(owner, 1)
	assert.ErrorIs(t, err, interfaces.ErrInvalidInput, "Threshold below the minimum is rejected")

	_, err = r.SetThreshold(owner, 4)
	assert.ErrorIs(t, err, interfaces.ErrInvalidInput, "Threshold above the active weight sum is rejected")

	_, err = r.SetThreshold(owner, 3)
	require.NoError(t, err, "Threshold equal to the weight sum is allowed")

	threshold, err := r.Threshold(owner)
	require.NoError(t, err, "Threshold should succeed")
	assert.Equal(t, uint64(3), threshold, "Threshold should be recorded")
}

// setupOwner registers guardians with the given weights and sets the
// threshold. Guardian addresses are addr(10), addr(11), ...
func setupOwner(t *testing.T, r *LedgerReplica, owner interfaces.AccountAddress, weights []uint64, threshold uint64) []interfaces.AccountAddress {
	t.Helper()
	guardians := make([]interfaces.AccountAddress, len(weights))
	for i, w := range weights {
		guardians[i] = addr(byte(10 + i))
		_, err := r.AddGuardian(owner, guardians[i], fmt.Sprintf("g%d", i), w)
		require.NoError(t, err, "Adding guardian %d should succeed", i)
	}
	_, err := r.SetThreshold(owner, threshold)
	require.NoError(t, err, "Setting the threshold should succeed")
	return guardians
}

func TestInitiateRecoveryGuards(t *testing.T) {
	r := NewLedgerReplica()
	owner, newOwner := addr(1), addr(2)

	_, _, err := r.InitiateRecovery(addr(10), owner, newOwner)
	assert.ErrorIs(t, err, interfaces.ErrNotConfigured, "Initiation requires a configured threshold")

	guardians := setupOwner(t, r, owner, []uint64{1, 1, 1}, 2)

	_, _, err = r.InitiateRecovery(guardians[0], owner, owner)
	assert.ErrorIs(t, err, interfaces.ErrInvalidInput, "New owner must differ from owner")

	_, _, err = r.InitiateRecovery(addr(99), owner, newOwner)
	assert.ErrorIs(t, err, interfaces.ErrNotAuthorized, "Only an active guardian may initiate")

	id, _, err := r.InitiateRecovery(guardians[0], owner, newOwner)
	require.NoError(t, err, "Initiation should succeed")
	assert.Equal(t, uint64(1), id, "Request ids are assigned monotonically from 1")

	_, _, err = r.InitiateRecovery(guardians[1], owner, newOwner)
	assert.ErrorIs(t, err, interfaces.ErrAlreadyActive, "A second active request per owner is rejected")

	req, err := r.ActiveRequest(owner)
	require.NoError(t, err, "ActiveRequest should succeed")
	assert.Equal(t, id, req.ID, "ActiveRequest returns the open request")
	assert.Equal(t, req.InitiatedAt.Add(interfaces.RecoveryDelay), req.ExecuteAfter, "Execution is delayed by the fixed recovery delay")
}

func TestWeightedApproval(t *testing.T) {
	r := NewLedgerReplica()
	owner, newOwner := addr(1), addr(2)

	// One heavyweight guardian alone satisfies a threshold of 3.
	guardians := setupOwner(t, r, owner, []uint64{3, 1, 1}, 3)

	id, _, err := r.InitiateRecovery(guardians[1], owner, newOwner)
	require.NoError(t, err, "Initiation should succeed")

	_, err = r.ApproveRecovery(addr(99), id)
	assert.ErrorIs(t, err, interfaces.ErrNotAuthorized, "Only active guardians may approve")

	_, err = r.ApproveRecovery(guardians[0], id)
	require.NoError(t, err, "Approval should succeed")

	_, err = r.ApproveRecovery(guardians[0], id)
	assert.ErrorIs(t, err, interfaces.ErrAlreadyApproved, "One approval per guardian per request")

	req, err := r.Request(id)
	require.NoError(t, err, "Request should succeed")
	assert.Equal(t, uint64(3), req.ApprovalWeight, "Approval weight accumulates the guardian's full weight")
}

func TestExecuteThresholdNotMet(t *testing.T) {
	clock := newFakeClock()
	r := NewLedgerReplica(WithClock(clock.Now))
	owner := addr(1)

	guardians := setupOwner(t, r, owner, []uint64{1, 1, 1}, 2)

	id, _, err := r.InitiateRecovery(guardians[0], owner, addr(2))
	require.NoError(t, err, "Initiation should succeed")

	_, err = r.ApproveRecovery(guardians[0], id)
	require.NoError(t, err, "First approval should succeed")

	// Time lock expired but threshold unmet.
	clock.Advance(interfaces.RecoveryDelay + time.Second)
	_, err = r.ExecuteRecovery(owner, id)
	var thresholdErr *interfaces.ThresholdNotMetError
	require.ErrorAs(t, err, &thresholdErr, "Execution below threshold fails with the structured error")
	assert.Equal(t, uint64(1), thresholdErr.Remaining(), "Error reports the remaining weight")
}

func TestExecuteRecoveryEndToEnd(t *testing.T) {
	clock := newFakeClock()
	r := NewLedgerReplica(WithClock(clock.Now))
	owner, newOwner := addr(1), addr(2)

	guardians := setupOwner(t, r, owner, []uint64{1, 1, 1}, 2)

	id, _, err := r.InitiateRecovery(guardians[0], owner, newOwner)
	require.NoError(t, err, "Initiation should succeed")

	_, err = r.ApproveRecovery(guardians[0], id)
	require.NoError(t, err, "First approval should succeed")
	_, err = r.ApproveRecovery(guardians[1], id)
	require.NoError(t, err, "Second approval should succeed")

	// Threshold met but time lock active.
	clock.Advance(interfaces.RecoveryDelay - time.Second)
	_, err = r.ExecuteRecovery(owner, id)
	var timeLockErr *interfaces.TimeLockError
	require.ErrorAs(t, err, &timeLockErr, "Execution before the delay fails with the structured error")

	clock.Advance(2 * time.Second)
	_, err = r.ExecuteRecovery(owner, id)
	require.NoError(t, err, "Execution should succeed once both conditions hold")

	// Guardian set and threshold transplanted to the new owner.
	newGuardians, err := r.Guardians(newOwner)
	require.NoError(t, err, "Guardians should succeed")
	require.Len(t, newGuardians, 3, "New owner inherits the active guardian set")
	newThreshold, err := r.Threshold(newOwner)
	require.NoError(t, err, "Threshold should succeed")
	assert.Equal(t, uint64(2), newThreshold, "New owner inherits the threshold")

	// Old owner's configuration is gone.
	oldGuardians, err := r.Guardians(owner)
	require.NoError(t, err, "Guardians should succeed")
	assert.Empty(t, oldGuardians, "Old owner's guardian set is not retained")
	oldThreshold, err := r.Threshold(owner)
	require.NoError(t, err, "Threshold should succeed")
	assert.Zero(t, oldThreshold, "Old owner's threshold is not retained")

	_, err = r.ActiveRequest(owner)
	assert.ErrorIs(t, err, interfaces.ErrNotFound, "Active-request slot is cleared")

	_, err = r.ExecuteRecovery(owner, id)
	assert.ErrorIs(t, err, interfaces.ErrAlreadyExecuted, "Execution is terminal")
}

func TestTimeLockClampsBackwardClock(t *testing.T) {
	clock := newFakeClock()
	r := NewLedgerReplica(WithClock(clock.Now))
	owner := addr(1)

	guardians := setupOwner(t, r, owner, []uint64{1, 1}, 2)

	_, _, err := r.InitiateRecovery(guardians[0], owner, addr(2))
	require.NoError(t, err, "Initiation should succeed")

	// Ledger timestamps never regress: a later operation observed at an
	// earlier wall time still uses the high-water mark.
	clock.Rewind(time.Hour)
	_, err = r.AddGuardian(owner, addr(50), "late", 1)
	require.NoError(t, err, "Adding a guardian should succeed")

	guardiansAll, err := r.Guardians(owner)
	require.NoError(t, err, "Guardians should succeed")
	last := guardiansAll[len(guardiansAll)-1]
	assert.False(t, last.RegisteredAt.Before(guardiansAll[0].RegisteredAt), "Timestamps are monotonically non-decreasing")
}

func TestCancelRecovery(t *testing.T) {
	r := NewLedgerReplica()
	owner, newOwner := addr(1), addr(2)

	guardians := setupOwner(t, r, owner, []uint64{1, 1, 1}, 2)

	id, _, err := r.InitiateRecovery(guardians[0], owner, newOwner)
	require.NoError(t, err, "Initiation should succeed")

	_, err = r.CancelRecovery(addr(99), id)
	assert.ErrorIs(t, err, interfaces.ErrNotAuthorized, "Only the owner or a guardian may cancel")

	_, err = r.CancelRecovery(owner, id)
	require.NoError(t, err, "The owner may cancel")

	_, err = r.ApproveRecovery(guardians[1], id)
	assert.ErrorIs(t, err, interfaces.ErrAlreadyCancelled, "Approving a cancelled request fails")

	_, err = r.ExecuteRecovery(owner, id)
	assert.ErrorIs(t, err, interfaces.ErrAlreadyCancelled, "Executing a cancelled request fails")

	_, err = r.CancelRecovery(owner, id)
	assert.ErrorIs(t, err, interfaces.ErrAlreadyCancelled, "Cancellation is terminal")

	// The slot is free for a fresh attempt, cancelled by a guardian this time.
	id2, _, err := r.InitiateRecovery(guardians[0], owner, newOwner)
	require.NoError(t, err, "A new request can be opened after cancellation")
	assert.Equal(t, id+1, id2, "Request ids keep increasing")

	_, err = r.CancelRecovery(guardians[2], id2)
	assert.NoError(t, err, "Any active guardian of the owner may cancel")
}

func TestSubmitterDelegation(t *testing.T) {
	r := NewLedgerReplica()
	owner, newOwner := addr(1), addr(2)
	guardians := setupOwner(t, r, owner, []uint64{1, 1}, 2)

	s := NewSubmitter(r, addr(100))

	id, err := s.Submit(guardians[0], owner, newOwner)
	require.NoError(t, err, "Submit should create a ledger request")

	require.NoError(t, s.Approve(id, guardians[0]), "Approve should succeed")
	require.NoError(t, s.Approve(id, guardians[1]), "Approve should succeed")

	err = s.Execute(id)
	var timeLockErr *interfaces.TimeLockError
	assert.ErrorAs(t, err, &timeLockErr, "Execute surfaces the ledger's time-lock error")

	require.NoError(t, s.Cancel(id, owner), "Cancel should succeed")
}

func TestServiceDomains(t *testing.T) {
	r := NewLedgerReplica()

	require.NoError(t, r.RegisterServiceDomain("recovery.example.com"), "Registering a domain should succeed")
	require.NoError(t, r.RegisterServiceDomain("recovery-eu.example.com"), "Registering a domain should succeed")

	domains, err := r.ServiceDomainNames()
	require.NoError(t, err, "ServiceDomainNames should succeed")
	assert.Equal(t, []string{"recovery.example.com", "recovery-eu.example.com"}, domains, "Domains are returned in registration order")
}

func TestEventLog(t *testing.T) {
	clock := newFakeClock()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := NewLedgerReplica(WithClock(clock.Now), WithLogger(logger))
	owner, newOwner := addr(1), addr(2)

	guardians := setupOwner(t, r, owner, []uint64{1, 1}, 2)

	id, _, err := r.InitiateRecovery(guardians[0], owner, newOwner)
	require.NoError(t, err, "Initiation should succeed")
	for _, g := range guardians {
		_, err = r.ApproveRecovery(g, id)
		require.NoError(t, err, "Approval should succeed")
	}
	clock.Advance(interfaces.RecoveryDelay + time.Second)
	_, err = r.ExecuteRecovery(guardians[0], id)
	require.NoError(t, err, "Execution should succeed")

	events := r.Events()
	kinds := make([]EventKind, len(events))
	for i, ev := range events {
		kinds[i] = ev.Kind
	}
	assert.Equal(t, []EventKind{
		EventGuardianAdded,
		EventGuardianAdded,
		EventThresholdSet,
		EventRecoveryInitiated,
		EventRecoveryApproved,
		EventRecoveryApproved,
		EventRecoveryExecuted,
	}, kinds, "Every successful mutation emits one event in order")

	// Failed calls emit nothing.
	before := len(r.Events())
	_, err = r.ApproveRecovery(guardians[0], id)
	require.Error(t, err, "Approving an executed request fails")
	assert.Len(t, r.Events(), before, "Failed calls do not emit events")

	ownerEvents := r.EventsFor(owner)
	assert.Len(t, ownerEvents, len(events), "All events touch the original owner")
	assert.Empty(t, r.EventsFor(addr(77)), "Unrelated owners have no events")
	assert.False(t, ownerEvents[0].Timestamp.IsZero(), "Events carry timestamps")
}
