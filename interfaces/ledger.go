package interfaces

import (
	"github.com/ethereum/go-ethereum/core/types"
)

// LedgerRegistry is the guardian registry surface exposed by the on-ledger
// contract. Mutating calls return the submitted transaction; the in-process
// replica returns an empty transaction to satisfy the same surface.
//
// Per-owner state machine: NoActiveRecovery -> Pending -> Executed|Cancelled.
// All operations execute under the ledger's native serialization, so a
// faithful replica must provide equivalent atomicity.
type LedgerRegistry interface {
	// AddGuardian appends a guardian for the owner. Fails if the guardian is
	// the owner, the weight is zero, the guardian is already active, or the
	// owner is at MaxGuardians.
	AddGuardian(owner, guardian AccountAddress, label string, weight uint64) (*types.Transaction, error)

	// RemoveGuardian soft-deletes an active guardian.
	RemoveGuardian(owner, guardian AccountAddress) (*types.Transaction, error)

	// SetThreshold sets the owner's recovery threshold weight. Fails below
	// MinThreshold or above the sum of active guardian weights.
	SetThreshold(owner AccountAddress, threshold uint64) (*types.Transaction, error)

	// InitiateRecovery creates the owner's single active recovery request with
	// ExecuteAfter = now + RecoveryDelay. The caller must be one of the
	// owner's active guardians. Returns the new request id.
	InitiateRecovery(caller, owner, newOwner AccountAddress) (uint64, *types.Transaction, error)

	// ApproveRecovery adds the calling guardian's weight to the request.
	// One approval per guardian per request.
	ApproveRecovery(caller AccountAddress, requestID uint64) (*types.Transaction, error)

	// ExecuteRecovery transplants the owner's active guardians and threshold
	// to the new owner once the time lock has elapsed and the approval weight
	// meets the threshold. Irreversible; the old owner's configuration is not
	// retained.
	ExecuteRecovery(caller AccountAddress, requestID uint64) (*types.Transaction, error)

	// CancelRecovery marks the request cancelled. Callable by the request's
	// owner or any of that owner's active guardians.
	CancelRecovery(caller AccountAddress, requestID uint64) (*types.Transaction, error)

	// Guardians returns all guardians recorded for the owner, including
	// revoked ones.
	Guardians(owner AccountAddress) ([]Guardian, error)

	// Threshold returns the owner's recovery threshold, zero if unset.
	Threshold(owner AccountAddress) (uint64, error)

	// ActiveRequest returns the owner's active recovery request, or
	// ErrNotFound if none exists.
	ActiveRequest(owner AccountAddress) (*RecoveryRequest, error)

	// Request returns a recovery request by id.
	Request(id uint64) (*RecoveryRequest, error)
}

// RegistryFactory creates LedgerRegistry instances per registry contract.
type RegistryFactory interface {
	// RegistryFor returns a registry client for the given contract address.
	RegistryFor(contract AccountAddress) (LedgerRegistry, error)
}

// RecoverySubmitter is the narrow ledger-submission interface the recovery
// orchestrator consumes when mirroring sessions on-ledger. The on-ledger
// ownership transfer itself stays with the ledger collaborator; the
// orchestrator never performs it.
type RecoverySubmitter interface {
	// Submit creates an on-ledger recovery request on behalf of the
	// initiating guardian and returns its id.
	Submit(initiator, owner, newOwner AccountAddress) (uint64, error)

	// Approve records the guardian's weighted approval on the request.
	Approve(requestID uint64, guardian AccountAddress) error

	// Execute performs the on-ledger ownership transfer.
	Execute(requestID uint64) error

	// Cancel marks the on-ledger request cancelled.
	Cancel(requestID uint64, caller AccountAddress) error
}

// ServiceDiscovery exposes the recovery-service domain names registered on
// the ledger, for guardians discovering where to submit shares.
type ServiceDiscovery interface {
	// ServiceDomainNames returns registered recovery-service domain names.
	ServiceDomainNames() ([]string, error)
}
