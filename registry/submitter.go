package registry

import (
	"github.com/custodia/guardian-recovery-backend/interfaces"
)

// Submitter adapts a LedgerRegistry to the narrow
// interfaces.RecoverySubmitter surface the orchestrator consumes.
type Submitter struct {
	registry interfaces.LedgerRegistry

	// operator is the account used for calls whose ledger caller is not a
	// guardian, such as executing a matured request.
	operator interfaces.AccountAddress
}

// NewSubmitter creates a submitter over the given registry. The operator
// account is used as the ledger caller for Execute.
func NewSubmitter(registry interfaces.LedgerRegistry, operator interfaces.AccountAddress) *Submitter {
	return &Submitter{registry: registry, operator: operator}
}

// Submit creates an on-ledger recovery request on behalf of the initiating
// guardian and returns its id.
func (s *Submitter) Submit(initiator, owner, newOwner interfaces.AccountAddress) (uint64, error) {
	id, _, err := s.registry.InitiateRecovery(initiator, owner, newOwner)
	return id, err
}

// Approve records the guardian's weighted approval on the request.
func (s *Submitter) Approve(requestID uint64, guardian interfaces.AccountAddress) error {
	_, err := s.registry.ApproveRecovery(guardian, requestID)
	return err
}

// Execute performs the on-ledger ownership transfer.
func (s *Submitter) Execute(requestID uint64) error {
	_, err := s.registry.ExecuteRecovery(s.operator, requestID)
	return err
}

// Cancel marks the on-ledger request cancelled.
func (s *Submitter) Cancel(requestID uint64, caller interfaces.AccountAddress) error {
	_, err := s.registry.CancelRecovery(caller, requestID)
	return err
}
