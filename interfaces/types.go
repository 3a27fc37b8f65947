package interfaces

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Protocol-wide bounds. Weights and thresholds are unsigned and compared
// exactly; timestamps are monotonically non-decreasing per ledger semantics.
const (
	// MinThreshold is the smallest permitted recovery threshold weight.
	MinThreshold uint64 = 2

	// MaxGuardians caps the number of active guardians per owner.
	MaxGuardians = 10

	// MaxShares is the largest share count a single split may produce,
	// bounded by the GF(256) share index space.
	MaxShares = 255

	// RecoveryDelay is the mandatory time lock between recovery initiation
	// and permitted execution.
	RecoveryDelay = 7 * 24 * time.Hour
)

// AccountAddress identifies an owner or guardian account on the ledger.
type AccountAddress [20]byte

// NewAccountAddressFromBytes creates an account address from a 20-byte slice.
func NewAccountAddressFromBytes(addr []byte) (AccountAddress, error) {
	if len(addr) != 20 {
		return AccountAddress{}, errors.New("invalid address length: must be 20 bytes")
	}

	var res AccountAddress
	copy(res[:], addr)
	return res, nil
}

// NewAccountAddressFromHex creates an account address from a 40-character hex
// string, with or without a 0x prefix.
func NewAccountAddressFromHex(addr string) (AccountAddress, error) {
	clean := strings.TrimPrefix(addr, "0x")
	if len(clean) != 40 {
		return AccountAddress{}, errors.New("invalid address length: hex string must be 40 characters")
	}

	addrBytes, err := hex.DecodeString(clean)
	if err != nil {
		return AccountAddress{}, fmt.Errorf("invalid hex format: %w", err)
	}

	return NewAccountAddressFromBytes(addrBytes)
}

// String returns the hex string representation of the address.
func (addr AccountAddress) String() string {
	return hex.EncodeToString(addr[:])
}

// Bytes returns the raw 20-byte address.
func (addr AccountAddress) Bytes() []byte {
	return addr[:]
}

// Equal compares two account addresses for equality.
func (addr AccountAddress) Equal(other AccountAddress) bool {
	return addr == other
}

// MarshalText encodes the address as hex for JSON and text formats.
func (addr AccountAddress) MarshalText() ([]byte, error) {
	return []byte(addr.String()), nil
}

// UnmarshalText decodes a hex address, with or without a 0x prefix.
func (addr *AccountAddress) UnmarshalText(text []byte) error {
	parsed, err := NewAccountAddressFromHex(string(text))
	if err != nil {
		return err
	}
	*addr = parsed
	return nil
}

// IsZero reports whether the address is the zero value.
func (addr AccountAddress) IsZero() bool {
	return addr == AccountAddress{}
}

// GuardianStatus is the lifecycle state of a guardian registration.
type GuardianStatus string

const (
	// GuardianActive counts toward thresholds and may approve recoveries.
	GuardianActive GuardianStatus = "active"
	// GuardianPending has been invited but not yet confirmed off-ledger.
	GuardianPending GuardianStatus = "pending"
	// GuardianRevoked has been soft-deleted and retains no authority.
	GuardianRevoked GuardianStatus = "revoked"
)

// Guardian is a trusted party holding one encrypted share bundle and a
// weighted vote toward recovery approval. A guardian belongs to exactly one
// owner; no two active guardians of the same owner share an address.
type Guardian struct {
	Address        AccountAddress `json:"address"`
	Label          string         `json:"label,omitempty"`
	Weight         uint64         `json:"weight"`
	Status         GuardianStatus `json:"status"`
	EncryptedShare []byte         `json:"encrypted_share,omitempty"`
	RegisteredAt   time.Time      `json:"registered_at"`
}

// RecoveryConfig is the per-owner recovery policy: the guardian set, the
// weight threshold required to authorize a recovery, and the total number of
// shares the secret was split into.
type RecoveryConfig struct {
	Owner       AccountAddress `json:"owner"`
	Threshold   uint64         `json:"threshold"`
	TotalShares int            `json:"total_shares"`
	Guardians   []Guardian     `json:"guardians"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// ActiveGuardians returns only the guardians in active status.
func (c *RecoveryConfig) ActiveGuardians() []Guardian {
	active := make([]Guardian, 0, len(c.Guardians))
	for _, g := range c.Guardians {
		if g.Status == GuardianActive {
			active = append(active, g)
		}
	}
	return active
}

// ActiveWeight returns the aggregate weight of all active guardians.
func (c *RecoveryConfig) ActiveWeight() uint64 {
	var sum uint64
	for _, g := range c.Guardians {
		if g.Status == GuardianActive {
			sum += g.Weight
		}
	}
	return sum
}

// GuardianWeight returns the weight of the active guardian with the given
// address, or (0, false) if no such guardian exists.
func (c *RecoveryConfig) GuardianWeight(addr AccountAddress) (uint64, bool) {
	for _, g := range c.Guardians {
		if g.Status == GuardianActive && g.Address.Equal(addr) {
			return g.Weight, true
		}
	}
	return 0, false
}

// Satisfied is the canonical threshold predicate: it reports whether the
// collected approval weight authorizes recovery under this configuration.
// Both the ledger registry and the off-ledger orchestrator defer to it, so
// the two layers cannot drift on the counting rule.
func (c *RecoveryConfig) Satisfied(weight uint64) bool {
	return c.Threshold >= MinThreshold && weight >= c.Threshold
}

// RecoveryRequest is the on-ledger record tracking one recovery attempt.
// Exactly one non-terminal request may exist per owner at a time. Approval
// weight only ever increases; Executed and Cancelled are terminal and
// irreversible.
type RecoveryRequest struct {
	ID             uint64                  `json:"id"`
	Owner          AccountAddress          `json:"owner"`
	NewOwner       AccountAddress          `json:"new_owner"`
	Threshold      uint64                  `json:"threshold"`
	ApprovalWeight uint64                  `json:"approval_weight"`
	Approvals      map[AccountAddress]bool `json:"-"`
	InitiatedAt    time.Time               `json:"initiated_at"`
	ExecuteAfter   time.Time               `json:"execute_after"`
	Executed       bool                    `json:"executed"`
	Cancelled      bool                    `json:"cancelled"`
}

// Terminal reports whether the request has reached a terminal state.
func (r *RecoveryRequest) Terminal() bool {
	return r.Executed || r.Cancelled
}

// SessionStatus is the off-ledger recovery session lifecycle state.
type SessionStatus string

const (
	// SessionPending has been initiated but holds no shares yet.
	SessionPending SessionStatus = "pending"
	// SessionCollecting holds at least one share below the threshold.
	SessionCollecting SessionStatus = "collecting"
	// SessionReady has met the threshold but not the time lock.
	SessionReady SessionStatus = "ready"
	// SessionExecutable has met both threshold and time lock.
	SessionExecutable SessionStatus = "executable"
	// SessionExecuted is terminal: the secret was reconstructed.
	SessionExecuted SessionStatus = "executed"
	// SessionCancelled is terminal: the attempt was abandoned.
	SessionCancelled SessionStatus = "cancelled"
)

// Terminal reports whether the status is a terminal state.
func (s SessionStatus) Terminal() bool {
	return s == SessionExecuted || s == SessionCancelled
}

// RecoverySession is the orchestrator's record of one in-progress recovery
// attempt. Submitted maps the hex address of each guardian that has provided
// a share to the weight it carried at submission time. Version supports
// optimistic concurrency at the store level.
type RecoverySession struct {
	ID              string            `json:"id"`
	Owner           AccountAddress    `json:"owner"`
	NewOwner        AccountAddress    `json:"new_owner"`
	Status          SessionStatus     `json:"status"`
	Threshold       uint64            `json:"threshold"`
	Submitted       map[string]uint64 `json:"submitted"`
	InitiatedAt     time.Time         `json:"initiated_at"`
	ExecuteAfter    time.Time         `json:"execute_after"`
	ExecutedAt      *time.Time        `json:"executed_at,omitempty"`
	CancelledAt     *time.Time        `json:"cancelled_at,omitempty"`
	LedgerRequestID *uint64           `json:"ledger_request_id,omitempty"`
	Version         uint64            `json:"version"`
}

// Active reports whether the session still counts as the owner's single
// active recovery attempt.
func (s *RecoverySession) Active() bool {
	return !s.Status.Terminal()
}

// CollectedWeight returns the aggregate weight of guardians that have
// submitted a share.
func (s *RecoverySession) CollectedWeight() uint64 {
	var sum uint64
	for _, w := range s.Submitted {
		sum += w
	}
	return sum
}

// HasSubmitted reports whether the guardian has already submitted a share.
// Duplicate detection is by guardian identity, not share content.
func (s *RecoverySession) HasSubmitted(guardian AccountAddress) bool {
	_, ok := s.Submitted[guardian.String()]
	return ok
}
