package api

import (
	"time"

	"github.com/custodia/guardian-recovery-backend/interfaces"
)

// InitiateRecoveryRequest opens a recovery session for an owner. The
// initiator must be the owner or one of the owner's active guardians.
type InitiateRecoveryRequest struct {
	Owner     interfaces.AccountAddress `json:"owner"`
	NewOwner  interfaces.AccountAddress `json:"new_owner"`
	Initiator interfaces.AccountAddress `json:"initiator"`
}

// SubmitShareRequest carries a guardian's encrypted share bundle for a
// session. EncryptedShare is base64 in JSON.
type SubmitShareRequest struct {
	Guardian       interfaces.AccountAddress `json:"guardian"`
	EncryptedShare []byte                    `json:"encrypted_share"`
}

// CancelRequest aborts a session. The caller must be the session owner or
// one of the owner's active guardians.
type CancelRequest struct {
	Caller interfaces.AccountAddress `json:"caller"`
}

// SessionResponse is the wire form of a recovery session.
type SessionResponse struct {
	SessionID       string                    `json:"session_id"`
	Owner           interfaces.AccountAddress `json:"owner"`
	NewOwner        interfaces.AccountAddress `json:"new_owner"`
	Status          interfaces.SessionStatus  `json:"status"`
	Threshold       uint64                    `json:"threshold"`
	CollectedWeight uint64                    `json:"collected_weight"`
	LedgerRequestID *uint64                   `json:"ledger_request_id,omitempty"`
	InitiatedAt     time.Time                 `json:"initiated_at"`
	ExecuteAfter    time.Time                 `json:"execute_after"`
	ExecutedAt      *time.Time                `json:"executed_at,omitempty"`
	CancelledAt     *time.Time                `json:"cancelled_at,omitempty"`
}

// NewSessionResponse converts a session record to its wire form.
func NewSessionResponse(session *interfaces.RecoverySession) *SessionResponse {
	return &SessionResponse{
		SessionID:       session.ID,
		Owner:           session.Owner,
		NewOwner:        session.NewOwner,
		Status:          session.Status,
		Threshold:       session.Threshold,
		CollectedWeight: session.CollectedWeight(),
		LedgerRequestID: session.LedgerRequestID,
		InitiatedAt:     session.InitiatedAt,
		ExecuteAfter:    session.ExecuteAfter,
		ExecutedAt:      session.ExecutedAt,
		CancelledAt:     session.CancelledAt,
	}
}

// ReadinessResponse reports whether a session can be executed and what is
// still missing if it cannot.
type ReadinessResponse struct {
	SessionID        string `json:"session_id"`
	Ready            bool   `json:"ready"`
	CollectedWeight  uint64 `json:"collected_weight"`
	Threshold        uint64 `json:"threshold"`
	RemainingSeconds int64  `json:"remaining_seconds"`
}

// TimeRemainingResponse reports how long the session's time lock still has
// to run.
type TimeRemainingResponse struct {
	SessionID        string    `json:"session_id"`
	RemainingSeconds int64     `json:"remaining_seconds"`
	ExecuteAfter     time.Time `json:"execute_after"`
}

// ExecuteResponse returns the reconstructed secret alongside the executed
// session. Secret is base64 in JSON.
type ExecuteResponse struct {
	Session *SessionResponse `json:"session"`
	Secret  []byte           `json:"secret"`
}

// ErrorResponse is the structured error body. RemainingWeight and
// RemainingSeconds carry the actionable detail of threshold and time-lock
// refusals.
type ErrorResponse struct {
	Error            string `json:"error"`
	RemainingWeight  uint64 `json:"remaining_weight,omitempty"`
	RemainingSeconds int64  `json:"remaining_seconds,omitempty"`
}

// RecoveryProvider is the client-side surface of the recovery API.
type RecoveryProvider interface {
	// Initiate opens a recovery session for the owner.
	Initiate(req *InitiateRecoveryRequest) (*SessionResponse, error)

	// SubmitShare records a guardian's encrypted share for the session.
	SubmitShare(sessionID string, req *SubmitShareRequest) (*SessionResponse, error)

	// Readiness reports whether the session is executable.
	Readiness(sessionID string) (*ReadinessResponse, error)

	// TimeRemaining reports the session's outstanding time lock.
	TimeRemaining(sessionID string) (*TimeRemainingResponse, error)

	// Execute reconstructs the secret from the collected shares.
	Execute(sessionID string) (*ExecuteResponse, error)

	// Cancel aborts the session.
	Cancel(sessionID string, req *CancelRequest) (*SessionResponse, error)

	// Session fetches a session by id.
	Session(sessionID string) (*SessionResponse, error)

	// ActiveSession fetches the owner's active session, if any.
	ActiveSession(owner interfaces.AccountAddress) (*SessionResponse, error)
}
