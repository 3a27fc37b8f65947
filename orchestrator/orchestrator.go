package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia/guardian-recovery-backend/guardian"
	"github.com/custodia/guardian-recovery-backend/interfaces"
	"github.com/custodia/guardian-recovery-backend/shamir"
	"github.com/google/uuid"
)

// Orchestrator drives recovery sessions over a shared key-value store.
type Orchestrator struct {
	manager   *guardian.Manager
	store     interfaces.KeyValueStore
	submitter interfaces.RecoverySubmitter
	log       *slog.Logger
	now       func() time.Time
	delay     time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock overrides the orchestrator's time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithSubmitter mirrors sessions to the on-ledger registry through the given
// submitter.
func WithSubmitter(submitter interfaces.RecoverySubmitter) Option {
	return func(o *Orchestrator) { o.submitter = submitter }
}

// WithDelay overrides the mandatory time lock. Intended for tests.
func WithDelay(delay time.Duration) Option {
	return func(o *Orchestrator) { o.delay = delay }
}

// New creates an orchestrator over the given guardian manager and store.
func New(manager *guardian.Manager, store interfaces.KeyValueStore, log *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		manager: manager,
		store:   store,
		log:     log,
		now:     time.Now,
		delay:   interfaces.RecoveryDelay,
		locks:   make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// sessionLock returns the mutex serializing mutations of one session id.
func (o *Orchestrator) sessionLock(sessionID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()

	lock, ok := o.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		o.locks[sessionID] = lock
	}
	return lock
}

// InitiateRecovery creates the owner's single active recovery session. The
// initiator must be the owner or one of the owner's active guardians. When a
// ledger submitter is configured, the on-ledger request is created first and
// its id recorded on the session.
func (o *Orchestrator) InitiateRecovery(ctx context.Context, owner, newOwner, initiator interfaces.AccountAddress) (*interfaces.RecoverySession, error) {
	if owner.IsZero() || newOwner.IsZero() {
		return nil, fmt.Errorf("%w: owner and new owner addresses are required", interfaces.ErrInvalidInput)
	}
	if owner.Equal(newOwner) {
		return nil, fmt.Errorf("%w: new owner must differ from owner", interfaces.ErrInvalidInput)
	}

	configured, err := o.manager.IsRecoveryConfigured(ctx, owner)
	if err != nil {
		return nil, err
	}
	if !configured {
		return nil, fmt.Errorf("%w: owner %s", interfaces.ErrNotConfigured, owner)
	}

	config, err := o.manager.RecoveryConfig(ctx, owner)
	if err != nil {
		return nil, err
	}

	if _, isGuardian := config.GuardianWeight(initiator); !isGuardian && !initiator.Equal(owner) {
		return nil, fmt.Errorf("%w: %s may not initiate recovery for %s", interfaces.ErrNotAuthorized, initiator, owner)
	}

	if active, err := o.ActiveSession(ctx, owner); err == nil && active != nil {
		return nil, fmt.Errorf("%w: session %s already active for owner %s", interfaces.ErrAlreadyActive, active.ID, owner)
	}

	session := &interfaces.RecoverySession{
		ID:           uuid.New().String(),
		Owner:        owner,
		NewOwner:     newOwner,
		Status:       interfaces.SessionPending,
		Threshold:    config.Threshold,
		Submitted:    make(map[string]uint64),
		InitiatedAt:  o.now(),
		ExecuteAfter: o.now().Add(o.delay),
	}

	// The ledger call comes first so a rejection leaves no local state.
	if o.submitter != nil {
		requestID, err := o.submitter.Submit(initiator, owner, newOwner)
		if err != nil {
			return nil, fmt.Errorf("ledger submission failed: %w", err)
		}
		session.LedgerRequestID = &requestID
	}

	if err := o.putSession(ctx, session); err != nil {
		return nil, err
	}
	if err := o.store.Put(ctx, interfaces.SessionKind, interfaces.ActiveSessionKey(owner), []byte(session.ID)); err != nil {
		return nil, fmt.Errorf("failed to record active session: %w", err)
	}

	o.log.Info("Recovery session initiated",
		slog.String("session_id", session.ID),
		slog.String("owner", owner.String()),
		slog.String("new_owner", newOwner.String()),
		slog.Uint64("threshold", session.Threshold))

	return session, nil
}

// SubmitShare records a guardian's approval and encrypted share bundle.
// Duplicate submissions are detected by guardian identity, not share
// content. The session moves to ready once the collected weight satisfies
// the threshold, else to collecting.
func (o *Orchestrator) SubmitShare(ctx context.Context, sessionID string, guardianAddr interfaces.AccountAddress, encryptedShare []byte) (*interfaces.RecoverySession, error) {
	if len(encryptedShare) == 0 {
		return nil, fmt.Errorf("%w: encrypted share must not be empty", interfaces.ErrInvalidInput)
	}

	lock := o.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := o.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := checkNotTerminal(session); err != nil {
		return nil, err
	}

	isGuardian, weight, err := o.manager.IsGuardian(ctx, session.Owner, guardianAddr)
	if err != nil {
		return nil, err
	}
	if !isGuardian {
		return nil, fmt.Errorf("%w: %s is not a guardian of %s", interfaces.ErrNotAuthorized, guardianAddr, session.Owner)
	}
	if session.HasSubmitted(guardianAddr) {
		return nil, fmt.Errorf("%w: guardian %s already submitted to session %s", interfaces.ErrAlreadySubmitted, guardianAddr, sessionID)
	}

	// Persist the blob before touching session state; an orphaned blob from
	// a failure below is overwritten on retry.
	if err := o.manager.StoreShare(ctx, sessionID, guardianAddr, encryptedShare); err != nil {
		return nil, err
	}

	if o.submitter != nil && session.LedgerRequestID != nil {
		err := o.submitter.Approve(*session.LedgerRequestID, guardianAddr)
		// A retry after a half-completed submission finds the ledger approval
		// already in place; the local record is still the one to finish.
		if err != nil && !errors.Is(err, interfaces.ErrAlreadyApproved) {
			return nil, fmt.Errorf("ledger approval failed: %w", err)
		}
	}

	config, err := o.manager.RecoveryConfig(ctx, session.Owner)
	if err != nil {
		return nil, err
	}

	session.Submitted[guardianAddr.String()] = weight
	if config.Satisfied(session.CollectedWeight()) {
		session.Status = interfaces.SessionReady
	} else {
		session.Status = interfaces.SessionCollecting
	}
	session.Version++

	if err := o.putSession(ctx, session); err != nil {
		return nil, err
	}

	o.log.Info("Share submitted",
		slog.String("session_id", sessionID),
		slog.String("guardian", guardianAddr.String()),
		slog.Uint64("collected_weight", session.CollectedWeight()),
		slog.Uint64("threshold", session.Threshold),
		slog.String("status", string(session.Status)))

	return session, nil
}

// CheckReadiness promotes a ready session to executable exactly when both
// the threshold is met and the time lock has elapsed, and reports whether
// the session is currently executable. The promotion is idempotent and
// polling friendly.
func (o *Orchestrator) CheckReadiness(ctx context.Context, sessionID string) (bool, error) {
	lock := o.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := o.getSession(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if session.Status.Terminal() {
		return false, nil
	}
	if session.Status == interfaces.SessionExecutable {
		return true, nil
	}

	config, err := o.manager.RecoveryConfig(ctx, session.Owner)
	if err != nil {
		return false, err
	}

	if config.Satisfied(session.CollectedWeight()) && !o.now().Before(session.ExecuteAfter) {
		session.Status = interfaces.SessionExecutable
		session.Version++
		if err := o.putSession(ctx, session); err != nil {
			return false, err
		}

		o.log.Info("Session became executable", slog.String("session_id", sessionID))
		return true, nil
	}

	return false, nil
}

// ExecuteRecovery reconstructs the secret from the submitted shares and
// marks the session executed. Threshold and time-lock failures carry
// structured remaining-weight and remaining-time data. The on-ledger
// ownership transfer is delegated to the ledger collaborator and is not
// performed here.
func (o *Orchestrator) ExecuteRecovery(ctx context.Context, sessionID string) ([]byte, *interfaces.RecoverySession, error) {
	lock := o.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := o.getSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if err := checkNotTerminal(session); err != nil {
		return nil, nil, err
	}

	config, err := o.manager.RecoveryConfig(ctx, session.Owner)
	if err != nil {
		return nil, nil, err
	}

	collected := session.CollectedWeight()
	if !config.Satisfied(collected) {
		return nil, nil, &interfaces.ThresholdNotMetError{Collected: collected, Required: session.Threshold}
	}
	if now := o.now(); now.Before(session.ExecuteAfter) {
		return nil, nil, &interfaces.TimeLockError{Remaining: session.ExecuteAfter.Sub(now)}
	}

	collector, err := shamir.NewThresholdedSecret(int(session.Threshold))
	if err != nil {
		return nil, nil, err
	}
	for guardianHex := range session.Submitted {
		addr, err := interfaces.NewAccountAddressFromHex(guardianHex)
		if err != nil {
			return nil, nil, fmt.Errorf("corrupt session record: %w", err)
		}

		bundle, err := o.manager.FetchShare(ctx, sessionID, addr)
		if err != nil {
			return nil, nil, err
		}
		shares, err := shamir.DecodeShareBundle(string(bundle))
		if err != nil {
			return nil, nil, fmt.Errorf("guardian %s: %w", guardianHex, err)
		}
		for _, share := range shares {
			if err := collector.AddShare(share); err != nil {
				return nil, nil, fmt.Errorf("guardian %s: %w", guardianHex, err)
			}
		}
	}

	secret, err := collector.Combine()
	if err != nil {
		return nil, nil, err
	}

	executedAt := o.now()
	session.Status = interfaces.SessionExecuted
	session.ExecutedAt = &executedAt
	session.Version++
	if err := o.putSession(ctx, session); err != nil {
		return nil, nil, err
	}

	o.log.Info("Recovery executed",
		slog.String("session_id", sessionID),
		slog.String("owner", session.Owner.String()),
		slog.String("new_owner", session.NewOwner.String()))

	return secret, session, nil
}

// CancelRecovery marks the session cancelled. The caller must be the session
// owner or one of the owner's active guardians.
func (o *Orchestrator) CancelRecovery(ctx context.Context, sessionID string, caller interfaces.AccountAddress) (*interfaces.RecoverySession, error) {
	lock := o.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := o.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := checkNotTerminal(session); err != nil {
		return nil, err
	}

	if !caller.Equal(session.Owner) {
		isGuardian, _, err := o.manager.IsGuardian(ctx, session.Owner, caller)
		if err != nil {
			return nil, err
		}
		if !isGuardian {
			return nil, fmt.Errorf("%w: %s may not cancel session %s", interfaces.ErrNotAuthorized, caller, sessionID)
		}
	}

	if o.submitter != nil && session.LedgerRequestID != nil {
		err := o.submitter.Cancel(*session.LedgerRequestID, caller)
		if err != nil && !errors.Is(err, interfaces.ErrAlreadyCancelled) {
			return nil, fmt.Errorf("ledger cancellation failed: %w", err)
		}
	}

	cancelledAt := o.now()
	session.Status = interfaces.SessionCancelled
	session.CancelledAt = &cancelledAt
	session.Version++
	if err := o.putSession(ctx, session); err != nil {
		return nil, err
	}

	o.log.Info("Recovery cancelled",
		slog.String("session_id", sessionID),
		slog.String("caller", caller.String()))

	return session, nil
}

// ActiveSession returns the owner's active recovery session, or ErrNotFound
// if none exists.
func (o *Orchestrator) ActiveSession(ctx context.Context, owner interfaces.AccountAddress) (*interfaces.RecoverySession, error) {
	data, err := o.store.Get(ctx, interfaces.SessionKind, interfaces.ActiveSessionKey(owner))
	if err != nil {
		if errors.Is(err, interfaces.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: no active session for owner %s", interfaces.ErrNotFound, owner)
		}
		return nil, err
	}

	session, err := o.getSession(ctx, string(data))
	if err != nil {
		return nil, err
	}
	// A terminal session no longer occupies the owner's active slot.
	if !session.Active() {
		return nil, fmt.Errorf("%w: no active session for owner %s", interfaces.ErrNotFound, owner)
	}
	return session, nil
}

// Session returns a recovery session by id.
func (o *Orchestrator) Session(ctx context.Context, sessionID string) (*interfaces.RecoverySession, error) {
	return o.getSession(ctx, sessionID)
}

// TimeRemaining returns max(0, executeAfter - now) for the session.
func (o *Orchestrator) TimeRemaining(ctx context.Context, sessionID string) (time.Duration, error) {
	session, err := o.getSession(ctx, sessionID)
	if err != nil {
		return 0, err
	}

	remaining := session.ExecuteAfter.Sub(o.now())
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

func (o *Orchestrator) getSession(ctx context.Context, sessionID string) (*interfaces.RecoverySession, error) {
	data, err := o.store.Get(ctx, interfaces.SessionKind, interfaces.SessionKey(sessionID))
	if err != nil {
		if errors.Is(err, interfaces.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: session %s", interfaces.ErrNotFound, sessionID)
		}
		return nil, fmt.Errorf("failed to fetch session: %w", err)
	}

	var session interfaces.RecoverySession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	if session.Submitted == nil {
		session.Submitted = make(map[string]uint64)
	}
	return &session, nil
}

func (o *Orchestrator) putSession(ctx context.Context, session *interfaces.RecoverySession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := o.store.Put(ctx, interfaces.SessionKind, interfaces.SessionKey(session.ID), data); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func checkNotTerminal(session *interfaces.RecoverySession) error {
	switch session.Status {
	case interfaces.SessionExecuted:
		return fmt.Errorf("%w: session %s", interfaces.ErrAlreadyExecuted, session.ID)
	case interfaces.SessionCancelled:
		return fmt.Errorf("%w: session %s", interfaces.ErrAlreadyCancelled, session.ID)
	default:
		return nil
	}
}
