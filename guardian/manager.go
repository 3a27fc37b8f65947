package guardian

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodia/guardian-recovery-backend/interfaces"
)

// Manager resolves per-owner recovery configuration and persists encrypted
// guardian shares.
type Manager struct {
	store interfaces.KeyValueStore
	log   *slog.Logger
	now   func() time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithClock overrides the manager's time source.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a manager over the given store.
func NewManager(store interfaces.KeyValueStore, log *slog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		store: store,
		log:   log,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Configure validates and persists an owner's guardian set and threshold.
// Guardians are stored active; a later call replaces the whole
// configuration.
func (m *Manager) Configure(ctx context.Context, owner interfaces.AccountAddress, guardians []interfaces.Guardian, threshold uint64) (*interfaces.RecoveryConfig, error) {
	if owner.IsZero() {
		return nil, fmt.Errorf("%w: owner address must not be zero", interfaces.ErrInvalidInput)
	}
	if len(guardians) == 0 {
		return nil, fmt.Errorf("%w: at least one guardian is required", interfaces.ErrInvalidInput)
	}
	if len(guardians) > interfaces.MaxGuardians {
		return nil, fmt.Errorf("%w: at most %d guardians allowed, got %d", interfaces.ErrInvalidInput, interfaces.MaxGuardians, len(guardians))
	}
	if threshold < interfaces.MinThreshold {
		return nil, fmt.Errorf("%w: threshold %d below minimum %d", interfaces.ErrInvalidInput, threshold, interfaces.MinThreshold)
	}

	ts := m.now()
	var totalWeight uint64
	seen := make(map[interfaces.AccountAddress]bool, len(guardians))
	stored := make([]interfaces.Guardian, len(guardians))
	for i, g := range guardians {
		if g.Address.IsZero() {
			return nil, fmt.Errorf("%w: guardian address must not be zero", interfaces.ErrInvalidInput)
		}
		if g.Address.Equal(owner) {
			return nil, fmt.Errorf("%w: owner cannot guard themselves", interfaces.ErrInvalidInput)
		}
		if g.Weight == 0 {
			return nil, fmt.Errorf("%w: guardian %s has zero weight", interfaces.ErrInvalidInput, g.Address)
		}
		if seen[g.Address] {
			return nil, fmt.Errorf("%w: duplicate guardian %s", interfaces.ErrInvalidInput, g.Address)
		}
		seen[g.Address] = true
		totalWeight += g.Weight

		stored[i] = g
		stored[i].Status = interfaces.GuardianActive
		if stored[i].RegisteredAt.IsZero() {
			stored[i].RegisteredAt = ts
		}
	}

	if threshold > totalWeight {
		return nil, fmt.Errorf("%w: threshold %d exceeds total guardian weight %d", interfaces.ErrInvalidInput, threshold, totalWeight)
	}

	config := &interfaces.RecoveryConfig{
		Owner:       owner,
		Threshold:   threshold,
		TotalShares: int(totalWeight),
		Guardians:   stored,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}

	if existing, err := m.RecoveryConfig(ctx, owner); err == nil {
		config.CreatedAt = existing.CreatedAt
	}

	if err := m.putConfig(ctx, config); err != nil {
		return nil, err
	}

	m.log.Info("Recovery configuration stored",
		slog.String("owner", owner.String()),
		slog.Uint64("threshold", threshold),
		slog.Int("guardians", len(stored)))

	return config, nil
}

// RecoveryConfig returns the owner's recovery configuration. Fails with
// ErrNotConfigured if no configuration has been stored.
func (m *Manager) RecoveryConfig(ctx context.Context, owner interfaces.AccountAddress) (*interfaces.RecoveryConfig, error) {
	data, err := m.store.Get(ctx, interfaces.ConfigKind, interfaces.ConfigKey(owner))
	if err != nil {
		if errors.Is(err, interfaces.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: owner %s", interfaces.ErrNotConfigured, owner)
		}
		return nil, fmt.Errorf("failed to fetch recovery config: %w", err)
	}

	var config interfaces.RecoveryConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to decode recovery config: %w", err)
	}
	return &config, nil
}

// Guardians returns only the owner's active guardians.
func (m *Manager) Guardians(ctx context.Context, owner interfaces.AccountAddress) ([]interfaces.Guardian, error) {
	config, err := m.RecoveryConfig(ctx, owner)
	if err != nil {
		return nil, err
	}
	return config.ActiveGuardians(), nil
}

// RevokeGuardian soft-deletes an active guardian from the owner's
// configuration.
func (m *Manager) RevokeGuardian(ctx context.Context, owner, guardian interfaces.AccountAddress) error {
	config, err := m.RecoveryConfig(ctx, owner)
	if err != nil {
		return err
	}

	for i := range config.Guardians {
		g := &config.Guardians[i]
		if g.Status == interfaces.GuardianActive && g.Address.Equal(guardian) {
			g.Status = interfaces.GuardianRevoked
			config.UpdatedAt = m.now()
			return m.putConfig(ctx, config)
		}
	}
	return fmt.Errorf("%w: guardian %s not active for owner %s", interfaces.ErrNotFound, guardian, owner)
}

// IsRecoveryConfigured reports whether a threshold is set and at least that
// much active guardian weight exists.
func (m *Manager) IsRecoveryConfigured(ctx context.Context, owner interfaces.AccountAddress) (bool, error) {
	config, err := m.RecoveryConfig(ctx, owner)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotConfigured) {
			return false, nil
		}
		return false, err
	}
	return config.Satisfied(config.ActiveWeight()), nil
}

// IsGuardian reports whether the address is an active guardian of the owner
// and returns its weight.
func (m *Manager) IsGuardian(ctx context.Context, owner, guardian interfaces.AccountAddress) (bool, uint64, error) {
	config, err := m.RecoveryConfig(ctx, owner)
	if err != nil {
		return false, 0, err
	}
	weight, ok := config.GuardianWeight(guardian)
	return ok, weight, nil
}

// StoreShare persists a guardian's encrypted share bundle for a session.
func (m *Manager) StoreShare(ctx context.Context, sessionID string, guardian interfaces.AccountAddress, encryptedShare []byte) error {
	if len(encryptedShare) == 0 {
		return fmt.Errorf("%w: encrypted share must not be empty", interfaces.ErrInvalidInput)
	}

	key := interfaces.ShareKey(sessionID, guardian)
	if err := m.store.Put(ctx, interfaces.ShareKind, key, encryptedShare); err != nil {
		return fmt.Errorf("failed to store share: %w", err)
	}

	m.log.Debug("Stored encrypted share",
		slog.String("session_id", sessionID),
		slog.String("guardian", guardian.String()),
		slog.Int("size", len(encryptedShare)))

	return nil
}

// FetchShare retrieves a guardian's encrypted share bundle for a session.
func (m *Manager) FetchShare(ctx context.Context, sessionID string, guardian interfaces.AccountAddress) ([]byte, error) {
	data, err := m.store.Get(ctx, interfaces.ShareKind, interfaces.ShareKey(sessionID, guardian))
	if err != nil {
		if errors.Is(err, interfaces.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: no share from guardian %s in session %s", interfaces.ErrNotFound, guardian, sessionID)
		}
		return nil, fmt.Errorf("failed to fetch share: %w", err)
	}
	return data, nil
}

func (m *Manager) putConfig(ctx context.Context, config *interfaces.RecoveryConfig) error {
	data, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to encode recovery config: %w", err)
	}
	if err := m.store.Put(ctx, interfaces.ConfigKind, interfaces.ConfigKey(config.Owner), data); err != nil {
		return fmt.Errorf("failed to store recovery config: %w", err)
	}
	return nil
}
