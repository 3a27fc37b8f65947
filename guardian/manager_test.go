package guardian

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/custodia/guardian-recovery-backend/interfaces"
	"github.com/custodia/guardian-recovery-backend/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addr(b byte) interfaces.AccountAddress {
	var a interfaces.AccountAddress
	a[19] = b
	return a
}

func newTestManager() *Manager {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewManager(storage.NewMemoryStore(logger), logger)
}

func guardianSet(weights ...uint64) []interfaces.Guardian {
	guardians := make([]interfaces.Guardian, len(weights))
	for i, w := range weights {
		guardians[i] = interfaces.Guardian{Address: addr(byte(10 + i)), Weight: w}
	}
	return guardians
}

func TestConfigureValidation(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()
	owner := addr(1)

	_, err := m.Configure(ctx, interfaces.AccountAddress{}, guardianSet(1, 1), 2)
	assert.ErrorIs(t, err, interfaces.ErrInvalidInput, "Zero owner address is rejected")

	_, err = m.Configure(ctx, owner, nil, 2)
	assert.ErrorIs(t, err, interfaces.ErrInvalidInput, "Empty guardian set is rejected")

	_, err = m.Configure(ctx, owner, guardianSet(1, 1), 1)
	assert.ErrorIs(t, err, interfaces.ErrInvalidInput, "Threshold below the minimum is rejected")

	_, err = m.Configure(ctx, owner, guardianSet(1, 1), 3)
	assert.ErrorIs(t, err, interfaces.ErrInvalidInput, "Threshold above the total weight is rejected")

	_, err = m.Configure(ctx, owner, guardianSet(1, 0), 2)
	assert.ErrorIs(t, err, interfaces.ErrInvalidInput, "Zero-weight guardian is rejected")

	selfGuarded := guardianSet(1, 1)
	selfGuarded[1].Address = owner
	_, err = m.Configure(ctx, owner, selfGuarded, 2)
	assert.ErrorIs(t, err, interfaces.ErrInvalidInput, "Owner cannot guard themselves")

	duplicated := guardianSet(1, 1)
	duplicated[1].Address = duplicated[0].Address
	_, err = m.Configure(ctx, owner, duplicated, 2)
	assert.ErrorIs(t, err, interfaces.ErrInvalidInput, "Duplicate guardians are rejected")

	_, err = m.Configure(ctx, owner, guardianSet(1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1), 2)
	assert.ErrorIs(t, err, interfaces.ErrInvalidInput, "Guardian cap is enforced")

	config, err := m.Configure(ctx, owner, guardianSet(3, 1, 1), 3)
	require.NoError(t, err, "A valid configuration should be accepted")
	assert.Equal(t, 5, config.TotalShares, "Total shares equals the aggregate weight")
	assert.Equal(t, uint64(3), config.Threshold, "Threshold should be recorded")
}

func TestRecoveryConfigRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()
	owner := addr(1)

	_, err := m.RecoveryConfig(ctx, owner)
	assert.ErrorIs(t, err, interfaces.ErrNotConfigured, "Unknown owner reports not configured")

	_, err = m.Configure(ctx, owner, guardianSet(2, 1), 2)
	require.NoError(t, err, "Configure should succeed")

	config, err := m.RecoveryConfig(ctx, owner)
	require.NoError(t, err, "RecoveryConfig should succeed after Configure")
	assert.Equal(t, owner, config.Owner, "Owner survives the round trip")
	require.Len(t, config.Guardians, 2, "Guardian set survives the round trip")
	assert.Equal(t, interfaces.GuardianActive, config.Guardians[0].Status, "Guardians are stored active")
	assert.Equal(t, uint64(2), config.Guardians[0].Weight, "Weights survive the round trip")
	assert.False(t, config.Guardians[0].RegisteredAt.IsZero(), "Registration timestamps are assigned")
}

func TestIsRecoveryConfigured(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()
	owner := addr(1)

	configured, err := m.IsRecoveryConfigured(ctx, owner)
	require.NoError(t, err, "IsRecoveryConfigured should not fail for unknown owners")
	assert.False(t, configured, "Unknown owner is not configured")

	_, err = m.Configure(ctx, owner, guardianSet(1, 1), 2)
	require.NoError(t, err, "Configure should succeed")

	configured, err = m.IsRecoveryConfigured(ctx, owner)
	require.NoError(t, err, "IsRecoveryConfigured should succeed")
	assert.True(t, configured, "Configured owner with sufficient active weight")

	// Revoking a guardian drops the active weight below the threshold.
	require.NoError(t, m.RevokeGuardian(ctx, owner, addr(10)), "Revoke should succeed")

	configured, err = m.IsRecoveryConfigured(ctx, owner)
	require.NoError(t, err, "IsRecoveryConfigured should succeed")
	assert.False(t, configured, "Insufficient active weight means not configured")
}

func TestGuardiansReturnsActiveOnly(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()
	owner := addr(1)

	_, err := m.Configure(ctx, owner, guardianSet(1, 1, 1), 2)
	require.NoError(t, err, "Configure should succeed")

	require.NoError(t, m.RevokeGuardian(ctx, owner, addr(11)), "Revoke should succeed")

	err = m.RevokeGuardian(ctx, owner, addr(11))
	assert.ErrorIs(t, err, interfaces.ErrNotFound, "A revoked guardian is no longer revocable")

	guardians, err := m.Guardians(ctx, owner)
	require.NoError(t, err, "Guardians should succeed")
	require.Len(t, guardians, 2, "Only active guardians are returned")
	for _, g := range guardians {
		assert.NotEqual(t, addr(11), g.Address, "The revoked guardian is excluded")
	}
}

func TestIsGuardian(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()
	owner := addr(1)

	_, err := m.Configure(ctx, owner, guardianSet(3, 1), 2)
	require.NoError(t, err, "Configure should succeed")

	ok, weight, err := m.IsGuardian(ctx, owner, addr(10))
	require.NoError(t, err, "IsGuardian should succeed")
	assert.True(t, ok, "Configured guardian is recognized")
	assert.Equal(t, uint64(3), weight, "Guardian weight is returned")

	ok, weight, err = m.IsGuardian(ctx, owner, addr(99))
	require.NoError(t, err, "IsGuardian should succeed")
	assert.False(t, ok, "Unknown address is not a guardian")
	assert.Zero(t, weight, "Unknown address carries no weight")
}

func TestShareStorage(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()
	guardian := addr(10)

	err := m.StoreShare(ctx, "session-1", guardian, nil)
	assert.ErrorIs(t, err, interfaces.ErrInvalidInput, "Empty share payload is rejected")

	_, err = m.FetchShare(ctx, "session-1", guardian)
	assert.ErrorIs(t, err, interfaces.ErrNotFound, "Missing share reports not found")

	require.NoError(t, m.StoreShare(ctx, "session-1", guardian, []byte("wrapped bundle")), "StoreShare should succeed")

	data, err := m.FetchShare(ctx, "session-1", guardian)
	require.NoError(t, err, "FetchShare should succeed after StoreShare")
	assert.Equal(t, []byte("wrapped bundle"), data, "Share payload survives the round trip")

	// Shares are keyed per session.
	_, err = m.FetchShare(ctx, "session-2", guardian)
	assert.ErrorIs(t, err, interfaces.ErrNotFound, "Sessions do not share submissions")
}
