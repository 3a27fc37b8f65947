package httpserver

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/custodia/guardian-recovery-backend/api"
	"github.com/custodia/guardian-recovery-backend/api/clients"
	"github.com/custodia/guardian-recovery-backend/guardian"
	"github.com/custodia/guardian-recovery-backend/interfaces"
	"github.com/custodia/guardian-recovery-backend/orchestrator"
	"github.com/custodia/guardian-recovery-backend/shamir"
	"github.com/custodia/guardian-recovery-backend/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addr(b byte) interfaces.AccountAddress {
	var a interfaces.AccountAddress
	a[19] = b
	return a
}

type fakeClock struct {
	mu      sync.Mutex
	current time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{current: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

type serverEnv struct {
	clock     *fakeClock
	client    *clients.RecoveryClient
	owner     interfaces.AccountAddress
	newOwner  interfaces.AccountAddress
	guardians []interfaces.AccountAddress
	bundles   map[interfaces.AccountAddress][]byte
	secret    []byte
}

// newServerEnv starts a test server over a configured owner with three
// weight-1 guardians and a threshold of 2, and returns an HTTP client
// pointed at it.
func newServerEnv(t *testing.T) *serverEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	clock := newFakeClock()
	store := storage.NewMemoryStore(logger)
	manager := guardian.NewManager(store, logger, guardian.WithClock(clock.Now))

	env := &serverEnv{
		clock:    clock,
		owner:    addr(1),
		newOwner: addr(2),
		bundles:  make(map[interfaces.AccountAddress][]byte),
		secret:   []byte("vault master key"),
	}

	guardians := make([]interfaces.Guardian, 3)
	for i := range guardians {
		env.guardians = append(env.guardians, addr(byte(10+i)))
		guardians[i] = interfaces.Guardian{Address: env.guardians[i], Weight: 1}
	}

	_, err := manager.Configure(context.Background(), env.owner, guardians, 2)
	require.NoError(t, err, "Configure should succeed")

	shares, err := shamir.Split(env.secret, 2, 3)
	require.NoError(t, err, "Split should succeed")
	for i, g := range env.guardians {
		env.bundles[g] = []byte(shamir.EncodeShareBundle(shares[i : i+1]))
	}

	orch := orchestrator.New(manager, store, logger, orchestrator.WithClock(clock.Now))

	srv, err := New(&api.HTTPServerConfig{
		ListenAddr:               "127.0.0.1:0",
		Log:                      logger,
		GracefulShutdownDuration: time.Second,
		ReadTimeout:              time.Second,
		WriteTimeout:             time.Second,
	}, NewHandler(orch, logger))
	require.NoError(t, err, "Server construction should succeed")

	testSrv := httptest.NewServer(srv.getRouter())
	t.Cleanup(testSrv.Close)

	env.client = &clients.RecoveryClient{ServerAddr: testSrv.URL}
	return env
}

func TestRecoveryFlowOverHTTP(t *testing.T) {
	env := newServerEnv(t)

	session, err := env.client.Initiate(&api.InitiateRecoveryRequest{
		Owner:     env.owner,
		NewOwner:  env.newOwner,
		Initiator: env.guardians[0],
	})
	require.NoError(t, err, "Initiation should succeed")
	assert.Equal(t, interfaces.SessionPending, session.Status, "New session starts pending")

	active, err := env.client.ActiveSession(env.owner)
	require.NoError(t, err, "ActiveSession should succeed")
	assert.Equal(t, session.SessionID, active.SessionID, "The initiated session is active")

	updated, err := env.client.SubmitShare(session.SessionID, &api.SubmitShareRequest{
		Guardian:       env.guardians[0],
		EncryptedShare: env.bundles[env.guardians[0]],
	})
	require.NoError(t, err, "First submission should succeed")
	assert.Equal(t, interfaces.SessionCollecting, updated.Status, "Below threshold the session is collecting")
	assert.Equal(t, uint64(1), updated.CollectedWeight, "Collected weight is reported")

	_, err = env.client.SubmitShare(session.SessionID, &api.SubmitShareRequest{
		Guardian:       env.guardians[0],
		EncryptedShare: env.bundles[env.guardians[0]],
	})
	require.Error(t, err, "Duplicate submission is refused")
	assert.Contains(t, err.Error(), "409", "Duplicate submission maps to a conflict")

	updated, err = env.client.SubmitShare(session.SessionID, &api.SubmitShareRequest{
		Guardian:       env.guardians[1],
		EncryptedShare: env.bundles[env.guardians[1]],
	})
	require.NoError(t, err, "Second submission should succeed")
	assert.Equal(t, interfaces.SessionReady, updated.Status, "At threshold the session is ready")

	_, err = env.client.Execute(session.SessionID)
	require.Error(t, err, "Execution before the delay is refused")
	assert.Contains(t, err.Error(), "409", "Time lock maps to a conflict")

	readiness, err := env.client.Readiness(session.SessionID)
	require.NoError(t, err, "Readiness should succeed")
	assert.False(t, readiness.Ready, "Time lock still active")
	assert.Greater(t, readiness.RemainingSeconds, int64(0), "Remaining lock time is reported")

	remaining, err := env.client.TimeRemaining(session.SessionID)
	require.NoError(t, err, "TimeRemaining should succeed")
	assert.Greater(t, remaining.RemainingSeconds, int64(0), "Time lock is still running")
	assert.Equal(t, session.ExecuteAfter, remaining.ExecuteAfter, "The unlock time matches the session")

	env.clock.Advance(interfaces.RecoveryDelay + time.Second)

	remaining, err = env.client.TimeRemaining(session.SessionID)
	require.NoError(t, err, "TimeRemaining should succeed")
	assert.Zero(t, remaining.RemainingSeconds, "The time lock has elapsed")

	readiness, err = env.client.Readiness(session.SessionID)
	require.NoError(t, err, "Readiness should succeed")
	assert.True(t, readiness.Ready, "Threshold met and time lock elapsed")
	assert.Zero(t, readiness.RemainingSeconds, "No lock time remains")

	result, err := env.client.Execute(session.SessionID)
	require.NoError(t, err, "Execution should succeed")
	assert.Equal(t, env.secret, result.Secret, "The reconstructed secret matches the original")
	assert.Equal(t, interfaces.SessionExecuted, result.Session.Status, "The session is executed")

	_, err = env.client.Cancel(session.SessionID, &api.CancelRequest{Caller: env.owner})
	require.Error(t, err, "An executed session cannot be cancelled")
	assert.Contains(t, err.Error(), "409", "Terminal state maps to a conflict")
}

func TestRecoveryErrorMappingOverHTTP(t *testing.T) {
	env := newServerEnv(t)

	_, err := env.client.Initiate(&api.InitiateRecoveryRequest{
		Owner:     addr(50),
		NewOwner:  addr(51),
		Initiator: addr(52),
	})
	require.Error(t, err, "Unconfigured owner is refused")
	assert.Contains(t, err.Error(), "404", "Missing configuration maps to not found")

	_, err = env.client.Initiate(&api.InitiateRecoveryRequest{
		Owner:     env.owner,
		NewOwner:  env.owner,
		Initiator: env.guardians[0],
	})
	require.Error(t, err, "Owner equal to new owner is refused")
	assert.Contains(t, err.Error(), "400", "Invalid input maps to bad request")

	session, err := env.client.Initiate(&api.InitiateRecoveryRequest{
		Owner:     env.owner,
		NewOwner:  env.newOwner,
		Initiator: env.owner,
	})
	require.NoError(t, err, "The owner may initiate")

	_, err = env.client.SubmitShare(session.SessionID, &api.SubmitShareRequest{
		Guardian:       addr(99),
		EncryptedShare: []byte("x"),
	})
	require.Error(t, err, "Non-guardian submission is refused")
	assert.Contains(t, err.Error(), "403", "Unauthorized submission maps to forbidden")

	_, err = env.client.Session("no-such-session")
	require.Error(t, err, "Unknown session is refused")
	assert.Contains(t, err.Error(), "404", "Unknown session maps to not found")

	cancelled, err := env.client.Cancel(session.SessionID, &api.CancelRequest{Caller: env.guardians[2]})
	require.NoError(t, err, "A guardian may cancel")
	assert.Equal(t, interfaces.SessionCancelled, cancelled.Status, "The session is cancelled")

	_, err = env.client.ActiveSession(env.owner)
	require.Error(t, err, "A cancelled session is no longer active")
	assert.Contains(t, err.Error(), "404", "No active session maps to not found")
}
