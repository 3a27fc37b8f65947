package registry

import (
	"github.com/custodia/guardian-recovery-backend/interfaces"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/mock"
)

// MockRegistry mocks the LedgerRegistry interface
type MockRegistry struct {
	mock.Mock
}

// AddGuardian mocks the AddGuardian method
func (m *MockRegistry) AddGuardian(owner, guardian interfaces.AccountAddress, label string, weight uint64) (*types.Transaction, error) {
	args := m.Called(owner, guardian, label, weight)
	return args.Get(0).(*types.Transaction), args.Error(1)
}

// RemoveGuardian mocks the RemoveGuardian method
func (m *MockRegistry) RemoveGuardian(owner, guardian interfaces.AccountAddress) (*types.Transaction, error) {
	args := m.Called(owner, guardian)
	return args.Get(0).(*types.Transaction), args.Error(1)
}

// SetThreshold mocks the SetThreshold method
func (m *MockRegistry) SetThreshold(owner interfaces.AccountAddress, threshold uint64) (*types.Transaction, error) {
	args := m.Called(owner, threshold)
	return args.Get(0).(*types.Transaction), args.Error(1)
}

// InitiateRecovery mocks the InitiateRecovery method
func (m *MockRegistry) InitiateRecovery(caller, owner, newOwner interfaces.AccountAddress) (uint64, *types.Transaction, error) {
	args := m.Called(caller, owner, newOwner)
	return args.Get(0).(uint64), args.Get(1).(*types.Transaction), args.Error(2)
}

// ApproveRecovery mocks the ApproveRecovery method
func (m *MockRegistry) ApproveRecovery(caller interfaces.AccountAddress, requestID uint64) (*types.Transaction, error) {
	args := m.Called(caller, requestID)
	return args.Get(0).(*types.Transaction), args.Error(1)
}

// ExecuteRecovery mocks the ExecuteRecovery method
func (m *MockRegistry) ExecuteRecovery(caller interfaces.AccountAddress, requestID uint64) (*types.Transaction, error) {
	args := m.Called(caller, requestID)
	return args.Get(0).(*types.Transaction), args.Error(1)
}

// CancelRecovery mocks the CancelRecovery method
func (m *MockRegistry) CancelRecovery(caller interfaces.AccountAddress, requestID uint64) (*types.Transaction, error) {
	args := m.Called(caller, requestID)
	return args.Get(0).(*types.Transaction), args.Error(1)
}

// Guardians mocks the Guardians method
func (m *MockRegistry) Guardians(owner interfaces.AccountAddress) ([]interfaces.Guardian, error) {
	args := m.Called(owner)
	return args.Get(0).([]interfaces.Guardian), args.Error(1)
}

// Threshold mocks the Threshold method
func (m *MockRegistry) Threshold(owner interfaces.AccountAddress) (uint64, error) {
	args := m.Called(owner)
	return args.Get(0).(uint64), args.Error(1)
}

// ActiveRequest mocks the ActiveRequest method
func (m *MockRegistry) ActiveRequest(owner interfaces.AccountAddress) (*interfaces.RecoveryRequest, error) {
	args := m.Called(owner)
	return args.Get(0).(*interfaces.RecoveryRequest), args.Error(1)
}

// Request mocks the Request method
func (m *MockRegistry) Request(id uint64) (*interfaces.RecoveryRequest, error) {
	args := m.Called(id)
	return args.Get(0).(*interfaces.RecoveryRequest), args.Error(1)
}

// MockSubmitter mocks the RecoverySubmitter interface
type MockSubmitter struct {
	mock.Mock
}

// Submit mocks the Submit method
func (m *MockSubmitter) Submit(initiator, owner, newOwner interfaces.AccountAddress) (uint64, error) {
	args := m.Called(initiator, owner, newOwner)
	return args.Get(0).(uint64), args.Error(1)
}

// Approve mocks the Approve method
func (m *MockSubmitter) Approve(requestID uint64, guardian interfaces.AccountAddress) error {
	args := m.Called(requestID, guardian)
	return args.Error(0)
}

// Execute mocks the Execute method
func (m *MockSubmitter) Execute(requestID uint64) error {
	args := m.Called(requestID)
	return args.Error(0)
}

// Cancel mocks the Cancel method
func (m *MockSubmitter) Cancel(requestID uint64, caller interfaces.AccountAddress) error {
	args := m.Called(requestID, caller)
	return args.Error(0)
}
