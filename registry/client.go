package registry

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/custodia/guardian-recovery-backend/interfaces"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrNoTransactOpts is returned when a transaction is attempted without
// first setting transaction options.
var ErrNoTransactOpts = errors.New("no authorized transactor available")

// registryABI is the guardian registry contract interface. Callers of
// mutating methods are authorized by the contract from the transaction
// sender.
const registryABI = `[
	{"type":"function","name":"addGuardian","stateMutability":"nonpayable","inputs":[{"name":"guardian","type":"address"},{"name":"label","type":"string"},{"name":"weight","type":"uint64"}],"outputs":[]},
	{"type":"function","name":"removeGuardian","stateMutability":"nonpayable","inputs":[{"name":"guardian","type":"address"}],"outputs":[]},
	{"type":"function","name":"setThreshold","stateMutability":"nonpayable","inputs":[{"name":"threshold","type":"uint64"}],"outputs":[]},
	{"type":"function","name":"initiateRecovery","stateMutability":"nonpayable","inputs":[{"name":"owner","type":"address"},{"name":"newOwner","type":"address"}],"outputs":[]},
	{"type":"function","name":"approveRecovery","stateMutability":"nonpayable","inputs":[{"name":"requestId","type":"uint64"}],"outputs":[]},
	{"type":"function","name":"executeRecovery","stateMutability":"nonpayable","inputs":[{"name":"requestId","type":"uint64"}],"outputs":[]},
	{"type":"function","name":"cancelRecovery","stateMutability":"nonpayable","inputs":[{"name":"requestId","type":"uint64"}],"outputs":[]},
	{"type":"function","name":"guardiansOf","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"tuple[]","components":[{"name":"addr","type":"address"},{"name":"label","type":"string"},{"name":"weight","type":"uint64"},{"name":"status","type":"uint8"},{"name":"registeredAt","type":"uint256"}]}]},
	{"type":"function","name":"thresholdOf","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint64"}]},
	{"type":"function","name":"activeRequestId","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint64"}]},
	{"type":"function","name":"getRequest","stateMutability":"view","inputs":[{"name":"requestId","type":"uint64"}],"outputs":[{"name":"","type":"tuple","components":[{"name":"id","type":"uint64"},{"name":"owner","type":"address"},{"name":"newOwner","type":"address"},{"name":"threshold","type":"uint64"},{"name":"approvalWeight","type":"uint64"},{"name":"initiatedAt","type":"uint256"},{"name":"executeAfter","type":"uint256"},{"name":"executed","type":"bool"},{"name":"cancelled","type":"bool"}]}]},
	{"type":"function","name":"allServiceDomainNames","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string[]"}]},
	{"type":"function","name":"registerServiceDomainName","stateMutability":"nonpayable","inputs":[{"name":"domain","type":"string"}],"outputs":[]}
]`

// contractGuardian mirrors the registry contract's guardian tuple layout.
type contractGuardian struct {
	Addr         common.Address
	Label        string
	Weight       uint64
	Status       uint8
	RegisteredAt *big.Int
}

// contractRequest mirrors the registry contract's recovery request tuple
// layout.
type contractRequest struct {
	Id             uint64
	Owner          common.Address
	NewOwner       common.Address
	Threshold      uint64
	ApprovalWeight uint64
	InitiatedAt    *big.Int
	ExecuteAfter   *big.Int
	Executed       bool
	Cancelled      bool
}

// Guardian lifecycle status values used by the contract.
const (
	contractStatusActive  uint8 = 0
	contractStatusPending uint8 = 1
	contractStatusRevoked uint8 = 2
)

// OnchainRegistryClient implements interfaces.LedgerRegistry against the
// guardian registry contract deployed on a blockchain.
type OnchainRegistryClient struct {
	contract *bind.BoundContract
	client   bind.ContractBackend
	backend  bind.DeployBackend
	address  common.Address
	auth     *bind.TransactOpts
}

// NewOnchainRegistryClient creates a client for the registry contract at the
// specified address. It requires a ContractBackend for reading from the
// blockchain and a DeployBackend for waiting on transaction inclusion.
func NewOnchainRegistryClient(client bind.ContractBackend, backend bind.DeployBackend, address common.Address) (*OnchainRegistryClient, error) {
	parsed, err := abi.JSON(strings.NewReader(registryABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse registry ABI: %w", err)
	}

	return &OnchainRegistryClient{
		contract: bind.NewBoundContract(address, parsed, client, client, client),
		client:   client,
		backend:  backend,
		address:  address,
	}, nil
}

// SetTransactOpts sets the transaction options required for methods that
// modify contract state. This must be called before using any mutating
// method.
func (c *OnchainRegistryClient) SetTransactOpts(auth *bind.TransactOpts) {
	c.auth = auth
}

// AddGuardian appends a guardian for the transactor's account.
func (c *OnchainRegistryClient) AddGuardian(owner, guardian interfaces.AccountAddress, label string, weight uint64) (*types.Transaction, error) {
	if c.auth == nil {
		return nil, ErrNoTransactOpts
	}
	return c.contract.Transact(c.auth, "addGuardian", common.Address(guardian), label, weight)
}

// RemoveGuardian soft-deletes an active guardian of the transactor's
// account.
func (c *OnchainRegistryClient) RemoveGuardian(owner, guardian interfaces.AccountAddress) (*types.Transaction, error) {
	if c.auth == nil {
		return nil, ErrNoTransactOpts
	}
	return c.contract.Transact(c.auth, "removeGuardian", common.Address(guardian))
}

// SetThreshold sets the transactor's recovery threshold weight.
func (c *OnchainRegistryClient) SetThreshold(owner interfaces.AccountAddress, threshold uint64) (*types.Transaction, error) {
	if c.auth == nil {
		return nil, ErrNoTransactOpts
	}
	return c.contract.Transact(c.auth, "setThreshold", threshold)
}

// InitiateRecovery creates the owner's active recovery request and waits for
// inclusion to learn the assigned request id.
func (c *OnchainRegistryClient) InitiateRecovery(caller, owner, newOwner interfaces.AccountAddress) (uint64, *types.Transaction, error) {
	if c.auth == nil {
		return 0, nil, ErrNoTransactOpts
	}

	tx, err := c.contract.Transact(c.auth, "initiateRecovery", common.Address(owner), common.Address(newOwner))
	if err != nil {
		return 0, nil, err
	}

	// The id is assigned by the contract, so it is only known once the
	// transaction is mined.
	if _, err := bind.WaitMined(context.Background(), c.backend, tx); err != nil {
		return 0, tx, fmt.Errorf("failed to wait for initiation: %w", err)
	}

	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: context.Background()}, &out, "activeRequestId", common.Address(owner)); err != nil {
		return 0, tx, err
	}
	return out[0].(uint64), tx, nil
}

// ApproveRecovery records the transactor's weighted approval on the request.
func (c *OnchainRegistryClient) ApproveRecovery(caller interfaces.AccountAddress, requestID uint64) (*types.Transaction, error) {
	if c.auth == nil {
		return nil, ErrNoTransactOpts
	}
	return c.contract.Transact(c.auth, "approveRecovery", requestID)
}

// ExecuteRecovery performs the on-ledger ownership transfer.
func (c *OnchainRegistryClient) ExecuteRecovery(caller interfaces.AccountAddress, requestID uint64) (*types.Transaction, error) {
	if c.auth == nil {
		return nil, ErrNoTransactOpts
	}
	return c.contract.Transact(c.auth, "executeRecovery", requestID)
}

// CancelRecovery marks the request cancelled.
func (c *OnchainRegistryClient) CancelRecovery(caller interfaces.AccountAddress, requestID uint64) (*types.Transaction, error) {
	if c.auth == nil {
		return nil, ErrNoTransactOpts
	}
	return c.contract.Transact(c.auth, "cancelRecovery", requestID)
}

// Guardians returns all guardians recorded for the owner.
func (c *OnchainRegistryClient) Guardians(owner interfaces.AccountAddress) ([]interfaces.Guardian, error) {
	var out []interface{}
	err := c.contract.Call(&bind.CallOpts{Context: context.Background()}, &out, "guardiansOf", common.Address(owner))
	if err != nil {
		return nil, err
	}

	raw := *abi.ConvertType(out[0], new([]contractGuardian)).(*[]contractGuardian)
	guardians := make([]interfaces.Guardian, len(raw))
	for i, g := range raw {
		guardians[i] = interfaces.Guardian{
			Address:      interfaces.AccountAddress(g.Addr),
			Label:        g.Label,
			Weight:       g.Weight,
			Status:       statusFromContract(g.Status),
			RegisteredAt: bigToTime(g.RegisteredAt),
		}
	}
	return guardians, nil
}

// Threshold returns the owner's recovery threshold, zero if unset.
func (c *OnchainRegistryClient) Threshold(owner interfaces.AccountAddress) (uint64, error) {
	var out []interface{}
	err := c.contract.Call(&bind.CallOpts{Context: context.Background()}, &out, "thresholdOf", common.Address(owner))
	if err != nil {
		return 0, err
	}
	return out[0].(uint64), nil
}

// ActiveRequest returns the owner's active recovery request.
func (c *OnchainRegistryClient) ActiveRequest(owner interfaces.AccountAddress) (*interfaces.RecoveryRequest, error) {
	var out []interface{}
	err := c.contract.Call(&bind.CallOpts{Context: context.Background()}, &out, "activeRequestId", common.Address(owner))
	if err != nil {
		return nil, err
	}

	id := out[0].(uint64)
	if id == 0 {
		return nil, fmt.Errorf("%w: no active request for owner %s", interfaces.ErrNotFound, owner)
	}
	return c.Request(id)
}

// Request returns a recovery request by id.
func (c *OnchainRegistryClient) Request(id uint64) (*interfaces.RecoveryRequest, error) {
	var out []interface{}
	err := c.contract.Call(&bind.CallOpts{Context: context.Background()}, &out, "getRequest", id)
	if err != nil {
		return nil, err
	}

	raw := *abi.ConvertType(out[0], new(contractRequest)).(*contractRequest)
	if raw.Id == 0 {
		return nil, fmt.Errorf("%w: request %d", interfaces.ErrNotFound, id)
	}

	return &interfaces.RecoveryRequest{
		ID:             raw.Id,
		Owner:          interfaces.AccountAddress(raw.Owner),
		NewOwner:       interfaces.AccountAddress(raw.NewOwner),
		Threshold:      raw.Threshold,
		ApprovalWeight: raw.ApprovalWeight,
		InitiatedAt:    bigToTime(raw.InitiatedAt),
		ExecuteAfter:   bigToTime(raw.ExecuteAfter),
		Executed:       raw.Executed,
		Cancelled:      raw.Cancelled,
	}, nil
}

// RegisterServiceDomainName registers a recovery-service domain name in the
// contract.
func (c *OnchainRegistryClient) RegisterServiceDomainName(domain string) (*types.Transaction, error) {
	if c.auth == nil {
		return nil, ErrNoTransactOpts
	}
	return c.contract.Transact(c.auth, "registerServiceDomainName", domain)
}

// ServiceDomainNames returns all registered recovery-service domain names.
func (c *OnchainRegistryClient) ServiceDomainNames() ([]string, error) {
	var out []interface{}
	err := c.contract.Call(&bind.CallOpts{Context: context.Background()}, &out, "allServiceDomainNames")
	if err != nil {
		return nil, err
	}
	return out[0].([]string), nil
}

// RegistryFactory creates LedgerRegistry clients for different contract
// addresses.
type RegistryFactory struct {
	client  bind.ContractBackend
	backend bind.DeployBackend
}

// NewRegistryFactory creates a factory for registry clients. It requires a
// ContractBackend for reading from the blockchain and a DeployBackend for
// transactions.
func NewRegistryFactory(client bind.ContractBackend, backend bind.DeployBackend) *RegistryFactory {
	return &RegistryFactory{client: client, backend: backend}
}

// RegistryFor returns a LedgerRegistry client for the specified contract
// address.
func (f *RegistryFactory) RegistryFor(contract interfaces.AccountAddress) (interfaces.LedgerRegistry, error) {
	return NewOnchainRegistryClient(f.client, f.backend, common.Address(contract))
}

func statusFromContract(status uint8) interfaces.GuardianStatus {
	switch status {
	case contractStatusActive:
		return interfaces.GuardianActive
	case contractStatusPending:
		return interfaces.GuardianPending
	default:
		return interfaces.GuardianRevoked
	}
}

func bigToTime(ts *big.Int) (t time.Time) {
	if ts == nil {
		return t
	}
	return time.Unix(ts.Int64(), 0).UTC()
}
