// Package registry provides access to the guardian registry contract that
// records, per owner account, the guardian set, recovery threshold, and at
// most one active recovery request.
//
// Two implementations of interfaces.LedgerRegistry are provided:
//
//   - OnchainRegistryClient talks to the deployed registry contract over an
//     Ethereum RPC connection.
//   - LedgerReplica is a faithful in-process replica of the contract's state
//     machine, used in tests and in deployments that run without a chain. All
//     operations execute under a single lock, mirroring the ledger's native
//     per-transaction serialization, and timestamps are clamped monotonically
//     non-decreasing the way ledger timestamps are.
//
// Submitter adapts either implementation to the narrow
// interfaces.RecoverySubmitter surface the orchestrator consumes.
package registry
