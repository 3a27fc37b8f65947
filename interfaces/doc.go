// Package interfaces defines core interfaces and types for the guardian
// recovery system, separating interface definitions from implementations.
//
// The package provides the contracts between the main components:
//
// # Ledger Interfaces
//
// LedgerRegistry: The guardian registry surface as exposed by the on-ledger
// contract — guardian set management, weighted approval, time-locked recovery
// requests. Implemented by both the in-process replica (registry.Ledger) and
// the on-chain client (registry.Client).
//
// RecoverySubmitter: The narrow ledger-submission surface consumed by the
// recovery orchestrator when mirroring sessions on-ledger.
//
// ServiceDiscovery: Domain name discovery for recovery-service endpoints.
//
// # Storage Interfaces
//
// KeyValueStore: Keyed persistence for recovery sessions, per-guardian
// encrypted shares, and per-owner recovery configuration, across multiple
// backend types (memory, file, S3, IPFS, Vault).
//
// StoreFactory: Creates key-value stores from URI strings and aggregates
// several backends into one redundant store.
//
// # Shared Types
//
// AccountAddress, Guardian, RecoveryConfig, RecoveryRequest and
// RecoverySession are the data model shared by every layer, together with the
// error taxonomy every operation reports from.
package interfaces
