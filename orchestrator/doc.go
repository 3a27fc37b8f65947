// Package orchestrator coordinates a recovery session's lifecycle end to
// end: initiation, share collection, readiness and time-lock evaluation,
// secret reconstruction, and cancellation.
//
// Session state machine:
//
//	pending → collecting → ready → executable → executed
//
// with a side terminal cancelled reachable from any non-terminal state.
// Threshold accounting is weight based: a guardian's submission counts its
// configured voting weight, and readiness defers to the same canonical
// predicate the ledger registry uses.
//
// Mutating operations serialize per session id with a keyed mutex, so two
// guardians submitting concurrently cannot lose a submission to a
// read-modify-write race. There is no background scheduler: time-lock expiry
// is evaluated lazily on CheckReadiness, and callers poll.
//
// When a ledger submitter is configured, sessions mirror to the on-ledger
// registry: the ledger call happens before local state changes, so a ledger
// rejection leaves the session untouched. The orchestrator never performs
// the on-ledger ownership transfer itself; that stays with the ledger
// collaborator.
package orchestrator
