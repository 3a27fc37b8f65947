// Package serviceresolver discovers recovery-service endpoints for
// guardians.
//
// Service operators register their domain names on the ledger. Resolution
// queries the ledger for the registered names, then resolves each name to
// endpoint targets through DNS SRV records, so guardians can find a live
// recovery server to submit shares to without hardcoded addresses.
package serviceresolver
