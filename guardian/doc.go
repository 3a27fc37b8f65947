// Package guardian provides the off-ledger guardian configuration layer. It
// resolves an owner's guardian list and threshold, validates guardian
// authorization, and stores each guardian's encrypted share in a key-value
// collaborator. The encrypted shares are the only mutable state this layer
// owns; authorization decisions derive entirely from the stored
// configuration.
package guardian
