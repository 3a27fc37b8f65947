package interfaces

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

// ContentKind indicates the storage namespace a key lives in.
type ContentKind int

const (
	// SessionKind for recovery session records.
	SessionKind ContentKind = iota
	// ShareKind for per-guardian encrypted share bundles.
	ShareKind
	// ConfigKind for per-owner recovery configuration.
	ConfigKind
)

// String returns the namespace name.
func (k ContentKind) String() string {
	switch k {
	case SessionKind:
		return "sessions"
	case ShareKind:
		return "shares"
	case ConfigKind:
		return "configs"
	default:
		return "unknown"
	}
}

// SessionKey returns the store key for a session record.
func SessionKey(sessionID string) string {
	return sessionID
}

// ActiveSessionKey returns the store key for the owner's active-session
// pointer. The pointer holds the session id of the owner's single active
// recovery attempt.
func ActiveSessionKey(owner AccountAddress) string {
	return "active-" + owner.String()
}

// ShareKey returns the store key for a guardian's encrypted share bundle
// within a session.
func ShareKey(sessionID string, guardian AccountAddress) string {
	return sessionID + "/" + guardian.String()
}

// ConfigKey returns the store key for an owner's recovery configuration.
func ConfigKey(owner AccountAddress) string {
	return owner.String()
}

var (
	// ErrKeyNotFound is returned when a key is absent from the store.
	ErrKeyNotFound = errors.New("key not found")

	// ErrBackendUnavailable is returned when a storage backend is not
	// accessible, whether due to network issues, authentication failures, or
	// service outages.
	ErrBackendUnavailable = errors.New("storage backend unavailable")

	// ErrInvalidLocationURI is returned when a store location URI is
	// malformed or names an unsupported scheme.
	ErrInvalidLocationURI = errors.New("invalid store location URI")
)

// StoreLocation is a URI identifying a key-value store backend.
// Format: [scheme]://[auth@]host[:port][/path][?params]
type StoreLocation string

// String returns the raw URI.
func (loc StoreLocation) String() string {
	return string(loc)
}

// Validate checks the URI format and that the scheme is supported.
func (loc StoreLocation) Validate() error {
	u, err := url.Parse(string(loc))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLocationURI, err)
	}

	switch u.Scheme {
	case "memory", "file", "s3", "ipfs", "vault":
		return nil
	default:
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidLocationURI, u.Scheme)
	}
}

// KeyValueStore provides keyed persistence for sessions, shares, and
// configuration. No transactional guarantees beyond last-write-wins are
// assumed; callers needing read-modify-write atomicity serialize per key
// themselves.
type KeyValueStore interface {
	// Get retrieves data by namespace and key. Returns ErrKeyNotFound when
	// the key is absent.
	Get(ctx context.Context, kind ContentKind, key string) ([]byte, error)

	// Put saves data under the namespace and key, overwriting any previous
	// value.
	Put(ctx context.Context, kind ContentKind, key string, data []byte) error

	// Available checks if the backend is accessible.
	Available(ctx context.Context) bool

	// Name returns an identifier for logging.
	Name() string

	// LocationURI returns the URI identifying this backend.
	LocationURI() string
}

// StoreFactory creates key-value stores.
type StoreFactory interface {
	// StoreFor creates a backend from a URI.
	// Supports memory://, file://, s3://, ipfs://, vault://
	StoreFor(location StoreLocation) (KeyValueStore, error)

	// CreateMultiStore creates an aggregated store that writes to every
	// backend and reads from the first that has the key.
	CreateMultiStore(locations []StoreLocation) (KeyValueStore, error)
}
