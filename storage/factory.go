package storage

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/custodia/guardian-recovery-backend/interfaces"
)

// StoreFactory creates key-value stores from URI strings and manages
// multi-backend configurations for redundant storage.
type StoreFactory struct {
	log *slog.Logger
}

// NewStoreFactory creates a factory instance that can create storage
// backends.
func NewStoreFactory(logger *slog.Logger) *StoreFactory {
	return &StoreFactory{log: logger}
}

// StoreFor creates a storage backend from a location URI.
// The URI format should be [scheme]://[auth@]host[:port][/path][?params]
//
// Supported schemes:
//   - memory:// - In-process map storage
//   - file:// - Local filesystem storage
//   - s3:// - Amazon S3 or compatible object storage
//   - ipfs:// - IPFS node via the mutable files API
//   - vault:// - HashiCorp Vault KV v2 secrets engine
//
// Returns an error if the URI is invalid or the scheme is unsupported.
func (sf *StoreFactory) StoreFor(location interfaces.StoreLocation) (interfaces.KeyValueStore, error) {
	u, err := url.Parse(string(location))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrInvalidLocationURI, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "memory":
		return NewMemoryStore(sf.log), nil
	case "file":
		return sf.createFileStore(u)
	case "s3":
		return sf.createS3Store(u)
	case "ipfs":
		return sf.createIPFSStore(u)
	case "vault":
		return sf.createVaultStore(u)
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", interfaces.ErrInvalidLocationURI, u.Scheme)
	}
}

// CreateMultiStore creates a multi-backend store from a list of location
// URIs. Returns an error if no valid backends could be created.
func (sf *StoreFactory) CreateMultiStore(locations []interfaces.StoreLocation) (interfaces.KeyValueStore, error) {
	backends := make([]interfaces.KeyValueStore, 0, len(locations))

	for _, uri := range locations {
		backend, err := sf.StoreFor(uri)
		if err != nil {
			sf.log.Warn("Failed to create storage backend",
				"err", err,
				slog.String("locationURI", string(uri)))
			continue
		}
		backends = append(backends, backend)
	}

	if len(backends) == 0 {
		return nil, fmt.Errorf("no valid storage backends created")
	}

	return NewMultiStore(backends, sf.log), nil
}

// createFileStore creates a file system storage backend.
// URI format: file:///absolute/path/ or file://./relative/path/
func (sf *StoreFactory) createFileStore(u *url.URL) (interfaces.KeyValueStore, error) {
	sf.log.Debug("Creating file backend", slog.String("uri", u.String()))

	path := u.Path
	if u.Host != "" {
		path = u.Host + "/" + strings.TrimPrefix(path, "/")
	}
	if path == "" {
		return nil, fmt.Errorf("empty path in file URI: %s", u.String())
	}

	return NewFileStore(path, sf.log)
}

// createS3Store creates an S3 or S3-compatible storage backend.
// URI format: s3://[ACCESS_KEY:SECRET_KEY@]bucket-name/prefix/?region=us-west-2&endpoint=custom.s3.com
func (sf *StoreFactory) createS3Store(u *url.URL) (interfaces.KeyValueStore, error) {
	sf.log.Debug("Creating S3 backend", slog.String("uri", u.String()))

	bucketName := u.Host
	prefix := strings.TrimPrefix(u.Path, "/")

	query := u.Query()
	region := query.Get("region")
	if region == "" {
		region = "us-east-1"
	}
	endpoint := query.Get("endpoint")

	var accessKey, secretKey string
	if u.User != nil {
		accessKey = u.User.Username()
		secretKey, _ = u.User.Password()
		sf.log.Debug("Using embedded credentials for write access")
	} else {
		sf.log.Debug("No credentials provided, S3 write operations may fail")
	}

	return NewS3Store(bucketName, prefix, region, endpoint, accessKey, secretKey, sf.log)
}

// createIPFSStore creates an IPFS storage backend.
// URI format: ipfs://host:port/root-path
func (sf *StoreFactory) createIPFSStore(u *url.URL) (interfaces.KeyValueStore, error) {
	sf.log.Debug("Creating IPFS backend", slog.String("uri", u.String()))

	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "5001" // Default IPFS API port
	}

	rootPath := strings.Trim(u.Path, "/")
	if rootPath == "" {
		rootPath = "guardian-recovery"
	}

	return NewIPFSStore(host, port, rootPath, sf.log)
}

// createVaultStore creates a HashiCorp Vault storage backend.
// URI format: vault://host:port/mount/data-path?token=...&tls=true
func (sf *StoreFactory) createVaultStore(u *url.URL) (interfaces.KeyValueStore, error) {
	sf.log.Debug("Creating Vault backend", slog.String("uri", u.String()))

	query := u.Query()
	token := query.Get("token")
	if token == "" {
		return nil, fmt.Errorf("%w: vault URI requires a token parameter", interfaces.ErrInvalidLocationURI)
	}

	scheme := "http"
	if query.Get("tls") == "true" {
		scheme = "https"
	}
	address := fmt.Sprintf("%s://%s", scheme, u.Host)

	parts := strings.SplitN(strings.Trim(u.Path, "/"), "/", 2)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("%w: vault URI requires /mount/data-path", interfaces.ErrInvalidLocationURI)
	}

	return NewVaultStore(address, parts[0], parts[1], token, sf.log)
}
