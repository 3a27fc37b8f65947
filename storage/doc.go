// Package storage provides keyed persistence backends for recovery sessions,
// encrypted guardian shares, and per-owner recovery configuration.
//
// Backends implement interfaces.KeyValueStore and are created from location
// URIs by StoreFactory:
//
//   - memory:// - In-process map, for tests and single-node deployments
//   - file:///var/lib/recovery - Local filesystem storage
//   - s3://[KEY:SECRET@]bucket/prefix?region=us-east-1 - Amazon S3 or compatible
//   - ipfs://host:5001 - IPFS node, keyed via the mutable files API
//   - vault://host:8200/secret/recovery?token=... - HashiCorp Vault KV v2
//
// MultiStore aggregates several backends: writes go to every available
// backend and reads return from the first backend holding the key.
package storage
