// Package cryptoutils provides the cryptographic primitives for protecting
// guardian shares in transit and at rest.
//
// Shares are wrapped with ECIES (ECDH key agreement, SHA-256 key derivation,
// AES-GCM authenticated encryption) against each guardian's public key, so
// the recovery service only ever handles ciphertext it cannot open. Guardians
// sign submitted shares with their ECDSA identity key, and passphrase-derived
// wrap keys use Argon2id.
//
// Wire format for wrapped payloads:
//
//	[ephemeral key length (2 bytes)][ephemeral public key][12-byte nonce][ciphertext]
package cryptoutils
