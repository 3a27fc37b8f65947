// Package shamir implements byte-wise Shamir secret sharing over GF(256).
//
// A secret is split into N shares such that any K of them reconstruct it
// exactly and any K-1 reveal nothing. Each share's first byte is its
// 1-indexed x position; the remaining bytes are the per-byte polynomial
// evaluations at that position.
package shamir

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// MaxShares is the largest number of shares a single split may produce,
// bounded by the non-zero x positions available in GF(256).
const MaxShares = 255

var (
	// ErrInvalidInput is returned for split parameters outside the valid
	// range or an empty secret.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInsufficientShares is returned when fewer than two well-formed
	// shares are given to Combine. This is a component-level floor only:
	// correctness additionally requires at least the threshold the split was
	// produced with, which callers must enforce out-of-band.
	ErrInsufficientShares = errors.New("insufficient shares")

	// ErrMalformedShare is returned for shares lacking a valid index byte,
	// shorter than two bytes, of inconsistent length, or with duplicate
	// indices.
	ErrMalformedShare = errors.New("malformed share")
)

// Split divides secret into totalShares shares of which threshold are
// required to reconstruct it. Share positions are assigned 1..totalShares.
func Split(secret []byte, threshold, totalShares int) ([][]byte, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: secret must not be empty", ErrInvalidInput)
	}
	if threshold < 2 {
		return nil, fmt.Errorf("%w: threshold must be at least 2", ErrInvalidInput)
	}
	if totalShares > MaxShares {
		return nil, fmt.Errorf("%w: at most %d shares may be produced", ErrInvalidInput, MaxShares)
	}
	if threshold > totalShares {
		return nil, fmt.Errorf("%w: threshold %d exceeds share count %d", ErrInvalidInput, threshold, totalShares)
	}

	shares := make([][]byte, totalShares)
	for i := range shares {
		shares[i] = make([]byte, len(secret)+1)
		shares[i][0] = byte(i + 1)
	}

	// One random polynomial of degree threshold-1 per secret byte, with the
	// secret byte as the constant term.
	coeffs := make([]byte, threshold)
	for b, sb := range secret {
		coeffs[0] = sb
		if _, err := rand.Read(coeffs[1:]); err != nil {
			return nil, fmt.Errorf("failed to draw polynomial coefficients: %w", err)
		}

		for i := range shares {
			shares[i][b+1] = evalPoly(coeffs, byte(i+1))
		}
	}

	return shares, nil
}

// Combine reconstructs the secret from the given shares by interpolating each
// byte's polynomial at x = 0.
//
// Combining fewer shares than the threshold the split was produced with
// yields fabricated output, not an error: the shares alone carry no threshold
// information, so callers MUST enforce the threshold before calling Combine
// (or use ThresholdedSecret, which tracks it).
func Combine(shares [][]byte) ([]byte, error) {
	if len(shares) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 shares, got %d", ErrInsufficientShares, len(shares))
	}

	length := len(shares[0])
	seen := make(map[byte]bool, len(shares))
	for _, share := range shares {
		if len(share) < 2 {
			return nil, fmt.Errorf("%w: share shorter than 2 bytes", ErrMalformedShare)
		}
		if share[0] == 0 {
			return nil, fmt.Errorf("%w: share index byte must be in 1..255", ErrMalformedShare)
		}
		if len(share) != length {
			return nil, fmt.Errorf("%w: shares have inconsistent lengths", ErrMalformedShare)
		}
		if seen[share[0]] {
			return nil, fmt.Errorf("%w: duplicate share index %d", ErrMalformedShare, share[0])
		}
		seen[share[0]] = true
	}

	secret := make([]byte, length-1)
	for b := range secret {
		secret[b] = interpolateAtZero(shares, b+1)
	}
	return secret, nil
}

// IsValidShareFormat reports whether data has the length and index byte of a
// well-formed share.
func IsValidShareFormat(share []byte) bool {
	return len(share) >= 2 && share[0] >= 1
}

// ShareIndex returns the 1-indexed x position of a share.
func ShareIndex(share []byte) (int, error) {
	if !IsValidShareFormat(share) {
		return 0, fmt.Errorf("%w: missing index byte or value", ErrMalformedShare)
	}
	return int(share[0]), nil
}

// EncodeShare returns the stable textual encoding of a share used for
// storage and transport.
func EncodeShare(share []byte) string {
	return base64.StdEncoding.EncodeToString(share)
}

// DecodeShare parses the textual encoding produced by EncodeShare and
// validates the share format.
func DecodeShare(encoded string) ([]byte, error) {
	share, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedShare, err)
	}
	if !IsValidShareFormat(share) {
		return nil, fmt.Errorf("%w: missing index byte or value", ErrMalformedShare)
	}
	return share, nil
}

// EncodeShareBundle encodes several shares as newline-joined text. A
// guardian of weight w holds a bundle of w shares.
func EncodeShareBundle(shares [][]byte) string {
	encoded := make([]string, len(shares))
	for i, share := range shares {
		encoded[i] = EncodeShare(share)
	}
	return strings.Join(encoded, "\n")
}

// DecodeShareBundle parses newline-joined share text, skipping blank lines.
func DecodeShareBundle(bundle string) ([][]byte, error) {
	lines := strings.Split(bundle, "\n")
	shares := make([][]byte, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		share, err := DecodeShare(line)
		if err != nil {
			return nil, err
		}
		shares = append(shares, share)
	}
	if len(shares) == 0 {
		return nil, fmt.Errorf("%w: empty share bundle", ErrMalformedShare)
	}
	return shares, nil
}

// evalPoly evaluates the polynomial with the given coefficients at x using
// Horner's method. coeffs[0] is the constant term.
func evalPoly(coeffs []byte, x byte) byte {
	y := coeffs[len(coeffs)-1]
	for i := len(coeffs) - 2; i >= 0; i-- {
		y = gfMul(y, x) ^ coeffs[i]
	}
	return y
}

// interpolateAtZero computes the Lagrange interpolation at x = 0 of the
// byte at position pos across all shares.
func interpolateAtZero(shares [][]byte, pos int) byte {
	var acc byte
	for i, si := range shares {
		basis := byte(1)
		for j, sj := range shares {
			if i == j {
				continue
			}
			// x_j / (x_j - x_i); subtraction is XOR in GF(2^8).
			basis = gfMul(basis, gfDiv(sj[0], sj[0]^si[0]))
		}
		acc ^= gfMul(si[pos], basis)
	}
	return acc
}

// gfMul multiplies two elements of GF(2^8) modulo the AES polynomial x^8 +
// x^4 + x^3 + x + 1.
func gfMul(a, b byte) byte {
	var p byte
	for b > 0 {
		if b&1 == 1 {
			p ^= a
		}
		carry := a & 0x80
		a <<= 1
		if carry != 0 {
			a ^= 0x1b
		}
		b >>= 1
	}
	return p
}

// gfDiv divides a by b in GF(2^8). b must be non-zero; share x positions
// never are.
func gfDiv(a, b byte) byte {
	return gfMul(a, gfInv(b))
}

// gfInv computes the multiplicative inverse as b^254 by square-and-multiply.
func gfInv(b byte) byte {
	var result byte = 1
	base := b
	for exp := 254; exp > 0; exp >>= 1 {
		if exp&1 == 1 {
			result = gfMul(result, base)
		}
		base = gfMul(base, base)
	}
	return result
}
