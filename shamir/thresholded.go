package shamir

import (
	"errors"
	"fmt"
)

// ErrThresholdNotMet is returned by ThresholdedSecret.Combine when fewer
// shares than the tracked threshold have been collected.
var ErrThresholdNotMet = errors.New("threshold not met")

// ThresholdedSecret collects shares toward a known threshold and refuses to
// combine below it. It closes the gap left by the raw Combine, which cannot
// know the threshold a split was produced with and would fabricate output
// when given too few shares.
type ThresholdedSecret struct {
	threshold int
	shares    map[byte][]byte
}

// NewThresholdedSecret creates an empty collector for a secret split with
// the given threshold.
func NewThresholdedSecret(threshold int) (*ThresholdedSecret, error) {
	if threshold < 2 {
		return nil, fmt.Errorf("%w: threshold must be at least 2", ErrInvalidInput)
	}
	return &ThresholdedSecret{
		threshold: threshold,
		shares:    make(map[byte][]byte),
	}, nil
}

// AddShare validates and records one share. A second share with the same
// index is rejected.
func (t *ThresholdedSecret) AddShare(share []byte) error {
	if !IsValidShareFormat(share) {
		return fmt.Errorf("%w: missing index byte or value", ErrMalformedShare)
	}
	if _, exists := t.shares[share[0]]; exists {
		return fmt.Errorf("%w: duplicate share index %d", ErrMalformedShare, share[0])
	}

	stored := make([]byte, len(share))
	copy(stored, share)
	t.shares[share[0]] = stored
	return nil
}

// Count returns the number of distinct shares collected so far.
func (t *ThresholdedSecret) Count() int {
	return len(t.shares)
}

// Threshold returns the threshold this collector enforces.
func (t *ThresholdedSecret) Threshold() int {
	return t.threshold
}

// Combine reconstructs the secret once at least threshold distinct shares
// have been collected.
func (t *ThresholdedSecret) Combine() ([]byte, error) {
	if len(t.shares) < t.threshold {
		return nil, fmt.Errorf("%w: have %d of %d shares", ErrThresholdNotMet, len(t.shares), t.threshold)
	}

	shares := make([][]byte, 0, len(t.shares))
	for _, share := range t.shares {
		shares = append(shares, share)
	}
	return Combine(shares)
}
