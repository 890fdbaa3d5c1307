// Package services provides technical concerns used by the flows: fingerprinting and event publishing
package services

import (
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// ErrPepperTooLong is returned when the fingerprint key exceeds the BLAKE2b key size
var ErrPepperTooLong = errors.New("fingerprint pepper must be at most 64 bytes")

// FingerprintHasher turns identifying signals (IP, user agent) into one-way digests
type FingerprintHasher interface {
	// Hash returns the hex digest of value, or nil when there is no signal
	Hash(value *string) *string
}

// FingerprintServiceImpl implements FingerprintHasher with BLAKE2b-256
type FingerprintServiceImpl struct {
	pepper []byte
}

// NewFingerprintService creates a hasher; a non-empty pepper keys the digest
func NewFingerprintService(pepper string) (FingerprintHasher, error) {
	if len(pepper) > blake2b.Size {
		return nil, ErrPepperTooLong
	}
	var key []byte
	if pepper != "" {
		key = []byte(pepper)
	}
	return &FingerprintServiceImpl{pepper: key}, nil
}

// Hash digests the trimmed value. Absent, empty and blank input all mean
// "no signal" and yield nil, never the digest of "".
func (s *FingerprintServiceImpl) Hash(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}

	h, err := blake2b.New256(s.pepper)
	if err != nil {
		// key length is checked in the constructor
		return nil
	}
	h.Write([]byte(trimmed))
	digest := hex.EncodeToString(h.Sum(nil))
	return &digest
}
