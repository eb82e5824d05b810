package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for fingerprints. The version suffix allows changing the
// encoding without colliding with old fingerprints.
const (
	DomainState = "feedstore/state/v1"
	DomainTrace = "feedstore/trace/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint returns the state-domain hash of v's canonical encoding.
func Fingerprint(v any) (string, error) {
	return FingerprintIn(DomainState, v)
}

// FingerprintIn hashes v's canonical encoding under domain.
func FingerprintIn(domain string, v any) (string, error) {
	data, err := Canonical(v)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return hashWithDomain(domain, data), nil
}

// MustFingerprint is like Fingerprint but panics on error.
// Use only in tests or when v is known to encode.
func MustFingerprint(v any) string {
	fp, err := Fingerprint(v)
	if err != nil {
		panic(err)
	}
	return fp
}
