package clienthash

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher produces deterministic, non-reversible short identifiers from
// client IP addresses. It hashes salt+IP (SHA256), takes the first `nBytes`
// bytes of the digest, and hex-encodes them.
// Deterministic: same IP => same hash (given same salt), so the result can
// key rate-limit windows and dedup markers without storing the raw IP.
type Hasher struct {
	salt   string
	nBytes int
}

// New returns a Hasher using the given salt. An empty salt is allowed but
// weakens the anonymization, so deployments should set one.
func New(salt string) *Hasher {
	return &Hasher{salt: salt, nBytes: 6} // 6 bytes -> 12 hex chars
}

// Hash returns the anonymized form of ip.
func (h *Hasher) Hash(ip string) string {
	sum := sha256.Sum256([]byte(h.salt + ip))
	return hex.EncodeToString(sum[:h.nBytes])
}
