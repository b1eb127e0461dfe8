package bundle

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// HashAlgorithm is the canonical content hash algorithm. Hashes travel as
// "sha256:<lowercase hex>" so the algorithm can be rotated without breaking
// stored references.
const HashAlgorithm = "sha256"

// Hash computes the canonical content hash over the exact bytes.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return HashAlgorithm + ":" + hex.EncodeToString(sum[:])
}

// VerifyHash recomputes the content hash and compares it to expected. This is
// an integrity check against corruption, not a tamper-proof secret
// comparison.
func VerifyHash(data []byte, expected string) bool {
	algo, _, ok := strings.Cut(expected, ":")
	if !ok || algo != HashAlgorithm {
		return false
	}
	return Hash(data) == strings.ToLower(expected)
}

// ParseHash splits an "algorithm:hex" digest, rejecting malformed values.
func ParseHash(s string) (algorithm, digest string, err error) {
	algo, hexDigest, ok := strings.Cut(s, ":")
	if !ok || algo == "" || hexDigest == "" {
		return "", "", fmt.Errorf("malformed content hash %q", s)
	}
	if _, err := hex.DecodeString(hexDigest); err != nil {
		return "", "", fmt.Errorf("malformed content hash %q: %w", s, err)
	}
	return algo, strings.ToLower(hexDigest), nil
}
