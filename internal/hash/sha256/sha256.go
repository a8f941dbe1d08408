// Package sha256 fingerprints fetched page bodies for archive filenames.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// fingerprintLen is the number of hex characters kept from the digest.
const fingerprintLen = 16

// Hasher implements menu.Hasher with truncated SHA-256 digests.
type Hasher struct{}

// New returns a SHA-256 fingerprinter.
func New() *Hasher {
	return &Hasher{}
}

// Fingerprint returns the leading hex characters of the body's SHA-256
// digest. An unchanged page maps to the same archive name on every fetch.
func (h *Hasher) Fingerprint(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:fingerprintLen], nil
}
