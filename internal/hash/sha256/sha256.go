// Package sha256 provides SHA-256 hashing utilities.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
)

// Hasher computes hex SHA-256 digests.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash hashes the input and returns a hex digest.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// DigestWriter accumulates a digest of everything written through it.
// It lets streaming downloads compute a checksum without buffering the
// whole body in memory.
type DigestWriter struct {
	h hash.Hash
}

// NewDigestWriter returns an empty DigestWriter.
func NewDigestWriter() *DigestWriter {
	return &DigestWriter{h: sha256.New()}
}

// Write feeds p into the digest. It never fails.
func (w *DigestWriter) Write(p []byte) (int, error) {
	return w.h.Write(p)
}

// Sum returns the hex digest of all bytes written so far.
func (w *DigestWriter) Sum() string {
	return hex.EncodeToString(w.h.Sum(nil))
}
