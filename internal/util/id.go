package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a random hex ID, used to correlate one request across the
// relay and codes logs.
func NewID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
