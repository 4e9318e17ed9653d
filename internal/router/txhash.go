package router

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// NewTxHash generates a 0x-prefixed 64-hex-character transaction identifier.
// It draws 32 bytes from crypto/rand so identifiers are unique for all
// practical purposes.
func NewTxHash() (string, error) {
	var buf [32]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("router: generate tx hash: %w", err)
	}
	return "0x" + hex.EncodeToString(buf[:]), nil
}
