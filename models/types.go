// File: models/types.go
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// HashAlgorithm names the 256-bit digest used for canonical block hashes.
type HashAlgorithm string

const (
	SHA256    HashAlgorithm = "sha256"
	Keccak256 HashAlgorithm = "keccak256"

	// HashHexLength is the length of every hex encoded block hash.
	HashHexLength = 64
)

// ParseHashAlgorithm maps a config value to a HashAlgorithm. An empty
// string selects SHA256.
func ParseHashAlgorithm(s string) (HashAlgorithm, error) {
	switch HashAlgorithm(strings.ToLower(strings.TrimSpace(s))) {
	case "", SHA256:
		return SHA256, nil
	case Keccak256:
		return Keccak256, nil
	default:
		return "", fmt.Errorf("unknown hash algorithm %q (want %s or %s)", s, SHA256, Keccak256)
	}
}

// Sum returns the lower-case hex digest of data.
func (a HashAlgorithm) Sum(data []byte) string {
	switch a {
	case Keccak256:
		h := sha3.NewLegacyKeccak256()
		h.Write(data)
		return hex.EncodeToString(h.Sum(nil))
	default:
		sum := sha256.Sum256(data)
		return hex.EncodeToString(sum[:])
	}
}

func (a HashAlgorithm) String() string {
	if a == "" {
		return string(SHA256)
	}
	return string(a)
}
