// Package idhash computes deterministic identifiers.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeRunID computes a deterministic distribution run ID using SHA256.
// Formula: SHA256(mint|total_amount|mode|created_at_unix_nano)
// Returns hex-encoded hash (64 characters).
func ComputeRunID(mint string, totalAmount uint64, mode string, createdAtNano int64) string {
	data := fmt.Sprintf("%s|%d|%s|%d",
		mint,
		totalAmount,
		mode,
		createdAtNano,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
