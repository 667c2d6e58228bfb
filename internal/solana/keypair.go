package solana

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"os"
)

// Keypair is the distributing authority's signing key. The key material is
// read-only after construction.
type Keypair struct {
	address Address
	private ed25519.PrivateKey
}

// NewKeypairFromBytes constructs a keypair from a 64-byte ed25519 private key
// (seed followed by public key, the standard keyfile layout).
func NewKeypairFromBytes(b []byte) (*Keypair, error) {
	if len(b) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("expected %d key bytes, got %d", ed25519.PrivateKeySize, len(b))
	}

	private := ed25519.PrivateKey(b)
	public := private.Public().(ed25519.PublicKey)

	address, err := AddressFromBytes(public)
	if err != nil {
		return nil, fmt.Errorf("derive address: %w", err)
	}

	return &Keypair{address: address, private: private}, nil
}

// LoadKeypair reads a keypair from the standard JSON byte-array keyfile.
func LoadKeypair(path string) (*Keypair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keyfile: %w", err)
	}

	// Keyfiles are a JSON array of byte values, not a base64 string.
	var nums []int
	if err := json.Unmarshal(data, &nums); err != nil {
		return nil, fmt.Errorf("parse keyfile %s: %w", path, err)
	}

	raw := make([]byte, len(nums))
	for i, n := range nums {
		if n < 0 || n > 255 {
			return nil, fmt.Errorf("keyfile %s: byte %d out of range", path, n)
		}
		raw[i] = byte(n)
	}

	return NewKeypairFromBytes(raw)
}

// Address returns the public address of the keypair.
func (k *Keypair) Address() Address {
	return k.address
}

// Sign signs a message with the private key.
func (k *Keypair) Sign(message []byte) []byte {
	return ed25519.Sign(k.private, message)
}
