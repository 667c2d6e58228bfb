package idhash

import (
	"testing"
)

func TestComputeRunID(t *testing.T) {
	tests := []struct {
		name        string
		mint        string
		totalAmount uint64
		mode        string
		createdAt   int64
		wantLen     int // hash length should be 64
	}{
		{
			name:        "equal mode",
			mint:        "TokenMint123ABC",
			totalAmount: 1_000_000,
			mode:        "equal",
			createdAt:   1700000000000000000,
			wantLen:     64,
		},
		{
			name:        "proportional mode",
			mint:        "AnotherMint999",
			totalAmount: 42,
			mode:        "proportional",
			createdAt:   1700000001000000000,
			wantLen:     64,
		},
		{
			name:        "zero amount",
			mint:        "TokenMint123ABC",
			totalAmount: 0,
			mode:        "equal",
			createdAt:   1700000000000000000,
			wantLen:     64,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeRunID(tt.mint, tt.totalAmount, tt.mode, tt.createdAt)

			if len(got) != tt.wantLen {
				t.Errorf("ComputeRunID() length = %d, want %d", len(got), tt.wantLen)
			}

			// Verify determinism: same inputs should produce same output
			got2 := ComputeRunID(tt.mint, tt.totalAmount, tt.mode, tt.createdAt)
			if got != got2 {
				t.Errorf("ComputeRunID() not deterministic: %s != %s", got, got2)
			}
		})
	}
}

func TestComputeRunID_Uniqueness(t *testing.T) {
	base := ComputeRunID("TokenMint123ABC", 1000, "equal", 1700000000000000000)

	variants := []string{
		ComputeRunID("DifferentMint", 1000, "equal", 1700000000000000000),
		ComputeRunID("TokenMint123ABC", 1001, "equal", 1700000000000000000),
		ComputeRunID("TokenMint123ABC", 1000, "proportional", 1700000000000000000),
		ComputeRunID("TokenMint123ABC", 1000, "equal", 1700000000000000001),
	}

	for i, v := range variants {
		if v == base {
			t.Errorf("Variant %d should produce a different ID", i)
		}
	}
}
