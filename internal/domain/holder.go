// Package domain defines the engine's data model.
package domain

import (
	"time"

	"spl-distributor/internal/solana"
)

// TokenHolder is one wallet holding a balance of the mint. Percentage is
// derived from the snapshot totals and never independently mutated.
type TokenHolder struct {
	Address    solana.Address `json:"address"`
	Balance    uint64         `json:"balance"`
	Percentage float64        `json:"percentage"`
}

// DiscoveryTier identifies which fallback tier produced a snapshot.
type DiscoveryTier string

const (
	// TierIndexScan is the filtered program-account scan.
	TierIndexScan DiscoveryTier = "index-scan"
	// TierLargestAccounts is the largest-token-accounts probe.
	TierLargestAccounts DiscoveryTier = "largest-accounts"
	// TierHistory is the transaction-history reconstruction.
	TierHistory DiscoveryTier = "history"
	// TierNone means discovery exhausted all tiers.
	TierNone DiscoveryTier = "none"
)

// HolderSnapshot is the authoritative holder set for a mint at collection
// time. Produced fresh per collect call; callers cache externally if needed.
type HolderSnapshot struct {
	Mint         solana.Address `json:"mint"`
	Decimals     uint8          `json:"decimals"`
	Holders      []TokenHolder  `json:"holders"`
	TotalBalance uint64         `json:"totalBalance"`
	Tier         DiscoveryTier  `json:"tier"`
	// Approximate marks history-reconstructed snapshots, which are bounded
	// by scan depth and may miss dormant holders.
	Approximate bool      `json:"approximate"`
	CollectedAt time.Time `json:"collectedAt"`
}

// RecomputePercentages rederives TotalBalance and each holder's percentage.
// A zero total yields zero percentages rather than dividing by zero.
func (s *HolderSnapshot) RecomputePercentages() {
	var total uint64
	for _, h := range s.Holders {
		total += h.Balance
	}
	s.TotalBalance = total

	for i := range s.Holders {
		if total == 0 {
			s.Holders[i].Percentage = 0
			continue
		}
		s.Holders[i].Percentage = float64(s.Holders[i].Balance) / float64(total) * 100
	}
}

// ProgramVariant tags which on-chain token program owns a mint.
type ProgramVariant string

const (
	// VariantStandard is the original token program, discoverable through
	// the secondary account index.
	VariantStandard ProgramVariant = "standard"
	// VariantRestrictedIndex is the extensions program, whose accounts are
	// excluded from the secondary index.
	VariantRestrictedIndex ProgramVariant = "restricted-index"
)
