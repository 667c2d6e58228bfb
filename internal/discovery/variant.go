// Package discovery enumerates the wallets holding a mint.
package discovery

import (
	"context"
	"io"
	"log"

	"spl-distributor/internal/domain"
	"spl-distributor/internal/retry"
	"spl-distributor/internal/solana"
)

// VariantDetector determines which token program owns a mint. Detection
// failure is never fatal: it degrades to the standard variant and lets the
// collector's fallback chain handle the rest.
type VariantDetector struct {
	rpc     solana.RPCClient
	retrier *retry.Controller
	logger  *log.Logger
}

// NewVariantDetector creates a detector. A nil logger discards output.
func NewVariantDetector(rpc solana.RPCClient, retrier *retry.Controller, logger *log.Logger) *VariantDetector {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &VariantDetector{rpc: rpc, retrier: retrier, logger: logger}
}

// Detect fetches the mint account's owning program and maps it to a variant.
func (d *VariantDetector) Detect(ctx context.Context, mint solana.Address) domain.ProgramVariant {
	var info *solana.AccountInfo
	err := d.retrier.Do(ctx, "detect variant", func(ctx context.Context) error {
		var err error
		info, err = d.rpc.GetAccountInfo(ctx, mint)
		return err
	})
	if err != nil {
		d.logger.Printf("WARN: variant detection for %s failed, assuming standard: %v", mint, err)
		return domain.VariantStandard
	}
	if info == nil {
		d.logger.Printf("WARN: mint account %s not found, assuming standard", mint)
		return domain.VariantStandard
	}

	if info.Owner == solana.Token2022Program {
		return domain.VariantRestrictedIndex
	}
	return domain.VariantStandard
}
