package discovery

import (
	"context"
	"io"
	"log"
	"sort"
	"time"

	"spl-distributor/internal/domain"
	"spl-distributor/internal/retry"
	"spl-distributor/internal/solana"
)

// DefaultHistoryDepth bounds the signature window scanned by the
// history-reconstruction tier.
const DefaultHistoryDepth = 1000

// Collector produces the authoritative holder snapshot for a mint through a
// three-tier fallback chain: filtered program-account scan, largest-accounts
// probe, transaction-history reconstruction. A fully exhausted chain yields
// an empty snapshot rather than an error; an empty distributable set is a
// valid business outcome.
type Collector struct {
	rpc          solana.RPCClient
	detector     *VariantDetector
	retrier      *retry.Controller
	logger       *log.Logger
	historyDepth int
}

// CollectorOption configures Collector.
type CollectorOption func(*Collector)

// WithHistoryDepth sets the tier-3 signature scan depth.
func WithHistoryDepth(n int) CollectorOption {
	return func(c *Collector) {
		c.historyDepth = n
	}
}

// NewCollector creates a Collector. A nil logger discards output.
func NewCollector(rpc solana.RPCClient, detector *VariantDetector, retrier *retry.Controller, logger *log.Logger, opts ...CollectorOption) *Collector {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	c := &Collector{
		rpc:          rpc,
		detector:     detector,
		retrier:      retrier,
		logger:       logger,
		historyDepth: DefaultHistoryDepth,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect enumerates holders of the mint with balance >= threshold.
// Deterministic given identical chain state: holders are ordered by balance
// descending, address ascending on ties.
func (c *Collector) Collect(ctx context.Context, mint solana.Address, threshold uint64) (*domain.HolderSnapshot, error) {
	variant := c.detector.Detect(ctx, mint)

	snapshot := &domain.HolderSnapshot{
		Mint:        mint,
		CollectedAt: time.Now().UTC(),
	}

	if supply, err := c.tokenSupply(ctx, mint); err == nil {
		snapshot.Decimals = supply.Decimals
	} else {
		c.logger.Printf("WARN: token supply for %s unavailable: %v", mint, err)
	}

	// Tier 1: index scan. Extended-program accounts are excluded from the
	// secondary index, so this tier is only valid for the standard variant.
	if variant == domain.VariantStandard {
		holders, err := c.collectByIndexScan(ctx, mint, threshold)
		if err == nil {
			c.finish(snapshot, holders, domain.TierIndexScan, false)
			return snapshot, nil
		}
		c.logger.Printf("WARN: index scan for %s failed, falling back: %v", mint, err)
	}

	// Tier 2: largest-accounts probe.
	holders, decimals, err := c.collectByLargestAccounts(ctx, mint, threshold)
	if err == nil {
		if snapshot.Decimals == 0 && decimals > 0 {
			snapshot.Decimals = decimals
		}
		c.finish(snapshot, holders, domain.TierLargestAccounts, false)
		return snapshot, nil
	}
	c.logger.Printf("WARN: largest-accounts probe for %s failed, falling back: %v", mint, err)

	// Tier 3: history reconstruction, bounded by scan depth.
	holders, err = c.collectByHistory(ctx, mint, threshold)
	if err == nil {
		c.finish(snapshot, holders, domain.TierHistory, true)
		return snapshot, nil
	}
	c.logger.Printf("WARN: history reconstruction for %s failed: %v", mint, err)

	// All tiers exhausted: empty set, caller decides whether that is an error.
	c.finish(snapshot, nil, domain.TierNone, false)
	return snapshot, nil
}

// finish orders holders and derives snapshot-wide fields.
func (c *Collector) finish(snapshot *domain.HolderSnapshot, holders []domain.TokenHolder, tier domain.DiscoveryTier, approximate bool) {
	sort.Slice(holders, func(i, j int) bool {
		if holders[i].Balance != holders[j].Balance {
			return holders[i].Balance > holders[j].Balance
		}
		return holders[i].Address.String() < holders[j].Address.String()
	})

	snapshot.Holders = holders
	snapshot.Tier = tier
	snapshot.Approximate = approximate
	snapshot.RecomputePercentages()
}

func (c *Collector) tokenSupply(ctx context.Context, mint solana.Address) (*solana.TokenAmount, error) {
	var supply *solana.TokenAmount
	err := c.retrier.Do(ctx, "get token supply", func(ctx context.Context) error {
		var err error
		supply, err = c.rpc.GetTokenSupply(ctx, mint)
		return err
	})
	return supply, err
}

// collectByIndexScan queries all token accounts for the mint through the
// program-account index, filtered by account size and the mint-reference
// byte offset, then aggregates balances per owning wallet.
func (c *Collector) collectByIndexScan(ctx context.Context, mint solana.Address, threshold uint64) ([]domain.TokenHolder, error) {
	opts := &solana.ProgramAccountsOpts{
		DataSize: solana.TokenAccountSize,
		Memcmp: []solana.MemcmpFilter{
			{Offset: 0, Bytes: mint.Bytes()},
		},
	}

	var accounts []solana.ProgramAccount
	err := c.retrier.Do(ctx, "program account scan", func(ctx context.Context) error {
		var err error
		accounts, err = c.rpc.GetProgramAccounts(ctx, solana.TokenProgram, opts)
		return err
	})
	if err != nil {
		return nil, err
	}

	balances := make(map[solana.Address]uint64)
	for _, acc := range accounts {
		token, err := solana.DecodeTokenAccount(acc.Account.Data)
		if err != nil {
			c.logger.Printf("WARN: skipping undecodable token account %s: %v", acc.Address, err)
			continue
		}
		if token.Mint != mint {
			continue
		}
		balances[token.Owner] += token.Amount
	}

	return holdersFromBalances(balances, threshold), nil
}

// collectByLargestAccounts queries the largest-accounts view and resolves
// each token account's owning wallet via a direct account fetch. Primary
// path for the restricted-index variant.
func (c *Collector) collectByLargestAccounts(ctx context.Context, mint solana.Address, threshold uint64) ([]domain.TokenHolder, uint8, error) {
	var largest []solana.TokenAccountBalance
	err := c.retrier.Do(ctx, "largest accounts probe", func(ctx context.Context) error {
		var err error
		largest, err = c.rpc.GetTokenLargestAccounts(ctx, mint)
		return err
	})
	if err != nil {
		return nil, 0, err
	}

	var decimals uint8
	balances := make(map[solana.Address]uint64)
	for _, entry := range largest {
		if entry.Decimals > 0 {
			decimals = entry.Decimals
		}
		if entry.Amount == 0 {
			continue
		}

		var info *solana.AccountInfo
		err := c.retrier.Do(ctx, "resolve token account owner", func(ctx context.Context) error {
			var err error
			info, err = c.rpc.GetAccountInfo(ctx, entry.Address)
			return err
		})
		if err != nil {
			return nil, 0, err
		}
		if info == nil {
			c.logger.Printf("WARN: token account %s vanished during probe", entry.Address)
			continue
		}

		token, err := solana.DecodeTokenAccount(info.Data)
		if err != nil {
			c.logger.Printf("WARN: skipping undecodable token account %s: %v", entry.Address, err)
			continue
		}
		balances[token.Owner] += entry.Amount
	}

	return holdersFromBalances(balances, threshold), decimals, nil
}

// collectByHistory reconstructs holders from recent transactions referencing
// the mint, taking per owner the maximum balance observed in the window.
func (c *Collector) collectByHistory(ctx context.Context, mint solana.Address, threshold uint64) ([]domain.TokenHolder, error) {
	remaining := c.historyDepth
	var before string
	balances := make(map[solana.Address]uint64)

	for remaining > 0 {
		limit := remaining
		if limit > 1000 {
			limit = 1000
		}
		opts := &solana.SignaturesOpts{Limit: limit}
		if before != "" {
			opts.Before = before
		}

		var sigs []solana.SignatureInfo
		err := c.retrier.Do(ctx, "mint signature scan", func(ctx context.Context) error {
			var err error
			sigs, err = c.rpc.GetSignaturesForAddress(ctx, mint, opts)
			return err
		})
		if err != nil {
			return nil, err
		}
		if len(sigs) == 0 {
			break
		}

		for _, sig := range sigs {
			if sig.Err != nil {
				continue
			}

			var tx *solana.Transaction
			err := c.retrier.Do(ctx, "fetch transaction", func(ctx context.Context) error {
				var err error
				tx, err = c.rpc.GetTransaction(ctx, sig.Signature)
				return err
			})
			if err != nil {
				return nil, err
			}
			if tx == nil || tx.Meta == nil {
				continue
			}

			mintStr := mint.String()
			for _, tb := range tx.Meta.PostTokenBalances {
				if tb.Mint != mintStr || tb.Owner == "" {
					continue
				}
				owner, err := solana.ParseAddress(tb.Owner)
				if err != nil {
					c.logger.Printf("WARN: skipping malformed owner %q: %v", tb.Owner, err)
					continue
				}
				if tb.Amount > balances[owner] {
					balances[owner] = tb.Amount
				}
			}
		}

		remaining -= len(sigs)
		before = sigs[len(sigs)-1].Signature
	}

	return holdersFromBalances(balances, threshold), nil
}

func holdersFromBalances(balances map[solana.Address]uint64, threshold uint64) []domain.TokenHolder {
	holders := make([]domain.TokenHolder, 0, len(balances))
	for addr, balance := range balances {
		if balance == 0 || balance < threshold {
			continue
		}
		holders = append(holders, domain.TokenHolder{Address: addr, Balance: balance})
	}
	return holders
}
