// Package orchestrator wires discovery, allocation and execution into the
// engine's top-level operations: collect, simulate, execute.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"spl-distributor/internal/allocation"
	"spl-distributor/internal/discovery"
	"spl-distributor/internal/distribution"
	"spl-distributor/internal/domain"
	"spl-distributor/internal/observability"
	"spl-distributor/internal/retry"
	"spl-distributor/internal/solana"
	"spl-distributor/internal/storage"
)

// Orchestrator coordinates one mint's discovery and distribution lifecycle.
// Flow: variant detection → holder discovery → allocation → batched execution.
type Orchestrator struct {
	rpc       solana.RPCClient
	detector  *discovery.VariantDetector
	collector *discovery.Collector
	executor  *distribution.Executor
	retrier   *retry.Controller

	// Optional persistence
	distributionStore storage.DistributionStore
	snapshotStore     storage.SnapshotStore

	minimumBalance uint64
	logger         *log.Logger
}

// Options for creating Orchestrator.
type Options struct {
	// Required
	RPC     solana.RPCClient
	Retrier *retry.Controller

	// Required for Execute, unused by Collect and Simulate
	Signer *solana.Keypair

	// Optional stores; nil disables persistence
	DistributionStore storage.DistributionStore
	SnapshotStore     storage.SnapshotStore

	// Tuning
	MinimumBalance uint64 // holder balance threshold for discovery
	HistoryDepth   int    // signature scan depth for tier-3 discovery
	Concurrency    int    // in-batch transfer concurrency
	Confirmer      distribution.Confirmer

	Logger *log.Logger
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	detector := discovery.NewVariantDetector(opts.RPC, opts.Retrier, logger)

	var collectorOpts []discovery.CollectorOption
	if opts.HistoryDepth > 0 {
		collectorOpts = append(collectorOpts, discovery.WithHistoryDepth(opts.HistoryDepth))
	}
	collector := discovery.NewCollector(opts.RPC, detector, opts.Retrier, logger, collectorOpts...)

	var executorOpts []distribution.ExecutorOption
	if opts.Concurrency > 0 {
		executorOpts = append(executorOpts, distribution.WithConcurrency(opts.Concurrency))
	}
	if opts.Confirmer != nil {
		executorOpts = append(executorOpts, distribution.WithConfirmer(opts.Confirmer))
	}
	executor := distribution.NewExecutor(opts.RPC, opts.Signer, opts.Retrier, logger, executorOpts...)

	return &Orchestrator{
		rpc:               opts.RPC,
		detector:          detector,
		collector:         collector,
		executor:          executor,
		retrier:           opts.Retrier,
		distributionStore: opts.DistributionStore,
		snapshotStore:     opts.SnapshotStore,
		minimumBalance:    opts.MinimumBalance,
		logger:            logger,
	}
}

// Collect runs holder discovery for a mint and records the snapshot.
func (o *Orchestrator) Collect(ctx context.Context, mint solana.Address) (*domain.HolderSnapshot, error) {
	snapshot, err := o.collector.Collect(ctx, mint, o.minimumBalance)
	if err != nil {
		return nil, fmt.Errorf("collect holders: %w", err)
	}

	observability.RecordDiscovery(string(snapshot.Tier), len(snapshot.Holders))
	o.logger.Printf("[orchestrator] collected %d holders for %s (tier=%s approximate=%t)",
		len(snapshot.Holders), mint, snapshot.Tier, snapshot.Approximate)

	if o.snapshotStore != nil {
		if err := o.snapshotStore.Insert(ctx, snapshot); err != nil {
			o.logger.Printf("[orchestrator] WARN: persist snapshot for %s: %v", mint, err)
		}
	}

	return snapshot, nil
}

// SimulationResult is an allocation preview. Nothing is submitted on-chain.
type SimulationResult struct {
	Mint           solana.Address        `json:"mint"`
	Mode           domain.AllocationMode `json:"mode"`
	Tier           domain.DiscoveryTier  `json:"tier"`
	Approximate    bool                  `json:"approximate"`
	HolderCount    int                   `json:"holderCount"`
	TotalRequested uint64                `json:"totalRequested"`
	Plan           *allocation.Plan      `json:"plan"`
}

// Simulate computes the allocation a request would produce without
// submitting anything. Discovery runs only when the request carries no
// holder list of its own.
func (o *Orchestrator) Simulate(ctx context.Context, req domain.DistributionRequest) (*SimulationResult, error) {
	holders, tier, approximate, _, err := o.resolveHolders(ctx, req)
	if err != nil {
		return nil, err
	}

	plan, err := allocation.Compute(holders, req.TotalAmount, req.Mode, req.MinimumAmount)
	if err != nil {
		return nil, fmt.Errorf("compute allocation: %w", err)
	}

	return &SimulationResult{
		Mint:           req.Mint,
		Mode:           req.Mode,
		Tier:           tier,
		Approximate:    approximate,
		HolderCount:    len(holders),
		TotalRequested: req.TotalAmount,
		Plan:           plan,
	}, nil
}

// Execute runs a full distribution: discovery, allocation, batched
// transfers, persistence. Per-recipient failures are captured in the
// result; only run-fatal conditions return an error alongside it.
func (o *Orchestrator) Execute(ctx context.Context, req domain.DistributionRequest) (*domain.DistributionResult, error) {
	holders, _, _, decimals, err := o.resolveHolders(ctx, req)
	if err != nil {
		return nil, err
	}

	plan, err := allocation.Compute(holders, req.TotalAmount, req.Mode, req.MinimumAmount)
	if err != nil {
		return nil, fmt.Errorf("compute allocation: %w", err)
	}
	o.logger.Printf("[orchestrator] allocated %d to %d recipients (%d excluded)",
		plan.TotalAllocated, len(plan.Allocations), len(plan.Excluded))

	variant := o.detector.Detect(ctx, req.Mint)

	started := time.Now()
	result, runErr := o.executor.Run(ctx, distribution.RunParams{
		Mint:         req.Mint,
		TokenProgram: tokenProgramFor(variant),
		Decimals:     decimals,
		Mode:         req.Mode,
		BatchSize:    req.BatchSize,
		Allocations:  plan.Allocations,
	})
	if result != nil {
		observability.RecordRun(string(result.Status), time.Since(started).Seconds(), totalConfirmed(result))
	}
	if runErr != nil {
		return result, fmt.Errorf("execute distribution: %w", runErr)
	}

	if o.distributionStore != nil {
		if err := o.distributionStore.Insert(ctx, result); err != nil {
			return result, fmt.Errorf("persist result %s: %w", result.ID, err)
		}
	}

	return result, nil
}

// History returns past runs for a mint, newest first. Requires a
// distribution store.
func (o *Orchestrator) History(ctx context.Context, mint solana.Address) ([]*domain.DistributionResult, error) {
	if o.distributionStore == nil {
		return nil, fmt.Errorf("no distribution store configured")
	}
	return o.distributionStore.GetByMint(ctx, mint)
}

// resolveHolders returns the holder set a request operates on. An explicit
// holder list on the request bypasses discovery; otherwise discovery runs
// and its tier metadata is propagated. The exclusion filter applies either
// way.
func (o *Orchestrator) resolveHolders(ctx context.Context, req domain.DistributionRequest) ([]domain.TokenHolder, domain.DiscoveryTier, bool, uint8, error) {
	var (
		holders     []domain.TokenHolder
		tier        domain.DiscoveryTier
		approximate bool
		decimals    uint8
	)

	if len(req.Holders) > 0 {
		holders = req.Holders
		tier = domain.TierNone
		d, err := o.mintDecimals(ctx, req.Mint)
		if err != nil {
			return nil, "", false, 0, fmt.Errorf("resolve mint decimals: %w", err)
		}
		decimals = d
	} else {
		snapshot, err := o.Collect(ctx, req.Mint)
		if err != nil {
			return nil, "", false, 0, err
		}
		holders = snapshot.Holders
		tier = snapshot.Tier
		approximate = snapshot.Approximate
		decimals = snapshot.Decimals
	}

	holders = filterExcluded(holders, req.ExcludeAddresses)
	return holders, tier, approximate, decimals, nil
}

func (o *Orchestrator) mintDecimals(ctx context.Context, mint solana.Address) (uint8, error) {
	var amount *solana.TokenAmount
	err := o.retrier.Do(ctx, "getTokenSupply", func(ctx context.Context) error {
		var err error
		amount, err = o.rpc.GetTokenSupply(ctx, mint)
		return err
	})
	if err != nil {
		return 0, err
	}
	return amount.Decimals, nil
}

func filterExcluded(holders []domain.TokenHolder, exclude []solana.Address) []domain.TokenHolder {
	if len(exclude) == 0 {
		return holders
	}
	excluded := make(map[solana.Address]struct{}, len(exclude))
	for _, a := range exclude {
		excluded[a] = struct{}{}
	}

	filtered := make([]domain.TokenHolder, 0, len(holders))
	for _, h := range holders {
		if _, skip := excluded[h.Address]; skip {
			continue
		}
		filtered = append(filtered, h)
	}
	return filtered
}

func tokenProgramFor(variant domain.ProgramVariant) solana.Address {
	if variant == domain.VariantRestrictedIndex {
		return solana.Token2022Program
	}
	return solana.TokenProgram
}

func totalConfirmed(result *domain.DistributionResult) uint64 {
	var total uint64
	for _, rec := range result.Records {
		if rec.Status == domain.RecordConfirmed {
			total += rec.Amount
		}
	}
	return total
}
