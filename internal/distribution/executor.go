package distribution

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"golang.org/x/sync/semaphore"

	"spl-distributor/internal/allocation"
	"spl-distributor/internal/domain"
	"spl-distributor/internal/observability"
	"spl-distributor/internal/retry"
	"spl-distributor/internal/solana"
)

// Default configuration values. The batch size is kept small to bound the
// blast radius of RPC congestion.
const (
	DefaultBatchSize   = 10
	DefaultConcurrency = 4
)

// ErrInsufficientFunds is returned when the authority's token balance cannot
// cover the allocated total. Run-fatal: surfaced before any submission.
var ErrInsufficientFunds = errors.New("insufficient funds for distribution")

// ProgressFunc is invoked after each record reaches a terminal state.
type ProgressFunc func(domain.TransactionRecord)

// RunParams describes one execution run.
type RunParams struct {
	Mint         solana.Address
	TokenProgram solana.Address
	Decimals     uint8
	Mode         domain.AllocationMode
	BatchSize    int
	Allocations  []allocation.Allocation
}

// Executor partitions an allocation into batches and executes the transfers.
// Batches run sequentially; recipients within a batch run concurrently up to
// the configured limit. One recipient's failure never aborts the batch or
// the run.
type Executor struct {
	rpc         solana.RPCClient
	signer      *solana.Keypair
	retrier     *retry.Controller
	confirmer   Confirmer
	logger      *log.Logger
	concurrency int64
	progress    ProgressFunc
}

// ExecutorOption configures Executor.
type ExecutorOption func(*Executor)

// WithConcurrency sets the in-batch concurrency limit.
func WithConcurrency(n int) ExecutorOption {
	return func(e *Executor) {
		if n > 0 {
			e.concurrency = int64(n)
		}
	}
}

// WithProgress sets the per-record progress callback.
func WithProgress(fn ProgressFunc) ExecutorOption {
	return func(e *Executor) {
		e.progress = fn
	}
}

// WithConfirmer sets the confirmation strategy. Defaults to status polling.
func WithConfirmer(c Confirmer) ExecutorOption {
	return func(e *Executor) {
		e.confirmer = c
	}
}

// NewExecutor creates an Executor. A nil logger discards output.
func NewExecutor(rpc solana.RPCClient, signer *solana.Keypair, retrier *retry.Controller, logger *log.Logger, opts ...ExecutorOption) *Executor {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	e := &Executor{
		rpc:         rpc,
		signer:      signer,
		retrier:     retrier,
		logger:      logger,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.confirmer == nil {
		e.confirmer = NewPollingConfirmer(rpc, 0, 0)
	}
	return e
}

// Run executes the allocation. Only run-fatal conditions (insufficient
// funds, preflight failure) return an error; per-recipient failures are
// captured in the result's records.
func (e *Executor) Run(ctx context.Context, params RunParams) (*domain.DistributionResult, error) {
	var total uint64
	for _, a := range params.Allocations {
		total += a.Amount
	}
	ledger := NewLedger(params.Mint, params.Mode, total)

	if len(params.Allocations) == 0 {
		ledger.Finalize(domain.StatusSuccess)
		return ledger.Result(), nil
	}

	sourceAccount, err := solana.FindAssociatedTokenAccount(e.signer.Address(), params.Mint, params.TokenProgram)
	if err != nil {
		ledger.Finalize(domain.StatusFailed)
		return ledger.Result(), fmt.Errorf("derive source account: %w", err)
	}

	if err := e.preflight(ctx, sourceAccount, total); err != nil {
		ledger.Finalize(domain.StatusFailed)
		return ledger.Result(), err
	}

	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	for start := 0; start < len(params.Allocations); start += batchSize {
		// Cancellation is honored between batches: already-terminal records
		// are preserved, the rest are failed, nothing stays pending.
		if ctx.Err() != nil {
			e.cancelRemaining(ledger, params.Allocations[start:])
			return e.finalizeCancelled(ledger), nil
		}

		ledger.MarkRunning()

		end := start + batchSize
		if end > len(params.Allocations) {
			end = len(params.Allocations)
		}
		e.runBatch(ctx, ledger, params, sourceAccount, params.Allocations[start:end])
	}

	confirmed := ledger.ConfirmedCount()
	failed := ledger.FailedCount()

	var status domain.RunStatus
	switch {
	case failed == 0:
		status = domain.StatusSuccess
	case confirmed > 0:
		status = domain.StatusPartial
	default:
		status = domain.StatusFailed
	}
	ledger.Finalize(status)

	result := ledger.Result()
	e.logger.Printf("run %s finished: status=%s confirmed=%d failed=%d", result.ID, status, confirmed, failed)
	return result, nil
}

// preflight verifies the authority balance covers the allocated total.
func (e *Executor) preflight(ctx context.Context, sourceAccount solana.Address, needed uint64) error {
	var balance *solana.TokenAmount
	err := e.retrier.Do(ctx, "source balance preflight", func(ctx context.Context) error {
		var err error
		balance, err = e.rpc.GetTokenAccountBalance(ctx, sourceAccount)
		return err
	})
	if err != nil {
		return fmt.Errorf("source balance preflight: %w", err)
	}

	if balance.Amount < needed {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, balance.Amount, needed)
	}
	return nil
}

// runBatch executes one batch with bounded concurrency. Record order
// reflects per-recipient completion order.
func (e *Executor) runBatch(ctx context.Context, ledger *Ledger, params RunParams, sourceAccount solana.Address, batch []allocation.Allocation) {
	blockhash, err := e.latestBlockhash(ctx)
	if err != nil {
		// Every transfer in the batch would fail the same way; record and
		// move on to the next batch, which fetches a fresh blockhash.
		e.logger.Printf("WARN: blockhash fetch failed, failing batch: %v", err)
		for _, a := range batch {
			e.appendRecord(ledger, domain.TransactionRecord{
				Recipient: a.Recipient,
				Amount:    a.Amount,
				Status:    domain.RecordFailed,
				Error:     fmt.Sprintf("fetch blockhash: %v", err),
			})
		}
		return
	}

	sem := semaphore.NewWeighted(e.concurrency)
	var wg sync.WaitGroup

	for _, alloc := range batch {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Run context cancelled mid-batch; fail the rest of the batch.
			e.appendRecord(ledger, domain.TransactionRecord{
				Recipient: alloc.Recipient,
				Amount:    alloc.Amount,
				Status:    domain.RecordFailed,
				Error:     "cancelled",
			})
			continue
		}

		wg.Add(1)
		go func(a allocation.Allocation) {
			defer wg.Done()
			defer sem.Release(1)

			rec := e.transfer(ctx, params, sourceAccount, a, blockhash)
			e.appendRecord(ledger, rec)
		}(alloc)
	}

	wg.Wait()
}

// appendRecord serializes result mutation and fires the progress callback.
func (e *Executor) appendRecord(ledger *Ledger, rec domain.TransactionRecord) {
	if err := ledger.Append(rec); err != nil {
		e.logger.Printf("WARN: drop record for %s: %v", rec.Recipient, err)
		return
	}
	observability.RecordTransfer(string(rec.Status))
	if e.progress != nil {
		e.progress(rec)
	}
}

// transfer executes one recipient's transfer end to end and returns the
// terminal record. All failure modes are captured in the record.
func (e *Executor) transfer(ctx context.Context, params RunParams, sourceAccount solana.Address, alloc allocation.Allocation, blockhash string) domain.TransactionRecord {
	rec := domain.TransactionRecord{
		Recipient: alloc.Recipient,
		Amount:    alloc.Amount,
		Status:    domain.RecordPending,
	}

	destAccount, err := solana.FindAssociatedTokenAccount(alloc.Recipient, params.Mint, params.TokenProgram)
	if err != nil {
		rec.Status = domain.RecordFailed
		rec.Error = fmt.Sprintf("derive recipient account: %v", err)
		return rec
	}

	var destInfo *solana.AccountInfo
	err = e.retrier.Do(ctx, "recipient account lookup", func(ctx context.Context) error {
		var err error
		destInfo, err = e.rpc.GetAccountInfo(ctx, destAccount)
		return err
	})
	if err != nil {
		rec.Status = domain.RecordFailed
		rec.Error = fmt.Sprintf("recipient account lookup: %v", err)
		return rec
	}

	var instructions []solana.Instruction
	if destInfo == nil {
		instructions = append(instructions, solana.NewCreateAssociatedAccountInstruction(
			e.signer.Address(), destAccount, alloc.Recipient, params.Mint, params.TokenProgram))
	}
	instructions = append(instructions, solana.NewTransferCheckedInstruction(
		params.TokenProgram, sourceAccount, params.Mint, destAccount,
		e.signer.Address(), alloc.Amount, params.Decimals))

	signed, err := solana.BuildTransaction(instructions, e.signer, blockhash)
	if err != nil {
		rec.Status = domain.RecordFailed
		rec.Error = fmt.Sprintf("build transaction: %v", err)
		return rec
	}

	// Resubmitting identical signed bytes is idempotent by signature, so
	// retries cannot double-pay a recipient.
	var signature string
	attempts := 0
	err = e.retrier.Do(ctx, "submit transfer", func(ctx context.Context) error {
		attempts++
		var err error
		signature, err = e.rpc.SendTransaction(ctx, signed)
		if err != nil {
			var rpcErr *solana.RPCError
			if errors.As(err, &rpcErr) {
				// Node rejected the transaction; retrying the same bytes
				// cannot succeed.
				return retry.Permanent(err)
			}
			return err
		}
		return nil
	})
	rec.RetryCount = attempts - 1
	if err != nil {
		rec.Status = domain.RecordFailed
		rec.Error = fmt.Sprintf("submit: %v", err)
		return rec
	}
	rec.TransactionID = signature

	if err := e.confirmer.Confirm(ctx, signature); err != nil {
		rec.Status = domain.RecordFailed
		rec.Error = fmt.Sprintf("confirm: %v", err)
		return rec
	}

	rec.Status = domain.RecordConfirmed
	return rec
}

// latestBlockhash fetches a recent blockhash with retry.
func (e *Executor) latestBlockhash(ctx context.Context) (string, error) {
	var blockhash string
	err := e.retrier.Do(ctx, "latest blockhash", func(ctx context.Context) error {
		var err error
		blockhash, err = e.rpc.GetLatestBlockhash(ctx)
		return err
	})
	return blockhash, err
}

// cancelRemaining fails all not-yet-dispatched recipients.
func (e *Executor) cancelRemaining(ledger *Ledger, remaining []allocation.Allocation) {
	for _, a := range remaining {
		e.appendRecord(ledger, domain.TransactionRecord{
			Recipient: a.Recipient,
			Amount:    a.Amount,
			Status:    domain.RecordFailed,
			Error:     "cancelled before dispatch",
		})
	}
}

// finalizeCancelled picks the terminal status for a cancelled run: partial
// when any record confirmed before the signal, cancelled otherwise.
func (e *Executor) finalizeCancelled(ledger *Ledger) *domain.DistributionResult {
	status := domain.StatusCancelled
	if ledger.ConfirmedCount() > 0 {
		status = domain.StatusPartial
	}
	ledger.Finalize(status)
	return ledger.Result()
}
