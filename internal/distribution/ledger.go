// Package distribution executes an allocation as batched, retried,
// partially-failable transfers and records the auditable result.
package distribution

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"spl-distributor/internal/domain"
	"spl-distributor/internal/idhash"
	"spl-distributor/internal/solana"
)

// Ledger errors.
var (
	// ErrFinalized is returned when mutating a ledger whose run reached a
	// terminal status.
	ErrFinalized = errors.New("ledger finalized")

	// ErrDuplicateRecipient is returned when appending a second record for
	// the same recipient.
	ErrDuplicateRecipient = errors.New("duplicate recipient")
)

// Ledger accumulates TransactionRecords into a DistributionResult for the
// duration of a run. Append-only while running, read-only once the run
// reaches a terminal status. Aggregates are computed on demand, not cached.
type Ledger struct {
	mu         sync.Mutex
	result     domain.DistributionResult
	recipients map[solana.Address]struct{}
}

// NewLedger creates a ledger for a new run with status pending. The run ID
// is derived from the mint, the allocated total, the mode, and creation time.
func NewLedger(mint solana.Address, mode domain.AllocationMode, totalAmount uint64) *Ledger {
	createdAt := time.Now().UTC()
	return &Ledger{
		result: domain.DistributionResult{
			ID:        idhash.ComputeRunID(mint.String(), totalAmount, string(mode), createdAt.UnixNano()),
			CreatedAt: createdAt,
			Status:    domain.StatusPending,
			Mint:      mint,
			Mode:      mode,
		},
		recipients: make(map[solana.Address]struct{}),
	}
}

// MarkRunning transitions the run to running on first batch dispatch.
func (l *Ledger) MarkRunning() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.result.Status == domain.StatusPending {
		l.result.Status = domain.StatusRunning
	}
}

// Append adds a terminal record. Recipients are unique within one result.
func (l *Ledger) Append(rec domain.TransactionRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.result.Status.Terminal() {
		return ErrFinalized
	}
	if _, exists := l.recipients[rec.Recipient]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateRecipient, rec.Recipient)
	}

	l.recipients[rec.Recipient] = struct{}{}
	l.result.Records = append(l.result.Records, rec)
	return nil
}

// Finalize transitions the run to a terminal status. Further mutation fails.
func (l *Ledger) Finalize(status domain.RunStatus) error {
	if !status.Terminal() {
		return fmt.Errorf("status %q is not terminal", status)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.result.Status.Terminal() {
		return ErrFinalized
	}
	l.result.Status = status
	return nil
}

// Result returns a snapshot copy of the accumulated result.
func (l *Ledger) Result() *domain.DistributionResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := l.result
	out.Records = make([]domain.TransactionRecord, len(l.result.Records))
	copy(out.Records, l.result.Records)
	return &out
}

// ConfirmedCount returns the number of confirmed records.
func (l *Ledger) ConfirmedCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, r := range l.result.Records {
		if r.Status == domain.RecordConfirmed {
			n++
		}
	}
	return n
}

// FailedCount returns the number of failed records.
func (l *Ledger) FailedCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, r := range l.result.Records {
		if r.Status == domain.RecordFailed {
			n++
		}
	}
	return n
}

// TotalConfirmedAmount returns the sum of confirmed amounts.
func (l *Ledger) TotalConfirmedAmount() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	var total uint64
	for _, r := range l.result.Records {
		if r.Status == domain.RecordConfirmed {
			total += r.Amount
		}
	}
	return total
}
