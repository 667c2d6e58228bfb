package domain

import (
	"time"

	"spl-distributor/internal/solana"
)

// AllocationMode selects how the total amount is split across holders.
type AllocationMode string

const (
	// ModeEqual splits the total evenly across holders.
	ModeEqual AllocationMode = "equal"
	// ModeProportional splits the total in proportion to held balance.
	ModeProportional AllocationMode = "proportional"
)

// Valid reports whether the mode is a known allocation mode.
func (m AllocationMode) Valid() bool {
	return m == ModeEqual || m == ModeProportional
}

// DistributionRequest describes one distribution run. Immutable once
// constructed; the holders list is a snapshot copy, not a live reference.
type DistributionRequest struct {
	TotalAmount      uint64           `json:"totalAmount"`
	Mint             solana.Address   `json:"mint"`
	Holders          []TokenHolder    `json:"holders"`
	Mode             AllocationMode   `json:"mode"`
	BatchSize        int              `json:"batchSize"`
	MinimumAmount    uint64           `json:"minimumAmount"`
	ExcludeAddresses []solana.Address `json:"excludeAddresses,omitempty"`
}

// NewDistributionRequest constructs a request with defensive copies of the
// holder and exclusion lists.
func NewDistributionRequest(total uint64, mint solana.Address, holders []TokenHolder, mode AllocationMode, batchSize int, minimum uint64, exclude []solana.Address) DistributionRequest {
	holdersCopy := make([]TokenHolder, len(holders))
	copy(holdersCopy, holders)

	var excludeCopy []solana.Address
	if len(exclude) > 0 {
		excludeCopy = make([]solana.Address, len(exclude))
		copy(excludeCopy, exclude)
	}

	return DistributionRequest{
		TotalAmount:      total,
		Mint:             mint,
		Holders:          holdersCopy,
		Mode:             mode,
		BatchSize:        batchSize,
		MinimumAmount:    minimum,
		ExcludeAddresses: excludeCopy,
	}
}

// RunStatus is the lifecycle status of a distribution run.
type RunStatus string

const (
	StatusPending   RunStatus = "pending"
	StatusRunning   RunStatus = "running"
	StatusSuccess   RunStatus = "success"
	StatusPartial   RunStatus = "partial"
	StatusFailed    RunStatus = "failed"
	StatusCancelled RunStatus = "cancelled"
)

// Terminal reports whether the status is final.
func (s RunStatus) Terminal() bool {
	switch s {
	case StatusSuccess, StatusPartial, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// RecordStatus is the per-recipient transfer outcome.
type RecordStatus string

const (
	RecordPending   RecordStatus = "pending"
	RecordConfirmed RecordStatus = "confirmed"
	RecordFailed    RecordStatus = "failed"
)

// TransactionRecord is the outcome of one recipient's transfer. Recipient is
// unique within a result; Amount is never altered after batching begins.
type TransactionRecord struct {
	Recipient     solana.Address `json:"recipient"`
	Amount        uint64         `json:"amount"`
	Status        RecordStatus   `json:"status"`
	TransactionID string         `json:"transactionId,omitempty"`
	Error         string         `json:"error,omitempty"`
	RetryCount    int            `json:"retryCount"`
}

// DistributionResult accumulates per-recipient outcomes for one run.
// Mutable only by the owning executor during the run, immutable once the
// status is terminal. Field names are stable for the report collaborator.
type DistributionResult struct {
	ID        string              `json:"id"`
	CreatedAt time.Time           `json:"createdAt"`
	Status    RunStatus           `json:"status"`
	Mint      solana.Address      `json:"mint"`
	Mode      AllocationMode      `json:"mode"`
	Records   []TransactionRecord `json:"records"`
}
