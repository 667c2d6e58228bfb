// Package storage defines persistence interfaces for finalized distribution
// results and holder-snapshot audit history.
package storage

import (
	"context"

	"spl-distributor/internal/domain"
	"spl-distributor/internal/solana"
)

// DistributionStore provides access to finalized distribution results.
type DistributionStore interface {
	// Insert adds a finalized result. Returns ErrDuplicateKey if the run ID
	// exists, ErrInvalidInput if the result is not terminal.
	Insert(ctx context.Context, r *domain.DistributionResult) error

	// GetByID retrieves a result by run ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.DistributionResult, error)

	// GetByMint retrieves all results for a mint, newest first.
	GetByMint(ctx context.Context, mint solana.Address) ([]*domain.DistributionResult, error)
}

// SnapshotStore provides access to holder-snapshot audit history.
type SnapshotStore interface {
	// Insert records a snapshot.
	Insert(ctx context.Context, s *domain.HolderSnapshot) error

	// GetByMint retrieves up to limit snapshots for a mint, newest first.
	GetByMint(ctx context.Context, mint solana.Address, limit int) ([]*domain.HolderSnapshot, error)
}
