package clickhouse

import (
	"context"
	"fmt"
	"time"

	"spl-distributor/internal/domain"
	"spl-distributor/internal/solana"
	"spl-distributor/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using ClickHouse.
// Each snapshot is one row with the holder set stored as parallel arrays.
type SnapshotStore struct {
	conn *Conn
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(conn *Conn) *SnapshotStore {
	return &SnapshotStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// Insert records a snapshot.
func (s *SnapshotStore) Insert(ctx context.Context, snap *domain.HolderSnapshot) error {
	if snap == nil || snap.Mint.IsZero() {
		return storage.ErrInvalidInput
	}

	addresses := make([]string, 0, len(snap.Holders))
	balances := make([]uint64, 0, len(snap.Holders))
	percentages := make([]float64, 0, len(snap.Holders))
	for _, h := range snap.Holders {
		addresses = append(addresses, h.Address.String())
		balances = append(balances, h.Balance)
		percentages = append(percentages, h.Percentage)
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO holder_snapshots (
			mint, collected_at, tier, approximate, decimals, total_balance,
			holder_addresses, holder_balances, holder_percentages
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		snap.Mint.String(), snap.CollectedAt, string(snap.Tier), snap.Approximate,
		snap.Decimals, snap.TotalBalance,
		addresses, balances, percentages,
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByMint retrieves up to limit snapshots for a mint, newest first.
// A limit <= 0 returns all snapshots.
func (s *SnapshotStore) GetByMint(ctx context.Context, mint solana.Address, limit int) ([]*domain.HolderSnapshot, error) {
	query := `
		SELECT mint, collected_at, tier, approximate, decimals, total_balance,
		       holder_addresses, holder_balances, holder_percentages
		FROM holder_snapshots
		WHERE mint = ?
		ORDER BY collected_at DESC
	`
	args := []any{mint.String()}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, uint64(limit))
	}

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query by mint: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanSnapshots scans multiple rows into a slice.
func scanSnapshots(rows chRows) ([]*domain.HolderSnapshot, error) {
	var snapshots []*domain.HolderSnapshot

	for rows.Next() {
		var snap domain.HolderSnapshot
		var mint, tier string
		var collectedAt time.Time
		var addresses []string
		var balances []uint64
		var percentages []float64

		err := rows.Scan(
			&mint, &collectedAt, &tier, &snap.Approximate,
			&snap.Decimals, &snap.TotalBalance,
			&addresses, &balances, &percentages,
		)
		if err != nil {
			return nil, fmt.Errorf("scan holder snapshot row: %w", err)
		}

		mintAddr, err := solana.ParseAddress(mint)
		if err != nil {
			return nil, fmt.Errorf("parse stored mint %q: %w", mint, err)
		}
		snap.Mint = mintAddr
		snap.Tier = domain.DiscoveryTier(tier)
		snap.CollectedAt = collectedAt

		if len(balances) != len(addresses) || len(percentages) != len(addresses) {
			return nil, fmt.Errorf("holder arrays length mismatch for mint %s", mint)
		}
		for i, addr := range addresses {
			holderAddr, err := solana.ParseAddress(addr)
			if err != nil {
				return nil, fmt.Errorf("parse stored holder %q: %w", addr, err)
			}
			snap.Holders = append(snap.Holders, domain.TokenHolder{
				Address:    holderAddr,
				Balance:    balances[i],
				Percentage: percentages[i],
			})
		}

		snapshots = append(snapshots, &snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate holder snapshot rows: %w", err)
	}

	return snapshots, nil
}
