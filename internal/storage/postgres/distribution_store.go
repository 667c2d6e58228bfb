package postgres

import (
	"context"
	"fmt"

	"spl-distributor/internal/domain"
	"spl-distributor/internal/solana"
	"spl-distributor/internal/storage"
)

// DistributionStore implements storage.DistributionStore using PostgreSQL.
type DistributionStore struct {
	pool *Pool
}

// NewDistributionStore creates a new DistributionStore.
func NewDistributionStore(pool *Pool) *DistributionStore {
	return &DistributionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.DistributionStore = (*DistributionStore)(nil)

// Insert adds a finalized result and its records atomically.
func (s *DistributionStore) Insert(ctx context.Context, r *domain.DistributionResult) error {
	if r == nil || r.ID == "" || !r.Status.Terminal() {
		return storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO distributions (id, created_at, status, mint, mode)
		VALUES ($1, $2, $3, $4, $5)`,
		r.ID, r.CreatedAt, string(r.Status), r.Mint.String(), string(r.Mode),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert distribution: %w", err)
	}

	for i, rec := range r.Records {
		_, err = tx.Exec(ctx, `
			INSERT INTO distribution_records
				(distribution_id, seq, recipient, amount, status, transaction_id, error, retry_count)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			r.ID, i, rec.Recipient.String(), int64(rec.Amount), string(rec.Status),
			rec.TransactionID, rec.Error, rec.RetryCount,
		)
		if err != nil {
			return fmt.Errorf("insert record %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByID retrieves a result by run ID.
func (s *DistributionStore) GetByID(ctx context.Context, id string) (*domain.DistributionResult, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, created_at, status, mint, mode
		FROM distributions WHERE id = $1`, id)

	r, err := scanDistribution(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("query distribution: %w", err)
	}

	if err := s.loadRecords(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// GetByMint retrieves all results for a mint, newest first.
func (s *DistributionStore) GetByMint(ctx context.Context, mint solana.Address) ([]*domain.DistributionResult, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, created_at, status, mint, mode
		FROM distributions WHERE mint = $1
		ORDER BY created_at DESC`, mint.String())
	if err != nil {
		return nil, fmt.Errorf("query distributions: %w", err)
	}
	defer rows.Close()

	var results []*domain.DistributionResult
	for rows.Next() {
		r, err := scanDistribution(rows)
		if err != nil {
			return nil, fmt.Errorf("scan distribution: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate distributions: %w", err)
	}

	for _, r := range results {
		if err := s.loadRecords(ctx, r); err != nil {
			return nil, err
		}
	}
	return results, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDistribution(row rowScanner) (*domain.DistributionResult, error) {
	var r domain.DistributionResult
	var status, mint, mode string

	if err := row.Scan(&r.ID, &r.CreatedAt, &status, &mint, &mode); err != nil {
		return nil, err
	}

	mintAddr, err := solana.ParseAddress(mint)
	if err != nil {
		return nil, fmt.Errorf("parse stored mint %q: %w", mint, err)
	}

	r.Status = domain.RunStatus(status)
	r.Mint = mintAddr
	r.Mode = domain.AllocationMode(mode)
	return &r, nil
}

func (s *DistributionStore) loadRecords(ctx context.Context, r *domain.DistributionResult) error {
	rows, err := s.pool.Query(ctx, `
		SELECT recipient, amount, status, transaction_id, error, retry_count
		FROM distribution_records WHERE distribution_id = $1
		ORDER BY seq ASC`, r.ID)
	if err != nil {
		return fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec domain.TransactionRecord
		var recipient, status string
		var amount int64

		if err := rows.Scan(&recipient, &amount, &status, &rec.TransactionID, &rec.Error, &rec.RetryCount); err != nil {
			return fmt.Errorf("scan record: %w", err)
		}

		addr, err := solana.ParseAddress(recipient)
		if err != nil {
			return fmt.Errorf("parse stored recipient %q: %w", recipient, err)
		}
		rec.Recipient = addr
		rec.Amount = uint64(amount)
		rec.Status = domain.RecordStatus(status)

		r.Records = append(r.Records, rec)
	}
	return rows.Err()
}
