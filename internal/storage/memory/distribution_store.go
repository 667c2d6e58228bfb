// Package memory provides in-memory store implementations for tests and
// runs without configured persistence.
package memory

import (
	"context"
	"sort"
	"sync"

	"spl-distributor/internal/domain"
	"spl-distributor/internal/solana"
	"spl-distributor/internal/storage"
)

// DistributionStore is an in-memory implementation of storage.DistributionStore.
type DistributionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.DistributionResult // keyed by run ID
}

// NewDistributionStore creates a new in-memory distribution store.
func NewDistributionStore() *DistributionStore {
	return &DistributionStore{
		data: make(map[string]*domain.DistributionResult),
	}
}

// Compile-time interface check.
var _ storage.DistributionStore = (*DistributionStore)(nil)

// Insert adds a finalized result. Returns ErrDuplicateKey if the ID exists.
func (s *DistributionStore) Insert(_ context.Context, r *domain.DistributionResult) error {
	if r == nil || r.ID == "" || !r.Status.Terminal() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.ID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[r.ID] = copyResult(r)
	return nil
}

// GetByID retrieves a result by run ID. Returns ErrNotFound if not exists.
func (s *DistributionStore) GetByID(_ context.Context, id string) (*domain.DistributionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.data[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyResult(r), nil
}

// GetByMint retrieves all results for a mint, newest first.
func (s *DistributionStore) GetByMint(_ context.Context, mint solana.Address) ([]*domain.DistributionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.DistributionResult
	for _, r := range s.data {
		if r.Mint == mint {
			out = append(out, copyResult(r))
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func copyResult(r *domain.DistributionResult) *domain.DistributionResult {
	out := *r
	out.Records = make([]domain.TransactionRecord, len(r.Records))
	copy(out.Records, r.Records)
	return &out
}
