package memory

import (
	"context"
	"sort"
	"sync"

	"spl-distributor/internal/domain"
	"spl-distributor/internal/solana"
	"spl-distributor/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
type SnapshotStore struct {
	mu   sync.RWMutex
	data []*domain.HolderSnapshot
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// Insert records a snapshot.
func (s *SnapshotStore) Insert(_ context.Context, snap *domain.HolderSnapshot) error {
	if snap == nil || snap.Mint.IsZero() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append(s.data, copySnapshot(snap))
	return nil
}

// GetByMint retrieves up to limit snapshots for a mint, newest first.
func (s *SnapshotStore) GetByMint(_ context.Context, mint solana.Address, limit int) ([]*domain.HolderSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.HolderSnapshot
	for _, snap := range s.data {
		if snap.Mint == mint {
			out = append(out, copySnapshot(snap))
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CollectedAt.After(out[j].CollectedAt)
	})

	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func copySnapshot(s *domain.HolderSnapshot) *domain.HolderSnapshot {
	out := *s
	out.Holders = make([]domain.TokenHolder, len(s.Holders))
	copy(out.Holders, s.Holders)
	return &out
}
