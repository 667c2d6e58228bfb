package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"spl-distributor/internal/domain"
	"spl-distributor/internal/solana"
	"spl-distributor/internal/storage"
)

func testSnapshot(t *testing.T, mint solana.Address, collectedAt time.Time) *domain.HolderSnapshot {
	t.Helper()
	snap := &domain.HolderSnapshot{
		Mint:     mint,
		Decimals: 6,
		Holders: []domain.TokenHolder{
			{Address: testAddr(t, 1), Balance: 700},
			{Address: testAddr(t, 2), Balance: 300},
		},
		Tier:        domain.TierIndexScan,
		CollectedAt: collectedAt,
	}
	snap.RecomputePercentages()
	return snap
}

func TestSnapshotStore_InsertAndGet(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()
	mint := testAddr(t, 0xA0)

	if err := store.Insert(ctx, testSnapshot(t, mint, time.Now())); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	snaps, err := store.GetByMint(ctx, mint, 0)
	if err != nil {
		t.Fatalf("GetByMint failed: %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("Expected 1 snapshot, got %d", len(snaps))
	}
	if snaps[0].TotalBalance != 1000 {
		t.Errorf("Expected total 1000, got %d", snaps[0].TotalBalance)
	}
	if len(snaps[0].Holders) != 2 {
		t.Errorf("Expected 2 holders, got %d", len(snaps[0].Holders))
	}
}

func TestSnapshotStore_InvalidInput(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	if err := store.Insert(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("nil snapshot: expected ErrInvalidInput, got %v", err)
	}
	if err := store.Insert(ctx, &domain.HolderSnapshot{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("zero mint: expected ErrInvalidInput, got %v", err)
	}
}

func TestSnapshotStore_NewestFirstWithLimit(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()
	mint := testAddr(t, 0xA0)
	base := time.Now()

	for i := 0; i < 4; i++ {
		if err := store.Insert(ctx, testSnapshot(t, mint, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	// Another mint's snapshot must not leak in
	if err := store.Insert(ctx, testSnapshot(t, testAddr(t, 0xB0), base)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	snaps, err := store.GetByMint(ctx, mint, 2)
	if err != nil {
		t.Fatalf("GetByMint failed: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("Expected 2 snapshots, got %d", len(snaps))
	}
	if !snaps[0].CollectedAt.After(snaps[1].CollectedAt) {
		t.Error("Snapshots should be newest first")
	}
	if !snaps[0].CollectedAt.Equal(base.Add(3 * time.Hour)) {
		t.Errorf("Expected newest snapshot first, got %s", snaps[0].CollectedAt)
	}
}

func TestSnapshotStore_CopyIsolation(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()
	mint := testAddr(t, 0xA0)

	original := testSnapshot(t, mint, time.Now())
	if err := store.Insert(ctx, original); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	original.Holders[0].Balance = 0

	snaps, err := store.GetByMint(ctx, mint, 0)
	if err != nil {
		t.Fatalf("GetByMint failed: %v", err)
	}
	if snaps[0].Holders[0].Balance != 700 {
		t.Error("Insert should take a defensive copy")
	}

	snaps[0].Holders[0].Balance = 0
	again, err := store.GetByMint(ctx, mint, 0)
	if err != nil {
		t.Fatalf("GetByMint failed: %v", err)
	}
	if again[0].Holders[0].Balance != 700 {
		t.Error("GetByMint should return defensive copies")
	}
}
