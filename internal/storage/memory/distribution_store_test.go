package memory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"spl-distributor/internal/domain"
	"spl-distributor/internal/solana"
	"spl-distributor/internal/storage"
)

func testAddr(t *testing.T, b byte) solana.Address {
	t.Helper()
	a, err := solana.AddressFromBytes(bytes.Repeat([]byte{b}, solana.AddressLen))
	if err != nil {
		t.Fatalf("build address: %v", err)
	}
	return a
}

func testResult(t *testing.T, id string, mint solana.Address, createdAt time.Time) *domain.DistributionResult {
	t.Helper()
	return &domain.DistributionResult{
		ID:        id,
		CreatedAt: createdAt,
		Status:    domain.StatusSuccess,
		Mint:      mint,
		Mode:      domain.ModeEqual,
		Records: []domain.TransactionRecord{
			{Recipient: testAddr(t, 1), Amount: 100, Status: domain.RecordConfirmed, TransactionID: "sig1"},
		},
	}
}

func TestDistributionStore_InsertAndGet(t *testing.T) {
	store := NewDistributionStore()
	ctx := context.Background()
	mint := testAddr(t, 0xA0)

	if err := store.Insert(ctx, testResult(t, "run1", mint, time.Now())); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "run1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.ID != "run1" || got.Mint != mint {
		t.Errorf("Unexpected result: %+v", got)
	}
	if len(got.Records) != 1 || got.Records[0].TransactionID != "sig1" {
		t.Errorf("Records not round-tripped: %+v", got.Records)
	}
}

func TestDistributionStore_Duplicate(t *testing.T) {
	store := NewDistributionStore()
	ctx := context.Background()
	mint := testAddr(t, 0xA0)

	if err := store.Insert(ctx, testResult(t, "run1", mint, time.Now())); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	err := store.Insert(ctx, testResult(t, "run1", mint, time.Now()))
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestDistributionStore_InvalidInput(t *testing.T) {
	store := NewDistributionStore()
	ctx := context.Background()

	if err := store.Insert(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("nil result: expected ErrInvalidInput, got %v", err)
	}

	pending := testResult(t, "run1", testAddr(t, 0xA0), time.Now())
	pending.Status = domain.StatusRunning
	if err := store.Insert(ctx, pending); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("non-terminal result: expected ErrInvalidInput, got %v", err)
	}

	noID := testResult(t, "", testAddr(t, 0xA0), time.Now())
	if err := store.Insert(ctx, noID); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("empty ID: expected ErrInvalidInput, got %v", err)
	}
}

func TestDistributionStore_NotFound(t *testing.T) {
	store := NewDistributionStore()
	_, err := store.GetByID(context.Background(), "absent")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestDistributionStore_GetByMintNewestFirst(t *testing.T) {
	store := NewDistributionStore()
	ctx := context.Background()
	mint := testAddr(t, 0xA0)
	other := testAddr(t, 0xB0)
	base := time.Now()

	for i := 0; i < 3; i++ {
		r := testResult(t, fmt.Sprintf("run%d", i), mint, base.Add(time.Duration(i)*time.Minute))
		if err := store.Insert(ctx, r); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	if err := store.Insert(ctx, testResult(t, "other", other, base)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	results, err := store.GetByMint(ctx, mint)
	if err != nil {
		t.Fatalf("GetByMint failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}
	for i, want := range []string{"run2", "run1", "run0"} {
		if results[i].ID != want {
			t.Errorf("Position %d: expected %s, got %s", i, want, results[i].ID)
		}
	}
}

func TestDistributionStore_CopyIsolation(t *testing.T) {
	store := NewDistributionStore()
	ctx := context.Background()

	original := testResult(t, "run1", testAddr(t, 0xA0), time.Now())
	if err := store.Insert(ctx, original); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	// Mutating the inserted value must not reach the store
	original.Records[0].Status = domain.RecordFailed

	got, err := store.GetByID(ctx, "run1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Records[0].Status != domain.RecordConfirmed {
		t.Error("Insert should take a defensive copy")
	}

	// Mutating a fetched value must not reach the store either
	got.Records[0].Status = domain.RecordFailed
	again, err := store.GetByID(ctx, "run1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if again.Records[0].Status != domain.RecordConfirmed {
		t.Error("GetByID should return a defensive copy")
	}
}
