package distribution

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"errors"
	"sync"
	"testing"
	"time"

	"spl-distributor/internal/allocation"
	"spl-distributor/internal/domain"
	"spl-distributor/internal/retry"
	"spl-distributor/internal/solana"
	"spl-distributor/internal/solana/stub"
)

func testSigner(t *testing.T) *solana.Keypair {
	t.Helper()
	seed := bytes.Repeat([]byte{99}, ed25519.SeedSize)
	kp, err := solana.NewKeypairFromBytes(ed25519.NewKeyFromSeed(seed))
	if err != nil {
		t.Fatalf("build signer: %v", err)
	}
	return kp
}

func fastRetrier() *retry.Controller {
	return retry.NewController(
		retry.WithMaxAttempts(2),
		retry.WithBaseDelay(time.Millisecond),
	)
}

type executorFixture struct {
	rpc    *stub.RPCClient
	signer *solana.Keypair
	exec   *Executor
	params RunParams
	source solana.Address
}

// newExecutorFixture wires an executor against the stub with a funded
// source account and n allocations of 100 each.
func newExecutorFixture(t *testing.T, n int, sourceBalance uint64) *executorFixture {
	t.Helper()

	rpc := stub.NewRPCClient()
	signer := testSigner(t)
	mint, err := solana.AddressFromBytes(bytes.Repeat([]byte{0xA0}, solana.AddressLen))
	if err != nil {
		t.Fatalf("build mint: %v", err)
	}

	source, err := solana.FindAssociatedTokenAccount(signer.Address(), mint, solana.TokenProgram)
	if err != nil {
		t.Fatalf("derive source account: %v", err)
	}
	rpc.Balances[source] = &solana.TokenAmount{Amount: sourceBalance, Decimals: 6}

	allocations := make([]allocation.Allocation, n)
	for i := range allocations {
		allocations[i] = allocation.Allocation{Recipient: testAddr(t, byte(i+1)), Amount: 100}
	}

	exec := NewExecutor(rpc, signer, fastRetrier(), nil,
		WithConcurrency(2),
		WithConfirmer(NewPollingConfirmer(rpc, 5*time.Millisecond, time.Second)),
	)

	return &executorFixture{
		rpc:    rpc,
		signer: signer,
		exec:   exec,
		source: source,
		params: RunParams{
			Mint:         mint,
			TokenProgram: solana.TokenProgram,
			Decimals:     6,
			Mode:         domain.ModeEqual,
			BatchSize:    2,
			Allocations:  allocations,
		},
	}
}

func TestExecutor_RunSuccess(t *testing.T) {
	f := newExecutorFixture(t, 3, 10_000)

	result, err := f.exec.Run(context.Background(), f.params)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Status != domain.StatusSuccess {
		t.Errorf("Expected success, got %s", result.Status)
	}
	if len(result.Records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(result.Records))
	}
	for _, rec := range result.Records {
		if rec.Status != domain.RecordConfirmed {
			t.Errorf("Record for %s: expected confirmed, got %s (%s)", rec.Recipient, rec.Status, rec.Error)
		}
		if rec.TransactionID == "" {
			t.Errorf("Record for %s missing transaction ID", rec.Recipient)
		}
		if rec.RetryCount != 0 {
			t.Errorf("Record for %s: expected 0 retries, got %d", rec.Recipient, rec.RetryCount)
		}
	}

	// Batch size 2 over 3 recipients means two blockhash fetches
	if got := f.rpc.CallCount("getLatestBlockhash"); got != 2 {
		t.Errorf("Expected 2 blockhash fetches, got %d", got)
	}
}

func TestExecutor_EmptyAllocations(t *testing.T) {
	f := newExecutorFixture(t, 0, 0)

	result, err := f.exec.Run(context.Background(), f.params)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Status != domain.StatusSuccess {
		t.Errorf("Empty run should be success, got %s", result.Status)
	}
	if f.rpc.CallCount("sendTransaction") != 0 {
		t.Error("No transactions should be submitted")
	}
}

func TestExecutor_PartialFailure(t *testing.T) {
	f := newExecutorFixture(t, 4, 10_000)
	// One submission fails both retry attempts
	cause := errors.New("connection reset")
	f.rpc.SendErrs[1] = cause
	f.rpc.SendErrs[2] = cause // index 2 is the failed submission's retry

	result, err := f.exec.Run(context.Background(), f.params)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Status != domain.StatusPartial {
		t.Errorf("Expected partial, got %s", result.Status)
	}

	var confirmed, failed int
	for _, rec := range result.Records {
		switch rec.Status {
		case domain.RecordConfirmed:
			confirmed++
		case domain.RecordFailed:
			failed++
		default:
			t.Errorf("Record for %s left non-terminal: %s", rec.Recipient, rec.Status)
		}
	}
	if confirmed != 3 || failed != 1 {
		t.Errorf("Expected 3 confirmed and 1 failed, got %d/%d", confirmed, failed)
	}
}

func TestExecutor_AllSubmissionsFail(t *testing.T) {
	f := newExecutorFixture(t, 2, 10_000)
	f.rpc.Errs["sendTransaction"] = errors.New("node unreachable")

	result, err := f.exec.Run(context.Background(), f.params)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Status != domain.StatusFailed {
		t.Errorf("Expected failed, got %s", result.Status)
	}
	for _, rec := range result.Records {
		if rec.Status != domain.RecordFailed {
			t.Errorf("Expected failed record, got %s", rec.Status)
		}
		// Transient errors are retried before the record fails
		if rec.RetryCount != 1 {
			t.Errorf("Expected 1 retry, got %d", rec.RetryCount)
		}
	}
}

func TestExecutor_RPCErrorNotRetried(t *testing.T) {
	f := newExecutorFixture(t, 2, 10_000)
	f.rpc.Errs["sendTransaction"] = &solana.RPCError{Code: -32002, Message: "Transaction simulation failed"}

	result, err := f.exec.Run(context.Background(), f.params)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Status != domain.StatusFailed {
		t.Errorf("Expected failed, got %s", result.Status)
	}
	// Node rejections are permanent: one submission attempt per recipient
	if got := f.rpc.CallCount("sendTransaction"); got != 2 {
		t.Errorf("Expected 2 submissions without retries, got %d", got)
	}
	for _, rec := range result.Records {
		if rec.RetryCount != 0 {
			t.Errorf("Expected 0 retries for permanent error, got %d", rec.RetryCount)
		}
	}
}

func TestExecutor_InsufficientFunds(t *testing.T) {
	f := newExecutorFixture(t, 3, 250) // needs 300

	result, err := f.exec.Run(context.Background(), f.params)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("Expected ErrInsufficientFunds, got %v", err)
	}

	if result.Status != domain.StatusFailed {
		t.Errorf("Expected failed, got %s", result.Status)
	}
	if f.rpc.CallCount("sendTransaction") != 0 {
		t.Error("Nothing should be submitted on preflight failure")
	}
}

func TestExecutor_CancelledBeforeDispatch(t *testing.T) {
	f := newExecutorFixture(t, 4, 10_000)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := f.exec.Run(ctx, f.params)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Status != domain.StatusCancelled {
		t.Errorf("Expected cancelled, got %s", result.Status)
	}
	if len(result.Records) != 4 {
		t.Fatalf("Every recipient needs a terminal record, got %d", len(result.Records))
	}
	for _, rec := range result.Records {
		if rec.Status != domain.RecordFailed {
			t.Errorf("Cancelled record should be failed, got %s", rec.Status)
		}
	}
	if f.rpc.CallCount("sendTransaction") != 0 {
		t.Error("Nothing should be submitted after cancellation")
	}
}

func TestExecutor_CancelledMidRun(t *testing.T) {
	f := newExecutorFixture(t, 6, 10_000)

	// Cancel once the first batch (2 records) has landed; the remaining two
	// batches must be failed without submission, never left pending.
	ctx, cancel := context.WithCancel(context.Background())
	var mu sync.Mutex
	terminal := 0
	exec := NewExecutor(f.rpc, f.signer, fastRetrier(), nil,
		WithConcurrency(2),
		WithConfirmer(NewPollingConfirmer(f.rpc, 5*time.Millisecond, time.Second)),
		WithProgress(func(rec domain.TransactionRecord) {
			mu.Lock()
			terminal++
			if terminal == 2 {
				cancel()
			}
			mu.Unlock()
		}),
	)

	result, err := exec.Run(ctx, f.params)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Status != domain.StatusPartial {
		t.Errorf("Expected partial, got %s", result.Status)
	}
	if len(result.Records) != 6 {
		t.Fatalf("Every recipient needs a terminal record, got %d", len(result.Records))
	}

	var confirmed, failed int
	for _, rec := range result.Records {
		switch rec.Status {
		case domain.RecordConfirmed:
			confirmed++
		case domain.RecordFailed:
			failed++
			if rec.Error != "cancelled before dispatch" {
				t.Errorf("Record for %s: unexpected error %q", rec.Recipient, rec.Error)
			}
		default:
			t.Errorf("Record for %s left non-terminal: %s", rec.Recipient, rec.Status)
		}
	}
	if confirmed != 2 || failed != 4 {
		t.Errorf("Expected 2 confirmed and 4 failed, got %d/%d", confirmed, failed)
	}

	// Only the first batch reached the node
	if got := f.rpc.CallCount("sendTransaction"); got != 2 {
		t.Errorf("Expected 2 submissions, got %d", got)
	}
}

func TestExecutor_ProgressCallback(t *testing.T) {
	f := newExecutorFixture(t, 3, 10_000)

	var mu sync.Mutex
	var seen []domain.TransactionRecord
	exec := NewExecutor(f.rpc, f.signer, fastRetrier(), nil,
		WithConcurrency(2),
		WithConfirmer(NewPollingConfirmer(f.rpc, 5*time.Millisecond, time.Second)),
		WithProgress(func(rec domain.TransactionRecord) {
			mu.Lock()
			seen = append(seen, rec)
			mu.Unlock()
		}),
	)

	if _, err := exec.Run(context.Background(), f.params); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(seen) != 3 {
		t.Fatalf("Expected 3 progress callbacks, got %d", len(seen))
	}
	for _, rec := range seen {
		if rec.Status != domain.RecordConfirmed && rec.Status != domain.RecordFailed {
			t.Errorf("Callback fired with non-terminal record: %s", rec.Status)
		}
	}
}

func TestExecutor_ExistingRecipientAccount(t *testing.T) {
	f := newExecutorFixture(t, 1, 10_000)

	// The associated account already exists, so the transfer must not be
	// prefixed with a create instruction.
	recipient := f.params.Allocations[0].Recipient
	ata, err := solana.FindAssociatedTokenAccount(recipient, f.params.Mint, solana.TokenProgram)
	if err != nil {
		t.Fatalf("derive recipient account: %v", err)
	}
	f.rpc.Accounts[ata] = &solana.AccountInfo{
		Owner: solana.TokenProgram,
		Data:  make([]byte, solana.TokenAccountSize),
	}

	result, err := f.exec.Run(context.Background(), f.params)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Status != domain.StatusSuccess {
		t.Errorf("Expected success, got %s (%+v)", result.Status, result.Records)
	}
}
