package stub

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"spl-distributor/internal/solana"
)

// ErrNotFound is returned when a requested entity is not in the stub store.
var ErrNotFound = errors.New("not found")

// RPCClient implements solana.RPCClient for testing. Fields are consulted in
// order; unset entries return zero values or ErrNotFound depending on the
// method's live semantics. Errs maps method names to forced errors, letting
// tests simulate per-tier failures.
type RPCClient struct {
	mu sync.Mutex

	Accounts        map[solana.Address]*solana.AccountInfo
	ProgramAccounts map[solana.Address][]solana.ProgramAccount
	LargestAccounts map[solana.Address][]solana.TokenAccountBalance
	Supplies        map[solana.Address]*solana.TokenAmount
	Balances        map[solana.Address]*solana.TokenAmount
	Signatures      map[solana.Address][]solana.SignatureInfo
	Transactions    map[string]*solana.Transaction
	Statuses        map[string]*solana.SignatureStatus
	Blockhash       string

	// Errs forces an error for a method name ("getProgramAccounts", ...).
	Errs map[string]error

	// SendErrs forces per-submission errors keyed by submission index.
	SendErrs map[int]error

	// Calls records method invocations in order.
	Calls []string

	sendCount int
}

// NewRPCClient creates an empty stub client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Accounts:        make(map[solana.Address]*solana.AccountInfo),
		ProgramAccounts: make(map[solana.Address][]solana.ProgramAccount),
		LargestAccounts: make(map[solana.Address][]solana.TokenAccountBalance),
		Supplies:        make(map[solana.Address]*solana.TokenAmount),
		Balances:        make(map[solana.Address]*solana.TokenAmount),
		Signatures:      make(map[solana.Address][]solana.SignatureInfo),
		Transactions:    make(map[string]*solana.Transaction),
		Statuses:        make(map[string]*solana.SignatureStatus),
		Blockhash:       "GfVcyD4kkTrj4bKc7WA9sZCin9JDbdT4Zkd3EittNR1W",
		Errs:            make(map[string]error),
		SendErrs:        make(map[int]error),
	}
}

func (c *RPCClient) record(method string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls = append(c.Calls, method)
	return c.Errs[method]
}

// CallCount returns how many times a method was invoked.
func (c *RPCClient) CallCount(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, call := range c.Calls {
		if call == method {
			n++
		}
	}
	return n
}

// GetAccountInfo retrieves account info from the stub store.
func (c *RPCClient) GetAccountInfo(_ context.Context, addr solana.Address) (*solana.AccountInfo, error) {
	if err := c.record("getAccountInfo"); err != nil {
		return nil, err
	}
	return c.Accounts[addr], nil
}

// GetProgramAccounts retrieves program accounts from the stub store.
// Filters are applied the way a live node would.
func (c *RPCClient) GetProgramAccounts(_ context.Context, program solana.Address, opts *solana.ProgramAccountsOpts) ([]solana.ProgramAccount, error) {
	if err := c.record("getProgramAccounts"); err != nil {
		return nil, err
	}

	var out []solana.ProgramAccount
	for _, acc := range c.ProgramAccounts[program] {
		if opts != nil {
			if opts.DataSize > 0 && uint64(len(acc.Account.Data)) != opts.DataSize {
				continue
			}
			match := true
			for _, m := range opts.Memcmp {
				end := int(m.Offset) + len(m.Bytes)
				if end > len(acc.Account.Data) || !bytesEqual(acc.Account.Data[m.Offset:end], m.Bytes) {
					match = false
					break
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, acc)
	}
	return out, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// GetTokenLargestAccounts retrieves the largest-accounts view from the stub.
func (c *RPCClient) GetTokenLargestAccounts(_ context.Context, mint solana.Address) ([]solana.TokenAccountBalance, error) {
	if err := c.record("getTokenLargestAccounts"); err != nil {
		return nil, err
	}
	return c.LargestAccounts[mint], nil
}

// GetTokenSupply retrieves mint supply from the stub store.
func (c *RPCClient) GetTokenSupply(_ context.Context, mint solana.Address) (*solana.TokenAmount, error) {
	if err := c.record("getTokenSupply"); err != nil {
		return nil, err
	}
	supply, ok := c.Supplies[mint]
	if !ok {
		return nil, ErrNotFound
	}
	return supply, nil
}

// GetTokenAccountBalance retrieves a token account balance from the stub.
func (c *RPCClient) GetTokenAccountBalance(_ context.Context, account solana.Address) (*solana.TokenAmount, error) {
	if err := c.record("getTokenAccountBalance"); err != nil {
		return nil, err
	}
	balance, ok := c.Balances[account]
	if !ok {
		return nil, ErrNotFound
	}
	return balance, nil
}

// GetSignaturesForAddress retrieves signatures from the stub store.
func (c *RPCClient) GetSignaturesForAddress(_ context.Context, addr solana.Address, opts *solana.SignaturesOpts) ([]solana.SignatureInfo, error) {
	if err := c.record("getSignaturesForAddress"); err != nil {
		return nil, err
	}

	sigs := c.Signatures[addr]
	if opts != nil && opts.Before != "" {
		// Return entries after the cursor.
		for i, s := range sigs {
			if s.Signature == opts.Before {
				sigs = sigs[i+1:]
				break
			}
		}
	}
	if opts != nil && opts.Limit > 0 && opts.Limit < len(sigs) {
		return sigs[:opts.Limit], nil
	}
	return sigs, nil
}

// GetTransaction retrieves a transaction from the stub store.
func (c *RPCClient) GetTransaction(_ context.Context, signature string) (*solana.Transaction, error) {
	if err := c.record("getTransaction"); err != nil {
		return nil, err
	}
	return c.Transactions[signature], nil
}

// GetLatestBlockhash returns the configured blockhash.
func (c *RPCClient) GetLatestBlockhash(_ context.Context) (string, error) {
	if err := c.record("getLatestBlockhash"); err != nil {
		return "", err
	}
	return c.Blockhash, nil
}

// SendTransaction records the submission and returns a synthetic signature.
func (c *RPCClient) SendTransaction(_ context.Context, _ []byte) (string, error) {
	if err := c.record("sendTransaction"); err != nil {
		return "", err
	}

	c.mu.Lock()
	idx := c.sendCount
	c.sendCount++
	sendErr := c.SendErrs[idx]
	c.mu.Unlock()

	if sendErr != nil {
		return "", sendErr
	}

	sig := fmt.Sprintf("stubsig%d", idx)
	c.mu.Lock()
	c.Statuses[sig] = &solana.SignatureStatus{ConfirmationStatus: "confirmed"}
	c.mu.Unlock()
	return sig, nil
}

// GetSignatureStatuses retrieves statuses from the stub store.
func (c *RPCClient) GetSignatureStatuses(_ context.Context, signatures []string) ([]*solana.SignatureStatus, error) {
	if err := c.record("getSignatureStatuses"); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*solana.SignatureStatus, len(signatures))
	for i, sig := range signatures {
		out[i] = c.Statuses[sig]
	}
	return out, nil
}

// Compile-time interface check.
var _ solana.RPCClient = (*RPCClient)(nil)
