package solana

import "context"

// RPCClient defines the single logical node connection the engine consumes.
type RPCClient interface {
	// GetAccountInfo retrieves account info by address. Returns nil if the
	// account does not exist.
	GetAccountInfo(ctx context.Context, addr Address) (*AccountInfo, error)

	// GetProgramAccounts retrieves all accounts owned by a program, optionally
	// filtered by data size and byte-offset matches.
	GetProgramAccounts(ctx context.Context, program Address, opts *ProgramAccountsOpts) ([]ProgramAccount, error)

	// GetTokenLargestAccounts retrieves the chain's largest-accounts view for
	// a mint (top 20 token accounts by balance).
	GetTokenLargestAccounts(ctx context.Context, mint Address) ([]TokenAccountBalance, error)

	// GetTokenSupply retrieves total supply and decimals for a mint.
	GetTokenSupply(ctx context.Context, mint Address) (*TokenAmount, error)

	// GetTokenAccountBalance retrieves the balance of a token account.
	GetTokenAccountBalance(ctx context.Context, account Address) (*TokenAmount, error)

	// GetSignaturesForAddress retrieves signatures referencing an address,
	// newest first, with pagination.
	GetSignaturesForAddress(ctx context.Context, addr Address, opts *SignaturesOpts) ([]SignatureInfo, error)

	// GetTransaction retrieves a confirmed transaction by signature.
	// Returns nil if not found.
	GetTransaction(ctx context.Context, signature string) (*Transaction, error)

	// GetLatestBlockhash retrieves a recent blockhash for transaction building.
	GetLatestBlockhash(ctx context.Context) (string, error)

	// SendTransaction submits a signed transaction and returns its signature.
	SendTransaction(ctx context.Context, signed []byte) (string, error)

	// GetSignatureStatuses retrieves confirmation status for signatures.
	// Entries are nil for unknown signatures.
	GetSignatureStatuses(ctx context.Context, signatures []string) ([]*SignatureStatus, error)
}

// AccountInfo represents account state. Data is the decoded raw bytes.
type AccountInfo struct {
	Lamports   uint64
	Owner      Address
	Data       []byte
	Executable bool
	RentEpoch  uint64
}

// ProgramAccountsOpts filters a program-account scan.
type ProgramAccountsOpts struct {
	// DataSize filters accounts by exact data length. Zero disables.
	DataSize uint64
	// Memcmp filters accounts whose data matches Bytes at Offset.
	Memcmp []MemcmpFilter
}

// MemcmpFilter matches raw bytes at a fixed offset in account data.
type MemcmpFilter struct {
	Offset uint64
	Bytes  []byte
}

// ProgramAccount is one result of a program-account scan.
type ProgramAccount struct {
	Address Address
	Account AccountInfo
}

// TokenAccountBalance is one entry of the largest-accounts view.
type TokenAccountBalance struct {
	Address  Address
	Amount   uint64
	Decimals uint8
}

// TokenAmount is a token balance in the mint's smallest unit.
type TokenAmount struct {
	Amount   uint64
	Decimals uint8
}

// SignaturesOpts paginates signature history queries.
type SignaturesOpts struct {
	Before string
	Until  string
	Limit  int
}

// SignatureInfo is one signature history entry.
type SignatureInfo struct {
	Signature string
	Slot      int64
	BlockTime *int64
	Err       interface{}
}

// Transaction represents a confirmed transaction.
type Transaction struct {
	Slot      int64
	Signature string
	BlockTime int64 // Unix timestamp (seconds)
	Meta      *TransactionMeta
}

// TransactionMeta contains transaction metadata.
type TransactionMeta struct {
	Err               interface{}
	LogMessages       []string
	PostTokenBalances []TokenBalance
}

// TokenBalance is a post-transaction token balance entry.
type TokenBalance struct {
	AccountIndex int
	Mint         string
	Owner        string
	Amount       uint64
	Decimals     uint8
}

// SignatureStatus is the confirmation state of a submitted transaction.
type SignatureStatus struct {
	Slot               int64
	Confirmations      *int
	ConfirmationStatus string
	Err                interface{}
}
