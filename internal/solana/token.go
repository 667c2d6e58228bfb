package solana

import (
	"encoding/binary"
	"fmt"
)

// Well-known program IDs.
var (
	// SystemProgram is the native system program.
	SystemProgram = MustParseAddress("11111111111111111111111111111111")

	// TokenProgram is the original SPL Token program.
	TokenProgram = MustParseAddress("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")

	// Token2022Program is the extensions-capable token program. Its accounts
	// are excluded from the RPC secondary index, so getProgramAccounts scans
	// against it are not a reliable discovery path.
	Token2022Program = MustParseAddress("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")

	// AssociatedTokenProgram derives canonical token holding accounts.
	AssociatedTokenProgram = MustParseAddress("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")
)

// SPL token account byte layout (base account, extensions follow for Token-2022).
const (
	// TokenAccountSize is the size of a base token account.
	TokenAccountSize = 165

	tokenAccountMintOffset   = 0
	tokenAccountOwnerOffset  = 32
	tokenAccountAmountOffset = 64
)

// Mint account layout offsets.
const (
	mintSupplyOffset   = 36
	mintDecimalsOffset = 44
	mintMinSize        = 82
)

// TokenAccount is the decoded base layout of a token holding account.
type TokenAccount struct {
	Mint   Address
	Owner  Address
	Amount uint64
}

// DecodeTokenAccount decodes the base token account layout from raw account
// data. Token-2022 accounts carry trailing extension data, so only a minimum
// length is required.
func DecodeTokenAccount(data []byte) (*TokenAccount, error) {
	if len(data) < TokenAccountSize {
		return nil, fmt.Errorf("token account data too short: %d bytes", len(data))
	}

	mint, err := AddressFromBytes(data[tokenAccountMintOffset : tokenAccountMintOffset+AddressLen])
	if err != nil {
		return nil, fmt.Errorf("decode mint: %w", err)
	}
	owner, err := AddressFromBytes(data[tokenAccountOwnerOffset : tokenAccountOwnerOffset+AddressLen])
	if err != nil {
		return nil, fmt.Errorf("decode owner: %w", err)
	}

	return &TokenAccount{
		Mint:   mint,
		Owner:  owner,
		Amount: binary.LittleEndian.Uint64(data[tokenAccountAmountOffset : tokenAccountAmountOffset+8]),
	}, nil
}

// Mint is the decoded base layout of a mint account.
type Mint struct {
	Supply   uint64
	Decimals uint8
}

// DecodeMint decodes the base mint layout from raw account data.
func DecodeMint(data []byte) (*Mint, error) {
	if len(data) < mintMinSize {
		return nil, fmt.Errorf("mint account data too short: %d bytes", len(data))
	}

	return &Mint{
		Supply:   binary.LittleEndian.Uint64(data[mintSupplyOffset : mintSupplyOffset+8]),
		Decimals: data[mintDecimalsOffset],
	}, nil
}
