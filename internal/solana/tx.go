package solana

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// AccountMeta describes how an account participates in an instruction.
type AccountMeta struct {
	Address    Address
	IsSigner   bool
	IsWritable bool
}

// Instruction is a single program invocation.
type Instruction struct {
	ProgramID Address
	Accounts  []AccountMeta
	Data      []byte
}

// SPL token instruction discriminators.
const (
	tokenInstructionTransferChecked = 12
	ataInstructionCreateIdempotent  = 1
)

// NewTransferCheckedInstruction builds a checked token transfer. The decimals
// value is verified against the mint on-chain, rejecting transfers built with
// a stale precision assumption.
func NewTransferCheckedInstruction(tokenProgram, source, mint, destination, owner Address, amount uint64, decimals uint8) Instruction {
	data := make([]byte, 10)
	data[0] = tokenInstructionTransferChecked
	binary.LittleEndian.PutUint64(data[1:9], amount)
	data[9] = decimals

	return Instruction{
		ProgramID: tokenProgram,
		Accounts: []AccountMeta{
			{Address: source, IsWritable: true},
			{Address: mint},
			{Address: destination, IsWritable: true},
			{Address: owner, IsSigner: true},
		},
		Data: data,
	}
}

// NewCreateAssociatedAccountInstruction builds an idempotent associated token
// account creation. Submitting it for an existing account is a no-op, so it
// can be prepended without a prior existence race.
func NewCreateAssociatedAccountInstruction(payer, associated, owner, mint, tokenProgram Address) Instruction {
	return Instruction{
		ProgramID: AssociatedTokenProgram,
		Accounts: []AccountMeta{
			{Address: payer, IsSigner: true, IsWritable: true},
			{Address: associated, IsWritable: true},
			{Address: owner},
			{Address: mint},
			{Address: SystemProgram},
			{Address: tokenProgram},
		},
		Data: []byte{ataInstructionCreateIdempotent},
	}
}

// FindAssociatedTokenAccount derives the canonical token holding account for
// an owner and mint under the given token program.
func FindAssociatedTokenAccount(owner, mint, tokenProgram Address) (Address, error) {
	seeds := [][]byte{owner.Bytes(), tokenProgram.Bytes(), mint.Bytes()}
	addr, _, err := findProgramAddress(seeds, AssociatedTokenProgram)
	return addr, err
}

// findProgramAddress derives a program address by searching bump seeds from
// 255 downward for the first off-curve result.
func findProgramAddress(seeds [][]byte, programID Address) (Address, uint8, error) {
	for bump := 255; bump >= 0; bump-- {
		data := make([]byte, 0, 128)
		for _, seed := range seeds {
			data = append(data, seed...)
		}
		data = append(data, byte(bump))
		data = append(data, programID[:]...)
		data = append(data, []byte("ProgramDerivedAddress")...)

		hash := sha256.Sum256(data)

		if !isOnCurve(hash[:]) {
			addr, err := AddressFromBytes(hash[:])
			if err != nil {
				return Address{}, 0, err
			}
			return addr, uint8(bump), nil
		}
	}

	return Address{}, 0, fmt.Errorf("no valid program address found")
}

func isOnCurve(point []byte) bool {
	if len(point) != AddressLen {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}

// compiledAccount is one entry of the compiled message account list.
type compiledAccount struct {
	address    Address
	isSigner   bool
	isWritable bool
}

// BuildTransaction compiles instructions into a legacy wire transaction
// signed by the payer.
func BuildTransaction(instructions []Instruction, payer *Keypair, recentBlockhash string) ([]byte, error) {
	if len(instructions) == 0 {
		return nil, fmt.Errorf("no instructions")
	}
	if payer == nil {
		return nil, fmt.Errorf("nil payer")
	}

	blockhash, err := base58.Decode(recentBlockhash)
	if err != nil {
		return nil, fmt.Errorf("decode blockhash %q: %w", recentBlockhash, err)
	}
	if len(blockhash) != 32 {
		return nil, fmt.Errorf("blockhash: expected 32 bytes, got %d", len(blockhash))
	}

	accounts := compileAccounts(instructions, payer.Address())
	message, err := serializeMessage(accounts, instructions, blockhash)
	if err != nil {
		return nil, err
	}

	// Single required signature: the distributing authority is both fee payer
	// and token owner.
	signature := payer.Sign(message)

	wire := make([]byte, 0, 1+len(signature)+len(message))
	wire = appendCompactU16(wire, 1)
	wire = append(wire, signature...)
	wire = append(wire, message...)

	return wire, nil
}

// compileAccounts deduplicates accounts across instructions and orders them:
// writable signers (payer first), readonly signers, writable non-signers,
// readonly non-signers. Flags are the union across references.
func compileAccounts(instructions []Instruction, payer Address) []compiledAccount {
	merged := map[Address]*compiledAccount{
		payer: {address: payer, isSigner: true, isWritable: true},
	}
	order := []Address{payer}

	observe := func(meta AccountMeta) {
		if acc, ok := merged[meta.Address]; ok {
			acc.isSigner = acc.isSigner || meta.IsSigner
			acc.isWritable = acc.isWritable || meta.IsWritable
			return
		}
		merged[meta.Address] = &compiledAccount{
			address:    meta.Address,
			isSigner:   meta.IsSigner,
			isWritable: meta.IsWritable,
		}
		order = append(order, meta.Address)
	}

	for _, instr := range instructions {
		for _, meta := range instr.Accounts {
			observe(meta)
		}
		observe(AccountMeta{Address: instr.ProgramID})
	}

	var writableSigners, readonlySigners, writable, readonly []compiledAccount
	for _, addr := range order {
		acc := *merged[addr]
		switch {
		case acc.isSigner && acc.isWritable:
			writableSigners = append(writableSigners, acc)
		case acc.isSigner:
			readonlySigners = append(readonlySigners, acc)
		case acc.isWritable:
			writable = append(writable, acc)
		default:
			readonly = append(readonly, acc)
		}
	}

	result := make([]compiledAccount, 0, len(order))
	result = append(result, writableSigners...)
	result = append(result, readonlySigners...)
	result = append(result, writable...)
	result = append(result, readonly...)
	return result
}

// serializeMessage encodes the legacy message format.
func serializeMessage(accounts []compiledAccount, instructions []Instruction, blockhash []byte) ([]byte, error) {
	index := make(map[Address]int, len(accounts))
	var numSigners, numReadonlySigned, numReadonlyUnsigned int
	for i, acc := range accounts {
		index[acc.address] = i
		if acc.isSigner {
			numSigners++
			if !acc.isWritable {
				numReadonlySigned++
			}
		} else if !acc.isWritable {
			numReadonlyUnsigned++
		}
	}

	msg := make([]byte, 0, 256)
	msg = append(msg, byte(numSigners), byte(numReadonlySigned), byte(numReadonlyUnsigned))

	msg = appendCompactU16(msg, len(accounts))
	for _, acc := range accounts {
		msg = append(msg, acc.address[:]...)
	}

	msg = append(msg, blockhash...)

	msg = appendCompactU16(msg, len(instructions))
	for _, instr := range instructions {
		programIdx, ok := index[instr.ProgramID]
		if !ok {
			return nil, fmt.Errorf("program %s missing from account table", instr.ProgramID)
		}
		msg = append(msg, byte(programIdx))

		msg = appendCompactU16(msg, len(instr.Accounts))
		for _, meta := range instr.Accounts {
			idx, ok := index[meta.Address]
			if !ok {
				return nil, fmt.Errorf("account %s missing from account table", meta.Address)
			}
			msg = append(msg, byte(idx))
		}

		msg = appendCompactU16(msg, len(instr.Data))
		msg = append(msg, instr.Data...)
	}

	return msg, nil
}

// appendCompactU16 appends a compact-u16 (shortvec) length prefix.
func appendCompactU16(b []byte, n int) []byte {
	v := uint16(n)
	for {
		if v < 0x80 {
			return append(b, byte(v))
		}
		b = append(b, byte(v&0x7f)|0x80)
		v >>= 7
	}
}
