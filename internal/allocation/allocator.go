// Package allocation computes exact integer allocations of a total amount
// across holders. Pure functions, no I/O, integer arithmetic only: floor
// rounding guarantees the allocated sum never exceeds the total, and results
// are reproducible bit for bit.
package allocation

import (
	"fmt"
	"math/big"

	"spl-distributor/internal/domain"
	"spl-distributor/internal/solana"
)

// Allocation is one recipient's allocated amount in the token's smallest unit.
type Allocation struct {
	Recipient solana.Address `json:"recipient"`
	Amount    uint64         `json:"amount"`
}

// Exclusion records a holder left out of the allocation, for auditability.
type Exclusion struct {
	Address solana.Address `json:"address"`
	Balance uint64         `json:"balance"`
	Reason  string         `json:"reason"`
}

// Plan is a complete allocation result. Allocations preserve holder input
// order; excluded holders are absent from Allocations, and their share is
// not redistributed.
type Plan struct {
	Allocations    []Allocation `json:"allocations"`
	Excluded       []Exclusion  `json:"excluded"`
	TotalAllocated uint64       `json:"totalAllocated"`
}

// Compute allocates total across holders according to mode. Holders whose
// allocation falls below minimum are excluded entirely, not clipped.
func Compute(holders []domain.TokenHolder, total uint64, mode domain.AllocationMode, minimum uint64) (*Plan, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("unknown allocation mode %q", mode)
	}

	switch mode {
	case domain.ModeEqual:
		return computeEqual(holders, total, minimum), nil
	default:
		return computeProportional(holders, total, minimum), nil
	}
}

func computeEqual(holders []domain.TokenHolder, total uint64, minimum uint64) *Plan {
	plan := &Plan{}
	if len(holders) == 0 {
		return plan
	}

	perHolder := total / uint64(len(holders))

	for _, h := range holders {
		switch {
		case perHolder == 0:
			plan.Excluded = append(plan.Excluded, Exclusion{
				Address: h.Address, Balance: h.Balance, Reason: "zero allocation",
			})
		case perHolder < minimum:
			plan.Excluded = append(plan.Excluded, Exclusion{
				Address: h.Address, Balance: h.Balance, Reason: "below minimum amount",
			})
		default:
			plan.Allocations = append(plan.Allocations, Allocation{Recipient: h.Address, Amount: perHolder})
			plan.TotalAllocated += perHolder
		}
	}

	return plan
}

func computeProportional(holders []domain.TokenHolder, total uint64, minimum uint64) *Plan {
	plan := &Plan{}
	if len(holders) == 0 {
		return plan
	}

	var totalBalance uint64
	for _, h := range holders {
		totalBalance += h.Balance
	}
	if totalBalance == 0 {
		for _, h := range holders {
			plan.Excluded = append(plan.Excluded, Exclusion{
				Address: h.Address, Balance: h.Balance, Reason: "zero allocation",
			})
		}
		return plan
	}

	// amount_i = floor(balance_i × total / Σbalance). The product can exceed
	// 64 bits, so it goes through big.Int; the result always fits back.
	bigTotal := new(big.Int).SetUint64(total)
	bigTotalBalance := new(big.Int).SetUint64(totalBalance)

	for _, h := range holders {
		product := new(big.Int).SetUint64(h.Balance)
		product.Mul(product, bigTotal)
		product.Div(product, bigTotalBalance)
		amount := product.Uint64()

		switch {
		case amount == 0:
			plan.Excluded = append(plan.Excluded, Exclusion{
				Address: h.Address, Balance: h.Balance, Reason: "zero allocation",
			})
		case amount < minimum:
			plan.Excluded = append(plan.Excluded, Exclusion{
				Address: h.Address, Balance: h.Balance, Reason: "below minimum amount",
			})
		default:
			plan.Allocations = append(plan.Allocations, Allocation{Recipient: h.Address, Amount: amount})
			plan.TotalAllocated += amount
		}
	}

	return plan
}
