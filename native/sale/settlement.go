package sale

import (
	"errors"
	"fmt"
	"math/big"
)

// TokenDispenser is the sale's view of the token collaborator. Mint creates
// new token units for the recipient; Transfer pays out of the engine's
// pre-funded custody balance instead. Both operations settle the same debt,
// they differ only in where the tokens come from.
type TokenDispenser interface {
	Mint(to [20]byte, amount *big.Int) error
	Transfer(to [20]byte, amount *big.Int) error
}

// SettlementMode identifies which settlement strategy paid out a claim.
type SettlementMode uint8

const (
	SettleMint SettlementMode = iota
	SettleTransfer
)

// String returns the canonical name recorded in events.
func (m SettlementMode) String() string {
	switch m {
	case SettleMint:
		return "mint"
	case SettleTransfer:
		return "transfer"
	default:
		return "unknown"
	}
}

// settlementOrder fixes the strategy sequence: mint on demand first, then
// fall back to paying out of pre-funded custody. The fallback requires the
// engine's custody address to hold a sufficient pre-minted token balance;
// operators that disable minting must fund custody before finalizing.
var settlementOrder = []SettlementMode{SettleMint, SettleTransfer}

// dispense tries each settlement strategy in order and stops at the first
// success. When every strategy fails the claim aborts as a unit and the
// caller restores the ledger entry.
func dispense(token TokenDispenser, to [20]byte, amount *big.Int) (SettlementMode, error) {
	if token == nil {
		return 0, fmt.Errorf("%w: token collaborator not configured", ErrSettlementFailed)
	}
	attempts := make([]error, 0, len(settlementOrder))
	for _, mode := range settlementOrder {
		var err error
		switch mode {
		case SettleMint:
			err = token.Mint(to, amount)
		case SettleTransfer:
			err = token.Transfer(to, amount)
		}
		if err == nil {
			return mode, nil
		}
		attempts = append(attempts, fmt.Errorf("%s: %w", mode, err))
	}
	return 0, fmt.Errorf("%w: %v", ErrSettlementFailed, errors.Join(attempts...))
}
