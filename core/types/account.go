package types

import "math/big"

// Account holds the balances tracked for a single address: the base-currency
// balance contributions are drawn from and refunds are returned to, and the
// sale token balance credited during claim settlement.
type Account struct {
	Balance      *big.Int `json:"balance"`
	TokenBalance *big.Int `json:"tokenBalance"`
}

// Normalize replaces nil balance fields with zero values so callers can do
// arithmetic without nil checks.
func (a *Account) Normalize() *Account {
	if a == nil {
		return &Account{Balance: big.NewInt(0), TokenBalance: big.NewInt(0)}
	}
	if a.Balance == nil {
		a.Balance = big.NewInt(0)
	}
	if a.TokenBalance == nil {
		a.TokenBalance = big.NewInt(0)
	}
	return a
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return (&Account{}).Normalize()
	}
	clone := &Account{Balance: big.NewInt(0), TokenBalance: big.NewInt(0)}
	if a.Balance != nil {
		clone.Balance = new(big.Int).Set(a.Balance)
	}
	if a.TokenBalance != nil {
		clone.TokenBalance = new(big.Int).Set(a.TokenBalance)
	}
	return clone
}
