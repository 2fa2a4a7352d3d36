package token

import "math/big"

// Dispenser binds the token engine to a custody address so the sale engine
// can settle claims without knowing about mint authorities. Mint passes the
// custody address as the caller, so minting works when custody holds the
// mint authority; Transfer pays out of the custody balance, which covers
// pre-funded deployments where minting is disabled.
type Dispenser struct {
	token   *Token
	custody [20]byte
}

// NewDispenser constructs a dispenser paying out of the supplied custody
// address.
func NewDispenser(token *Token, custody [20]byte) *Dispenser {
	return &Dispenser{token: token, custody: custody}
}

// Mint requests new token units for the recipient on behalf of custody.
func (d *Dispenser) Mint(to [20]byte, amount *big.Int) error {
	if d == nil || d.token == nil {
		return errNilState
	}
	return d.token.Mint(d.custody, to, amount)
}

// Transfer pays the recipient out of the custody balance.
func (d *Dispenser) Transfer(to [20]byte, amount *big.Int) error {
	if d == nil || d.token == nil {
		return errNilState
	}
	return d.token.Transfer(d.custody, to, amount)
}
