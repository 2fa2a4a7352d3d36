package token

import (
	"errors"
	"fmt"
	"math/big"

	"crowdsale/core/events"
	"crowdsale/core/types"
)

var (
	errNilState = errors.New("token engine: state not configured")

	// ErrNotMinter rejects mint and burn calls from any address other
	// than the configured authority.
	ErrNotMinter = errors.New("token: caller is not the minter")
	// ErrInvalidAmount rejects non-positive amounts.
	ErrInvalidAmount = errors.New("token: amount must be positive")
	// ErrInsufficientBalance rejects transfers and burns exceeding the
	// source balance.
	ErrInsufficientBalance = errors.New("token: insufficient balance")
)

// engineState is the persistence surface the token engine depends on.
type engineState interface {
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
	TokenSupplyGet() (*big.Int, error)
	TokenSupplyPut(supply *big.Int) error
}

// Token is the minimal mintable token collaborator: balances live in the
// shared account state, minting and burning are gated by a single authority.
type Token struct {
	state   engineState
	minter  [20]byte
	emitter events.Emitter
}

// NewToken constructs a token engine gated by the supplied minter authority.
func NewToken(minter [20]byte) *Token {
	return &Token{minter: minter, emitter: events.NoopEmitter{}}
}

// SetState configures the persistence backend used by the engine.
func (t *Token) SetState(state engineState) { t.state = state }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op
// implementation.
func (t *Token) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		t.emitter = events.NoopEmitter{}
		return
	}
	t.emitter = emitter
}

// Minter returns the configured mint authority.
func (t *Token) Minter() [20]byte {
	if t == nil {
		return [20]byte{}
	}
	return t.minter
}

func (t *Token) emit(event *types.Event) {
	if t == nil || t.emitter == nil || event == nil {
		return
	}
	t.emitter.Emit(tokenEvent{evt: event})
}

// Mint creates amount new token units for the recipient. Only the
// configured authority may mint.
func (t *Token) Mint(caller, to [20]byte, amount *big.Int) error {
	if t == nil || t.state == nil {
		return errNilState
	}
	if caller != t.minter {
		return ErrNotMinter
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	toAcc, err := t.state.GetAccount(to[:])
	if err != nil {
		return err
	}
	toAcc = toAcc.Normalize()
	toAcc.TokenBalance = new(big.Int).Add(toAcc.TokenBalance, amount)
	if err := t.state.PutAccount(to[:], toAcc); err != nil {
		return err
	}
	supply, err := t.state.TokenSupplyGet()
	if err != nil {
		return err
	}
	if supply == nil {
		supply = big.NewInt(0)
	}
	if err := t.state.TokenSupplyPut(new(big.Int).Add(supply, amount)); err != nil {
		return err
	}
	t.emit(NewMintEvent(to, amount))
	return nil
}

// Burn destroys amount token units held by the source address. Only the
// configured authority may burn.
func (t *Token) Burn(caller, from [20]byte, amount *big.Int) error {
	if t == nil || t.state == nil {
		return errNilState
	}
	if caller != t.minter {
		return ErrNotMinter
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	fromAcc, err := t.state.GetAccount(from[:])
	if err != nil {
		return err
	}
	fromAcc = fromAcc.Normalize()
	if fromAcc.TokenBalance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	fromAcc.TokenBalance = new(big.Int).Sub(fromAcc.TokenBalance, amount)
	if err := t.state.PutAccount(from[:], fromAcc); err != nil {
		return err
	}
	supply, err := t.state.TokenSupplyGet()
	if err != nil {
		return err
	}
	if supply == nil || supply.Cmp(amount) < 0 {
		return fmt.Errorf("token: supply underflow")
	}
	if err := t.state.TokenSupplyPut(new(big.Int).Sub(supply, amount)); err != nil {
		return err
	}
	t.emit(NewBurnEvent(from, amount))
	return nil
}

// Transfer moves amount token units between two addresses. Authorization of
// the source is the transport's concern; engine-internal callers pass their
// own custody address.
func (t *Token) Transfer(from, to [20]byte, amount *big.Int) error {
	if t == nil || t.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	fromAcc, err := t.state.GetAccount(from[:])
	if err != nil {
		return err
	}
	fromAcc = fromAcc.Normalize()
	if fromAcc.TokenBalance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	toAcc, err := t.state.GetAccount(to[:])
	if err != nil {
		return err
	}
	toAcc = toAcc.Normalize()
	fromAcc.TokenBalance = new(big.Int).Sub(fromAcc.TokenBalance, amount)
	toAcc.TokenBalance = new(big.Int).Add(toAcc.TokenBalance, amount)
	if err := t.state.PutAccount(from[:], fromAcc); err != nil {
		return err
	}
	if err := t.state.PutAccount(to[:], toAcc); err != nil {
		return err
	}
	t.emit(NewTransferEvent(from, to, amount))
	return nil
}

// BalanceOf returns the token balance of the supplied address.
func (t *Token) BalanceOf(addr [20]byte) (*big.Int, error) {
	if t == nil || t.state == nil {
		return nil, errNilState
	}
	acc, err := t.state.GetAccount(addr[:])
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(acc.Normalize().TokenBalance), nil
}

// TotalSupply returns the current minted supply.
func (t *Token) TotalSupply() (*big.Int, error) {
	if t == nil || t.state == nil {
		return nil, errNilState
	}
	supply, err := t.state.TokenSupplyGet()
	if err != nil {
		return nil, err
	}
	if supply == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(supply), nil
}
