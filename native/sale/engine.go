package sale

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"crowdsale/core/events"
	"crowdsale/core/types"
	nativecommon "crowdsale/native/common"
)

// engineState is the persistence surface the engine depends on. Every method
// operates on a single sale instance; the engine owns the keyspace
// exclusively.
type engineState interface {
	SaleGet() (*Record, error)
	SalePut(*Record) error
	ContributionGet(party [20]byte) (*big.Int, error)
	ContributionPut(party [20]byte, amount *big.Int) error
	WhitelistEnabled() (bool, error)
	SetWhitelistEnabled(enabled bool) error
	WhitelistContains(party [20]byte) (bool, error)
	WhitelistPut(party [20]byte, allowed bool) error
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
}

type saleEvent struct {
	evt *types.Event
}

func (e saleEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e saleEvent) Event() *types.Event { return e.evt }

// DefaultVaultAddress derives the module address holding contributed value
// while the sale is open.
func DefaultVaultAddress() [20]byte {
	var addr [20]byte
	copy(addr[:], ethcrypto.Keccak256([]byte("crowdsale/sale-vault"))[12:])
	return addr
}

// Engine enforces the sale's caps, runs the one-shot finalization decision
// and settles claims and refunds. All public operations hold the call guard
// for their full duration, so checks and effects commit as one unit and
// nested invocation from a settlement callback is rejected.
type Engine struct {
	params  *Params
	state   engineState
	token   TokenDispenser
	assets  map[string]TokenDispenser
	vault   [20]byte
	guard   *nativecommon.Guard
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine validates the supplied parameters and constructs an engine with
// a no-op emitter and the default vault address. Invalid parameters yield no
// instance.
func NewEngine(params *Params) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		params:  params.Clone(),
		assets:  make(map[string]TokenDispenser),
		vault:   DefaultVaultAddress(),
		guard:   &nativecommon.Guard{},
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}, nil
}

// SetState configures the persistence backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetToken configures the token collaborator used by claim settlement.
func (e *Engine) SetToken(token TokenDispenser) { e.token = token }

// SetVault overrides the module address holding contributed value.
func (e *Engine) SetVault(addr [20]byte) {
	if e == nil || addr == ([20]byte{}) {
		return
	}
	e.vault = addr
}

// Vault returns the module address holding contributed value.
func (e *Engine) Vault() [20]byte {
	if e == nil {
		return [20]byte{}
	}
	return e.vault
}

// Params returns a copy of the immutable sale parameters.
func (e *Engine) Params() *Params {
	if e == nil {
		return nil
	}
	return e.params.Clone()
}

// RegisterAsset wires an additional token collaborator reachable from the
// emergency recovery path, keyed by its symbol.
func (e *Engine) RegisterAsset(symbol string, dispenser TokenDispenser) {
	if e == nil || dispenser == nil {
		return
	}
	trimmed := strings.ToUpper(strings.TrimSpace(symbol))
	if trimmed == "" {
		return
	}
	e.assets[trimmed] = dispenser
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op
// implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the trusted clock. Primarily intended for tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(saleEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) loadRecord() (*Record, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	record, err := e.state.SaleGet()
	if err != nil {
		return nil, err
	}
	return record.Normalize(), nil
}

func (e *Engine) requireOperator(caller [20]byte) error {
	if caller != e.params.Operator {
		return ErrNotOperator
	}
	return nil
}

// transferValue moves base-currency balance between two accounts owned by
// the state backend.
func (e *Engine) transferValue(from, to [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	amt := cloneBigInt(amount)
	if amt.Sign() == 0 {
		return nil
	}
	if amt.Sign() < 0 {
		return fmt.Errorf("sale: negative transfer amount")
	}
	fromAcc, err := e.state.GetAccount(from[:])
	if err != nil {
		return err
	}
	toAcc, err := e.state.GetAccount(to[:])
	if err != nil {
		return err
	}
	fromAcc = fromAcc.Normalize()
	toAcc = toAcc.Normalize()
	if fromAcc.Balance.Cmp(amt) < 0 {
		return ErrInsufficientBalance
	}
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amt)
	toAcc.Balance = new(big.Int).Add(toAcc.Balance, amt)
	if err := e.state.PutAccount(from[:], fromAcc); err != nil {
		return err
	}
	if err := e.state.PutAccount(to[:], toAcc); err != nil {
		// Undo the debit so a failed credit does not destroy value.
		fromAcc.Balance = new(big.Int).Add(fromAcc.Balance, amt)
		if restoreErr := e.state.PutAccount(from[:], fromAcc); restoreErr != nil {
			return fmt.Errorf("%v (debit restore failed: %v)", err, restoreErr)
		}
		return err
	}
	return nil
}

// Contribute validates and records a contribution from the party. The
// checks and the ledger write commit as one unit relative to every other
// operation on the engine.
func (e *Engine) Contribute(party [20]byte, amount *big.Int) error {
	if err := e.guard.Acquire(); err != nil {
		return err
	}
	defer e.guard.Release()

	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	record, err := e.loadRecord()
	if err != nil {
		return err
	}
	if record.Finalized {
		return ErrWindowClosed
	}
	now := e.now()
	if now < e.params.StartTime || now > e.params.EndTime {
		return ErrWindowClosed
	}
	enabled, err := e.state.WhitelistEnabled()
	if err != nil {
		return err
	}
	if enabled {
		allowed, err := e.state.WhitelistContains(party)
		if err != nil {
			return err
		}
		if !allowed {
			return ErrNotWhitelisted
		}
	}
	contributed, err := e.state.ContributionGet(party)
	if err != nil {
		return err
	}
	newContribution := new(big.Int).Add(cloneBigInt(contributed), amount)
	if newContribution.Cmp(e.params.MinContribution) < 0 {
		return fmt.Errorf("%w: %s < %s", ErrBelowMinimum, newContribution, e.params.MinContribution)
	}
	if newContribution.Cmp(e.params.MaxContribution) > 0 {
		return fmt.Errorf("%w: %s > %s", ErrAboveMaximum, newContribution, e.params.MaxContribution)
	}
	newTotal := new(big.Int).Add(record.TotalRaised, amount)
	if newTotal.Cmp(e.params.HardCap) > 0 {
		return fmt.Errorf("%w: %s > %s", ErrHardCapExceeded, newTotal, e.params.HardCap)
	}
	account, err := e.state.GetAccount(party[:])
	if err != nil {
		return err
	}
	if account.Normalize().Balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}

	// Ledger writes commit first; the value move comes last and every
	// failure unwinds to the pre-call state.
	prevTotal := cloneBigInt(record.TotalRaised)
	if err := e.state.ContributionPut(party, newContribution); err != nil {
		return err
	}
	record.TotalRaised = newTotal
	if err := e.state.SalePut(record); err != nil {
		if restoreErr := e.state.ContributionPut(party, contributed); restoreErr != nil {
			return fmt.Errorf("%v (ledger restore failed: %v)", err, restoreErr)
		}
		return err
	}
	if err := e.transferValue(party, e.vault, amount); err != nil {
		record.TotalRaised = prevTotal
		restoreErr := errors.Join(
			e.state.ContributionPut(party, contributed),
			e.state.SalePut(record),
		)
		if restoreErr != nil {
			return fmt.Errorf("%v (ledger restore failed: %v)", err, restoreErr)
		}
		return err
	}
	e.emit(NewContributionEvent(party, amount, newTotal))
	return nil
}

// Finalize commits the one-shot terminal decision: success when the total
// raised reached the soft cap, failure otherwise. The outcome is derived
// solely from the ledger snapshot at the moment of the call and is
// permanent.
func (e *Engine) Finalize(caller [20]byte) (bool, error) {
	if err := e.guard.Acquire(); err != nil {
		return false, err
	}
	defer e.guard.Release()

	if err := e.requireOperator(caller); err != nil {
		return false, err
	}
	record, err := e.loadRecord()
	if err != nil {
		return false, err
	}
	if record.Finalized {
		return false, ErrAlreadyFinalized
	}
	now := e.now()
	if now <= e.params.EndTime && record.TotalRaised.Cmp(e.params.HardCap) < 0 {
		return false, ErrSaleStillOpen
	}
	record.Finalized = true
	record.Succeeded = record.TotalRaised.Cmp(e.params.SoftCap) >= 0
	if err := e.state.SalePut(record); err != nil {
		return false, err
	}
	e.emit(NewFinalizedEvent(record.Succeeded, record.TotalRaised))
	return record.Succeeded, nil
}

// Claim settles the party's token allocation after a successful sale. The
// ledger entry is zeroed before the external mint is attempted and restored
// when settlement fails, so the call either pays out exactly once or leaves
// no trace.
func (e *Engine) Claim(party [20]byte) (*big.Int, error) {
	if err := e.guard.Acquire(); err != nil {
		return nil, err
	}
	defer e.guard.Release()

	record, err := e.loadRecord()
	if err != nil {
		return nil, err
	}
	if !record.Finalized {
		return nil, ErrNotFinalized
	}
	if !record.Succeeded {
		return nil, ErrSoftCapNotMet
	}
	contributed, err := e.state.ContributionGet(party)
	if err != nil {
		return nil, err
	}
	contributed = cloneBigInt(contributed)
	if contributed.Sign() <= 0 {
		return nil, ErrNothingToClaim
	}
	tokenAmount := e.params.TokenAllocation(contributed)
	if tokenAmount.Sign() == 0 {
		return nil, ErrZeroAllocation
	}

	// Zero the entry before handing control to the collaborator; a
	// reentrant claim observes an empty ledger entry and fails.
	if err := e.state.ContributionPut(party, big.NewInt(0)); err != nil {
		return nil, err
	}
	var mode SettlementMode
	err = e.guard.External(func() error {
		var dispenseErr error
		mode, dispenseErr = dispense(e.token, party, tokenAmount)
		return dispenseErr
	})
	if err != nil {
		if restoreErr := e.state.ContributionPut(party, contributed); restoreErr != nil {
			return nil, fmt.Errorf("%w (ledger restore failed: %v)", err, restoreErr)
		}
		return nil, err
	}
	e.emit(NewClaimedEvent(party, tokenAmount, mode))
	return tokenAmount, nil
}

// Refund returns the party's contribution after a failed sale, zeroing the
// ledger entry before the value moves and restoring it when the transfer
// fails.
func (e *Engine) Refund(party [20]byte) (*big.Int, error) {
	if err := e.guard.Acquire(); err != nil {
		return nil, err
	}
	defer e.guard.Release()

	record, err := e.loadRecord()
	if err != nil {
		return nil, err
	}
	if !record.Finalized {
		return nil, ErrNotFinalized
	}
	if record.Succeeded {
		return nil, ErrSoftCapMet
	}
	contributed, err := e.state.ContributionGet(party)
	if err != nil {
		return nil, err
	}
	contributed = cloneBigInt(contributed)
	if contributed.Sign() <= 0 {
		return nil, ErrNothingToRefund
	}

	if err := e.state.ContributionPut(party, big.NewInt(0)); err != nil {
		return nil, err
	}
	err = e.guard.External(func() error {
		return e.transferValue(e.vault, party, contributed)
	})
	if err != nil {
		if restoreErr := e.state.ContributionPut(party, contributed); restoreErr != nil {
			return nil, fmt.Errorf("%w: %v (ledger restore failed: %v)", ErrRefundTransferFailed, err, restoreErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrRefundTransferFailed, err)
	}
	e.emit(NewRefundedEvent(party, contributed))
	return contributed, nil
}

// WithdrawFunds drains the vault to the destination after a successful
// sale. The balance is untouched when the transfer fails.
func (e *Engine) WithdrawFunds(caller, destination [20]byte) (*big.Int, error) {
	if err := e.guard.Acquire(); err != nil {
		return nil, err
	}
	defer e.guard.Release()

	if err := e.requireOperator(caller); err != nil {
		return nil, err
	}
	record, err := e.loadRecord()
	if err != nil {
		return nil, err
	}
	if !record.Finalized {
		return nil, ErrNotFinalized
	}
	if !record.Succeeded {
		return nil, ErrSoftCapNotMet
	}
	if destination == ([20]byte{}) {
		return nil, ErrInvalidDestination
	}
	vaultAcc, err := e.state.GetAccount(e.vault[:])
	if err != nil {
		return nil, err
	}
	balance := cloneBigInt(vaultAcc.Normalize().Balance)
	if balance.Sign() == 0 {
		return big.NewInt(0), nil
	}
	if err := e.transferValue(e.vault, destination, balance); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	return balance, nil
}

// SetWhitelist updates the allow-list entries for the supplied parties. The
// batch commits as a unit: a failed write unwinds the entries already
// applied, and events are emitted only once every write has landed.
func (e *Engine) SetWhitelist(caller [20]byte, parties [][20]byte, allowed bool) error {
	if err := e.guard.Acquire(); err != nil {
		return err
	}
	defer e.guard.Release()

	if err := e.requireOperator(caller); err != nil {
		return err
	}
	if e.state == nil {
		return errNilState
	}
	prior := make([]bool, 0, len(parties))
	unwind := func(err error) error {
		for i := len(prior) - 1; i >= 0; i-- {
			if restoreErr := e.state.WhitelistPut(parties[i], prior[i]); restoreErr != nil {
				return fmt.Errorf("%v (whitelist restore failed: %v)", err, restoreErr)
			}
		}
		return err
	}
	for _, party := range parties {
		was, err := e.state.WhitelistContains(party)
		if err != nil {
			return unwind(err)
		}
		if err := e.state.WhitelistPut(party, allowed); err != nil {
			return unwind(err)
		}
		prior = append(prior, was)
	}
	for _, party := range parties {
		e.emit(NewWhitelistEvent(party, allowed))
	}
	return nil
}

// SetWhitelistEnabled toggles whitelist gating. When disabled, all parties
// are implicitly allowed.
func (e *Engine) SetWhitelistEnabled(caller [20]byte, enabled bool) error {
	if err := e.guard.Acquire(); err != nil {
		return err
	}
	defer e.guard.Release()

	if err := e.requireOperator(caller); err != nil {
		return err
	}
	if e.state == nil {
		return errNilState
	}
	return e.state.SetWhitelistEnabled(enabled)
}

// EmergencyWithdrawValue is the operator escape hatch for base-currency
// recovery. It bypasses the finalization state machine entirely.
func (e *Engine) EmergencyWithdrawValue(caller, destination [20]byte, amount *big.Int) error {
	if err := e.guard.Acquire(); err != nil {
		return err
	}
	defer e.guard.Release()

	if err := e.requireOperator(caller); err != nil {
		return err
	}
	if destination == ([20]byte{}) {
		return ErrInvalidDestination
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	vaultAcc, err := e.state.GetAccount(e.vault[:])
	if err != nil {
		return err
	}
	if vaultAcc.Normalize().Balance.Cmp(amount) < 0 {
		return ErrAmountExceedsBalance
	}
	if err := e.transferValue(e.vault, destination, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	e.emit(NewEmergencyEvent(destination, amount, ""))
	return nil
}

// EmergencyWithdrawAsset recovers mis-sent foreign assets held by the
// engine's custody through a registered collaborator.
func (e *Engine) EmergencyWithdrawAsset(caller [20]byte, asset string, destination [20]byte, amount *big.Int) error {
	if err := e.guard.Acquire(); err != nil {
		return err
	}
	defer e.guard.Release()

	if err := e.requireOperator(caller); err != nil {
		return err
	}
	if destination == ([20]byte{}) {
		return ErrInvalidDestination
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	dispenser, ok := e.assets[strings.ToUpper(strings.TrimSpace(asset))]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAsset, asset)
	}
	err := e.guard.External(func() error {
		return dispenser.Transfer(destination, amount)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	e.emit(NewEmergencyEvent(destination, amount, strings.ToUpper(strings.TrimSpace(asset))))
	return nil
}

// Snapshot returns a consistent read-only view of the sale.
func (e *Engine) Snapshot() (*Snapshot, error) {
	if err := e.guard.Acquire(); err != nil {
		return nil, err
	}
	defer e.guard.Release()

	record, err := e.loadRecord()
	if err != nil {
		return nil, err
	}
	enabled, err := e.state.WhitelistEnabled()
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		Params:           e.params.Clone(),
		TotalRaised:      cloneBigInt(record.TotalRaised),
		Finalized:        record.Finalized,
		Succeeded:        record.Succeeded,
		WhitelistEnabled: enabled,
		Status:           statusAt(e.params, record, e.now()),
	}, nil
}

// ContributionOf returns the party's current ledger entry.
func (e *Engine) ContributionOf(party [20]byte) (*big.Int, error) {
	if err := e.guard.Acquire(); err != nil {
		return nil, err
	}
	defer e.guard.Release()

	if e.state == nil {
		return nil, errNilState
	}
	contributed, err := e.state.ContributionGet(party)
	if err != nil {
		return nil, err
	}
	return cloneBigInt(contributed), nil
}
