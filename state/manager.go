package state

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"crowdsale/core/types"
	"crowdsale/native/sale"
	"crowdsale/storage"
)

// Manager is the durable state backend shared by the sale and token engines.
// It owns the keyspace exclusively; records are RLP-encoded.
type Manager struct {
	db storage.Database
}

// NewManager wraps the supplied database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

type storedSale struct {
	TotalRaised *big.Int
	Finalized   bool
	Succeeded   bool
}

type storedAccount struct {
	Balance      *big.Int
	TokenBalance *big.Int
}

func (m *Manager) getRLP(key []byte, out interface{}) (bool, error) {
	raw, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return false, fmt.Errorf("state: decode %q: %w", key, err)
	}
	return true, nil
}

func (m *Manager) putRLP(key []byte, value interface{}) error {
	raw, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", key, err)
	}
	return m.db.Put(key, raw)
}

// SaleGet loads the mutable sale record, defaulting to a zero record when
// none was persisted yet.
func (m *Manager) SaleGet() (*sale.Record, error) {
	var stored storedSale
	ok, err := m.getRLP(keySaleRecord, &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &sale.Record{TotalRaised: big.NewInt(0)}, nil
	}
	record := &sale.Record{
		TotalRaised: stored.TotalRaised,
		Finalized:   stored.Finalized,
		Succeeded:   stored.Succeeded,
	}
	return record.Normalize(), nil
}

// SalePut persists the mutable sale record.
func (m *Manager) SalePut(record *sale.Record) error {
	if record == nil {
		return fmt.Errorf("state: nil sale record")
	}
	record = record.Clone().Normalize()
	return m.putRLP(keySaleRecord, &storedSale{
		TotalRaised: record.TotalRaised,
		Finalized:   record.Finalized,
		Succeeded:   record.Succeeded,
	})
}

// ContributionGet returns the party's ledger entry, zero when absent.
func (m *Manager) ContributionGet(party [20]byte) (*big.Int, error) {
	value := new(big.Int)
	ok, err := m.getRLP(contributionKey(party), value)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return value, nil
}

// ContributionPut stores the party's ledger entry and tracks the party in
// the contributor index on first write.
func (m *Manager) ContributionPut(party [20]byte, amount *big.Int) error {
	if amount == nil {
		amount = big.NewInt(0)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("state: negative contribution")
	}
	seen, err := m.db.Has(contributionKey(party))
	if err != nil {
		return err
	}
	if err := m.putRLP(contributionKey(party), amount); err != nil {
		return err
	}
	if !seen {
		index, err := m.Contributors()
		if err != nil {
			return err
		}
		index = append(index, party)
		if err := m.putRLP(keyContributorIndex, index); err != nil {
			return err
		}
	}
	return nil
}

// Contributors lists every party that ever held a ledger entry, in first
// contribution order.
func (m *Manager) Contributors() ([][20]byte, error) {
	var index [][20]byte
	if _, err := m.getRLP(keyContributorIndex, &index); err != nil {
		return nil, err
	}
	return index, nil
}

// WhitelistEnabled reports whether contribution gating is active.
func (m *Manager) WhitelistEnabled() (bool, error) {
	raw, err := m.db.Get(keyWhitelistEnabled)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return len(raw) == 1 && raw[0] == 1, nil
}

// SetWhitelistEnabled toggles contribution gating.
func (m *Manager) SetWhitelistEnabled(enabled bool) error {
	value := []byte{0}
	if enabled {
		value[0] = 1
	}
	return m.db.Put(keyWhitelistEnabled, value)
}

// WhitelistContains reports whether the party is on the allow-list.
func (m *Manager) WhitelistContains(party [20]byte) (bool, error) {
	return m.db.Has(whitelistKey(party))
}

// WhitelistPut adds or removes the party from the allow-list.
func (m *Manager) WhitelistPut(party [20]byte, allowed bool) error {
	if !allowed {
		return m.db.Delete(whitelistKey(party))
	}
	return m.db.Put(whitelistKey(party), []byte{1})
}

// GetAccount loads the account stored for addr, defaulting to zero balances.
func (m *Manager) GetAccount(addr []byte) (*types.Account, error) {
	var stored storedAccount
	ok, err := m.getRLP(accountKey(addr), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return (&types.Account{}).Normalize(), nil
	}
	acc := &types.Account{Balance: stored.Balance, TokenBalance: stored.TokenBalance}
	return acc.Normalize(), nil
}

// PutAccount persists the account stored for addr.
func (m *Manager) PutAccount(addr []byte, account *types.Account) error {
	account = account.Clone()
	return m.putRLP(accountKey(addr), &storedAccount{
		Balance:      account.Balance,
		TokenBalance: account.TokenBalance,
	})
}

// ApplyGenesis credits the supplied starting balances exactly once per data
// directory and reports whether this call applied them. Later boots are
// no-ops regardless of configuration changes.
func (m *Manager) ApplyGenesis(allocations map[[20]byte]*big.Int) (bool, error) {
	applied, err := m.db.Has(keyGenesisApplied)
	if err != nil {
		return false, err
	}
	if applied {
		return false, nil
	}
	for addr, balance := range allocations {
		if balance == nil || balance.Sign() <= 0 {
			return false, fmt.Errorf("state: genesis balance must be positive")
		}
		acc, err := m.GetAccount(addr[:])
		if err != nil {
			return false, err
		}
		acc.Balance = new(big.Int).Add(acc.Balance, balance)
		if err := m.PutAccount(addr[:], acc); err != nil {
			return false, err
		}
	}
	return true, m.db.Put(keyGenesisApplied, []byte{1})
}

// TokenSupplyGet returns the persisted token supply, zero when absent.
func (m *Manager) TokenSupplyGet() (*big.Int, error) {
	value := new(big.Int)
	ok, err := m.getRLP(keyTokenSupply, value)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return value, nil
}

// TokenSupplyPut persists the token supply.
func (m *Manager) TokenSupplyPut(supply *big.Int) error {
	if supply == nil {
		supply = big.NewInt(0)
	}
	if supply.Sign() < 0 {
		return fmt.Errorf("state: negative supply")
	}
	return m.putRLP(keyTokenSupply, supply)
}
