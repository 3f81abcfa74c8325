package growspace

import (
	"github.com/holiman/uint256"

	"growspace/core/types"
)

// Treasury returns the treasury singleton.
func (e *Engine) Treasury() (*Treasury, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	treasury, ok, err := e.state.GrowspaceTreasury()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrTreasuryMissing
	}
	return treasury.Clone(), nil
}

// Ledger returns the ledger record with the supplied identifier.
func (e *Engine) Ledger(id uint64) (*LedgerRecord, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	record, ok, err := e.state.GrowspaceLedger(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLedgerMissing
	}
	return record.Clone(), nil
}

// PeriodCounter returns the counter for period. Periods that were never
// referenced report an empty counter.
func (e *Engine) PeriodCounter(period uint64) (*PeriodCounter, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	counter, ok, err := e.state.GrowspacePeriodCounter(period)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &PeriodCounter{Period: period}, nil
	}
	return counter.Clone(), nil
}

// UserAccount returns the identity's account for period. The boolean is false
// when the identity never voted in that period.
func (e *Engine) UserAccount(id types.Identity, period uint64) (*UserPeriodAccount, bool, error) {
	if err := e.ready(); err != nil {
		return nil, false, err
	}
	acc, ok, err := e.state.GrowspaceAccount(id, period)
	if err != nil || !ok {
		return nil, ok, err
	}
	return acc.Clone(), true, nil
}

// Balance returns the spendable balance of an identity.
func (e *Engine) Balance(id types.Identity) (*uint256.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	balance, err := e.state.GrowspaceBalance(id)
	if err != nil {
		return nil, err
	}
	return cloneAmount(balance), nil
}
