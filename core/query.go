package core

import (
	"github.com/holiman/uint256"

	"growspace/core/types"
	"growspace/native/growspace"
)

// Treasury returns the committed treasury.
func (n *Node) Treasury() (*growspace.Treasury, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.Treasury()
}

// Ledger returns a committed ledger record.
func (n *Node) Ledger(id uint64) (*growspace.LedgerRecord, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.Ledger(id)
}

// LedgerIDs lists ledger record identifiers in creation order.
func (n *Node) LedgerIDs() ([]uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.GrowspaceLedgerIDs()
}

// PeriodCounter returns the counter for period.
func (n *Node) PeriodCounter(period uint64) (*growspace.PeriodCounter, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.PeriodCounter(period)
}

// UserAccount returns an identity's account for period.
func (n *Node) UserAccount(id types.Identity, period uint64) (*growspace.UserPeriodAccount, bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.UserAccount(id, period)
}

// Balance returns the spendable balance of an identity.
func (n *Node) Balance(id types.Identity) (*uint256.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.Balance(id)
}
