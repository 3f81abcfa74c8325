package core

import (
	"context"
	"log/slog"

	"github.com/holiman/uint256"

	"growspace/core/types"
	"growspace/native/growspace"
)

// GenesisAllocation funds an identity when the state is first created.
type GenesisAllocation struct {
	Identity types.Identity
	Amount   *uint256.Int
}

// Genesis seeds a fresh state.
type Genesis struct {
	Allocations []GenesisAllocation
	// Admin funds the treasury with TreasuryFunding when it is non-zero.
	Admin           types.Identity
	TreasuryFunding *uint256.Int
}

// ApplyGenesis credits the allocations and initialises the treasury in a
// single transaction. It only runs against an empty state and reports whether
// it did anything.
func (n *Node) ApplyGenesis(ctx context.Context, genesis Genesis) (bool, error) {
	if n.Height() > 0 {
		return false, nil
	}
	err := n.execute(ctx, "genesis", func(engine *growspace.Engine) error {
		for _, alloc := range genesis.Allocations {
			if err := n.state.CreditBalance(alloc.Identity, alloc.Amount); err != nil {
				return err
			}
		}
		if genesis.TreasuryFunding == nil || genesis.TreasuryFunding.IsZero() {
			return nil
		}
		_, err := engine.InitializeTreasury(genesis.Admin, genesis.TreasuryFunding)
		return err
	})
	if err != nil {
		return false, err
	}
	n.logger.Info("genesis applied",
		slog.Int("allocations", len(genesis.Allocations)),
		slog.Bool("treasury", genesis.TreasuryFunding != nil && !genesis.TreasuryFunding.IsZero()))
	if treasury, terr := n.Treasury(); terr == nil {
		n.metrics.SetCurrentPeriod(treasury.CurrentPeriod)
	}
	return true, nil
}
