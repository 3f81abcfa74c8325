package growspace

import (
	"fmt"

	"github.com/holiman/uint256"
)

// MinimumBalance returns the deposit that keeps a record of size bytes
// exempt from rent.
func (p RentParams) MinimumBalance(size uint64) (*uint256.Int, error) {
	bytes, err := addUint64(p.StorageOverheadBytes, size)
	if err != nil {
		return nil, err
	}
	out := new(uint256.Int).SetUint64(bytes)
	out.Mul(out, new(uint256.Int).SetUint64(p.LamportsPerByteYear))
	out.Mul(out, new(uint256.Int).SetUint64(p.ExemptionYears))
	return out, nil
}

// GrowthPlan describes how a record must change to absorb a mutation.
type GrowthPlan struct {
	Delta       uint64
	NewCapacity uint64
	// Shortfall is the deposit top-up owed by the payer.
	Shortfall *uint256.Int
}

// GrowthManager decides whether a record may grow and what the growth costs.
type GrowthManager struct {
	rent RentParams
}

// NewGrowthManager constructs a manager for the supplied rent schedule.
func NewGrowthManager(rent RentParams) GrowthManager {
	return GrowthManager{rent: rent}
}

// Plan sizes the record for delta more bytes. Capacity grows by exactly delta
// and the shortfall saturates at zero when the deposit already covers the new
// minimum balance.
func (g GrowthManager) Plan(record *LedgerRecord, delta uint64) (GrowthPlan, error) {
	if record == nil {
		return GrowthPlan{}, ErrLedgerMissing
	}
	if delta > g.rent.MaxGrowthPerAppend {
		return GrowthPlan{}, fmt.Errorf("%w: delta %d exceeds per-append limit %d", ErrGrowth, delta, g.rent.MaxGrowthPerAppend)
	}
	capacity, err := addUint64(record.Capacity, delta)
	if err != nil {
		return GrowthPlan{}, err
	}
	if capacity > g.rent.MaxRecordSize {
		return GrowthPlan{}, fmt.Errorf("%w: capacity %d exceeds record limit %d", ErrGrowth, capacity, g.rent.MaxRecordSize)
	}
	required, err := g.rent.MinimumBalance(capacity)
	if err != nil {
		return GrowthPlan{}, err
	}
	shortfall := new(uint256.Int)
	deposit := cloneAmount(record.Deposit)
	if required.Gt(deposit) {
		shortfall.Sub(required, deposit)
	}
	return GrowthPlan{Delta: delta, NewCapacity: capacity, Shortfall: shortfall}, nil
}

// Apply commits a plan to the record after the payer has been debited.
func (p GrowthPlan) Apply(record *LedgerRecord) error {
	deposit, err := addAmount(record.Deposit, p.Shortfall)
	if err != nil {
		return err
	}
	record.Deposit = deposit
	record.Capacity = p.NewCapacity
	return nil
}
