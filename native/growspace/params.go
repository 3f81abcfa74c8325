package growspace

import (
	"fmt"

	"github.com/holiman/uint256"
)

const (
	// BaseRecordSize is the footprint of an empty ledger record: an 8 byte
	// discriminator followed by a 4 byte vector length.
	BaseRecordSize uint64 = 12

	// EndorserBytes is consumed when an identity joins an existing fingerprint.
	EndorserBytes uint64 = 32
	// FingerprintEntryBytes is consumed by a new fingerprint on an existing block.
	FingerprintEntryBytes uint64 = 32 + 8 + 8
	// BlockEntryBytes is consumed by the first vote for a block.
	BlockEntryBytes uint64 = 64
)

// RentParams prices the storage held by ledger records.
type RentParams struct {
	StorageOverheadBytes uint64
	LamportsPerByteYear  uint64
	ExemptionYears       uint64
	// MaxGrowthPerAppend bounds how many bytes a single append may add.
	MaxGrowthPerAppend uint64
	// MaxRecordSize bounds the total capacity of a record.
	MaxRecordSize uint64
}

// DefaultRentParams mirrors the host's rent-exemption schedule.
func DefaultRentParams() RentParams {
	return RentParams{
		StorageOverheadBytes: 128,
		LamportsPerByteYear:  3480,
		ExemptionYears:       2,
		MaxGrowthPerAppend:   10 * 1024,
		MaxRecordSize:        10 * 1024 * 1024,
	}
}

// Validate ensures the rent schedule is usable.
func (p RentParams) Validate() error {
	if p.ExemptionYears == 0 {
		return fmt.Errorf("rent: exemption years must be positive")
	}
	if p.MaxGrowthPerAppend == 0 {
		return fmt.Errorf("rent: max growth per append must be positive")
	}
	if p.MaxRecordSize < BaseRecordSize {
		return fmt.Errorf("rent: max record size must be at least %d", BaseRecordSize)
	}
	return nil
}

// Params controls reward issuance and storage pricing.
type Params struct {
	// RewardPerPeriod is split pro rata among the credit issued in a period.
	RewardPerPeriod *uint256.Int
	// PeriodDurationSeconds is the length of a reward period.
	PeriodDurationSeconds uint64
	Rent                  RentParams
}

// DefaultParams returns a one-day period paying 1,000,000 units.
func DefaultParams() Params {
	return Params{
		RewardPerPeriod:       uint256.NewInt(1_000_000),
		PeriodDurationSeconds: 24 * 60 * 60,
		Rent:                  DefaultRentParams(),
	}
}

// Validate ensures the supplied parameters fall within safe operating ranges.
func (p Params) Validate() error {
	if p.PeriodDurationSeconds == 0 {
		return fmt.Errorf("period duration must be positive")
	}
	if p.RewardPerPeriod == nil {
		return fmt.Errorf("reward per period must be set")
	}
	return p.Rent.Validate()
}
