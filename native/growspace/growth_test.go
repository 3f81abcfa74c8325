package growspace

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestMinimumBalance(t *testing.T) {
	rent := DefaultRentParams()
	got, err := rent.MinimumBalance(0)
	require.NoError(t, err)
	require.Equal(t, uint64(128*3480*2), got.Uint64())

	got, err = rent.MinimumBalance(BaseRecordSize)
	require.NoError(t, err)
	require.Equal(t, uint64(974_400), got.Uint64())
}

func TestGrowthPlan(t *testing.T) {
	rent := DefaultRentParams()
	manager := NewGrowthManager(rent)
	record := NewLedgerRecord(1)
	record.Deposit, _ = rent.MinimumBalance(BaseRecordSize)

	plan, err := manager.Plan(record, BlockEntryBytes)
	require.NoError(t, err)
	require.Equal(t, BaseRecordSize+BlockEntryBytes, plan.NewCapacity)
	require.Equal(t, uint64(BlockEntryBytes*3480*2), plan.Shortfall.Uint64())

	require.NoError(t, plan.Apply(record))
	require.Equal(t, BaseRecordSize+BlockEntryBytes, record.Capacity)
	minimum, _ := rent.MinimumBalance(record.Capacity)
	require.Equal(t, minimum, record.Deposit)
}

func TestGrowthPlanOverfundedDepositSaturates(t *testing.T) {
	manager := NewGrowthManager(DefaultRentParams())
	record := NewLedgerRecord(1)
	record.Deposit = uint256.NewInt(1_000_000_000)

	plan, err := manager.Plan(record, EndorserBytes)
	require.NoError(t, err)
	require.True(t, plan.Shortfall.IsZero())
	require.NoError(t, plan.Apply(record))
	require.Equal(t, BaseRecordSize+EndorserBytes, record.Capacity)
	require.Equal(t, uint64(1_000_000_000), record.Deposit.Uint64())
}

func TestGrowthPlanLimits(t *testing.T) {
	rent := DefaultRentParams()
	manager := NewGrowthManager(rent)

	_, err := manager.Plan(NewLedgerRecord(1), rent.MaxGrowthPerAppend+1)
	require.ErrorIs(t, err, ErrGrowth)

	full := NewLedgerRecord(1)
	full.Capacity = rent.MaxRecordSize
	_, err = manager.Plan(full, 1)
	require.ErrorIs(t, err, ErrGrowth)

	_, err = manager.Plan(nil, 1)
	require.ErrorIs(t, err, ErrLedgerMissing)
}
