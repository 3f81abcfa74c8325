package growspace

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestComputeReward(t *testing.T) {
	pool := uint256.NewInt(1_000_000)
	reward, err := ComputeReward(pool, 1, 2)
	require.NoError(t, err)
	require.Equal(t, uint64(500_000), reward.Uint64())

	reward, err = ComputeReward(pool, 1, 3)
	require.NoError(t, err)
	require.Equal(t, uint64(333_333), reward.Uint64())

	reward, err = ComputeReward(pool, 0, 0)
	require.NoError(t, err)
	require.True(t, reward.IsZero())

	_, err = ComputeReward(pool, 1, 0)
	require.ErrorIs(t, err, ErrArithmetic)
	_, err = ComputeReward(pool, 3, 2)
	require.ErrorIs(t, err, ErrArithmetic)
}

func TestRedeemAdvancesBothCounters(t *testing.T) {
	account := &UserPeriodAccount{Identity: idA, Period: 1, Credit: 3, Redeemed: 1}
	counter := &PeriodCounter{Period: 1, Credit: 4, Redeemed: 1}

	out, err := Redeem(account, counter, uint256.NewInt(1_000))
	require.NoError(t, err)
	require.Equal(t, uint64(2), out.Redeemed)
	require.Equal(t, uint64(500), out.Reward.Uint64())
	require.Equal(t, uint64(3), out.Account.Redeemed)
	require.Equal(t, uint64(3), out.Counter.Redeemed)

	require.Equal(t, uint64(1), account.Redeemed)
	require.Equal(t, uint64(1), counter.Redeemed)
}

func TestRedeemRejectsBrokenCounter(t *testing.T) {
	account := &UserPeriodAccount{Identity: idA, Period: 1, Credit: 2}
	_, err := Redeem(account, &PeriodCounter{Period: 1, Credit: 2, Redeemed: 1}, uint256.NewInt(10))
	require.ErrorIs(t, err, ErrArithmetic)

	_, err = Redeem(account, nil, uint256.NewInt(10))
	require.ErrorIs(t, err, ErrArithmetic)

	_, err = Redeem(&UserPeriodAccount{Credit: 1, Redeemed: 1}, nil, uint256.NewInt(10))
	require.ErrorIs(t, err, ErrNoRedeemableCredit)
}
