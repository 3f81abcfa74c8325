package growspace

import (
	"fmt"

	"github.com/holiman/uint256"
)

// ComputeReward splits rewardPerPeriod pro rata: redeemable credit out of the
// period's total credit. The division truncates; the remainder stays in the
// treasury.
func ComputeReward(rewardPerPeriod *uint256.Int, redeemable, creditTotal uint64) (*uint256.Int, error) {
	if redeemable == 0 {
		return new(uint256.Int), nil
	}
	// Every account credit is also counted in its period, so a zero total
	// with redeemable credit means the counters disagree. Fail rather than
	// redeem nothing.
	if creditTotal == 0 || redeemable > creditTotal {
		return nil, fmt.Errorf("%w: redeemable %d exceeds period credit %d", ErrArithmetic, redeemable, creditTotal)
	}
	reward := new(uint256.Int).Mul(cloneAmount(rewardPerPeriod), new(uint256.Int).SetUint64(redeemable))
	return reward.Div(reward, new(uint256.Int).SetUint64(creditTotal)), nil
}

// Redemption is the result of redeeming an account against its period.
type Redemption struct {
	Account  *UserPeriodAccount
	Counter  *PeriodCounter
	Redeemed uint64
	Reward   *uint256.Int
}

// Redeem advances both redeemed counters by the account's outstanding credit
// and prices it. The inputs are left untouched.
func Redeem(account *UserPeriodAccount, counter *PeriodCounter, rewardPerPeriod *uint256.Int) (Redemption, error) {
	redeemable := account.Redeemable()
	if redeemable == 0 {
		return Redemption{}, ErrNoRedeemableCredit
	}
	if counter == nil {
		counter = &PeriodCounter{Period: account.Period}
	}
	reward, err := ComputeReward(rewardPerPeriod, redeemable, counter.Credit)
	if err != nil {
		return Redemption{}, err
	}
	nextAccount := account.Clone()
	nextCounter := counter.Clone()
	if nextAccount.Redeemed, err = addUint64(nextAccount.Redeemed, redeemable); err != nil {
		return Redemption{}, err
	}
	if nextCounter.Redeemed, err = addUint64(nextCounter.Redeemed, redeemable); err != nil {
		return Redemption{}, err
	}
	if nextCounter.Redeemed > nextCounter.Credit {
		return Redemption{}, fmt.Errorf("%w: period %d redeemed %d exceeds credit %d", ErrArithmetic, nextCounter.Period, nextCounter.Redeemed, nextCounter.Credit)
	}
	return Redemption{
		Account:  nextAccount,
		Counter:  nextCounter,
		Redeemed: redeemable,
		Reward:   reward,
	}, nil
}
