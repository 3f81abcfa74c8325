package events

import (
	"encoding/hex"
	"strconv"

	"growspace/core/types"
)

const (
	// TypePeriodRolledOver is emitted when the reward period index advances.
	TypePeriodRolledOver = "growspace.period_rolled_over"
	// TypeVoterCredited is emitted for every endorser credited by a majority.
	TypeVoterCredited = "growspace.voter_credited"
	// TypeRewardClaimed is emitted when an account redeems its period credit.
	TypeRewardClaimed = "growspace.reward_claimed"
)

// PeriodRolledOver snapshots the closing period's counters at the moment the
// period index advances.
type PeriodRolledOver struct {
	NewPeriod      uint64
	Timestamp      int64
	PreviousCredit uint64
	PreviousDebit  uint64
}

// EventType implements the Event interface.
func (PeriodRolledOver) EventType() string { return TypePeriodRolledOver }

// Event converts the rollover into a types.Event payload.
func (e PeriodRolledOver) Event() *types.Event {
	return &types.Event{
		Type: TypePeriodRolledOver,
		Attributes: map[string]string{
			"new_period":      strconv.FormatUint(e.NewPeriod, 10),
			"timestamp":       strconv.FormatInt(e.Timestamp, 10),
			"previous_credit": strconv.FormatUint(e.PreviousCredit, 10),
			"previous_debit":  strconv.FormatUint(e.PreviousDebit, 10),
		},
	}
}

// VoterCredited records a single credit granted to an endorser of the
// previous block's majority fingerprint.
type VoterCredited struct {
	Voter                 types.Identity
	Submitter             types.Identity
	LedgerID              uint64
	BlockID               uint64
	PreviousCreditedBlock uint64
	Credit                uint64
	FinalHash             [8]byte
}

// EventType implements the Event interface.
func (VoterCredited) EventType() string { return TypeVoterCredited }

// Event converts the credit into a types.Event payload.
func (e VoterCredited) Event() *types.Event {
	return &types.Event{
		Type: TypeVoterCredited,
		Attributes: map[string]string{
			"voter":                   e.Voter.String(),
			"submitter":               e.Submitter.String(),
			"ledger_id":               strconv.FormatUint(e.LedgerID, 10),
			"block_id":                strconv.FormatUint(e.BlockID, 10),
			"previous_credited_block": strconv.FormatUint(e.PreviousCreditedBlock, 10),
			"credit":                  strconv.FormatUint(e.Credit, 10),
			"final_hash":              hex.EncodeToString(e.FinalHash[:]),
		},
	}
}

// RewardClaimed records a redemption against a closed period.
type RewardClaimed struct {
	Owner    types.Identity
	Period   uint64
	Redeemed uint64
	Reward   string
}

// EventType implements the Event interface.
func (RewardClaimed) EventType() string { return TypeRewardClaimed }

// Event converts the claim into a types.Event payload.
func (e RewardClaimed) Event() *types.Event {
	reward := e.Reward
	if reward == "" {
		reward = "0"
	}
	return &types.Event{
		Type: TypeRewardClaimed,
		Attributes: map[string]string{
			"owner":    e.Owner.String(),
			"period":   strconv.FormatUint(e.Period, 10),
			"redeemed": strconv.FormatUint(e.Redeemed, 10),
			"reward":   reward,
		},
	}
}
