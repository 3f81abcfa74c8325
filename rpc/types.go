package rpc

import (
	"growspace/core/types"
	"growspace/native/growspace"
)

// AppendVoteBody is the JSON payload of POST /v1/votes. Identities are base58
// text; the digest is hashed into an 8-byte fingerprint server side.
type AppendVoteBody struct {
	LedgerID     uint64           `json:"ledgerId"`
	PrevLedgerID *uint64          `json:"prevLedgerId,omitempty"`
	BlockID      uint64           `json:"blockId"`
	HashDigest   string           `json:"hashDigest"`
	Submitter    types.Identity   `json:"submitter"`
	Payer        *types.Identity  `json:"payer,omitempty"`
	Ballot       []uint64         `json:"ballot,omitempty"`
	WorkingSet   []types.Identity `json:"workingSet,omitempty"`
}

func (b AppendVoteBody) request() growspace.AppendVoteRequest {
	req := growspace.AppendVoteRequest{
		LedgerID:     b.LedgerID,
		PrevLedgerID: b.PrevLedgerID,
		BlockID:      b.BlockID,
		HashDigest:   []byte(b.HashDigest),
		Submitter:    b.Submitter,
		Ballot:       b.Ballot,
		WorkingSet:   b.WorkingSet,
	}
	if b.Payer != nil {
		req.Payer = *b.Payer
	}
	return req
}

// AppendVoteResponse reports the effects of an accepted vote.
type AppendVoteResponse struct {
	Period     uint64           `json:"period"`
	BytesAdded uint64           `json:"bytesAdded"`
	Capacity   uint64           `json:"capacity"`
	RentPaid   string           `json:"rentPaid"`
	Credited   []types.Identity `json:"credited"`
	RolledOver *RolloverJSON    `json:"rolledOver,omitempty"`
}

// RolloverJSON describes a period transition.
type RolloverJSON struct {
	ClosedPeriod uint64 `json:"closedPeriod"`
	NewPeriod    uint64 `json:"newPeriod"`
	Timestamp    int64  `json:"timestamp"`
}

func appendVoteResponse(res *growspace.AppendVoteResult) AppendVoteResponse {
	out := AppendVoteResponse{
		Period:     res.Period,
		BytesAdded: res.BytesAdded,
		Capacity:   res.Capacity,
		RentPaid:   amountString(res.RentPaid),
		Credited:   res.Credited,
	}
	if out.Credited == nil {
		out.Credited = []types.Identity{}
	}
	if res.RolledOver != nil {
		out.RolledOver = &RolloverJSON{
			ClosedPeriod: res.RolledOver.ClosedPeriod,
			NewPeriod:    res.RolledOver.NewPeriod,
			Timestamp:    res.RolledOver.Timestamp,
		}
	}
	return out
}

// CreateLedgerBody is the JSON payload of POST /v1/ledgers.
type CreateLedgerBody struct {
	LedgerID uint64         `json:"ledgerId"`
	Payer    types.Identity `json:"payer"`
}

// ClaimBody is the JSON payload of POST /v1/claims. The caller is the
// authenticated principal.
type ClaimBody struct {
	Owner  types.Identity `json:"owner"`
	Period uint64         `json:"period"`
}

// ClaimResponse reports a successful redemption.
type ClaimResponse struct {
	Owner    types.Identity `json:"owner"`
	Period   uint64         `json:"period"`
	Redeemed uint64         `json:"redeemed"`
	Reward   string         `json:"reward"`
}

// InitializeTreasuryBody is the JSON payload of POST /v1/admin/treasury.
type InitializeTreasuryBody struct {
	Admin  types.Identity `json:"admin"`
	Amount string         `json:"amount"`
}

// TreasuryJSON renders the treasury singleton.
type TreasuryJSON struct {
	GenesisTimestamp int64  `json:"genesisTimestamp"`
	CurrentPeriod    uint64 `json:"currentPeriod"`
	Balance          string `json:"balance"`
}

func treasuryJSON(t *growspace.Treasury) TreasuryJSON {
	return TreasuryJSON{
		GenesisTimestamp: t.GenesisTimestamp,
		CurrentPeriod:    t.CurrentPeriod,
		Balance:          amountString(t.Balance),
	}
}

// PeriodCounterJSON renders a period's aggregate credit.
type PeriodCounterJSON struct {
	Period   uint64 `json:"period"`
	Credit   uint64 `json:"credit"`
	Debit    uint64 `json:"debit"`
	Redeemed uint64 `json:"redeemed"`
	Closed   bool   `json:"closed"`
}

// AccountJSON renders a user period account.
type AccountJSON struct {
	Identity          types.Identity `json:"identity"`
	Period            uint64         `json:"period"`
	LastCreditedBlock uint64         `json:"lastCreditedBlock"`
	Credit            uint64         `json:"credit"`
	Debit             uint64         `json:"debit"`
	Redeemed          uint64         `json:"redeemed"`
	Redeemable        uint64         `json:"redeemable"`
}

func accountJSON(a *growspace.UserPeriodAccount) AccountJSON {
	return AccountJSON{
		Identity:          a.Identity,
		Period:            a.Period,
		LastCreditedBlock: a.LastCreditedBlock,
		Credit:            a.Credit,
		Debit:             a.Debit,
		Redeemed:          a.Redeemed,
		Redeemable:        a.Redeemable(),
	}
}

// FinalHashJSON renders one fingerprint and its endorsers.
type FinalHashJSON struct {
	Fingerprint string           `json:"fingerprint"`
	Endorsers   []types.Identity `json:"endorsers"`
}

// BlockJSON renders a block entry together with its current majority.
type BlockJSON struct {
	BlockID     uint64          `json:"blockId"`
	FinalHashes []FinalHashJSON `json:"finalHashes"`
	TotalVotes  uint64          `json:"totalVotes"`
	Majority    string          `json:"majority,omitempty"`
}

func blockJSON(b *growspace.BlockEntry) BlockJSON {
	out := BlockJSON{
		BlockID:     b.BlockID,
		FinalHashes: make([]FinalHashJSON, 0, len(b.FinalHashes)),
		TotalVotes:  b.TotalVotes(),
	}
	for _, entry := range b.FinalHashes {
		out.FinalHashes = append(out.FinalHashes, FinalHashJSON{
			Fingerprint: entry.Fingerprint.String(),
			Endorsers:   entry.Endorsers,
		})
	}
	if majority, ok := growspace.ResolveMajority(*b); ok {
		out.Majority = majority.Fingerprint.String()
	}
	return out
}

// LedgerJSON renders a ledger record.
type LedgerJSON struct {
	ID       uint64      `json:"id"`
	Capacity uint64      `json:"capacity"`
	Deposit  string      `json:"deposit"`
	Blocks   []BlockJSON `json:"blocks"`
}

func ledgerJSON(r *growspace.LedgerRecord) LedgerJSON {
	out := LedgerJSON{
		ID:       r.ID,
		Capacity: r.Capacity,
		Deposit:  amountString(r.Deposit),
		Blocks:   make([]BlockJSON, 0, len(r.Blocks)),
	}
	for i := range r.Blocks {
		out.Blocks = append(out.Blocks, blockJSON(&r.Blocks[i]))
	}
	return out
}

// BalanceJSON renders a spendable balance.
type BalanceJSON struct {
	Identity types.Identity `json:"identity"`
	Balance  string         `json:"balance"`
}

// EventJSON is a feed notification as sent over the event stream.
type EventJSON struct {
	Sequence   uint64            `json:"sequence"`
	Cursor     string            `json:"cursor"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
