package growspace

import (
	"fmt"
	"time"

	"github.com/holiman/uint256"

	"growspace/core/events"
	"growspace/core/types"
)

type engineState interface {
	GrowspaceTreasury() (*Treasury, bool, error)
	GrowspacePutTreasury(*Treasury) error
	GrowspaceLedger(id uint64) (*LedgerRecord, bool, error)
	GrowspacePutLedger(*LedgerRecord) error
	GrowspacePeriodCounter(period uint64) (*PeriodCounter, bool, error)
	GrowspacePutPeriodCounter(*PeriodCounter) error
	GrowspaceAccount(id types.Identity, period uint64) (*UserPeriodAccount, bool, error)
	GrowspacePutAccount(*UserPeriodAccount) error
	GrowspaceBalance(id types.Identity) (*uint256.Int, error)
	GrowspaceSetBalance(id types.Identity, amount *uint256.Int) error
}

// AppendVoteRequest carries a single vote together with the resolution inputs
// for the previous block.
type AppendVoteRequest struct {
	LedgerID uint64
	// PrevLedgerID names the record holding the previous block. Nil skips
	// resolution.
	PrevLedgerID *uint64
	BlockID      uint64
	HashDigest   []byte
	Submitter    types.Identity
	// Payer funds storage growth. The zero identity means the submitter pays.
	Payer types.Identity
	// Ballot lists positions into the winning fingerprint's endorsers.
	Ballot []uint64
	// WorkingSet lists the identities whose current-period accounts may be
	// credited. Identities outside it are skipped.
	WorkingSet []types.Identity
}

// AppendVoteResult reports the effects of an accepted vote.
type AppendVoteResult struct {
	Period     uint64
	BytesAdded uint64
	Capacity   uint64
	RentPaid   *uint256.Int
	Credited   []types.Identity
	RolledOver *Rollover
}

// ClaimRequest redeems owner's credit for a closed period.
type ClaimRequest struct {
	Caller types.Identity
	Owner  types.Identity
	Period uint64
}

// ClaimResult reports the credit redeemed and the reward paid.
type ClaimResult struct {
	Period   uint64
	Redeemed uint64
	Reward   *uint256.Int
}

// Engine applies votes and claims against the injected state. It stages every
// mutation in memory and writes only after all checks succeed; callers that
// need atomicity across the writes wrap it in a state transaction.
type Engine struct {
	state   engineState
	emitter events.Emitter
	params  Params
	growth  GrowthManager
	nowFn   func() int64
}

// NewEngine creates an engine with default parameters and a no-op emitter.
func NewEngine() *Engine {
	params := DefaultParams()
	return &Engine{
		emitter: events.NoopEmitter{},
		params:  params,
		growth:  NewGrowthManager(params.Rent),
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetParams replaces the reward and rent parameters.
func (e *Engine) SetParams(params Params) error {
	if err := params.Validate(); err != nil {
		return err
	}
	params.RewardPerPeriod = cloneAmount(params.RewardPerPeriod)
	e.params = params
	e.growth = NewGrowthManager(params.Rent)
	return nil
}

// Params returns the active parameters.
func (e *Engine) Params() Params {
	out := e.params
	out.RewardPerPeriod = cloneAmount(e.params.RewardPerPeriod)
	return out
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return fmt.Errorf("growspace: engine state not configured")
	}
	return nil
}

// InitializeTreasury creates the reward treasury, starts the period clock at
// the current time and moves fundingAmount from admin into the pool.
func (e *Engine) InitializeTreasury(admin types.Identity, fundingAmount *uint256.Int) (*Treasury, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if _, ok, err := e.state.GrowspaceTreasury(); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrTreasuryExists
	}
	funding := cloneAmount(fundingAmount)
	balance, err := e.state.GrowspaceBalance(admin)
	if err != nil {
		return nil, err
	}
	remaining, err := subAmount(balance, funding)
	if err != nil {
		return nil, fmt.Errorf("fund treasury from %s: %w", admin, err)
	}
	treasury := &Treasury{
		GenesisTimestamp: e.now(),
		CurrentPeriod:    GenesisPeriod,
		Balance:          funding,
	}
	if err := e.state.GrowspaceSetBalance(admin, remaining); err != nil {
		return nil, err
	}
	if err := e.state.GrowspacePutTreasury(treasury); err != nil {
		return nil, err
	}
	return treasury.Clone(), nil
}

// InitializeLedgerRecord creates an empty record and prepays the minimum
// balance for its header from payer.
func (e *Engine) InitializeLedgerRecord(ledgerID uint64, payer types.Identity) (*LedgerRecord, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if _, ok, err := e.state.GrowspaceLedger(ledgerID); err != nil {
		return nil, err
	} else if ok {
		return nil, fmt.Errorf("ledger %d: %w", ledgerID, ErrLedgerExists)
	}
	record := NewLedgerRecord(ledgerID)
	deposit, err := e.params.Rent.MinimumBalance(record.Capacity)
	if err != nil {
		return nil, err
	}
	balance, err := e.state.GrowspaceBalance(payer)
	if err != nil {
		return nil, err
	}
	remaining, err := subAmount(balance, deposit)
	if err != nil {
		return nil, fmt.Errorf("prepay ledger %d from %s: %w", ledgerID, payer, err)
	}
	record.Deposit = deposit
	if err := e.state.GrowspaceSetBalance(payer, remaining); err != nil {
		return nil, err
	}
	if err := e.state.GrowspacePutLedger(record); err != nil {
		return nil, err
	}
	return record.Clone(), nil
}

// voteTx stages the records touched by a single AppendVote.
type voteTx struct {
	period   uint64
	accounts map[types.Identity]*UserPeriodAccount
	order    []types.Identity
	dirty    map[types.Identity]bool
}

func (tx *voteTx) track(acc *UserPeriodAccount, dirty bool) {
	if _, ok := tx.accounts[acc.Identity]; !ok {
		tx.order = append(tx.order, acc.Identity)
	}
	tx.accounts[acc.Identity] = acc
	if dirty {
		tx.dirty[acc.Identity] = true
	}
}

func (e *Engine) loadAccount(tx *voteTx, id types.Identity) (*UserPeriodAccount, bool, error) {
	if acc, ok := tx.accounts[id]; ok {
		return acc, true, nil
	}
	acc, ok, err := e.state.GrowspaceAccount(id, tx.period)
	if err != nil || !ok {
		return nil, ok, err
	}
	acc = acc.Clone()
	tx.track(acc, false)
	return acc, true, nil
}

// AppendVote resolves the previous block, records the vote, pays for any
// storage growth and finally advances the period clock.
func (e *Engine) AppendVote(req AppendVoteRequest) (*AppendVoteResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	stored, ok, err := e.state.GrowspaceTreasury()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrTreasuryMissing
	}
	treasury := stored.Clone()
	record, ok, err := e.state.GrowspaceLedger(req.LedgerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("ledger %d: %w", req.LedgerID, ErrLedgerMissing)
	}
	record = record.Clone()

	tx := &voteTx{
		period:   treasury.CurrentPeriod,
		accounts: make(map[types.Identity]*UserPeriodAccount),
		dirty:    make(map[types.Identity]bool),
	}
	counter, ok, err := e.state.GrowspacePeriodCounter(tx.period)
	if err != nil {
		return nil, err
	}
	if ok {
		counter = counter.Clone()
	} else {
		counter = &PeriodCounter{Period: tx.period}
	}
	if _, ok, err := e.loadAccount(tx, req.Submitter); err != nil {
		return nil, err
	} else if !ok {
		tx.track(&UserPeriodAccount{Identity: req.Submitter, Period: tx.period}, true)
	}

	var credits []events.VoterCredited
	if req.PrevLedgerID != nil {
		credits, err = e.creditEndorsers(tx, counter, req)
		if err != nil {
			return nil, err
		}
	}

	fp := NormalizeDigest(req.HashDigest)
	delta := record.Append(req.BlockID, fp, req.Submitter)

	payer := req.Payer
	if payer.IsZero() {
		payer = req.Submitter
	}
	plan, err := e.growth.Plan(record, delta)
	if err != nil {
		return nil, fmt.Errorf("ledger %d: %w", req.LedgerID, err)
	}
	var payerBalance *uint256.Int
	if !plan.Shortfall.IsZero() {
		balance, err := e.state.GrowspaceBalance(payer)
		if err != nil {
			return nil, err
		}
		if payerBalance, err = subAmount(balance, plan.Shortfall); err != nil {
			return nil, fmt.Errorf("grow ledger %d paid by %s: %w", req.LedgerID, payer, err)
		}
	}
	if err := plan.Apply(record); err != nil {
		return nil, err
	}

	closing := counter.Clone()
	rollover, rolled := treasury.AdvancePeriod(e.now(), e.params.PeriodDurationSeconds)

	// Every check passed; write the staged records.
	if payerBalance != nil {
		if err := e.state.GrowspaceSetBalance(payer, payerBalance); err != nil {
			return nil, err
		}
	}
	if err := e.state.GrowspacePutLedger(record); err != nil {
		return nil, err
	}
	if err := e.state.GrowspacePutPeriodCounter(counter); err != nil {
		return nil, err
	}
	for _, id := range tx.order {
		if !tx.dirty[id] {
			continue
		}
		if err := e.state.GrowspacePutAccount(tx.accounts[id]); err != nil {
			return nil, err
		}
	}
	if rolled {
		if err := e.state.GrowspacePutTreasury(treasury); err != nil {
			return nil, err
		}
	}

	result := &AppendVoteResult{
		Period:     tx.period,
		BytesAdded: delta,
		Capacity:   record.Capacity,
		RentPaid:   plan.Shortfall,
	}
	for i := range credits {
		e.emit(credits[i])
		result.Credited = append(result.Credited, credits[i].Voter)
	}
	if rolled {
		e.emit(events.PeriodRolledOver{
			NewPeriod:      rollover.NewPeriod,
			Timestamp:      rollover.Timestamp,
			PreviousCredit: closing.Credit,
			PreviousDebit:  closing.Debit,
		})
		result.RolledOver = &rollover
	}
	return result, nil
}

// creditEndorsers awards one credit to every balloted endorser of the previous
// block's majority fingerprint, skipping the submitter, identities outside the
// working set and accounts already credited for this block.
func (e *Engine) creditEndorsers(tx *voteTx, counter *PeriodCounter, req AppendVoteRequest) ([]events.VoterCredited, error) {
	prev, ok, err := e.state.GrowspaceLedger(*req.PrevLedgerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	workingSet := make(map[types.Identity]struct{}, len(req.WorkingSet))
	for _, id := range req.WorkingSet {
		workingSet[id] = struct{}{}
	}
	var credits []events.VoterCredited
	for _, block := range prev.Blocks {
		if block.BlockID >= req.BlockID {
			continue
		}
		majority, ok := ResolveMajority(block)
		if !ok {
			continue
		}
		for _, voter := range majority.SelectEndorsers(req.Ballot) {
			if voter == req.Submitter {
				continue
			}
			if _, ok := workingSet[voter]; !ok {
				continue
			}
			acc, ok, err := e.loadAccount(tx, voter)
			if err != nil {
				return nil, err
			}
			if !ok || acc.LastCreditedBlock >= req.BlockID {
				continue
			}
			credit, err := addUint64(acc.Credit, 1)
			if err != nil {
				return nil, err
			}
			total, err := addUint64(counter.Credit, 1)
			if err != nil {
				return nil, err
			}
			previous := acc.LastCreditedBlock
			acc.Credit = credit
			acc.LastCreditedBlock = req.BlockID
			counter.Credit = total
			tx.track(acc, true)
			credits = append(credits, events.VoterCredited{
				Voter:                 voter,
				Submitter:             req.Submitter,
				LedgerID:              req.LedgerID,
				BlockID:               req.BlockID,
				PreviousCreditedBlock: previous,
				Credit:                credit,
				FinalHash:             majority.Fingerprint,
			})
		}
	}
	return credits, nil
}

// ClaimReward redeems the owner's outstanding credit for a closed period and
// pays the pro rata reward out of the treasury.
func (e *Engine) ClaimReward(req ClaimRequest) (*ClaimResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	stored, ok, err := e.state.GrowspaceTreasury()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrTreasuryMissing
	}
	treasury := stored.Clone()
	if req.Caller != req.Owner {
		return nil, ErrUnauthorized
	}
	if !treasury.Closed(req.Period) {
		return nil, fmt.Errorf("period %d (current %d): %w", req.Period, treasury.CurrentPeriod, ErrPeriodNotClosed)
	}
	account, ok, err := e.state.GrowspaceAccount(req.Owner, req.Period)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoRedeemableCredit
	}
	if account.Identity != req.Caller {
		return nil, ErrUnauthorized
	}
	counter, ok, err := e.state.GrowspacePeriodCounter(req.Period)
	if err != nil {
		return nil, err
	}
	if !ok {
		counter = nil
	}
	redemption, err := Redeem(account, counter, e.params.RewardPerPeriod)
	if err != nil {
		return nil, err
	}
	remaining, err := subAmount(treasury.Balance, redemption.Reward)
	if err != nil {
		return nil, fmt.Errorf("treasury payout: %w", err)
	}
	ownerBalance, err := e.state.GrowspaceBalance(req.Owner)
	if err != nil {
		return nil, err
	}
	ownerBalance, err = addAmount(ownerBalance, redemption.Reward)
	if err != nil {
		return nil, err
	}
	treasury.Balance = remaining

	if err := e.state.GrowspacePutAccount(redemption.Account); err != nil {
		return nil, err
	}
	if err := e.state.GrowspacePutPeriodCounter(redemption.Counter); err != nil {
		return nil, err
	}
	if err := e.state.GrowspacePutTreasury(treasury); err != nil {
		return nil, err
	}
	if err := e.state.GrowspaceSetBalance(req.Owner, ownerBalance); err != nil {
		return nil, err
	}

	e.emit(events.RewardClaimed{
		Owner:    req.Owner,
		Period:   req.Period,
		Redeemed: redemption.Redeemed,
		Reward:   redemption.Reward.Dec(),
	})
	return &ClaimResult{
		Period:   req.Period,
		Redeemed: redemption.Redeemed,
		Reward:   redemption.Reward,
	}, nil
}
