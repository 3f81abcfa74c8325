package growspace

import (
	"bytes"
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"growspace/core/events"
	"growspace/core/types"
)

type accountKey struct {
	id     types.Identity
	period uint64
}

type mockState struct {
	treasury *Treasury
	ledgers  map[uint64]*LedgerRecord
	counters map[uint64]*PeriodCounter
	accounts map[accountKey]*UserPeriodAccount
	balances map[types.Identity]*uint256.Int
	failPut  error
}

func newMockState() *mockState {
	return &mockState{
		ledgers:  make(map[uint64]*LedgerRecord),
		counters: make(map[uint64]*PeriodCounter),
		accounts: make(map[accountKey]*UserPeriodAccount),
		balances: make(map[types.Identity]*uint256.Int),
	}
}

func (m *mockState) GrowspaceTreasury() (*Treasury, bool, error) {
	if m.treasury == nil {
		return nil, false, nil
	}
	return m.treasury.Clone(), true, nil
}

func (m *mockState) GrowspacePutTreasury(t *Treasury) error {
	if m.failPut != nil {
		return m.failPut
	}
	m.treasury = t.Clone()
	return nil
}

func (m *mockState) GrowspaceLedger(id uint64) (*LedgerRecord, bool, error) {
	record, ok := m.ledgers[id]
	if !ok {
		return nil, false, nil
	}
	return record.Clone(), true, nil
}

func (m *mockState) GrowspacePutLedger(r *LedgerRecord) error {
	if m.failPut != nil {
		return m.failPut
	}
	m.ledgers[r.ID] = r.Clone()
	return nil
}

func (m *mockState) GrowspacePeriodCounter(period uint64) (*PeriodCounter, bool, error) {
	counter, ok := m.counters[period]
	if !ok {
		return nil, false, nil
	}
	return counter.Clone(), true, nil
}

func (m *mockState) GrowspacePutPeriodCounter(c *PeriodCounter) error {
	if m.failPut != nil {
		return m.failPut
	}
	m.counters[c.Period] = c.Clone()
	return nil
}

func (m *mockState) GrowspaceAccount(id types.Identity, period uint64) (*UserPeriodAccount, bool, error) {
	acc, ok := m.accounts[accountKey{id: id, period: period}]
	if !ok {
		return nil, false, nil
	}
	return acc.Clone(), true, nil
}

func (m *mockState) GrowspacePutAccount(a *UserPeriodAccount) error {
	if m.failPut != nil {
		return m.failPut
	}
	m.accounts[accountKey{id: a.Identity, period: a.Period}] = a.Clone()
	return nil
}

func (m *mockState) GrowspaceBalance(id types.Identity) (*uint256.Int, error) {
	if balance, ok := m.balances[id]; ok {
		return new(uint256.Int).Set(balance), nil
	}
	return new(uint256.Int), nil
}

func (m *mockState) GrowspaceSetBalance(id types.Identity, amount *uint256.Int) error {
	if m.failPut != nil {
		return m.failPut
	}
	m.balances[id] = new(uint256.Int).Set(amount)
	return nil
}

func newTestIdentity(fill byte) types.Identity {
	var id types.Identity
	copy(id[:], bytes.Repeat([]byte{fill}, types.IdentityLength))
	return id
}

type testClock struct{ now int64 }

func (c *testClock) Now() int64 { return c.now }

type recordingEmitter struct{ events []events.Event }

func (r *recordingEmitter) Emit(evt events.Event) { r.events = append(r.events, evt) }

func (r *recordingEmitter) ofType(kind string) []events.Event {
	var out []events.Event
	for _, evt := range r.events {
		if evt.EventType() == kind {
			out = append(out, evt)
		}
	}
	return out
}

const (
	testGenesis  int64 = 1_700_000_000
	testDuration       = 10
)

var (
	idAdmin = newTestIdentity(0xAD)
	idA     = newTestIdentity(0x0A)
	idB     = newTestIdentity(0x0B)
	idC     = newTestIdentity(0x0C)
	idD     = newTestIdentity(0x0D)
)

type fixture struct {
	engine  *Engine
	state   *mockState
	clock   *testClock
	emitter *recordingEmitter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	state := newMockState()
	clock := &testClock{now: testGenesis}
	emitter := &recordingEmitter{}
	engine := NewEngine()
	engine.SetState(state)
	engine.SetNowFunc(clock.Now)
	engine.SetEmitter(emitter)
	params := DefaultParams()
	params.PeriodDurationSeconds = testDuration
	require.NoError(t, engine.SetParams(params))

	for _, id := range []types.Identity{idAdmin, idA, idB, idC, idD} {
		state.balances[id] = uint256.NewInt(1_000_000_000)
	}
	_, err := engine.InitializeTreasury(idAdmin, uint256.NewInt(10_000_000))
	require.NoError(t, err)
	return &fixture{engine: engine, state: state, clock: clock, emitter: emitter}
}

func (f *fixture) vote(t *testing.T, ledger uint64, prev *uint64, block uint64, digest string, submitter types.Identity, ballot []uint64, working ...types.Identity) *AppendVoteResult {
	t.Helper()
	res, err := f.engine.AppendVote(AppendVoteRequest{
		LedgerID:     ledger,
		PrevLedgerID: prev,
		BlockID:      block,
		HashDigest:   []byte(digest),
		Submitter:    submitter,
		Ballot:       ballot,
		WorkingSet:   working,
	})
	require.NoError(t, err)
	return res
}

func ledgerRef(id uint64) *uint64 { return &id }

func TestInitializeTreasury(t *testing.T) {
	f := newFixture(t)
	treasury, err := f.engine.Treasury()
	require.NoError(t, err)
	require.Equal(t, testGenesis, treasury.GenesisTimestamp)
	require.Equal(t, GenesisPeriod, treasury.CurrentPeriod)
	require.Equal(t, uint64(10_000_000), treasury.Balance.Uint64())
	require.Equal(t, uint64(990_000_000), f.state.balances[idAdmin].Uint64())

	_, err = f.engine.InitializeTreasury(idAdmin, uint256.NewInt(1))
	require.ErrorIs(t, err, ErrTreasuryExists)
}

func TestInitializeTreasuryInsufficientFunds(t *testing.T) {
	state := newMockState()
	engine := NewEngine()
	engine.SetState(state)
	_, err := engine.InitializeTreasury(idAdmin, uint256.NewInt(5))
	require.ErrorIs(t, err, ErrFunding)
	require.Nil(t, state.treasury)
}

func TestInitializeLedgerRecordPrepaysBaseSize(t *testing.T) {
	f := newFixture(t)
	record, err := f.engine.InitializeLedgerRecord(1, idA)
	require.NoError(t, err)
	require.Equal(t, BaseRecordSize, record.Capacity)

	want, err := DefaultRentParams().MinimumBalance(BaseRecordSize)
	require.NoError(t, err)
	require.Equal(t, want, record.Deposit)
	require.Equal(t, 1_000_000_000-want.Uint64(), f.state.balances[idA].Uint64())

	_, err = f.engine.InitializeLedgerRecord(1, idA)
	require.ErrorIs(t, err, ErrLedgerExists)
}

func TestAppendVoteRequiresTreasuryAndLedger(t *testing.T) {
	engine := NewEngine()
	engine.SetState(newMockState())
	_, err := engine.AppendVote(AppendVoteRequest{LedgerID: 1, BlockID: 1, Submitter: idA})
	require.ErrorIs(t, err, ErrTreasuryMissing)

	f := newFixture(t)
	_, err = f.engine.AppendVote(AppendVoteRequest{LedgerID: 9, BlockID: 1, Submitter: idA})
	require.ErrorIs(t, err, ErrLedgerMissing)
}

func TestAppendVoteGrowsRecordAndChargesPayer(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.InitializeLedgerRecord(1, idA)
	require.NoError(t, err)
	before := f.state.balances[idB].Uint64()

	res, err := f.engine.AppendVote(AppendVoteRequest{
		LedgerID:   1,
		BlockID:    1,
		HashDigest: []byte("H1"),
		Submitter:  idA,
		Payer:      idB,
	})
	require.NoError(t, err)
	require.Equal(t, BlockEntryBytes, res.BytesAdded)
	require.Equal(t, BaseRecordSize+BlockEntryBytes, res.Capacity)

	rent := DefaultRentParams()
	oldMin, _ := rent.MinimumBalance(BaseRecordSize)
	newMin, _ := rent.MinimumBalance(BaseRecordSize + BlockEntryBytes)
	shortfall := new(uint256.Int).Sub(newMin, oldMin)
	require.Equal(t, shortfall, res.RentPaid)
	require.Equal(t, before-shortfall.Uint64(), f.state.balances[idB].Uint64())

	record := f.state.ledgers[1]
	require.Equal(t, newMin, record.Deposit)

	// An identical vote consumes nothing and costs nothing.
	res = f.vote(t, 1, nil, 1, "H1", idA, nil)
	require.Zero(t, res.BytesAdded)
	require.True(t, res.RentPaid.IsZero())
	require.Equal(t, BaseRecordSize+BlockEntryBytes, f.state.ledgers[1].Capacity)
}

func TestAppendVoteFundingFailureLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.InitializeLedgerRecord(1, idA)
	require.NoError(t, err)
	broke := newTestIdentity(0xEE)

	_, err = f.engine.AppendVote(AppendVoteRequest{
		LedgerID:   1,
		BlockID:    1,
		HashDigest: []byte("H1"),
		Submitter:  broke,
	})
	require.ErrorIs(t, err, ErrFunding)
	require.Empty(t, f.state.ledgers[1].Blocks)
	require.Empty(t, f.state.counters)
	_, ok := f.state.accounts[accountKey{id: broke, period: 1}]
	require.False(t, ok)
	require.Empty(t, f.emitter.events)
}

func TestAppendVoteRejectsOversizedGrowth(t *testing.T) {
	f := newFixture(t)
	params := f.engine.Params()
	params.Rent.MaxRecordSize = BaseRecordSize + BlockEntryBytes
	require.NoError(t, f.engine.SetParams(params))
	_, err := f.engine.InitializeLedgerRecord(1, idA)
	require.NoError(t, err)

	f.vote(t, 1, nil, 1, "H1", idA, nil)
	_, err = f.engine.AppendVote(AppendVoteRequest{LedgerID: 1, BlockID: 1, HashDigest: []byte("H1"), Submitter: idB})
	require.ErrorIs(t, err, ErrGrowth)
	require.Len(t, f.state.ledgers[1].Blocks[0].FinalHashes[0].Endorsers, 1)
}

// The worked example: A and B endorse H1, C endorses H2, D appends block 2.
func TestMajorityCreditingAndClaim(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.InitializeLedgerRecord(1, idA)
	require.NoError(t, err)
	_, err = f.engine.InitializeLedgerRecord(2, idD)
	require.NoError(t, err)
	params := f.engine.Params()

	f.vote(t, 1, nil, 1, "H1", idA, nil)
	f.vote(t, 1, nil, 1, "H1", idB, nil)
	f.vote(t, 1, nil, 1, "H2", idC, nil)

	res := f.vote(t, 2, ledgerRef(1), 2, "H3", idD, []uint64{0, 1}, idA, idB, idC, idD)
	require.Equal(t, []types.Identity{idA, idB}, res.Credited)
	require.Nil(t, res.RolledOver)

	counter := f.state.counters[1]
	require.Equal(t, uint64(2), counter.Credit)
	accA := f.state.accounts[accountKey{id: idA, period: 1}]
	require.Equal(t, uint64(1), accA.Credit)
	require.Equal(t, uint64(2), accA.LastCreditedBlock)
	accC := f.state.accounts[accountKey{id: idC, period: 1}]
	require.Zero(t, accC.Credit)

	credited := f.emitter.ofType(events.TypeVoterCredited)
	require.Len(t, credited, 2)
	first := credited[0].(events.VoterCredited)
	require.Equal(t, idA, first.Voter)
	require.Equal(t, idD, first.Submitter)
	require.Equal(t, uint64(1), first.Credit)
	require.Zero(t, first.PreviousCreditedBlock)
	require.Equal(t, [8]byte(NormalizeDigest([]byte("H1"))), first.FinalHash)

	// Resubmitting the same append does not credit again.
	res = f.vote(t, 2, ledgerRef(1), 2, "H3", idD, []uint64{0, 1}, idA, idB, idC, idD)
	require.Empty(t, res.Credited)
	require.Equal(t, uint64(2), f.state.counters[1].Credit)
	require.Equal(t, uint64(1), f.state.accounts[accountKey{id: idA, period: 1}].Credit)

	// Period 1 is still open.
	_, err = f.engine.ClaimReward(ClaimRequest{Caller: idA, Owner: idA, Period: 1})
	require.ErrorIs(t, err, ErrPeriodNotClosed)

	f.clock.now = testGenesis + 2*testDuration
	res = f.vote(t, 2, nil, 3, "H4", idD, nil)
	require.NotNil(t, res.RolledOver)
	require.Equal(t, uint64(2), res.RolledOver.NewPeriod)
	rolled := f.emitter.ofType(events.TypePeriodRolledOver)
	require.Len(t, rolled, 1)
	require.Equal(t, events.PeriodRolledOver{
		NewPeriod:      2,
		Timestamp:      testGenesis + 2*testDuration,
		PreviousCredit: 2,
		PreviousDebit:  0,
	}, rolled[0])

	treasuryBefore := f.state.treasury.Balance.Uint64()
	balanceBefore := f.state.balances[idA].Uint64()
	claim, err := f.engine.ClaimReward(ClaimRequest{Caller: idA, Owner: idA, Period: 1})
	require.NoError(t, err)
	require.Equal(t, uint64(1), claim.Redeemed)
	require.Equal(t, uint64(500_000), claim.Reward.Uint64())
	require.Equal(t, params.RewardPerPeriod.Uint64()/2, claim.Reward.Uint64())
	require.Equal(t, treasuryBefore-500_000, f.state.treasury.Balance.Uint64())
	require.Equal(t, balanceBefore+500_000, f.state.balances[idA].Uint64())
	require.Equal(t, uint64(1), f.state.accounts[accountKey{id: idA, period: 1}].Redeemed)
	require.Equal(t, uint64(1), f.state.counters[1].Redeemed)

	_, err = f.engine.ClaimReward(ClaimRequest{Caller: idA, Owner: idA, Period: 1})
	require.ErrorIs(t, err, ErrNoRedeemableCredit)
}

func TestSelfVoteExcluded(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.InitializeLedgerRecord(1, idA)
	require.NoError(t, err)
	f.vote(t, 1, nil, 1, "H1", idA, nil)
	f.vote(t, 1, nil, 1, "H1", idB, nil)

	res := f.vote(t, 1, ledgerRef(1), 2, "H2", idA, []uint64{0, 1}, idA, idB)
	require.Equal(t, []types.Identity{idB}, res.Credited)
	require.Zero(t, f.state.accounts[accountKey{id: idA, period: 1}].Credit)
}

func TestBallotOutOfRangeStopsProcessing(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.InitializeLedgerRecord(1, idA)
	require.NoError(t, err)
	f.vote(t, 1, nil, 1, "H1", idA, nil)
	f.vote(t, 1, nil, 1, "H1", idB, nil)

	res := f.vote(t, 1, ledgerRef(1), 2, "H2", idD, []uint64{1, 5, 0}, idA, idB)
	require.Equal(t, []types.Identity{idB}, res.Credited)
}

func TestIdentityOutsideWorkingSetSkipped(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.InitializeLedgerRecord(1, idA)
	require.NoError(t, err)
	f.vote(t, 1, nil, 1, "H1", idA, nil)
	f.vote(t, 1, nil, 1, "H1", idB, nil)

	res := f.vote(t, 1, ledgerRef(1), 2, "H2", idD, []uint64{0, 1}, idB)
	require.Equal(t, []types.Identity{idB}, res.Credited)
	require.Zero(t, f.state.accounts[accountKey{id: idA, period: 1}].Credit)

	// A later append may still credit A for the next block.
	res = f.vote(t, 1, ledgerRef(1), 3, "H3", idD, []uint64{0, 1}, idA, idB)
	require.Equal(t, []types.Identity{idA, idB}, res.Credited)
}

func TestNoMajorityNoCredit(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.InitializeLedgerRecord(1, idA)
	require.NoError(t, err)
	f.vote(t, 1, nil, 1, "H1", idA, nil)
	f.vote(t, 1, nil, 1, "H2", idB, nil)

	res := f.vote(t, 1, ledgerRef(1), 2, "H3", idD, []uint64{0}, idA, idB)
	require.Empty(t, res.Credited)
	require.Zero(t, f.state.counters[1].Credit)
}

func TestMissingPreviousLedgerSkipsResolution(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.InitializeLedgerRecord(1, idA)
	require.NoError(t, err)
	res := f.vote(t, 1, ledgerRef(42), 1, "H1", idA, []uint64{0}, idA)
	require.Empty(t, res.Credited)
}

func TestClaimRewardAuthorization(t *testing.T) {
	f := newFixture(t)
	f.clock.now = testGenesis + 3*testDuration
	_, err := f.engine.InitializeLedgerRecord(1, idA)
	require.NoError(t, err)
	f.vote(t, 1, nil, 1, "H1", idA, nil)

	_, err = f.engine.ClaimReward(ClaimRequest{Caller: idB, Owner: idA, Period: 1})
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.engine.ClaimReward(ClaimRequest{Caller: idB, Owner: idB, Period: 2})
	require.ErrorIs(t, err, ErrNoRedeemableCredit)

	_, err = f.engine.ClaimReward(ClaimRequest{Caller: idA, Owner: idA, Period: 1})
	require.ErrorIs(t, err, ErrNoRedeemableCredit)
}

func TestClaimRewardGuardsTreasuryUnderflow(t *testing.T) {
	f := newFixture(t)
	f.state.treasury.Balance = uint256.NewInt(10)
	f.state.treasury.CurrentPeriod = 3
	f.state.counters[1] = &PeriodCounter{Period: 1, Credit: 1}
	f.state.accounts[accountKey{id: idA, period: 1}] = &UserPeriodAccount{Identity: idA, Period: 1, Credit: 1, LastCreditedBlock: 2}

	_, err := f.engine.ClaimReward(ClaimRequest{Caller: idA, Owner: idA, Period: 1})
	require.ErrorIs(t, err, ErrFunding)
	require.Zero(t, f.state.accounts[accountKey{id: idA, period: 1}].Redeemed)
	require.Equal(t, uint64(10), f.state.treasury.Balance.Uint64())
}

func TestClaimRewardZeroRewardStillRedeems(t *testing.T) {
	f := newFixture(t)
	params := f.engine.Params()
	params.RewardPerPeriod = uint256.NewInt(1)
	require.NoError(t, f.engine.SetParams(params))
	f.state.treasury.CurrentPeriod = 3
	f.state.counters[1] = &PeriodCounter{Period: 1, Credit: 3}
	f.state.accounts[accountKey{id: idA, period: 1}] = &UserPeriodAccount{Identity: idA, Period: 1, Credit: 1, LastCreditedBlock: 2}

	claim, err := f.engine.ClaimReward(ClaimRequest{Caller: idA, Owner: idA, Period: 1})
	require.NoError(t, err)
	require.True(t, claim.Reward.IsZero())
	require.Equal(t, uint64(1), f.state.accounts[accountKey{id: idA, period: 1}].Redeemed)
	require.Equal(t, uint64(1), f.state.counters[1].Redeemed)
}

func TestAppendVoteWriteFailureSurfaces(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.InitializeLedgerRecord(1, idA)
	require.NoError(t, err)
	boom := errors.New("disk full")
	f.state.failPut = boom
	_, err = f.engine.AppendVote(AppendVoteRequest{LedgerID: 1, BlockID: 1, HashDigest: []byte("H1"), Submitter: idA})
	require.ErrorIs(t, err, boom)
	require.Empty(t, f.emitter.events)
}
