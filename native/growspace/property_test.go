package growspace

import (
	"errors"
	"fmt"
	"testing"

	"github.com/holiman/uint256"
	"pgregory.net/rapid"

	"growspace/core/types"
)

var propertyVoters = []types.Identity{idA, idB, idC, idD, newTestIdentity(0x0E), newTestIdentity(0x0F)}

// voteModel drives the engine with random votes, appends and claims and checks
// the accounting invariants after every step.
type voteModel struct {
	engine *Engine
	state  *mockState
	clock  *testClock
	block  uint64
	funded *uint256.Int
	paid   map[uint64]*uint256.Int
}

func (m *voteModel) Init(t *rapid.T) {
	m.state = newMockState()
	m.clock = &testClock{now: testGenesis}
	m.engine = NewEngine()
	m.engine.SetState(m.state)
	m.engine.SetNowFunc(m.clock.Now)
	params := DefaultParams()
	params.PeriodDurationSeconds = testDuration
	if err := m.engine.SetParams(params); err != nil {
		t.Fatal(err)
	}
	for _, id := range append([]types.Identity{idAdmin}, propertyVoters...) {
		m.state.balances[id] = uint256.NewInt(1 << 40)
	}
	m.funded = uint256.NewInt(1 << 32)
	if _, err := m.engine.InitializeTreasury(idAdmin, m.funded); err != nil {
		t.Fatal(err)
	}
	if _, err := m.engine.InitializeLedgerRecord(0, idAdmin); err != nil {
		t.Fatal(err)
	}
	m.block = 1
	m.paid = make(map[uint64]*uint256.Int)
}

func (m *voteModel) Vote(t *rapid.T) {
	voter := propertyVoters[rapid.IntRange(0, len(propertyVoters)-1).Draw(t, "voter").(int)]
	digest := rapid.IntRange(0, 2).Draw(t, "digest").(int)
	if _, err := m.engine.AppendVote(AppendVoteRequest{
		LedgerID:   0,
		BlockID:    m.block,
		HashDigest: []byte(fmt.Sprintf("H%d", digest)),
		Submitter:  voter,
	}); err != nil {
		t.Fatal(err)
	}
}

func (m *voteModel) NextBlock(t *rapid.T) {
	submitter := propertyVoters[rapid.IntRange(0, len(propertyVoters)-1).Draw(t, "submitter").(int)]
	ballot := rapid.SliceOfN(rapid.Uint64Range(0, 6), 0, 6).Draw(t, "ballot").([]uint64)
	prev := uint64(0)
	m.block++
	if _, err := m.engine.AppendVote(AppendVoteRequest{
		LedgerID:     0,
		PrevLedgerID: &prev,
		BlockID:      m.block,
		HashDigest:   []byte("H0"),
		Submitter:    submitter,
		Ballot:       ballot,
		WorkingSet:   propertyVoters,
	}); err != nil {
		t.Fatal(err)
	}
}

func (m *voteModel) Tick(t *rapid.T) {
	m.clock.now += int64(rapid.IntRange(1, 2*testDuration).Draw(t, "advance").(int))
}

func (m *voteModel) Claim(t *rapid.T) {
	owner := propertyVoters[rapid.IntRange(0, len(propertyVoters)-1).Draw(t, "owner").(int)]
	period := rapid.Uint64Range(0, 6).Draw(t, "period").(uint64)
	res, err := m.engine.ClaimReward(ClaimRequest{Caller: owner, Owner: owner, Period: period})
	switch {
	case err == nil:
	case errors.Is(err, ErrPeriodNotClosed), errors.Is(err, ErrNoRedeemableCredit), errors.Is(err, ErrTreasuryMissing):
		return
	default:
		t.Fatalf("claim %s period %d: %v", owner, period, err)
	}
	paid, ok := m.paid[period]
	if !ok {
		paid = new(uint256.Int)
	}
	m.paid[period] = paid.Add(paid, res.Reward)
}

func (m *voteModel) Check(t *rapid.T) {
	for period, counter := range m.state.counters {
		if counter.Redeemed > counter.Credit {
			t.Fatalf("period %d redeemed %d > credit %d", period, counter.Redeemed, counter.Credit)
		}
		if paid, ok := m.paid[period]; ok && paid.Gt(m.engine.Params().RewardPerPeriod) {
			t.Fatalf("period %d paid %s beyond the period reward", period, paid.Dec())
		}
	}
	credits := make(map[uint64]uint64)
	for key, acc := range m.state.accounts {
		if acc.Redeemed > acc.Credit {
			t.Fatalf("account %s/%d redeemed %d > credit %d", key.id, key.period, acc.Redeemed, acc.Credit)
		}
		if acc.LastCreditedBlock > m.block {
			t.Fatalf("account %s credited for future block %d", key.id, acc.LastCreditedBlock)
		}
		credits[key.period] += acc.Credit
	}
	for period, total := range credits {
		if counter, ok := m.state.counters[period]; !ok || counter.Credit != total {
			t.Fatalf("period %d counter does not match account credits %d", period, total)
		}
	}
	record := m.state.ledgers[0]
	minimum, err := m.engine.Params().Rent.MinimumBalance(record.Capacity)
	if err != nil {
		t.Fatal(err)
	}
	if record.Deposit.Lt(minimum) {
		t.Fatalf("deposit %s below minimum %s", record.Deposit.Dec(), minimum.Dec())
	}
	if m.state.treasury.CurrentPeriod < GenesisPeriod {
		t.Fatalf("period regressed to %d", m.state.treasury.CurrentPeriod)
	}
}

func TestLedgerAccountingProperties(t *testing.T) {
	rapid.Check(t, rapid.Run(&voteModel{}))
}

func TestCapacityNeverShrinks(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		record := NewLedgerRecord(1)
		steps := rapid.IntRange(1, 40).Draw(t, "steps").(int)
		for i := 0; i < steps; i++ {
			block := rapid.Uint64Range(1, 4).Draw(t, "block").(uint64)
			digest := rapid.SliceOfN(rapid.Byte(), 0, 12).Draw(t, "digest").([]byte)
			voter := propertyVoters[rapid.IntRange(0, len(propertyVoters)-1).Draw(t, "voter").(int)]
			before := record.Capacity
			delta := record.Append(block, NormalizeDigest(digest), voter)
			plan, err := NewGrowthManager(DefaultRentParams()).Plan(record, delta)
			if err != nil {
				t.Fatal(err)
			}
			if err := plan.Apply(record); err != nil {
				t.Fatal(err)
			}
			if record.Capacity != before+delta {
				t.Fatalf("capacity %d, want %d", record.Capacity, before+delta)
			}
			for _, b := range record.Blocks {
				seen := make(map[Fingerprint]bool)
				for _, e := range b.FinalHashes {
					if seen[e.Fingerprint] {
						t.Fatalf("duplicate fingerprint %s in block %d", e.Fingerprint, b.BlockID)
					}
					seen[e.Fingerprint] = true
					ids := make(map[types.Identity]bool)
					for _, id := range e.Endorsers {
						if ids[id] {
							t.Fatalf("duplicate endorser %s", id)
						}
						ids[id] = true
					}
				}
			}
		}
	})
}
