package state

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"growspace/core/types"
	"growspace/native/growspace"
)

var (
	treasuryKey         = []byte("treasury")
	ledgerRecordPrefix  = []byte("ledger_record")
	ledgerIndexKey      = []byte("ledger_record/index")
	periodCounterPrefix = []byte("period_counter")
	userAccountPrefix   = []byte("user_period_account")
)

func uint64Bytes(v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return buf[:]
}

func ledgerRecordKey(id uint64) []byte {
	return append(append([]byte(nil), ledgerRecordPrefix...), uint64Bytes(id)...)
}

func periodCounterKey(period uint64) []byte {
	return append(append([]byte(nil), periodCounterPrefix...), uint64Bytes(period)...)
}

func userAccountKey(id types.Identity, period uint64) []byte {
	buf := make([]byte, 0, len(userAccountPrefix)+len(id)+8)
	buf = append(buf, userAccountPrefix...)
	buf = append(buf, id[:]...)
	return append(buf, uint64Bytes(period)...)
}

type storedTreasury struct {
	GenesisTimestamp *big.Int
	CurrentPeriod    uint64
	Balance          *big.Int
}

type storedFinalHash struct {
	Fingerprint [8]byte
	Endorsers   [][32]byte
}

type storedBlockEntry struct {
	BlockID     uint64
	FinalHashes []storedFinalHash
}

type storedLedgerRecord struct {
	ID       uint64
	Capacity uint64
	Deposit  *big.Int
	Blocks   []storedBlockEntry
}

type storedPeriodCounter struct {
	Period   uint64
	Credit   uint64
	Debit    uint64
	Redeemed uint64
}

type storedUserAccount struct {
	Identity          [32]byte
	Period            uint64
	LastCreditedBlock uint64
	Credit            uint64
	Debit             uint64
	Redeemed          uint64
}

func amountToBig(v *uint256.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v.ToBig()
}

func amountFromBig(v *big.Int, field string) (*uint256.Int, error) {
	if v == nil {
		return new(uint256.Int), nil
	}
	out, overflow := uint256.FromBig(v)
	if overflow || v.Sign() < 0 {
		return nil, fmt.Errorf("growspace: stored %s out of range", field)
	}
	return out, nil
}

// GrowspaceTreasury loads the treasury singleton.
func (m *Manager) GrowspaceTreasury() (*growspace.Treasury, bool, error) {
	var stored storedTreasury
	ok, err := m.KVGet(treasuryKey, &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	balance, err := amountFromBig(stored.Balance, "treasury balance")
	if err != nil {
		return nil, false, err
	}
	out := &growspace.Treasury{
		CurrentPeriod: stored.CurrentPeriod,
		Balance:       balance,
	}
	if stored.GenesisTimestamp != nil {
		out.GenesisTimestamp = stored.GenesisTimestamp.Int64()
	}
	return out, true, nil
}

// GrowspacePutTreasury stores the treasury singleton.
func (m *Manager) GrowspacePutTreasury(t *growspace.Treasury) error {
	if t == nil {
		return fmt.Errorf("growspace: nil treasury")
	}
	if t.GenesisTimestamp < 0 {
		return fmt.Errorf("growspace: negative genesis timestamp")
	}
	return m.KVPut(treasuryKey, &storedTreasury{
		GenesisTimestamp: big.NewInt(t.GenesisTimestamp),
		CurrentPeriod:    t.CurrentPeriod,
		Balance:          amountToBig(t.Balance),
	})
}

// GrowspaceLedger loads a ledger record by identifier.
func (m *Manager) GrowspaceLedger(id uint64) (*growspace.LedgerRecord, bool, error) {
	var stored storedLedgerRecord
	ok, err := m.KVGet(ledgerRecordKey(id), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	deposit, err := amountFromBig(stored.Deposit, "ledger deposit")
	if err != nil {
		return nil, false, err
	}
	record := &growspace.LedgerRecord{
		ID:       stored.ID,
		Capacity: stored.Capacity,
		Deposit:  deposit,
	}
	if len(stored.Blocks) > 0 {
		record.Blocks = make([]growspace.BlockEntry, len(stored.Blocks))
	}
	for i, block := range stored.Blocks {
		entry := growspace.BlockEntry{BlockID: block.BlockID}
		if len(block.FinalHashes) > 0 {
			entry.FinalHashes = make([]growspace.FinalHashEntry, len(block.FinalHashes))
		}
		for j, hash := range block.FinalHashes {
			endorsers := make([]types.Identity, len(hash.Endorsers))
			for k, id := range hash.Endorsers {
				endorsers[k] = types.Identity(id)
			}
			entry.FinalHashes[j] = growspace.FinalHashEntry{
				Fingerprint: growspace.Fingerprint(hash.Fingerprint),
				Endorsers:   endorsers,
			}
		}
		record.Blocks[i] = entry
	}
	return record, true, nil
}

// GrowspacePutLedger stores a ledger record and indexes its identifier.
func (m *Manager) GrowspacePutLedger(record *growspace.LedgerRecord) error {
	if record == nil {
		return fmt.Errorf("growspace: nil ledger record")
	}
	stored := &storedLedgerRecord{
		ID:       record.ID,
		Capacity: record.Capacity,
		Deposit:  amountToBig(record.Deposit),
		Blocks:   make([]storedBlockEntry, len(record.Blocks)),
	}
	for i, block := range record.Blocks {
		entry := storedBlockEntry{
			BlockID:     block.BlockID,
			FinalHashes: make([]storedFinalHash, len(block.FinalHashes)),
		}
		for j, hash := range block.FinalHashes {
			endorsers := make([][32]byte, len(hash.Endorsers))
			for k, id := range hash.Endorsers {
				endorsers[k] = id
			}
			entry.FinalHashes[j] = storedFinalHash{
				Fingerprint: hash.Fingerprint,
				Endorsers:   endorsers,
			}
		}
		stored.Blocks[i] = entry
	}
	if err := m.KVPut(ledgerRecordKey(record.ID), stored); err != nil {
		return err
	}
	return m.KVAppend(ledgerIndexKey, uint64Bytes(record.ID))
}

// GrowspaceLedgerIDs lists the identifiers of every ledger record in creation
// order.
func (m *Manager) GrowspaceLedgerIDs() ([]uint64, error) {
	var raw [][]byte
	if err := m.KVGetList(ledgerIndexKey, &raw); err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(raw))
	for _, entry := range raw {
		if len(entry) != 8 {
			return nil, fmt.Errorf("growspace: malformed ledger index entry")
		}
		ids = append(ids, binary.BigEndian.Uint64(entry))
	}
	return ids, nil
}

// GrowspacePeriodCounter loads the counter for period.
func (m *Manager) GrowspacePeriodCounter(period uint64) (*growspace.PeriodCounter, bool, error) {
	var stored storedPeriodCounter
	ok, err := m.KVGet(periodCounterKey(period), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &growspace.PeriodCounter{
		Period:   stored.Period,
		Credit:   stored.Credit,
		Debit:    stored.Debit,
		Redeemed: stored.Redeemed,
	}, true, nil
}

// GrowspacePutPeriodCounter stores a period counter.
func (m *Manager) GrowspacePutPeriodCounter(c *growspace.PeriodCounter) error {
	if c == nil {
		return fmt.Errorf("growspace: nil period counter")
	}
	return m.KVPut(periodCounterKey(c.Period), &storedPeriodCounter{
		Period:   c.Period,
		Credit:   c.Credit,
		Debit:    c.Debit,
		Redeemed: c.Redeemed,
	})
}

// GrowspaceAccount loads the account of id for period.
func (m *Manager) GrowspaceAccount(id types.Identity, period uint64) (*growspace.UserPeriodAccount, bool, error) {
	var stored storedUserAccount
	ok, err := m.KVGet(userAccountKey(id, period), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &growspace.UserPeriodAccount{
		Identity:          types.Identity(stored.Identity),
		Period:            stored.Period,
		LastCreditedBlock: stored.LastCreditedBlock,
		Credit:            stored.Credit,
		Debit:             stored.Debit,
		Redeemed:          stored.Redeemed,
	}, true, nil
}

// GrowspacePutAccount stores a user period account.
func (m *Manager) GrowspacePutAccount(a *growspace.UserPeriodAccount) error {
	if a == nil {
		return fmt.Errorf("growspace: nil user account")
	}
	return m.KVPut(userAccountKey(a.Identity, a.Period), &storedUserAccount{
		Identity:          a.Identity,
		Period:            a.Period,
		LastCreditedBlock: a.LastCreditedBlock,
		Credit:            a.Credit,
		Debit:             a.Debit,
		Redeemed:          a.Redeemed,
	})
}
