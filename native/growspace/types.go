package growspace

import (
	"encoding/hex"

	"github.com/holiman/uint256"

	"growspace/core/types"
)

// FingerprintLength is the number of digest bytes retained per vote.
const FingerprintLength = 8

// Fingerprint is the truncated block digest endorsers vote on.
type Fingerprint [FingerprintLength]byte

// NormalizeDigest resizes an arbitrary digest to a fingerprint, truncating
// long inputs and zero-padding short ones. It never fails.
func NormalizeDigest(digest []byte) Fingerprint {
	var fp Fingerprint
	copy(fp[:], digest)
	return fp
}

// String renders the fingerprint as hex.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// Treasury is the singleton holding the reward pool and the period clock.
type Treasury struct {
	GenesisTimestamp int64
	CurrentPeriod    uint64
	Balance          *uint256.Int
}

// Clone returns a deep copy of the treasury.
func (t *Treasury) Clone() *Treasury {
	if t == nil {
		return nil
	}
	out := *t
	out.Balance = cloneAmount(t.Balance)
	return &out
}

// PeriodCounter aggregates credit issued and redeemed within one period.
type PeriodCounter struct {
	Period   uint64
	Credit   uint64
	Debit    uint64
	Redeemed uint64
}

// Clone returns a copy of the counter.
func (c *PeriodCounter) Clone() *PeriodCounter {
	if c == nil {
		return nil
	}
	out := *c
	return &out
}

// UserPeriodAccount tracks one identity's credit within one period.
type UserPeriodAccount struct {
	Identity          types.Identity
	Period            uint64
	LastCreditedBlock uint64
	Credit            uint64
	Debit             uint64
	Redeemed          uint64
}

// Clone returns a copy of the account.
func (a *UserPeriodAccount) Clone() *UserPeriodAccount {
	if a == nil {
		return nil
	}
	out := *a
	return &out
}

// Redeemable reports the credit not yet converted into rewards.
func (a *UserPeriodAccount) Redeemable() uint64 {
	if a == nil || a.Credit <= a.Redeemed {
		return 0
	}
	return a.Credit - a.Redeemed
}

// FinalHashEntry lists the identities that endorsed a fingerprint, in the order
// their votes arrived.
type FinalHashEntry struct {
	Fingerprint Fingerprint
	Endorsers   []types.Identity
}

// HasEndorser reports whether id already endorsed the fingerprint.
func (e *FinalHashEntry) HasEndorser(id types.Identity) bool {
	for _, existing := range e.Endorsers {
		if existing == id {
			return true
		}
	}
	return false
}

// BlockEntry holds every fingerprint proposed for a block.
type BlockEntry struct {
	BlockID     uint64
	FinalHashes []FinalHashEntry
}

// TotalVotes sums the endorsers across all fingerprints of the block.
func (b *BlockEntry) TotalVotes() uint64 {
	var total uint64
	for i := range b.FinalHashes {
		total += uint64(len(b.FinalHashes[i].Endorsers))
	}
	return total
}

// LedgerRecord is an append-only collection of block entries together with
// the storage capacity it has paid for.
type LedgerRecord struct {
	ID       uint64
	Capacity uint64
	Deposit  *uint256.Int
	Blocks   []BlockEntry
}

// Clone returns a deep copy of the record.
func (r *LedgerRecord) Clone() *LedgerRecord {
	if r == nil {
		return nil
	}
	out := &LedgerRecord{
		ID:       r.ID,
		Capacity: r.Capacity,
		Deposit:  cloneAmount(r.Deposit),
	}
	if len(r.Blocks) > 0 {
		out.Blocks = make([]BlockEntry, len(r.Blocks))
		for i, block := range r.Blocks {
			out.Blocks[i] = BlockEntry{BlockID: block.BlockID}
			if len(block.FinalHashes) == 0 {
				continue
			}
			hashes := make([]FinalHashEntry, len(block.FinalHashes))
			for j, entry := range block.FinalHashes {
				hashes[j] = FinalHashEntry{
					Fingerprint: entry.Fingerprint,
					Endorsers:   append([]types.Identity(nil), entry.Endorsers...),
				}
			}
			out.Blocks[i].FinalHashes = hashes
		}
	}
	return out
}
