package growspace

import (
	"github.com/holiman/uint256"

	"growspace/core/types"
)

// NewLedgerRecord returns an empty record sized for its header.
func NewLedgerRecord(id uint64) *LedgerRecord {
	return &LedgerRecord{ID: id, Capacity: BaseRecordSize, Deposit: new(uint256.Int)}
}

// Block returns the entry for blockID if one has been recorded.
func (r *LedgerRecord) Block(blockID uint64) (*BlockEntry, bool) {
	if r == nil {
		return nil, false
	}
	for i := range r.Blocks {
		if r.Blocks[i].BlockID == blockID {
			return &r.Blocks[i], true
		}
	}
	return nil, false
}

// Append records that voter endorsed fp for blockID and returns the number of
// bytes the mutation consumed. Repeating an identical vote is a no-op that
// consumes nothing. Entries keep insertion order.
func (r *LedgerRecord) Append(blockID uint64, fp Fingerprint, voter types.Identity) uint64 {
	block, ok := r.Block(blockID)
	if !ok {
		r.Blocks = append(r.Blocks, BlockEntry{
			BlockID: blockID,
			FinalHashes: []FinalHashEntry{{
				Fingerprint: fp,
				Endorsers:   []types.Identity{voter},
			}},
		})
		return BlockEntryBytes
	}
	for i := range block.FinalHashes {
		entry := &block.FinalHashes[i]
		if entry.Fingerprint != fp {
			continue
		}
		if entry.HasEndorser(voter) {
			return 0
		}
		entry.Endorsers = append(entry.Endorsers, voter)
		return EndorserBytes
	}
	block.FinalHashes = append(block.FinalHashes, FinalHashEntry{
		Fingerprint: fp,
		Endorsers:   []types.Identity{voter},
	})
	return FingerprintEntryBytes
}
