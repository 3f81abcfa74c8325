package growspace

import (
	"sort"

	"growspace/core/types"
)

// Majority describes the fingerprint that won a strict majority of a block's
// votes.
type Majority struct {
	BlockID     uint64
	Fingerprint Fingerprint
	Endorsers   []types.Identity
	Votes       uint64
	TotalVotes  uint64
}

// ResolveMajority ranks the block's fingerprints by endorser count, keeping
// insertion order among ties, and reports the leader when it holds strictly
// more than half of all votes.
func ResolveMajority(block BlockEntry) (Majority, bool) {
	if len(block.FinalHashes) == 0 {
		return Majority{}, false
	}
	total := block.TotalVotes()
	ranked := make([]FinalHashEntry, len(block.FinalHashes))
	copy(ranked, block.FinalHashes)
	sort.SliceStable(ranked, func(i, j int) bool {
		return len(ranked[i].Endorsers) > len(ranked[j].Endorsers)
	})
	lead := uint64(len(ranked[0].Endorsers))
	if 2*lead <= total {
		return Majority{}, false
	}
	return Majority{
		BlockID:     block.BlockID,
		Fingerprint: ranked[0].Fingerprint,
		Endorsers:   append([]types.Identity(nil), ranked[0].Endorsers...),
		Votes:       lead,
		TotalVotes:  total,
	}, true
}

// SelectEndorsers resolves ballot positions against the winner's endorser
// list. The first out-of-range index ends the walk; later indices are ignored.
func (m Majority) SelectEndorsers(ballot []uint64) []types.Identity {
	out := make([]types.Identity, 0, len(ballot))
	for _, idx := range ballot {
		if idx >= uint64(len(m.Endorsers)) {
			break
		}
		out = append(out, m.Endorsers[idx])
	}
	return out
}
