package growspace

// GenesisPeriod is the period index a freshly initialised treasury starts in.
const GenesisPeriod uint64 = 1

// PeriodAt returns the period index elapsed since genesis. A clock behind
// genesis yields zero.
func PeriodAt(genesis, now int64, duration uint64) uint64 {
	if duration == 0 || now <= genesis {
		return 0
	}
	return uint64(now-genesis) / duration
}

// Rollover is the outcome of advancing the treasury's period clock.
type Rollover struct {
	ClosedPeriod uint64
	NewPeriod    uint64
	Timestamp    int64
}

// AdvancePeriod moves the treasury to the period implied by now. The period
// index never decreases; the second return value is false when no rollover
// happened.
func (t *Treasury) AdvancePeriod(now int64, duration uint64) (Rollover, bool) {
	candidate := PeriodAt(t.GenesisTimestamp, now, duration)
	if candidate <= t.CurrentPeriod {
		return Rollover{}, false
	}
	rollover := Rollover{
		ClosedPeriod: t.CurrentPeriod,
		NewPeriod:    candidate,
		Timestamp:    now,
	}
	t.CurrentPeriod = candidate
	return rollover, true
}

// Closed reports whether period has ended and may be claimed.
func (t *Treasury) Closed(period uint64) bool {
	return period < t.CurrentPeriod
}
