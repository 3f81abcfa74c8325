package indexer

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VoterCredit records one credit awarded to an endorser of a majority
// fingerprint.
type VoterCredit struct {
	ID                    uuid.UUID `gorm:"type:uuid;primaryKey"`
	Sequence              uint64    `gorm:"index"`
	Voter                 string    `gorm:"size:64;index"`
	Submitter             string    `gorm:"size:64"`
	LedgerID              uint64    `gorm:"index"`
	BlockID               uint64
	PreviousCreditedBlock uint64
	Credit                uint64
	FinalHash             string `gorm:"size:16"`
	CreatedAt             time.Time
}

// PeriodRollover records the close of a reward period.
type PeriodRollover struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	Sequence       uint64    `gorm:"index"`
	NewPeriod      uint64    `gorm:"index"`
	Timestamp      int64
	PreviousCredit uint64
	PreviousDebit  uint64
	CreatedAt      time.Time
}

// RewardClaim records a redemption paid out of the treasury.
type RewardClaim struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Sequence  uint64    `gorm:"index"`
	Owner     string    `gorm:"size:64;index"`
	Period    uint64    `gorm:"index"`
	Redeemed  uint64
	Reward    string `gorm:"size:80"`
	CreatedAt time.Time
}

// AutoMigrate creates or updates the index tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&VoterCredit{}, &PeriodRollover{}, &RewardClaim{})
}
