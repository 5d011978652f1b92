package reporting

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Pool states as projected from the event log.
const (
	PoolStateOpen          = "open"
	PoolStateTargetReached = "target_reached"
	PoolStateWithdrawn     = "withdrawn"
)

// PoolRow is the read model of one pool. Amounts are decimal strings in base
// units.
type PoolRow struct {
	ID                uint64 `gorm:"primaryKey;autoIncrement:false"`
	Creator           string `gorm:"size:64;index"`
	Receiver          string `gorm:"size:64"`
	Tokens            string
	TargetAmount      string `gorm:"size:80"`
	Price             string `gorm:"size:80"`
	RewardToken       string `gorm:"size:64"`
	RewardTokenAmount string `gorm:"size:80"`
	RewardFunded      bool
	Expiry            uint64
	State             string `gorm:"size:32;index"`
	TotalContributed  string `gorm:"size:80"`
	FeesCollected     string `gorm:"size:80"`
	Withdrawn         string `gorm:"size:80"`
	Claimed           string `gorm:"size:80"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ContributionRow is one contributor's cumulative position in a schedule.
type ContributionRow struct {
	PoolID            uint64 `gorm:"primaryKey;autoIncrement:false"`
	ScheduleID        uint64 `gorm:"primaryKey;autoIncrement:false"`
	Contributor       string `gorm:"primaryKey;size:64"`
	Token             string `gorm:"size:64"`
	AmountContributed string `gorm:"size:80"`
	FeesPaid          string `gorm:"size:80"`
	AmountToReceive   string `gorm:"size:80"`
	Claimed           bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ClaimRow records a paid reward claim.
type ClaimRow struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	PoolID         uint64    `gorm:"index"`
	ScheduleID     uint64
	DistributionID uint64
	Account        string `gorm:"size:64;index"`
	Token          string `gorm:"size:64"`
	Amount         string `gorm:"size:80"`
	CreatedAt      time.Time
}

// AccountRow aggregates the moderation state and activity of an account.
type AccountRow struct {
	Address          string `gorm:"primaryKey;size:64"`
	Tiers            string
	Suspended        bool
	Rejected         bool
	TotalContributed string `gorm:"size:80"`
	TotalClaimed     string `gorm:"size:80"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// EventRow is one committed domain event.
type EventRow struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Seq        uint64    `gorm:"index"`
	Type       string    `gorm:"size:64;index"`
	Attributes string
	CreatedAt  time.Time `gorm:"index"`
}

// AutoMigrate creates or updates the reporting tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&PoolRow{},
		&ContributionRow{},
		&ClaimRow{},
		&AccountRow{},
		&EventRow{},
	)
}
