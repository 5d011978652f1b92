package reporting

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned by the lookups when no row matches.
var ErrNotFound = errors.New("reporting: not found")

// Open connects to dsn and migrates the schema. postgres:// and
// postgresql:// DSNs use the postgres driver; anything else is handed to the
// embedded sqlite driver.
func Open(dsn string) (*gorm.DB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("reporting: dsn is required")
	}
	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("reporting: open: %w", err)
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("reporting: migrate: %w", err)
	}
	return db, nil
}

// Pool returns the projected pool.
func (p *Projector) Pool(ctx context.Context, id uint64) (*PoolRow, error) {
	var row PoolRow
	err := p.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Pools lists projected pools, optionally filtered by state.
func (p *Projector) Pools(ctx context.Context, state string) ([]PoolRow, error) {
	q := p.db.WithContext(ctx).Order("id")
	if state != "" {
		q = q.Where("state = ?", state)
	}
	var rows []PoolRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Contributions lists every contribution position of a pool.
func (p *Projector) Contributions(ctx context.Context, poolID uint64) ([]ContributionRow, error) {
	var rows []ContributionRow
	err := p.db.WithContext(ctx).
		Where("pool_id = ?", poolID).
		Order("schedule_id, contributor").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Claims lists the reward claims paid by a pool.
func (p *Projector) Claims(ctx context.Context, poolID uint64) ([]ClaimRow, error) {
	var rows []ClaimRow
	if err := p.db.WithContext(ctx).Where("pool_id = ?", poolID).Order("created_at").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Account returns the aggregate row of a bech32 address.
func (p *Projector) Account(ctx context.Context, address string) (*AccountRow, error) {
	var row AccountRow
	err := p.db.WithContext(ctx).First(&row, "address = ?", address).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Events returns the most recent events, newest first.
func (p *Projector) Events(ctx context.Context, limit int) ([]EventRow, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var rows []EventRow
	if err := p.db.WithContext(ctx).Order("seq desc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
