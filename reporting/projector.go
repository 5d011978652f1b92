package reporting

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"rocket/core/events"
	"rocket/crypto"
)

// Projector is an events.Emitter that folds committed domain events into the
// reporting tables. Projection failures are logged and never reach the
// emitting module.
type Projector struct {
	db     *gorm.DB
	logger *slog.Logger
	nowFn  func() time.Time

	mu  sync.Mutex
	seq uint64
}

// NewProjector resumes the event sequence from the rows already stored.
func NewProjector(db *gorm.DB, logger *slog.Logger) (*Projector, error) {
	if db == nil {
		return nil, fmt.Errorf("reporting: database is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	var last struct{ Seq uint64 }
	if err := db.Model(&EventRow{}).Select("COALESCE(MAX(seq), 0) AS seq").Scan(&last).Error; err != nil {
		return nil, fmt.Errorf("reporting: resume sequence: %w", err)
	}
	return &Projector{db: db, logger: logger, nowFn: time.Now, seq: last.Seq}, nil
}

// Emit implements events.Emitter.
func (p *Projector) Emit(evt events.Event) {
	if p == nil || evt == nil {
		return
	}
	if err := p.Apply(context.Background(), evt); err != nil {
		p.logger.Error("reporting: projection failed",
			slog.String("event", evt.EventType()),
			slog.Any("error", err))
	}
}

// Apply projects evt in a single database transaction.
func (p *Projector) Apply(ctx context.Context, evt events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.nowFn().UTC()
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := p.project(tx, evt, now); err != nil {
			return err
		}
		return p.record(tx, evt, now)
	})
	if err != nil {
		return err
	}
	p.seq++
	return nil
}

func (p *Projector) record(tx *gorm.DB, evt events.Event, now time.Time) error {
	rendered := events.Render(evt)
	if rendered == nil {
		return nil
	}
	attrs, err := json.Marshal(rendered.Attributes)
	if err != nil {
		return err
	}
	return tx.Create(&EventRow{
		ID:         uuid.New(),
		Seq:        p.seq + 1,
		Type:       rendered.Type,
		Attributes: string(attrs),
		CreatedAt:  now,
	}).Error
}

func (p *Projector) project(tx *gorm.DB, evt events.Event, now time.Time) error {
	switch e := evt.(type) {
	case events.PoolCreated:
		tokens := make([]string, len(e.Tokens))
		for i, t := range e.Tokens {
			tokens[i] = crypto.FormatAccount(t)
		}
		row := PoolRow{
			ID:                e.PoolID,
			Creator:           crypto.FormatAccount(e.Creator),
			Receiver:          crypto.FormatAccount(e.Receiver),
			Tokens:            strings.Join(tokens, ","),
			TargetAmount:      decimal(e.TargetAmount),
			Price:             decimal(e.Price),
			RewardTokenAmount: decimal(e.RewardTokenAmount),
			Expiry:            e.Expiry,
			State:             PoolStateOpen,
			TotalContributed:  "0",
			FeesCollected:     "0",
			Withdrawn:         "0",
			Claimed:           "0",
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if e.RewardToken != ([20]byte{}) {
			row.RewardToken = crypto.FormatAccount(e.RewardToken)
		}
		return tx.Save(&row).Error

	case events.Contributed:
		contributor := crypto.FormatAccount(e.Contributor)
		var row ContributionRow
		err := tx.Where("pool_id = ? AND schedule_id = ? AND contributor = ?", e.PoolID, e.ScheduleID, contributor).
			Attrs(ContributionRow{FeesPaid: "0", CreatedAt: now}).
			FirstOrInit(&row).Error
		if err != nil {
			return err
		}
		row.PoolID, row.ScheduleID, row.Contributor = e.PoolID, e.ScheduleID, contributor
		row.Token = crypto.FormatAccount(e.Token)
		row.AmountContributed = decimal(e.AmountContributed)
		row.AmountToReceive = decimal(e.AmountToReceive)
		row.FeesPaid = addDecimal(row.FeesPaid, e.Fee)
		row.UpdatedAt = now
		if err := tx.Save(&row).Error; err != nil {
			return err
		}
		if err := p.updatePool(tx, e.PoolID, now, func(pool *PoolRow) {
			pool.TotalContributed = decimal(e.TotalContributed)
			pool.FeesCollected = addDecimal(pool.FeesCollected, e.Fee)
		}); err != nil {
			return err
		}
		return p.updateAccount(tx, contributor, now, func(acct *AccountRow) {
			acct.TotalContributed = addDecimal(acct.TotalContributed, e.Amount)
		})

	case events.PoolTargetCompleted:
		return p.updatePool(tx, e.PoolID, now, func(pool *PoolRow) {
			pool.State = advanceState(pool.State, PoolStateTargetReached)
			pool.TotalContributed = decimal(e.TotalContributed)
		})

	case events.PoolFundsWithdrawn:
		return p.updatePool(tx, e.PoolID, now, func(pool *PoolRow) {
			pool.State = advanceState(pool.State, PoolStateWithdrawn)
			pool.Withdrawn = addDecimal(pool.Withdrawn, e.Amount)
		})

	case events.PoolRewardDeposited:
		return p.updatePool(tx, e.PoolID, now, func(pool *PoolRow) {
			pool.RewardFunded = true
		})

	case events.PoolRewardClaimed:
		account := crypto.FormatAccount(e.Account)
		claim := ClaimRow{
			ID:             uuid.New(),
			PoolID:         e.PoolID,
			ScheduleID:     e.ScheduleID,
			DistributionID: e.DistributionID,
			Account:        account,
			Token:          crypto.FormatAccount(e.Token),
			Amount:         decimal(e.Amount),
			CreatedAt:      now,
		}
		if err := tx.Create(&claim).Error; err != nil {
			return err
		}
		err := tx.Model(&ContributionRow{}).
			Where("pool_id = ? AND schedule_id = ? AND contributor = ?", e.PoolID, e.ScheduleID, account).
			Updates(map[string]interface{}{"claimed": true, "updated_at": now}).Error
		if err != nil {
			return err
		}
		if err := p.updatePool(tx, e.PoolID, now, func(pool *PoolRow) {
			pool.Claimed = addDecimal(pool.Claimed, e.Amount)
		}); err != nil {
			return err
		}
		return p.updateAccount(tx, account, now, func(acct *AccountRow) {
			acct.TotalClaimed = addDecimal(acct.TotalClaimed, e.Amount)
		})

	case events.AccountStatusChanged:
		for _, addr := range e.Accounts {
			err := p.updateAccount(tx, crypto.FormatAccount(addr), now, func(acct *AccountRow) {
				switch e.Type {
				case events.TypeUserSuspended:
					acct.Suspended = true
				case events.TypeUserUnsuspended:
					acct.Suspended = false
				case events.TypeUserRejected:
					acct.Rejected = true
				case events.TypeUserUnrejected:
					acct.Rejected = false
				}
			})
			if err != nil {
				return err
			}
		}
		return nil

	case events.TierMembershipChanged:
		if e.Type != events.TypeTierAssigned && e.Type != events.TypeTierRevoked {
			return nil
		}
		for _, addr := range e.Accounts {
			err := p.updateAccount(tx, crypto.FormatAccount(addr), now, func(acct *AccountRow) {
				acct.Tiers = setTier(acct.Tiers, e.Tier, e.Type == events.TypeTierAssigned)
			})
			if err != nil {
				return err
			}
		}
		return nil
	}
	return nil
}

func (p *Projector) updatePool(tx *gorm.DB, id uint64, now time.Time, fn func(*PoolRow)) error {
	var row PoolRow
	if err := tx.First(&row, "id = ?", id).Error; err != nil {
		return fmt.Errorf("load pool %d: %w", id, err)
	}
	fn(&row)
	row.UpdatedAt = now
	return tx.Save(&row).Error
}

var poolStateRank = map[string]int{
	PoolStateOpen:          0,
	PoolStateTargetReached: 1,
	PoolStateWithdrawn:     2,
}

// advanceState moves a projected pool state forward only.
func advanceState(current, next string) string {
	if poolStateRank[next] < poolStateRank[current] {
		return current
	}
	return next
}

func (p *Projector) updateAccount(tx *gorm.DB, address string, now time.Time, fn func(*AccountRow)) error {
	var row AccountRow
	err := tx.Where("address = ?", address).
		Attrs(AccountRow{TotalContributed: "0", TotalClaimed: "0", CreatedAt: now}).
		FirstOrInit(&row).Error
	if err != nil {
		return err
	}
	row.Address = address
	fn(&row)
	row.UpdatedAt = now
	return tx.Save(&row).Error
}

func decimal(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func addDecimal(current string, delta *big.Int) string {
	sum, ok := new(big.Int).SetString(current, 10)
	if !ok {
		sum = new(big.Int)
	}
	if delta != nil {
		sum.Add(sum, delta)
	}
	return sum.String()
}

// setTier adds or removes tier from a comma separated, sorted id list.
func setTier(list string, tier uint64, held bool) string {
	set := make(map[uint64]struct{})
	for _, part := range strings.Split(list, ",") {
		if id, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64); err == nil {
			set[id] = struct{}{}
		}
	}
	if held {
		set[tier] = struct{}{}
	} else {
		delete(set, tier)
	}
	ids := make([]uint64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatUint(id, 10)
	}
	return strings.Join(parts, ",")
}
