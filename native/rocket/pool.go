package rocket

import (
	"context"
	"math/big"

	"rocket/core/events"
	coreerrors "rocket/core/errors"
	"rocket/native/common"
	"rocket/state"
)

func validatePool(op string, p PoolParams, now uint64) error {
	if err := common.CheckAmount(op, "target amount", p.TargetAmount); err != nil {
		return err
	}
	if p.TargetAmount.Sign() == 0 {
		return coreerrors.New(coreerrors.ErrInvalidArgument, op, "target amount must be positive")
	}
	if p.Receiver == ([20]byte{}) {
		return coreerrors.New(coreerrors.ErrZeroAddress, op, "receiver is the zero address")
	}
	if len(p.Tokens) == 0 {
		return coreerrors.New(coreerrors.ErrInvalidArgument, op, "at least one accepted token is required")
	}
	seen := make(map[[20]byte]struct{}, len(p.Tokens))
	for _, t := range p.Tokens {
		if t == ([20]byte{}) {
			return coreerrors.New(coreerrors.ErrZeroAddress, op, "accepted token is the zero address")
		}
		if _, dup := seen[t]; dup {
			return coreerrors.New(coreerrors.ErrInvalidArgument, op, "duplicate accepted token")
		}
		seen[t] = struct{}{}
	}
	if p.Price != nil {
		if err := common.CheckAmount(op, "price", p.Price); err != nil {
			return err
		}
	}
	if p.RewardTokenAmount != nil {
		if err := common.CheckAmount(op, "reward token amount", p.RewardTokenAmount); err != nil {
			return err
		}
	}
	if p.RewardToken != ([20]byte{}) && (p.RewardTokenAmount == nil || p.RewardTokenAmount.Sign() == 0) {
		return coreerrors.New(coreerrors.ErrInvalidArgument, op, "reward token amount must be positive")
	}
	if p.Expiry != 0 && p.Expiry <= now {
		return coreerrors.New(coreerrors.ErrInvalidArgument, op, "expiry must be in the future")
	}
	return nil
}

// CreatePool registers a new pool owned by caller and returns its id.
func (e *Engine) CreatePool(ctx context.Context, caller [20]byte, params PoolParams) (uint64, error) {
	const op = "rocket: create pool"
	var id uint64
	err := e.mutate(ctx, func(ctx context.Context, tx *state.Tx) error {
		if err := common.RequireRole(tx, moduleName, common.RoleRocketAdmin, caller, op, "Rocket_Admin_ROLE required"); err != nil {
			return err
		}
		now := e.now()
		if err := validatePool(op, params, now); err != nil {
			return err
		}
		next, err := tx.NextID(seqPool)
		if err != nil {
			return err
		}
		pool := &Pool{
			ID:                next,
			Creator:           caller,
			TargetAmount:      common.CloneBig(params.TargetAmount),
			Tokens:            append([][20]byte(nil), params.Tokens...),
			Receiver:          params.Receiver,
			Price:             common.CloneBig(params.Price),
			RewardToken:       params.RewardToken,
			RewardTokenAmount: common.CloneBig(params.RewardTokenAmount),
			Expiry:            params.Expiry,
			CreatedAt:         now,
			State:             PoolOpen,
			Reward:            RewardUnfunded,
			TotalContributed:  big.NewInt(0),
			RewardBalance:     big.NewInt(0),
		}
		if pool.RewardToken == ([20]byte{}) {
			pool.RewardTokenAmount = big.NewInt(0)
		}
		if err := tx.Put(poolKey(next), pool); err != nil {
			return err
		}
		id = next
		e.emit(tx, events.PoolCreated{
			PoolID:            pool.ID,
			Creator:           caller,
			TargetAmount:      common.CloneBig(pool.TargetAmount),
			Tokens:            append([][20]byte(nil), pool.Tokens...),
			Receiver:          pool.Receiver,
			Price:             common.CloneBig(pool.Price),
			RewardToken:       pool.RewardToken,
			RewardTokenAmount: common.CloneBig(pool.RewardTokenAmount),
			Expiry:            pool.Expiry,
		})
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// ScheduleParams carries the parameters of a contribution schedule.
type ScheduleParams struct {
	Tier      uint64
	MinAmount *big.Int
	MaxAmount *big.Int
	Price     *big.Int
	Start     uint64
	End       uint64
}

// CreateContributionSchedule opens a tier-gated contribution window on an
// open pool and returns the schedule id.
func (e *Engine) CreateContributionSchedule(ctx context.Context, caller [20]byte, poolID uint64, params ScheduleParams) (uint64, error) {
	const op = "rocket: create contribution schedule"
	var id uint64
	err := e.mutate(ctx, func(ctx context.Context, tx *state.Tx) error {
		if err := e.requireRocketAdmin(tx, op, caller); err != nil {
			return err
		}
		for _, field := range []struct {
			name string
			v    *big.Int
		}{{"min amount", params.MinAmount}, {"max amount", params.MaxAmount}, {"price", params.Price}} {
			if err := common.CheckAmount(op, field.name, field.v); err != nil {
				return err
			}
		}
		if params.MaxAmount.Sign() == 0 {
			return coreerrors.New(coreerrors.ErrInvalidArgument, op, "max amount must be positive")
		}
		if params.MinAmount.Cmp(params.MaxAmount) > 0 {
			return coreerrors.New(coreerrors.ErrInvalidArgument, op, "min amount exceeds max amount")
		}
		if params.Start > params.End {
			return coreerrors.New(coreerrors.ErrInvalidArgument, op, "start is after end")
		}
		pool, err := e.pool(tx, op, poolID)
		if err != nil {
			return err
		}
		if pool.State != PoolOpen {
			return coreerrors.New(coreerrors.ErrPoolNotActive, op, "pool is not accepting contributions").WithID(poolID)
		}
		next, err := tx.NextID(seqSchedule)
		if err != nil {
			return err
		}
		sched := &ContributionSchedule{
			ID:        next,
			PoolID:    poolID,
			Tier:      params.Tier,
			MinAmount: common.CloneBig(params.MinAmount),
			MaxAmount: common.CloneBig(params.MaxAmount),
			Price:     common.CloneBig(params.Price),
			Start:     params.Start,
			End:       params.End,
		}
		if err := tx.Put(scheduleKey(next), sched); err != nil {
			return err
		}
		pool.Schedules = append(pool.Schedules, next)
		if err := tx.Put(poolKey(poolID), pool); err != nil {
			return err
		}
		id = next
		e.emit(tx, events.ContributionScheduleCreated{
			PoolID:     poolID,
			ScheduleID: next,
			Tier:       sched.Tier,
			MinAmount:  common.CloneBig(sched.MinAmount),
			MaxAmount:  common.CloneBig(sched.MaxAmount),
			Price:      common.CloneBig(sched.Price),
			Start:      sched.Start,
			End:        sched.End,
		})
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// CreateDistributionSchedule defines when the pool's rewards become claimable
// and returns the distribution id.
func (e *Engine) CreateDistributionSchedule(ctx context.Context, caller [20]byte, poolID, start, end, periodLength uint64) (uint64, error) {
	const op = "rocket: create distribution schedule"
	var id uint64
	err := e.mutate(ctx, func(ctx context.Context, tx *state.Tx) error {
		if err := e.requireRocketAdmin(tx, op, caller); err != nil {
			return err
		}
		if start > end {
			return coreerrors.New(coreerrors.ErrInvalidArgument, op, "start is after end")
		}
		if periodLength == 0 {
			return coreerrors.New(coreerrors.ErrInvalidArgument, op, "period length must be positive")
		}
		pool, err := e.pool(tx, op, poolID)
		if err != nil {
			return err
		}
		next, err := tx.NextID(seqDistribution)
		if err != nil {
			return err
		}
		dist := &DistributionSchedule{ID: next, PoolID: poolID, Start: start, End: end, PeriodLength: periodLength}
		if err := tx.Put(distributionKey(next), dist); err != nil {
			return err
		}
		pool.Distributions = append(pool.Distributions, next)
		if err := tx.Put(poolKey(poolID), pool); err != nil {
			return err
		}
		id = next
		e.emit(tx, events.DistributionScheduleCreated{
			PoolID:         poolID,
			DistributionID: next,
			Start:          start,
			End:            end,
			PeriodLength:   periodLength,
		})
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}
