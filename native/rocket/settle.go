package rocket

import (
	"context"
	"math/big"

	"rocket/core/events"
	coreerrors "rocket/core/errors"
	"rocket/crypto"
	"rocket/native/common"
	"rocket/state"
)

// WithdrawFundToReceiver releases the net custody of every accepted token to
// the pool receiver once the target has been reached.
func (e *Engine) WithdrawFundToReceiver(ctx context.Context, caller [20]byte, poolID uint64) error {
	const op = "rocket: withdraw fund to receiver"
	return e.mutate(ctx, func(ctx context.Context, tx *state.Tx) error {
		if err := e.requireRocketAdmin(tx, op, caller); err != nil {
			return err
		}
		pool, err := e.pool(tx, op, poolID)
		if err != nil {
			return err
		}
		switch pool.State {
		case PoolTargetReached:
		case PoolWithdrawn:
			return coreerrors.New(coreerrors.ErrPoolStillActive, op, "pool funds already withdrawn").WithID(poolID)
		default:
			return coreerrors.New(coreerrors.ErrPoolStillActive, op, "Pool is still active").WithID(poolID)
		}
		for i, c := range pool.Custody {
			if c.Amount == nil || c.Amount.Sign() == 0 {
				continue
			}
			if err := e.push(ctx, op, c.Token, pool.Receiver, c.Amount); err != nil {
				return err
			}
			e.emit(tx, events.PoolFundsWithdrawn{
				PoolID:   poolID,
				Receiver: pool.Receiver,
				Token:    c.Token,
				Amount:   common.CloneBig(c.Amount),
			})
			pool.Custody[i].Amount = big.NewInt(0)
		}
		pool.State = PoolWithdrawn
		return tx.Put(poolKey(poolID), pool)
	})
}

// DepositPoolRewardTokens pulls the pool's full reward allocation from caller
// into custody.
func (e *Engine) DepositPoolRewardTokens(ctx context.Context, caller [20]byte, poolID uint64) error {
	const op = "rocket: deposit pool reward tokens"
	return e.mutate(ctx, func(ctx context.Context, tx *state.Tx) error {
		if err := e.requireRocketAdmin(tx, op, caller); err != nil {
			return err
		}
		pool, err := e.pool(tx, op, poolID)
		if err != nil {
			return err
		}
		if !pool.HasReward() {
			return coreerrors.New(coreerrors.ErrNoRewardTokens, op, "Pool has no reward tokens").WithID(poolID)
		}
		if pool.Reward == RewardFunded {
			return coreerrors.New(coreerrors.ErrRewardAlreadyFunded, op, "").WithID(poolID)
		}
		if err := e.pull(ctx, op, pool.RewardToken, caller, pool.RewardTokenAmount); err != nil {
			return err
		}
		pool.Reward = RewardFunded
		pool.RewardBalance = common.CloneBig(pool.RewardTokenAmount)
		if err := tx.Put(poolKey(poolID), pool); err != nil {
			return err
		}
		e.emit(tx, events.PoolRewardDeposited{
			PoolID:    poolID,
			Depositor: caller,
			Token:     pool.RewardToken,
			Amount:    common.CloneBig(pool.RewardTokenAmount),
		})
		return nil
	})
}

// ClaimPoolRewardToken pays caller the reward owed for its contribution
// through scheduleID. The claimed flag and the payout commit together; a
// failed payout leaves the contribution unclaimed.
func (e *Engine) ClaimPoolRewardToken(ctx context.Context, caller [20]byte, poolID, scheduleID, distributionID uint64) (*big.Int, error) {
	const op = "rocket: claim pool reward token"
	var paid *big.Int
	err := e.mutate(ctx, func(ctx context.Context, tx *state.Tx) error {
		pool, err := e.pool(tx, op, poolID)
		if err != nil {
			return err
		}
		if pool.State == PoolOpen {
			return coreerrors.New(coreerrors.ErrPoolStillActive, op, "Pool is active").WithID(poolID)
		}
		if !pool.HasReward() || pool.Reward != RewardFunded {
			return coreerrors.New(coreerrors.ErrNoRewardTokens, op, "Pool has no reward tokens").WithID(poolID)
		}
		if _, err := e.schedule(tx, op, poolID, scheduleID); err != nil {
			return err
		}
		dist, err := e.distribution(tx, op, poolID, distributionID)
		if err != nil {
			return err
		}
		if e.now() < dist.Start {
			return coreerrors.New(coreerrors.ErrScheduleWindowClosed, op, "distribution has not started").WithID(distributionID)
		}
		record, found, err := e.contribution(tx, scheduleID, caller)
		if err != nil {
			return err
		}
		if !found {
			return coreerrors.New(coreerrors.ErrNotFound, op, "no contribution found").
				WithAccount(crypto.FormatAccount(caller)).WithID(scheduleID)
		}
		if record.Claimed {
			return coreerrors.New(coreerrors.ErrDoubleClaim, op, "double claim found").
				WithAccount(crypto.FormatAccount(caller)).WithID(scheduleID)
		}
		amount := common.CloneBig(record.AmountToReceive)
		if pool.RewardBalance.Cmp(amount) < 0 {
			return coreerrors.New(coreerrors.ErrInsufficientBalance, op, "reward custody exhausted").WithID(poolID)
		}

		record.Claimed = true
		if err := tx.Put(contributionKey(scheduleID, caller), record); err != nil {
			return err
		}
		pool.RewardBalance = new(big.Int).Sub(pool.RewardBalance, amount)
		if err := tx.Put(poolKey(poolID), pool); err != nil {
			return err
		}
		if amount.Sign() > 0 {
			if err := e.push(ctx, op, pool.RewardToken, caller, amount); err != nil {
				return err
			}
		}
		paid = amount
		e.emit(tx, events.PoolRewardClaimed{
			PoolID:         poolID,
			ScheduleID:     scheduleID,
			DistributionID: distributionID,
			Account:        caller,
			Token:          pool.RewardToken,
			Amount:         common.CloneBig(amount),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paid, nil
}
