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

// Contribute pulls amount of token from caller into the pool through the
// given schedule. The protocol fee is forwarded to the fee receiver and the
// remainder stays in custody until the pool is withdrawn.
func (e *Engine) Contribute(ctx context.Context, caller [20]byte, poolID, scheduleID uint64, amount *big.Int, token [20]byte) error {
	const op = "rocket: contribute"
	if err := common.CheckAmount(op, "amount", amount); err != nil {
		return err
	}
	if amount.Sign() == 0 {
		return coreerrors.New(coreerrors.ErrAmountOutOfBounds, op, "amount must be positive")
	}
	return e.mutate(ctx, func(ctx context.Context, tx *state.Tx) error {
		pool, err := e.pool(tx, op, poolID)
		if err != nil {
			return err
		}
		sched, err := e.schedule(tx, op, poolID, scheduleID)
		if err != nil {
			return err
		}
		now := e.now()
		if pool.State != PoolOpen {
			return coreerrors.New(coreerrors.ErrPoolNotActive, op, "pool is not accepting contributions").WithID(poolID)
		}
		if pool.Expiry != 0 && now > pool.Expiry {
			return coreerrors.New(coreerrors.ErrPoolNotActive, op, "pool has expired").WithID(poolID)
		}
		cfg, err := e.config(tx, op)
		if err != nil {
			return err
		}
		if err := e.checkEligible(ctx, op, cfg.Permissions, caller, sched.Tier); err != nil {
			return err
		}
		if !sched.Open(now) {
			return coreerrors.New(coreerrors.ErrScheduleWindowClosed, op, "contribution window is closed").WithID(scheduleID)
		}
		if err := checkBounds(op, pool, sched, amount); err != nil {
			return err
		}
		if !pool.Accepts(token) {
			return coreerrors.New(coreerrors.ErrInvalidArgument, op, "token not accepted by pool").
				WithAccount(crypto.FormatAccount(token))
		}

		if err := e.pull(ctx, op, token, caller, amount); err != nil {
			return err
		}
		fee := FeeFor(amount, cfg.FeeBps)
		if fee.Sign() > 0 {
			if err := e.push(ctx, op, token, cfg.FeeReceiver, fee); err != nil {
				return err
			}
		}
		pool.addCustody(token, new(big.Int).Sub(amount, fee))

		record, existed, err := e.contribution(tx, scheduleID, caller)
		if err != nil {
			return err
		}
		if record.AmountContributed, err = common.CheckedAdd(op, record.AmountContributed, amount); err != nil {
			return err
		}
		record.AmountToReceive = RewardFor(pool.RewardTokenAmount, record.AmountContributed, pool.TargetAmount)
		if err := tx.Put(contributionKey(scheduleID, caller), record); err != nil {
			return err
		}
		if !existed {
			if err := e.appendContributor(tx, scheduleID, caller); err != nil {
				return err
			}
		}

		if pool.TotalContributed, err = common.CheckedAdd(op, pool.TotalContributed, amount); err != nil {
			return err
		}
		reached := pool.TotalContributed.Cmp(pool.TargetAmount) >= 0
		if reached {
			pool.State = PoolTargetReached
		}
		if err := tx.Put(poolKey(poolID), pool); err != nil {
			return err
		}

		e.emit(tx, events.Contributed{
			PoolID:            poolID,
			ScheduleID:        scheduleID,
			Contributor:       caller,
			Token:             token,
			Amount:            common.CloneBig(amount),
			Fee:               fee,
			AmountContributed: common.CloneBig(record.AmountContributed),
			AmountToReceive:   common.CloneBig(record.AmountToReceive),
			TotalContributed:  common.CloneBig(pool.TotalContributed),
		})
		if reached {
			e.emit(tx, events.PoolTargetCompleted{PoolID: poolID, TotalContributed: common.CloneBig(pool.TotalContributed)})
		}
		return nil
	})
}

// checkBounds enforces the schedule's per-contribution bounds and refuses to
// overshoot the pool target. A final contribution smaller than the schedule
// minimum is accepted when it exactly fills the remaining target.
func checkBounds(op string, pool *Pool, sched *ContributionSchedule, amount *big.Int) error {
	remaining := new(big.Int).Sub(pool.TargetAmount, pool.TotalContributed)
	if amount.Cmp(remaining) > 0 {
		return coreerrors.New(coreerrors.ErrAmountOutOfBounds, op, "amount exceeds remaining target").WithID(pool.ID)
	}
	if amount.Cmp(sched.MaxAmount) > 0 {
		return coreerrors.New(coreerrors.ErrAmountOutOfBounds, op, "amount above schedule maximum").WithID(sched.ID)
	}
	if amount.Cmp(sched.MinAmount) < 0 && amount.Cmp(remaining) != 0 {
		return coreerrors.New(coreerrors.ErrAmountOutOfBounds, op, "amount below schedule minimum").WithID(sched.ID)
	}
	return nil
}

// checkEligible fails unless account holds tier and is neither suspended nor
// rejected, as answered by the controller registered at permissions.
func (e *Engine) checkEligible(ctx context.Context, op string, permissions, account [20]byte, tier uint64) error {
	if e.access == nil {
		return coreerrors.New(coreerrors.ErrUnauthorized, op, "access controller not configured")
	}
	if e.access.Address() != permissions {
		return coreerrors.New(coreerrors.ErrUnauthorized, op, "access controller does not match configured permissions").
			WithAccount(crypto.FormatAccount(e.access.Address()))
	}
	who := crypto.FormatAccount(account)
	suspended, err := e.access.IsSuspended(ctx, account)
	if err != nil {
		return err
	}
	if suspended {
		return coreerrors.New(coreerrors.ErrUnauthorized, op, "account is suspended").WithAccount(who)
	}
	rejected, err := e.access.IsRejected(ctx, account)
	if err != nil {
		return err
	}
	if rejected {
		return coreerrors.New(coreerrors.ErrUnauthorized, op, "account is rejected").WithAccount(who)
	}
	held, err := e.access.UserHasItem(ctx, account, tier)
	if err != nil {
		return err
	}
	if !held {
		return coreerrors.New(coreerrors.ErrUnauthorized, op, "account lacks the required tier").WithAccount(who).WithID(tier)
	}
	return nil
}

func (e *Engine) appendContributor(tx *state.Tx, scheduleID uint64, account [20]byte) error {
	var members [][]byte
	if _, err := tx.Get(contributorsKey(scheduleID), &members); err != nil {
		return err
	}
	members = append(members, append([]byte(nil), account[:]...))
	return tx.Put(contributorsKey(scheduleID), members)
}
