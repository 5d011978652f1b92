package rocket

import (
	"context"
	"math/big"

	coreerrors "rocket/core/errors"
	"rocket/native/common"
	"rocket/state"
)

// Pool returns a snapshot of the pool.
func (e *Engine) Pool(ctx context.Context, id uint64) (*Pool, error) {
	var out *Pool
	err := e.st.View(ctx, func(tx *state.Tx) error {
		var err error
		out, err = e.pool(tx, "rocket: pool", id)
		return err
	})
	return out, err
}

// Pools returns every pool in id order.
func (e *Engine) Pools(ctx context.Context) ([]*Pool, error) {
	var out []*Pool
	err := e.st.View(ctx, func(tx *state.Tx) error {
		var last uint64
		if _, err := tx.Get(state.Key("seq", []byte(seqPool)), &last); err != nil {
			return err
		}
		out = make([]*Pool, 0, last)
		for id := uint64(1); id <= last; id++ {
			p, err := e.pool(tx, "rocket: pools", id)
			if err != nil {
				return err
			}
			out = append(out, p)
		}
		return nil
	})
	return out, err
}

// ContributionSchedule returns the schedule with the given id.
func (e *Engine) ContributionSchedule(ctx context.Context, id uint64) (*ContributionSchedule, error) {
	const op = "rocket: contribution schedule"
	var out ContributionSchedule
	err := e.st.View(ctx, func(tx *state.Tx) error {
		ok, err := tx.Get(scheduleKey(id), &out)
		if err != nil {
			return err
		}
		if !ok {
			return coreerrors.New(coreerrors.ErrNotFound, op, "contribution schedule not found").WithID(id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DistributionSchedule returns the distribution schedule with the given id.
func (e *Engine) DistributionSchedule(ctx context.Context, id uint64) (*DistributionSchedule, error) {
	const op = "rocket: distribution schedule"
	var out DistributionSchedule
	err := e.st.View(ctx, func(tx *state.Tx) error {
		ok, err := tx.Get(distributionKey(id), &out)
		if err != nil {
			return err
		}
		if !ok {
			return coreerrors.New(coreerrors.ErrNotFound, op, "distribution schedule not found").WithID(id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SchedulesOf returns the contribution and distribution schedules of a pool.
func (e *Engine) SchedulesOf(ctx context.Context, poolID uint64) ([]*ContributionSchedule, []*DistributionSchedule, error) {
	const op = "rocket: schedules of"
	var (
		contrib []*ContributionSchedule
		dists   []*DistributionSchedule
	)
	err := e.st.View(ctx, func(tx *state.Tx) error {
		pool, err := e.pool(tx, op, poolID)
		if err != nil {
			return err
		}
		for _, id := range pool.Schedules {
			s, err := e.schedule(tx, op, poolID, id)
			if err != nil {
				return err
			}
			contrib = append(contrib, s)
		}
		for _, id := range pool.Distributions {
			d, err := e.distribution(tx, op, poolID, id)
			if err != nil {
				return err
			}
			dists = append(dists, d)
		}
		return nil
	})
	return contrib, dists, err
}

// Contribution returns account's position in a schedule. The boolean is false
// when the account never contributed through it.
func (e *Engine) Contribution(ctx context.Context, scheduleID uint64, account [20]byte) (*Contribution, bool, error) {
	var (
		out   *Contribution
		found bool
	)
	err := e.st.View(ctx, func(tx *state.Tx) error {
		var err error
		out, found, err = e.contribution(tx, scheduleID, account)
		return err
	})
	return out, found, err
}

// Contributors lists the accounts that contributed through a schedule in
// first-contribution order.
func (e *Engine) Contributors(ctx context.Context, scheduleID uint64) ([][20]byte, error) {
	var out [][20]byte
	err := e.st.View(ctx, func(tx *state.Tx) error {
		var members [][]byte
		if _, err := tx.Get(contributorsKey(scheduleID), &members); err != nil {
			return err
		}
		out = make([][20]byte, 0, len(members))
		for _, m := range members {
			var addr [20]byte
			copy(addr[:], m)
			out = append(out, addr)
		}
		return nil
	})
	return out, err
}

// Config returns the current engine configuration.
func (e *Engine) Config(ctx context.Context) (*Config, error) {
	var out *Config
	err := e.st.View(ctx, func(tx *state.Tx) error {
		var err error
		out, err = e.config(tx, "rocket: config")
		return err
	})
	return out, err
}

// VestedAmount returns the part of account's reward released by the
// distribution schedule at the current time.
func (e *Engine) VestedAmount(ctx context.Context, poolID, scheduleID, distributionID uint64, account [20]byte) (*big.Int, error) {
	const op = "rocket: vested amount"
	var out *big.Int
	err := e.st.View(ctx, func(tx *state.Tx) error {
		if _, err := e.schedule(tx, op, poolID, scheduleID); err != nil {
			return err
		}
		dist, err := e.distribution(tx, op, poolID, distributionID)
		if err != nil {
			return err
		}
		record, _, err := e.contribution(tx, scheduleID, account)
		if err != nil {
			return err
		}
		out = dist.Vested(record.AmountToReceive, e.now())
		return nil
	})
	return out, err
}

// HasRole reports whether account holds role within the engine.
func (e *Engine) HasRole(ctx context.Context, role common.Role, account [20]byte) (bool, error) {
	var ok bool
	err := e.st.View(ctx, func(tx *state.Tx) error {
		var err error
		ok, err = common.HasRole(tx, moduleName, role, account)
		return err
	})
	return ok, err
}
