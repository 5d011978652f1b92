package permissions

import (
	"context"

	coreerrors "rocket/core/errors"
	"rocket/crypto"
	"rocket/native/common"
	"rocket/state"
)

// UserHasItem reports whether account holds item in the configured registry.
func (c *Controller) UserHasItem(ctx context.Context, account [20]byte, item uint64) (bool, error) {
	var held bool
	err := c.st.View(ctx, func(tx *state.Tx) error {
		var err error
		held, err = c.holds(ctx, tx, account, item)
		return err
	})
	return held, err
}

func (c *Controller) holds(ctx context.Context, tx *state.Tx, account [20]byte, item uint64) (bool, error) {
	reg, err := c.registry(tx, "permissions: user has item")
	if err != nil {
		return false, err
	}
	balance, err := reg.BalanceOf(ctx, account, item)
	if err != nil {
		return false, err
	}
	return balance > 0, nil
}

// IsSuspended reports the suspended flag of account.
func (c *Controller) IsSuspended(ctx context.Context, account [20]byte) (bool, error) {
	status, err := c.AccountStatus(ctx, account)
	return status.Suspended, err
}

// IsRejected reports the rejected flag of account.
func (c *Controller) IsRejected(ctx context.Context, account [20]byte) (bool, error) {
	status, err := c.AccountStatus(ctx, account)
	return status.Rejected, err
}

// AccountStatus returns both moderation flags of account.
func (c *Controller) AccountStatus(ctx context.Context, account [20]byte) (AccountStatus, error) {
	var status AccountStatus
	err := c.st.View(ctx, func(tx *state.Tx) error {
		var err error
		status, err = loadStatus(tx, account)
		return err
	})
	return status, err
}

// CheckEligible fails with ErrUnauthorized unless account holds tier and is
// neither suspended nor rejected.
func (c *Controller) CheckEligible(ctx context.Context, account [20]byte, tier uint64) error {
	const op = "permissions: check eligible"
	return c.st.View(ctx, func(tx *state.Tx) error {
		status, err := loadStatus(tx, account)
		if err != nil {
			return err
		}
		who := crypto.FormatAccount(account)
		if status.Suspended {
			return coreerrors.New(coreerrors.ErrUnauthorized, op, "account is suspended").WithAccount(who)
		}
		if status.Rejected {
			return coreerrors.New(coreerrors.ErrUnauthorized, op, "account is rejected").WithAccount(who)
		}
		held, err := c.holds(ctx, tx, account, tier)
		if err != nil {
			return err
		}
		if !held {
			return coreerrors.New(coreerrors.ErrUnauthorized, op, "account lacks the required tier").WithAccount(who).WithID(tier)
		}
		return nil
	})
}

// Tier returns the catalog entry with the supplied id.
func (c *Controller) Tier(ctx context.Context, id uint64) (*Tier, error) {
	var tier Tier
	err := c.st.View(ctx, func(tx *state.Tx) error {
		ok, err := tx.Get(tierKey(id), &tier)
		if err != nil {
			return err
		}
		if !ok {
			return coreerrors.New(coreerrors.ErrNotFound, "permissions: tier", "").WithID(id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &tier, nil
}

// Tiers returns the catalog in creation order.
func (c *Controller) Tiers(ctx context.Context) ([]Tier, error) {
	var out []Tier
	err := c.st.View(ctx, func(tx *state.Tx) error {
		var index []uint64
		if _, err := tx.Get(keyTierIndex, &index); err != nil {
			return err
		}
		out = make([]Tier, 0, len(index))
		for _, id := range index {
			var tier Tier
			if _, err := tx.Get(tierKey(id), &tier); err != nil {
				return err
			}
			out = append(out, tier)
		}
		return nil
	})
	return out, err
}

// PermissionItems returns the address of the configured registry.
func (c *Controller) PermissionItems(ctx context.Context) ([20]byte, error) {
	var addr [20]byte
	err := c.st.View(ctx, func(tx *state.Tx) error {
		_, err := tx.Get(keyItems, &addr)
		return err
	})
	return addr, err
}

// HasRole reports whether account holds role on the controller.
func (c *Controller) HasRole(ctx context.Context, role common.Role, account [20]byte) (bool, error) {
	var ok bool
	err := c.st.View(ctx, func(tx *state.Tx) error {
		var err error
		ok, err = common.HasRole(tx, moduleName, role, account)
		return err
	})
	return ok, err
}
