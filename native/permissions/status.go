package permissions

import (
	"context"

	"rocket/core/events"
	coreerrors "rocket/core/errors"
	"rocket/crypto"
	"rocket/state"
)

type statusChange struct {
	op        string
	eventType string
	apply     func(s *AccountStatus) error
}

var (
	suspendChange = statusChange{
		op:        "permissions: suspend user",
		eventType: events.TypeUserSuspended,
		apply: func(s *AccountStatus) error {
			if s.Suspended {
				return coreerrors.ErrAlreadySuspended
			}
			s.Suspended = true
			return nil
		},
	}
	unsuspendChange = statusChange{
		op:        "permissions: unsuspend user",
		eventType: events.TypeUserUnsuspended,
		apply: func(s *AccountStatus) error {
			if !s.Suspended {
				return coreerrors.ErrNotSuspended
			}
			s.Suspended = false
			return nil
		},
	}
	rejectChange = statusChange{
		op:        "permissions: reject user",
		eventType: events.TypeUserRejected,
		apply: func(s *AccountStatus) error {
			if s.Rejected {
				return coreerrors.ErrAlreadyRejected
			}
			s.Rejected = true
			return nil
		},
	}
	unrejectChange = statusChange{
		op:        "permissions: unreject user",
		eventType: events.TypeUserUnrejected,
		apply: func(s *AccountStatus) error {
			if !s.Rejected {
				return coreerrors.ErrNotRejected
			}
			s.Rejected = false
			return nil
		},
	}
)

// SuspendUser flags every account as suspended. An account that is already
// suspended aborts the whole batch.
func (c *Controller) SuspendUser(ctx context.Context, from [20]byte, accounts [][20]byte) error {
	return c.changeStatus(ctx, from, accounts, suspendChange)
}

// UnsuspendUser clears the suspended flag of every account.
func (c *Controller) UnsuspendUser(ctx context.Context, from [20]byte, accounts [][20]byte) error {
	return c.changeStatus(ctx, from, accounts, unsuspendChange)
}

// RejectUser flags every account as rejected.
func (c *Controller) RejectUser(ctx context.Context, from [20]byte, accounts [][20]byte) error {
	return c.changeStatus(ctx, from, accounts, rejectChange)
}

// UnRejectUser clears the rejected flag of every account.
func (c *Controller) UnRejectUser(ctx context.Context, from [20]byte, accounts [][20]byte) error {
	return c.changeStatus(ctx, from, accounts, unrejectChange)
}

func (c *Controller) changeStatus(ctx context.Context, from [20]byte, accounts [][20]byte, change statusChange) error {
	return c.mutate(ctx, change.op, from, func(ctx context.Context, tx *state.Tx) error {
		if err := checkAccounts(change.op, accounts); err != nil {
			return err
		}
		for _, account := range accounts {
			status, err := loadStatus(tx, account)
			if err != nil {
				return err
			}
			if err := change.apply(&status); err != nil {
				return coreerrors.New(err, change.op, "").WithAccount(crypto.FormatAccount(account))
			}
			if err := storeStatus(tx, account, status); err != nil {
				return err
			}
		}
		c.emit(tx, events.AccountStatusChanged{Type: change.eventType, Accounts: copyAccounts(accounts)})
		return nil
	})
}

func loadStatus(tx *state.Tx, account [20]byte) (AccountStatus, error) {
	var status AccountStatus
	if _, err := tx.Get(statusKey(account), &status); err != nil {
		return AccountStatus{}, err
	}
	return status, nil
}

func storeStatus(tx *state.Tx, account [20]byte, status AccountStatus) error {
	if !status.Suspended && !status.Rejected {
		return tx.Delete(statusKey(account))
	}
	return tx.Put(statusKey(account), &status)
}
