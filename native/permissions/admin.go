package permissions

import (
	"context"

	"rocket/core/events"
	coreerrors "rocket/core/errors"
	"rocket/native/common"
	"rocket/state"
)

const missingRootRole = "must have default admin role"

// SetPermissionItems repoints the controller at another capability registry.
// Root only.
func (c *Controller) SetPermissionItems(ctx context.Context, from, registry [20]byte) error {
	const op = "permissions: set permission items"
	if err := common.Guard(c.pauses, moduleName); err != nil {
		return err
	}
	return c.st.Update(ctx, func(ctx context.Context, tx *state.Tx) error {
		if err := common.RequireRole(tx, moduleName, common.RoleDefaultAdmin, from, op, missingRootRole); err != nil {
			return err
		}
		if registry == ([20]byte{}) {
			return coreerrors.New(coreerrors.ErrZeroAddress, op, "_permissionItems is the zero address")
		}
		if _, err := c.resolve(op, registry); err != nil {
			return err
		}
		var previous [20]byte
		if _, err := tx.Get(keyItems, &previous); err != nil {
			return err
		}
		if err := tx.Put(keyItems, registry); err != nil {
			return err
		}
		c.emit(tx, events.PermissionItemsUpdated{Previous: previous, Registry: registry})
		return nil
	})
}

// SetPermissionsAdmin grants the permissions admin role to account. Root only.
func (c *Controller) SetPermissionsAdmin(ctx context.Context, from, account [20]byte) error {
	return c.changePermissionsAdmin(ctx, from, account, true)
}

// RevokePermissionsAdmin withdraws the permissions admin role. Root only.
func (c *Controller) RevokePermissionsAdmin(ctx context.Context, from, account [20]byte) error {
	return c.changePermissionsAdmin(ctx, from, account, false)
}

func (c *Controller) changePermissionsAdmin(ctx context.Context, from, account [20]byte, grant bool) error {
	op := "permissions: revoke permissions admin"
	if grant {
		op = "permissions: set permissions admin"
	}
	if err := common.Guard(c.pauses, moduleName); err != nil {
		return err
	}
	return c.st.Update(ctx, func(ctx context.Context, tx *state.Tx) error {
		if err := common.RequireRole(tx, moduleName, common.RoleDefaultAdmin, from, op, missingRootRole); err != nil {
			return err
		}
		if account == ([20]byte{}) {
			return coreerrors.New(coreerrors.ErrZeroAddress, op, "_permissionsAdmin is the zero address")
		}
		var err error
		if grant {
			_, err = common.GrantRole(tx, moduleName, common.RolePermissionsAdmin, account)
		} else {
			_, err = common.RevokeRole(tx, moduleName, common.RolePermissionsAdmin, account)
		}
		if err != nil {
			return err
		}
		c.emit(tx, events.PermissionsAdminChanged{Account: account, Granted: grant})
		return nil
	})
}
