package common

import (
	"bytes"
	"fmt"

	coreerrors "rocket/core/errors"
	"rocket/crypto"
	"rocket/state"
)

// Role is the closed set of administrative capabilities recognised by the
// native modules.
type Role uint8

const (
	RoleDefaultAdmin Role = iota + 1
	RoleMinter
	RoleBurner
	RolePermissionsAdmin
	RoleRocketAdmin
)

func (r Role) String() string {
	switch r {
	case RoleDefaultAdmin:
		return "DEFAULT_ADMIN_ROLE"
	case RoleMinter:
		return "MINTER_ROLE"
	case RoleBurner:
		return "BURNER_ROLE"
	case RolePermissionsAdmin:
		return "PERMISSIONS_ADMIN_ROLE"
	case RoleRocketAdmin:
		return "ROCKET_ADMIN_ROLE"
	default:
		return fmt.Sprintf("ROLE(%d)", uint8(r))
	}
}

// ParseRole maps the canonical role name back to its value.
func ParseRole(name string) (Role, bool) {
	for r := RoleDefaultAdmin; r <= RoleRocketAdmin; r++ {
		if r.String() == name {
			return r, true
		}
	}
	return 0, false
}

func roleKey(module string, role Role) []byte {
	return state.Key("role", []byte(module), []byte{byte(role)})
}

// RoleMembers lists the accounts holding role within module.
func RoleMembers(tx *state.Tx, module string, role Role) ([][20]byte, error) {
	var members [][]byte
	if _, err := tx.Get(roleKey(module, role), &members); err != nil {
		return nil, err
	}
	out := make([][20]byte, 0, len(members))
	for _, m := range members {
		var addr [20]byte
		copy(addr[:], m)
		out = append(out, addr)
	}
	return out, nil
}

// HasRole reports whether account holds role within module.
func HasRole(tx *state.Tx, module string, role Role, account [20]byte) (bool, error) {
	var members [][]byte
	if _, err := tx.Get(roleKey(module, role), &members); err != nil {
		return false, err
	}
	for _, m := range members {
		if bytes.Equal(m, account[:]) {
			return true, nil
		}
	}
	return false, nil
}

// GrantRole adds account to role. The boolean reports whether membership
// changed.
func GrantRole(tx *state.Tx, module string, role Role, account [20]byte) (bool, error) {
	if account == ([20]byte{}) {
		return false, coreerrors.New(coreerrors.ErrZeroAddress, module, "role member is the zero address")
	}
	key := roleKey(module, role)
	var members [][]byte
	if _, err := tx.Get(key, &members); err != nil {
		return false, err
	}
	for _, m := range members {
		if bytes.Equal(m, account[:]) {
			return false, nil
		}
	}
	members = append(members, append([]byte(nil), account[:]...))
	return true, tx.Put(key, members)
}

// RevokeRole removes account from role. The boolean reports whether membership
// changed.
func RevokeRole(tx *state.Tx, module string, role Role, account [20]byte) (bool, error) {
	key := roleKey(module, role)
	var members [][]byte
	if _, err := tx.Get(key, &members); err != nil {
		return false, err
	}
	kept := members[:0]
	removed := false
	for _, m := range members {
		if bytes.Equal(m, account[:]) {
			removed = true
			continue
		}
		kept = append(kept, m)
	}
	if !removed {
		return false, nil
	}
	return true, tx.Put(key, kept)
}

// RequireRole fails with ErrUnauthorized, naming the caller, unless caller
// holds role within module.
func RequireRole(tx *state.Tx, module string, role Role, caller [20]byte, op, msg string) error {
	ok, err := HasRole(tx, module, role, caller)
	if err != nil {
		return err
	}
	if !ok {
		return coreerrors.New(coreerrors.ErrUnauthorized, op, msg).WithAccount(crypto.FormatAccount(caller))
	}
	return nil
}
