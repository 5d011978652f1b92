package common

import (
	"context"
	"errors"
	"testing"

	coreerrors "rocket/core/errors"
	"rocket/state"
)

func TestGrantRevokeRole(t *testing.T) {
	m := state.NewManager(nil)
	alice := [20]byte{1}
	err := m.Update(context.Background(), func(ctx context.Context, tx *state.Tx) error {
		changed, err := GrantRole(tx, "items", RoleMinter, alice)
		if err != nil || !changed {
			t.Fatalf("grant: changed=%v err=%v", changed, err)
		}
		changed, err = GrantRole(tx, "items", RoleMinter, alice)
		if err != nil || changed {
			t.Fatalf("regrant should be a no-op: changed=%v err=%v", changed, err)
		}
		ok, err := HasRole(tx, "items", RoleMinter, alice)
		if err != nil || !ok {
			t.Fatalf("expected alice to be minter")
		}
		if ok, _ := HasRole(tx, "rocket", RoleMinter, alice); ok {
			t.Fatalf("roles must be scoped per module")
		}
		changed, err = RevokeRole(tx, "items", RoleMinter, alice)
		if err != nil || !changed {
			t.Fatalf("revoke: changed=%v err=%v", changed, err)
		}
		members, err := RoleMembers(tx, "items", RoleMinter)
		if err != nil {
			return err
		}
		if len(members) != 0 {
			t.Fatalf("expected no members, got %d", len(members))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
}

func TestRequireRoleNamesCaller(t *testing.T) {
	m := state.NewManager(nil)
	bob := [20]byte{2}
	err := m.View(context.Background(), func(tx *state.Tx) error {
		return RequireRole(tx, "rocket", RoleRocketAdmin, bob, "rocket: create pool", "Rocket_Admin_ROLE required")
	})
	if !errors.Is(err, coreerrors.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	var typed *coreerrors.Error
	if !errors.As(err, &typed) || typed.Account == "" {
		t.Fatalf("expected caller in error detail: %v", err)
	}
}

func TestGrantRoleRejectsZeroAddress(t *testing.T) {
	m := state.NewManager(nil)
	err := m.Update(context.Background(), func(ctx context.Context, tx *state.Tx) error {
		_, err := GrantRole(tx, "items", RoleMinter, [20]byte{})
		return err
	})
	if !errors.Is(err, coreerrors.ErrZeroAddress) {
		t.Fatalf("expected zero address error, got %v", err)
	}
}

func TestGuard(t *testing.T) {
	pauses := NewPauses("Rocket")
	if err := Guard(pauses, "rocket"); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected paused, got %v", err)
	}
	pauses.Set("rocket", false)
	if err := Guard(pauses, "rocket"); err != nil {
		t.Fatalf("expected resumed, got %v", err)
	}
	if err := Guard(nil, "rocket"); err != nil {
		t.Fatalf("nil view must not pause: %v", err)
	}
}

func TestParseRole(t *testing.T) {
	r, ok := ParseRole(RoleRocketAdmin.String())
	if !ok || r != RoleRocketAdmin {
		t.Fatalf("unexpected parse result %v %v", r, ok)
	}
	if _, ok := ParseRole("nope"); ok {
		t.Fatalf("expected unknown role")
	}
}
