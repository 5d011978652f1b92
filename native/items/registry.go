package items

import (
	"context"
	"encoding/hex"
	"math"

	"rocket/core/events"
	coreerrors "rocket/core/errors"
	"rocket/crypto"
	"rocket/native/common"
	"rocket/state"
)

const moduleName = "items"

// Registry is a non-transferable multi-token ledger of capability items. Only
// accounts holding the minter and burner roles may change balances; holders
// can never move items themselves.
type Registry struct {
	st      *state.Manager
	self    [20]byte
	module  string
	emitter events.Emitter
	pauses  common.PauseView
}

// New binds a registry living at address self to the shared state manager.
func New(st *state.Manager, self [20]byte) *Registry {
	return &Registry{
		st:      st,
		self:    self,
		module:  moduleName + ":" + hex.EncodeToString(self[:]),
		emitter: events.NoopEmitter{},
	}
}

// Address returns the registry's own account.
func (r *Registry) Address() [20]byte { return r.self }

// SetEmitter configures the event emitter used by the registry. Passing nil
// resets the emitter to a no-op implementation.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

// SetPauses wires the operator pause switch.
func (r *Registry) SetPauses(p common.PauseView) { r.pauses = p }

func (r *Registry) emit(tx *state.Tx, evt events.Event) {
	emitter := r.emitter
	tx.OnCommit(func() { emitter.Emit(evt) })
}

func (r *Registry) initKey() []byte { return state.Key("items/init", r.self[:]) }

func (r *Registry) balanceKey(account [20]byte, id uint64) []byte {
	return state.Key("items/balance", r.self[:], account[:], state.U64(id))
}

// Initialize fixes the root administrator. It succeeds exactly once.
func (r *Registry) Initialize(ctx context.Context, root [20]byte) error {
	const op = "items: initialize"
	if root == ([20]byte{}) {
		return coreerrors.New(coreerrors.ErrZeroAddress, op, "root admin is the zero address")
	}
	return r.st.Update(ctx, func(ctx context.Context, tx *state.Tx) error {
		var done bool
		if _, err := tx.Get(r.initKey(), &done); err != nil {
			return err
		}
		if done {
			return coreerrors.New(coreerrors.ErrAlreadyInitialized, op, "")
		}
		if _, err := common.GrantRole(tx, r.module, common.RoleDefaultAdmin, root); err != nil {
			return err
		}
		return tx.Put(r.initKey(), true)
	})
}

// SetAdmin grants account both the minter and burner roles. Root only.
func (r *Registry) SetAdmin(ctx context.Context, caller, account [20]byte) error {
	return r.changeAdmin(ctx, caller, account, true)
}

// RevokeAdmin withdraws the minter and burner roles from account. Root only.
func (r *Registry) RevokeAdmin(ctx context.Context, caller, account [20]byte) error {
	return r.changeAdmin(ctx, caller, account, false)
}

func (r *Registry) changeAdmin(ctx context.Context, caller, account [20]byte, grant bool) error {
	op := "items: revoke admin"
	if grant {
		op = "items: set admin"
	}
	if err := common.Guard(r.pauses, moduleName); err != nil {
		return err
	}
	if account == ([20]byte{}) {
		return coreerrors.New(coreerrors.ErrZeroAddress, op, "admin is the zero address")
	}
	return r.st.Update(ctx, func(ctx context.Context, tx *state.Tx) error {
		if err := common.RequireRole(tx, r.module, common.RoleDefaultAdmin, caller, op, "must have default admin role"); err != nil {
			return err
		}
		for _, role := range []common.Role{common.RoleMinter, common.RoleBurner} {
			var err error
			if grant {
				_, err = common.GrantRole(tx, r.module, role, account)
			} else {
				_, err = common.RevokeRole(tx, r.module, role, account)
			}
			if err != nil {
				return err
			}
		}
		r.emit(tx, events.ItemsAdminChanged{Registry: r.self, Account: account, Granted: grant})
		return nil
	})
}

// Mint credits amount units of item id to account.
func (r *Registry) Mint(ctx context.Context, caller, account [20]byte, id, amount uint64) error {
	return r.MintBatch(ctx, caller, account, []uint64{id}, []uint64{amount})
}

// Burn debits amount units of item id from account.
func (r *Registry) Burn(ctx context.Context, caller, account [20]byte, id, amount uint64) error {
	return r.BurnBatch(ctx, caller, account, []uint64{id}, []uint64{amount})
}

// MintBatch credits every (id, amount) pair atomically.
func (r *Registry) MintBatch(ctx context.Context, caller, account [20]byte, ids, amounts []uint64) error {
	const op = "items: mint"
	if err := r.checkBatch(op, account, ids, amounts); err != nil {
		return err
	}
	return r.st.Update(ctx, func(ctx context.Context, tx *state.Tx) error {
		if err := common.RequireRole(tx, r.module, common.RoleMinter, caller, op, "must have minter role to mint"); err != nil {
			return err
		}
		for i, id := range ids {
			balance, err := r.balance(tx, account, id)
			if err != nil {
				return err
			}
			if balance > math.MaxUint64-amounts[i] {
				return coreerrors.New(coreerrors.ErrInvalidArgument, op, "balance overflow").
					WithAccount(crypto.FormatAccount(account)).WithID(id)
			}
			if err := tx.Put(r.balanceKey(account, id), balance+amounts[i]); err != nil {
				return err
			}
		}
		r.emit(tx, events.ItemsMinted{
			Registry: r.self,
			Operator: caller,
			Account:  account,
			IDs:      append([]uint64(nil), ids...),
			Amounts:  append([]uint64(nil), amounts...),
		})
		return nil
	})
}

// BurnBatch debits every (id, amount) pair atomically. Burning below zero
// fails the whole batch.
func (r *Registry) BurnBatch(ctx context.Context, caller, account [20]byte, ids, amounts []uint64) error {
	const op = "items: burn"
	if err := r.checkBatch(op, account, ids, amounts); err != nil {
		return err
	}
	return r.st.Update(ctx, func(ctx context.Context, tx *state.Tx) error {
		if err := common.RequireRole(tx, r.module, common.RoleBurner, caller, op, "must have burner role to burn"); err != nil {
			return err
		}
		for i, id := range ids {
			balance, err := r.balance(tx, account, id)
			if err != nil {
				return err
			}
			if balance < amounts[i] {
				return coreerrors.New(coreerrors.ErrInsufficientBalance, op, "burn amount exceeds balance").
					WithAccount(crypto.FormatAccount(account)).WithID(id)
			}
			remaining := balance - amounts[i]
			if remaining == 0 {
				err = tx.Delete(r.balanceKey(account, id))
			} else {
				err = tx.Put(r.balanceKey(account, id), remaining)
			}
			if err != nil {
				return err
			}
		}
		r.emit(tx, events.ItemsBurned{
			Registry: r.self,
			Operator: caller,
			Account:  account,
			IDs:      append([]uint64(nil), ids...),
			Amounts:  append([]uint64(nil), amounts...),
		})
		return nil
	})
}

func (r *Registry) checkBatch(op string, account [20]byte, ids, amounts []uint64) error {
	if err := common.Guard(r.pauses, moduleName); err != nil {
		return err
	}
	if account == ([20]byte{}) {
		return coreerrors.New(coreerrors.ErrZeroAddress, op, "account is the zero address")
	}
	if len(ids) == 0 || len(ids) != len(amounts) {
		return coreerrors.New(coreerrors.ErrInvalidArgument, op, "ids and amounts length mismatch")
	}
	return nil
}

func (r *Registry) balance(tx *state.Tx, account [20]byte, id uint64) (uint64, error) {
	var balance uint64
	if _, err := tx.Get(r.balanceKey(account, id), &balance); err != nil {
		return 0, err
	}
	return balance, nil
}

// BalanceOf returns the number of units of item id held by account.
func (r *Registry) BalanceOf(ctx context.Context, account [20]byte, id uint64) (uint64, error) {
	var balance uint64
	err := r.st.View(ctx, func(tx *state.Tx) error {
		var err error
		balance, err = r.balance(tx, account, id)
		return err
	})
	return balance, err
}

// BalanceOfBatch returns the balance of each (account, id) pair.
func (r *Registry) BalanceOfBatch(ctx context.Context, accounts [][20]byte, ids []uint64) ([]uint64, error) {
	if len(accounts) != len(ids) {
		return nil, coreerrors.New(coreerrors.ErrInvalidArgument, "items: balance of batch", "accounts and ids length mismatch")
	}
	out := make([]uint64, len(ids))
	err := r.st.View(ctx, func(tx *state.Tx) error {
		for i := range ids {
			balance, err := r.balance(tx, accounts[i], ids[i])
			if err != nil {
				return err
			}
			out[i] = balance
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// HasRole reports whether account holds role on this registry.
func (r *Registry) HasRole(ctx context.Context, role common.Role, account [20]byte) (bool, error) {
	var ok bool
	err := r.st.View(ctx, func(tx *state.Tx) error {
		var err error
		ok, err = common.HasRole(tx, r.module, role, account)
		return err
	})
	return ok, err
}
