package permissions

import (
	"context"

	"rocket/core/events"
	coreerrors "rocket/core/errors"
	"rocket/crypto"
	"rocket/native/common"
	"rocket/native/items"
	"rocket/state"
)

const moduleName = "permissions"

const missingAdminRole = "must have permissions admin role"

var (
	keyInitialized = state.Key("permissions/init")
	keyItems       = state.Key("permissions/items")
	keyTierIndex   = state.Key("permissions/tiers")
)

func tierKey(id uint64) []byte { return state.Key("permissions/tier", state.U64(id)) }

func statusKey(account [20]byte) []byte { return state.Key("permissions/status", account[:]) }

// Controller layers a tier catalog and account moderation on top of a
// capability registry. It mints and burns items through the registry under its
// own address, so that address must hold the registry's admin role.
type Controller struct {
	st        *state.Manager
	self      [20]byte
	directory Directory
	emitter   events.Emitter
	pauses    common.PauseView
}

// New returns a controller at address self resolving registries through dir.
func New(st *state.Manager, self [20]byte, dir Directory) *Controller {
	return &Controller{
		st:        st,
		self:      self,
		directory: dir,
		emitter:   events.NoopEmitter{},
	}
}

// Address returns the controller's own account.
func (c *Controller) Address() [20]byte { return c.self }

// SetEmitter configures the event emitter used by the controller. Passing nil
// resets the emitter to a no-op implementation.
func (c *Controller) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		c.emitter = events.NoopEmitter{}
		return
	}
	c.emitter = emitter
}

// SetPauses wires the operator pause switch.
func (c *Controller) SetPauses(p common.PauseView) { c.pauses = p }

func (c *Controller) emit(tx *state.Tx, evt events.Event) {
	emitter := c.emitter
	tx.OnCommit(func() { emitter.Emit(evt) })
}

// Initialize points the controller at its capability registry and fixes the
// root administrator. Both addresses are validated before anything is stored.
func (c *Controller) Initialize(ctx context.Context, itemsAddr, admin [20]byte) error {
	const op = "permissions: initialize"
	if itemsAddr == ([20]byte{}) {
		return coreerrors.New(coreerrors.ErrZeroAddress, op, "_permissionItems is the zero address")
	}
	if admin == ([20]byte{}) {
		return coreerrors.New(coreerrors.ErrZeroAddress, op, "_admin is the zero address")
	}
	if _, err := c.resolve(op, itemsAddr); err != nil {
		return err
	}
	return c.st.Update(ctx, func(ctx context.Context, tx *state.Tx) error {
		var done bool
		if _, err := tx.Get(keyInitialized, &done); err != nil {
			return err
		}
		if done {
			return coreerrors.New(coreerrors.ErrAlreadyInitialized, op, "")
		}
		if _, err := common.GrantRole(tx, moduleName, common.RoleDefaultAdmin, admin); err != nil {
			return err
		}
		if err := tx.Put(keyItems, itemsAddr); err != nil {
			return err
		}
		return tx.Put(keyInitialized, true)
	})
}

func (c *Controller) resolve(op string, addr [20]byte) (*items.Registry, error) {
	if c.directory == nil {
		return nil, coreerrors.New(coreerrors.ErrNotFound, op, "no registry directory configured")
	}
	reg, ok := c.directory.Registry(addr)
	if !ok {
		return nil, coreerrors.New(coreerrors.ErrNotFound, op, "unknown permission items registry").
			WithAccount(crypto.FormatAccount(addr))
	}
	return reg, nil
}

func (c *Controller) registry(tx *state.Tx, op string) (*items.Registry, error) {
	var addr [20]byte
	ok, err := tx.Get(keyItems, &addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, coreerrors.New(coreerrors.ErrNotFound, op, "permission items not configured")
	}
	return c.resolve(op, addr)
}

// mutate runs fn in a transaction after the pause guard and the permissions
// admin check.
func (c *Controller) mutate(ctx context.Context, op string, from [20]byte, fn func(ctx context.Context, tx *state.Tx) error) error {
	if err := common.Guard(c.pauses, moduleName); err != nil {
		return err
	}
	return c.st.Update(ctx, func(ctx context.Context, tx *state.Tx) error {
		if err := common.RequireRole(tx, moduleName, common.RolePermissionsAdmin, from, op, missingAdminRole); err != nil {
			return err
		}
		return fn(ctx, tx)
	})
}

// CreateTier adds a tier to the catalog.
func (c *Controller) CreateTier(ctx context.Context, from [20]byte, id uint64, label string) error {
	const op = "permissions: create tier"
	return c.mutate(ctx, op, from, func(ctx context.Context, tx *state.Tx) error {
		exists, err := tx.Get(tierKey(id), nil)
		if err != nil {
			return err
		}
		if exists {
			return coreerrors.New(coreerrors.ErrDuplicateTier, op, "").WithID(id)
		}
		if err := tx.Put(tierKey(id), &Tier{ID: id, Label: label}); err != nil {
			return err
		}
		var index []uint64
		if _, err := tx.Get(keyTierIndex, &index); err != nil {
			return err
		}
		if err := tx.Put(keyTierIndex, append(index, id)); err != nil {
			return err
		}
		c.emit(tx, events.TierCreated{ID: id, Label: label})
		return nil
	})
}

// AssignTier mints the tier item to every account. An account already holding
// the tier aborts the whole batch.
func (c *Controller) AssignTier(ctx context.Context, from [20]byte, accounts [][20]byte, tier uint64) error {
	const op = "permissions: assign tier"
	return c.mutate(ctx, op, from, func(ctx context.Context, tx *state.Tx) error {
		if err := c.requireTier(tx, op, tier); err != nil {
			return err
		}
		if err := c.grantItem(ctx, tx, op, accounts, tier, "PermissionManager: Address already has Tier assigned"); err != nil {
			return err
		}
		c.emit(tx, events.TierMembershipChanged{Type: events.TypeTierAssigned, Tier: tier, Accounts: copyAccounts(accounts)})
		return nil
	})
}

// RevokeTier burns the tier item from every account. An account not holding
// the tier aborts the whole batch.
func (c *Controller) RevokeTier(ctx context.Context, from [20]byte, accounts [][20]byte, tier uint64) error {
	const op = "permissions: revoke tier"
	return c.mutate(ctx, op, from, func(ctx context.Context, tx *state.Tx) error {
		if err := c.requireTier(tx, op, tier); err != nil {
			return err
		}
		if err := c.dropItem(ctx, tx, op, accounts, tier, "PermissionManager: Address doesn't have Tier assigned"); err != nil {
			return err
		}
		c.emit(tx, events.TierMembershipChanged{Type: events.TypeTierRevoked, Tier: tier, Accounts: copyAccounts(accounts)})
		return nil
	})
}

// AssignItem mints an arbitrary capability item to every account.
func (c *Controller) AssignItem(ctx context.Context, from [20]byte, item uint64, accounts [][20]byte) error {
	const op = "permissions: assign item"
	return c.mutate(ctx, op, from, func(ctx context.Context, tx *state.Tx) error {
		if err := c.grantItem(ctx, tx, op, accounts, item, "PermissionManager: Account is assigned with item"); err != nil {
			return err
		}
		c.emit(tx, events.TierMembershipChanged{Type: events.TypeItemAssigned, Tier: item, Accounts: copyAccounts(accounts)})
		return nil
	})
}

// RemoveItem burns an arbitrary capability item from every account.
func (c *Controller) RemoveItem(ctx context.Context, from [20]byte, item uint64, accounts [][20]byte) error {
	const op = "permissions: remove item"
	return c.mutate(ctx, op, from, func(ctx context.Context, tx *state.Tx) error {
		if err := c.dropItem(ctx, tx, op, accounts, item, "PermissionManager: Account is not assigned with item"); err != nil {
			return err
		}
		c.emit(tx, events.TierMembershipChanged{Type: events.TypeItemRemoved, Tier: item, Accounts: copyAccounts(accounts)})
		return nil
	})
}

func (c *Controller) requireTier(tx *state.Tx, op string, tier uint64) error {
	exists, err := tx.Get(tierKey(tier), nil)
	if err != nil {
		return err
	}
	if !exists {
		return coreerrors.New(coreerrors.ErrNotFound, op, "tier does not exist").WithID(tier)
	}
	return nil
}

func (c *Controller) grantItem(ctx context.Context, tx *state.Tx, op string, accounts [][20]byte, item uint64, held string) error {
	if err := checkAccounts(op, accounts); err != nil {
		return err
	}
	reg, err := c.registry(tx, op)
	if err != nil {
		return err
	}
	for _, account := range accounts {
		balance, err := reg.BalanceOf(ctx, account, item)
		if err != nil {
			return err
		}
		if balance > 0 {
			return coreerrors.New(coreerrors.ErrAlreadyAssigned, op, held).
				WithAccount(crypto.FormatAccount(account)).WithID(item)
		}
		if err := reg.Mint(ctx, c.self, account, item, 1); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) dropItem(ctx context.Context, tx *state.Tx, op string, accounts [][20]byte, item uint64, missing string) error {
	if err := checkAccounts(op, accounts); err != nil {
		return err
	}
	reg, err := c.registry(tx, op)
	if err != nil {
		return err
	}
	for _, account := range accounts {
		balance, err := reg.BalanceOf(ctx, account, item)
		if err != nil {
			return err
		}
		if balance == 0 {
			return coreerrors.New(coreerrors.ErrNotAssigned, op, missing).
				WithAccount(crypto.FormatAccount(account)).WithID(item)
		}
		if err := reg.Burn(ctx, c.self, account, item, balance); err != nil {
			return err
		}
	}
	return nil
}

func checkAccounts(op string, accounts [][20]byte) error {
	if len(accounts) == 0 {
		return coreerrors.New(coreerrors.ErrInvalidArgument, op, "no accounts supplied")
	}
	for _, account := range accounts {
		if account == ([20]byte{}) {
			return coreerrors.New(coreerrors.ErrZeroAddress, op, "account is the zero address")
		}
	}
	return nil
}

func copyAccounts(accounts [][20]byte) [][20]byte {
	return append([][20]byte(nil), accounts...)
}
