package rocket

import (
	"context"
	"math/big"
	"time"

	"rocket/core/events"
	coreerrors "rocket/core/errors"
	"rocket/crypto"
	"rocket/native/common"
	"rocket/state"
)

const moduleName = "rocket"

const (
	missingRocketAdmin = "must have Rocket Admin role"
	missingRootAdmin   = "must have default admin role"
	maxFeeBps          = 10_000
)

const (
	seqPool         = "rocket/pool"
	seqSchedule     = "rocket/schedule"
	seqDistribution = "rocket/distribution"
)

var (
	keyInitialized = state.Key("rocket/init")
	keyConfig      = state.Key("rocket/config")
)

func poolKey(id uint64) []byte { return state.Key("rocket/pool", state.U64(id)) }

func scheduleKey(id uint64) []byte { return state.Key("rocket/schedule", state.U64(id)) }

func distributionKey(id uint64) []byte { return state.Key("rocket/distribution", state.U64(id)) }

func contributionKey(scheduleID uint64, account [20]byte) []byte {
	return state.Key("rocket/contribution", state.U64(scheduleID), account[:])
}

func contributorsKey(scheduleID uint64) []byte {
	return state.Key("rocket/contributors", state.U64(scheduleID))
}

// Funds moves fungible tokens on behalf of the engine. A false result without
// an error is treated as a failed transfer.
type Funds interface {
	TransferFrom(ctx context.Context, token, spender, from, to [20]byte, amount *big.Int) (bool, error)
	Transfer(ctx context.Context, token, sender, to [20]byte, amount *big.Int) (bool, error)
	BalanceOf(ctx context.Context, token, account [20]byte) (*big.Int, error)
}

// AccessChecker answers the eligibility questions asked before a
// contribution is accepted. Address must match the permissions account
// recorded at initialization.
type AccessChecker interface {
	Address() [20]byte
	UserHasItem(ctx context.Context, account [20]byte, item uint64) (bool, error)
	IsSuspended(ctx context.Context, account [20]byte) (bool, error)
	IsRejected(ctx context.Context, account [20]byte) (bool, error)
}

// Engine runs tier-gated fundraising pools and their reward distribution.
// Every mutation executes in a single state transaction; token movements made
// through Funds join that transaction so a failure anywhere aborts the whole
// operation.
type Engine struct {
	st      *state.Manager
	self    [20]byte
	funds   Funds
	access  AccessChecker
	emitter events.Emitter
	pauses  common.PauseView
	nowFn   func() int64
}

// New returns an engine holding custody at address self.
func New(st *state.Manager, self [20]byte, funds Funds) *Engine {
	return &Engine{
		st:      st,
		self:    self,
		funds:   funds,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// Address returns the custody account of the engine.
func (e *Engine) Address() [20]byte { return e.self }

// SetAccess wires the access controller consulted on contribution.
func (e *Engine) SetAccess(access AccessChecker) { e.access = access }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetPauses wires the operator pause switch.
func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

// SetNowFunc overrides the clock used for schedule windows. Intended for
// tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	e.nowFn = now
}

func (e *Engine) now() uint64 {
	ts := e.nowFn()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

func (e *Engine) emit(tx *state.Tx, evt events.Event) {
	emitter := e.emitter
	tx.OnCommit(func() { emitter.Emit(evt) })
}

// Initialize records the access controller address, the fee settings and the
// two administrators. It succeeds only once.
func (e *Engine) Initialize(ctx context.Context, g Genesis) error {
	const op = "rocket: initialize"
	switch {
	case g.Permissions == ([20]byte{}):
		return coreerrors.New(coreerrors.ErrZeroAddress, op, "_permissionManager is the zero address")
	case g.DefaultAdmin == ([20]byte{}):
		return coreerrors.New(coreerrors.ErrZeroAddress, op, "_defaultAdmin is the zero address")
	case g.RocketAdmin == ([20]byte{}):
		return coreerrors.New(coreerrors.ErrZeroAddress, op, "_rocketAdmin is the zero address")
	case g.FeeReceiver == ([20]byte{}):
		return coreerrors.New(coreerrors.ErrZeroAddress, op, "_feeAddress is the zero address")
	case g.FeeBps > maxFeeBps:
		return coreerrors.New(coreerrors.ErrInvalidArgument, op, "fee exceeds 10000 basis points")
	}
	return e.st.Update(ctx, func(ctx context.Context, tx *state.Tx) error {
		var done bool
		if _, err := tx.Get(keyInitialized, &done); err != nil {
			return err
		}
		if done {
			return coreerrors.New(coreerrors.ErrAlreadyInitialized, op, "already initialized")
		}
		if _, err := common.GrantRole(tx, moduleName, common.RoleDefaultAdmin, g.DefaultAdmin); err != nil {
			return err
		}
		if _, err := common.GrantRole(tx, moduleName, common.RoleRocketAdmin, g.RocketAdmin); err != nil {
			return err
		}
		cfg := Config{Permissions: g.Permissions, FeeReceiver: g.FeeReceiver, FeeBps: g.FeeBps}
		if err := tx.Put(keyConfig, &cfg); err != nil {
			return err
		}
		return tx.Put(keyInitialized, true)
	})
}

// mutate runs fn in a transaction guarded by the pause switch and the
// engine's reentrancy lock.
func (e *Engine) mutate(ctx context.Context, fn func(ctx context.Context, tx *state.Tx) error) error {
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	return e.st.Update(ctx, func(ctx context.Context, tx *state.Tx) error {
		release, err := tx.Enter(moduleName)
		if err != nil {
			return err
		}
		defer release()
		return fn(ctx, tx)
	})
}

func (e *Engine) requireRocketAdmin(tx *state.Tx, op string, caller [20]byte) error {
	return common.RequireRole(tx, moduleName, common.RoleRocketAdmin, caller, op, missingRocketAdmin)
}

func (e *Engine) requireRoot(tx *state.Tx, op string, caller [20]byte) error {
	return common.RequireRole(tx, moduleName, common.RoleDefaultAdmin, caller, op, missingRootAdmin)
}

// SetRocketAdmin grants the rocket admin role. Root only.
func (e *Engine) SetRocketAdmin(ctx context.Context, caller, account [20]byte) error {
	return e.changeRocketAdmin(ctx, "rocket: set rocket admin", caller, account, true)
}

// RevokeRocketAdmin removes the rocket admin role. Root only.
func (e *Engine) RevokeRocketAdmin(ctx context.Context, caller, account [20]byte) error {
	return e.changeRocketAdmin(ctx, "rocket: revoke rocket admin", caller, account, false)
}

func (e *Engine) changeRocketAdmin(ctx context.Context, op string, caller, account [20]byte, grant bool) error {
	return e.mutate(ctx, func(ctx context.Context, tx *state.Tx) error {
		if err := e.requireRoot(tx, op, caller); err != nil {
			return err
		}
		if account == ([20]byte{}) {
			return coreerrors.New(coreerrors.ErrZeroAddress, op, "_rocketAdmin is the zero address")
		}
		if grant {
			_, err := common.GrantRole(tx, moduleName, common.RoleRocketAdmin, account)
			return err
		}
		_, err := common.RevokeRole(tx, moduleName, common.RoleRocketAdmin, account)
		return err
	})
}

// SetFeeReceiver changes the account that collects contribution fees. Root
// only.
func (e *Engine) SetFeeReceiver(ctx context.Context, caller, receiver [20]byte) error {
	const op = "rocket: set fee receiver"
	return e.mutate(ctx, func(ctx context.Context, tx *state.Tx) error {
		if err := e.requireRoot(tx, op, caller); err != nil {
			return err
		}
		if receiver == ([20]byte{}) {
			return coreerrors.New(coreerrors.ErrZeroAddress, op, "_feeAddress is the zero address")
		}
		cfg, err := e.config(tx, op)
		if err != nil {
			return err
		}
		cfg.FeeReceiver = receiver
		return tx.Put(keyConfig, cfg)
	})
}

// SetFeeBps changes the contribution fee rate. Root only.
func (e *Engine) SetFeeBps(ctx context.Context, caller [20]byte, bps uint32) error {
	const op = "rocket: set fee bps"
	return e.mutate(ctx, func(ctx context.Context, tx *state.Tx) error {
		if err := e.requireRoot(tx, op, caller); err != nil {
			return err
		}
		if bps > maxFeeBps {
			return coreerrors.New(coreerrors.ErrInvalidArgument, op, "fee exceeds 10000 basis points")
		}
		cfg, err := e.config(tx, op)
		if err != nil {
			return err
		}
		cfg.FeeBps = bps
		return tx.Put(keyConfig, cfg)
	})
}

func (e *Engine) config(tx *state.Tx, op string) (*Config, error) {
	var cfg Config
	ok, err := tx.Get(keyConfig, &cfg)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, coreerrors.New(coreerrors.ErrNotFound, op, "engine not initialized")
	}
	return &cfg, nil
}

func (e *Engine) pool(tx *state.Tx, op string, id uint64) (*Pool, error) {
	var p Pool
	ok, err := tx.Get(poolKey(id), &p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, coreerrors.New(coreerrors.ErrNotFound, op, "pool not found").WithID(id)
	}
	return &p, nil
}

func (e *Engine) schedule(tx *state.Tx, op string, poolID, id uint64) (*ContributionSchedule, error) {
	var s ContributionSchedule
	ok, err := tx.Get(scheduleKey(id), &s)
	if err != nil {
		return nil, err
	}
	if !ok || s.PoolID != poolID {
		return nil, coreerrors.New(coreerrors.ErrNotFound, op, "contribution schedule not found").WithID(id)
	}
	return &s, nil
}

func (e *Engine) distribution(tx *state.Tx, op string, poolID, id uint64) (*DistributionSchedule, error) {
	var d DistributionSchedule
	ok, err := tx.Get(distributionKey(id), &d)
	if err != nil {
		return nil, err
	}
	if !ok || d.PoolID != poolID {
		return nil, coreerrors.New(coreerrors.ErrNotFound, op, "distribution schedule not found").WithID(id)
	}
	return &d, nil
}

func (e *Engine) contribution(tx *state.Tx, scheduleID uint64, account [20]byte) (*Contribution, bool, error) {
	var c Contribution
	ok, err := tx.Get(contributionKey(scheduleID, account), &c)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return &Contribution{
			ScheduleID:        scheduleID,
			Contributor:       account,
			AmountContributed: big.NewInt(0),
			AmountToReceive:   big.NewInt(0),
		}, false, nil
	}
	return &c, true, nil
}

// pull draws amount from owner into custody.
func (e *Engine) pull(ctx context.Context, op string, token, owner [20]byte, amount *big.Int) error {
	ok, err := e.funds.TransferFrom(ctx, token, e.self, owner, e.self, amount)
	return transferResult(op, token, ok, err)
}

// push pays amount out of custody to recipient.
func (e *Engine) push(ctx context.Context, op string, token, recipient [20]byte, amount *big.Int) error {
	ok, err := e.funds.Transfer(ctx, token, e.self, recipient, amount)
	return transferResult(op, token, ok, err)
}

func transferResult(op string, token [20]byte, ok bool, err error) error {
	if err != nil {
		if coreerrors.KindOf(err) != nil {
			return err
		}
		return coreerrors.Wrap(coreerrors.ErrTransferFailed, op, err).WithAccount(crypto.FormatAccount(token))
	}
	if !ok {
		return coreerrors.New(coreerrors.ErrTransferFailed, op, "token transfer returned false").
			WithAccount(crypto.FormatAccount(token))
	}
	return nil
}
