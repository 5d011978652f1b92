package rocket

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"rocket/core/events"
	coreerrors "rocket/core/errors"
	"rocket/native/common"
	"rocket/native/items"
	"rocket/native/permissions"
	"rocket/native/token"
	"rocket/state"
	"rocket/storage"
)

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

var (
	deployer    = newTestAddress(0x01)
	rocketAdmin = newTestAddress(0x02)
	contributor = newTestAddress(0x03)
	outsider    = newTestAddress(0x04)
	receiver    = newTestAddress(0x05)
	feeAddress  = newTestAddress(0x06)
	usdc        = newTestAddress(0xA1)
	prt         = newTestAddress(0xA2)
)

const (
	startTime = int64(1_700_000_000)
	week      = uint64(7 * 24 * 60 * 60)
)

// hookFunds wraps the ledger so tests can intercept payouts.
type hookFunds struct {
	*token.Ledger
	beforeTransfer func(ctx context.Context, token [20]byte) (bool, error)
}

func (h *hookFunds) Transfer(ctx context.Context, tok, sender, to [20]byte, amount *big.Int) (bool, error) {
	if h.beforeTransfer != nil {
		if ok, err := h.beforeTransfer(ctx, tok); !ok || err != nil {
			return ok, err
		}
	}
	return h.Ledger.Transfer(ctx, tok, sender, to, amount)
}

type fixture struct {
	ctx        context.Context
	st         *state.Manager
	registry   *items.Registry
	controller *permissions.Controller
	ledger     *token.Ledger
	funds      *hookFunds
	engine     *Engine
	recorder   *events.Recorder
	now        int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{ctx: context.Background(), now: startTime, recorder: &events.Recorder{}}
	f.st = state.NewManager(storage.NewMemDB())
	f.registry = items.New(f.st, newTestAddress(0xE1))
	f.controller = permissions.New(f.st, newTestAddress(0xC1), permissions.NewRegistries(f.registry))
	f.ledger = token.New(f.st)
	f.funds = &hookFunds{Ledger: f.ledger}
	f.engine = New(f.st, newTestAddress(0xF1), f.funds)
	f.engine.SetAccess(f.controller)
	f.engine.SetEmitter(f.recorder)
	f.engine.SetNowFunc(func() int64 { return f.now })

	must := func(step string, err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("%s: %v", step, err)
		}
	}
	ctx := f.ctx
	must("registry initialize", f.registry.Initialize(ctx, deployer))
	must("registry set admin", f.registry.SetAdmin(ctx, deployer, f.controller.Address()))
	must("controller initialize", f.controller.Initialize(ctx, f.registry.Address(), deployer))
	must("set permissions admin", f.controller.SetPermissionsAdmin(ctx, deployer, deployer))
	must("create tier", f.controller.CreateTier(ctx, deployer, 1, "Diamond Tier"))
	must("assign tier", f.controller.AssignTier(ctx, deployer, [][20]byte{contributor, rocketAdmin}, 1))

	must("register usdc", f.ledger.Register(ctx, usdc, "USDC", 6, deployer))
	must("register prt", f.ledger.Register(ctx, prt, "PRT", 18, deployer))
	must("mint usdc", f.ledger.Mint(ctx, deployer, usdc, contributor, big.NewInt(10_000_000)))
	must("mint prt", f.ledger.Mint(ctx, deployer, prt, rocketAdmin, big.NewInt(1_000_000)))
	must("mint admin usdc", f.ledger.Mint(ctx, deployer, usdc, rocketAdmin, big.NewInt(10_000_000)))
	must("approve admin usdc", f.ledger.Approve(ctx, usdc, rocketAdmin, f.engine.Address(), big.NewInt(10_000_000)))
	must("approve usdc", f.ledger.Approve(ctx, usdc, contributor, f.engine.Address(), big.NewInt(10_000_000)))
	must("approve prt", f.ledger.Approve(ctx, prt, rocketAdmin, f.engine.Address(), big.NewInt(1_000_000)))

	must("engine initialize", f.engine.Initialize(ctx, Genesis{
		Permissions:  f.controller.Address(),
		DefaultAdmin: deployer,
		RocketAdmin:  rocketAdmin,
		FeeReceiver:  feeAddress,
		FeeBps:       2000,
	}))
	return f
}

func defaultPoolParams() PoolParams {
	return PoolParams{
		TargetAmount:      big.NewInt(1_000_000),
		Tokens:            [][20]byte{usdc},
		Receiver:          receiver,
		Price:             big.NewInt(2),
		RewardToken:       prt,
		RewardTokenAmount: big.NewInt(500_000),
	}
}

// openPool creates a pool with one tier-1 contribution schedule and one
// distribution schedule, both starting now and lasting a week.
func (f *fixture) openPool(t *testing.T, params PoolParams) (poolID, scheduleID, distributionID uint64) {
	t.Helper()
	now := uint64(f.now)
	poolID, err := f.engine.CreatePool(f.ctx, rocketAdmin, params)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	scheduleID, err = f.engine.CreateContributionSchedule(f.ctx, rocketAdmin, poolID, ScheduleParams{
		Tier:      1,
		MinAmount: big.NewInt(1000),
		MaxAmount: big.NewInt(10_000_000_000),
		Price:     big.NewInt(2),
		Start:     now,
		End:       now + week,
	})
	if err != nil {
		t.Fatalf("create contribution schedule: %v", err)
	}
	distributionID, err = f.engine.CreateDistributionSchedule(f.ctx, rocketAdmin, poolID, now, now+week, 30)
	if err != nil {
		t.Fatalf("create distribution schedule: %v", err)
	}
	return poolID, scheduleID, distributionID
}

func (f *fixture) balance(t *testing.T, tok, account [20]byte) int64 {
	t.Helper()
	bal, err := f.ledger.BalanceOf(f.ctx, tok, account)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return bal.Int64()
}

func (f *fixture) pool(t *testing.T, id uint64) *Pool {
	t.Helper()
	p, err := f.engine.Pool(f.ctx, id)
	if err != nil {
		t.Fatalf("pool %d: %v", id, err)
	}
	return p
}

func TestInitializeValidatesGenesis(t *testing.T) {
	st := state.NewManager(nil)
	engine := New(st, newTestAddress(0xF1), nil)
	ctx := context.Background()
	valid := Genesis{
		Permissions:  newTestAddress(0xC1),
		DefaultAdmin: deployer,
		RocketAdmin:  rocketAdmin,
		FeeReceiver:  feeAddress,
		FeeBps:       2000,
	}
	cases := []struct {
		name   string
		mutate func(g *Genesis)
		kind   error
	}{
		{"permissions", func(g *Genesis) { g.Permissions = [20]byte{} }, coreerrors.ErrZeroAddress},
		{"default admin", func(g *Genesis) { g.DefaultAdmin = [20]byte{} }, coreerrors.ErrZeroAddress},
		{"rocket admin", func(g *Genesis) { g.RocketAdmin = [20]byte{} }, coreerrors.ErrZeroAddress},
		{"fee receiver", func(g *Genesis) { g.FeeReceiver = [20]byte{} }, coreerrors.ErrZeroAddress},
		{"fee too large", func(g *Genesis) { g.FeeBps = 10_001 }, coreerrors.ErrInvalidArgument},
	}
	for _, tc := range cases {
		g := valid
		tc.mutate(&g)
		if err := engine.Initialize(ctx, g); !errors.Is(err, tc.kind) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.kind, err)
		}
	}
	if _, err := engine.Config(ctx); !errors.Is(err, coreerrors.ErrNotFound) {
		t.Fatalf("failed initialization must not persist config: %v", err)
	}
	if err := engine.Initialize(ctx, valid); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	err := engine.Initialize(ctx, valid)
	if !errors.Is(err, coreerrors.ErrAlreadyInitialized) || !strings.Contains(err.Error(), "already initialized") {
		t.Fatalf("expected already initialized, got %v", err)
	}
	ok, err := engine.HasRole(ctx, common.RoleRocketAdmin, rocketAdmin)
	if err != nil || !ok {
		t.Fatalf("rocket admin not granted: %v %v", ok, err)
	}
}

func TestCreatePoolRequiresRocketAdmin(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.CreatePool(f.ctx, outsider, defaultPoolParams())
	if !errors.Is(err, coreerrors.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if !strings.Contains(err.Error(), "Rocket_Admin_ROLE required") {
		t.Fatalf("unexpected message: %v", err)
	}
	pools, err := f.engine.Pools(f.ctx)
	if err != nil || len(pools) != 0 {
		t.Fatalf("expected no pools, got %d (%v)", len(pools), err)
	}
	if len(f.recorder.Events) != 0 {
		t.Fatalf("unexpected events: %v", f.recorder.Types())
	}
}

func TestCreatePoolValidation(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name   string
		mutate func(p *PoolParams)
		kind   error
	}{
		{"zero target", func(p *PoolParams) { p.TargetAmount = big.NewInt(0) }, coreerrors.ErrInvalidArgument},
		{"missing target", func(p *PoolParams) { p.TargetAmount = nil }, coreerrors.ErrInvalidArgument},
		{"zero receiver", func(p *PoolParams) { p.Receiver = [20]byte{} }, coreerrors.ErrZeroAddress},
		{"no tokens", func(p *PoolParams) { p.Tokens = nil }, coreerrors.ErrInvalidArgument},
		{"zero token", func(p *PoolParams) { p.Tokens = [][20]byte{{}} }, coreerrors.ErrZeroAddress},
		{"duplicate token", func(p *PoolParams) { p.Tokens = [][20]byte{usdc, usdc} }, coreerrors.ErrInvalidArgument},
		{"reward without amount", func(p *PoolParams) { p.RewardTokenAmount = big.NewInt(0) }, coreerrors.ErrInvalidArgument},
		{"expiry in the past", func(p *PoolParams) { p.Expiry = uint64(startTime) - 1 }, coreerrors.ErrInvalidArgument},
	}
	for _, tc := range cases {
		params := defaultPoolParams()
		tc.mutate(&params)
		if _, err := f.engine.CreatePool(f.ctx, rocketAdmin, params); !errors.Is(err, tc.kind) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.kind, err)
		}
	}
	id, err := f.engine.CreatePool(f.ctx, rocketAdmin, defaultPoolParams())
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	if id != 1 {
		t.Fatalf("expected first pool id 1, got %d", id)
	}
	p := f.pool(t, id)
	if p.State != PoolOpen || p.Reward != RewardUnfunded || p.TotalContributed.Sign() != 0 {
		t.Fatalf("unexpected initial pool state: %+v", p)
	}
}

func TestScheduleValidation(t *testing.T) {
	f := newFixture(t)
	poolID, err := f.engine.CreatePool(f.ctx, rocketAdmin, defaultPoolParams())
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	now := uint64(f.now)
	bad := []ScheduleParams{
		{Tier: 1, MinAmount: big.NewInt(10), MaxAmount: big.NewInt(5), Price: big.NewInt(1), Start: now, End: now + 1},
		{Tier: 1, MinAmount: big.NewInt(0), MaxAmount: big.NewInt(0), Price: big.NewInt(1), Start: now, End: now + 1},
		{Tier: 1, MinAmount: big.NewInt(1), MaxAmount: big.NewInt(5), Price: big.NewInt(1), Start: now + 2, End: now + 1},
		{Tier: 1, MinAmount: big.NewInt(-1), MaxAmount: big.NewInt(5), Price: big.NewInt(1), Start: now, End: now + 1},
	}
	for i, params := range bad {
		if _, err := f.engine.CreateContributionSchedule(f.ctx, rocketAdmin, poolID, params); !errors.Is(err, coreerrors.ErrInvalidArgument) {
			t.Fatalf("case %d: expected invalid argument, got %v", i, err)
		}
	}
	if _, err := f.engine.CreateContributionSchedule(f.ctx, rocketAdmin, 99, ScheduleParams{
		MinAmount: big.NewInt(1), MaxAmount: big.NewInt(2), Price: big.NewInt(1),
	}); !errors.Is(err, coreerrors.ErrNotFound) {
		t.Fatalf("expected not found for unknown pool, got %v", err)
	}
	if _, err := f.engine.CreateDistributionSchedule(f.ctx, rocketAdmin, poolID, now, now+10, 0); !errors.Is(err, coreerrors.ErrInvalidArgument) {
		t.Fatalf("expected invalid period, got %v", err)
	}
	if _, err := f.engine.CreateDistributionSchedule(f.ctx, rocketAdmin, poolID, now+10, now, 30); !errors.Is(err, coreerrors.ErrInvalidArgument) {
		t.Fatalf("expected invalid window, got %v", err)
	}
	contrib, dists, err := f.engine.SchedulesOf(f.ctx, poolID)
	if err != nil || len(contrib) != 0 || len(dists) != 0 {
		t.Fatalf("rejected schedules must not be stored: %d %d %v", len(contrib), len(dists), err)
	}
}

func TestAdminOperationsRejectOutsiders(t *testing.T) {
	f := newFixture(t)
	poolID, _, _ := f.openPool(t, defaultPoolParams())
	before := f.pool(t, poolID)
	recorded := len(f.recorder.Events)

	calls := map[string]func() error{
		"contribution schedule": func() error {
			_, err := f.engine.CreateContributionSchedule(f.ctx, outsider, poolID, ScheduleParams{
				Tier: 1, MinAmount: big.NewInt(1), MaxAmount: big.NewInt(2), Price: big.NewInt(1),
			})
			return err
		},
		"distribution schedule": func() error {
			_, err := f.engine.CreateDistributionSchedule(f.ctx, outsider, poolID, 0, 0, 30)
			return err
		},
		"withdraw": func() error { return f.engine.WithdrawFundToReceiver(f.ctx, outsider, poolID) },
		"deposit":  func() error { return f.engine.DepositPoolRewardTokens(f.ctx, outsider, poolID) },
	}
	for name, call := range calls {
		err := call()
		if !errors.Is(err, coreerrors.ErrUnauthorized) {
			t.Fatalf("%s: expected unauthorized, got %v", name, err)
		}
		if !strings.Contains(err.Error(), "must have Rocket Admin role") {
			t.Fatalf("%s: unexpected message %v", name, err)
		}
	}
	for name, call := range map[string]func() error{
		"set rocket admin": func() error { return f.engine.SetRocketAdmin(f.ctx, rocketAdmin, outsider) },
		"fee receiver":     func() error { return f.engine.SetFeeReceiver(f.ctx, rocketAdmin, outsider) },
		"fee bps":          func() error { return f.engine.SetFeeBps(f.ctx, rocketAdmin, 0) },
	} {
		if err := call(); !errors.Is(err, coreerrors.ErrUnauthorized) {
			t.Fatalf("%s: expected unauthorized, got %v", name, err)
		}
	}

	after := f.pool(t, poolID)
	if len(after.Schedules) != len(before.Schedules) || len(after.Distributions) != len(before.Distributions) ||
		after.State != before.State || after.Reward != before.Reward {
		t.Fatalf("rejected calls changed the pool: %+v vs %+v", before, after)
	}
	if len(f.recorder.Events) != recorded {
		t.Fatalf("rejected calls emitted events: %v", f.recorder.Types()[recorded:])
	}
}

func TestPoolLifecycle(t *testing.T) {
	f := newFixture(t)
	poolID, scheduleID, distributionID := f.openPool(t, defaultPoolParams())

	if _, err := f.engine.ClaimPoolRewardToken(f.ctx, contributor, poolID, scheduleID, distributionID); !errors.Is(err, coreerrors.ErrPoolStillActive) ||
		!strings.Contains(err.Error(), "Pool is active") {
		t.Fatalf("expected pool is active, got %v", err)
	}

	if err := f.engine.Contribute(f.ctx, contributor, poolID, scheduleID, big.NewInt(1000), usdc); err != nil {
		t.Fatalf("contribute: %v", err)
	}
	record, found, err := f.engine.Contribution(f.ctx, scheduleID, contributor)
	if err != nil || !found {
		t.Fatalf("contribution not stored: %v", err)
	}
	if record.AmountContributed.Int64() != 1000 || record.AmountToReceive.Int64() != 500 {
		t.Fatalf("unexpected contribution record: %+v", record)
	}
	if got := f.balance(t, usdc, feeAddress); got != 200 {
		t.Fatalf("fee receiver balance = %d, want 200", got)
	}
	if got := f.balance(t, usdc, f.engine.Address()); got != 800 {
		t.Fatalf("custody balance = %d, want 800", got)
	}

	err = f.engine.WithdrawFundToReceiver(f.ctx, rocketAdmin, poolID)
	if !errors.Is(err, coreerrors.ErrPoolStillActive) || !strings.Contains(err.Error(), "Pool is still active") {
		t.Fatalf("expected pool is still active, got %v", err)
	}

	if err := f.engine.Contribute(f.ctx, contributor, poolID, scheduleID, big.NewInt(999_000), usdc); err != nil {
		t.Fatalf("contribute remainder: %v", err)
	}
	types := f.recorder.Types()
	if types[len(types)-1] != events.TypePoolTargetCompleted {
		t.Fatalf("expected target completion last, got %v", types)
	}
	p := f.pool(t, poolID)
	if p.State != PoolTargetReached || p.TotalContributed.Int64() != 1_000_000 {
		t.Fatalf("unexpected pool after target: %+v", p)
	}

	if _, err := f.engine.ClaimPoolRewardToken(f.ctx, contributor, poolID, scheduleID, distributionID); !errors.Is(err, coreerrors.ErrNoRewardTokens) ||
		!strings.Contains(err.Error(), "Pool has no reward tokens") {
		t.Fatalf("expected no reward tokens, got %v", err)
	}

	if err := f.engine.WithdrawFundToReceiver(f.ctx, rocketAdmin, poolID); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if got := f.balance(t, usdc, receiver); got != 800_000 {
		t.Fatalf("receiver balance = %d, want 800000", got)
	}
	if err := f.engine.WithdrawFundToReceiver(f.ctx, rocketAdmin, poolID); !errors.Is(err, coreerrors.ErrPoolStillActive) {
		t.Fatalf("second withdraw must fail, got %v", err)
	}

	if err := f.engine.DepositPoolRewardTokens(f.ctx, rocketAdmin, poolID); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := f.engine.DepositPoolRewardTokens(f.ctx, rocketAdmin, poolID); !errors.Is(err, coreerrors.ErrRewardAlreadyFunded) {
		t.Fatalf("expected already funded, got %v", err)
	}

	paid, err := f.engine.ClaimPoolRewardToken(f.ctx, contributor, poolID, scheduleID, distributionID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if paid.Int64() != 500_000 || f.balance(t, prt, contributor) != 500_000 {
		t.Fatalf("claim paid %s, balance %d", paid, f.balance(t, prt, contributor))
	}
	_, err = f.engine.ClaimPoolRewardToken(f.ctx, contributor, poolID, scheduleID, distributionID)
	if !errors.Is(err, coreerrors.ErrDoubleClaim) || !strings.Contains(err.Error(), "double claim found") {
		t.Fatalf("expected double claim, got %v", err)
	}
	if f.balance(t, prt, contributor) != 500_000 {
		t.Fatalf("double claim moved funds")
	}
	p = f.pool(t, poolID)
	if p.State != PoolWithdrawn || p.Reward != RewardFunded || p.RewardBalance.Sign() != 0 {
		t.Fatalf("unexpected final pool: %+v", p)
	}
}

func TestContributeRejections(t *testing.T) {
	f := newFixture(t)
	poolID, scheduleID, _ := f.openPool(t, defaultPoolParams())
	otherPool, otherSchedule, _ := f.openPool(t, defaultPoolParams())
	if err := f.controller.SuspendUser(f.ctx, deployer, [][20]byte{rocketAdmin}); err != nil {
		t.Fatalf("suspend: %v", err)
	}

	cases := []struct {
		name     string
		caller   [20]byte
		pool     uint64
		schedule uint64
		amount   int64
		token    [20]byte
		kind     error
	}{
		{"unknown pool", contributor, 42, scheduleID, 1000, usdc, coreerrors.ErrNotFound},
		{"foreign schedule", contributor, poolID, otherSchedule, 1000, usdc, coreerrors.ErrNotFound},
		{"no tier", outsider, poolID, scheduleID, 1000, usdc, coreerrors.ErrUnauthorized},
		{"suspended", rocketAdmin, poolID, scheduleID, 1000, usdc, coreerrors.ErrUnauthorized},
		{"below minimum", contributor, poolID, scheduleID, 999, usdc, coreerrors.ErrAmountOutOfBounds},
		{"above target", contributor, poolID, scheduleID, 1_000_001, usdc, coreerrors.ErrAmountOutOfBounds},
		{"zero amount", contributor, poolID, scheduleID, 0, usdc, coreerrors.ErrAmountOutOfBounds},
		{"unaccepted token", contributor, poolID, scheduleID, 1000, prt, coreerrors.ErrInvalidArgument},
	}
	for _, tc := range cases {
		err := f.engine.Contribute(f.ctx, tc.caller, tc.pool, tc.schedule, big.NewInt(tc.amount), tc.token)
		if !errors.Is(err, tc.kind) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.kind, err)
		}
	}

	f.now = startTime - 1
	if err := f.engine.Contribute(f.ctx, contributor, otherPool, otherSchedule, big.NewInt(1000), usdc); !errors.Is(err, coreerrors.ErrScheduleWindowClosed) {
		t.Fatalf("expected window closed before start, got %v", err)
	}
	f.now = startTime + int64(week) + 1
	if err := f.engine.Contribute(f.ctx, contributor, otherPool, otherSchedule, big.NewInt(1000), usdc); !errors.Is(err, coreerrors.ErrScheduleWindowClosed) {
		t.Fatalf("expected window closed after end, got %v", err)
	}
	if p := f.pool(t, poolID); p.TotalContributed.Sign() != 0 {
		t.Fatalf("rejected contributions changed the pool: %s", p.TotalContributed)
	}
	if got := f.balance(t, usdc, contributor); got != 10_000_000 {
		t.Fatalf("rejected contributions moved funds: %d", got)
	}
}

func TestContributeUsesConfiguredPermissions(t *testing.T) {
	f := newFixture(t)
	poolID, scheduleID, _ := f.openPool(t, defaultPoolParams())

	stray := permissions.New(f.st, newTestAddress(0xC2), permissions.NewRegistries(f.registry))
	f.engine.SetAccess(stray)
	err := f.engine.Contribute(f.ctx, contributor, poolID, scheduleID, big.NewInt(1000), usdc)
	if !errors.Is(err, coreerrors.ErrUnauthorized) {
		t.Fatalf("expected unauthorized with a foreign controller, got %v", err)
	}
	if p := f.pool(t, poolID); p.TotalContributed.Sign() != 0 {
		t.Fatalf("foreign controller let a contribution through: %s", p.TotalContributed)
	}

	f.engine.SetAccess(f.controller)
	if err := f.engine.Contribute(f.ctx, contributor, poolID, scheduleID, big.NewInt(1000), usdc); err != nil {
		t.Fatalf("contribute with configured controller: %v", err)
	}
}

func TestContributeAfterTargetOrExpiry(t *testing.T) {
	f := newFixture(t)
	params := defaultPoolParams()
	params.TargetAmount = big.NewInt(5000)
	poolID, scheduleID, _ := f.openPool(t, params)
	if err := f.engine.Contribute(f.ctx, contributor, poolID, scheduleID, big.NewInt(4500), usdc); err != nil {
		t.Fatalf("contribute: %v", err)
	}
	if err := f.engine.Contribute(f.ctx, contributor, poolID, scheduleID, big.NewInt(500), usdc); err != nil {
		t.Fatalf("final contribution below minimum must fill the target: %v", err)
	}
	if err := f.engine.Contribute(f.ctx, contributor, poolID, scheduleID, big.NewInt(1000), usdc); !errors.Is(err, coreerrors.ErrPoolNotActive) {
		t.Fatalf("expected pool not active, got %v", err)
	}

	params = defaultPoolParams()
	params.Expiry = uint64(startTime) + 60
	expiring, expSchedule, _ := f.openPool(t, params)
	f.now = startTime + 61
	if err := f.engine.Contribute(f.ctx, contributor, expiring, expSchedule, big.NewInt(1000), usdc); !errors.Is(err, coreerrors.ErrPoolNotActive) {
		t.Fatalf("expected expired pool to reject, got %v", err)
	}
}

func TestContributeAbortsWhenPullFails(t *testing.T) {
	f := newFixture(t)
	poolID, scheduleID, _ := f.openPool(t, defaultPoolParams())
	if err := f.ledger.Approve(f.ctx, usdc, contributor, f.engine.Address(), big.NewInt(10)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	recorded := len(f.recorder.Events)
	err := f.engine.Contribute(f.ctx, contributor, poolID, scheduleID, big.NewInt(1000), usdc)
	if !errors.Is(err, coreerrors.ErrInsufficientAllowance) {
		t.Fatalf("expected insufficient allowance, got %v", err)
	}
	if !coreerrors.IsTransient(err) {
		t.Fatalf("funding failures must be transient")
	}
	if _, found, _ := f.engine.Contribution(f.ctx, scheduleID, contributor); found {
		t.Fatalf("contribution stored despite failed pull")
	}
	if p := f.pool(t, poolID); p.TotalContributed.Sign() != 0 {
		t.Fatalf("pool total changed: %s", p.TotalContributed)
	}
	if got := f.balance(t, usdc, feeAddress); got != 0 {
		t.Fatalf("fee moved despite abort: %d", got)
	}
	if len(f.recorder.Events) != recorded {
		t.Fatalf("aborted contribution emitted events")
	}
}

func TestClaimRejectsReentrantCall(t *testing.T) {
	f := newFixture(t)
	poolID, scheduleID, distributionID := f.reachTarget(t, defaultPoolParams(), 1_000_000)

	var inner error
	f.funds.beforeTransfer = func(ctx context.Context, tok [20]byte) (bool, error) {
		if tok != prt {
			return true, nil
		}
		_, inner = f.engine.ClaimPoolRewardToken(ctx, contributor, poolID, scheduleID, distributionID)
		return inner == nil, inner
	}
	_, err := f.engine.ClaimPoolRewardToken(f.ctx, contributor, poolID, scheduleID, distributionID)
	if !errors.Is(inner, coreerrors.ErrReentrantCall) {
		t.Fatalf("nested claim must be rejected as reentrant, got %v", inner)
	}
	if !errors.Is(err, coreerrors.ErrReentrantCall) {
		t.Fatalf("outer claim must abort, got %v", err)
	}
	record, _, _ := f.engine.Contribution(f.ctx, scheduleID, contributor)
	if record.Claimed || f.balance(t, prt, contributor) != 0 {
		t.Fatalf("aborted claim left state behind: claimed=%v", record.Claimed)
	}

	f.funds.beforeTransfer = nil
	if _, err := f.engine.ClaimPoolRewardToken(f.ctx, contributor, poolID, scheduleID, distributionID); err != nil {
		t.Fatalf("claim after abort: %v", err)
	}
}

func TestClaimAbortsWhenPayoutFails(t *testing.T) {
	f := newFixture(t)
	poolID, scheduleID, distributionID := f.reachTarget(t, defaultPoolParams(), 1_000_000)
	f.funds.beforeTransfer = func(context.Context, [20]byte) (bool, error) { return false, nil }

	_, err := f.engine.ClaimPoolRewardToken(f.ctx, contributor, poolID, scheduleID, distributionID)
	if !errors.Is(err, coreerrors.ErrTransferFailed) {
		t.Fatalf("expected transfer failed, got %v", err)
	}
	record, _, _ := f.engine.Contribution(f.ctx, scheduleID, contributor)
	if record.Claimed {
		t.Fatalf("claimed flag committed without payout")
	}
	if p := f.pool(t, poolID); p.RewardBalance.Int64() != 500_000 {
		t.Fatalf("reward custody changed: %s", p.RewardBalance)
	}
}

func TestClaimRequiresStartedDistribution(t *testing.T) {
	f := newFixture(t)
	poolID, scheduleID, _ := f.reachTarget(t, defaultPoolParams(), 1_000_000)
	later, err := f.engine.CreateDistributionSchedule(f.ctx, rocketAdmin, poolID, uint64(f.now)+100, uint64(f.now)+200, 10)
	if err != nil {
		t.Fatalf("create distribution: %v", err)
	}
	if _, err := f.engine.ClaimPoolRewardToken(f.ctx, contributor, poolID, scheduleID, later); !errors.Is(err, coreerrors.ErrScheduleWindowClosed) {
		t.Fatalf("expected window closed, got %v", err)
	}
	if _, err := f.engine.ClaimPoolRewardToken(f.ctx, outsider, poolID, scheduleID, later); !errors.Is(err, coreerrors.ErrScheduleWindowClosed) {
		t.Fatalf("expected window closed for outsider, got %v", err)
	}
	f.now += 100
	if _, err := f.engine.ClaimPoolRewardToken(f.ctx, outsider, poolID, scheduleID, later); !errors.Is(err, coreerrors.ErrNotFound) {
		t.Fatalf("expected missing contribution, got %v", err)
	}
}

func TestDepositRequiresRewardToken(t *testing.T) {
	f := newFixture(t)
	params := defaultPoolParams()
	params.RewardToken = [20]byte{}
	params.RewardTokenAmount = nil
	poolID, scheduleID, distributionID := f.reachTarget(t, params, 0)
	err := f.engine.DepositPoolRewardTokens(f.ctx, rocketAdmin, poolID)
	if !errors.Is(err, coreerrors.ErrNoRewardTokens) {
		t.Fatalf("expected no reward tokens, got %v", err)
	}
	if _, err := f.engine.ClaimPoolRewardToken(f.ctx, contributor, poolID, scheduleID, distributionID); !errors.Is(err, coreerrors.ErrNoRewardTokens) {
		t.Fatalf("expected no reward tokens on claim, got %v", err)
	}
}

func TestFeeSettings(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.SetFeeBps(f.ctx, deployer, 10_001); !errors.Is(err, coreerrors.ErrInvalidArgument) {
		t.Fatalf("expected invalid fee, got %v", err)
	}
	if err := f.engine.SetFeeBps(f.ctx, deployer, 0); err != nil {
		t.Fatalf("set fee: %v", err)
	}
	if err := f.engine.SetFeeReceiver(f.ctx, deployer, [20]byte{}); !errors.Is(err, coreerrors.ErrZeroAddress) {
		t.Fatalf("expected zero address, got %v", err)
	}
	poolID, scheduleID, _ := f.openPool(t, defaultPoolParams())
	if err := f.engine.Contribute(f.ctx, contributor, poolID, scheduleID, big.NewInt(5000), usdc); err != nil {
		t.Fatalf("contribute: %v", err)
	}
	if got := f.balance(t, usdc, feeAddress); got != 0 {
		t.Fatalf("zero fee still charged %d", got)
	}
	if custody := f.pool(t, poolID).CustodyOf(usdc); custody.Int64() != 5000 {
		t.Fatalf("custody = %s, want 5000", custody)
	}
	cfg, err := f.engine.Config(f.ctx)
	if err != nil || cfg.FeeBps != 0 || cfg.FeeReceiver != feeAddress {
		t.Fatalf("unexpected config %+v (%v)", cfg, err)
	}
}

func TestRocketAdminRotation(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.SetRocketAdmin(f.ctx, deployer, outsider); err != nil {
		t.Fatalf("set rocket admin: %v", err)
	}
	if _, err := f.engine.CreatePool(f.ctx, outsider, defaultPoolParams()); err != nil {
		t.Fatalf("new admin create pool: %v", err)
	}
	if err := f.engine.RevokeRocketAdmin(f.ctx, deployer, outsider); err != nil {
		t.Fatalf("revoke rocket admin: %v", err)
	}
	if _, err := f.engine.CreatePool(f.ctx, outsider, defaultPoolParams()); !errors.Is(err, coreerrors.ErrUnauthorized) {
		t.Fatalf("revoked admin must be rejected, got %v", err)
	}
}

func TestPausedEngineRejectsMutations(t *testing.T) {
	f := newFixture(t)
	pauses := common.NewPauses()
	f.engine.SetPauses(pauses)
	pauses.Set(moduleName, true)
	if _, err := f.engine.CreatePool(f.ctx, rocketAdmin, defaultPoolParams()); !errors.Is(err, coreerrors.ErrModulePaused) {
		t.Fatalf("expected paused, got %v", err)
	}
	pauses.Set(moduleName, false)
	if _, err := f.engine.CreatePool(f.ctx, rocketAdmin, defaultPoolParams()); err != nil {
		t.Fatalf("create after unpause: %v", err)
	}
}

func TestVestedAmount(t *testing.T) {
	f := newFixture(t)
	poolID, scheduleID, _ := f.reachTarget(t, defaultPoolParams(), 1_000_000)
	start := uint64(f.now)
	distID, err := f.engine.CreateDistributionSchedule(f.ctx, rocketAdmin, poolID, start, start+100, 25)
	if err != nil {
		t.Fatalf("create distribution: %v", err)
	}
	steps := []struct {
		offset int64
		want   int64
	}{{0, 0}, {24, 0}, {25, 125_000}, {60, 250_000}, {99, 375_000}, {100, 500_000}, {500, 500_000}}
	for _, step := range steps {
		f.now = startTime + step.offset
		got, err := f.engine.VestedAmount(f.ctx, poolID, scheduleID, distID, contributor)
		if err != nil {
			t.Fatalf("vested: %v", err)
		}
		if got.Int64() != step.want {
			t.Fatalf("offset %d: vested %s, want %d", step.offset, got, step.want)
		}
	}
}

func TestEndToEndScenario(t *testing.T) {
	f := newFixture(t)
	now := uint64(f.now)
	params := defaultPoolParams()
	params.TargetAmount = big.NewInt(10_000)
	params.RewardTokenAmount = big.NewInt(50_000)
	poolID, err := f.engine.CreatePool(f.ctx, rocketAdmin, params)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	scheduleID, err := f.engine.CreateContributionSchedule(f.ctx, rocketAdmin, poolID, ScheduleParams{
		Tier: 1, MinAmount: big.NewInt(1), MaxAmount: big.NewInt(10_000), Price: big.NewInt(1), Start: now, End: now + week,
	})
	if err != nil {
		t.Fatalf("create schedule: %v", err)
	}
	distributionID, err := f.engine.CreateDistributionSchedule(f.ctx, rocketAdmin, poolID, now, now+week, 30)
	if err != nil {
		t.Fatalf("create distribution: %v", err)
	}
	if err := f.engine.Contribute(f.ctx, contributor, poolID, scheduleID, big.NewInt(10_000), usdc); err != nil {
		t.Fatalf("contribute: %v", err)
	}
	if p := f.pool(t, poolID); p.State != PoolTargetReached {
		t.Fatalf("expected target reached, got %s", p.State)
	}
	if err := f.engine.WithdrawFundToReceiver(f.ctx, rocketAdmin, poolID); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if got := f.balance(t, usdc, receiver); got != 8_000 {
		t.Fatalf("receiver got %d, want net of fee 8000", got)
	}
	if err := f.engine.DepositPoolRewardTokens(f.ctx, rocketAdmin, poolID); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if p := f.pool(t, poolID); p.Reward != RewardFunded {
		t.Fatalf("expected reward funded, got %s", p.Reward)
	}
	record, _, _ := f.engine.Contribution(f.ctx, scheduleID, contributor)
	if _, err := f.engine.ClaimPoolRewardToken(f.ctx, contributor, poolID, scheduleID, distributionID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if got := f.balance(t, prt, contributor); got != record.AmountToReceive.Int64() {
		t.Fatalf("claimed %d, want %s", got, record.AmountToReceive)
	}
	if _, err := f.engine.ClaimPoolRewardToken(f.ctx, contributor, poolID, scheduleID, distributionID); !errors.Is(err, coreerrors.ErrDoubleClaim) {
		t.Fatalf("expected double claim, got %v", err)
	}
	contributors, err := f.engine.Contributors(f.ctx, scheduleID)
	if err != nil || len(contributors) != 1 || contributors[0] != contributor {
		t.Fatalf("unexpected contributors %v (%v)", contributors, err)
	}
}

// reachTarget opens a pool, fills its target from the contributor and, when
// the pool carries a reward, deposits it.
func (f *fixture) reachTarget(t *testing.T, params PoolParams, amount int64) (uint64, uint64, uint64) {
	t.Helper()
	if amount == 0 {
		amount = params.TargetAmount.Int64()
	}
	poolID, scheduleID, distributionID := f.openPool(t, params)
	if err := f.engine.Contribute(f.ctx, contributor, poolID, scheduleID, big.NewInt(amount), usdc); err != nil {
		t.Fatalf("contribute: %v", err)
	}
	if params.RewardToken != ([20]byte{}) {
		if err := f.engine.DepositPoolRewardTokens(f.ctx, rocketAdmin, poolID); err != nil {
			t.Fatalf("deposit: %v", err)
		}
	}
	return poolID, scheduleID, distributionID
}
