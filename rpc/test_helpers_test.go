package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"rocket/core/events"
	"rocket/crypto"
	"rocket/gateway/middleware"
	"rocket/native/items"
	"rocket/native/permissions"
	"rocket/native/rocket"
	"rocket/native/token"
	"rocket/state"
	"rocket/storage"
)

func testAddress(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

var (
	deployer    = testAddress(0x01)
	rocketAdmin = testAddress(0x02)
	contributor = testAddress(0x03)
	outsider    = testAddress(0x04)
	receiver    = testAddress(0x05)
	feeAddress  = testAddress(0x06)
	usdc        = testAddress(0xA1)
	prt         = testAddress(0xA2)
)

const testNow = int64(1_700_000_000)

type testEnv struct {
	t        *testing.T
	ctx      context.Context
	registry *items.Registry
	perms    *permissions.Controller
	ledger   *token.Ledger
	engine   *rocket.Engine
	broker   *events.Broker
	idem     *IdempotencyStore
	server   *Server
	handler  http.Handler
	now      int64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{t: t, ctx: context.Background(), now: testNow, broker: events.NewBroker()}
	st := state.NewManager(storage.NewMemDB())
	env.registry = items.New(st, testAddress(0xE1))
	env.perms = permissions.New(st, testAddress(0xC1), permissions.NewRegistries(env.registry))
	env.ledger = token.New(st)
	env.engine = rocket.New(st, testAddress(0xF1), env.ledger)
	env.engine.SetAccess(env.perms)
	env.engine.SetNowFunc(func() int64 { return env.now })
	env.registry.SetEmitter(env.broker)
	env.perms.SetEmitter(env.broker)
	env.ledger.SetEmitter(env.broker)
	env.engine.SetEmitter(env.broker)

	must := func(step string, err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("%s: %v", step, err)
		}
	}
	ctx := env.ctx
	must("registry initialize", env.registry.Initialize(ctx, deployer))
	must("registry set admin", env.registry.SetAdmin(ctx, deployer, env.perms.Address()))
	must("controller initialize", env.perms.Initialize(ctx, env.registry.Address(), deployer))
	must("set permissions admin", env.perms.SetPermissionsAdmin(ctx, deployer, deployer))
	must("create tier", env.perms.CreateTier(ctx, deployer, 1, "Diamond Tier"))
	must("assign tier", env.perms.AssignTier(ctx, deployer, [][20]byte{contributor}, 1))
	must("register usdc", env.ledger.Register(ctx, usdc, "USDC", 6, deployer))
	must("register prt", env.ledger.Register(ctx, prt, "PRT", 18, deployer))
	must("mint usdc", env.ledger.Mint(ctx, deployer, usdc, contributor, big.NewInt(10_000_000)))
	must("mint prt", env.ledger.Mint(ctx, deployer, prt, rocketAdmin, big.NewInt(1_000_000)))
	must("engine initialize", env.engine.Initialize(ctx, rocket.Genesis{
		Permissions:  env.perms.Address(),
		DefaultAdmin: deployer,
		RocketAdmin:  rocketAdmin,
		FeeReceiver:  feeAddress,
		FeeBps:       2000,
	}))

	idem, err := OpenIdempotencyStore(":memory:", 0)
	if err != nil {
		t.Fatalf("open idempotency store: %v", err)
	}
	t.Cleanup(func() { _ = idem.Close() })
	env.idem = idem

	server, err := NewServer(Config{
		Observability: middleware.ObservabilityConfig{ServiceName: "rocketd-test"},
	}, Services{
		Items:       env.registry,
		Permissions: env.perms,
		Tokens:      env.ledger,
		Pools:       env.engine,
		Events:      env.broker,
	}, idem, nil)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	env.server = server
	env.handler = server.Handler()
	return env
}

// do sends a JSON request as caller; a zero caller sends no X-Caller header.
func (env *testEnv) do(method, path string, caller [20]byte, body interface{}, headers ...string) *httptest.ResponseRecorder {
	env.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			env.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if caller != ([20]byte{}) {
		req.Header.Set("X-Caller", crypto.HexAccount(caller))
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) expect(rec *httptest.ResponseRecorder, status int) {
	env.t.Helper()
	if rec.Code != status {
		env.t.Fatalf("expected status %d, got %d: %s", status, rec.Code, rec.Body.String())
	}
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp errorResponse
	decodeInto(t, rec, &resp)
	return resp.Code
}

func bech(addr [20]byte) string { return crypto.FormatAccount(addr) }
