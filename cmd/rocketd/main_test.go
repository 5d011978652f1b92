package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"rocket/config"
	"rocket/core/events"
	"rocket/crypto"
	"rocket/reporting"
	"rocket/rpc"
	"rocket/state"
)

func account(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func loadConfig(t *testing.T, dir string) *config.Config {
	t.Helper()
	admin := crypto.FormatAccount(account(0x01))
	member := crypto.FormatAccount(account(0x03))
	usdc := crypto.FormatAccount(account(0xA1))
	path := filepath.Join(dir, "rocketd.toml")
	contents := `
admin = "` + admin + `"

[storage]
backend = "bolt"
path = "` + filepath.Join(dir, "rocket.db") + `"

[[genesis.tokens]]
address = "` + usdc + `"
symbol = "usdc"
decimals = 6
[genesis.tokens.balances]
"` + member + `" = "2500000"

[[genesis.tiers]]
id = 1
label = "Tier 1"
members = ["` + member + `"]
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	return cfg
}

func TestGenesisAppliedOncePerStore(t *testing.T) {
	ctx := context.Background()
	cfg := loadConfig(t, t.TempDir())
	accts, err := cfg.Accounts()
	if err != nil {
		t.Fatalf("accounts: %v", err)
	}

	db, err := openStorage(cfg.Storage)
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	n := newNode(state.NewManager(db), accts)
	applied, err := n.applyGenesis(ctx, cfg, accts)
	if err != nil {
		t.Fatalf("apply genesis: %v", err)
	}
	if !applied {
		t.Fatalf("expected genesis on a fresh store")
	}
	held, err := n.permissions.UserHasItem(ctx, account(0x03), 1)
	if err != nil {
		t.Fatalf("user has item: %v", err)
	}
	if !held {
		t.Fatalf("expected tier 1 to be assigned at genesis")
	}
	db.Close()

	db, err = openStorage(cfg.Storage)
	if err != nil {
		t.Fatalf("reopen storage: %v", err)
	}
	defer db.Close()
	n = newNode(state.NewManager(db), accts)
	applied, err = n.applyGenesis(ctx, cfg, accts)
	if err != nil {
		t.Fatalf("reapply genesis: %v", err)
	}
	if applied {
		t.Fatalf("genesis must not run twice")
	}
	bal, err := n.tokens.BalanceOf(ctx, account(0xA1), account(0x03))
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal.String() != "2500000" {
		t.Fatalf("expected persisted balance 2500000, got %s", bal)
	}
	rc, err := n.pools.Config(ctx)
	if err != nil {
		t.Fatalf("engine config: %v", err)
	}
	if rc.FeeBps != config.DefaultFeeBps || rc.FeeReceiver != accts.Admin {
		t.Fatalf("unexpected engine config %+v", rc)
	}
}

func TestGenesisRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	cfg := loadConfig(t, t.TempDir())
	cfg.Storage = config.StorageConfig{Backend: config.BackendMemory}
	cfg.Genesis.Tiers[0].Members = append(cfg.Genesis.Tiers[0].Members, cfg.Genesis.Tiers[0].Members[0])
	accts, err := cfg.Accounts()
	if err != nil {
		t.Fatalf("accounts: %v", err)
	}
	db, err := openStorage(cfg.Storage)
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	n := newNode(state.NewManager(db), accts)
	if _, err := n.applyGenesis(ctx, cfg, accts); err == nil {
		t.Fatalf("expected duplicate tier member to fail genesis")
	}
	tokens, err := n.tokens.Tokens(ctx)
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}
	if len(tokens) != 0 {
		t.Fatalf("failed genesis left %d tokens registered", len(tokens))
	}
	if _, err := n.applyGenesis(ctx, cfg, accts); err == nil {
		t.Fatalf("expected failure again since nothing was committed")
	}
}

func TestServerConfigAppliesRateLimitToEveryGroup(t *testing.T) {
	cfg := config.Default()
	cfg.RateLimit = config.RateLimitConfig{RequestsPerMinute: 60, Burst: 5}
	rc := serverConfig(cfg)
	for _, key := range []string{"items", "permissions", "tokens", "pools", "events"} {
		if rc.RateLimits[key].Burst != 5 {
			t.Fatalf("missing limit for %s", key)
		}
	}
	if len(serverConfig(config.Default()).RateLimits) != 0 {
		t.Fatalf("expected no limits when requests_per_minute is unset")
	}
}

func TestOpenStorageRejectsUnknownBackend(t *testing.T) {
	if _, err := openStorage(config.StorageConfig{Backend: "rocksdb"}); err == nil {
		t.Fatalf("expected unknown backend error")
	}
}

func TestGenesisEventsReachEmitters(t *testing.T) {
	ctx := context.Background()
	cfg := loadConfig(t, t.TempDir())
	cfg.Storage = config.StorageConfig{Backend: config.BackendMemory}
	accts, err := cfg.Accounts()
	if err != nil {
		t.Fatalf("accounts: %v", err)
	}

	gdb, err := reporting.Open("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open reporting store: %v", err)
	}
	projector, err := reporting.NewProjector(gdb, nil)
	if err != nil {
		t.Fatalf("projector: %v", err)
	}
	idem, err := rpc.OpenIdempotencyStore(":memory:", 0)
	if err != nil {
		t.Fatalf("open idempotency store alongside reporting: %v", err)
	}
	defer idem.Close()

	rec := &events.Recorder{}
	db, err := openStorage(cfg.Storage)
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	n := newNode(state.NewManager(db), accts)
	n.setEmitter(events.Multi{rec, projector})
	if _, err := n.applyGenesis(ctx, cfg, accts); err != nil {
		t.Fatalf("apply genesis: %v", err)
	}

	assigned := false
	for _, typ := range rec.Types() {
		if typ == events.TypeTierAssigned {
			assigned = true
		}
	}
	if !assigned {
		t.Fatalf("genesis tier assignment not emitted: %v", rec.Types())
	}
	row, err := projector.Account(ctx, crypto.FormatAccount(account(0x03)))
	if err != nil {
		t.Fatalf("reporting account: %v", err)
	}
	if row.Tiers != "1" {
		t.Fatalf("expected projected tiers 1, got %q", row.Tiers)
	}
}
