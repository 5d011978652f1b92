package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"rocket/crypto"
)

func testAccount(fill byte) string {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return crypto.FormatAccount(addr)
}

func writeConfig(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadTOML(t *testing.T) {
	admin := testAccount(0x01)
	holder := testAccount(0x03)
	usdc := testAccount(0xA1)
	path := writeConfig(t, "rocket.toml", `
listen = "127.0.0.1:9000"
admin = "`+admin+`"
paused_modules = [" Rocket "]

[storage]
backend = "bolt"
path = "./data/rocket.db"

[rocket]
fee_bps = 0
fee_receiver = "`+holder+`"

[rate_limit]
requests_per_minute = 120
burst = 20

[idempotency]
ttl = "2h"

[[genesis.tokens]]
address = "`+usdc+`"
symbol = "USDC"
decimals = 6
[genesis.tokens.balances]
"`+holder+`" = "1000000"

[[genesis.tiers]]
id = 1
label = "Diamond Tier"
members = ["`+holder+`"]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != "127.0.0.1:9000" || cfg.Env != DefaultEnv {
		t.Fatalf("unexpected listen/env %q %q", cfg.ListenAddress, cfg.Env)
	}
	if cfg.Storage.Backend != BackendBolt {
		t.Fatalf("unexpected backend %q", cfg.Storage.Backend)
	}
	if cfg.Rocket.FeeBps == nil || *cfg.Rocket.FeeBps != 0 {
		t.Fatalf("explicit zero fee must be kept")
	}
	if cfg.Idempotency.TTL != 2*time.Hour || cfg.Idempotency.Path != ":memory:" {
		t.Fatalf("unexpected idempotency config %+v", cfg.Idempotency)
	}
	if len(cfg.PausedModules) != 1 || cfg.PausedModules[0] != "rocket" {
		t.Fatalf("unexpected paused modules %v", cfg.PausedModules)
	}
	if len(cfg.Genesis.Tokens) != 1 || cfg.Genesis.Tokens[0].Balances[holder] != "1000000" {
		t.Fatalf("unexpected genesis tokens %+v", cfg.Genesis.Tokens)
	}

	accts, err := cfg.Accounts()
	if err != nil {
		t.Fatalf("accounts: %v", err)
	}
	if accts.RocketAdmin != accts.Admin {
		t.Fatalf("rocket admin must default to admin")
	}
	if crypto.FormatAccount(accts.FeeReceiver) != holder {
		t.Fatalf("unexpected fee receiver %s", crypto.FormatAccount(accts.FeeReceiver))
	}
	if accts.Vault != crypto.ModuleAccount("rocket") {
		t.Fatalf("vault must default to the rocket module account")
	}
}

func TestLoadYAMLAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "rocket.yaml", "admin: "+testAccount(0x01)+"\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != DefaultListenAddress {
		t.Fatalf("expected default listen, got %q", cfg.ListenAddress)
	}
	if cfg.Storage.Backend != BackendMemory {
		t.Fatalf("expected memory backend, got %q", cfg.Storage.Backend)
	}
	if *cfg.Rocket.FeeBps != DefaultFeeBps {
		t.Fatalf("expected default fee, got %d", *cfg.Rocket.FeeBps)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "rocket.toml", "admin = \""+testAccount(0x01)+"\"\nlisten_port = 1\n")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "listen_port") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
	path = writeConfig(t, "rocket.yml", "admin: "+testAccount(0x01)+"\nlisten_port: 1\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected unknown yaml key error")
	}
}

func TestLoadCreatesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "rocket.toml")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "set admin") {
		t.Fatalf("expected creation error, got %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if _, err := Load(path); !errors.Is(err, ErrAdminRequired) {
		t.Fatalf("expected admin required, got %v", err)
	}
}

func TestLoadReadsSecretFromEnvironment(t *testing.T) {
	t.Setenv(EnvHMACSecret, "from-env")
	path := writeConfig(t, "rocket.toml", "admin = \""+testAccount(0x01)+"\"\n[auth]\nenabled = true\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Auth.HMACSecret != "from-env" {
		t.Fatalf("expected secret from environment, got %q", cfg.Auth.HMACSecret)
	}
}

func TestValidateRejections(t *testing.T) {
	admin := testAccount(0x01)
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing admin", func(c *Config) { c.Admin = "" }, "admin"},
		{"bad admin", func(c *Config) { c.Admin = "nope" }, "admin"},
		{"backend", func(c *Config) { c.Storage.Backend = "redis" }, "storage.backend"},
		{"backend path", func(c *Config) { c.Storage.Backend = BackendLevelDB }, "storage.path"},
		{"fee", func(c *Config) { fee := uint32(10_001); c.Rocket.FeeBps = &fee }, "fee_bps"},
		{"auth secret", func(c *Config) { c.Auth.Enabled = true }, "hmac_secret"},
		{"auth outside dev", func(c *Config) { c.Env = "prod" }, "auth must be enabled"},
		{"paused", func(c *Config) { c.PausedModules = []string{"swap"} }, "paused_modules"},
		{"plaintext telemetry", func(c *Config) {
			c.Env = "prod"
			c.Auth = AuthConfig{Enabled: true, HMACSecret: "s"}
			c.Telemetry = TelemetryConfig{Endpoint: "collector:4318", Insecure: true, SampleRatio: 1}
		}, "plaintext"},
		{"module collision", func(c *Config) { c.Rocket.Vault = crypto.FormatAccount(crypto.ModuleAccount("items")) }, "distinct"},
		{"token symbol", func(c *Config) {
			c.Genesis.Tokens = []TokenGenesis{{Address: testAccount(0xA1)}}
		}, "symbol"},
		{"token balance", func(c *Config) {
			c.Genesis.Tokens = []TokenGenesis{{Address: testAccount(0xA1), Symbol: "USDC", Balances: map[string]string{admin: "-5"}}}
		}, "positive"},
		{"duplicate tier", func(c *Config) {
			c.Genesis.Tiers = []TierGenesis{{ID: 1, Label: "a"}, {ID: 1, Label: "b"}}
		}, "duplicate tier"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			cfg.Admin = admin
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}
