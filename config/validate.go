package config

import (
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"strings"

	"rocket/crypto"
)

// Module names accepted in paused_modules.
var knownModules = map[string]struct{}{
	"items":       {},
	"permissions": {},
	"token":       {},
	"rocket":      {},
}

const maxFeeBps = 10_000

var ErrAdminRequired = errors.New("admin must be set to the root account")

// Accounts are the resolved addresses of the configured roles and modules.
type Accounts struct {
	Admin       [20]byte
	Items       [20]byte
	Permissions [20]byte
	Vault       [20]byte
	RocketAdmin [20]byte
	FeeReceiver [20]byte
}

// Accounts parses the configured addresses, filling module defaults and
// falling back to the admin for the rocket admin and fee receiver.
func (c *Config) Accounts() (Accounts, error) {
	var out Accounts
	if strings.TrimSpace(c.Admin) == "" {
		return out, ErrAdminRequired
	}
	admin, err := parseAccount("admin", c.Admin)
	if err != nil {
		return out, err
	}
	out.Admin = admin
	fields := []struct {
		name     string
		raw      string
		fallback [20]byte
		dst      *[20]byte
	}{
		{"rocket.items_address", c.Rocket.ItemsAddress, crypto.ModuleAccount("items"), &out.Items},
		{"rocket.permissions_address", c.Rocket.PermissionsAddress, crypto.ModuleAccount("permissions"), &out.Permissions},
		{"rocket.vault", c.Rocket.Vault, crypto.ModuleAccount("rocket"), &out.Vault},
		{"rocket.rocket_admin", c.Rocket.RocketAdmin, admin, &out.RocketAdmin},
		{"rocket.fee_receiver", c.Rocket.FeeReceiver, admin, &out.FeeReceiver},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.raw) == "" {
			*f.dst = f.fallback
			continue
		}
		addr, err := parseAccount(f.name, f.raw)
		if err != nil {
			return out, err
		}
		*f.dst = addr
	}
	if out.Items == out.Permissions || out.Items == out.Vault || out.Permissions == out.Vault {
		return out, fmt.Errorf("rocket module addresses must be distinct")
	}
	return out, nil
}

func parseAccount(field, raw string) ([20]byte, error) {
	addr, err := crypto.ParseAccount(raw)
	if err != nil {
		return addr, fmt.Errorf("%s: %w", field, err)
	}
	if addr == ([20]byte{}) {
		return addr, fmt.Errorf("%s: zero address", field)
	}
	return addr, nil
}

// ParseAmount parses a positive decimal base-unit amount.
func ParseAmount(field, raw string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		return nil, fmt.Errorf("%s: invalid amount %q", field, raw)
	}
	if v.Sign() <= 0 {
		return nil, fmt.Errorf("%s: amount must be positive", field)
	}
	return v, nil
}

func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}
	if c.ListenAddress == "" {
		return fmt.Errorf("listen address is required")
	}
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendLevelDB, BackendBolt:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the %s backend", c.Storage.Backend)
		}
	default:
		return fmt.Errorf("storage.backend %q is not one of memory, leveldb, bolt", c.Storage.Backend)
	}
	if _, err := c.Accounts(); err != nil {
		return err
	}
	if c.Rocket.FeeBps != nil && *c.Rocket.FeeBps > maxFeeBps {
		return fmt.Errorf("rocket.fee_bps %d exceeds %d", *c.Rocket.FeeBps, maxFeeBps)
	}
	if c.Auth.Enabled && c.Auth.HMACSecret == "" {
		return fmt.Errorf("auth.hmac_secret is required when auth is enabled (or set %s)", EnvHMACSecret)
	}
	if !c.Auth.Enabled && !c.IsDev() {
		return fmt.Errorf("auth must be enabled outside the dev environment")
	}
	for i, path := range c.Auth.OptionalPaths {
		if !strings.HasPrefix(strings.TrimSpace(path), "/") {
			return fmt.Errorf("auth.optional_paths[%d] must start with '/'", i)
		}
	}
	if c.RateLimit.RequestsPerMinute < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit values must not be negative")
	}
	if c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio must be within (0, 1]")
	}
	if c.Telemetry.Endpoint != "" {
		if err := c.checkTelemetryEndpoint(); err != nil {
			return err
		}
	}
	for _, module := range c.PausedModules {
		if _, ok := knownModules[module]; !ok {
			return fmt.Errorf("paused_modules: unknown module %q", module)
		}
	}
	return c.validateGenesis()
}

// checkTelemetryEndpoint refuses plaintext exporters outside dev.
func (c *Config) checkTelemetryEndpoint() error {
	endpoint := c.Telemetry.Endpoint
	if !strings.Contains(endpoint, "://") {
		scheme := "https://"
		if c.Telemetry.Insecure {
			scheme = "http://"
		}
		endpoint = scheme + endpoint
	}
	target, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("telemetry.endpoint: %w", err)
	}
	if target.Host == "" {
		return fmt.Errorf("telemetry.endpoint: host is required")
	}
	if strings.EqualFold(target.Scheme, "http") && !c.IsDev() {
		return fmt.Errorf("telemetry.endpoint: plaintext exporters are not permitted for environment %s", c.Env)
	}
	return nil
}

func (c *Config) validateGenesis() error {
	seenTokens := make(map[[20]byte]struct{})
	for i, tok := range c.Genesis.Tokens {
		field := fmt.Sprintf("genesis.tokens[%d]", i)
		addr, err := parseAccount(field+".address", tok.Address)
		if err != nil {
			return err
		}
		if _, dup := seenTokens[addr]; dup {
			return fmt.Errorf("%s: duplicate token %s", field, tok.Address)
		}
		seenTokens[addr] = struct{}{}
		if strings.TrimSpace(tok.Symbol) == "" {
			return fmt.Errorf("%s.symbol is required", field)
		}
		if strings.TrimSpace(tok.Minter) != "" {
			if _, err := parseAccount(field+".minter", tok.Minter); err != nil {
				return err
			}
		}
		for holder, amount := range tok.Balances {
			if _, err := parseAccount(field+".balances", holder); err != nil {
				return err
			}
			if _, err := ParseAmount(field+".balances["+holder+"]", amount); err != nil {
				return err
			}
		}
	}
	seenTiers := make(map[uint64]struct{})
	for i, tier := range c.Genesis.Tiers {
		field := fmt.Sprintf("genesis.tiers[%d]", i)
		if _, dup := seenTiers[tier.ID]; dup {
			return fmt.Errorf("%s: duplicate tier id %d", field, tier.ID)
		}
		seenTiers[tier.ID] = struct{}{}
		if strings.TrimSpace(tier.Label) == "" {
			return fmt.Errorf("%s.label is required", field)
		}
		for j, member := range tier.Members {
			if _, err := parseAccount(fmt.Sprintf("%s.members[%d]", field, j), member); err != nil {
				return err
			}
		}
	}
	return nil
}
