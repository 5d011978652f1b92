package config

import "time"

// Storage backends accepted by the daemon.
const (
	BackendMemory  = "memory"
	BackendLevelDB = "leveldb"
	BackendBolt    = "bolt"
)

type StorageConfig struct {
	Backend string `toml:"backend" yaml:"backend"`
	Path    string `toml:"path" yaml:"path"`
}

// RocketConfig addresses the built-in modules and seeds the pool engine.
// Module addresses default to crypto.ModuleAccount of the module name.
type RocketConfig struct {
	Vault              string  `toml:"vault" yaml:"vault"`
	ItemsAddress       string  `toml:"items_address" yaml:"items_address"`
	PermissionsAddress string  `toml:"permissions_address" yaml:"permissions_address"`
	RocketAdmin        string  `toml:"rocket_admin" yaml:"rocket_admin"`
	FeeReceiver        string  `toml:"fee_receiver" yaml:"fee_receiver"`
	FeeBps             *uint32 `toml:"fee_bps" yaml:"fee_bps"`
}

type AuthConfig struct {
	Enabled        bool     `toml:"enabled" yaml:"enabled"`
	HMACSecret     string   `toml:"hmac_secret" yaml:"hmac_secret"`
	Issuer         string   `toml:"issuer" yaml:"issuer"`
	Audience       string   `toml:"audience" yaml:"audience"`
	OptionalPaths  []string `toml:"optional_paths" yaml:"optional_paths"`
	AllowAnonymous bool     `toml:"allow_anonymous" yaml:"allow_anonymous"`
}

type RateLimitConfig struct {
	RequestsPerMinute float64 `toml:"requests_per_minute" yaml:"requests_per_minute"`
	Burst             int     `toml:"burst" yaml:"burst"`
}

type ReportingConfig struct {
	DSN       string `toml:"dsn" yaml:"dsn"`
	ExportDir string `toml:"export_dir" yaml:"export_dir"`
}

type IdempotencyConfig struct {
	Path string        `toml:"path" yaml:"path"`
	TTL  time.Duration `toml:"ttl" yaml:"ttl"`
}

type TelemetryConfig struct {
	Endpoint    string  `toml:"endpoint" yaml:"endpoint"`
	Insecure    bool    `toml:"insecure" yaml:"insecure"`
	Traces      bool    `toml:"traces" yaml:"traces"`
	Metrics     bool    `toml:"metrics" yaml:"metrics"`
	SampleRatio float64 `toml:"sample_ratio" yaml:"sample_ratio"`
}

type LoggingConfig struct {
	Level      string `toml:"level" yaml:"level"`
	File       string `toml:"file" yaml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" yaml:"max_age_days"`
}

// TokenGenesis registers a fungible token at first start and mints the
// listed balances, keyed by account, as decimal base-unit amounts.
type TokenGenesis struct {
	Address  string            `toml:"address" yaml:"address"`
	Symbol   string            `toml:"symbol" yaml:"symbol"`
	Decimals uint8             `toml:"decimals" yaml:"decimals"`
	Minter   string            `toml:"minter" yaml:"minter"`
	Balances map[string]string `toml:"balances" yaml:"balances"`
}

// TierGenesis creates a tier at first start and assigns it to Members.
type TierGenesis struct {
	ID      uint64   `toml:"id" yaml:"id"`
	Label   string   `toml:"label" yaml:"label"`
	Members []string `toml:"members" yaml:"members"`
}

type GenesisConfig struct {
	Tokens []TokenGenesis `toml:"tokens" yaml:"tokens"`
	Tiers  []TierGenesis  `toml:"tiers" yaml:"tiers"`
}
