package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const (
	DefaultListenAddress = ":8645"
	DefaultFeeBps        = uint32(2000)
	DefaultEnv           = "dev"

	// EnvHMACSecret overrides auth.hmac_secret so the secret can stay out of
	// the file.
	EnvHMACSecret = "ROCKET_AUTH_HMAC_SECRET"
)

type Config struct {
	ListenAddress string            `toml:"listen" yaml:"listen"`
	Env           string            `toml:"env" yaml:"env"`
	Admin         string            `toml:"admin" yaml:"admin"`
	Storage       StorageConfig     `toml:"storage" yaml:"storage"`
	Rocket        RocketConfig      `toml:"rocket" yaml:"rocket"`
	Auth          AuthConfig        `toml:"auth" yaml:"auth"`
	RateLimit     RateLimitConfig   `toml:"rate_limit" yaml:"rate_limit"`
	Reporting     ReportingConfig   `toml:"reporting" yaml:"reporting"`
	Idempotency   IdempotencyConfig `toml:"idempotency" yaml:"idempotency"`
	Telemetry     TelemetryConfig   `toml:"telemetry" yaml:"telemetry"`
	Logging       LoggingConfig     `toml:"logging" yaml:"logging"`
	PausedModules []string          `toml:"paused_modules" yaml:"paused_modules"`
	Genesis       GenesisConfig     `toml:"genesis" yaml:"genesis"`
}

// Default returns the configuration used for keys absent from the file.
func Default() *Config {
	fee := DefaultFeeBps
	return &Config{
		ListenAddress: DefaultListenAddress,
		Env:           DefaultEnv,
		Storage:       StorageConfig{Backend: BackendMemory},
		Rocket:        RocketConfig{FeeBps: &fee},
		Idempotency:   IdempotencyConfig{Path: ":memory:", TTL: 24 * time.Hour},
		Telemetry:     TelemetryConfig{SampleRatio: 1},
		Logging:       LoggingConfig{Level: "info", MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 28},
	}
}

// Load reads the file at path, TOML unless the extension is .yaml or .yml,
// applies defaults and validates the result. A missing file is created from
// the defaults and reported as an error, since the root admin must be set
// before the node can start.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if err := persist(path, cfg); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("config file %s created with defaults; set admin and restart", path)
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := decode(path, data, cfg); err != nil {
		return nil, err
	}
	if secret := strings.TrimSpace(os.Getenv(EnvHMACSecret)); secret != "" {
		cfg.Auth.HMACSecret = secret
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return fmt.Errorf("decode config: %w", err)
		}
	default:
		meta, err := toml.Decode(string(data), cfg)
		if err != nil {
			return fmt.Errorf("decode config: %w", err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, key := range undecoded {
				keys[i] = key.String()
			}
			return fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
		}
	}
	return nil
}

func (c *Config) normalize() {
	c.ListenAddress = strings.TrimSpace(c.ListenAddress)
	if c.ListenAddress == "" {
		c.ListenAddress = DefaultListenAddress
	}
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	if c.Env == "" {
		c.Env = DefaultEnv
	}
	c.Admin = strings.TrimSpace(c.Admin)
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendMemory
	}
	c.Storage.Path = strings.TrimSpace(c.Storage.Path)
	if c.Rocket.FeeBps == nil {
		fee := DefaultFeeBps
		c.Rocket.FeeBps = &fee
	}
	c.Auth.HMACSecret = strings.TrimSpace(c.Auth.HMACSecret)
	if strings.TrimSpace(c.Idempotency.Path) == "" {
		c.Idempotency.Path = ":memory:"
	}
	if c.Idempotency.TTL <= 0 {
		c.Idempotency.TTL = 24 * time.Hour
	}
	if c.Telemetry.SampleRatio <= 0 {
		c.Telemetry.SampleRatio = 1
	}
	c.Reporting.DSN = strings.TrimSpace(c.Reporting.DSN)
	paused := make([]string, 0, len(c.PausedModules))
	for _, module := range c.PausedModules {
		if trimmed := strings.ToLower(strings.TrimSpace(module)); trimmed != "" {
			paused = append(paused, trimmed)
		}
	}
	c.PausedModules = paused
}

// IsDev reports whether the node runs in the development environment.
func (c *Config) IsDev() bool {
	return strings.EqualFold(c.Env, DefaultEnv)
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
