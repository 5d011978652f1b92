package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"

	"rocket/config"
	"rocket/core/events"
	"rocket/gateway/middleware"
	"rocket/native/common"
	"rocket/observability"
	"rocket/observability/logging"
	telemetry "rocket/observability/otel"
	"rocket/reporting"
	"rocket/rpc"
	"rocket/state"
	"rocket/storage"
)

const idempotencyPurgeInterval = 10 * time.Minute

func main() {
	var (
		cfgPath    string
		exportPool uint64
		exportDir  string
	)
	flag.StringVar(&cfgPath, "config", "rocketd.toml", "path to node configuration (TOML or YAML)")
	flag.Uint64Var(&exportPool, "export-pool", 0, "write the contributions of a pool from the reporting store to parquet and exit")
	flag.StringVar(&exportDir, "export-dir", "", "directory for -export-pool output; defaults to reporting.export_dir")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.SetupWithOptions(logging.Options{
		Service:    "rocketd",
		Env:        cfg.Env,
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if exportPool != 0 {
		if err := export(ctx, cfg, exportPool, exportDir, logger); err != nil {
			logger.Error("export failed", "pool", exportPool, "error", err)
			os.Exit(1)
		}
		return
	}
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("rocketd stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "rocketd",
		Environment: cfg.Env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("initialise telemetry: %w", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()

	accts, err := cfg.Accounts()
	if err != nil {
		return err
	}
	logger.Info("auth configured",
		slog.Bool("enabled", cfg.Auth.Enabled),
		logging.MaskField("hmac_secret", cfg.Auth.HMACSecret),
		logging.MaskField("issuer", cfg.Auth.Issuer))
	db, err := openStorage(cfg.Storage)
	if err != nil {
		return err
	}
	defer db.Close()

	broker := events.NewBroker()
	counter, err := telemetry.NewEventCounter(otel.Meter("rocketd"))
	if err != nil {
		return fmt.Errorf("event counter: %w", err)
	}
	emitters := events.Multi{broker, observability.Events(), counter}
	if cfg.Reporting.DSN != "" {
		gdb, err := reporting.Open(cfg.Reporting.DSN)
		if err != nil {
			return fmt.Errorf("open reporting store: %w", err)
		}
		projector, err := reporting.NewProjector(gdb, logger)
		if err != nil {
			return fmt.Errorf("reporting projector: %w", err)
		}
		emitters = append(emitters, projector)
	}
	n := newNode(state.NewManager(db), accts)
	n.setEmitter(emitters)
	initialized, err := n.applyGenesis(ctx, cfg, accts)
	if err != nil {
		return fmt.Errorf("apply genesis: %w", err)
	}
	if initialized {
		logger.Info("genesis applied", "tokens", len(cfg.Genesis.Tokens), "tiers", len(cfg.Genesis.Tiers))
	}

	for _, module := range cfg.PausedModules {
		observability.Pools().SetPause(module, true)
		logger.Warn("module paused by configuration", "module", module)
	}
	n.setPauses(common.NewPauses(cfg.PausedModules...))

	idem, err := rpc.OpenIdempotencyStore(cfg.Idempotency.Path, cfg.Idempotency.TTL)
	if err != nil {
		return fmt.Errorf("open idempotency store: %w", err)
	}
	defer idem.Close()
	go purgeIdempotency(ctx, idem, logger)

	srv, err := rpc.NewServer(serverConfig(cfg), rpc.Services{
		Items:       n.items,
		Permissions: n.permissions,
		Tokens:      n.tokens,
		Pools:       n.pools,
		Events:      broker,
	}, idem, logger)
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.ListenAddress, err)
	}
	logger.Info("rocketd listening", "addr", ln.Addr().String(), "env", cfg.Env, "storage", cfg.Storage.Backend)
	if err := srv.Serve(ctx, ln); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("rocketd shut down")
	return nil
}

func openStorage(cfg config.StorageConfig) (storage.Database, error) {
	switch cfg.Backend {
	case config.BackendLevelDB:
		return storage.NewLevelDB(cfg.Path)
	case config.BackendBolt:
		return storage.NewBoltDB(cfg.Path)
	case config.BackendMemory, "":
		return storage.NewMemDB(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func serverConfig(cfg *config.Config) rpc.Config {
	limit := middleware.RateLimit{
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Burst:             cfg.RateLimit.Burst,
	}
	limits := make(map[string]middleware.RateLimit)
	if limit.RequestsPerMinute > 0 {
		for _, key := range []string{"items", "permissions", "tokens", "pools", "events"} {
			limits[key] = limit
		}
	}
	return rpc.Config{
		ListenAddress: cfg.ListenAddress,
		Auth: middleware.AuthConfig{
			Enabled:        cfg.Auth.Enabled,
			HMACSecret:     cfg.Auth.HMACSecret,
			Issuer:         cfg.Auth.Issuer,
			Audience:       cfg.Auth.Audience,
			OptionalPaths:  cfg.Auth.OptionalPaths,
			AllowAnonymous: cfg.Auth.AllowAnonymous,
		},
		Observability: middleware.ObservabilityConfig{
			ServiceName: "rocketd",
			LogRequests: true,
			Enabled:     true,
		},
		RateLimits:     limits,
		IdempotencyTTL: cfg.Idempotency.TTL,
	}
}

func purgeIdempotency(ctx context.Context, idem *rpc.IdempotencyStore, logger *slog.Logger) {
	ticker := time.NewTicker(idempotencyPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := idem.Purge(ctx)
			if err != nil {
				logger.Warn("purge idempotency keys", "error", err)
				continue
			}
			if removed > 0 {
				logger.Debug("purged idempotency keys", "removed", removed)
			}
		}
	}
}

func export(ctx context.Context, cfg *config.Config, poolID uint64, dir string, logger *slog.Logger) error {
	if cfg.Reporting.DSN == "" {
		return errors.New("reporting.dsn is not configured")
	}
	if dir == "" {
		dir = cfg.Reporting.ExportDir
	}
	if dir == "" {
		dir = "."
	}
	gdb, err := reporting.Open(cfg.Reporting.DSN)
	if err != nil {
		return err
	}
	projector, err := reporting.NewProjector(gdb, logger)
	if err != nil {
		return err
	}
	path, err := projector.ExportContributions(ctx, poolID, dir)
	if err != nil {
		return err
	}
	logger.Info("contributions exported", "pool", poolID, "path", path)
	return nil
}
