package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"oddsline-core/internal/cache"
	"oddsline-core/internal/config"
	"oddsline-core/internal/health"
	"oddsline-core/internal/infra/db"
	"oddsline-core/internal/infra/redisstore"
	"oddsline-core/internal/infra/sportsapi"
	"oddsline-core/internal/observability/logging"
	loader "oddsline-core/internal/pkg/config"
	"oddsline-core/pkg/metrics"
	"oddsline-core/pkg/resilience"
)

func main() {
	// .env is a development convenience; production reads the process
	// environment directly.
	_ = godotenv.Load()

	logger := logging.NewLogger()
	slog.SetDefault(logger)

	cfg := config.Load()

	registry := metrics.NewRegistry()
	recordConfigLoad(registry, cfg)

	pool := initDatabase(logger)
	defer func() {
		if err := pool.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	rdb := redisstore.NewClient(redisstore.ConfigFromEnv())
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("failed to close redis client", slog.Any("error", err))
		}
	}()

	exec := newExecutor(cfg, registry)
	manager := newCacheManager(cfg, exec, redisstore.NewStore(rdb), registry)
	monitor := newMonitor(exec, registry)
	registerProbes(cfg, monitor, pool, rdb, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	healthServer := health.NewServer(cfg.Servers.HealthAddr, monitor, logger)
	grpcServer := health.NewGRPCServer(cfg.Servers.GRPCAddr, logger)

	scheduler := startScheduler(ctx, cfg, logger, monitor, manager, grpcServer)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := healthServer.Start(gctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return grpcServer.Start(gctx)
	})
	g.Go(func() error {
		return runMetricsServer(gctx, logger, registry, exec.Breakers(), cfg.Servers.MetricsAddr)
	})

	// Run one cycle before declaring readiness so /health/deps and the
	// gRPC statuses answer from real data from the first request.
	grpcServer.Publish(monitor.RunCycle(ctx))
	healthServer.SetReady(true)
	logger.Info("healthd ready",
		slog.String("health_addr", cfg.Servers.HealthAddr),
		slog.String("metrics_addr", cfg.Servers.MetricsAddr),
		slog.String("grpc_addr", cfg.Servers.GRPCAddr))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	case <-gctx.Done():
		logger.Error("a server failed, shutting down")
	}

	healthServer.SetReady(false)

	// Let a running probe cycle or sweep finish before tearing the
	// servers down.
	stopCtx := scheduler.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(10 * time.Second):
		logger.Warn("scheduled jobs still running at shutdown deadline")
	}

	cancel()
	if err := g.Wait(); err != nil {
		logger.Error("server terminated with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("healthd stopped")
}

// recordConfigLoad publishes the configuration load outcome so
// fail-open fallbacks show up on dashboards, not only in startup logs.
func recordConfigLoad(registry *metrics.Registry, cfg *config.Config) {
	configMetrics := loader.NewConfigMetrics("healthd", registry.Registry())
	configMetrics.RecordLoadTimestamp()
	for range cfg.Warnings {
		configMetrics.RecordFallback("load")
	}
	configMetrics.SetFallbackActive(len(cfg.Warnings) > 0)
}

// initDatabase opens the connection pool. An unreachable database is
// tolerated (the monitor reports it unhealthy and the breaker shields
// callers); a missing DSN is a deployment error and fails startup.
func initDatabase(logger *slog.Logger) *sql.DB {
	pool, err := db.Open()
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	return pool
}

// newExecutor builds the shared retry executor: one breaker per
// dependency, seeded from the config file, all reporting to the same
// metrics registry.
func newExecutor(cfg *config.Config, registry *metrics.Registry) *resilience.Executor {
	base := resilience.BreakerConfig{Metrics: registry}
	breakers := resilience.NewRegistry(cfg.BreakerDefaults(base))
	for name := range cfg.Dependencies {
		breakers.SetConfig(name, cfg.BreakerFor(name, base))
	}
	return resilience.NewExecutor(resilience.ExecutorConfig{
		Breakers: breakers,
		Metrics:  registry,
	})
}

// newCacheManager fronts the redis store with the shared executor and
// the bounded local fallback.
func newCacheManager(cfg *config.Config, exec *resilience.Executor, remote cache.RemoteStore, registry *metrics.Registry) *cache.Manager {
	return cache.NewManager(cache.ManagerConfig{
		Remote:   remote,
		Executor: exec,
		Retry:    cfg.RetryFor(cache.DependencyName, resilience.CacheConfig()),
		Local:    cache.LocalStoreConfig{MaxEntries: cfg.Cache.MaxEntries},
		Metrics:  registry,
	})
}

// newMonitor builds the probe monitor on the same executor as real
// traffic, so reported health reflects actual breaker state. Probes
// keep the single short-timeout attempt of ProbeConfig; tuning happens
// per dependency through latency budgets, not retry counts.
func newMonitor(exec *resilience.Executor, registry *metrics.Registry) *health.Monitor {
	return health.NewMonitor(health.MonitorConfig{
		Executor: exec,
		Retry:    resilience.ProbeConfig(),
		Metrics:  registry,
	})
}

// registerProbes wires one check per backend. A missing sports API
// configuration disables that probe instead of failing startup; the
// daemon still monitors everything else.
func registerProbes(cfg *config.Config, monitor *health.Monitor, pool *sql.DB, rdb *redis.Client, logger *slog.Logger) {
	monitor.Register(health.Check{
		Name:          db.DependencyName,
		Probe:         db.Probe(pool),
		LatencyBudget: cfg.LatencyBudget(db.DependencyName, health.DefaultLatencyBudget),
	})
	monitor.Register(health.Check{
		Name:          cache.DependencyName,
		Probe:         redisstore.Probe(rdb),
		LatencyBudget: cfg.LatencyBudget(cache.DependencyName, health.DefaultLatencyBudget),
	})

	apiCfg, err := sportsapi.ConfigFromEnv()
	if err != nil {
		logger.Warn("sports API probe disabled", slog.Any("error", err))
		return
	}
	client := sportsapi.NewClient(apiCfg)
	monitor.Register(health.Check{
		Name:          sportsapi.DependencyName,
		Probe:         client.Probe(),
		LatencyBudget: cfg.LatencyBudget(sportsapi.DependencyName, health.DefaultLatencyBudget),
	})
}

// startScheduler registers the probe and sweep jobs and starts cron.
// Both schedules were validated during config loading, so a failure
// here means a code-level default is broken.
func startScheduler(ctx context.Context, cfg *config.Config, logger *slog.Logger, monitor *health.Monitor, manager *cache.Manager, grpcServer *health.GRPCServer) *cron.Cron {
	scheduler := cron.New()

	if _, err := scheduler.AddFunc(cfg.Health.ProbeSchedule, func() {
		grpcServer.Publish(monitor.RunCycle(ctx))
	}); err != nil {
		logger.Error("failed to schedule probe cycle",
			slog.String("schedule", cfg.Health.ProbeSchedule),
			slog.Any("error", err))
		os.Exit(1)
	}

	if _, err := scheduler.AddFunc(cfg.Cache.SweepSchedule, func() {
		manager.SweepExpired(ctx)
	}); err != nil {
		logger.Error("failed to schedule cache sweep",
			slog.String("schedule", cfg.Cache.SweepSchedule),
			slog.Any("error", err))
		os.Exit(1)
	}

	scheduler.Start()
	logger.Info("scheduler started",
		slog.String("probe_schedule", cfg.Health.ProbeSchedule),
		slog.String("sweep_schedule", cfg.Cache.SweepSchedule))
	return scheduler
}
