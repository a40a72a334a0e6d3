// Package config loads the resilience layer's runtime configuration:
// retry policies, breaker thresholds, cache bounds, health schedules
// and listen addresses. Settings come from a YAML file with
// environment overrides, loaded once at startup.
//
// Loading is fail-open: a missing or broken file, a bad field, or an
// invalid override falls back to a default and lands in Warnings
// instead of failing startup. The daemon fronting failing dependencies
// must come up even when its own configuration is damaged.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	loader "oddsline-core/internal/pkg/config"
	"oddsline-core/pkg/resilience"
)

const (
	// EnvPath names the environment variable pointing at the config
	// file.
	EnvPath = "RESILIENCE_CONFIG_PATH"

	// DefaultPath is used when EnvPath is unset.
	DefaultPath = "config/resilience.yml"

	defaultProbeSchedule = "@every 15s"
	defaultSweepSchedule = "@every 1m"
	defaultMaxEntries    = 10000
	defaultTTL           = 5 * time.Minute
)

// Duration is a time.Duration that unmarshals from YAML duration
// strings such as "500ms" or "1h30m". yaml.v3 dropped v2's native
// duration parsing, so the field type carries it.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("duration must be a string such as \"500ms\": %w", err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// RetrySettings overrides fields of a resilience.RetryConfig. Zero
// fields inherit whatever the code default for the dependency says.
type RetrySettings struct {
	MaxAttempts    int      `yaml:"max_attempts"`
	BaseDelay      Duration `yaml:"base_delay"`
	MaxDelay       Duration `yaml:"max_delay"`
	JitterRatio    float64  `yaml:"jitter_ratio"`
	TotalBudget    Duration `yaml:"total_budget"`
	AttemptTimeout Duration `yaml:"attempt_timeout"`
}

func (s RetrySettings) apply(base resilience.RetryConfig) resilience.RetryConfig {
	if s.MaxAttempts > 0 {
		base.MaxAttempts = s.MaxAttempts
	}
	if s.BaseDelay > 0 {
		base.BaseDelay = s.BaseDelay.Std()
	}
	if s.MaxDelay > 0 {
		base.MaxDelay = s.MaxDelay.Std()
	}
	if s.JitterRatio > 0 {
		base.JitterRatio = s.JitterRatio
	}
	if s.TotalBudget > 0 {
		base.TotalBudget = s.TotalBudget.Std()
	}
	if s.AttemptTimeout > 0 {
		base.AttemptTimeout = s.AttemptTimeout.Std()
	}
	return base
}

func (s RetrySettings) validate() error {
	if s.MaxAttempts < 0 {
		return fmt.Errorf("max_attempts must not be negative, got %d", s.MaxAttempts)
	}
	if s.BaseDelay < 0 {
		return fmt.Errorf("base_delay must not be negative, got %v", s.BaseDelay.Std())
	}
	if s.MaxDelay < 0 {
		return fmt.Errorf("max_delay must not be negative, got %v", s.MaxDelay.Std())
	}
	if s.BaseDelay > 0 && s.MaxDelay > 0 && s.BaseDelay > s.MaxDelay {
		return fmt.Errorf("base_delay %v exceeds max_delay %v", s.BaseDelay.Std(), s.MaxDelay.Std())
	}
	if s.JitterRatio < 0 || s.JitterRatio > 1.0 {
		return fmt.Errorf("jitter_ratio must be within 0.0 to 1.0, got %v", s.JitterRatio)
	}
	if s.TotalBudget < 0 {
		return fmt.Errorf("total_budget must not be negative, got %v", s.TotalBudget.Std())
	}
	if s.AttemptTimeout < 0 {
		return fmt.Errorf("attempt_timeout must not be negative, got %v", s.AttemptTimeout.Std())
	}
	return nil
}

// BreakerSettings overrides fields of a resilience.BreakerConfig.
type BreakerSettings struct {
	FailureThreshold int      `yaml:"failure_threshold"`
	Window           Duration `yaml:"window"`
	Cooldown         Duration `yaml:"cooldown"`
}

func (s BreakerSettings) apply(base resilience.BreakerConfig) resilience.BreakerConfig {
	if s.FailureThreshold > 0 {
		base.FailureThreshold = s.FailureThreshold
	}
	if s.Window > 0 {
		base.Window = s.Window.Std()
	}
	if s.Cooldown > 0 {
		base.Cooldown = s.Cooldown.Std()
	}
	return base
}

func (s BreakerSettings) validate() error {
	if s.FailureThreshold < 0 {
		return fmt.Errorf("failure_threshold must not be negative, got %d", s.FailureThreshold)
	}
	if s.Window < 0 {
		return fmt.Errorf("window must not be negative, got %v", s.Window.Std())
	}
	if s.Cooldown < 0 {
		return fmt.Errorf("cooldown must not be negative, got %v", s.Cooldown.Std())
	}
	return nil
}

// PolicySettings groups the retry and breaker overrides for one
// dependency (or for the defaults block).
type PolicySettings struct {
	Retry   RetrySettings   `yaml:"retry"`
	Breaker BreakerSettings `yaml:"breaker"`
}

// CacheSettings bounds the cache manager and its local fallback store.
type CacheSettings struct {
	MaxEntries    int      `yaml:"max_entries"`
	DefaultTTL    Duration `yaml:"default_ttl"`
	SweepSchedule string   `yaml:"sweep_schedule"`
}

// HealthSettings drives the health monitor.
type HealthSettings struct {
	ProbeSchedule  string              `yaml:"probe_schedule"`
	LatencyBudgets map[string]Duration `yaml:"latency_budgets"`
}

// ServerSettings holds the listen addresses of healthd's surfaces.
type ServerSettings struct {
	HealthAddr  string `yaml:"health_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
	GRPCAddr    string `yaml:"grpc_addr"`
}

// Config is the loaded resilience configuration.
type Config struct {
	Defaults     PolicySettings            `yaml:"defaults"`
	Dependencies map[string]PolicySettings `yaml:"dependencies"`
	Cache        CacheSettings             `yaml:"cache"`
	Health       HealthSettings            `yaml:"health"`
	Servers      ServerSettings            `yaml:"servers"`

	// Warnings collects every fail-open fallback applied during
	// loading, for main to log and count.
	Warnings []string `yaml:"-"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Cache: CacheSettings{
			MaxEntries:    defaultMaxEntries,
			DefaultTTL:    Duration(defaultTTL),
			SweepSchedule: defaultSweepSchedule,
		},
		Health: HealthSettings{
			ProbeSchedule: defaultProbeSchedule,
		},
		Servers: ServerSettings{
			HealthAddr:  ":9091",
			MetricsAddr: ":9090",
			GRPCAddr:    ":9092",
		},
	}
}

// Load reads the configuration from the file named by
// RESILIENCE_CONFIG_PATH (default config/resilience.yml), resolves
// ${VAR} references against the environment, applies environment
// overrides, and validates fail-open.
func Load() *Config {
	path := os.Getenv(EnvPath)
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			cfg = Default()
			cfg.warnf("invalid config file %s: %v, using defaults", path, err)
		}
	case os.IsNotExist(err) && !explicit:
		// Running without a file is the documented default setup.
		slog.Debug("no resilience config file, using defaults",
			slog.String("path", path))
	default:
		cfg.warnf("config file %s unreadable: %v, using defaults", path, err)
	}

	cfg.applyEnvOverrides()
	cfg.validate()

	slog.Info("resilience configuration loaded",
		slog.String("path", path),
		slog.Int("dependency_overrides", len(cfg.Dependencies)),
		slog.Int("warnings", len(cfg.Warnings)))

	return cfg
}

// RetryFor resolves the retry configuration for a dependency: the code
// default overlaid with the defaults block, overlaid with the
// dependency's own block.
func (c *Config) RetryFor(dependency string, base resilience.RetryConfig) resilience.RetryConfig {
	merged := c.Defaults.Retry.apply(base)
	if dep, ok := c.Dependencies[dependency]; ok {
		merged = dep.Retry.apply(merged)
	}
	return merged
}

// BreakerFor resolves the breaker configuration for a dependency, same
// overlay order as RetryFor.
func (c *Config) BreakerFor(dependency string, base resilience.BreakerConfig) resilience.BreakerConfig {
	merged := c.Defaults.Breaker.apply(base)
	if dep, ok := c.Dependencies[dependency]; ok {
		merged = dep.Breaker.apply(merged)
	}
	merged.Name = dependency
	return merged
}

// BreakerDefaults resolves the breaker configuration seeded into the
// registry for dependencies without a block of their own: the code
// default overlaid with the defaults block only.
func (c *Config) BreakerDefaults(base resilience.BreakerConfig) resilience.BreakerConfig {
	return c.Defaults.Breaker.apply(base)
}

// LatencyBudget returns the probe latency budget configured for a
// dependency, or fallback when none is.
func (c *Config) LatencyBudget(dependency string, fallback time.Duration) time.Duration {
	if d, ok := c.Health.LatencyBudgets[dependency]; ok && d > 0 {
		return d.Std()
	}
	return fallback
}

func (c *Config) applyEnvOverrides() {
	probe := loader.LoadEnvWithFallback(
		"RESILIENCE_PROBE_SCHEDULE", c.Health.ProbeSchedule, loader.ValidateCronSchedule)
	c.Health.ProbeSchedule = probe.Value.(string)
	c.collect(probe)

	sweep := loader.LoadEnvWithFallback(
		"RESILIENCE_SWEEP_SCHEDULE", c.Cache.SweepSchedule, loader.ValidateCronSchedule)
	c.Cache.SweepSchedule = sweep.Value.(string)
	c.collect(sweep)

	entries := loader.LoadEnvInt("CACHE_MAX_ENTRIES", c.Cache.MaxEntries, func(v int) error {
		return loader.ValidateIntRange(v, 1, 10_000_000)
	})
	c.Cache.MaxEntries = entries.Value.(int)
	c.collect(entries)

	ttl := loader.LoadEnvDuration(
		"CACHE_DEFAULT_TTL", c.Cache.DefaultTTL.Std(), loader.ValidatePositiveDuration)
	c.Cache.DefaultTTL = Duration(ttl.Value.(time.Duration))
	c.collect(ttl)

	c.Servers.HealthAddr = loader.LoadEnvString("HEALTH_ADDR", c.Servers.HealthAddr)
	c.Servers.MetricsAddr = loader.LoadEnvString("METRICS_ADDR", c.Servers.MetricsAddr)
	c.Servers.GRPCAddr = loader.LoadEnvString("GRPC_HEALTH_ADDR", c.Servers.GRPCAddr)
}

func (c *Config) collect(result loader.ConfigLoadResult) {
	if result.FallbackApplied {
		for _, warning := range result.Warnings {
			c.warn(warning)
		}
	}
}

// validate drops invalid blocks field by field; the resolved
// configuration that reaches the executor is always runnable.
func (c *Config) validate() {
	if err := loader.ValidateCronSchedule(c.Health.ProbeSchedule); err != nil {
		c.warnf("invalid probe_schedule: %v, using %q", err, defaultProbeSchedule)
		c.Health.ProbeSchedule = defaultProbeSchedule
	}
	if err := loader.ValidateCronSchedule(c.Cache.SweepSchedule); err != nil {
		c.warnf("invalid sweep_schedule: %v, using %q", err, defaultSweepSchedule)
		c.Cache.SweepSchedule = defaultSweepSchedule
	}
	if c.Cache.MaxEntries < 1 {
		c.warnf("cache max_entries must be at least 1, got %d, using %d",
			c.Cache.MaxEntries, defaultMaxEntries)
		c.Cache.MaxEntries = defaultMaxEntries
	}
	if c.Cache.DefaultTTL <= 0 {
		c.warnf("cache default_ttl must be positive, got %v, using %v",
			c.Cache.DefaultTTL.Std(), defaultTTL)
		c.Cache.DefaultTTL = Duration(defaultTTL)
	}

	if err := c.Defaults.Retry.validate(); err != nil {
		c.warnf("invalid defaults.retry: %v, ignoring block", err)
		c.Defaults.Retry = RetrySettings{}
	}
	if err := c.Defaults.Breaker.validate(); err != nil {
		c.warnf("invalid defaults.breaker: %v, ignoring block", err)
		c.Defaults.Breaker = BreakerSettings{}
	}

	for name, policy := range c.Dependencies {
		if err := policy.Retry.validate(); err != nil {
			c.warnf("invalid dependencies.%s.retry: %v, ignoring block", name, err)
			policy.Retry = RetrySettings{}
		}
		if err := policy.Breaker.validate(); err != nil {
			c.warnf("invalid dependencies.%s.breaker: %v, ignoring block", name, err)
			policy.Breaker = BreakerSettings{}
		}
		c.Dependencies[name] = policy
	}

	for name, budget := range c.Health.LatencyBudgets {
		if budget <= 0 {
			c.warnf("latency_budgets.%s must be positive, got %v, ignoring", name, budget.Std())
			delete(c.Health.LatencyBudgets, name)
		}
	}
}

func (c *Config) warnf(format string, args ...any) {
	c.warn(fmt.Sprintf(format, args...))
}

func (c *Config) warn(warning string) {
	c.Warnings = append(c.Warnings, warning)
	slog.Warn("configuration fallback", slog.String("warning", warning))
}
