// Package config loads kernelpool settings from flags, environment
// variables and an optional config file.
//
// Keys are namespaced by section, so the pool size is "pool.threads" in a
// YAML file and KERNELPOOL_POOL_THREADS in the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/born-ml/kernelpool/internal/parallel"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "KERNELPOOL"

// Common errors.
var (
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Config is the root configuration.
type Config struct {
	Pool Pool `mapstructure:"pool"`
	Log  Log  `mapstructure:"log"`
}

// Pool configures the thread pool. See parallel.Options for the meaning of
// every field. As there, a zero spin or sleep setting keeps the default and
// a negative one turns that stage off.
type Pool struct {
	Threads           int           `mapstructure:"threads" default:"-1"`
	Engine            string        `mapstructure:"engine" default:"ring"`
	QueueCapacity     int           `mapstructure:"queue_capacity" default:"1024"`
	Affinity          []int         `mapstructure:"affinity"`
	Name              string        `mapstructure:"name" default:"kernelpool"`
	DenormalAsZero    bool          `mapstructure:"denormal_as_zero"`
	SpinCount         int           `mapstructure:"spin_count" default:"64"`
	IdleMaxSleep      time.Duration `mapstructure:"idle_max_sleep" default:"1ms"`
	WaitMaxSleep      time.Duration `mapstructure:"wait_max_sleep" default:"50us"`
	SaturationRetries int           `mapstructure:"saturation_retries" default:"8"`
}

// Log configures the process logger.
type Log struct {
	Level  string `mapstructure:"level" default:"info"`
	Format string `mapstructure:"format" default:"console"` // "console" or "json".
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		panic(fmt.Sprintf("config: invalid default tags: %v", err))
	}
	return cfg
}

// Load reads v into a Config. Values come, in decreasing priority, from
// flags bound to v, KERNELPOOL_* environment variables, the config file set
// with v.SetConfigFile, and the defaults.
func Load(v *viper.Viper) (*Config, error) {
	cfg := Default()
	registerDefaults(v, cfg)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", v.ConfigFileUsed(), err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// registerDefaults makes every key known to v, which AutomaticEnv needs to
// resolve environment variables during Unmarshal.
func registerDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("pool.threads", cfg.Pool.Threads)
	v.SetDefault("pool.engine", cfg.Pool.Engine)
	v.SetDefault("pool.queue_capacity", cfg.Pool.QueueCapacity)
	v.SetDefault("pool.affinity", cfg.Pool.Affinity)
	v.SetDefault("pool.name", cfg.Pool.Name)
	v.SetDefault("pool.denormal_as_zero", cfg.Pool.DenormalAsZero)
	v.SetDefault("pool.spin_count", cfg.Pool.SpinCount)
	v.SetDefault("pool.idle_max_sleep", cfg.Pool.IdleMaxSleep)
	v.SetDefault("pool.wait_max_sleep", cfg.Pool.WaitMaxSleep)
	v.SetDefault("pool.saturation_retries", cfg.Pool.SaturationRetries)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
}

// Validate checks values that the pool and logger would otherwise reject
// later with a less specific error.
func (c *Config) Validate() error {
	switch parallel.Engine(c.Pool.Engine) {
	case parallel.EngineRing, parallel.EngineSlot:
	default:
		return fmt.Errorf("%w: pool.engine must be %q or %q, got %q",
			ErrInvalidConfig, parallel.EngineRing, parallel.EngineSlot, c.Pool.Engine)
	}
	if c.Pool.QueueCapacity < 1 {
		return fmt.Errorf("%w: pool.queue_capacity must be positive, got %d", ErrInvalidConfig, c.Pool.QueueCapacity)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %w", ErrInvalidConfig, err)
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		return fmt.Errorf("%w: log.format must be \"console\" or \"json\", got %q", ErrInvalidConfig, c.Log.Format)
	}
	return nil
}

// PoolOptions converts the pool section into options for parallel.New.
func (c *Config) PoolOptions(logger *zap.Logger) parallel.Options {
	return parallel.Options{
		NumThreads:        c.Pool.Threads,
		Engine:            parallel.Engine(c.Pool.Engine),
		QueueCapacity:     c.Pool.QueueCapacity,
		Affinity:          c.Pool.Affinity,
		Name:              c.Pool.Name,
		SetDenormalAsZero: c.Pool.DenormalAsZero,
		SpinCount:         c.Pool.SpinCount,
		IdleMaxSleep:      c.Pool.IdleMaxSleep,
		WaitMaxSleep:      c.Pool.WaitMaxSleep,
		SaturationRetries: c.Pool.SaturationRetries,
		Logger:            logger,
	}
}

// NewLogger builds the process logger described by l.
func NewLogger(l Log) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(l.Level)
	if err != nil {
		return nil, fmt.Errorf("%w: log.level: %w", ErrInvalidConfig, err)
	}

	var zc zap.Config
	switch l.Format {
	case "json":
		zc = zap.NewProductionConfig()
	case "console":
		zc = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, l.Format)
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
