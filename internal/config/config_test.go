package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/born-ml/kernelpool/internal/parallel"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, -1, cfg.Pool.Threads)
	assert.Equal(t, "ring", cfg.Pool.Engine)
	assert.Equal(t, 1024, cfg.Pool.QueueCapacity)
	assert.Equal(t, 50*time.Microsecond, cfg.Pool.WaitMaxSleep)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Empty(t, cfg.Pool.Affinity)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kernelpool.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
pool:
  threads: 0
  engine: slot
  idle_max_sleep: 250us
  affinity: [0, 2]
log:
  format: json
`), 0o600))

	t.Setenv("KERNELPOOL_POOL_SPIN_COUNT", "7")
	t.Setenv("KERNELPOOL_LOG_LEVEL", "debug")

	v := viper.New()
	v.SetConfigFile(path)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, 0, cfg.Pool.Threads)
	assert.Equal(t, "slot", cfg.Pool.Engine)
	assert.Equal(t, 250*time.Microsecond, cfg.Pool.IdleMaxSleep)
	assert.Equal(t, []int{0, 2}, cfg.Pool.Affinity)
	assert.Equal(t, 7, cfg.Pool.SpinCount)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 1024, cfg.Pool.QueueCapacity)
}

func TestLoad_MissingFile(t *testing.T) {
	v := viper.New()
	v.SetConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load(v)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Config)
	}{
		{"unknown engine", func(c *Config) { c.Pool.Engine = "fifo" }},
		{"zero capacity", func(c *Config) { c.Pool.QueueCapacity = 0 }},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }},
	}

	require.NoError(t, Default().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mod(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestPoolOptions(t *testing.T) {
	cfg := Default()
	cfg.Pool.Threads = 2
	cfg.Pool.Engine = "slot"

	logger := zap.NewNop()
	opts := cfg.PoolOptions(logger)
	assert.Equal(t, 2, opts.NumThreads)
	assert.Equal(t, parallel.EngineSlot, opts.Engine)
	assert.Equal(t, 64, opts.SpinCount)
	assert.Same(t, logger, opts.Logger)

	p, err := parallel.New(opts)
	require.NoError(t, err)
	defer p.Close()
	assert.Equal(t, 2, p.NumThreads())
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"console", "json"} {
		logger, err := NewLogger(Log{Level: "warn", Format: format})
		require.NoError(t, err)
		assert.False(t, logger.Core().Enabled(zap.InfoLevel))
		assert.True(t, logger.Core().Enabled(zap.WarnLevel))
	}

	_, err := NewLogger(Log{Level: "info", Format: "xml"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
