package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/alejandrodnm/stratlab/config"
	"github.com/alejandrodnm/stratlab/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
data:
  synthetic: 2000
engine:
  initial_capital: 25000
  commission_rate: 0.001
  risk_mode: advanced
  stop_loss_atr: 2
  trade_direction: both
walkforward:
  optimization_bars: 400
  test_bars: 100
  ranges:
    - name: fast
      min: 5
      max: 20
      step: 1
storage:
  dsn: ":memory:"
log:
  level: debug
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, 2000, cfg.Data.Synthetic)
	assert.Equal(t, 400, cfg.WalkForward.OptimizationBars)
	assert.Equal(t, ":memory:", cfg.Storage.DSN)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Defaults rellenados
	assert.Equal(t, 1000, cfg.MonteCarlo.Simulations)
	assert.Equal(t, "text", cfg.Log.Format)

	o := cfg.Engine.Options()
	assert.Equal(t, 25000.0, o.InitialCapital)
	assert.Equal(t, domain.RiskAdvanced, o.RiskMode)
	assert.Equal(t, domain.DirectionBoth, o.TradeDirection)
	assert.Equal(t, 2.0, o.StopLossATR)

	ranges := cfg.WalkForward.DomainRanges()
	require.Len(t, ranges, 1)
	assert.Equal(t, "fast", ranges[0].Name)
	require.NoError(t, ranges[0].Validate())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("STRATLAB_DSN", "override.db")

	cfg, err := config.Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, "override.db", cfg.Storage.DSN)
}

func TestDefault(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, "stratlab.db", cfg.Storage.DSN)
	assert.Greater(t, cfg.Data.Synthetic, 0)
	assert.Greater(t, cfg.WalkForward.OptimizationBars, 0)
}
