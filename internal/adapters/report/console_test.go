package report_test

import (
	"bytes"
	"math"
	"testing"

	"github.com/alejandrodnm/stratlab/internal/adapters/report"
	"github.com/alejandrodnm/stratlab/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestConsole_Backtest(t *testing.T) {
	var buf bytes.Buffer
	c := report.NewConsoleWriter(&buf)

	c.Backtest("ema_cross", domain.BacktestResult{
		TotalTrades:    3,
		WinningTrades:  2,
		LosingTrades:   1,
		WinRate:        66.7,
		NetProfit:      1234.56,
		ProfitFactor:   2.5,
		SharpeRatio:    1.31,
		MaxDrawdownPct: 8.2,
		Trades: []domain.Trade{
			{Direction: domain.DirectionLong, EntryPrice: 100, ExitPrice: 110, Size: 10, PnL: 100, PnLPercent: 10, Reason: domain.ExitSignal},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "ema_cross")
	assert.Contains(t, out, "3 (2W/1L)")
	assert.Contains(t, out, "1234.56")
	assert.Contains(t, out, "signal")
}

func TestConsole_Backtest_InfiniteProfitFactor(t *testing.T) {
	var buf bytes.Buffer
	c := report.NewConsoleWriter(&buf)

	c.Backtest("ema_cross", domain.BacktestResult{
		TotalTrades:  1,
		ProfitFactor: math.Inf(1),
	})
	assert.Contains(t, buf.String(), "INF")
}

func TestConsole_WalkForward(t *testing.T) {
	var buf bytes.Buffer
	c := report.NewConsoleWriter(&buf)

	c.WalkForward("rsi_reversion", domain.WalkForwardResult{
		Windows: []domain.WalkForwardWindow{
			{
				Index:           0,
				OptimizedParams: map[string]float64{"period": 12},
				InSample:        domain.BacktestResult{SharpeRatio: 1.5},
				OutOfSample:     domain.BacktestResult{SharpeRatio: 0.9, NetProfit: 250, TotalTrades: 7},
			},
		},
		Combined:              domain.BacktestResult{NetProfit: 250, TotalTrades: 7},
		WalkForwardEfficiency: 0.6,
		ParameterStability:    85,
		RobustnessScore:       72,
	})

	out := buf.String()
	assert.Contains(t, out, "rsi_reversion")
	assert.Contains(t, out, "period=12")
	assert.Contains(t, out, "72/100")
	assert.Contains(t, out, "ROBUSTA")
}

func TestConsole_MonteCarlo(t *testing.T) {
	var buf bytes.Buffer
	c := report.NewConsoleWriter(&buf)

	c.MonteCarlo("ema_cross", domain.MonteCarloResult{
		Simulations:         500,
		NetProfit:           domain.Distribution{P5: -100, P50: 300, P95: 800},
		ProbabilityOfProfit: 0.82,
		RobustnessScore:     45,
		FragilityIndex:      38,
	})

	out := buf.String()
	assert.Contains(t, out, "500 sims")
	assert.Contains(t, out, "82.0%")
	assert.Contains(t, out, "FRÁGIL")
}
