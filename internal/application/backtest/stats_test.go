package backtest

import (
	"math"
	"testing"

	"github.com/alejandrodnm/stratlab/internal/domain"
	"github.com/alejandrodnm/stratlab/internal/indicators"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccumulator_EmptyIsAllZeros(t *testing.T) {
	r := NewAccumulator(10000).Result()

	assert.Equal(t, 0, r.TotalTrades)
	assert.Equal(t, 0.0, r.NetProfit)
	assert.Equal(t, 0.0, r.WinRate)
	assert.Equal(t, 0.0, r.SharpeRatio)
	assert.Equal(t, 0.0, r.ProfitFactor)
	assert.Equal(t, 0.0, r.MaxDrawdownPct)
}

func TestAccumulator_ProfitFactorInfinityOnlyWithoutLosses(t *testing.T) {
	a := NewAccumulator(10000)
	a.AddTrade(100, 1)
	a.AddTrade(50, 0.5)
	assert.True(t, math.IsInf(a.Result().ProfitFactor, 1))

	b := NewAccumulator(10000)
	b.AddTrade(-100, -1)
	assert.Equal(t, 0.0, b.Result().ProfitFactor)

	c := NewAccumulator(10000)
	c.AddTrade(100, 1)
	c.AddTrade(-50, -0.5)
	assert.InDelta(t, 2.0, c.Result().ProfitFactor, 1e-9)
}

func TestAccumulator_SharpeZeroWithFewTradesOrZeroVariance(t *testing.T) {
	a := NewAccumulator(10000)
	a.AddTrade(100, 1)
	assert.Equal(t, 0.0, a.Result().SharpeRatio)

	b := NewAccumulator(10000)
	b.AddTrade(100, 1)
	b.AddTrade(100, 1)
	b.AddTrade(100, 1)
	assert.Equal(t, 0.0, b.Result().SharpeRatio, "varianza cero ⇒ sharpe 0")
}

func TestAccumulator_Expectancy(t *testing.T) {
	a := NewAccumulator(10000)
	a.AddTrade(100, 1)
	a.AddTrade(200, 2)
	a.AddTrade(-100, -1)
	a.AddTrade(-50, -0.5)

	r := a.Result()
	// winRate 0.5, avgWin 150, lossRate 0.5, avgLoss -75
	assert.InDelta(t, 0.5*150-0.5*75, r.Expectancy, 1e-9)
	assert.InDelta(t, 50.0, r.WinRate, 1e-9)
	assert.InDelta(t, 150.0, r.AvgWin, 1e-9)
	assert.InDelta(t, -75.0, r.AvgLoss, 1e-9)
}

func TestAccumulator_Drawdown(t *testing.T) {
	a := NewAccumulator(1000)
	for _, eq := range []float64{1000, 1200, 900, 1100, 800} {
		a.AddEquity(eq)
	}
	r := a.Result()
	assert.InDelta(t, 400.0, r.MaxDrawdown, 1e-9) // peak 1200 → 800
	assert.InDelta(t, 400.0/1200*100, r.MaxDrawdownPct, 1e-9)
}

func TestCompactMatchesFullVariant(t *testing.T) {
	bars := waveBars(250)
	signals := make([]domain.Signal, 0)
	for i := 20; i < 230; i += 12 {
		signals = append(signals, buyAt(bars, i, 0), sellAt(bars, i+5, 0))
	}

	st := domain.NormalizeSettings(domain.Options{
		InitialCapital: 10000,
		StopLossATR:    3,
		TakeProfitATR:  6,
		CommissionRate: 0.0005,
		SlippageBps:    3,
	})
	ds := indicators.NewDataset(bars)

	full := NewEngine(st).Run(ds, signals)
	compact := NewEngine(st).RunCompact(ds, signals)

	require.Greater(t, full.TotalTrades, 2)
	assert.Nil(t, compact.Trades)
	assert.Nil(t, compact.EquityCurve)

	assert.Equal(t, full.TotalTrades, compact.TotalTrades)
	assert.Equal(t, full.WinningTrades, compact.WinningTrades)
	assert.Equal(t, full.LosingTrades, compact.LosingTrades)
	assert.InDelta(t, full.NetProfit, compact.NetProfit, 1e-9)
	assert.InDelta(t, full.NetProfitPercent, compact.NetProfitPercent, 1e-9)
	assert.InDelta(t, full.WinRate, compact.WinRate, 1e-9)
	assert.InDelta(t, full.Expectancy, compact.Expectancy, 1e-9)
	assert.InDelta(t, full.AvgTrade, compact.AvgTrade, 1e-9)
	assert.InDelta(t, full.ProfitFactor, compact.ProfitFactor, 1e-9)
	assert.InDelta(t, full.SharpeRatio, compact.SharpeRatio, 1e-9)
	assert.InDelta(t, full.MaxDrawdown, compact.MaxDrawdown, 1e-9)
	assert.InDelta(t, full.MaxDrawdownPct, compact.MaxDrawdownPct, 1e-9)
}

func TestCompactMatchesFullVariant_BothDirections(t *testing.T) {
	bars := waveBars(250)
	signals := make([]domain.Signal, 0)
	for i := 20; i < 230; i += 18 {
		signals = append(signals, buyAt(bars, i, 0), sellAt(bars, i+8, 0))
	}

	st := domain.NormalizeSettings(domain.Options{
		InitialCapital: 10000,
		TradeDirection: domain.DirectionBoth,
		CommissionRate: 0.001,
	})
	ds := indicators.NewDataset(bars)

	full := NewEngine(st).Run(ds, signals)
	compact := NewEngine(st).RunCompact(ds, signals)

	assert.Equal(t, full.TotalTrades, compact.TotalTrades)
	assert.InDelta(t, full.NetProfit, compact.NetProfit, 1e-9)
	assert.InDelta(t, full.MaxDrawdownPct, compact.MaxDrawdownPct, 1e-9)
	assert.InDelta(t, full.SharpeRatio, compact.SharpeRatio, 1e-6)
}
