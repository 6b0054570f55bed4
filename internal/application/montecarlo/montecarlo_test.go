package montecarlo

import (
	"context"
	"math"
	"testing"

	"github.com/alejandrodnm/stratlab/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// alternatingStrategy abre cada 10 barras y cierra 5 después.
type alternatingStrategy struct{}

func (alternatingStrategy) Name() string { return "alternating" }

func (alternatingStrategy) Execute(bars []domain.Bar, _ map[string]float64) []domain.Signal {
	sigs := make([]domain.Signal, 0, len(bars)/5)
	for i := 10; i+5 < len(bars); i += 10 {
		sigs = append(sigs,
			domain.Signal{Time: bars[i].Time, Type: domain.SignalBuy, BarIndex: i},
			domain.Signal{Time: bars[i+5].Time, Type: domain.SignalSell, BarIndex: i + 5},
		)
	}
	return sigs
}

func (alternatingStrategy) DefaultParams() map[string]float64 { return map[string]float64{} }
func (alternatingStrategy) WalkForwardParams() []string       { return nil }

func mcSettings() domain.Settings {
	return domain.NormalizeSettings(domain.Options{InitialCapital: 10000})
}

func mcBars(n int) []domain.Bar {
	bars := make([]domain.Bar, n)
	for i := range bars {
		c := 100 + 10*math.Sin(float64(i)/9)
		bars[i] = domain.Bar{
			Time: domain.TimeFromEpoch(int64(i) * 3600),
			Open: c - 0.5, High: c + 1, Low: c - 1, Close: c,
			Volume: 1000,
		}
	}
	return bars
}

func fixedTrades(pnls ...float64) []domain.Trade {
	trades := make([]domain.Trade, len(pnls))
	for i, pnl := range pnls {
		trades[i] = domain.Trade{
			EntryPrice: 100, Size: 100,
			PnL: pnl, PnLPercent: pnl / 10000 * 100,
		}
	}
	return trades
}

func TestTradeBootstrap_ZeroTradesNeverNaN(t *testing.T) {
	lab := New(Config{Simulations: 100, Seed: 1}, mcSettings())
	res, err := lab.TradeBootstrap(context.Background(), domain.BacktestResult{})
	require.NoError(t, err)

	assert.Equal(t, 100, res.Simulations)
	assert.Equal(t, 0.0, res.ProbabilityOfProfit)
	assert.Equal(t, 0.0, res.NetProfit.P50)
	assert.Equal(t, 0.0, res.Sharpe.P95)
	assert.False(t, math.IsNaN(res.RobustnessScore))
	assert.False(t, math.IsNaN(res.FragilityIndex))
	assert.False(t, math.IsNaN(res.TailRatio))
}

func TestTradeBootstrap_AllWinners(t *testing.T) {
	trades := fixedTrades(500, 600, 550, 700, 520, 610)
	original := domain.BacktestResult{Trades: trades, NetProfit: 3480, SharpeRatio: 2, TotalTrades: 6}

	lab := New(Config{Simulations: 400, Seed: 7}, mcSettings())
	res, err := lab.TradeBootstrap(context.Background(), original)
	require.NoError(t, err)

	// La perturbación (±5 bps + 2 bps sobre 10k de notional) es de unos
	// pocos dólares: nunca alcanza a dar vuelta un pnl de +500.
	assert.Equal(t, 1.0, res.ProbabilityOfProfit)
	assert.Greater(t, res.NetProfit.P5, 0.0)
	assert.True(t, res.NetProfit.P5 <= res.NetProfit.P50)
	assert.True(t, res.NetProfit.P50 <= res.NetProfit.P95)
	assert.Greater(t, res.RobustnessScore, 50.0)
	assert.Less(t, res.FragilityIndex, 50.0)
}

func TestTradeBootstrap_DeterministicBySeed(t *testing.T) {
	trades := fixedTrades(500, -300, 200, -100, 400)
	original := domain.BacktestResult{Trades: trades, NetProfit: 700, TotalTrades: 5}

	a, err := New(Config{Simulations: 200, Seed: 11}, mcSettings()).TradeBootstrap(context.Background(), original)
	require.NoError(t, err)
	b, err := New(Config{Simulations: 200, Seed: 11}, mcSettings()).TradeBootstrap(context.Background(), original)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := New(Config{Simulations: 200, Seed: 12}, mcSettings()).TradeBootstrap(context.Background(), original)
	require.NoError(t, err)
	assert.NotEqual(t, a.NetProfit, c.NetProfit, "seeds distintas ⇒ draws distintos")
}

func TestTradeBootstrap_PerturbationCostsLowerTheMean(t *testing.T) {
	// Trades idénticos: sin spread el bootstrap reproduciría exactamente
	// el pnl original; el spread fijo corre la mediana hacia abajo.
	trades := fixedTrades(100, 100, 100, 100)
	original := domain.BacktestResult{Trades: trades, NetProfit: 400, TotalTrades: 4}

	lab := New(Config{Simulations: 500, Seed: 3, SpreadBps: 10}, mcSettings())
	res, err := lab.TradeBootstrap(context.Background(), original)
	require.NoError(t, err)

	// 10 bps sobre 10k = 10 por trade, 40 por draw.
	assert.InDelta(t, 360, res.NetProfit.P50, 10)
	assert.Less(t, res.NetProfit.P50, 400.0)
}

func TestTradeBootstrap_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	trades := fixedTrades(100, -50)
	lab := New(Config{Simulations: 100, Seed: 1}, mcSettings())
	_, err := lab.TradeBootstrap(ctx, domain.BacktestResult{Trades: trades})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBlockBootstrap_RunsFullPipeline(t *testing.T) {
	bars := mcBars(300)
	lab := New(Config{Simulations: 50, Seed: 5, BlockSize: 25, MaxLatencyShift: 1}, mcSettings())

	res, err := lab.BlockBootstrap(context.Background(), bars, alternatingStrategy{}, nil, domain.BacktestResult{NetProfit: 100, TotalTrades: 20})
	require.NoError(t, err)

	assert.Equal(t, 50, res.Simulations)
	assert.False(t, math.IsNaN(res.NetProfit.P50))
	assert.False(t, math.IsNaN(res.RobustnessScore))
	assert.GreaterOrEqual(t, res.DrawdownPct.P5, 0.0)
	assert.LessOrEqual(t, res.DrawdownPct.P95, 100.0)
}

func TestBlockBootstrap_DeterministicBySeed(t *testing.T) {
	bars := mcBars(200)
	orig := domain.BacktestResult{NetProfit: 100, TotalTrades: 10}

	a, err := New(Config{Simulations: 40, Seed: 9}, mcSettings()).BlockBootstrap(context.Background(), bars, alternatingStrategy{}, nil, orig)
	require.NoError(t, err)
	b, err := New(Config{Simulations: 40, Seed: 9}, mcSettings()).BlockBootstrap(context.Background(), bars, alternatingStrategy{}, nil, orig)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestBlockBootstrap_EmptySeries(t *testing.T) {
	lab := New(Config{Simulations: 10}, mcSettings())
	_, err := lab.BlockBootstrap(context.Background(), nil, alternatingStrategy{}, nil, domain.BacktestResult{})
	assert.Error(t, err)
}
