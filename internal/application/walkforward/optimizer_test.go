package walkforward

import (
	"context"
	"math"
	"testing"

	"github.com/alejandrodnm/stratlab/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreResult_BelowMinTradesIsExcluded(t *testing.T) {
	r := domain.BacktestResult{TotalTrades: 4, SharpeRatio: 3, ProfitFactor: 10, WinRate: 90}
	assert.True(t, math.IsInf(scoreResult(r, 5), -1))
}

func TestScoreResult_ClampsComponents(t *testing.T) {
	r := domain.BacktestResult{
		TotalTrades:  20,
		SharpeRatio:  10,            // clip a 2
		ProfitFactor: math.Inf(1),   // clip a 5
		WinRate:      100,
	}
	// maxDD 0 ⇒ componente de drawdown completo.
	want := 0.40*2 + 0.25*5 + 0.20*1 + 0.15*1
	assert.InDelta(t, want, scoreResult(r, 5), 1e-9)
}

func TestScoreResult_DrawdownPenalty(t *testing.T) {
	a := domain.BacktestResult{TotalTrades: 20, MaxDrawdownPct: 10}
	b := domain.BacktestResult{TotalTrades: 20, MaxDrawdownPct: 60} // > 50 ⇒ componente 0
	assert.Greater(t, scoreResult(a, 5), scoreResult(b, 5))
	assert.InDelta(t, 0.0, scoreResult(b, 5), 1e-9)
}

func TestTopHeap_KeepsBestN(t *testing.T) {
	h := &topHeap{limit: 2}
	for _, s := range []float64{1, 3, 2, math.Inf(-1), 5} {
		h.offer(candidate{score: s})
	}
	require.Equal(t, 2, h.Len())
	assert.Equal(t, 5.0, h.best())

	sorted := h.sortedDesc()
	assert.Equal(t, 5.0, sorted[0].score)
	assert.Equal(t, 3.0, sorted[1].score)
}

func TestSelectParams_WeightedAverageAnchoredToStep(t *testing.T) {
	top := []candidate{
		{params: map[string]float64{"p": 10}, score: 2},
		{params: map[string]float64{"p": 20}, score: 1},
	}
	ranges := []domain.ParameterRange{{Name: "p", Min: 0, Max: 30, Step: 5}}

	got := selectParams(top, ranges)
	// (2·10 + 1·20) / 3 = 13.33 → step 5 ⇒ 15
	assert.Equal(t, 15.0, got["p"])
}

func TestSelectParams_Fallbacks(t *testing.T) {
	assert.Nil(t, selectParams(nil, nil))

	single := []candidate{{params: map[string]float64{"p": 7}, score: 1}}
	assert.Equal(t, 7.0, selectParams(single, nil)["p"])

	// Peso total no positivo ⇒ el mejor a secas.
	negative := []candidate{
		{params: map[string]float64{"p": 7}, score: -0.5},
		{params: map[string]float64{"p": 9}, score: -1.5},
	}
	assert.Equal(t, 7.0, selectParams(negative, nil)["p"])
}

func TestOptimize_FindsKnownOptimum(t *testing.T) {
	ranges := []domain.ParameterRange{{Name: "x", Min: 0, Max: 20, Step: 1}}
	grid, err := GenerateGrid(ranges, 100, 1)
	require.NoError(t, err)

	// Score máximo (vía sharpe) en x=12.
	eval := func(params map[string]float64) domain.BacktestResult {
		x := params["x"]
		return domain.BacktestResult{
			TotalTrades: 20,
			SharpeRatio: 2 - math.Abs(x-12)/10,
		}
	}
	cfg := Config{TopN: 3, MinTrades: 5, StableChecks: 100, MinGridFraction: 1}.withDefaults()
	top := optimize(context.Background(), grid, eval, cfg, nil)

	require.NotEmpty(t, top)
	assert.Equal(t, 12.0, top[0].params["x"])
}

func TestOptimize_PanickingCandidateIsDropped(t *testing.T) {
	ranges := []domain.ParameterRange{{Name: "x", Min: 1, Max: 5, Step: 1}}
	grid, err := GenerateGrid(ranges, 100, 1)
	require.NoError(t, err)

	eval := func(params map[string]float64) domain.BacktestResult {
		if params["x"] == 3 {
			panic("boom")
		}
		return domain.BacktestResult{TotalTrades: 10, SharpeRatio: params["x"] / 10}
	}
	cfg := Config{TopN: 10, MinTrades: 5, StableChecks: 100, MinGridFraction: 1}.withDefaults()
	top := optimize(context.Background(), grid, eval, cfg, nil)

	require.Len(t, top, 4)
	for _, c := range top {
		assert.NotEqual(t, 3.0, c.params["x"])
	}
}
