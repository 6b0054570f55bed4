package backtest

// stats.go — agregación de trades + equity a un BacktestResult.
//
// Dos variantes con los mismos escalares:
//   - Summarize: recorre arrays materializados y los adjunta al resultado.
//   - Accumulator: actualización online (Welford) sin materializar nada;
//     es la que usan el grid search y Monte Carlo para no acumular memoria.

import (
	"math"

	"github.com/alejandrodnm/stratlab/internal/domain"
)

// Summarize calcula el resultado completo a partir de los trades y la
// curva de equity, y adjunta ambos arrays al resultado.
func Summarize(trades []domain.Trade, equity []domain.EquityPoint, initialCapital float64) domain.BacktestResult {
	acc := NewAccumulator(initialCapital)
	for _, t := range trades {
		acc.AddTrade(t.PnL, t.PnLPercent)
	}
	for _, p := range equity {
		acc.AddEquity(p.Equity)
	}
	r := acc.Result()
	r.Trades = trades
	r.EquityCurve = equity
	return r
}

// Accumulator es la variante compacta: estado escalar O(1), nunca
// materializa arrays por-trade ni por-barra.
type Accumulator struct {
	initialCapital float64

	n      int
	wins   int
	losses int

	netProfit   float64
	grossProfit float64
	grossLoss   float64 // magnitud positiva

	// Welford sobre pnlPercent.
	mean float64
	m2   float64

	peak     float64
	maxDD    float64
	maxDDPct float64
}

// NewAccumulator crea un acumulador con el capital inicial como peak.
func NewAccumulator(initialCapital float64) *Accumulator {
	return &Accumulator{initialCapital: initialCapital, peak: initialCapital}
}

// AddTrade incorpora un trade cerrado (pnl neto y pnl % sobre notional).
func (a *Accumulator) AddTrade(pnl, pnlPercent float64) {
	a.n++
	a.netProfit += pnl
	switch {
	case pnl > 0:
		a.wins++
		a.grossProfit += pnl
	case pnl < 0:
		a.losses++
		a.grossLoss += -pnl
	}

	delta := pnlPercent - a.mean
	a.mean += delta / float64(a.n)
	a.m2 += delta * (pnlPercent - a.mean)
}

// AddEquity incorpora un punto de la curva de equity (peak corriente).
func (a *Accumulator) AddEquity(equity float64) {
	if equity > a.peak {
		a.peak = equity
	}
	dd := a.peak - equity
	if dd > a.maxDD {
		a.maxDD = dd
	}
	if a.peak > 0 {
		if pct := dd / a.peak * 100; pct > a.maxDDPct {
			a.maxDDPct = pct
		}
	}
}

// Result produce el resumen escalar. Trades y EquityCurve quedan nil.
func (a *Accumulator) Result() domain.BacktestResult {
	r := domain.BacktestResult{
		NetProfit:      a.netProfit,
		TotalTrades:    a.n,
		WinningTrades:  a.wins,
		LosingTrades:   a.losses,
		MaxDrawdown:    a.maxDD,
		MaxDrawdownPct: a.maxDDPct,
	}
	if a.initialCapital != 0 {
		r.NetProfitPercent = a.netProfit / a.initialCapital * 100
	}
	if a.n == 0 {
		return r
	}

	r.AvgTrade = a.netProfit / float64(a.n)
	r.WinRate = float64(a.wins) / float64(a.n) * 100
	if a.wins > 0 {
		r.AvgWin = a.grossProfit / float64(a.wins)
	}
	if a.losses > 0 {
		r.AvgLoss = -a.grossLoss / float64(a.losses)
	}

	// expectancy = winRate·avgWin − lossRate·avgLoss
	winRate := float64(a.wins) / float64(a.n)
	lossRate := float64(a.losses) / float64(a.n)
	r.Expectancy = winRate*r.AvgWin + lossRate*r.AvgLoss

	// Profit factor: +Inf solo si hay profit y cero pérdidas.
	switch {
	case a.grossLoss > 0:
		r.ProfitFactor = a.grossProfit / a.grossLoss
	case a.grossProfit > 0:
		r.ProfitFactor = math.Inf(1)
	default:
		r.ProfitFactor = 0
	}

	// Sharpe por-trade: media/desviación de pnlPercent; 0 con <2 trades
	// o varianza cero.
	if a.n >= 2 {
		variance := a.m2 / float64(a.n-1)
		if variance > 0 {
			r.SharpeRatio = a.mean / math.Sqrt(variance)
		}
	}
	return r
}
