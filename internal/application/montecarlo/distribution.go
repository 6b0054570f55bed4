package montecarlo

// distribution.go — agregación post-merge de los draws: percentiles,
// probabilidades y los scores compuestos de robustez y fragilidad.

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/alejandrodnm/stratlab/internal/domain"
)

// aggregate condensa los draws en un MonteCarloResult. Siempre corre en
// una sola goroutine, después de que todos los workers terminaron.
func (l *Lab) aggregate(draws []domain.SimulationResult, original domain.SimulationResult) domain.MonteCarloResult {
	profits := make([]float64, len(draws))
	drawdowns := make([]float64, len(draws))
	sharpes := make([]float64, len(draws))

	profitable, beat := 0, 0
	for i, d := range draws {
		profits[i] = d.NetProfit
		drawdowns[i] = d.MaxDrawdownPct
		sharpes[i] = d.SharpeRatio
		if d.NetProfit > 0 {
			profitable++
		}
		if d.NetProfit > original.NetProfit {
			beat++
		}
	}

	res := domain.MonteCarloResult{
		Simulations: len(draws),
		NetProfit:   percentiles(profits),
		DrawdownPct: percentiles(drawdowns),
		Sharpe:      percentiles(sharpes),
		Original:    original,
	}
	if len(draws) > 0 {
		res.ProbabilityOfProfit = float64(profitable) / float64(len(draws))
		res.ProbabilityOfBeat = float64(beat) / float64(len(draws))
	}

	res.ProbabilisticSharpe = probabilisticSharpe(original.SharpeRatio, sharpes)
	res.DeflatedSharpe = deflatedSharpe(original.SharpeRatio, l.cfg.Trials, original.TotalTrades)
	if res.NetProfit.P50 != 0 {
		res.TailRatio = math.Abs(res.NetProfit.P5 / res.NetProfit.P50)
	}

	res.RobustnessScore = robustness(res)
	res.FragilityIndex = fragility(res, profits, original)
	return res
}

// percentiles calcula la distribución 5/25/50/75/95 de una métrica.
func percentiles(values []float64) domain.Distribution {
	if len(values) == 0 {
		return domain.Distribution{}
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	q := func(p float64) float64 { return stat.Quantile(p, stat.Empirical, sorted, nil) }
	return domain.Distribution{
		P5:  q(0.05),
		P25: q(0.25),
		P50: q(0.50),
		P75: q(0.75),
		P95: q(0.95),
	}
}

// probabilisticSharpe es la CDF normal del Sharpe observado normalizado
// por la desviación empírica de los Sharpes simulados. Sin dispersión
// empírica no hay evidencia: 0.
func probabilisticSharpe(observed float64, sharpes []float64) float64 {
	sd := stat.StdDev(sharpes, nil)
	if sd <= 0 || math.IsNaN(sd) {
		return 0
	}
	return distuv.UnitNormal.CDF(observed / sd)
}

// deflatedSharpe castiga el Sharpe observado por la cantidad de ensayos:
// sharpe − √(2·ln(trials))/√(numTrades).
func deflatedSharpe(observed float64, trials, numTrades int) float64 {
	if trials < 2 || numTrades <= 0 {
		return 0
	}
	return observed - math.Sqrt(2*math.Log(float64(trials)))/math.Sqrt(float64(numTrades))
}

// robustness compone el score 0-100: 30 pts probabilidad de ganancia,
// 25 pts PSR, 20 pts inverso del spread de cola del drawdown, 15 pts
// inverso del spread de ganancia relativo al original, 10 pts por mediana
// positiva (5 de crédito parcial si no).
func robustness(r domain.MonteCarloResult) float64 {
	score := 30*r.ProbabilityOfProfit + 25*r.ProbabilisticSharpe

	// Spread de cola del drawdown en puntos porcentuales: p95 − mediana.
	ddSpread := math.Max(0, r.DrawdownPct.P95-r.DrawdownPct.P50)
	score += 20 / (1 + ddSpread/10)

	// Spread intercuartil de la ganancia, relativo a la magnitud original.
	ref := math.Max(math.Abs(r.Original.NetProfit), 1)
	profitSpread := math.Max(0, r.NetProfit.P75-r.NetProfit.P25) / ref
	score += 15 / (1 + profitSpread)

	if r.NetProfit.P50 > 0 {
		score += 10
	} else {
		score += 5
	}
	return clamp(score, 0, 100)
}

// fragility compone el índice 0-100 (más bajo mejor): 30% coeficiente de
// variación de la ganancia, 40% fracción de draws peores que −20% de la
// ganancia original, 30% drawdown p95 normalizado a 50%.
func fragility(r domain.MonteCarloResult, profits []float64, original domain.SimulationResult) float64 {
	if len(profits) == 0 {
		return 0
	}

	mean, sd := stat.MeanStdDev(profits, nil)
	cv := 1.0
	if math.Abs(mean) > 1e-9 && !math.IsNaN(sd) {
		cv = math.Min(math.Abs(sd/mean), 1)
	}

	threshold := -0.20 * math.Abs(original.NetProfit)
	worse := 0
	for _, p := range profits {
		if p < threshold {
			worse++
		}
	}
	fracWorse := float64(worse) / float64(len(profits))

	ddNorm := math.Min(r.DrawdownPct.P95/50, 1)

	return clamp(100*(0.30*cv+0.40*fracWorse+0.30*ddNorm), 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
