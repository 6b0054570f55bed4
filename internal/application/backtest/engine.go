package backtest

// engine.go — pipeline señales → eventos → simulación → resumen.
//
// La dirección "both" se resuelve corriendo dos simulaciones independientes
// (long y short, cada una con el capital inicial completo) y fusionando
// trades y equity; nunca hay dos posiciones simultáneas en un mismo run.

import (
	"sort"

	"github.com/alejandrodnm/stratlab/internal/domain"
	"github.com/alejandrodnm/stratlab/internal/indicators"
)

// Engine ejecuta el pipeline completo de backtest sobre un dataset.
// Es determinístico: mismos (barras, señales, settings) ⇒ mismos números.
type Engine struct {
	st    domain.Settings
	cache *indicators.Cache
}

// NewEngine crea un motor con su propia cache de indicadores.
func NewEngine(st domain.Settings) *Engine {
	return &Engine{st: st, cache: indicators.NewCache()}
}

// NewEngineWithCache crea un motor que comparte una cache externa
// (el grid search comparte la cache entre todos los candidatos).
func NewEngineWithCache(st domain.Settings, cache *indicators.Cache) *Engine {
	return &Engine{st: st, cache: cache}
}

// Settings devuelve la configuración normalizada del motor.
func (e *Engine) Settings() domain.Settings { return e.st }

// Run ejecuta el backtest completo: resultado con trades y curva de equity.
func (e *Engine) Run(ds indicators.Dataset, signals []domain.Signal) domain.BacktestResult {
	if e.st.TradeDirection == domain.DirectionBoth {
		lt, le := e.simulate(ds, signals, domain.DirectionLong)
		st, se := e.simulate(ds, signals, domain.DirectionShort)
		trades := mergeTrades(lt, st)
		equity := combineEquity(le, se, e.st.InitialCapital)
		return Summarize(trades, equity, e.st.InitialCapital)
	}
	trades, equity := e.simulate(ds, signals, e.st.TradeDirection)
	return Summarize(trades, equity, e.st.InitialCapital)
}

// RunCompact ejecuta el backtest con agregación online: mismos escalares
// que Run, sin materializar trades ni curva (salvo la fusión "both", que
// necesita la equity por barra de la pata long para sumar la short).
func (e *Engine) RunCompact(ds indicators.Dataset, signals []domain.Signal) domain.BacktestResult {
	acc := NewAccumulator(e.st.InitialCapital)

	if e.st.TradeDirection == domain.DirectionBoth {
		longEq := make([]float64, 0, len(ds.Bars))
		e.stream(ds, signals, domain.DirectionLong, acc, func(p domain.EquityPoint) {
			longEq = append(longEq, p.Equity)
		})
		i := 0
		e.stream(ds, signals, domain.DirectionShort, acc, func(p domain.EquityPoint) {
			acc.AddEquity(longEq[i] + p.Equity - e.st.InitialCapital)
			i++
		})
		return acc.Result()
	}

	e.stream(ds, signals, e.st.TradeDirection, acc, func(p domain.EquityPoint) {
		acc.AddEquity(p.Equity)
	})
	return acc.Result()
}

func (e *Engine) simulate(ds indicators.Dataset, signals []domain.Signal, dir domain.TradeDirection) ([]domain.Trade, []domain.EquityPoint) {
	events := PrepareEvents(ds, e.cache, signals, e.st, dir)
	sim := NewSimulator(ds, e.cache, events, e.st, dir)
	return sim.Run()
}

func (e *Engine) stream(
	ds indicators.Dataset,
	signals []domain.Signal,
	dir domain.TradeDirection,
	acc *Accumulator,
	onEquity func(domain.EquityPoint),
) {
	events := PrepareEvents(ds, e.cache, signals, e.st, dir)
	sim := NewSimulator(ds, e.cache, events, e.st, dir)
	sim.RunStream(
		func(t domain.Trade) { acc.AddTrade(t.PnL, t.PnLPercent) },
		onEquity,
	)
}

// mergeTrades fusiona los trades de las dos patas ordenados por cierre.
func mergeTrades(a, b []domain.Trade) []domain.Trade {
	out := make([]domain.Trade, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].ExitTime.Compare(out[j].ExitTime); c != 0 {
			return c < 0
		}
		return out[i].EntryTime.Compare(out[j].EntryTime) < 0
	})
	return out
}

// combineEquity suma las dos curvas barra a barra descontando el capital
// inicial duplicado.
func combineEquity(a, b []domain.EquityPoint, initialCapital float64) []domain.EquityPoint {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	out := make([]domain.EquityPoint, n)
	for i := 0; i < n; i++ {
		out[i] = domain.EquityPoint{
			Time:   a[i].Time,
			Equity: a[i].Equity + b[i].Equity - initialCapital,
		}
	}
	return out
}
