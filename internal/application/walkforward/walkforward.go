package walkforward

// walkforward.go — orquestación de ventanas in-sample/out-of-sample.
//
// Cada ventana optimiza sobre el tramo IS y valida sobre el tramo OOS
// siguiente. Antes de generar señales se antepone un buffer de lookback
// (default 250 barras) para que el warm-up de los indicadores no sesgue
// el borde de la ventana; los trades y la equity se recortan después al
// tramo verdadero. El capital OOS compone de ventana a ventana (simula
// operar en vivo); el IS siempre parte del capital inicial.

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/alejandrodnm/stratlab/internal/application/backtest"
	"github.com/alejandrodnm/stratlab/internal/domain"
	"github.com/alejandrodnm/stratlab/internal/indicators"
	"github.com/alejandrodnm/stratlab/internal/ports"
)

const (
	defaultGridCap      = 500
	defaultTopN         = 5
	defaultLookback     = 250
	defaultMinTrades    = 5
	defaultMinOOSTrades = 3
	defaultRequiredOOS  = 30
	defaultStableChecks = 3
	defaultGridFraction = 0.30

	// Umbral de "IS meaningfully positivo" para la eficiencia WF.
	wfeMinInSampleSharpe = 0.1
)

// Config controla la búsqueda y el ventaneo. Las heurísticas de
// terminación temprana y muestreo son política de performance tunable,
// no reglas de corrección.
type Config struct {
	OptimizationBars int
	TestBars         int
	StepBars         int // default: TestBars
	LookbackBars     int

	Ranges            []domain.ParameterRange
	GridCap           int
	TopN              int
	MinTrades         int // trades IS mínimos para puntuar
	MinOOSTrades      int // trades OOS mínimos para promediar sharpes
	RequiredOOSTrades int // suficiencia de trades del robustness score
	StableChecks      int
	MinGridFraction   float64
	BatchSize         int
	Workers           int
	Seed              int64

	// Fixed salta la optimización y testea una configuración fija
	// partiendo cada ventana en pseudo-IS/OOS.
	Fixed       bool
	FixedParams map[string]float64

	Progress ports.Progress
}

func (c Config) withDefaults() Config {
	if c.StepBars <= 0 {
		c.StepBars = c.TestBars
	}
	if c.LookbackBars <= 0 {
		c.LookbackBars = defaultLookback
	}
	if c.GridCap <= 0 {
		c.GridCap = defaultGridCap
	}
	if c.TopN <= 0 {
		c.TopN = defaultTopN
	}
	if c.MinTrades <= 0 {
		c.MinTrades = defaultMinTrades
	}
	if c.MinOOSTrades <= 0 {
		c.MinOOSTrades = defaultMinOOSTrades
	}
	if c.RequiredOOSTrades <= 0 {
		c.RequiredOOSTrades = defaultRequiredOOS
	}
	if c.StableChecks <= 0 {
		c.StableChecks = defaultStableChecks
	}
	if c.MinGridFraction <= 0 {
		c.MinGridFraction = defaultGridFraction
	}
	return c
}

// Runner ejecuta el walk-forward de una estrategia sobre una serie.
type Runner struct {
	cfg      Config
	strategy ports.Strategy
	settings domain.Settings
	cache    *indicators.Cache
}

// New crea un Runner. settings debe venir ya normalizado.
func New(cfg Config, strategy ports.Strategy, settings domain.Settings) *Runner {
	return &Runner{
		cfg:      cfg.withDefaults(),
		strategy: strategy,
		settings: settings,
		cache:    indicators.NewCache(),
	}
}

// Run ejecuta todas las ventanas. Falla rápido ante rangos inválidos,
// datos insuficientes o cero ventanas producidas.
func (r *Runner) Run(ctx context.Context, bars []domain.Bar) (domain.WalkForwardResult, error) {
	cfg := r.cfg
	span := cfg.OptimizationBars + cfg.TestBars
	if cfg.OptimizationBars <= 0 || cfg.TestBars <= 0 {
		return domain.WalkForwardResult{}, fmt.Errorf("walkforward.Run: tamaños de ventana inválidos (opt=%d test=%d)", cfg.OptimizationBars, cfg.TestBars)
	}
	if len(bars) < span {
		return domain.WalkForwardResult{}, fmt.Errorf("walkforward.Run: datos insuficientes: %d barras para ventanas de %d", len(bars), span)
	}

	// Sin tunables la optimización no tiene sentido: variante fija.
	fixed := cfg.Fixed || len(cfg.Ranges) == 0

	var grid []map[string]float64
	if !fixed {
		var err error
		grid, err = GenerateGrid(cfg.Ranges, cfg.GridCap, cfg.Seed)
		if err != nil {
			return domain.WalkForwardResult{}, err
		}
	}

	starts := make([]int, 0)
	for s := 0; s+span <= len(bars); s += cfg.StepBars {
		starts = append(starts, s)
	}
	if len(starts) == 0 {
		return domain.WalkForwardResult{}, fmt.Errorf("walkforward.Run: cero ventanas producidas")
	}

	ds := indicators.NewDataset(bars)
	oosCapital := r.settings.InitialCapital

	windows := make([]domain.WalkForwardWindow, 0, len(starts))
	var combinedTrades []domain.Trade
	var combinedEquity []domain.EquityPoint

	for wi, start := range starts {
		if ctx.Err() != nil {
			return domain.WalkForwardResult{}, fmt.Errorf("walkforward.Run: %w", ctx.Err())
		}
		if cfg.Progress != nil {
			cfg.Progress("window", wi+1, len(starts))
		}

		var w domain.WalkForwardWindow
		if fixed {
			w = r.runFixedWindow(wi, start, span, ds, oosCapital)
		} else {
			w = r.runOptimizedWindow(ctx, wi, start, ds, grid, oosCapital)
		}
		oosCapital += w.OutOfSample.NetProfit

		// Cose los trades y la equity OOS para el resultado continuo.
		combinedTrades = append(combinedTrades, w.OutOfSample.Trades...)
		combinedEquity = append(combinedEquity, w.OutOfSample.EquityCurve...)
		// El agregado no necesita cargar con los arrays por ventana.
		w.OutOfSample.Trades, w.OutOfSample.EquityCurve = nil, nil
		w.InSample.Trades, w.InSample.EquityCurve = nil, nil
		windows = append(windows, w)

		slog.Debug("walk-forward window done",
			"window", wi+1,
			"is_sharpe", fmt.Sprintf("%.2f", w.InSample.SharpeRatio),
			"oos_sharpe", fmt.Sprintf("%.2f", w.OutOfSample.SharpeRatio),
			"oos_capital", fmt.Sprintf("%.2f", oosCapital),
		)
	}

	res := r.aggregate(windows, fixed)
	res.Combined = backtest.Summarize(combinedTrades, combinedEquity, r.settings.InitialCapital)
	return res, nil
}

// runOptimizedWindow optimiza la grilla sobre el tramo IS y valida OOS.
func (r *Runner) runOptimizedWindow(
	ctx context.Context,
	wi, start int,
	ds indicators.Dataset,
	grid []map[string]float64,
	oosCapital float64,
) domain.WalkForwardWindow {
	cfg := r.cfg
	isStart, isEnd := start, start+cfg.OptimizationBars
	oosStart, oosEnd := isEnd, isEnd+cfg.TestBars

	eval := func(params map[string]float64) domain.BacktestResult {
		return r.evalSegment(ds, isStart, isEnd, params, r.settings.InitialCapital)
	}
	top := optimize(ctx, grid, eval, cfg, func(done int) {
		if cfg.Progress != nil {
			cfg.Progress("optimize", done, len(grid))
		}
	})

	params := selectParams(top, cfg.Ranges)
	if params == nil {
		// Ningún candidato sobrevivió: se cae a los defaults declarados.
		params = r.strategy.DefaultParams()
	}

	is := r.evalSegment(ds, isStart, isEnd, params, r.settings.InitialCapital)
	oos := r.evalSegment(ds, oosStart, oosEnd, params, oosCapital)

	return window(wi, isStart, isEnd, oosStart, oosEnd, params, is, oos)
}

// runFixedWindow parte la ventana a la mitad en pseudo-IS/OOS para testear
// la consistencia temporal de una configuración fija.
func (r *Runner) runFixedWindow(wi, start, span int, ds indicators.Dataset, oosCapital float64) domain.WalkForwardWindow {
	params := r.cfg.FixedParams
	if params == nil {
		params = r.strategy.DefaultParams()
	}

	half := start + span/2
	end := start + span
	is := r.evalSegment(ds, start, half, params, r.settings.InitialCapital)
	oos := r.evalSegment(ds, half, end, params, oosCapital)

	return window(wi, start, half, half, end, params, is, oos)
}

func window(wi, isStart, isEnd, oosStart, oosEnd int, params map[string]float64, is, oos domain.BacktestResult) domain.WalkForwardWindow {
	w := domain.WalkForwardWindow{
		Index:             wi,
		OptimizationStart: isStart,
		OptimizationEnd:   isEnd,
		TestStart:         oosStart,
		TestEnd:           oosEnd,
		OptimizedParams:   params,
		InSample:          is,
		OutOfSample:       oos,
		SharpeDegradation: is.SharpeRatio - oos.SharpeRatio,
	}
	if is.NetProfitPercent != 0 {
		w.ProfitDegradationPercent = (is.NetProfitPercent - oos.NetProfitPercent) / math.Abs(is.NetProfitPercent) * 100
	}
	return w
}

// evalSegment corre el pipeline sobre [segStart, segEnd) con el buffer de
// lookback antepuesto, y recorta trades/equity al tramo verdadero.
// Un pánico de la estrategia externa produce un resultado vacío (el
// candidato queda excluido por el umbral de trades), nunca escapa al loop.
func (r *Runner) evalSegment(ds indicators.Dataset, segStart, segEnd int, params map[string]float64, capital float64) (out domain.BacktestResult) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Warn("strategy panicked during segment eval", "err", rec)
			out = domain.BacktestResult{}
		}
	}()

	lookStart := segStart - r.cfg.LookbackBars
	if lookStart < 0 {
		lookStart = 0
	}
	sub := ds.Slice(lookStart, segEnd)

	signals := r.strategy.Execute(sub.Bars, params)
	eng := backtest.NewEngineWithCache(r.settings.WithInitialCapital(capital), r.cache)
	full := eng.Run(sub, signals)

	// Recorte al tramo verdadero: el lookback solo calienta indicadores.
	fromKey := ds.Bars[segStart].Time.Key()
	trades := full.Trades[:0:0]
	for _, t := range full.Trades {
		if t.EntryTime.Key() >= fromKey {
			trades = append(trades, t)
		}
	}
	equity := full.EquityCurve[:0:0]
	for _, p := range full.EquityCurve {
		if p.Time.Key() >= fromKey {
			equity = append(equity, p)
		}
	}
	return backtest.Summarize(trades, equity, capital)
}

// aggregate calcula los agregados de robustez sobre las ventanas.
func (r *Runner) aggregate(windows []domain.WalkForwardWindow, fixed bool) domain.WalkForwardResult {
	res := domain.WalkForwardResult{Windows: windows}

	// Sharpes promedio sobre ventanas con suficientes trades OOS.
	nIS, nOOS := 0, 0
	for _, w := range windows {
		if w.OutOfSample.TotalTrades < r.cfg.MinOOSTrades {
			continue
		}
		res.AvgInSampleSharpe += w.InSample.SharpeRatio
		res.AvgOutOfSampleSharpe += w.OutOfSample.SharpeRatio
		nIS++
		nOOS++
	}
	if nIS > 0 {
		res.AvgInSampleSharpe /= float64(nIS)
		res.AvgOutOfSampleSharpe /= float64(nOOS)
	}

	// Eficiencia walk-forward.
	switch {
	case res.AvgInSampleSharpe > wfeMinInSampleSharpe:
		res.WalkForwardEfficiency = clip(res.AvgOutOfSampleSharpe/res.AvgInSampleSharpe, 0, 2)
	case res.AvgOutOfSampleSharpe > 0:
		res.WalkForwardEfficiency = 0.5
	default:
		res.WalkForwardEfficiency = 0
	}

	res.ParameterStability = r.parameterStability(windows, fixed)

	// Ratio de ventanas OOS positivas y varianza de la degradación.
	positive := 0
	degradations := make([]float64, 0, len(windows))
	oosTrades := 0
	for _, w := range windows {
		if w.OutOfSample.NetProfit > 0 {
			positive++
		}
		degradations = append(degradations, w.SharpeDegradation)
		oosTrades += w.OutOfSample.TotalTrades
	}
	posRatio := 0.0
	if len(windows) > 0 {
		posRatio = float64(positive) / float64(len(windows))
	}
	invDeg := 1.0 / (1.0 + variance(degradations))

	sufficiency := math.Min(1, float64(oosTrades)/float64(r.cfg.RequiredOOSTrades))
	res.RobustnessScore = 100 * (0.40*math.Min(res.WalkForwardEfficiency, 1) +
		0.25*res.ParameterStability/100 +
		0.20*posRatio +
		0.15*invDeg) * sufficiency

	return res
}

// parameterStability mide 0-100 cuánto varían los parámetros elegidos
// entre ventanas: 100 × (1 − 2 × promedio de stddev normalizada por rango).
func (r *Runner) parameterStability(windows []domain.WalkForwardWindow, fixed bool) float64 {
	if fixed || len(r.cfg.Ranges) == 0 || len(windows) < 2 {
		return 100
	}

	total := 0.0
	counted := 0
	for _, rng := range r.cfg.Ranges {
		span := rng.Max - rng.Min
		if span <= 0 {
			continue
		}
		values := make([]float64, 0, len(windows))
		for _, w := range windows {
			if v, ok := w.OptimizedParams[rng.Name]; ok {
				values = append(values, v)
			}
		}
		if len(values) < 2 {
			continue
		}
		total += math.Sqrt(variance(values)) / span
		counted++
	}
	if counted == 0 {
		return 100
	}
	return clip(100*(1-2*total/float64(counted)), 0, 100)
}

func variance(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	v := 0.0
	for _, x := range xs {
		v += (x - mean) * (x - mean)
	}
	return v / float64(len(xs)-1)
}
