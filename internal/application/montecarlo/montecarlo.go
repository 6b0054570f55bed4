package montecarlo

// montecarlo.go — laboratorio de robustez por bootstrap.
//
// Dos modos: bootstrap de trades (remuestrea la lista realizada con
// reemplazo y perturba cada pnl con slippage aleatorio + costo de spread)
// y bootstrap por bloques (remuestrea bloques contiguos de barras,
// re-ejecuta la estrategia y corre el pipeline completo). Los draws son
// aleatorios por diseño; los percentiles convergen al crecer el número
// de simulaciones. Cada draw usa su propio RNG sembrado por índice, así
// el resultado es reproducible por seed sin importar cuántos workers haya.

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"runtime"
	"sync"

	"github.com/alejandrodnm/stratlab/internal/application/backtest"
	"github.com/alejandrodnm/stratlab/internal/domain"
	"github.com/alejandrodnm/stratlab/internal/indicators"
	"github.com/alejandrodnm/stratlab/internal/ports"
)

const (
	defaultSimulations = 1000
	defaultSlippageBps = 5
	defaultSpreadBps   = 2
	defaultBlockSize   = 20
	progressEverySims  = 25
)

// Config controla el laboratorio. Campos en cero usan defaults.
type Config struct {
	Simulations     int
	SlippageBps     float64
	SpreadBps       float64
	BlockSize       int // solo bootstrap por bloques
	MaxLatencyShift int // barras extra de latencia por señal (0..N)
	Workers         int
	Seed            int64
	Trials          int // ensayos para el deflated sharpe; default Simulations

	Progress ports.Progress
}

func (c Config) withDefaults() Config {
	if c.Simulations <= 0 {
		c.Simulations = defaultSimulations
	}
	if c.SlippageBps <= 0 {
		c.SlippageBps = defaultSlippageBps
	}
	if c.SpreadBps <= 0 {
		c.SpreadBps = defaultSpreadBps
	}
	if c.BlockSize <= 0 {
		c.BlockSize = defaultBlockSize
	}
	if c.Trials <= 0 {
		c.Trials = c.Simulations
	}
	return c
}

// Lab corre simulaciones de Monte Carlo sobre un backtest ya realizado.
type Lab struct {
	cfg Config
	st  domain.Settings
}

// New crea un Lab. settings debe venir ya normalizado.
func New(cfg Config, st domain.Settings) *Lab {
	return &Lab{cfg: cfg.withDefaults(), st: st}
}

// TradeBootstrap remuestrea la lista de trades de un resultado completo.
// Con cero trades devuelve distribuciones en cero y probabilidad de
// ganancia 0, nunca NaN.
func (l *Lab) TradeBootstrap(ctx context.Context, res domain.BacktestResult) (domain.MonteCarloResult, error) {
	original := originalOf(res)
	if len(res.Trades) == 0 {
		return domain.MonteCarloResult{Simulations: l.cfg.Simulations, Original: original}, nil
	}

	draws, err := l.runDraws(ctx, func(rng *rand.Rand) domain.SimulationResult {
		return l.tradeDraw(rng, res.Trades)
	})
	if err != nil {
		return domain.MonteCarloResult{}, fmt.Errorf("montecarlo.TradeBootstrap: %w", err)
	}
	return l.aggregate(draws, original), nil
}

// BlockBootstrap remuestrea bloques contiguos de barras y re-ejecuta la
// estrategia sobre cada serie remezclada.
func (l *Lab) BlockBootstrap(
	ctx context.Context,
	bars []domain.Bar,
	strategy ports.Strategy,
	params map[string]float64,
	res domain.BacktestResult,
) (domain.MonteCarloResult, error) {
	if len(bars) == 0 {
		return domain.MonteCarloResult{}, fmt.Errorf("montecarlo.BlockBootstrap: serie vacía")
	}
	if params == nil {
		params = strategy.DefaultParams()
	}

	draws, err := l.runDraws(ctx, func(rng *rand.Rand) domain.SimulationResult {
		return l.blockDraw(rng, bars, strategy, params)
	})
	if err != nil {
		return domain.MonteCarloResult{}, fmt.Errorf("montecarlo.BlockBootstrap: %w", err)
	}
	return l.aggregate(draws, originalOf(res)), nil
}

// runDraws ejecuta las simulaciones en paralelo. Cada draw recibe un RNG
// sembrado por índice (seed+i), así seeds iguales dan draws iguales.
func (l *Lab) runDraws(ctx context.Context, draw func(*rand.Rand) domain.SimulationResult) ([]domain.SimulationResult, error) {
	workers := l.cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	out := make([]domain.SimulationResult, l.cfg.Simulations)
	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)

	for i := 0; i < l.cfg.Simulations; i++ {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			// Un pánico de un draw (estrategia externa) lo deja en cero
			// sin tumbar la corrida.
			defer func() {
				if r := recover(); r != nil {
					slog.Warn("monte carlo draw panicked, dropping", "draw", i, "err", r)
					out[i] = domain.SimulationResult{}
				}
			}()
			out[i] = draw(rand.New(rand.NewSource(l.cfg.Seed + int64(i))))
		}(i)

		if l.cfg.Progress != nil && (i+1)%progressEverySims == 0 {
			l.cfg.Progress("simulate", i+1, l.cfg.Simulations)
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// tradeDraw remuestrea con reemplazo al conteo original, perturbando cada
// pnl con slippage uniforme ±slippageBps y un costo fijo de spreadBps
// sobre el notional de entrada, y reconstruye la caminata de equity.
func (l *Lab) tradeDraw(rng *rand.Rand, trades []domain.Trade) domain.SimulationResult {
	acc := backtest.NewAccumulator(l.st.InitialCapital)
	equity := l.st.InitialCapital
	acc.AddEquity(equity)

	for range trades {
		t := trades[rng.Intn(len(trades))]
		notional := t.EntryPrice * t.Size

		pnl := t.PnL
		pnlPct := t.PnLPercent
		if notional > 0 {
			slip := (rng.Float64()*2 - 1) * l.cfg.SlippageBps / 1e4 * notional
			spread := l.cfg.SpreadBps / 1e4 * notional
			pnl += slip - spread
			pnlPct = pnl / notional * 100
		}

		acc.AddTrade(pnl, pnlPct)
		equity += pnl
		acc.AddEquity(equity)
	}
	return toSimulation(acc.Result())
}

// blockDraw arma una serie remezclada por bloques contiguos (timestamps
// originales para preservar la cronología de ejecución), re-ejecuta la
// estrategia, desplaza cada señal una latencia aleatoria y perturba su
// precio, y corre el pipeline completo en modo compacto.
func (l *Lab) blockDraw(rng *rand.Rand, bars []domain.Bar, strategy ports.Strategy, params map[string]float64) domain.SimulationResult {
	n := len(bars)
	shuffled := make([]domain.Bar, 0, n+l.cfg.BlockSize)
	for len(shuffled) < n {
		start := rng.Intn(n)
		end := start + l.cfg.BlockSize
		if end > n {
			end = n
		}
		shuffled = append(shuffled, bars[start:end]...)
	}
	shuffled = shuffled[:n]
	for i := range shuffled {
		shuffled[i].Time = bars[i].Time
	}

	signals := strategy.Execute(shuffled, params)
	perturbed := make([]domain.Signal, 0, len(signals))
	for _, s := range signals {
		idx := s.BarIndex
		if idx <= 0 {
			idx = domain.FindBarIndex(shuffled, s.Time)
		}
		if idx < 0 {
			continue
		}
		if l.cfg.MaxLatencyShift > 0 {
			idx += rng.Intn(l.cfg.MaxLatencyShift + 1)
		}
		if idx >= n {
			continue
		}
		s.BarIndex = idx
		s.Time = shuffled[idx].Time
		if s.Price > 0 {
			s.Price *= 1 + (rng.Float64()*2-1)*l.cfg.SlippageBps/1e4
		}
		perturbed = append(perturbed, s)
	}

	eng := backtest.NewEngine(l.st)
	return toSimulation(eng.RunCompact(indicators.NewDataset(shuffled), perturbed))
}

func toSimulation(r domain.BacktestResult) domain.SimulationResult {
	return domain.SimulationResult{
		NetProfit:      r.NetProfit,
		MaxDrawdownPct: r.MaxDrawdownPct,
		SharpeRatio:    r.SharpeRatio,
		WinRate:        r.WinRate,
		TotalTrades:    r.TotalTrades,
	}
}

func originalOf(r domain.BacktestResult) domain.SimulationResult {
	return toSimulation(r)
}
