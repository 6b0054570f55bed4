package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/stratlab/internal/domain"
)

// RunSummary es una fila del histórico de ejecuciones persistidas.
type RunSummary struct {
	ID         string
	Kind       string // backtest | walkforward | montecarlo
	Strategy   string
	CreatedAt  time.Time
	NetProfit  float64
	Sharpe     float64
	MaxDDPct   float64
	Trades     int
	Robustness float64
}

// ResultStore persiste los resultados de cada ejecución.
type ResultStore interface {
	// SaveBacktest persiste el resumen de un backtest.
	SaveBacktest(ctx context.Context, strategy string, r domain.BacktestResult) (runID string, err error)

	// SaveWalkForward persiste el agregado y las ventanas de un walk-forward.
	SaveWalkForward(ctx context.Context, strategy string, r domain.WalkForwardResult) (runID string, err error)

	// SaveMonteCarlo persiste el resumen de un análisis Monte Carlo.
	SaveMonteCarlo(ctx context.Context, strategy string, r domain.MonteCarloResult) (runID string, err error)

	// History devuelve las últimas ejecuciones, más recientes primero.
	History(ctx context.Context, limit int) ([]RunSummary, error)

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
