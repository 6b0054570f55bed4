package ports

import (
	"github.com/alejandrodnm/stratlab/internal/domain"
)

// Reporter presenta resultados al usuario (consola, etc.).
type Reporter interface {
	Backtest(strategy string, r domain.BacktestResult)
	WalkForward(strategy string, r domain.WalkForwardResult)
	MonteCarlo(strategy string, r domain.MonteCarloResult)
}
