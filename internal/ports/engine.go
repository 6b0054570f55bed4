package ports

import (
	"context"

	"github.com/alejandrodnm/stratlab/internal/domain"
)

// RemoteEngine es el motor alternativo de alto rendimiento accesible por
// red. Su resultado solo se acepta si pasa la validación de consistencia
// del caller; si no, se usa el motor local.
type RemoteEngine interface {
	Run(ctx context.Context, bars []domain.Bar, signals []domain.Signal, settings domain.Settings) (domain.BacktestResult, error)
}

// Progress es el callback advisory de progreso de los orquestadores.
// No tiene semántica de orden ni de corrección; puede ser nil.
type Progress func(phase string, done, total int)
