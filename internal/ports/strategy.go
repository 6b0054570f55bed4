package ports

import (
	"github.com/alejandrodnm/stratlab/internal/domain"
)

// Strategy es la capacidad externa que genera señales. Execute debe ser
// una función pura de (barras, params): sin estado, sin efectos secundarios.
type Strategy interface {
	// Name identifica la estrategia en logs y resultados.
	Name() string

	// Execute genera las señales para la serie de barras dada.
	Execute(bars []domain.Bar, params map[string]float64) []domain.Signal

	// DefaultParams devuelve los parámetros por defecto de la estrategia.
	DefaultParams() map[string]float64

	// WalkForwardParams devuelve la whitelist de nombres tunables
	// para el walk-forward en modo quick.
	WalkForwardParams() []string
}
