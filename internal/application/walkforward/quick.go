package walkforward

// quick.go — modo rápido: deriva ventanas y rangos razonables a partir
// de la serie y de los defaults de la estrategia, para una primera
// pasada exploratoria sin configurar nada a mano.

import (
	"math"

	"github.com/alejandrodnm/stratlab/internal/domain"
	"github.com/alejandrodnm/stratlab/internal/ports"
)

const (
	quickGridCap     = 200
	quickValuesPer   = 5
	quickWindowCount = 4
)

// QuickConfig arma una Config exploratoria: ~4 ventanas sobre la serie
// (IS:OOS 3:1) y rangos 0.5×–1.5× alrededor de los defaults declarados
// por la estrategia, con ~5 valores por parámetro y grilla acotada a 200.
func QuickConfig(strategy ports.Strategy, numBars int) Config {
	// Cada ventana cubre len/(windows+1) barras extra por el paso.
	span := numBars / (quickWindowCount + 1) * 2
	if span < 8 {
		span = 8
	}
	opt := span * 3 / 4
	test := span - opt

	defaults := strategy.DefaultParams()
	tunables := strategy.WalkForwardParams()
	ranges := make([]domain.ParameterRange, 0, len(tunables))
	for _, name := range tunables {
		base, ok := defaults[name]
		if !ok || base == 0 {
			continue
		}
		ranges = append(ranges, quickRange(name, base))
	}

	return Config{
		OptimizationBars: opt,
		TestBars:         test,
		Ranges:           ranges,
		GridCap:          quickGridCap,
	}
}

// quickRange construye el rango 0.5×–1.5× con ~5 valores. Parámetros de
// aspecto entero (períodos) quedan sobre steps enteros.
func quickRange(name string, base float64) domain.ParameterRange {
	min := base * 0.5
	max := base * 1.5
	step := (max - min) / float64(quickValuesPer-1)

	if base == math.Trunc(base) && base >= 2 {
		min = math.Max(1, math.Floor(min))
		max = math.Ceil(max)
		step = math.Max(1, math.Round(step))
	}
	return domain.ParameterRange{Name: name, Min: min, Max: max, Step: step}
}
