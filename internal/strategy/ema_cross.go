package strategy

// ema_cross.go — cruce de medias exponenciales.
//
// Señal de compra cuando la EMA rápida cruza por encima de la lenta,
// de venta cuando cruza por debajo. Estrategia de referencia: simple,
// direccional y con dos parámetros optimizables.

import (
	"math"

	"github.com/alejandrodnm/stratlab/internal/domain"
	"github.com/alejandrodnm/stratlab/internal/indicators"
)

const emaCrossName = "ema_cross"

// EMACross implementa ports.Strategy con un cruce de EMAs.
type EMACross struct{}

// NewEMACross crea la estrategia con sus defaults.
func NewEMACross() *EMACross { return &EMACross{} }

// Name implementa ports.Strategy.
func (s *EMACross) Name() string { return emaCrossName }

// DefaultParams implementa ports.Strategy.
func (s *EMACross) DefaultParams() map[string]float64 {
	return map[string]float64{"fast": 9, "slow": 21}
}

// WalkForwardParams implementa ports.Strategy.
func (s *EMACross) WalkForwardParams() []string {
	return []string{"fast", "slow"}
}

// Execute implementa ports.Strategy. Es pura: mismas barras y parámetros
// producen siempre las mismas señales.
func (s *EMACross) Execute(bars []domain.Bar, params map[string]float64) []domain.Signal {
	fast := int(param(params, "fast", 9))
	slow := int(param(params, "slow", 21))
	if fast >= slow || len(bars) <= slow {
		return nil
	}

	fastEMA := indicators.EMA(bars, fast)
	slowEMA := indicators.EMA(bars, slow)

	var signals []domain.Signal
	for i := 1; i < len(bars); i++ {
		if math.IsNaN(fastEMA[i-1]) || math.IsNaN(slowEMA[i-1]) {
			continue
		}
		prevDiff := fastEMA[i-1] - slowEMA[i-1]
		diff := fastEMA[i] - slowEMA[i]

		switch {
		case prevDiff <= 0 && diff > 0:
			signals = append(signals, domain.Signal{
				Time:     bars[i].Time,
				Type:     domain.SignalBuy,
				Price:    bars[i].Close,
				BarIndex: i,
				Reason:   "ema cross up",
			})
		case prevDiff >= 0 && diff < 0:
			signals = append(signals, domain.Signal{
				Time:     bars[i].Time,
				Type:     domain.SignalSell,
				Price:    bars[i].Close,
				BarIndex: i,
				Reason:   "ema cross down",
			})
		}
	}
	return signals
}
