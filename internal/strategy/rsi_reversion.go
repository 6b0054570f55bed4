package strategy

// rsi_reversion.go — reversión a la media por RSI.
//
// Compra cuando el RSI sale de sobreventa (cruza hacia arriba el nivel
// oversold) y vende cuando entra en sobrecompra. Complementa al cruce de
// EMAs: opera contra-tendencia en rangos.

import (
	"math"

	"github.com/alejandrodnm/stratlab/internal/domain"
	"github.com/alejandrodnm/stratlab/internal/indicators"
)

const rsiReversionName = "rsi_reversion"

// RSIReversion implementa ports.Strategy con reversión por RSI.
type RSIReversion struct{}

// NewRSIReversion crea la estrategia con sus defaults.
func NewRSIReversion() *RSIReversion { return &RSIReversion{} }

// Name implementa ports.Strategy.
func (s *RSIReversion) Name() string { return rsiReversionName }

// DefaultParams implementa ports.Strategy.
func (s *RSIReversion) DefaultParams() map[string]float64 {
	return map[string]float64{"period": 14, "oversold": 30, "overbought": 70}
}

// WalkForwardParams implementa ports.Strategy.
func (s *RSIReversion) WalkForwardParams() []string {
	return []string{"period", "oversold", "overbought"}
}

// Execute implementa ports.Strategy.
func (s *RSIReversion) Execute(bars []domain.Bar, params map[string]float64) []domain.Signal {
	period := int(param(params, "period", 14))
	oversold := param(params, "oversold", 30)
	overbought := param(params, "overbought", 70)
	if oversold >= overbought || len(bars) <= period+1 {
		return nil
	}

	rsi := indicators.RSI(bars, period)

	var signals []domain.Signal
	for i := 1; i < len(bars); i++ {
		if math.IsNaN(rsi[i-1]) || math.IsNaN(rsi[i]) {
			continue
		}

		switch {
		case rsi[i-1] < oversold && rsi[i] >= oversold:
			signals = append(signals, domain.Signal{
				Time:     bars[i].Time,
				Type:     domain.SignalBuy,
				Price:    bars[i].Close,
				BarIndex: i,
				Reason:   "rsi leaving oversold",
			})
		case rsi[i-1] < overbought && rsi[i] >= overbought:
			signals = append(signals, domain.Signal{
				Time:     bars[i].Time,
				Type:     domain.SignalSell,
				Price:    bars[i].Close,
				BarIndex: i,
				Reason:   "rsi entering overbought",
			})
		}
	}
	return signals
}
