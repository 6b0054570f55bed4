package domain

import (
	"fmt"
	"math"
)

// ExecutionModel define cómo una señal se mapea a barra/precio de fill real.
type ExecutionModel string

const (
	ExecSignalClose ExecutionModel = "signal_close" // fill en el close de la barra de la señal
	ExecNextOpen    ExecutionModel = "next_open"    // fill en el open de la barra siguiente
	ExecNextClose   ExecutionModel = "next_close"   // fill en el close de la barra siguiente
)

// TradeFilterMode es el filtro de confirmación aplicado a las entradas.
type TradeFilterMode string

const (
	FilterNone   TradeFilterMode = "none"
	FilterClose  TradeFilterMode = "close"
	FilterVolume TradeFilterMode = "volume"
	FilterRSI    TradeFilterMode = "rsi"
)

// TradeDirection restringe las entradas permitidas en una simulación.
type TradeDirection string

const (
	DirectionLong  TradeDirection = "long"
	DirectionShort TradeDirection = "short"
	DirectionBoth  TradeDirection = "both"
)

// RiskMode selecciona cómo se derivan stop/target de una posición.
type RiskMode string

const (
	RiskSimple     RiskMode = "simple"     // stop/target por múltiplos de ATR
	RiskAdvanced   RiskMode = "advanced"   // ATR + partial TP, break-even, trailing, time stop
	RiskPercentage RiskMode = "percentage" // stop/target por porcentaje directo
)

// SizingMode selecciona cómo se dimensiona cada posición.
type SizingMode string

const (
	SizingPercent     SizingMode = "percent" // % del capital actual
	SizingFixedDollar SizingMode = "fixed"   // notional fijo en dólares
)

// Options es la superficie cruda de configuración del motor, tal como llega
// del exterior (YAML, API). Campos en cero significan "usar default".
// Nunca se consume directamente: NormalizeSettings la convierte una sola vez
// en un Settings completo e inmutable.
type Options struct {
	InitialCapital  float64
	SizingMode      SizingMode
	PositionSizePct float64 // % del capital por trade
	FixedDollar     float64 // notional fijo si SizingMode == fixed
	CommissionRate  float64 // rate sobre notional, cobrado en ambas patas
	SlippageBps     float64

	ATRPeriod     int
	StopLossATR   float64 // múltiplo de ATR; 0 = sin stop
	TakeProfitATR float64
	TrailingATR   float64

	PartialTakeProfitATR float64
	PartialTakeProfitPct float64 // % de la posición restante a cerrar
	BreakEvenAtR         float64 // múltiplo R para mover stop a entrada
	TimeStopBars         int

	RiskMode          RiskMode
	StopLossPct       float64
	TakeProfitPct     float64
	StopLossEnabled   bool
	TakeProfitEnabled bool

	TrendEMAPeriod int
	TrendSlopeBars int
	ATRPctMin      float64
	ATRPctMax      float64
	ADXPeriod      int
	ADXMin         float64
	ADXMax         float64

	TradeFilterMode   TradeFilterMode
	EntryConfirmation TradeFilterMode // alias legacy de TradeFilterMode
	ConfirmLookback   int
	VolumeSMAPeriod   int
	VolumeMultiplier  float64
	RSIPeriod         int
	RSIBullish        float64
	RSIBearish        float64

	TradeDirection   TradeDirection
	ExecutionModel   ExecutionModel
	AllowSameBarExit bool
}

// Settings es la configuración completamente poblada e inmutable que
// consumen el simulador y los orquestadores. Se construye una sola vez
// con NormalizeSettings; nunca se muta después.
type Settings struct {
	InitialCapital  float64
	SizingMode      SizingMode
	PositionSizePct float64
	FixedDollar     float64
	CommissionRate  float64
	SlippageBps     float64

	ATRPeriod     int
	StopLossATR   float64
	TakeProfitATR float64
	TrailingATR   float64

	PartialTakeProfitATR float64
	PartialTakeProfitPct float64
	BreakEvenAtR         float64
	TimeStopBars         int

	RiskMode          RiskMode
	StopLossPct       float64
	TakeProfitPct     float64
	StopLossEnabled   bool
	TakeProfitEnabled bool

	TrendEMAPeriod int
	TrendSlopeBars int
	ATRPctMin      float64
	ATRPctMax      float64
	ADXPeriod      int
	ADXMin         float64
	ADXMax         float64

	TradeFilterMode  TradeFilterMode
	ConfirmLookback  int
	VolumeSMAPeriod  int
	VolumeMultiplier float64
	RSIPeriod        int
	RSIBullish       float64
	RSIBearish       float64

	TradeDirection   TradeDirection
	ExecutionModel   ExecutionModel
	AllowSameBarExit bool
}

// NormalizeSettings completa los defaults y resuelve aliases legacy.
// Es el único punto de entrada de Options al motor.
func NormalizeSettings(o Options) Settings {
	s := Settings{
		InitialCapital:  defaultF(o.InitialCapital, 10000),
		SizingMode:      o.SizingMode,
		PositionSizePct: defaultF(o.PositionSizePct, 100),
		FixedDollar:     o.FixedDollar,
		CommissionRate:  o.CommissionRate,
		SlippageBps:     o.SlippageBps,

		ATRPeriod:     defaultI(o.ATRPeriod, 14),
		StopLossATR:   o.StopLossATR,
		TakeProfitATR: o.TakeProfitATR,
		TrailingATR:   o.TrailingATR,

		PartialTakeProfitATR: o.PartialTakeProfitATR,
		PartialTakeProfitPct: defaultF(o.PartialTakeProfitPct, 50),
		BreakEvenAtR:         o.BreakEvenAtR,
		TimeStopBars:         o.TimeStopBars,

		RiskMode:          o.RiskMode,
		StopLossPct:       o.StopLossPct,
		TakeProfitPct:     o.TakeProfitPct,
		StopLossEnabled:   o.StopLossEnabled,
		TakeProfitEnabled: o.TakeProfitEnabled,

		TrendEMAPeriod: o.TrendEMAPeriod,
		TrendSlopeBars: defaultI(o.TrendSlopeBars, 5),
		ATRPctMin:      o.ATRPctMin,
		ATRPctMax:      o.ATRPctMax,
		ADXPeriod:      o.ADXPeriod,
		ADXMin:         o.ADXMin,
		ADXMax:         o.ADXMax,

		TradeFilterMode:  o.TradeFilterMode,
		ConfirmLookback:  defaultI(o.ConfirmLookback, 1),
		VolumeSMAPeriod:  defaultI(o.VolumeSMAPeriod, 20),
		VolumeMultiplier: defaultF(o.VolumeMultiplier, 1.5),
		RSIPeriod:        defaultI(o.RSIPeriod, 14),
		RSIBullish:       defaultF(o.RSIBullish, 50),
		RSIBearish:       defaultF(o.RSIBearish, 50),

		TradeDirection:   o.TradeDirection,
		ExecutionModel:   o.ExecutionModel,
		AllowSameBarExit: o.AllowSameBarExit,
	}

	if s.SizingMode == "" {
		s.SizingMode = SizingPercent
	}
	if s.RiskMode == "" {
		s.RiskMode = RiskSimple
	}
	if s.TradeDirection == "" {
		s.TradeDirection = DirectionLong
	}
	if s.ExecutionModel == "" {
		s.ExecutionModel = ExecSignalClose
	}
	// entryConfirmation es el nombre viejo de tradeFilterMode; gana el nuevo.
	if s.TradeFilterMode == "" && o.EntryConfirmation != "" {
		s.TradeFilterMode = o.EntryConfirmation
	}
	if s.TradeFilterMode == "" {
		s.TradeFilterMode = FilterNone
	}
	return s
}

// WithInitialCapital devuelve una copia con otro capital inicial.
// El walk-forward la usa para componer capital OOS ventana a ventana.
func (s Settings) WithInitialCapital(capital float64) Settings {
	s.InitialCapital = capital
	return s
}

// WithDirection devuelve una copia restringida a una dirección concreta.
func (s Settings) WithDirection(dir TradeDirection) Settings {
	s.TradeDirection = dir
	return s
}

// ParameterRange define el rango de búsqueda de un parámetro tunable.
type ParameterRange struct {
	Name string
	Min  float64
	Max  float64
	Step float64
}

// Validate rechaza rangos no finitos, step <= 0 o min >= max.
func (r ParameterRange) Validate() error {
	for _, v := range []float64{r.Min, r.Max, r.Step} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("domain.ParameterRange: %q: valor no finito", r.Name)
		}
	}
	if r.Step <= 0 {
		return fmt.Errorf("domain.ParameterRange: %q: step debe ser > 0", r.Name)
	}
	if r.Min >= r.Max {
		return fmt.Errorf("domain.ParameterRange: %q: min debe ser < max", r.Name)
	}
	return nil
}

// Count devuelve cuántos valores tiene el rango sobre su lattice de steps.
// El epsilon absorbe el error de coma flotante de steps decimales (0.1...)
// para no perder el último valor del lattice.
func (r ParameterRange) Count() int {
	return int(math.Floor((r.Max-r.Min)/r.Step+1e-9)) + 1
}

// Values materializa todos los valores del rango.
func (r ParameterRange) Values() []float64 {
	n := r.Count()
	vals := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		vals = append(vals, r.Min+float64(i)*r.Step)
	}
	return vals
}

// Round ancla un valor arbitrario al step más cercano dentro del rango.
func (r ParameterRange) Round(v float64) float64 {
	steps := math.Round((v - r.Min) / r.Step)
	anchored := r.Min + steps*r.Step
	return math.Min(r.Max, math.Max(r.Min, anchored))
}

func defaultF(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

func defaultI(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
