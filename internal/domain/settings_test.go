package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSettings_Defaults(t *testing.T) {
	s := NormalizeSettings(Options{})

	assert.Equal(t, 10000.0, s.InitialCapital)
	assert.Equal(t, 100.0, s.PositionSizePct)
	assert.Equal(t, 14, s.ATRPeriod)
	assert.Equal(t, SizingPercent, s.SizingMode)
	assert.Equal(t, RiskSimple, s.RiskMode)
	assert.Equal(t, DirectionLong, s.TradeDirection)
	assert.Equal(t, ExecSignalClose, s.ExecutionModel)
	assert.Equal(t, FilterNone, s.TradeFilterMode)
	assert.False(t, s.AllowSameBarExit)
}

func TestNormalizeSettings_LegacyEntryConfirmationAlias(t *testing.T) {
	s := NormalizeSettings(Options{EntryConfirmation: FilterVolume})
	assert.Equal(t, FilterVolume, s.TradeFilterMode)

	// El nombre nuevo gana sobre el alias legacy.
	s = NormalizeSettings(Options{TradeFilterMode: FilterRSI, EntryConfirmation: FilterVolume})
	assert.Equal(t, FilterRSI, s.TradeFilterMode)
}

func TestParameterRange_Validate(t *testing.T) {
	require.NoError(t, ParameterRange{Name: "p", Min: 1, Max: 10, Step: 1}.Validate())

	assert.Error(t, ParameterRange{Name: "p", Min: 1, Max: 10, Step: 0}.Validate())
	assert.Error(t, ParameterRange{Name: "p", Min: 1, Max: 10, Step: -1}.Validate())
	assert.Error(t, ParameterRange{Name: "p", Min: 10, Max: 1, Step: 1}.Validate())
	assert.Error(t, ParameterRange{Name: "p", Min: 5, Max: 5, Step: 1}.Validate())
}

func TestParameterRange_Values(t *testing.T) {
	r := ParameterRange{Name: "period", Min: 10, Max: 20, Step: 5}
	assert.Equal(t, []float64{10, 15, 20}, r.Values())
	assert.Equal(t, 3, r.Count())
}

func TestParameterRange_DecimalStepIncludesMax(t *testing.T) {
	// Steps decimales acumulan error de coma flotante; el último valor
	// del lattice (Max) no puede perderse.
	r := ParameterRange{Name: "atr_mult", Min: 0.1, Max: 0.3, Step: 0.1}
	assert.Equal(t, 3, r.Count())

	vals := r.Values()
	require.Len(t, vals, 3)
	assert.InDelta(t, 0.1, vals[0], 1e-9)
	assert.InDelta(t, 0.2, vals[1], 1e-9)
	assert.InDelta(t, 0.3, vals[2], 1e-9)
}

func TestParameterRange_Round(t *testing.T) {
	r := ParameterRange{Name: "period", Min: 10, Max: 20, Step: 5}
	assert.Equal(t, 15.0, r.Round(14.2))
	assert.Equal(t, 10.0, r.Round(3))   // clip al mínimo
	assert.Equal(t, 20.0, r.Round(100)) // clip al máximo
}
