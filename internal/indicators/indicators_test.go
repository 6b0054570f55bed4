package indicators

import (
	"math"
	"testing"

	"github.com/alejandrodnm/stratlab/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flatBars(n int, price float64) []domain.Bar {
	bars := make([]domain.Bar, n)
	for i := range bars {
		bars[i] = domain.Bar{
			Time: domain.TimeFromEpoch(int64(i) * 86400),
			Open: price, High: price, Low: price, Close: price,
			Volume: 1000,
		}
	}
	return bars
}

func TestEMA_WarmupIsNaN(t *testing.T) {
	bars := flatBars(20, 100)
	ema := EMA(bars, 10)

	require.Len(t, ema, 20)
	for i := 0; i < 9; i++ {
		assert.True(t, math.IsNaN(ema[i]), "barra %d debería ser NaN", i)
	}
	assert.InDelta(t, 100.0, ema[9], 1e-9)
	assert.InDelta(t, 100.0, ema[19], 1e-9)
}

func TestATR_ConstantRange(t *testing.T) {
	bars := make([]domain.Bar, 30)
	for i := range bars {
		bars[i] = domain.Bar{
			Time: domain.TimeFromEpoch(int64(i) * 86400),
			Open: 100, High: 105, Low: 95, Close: 100,
		}
	}
	atr := ATR(bars, 14)

	assert.True(t, math.IsNaN(atr[13]))
	// Con rango constante 10, el ATR converge exactamente a 10.
	assert.InDelta(t, 10.0, atr[14], 1e-9)
	assert.InDelta(t, 10.0, atr[29], 1e-9)
}

func TestRSI_AllGainsIs100(t *testing.T) {
	bars := make([]domain.Bar, 30)
	price := 100.0
	for i := range bars {
		price += 1
		bars[i] = domain.Bar{
			Time: domain.TimeFromEpoch(int64(i) * 86400),
			Open: price, High: price, Low: price, Close: price,
		}
	}
	rsi := RSI(bars, 14)
	assert.InDelta(t, 100.0, rsi[20], 1e-9)
}

func TestRSI_FlatIs50(t *testing.T) {
	rsi := RSI(flatBars(30, 100), 14)
	assert.InDelta(t, 50.0, rsi[20], 1e-9)
}

func TestADX_InsufficientData(t *testing.T) {
	adx := ADX(flatBars(10, 100), 14)
	for _, v := range adx {
		assert.True(t, math.IsNaN(v))
	}
}

func TestCache_ComputesOncePerKey(t *testing.T) {
	ds := NewDataset(flatBars(30, 100))
	c := NewCache()

	first := c.ATR(ds, 14)
	second := c.ATR(ds, 14)
	// Misma serie cacheada: identidad de slice.
	assert.Equal(t, &first[0], &second[0])

	other := c.ATR(ds, 7)
	assert.NotEqual(t, &first[0], &other[0])
}

func TestDataset_SliceHasStableDerivedID(t *testing.T) {
	ds := NewDataset(flatBars(30, 100))
	a := ds.Slice(5, 20)
	b := ds.Slice(5, 20)
	assert.Equal(t, a.ID, b.ID)
	assert.Len(t, a.Bars, 15)
}
