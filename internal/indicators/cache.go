package indicators

// cache.go — cache de indicadores keyed por (dataset, indicador, periodo).
//
// La clave es un handle explícito de dataset + tupla de parámetros, nunca
// la identidad del slice: el mismo dataset consultado desde ventanas
// distintas del walk-forward comparte resultados de forma estable.

import (
	"fmt"
	"sync"

	"github.com/alejandrodnm/stratlab/internal/domain"
	"github.com/google/uuid"
)

// Dataset es un handle estable sobre una serie inmutable de barras.
type Dataset struct {
	ID   string
	Bars []domain.Bar
}

// NewDataset envuelve una serie de barras con un handle único.
// Las barras no deben mutarse después.
func NewDataset(bars []domain.Bar) Dataset {
	return Dataset{ID: uuid.New().String(), Bars: bars}
}

// Slice deriva un sub-dataset [from, to) con su propio handle estable,
// determinístico respecto al dataset padre y los límites.
func (d Dataset) Slice(from, to int) Dataset {
	return Dataset{
		ID:   fmt.Sprintf("%s[%d:%d]", d.ID, from, to),
		Bars: d.Bars[from:to],
	}
}

// Cache memoiza series de indicadores por dataset y periodo.
// Seguro para uso concurrente (el grid search lo comparte entre workers).
type Cache struct {
	mu      sync.Mutex
	entries map[string][]float64
}

// NewCache crea una cache vacía.
func NewCache() *Cache {
	return &Cache{entries: make(map[string][]float64)}
}

func (c *Cache) get(key string, compute func() []float64) []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.entries[key]; ok {
		return v
	}
	v := compute()
	c.entries[key] = v
	return v
}

// ATR devuelve la serie ATR del dataset, calculándola una sola vez.
func (c *Cache) ATR(d Dataset, period int) []float64 {
	return c.get(fmt.Sprintf("%s/atr/%d", d.ID, period), func() []float64 {
		return ATR(d.Bars, period)
	})
}

// EMA devuelve la serie EMA del dataset.
func (c *Cache) EMA(d Dataset, period int) []float64 {
	return c.get(fmt.Sprintf("%s/ema/%d", d.ID, period), func() []float64 {
		return EMA(d.Bars, period)
	})
}

// RSI devuelve la serie RSI del dataset.
func (c *Cache) RSI(d Dataset, period int) []float64 {
	return c.get(fmt.Sprintf("%s/rsi/%d", d.ID, period), func() []float64 {
		return RSI(d.Bars, period)
	})
}

// ADX devuelve la serie ADX del dataset.
func (c *Cache) ADX(d Dataset, period int) []float64 {
	return c.get(fmt.Sprintf("%s/adx/%d", d.ID, period), func() []float64 {
		return ADX(d.Bars, period)
	})
}

// VolumeSMA devuelve la SMA de volumen del dataset.
func (c *Cache) VolumeSMA(d Dataset, period int) []float64 {
	return c.get(fmt.Sprintf("%s/volsma/%d", d.ID, period), func() []float64 {
		return VolumeSMA(d.Bars, period)
	})
}
