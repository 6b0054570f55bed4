package backtest

import (
	"math"

	"github.com/alejandrodnm/stratlab/internal/domain"
)

// rangeBars genera n barras con close constante y rango high-low fijo,
// útil para obtener un ATR exacto y predecible.
func rangeBars(n int, close, halfRange float64) []domain.Bar {
	bars := make([]domain.Bar, n)
	for i := range bars {
		bars[i] = domain.Bar{
			Time:   domain.TimeFromEpoch(int64(i) * 86400),
			Open:   close,
			High:   close + halfRange,
			Low:    close - halfRange,
			Close:  close,
			Volume: 1000,
		}
	}
	return bars
}

// waveBars genera n barras sinusoidales deterministas con algo de rango.
func waveBars(n int) []domain.Bar {
	bars := make([]domain.Bar, n)
	for i := range bars {
		base := 100 + 10*math.Sin(float64(i)/8) + float64(i)*0.05
		bars[i] = domain.Bar{
			Time:   domain.TimeFromEpoch(int64(i) * 86400),
			Open:   base,
			High:   base + 1.5,
			Low:    base - 1.5,
			Close:  base + 0.3*math.Sin(float64(i)/3),
			Volume: 1000 + 50*float64(i%7),
		}
	}
	return bars
}

func buyAt(bars []domain.Bar, idx int, price float64) domain.Signal {
	return domain.Signal{Time: bars[idx].Time, Type: domain.SignalBuy, Price: price, BarIndex: -1}
}

func sellAt(bars []domain.Bar, idx int, price float64) domain.Signal {
	return domain.Signal{Time: bars[idx].Time, Type: domain.SignalSell, Price: price, BarIndex: -1}
}
