package main

// data.go — carga de barras: CSV OHLCV o serie sintética determinística.

import (
	"encoding/csv"
	"fmt"
	"math"
	"math/rand"
	"os"
	"strconv"

	"github.com/alejandrodnm/stratlab/internal/domain"
)

// loadCSV lee barras de un CSV con columnas time,open,high,low,close,volume.
// La columna time acepta epoch en segundos o fecha "2006-01-02".
func loadCSV(path string) ([]domain.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loadCSV: open %q: %w", path, err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("loadCSV: parse %q: %w", path, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("loadCSV: %q: sin filas de datos", path)
	}

	bars := make([]domain.Bar, 0, len(rows)-1)
	for i, row := range rows[1:] { // salta el header
		if len(row) < 6 {
			return nil, fmt.Errorf("loadCSV: fila %d: %d columnas, esperaba 6", i+2, len(row))
		}

		var bar domain.Bar
		if epoch, err := strconv.ParseInt(row[0], 10, 64); err == nil {
			bar.Time = domain.TimeFromEpoch(epoch)
		} else {
			bar.Time = domain.TimeFromDate(row[0])
		}

		vals := make([]float64, 5)
		for j := 0; j < 5; j++ {
			v, err := strconv.ParseFloat(row[j+1], 64)
			if err != nil {
				return nil, fmt.Errorf("loadCSV: fila %d col %d: %w", i+2, j+2, err)
			}
			vals[j] = v
		}
		bar.Open, bar.High, bar.Low, bar.Close, bar.Volume = vals[0], vals[1], vals[2], vals[3], vals[4]
		bars = append(bars, bar)
	}
	return bars, nil
}

// syntheticBars genera una serie determinística con tendencia, ciclo y
// ruido sembrado: suficiente para probar el pipeline sin datos reales.
func syntheticBars(n int, seed int64) []domain.Bar {
	rng := rand.New(rand.NewSource(seed))
	bars := make([]domain.Bar, n)
	price := 100.0

	for i := range bars {
		drift := 0.02 * math.Sin(float64(i)/180)
		cycle := 2 * math.Sin(float64(i)/12)
		noise := rng.NormFloat64() * 0.8
		price = math.Max(1, price+drift+cycle*0.3+noise)

		spread := 0.5 + rng.Float64()
		bars[i] = domain.Bar{
			Time:   domain.TimeFromEpoch(int64(i) * 3600),
			Open:   price - noise/2,
			High:   price + spread,
			Low:    price - spread,
			Close:  price,
			Volume: 1000 + rng.Float64()*500,
		}
	}
	return bars
}
