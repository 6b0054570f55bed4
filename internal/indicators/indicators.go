package indicators

// indicators.go — series completas por barra, con NaN durante el warm-up.
//
// Todas las funciones devuelven un slice de la misma longitud que las
// barras de entrada. Un valor NaN significa "indicador todavía no formado";
// los consumidores deben tratarlo como dato faltante (skip), nunca como 0.

import (
	"math"

	"github.com/alejandrodnm/stratlab/internal/domain"
)

// EMA calcula la media móvil exponencial de los closes.
// Seed: SMA de los primeros `period` closes; NaN antes de eso.
func EMA(bars []domain.Bar, period int) []float64 {
	out := nanSlice(len(bars))
	if period <= 0 || len(bars) < period {
		return out
	}

	alpha := 2.0 / float64(period+1)
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += bars[i].Close
	}
	out[period-1] = sum / float64(period)

	for i := period; i < len(bars); i++ {
		out[i] = bars[i].Close*alpha + out[i-1]*(1-alpha)
	}
	return out
}

// SMA calcula la media móvil simple sobre los valores dados.
func SMA(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}

	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// VolumeSMA calcula la media móvil simple del volumen.
func VolumeSMA(bars []domain.Bar, period int) []float64 {
	vols := make([]float64, len(bars))
	for i, b := range bars {
		vols[i] = b.Volume
	}
	return SMA(vols, period)
}

// ATR calcula el Average True Range con suavizado de Wilder.
func ATR(bars []domain.Bar, period int) []float64 {
	out := nanSlice(len(bars))
	if period <= 0 || len(bars) < period+1 {
		return out
	}

	// TR de la barra i usa el close de i-1; la barra 0 no tiene TR.
	sum := 0.0
	for i := 1; i <= period; i++ {
		sum += trueRange(bars[i], bars[i-1].Close)
	}
	out[period] = sum / float64(period)

	for i := period + 1; i < len(bars); i++ {
		tr := trueRange(bars[i], bars[i-1].Close)
		out[i] = (out[i-1]*float64(period-1) + tr) / float64(period)
	}
	return out
}

// RSI calcula el Relative Strength Index con suavizado de Wilder.
func RSI(bars []domain.Bar, period int) []float64 {
	out := nanSlice(len(bars))
	if period <= 0 || len(bars) < period+1 {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		d := bars[i].Close - bars[i-1].Close
		if d > 0 {
			avgGain += d
		} else {
			avgLoss -= d
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(bars); i++ {
		d := bars[i].Close - bars[i-1].Close
		gain, loss := 0.0, 0.0
		if d > 0 {
			gain = d
		} else {
			loss = -d
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

// ADX calcula el Average Directional Index con suavizado de Wilder.
func ADX(bars []domain.Bar, period int) []float64 {
	out := nanSlice(len(bars))
	// ADX necesita period barras de DI + period de suavizado del DX.
	if period <= 0 || len(bars) < 2*period+1 {
		return out
	}

	n := len(bars)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	tr := make([]float64, n)
	for i := 1; i < n; i++ {
		up := bars[i].High - bars[i-1].High
		down := bars[i-1].Low - bars[i].Low
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
		tr[i] = trueRange(bars[i], bars[i-1].Close)
	}

	// Sumas suavizadas de Wilder.
	var smTR, smPlus, smMinus float64
	for i := 1; i <= period; i++ {
		smTR += tr[i]
		smPlus += plusDM[i]
		smMinus += minusDM[i]
	}

	dx := nanSlice(n)
	dx[period] = dxValue(smPlus, smMinus, smTR)
	for i := period + 1; i < n; i++ {
		smTR = smTR - smTR/float64(period) + tr[i]
		smPlus = smPlus - smPlus/float64(period) + plusDM[i]
		smMinus = smMinus - smMinus/float64(period) + minusDM[i]
		dx[i] = dxValue(smPlus, smMinus, smTR)
	}

	// ADX = media de Wilder del DX.
	sum := 0.0
	for i := period; i < 2*period; i++ {
		sum += dx[i]
	}
	out[2*period-1] = sum / float64(period)
	for i := 2 * period; i < n; i++ {
		out[i] = (out[i-1]*float64(period-1) + dx[i]) / float64(period)
	}
	return out
}

func trueRange(b domain.Bar, prevClose float64) float64 {
	tr := b.High - b.Low
	if hc := math.Abs(b.High - prevClose); hc > tr {
		tr = hc
	}
	if lc := math.Abs(b.Low - prevClose); lc > tr {
		tr = lc
	}
	return tr
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

func dxValue(plus, minus, tr float64) float64 {
	if tr == 0 {
		return 0
	}
	plusDI := 100 * plus / tr
	minusDI := 100 * minus / tr
	sum := plusDI + minusDI
	if sum == 0 {
		return 0
	}
	return 100 * math.Abs(plusDI-minusDI) / sum
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
