package backtest

// prepare.go — convierte señales crudas en eventos de ejecución programados.
//
// Aquí se resuelve TODO lo que pasa entre "la estrategia dijo buy" y
// "el simulador ejecuta en la barra N al precio P": modelo de ejecución,
// confirmación de entrada y filtros de régimen. Una entrada que no pasa
// los filtros se descarta en silencio (fail-soft); las salidas del tipo
// opuesto siempre pasan.

import (
	"log/slog"
	"math"
	"sort"

	"github.com/alejandrodnm/stratlab/internal/domain"
	"github.com/alejandrodnm/stratlab/internal/indicators"
)

// EventKind distingue entradas de salidas para la dirección del run.
type EventKind int

const (
	EventEntry EventKind = iota
	EventExit
)

// Event es una señal resuelta a barra e índice de fill concretos.
type Event struct {
	Time     domain.TimeValue
	BarIndex int
	Price    float64
	Kind     EventKind
	Seq      int // orden de emisión original, desempata el sort
	Reason   string
}

// filterSeries agrupa las series de indicadores que usan los filtros.
type filterSeries struct {
	atr    []float64
	ema    []float64
	adx    []float64
	rsi    []float64
	volSMA []float64
}

func buildFilterSeries(ds indicators.Dataset, cache *indicators.Cache, st domain.Settings) filterSeries {
	fs := filterSeries{atr: cache.ATR(ds, st.ATRPeriod)}
	if st.TrendEMAPeriod > 0 {
		fs.ema = cache.EMA(ds, st.TrendEMAPeriod)
	}
	if st.ADXPeriod > 0 {
		fs.adx = cache.ADX(ds, st.ADXPeriod)
	}
	if st.TradeFilterMode == domain.FilterRSI {
		fs.rsi = cache.RSI(ds, st.RSIPeriod)
	}
	if st.TradeFilterMode == domain.FilterVolume {
		fs.volSMA = cache.VolumeSMA(ds, st.VolumeSMAPeriod)
	}
	return fs
}

// PrepareEvents resuelve cada señal a su barra de ejecución y precio de
// fill según el modelo de ejecución, y aplica confirmación + filtros de
// régimen a las entradas. dir debe ser long o short, nunca both.
// El output queda ordenado de forma estable por (tiempo, orden de emisión).
func PrepareEvents(
	ds indicators.Dataset,
	cache *indicators.Cache,
	signals []domain.Signal,
	st domain.Settings,
	dir domain.TradeDirection,
) []Event {
	bars := ds.Bars
	if len(bars) == 0 {
		return nil
	}
	fs := buildFilterSeries(ds, cache, st)

	entryType := domain.SignalBuy
	if dir == domain.DirectionShort {
		entryType = domain.SignalSell
	}

	shift := 1
	if st.ExecutionModel == domain.ExecSignalClose {
		shift = 0
	}

	events := make([]Event, 0, len(signals))
	for seq, sig := range signals {
		// El índice explícito tiene prioridad sobre el lookup por tiempo.
		// Cero es el zero value de BarIndex, no un índice fiable: esa señal
		// se resuelve por tiempo (y cae en la barra 0 solo si le toca).
		idx := sig.BarIndex
		if idx <= 0 || idx >= len(bars) {
			idx = domain.FindBarIndex(bars, sig.Time)
		}
		if idx < 0 {
			continue
		}

		isEntry := sig.Type == entryType
		execIdx := idx + shift

		// La confirmación por close obliga a esperar al menos una barra.
		if isEntry && st.TradeFilterMode == domain.FilterClose && execIdx <= idx {
			execIdx = idx + 1
		}
		if execIdx >= len(bars) {
			continue // no hay barra donde ejecutar
		}

		if isEntry {
			if !confirmEntry(bars, fs, st, dir, execIdx) {
				slog.Debug("entry rejected by confirmation filter",
					"signal", sig.Time.String(), "bar", execIdx)
				continue
			}
			if !regimeAllows(bars, fs, st, dir, execIdx) {
				slog.Debug("entry rejected by regime filter",
					"signal", sig.Time.String(), "bar", execIdx)
				continue
			}
		}

		kind := EventExit
		if isEntry {
			kind = EventEntry
		}
		events = append(events, Event{
			Time:     bars[execIdx].Time,
			BarIndex: execIdx,
			Price:    fillPrice(bars, sig, st, idx, execIdx),
			Kind:     kind,
			Seq:      seq,
			Reason:   sig.Reason,
		})
	}

	sort.SliceStable(events, func(i, j int) bool {
		if c := events[i].Time.Compare(events[j].Time); c != 0 {
			return c < 0
		}
		return events[i].Seq < events[j].Seq
	})
	return events
}

// fillPrice resuelve el precio de fill según el modelo de ejecución.
// El precio propio de la señal solo vale cuando el modelo es signal_close
// y no hubo shift (la confirmación puede forzar shift bajo signal_close).
func fillPrice(bars []domain.Bar, sig domain.Signal, st domain.Settings, idx, execIdx int) float64 {
	if st.ExecutionModel == domain.ExecSignalClose && execIdx == idx {
		if sig.Price > 0 {
			return sig.Price
		}
		return bars[idx].Close
	}
	if st.ExecutionModel == domain.ExecNextOpen {
		return bars[execIdx].Open
	}
	return bars[execIdx].Close
}

// confirmEntry evalúa el filtro de confirmación en la barra de ejecución.
// Los filtros direccionales (close, rsi) producen un estado ±1/0 que se
// interseca con la dirección requerida; volume es neutral.
func confirmEntry(bars []domain.Bar, fs filterSeries, st domain.Settings, dir domain.TradeDirection, i int) bool {
	want := 1
	if dir == domain.DirectionShort {
		want = -1
	}

	switch st.TradeFilterMode {
	case domain.FilterNone:
		return true

	case domain.FilterClose:
		ref := i - st.ConfirmLookback
		if ref < 0 {
			return false
		}
		state := 0
		if bars[i].Close > bars[ref].Close {
			state = 1
		} else if bars[i].Close < bars[ref].Close {
			state = -1
		}
		return state == want

	case domain.FilterVolume:
		sma := fs.volSMA[i]
		if math.IsNaN(sma) {
			return false
		}
		return bars[i].Volume >= sma*st.VolumeMultiplier

	case domain.FilterRSI:
		rsi := fs.rsi[i]
		if math.IsNaN(rsi) {
			return false
		}
		state := 0
		if rsi >= st.RSIBullish {
			state = 1
		} else if rsi <= st.RSIBearish {
			state = -1
		}
		return state == want
	}
	return true
}

// regimeAllows evalúa los tres filtros de régimen en la barra de ejecución.
// Un indicador todavía en warm-up (NaN) rechaza la entrada: skip, no error.
func regimeAllows(bars []domain.Bar, fs filterSeries, st domain.Settings, dir domain.TradeDirection, i int) bool {
	sign := 1.0
	if dir == domain.DirectionShort {
		sign = -1.0
	}

	// Tendencia: close del lado correcto de la EMA y pendiente a favor.
	if st.TrendEMAPeriod > 0 {
		ref := i - st.TrendSlopeBars
		if ref < 0 {
			return false
		}
		ema, prev := fs.ema[i], fs.ema[ref]
		if math.IsNaN(ema) || math.IsNaN(prev) {
			return false
		}
		if sign*(bars[i].Close-ema) <= 0 || sign*(ema-prev) <= 0 {
			return false
		}
	}

	// Banda de volatilidad: ATR como % del close dentro de [min, max].
	if st.ATRPctMin > 0 || st.ATRPctMax > 0 {
		atr := fs.atr[i]
		if math.IsNaN(atr) || bars[i].Close <= 0 {
			return false
		}
		pct := atr / bars[i].Close * 100
		if pct < st.ATRPctMin {
			return false
		}
		if st.ATRPctMax > 0 && pct > st.ATRPctMax {
			return false
		}
	}

	// Banda de fuerza de tendencia: ADX dentro de [min, max].
	if st.ADXPeriod > 0 {
		adx := fs.adx[i]
		if math.IsNaN(adx) {
			return false
		}
		if adx < st.ADXMin {
			return false
		}
		if st.ADXMax > 0 && adx > st.ADXMax {
			return false
		}
	}

	return true
}
