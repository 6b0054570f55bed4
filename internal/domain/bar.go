package domain

// Bar representa un intervalo OHLCV. La secuencia de barras es inmutable
// una vez ingerida: los componentes la comparten por slice sin copiar.
type Bar struct {
	Time   TimeValue
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// SignalType es el tipo de señal abstracta emitida por una estrategia.
type SignalType string

const (
	SignalBuy  SignalType = "buy"
	SignalSell SignalType = "sell"
)

// Signal es una recomendación abstracta de compra/venta en un tiempo/precio.
// Las produce una estrategia externa; son puras y sin efectos secundarios.
type Signal struct {
	Time   TimeValue
	Type   SignalType
	Price  float64
	Reason string

	// BarIndex es el índice explícito de barra si la estrategia lo conoce.
	// El zero value no distingue "barra 0" de "no informado": un valor
	// <= 0 se resuelve por lookup de tiempo.
	BarIndex int
}

// FindBarIndex devuelve el índice de la primera barra con clave de tiempo
// >= la del target, o -1 si el target queda después de la última barra.
// Las barras deben estar ordenadas cronológicamente.
func FindBarIndex(bars []Bar, target TimeValue) int {
	key := target.Key()
	lo, hi := 0, len(bars)
	for lo < hi {
		mid := (lo + hi) / 2
		if bars[mid].Time.Key() < key {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo >= len(bars) {
		return -1
	}
	return lo
}
