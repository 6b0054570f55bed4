package domain

// ExitReason describe por qué se cerró (total o parcialmente) una posición.
type ExitReason string

const (
	ExitSignal    ExitReason = "signal"
	ExitStopLoss  ExitReason = "stop_loss"
	ExitTarget    ExitReason = "take_profit"
	ExitPartial   ExitReason = "partial_take_profit"
	ExitTimeStop  ExitReason = "time_stop"
	ExitEndOfData ExitReason = "end_of_data"
)

// Trade es el registro inmutable de una salida completada (posiblemente
// parcial). El simulador los produce en orden de cierre; nunca se mutan.
type Trade struct {
	ID         string
	Direction  TradeDirection
	EntryTime  TimeValue
	ExitTime   TimeValue
	EntryPrice float64
	ExitPrice  float64
	Size       float64 // shares cerrados en esta salida
	PnL        float64 // neto de fees
	PnLPercent float64 // sobre el notional de entrada
	Fees       float64
	Reason     ExitReason
}

// EquityPoint es un punto de la curva de capital mark-to-market.
// Hay exactamente uno por barra, monotónico en tiempo.
type EquityPoint struct {
	Time   TimeValue
	Equity float64
}

// BacktestResult es el resumen agregado de una simulación.
// La variante compacta omite Trades y EquityCurve pero debe coincidir
// en todos los escalares con la variante completa.
type BacktestResult struct {
	NetProfit        float64
	NetProfitPercent float64
	WinRate          float64 // porcentaje 0-100
	Expectancy       float64
	AvgTrade         float64
	ProfitFactor     float64 // +Inf solo si hay profit y cero pérdidas
	MaxDrawdown      float64
	MaxDrawdownPct   float64
	TotalTrades      int
	WinningTrades    int
	LosingTrades     int
	AvgWin           float64
	AvgLoss          float64 // negativo o cero
	SharpeRatio      float64

	Trades      []Trade       // nil en la variante compacta
	EquityCurve []EquityPoint // nil en la variante compacta
}
