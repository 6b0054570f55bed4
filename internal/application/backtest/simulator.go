package backtest

// simulator.go — máquina de estados Flat/Open que convierte eventos
// programados en trades realizados y una curva de equity.
//
// El orden de chequeos por barra NO es conmutativo y debe preservarse:
//  1. bars-held++
//  2. stop-loss         → salida al stop ajustado por slippage
//  3. take-profit       → salida al target
//  4. partial TP        → salida parcial, una sola vez
//  5. time-stop         → solo si la posición pierde y lleva N barras
//  6. break-even + trailing ATR (ratchet), luego tracker de extremo
//  7. eventos programados de la barra (entradas solo en Flat, salidas
//     solo en Open; un evento saltado no se reintenta)
//
// Una posición abierta en la última barra se cierra forzosamente al close.

import (
	"math"

	"github.com/alejandrodnm/stratlab/internal/domain"
	"github.com/alejandrodnm/stratlab/internal/indicators"
	"github.com/google/uuid"
)

// position es el estado mutable de la única posición abierta.
// Existe 0 o 1 a la vez; el loop del simulador es su único dueño.
type position struct {
	entryTime  domain.TimeValue
	entryIndex int
	entryPrice float64 // fill ya ajustado por slippage
	size       float64 // shares restantes

	riskPerShare  float64
	stop          float64 // 0 = sin stop
	target        float64 // 0 = sin target
	partialTarget float64 // 0 = sin partial TP

	partialTaken     bool
	breakEvenApplied bool
	extreme          float64 // mejor precio a favor visto hasta la barra anterior
	barsHeld         int
}

// Simulator ejecuta una dirección fija (long o short) sobre una serie.
// "both" se maneja fuera, corriendo dos simulaciones y fusionando.
type Simulator struct {
	bars   []domain.Bar
	atr    []float64
	st     domain.Settings
	dir    domain.TradeDirection
	events []Event

	capital float64
	pos     *position
	sign    float64 // +1 long, -1 short

	onTrade  func(domain.Trade)
	onEquity func(domain.EquityPoint)
}

// NewSimulator crea un simulador para la dirección dada (long o short).
func NewSimulator(
	ds indicators.Dataset,
	cache *indicators.Cache,
	events []Event,
	st domain.Settings,
	dir domain.TradeDirection,
) *Simulator {
	sign := 1.0
	if dir == domain.DirectionShort {
		sign = -1.0
	}
	return &Simulator{
		bars:    ds.Bars,
		atr:     cache.ATR(ds, st.ATRPeriod),
		st:      st,
		dir:     dir,
		events:  events,
		capital: st.InitialCapital,
		sign:    sign,
	}
}

// Run ejecuta la simulación materializando trades y curva de equity.
func (s *Simulator) Run() ([]domain.Trade, []domain.EquityPoint) {
	trades := make([]domain.Trade, 0)
	equity := make([]domain.EquityPoint, 0, len(s.bars))
	s.RunStream(
		func(t domain.Trade) { trades = append(trades, t) },
		func(p domain.EquityPoint) { equity = append(equity, p) },
	)
	return trades, equity
}

// RunStream ejecuta la simulación emitiendo trades y puntos de equity por
// callback, sin materializar arrays. Es la base de la variante compacta.
func (s *Simulator) RunStream(onTrade func(domain.Trade), onEquity func(domain.EquityPoint)) {
	s.onTrade = onTrade
	s.onEquity = onEquity
	s.capital = s.st.InitialCapital
	s.pos = nil

	// Eventos agrupados por barra, preservando el orden preparado.
	byBar := make(map[int][]Event, len(s.events))
	for _, ev := range s.events {
		byBar[ev.BarIndex] = append(byBar[ev.BarIndex], ev)
	}

	advanced := s.st.RiskMode == domain.RiskAdvanced

	for i, bar := range s.bars {
		if p := s.pos; p != nil {
			// 1. contador de barras en posición
			p.barsHeld++

			// 2. stop-loss: el high/low cruza el stop
			if p.stop > 0 && s.crossedAgainst(bar, p.stop) {
				s.closePosition(i, p.size, p.stop, bar.Time, domain.ExitStopLoss)
			}
		}

		if p := s.pos; p != nil {
			// 3. take-profit, independiente del stop
			if p.target > 0 && s.crossedInFavor(bar, p.target) {
				s.closePosition(i, p.size, p.target, bar.Time, domain.ExitTarget)
			}
		}

		if p := s.pos; p != nil && advanced {
			// 4. partial take-profit, una sola vez
			if !p.partialTaken && p.partialTarget > 0 && s.crossedInFavor(bar, p.partialTarget) {
				// partialTaken solo se marca si de verdad se cerró algo;
				// una fracción inválida (>= 100%) no consume el intento.
				q := p.size * s.st.PartialTakeProfitPct / 100
				if q > 0 && q < p.size {
					s.closePosition(i, q, p.partialTarget, bar.Time, domain.ExitPartial)
					if s.pos != nil {
						s.pos.partialTaken = true
					}
				}
			}
		}

		if p := s.pos; p != nil && advanced {
			// 5. time-stop: solo fuerza salida si la posición está perdiendo
			losing := s.sign*(bar.Close-p.entryPrice) < 0
			if s.st.TimeStopBars > 0 && p.barsHeld >= s.st.TimeStopBars && losing {
				s.closePosition(i, p.size, bar.Close, bar.Time, domain.ExitTimeStop)
			}
		}

		if p := s.pos; p != nil {
			// 6. break-even y trailing usan el extremo hasta la barra
			// anterior; el tracker se actualiza después.
			if advanced && s.st.BreakEvenAtR > 0 && !p.breakEvenApplied && p.riskPerShare > 0 {
				excursion := s.sign * (s.favorablePrice(bar) - p.entryPrice)
				if excursion >= s.st.BreakEvenAtR*p.riskPerShare {
					s.ratchetStop(p, p.entryPrice)
					p.breakEvenApplied = true
				}
			}
			if advanced && s.st.TrailingATR > 0 && !math.IsNaN(s.atr[i]) {
				s.ratchetStop(p, p.extreme-s.sign*s.atr[i]*s.st.TrailingATR)
			}
			if s.sign*(s.favorablePrice(bar)-p.extreme) > 0 {
				p.extreme = s.favorablePrice(bar)
			}
		}

		// 7. eventos programados de esta barra
		for _, ev := range byBar[i] {
			switch ev.Kind {
			case EventEntry:
				if s.pos == nil {
					s.openPosition(i, ev, bar.Time)
				}
			case EventExit:
				p := s.pos
				if p == nil {
					continue
				}
				if !s.st.AllowSameBarExit && p.entryIndex == i {
					continue
				}
				s.closePosition(i, p.size, ev.Price, bar.Time, domain.ExitSignal)
			}
		}

		s.emitEquity(bar)
	}

	// Posición remanente: cierre forzoso al último close.
	if s.pos != nil && len(s.bars) > 0 {
		last := s.bars[len(s.bars)-1]
		s.closePosition(len(s.bars)-1, s.pos.size, last.Close, last.Time, domain.ExitEndOfData)
	}
}

// openPosition dimensiona y abre una posición en el evento dado.
// Sizing no positivo o ATR requerido ausente ⇒ evento saltado, sin error.
func (s *Simulator) openPosition(i int, ev Event, t domain.TimeValue) {
	fill := s.slippageEntry(ev.Price)
	if fill <= 0 {
		return
	}

	var shares float64
	switch s.st.SizingMode {
	case domain.SizingFixedDollar:
		shares = s.st.FixedDollar / fill
	default:
		shares = s.capital * s.st.PositionSizePct / 100 / fill
	}
	if math.IsNaN(shares) || math.IsInf(shares, 0) || shares <= 0 {
		return
	}

	atr := s.atr[i]
	needsATR := s.st.RiskMode != domain.RiskPercentage &&
		(s.st.StopLossATR > 0 || s.st.TakeProfitATR > 0 ||
			s.st.PartialTakeProfitATR > 0 || s.st.TrailingATR > 0)
	if needsATR && math.IsNaN(atr) {
		return // indicador en warm-up: se salta la entrada, no se reintenta
	}

	p := &position{
		entryTime:  t,
		entryIndex: i,
		entryPrice: fill,
		size:       shares,
		extreme:    fill,
	}

	switch s.st.RiskMode {
	case domain.RiskPercentage:
		if s.st.StopLossEnabled && s.st.StopLossPct > 0 {
			p.stop = fill * (1 - s.sign*s.st.StopLossPct/100)
		}
		if s.st.TakeProfitEnabled && s.st.TakeProfitPct > 0 {
			p.target = fill * (1 + s.sign*s.st.TakeProfitPct/100)
		}
	default: // simple | advanced
		if s.st.StopLossATR > 0 {
			p.stop = fill - s.sign*atr*s.st.StopLossATR
		}
		if s.st.TakeProfitATR > 0 {
			p.target = fill + s.sign*atr*s.st.TakeProfitATR
		}
		if s.st.RiskMode == domain.RiskAdvanced && s.st.PartialTakeProfitATR > 0 {
			p.partialTarget = fill + s.sign*atr*s.st.PartialTakeProfitATR
		}
	}

	if p.stop > 0 {
		p.riskPerShare = math.Abs(fill - p.stop)
	} else if !math.IsNaN(atr) {
		p.riskPerShare = atr
	}

	s.pos = p
}

// closePosition cierra q shares al precio dado (ajustado por slippage) y
// emite el trade. La comisión se cobra sobre el notional de ambas patas,
// pro rata de los shares cerrados.
func (s *Simulator) closePosition(_ int, q, price float64, t domain.TimeValue, reason domain.ExitReason) {
	p := s.pos
	if p == nil || q <= 0 {
		return
	}
	if q > p.size {
		q = p.size
	}

	exitFill := s.slippageExit(price)
	entryNotional := p.entryPrice * q
	exitNotional := exitFill * q
	fees := (entryNotional + exitNotional) * s.st.CommissionRate

	pnl := s.sign*(exitFill-p.entryPrice)*q - fees
	pnlPct := 0.0
	if entryNotional != 0 {
		pnlPct = pnl / entryNotional * 100
	}

	s.capital += pnl
	p.size -= q

	if s.onTrade != nil {
		s.onTrade(domain.Trade{
			ID:         uuid.New().String(),
			Direction:  s.dir,
			EntryTime:  p.entryTime,
			ExitTime:   t,
			EntryPrice: p.entryPrice,
			ExitPrice:  exitFill,
			Size:       q,
			PnL:        pnl,
			PnLPercent: pnlPct,
			Fees:       fees,
			Reason:     reason,
		})
	}

	if p.size <= 1e-12 {
		s.pos = nil
	}
}

// crossedAgainst devuelve true si la barra cruzó el nivel en contra
// (low ≤ stop para long, high ≥ stop para short).
func (s *Simulator) crossedAgainst(bar domain.Bar, level float64) bool {
	if s.sign > 0 {
		return bar.Low <= level
	}
	return bar.High >= level
}

// crossedInFavor devuelve true si la barra cruzó el nivel a favor.
func (s *Simulator) crossedInFavor(bar domain.Bar, level float64) bool {
	if s.sign > 0 {
		return bar.High >= level
	}
	return bar.Low <= level
}

// favorablePrice es el precio más favorable de la barra para la dirección.
func (s *Simulator) favorablePrice(bar domain.Bar) float64 {
	if s.sign > 0 {
		return bar.High
	}
	return bar.Low
}

// ratchetStop mueve el stop solo hacia el lado favorable, nunca lo afloja.
func (s *Simulator) ratchetStop(p *position, candidate float64) {
	if candidate <= 0 {
		return
	}
	if p.stop == 0 || s.sign*(candidate-p.stop) > 0 {
		p.stop = candidate
	}
}

// slippageEntry ajusta el precio de entrada en contra del trader.
func (s *Simulator) slippageEntry(price float64) float64 {
	return price * (1 + s.sign*s.st.SlippageBps/10000)
}

// slippageExit ajusta el precio de salida en contra del trader.
func (s *Simulator) slippageExit(price float64) float64 {
	return price * (1 - s.sign*s.st.SlippageBps/10000)
}

func (s *Simulator) emitEquity(bar domain.Bar) {
	eq := s.capital
	if p := s.pos; p != nil {
		eq += s.sign * (bar.Close - p.entryPrice) * p.size
	}
	if s.onEquity != nil {
		s.onEquity(domain.EquityPoint{Time: bar.Time, Equity: eq})
	}
}
