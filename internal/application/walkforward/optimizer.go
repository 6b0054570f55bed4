package walkforward

// optimizer.go — scoring de la grilla por ventana, con worker pool,
// heap top-N podado y terminación temprana.
//
// El score compuesto balancea riesgo y retorno:
//
//	0.40·clip(sharpe,−2,2) + 0.25·min(PF,5) + 0.20·winRate + 0.15·max(0, 1−maxDD%/50)
//
// Candidatos por debajo del mínimo de trades puntúan −Inf y quedan fuera.
// Un pánico dentro de la evaluación de un candidato lo excluye del
// resultado sin tumbar la búsqueda (fail-soft por candidato).

import (
	"container/heap"
	"context"
	"log/slog"
	"math"
	"runtime"
	"sync"

	"github.com/alejandrodnm/stratlab/internal/domain"
)

// candidate es un punto de la grilla ya evaluado.
type candidate struct {
	params map[string]float64
	score  float64
	result domain.BacktestResult
}

// scoreResult puntúa un resultado compacto. −Inf si no alcanza minTrades.
func scoreResult(r domain.BacktestResult, minTrades int) float64 {
	if r.TotalTrades < minTrades {
		return math.Inf(-1)
	}
	sharpe := clip(r.SharpeRatio, -2, 2)
	pf := r.ProfitFactor
	if math.IsInf(pf, 1) || pf > 5 {
		pf = 5
	}
	dd := math.Max(0, 1-r.MaxDrawdownPct/50)
	return 0.40*sharpe + 0.25*pf + 0.20*r.WinRate/100 + 0.15*dd
}

// topHeap es un min-heap acotado: mantiene los N mejores candidatos.
type topHeap struct {
	items []candidate
	limit int
}

func (h *topHeap) Len() int           { return len(h.items) }
func (h *topHeap) Less(i, j int) bool { return h.items[i].score < h.items[j].score }
func (h *topHeap) Swap(i, j int)      { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *topHeap) Push(x any)         { h.items = append(h.items, x.(candidate)) }
func (h *topHeap) Pop() any {
	old := h.items
	n := len(old)
	it := old[n-1]
	h.items = old[:n-1]
	return it
}

func (h *topHeap) offer(c candidate) {
	if math.IsInf(c.score, -1) {
		return
	}
	if h.Len() < h.limit {
		heap.Push(h, c)
		return
	}
	if c.score > h.items[0].score {
		h.items[0] = c
		heap.Fix(h, 0)
	}
}

func (h *topHeap) best() float64 {
	best := math.Inf(-1)
	for _, c := range h.items {
		if c.score > best {
			best = c.score
		}
	}
	return best
}

// sortedDesc devuelve los candidatos de mejor a peor.
func (h *topHeap) sortedDesc() []candidate {
	out := make([]candidate, len(h.items))
	copy(out, h.items)
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].score > out[i].score {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out
}

// evalFunc evalúa un candidato y devuelve su resultado compacto.
type evalFunc func(params map[string]float64) domain.BacktestResult

// optimize recorre la grilla en lotes paralelos y devuelve el top-N.
// Termina temprano cuando el mejor score queda estable StableChecks lotes
// seguidos y ya se evaluó al menos MinGridFraction de la grilla.
func optimize(
	ctx context.Context,
	grid []map[string]float64,
	eval evalFunc,
	cfg Config,
	progress func(done int),
) []candidate {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = workers * 8
	}

	top := &topHeap{limit: cfg.TopN}
	evaluated := 0
	stable := 0
	lastBest := math.Inf(-1)

	for start := 0; start < len(grid); start += batchSize {
		if ctx.Err() != nil {
			break
		}
		end := start + batchSize
		if end > len(grid) {
			end = len(grid)
		}
		batch := grid[start:end]

		results := scoreBatch(batch, eval, cfg.MinTrades, workers)
		// La agregación (poda del heap) siempre es post-merge,
		// en una sola goroutine.
		for _, c := range results {
			top.offer(c)
		}
		evaluated = end
		if progress != nil {
			progress(evaluated)
		}

		best := top.best()
		if best == lastBest && !math.IsInf(best, -1) {
			stable++
		} else {
			stable = 0
			lastBest = best
		}
		if stable >= cfg.StableChecks && float64(evaluated) >= cfg.MinGridFraction*float64(len(grid)) {
			slog.Debug("grid search terminated early",
				"evaluated", evaluated, "total", len(grid), "best", best)
			break
		}
	}

	return top.sortedDesc()
}

// scoreBatch evalúa un lote en paralelo. Cada worker es read-only sobre
// los datos compartidos; los pánicos por candidato se recuperan y el
// candidato se descarta.
func scoreBatch(batch []map[string]float64, eval evalFunc, minTrades, workers int) []candidate {
	out := make([]candidate, len(batch))
	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)

	for i, params := range batch {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, params map[string]float64) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					slog.Warn("candidate evaluation panicked, dropping", "err", r)
					out[i] = candidate{params: params, score: math.Inf(-1)}
				}
			}()
			res := eval(params)
			out[i] = candidate{params: params, score: scoreResult(res, minTrades), result: res}
		}(i, params)
	}
	wg.Wait()
	return out
}

// selectParams elige los parámetros finales: promedio ponderado por score
// del top-N, anclado al step de cada rango. Si el peso total no es
// positivo o solo sobrevivió un candidato, cae al mejor a secas.
func selectParams(top []candidate, ranges []domain.ParameterRange) map[string]float64 {
	if len(top) == 0 {
		return nil
	}
	if len(top) == 1 {
		return top[0].params
	}

	totalWeight := 0.0
	for _, c := range top {
		totalWeight += c.score
	}
	if totalWeight <= 0 {
		return top[0].params
	}

	byRange := make(map[string]domain.ParameterRange, len(ranges))
	for _, r := range ranges {
		byRange[r.Name] = r
	}

	out := make(map[string]float64, len(top[0].params))
	for name := range top[0].params {
		sum := 0.0
		for _, c := range top {
			sum += c.score * c.params[name]
		}
		v := sum / totalWeight
		if r, ok := byRange[name]; ok {
			v = r.Round(v)
		}
		out[name] = v
	}
	return out
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
