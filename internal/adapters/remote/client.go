package remote

// client.go — cliente HTTP para un motor de backtest alterno.
//
// El resultado remoto se acepta solo si pasa el check de consistencia
// (conteos cuadrados, win rate y avg trade derivables de los propios
// números); si no pasa, el caller se queda con el motor primario.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/alejandrodnm/stratlab/internal/domain"
	"github.com/alejandrodnm/stratlab/internal/ports"
)

const (
	requestsPerSec = 5
	maxRetries     = 3
	baseRetryWait  = 500 * time.Millisecond
)

// Tolerances parametriza el check de consistencia del motor remoto.
type Tolerances struct {
	WinRatePoints float64 // puntos de win rate (default 1)
	AvgTradeAbs   float64 // piso absoluto del avg trade (default 0.01)
	AvgTradeRel   float64 // tolerancia relativa del avg trade (default 0.15)
}

// DefaultTolerances son las tolerancias estándar del check.
func DefaultTolerances() Tolerances {
	return Tolerances{WinRatePoints: 1, AvgTradeAbs: 0.01, AvgTradeRel: 0.15}
}

// Client implementa ports.RemoteEngine contra un servicio HTTP.
type Client struct {
	http    *http.Client
	base    string
	limiter *rate.Limiter
	tol     Tolerances
}

// NewClient crea un Client contra el base URL dado.
func NewClient(base string, tol Tolerances) *Client {
	if tol == (Tolerances{}) {
		tol = DefaultTolerances()
	}
	return &Client{
		http:    &http.Client{Timeout: 30 * time.Second},
		base:    base,
		limiter: rate.NewLimiter(requestsPerSec, 2),
		tol:     tol,
	}
}

type runRequest struct {
	Bars     []domain.Bar    `json:"bars"`
	Signals  []domain.Signal `json:"signals"`
	Settings domain.Settings `json:"settings"`
}

// Run envía el backtest al motor remoto y valida su resultado. Un
// resultado inconsistente es un error: el caller decide el fallback.
func (c *Client) Run(ctx context.Context, bars []domain.Bar, signals []domain.Signal, st domain.Settings) (domain.BacktestResult, error) {
	var res domain.BacktestResult
	req := runRequest{Bars: bars, Signals: signals, Settings: st}
	if err := c.post(ctx, c.base+"/backtest", req, &res); err != nil {
		return domain.BacktestResult{}, fmt.Errorf("remote.Run: %w", err)
	}
	if !Consistent(res, c.tol) {
		return domain.BacktestResult{}, fmt.Errorf("remote.Run: resultado remoto inconsistente (trades=%d win=%d loss=%d)",
			res.TotalTrades, res.WinningTrades, res.LosingTrades)
	}
	return res, nil
}

// Fallback intenta el motor remoto y se queda con el resultado primario
// si el remoto falla o reporta números inconsistentes.
func Fallback(ctx context.Context, engine ports.RemoteEngine, primary domain.BacktestResult, bars []domain.Bar, signals []domain.Signal, st domain.Settings) domain.BacktestResult {
	res, err := engine.Run(ctx, bars, signals, st)
	if err != nil {
		slog.Warn("remote engine rejected, keeping primary result", "err", err)
		return primary
	}
	return res
}

// Consistent valida que los números reportados sean internamente
// derivables: conteos cuadrados, win rate dentro de la tolerancia y
// avg trade dentro del máximo entre el piso absoluto y el relativo.
func Consistent(r domain.BacktestResult, tol Tolerances) bool {
	if r.TotalTrades != r.WinningTrades+r.LosingTrades {
		return false
	}
	if r.TotalTrades == 0 {
		return true
	}

	derivedWinRate := float64(r.WinningTrades) / float64(r.TotalTrades) * 100
	if math.Abs(derivedWinRate-r.WinRate) > tol.WinRatePoints {
		return false
	}

	derivedAvgTrade := r.NetProfit / float64(r.TotalTrades)
	allowed := math.Max(tol.AvgTradeAbs, tol.AvgTradeRel*math.Abs(r.AvgTrade))
	return math.Abs(derivedAvgTrade-r.AvgTrade) <= allowed
}

// post hace un POST JSON con rate limiting y retries.
func (c *Client) post(ctx context.Context, url string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if attempt == maxRetries {
				return fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("server error %d after %d retries", resp.StatusCode, maxRetries)
			}
			slog.Warn("remote engine retry", "status", resp.StatusCode, "attempt", attempt+1)
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("client error %d: %s", resp.StatusCode, string(body))
		}

		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

// sleep espera con backoff exponencial, respetando el contexto.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
