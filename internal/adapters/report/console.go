package report

// console.go — presentación de resultados en consola.
//
// Tres vistas: backtest (tabla de trades + métricas), walk-forward
// (tabla por ventana + agregados de robustez) y monte carlo (tabla de
// percentiles + veredicto). Todo escribe a un io.Writer para poder
// testearlo con un buffer.

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/stratlab/internal/domain"
)

// Console implementa ports.Reporter.
type Console struct {
	out       io.Writer
	maxTrades int // trades a listar en el detalle del backtest
}

// NewConsole crea un reporter que escribe a stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout, maxTrades: 15}
}

// NewConsoleWriter crea un reporter para tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w, maxTrades: 15}
}

// Backtest imprime el resumen y los últimos trades de un backtest.
func (c *Console) Backtest(strategy string, r domain.BacktestResult) {
	fmt.Fprintf(c.out, "\n=== BACKTEST — %s ===\n\n", strategy)

	table := tablewriter.NewWriter(c.out)
	table.Header("Trades", "Win%", "Net P&L", "Net%", "PF", "Sharpe", "MaxDD%", "Expectancy")
	table.Append(
		fmt.Sprintf("%d (%dW/%dL)", r.TotalTrades, r.WinningTrades, r.LosingTrades),
		fmt.Sprintf("%.1f", r.WinRate),
		fmt.Sprintf("$%.2f", r.NetProfit),
		fmt.Sprintf("%.2f%%", r.NetProfitPercent),
		pfLabel(r.ProfitFactor),
		fmt.Sprintf("%.2f", r.SharpeRatio),
		fmt.Sprintf("%.2f", r.MaxDrawdownPct),
		fmt.Sprintf("$%.2f", r.Expectancy),
	)
	table.Render()

	if len(r.Trades) == 0 {
		fmt.Fprintln(c.out, "\n  Sin trades ejecutados.")
		return
	}

	trades := r.Trades
	if len(trades) > c.maxTrades {
		fmt.Fprintf(c.out, "\n  Últimos %d de %d trades:\n", c.maxTrades, len(trades))
		trades = trades[len(trades)-c.maxTrades:]
	}

	detail := tablewriter.NewWriter(c.out)
	detail.Header("Dir", "Entry", "Exit", "Size", "P&L", "P&L%", "Fees", "Reason")
	for _, t := range trades {
		detail.Append(
			string(t.Direction),
			fmt.Sprintf("%.4f", t.EntryPrice),
			fmt.Sprintf("%.4f", t.ExitPrice),
			fmt.Sprintf("%.2f", t.Size),
			fmt.Sprintf("$%.2f", t.PnL),
			fmt.Sprintf("%.2f%%", t.PnLPercent),
			fmt.Sprintf("$%.2f", t.Fees),
			string(t.Reason),
		)
	}
	detail.Render()
	fmt.Fprintln(c.out)
}

// WalkForward imprime la tabla por ventana y los agregados de robustez.
func (c *Console) WalkForward(strategy string, r domain.WalkForwardResult) {
	fmt.Fprintf(c.out, "\n=== WALK-FORWARD — %s (%d ventanas) ===\n\n", strategy, len(r.Windows))

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "IS Sharpe", "OOS Sharpe", "OOS P&L", "OOS Trades", "Degradation", "Params")
	for _, w := range r.Windows {
		table.Append(
			fmt.Sprintf("%d", w.Index+1),
			fmt.Sprintf("%.2f", w.InSample.SharpeRatio),
			fmt.Sprintf("%.2f", w.OutOfSample.SharpeRatio),
			fmt.Sprintf("$%.2f", w.OutOfSample.NetProfit),
			fmt.Sprintf("%d", w.OutOfSample.TotalTrades),
			fmt.Sprintf("%.2f", w.SharpeDegradation),
			paramsLabel(w.OptimizedParams),
		)
	}
	table.Render()

	fmt.Fprintf(c.out, "\n  Avg Sharpe IS/OOS:   %.2f / %.2f\n", r.AvgInSampleSharpe, r.AvgOutOfSampleSharpe)
	fmt.Fprintf(c.out, "  WF efficiency:       %.2f\n", r.WalkForwardEfficiency)
	fmt.Fprintf(c.out, "  Param stability:     %.0f/100\n", r.ParameterStability)
	fmt.Fprintf(c.out, "  Combined OOS:        $%.2f (%d trades, DD %.2f%%)\n",
		r.Combined.NetProfit, r.Combined.TotalTrades, r.Combined.MaxDrawdownPct)
	fmt.Fprintf(c.out, "  ROBUSTNESS:          %.0f/100 — %s\n\n",
		r.RobustnessScore, robustnessVerdict(r.RobustnessScore))
}

// MonteCarlo imprime los percentiles de la distribución y el veredicto.
func (c *Console) MonteCarlo(strategy string, r domain.MonteCarloResult) {
	fmt.Fprintf(c.out, "\n=== MONTE CARLO — %s (%d sims) ===\n\n", strategy, r.Simulations)

	table := tablewriter.NewWriter(c.out)
	table.Header("Métrica", "P5", "P25", "P50", "P75", "P95")
	table.Append(distRow("Net P&L", "$%.2f", r.NetProfit))
	table.Append(distRow("MaxDD%", "%.2f", r.DrawdownPct))
	table.Append(distRow("Sharpe", "%.2f", r.Sharpe))
	table.Render()

	fmt.Fprintf(c.out, "\n  P(profit):           %.1f%%\n", r.ProbabilityOfProfit*100)
	fmt.Fprintf(c.out, "  P(beat original):    %.1f%%\n", r.ProbabilityOfBeat*100)
	fmt.Fprintf(c.out, "  Probabilistic SR:    %.2f\n", r.ProbabilisticSharpe)
	fmt.Fprintf(c.out, "  Deflated SR:         %.2f\n", r.DeflatedSharpe)
	fmt.Fprintf(c.out, "  Tail ratio:          %.2f\n", r.TailRatio)
	fmt.Fprintf(c.out, "  ROBUSTNESS:          %.0f/100 — %s\n", r.RobustnessScore, robustnessVerdict(r.RobustnessScore))
	fmt.Fprintf(c.out, "  FRAGILITY:           %.0f/100 (más bajo mejor)\n\n", r.FragilityIndex)
}

// --- helpers ---

func pfLabel(pf float64) string {
	if math.IsInf(pf, 1) {
		return "INF"
	}
	return fmt.Sprintf("%.2f", pf)
}

func paramsLabel(params map[string]float64) string {
	if len(params) == 0 {
		return "-"
	}
	out := ""
	for _, name := range sortedKeys(params) {
		if out != "" {
			out += " "
		}
		out += fmt.Sprintf("%s=%.4g", name, params[name])
	}
	return out
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 0; i < len(keys); i++ {
		for j := i + 1; j < len(keys); j++ {
			if keys[j] < keys[i] {
				keys[i], keys[j] = keys[j], keys[i]
			}
		}
	}
	return keys
}

func distRow(name, format string, d domain.Distribution) []string {
	return []string{
		name,
		fmt.Sprintf(format, d.P5),
		fmt.Sprintf(format, d.P25),
		fmt.Sprintf(format, d.P50),
		fmt.Sprintf(format, d.P75),
		fmt.Sprintf(format, d.P95),
	}
}

func robustnessVerdict(score float64) string {
	switch {
	case score >= 70:
		return "ROBUSTA"
	case score >= 50:
		return "ACEPTABLE"
	case score >= 30:
		return "FRÁGIL"
	default:
		return "NO CONFIABLE"
	}
}
