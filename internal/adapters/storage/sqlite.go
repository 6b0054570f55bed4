package storage

// sqlite.go — histórico de ejecuciones en SQLite (pure Go, sin CGo).
//
// Estrategia:
//   - `runs`: una fila por ejecución (backtest, walk-forward o monte carlo)
//     con los escalares que importan para comparar corridas.
//   - `walkforward_windows`: una fila por ventana, colgada de su run,
//     con los parámetros elegidos serializados como JSON.
//   - Prune automático al arrancar: runs > 90d (las ventanas caen por cascada
//     manual, SQLite sin FK enforcement por default).

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/alejandrodnm/stratlab/internal/domain"
	"github.com/alejandrodnm/stratlab/internal/ports"
)

const schema = `
-- Una fila por ejecución
CREATE TABLE IF NOT EXISTS runs (
    id             TEXT PRIMARY KEY,
    kind           TEXT     NOT NULL,
    strategy       TEXT     NOT NULL,
    created_at     DATETIME NOT NULL,
    net_profit     REAL     NOT NULL DEFAULT 0,
    net_profit_pct REAL     NOT NULL DEFAULT 0,
    sharpe         REAL     NOT NULL DEFAULT 0,
    win_rate       REAL     NOT NULL DEFAULT 0,
    max_dd_pct     REAL     NOT NULL DEFAULT 0,
    trades         INTEGER  NOT NULL DEFAULT 0,
    robustness     REAL     NOT NULL DEFAULT 0
);

-- Una fila por ventana de walk-forward
CREATE TABLE IF NOT EXISTS walkforward_windows (
    run_id      TEXT    NOT NULL,
    idx         INTEGER NOT NULL,
    params      TEXT    NOT NULL,
    is_sharpe   REAL    NOT NULL DEFAULT 0,
    oos_sharpe  REAL    NOT NULL DEFAULT 0,
    oos_profit  REAL    NOT NULL DEFAULT 0,
    degradation REAL    NOT NULL DEFAULT 0,
    PRIMARY KEY (run_id, idx)
);

CREATE INDEX IF NOT EXISTS idx_runs_at       ON runs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_runs_strategy ON runs(strategy);
`

const retentionRuns = 90 * 24 * time.Hour

// SQLiteStore implementa ports.ResultStore usando SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore abre (o crea) la base de datos en la ruta dada.
// Aplica el schema y limpia ejecuciones antiguas.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStore: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStore: apply schema: %w", err)
	}

	s := &SQLiteStore{db: db}
	s.pruneOld(context.Background())
	return s, nil
}

// SaveBacktest persiste el resumen escalar de un backtest.
func (s *SQLiteStore) SaveBacktest(ctx context.Context, strategy string, r domain.BacktestResult) (string, error) {
	id := uuid.NewString()
	if err := s.insertRun(ctx, id, "backtest", strategy,
		r.NetProfit, r.NetProfitPercent, r.SharpeRatio, r.WinRate, r.MaxDrawdownPct, r.TotalTrades, 0,
	); err != nil {
		return "", fmt.Errorf("storage.SaveBacktest: %w", err)
	}
	return id, nil
}

// SaveWalkForward persiste el agregado OOS cosido más una fila por ventana.
func (s *SQLiteStore) SaveWalkForward(ctx context.Context, strategy string, r domain.WalkForwardResult) (string, error) {
	id := uuid.NewString()
	c := r.Combined
	if err := s.insertRun(ctx, id, "walkforward", strategy,
		c.NetProfit, c.NetProfitPercent, c.SharpeRatio, c.WinRate, c.MaxDrawdownPct, c.TotalTrades, r.RobustnessScore,
	); err != nil {
		return "", fmt.Errorf("storage.SaveWalkForward: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("storage.SaveWalkForward: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO walkforward_windows
			(run_id, idx, params, is_sharpe, oos_sharpe, oos_profit, degradation)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("storage.SaveWalkForward: prepare: %w", err)
	}
	defer stmt.Close()

	for _, w := range r.Windows {
		params, err := json.Marshal(w.OptimizedParams)
		if err != nil {
			return "", fmt.Errorf("storage.SaveWalkForward: marshal params window %d: %w", w.Index, err)
		}
		if _, err := stmt.ExecContext(ctx,
			id, w.Index, string(params),
			w.InSample.SharpeRatio, w.OutOfSample.SharpeRatio,
			w.OutOfSample.NetProfit, w.SharpeDegradation,
		); err != nil {
			return "", fmt.Errorf("storage.SaveWalkForward: insert window %d: %w", w.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("storage.SaveWalkForward: commit: %w", err)
	}
	return id, nil
}

// SaveMonteCarlo persiste las medianas de la distribución como escalares.
func (s *SQLiteStore) SaveMonteCarlo(ctx context.Context, strategy string, r domain.MonteCarloResult) (string, error) {
	id := uuid.NewString()
	if err := s.insertRun(ctx, id, "montecarlo", strategy,
		r.NetProfit.P50, 0, r.Sharpe.P50, r.Original.WinRate, r.DrawdownPct.P50,
		r.Original.TotalTrades, r.RobustnessScore,
	); err != nil {
		return "", fmt.Errorf("storage.SaveMonteCarlo: %w", err)
	}
	return id, nil
}

// History devuelve las últimas ejecuciones, más recientes primero.
func (s *SQLiteStore) History(ctx context.Context, limit int) ([]ports.RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, strategy, created_at, net_profit, sharpe, max_dd_pct, trades, robustness
		FROM runs
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.History: query: %w", err)
	}
	defer rows.Close()

	var out []ports.RunSummary
	for rows.Next() {
		var r ports.RunSummary
		var createdAt string
		if err := rows.Scan(
			&r.ID, &r.Kind, &r.Strategy, &createdAt,
			&r.NetProfit, &r.Sharpe, &r.MaxDDPct, &r.Trades, &r.Robustness,
		); err != nil {
			return nil, fmt.Errorf("storage.History: scan row: %w", err)
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

func (s *SQLiteStore) insertRun(
	ctx context.Context,
	id, kind, strategy string,
	netProfit, netProfitPct, sharpe, winRate, maxDDPct float64,
	trades int,
	robustness float64,
) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
			(id, kind, strategy, created_at, net_profit, net_profit_pct,
			 sharpe, win_rate, max_dd_pct, trades, robustness)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, kind, strategy, time.Now().UTC().Format(time.RFC3339),
		netProfit, netProfitPct, sharpe, winRate, maxDDPct, trades, robustness)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// pruneOld elimina ejecuciones antiguas para mantener la DB ligera.
func (s *SQLiteStore) pruneOld(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-retentionRuns).Format(time.RFC3339)
	s.db.ExecContext(ctx, `DELETE FROM walkforward_windows WHERE run_id IN (SELECT id FROM runs WHERE created_at < ?)`, cutoff)
	s.db.ExecContext(ctx, `DELETE FROM runs WHERE created_at < ?`, cutoff)
}
