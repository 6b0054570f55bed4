package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandrodnm/stratlab/config"
	"github.com/alejandrodnm/stratlab/internal/adapters/remote"
	"github.com/alejandrodnm/stratlab/internal/adapters/report"
	"github.com/alejandrodnm/stratlab/internal/adapters/storage"
	"github.com/alejandrodnm/stratlab/internal/application/backtest"
	"github.com/alejandrodnm/stratlab/internal/application/montecarlo"
	"github.com/alejandrodnm/stratlab/internal/application/walkforward"
	"github.com/alejandrodnm/stratlab/internal/domain"
	"github.com/alejandrodnm/stratlab/internal/indicators"
	"github.com/alejandrodnm/stratlab/internal/ports"
	"github.com/alejandrodnm/stratlab/internal/strategy"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	strategyName := flag.String("strategy", "ema_cross", "strategy to run")
	wf := flag.Bool("walkforward", false, "run walk-forward optimization")
	mc := flag.Bool("montecarlo", false, "run monte carlo robustness lab")
	history := flag.Bool("history", false, "print recent runs and exit")
	quick := flag.Bool("quick", false, "walk-forward quick mode (auto windows and ranges)")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Warn("config file not loaded, using defaults", "err", err)
		cfg = config.Default()
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := storage.NewSQLiteStore(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	if *history {
		printHistory(ctx, store)
		return
	}

	strat, ok := strategy.NewRegistry().Get(*strategyName)
	if !ok {
		slog.Error("unknown strategy", "strategy", *strategyName,
			"available", strategy.NewRegistry().Names())
		os.Exit(1)
	}

	bars, err := loadBars(cfg.Data)
	if err != nil {
		slog.Error("failed to load bars", "err", err)
		os.Exit(1)
	}

	st := domain.NormalizeSettings(cfg.Engine.Options())
	reporter := report.NewConsole()

	slog.Info("stratlab starting",
		"strategy", strat.Name(),
		"bars", len(bars),
		"capital", st.InitialCapital,
		"walkforward", *wf,
		"montecarlo", *mc,
	)

	switch {
	case *wf:
		runWalkForward(ctx, cfg, strat, st, bars, *quick, reporter, store)
	case *mc:
		runMonteCarlo(ctx, cfg, strat, st, bars, reporter, store)
	default:
		runBacktest(ctx, cfg, strat, st, bars, reporter, store)
	}
}

func loadBars(cfg config.DataConfig) ([]domain.Bar, error) {
	if cfg.CSV != "" {
		return loadCSV(cfg.CSV)
	}
	slog.Info("no CSV configured, using synthetic bars", "bars", cfg.Synthetic)
	return syntheticBars(cfg.Synthetic, 1), nil
}

func runBacktest(
	ctx context.Context,
	cfg *config.Config,
	strat ports.Strategy,
	st domain.Settings,
	bars []domain.Bar,
	reporter ports.Reporter,
	store ports.ResultStore,
) {
	signals := strat.Execute(bars, strat.DefaultParams())
	res := backtest.NewEngine(st).Run(indicators.NewDataset(bars), signals)

	// Con motor remoto configurado se contrasta el resultado; el primario
	// gana ante cualquier inconsistencia.
	if cfg.Remote.BaseURL != "" {
		client := remote.NewClient(cfg.Remote.BaseURL, remote.Tolerances{
			WinRatePoints: cfg.Remote.WinRatePoints,
			AvgTradeAbs:   cfg.Remote.AvgTradeAbs,
			AvgTradeRel:   cfg.Remote.AvgTradeRel,
		})
		res = remote.Fallback(ctx, client, res, bars, signals, st)
	}

	reporter.Backtest(strat.Name(), res)
	saveRun(ctx, "backtest", func() (string, error) {
		return store.SaveBacktest(ctx, strat.Name(), res)
	})
}

func runWalkForward(
	ctx context.Context,
	cfg *config.Config,
	strat ports.Strategy,
	st domain.Settings,
	bars []domain.Bar,
	quick bool,
	reporter ports.Reporter,
	store ports.ResultStore,
) {
	var wfCfg walkforward.Config
	if quick {
		wfCfg = walkforward.QuickConfig(strat, len(bars))
	} else {
		wfCfg = walkforward.Config{
			OptimizationBars: cfg.WalkForward.OptimizationBars,
			TestBars:         cfg.WalkForward.TestBars,
			StepBars:         cfg.WalkForward.StepBars,
			LookbackBars:     cfg.WalkForward.LookbackBars,
			Ranges:           cfg.WalkForward.DomainRanges(),
			GridCap:          cfg.WalkForward.GridCap,
			TopN:             cfg.WalkForward.TopN,
			MinTrades:        cfg.WalkForward.MinTrades,
			Workers:          cfg.WalkForward.Workers,
			Seed:             cfg.WalkForward.Seed,
		}
	}
	wfCfg.Progress = logProgress

	res, err := walkforward.New(wfCfg, strat, st).Run(ctx, bars)
	if err != nil {
		slog.Error("walk-forward failed", "err", err)
		os.Exit(1)
	}

	reporter.WalkForward(strat.Name(), res)
	saveRun(ctx, "walkforward", func() (string, error) {
		return store.SaveWalkForward(ctx, strat.Name(), res)
	})
}

func runMonteCarlo(
	ctx context.Context,
	cfg *config.Config,
	strat ports.Strategy,
	st domain.Settings,
	bars []domain.Bar,
	reporter ports.Reporter,
	store ports.ResultStore,
) {
	// El laboratorio necesita el backtest original como línea base.
	signals := strat.Execute(bars, strat.DefaultParams())
	original := backtest.NewEngine(st).Run(indicators.NewDataset(bars), signals)

	lab := montecarlo.New(montecarlo.Config{
		Simulations:     cfg.MonteCarlo.Simulations,
		SlippageBps:     cfg.MonteCarlo.SlippageBps,
		SpreadBps:       cfg.MonteCarlo.SpreadBps,
		BlockSize:       cfg.MonteCarlo.BlockSize,
		MaxLatencyShift: cfg.MonteCarlo.MaxLatencyShift,
		Workers:         cfg.MonteCarlo.Workers,
		Seed:            cfg.MonteCarlo.Seed,
		Progress:        logProgress,
	}, st)

	var res domain.MonteCarloResult
	var err error
	if cfg.MonteCarlo.Block {
		res, err = lab.BlockBootstrap(ctx, bars, strat, strat.DefaultParams(), original)
	} else {
		res, err = lab.TradeBootstrap(ctx, original)
	}
	if err != nil {
		slog.Error("monte carlo failed", "err", err)
		os.Exit(1)
	}

	reporter.MonteCarlo(strat.Name(), res)
	saveRun(ctx, "montecarlo", func() (string, error) {
		return store.SaveMonteCarlo(ctx, strat.Name(), res)
	})
}

func printHistory(ctx context.Context, store ports.ResultStore) {
	runs, err := store.History(ctx, 20)
	if err != nil {
		slog.Error("failed to read history", "err", err)
		os.Exit(1)
	}
	if len(runs) == 0 {
		fmt.Println("sin ejecuciones guardadas")
		return
	}
	for _, r := range runs {
		fmt.Printf("%s  %-12s %-15s P&L $%.2f  sharpe %.2f  DD %.2f%%  trades %d\n",
			r.CreatedAt.Format("2006-01-02 15:04"), r.Kind, r.Strategy,
			r.NetProfit, r.Sharpe, r.MaxDDPct, r.Trades)
	}
}

func saveRun(_ context.Context, kind string, save func() (string, error)) {
	id, err := save()
	if err != nil {
		slog.Warn("failed to persist run", "kind", kind, "err", err)
		return
	}
	slog.Info("run persisted", "kind", kind, "run_id", id)
}

func logProgress(phase string, done, total int) {
	slog.Debug("progress", "phase", phase, "done", done, "total", total)
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
