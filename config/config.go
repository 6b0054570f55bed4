package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/stratlab/internal/domain"
)

// Config es la configuración completa del laboratorio.
type Config struct {
	Data        DataConfig        `yaml:"data"`
	Engine      EngineConfig      `yaml:"engine"`
	WalkForward WalkForwardConfig `yaml:"walkforward"`
	MonteCarlo  MonteCarloConfig  `yaml:"montecarlo"`
	Remote      RemoteConfig      `yaml:"remote"`
	Storage     StorageConfig     `yaml:"storage"`
	Log         LogConfig         `yaml:"log"`
}

// DataConfig describe de dónde salen las barras.
type DataConfig struct {
	CSV       string `yaml:"csv"`       // ruta al CSV de barras OHLCV
	Synthetic int    `yaml:"synthetic"` // barras sintéticas si no hay CSV
}

// EngineConfig es la superficie cruda del motor; espeja domain.Options.
// Campos en cero significan "usar default".
type EngineConfig struct {
	InitialCapital  float64 `yaml:"initial_capital"`
	SizingMode      string  `yaml:"sizing_mode"` // percent | fixed
	PositionSizePct float64 `yaml:"position_size_pct"`
	FixedDollar     float64 `yaml:"fixed_dollar"`
	CommissionRate  float64 `yaml:"commission_rate"`
	SlippageBps     float64 `yaml:"slippage_bps"`

	ATRPeriod     int     `yaml:"atr_period"`
	StopLossATR   float64 `yaml:"stop_loss_atr"`
	TakeProfitATR float64 `yaml:"take_profit_atr"`
	TrailingATR   float64 `yaml:"trailing_atr"`

	PartialTakeProfitATR float64 `yaml:"partial_take_profit_atr"`
	PartialTakeProfitPct float64 `yaml:"partial_take_profit_pct"`
	BreakEvenAtR         float64 `yaml:"break_even_at_r"`
	TimeStopBars         int     `yaml:"time_stop_bars"`

	RiskMode          string  `yaml:"risk_mode"` // simple | advanced | percentage
	StopLossPct       float64 `yaml:"stop_loss_pct"`
	TakeProfitPct     float64 `yaml:"take_profit_pct"`
	StopLossEnabled   bool    `yaml:"stop_loss_enabled"`
	TakeProfitEnabled bool    `yaml:"take_profit_enabled"`

	TrendEMAPeriod int     `yaml:"trend_ema_period"`
	TrendSlopeBars int     `yaml:"trend_slope_bars"`
	ATRPctMin      float64 `yaml:"atr_pct_min"`
	ATRPctMax      float64 `yaml:"atr_pct_max"`
	ADXPeriod      int     `yaml:"adx_period"`
	ADXMin         float64 `yaml:"adx_min"`
	ADXMax         float64 `yaml:"adx_max"`

	TradeFilterMode   string  `yaml:"trade_filter_mode"` // none | close | volume | rsi
	EntryConfirmation string  `yaml:"entry_confirmation"`
	ConfirmLookback   int     `yaml:"confirm_lookback"`
	VolumeSMAPeriod   int     `yaml:"volume_sma_period"`
	VolumeMultiplier  float64 `yaml:"volume_multiplier"`
	RSIPeriod         int     `yaml:"rsi_period"`
	RSIBullish        float64 `yaml:"rsi_bullish"`
	RSIBearish        float64 `yaml:"rsi_bearish"`

	TradeDirection   string `yaml:"trade_direction"` // long | short | both
	ExecutionModel   string `yaml:"execution_model"` // signal_close | next_open | next_close
	AllowSameBarExit bool   `yaml:"allow_same_bar_exit"`
}

// ParameterRangeConfig es un rango optimizable declarado en YAML.
type ParameterRangeConfig struct {
	Name string  `yaml:"name"`
	Min  float64 `yaml:"min"`
	Max  float64 `yaml:"max"`
	Step float64 `yaml:"step"`
}

// WalkForwardConfig controla la optimización por ventanas.
type WalkForwardConfig struct {
	OptimizationBars int                    `yaml:"optimization_bars"`
	TestBars         int                    `yaml:"test_bars"`
	StepBars         int                    `yaml:"step_bars"`
	LookbackBars     int                    `yaml:"lookback_bars"`
	GridCap          int                    `yaml:"grid_cap"`
	TopN             int                    `yaml:"top_n"`
	MinTrades        int                    `yaml:"min_trades"`
	Workers          int                    `yaml:"workers"`
	Seed             int64                  `yaml:"seed"`
	Quick            bool                   `yaml:"quick"`
	Ranges           []ParameterRangeConfig `yaml:"ranges"`
}

// MonteCarloConfig controla el laboratorio de robustez.
type MonteCarloConfig struct {
	Simulations     int     `yaml:"simulations"`
	SlippageBps     float64 `yaml:"slippage_bps"`
	SpreadBps       float64 `yaml:"spread_bps"`
	BlockSize       int     `yaml:"block_size"`
	MaxLatencyShift int     `yaml:"max_latency_shift"`
	Workers         int     `yaml:"workers"`
	Seed            int64   `yaml:"seed"`
	Block           bool    `yaml:"block"` // block bootstrap en vez de trades
}

// RemoteConfig apunta a un motor de backtest alterno opcional.
type RemoteConfig struct {
	BaseURL       string  `yaml:"base_url"`
	WinRatePoints float64 `yaml:"win_rate_points"`
	AvgTradeAbs   float64 `yaml:"avg_trade_abs"`
	AvgTradeRel   float64 `yaml:"avg_trade_rel"`
}

// StorageConfig controla dónde se persiste el histórico de runs.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// Default devuelve una configuración usable sin archivo YAML.
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

// Options convierte la sección engine a la superficie cruda del dominio.
// La normalización de defaults vive en domain.NormalizeSettings.
func (e EngineConfig) Options() domain.Options {
	return domain.Options{
		InitialCapital:  e.InitialCapital,
		SizingMode:      domain.SizingMode(e.SizingMode),
		PositionSizePct: e.PositionSizePct,
		FixedDollar:     e.FixedDollar,
		CommissionRate:  e.CommissionRate,
		SlippageBps:     e.SlippageBps,

		ATRPeriod:     e.ATRPeriod,
		StopLossATR:   e.StopLossATR,
		TakeProfitATR: e.TakeProfitATR,
		TrailingATR:   e.TrailingATR,

		PartialTakeProfitATR: e.PartialTakeProfitATR,
		PartialTakeProfitPct: e.PartialTakeProfitPct,
		BreakEvenAtR:         e.BreakEvenAtR,
		TimeStopBars:         e.TimeStopBars,

		RiskMode:          domain.RiskMode(e.RiskMode),
		StopLossPct:       e.StopLossPct,
		TakeProfitPct:     e.TakeProfitPct,
		StopLossEnabled:   e.StopLossEnabled,
		TakeProfitEnabled: e.TakeProfitEnabled,

		TrendEMAPeriod: e.TrendEMAPeriod,
		TrendSlopeBars: e.TrendSlopeBars,
		ATRPctMin:      e.ATRPctMin,
		ATRPctMax:      e.ATRPctMax,
		ADXPeriod:      e.ADXPeriod,
		ADXMin:         e.ADXMin,
		ADXMax:         e.ADXMax,

		TradeFilterMode:   domain.TradeFilterMode(e.TradeFilterMode),
		EntryConfirmation: domain.TradeFilterMode(e.EntryConfirmation),
		ConfirmLookback:   e.ConfirmLookback,
		VolumeSMAPeriod:   e.VolumeSMAPeriod,
		VolumeMultiplier:  e.VolumeMultiplier,
		RSIPeriod:         e.RSIPeriod,
		RSIBullish:        e.RSIBullish,
		RSIBearish:        e.RSIBearish,

		TradeDirection:   domain.TradeDirection(e.TradeDirection),
		ExecutionModel:   domain.ExecutionModel(e.ExecutionModel),
		AllowSameBarExit: e.AllowSameBarExit,
	}
}

// DomainRanges convierte los rangos YAML a rangos del dominio.
func (w WalkForwardConfig) DomainRanges() []domain.ParameterRange {
	out := make([]domain.ParameterRange, 0, len(w.Ranges))
	for _, r := range w.Ranges {
		out = append(out, domain.ParameterRange{Name: r.Name, Min: r.Min, Max: r.Max, Step: r.Step})
	}
	return out
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("STRATLAB_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("STRATLAB_REMOTE_URL"); v != "" {
		cfg.Remote.BaseURL = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Data.Synthetic <= 0 {
		cfg.Data.Synthetic = 1000
	}
	if cfg.WalkForward.OptimizationBars <= 0 {
		cfg.WalkForward.OptimizationBars = 500
	}
	if cfg.WalkForward.TestBars <= 0 {
		cfg.WalkForward.TestBars = 125
	}
	if cfg.MonteCarlo.Simulations <= 0 {
		cfg.MonteCarlo.Simulations = 1000
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "stratlab.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
