package domain

// WalkForwardWindow es el resultado de una ventana in-sample/out-of-sample.
type WalkForwardWindow struct {
	Index int

	// Índices de barra [start, end) sobre la serie completa.
	OptimizationStart int
	OptimizationEnd   int
	TestStart         int
	TestEnd           int

	OptimizedParams map[string]float64
	InSample        BacktestResult
	OutOfSample     BacktestResult

	// Degradación IS → OOS.
	SharpeDegradation        float64
	ProfitDegradationPercent float64
}

// WalkForwardResult agrega todas las ventanas del walk-forward.
type WalkForwardResult struct {
	Windows []WalkForwardWindow

	// Combined es el resultado OOS cosido con capital continuo
	// (simulación paper-live ventana a ventana).
	Combined BacktestResult

	AvgInSampleSharpe    float64
	AvgOutOfSampleSharpe float64

	// WalkForwardEfficiency es OOS/IS clippeado a [0,2]; 0.5 si IS fue
	// plano/negativo pero OOS positivo; 0 en el resto.
	WalkForwardEfficiency float64

	// ParameterStability mide 0-100 cuánto varían los parámetros
	// elegidos entre ventanas (100 = idénticos siempre).
	ParameterStability float64

	// RobustnessScore es la confianza compuesta 0-100.
	RobustnessScore float64
}

// SimulationResult es el resumen escalar de un draw de Monte Carlo.
type SimulationResult struct {
	NetProfit      float64
	MaxDrawdownPct float64
	SharpeRatio    float64
	WinRate        float64
	TotalTrades    int
}

// Distribution son los percentiles 5/25/50/75/95 de una métrica.
type Distribution struct {
	P5  float64
	P25 float64
	P50 float64
	P75 float64
	P95 float64
}

// MonteCarloResult agrega las distribuciones de N draws de bootstrap.
type MonteCarloResult struct {
	Simulations int

	NetProfit   Distribution
	DrawdownPct Distribution
	Sharpe      Distribution

	ProbabilityOfProfit float64 // fracción 0-1
	ProbabilityOfBeat   float64 // fracción de draws que superan el original

	// ProbabilisticSharpe es la CDF normal del Sharpe observado
	// normalizado por la desviación empírica de los Sharpes simulados.
	ProbabilisticSharpe float64
	// DeflatedSharpe = sharpe − √(2·ln(numTrials))/√(numTrades).
	DeflatedSharpe float64
	// TailRatio = |P5(profit) / P50(profit)|.
	TailRatio float64

	RobustnessScore float64 // 0-100, más alto mejor
	FragilityIndex  float64 // 0-100, más bajo mejor

	Original SimulationResult
}
