// Package stats implements the statistical analysis engine: descriptive
// statistics, paired hypothesis testing, clinical outcome analysis, and
// trend forecasting. The engine holds no mutable state and is safe for
// unrestricted concurrent use.
package stats

// Minimum sample sizes per analysis
const (
	minDescriptiveN = 2
	minPairedN      = 3
	minTrendN       = 10
)

// Config carries the inference parameters shared by every analysis
type Config struct {
	Alpha           float64 // significance level for hypothesis tests
	ConfidenceLevel float64 // level for confidence intervals
}

// DefaultConfig returns the conventional 0.05 / 0.95 parameters
func DefaultConfig() Config {
	return Config{Alpha: 0.05, ConfidenceLevel: 0.95}
}

// Engine computes all outcome statistics. Construct once and share freely.
type Engine struct {
	alpha      float64
	confidence float64
	dist       *Distributions
}

// New creates an engine, falling back to defaults for out-of-range parameters
func New(cfg Config) *Engine {
	if cfg.Alpha <= 0 || cfg.Alpha >= 1 {
		cfg.Alpha = 0.05
	}
	if cfg.ConfidenceLevel <= 0 || cfg.ConfidenceLevel >= 1 {
		cfg.ConfidenceLevel = 0.95
	}
	return &Engine{
		alpha:      cfg.Alpha,
		confidence: cfg.ConfidenceLevel,
		dist:       NewDistributions(),
	}
}

// Alpha returns the configured significance level
func (e *Engine) Alpha() float64 {
	return e.alpha
}

// ConfidenceLevel returns the configured confidence level
func (e *Engine) ConfidenceLevel() float64 {
	return e.confidence
}
