package outcome

import (
	"clinsight/domain/assessment"
	"clinsight/domain/core"
)

// ============================================================================
// DESCRIPTIVE AND INFERENTIAL RESULTS
// ============================================================================

// ConfidenceInterval is a two-sided interval at a stated confidence level
type ConfidenceInterval struct {
	Level float64 `json:"level"` // e.g. 0.95
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Contains reports whether v lies inside the interval (inclusive)
func (ci ConfidenceInterval) Contains(v float64) bool {
	return v >= ci.Lower && v <= ci.Upper
}

// Margin returns the half-width of the interval
func (ci ConfidenceInterval) Margin() float64 {
	return (ci.Upper - ci.Lower) / 2
}

// NormalityCheck is an advisory distribution check; it never blocks analysis
type NormalityCheck struct {
	Statistic float64 `json:"statistic"`
	PValue    float64 `json:"p_value"`
	IsNormal  bool    `json:"is_normal"`
	Method    string  `json:"method"` // "dagostino_k2" or "skew_kurtosis_approx"
}

// DescriptiveResult summarizes a single numeric sequence
type DescriptiveResult struct {
	SampleSize         int                `json:"sample_size"`
	Mean               float64            `json:"mean"`
	StdDev             float64            `json:"std_dev"`
	Median             float64            `json:"median"`
	Min                float64            `json:"min"`
	Max                float64            `json:"max"`
	Q1                 float64            `json:"q1"`
	Q3                 float64            `json:"q3"`
	IQR                float64            `json:"iqr"`
	OutlierCount       int                `json:"outlier_count"`
	ConfidenceInterval ConfidenceInterval `json:"confidence_interval"`
	Normality          *NormalityCheck    `json:"normality,omitempty"`
}

// HypothesisTestResult extends descriptives of the paired differences with a
// one-sample t-test against zero.
// INVARIANTS:
// - Differences.ConfidenceInterval always contains Differences.Mean
// - sign(EffectSize) == sign(Differences.Mean) when the mean is nonzero
type HypothesisTestResult struct {
	Differences      DescriptiveResult `json:"differences"`
	TStatistic       float64           `json:"t_statistic"`
	DegreesOfFreedom int               `json:"degrees_of_freedom"`
	PValue           float64           `json:"p_value"`
	Alpha            float64           `json:"alpha"`
	Significant      bool              `json:"significant"`
	EffectSize       float64           `json:"effect_size"` // Cohen's d for paired samples
	EffectBand       EffectBand        `json:"effect_band"`
}

// ============================================================================
// CLINICAL OUTCOME ANALYSIS
// ============================================================================

// ReliableChangeSplit is the tripartite classification of subjects by RCI
type ReliableChangeSplit struct {
	Improved     int `json:"improved"`
	Deteriorated int `json:"deteriorated"`
	Unchanged    int `json:"unchanged"`
}

// ClinicalOutcomeAnalysis is the per-(intervention, instrument) analysis
// unit. Constructed once per group per report run; never mutated after.
type ClinicalOutcomeAnalysis struct {
	Intervention     string                    `json:"intervention"`
	Instrument       assessment.InstrumentKind `json:"instrument"`
	SampleSize       int                       `json:"sample_size"`
	Test             HypothesisTestResult      `json:"test"`
	MCID             float64                   `json:"mcid"`
	MCIDAchieversPct float64                   `json:"mcid_achievers_pct"`
	MCIDThresholdMet bool                      `json:"mcid_threshold_met"`

	// Per-subject Reliable Change Index values, input order preserved
	RCIValues      []float64           `json:"rci_values"`
	ReliableChange ReliableChangeSplit `json:"reliable_change"`

	// Cutoff transitions; zero when the instrument defines no cutoff
	RecoveredCount    int     `json:"recovered_count"`
	DeterioratedCount int     `json:"deteriorated_count"`
	RecoveryRate      float64 `json:"recovery_rate"`
	DeteriorationRate float64 `json:"deterioration_rate"`
	CutoffDefined     bool    `json:"cutoff_defined"`

	SignificanceRating SignificanceRating `json:"significance_rating"`
	EvidenceQuality    EvidenceQuality    `json:"evidence_quality"`
	Recommendations    []string           `json:"recommendations"`
	MeanElapsedDays    float64            `json:"mean_elapsed_days"`
}

// ReliableImprovementRate returns the fraction of subjects classified as
// reliably improved.
func (a *ClinicalOutcomeAnalysis) ReliableImprovementRate() float64 {
	if a.SampleSize == 0 {
		return 0
	}
	return float64(a.ReliableChange.Improved) / float64(a.SampleSize)
}

// ReliableDeteriorationRate returns the fraction classified as reliably
// deteriorated.
func (a *ClinicalOutcomeAnalysis) ReliableDeteriorationRate() float64 {
	if a.SampleSize == 0 {
		return 0
	}
	return float64(a.ReliableChange.Deteriorated) / float64(a.SampleSize)
}

// ============================================================================
// TREND ANALYSIS
// ============================================================================

// ScorePoint is one dated observation in a score series
type ScorePoint struct {
	ObservedAt core.Timestamp `json:"observed_at"`
	Score      float64        `json:"score"`
}

// ForecastPoint is one projected observation with its prediction interval
type ForecastPoint struct {
	DaysAhead          float64            `json:"days_ahead"` // relative to the last observation
	Predicted          float64            `json:"predicted"`
	PredictionInterval ConfidenceInterval `json:"prediction_interval"`
}

// TrendAnalysis is an ordinary least-squares fit over time with forecasts
type TrendAnalysis struct {
	SampleSize       int     `json:"sample_size"`
	Slope            float64 `json:"slope"` // score units per day
	Intercept        float64 `json:"intercept"`
	RSquared         float64 `json:"r_squared"`
	AdjustedRSquared float64 `json:"adjusted_r_squared"`
	PValue           float64 `json:"p_value"`
	ResidualStdError float64 `json:"residual_std_error"`

	Direction TrendDirection `json:"direction"`
	Strength  TrendStrength  `json:"strength"`

	Forecast []ForecastPoint `json:"forecast"`

	// Residual independence diagnostic; values outside [1.5, 2.5] raise the
	// concern flag
	DurbinWatson           float64 `json:"durbin_watson"`
	AutocorrelationConcern bool    `json:"autocorrelation_concern"`

	ForecastReliability ForecastReliability `json:"forecast_reliability"`
}
