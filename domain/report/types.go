package report

import (
	"fmt"

	"clinsight/domain/assessment"
	"clinsight/domain/core"
	"clinsight/domain/outcome"
	"clinsight/domain/privacy"
)

// SkippedGroup records one analysis group that was excluded from the report,
// and why. Staff judge report completeness from these entries.
type SkippedGroup struct {
	Intervention string                    `json:"intervention"`
	Instrument   assessment.InstrumentKind `json:"instrument"`
	SampleSize   int                       `json:"sample_size"`
	Reason       string                    `json:"reason"`
}

// ClinicalIntelligenceReport is one composed analysis run: every surviving
// group's clinical analysis, the privatized aggregates, and the privacy
// accounting. Created once per composition; read-only thereafter.
type ClinicalIntelligenceReport struct {
	ID          core.ReportID  `json:"id"`
	GeneratedAt core.Timestamp `json:"generated_at"`
	Window      core.Window    `json:"window"`

	// Applied request filters; empty means unfiltered
	Interventions     []string                    `json:"interventions,omitempty"`
	Instruments       []assessment.InstrumentKind `json:"instruments,omitempty"`
	MinimumSampleSize int                         `json:"minimum_sample_size"`

	Analyses      []outcome.ClinicalOutcomeAnalysis `json:"analyses"`
	SkippedGroups []SkippedGroup                    `json:"skipped_groups"`

	// Privatized outcome aggregates keyed by group label
	RecoveryRates    map[string]privacy.PrivateResult `json:"recovery_rates,omitempty"`
	ImprovementRates map[string]privacy.PrivateResult `json:"improvement_rates,omitempty"`

	// Privatized service-utilization aggregates keyed by metric name
	UtilizationMetrics map[string]privacy.PrivateResult `json:"utilization_metrics,omitempty"`

	Recommendations  []string             `json:"recommendations"`
	DataQualityScore float64              `json:"data_quality_score"`
	BudgetSnapshot   privacy.BudgetStatus `json:"budget_snapshot"`
	BudgetExhausted  bool                 `json:"budget_exhausted"`

	Fingerprint core.Hash `json:"fingerprint"`
}

// GroupsAnalyzed returns the count of groups that produced an analysis
func (r *ClinicalIntelligenceReport) GroupsAnalyzed() int {
	return len(r.Analyses)
}

// GroupsSkipped returns the count of excluded groups
func (r *ClinicalIntelligenceReport) GroupsSkipped() int {
	return len(r.SkippedGroups)
}

// ComputeFingerprint derives the deterministic content fingerprint over the
// report's stable facts. Privatized values are excluded, so two runs over
// identical data and parameters fingerprint identically regardless of the
// noise draws.
func (r *ClinicalIntelligenceReport) ComputeFingerprint() core.Hash {
	facts := map[string]interface{}{
		"window_start":    r.Window.Start.String(),
		"window_end":      r.Window.End.String(),
		"groups_analyzed": r.GroupsAnalyzed(),
		"groups_skipped":  r.GroupsSkipped(),
		"quality":         fmt.Sprintf("%.6f", r.DataQualityScore),
		"budget_used":     fmt.Sprintf("%.6f", r.BudgetSnapshot.Used),
	}
	for i, a := range r.Analyses {
		facts[fmt.Sprintf("analysis_%d", i)] = fmt.Sprintf("%s/%s n=%d d=%.6f p=%.6f",
			a.Intervention, a.Instrument, a.SampleSize, a.Test.EffectSize, a.Test.PValue)
	}
	return core.ComputeFingerprint(facts)
}

// Summary is the listing projection of a stored report
type Summary struct {
	ID               core.ReportID        `json:"id"`
	GeneratedAt      core.Timestamp       `json:"generated_at"`
	Window           core.Window          `json:"window"`
	GroupsAnalyzed   int                  `json:"groups_analyzed"`
	GroupsSkipped    int                  `json:"groups_skipped"`
	DataQualityScore float64              `json:"data_quality_score"`
	BudgetHealth     privacy.BudgetHealth `json:"budget_health"`
}

// Summarize projects a full report into its listing form
func (r *ClinicalIntelligenceReport) Summarize() Summary {
	return Summary{
		ID:               r.ID,
		GeneratedAt:      r.GeneratedAt,
		Window:           r.Window,
		GroupsAnalyzed:   r.GroupsAnalyzed(),
		GroupsSkipped:    r.GroupsSkipped(),
		DataQualityScore: r.DataQualityScore,
		BudgetHealth:     r.BudgetSnapshot.Health,
	}
}
