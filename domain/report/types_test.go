package report

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"clinsight/domain/assessment"
	"clinsight/domain/core"
	"clinsight/domain/outcome"
	"clinsight/domain/privacy"
)

func sampleReport() ClinicalIntelligenceReport {
	window := core.NewWindow(
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
	)

	differences := outcome.DescriptiveResult{
		SampleSize: 12, Mean: -7.5, StdDev: 2.1, Median: -7.0,
		Min: -11, Max: -4, Q1: -9, Q3: -6, IQR: 3, OutlierCount: 0,
		ConfidenceInterval: outcome.ConfidenceInterval{Level: 0.95, Lower: -8.83, Upper: -6.17},
	}

	analysis := outcome.ClinicalOutcomeAnalysis{
		Intervention: "cbt_program",
		Instrument:   assessment.InstrumentPHQ9,
		SampleSize:   12,
		Test: outcome.HypothesisTestResult{
			Differences:      differences,
			TStatistic:       -12.372,
			DegreesOfFreedom: 11,
			PValue:           0.00000081,
			Alpha:            0.05,
			Significant:      true,
			EffectSize:       -3.571,
			EffectBand:       outcome.EffectLarge,
		},
		MCID:             5,
		MCIDAchieversPct: 83.33,
		MCIDThresholdMet: true,
		RCIValues:        []float64{-3.1, -2.8, -3.4, -2.2, -3.0, -2.9, -3.3, -2.5, -3.2, -2.7, -3.0, -1.1},
		ReliableChange:   outcome.ReliableChangeSplit{Improved: 11, Deteriorated: 0, Unchanged: 1},
		RecoveredCount:   9, RecoveryRate: 0.75, CutoffDefined: true,
		SignificanceRating: outcome.SignificanceHigh,
		EvidenceQuality:    outcome.EvidenceModerate,
		Recommendations:    []string{"Strong outcomes support continuing the current protocol."},
		MeanElapsedDays:    62.5,
	}

	recoveryCI := &outcome.ConfidenceInterval{Level: 0.95, Lower: 0.61, Upper: 0.87}
	recovery := privacy.PrivateResult{
		Name: "recovery_rate/cbt_program/phq9", Value: 0.74,
		ConfidenceInterval: recoveryCI,
		EpsilonSpent:       1.0, DeltaSpent: 2e-6, NoiseMagnitude: 0.031,
		Mechanism:          privacy.MechanismLaplace,
		OriginalSampleSize: 12, EffectiveSampleSize: 12, SuppressedGroups: 0,
		AccuracyEstimate: 0.95, UtilityScore: 0.92, PrivacyRiskScore: 0.31,
	}

	return ClinicalIntelligenceReport{
		ID:                core.NewReportID(),
		GeneratedAt:       core.NewTimestamp(time.Date(2026, 7, 2, 9, 30, 0, 0, time.UTC)),
		Window:            window,
		Interventions:     []string{"cbt_program"},
		MinimumSampleSize: 10,
		Analyses:          []outcome.ClinicalOutcomeAnalysis{analysis},
		SkippedGroups: []SkippedGroup{
			{Intervention: "group_therapy", Instrument: assessment.InstrumentGAD7, SampleSize: 4, Reason: "below minimum sample size"},
		},
		RecoveryRates: map[string]privacy.PrivateResult{
			"cbt_program/phq9": recovery,
		},
		Recommendations:  []string{"Continue protocol.", "Review data collection for group_therapy."},
		DataQualityScore: 0.82,
		BudgetSnapshot: privacy.BudgetStatus{
			Total: 10, Used: 2, Remaining: 8, PercentUsed: 20,
			Health: privacy.BudgetHealthy,
			RecentEntries: []privacy.AuditEntry{
				{ID: core.NewAuditEntryID(), Timestamp: core.NewTimestamp(time.Date(2026, 7, 2, 9, 29, 0, 0, time.UTC)), Operation: "private_proportion", Epsilon: 1.0, Detail: "recovery_rate/cbt_program/phq9"},
			},
		},
	}
}

func closeEnough(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// TestReportJSONRoundTrip encodes a full report and decodes it back,
// checking numeric fields within float tolerance and recommendation order.
func TestReportJSONRoundTrip(t *testing.T) {
	original := sampleReport()
	original.Fingerprint = original.ComputeFingerprint()

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded ClinicalIntelligenceReport
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if decoded.ID != original.ID {
		t.Errorf("ID changed: %s != %s", decoded.ID, original.ID)
	}
	if !decoded.GeneratedAt.Time().Equal(original.GeneratedAt.Time()) {
		t.Errorf("GeneratedAt changed: %s != %s", decoded.GeneratedAt, original.GeneratedAt)
	}
	if !decoded.Window.Start.Time().Equal(original.Window.Start.Time()) ||
		!decoded.Window.End.Time().Equal(original.Window.End.Time()) {
		t.Errorf("window changed: %v != %v", decoded.Window, original.Window)
	}
	if decoded.Fingerprint != original.Fingerprint {
		t.Errorf("fingerprint changed across encoding")
	}

	if len(decoded.Analyses) != 1 {
		t.Fatalf("expected 1 analysis, got %d", len(decoded.Analyses))
	}
	wantTest := original.Analyses[0].Test
	gotTest := decoded.Analyses[0].Test
	if !closeEnough(gotTest.EffectSize, wantTest.EffectSize) {
		t.Errorf("effect size drifted: %v != %v", gotTest.EffectSize, wantTest.EffectSize)
	}
	if !closeEnough(gotTest.PValue, wantTest.PValue) {
		t.Errorf("p-value drifted: %v != %v", gotTest.PValue, wantTest.PValue)
	}
	if !closeEnough(gotTest.Differences.Mean, wantTest.Differences.Mean) {
		t.Errorf("mean difference drifted")
	}
	if !closeEnough(gotTest.Differences.ConfidenceInterval.Lower, wantTest.Differences.ConfidenceInterval.Lower) ||
		!closeEnough(gotTest.Differences.ConfidenceInterval.Upper, wantTest.Differences.ConfidenceInterval.Upper) {
		t.Errorf("confidence interval drifted")
	}
	if len(decoded.Analyses[0].RCIValues) != len(original.Analyses[0].RCIValues) {
		t.Fatalf("RCI values lost: %d != %d", len(decoded.Analyses[0].RCIValues), len(original.Analyses[0].RCIValues))
	}
	for i, v := range original.Analyses[0].RCIValues {
		if !closeEnough(decoded.Analyses[0].RCIValues[i], v) {
			t.Errorf("RCI value %d drifted", i)
		}
	}

	gotRecovery, ok := decoded.RecoveryRates["cbt_program/phq9"]
	if !ok {
		t.Fatal("recovery rate entry lost")
	}
	wantRecovery := original.RecoveryRates["cbt_program/phq9"]
	if !closeEnough(gotRecovery.Value, wantRecovery.Value) ||
		!closeEnough(gotRecovery.EpsilonSpent, wantRecovery.EpsilonSpent) ||
		!closeEnough(gotRecovery.NoiseMagnitude, wantRecovery.NoiseMagnitude) ||
		!closeEnough(gotRecovery.PrivacyRiskScore, wantRecovery.PrivacyRiskScore) {
		t.Errorf("privatized result drifted: %+v != %+v", gotRecovery, wantRecovery)
	}
	if gotRecovery.ConfidenceInterval == nil {
		t.Fatal("privatized confidence interval lost")
	}
	if !closeEnough(gotRecovery.ConfidenceInterval.Lower, wantRecovery.ConfidenceInterval.Lower) {
		t.Errorf("privatized interval drifted")
	}
	if gotRecovery.Mechanism != privacy.MechanismLaplace {
		t.Errorf("mechanism changed: %s", gotRecovery.Mechanism)
	}

	if len(decoded.Recommendations) != len(original.Recommendations) {
		t.Fatalf("recommendations lost: %d != %d", len(decoded.Recommendations), len(original.Recommendations))
	}
	for i, rec := range original.Recommendations {
		if decoded.Recommendations[i] != rec {
			t.Errorf("recommendation order changed at %d: %q != %q", i, decoded.Recommendations[i], rec)
		}
	}

	if !closeEnough(decoded.DataQualityScore, original.DataQualityScore) {
		t.Errorf("quality score drifted")
	}
	if !closeEnough(decoded.BudgetSnapshot.Used, original.BudgetSnapshot.Used) ||
		decoded.BudgetSnapshot.Health != original.BudgetSnapshot.Health {
		t.Errorf("budget snapshot drifted: %+v", decoded.BudgetSnapshot)
	}
	if len(decoded.SkippedGroups) != 1 || decoded.SkippedGroups[0].Reason != original.SkippedGroups[0].Reason {
		t.Errorf("skipped groups drifted: %+v", decoded.SkippedGroups)
	}
}

// TestSummarizeProjection checks the listing projection carries the right
// counts and fields.
func TestSummarizeProjection(t *testing.T) {
	r := sampleReport()
	s := r.Summarize()

	if s.ID != r.ID {
		t.Errorf("summary ID mismatch")
	}
	if s.GroupsAnalyzed != 1 || s.GroupsSkipped != 1 {
		t.Errorf("summary counts = (%d, %d), want (1, 1)", s.GroupsAnalyzed, s.GroupsSkipped)
	}
	if !closeEnough(s.DataQualityScore, r.DataQualityScore) {
		t.Errorf("summary quality mismatch")
	}
	if s.BudgetHealth != privacy.BudgetHealthy {
		t.Errorf("summary budget health = %s, want healthy", s.BudgetHealth)
	}
	if !s.Window.Start.Time().Equal(r.Window.Start.Time()) {
		t.Errorf("summary window mismatch")
	}
}

// TestComputeFingerprint_IgnoresPrivatizedValues verifies the fingerprint
// covers stable facts only, so differing noise draws do not change it while
// differing analysis results do.
func TestComputeFingerprint_IgnoresPrivatizedValues(t *testing.T) {
	first := sampleReport()
	second := sampleReport()

	// Same stable facts, different noisy aggregate
	noisier := second.RecoveryRates["cbt_program/phq9"]
	noisier.Value = 0.69
	noisier.NoiseMagnitude = 0.09
	second.RecoveryRates["cbt_program/phq9"] = noisier

	if first.ComputeFingerprint() != second.ComputeFingerprint() {
		t.Error("fingerprint changed with noise draws")
	}

	second.Analyses[0].Test.PValue = 0.04
	if first.ComputeFingerprint() == second.ComputeFingerprint() {
		t.Error("fingerprint ignored an analysis change")
	}
}
