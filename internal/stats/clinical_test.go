package stats

import (
	"math"
	"testing"

	"clinsight/domain/assessment"
	"clinsight/domain/core"
	"clinsight/domain/outcome"
)

func makePairs(t *testing.T, instrument assessment.InstrumentKind, baseline, followup []float64) []assessment.Pair {
	t.Helper()
	pairs := make([]assessment.Pair, len(baseline))
	for i := range baseline {
		p, err := assessment.NewPair(
			core.SubjectID("subj-"+string(rune('a'+i))),
			"group_therapy", instrument, baseline[i], followup[i], 56)
		if err != nil {
			t.Fatalf("pair %d: %v", i, err)
		}
		pairs[i] = p
	}
	return pairs
}

func TestAnalyzeOutcome_StrongDepressionImprovement(t *testing.T) {
	engine := New(DefaultConfig())

	baseline := []float64{20, 18, 22, 19, 21, 17, 23, 20, 18, 19}
	followup := []float64{12, 11, 14, 10, 13, 9, 15, 11, 10, 12}
	pairs := makePairs(t, assessment.InstrumentPHQ9, baseline, followup)

	analysis, err := engine.AnalyzeOutcome("group_therapy", assessment.InstrumentPHQ9, pairs)
	if err != nil {
		t.Fatalf("analyze outcome: %v", err)
	}

	if !analysis.Test.Significant {
		t.Errorf("expected significance, got p=%g", analysis.Test.PValue)
	}
	if analysis.Test.EffectBand != outcome.EffectLarge {
		t.Errorf("expected large effect, got %q", analysis.Test.EffectBand)
	}
	if !analysis.MCIDThresholdMet {
		t.Errorf("mean difference %f should clear the PHQ-9 MCID of %f",
			analysis.Test.Differences.Mean, analysis.MCID)
	}
	if math.Abs(analysis.MCIDAchieversPct-100.0) > 1e-9 {
		t.Errorf("every subject changed by >= MCID, got %f%%", analysis.MCIDAchieversPct)
	}
	if analysis.SignificanceRating != outcome.SignificanceHigh {
		t.Errorf("expected high clinical significance, got %q", analysis.SignificanceRating)
	}

	// All ten drops are far beyond measurement error for reliability 0.84
	if analysis.ReliableChange.Improved != 10 {
		t.Errorf("expected 10 reliable improvers, got %+v", analysis.ReliableChange)
	}
	if analysis.ReliableChange.Deteriorated != 0 || analysis.ReliableChange.Unchanged != 0 {
		t.Errorf("unexpected split %+v", analysis.ReliableChange)
	}

	// Only the subject ending at 9 crosses the PHQ-9 cutoff of 10
	if analysis.RecoveredCount != 1 {
		t.Errorf("expected 1 recovery, got %d", analysis.RecoveredCount)
	}
	if math.Abs(analysis.RecoveryRate-0.1) > 1e-9 {
		t.Errorf("expected recovery rate 0.1, got %f", analysis.RecoveryRate)
	}
	if analysis.DeterioratedCount != 0 {
		t.Errorf("expected no deteriorations, got %d", analysis.DeterioratedCount)
	}
	if len(analysis.RCIValues) != 10 {
		t.Errorf("expected one RCI per subject, got %d", len(analysis.RCIValues))
	}
	if math.Abs(analysis.MeanElapsedDays-56.0) > 1e-9 {
		t.Errorf("expected mean elapsed 56 days, got %f", analysis.MeanElapsedDays)
	}
}

func TestAnalyzeOutcome_WellbeingScaleCountsDirectionCorrectly(t *testing.T) {
	engine := New(DefaultConfig())

	// SWLS: higher is better, cutoff 20. Everyone moves from dissatisfied
	// to satisfied.
	baseline := []float64{12, 14, 13, 15, 16, 14, 13, 15, 14, 12}
	followup := []float64{25, 27, 26, 28, 24, 26, 27, 25, 24, 26}
	pairs := makePairs(t, assessment.InstrumentSWLS, baseline, followup)

	analysis, err := engine.AnalyzeOutcome("group_therapy", assessment.InstrumentSWLS, pairs)
	if err != nil {
		t.Fatalf("analyze outcome: %v", err)
	}

	if analysis.ReliableChange.Improved != 10 {
		t.Errorf("rising wellbeing scores must count as improvement, got %+v", analysis.ReliableChange)
	}
	if analysis.RecoveredCount != 10 {
		t.Errorf("expected all 10 subjects to cross the satisfaction cutoff, got %d", analysis.RecoveredCount)
	}
	if math.Abs(analysis.RecoveryRate-1.0) > 1e-9 {
		t.Errorf("expected recovery rate 1.0, got %f", analysis.RecoveryRate)
	}
	if analysis.SignificanceRating != outcome.SignificanceHigh {
		t.Errorf("expected high rating, got %q", analysis.SignificanceRating)
	}
}

func TestAnalyzeOutcome_InstrumentWithoutCutoff(t *testing.T) {
	engine := New(DefaultConfig())

	baseline := []float64{30, 28, 32, 29, 31, 27}
	followup := []float64{22, 21, 24, 20, 23, 19}
	pairs := makePairs(t, assessment.InstrumentPSS10, baseline, followup)

	analysis, err := engine.AnalyzeOutcome("group_therapy", assessment.InstrumentPSS10, pairs)
	if err != nil {
		t.Fatalf("analyze outcome: %v", err)
	}

	if analysis.CutoffDefined {
		t.Error("PSS-10 defines no clinical cutoff")
	}
	if analysis.RecoveryRate != 0 || analysis.DeteriorationRate != 0 {
		t.Errorf("rates must stay zero without a cutoff, got %f/%f",
			analysis.RecoveryRate, analysis.DeteriorationRate)
	}
}

func TestAnalyzeOutcome_NoChangeRatesNone(t *testing.T) {
	engine := New(DefaultConfig())

	scores := []float64{12, 15, 11, 14, 13, 12, 14, 11}
	pairs := makePairs(t, assessment.InstrumentGAD7, scores, scores)

	analysis, err := engine.AnalyzeOutcome("group_therapy", assessment.InstrumentGAD7, pairs)
	if err != nil {
		t.Fatalf("analyze outcome: %v", err)
	}

	if analysis.SignificanceRating != outcome.SignificanceNone {
		t.Errorf("expected rating none for unchanged scores, got %q", analysis.SignificanceRating)
	}
	if analysis.ReliableChange.Unchanged != 8 {
		t.Errorf("expected all subjects unchanged, got %+v", analysis.ReliableChange)
	}
}

func TestAnalyzeOutcome_UnknownInstrumentFails(t *testing.T) {
	engine := New(DefaultConfig())

	_, err := engine.AnalyzeOutcome("group_therapy", assessment.InstrumentKind("mood_ring"), nil)
	if !core.IsUnsupportedInstrumentError(err) {
		t.Errorf("expected unsupported instrument error, got %v", err)
	}
}

func TestAnalyzeOutcome_RecommendationsFollowRatings(t *testing.T) {
	engine := New(DefaultConfig())

	baseline := []float64{20, 18, 22, 19, 21, 17, 23, 20, 18, 19}
	followup := []float64{12, 11, 14, 10, 13, 9, 15, 11, 10, 12}
	pairs := makePairs(t, assessment.InstrumentPHQ9, baseline, followup)

	analysis, err := engine.AnalyzeOutcome("group_therapy", assessment.InstrumentPHQ9, pairs)
	if err != nil {
		t.Fatalf("analyze outcome: %v", err)
	}

	if len(analysis.Recommendations) == 0 {
		t.Fatal("a high-rated analysis must emit recommendations")
	}

	// Same inputs, same recommendation order
	again, err := engine.AnalyzeOutcome("group_therapy", assessment.InstrumentPHQ9, pairs)
	if err != nil {
		t.Fatalf("analyze outcome (second run): %v", err)
	}
	if len(again.Recommendations) != len(analysis.Recommendations) {
		t.Fatalf("recommendation count changed between runs: %d vs %d",
			len(analysis.Recommendations), len(again.Recommendations))
	}
	for i := range analysis.Recommendations {
		if analysis.Recommendations[i] != again.Recommendations[i] {
			t.Errorf("recommendation %d differs between identical runs", i)
		}
	}
}
