package stats

import (
	"errors"
	"math"
	"testing"

	"clinsight/domain/core"
	"clinsight/domain/outcome"
)

func TestPairedTest_StrongImprovement(t *testing.T) {
	engine := New(DefaultConfig())

	baseline := []float64{20, 18, 22, 19, 21, 17, 23, 20, 18, 19}
	followup := []float64{12, 11, 14, 10, 13, 9, 15, 11, 10, 12}

	result, err := engine.PairedTest(baseline, followup)
	if err != nil {
		t.Fatalf("paired test: %v", err)
	}

	// Differences average -8 with SD sqrt(4/9)
	if math.Abs(result.Differences.Mean+8.0) > 1e-9 {
		t.Errorf("expected mean difference -8.0, got %f", result.Differences.Mean)
	}
	if result.DegreesOfFreedom != 9 {
		t.Errorf("expected df=9, got %d", result.DegreesOfFreedom)
	}
	if !result.Significant {
		t.Errorf("expected a significant result, got p=%g", result.PValue)
	}
	if result.PValue > 0.001 {
		t.Errorf("expected p well under 0.001, got %g", result.PValue)
	}
	if math.Abs(result.EffectSize+12.0) > 0.01 {
		t.Errorf("expected Cohen's d near -12.0, got %f", result.EffectSize)
	}
	if result.EffectBand != outcome.EffectLarge {
		t.Errorf("expected large effect band, got %q", result.EffectBand)
	}
	if math.Abs(result.TStatistic+37.947) > 0.01 {
		t.Errorf("expected t near -37.947, got %f", result.TStatistic)
	}
}

func TestPairedTest_EffectSignMatchesMeanDifferenceSign(t *testing.T) {
	engine := New(DefaultConfig())

	cases := []struct {
		name     string
		baseline []float64
		followup []float64
	}{
		{"scores drop", []float64{15, 17, 14, 16, 18, 15}, []float64{10, 12, 9, 13, 11, 10}},
		{"scores rise", []float64{10, 12, 9, 13, 11, 10}, []float64{15, 17, 14, 16, 18, 15}},
		{"slight drift", []float64{20, 21, 19, 22, 20, 21, 20}, []float64{19, 21, 18, 22, 19, 20, 20}},
	}

	for _, tc := range cases {
		result, err := engine.PairedTest(tc.baseline, tc.followup)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		meanDiff := result.Differences.Mean
		if meanDiff == 0 {
			t.Fatalf("%s: test case must have a nonzero mean difference", tc.name)
		}
		if (meanDiff > 0) != (result.EffectSize > 0) {
			t.Errorf("%s: effect size %f disagrees with mean difference %f",
				tc.name, result.EffectSize, meanDiff)
		}
	}
}

func TestPairedTest_IntervalContainsPointEstimate(t *testing.T) {
	engine := New(DefaultConfig())

	cases := [][2][]float64{
		{{20, 18, 22, 19, 21}, {12, 11, 14, 10, 13}},
		{{5, 6, 7, 8, 9, 10}, {5, 7, 6, 9, 8, 10}},
		{{30, 28, 33, 29, 31, 27, 32}, {30, 29, 31, 30, 29, 28, 33}},
	}

	for i, c := range cases {
		result, err := engine.PairedTest(c[0], c[1])
		if err != nil {
			t.Fatalf("case %d: %v", i, err)
		}
		ci := result.Differences.ConfidenceInterval
		if !ci.Contains(result.Differences.Mean) {
			t.Errorf("case %d: interval [%f, %f] does not contain mean %f",
				i, ci.Lower, ci.Upper, result.Differences.Mean)
		}
	}
}

func TestPairedTest_InputValidation(t *testing.T) {
	engine := New(DefaultConfig())

	if _, err := engine.PairedTest([]float64{1, 2, 3}, []float64{1, 2}); !errors.Is(err, core.ErrMismatchedPairs) {
		t.Errorf("expected mismatched pairs error, got %v", err)
	}
	if _, err := engine.PairedTest([]float64{1, 2}, []float64{1, 2}); !core.IsInsufficientSampleError(err) {
		t.Errorf("expected insufficient sample error for n=2, got %v", err)
	}
}

func TestPairedTest_NoChangeIsCleanNull(t *testing.T) {
	engine := New(DefaultConfig())

	scores := []float64{12, 15, 11, 14, 13, 12}
	result, err := engine.PairedTest(scores, scores)
	if err != nil {
		t.Fatalf("paired test: %v", err)
	}

	if result.TStatistic != 0 || result.PValue != 1.0 {
		t.Errorf("expected t=0 p=1 for identical sequences, got t=%f p=%f",
			result.TStatistic, result.PValue)
	}
	if result.Significant {
		t.Error("identical sequences must not be significant")
	}
	if result.EffectSize != 0 || result.EffectBand != outcome.EffectNegligible {
		t.Errorf("expected negligible zero effect, got %f (%q)", result.EffectSize, result.EffectBand)
	}
}

func TestPairedTest_UniformShiftIsRejected(t *testing.T) {
	engine := New(DefaultConfig())

	baseline := []float64{20, 18, 22, 19, 21}
	followup := make([]float64, len(baseline))
	for i, b := range baseline {
		followup[i] = b - 5
	}

	_, err := engine.PairedTest(baseline, followup)
	if !errors.Is(err, core.ErrZeroDenominator) {
		t.Errorf("expected zero-denominator error for identical nonzero differences, got %v", err)
	}
}
