package outcome

import (
	"testing"
)

// TestClassifyEffectSize checks the band boundaries on both sides of zero
func TestClassifyEffectSize(t *testing.T) {
	cases := []struct {
		d    float64
		want EffectBand
	}{
		{0, EffectNegligible},
		{0.19, EffectNegligible},
		{-0.19, EffectNegligible},
		{0.2, EffectSmall},
		{0.49, EffectSmall},
		{0.5, EffectMedium},
		{0.79, EffectMedium},
		{-0.6, EffectMedium},
		{0.8, EffectLarge},
		{-1.4, EffectLarge},
	}
	for _, c := range cases {
		if got := ClassifyEffectSize(c.d); got != c.want {
			t.Errorf("ClassifyEffectSize(%.2f) = %s, want %s", c.d, got, c.want)
		}
	}
}

// TestRateClinicalSignificance covers one representative input per tier
func TestRateClinicalSignificance(t *testing.T) {
	cases := []struct {
		name         string
		thresholdMet bool
		achieversPct float64
		significant  bool
		effectSize   float64
		want         SignificanceRating
	}{
		{"all criteria met", true, 60, true, 0.9, SignificanceHigh},
		{"large negative effect counts by magnitude", true, 75, true, -1.1, SignificanceHigh},
		{"medium effect with threshold", true, 40, true, 0.6, SignificanceModerate},
		{"medium effect with majority achievers", false, 55, true, 0.6, SignificanceModerate},
		{"significant alone", false, 10, true, 0.1, SignificanceLow},
		{"threshold alone", true, 10, false, 0.1, SignificanceLow},
		{"minority achievers alone", false, 25, false, 0.1, SignificanceLow},
		{"small effect alone", false, 10, false, 0.2, SignificanceLow},
		{"nothing", false, 10, false, 0.1, SignificanceNone},
	}
	for _, c := range cases {
		got := RateClinicalSignificance(c.thresholdMet, c.achieversPct, c.significant, c.effectSize)
		if got != c.want {
			t.Errorf("%s: got %s, want %s", c.name, got, c.want)
		}
	}
}

// TestRateClinicalSignificance_TiersAreMonotone verifies that strengthening
// any single criterion never lowers the rating.
func TestRateClinicalSignificance_TiersAreMonotone(t *testing.T) {
	rank := map[SignificanceRating]int{
		SignificanceNone:     0,
		SignificanceLow:      1,
		SignificanceModerate: 2,
		SignificanceHigh:     3,
	}

	thresholds := []bool{false, true}
	achievers := []float64{0, 25, 50, 75}
	significances := []bool{false, true}
	effects := []float64{0, 0.2, 0.5, 0.8, 1.2}

	for _, tm := range thresholds {
		for ai, ach := range achievers {
			for _, sig := range significances {
				for ei, d := range effects {
					base := rank[RateClinicalSignificance(tm, ach, sig, d)]

					if got := rank[RateClinicalSignificance(true, ach, sig, d)]; got < base {
						t.Fatalf("meeting the threshold lowered the rating at (ach=%.0f sig=%v d=%.1f)", ach, sig, d)
					}
					if got := rank[RateClinicalSignificance(tm, ach, true, d)]; got < base {
						t.Fatalf("significance lowered the rating at (tm=%v ach=%.0f d=%.1f)", tm, ach, d)
					}
					if ai+1 < len(achievers) {
						if got := rank[RateClinicalSignificance(tm, achievers[ai+1], sig, d)]; got < base {
							t.Fatalf("more achievers lowered the rating at (tm=%v sig=%v d=%.1f)", tm, sig, d)
						}
					}
					if ei+1 < len(effects) {
						if got := rank[RateClinicalSignificance(tm, ach, sig, effects[ei+1])]; got < base {
							t.Fatalf("larger effect lowered the rating at (tm=%v ach=%.0f sig=%v)", tm, ach, sig)
						}
					}
				}
			}
		}
	}
}

// TestRateEvidenceQuality covers the three tiers and their boundaries
func TestRateEvidenceQuality(t *testing.T) {
	cases := []struct {
		name        string
		n           int
		significant bool
		effectSize  float64
		want        EvidenceQuality
	}{
		{"large significant sample", 30, true, 0.5, EvidenceStrong},
		{"strong effect below strong n", 29, true, 1.0, EvidenceModerate},
		{"strong n without significance", 30, false, 0.4, EvidenceModerate},
		{"moderate n significant", 15, true, 0.1, EvidenceModerate},
		{"moderate n effect only", 20, false, 0.3, EvidenceModerate},
		{"small sample", 14, true, 1.2, EvidenceWeak},
		{"no signal", 30, false, 0.2, EvidenceWeak},
	}
	for _, c := range cases {
		if got := RateEvidenceQuality(c.n, c.significant, c.effectSize); got != c.want {
			t.Errorf("%s: got %s, want %s", c.name, got, c.want)
		}
	}
}

// TestClassifyTrendStrength checks the R-squared band edges
func TestClassifyTrendStrength(t *testing.T) {
	cases := []struct {
		r2   float64
		want TrendStrength
	}{
		{0.0, TrendNegligible},
		{0.19, TrendNegligible},
		{0.2, TrendWeak},
		{0.39, TrendWeak},
		{0.4, TrendModerate},
		{0.69, TrendModerate},
		{0.7, TrendStrong},
		{0.95, TrendStrong},
	}
	for _, c := range cases {
		if got := ClassifyTrendStrength(c.r2); got != c.want {
			t.Errorf("ClassifyTrendStrength(%.2f) = %s, want %s", c.r2, got, c.want)
		}
	}
}

// TestRateForecastReliability requires sample size and fit quality jointly
func TestRateForecastReliability(t *testing.T) {
	cases := []struct {
		n    int
		r2   float64
		want ForecastReliability
	}{
		{20, 0.6, ForecastHigh},
		{40, 0.9, ForecastHigh},
		{19, 0.9, ForecastModerate},
		{20, 0.59, ForecastModerate},
		{10, 0.3, ForecastModerate},
		{9, 0.9, ForecastLow},
		{25, 0.29, ForecastLow},
	}
	for _, c := range cases {
		if got := RateForecastReliability(c.n, c.r2); got != c.want {
			t.Errorf("RateForecastReliability(%d, %.2f) = %s, want %s", c.n, c.r2, got, c.want)
		}
	}
}

// TestBandScores checks the data-quality blending inputs
func TestBandScores(t *testing.T) {
	if got := EvidenceBandScore(EvidenceStrong); got != 1.0 {
		t.Errorf("strong evidence score = %.2f, want 1.0", got)
	}
	if got := EvidenceBandScore(EvidenceModerate); got != 0.6 {
		t.Errorf("moderate evidence score = %.2f, want 0.6", got)
	}
	if got := EvidenceBandScore(EvidenceWeak); got != 0.3 {
		t.Errorf("weak evidence score = %.2f, want 0.3", got)
	}

	sizeCases := []struct {
		n    int
		want float64
	}{
		{30, 1.0}, {15, 0.7}, {5, 0.4}, {4, 0.2},
	}
	for _, c := range sizeCases {
		if got := SampleSizeBandScore(c.n); got != c.want {
			t.Errorf("SampleSizeBandScore(%d) = %.2f, want %.2f", c.n, got, c.want)
		}
	}
}
