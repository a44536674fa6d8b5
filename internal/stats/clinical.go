package stats

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"clinsight/domain/assessment"
	"clinsight/domain/core"
	"clinsight/domain/outcome"
)

// Reliable change is claimed when |RCI| exceeds the 95% normal deviate
const rciCriticalValue = 1.96

// Recommendation heuristics
const (
	recExpandImprovementRate  = 0.5
	recAlertDeteriorationRate = 0.2
	recMinInterpretableN      = 15
)

// AnalyzeOutcome runs the full clinical analysis for one
// (intervention, instrument) group: paired hypothesis test, per-subject
// reliable change, MCID achievement, cutoff transitions, qualitative
// ratings, and recommendations. Pure function of the pairs and the
// instrument table.
func (e *Engine) AnalyzeOutcome(intervention string, instrument assessment.InstrumentKind, pairs []assessment.Pair) (*outcome.ClinicalOutcomeAnalysis, error) {
	profile, err := assessment.ProfileFor(instrument)
	if err != nil {
		return nil, err
	}

	n := len(pairs)
	if n < minPairedN {
		return nil, core.NewInsufficientSampleError(minPairedN, n)
	}

	baseline := make([]float64, n)
	followup := make([]float64, n)
	elapsedSum := 0
	for i, p := range pairs {
		baseline[i] = p.Baseline
		followup[i] = p.Followup
		elapsedSum += p.ElapsedDays
	}

	test, err := e.PairedTest(baseline, followup)
	if err != nil {
		return nil, err
	}

	rci := reliableChangeIndex(baseline, followup, profile.Reliability)

	var split outcome.ReliableChangeSplit
	for i, value := range rci {
		switch {
		case math.Abs(value) <= rciCriticalValue:
			split.Unchanged++
		case profile.FavorableChange(baseline[i], followup[i]) > 0:
			split.Improved++
		default:
			split.Deteriorated++
		}
	}

	achievers := 0
	for i := range baseline {
		if math.Abs(followup[i]-baseline[i]) >= profile.MCID {
			achievers++
		}
	}
	achieversPct := float64(achievers) / float64(n) * 100.0
	thresholdMet := math.Abs(test.Differences.Mean) >= profile.MCID

	analysis := &outcome.ClinicalOutcomeAnalysis{
		Intervention:     intervention,
		Instrument:       instrument,
		SampleSize:       n,
		Test:             *test,
		MCID:             profile.MCID,
		MCIDAchieversPct: achieversPct,
		MCIDThresholdMet: thresholdMet,
		RCIValues:        rci,
		ReliableChange:   split,
		CutoffDefined:    profile.HasCutoff,
		MeanElapsedDays:  float64(elapsedSum) / float64(n),
	}

	if profile.HasCutoff {
		recovered, deteriorated := 0, 0
		for i := range baseline {
			if profile.Recovered(baseline[i], followup[i]) {
				recovered++
			} else if profile.Deteriorated(baseline[i], followup[i]) {
				deteriorated++
			}
		}
		analysis.RecoveredCount = recovered
		analysis.DeterioratedCount = deteriorated
		analysis.RecoveryRate = float64(recovered) / float64(n)
		analysis.DeteriorationRate = float64(deteriorated) / float64(n)
	}

	analysis.SignificanceRating = outcome.RateClinicalSignificance(
		thresholdMet, achieversPct, test.Significant, test.EffectSize)
	analysis.EvidenceQuality = outcome.RateEvidenceQuality(
		n, test.Significant, test.EffectSize)
	analysis.Recommendations = buildRecommendations(profile, analysis)

	return analysis, nil
}

// reliableChangeIndex computes the per-subject RCI. The standard error of
// measurement difference uses the pooled baseline/follow-up standard
// deviation and the instrument's test-retest reliability:
// SE_diff = pooledSD * sqrt(2) * sqrt(1 - reliability).
func reliableChangeIndex(baseline, followup []float64, reliability float64) []float64 {
	n := len(baseline)
	rci := make([]float64, n)

	varBaseline, _ := stats.SampleVariance(baseline)
	varFollowup, _ := stats.SampleVariance(followup)
	pooledSD := math.Sqrt((varBaseline + varFollowup) / 2.0)

	seDiff := pooledSD * math.Sqrt2 * math.Sqrt(1.0-reliability)
	if seDiff == 0 {
		// No measurement spread; no change can be called reliable
		return rci
	}

	for i := range baseline {
		rci[i] = (followup[i] - baseline[i]) / seDiff
	}
	return rci
}

// buildRecommendations emits the rule-based recommendation strings for one
// analysis. Order is fixed so reports are reproducible.
func buildRecommendations(profile assessment.InstrumentProfile, a *outcome.ClinicalOutcomeAnalysis) []string {
	recs := []string{}
	name := profile.DisplayName

	improvement := a.ReliableImprovementRate()
	deterioration := a.ReliableDeteriorationRate()

	if a.SignificanceRating == outcome.SignificanceHigh {
		recs = append(recs, fmt.Sprintf(
			"%s shows strong outcomes on %s across statistical and clinical criteria. Consider expanding program capacity.",
			a.Intervention, name))
	}
	if improvement >= recExpandImprovementRate {
		recs = append(recs, fmt.Sprintf(
			"%.0f%% of subjects reliably improved on %s. The current protocol is working; maintain delivery fidelity.",
			improvement*100, name))
	}
	if deterioration >= recAlertDeteriorationRate {
		recs = append(recs, fmt.Sprintf(
			"%.0f%% of subjects reliably deteriorated on %s. Review the intervention protocol and screening criteria.",
			deterioration*100, name))
	}
	if a.SignificanceRating == outcome.SignificanceNone && a.SampleSize >= recMinInterpretableN {
		recs = append(recs, fmt.Sprintf(
			"No detectable clinical effect for %s on %s despite an adequate sample. Reassess fit for this population.",
			a.Intervention, name))
	}
	if a.EvidenceQuality == outcome.EvidenceWeak {
		recs = append(recs, fmt.Sprintf(
			"Evidence for %s on %s is weak (n=%d). Collect more follow-up data before drawing conclusions.",
			a.Intervention, name, a.SampleSize))
	}

	return recs
}
