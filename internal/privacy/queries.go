package privacy

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"clinsight/domain/core"
	"clinsight/domain/outcome"
	"clinsight/domain/privacy"
)

// Counts and proportion terms change by at most one when a record is added
// or removed.
const countSensitivity = 1.0

// Normal deviate for the 95% proportion interval
const proportionZ = 1.96

// Privacy-risk score: weighted blend of normalized epsilon, normalized
// delta, and inverse sample size.
const (
	riskEpsilonWeight = 0.7
	riskDeltaWeight   = 0.1
	riskSampleWeight  = 0.2
	riskEpsilonNorm   = 2.0
	riskDeltaNorm     = 1e-3
)

// PrivateMean privatizes the mean of values at the given tier. The caller is
// expected to have applied k-anonymity suppression already; this layer still
// refuses effective samples below the configured threshold.
func (e *Engine) PrivateMean(name string, values []float64, tier privacy.Tier) (*privacy.PrivateResult, error) {
	n := len(values)
	if n == 0 {
		return nil, fmt.Errorf("%s: %w", name, core.ErrEmptyInput)
	}
	if n < e.k {
		return nil, fmt.Errorf("%s: %w", name, core.NewSampleBelowThresholdError(n, e.k))
	}

	if err := e.ledger.Spend("private_mean", tier.Epsilon, name); err != nil {
		return nil, err
	}

	trueMean, _ := stats.Mean(values)
	minVal, _ := stats.Min(values)
	maxVal, _ := stats.Max(values)

	// One record moves a bounded mean by at most range/n
	sensitivity := (maxVal - minVal) / float64(n)

	noisy := trueMean
	magnitude := 0.0
	if sensitivity > 0 {
		var err error
		noisy, magnitude, err = e.AddNoise(trueMean, tier.Mechanism, tier.Epsilon, tier.Delta, sensitivity)
		if err != nil {
			return nil, err
		}
	}

	deltaSpent := 0.0
	if tier.Mechanism == privacy.MechanismGaussian {
		deltaSpent = tier.Delta
	}

	expected := expectedNoiseMagnitude(tier.Mechanism, tier.Epsilon, tier.Delta, sensitivity)

	return &privacy.PrivateResult{
		Name:  name,
		Value: noisy,
		ConfidenceInterval: &outcome.ConfidenceInterval{
			Level: 0.95,
			Lower: noisy - magnitude/2,
			Upper: noisy + magnitude/2,
		},
		EpsilonSpent:        tier.Epsilon,
		DeltaSpent:          deltaSpent,
		NoiseMagnitude:      magnitude,
		Mechanism:           tier.Mechanism,
		OriginalSampleSize:  n,
		EffectiveSampleSize: n,
		AccuracyEstimate:    accuracyScore(trueMean, expected),
		UtilityScore:        utilityScore(trueMean, noisy),
		PrivacyRiskScore:    privacyRiskScore(tier.Epsilon, deltaSpent, n),
	}, nil
}

// PrivateCount privatizes a non-negative count. The published value is
// rounded and floored at zero after noise injection.
func (e *Engine) PrivateCount(name string, count int, tier privacy.Tier) (*privacy.PrivateResult, error) {
	if count < 0 {
		return nil, fmt.Errorf("%s: count cannot be negative, got %d", name, count)
	}

	if err := e.ledger.Spend("private_count", tier.Epsilon, name); err != nil {
		return nil, err
	}

	noisy, magnitude, err := e.AddNoise(float64(count), tier.Mechanism, tier.Epsilon, tier.Delta, countSensitivity)
	if err != nil {
		return nil, err
	}

	published := math.Round(noisy)
	if published < 0 {
		published = 0
	}

	lower := published - magnitude/2
	if lower < 0 {
		lower = 0
	}

	deltaSpent := 0.0
	if tier.Mechanism == privacy.MechanismGaussian {
		deltaSpent = tier.Delta
	}

	expected := expectedNoiseMagnitude(tier.Mechanism, tier.Epsilon, tier.Delta, countSensitivity)

	return &privacy.PrivateResult{
		Name:  name,
		Value: published,
		ConfidenceInterval: &outcome.ConfidenceInterval{
			Level: 0.95,
			Lower: lower,
			Upper: published + magnitude/2,
		},
		EpsilonSpent:        tier.Epsilon,
		DeltaSpent:          deltaSpent,
		NoiseMagnitude:      magnitude,
		Mechanism:           tier.Mechanism,
		OriginalSampleSize:  count,
		EffectiveSampleSize: int(published),
		AccuracyEstimate:    accuracyScore(float64(count), expected),
		UtilityScore:        utilityScore(float64(count), published),
		PrivacyRiskScore:    privacyRiskScore(tier.Epsilon, deltaSpent, count),
	}, nil
}

// PrivateProportion privatizes numerator/denominator. Both terms receive
// independent noise, so the query spends twice the tier epsilon in a single
// atomic step. The published ratio is clamped to [0,1].
func (e *Engine) PrivateProportion(name string, numerator, denominator int, tier privacy.Tier) (*privacy.PrivateResult, error) {
	if denominator == 0 {
		return nil, fmt.Errorf("%s: %w", name, core.ErrZeroDenominator)
	}
	if numerator < 0 || denominator < 0 || numerator > denominator {
		return nil, fmt.Errorf("%s: invalid proportion %d/%d", name, numerator, denominator)
	}

	totalEpsilon := 2.0 * tier.Epsilon
	if err := e.ledger.Spend("private_proportion", totalEpsilon, name); err != nil {
		return nil, err
	}

	noisyNum, magNum, err := e.AddNoise(float64(numerator), tier.Mechanism, tier.Epsilon, tier.Delta, countSensitivity)
	if err != nil {
		return nil, err
	}
	noisyDen, magDen, err := e.AddNoise(float64(denominator), tier.Mechanism, tier.Epsilon, tier.Delta, countSensitivity)
	if err != nil {
		return nil, err
	}

	effectiveN := int(math.Round(noisyDen))
	if effectiveN < 1 {
		effectiveN = 1
	}

	proportion := clamp01(noisyNum / float64(effectiveN))
	trueProportion := float64(numerator) / float64(denominator)

	standardError := math.Sqrt(proportion * (1 - proportion) / float64(effectiveN))
	margin := proportionZ * standardError

	deltaSpent := 0.0
	if tier.Mechanism == privacy.MechanismGaussian {
		deltaSpent = 2.0 * tier.Delta
	}

	expectedPerTerm := expectedNoiseMagnitude(tier.Mechanism, tier.Epsilon, tier.Delta, countSensitivity)
	accuracy := clamp01(1.0 - 2.0*expectedPerTerm/math.Max(float64(denominator), 1))

	return &privacy.PrivateResult{
		Name:  name,
		Value: proportion,
		ConfidenceInterval: &outcome.ConfidenceInterval{
			Level: 0.95,
			Lower: clamp01(proportion - margin),
			Upper: clamp01(proportion + margin),
		},
		EpsilonSpent:        totalEpsilon,
		DeltaSpent:          deltaSpent,
		NoiseMagnitude:      magNum + magDen,
		Mechanism:           tier.Mechanism,
		OriginalSampleSize:  denominator,
		EffectiveSampleSize: effectiveN,
		AccuracyEstimate:    accuracy,
		UtilityScore:        utilityScore(trueProportion, proportion),
		PrivacyRiskScore:    privacyRiskScore(totalEpsilon, deltaSpent, denominator),
	}, nil
}

// relativeError bounds the comparison base at 1 so near-zero true values do
// not blow the score up.
func relativeError(trueValue, noisyValue float64) float64 {
	base := math.Abs(trueValue)
	if base < 1 {
		base = 1
	}
	return math.Abs(noisyValue-trueValue) / base
}

// utilityScore measures how much signal survived the realized noise draw
func utilityScore(trueValue, noisyValue float64) float64 {
	return clamp01(1.0 - relativeError(trueValue, noisyValue))
}

// accuracyScore is the a-priori counterpart of utilityScore, computed from
// the mechanism's expected noise magnitude instead of the realized draw.
func accuracyScore(trueValue, expectedMagnitude float64) float64 {
	base := math.Abs(trueValue)
	if base < 1 {
		base = 1
	}
	return clamp01(1.0 - expectedMagnitude/base)
}

// privacyRiskScore blends normalized epsilon, normalized delta, and inverse
// sample size into a residual re-identification risk in [0,1].
func privacyRiskScore(epsilon, delta float64, sampleSize int) float64 {
	if sampleSize < 1 {
		sampleSize = 1
	}

	normEpsilon := clamp01(epsilon / riskEpsilonNorm)
	normDelta := clamp01(delta / riskDeltaNorm)
	inverseSample := 1.0 / float64(sampleSize)

	return clamp01(riskEpsilonWeight*normEpsilon +
		riskDeltaWeight*normDelta +
		riskSampleWeight*inverseSample)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
