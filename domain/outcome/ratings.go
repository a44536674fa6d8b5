package outcome

import "math"

// Qualitative rating scales. Each rating is derived by a small pure function
// over the named thresholds below, so cut-point changes stay localized.

// EffectBand is the qualitative magnitude of a standardized effect size
type EffectBand string

const (
	EffectNegligible EffectBand = "negligible"
	EffectSmall      EffectBand = "small"
	EffectMedium     EffectBand = "medium"
	EffectLarge      EffectBand = "large"
)

// SignificanceRating is the four-level clinical significance of a group result
type SignificanceRating string

const (
	SignificanceNone     SignificanceRating = "none"
	SignificanceLow      SignificanceRating = "low"
	SignificanceModerate SignificanceRating = "moderate"
	SignificanceHigh     SignificanceRating = "high"
)

// EvidenceQuality is the three-level strength of the supporting evidence
type EvidenceQuality string

const (
	EvidenceWeak     EvidenceQuality = "weak"
	EvidenceModerate EvidenceQuality = "moderate"
	EvidenceStrong   EvidenceQuality = "strong"
)

// TrendDirection describes the fitted slope
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendStable     TrendDirection = "stable"
)

// TrendStrength is the qualitative band of the fit's R-squared
type TrendStrength string

const (
	TrendNegligible TrendStrength = "negligible"
	TrendWeak       TrendStrength = "weak"
	TrendModerate   TrendStrength = "moderate"
	TrendStrong     TrendStrength = "strong"
)

// ForecastReliability grades how much weight a forecast deserves
type ForecastReliability string

const (
	ForecastHigh     ForecastReliability = "high"
	ForecastModerate ForecastReliability = "moderate"
	ForecastLow      ForecastReliability = "low"
)

// Named thresholds
const (
	// Cohen's conventional effect-size cut points
	effectSmallCut  = 0.2
	effectMediumCut = 0.5
	effectLargeCut  = 0.8

	// MCID achiever percentages for significance rating
	achieversMajorityPct = 50.0
	achieversMinorityPct = 25.0

	// Evidence-quality sample and effect requirements
	evidenceStrongN        = 30
	evidenceModerateN      = 15
	evidenceStrongEffect   = 0.5
	evidenceModerateEffect = 0.3

	// Trend-strength R-squared bands
	trendWeakR2     = 0.2
	trendModerateR2 = 0.4
	trendStrongR2   = 0.7

	// Forecast reliability requirements
	forecastHighN      = 20
	forecastHighR2     = 0.6
	forecastModerateN  = 10
	forecastModerateR2 = 0.3
)

// ClassifyEffectSize bands a standardized effect size by magnitude
func ClassifyEffectSize(d float64) EffectBand {
	abs := math.Abs(d)
	switch {
	case abs < effectSmallCut:
		return EffectNegligible
	case abs < effectMediumCut:
		return EffectSmall
	case abs < effectLargeCut:
		return EffectMedium
	default:
		return EffectLarge
	}
}

// RateClinicalSignificance derives the four-level rating. High demands every
// criterion at once; the relaxed tiers are monotone, so every high result is
// also moderate, and every moderate result is also low.
func RateClinicalSignificance(thresholdMet bool, achieversPct float64, significant bool, effectSize float64) SignificanceRating {
	abs := math.Abs(effectSize)

	if thresholdMet && achieversPct >= achieversMajorityPct && significant && abs >= effectLargeCut {
		return SignificanceHigh
	}
	if significant && abs >= effectMediumCut && (thresholdMet || achieversPct >= achieversMajorityPct) {
		return SignificanceModerate
	}
	if significant || thresholdMet || achieversPct >= achieversMinorityPct || abs >= effectSmallCut {
		return SignificanceLow
	}
	return SignificanceNone
}

// RateEvidenceQuality derives the three-level rating from sample size,
// statistical significance, and effect magnitude jointly.
func RateEvidenceQuality(sampleSize int, significant bool, effectSize float64) EvidenceQuality {
	abs := math.Abs(effectSize)

	if sampleSize >= evidenceStrongN && significant && abs >= evidenceStrongEffect {
		return EvidenceStrong
	}
	if sampleSize >= evidenceModerateN && (significant || abs >= evidenceModerateEffect) {
		return EvidenceModerate
	}
	return EvidenceWeak
}

// ClassifyTrendStrength bands a regression R-squared
func ClassifyTrendStrength(rSquared float64) TrendStrength {
	switch {
	case rSquared < trendWeakR2:
		return TrendNegligible
	case rSquared < trendModerateR2:
		return TrendWeak
	case rSquared < trendStrongR2:
		return TrendModerate
	default:
		return TrendStrong
	}
}

// RateForecastReliability grades a forecast from sample size and fit quality
func RateForecastReliability(sampleSize int, rSquared float64) ForecastReliability {
	if sampleSize >= forecastHighN && rSquared >= forecastHighR2 {
		return ForecastHigh
	}
	if sampleSize >= forecastModerateN && rSquared >= forecastModerateR2 {
		return ForecastModerate
	}
	return ForecastLow
}

// EvidenceBandScore maps an evidence rating onto [0,1] for data-quality
// blending.
func EvidenceBandScore(q EvidenceQuality) float64 {
	switch q {
	case EvidenceStrong:
		return 1.0
	case EvidenceModerate:
		return 0.6
	default:
		return 0.3
	}
}

// SampleSizeBandScore maps a group sample size onto [0,1] for data-quality
// blending.
func SampleSizeBandScore(n int) float64 {
	switch {
	case n >= evidenceStrongN:
		return 1.0
	case n >= evidenceModerateN:
		return 0.7
	case n >= 5:
		return 0.4
	default:
		return 0.2
	}
}
