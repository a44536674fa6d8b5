package stats

import (
	"math"

	"github.com/montanaflynn/stats"

	"clinsight/domain/core"
	"clinsight/domain/outcome"
)

// Normality testing switches from an approximate skew/kurtosis check to
// D'Agostino's K-squared once the sample supports the transform.
const dagostinoMinN = 8

// Describe summarizes a numeric sequence: central tendency, spread,
// quartiles, Tukey-fence outliers, a t-distribution confidence interval for
// the mean, and an advisory normality check.
func (e *Engine) Describe(values []float64) (*outcome.DescriptiveResult, error) {
	n := len(values)
	if n == 0 {
		return nil, core.ErrEmptyInput
	}
	if n < minDescriptiveN {
		return nil, core.NewInsufficientSampleError(minDescriptiveN, n)
	}

	mean, _ := stats.Mean(values)
	stdDev, _ := stats.StandardDeviationSample(values)
	median, _ := stats.Median(values)
	minVal, _ := stats.Min(values)
	maxVal, _ := stats.Max(values)
	quartiles, _ := stats.Quartile(values)

	iqr := quartiles.Q3 - quartiles.Q1

	result := &outcome.DescriptiveResult{
		SampleSize:         n,
		Mean:               mean,
		StdDev:             stdDev,
		Median:             median,
		Min:                minVal,
		Max:                maxVal,
		Q1:                 quartiles.Q1,
		Q3:                 quartiles.Q3,
		IQR:                iqr,
		OutlierCount:       countTukeyOutliers(values, quartiles.Q1, quartiles.Q3),
		ConfidenceInterval: e.meanConfidenceInterval(mean, stdDev, n),
		Normality:          e.checkNormality(values, mean, stdDev),
	}

	return result, nil
}

// meanConfidenceInterval builds the t-distribution interval for the mean
func (e *Engine) meanConfidenceInterval(mean, stdDev float64, n int) outcome.ConfidenceInterval {
	tCritical := e.dist.TCritical(n-1, e.confidence)
	margin := tCritical * stdDev / math.Sqrt(float64(n))

	return outcome.ConfidenceInterval{
		Level: e.confidence,
		Lower: mean - margin,
		Upper: mean + margin,
	}
}

// countTukeyOutliers counts values beyond the 1.5-IQR fences
func countTukeyOutliers(values []float64, q1, q3 float64) int {
	iqr := q3 - q1
	lowerFence := q1 - 1.5*iqr
	upperFence := q3 + 1.5*iqr

	count := 0
	for _, v := range values {
		if v < lowerFence || v > upperFence {
			count++
		}
	}
	return count
}

// checkNormality runs the advisory distribution check. Nil when the sample
// is too small or degenerate for any check to mean something.
func (e *Engine) checkNormality(values []float64, mean, stdDev float64) *outcome.NormalityCheck {
	n := len(values)
	if n < 3 || stdDev == 0 {
		return nil
	}

	if n >= dagostinoMinN {
		return e.dagostinoK2(values, mean, stdDev)
	}

	// Small samples: combined skew/kurtosis statistic against chi-square
	skewness := sampleSkewness(values, mean, stdDev)
	kurtosis := sampleKurtosis(values, mean, stdDev) - 3

	testStat := math.Abs(skewness) + math.Abs(kurtosis)/2
	pValue := e.dist.ChiSquarePValue(testStat*testStat, 2)

	return &outcome.NormalityCheck{
		Statistic: testStat,
		PValue:    pValue,
		IsNormal:  pValue > 0.05,
		Method:    "skew_kurtosis_approx",
	}
}

// dagostinoK2 runs D'Agostino's K-squared normality test: the skewness and
// kurtosis are each transformed to approximate standard normal deviates and
// their squared sum is referred to chi-square with 2 degrees of freedom.
func (e *Engine) dagostinoK2(values []float64, mean, stdDev float64) *outcome.NormalityCheck {
	n := float64(len(values))

	g1 := sampleSkewness(values, mean, stdDev)
	g2 := sampleKurtosis(values, mean, stdDev)

	// Skewness transform to Z1
	y := g1 * math.Sqrt((n+1)*(n+3)/(6*(n-2)))
	beta2 := (3 * (n*n + 27*n - 70) * (n + 1) * (n + 3)) / ((n - 2) * (n + 5) * (n + 7) * (n + 9))
	w2 := -1 + math.Sqrt(2*(beta2-1))
	if w2 <= 0 {
		return nil
	}
	delta := 1 / math.Sqrt(math.Log(math.Sqrt(w2)))
	alpha := math.Sqrt(2 / (w2 - 1))
	ay := y / alpha
	z1 := delta * math.Log(ay+math.Sqrt(ay*ay+1))

	// Kurtosis transform to Z2 (Anscombe-Glynn)
	eKurt := 3 * (n - 1) / (n + 1)
	vKurt := 24 * n * (n - 2) * (n - 3) / ((n + 1) * (n + 1) * (n + 3) * (n + 5))
	if vKurt <= 0 {
		return nil
	}
	x := (g2 - eKurt) / math.Sqrt(vKurt)

	sqrtBeta1 := 6 * (n*n - 5*n + 2) / ((n + 7) * (n + 9)) * math.Sqrt(6*(n+3)*(n+5)/(n*(n-2)*(n-3)))
	a := 6 + 8/sqrtBeta1*(2/sqrtBeta1+math.Sqrt(1+4/(sqrtBeta1*sqrtBeta1)))
	if a <= 4 {
		return nil
	}

	term := 1 - 2/(9*a)
	den := 1 + x*math.Sqrt(2/(a-4))
	if den <= 0 {
		// Kurtosis far beyond the transform's domain; clearly non-normal
		return &outcome.NormalityCheck{
			Statistic: math.Abs(x),
			PValue:    0,
			IsNormal:  false,
			Method:    "dagostino_k2",
		}
	}
	z2 := (term - math.Pow((1-2/a)/den, 1.0/3.0)) / math.Sqrt(2/(9*a))

	k2 := z1*z1 + z2*z2
	pValue := e.dist.ChiSquarePValue(k2, 2)

	return &outcome.NormalityCheck{
		Statistic: k2,
		PValue:    pValue,
		IsNormal:  pValue > 0.05,
		Method:    "dagostino_k2",
	}
}

// sampleSkewness computes the adjusted Fisher-Pearson skewness coefficient
func sampleSkewness(values []float64, mean, stdDev float64) float64 {
	if len(values) < 3 || stdDev == 0 {
		return 0
	}

	n := float64(len(values))
	sumCubed := 0.0
	for _, v := range values {
		dev := (v - mean) / stdDev
		sumCubed += dev * dev * dev
	}

	skewness := sumCubed / n
	correction := math.Sqrt(n*(n-1)) / (n - 2)
	return skewness * correction
}

// sampleKurtosis computes total (not excess) kurtosis with small-sample bias
// correction.
func sampleKurtosis(values []float64, mean, stdDev float64) float64 {
	if len(values) < 4 || stdDev == 0 {
		return 3.0
	}

	n := float64(len(values))
	sumFourth := 0.0
	for _, v := range values {
		dev := (v - mean) / stdDev
		sumFourth += dev * dev * dev * dev
	}

	kurtosis := sumFourth / n
	if n > 3 {
		correction := (n - 1) / ((n - 2) * (n - 3))
		kurtosis = kurtosis*correction + 6/(n+1)
	}

	return kurtosis + 3
}
