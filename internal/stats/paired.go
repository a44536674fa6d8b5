package stats

import (
	"fmt"
	"math"

	"clinsight/domain/core"
	"clinsight/domain/outcome"
)

// PairedTest runs a one-sample t-test of the per-subject differences
// (follow-up minus baseline) against zero, with Cohen's d for paired samples.
func (e *Engine) PairedTest(baseline, followup []float64) (*outcome.HypothesisTestResult, error) {
	if len(baseline) != len(followup) {
		return nil, core.NewMismatchedPairsError(len(baseline), len(followup))
	}
	n := len(baseline)
	if n < minPairedN {
		return nil, core.NewInsufficientSampleError(minPairedN, n)
	}

	differences := make([]float64, n)
	for i := range baseline {
		differences[i] = followup[i] - baseline[i]
	}

	desc, err := e.Describe(differences)
	if err != nil {
		return nil, err
	}

	meanDiff := desc.Mean
	sdDiff := desc.StdDev
	df := n - 1

	if sdDiff == 0 {
		// All differences identical. A zero mean is a legitimate null result;
		// a nonzero mean leaves the t statistic undefined.
		if meanDiff != 0 {
			return nil, fmt.Errorf("all %d differences equal %.4f: %w", n, meanDiff, core.ErrZeroDenominator)
		}
		return &outcome.HypothesisTestResult{
			Differences:      *desc,
			TStatistic:       0,
			DegreesOfFreedom: df,
			PValue:           1.0,
			Alpha:            e.alpha,
			Significant:      false,
			EffectSize:       0,
			EffectBand:       outcome.EffectNegligible,
		}, nil
	}

	standardError := sdDiff / math.Sqrt(float64(n))
	tStatistic := meanDiff / standardError
	pValue := e.dist.TTestPValue(tStatistic, df)

	// Cohen's d for paired samples: mean difference over SD of differences
	effectSize := meanDiff / sdDiff

	return &outcome.HypothesisTestResult{
		Differences:      *desc,
		TStatistic:       tStatistic,
		DegreesOfFreedom: df,
		PValue:           pValue,
		Alpha:            e.alpha,
		Significant:      pValue < e.alpha,
		EffectSize:       effectSize,
		EffectBand:       outcome.ClassifyEffectSize(effectSize),
	}, nil
}
