package stats

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"clinsight/domain/core"
	"clinsight/domain/outcome"
)

// Durbin-Watson values outside these bounds flag residual autocorrelation
const (
	dwLowerBound = 1.5
	dwUpperBound = 2.5
)

// Prediction intervals are always built at 95%
const forecastPILevel = 0.95

// AnalyzeTrend fits an ordinary least-squares line over days since the first
// observation and projects it `horizon` steps forward at the series' mean
// observation spacing, each step with a 95% prediction interval.
func (e *Engine) AnalyzeTrend(points []outcome.ScorePoint, horizon int) (*outcome.TrendAnalysis, error) {
	n := len(points)
	if n < minTrendN {
		return nil, core.NewInsufficientSampleError(minTrendN, n)
	}

	ordered := make([]outcome.ScorePoint, n)
	copy(ordered, points)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].ObservedAt.Time().Before(ordered[j].ObservedAt.Time())
	})

	first := ordered[0].ObservedAt.Time()
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, p := range ordered {
		xs[i] = p.ObservedAt.Time().Sub(first).Hours() / 24.0
		ys[i] = p.Score
	}

	xMean := stat.Mean(xs, nil)
	sxx := 0.0
	for _, x := range xs {
		dx := x - xMean
		sxx += dx * dx
	}
	if sxx == 0 {
		return nil, fmt.Errorf("all observations share one timestamp: %w", core.ErrInvalidWindow)
	}

	intercept, slope := stat.LinearRegression(xs, ys, nil, false)

	rSquared := stat.RSquared(xs, ys, nil, intercept, slope)
	if math.IsNaN(rSquared) {
		// Constant series: nothing to explain
		rSquared = 0
	}

	df := n - 2
	residuals := make([]float64, n)
	sse := 0.0
	for i := range xs {
		r := ys[i] - (intercept + slope*xs[i])
		residuals[i] = r
		sse += r * r
	}
	residualSE := math.Sqrt(sse / float64(df))

	pValue := 1.0
	if residualSE > 0 {
		slopeSE := residualSE / math.Sqrt(sxx)
		tStatistic := slope / slopeSE
		pValue = e.dist.TTestPValue(tStatistic, df)
	} else if slope != 0 {
		// Perfect fit with a nonzero slope
		pValue = 0
	}

	adjustedR2 := 1.0 - (1.0-rSquared)*float64(n-1)/float64(df)

	direction := outcome.TrendStable
	if pValue < e.alpha && slope != 0 {
		if slope > 0 {
			direction = outcome.TrendIncreasing
		} else {
			direction = outcome.TrendDecreasing
		}
	}

	durbinWatson, concern := durbinWatsonStatistic(residuals)

	analysis := &outcome.TrendAnalysis{
		SampleSize:             n,
		Slope:                  slope,
		Intercept:              intercept,
		RSquared:               rSquared,
		AdjustedRSquared:       adjustedR2,
		PValue:                 pValue,
		ResidualStdError:       residualSE,
		Direction:              direction,
		Strength:               outcome.ClassifyTrendStrength(rSquared),
		DurbinWatson:           durbinWatson,
		AutocorrelationConcern: concern,
		ForecastReliability:    outcome.RateForecastReliability(n, rSquared),
	}

	if horizon > 0 {
		analysis.Forecast = e.forecast(xs, xMean, sxx, intercept, slope, residualSE, df, horizon)
	}

	return analysis, nil
}

// forecast extends the fitted line past the last observation. The prediction
// interval widens with the leverage of each projected point:
// margin = t_crit * residualSE * sqrt(1 + 1/n + (x-xMean)^2/Sxx).
func (e *Engine) forecast(xs []float64, xMean, sxx, intercept, slope, residualSE float64, df, horizon int) []outcome.ForecastPoint {
	n := len(xs)
	lastX := xs[n-1]
	spacing := (lastX - xs[0]) / float64(n-1)
	tCritical := e.dist.TCritical(df, forecastPILevel)

	forecasts := make([]outcome.ForecastPoint, 0, horizon)
	for step := 1; step <= horizon; step++ {
		x := lastX + float64(step)*spacing
		predicted := intercept + slope*x

		leverage := 1.0 + 1.0/float64(n) + (x-xMean)*(x-xMean)/sxx
		margin := tCritical * residualSE * math.Sqrt(leverage)

		forecasts = append(forecasts, outcome.ForecastPoint{
			DaysAhead: x - lastX,
			Predicted: predicted,
			PredictionInterval: outcome.ConfidenceInterval{
				Level: forecastPILevel,
				Lower: predicted - margin,
				Upper: predicted + margin,
			},
		})
	}
	return forecasts
}

// durbinWatsonStatistic computes the lag-1 residual independence diagnostic.
// Values near 2 indicate independent residuals.
func durbinWatsonStatistic(residuals []float64) (float64, bool) {
	sumSquares := 0.0
	for _, r := range residuals {
		sumSquares += r * r
	}
	if sumSquares == 0 {
		return 2.0, false
	}

	numerator := 0.0
	for i := 1; i < len(residuals); i++ {
		d := residuals[i] - residuals[i-1]
		numerator += d * d
	}

	dw := numerator / sumSquares
	return dw, dw < dwLowerBound || dw > dwUpperBound
}
