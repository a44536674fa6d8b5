package stats

import (
	"math"
	"testing"
	"time"

	"clinsight/domain/core"
	"clinsight/domain/outcome"
)

func weeklySeries(t *testing.T, n int, score func(week int) float64) []outcome.ScorePoint {
	t.Helper()
	start := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	points := make([]outcome.ScorePoint, n)
	for i := 0; i < n; i++ {
		points[i] = outcome.ScorePoint{
			ObservedAt: core.NewTimestamp(start.AddDate(0, 0, 7*i)),
			Score:      score(i),
		}
	}
	return points
}

func TestAnalyzeTrend_PerfectLinearDecline(t *testing.T) {
	engine := New(DefaultConfig())

	points := weeklySeries(t, 12, func(week int) float64 {
		return 25.0 - 1.5*float64(week)
	})

	trend, err := engine.AnalyzeTrend(points, 4)
	if err != nil {
		t.Fatalf("analyze trend: %v", err)
	}

	wantSlope := -1.5 / 7.0
	if math.Abs(trend.Slope-wantSlope) > 1e-9 {
		t.Errorf("expected slope %f per day, got %f", wantSlope, trend.Slope)
	}
	if math.Abs(trend.RSquared-1.0) > 1e-9 {
		t.Errorf("expected R-squared 1.0 for a perfect line, got %f", trend.RSquared)
	}
	if trend.Direction != outcome.TrendDecreasing {
		t.Errorf("expected decreasing direction, got %q", trend.Direction)
	}
	if trend.Strength != outcome.TrendStrong {
		t.Errorf("expected strong trend, got %q", trend.Strength)
	}
	if trend.PValue > 1e-6 {
		t.Errorf("expected a vanishing p-value, got %g", trend.PValue)
	}
	if trend.AutocorrelationConcern {
		t.Error("a perfect fit has no residual structure to flag")
	}

	if len(trend.Forecast) != 4 {
		t.Fatalf("expected 4 forecast points, got %d", len(trend.Forecast))
	}
	// Week 12 continues the line at 25 - 1.5*12 = 7.0
	first := trend.Forecast[0]
	if math.Abs(first.DaysAhead-7.0) > 1e-9 {
		t.Errorf("expected first forecast 7 days ahead, got %f", first.DaysAhead)
	}
	if math.Abs(first.Predicted-7.0) > 1e-6 {
		t.Errorf("expected forecast 7.0, got %f", first.Predicted)
	}
	if !first.PredictionInterval.Contains(first.Predicted) {
		t.Error("prediction interval must contain its point forecast")
	}
}

func TestAnalyzeTrend_FlatSeriesIsStable(t *testing.T) {
	engine := New(DefaultConfig())

	points := weeklySeries(t, 15, func(int) float64 { return 12.0 })

	trend, err := engine.AnalyzeTrend(points, 2)
	if err != nil {
		t.Fatalf("analyze trend: %v", err)
	}

	if trend.Slope != 0 {
		t.Errorf("expected zero slope, got %f", trend.Slope)
	}
	if trend.Direction != outcome.TrendStable {
		t.Errorf("expected stable direction, got %q", trend.Direction)
	}
	if trend.Strength != outcome.TrendNegligible {
		t.Errorf("expected negligible strength, got %q", trend.Strength)
	}
	if trend.PValue != 1.0 {
		t.Errorf("expected p=1 for a constant series, got %f", trend.PValue)
	}
}

func TestAnalyzeTrend_AlternatingResidualsRaiseConcern(t *testing.T) {
	engine := New(DefaultConfig())

	// No drift, pure alternation around 20: slope ~0, residuals flip sign
	// every observation, Durbin-Watson ~4.
	points := weeklySeries(t, 14, func(week int) float64 {
		if week%2 == 0 {
			return 21.0
		}
		return 19.0
	})

	trend, err := engine.AnalyzeTrend(points, 0)
	if err != nil {
		t.Fatalf("analyze trend: %v", err)
	}

	if trend.Direction != outcome.TrendStable {
		t.Errorf("expected stable direction, got %q (p=%f)", trend.Direction, trend.PValue)
	}
	if trend.DurbinWatson < dwUpperBound {
		t.Errorf("expected Durbin-Watson above %.1f for alternating residuals, got %f",
			dwUpperBound, trend.DurbinWatson)
	}
	if !trend.AutocorrelationConcern {
		t.Error("alternating residuals must flag the independence concern")
	}
	if len(trend.Forecast) != 0 {
		t.Errorf("horizon 0 must produce no forecasts, got %d", len(trend.Forecast))
	}
}

func TestAnalyzeTrend_IntervalsWidenWithDistance(t *testing.T) {
	engine := New(DefaultConfig())

	// Mild deterministic noise on an upward slope
	points := weeklySeries(t, 20, func(week int) float64 {
		noise := 0.8
		if week%2 == 0 {
			noise = -0.8
		}
		return 10.0 + 0.6*float64(week) + noise
	})

	trend, err := engine.AnalyzeTrend(points, 5)
	if err != nil {
		t.Fatalf("analyze trend: %v", err)
	}

	if trend.Direction != outcome.TrendIncreasing {
		t.Errorf("expected increasing direction, got %q", trend.Direction)
	}

	prev := trend.Forecast[0].PredictionInterval.Margin()
	for i := 1; i < len(trend.Forecast); i++ {
		next := trend.Forecast[i].PredictionInterval.Margin()
		if next <= prev {
			t.Errorf("interval %d (%f) should be wider than %d (%f)", i, next, i-1, prev)
		}
		prev = next
	}
}

func TestAnalyzeTrend_InputValidation(t *testing.T) {
	engine := New(DefaultConfig())

	few := weeklySeries(t, 5, func(week int) float64 { return float64(week) })
	if _, err := engine.AnalyzeTrend(few, 3); !core.IsInsufficientSampleError(err) {
		t.Errorf("expected insufficient sample error for 5 points, got %v", err)
	}

	same := make([]outcome.ScorePoint, 10)
	ts := core.NewTimestamp(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	for i := range same {
		same[i] = outcome.ScorePoint{ObservedAt: ts, Score: float64(10 + i)}
	}
	if _, err := engine.AnalyzeTrend(same, 3); err == nil {
		t.Error("expected an error when every observation shares one timestamp")
	}
}
