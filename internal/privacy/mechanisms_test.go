package privacy

import (
	"math"
	"testing"

	"clinsight/domain/privacy"
)

func seededEngine(seed uint64) *Engine {
	return NewEngine(Config{
		TotalBudget: 1000.0,
		KThreshold:  5,
		DefaultTier: privacy.TierMedium,
		Seed:        seed,
	})
}

func meanAbsNoise(t *testing.T, e *Engine, mechanism privacy.Mechanism, epsilon, delta float64, trials int) float64 {
	t.Helper()
	total := 0.0
	for i := 0; i < trials; i++ {
		_, magnitude, err := e.AddNoise(50.0, mechanism, epsilon, delta, 1.0)
		if err != nil {
			t.Fatalf("AddNoise(%s, eps=%v) failed: %v", mechanism, epsilon, err)
		}
		total += magnitude
	}
	return total / float64(trials)
}

func TestAddNoise_SmallerEpsilonMeansMoreNoise(t *testing.T) {
	e := seededEngine(42)
	const trials = 500

	strict := meanAbsNoise(t, e, privacy.MechanismLaplace, 0.1, 0, trials)
	loose := meanAbsNoise(t, e, privacy.MechanismLaplace, 5.0, 0, trials)

	if strict <= loose {
		t.Fatalf("mean |noise| at eps=0.1 (%v) should exceed eps=5.0 (%v)", strict, loose)
	}

	// E|Laplace(b)| = b, so the sample means should sit near 10 and 0.2
	if math.Abs(strict-10.0) > 2.0 {
		t.Errorf("mean |noise| at eps=0.1 = %v, want near 10.0", strict)
	}
	if math.Abs(loose-0.2) > 0.1 {
		t.Errorf("mean |noise| at eps=5.0 = %v, want near 0.2", loose)
	}
}

func TestAddNoise_GaussianTracksCalibratedSigma(t *testing.T) {
	e := seededEngine(7)
	const trials = 500

	epsilon, delta := 0.5, 1e-6
	sigma := gaussianSigma(1.0, epsilon, delta)
	wantMean := sigma * math.Sqrt(2.0/math.Pi)

	got := meanAbsNoise(t, e, privacy.MechanismGaussian, epsilon, delta, trials)
	if math.Abs(got-wantMean)/wantMean > 0.25 {
		t.Errorf("gaussian mean |noise| = %v, want within 25%% of %v", got, wantMean)
	}
}

func TestAddNoise_MagnitudeMatchesShift(t *testing.T) {
	e := seededEngine(3)

	noisy, magnitude, err := e.AddNoise(12.5, privacy.MechanismLaplace, 1.0, 0, 2.0)
	if err != nil {
		t.Fatalf("AddNoise failed: %v", err)
	}
	if math.Abs(math.Abs(noisy-12.5)-magnitude) > 1e-12 {
		t.Errorf("|noisy-value| = %v but reported magnitude = %v", math.Abs(noisy-12.5), magnitude)
	}
}

func TestAddNoise_SeededRunsReproduce(t *testing.T) {
	a := seededEngine(99)
	b := seededEngine(99)

	for i := 0; i < 20; i++ {
		va, ma, errA := a.AddNoise(10.0, privacy.MechanismLaplace, 0.5, 0, 1.0)
		vb, mb, errB := b.AddNoise(10.0, privacy.MechanismLaplace, 0.5, 0, 1.0)
		if errA != nil || errB != nil {
			t.Fatalf("AddNoise failed: %v / %v", errA, errB)
		}
		if va != vb || ma != mb {
			t.Fatalf("draw %d diverged between identically seeded engines: %v vs %v", i, va, vb)
		}
	}
}

func TestAddNoise_RejectsBadParameters(t *testing.T) {
	e := seededEngine(1)

	cases := []struct {
		name        string
		mechanism   privacy.Mechanism
		epsilon     float64
		delta       float64
		sensitivity float64
	}{
		{"zero epsilon", privacy.MechanismLaplace, 0, 0, 1.0},
		{"negative epsilon", privacy.MechanismLaplace, -0.5, 0, 1.0},
		{"zero sensitivity", privacy.MechanismLaplace, 1.0, 0, 0},
		{"negative sensitivity", privacy.MechanismLaplace, 1.0, 0, -1.0},
		{"gaussian zero delta", privacy.MechanismGaussian, 1.0, 0, 1.0},
		{"gaussian delta one", privacy.MechanismGaussian, 1.0, 1.0, 1.0},
		{"unknown mechanism", privacy.Mechanism("exponential"), 1.0, 0, 1.0},
	}

	for _, tc := range cases {
		if _, _, err := e.AddNoise(5.0, tc.mechanism, tc.epsilon, tc.delta, tc.sensitivity); err == nil {
			t.Errorf("%s: expected error, got none", tc.name)
		}
	}
}
