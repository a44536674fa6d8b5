package privacy

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"clinsight/domain/privacy"
)

// AddNoise injects calibrated zero-centered noise into a true value and
// returns the noisy value and the absolute noise magnitude. It does not
// touch the budget; spending belongs to the private query layer.
//
// Laplace scale is sensitivity/epsilon. Gaussian sigma follows the standard
// analytic calibration sensitivity * sqrt(2 ln(1.25/delta)) / epsilon.
func (e *Engine) AddNoise(value float64, mechanism privacy.Mechanism, epsilon, delta, sensitivity float64) (float64, float64, error) {
	if epsilon <= 0 {
		return 0, 0, fmt.Errorf("epsilon must be positive, got %f", epsilon)
	}
	if sensitivity <= 0 {
		return 0, 0, fmt.Errorf("sensitivity must be positive, got %f", sensitivity)
	}

	var noise float64
	switch mechanism {
	case privacy.MechanismLaplace:
		noise = e.sampleLaplace(sensitivity / epsilon)
	case privacy.MechanismGaussian:
		if delta <= 0 || delta >= 1 {
			return 0, 0, fmt.Errorf("gaussian mechanism requires delta in (0,1), got %g", delta)
		}
		noise = e.sampleGaussian(gaussianSigma(sensitivity, epsilon, delta))
	default:
		return 0, 0, fmt.Errorf("unknown noise mechanism %q", mechanism)
	}

	return value + noise, math.Abs(noise), nil
}

// gaussianSigma computes the analytic Gaussian mechanism's standard deviation
func gaussianSigma(sensitivity, epsilon, delta float64) float64 {
	return sensitivity * math.Sqrt(2.0*math.Log(1.25/delta)) / epsilon
}

// expectedNoiseMagnitude is the mechanism's a-priori E[|noise|], used for
// accuracy estimation before looking at the realized draw.
func expectedNoiseMagnitude(mechanism privacy.Mechanism, epsilon, delta, sensitivity float64) float64 {
	switch mechanism {
	case privacy.MechanismGaussian:
		// E|N(0, sigma)| = sigma * sqrt(2/pi)
		return gaussianSigma(sensitivity, epsilon, delta) * math.Sqrt(2.0/math.Pi)
	default:
		// E|Laplace(0, b)| = b
		return sensitivity / epsilon
	}
}

// The sampling source is shared; distuv distributions are cheap value types
// but the underlying rand.Source is not safe for concurrent draws.

func (e *Engine) sampleLaplace(scale float64) float64 {
	e.noiseMu.Lock()
	defer e.noiseMu.Unlock()
	return distuv.Laplace{Mu: 0, Scale: scale, Src: e.noiseSrc}.Rand()
}

func (e *Engine) sampleGaussian(sigma float64) float64 {
	e.noiseMu.Lock()
	defer e.noiseMu.Unlock()
	return distuv.Normal{Mu: 0, Sigma: sigma, Src: e.noiseSrc}.Rand()
}
