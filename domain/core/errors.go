package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound       = errors.New("resource not found")
	ErrReportNotFound = fmt.Errorf("%w: report", ErrNotFound)

	// Reports are immutable once stored
	ErrReportExists = errors.New("report already exists")

	// Statistical analysis errors
	ErrInsufficientSampleSize = errors.New("insufficient sample size for analysis")
	ErrMismatchedPairs        = errors.New("baseline and follow-up sequences differ in length")
	ErrUnsupportedInstrument  = errors.New("unsupported assessment instrument")

	// Privacy errors
	ErrSampleBelowThreshold      = errors.New("sample below anonymity threshold")
	ErrInsufficientPrivacyBudget = errors.New("insufficient privacy budget")
	ErrZeroDenominator           = errors.New("zero denominator in proportion")

	// Input errors
	ErrInvalidScore  = errors.New("score outside instrument range")
	ErrEmptyInput    = errors.New("empty input sequence")
	ErrInvalidWindow = errors.New("invalid reporting window")
)

// Error constructors with context
func NewInsufficientSampleError(required, actual int) error {
	return fmt.Errorf("%w: need at least %d values, got %d", ErrInsufficientSampleSize, required, actual)
}

func NewMismatchedPairsError(baselineN, followupN int) error {
	return fmt.Errorf("%w: %d baseline vs %d follow-up", ErrMismatchedPairs, baselineN, followupN)
}

func NewUnsupportedInstrumentError(instrument string) error {
	return fmt.Errorf("%w: %q", ErrUnsupportedInstrument, instrument)
}

func NewSampleBelowThresholdError(effective, threshold int) error {
	return fmt.Errorf("%w: effective sample %d < k=%d", ErrSampleBelowThreshold, effective, threshold)
}

func NewBudgetExceededError(requested, remaining float64) error {
	return fmt.Errorf("%w: requested epsilon %.4f exceeds remaining %.4f", ErrInsufficientPrivacyBudget, requested, remaining)
}

func NewReportNotFoundError(id string) error {
	return fmt.Errorf("%w with id %s", ErrReportNotFound, id)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsInsufficientSampleError(err error) bool {
	return errors.Is(err, ErrInsufficientSampleSize)
}

func IsUnsupportedInstrumentError(err error) bool {
	return errors.Is(err, ErrUnsupportedInstrument)
}

func IsBudgetError(err error) bool {
	return errors.Is(err, ErrInsufficientPrivacyBudget)
}

// IsAnalysisError reports whether the error means a group cannot be analyzed
// (as opposed to an infrastructure failure).
func IsAnalysisError(err error) bool {
	return errors.Is(err, ErrInsufficientSampleSize) ||
		errors.Is(err, ErrMismatchedPairs) ||
		errors.Is(err, ErrUnsupportedInstrument) ||
		errors.Is(err, ErrInvalidScore)
}

// IsPrivacyError reports whether the error came from the privacy layer's
// guardrails rather than from bad input.
func IsPrivacyError(err error) bool {
	return errors.Is(err, ErrSampleBelowThreshold) ||
		errors.Is(err, ErrInsufficientPrivacyBudget) ||
		errors.Is(err, ErrZeroDenominator)
}
