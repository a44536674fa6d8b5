package privacy

import (
	"fmt"

	"clinsight/domain/core"
	"clinsight/domain/outcome"
)

// ============================================================================
// MECHANISMS AND TIERS
// ============================================================================

// Mechanism names a differential-privacy noise mechanism
type Mechanism string

const (
	MechanismLaplace  Mechanism = "laplace"
	MechanismGaussian Mechanism = "gaussian"
)

// Tier bundles the epsilon/delta/mechanism choice for one protection level.
// Higher protection means smaller epsilon.
type Tier struct {
	Name      string    `json:"name"`
	Epsilon   float64   `json:"epsilon"`
	Delta     float64   `json:"delta"`
	Mechanism Mechanism `json:"mechanism"`
}

// Predefined protection tiers
var (
	TierLow    = Tier{Name: "low", Epsilon: 1.0, Delta: 1e-5, Mechanism: MechanismLaplace}
	TierMedium = Tier{Name: "medium", Epsilon: 0.5, Delta: 1e-6, Mechanism: MechanismLaplace}
	TierHigh   = Tier{Name: "high", Epsilon: 0.1, Delta: 1e-7, Mechanism: MechanismGaussian}
)

// TierByName resolves a configured tier name
func TierByName(name string) (Tier, error) {
	switch name {
	case TierLow.Name:
		return TierLow, nil
	case TierMedium.Name:
		return TierMedium, nil
	case TierHigh.Name:
		return TierHigh, nil
	default:
		return Tier{}, fmt.Errorf("unknown privacy tier %q", name)
	}
}

// ============================================================================
// BUDGET ACCOUNTING
// ============================================================================

// AuditEntry is one privacy-affecting operation in the append-only audit log
type AuditEntry struct {
	ID        core.AuditEntryID `json:"id"`
	Timestamp core.Timestamp    `json:"timestamp"`
	Operation string            `json:"operation"`
	Epsilon   float64           `json:"epsilon"`
	Detail    string            `json:"detail"`
}

// BudgetHealth is the coarse state of the epsilon budget
type BudgetHealth string

const (
	BudgetHealthy  BudgetHealth = "healthy"
	BudgetWarning  BudgetHealth = "warning"
	BudgetCritical BudgetHealth = "critical"
)

// Budget health thresholds, percent of total consumed
const (
	budgetWarningPct  = 70.0
	budgetCriticalPct = 90.0
)

// ClassifyBudgetHealth bands the consumed percentage
func ClassifyBudgetHealth(percentUsed float64) BudgetHealth {
	switch {
	case percentUsed >= budgetCriticalPct:
		return BudgetCritical
	case percentUsed >= budgetWarningPct:
		return BudgetWarning
	default:
		return BudgetHealthy
	}
}

// BudgetStatus is a read-only snapshot of the ledger
type BudgetStatus struct {
	Total         float64      `json:"total"`
	Used          float64      `json:"used"`
	Remaining     float64      `json:"remaining"`
	PercentUsed   float64      `json:"percent_used"`
	Health        BudgetHealth `json:"health"`
	RecentEntries []AuditEntry `json:"recent_entries,omitempty"`
}

// ============================================================================
// PRIVATE QUERY RESULTS
// ============================================================================

// PrivateResult is one privatized scalar with its privacy accounting and
// quality scores. Immutable; one per privacy query.
type PrivateResult struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`

	// Approximate interval derived from the injected noise; nil when an
	// interval is not meaningful for the query
	ConfidenceInterval *outcome.ConfidenceInterval `json:"confidence_interval,omitempty"`

	EpsilonSpent   float64   `json:"epsilon_spent"`
	DeltaSpent     float64   `json:"delta_spent"`
	NoiseMagnitude float64   `json:"noise_magnitude"`
	Mechanism      Mechanism `json:"mechanism"`

	OriginalSampleSize  int `json:"original_sample_size"`
	EffectiveSampleSize int `json:"effective_sample_size"`
	SuppressedGroups    int `json:"suppressed_groups"`

	// Quality scores, all in [0,1]
	AccuracyEstimate float64 `json:"accuracy_estimate"`
	UtilityScore     float64 `json:"utility_score"`
	PrivacyRiskScore float64 `json:"privacy_risk_score"`
}
