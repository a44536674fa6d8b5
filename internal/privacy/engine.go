// Package privacy implements the differential-privacy engine: calibrated
// noise mechanisms, a consumable epsilon budget with an append-only audit
// log, k-anonymity suppression, and quality/risk scoring for every
// privatized result.
//
// One engine serves one reporting epoch. The caller constructs it, threads
// it through report composition, and resets it to open the next epoch.
package privacy

import (
	"math/rand/v2"
	"sync"
	"time"

	"clinsight/domain/privacy"
)

// Defaults applied by NewEngine when the config leaves fields zero
const (
	DefaultTotalBudget = 10.0
	DefaultKThreshold  = 5
)

// Config parameterizes one privacy epoch
type Config struct {
	TotalBudget float64      // total epsilon for the epoch
	KThreshold  int          // minimum group size before suppression
	DefaultTier privacy.Tier // tier used when a caller does not pick one
	Seed        uint64       // nonzero pins the noise source, for tests
}

// DefaultConfig returns the standard epoch parameters
func DefaultConfig() Config {
	return Config{
		TotalBudget: DefaultTotalBudget,
		KThreshold:  DefaultKThreshold,
		DefaultTier: privacy.TierMedium,
	}
}

// Engine owns the ledger and the noise source for one epoch.
// Safe for concurrent use.
type Engine struct {
	ledger *Ledger
	k      int
	tier   privacy.Tier

	noiseMu  sync.Mutex
	noiseSrc rand.Source
}

// NewEngine creates an epoch engine from config, normalizing out-of-range
// values to defaults.
func NewEngine(cfg Config) *Engine {
	if cfg.TotalBudget <= 0 {
		cfg.TotalBudget = DefaultTotalBudget
	}
	if cfg.KThreshold < 2 {
		cfg.KThreshold = DefaultKThreshold
	}
	if cfg.DefaultTier.Name == "" {
		cfg.DefaultTier = privacy.TierMedium
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	ledger, _ := NewLedger(cfg.TotalBudget)
	return &Engine{
		ledger:   ledger,
		k:        cfg.KThreshold,
		tier:     cfg.DefaultTier,
		noiseSrc: rand.NewPCG(seed, seed),
	}
}

// KThreshold returns the configured minimum group size
func (e *Engine) KThreshold() int {
	return e.k
}

// DefaultTier returns the tier used when callers do not choose one
func (e *Engine) DefaultTier() privacy.Tier {
	return e.tier
}

// Spend consumes epsilon directly. Private queries spend on their own;
// this exists for callers composing custom mechanisms.
func (e *Engine) Spend(operation string, epsilon float64, detail string) error {
	return e.ledger.Spend(operation, epsilon, detail)
}

// CanSpend reports whether the epoch budget could still fund epsilon
func (e *Engine) CanSpend(epsilon float64) bool {
	return e.ledger.CanSpend(epsilon)
}

// BudgetStatus snapshots the ledger
func (e *Engine) BudgetStatus() privacy.BudgetStatus {
	return e.ledger.Status()
}

// AuditLog returns the active epoch's full audit trail
func (e *Engine) AuditLog() []privacy.AuditEntry {
	return e.ledger.Entries()
}

// Reset opens a new epoch, archiving the audit log. A non-positive newTotal
// keeps the current budget size.
func (e *Engine) Reset(newTotal float64) {
	e.ledger.Reset(newTotal)
}
