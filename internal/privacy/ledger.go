package privacy

import (
	"fmt"
	"sync"

	"clinsight/domain/core"
	"clinsight/domain/privacy"
)

// Status snapshots include at most this many trailing audit entries
const recentEntryLimit = 10

// Ledger is the consumable epsilon budget for one reporting epoch. Consumed
// never exceeds total; every successful spend appends one audit entry.
// Safe for concurrent use.
type Ledger struct {
	mu       sync.Mutex
	total    float64
	consumed float64
	entries  []privacy.AuditEntry
	archived []privacy.AuditEntry
}

// NewLedger creates a ledger holding the given total epsilon budget
func NewLedger(totalBudget float64) (*Ledger, error) {
	if totalBudget <= 0 {
		return nil, fmt.Errorf("total privacy budget must be positive, got %f", totalBudget)
	}
	return &Ledger{total: totalBudget}, nil
}

// Spend atomically checks and consumes epsilon from the budget. On failure
// the consumed amount is left untouched.
func (l *Ledger) Spend(operation string, epsilon float64, detail string) error {
	if epsilon <= 0 {
		return fmt.Errorf("epsilon must be positive, got %f", epsilon)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.consumed+epsilon > l.total {
		return core.NewBudgetExceededError(epsilon, l.total-l.consumed)
	}

	l.consumed += epsilon
	l.entries = append(l.entries, privacy.AuditEntry{
		ID:        core.NewAuditEntryID(),
		Timestamp: core.Now(),
		Operation: operation,
		Epsilon:   epsilon,
		Detail:    detail,
	})
	return nil
}

// CanSpend reports whether the budget could fund an epsilon spend right now.
// Advisory only; Spend remains the single authority.
func (l *Ledger) CanSpend(epsilon float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return epsilon > 0 && l.consumed+epsilon <= l.total
}

// Consumed returns the epsilon spent so far in this epoch
func (l *Ledger) Consumed() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.consumed
}

// Remaining returns the epsilon still available
func (l *Ledger) Remaining() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total - l.consumed
}

// Total returns the epoch's full budget
func (l *Ledger) Total() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

// Status returns a read-only snapshot with the most recent audit entries
func (l *Ledger) Status() privacy.BudgetStatus {
	l.mu.Lock()
	defer l.mu.Unlock()

	percentUsed := 0.0
	if l.total > 0 {
		percentUsed = l.consumed / l.total * 100.0
	}

	start := len(l.entries) - recentEntryLimit
	if start < 0 {
		start = 0
	}
	recent := make([]privacy.AuditEntry, len(l.entries)-start)
	copy(recent, l.entries[start:])

	return privacy.BudgetStatus{
		Total:         l.total,
		Used:          l.consumed,
		Remaining:     l.total - l.consumed,
		PercentUsed:   percentUsed,
		Health:        privacy.ClassifyBudgetHealth(percentUsed),
		RecentEntries: recent,
	}
}

// Entries returns a copy of the active epoch's full audit log, oldest first
func (l *Ledger) Entries() []privacy.AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]privacy.AuditEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// ArchivedEntries returns a copy of entries from all closed epochs
func (l *Ledger) ArchivedEntries() []privacy.AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]privacy.AuditEntry, len(l.archived))
	copy(out, l.archived)
	return out
}

// Reset closes the current epoch: the active audit log moves to the archive,
// consumed returns to zero, and a positive newTotal replaces the budget
// (non-positive keeps the current total).
func (l *Ledger) Reset(newTotal float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.archived = append(l.archived, l.entries...)
	l.entries = nil
	l.consumed = 0
	if newTotal > 0 {
		l.total = newTotal
	}
}
