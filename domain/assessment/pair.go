package assessment

import (
	"fmt"

	"clinsight/domain/core"
)

// Pair is one subject's paired before/after measurement on a single
// instrument. Immutable once constructed; produced by a data provider.
type Pair struct {
	SubjectID    core.SubjectID `json:"subject_id"`
	Intervention string         `json:"intervention"`
	Instrument   InstrumentKind `json:"instrument"`
	Baseline     float64        `json:"baseline"`
	Followup     float64        `json:"followup"`
	ElapsedDays  int            `json:"elapsed_days"`
}

// NewPair validates and constructs an assessment pair. Scores are checked
// against the instrument's range, so a pair that constructs is analyzable.
func NewPair(subjectID core.SubjectID, intervention string, instrument InstrumentKind, baseline, followup float64, elapsedDays int) (Pair, error) {
	if subjectID == "" {
		return Pair{}, fmt.Errorf("assessment pair requires a subject ID")
	}
	if intervention == "" {
		return Pair{}, fmt.Errorf("assessment pair requires an intervention label")
	}
	profile, err := ProfileFor(instrument)
	if err != nil {
		return Pair{}, err
	}
	if err := profile.ValidateScore(baseline); err != nil {
		return Pair{}, fmt.Errorf("baseline %.1f for %s: %w", baseline, instrument, err)
	}
	if err := profile.ValidateScore(followup); err != nil {
		return Pair{}, fmt.Errorf("follow-up %.1f for %s: %w", followup, instrument, err)
	}
	if elapsedDays < 0 {
		return Pair{}, fmt.Errorf("elapsed days must be non-negative, got %d", elapsedDays)
	}

	return Pair{
		SubjectID:    subjectID,
		Intervention: intervention,
		Instrument:   instrument,
		Baseline:     baseline,
		Followup:     followup,
		ElapsedDays:  elapsedDays,
	}, nil
}

// Difference returns follow-up minus baseline
func (p Pair) Difference() float64 {
	return p.Followup - p.Baseline
}

// GroupKey returns the (intervention, instrument) key this pair belongs to
func (p Pair) GroupKey() GroupKey {
	return GroupKey{Intervention: p.Intervention, Instrument: p.Instrument}
}

// GroupKey identifies one analysis group: all pairs sharing an intervention
// and an instrument.
type GroupKey struct {
	Intervention string         `json:"intervention"`
	Instrument   InstrumentKind `json:"instrument"`
}

// Label renders the key as "intervention/instrument" for maps and logs
func (k GroupKey) Label() string {
	return k.Intervention + "/" + string(k.Instrument)
}

// GroupPairs partitions pairs by (intervention, instrument), preserving the
// input order inside each group.
func GroupPairs(pairs []Pair) map[GroupKey][]Pair {
	groups := make(map[GroupKey][]Pair)
	for _, p := range pairs {
		key := p.GroupKey()
		groups[key] = append(groups[key], p)
	}
	return groups
}
