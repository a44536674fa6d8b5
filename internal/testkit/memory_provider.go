package testkit

import (
	"context"

	"clinsight/domain/assessment"
	"clinsight/domain/core"
	"clinsight/ports"
)

// MemoryProvider serves a fixed in-memory corpus through the
// AssessmentDataProvider port. Used by tests and by SOURCE=synthetic.
type MemoryProvider struct {
	pairs       []assessment.Pair
	utilization []ports.UtilizationRecord

	// Injectable failures for exercising error paths
	PairsErr       error
	UtilizationErr error
}

// NewMemoryProvider wraps an explicit corpus
func NewMemoryProvider(pairs []assessment.Pair, utilization []ports.UtilizationRecord) *MemoryProvider {
	return &MemoryProvider{pairs: pairs, utilization: utilization}
}

// NewSyntheticProvider generates a cohort and serves it
func NewSyntheticProvider(config CohortGeneratorConfig) *MemoryProvider {
	generator := NewCohortGenerator(config)
	return NewMemoryProvider(generator.GeneratePairs(), generator.GenerateUtilization())
}

// FetchAssessmentPairs filters the corpus by intervention and instrument.
// The corpus is assumed to already fall inside any requested window.
func (p *MemoryProvider) FetchAssessmentPairs(ctx context.Context, window core.Window, interventions []string, instruments []assessment.InstrumentKind) ([]assessment.Pair, error) {
	if p.PairsErr != nil {
		return nil, p.PairsErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := window.Validate(); err != nil {
		return nil, err
	}

	interventionSet := toSet(interventions)
	instrumentSet := make(map[assessment.InstrumentKind]struct{}, len(instruments))
	for _, kind := range instruments {
		instrumentSet[kind] = struct{}{}
	}

	var out []assessment.Pair
	for _, pair := range p.pairs {
		if len(interventionSet) > 0 {
			if _, ok := interventionSet[pair.Intervention]; !ok {
				continue
			}
		}
		if len(instrumentSet) > 0 {
			if _, ok := instrumentSet[pair.Instrument]; !ok {
				continue
			}
		}
		out = append(out, pair)
	}
	return out, nil
}

// FetchUtilizationRecords returns the full utilization corpus
func (p *MemoryProvider) FetchUtilizationRecords(ctx context.Context, window core.Window) ([]ports.UtilizationRecord, error) {
	if p.UtilizationErr != nil {
		return nil, p.UtilizationErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := window.Validate(); err != nil {
		return nil, err
	}

	out := make([]ports.UtilizationRecord, len(p.utilization))
	copy(out, p.utilization)
	return out, nil
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
