package testkit

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"clinsight/domain/assessment"
	"clinsight/domain/core"
	"clinsight/domain/outcome"
	"clinsight/ports"
)

// CohortGeneratorConfig configures the synthetic cohort generator
type CohortGeneratorConfig struct {
	SubjectCount    int                         `json:"subject_count"`
	Interventions   []string                    `json:"interventions"`
	Instruments     []assessment.InstrumentKind `json:"instruments"`
	ImprovementRate float64                     `json:"improvement_rate"`
	StartDate       time.Time                   `json:"start_date"`
	EndDate         time.Time                   `json:"end_date"`
	Seed            int64                       `json:"seed"`
}

// DefaultCohortConfig returns a cohort large enough to clear the default
// minimum group size on every intervention/instrument combination.
func DefaultCohortConfig() CohortGeneratorConfig {
	return CohortGeneratorConfig{
		SubjectCount:    60,
		Interventions:   []string{"cbt_program", "group_therapy"},
		Instruments:     []assessment.InstrumentKind{assessment.InstrumentPHQ9, assessment.InstrumentGAD7},
		ImprovementRate: 0.7,
		StartDate:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:         time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC),
		Seed:            42,
	}
}

// CohortGenerator produces deterministic synthetic clinical data
type CohortGenerator struct {
	config CohortGeneratorConfig
	rng    *rand.Rand
}

// NewCohortGenerator creates a generator; identical configs generate
// identical cohorts.
func NewCohortGenerator(config CohortGeneratorConfig) *CohortGenerator {
	return &CohortGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Window returns the reporting window the generated data falls into
func (g *CohortGenerator) Window() core.Window {
	return core.NewWindow(g.config.StartDate, g.config.EndDate)
}

// GeneratePairs generates one baseline/follow-up pair per subject per
// instrument. Subjects are assigned to interventions round-robin so every
// group clears the same share of the cohort.
func (g *CohortGenerator) GeneratePairs() []assessment.Pair {
	var pairs []assessment.Pair

	for i := 0; i < g.config.SubjectCount; i++ {
		subjectID := core.SubjectID(fmt.Sprintf("subject_%04d", i+1))
		intervention := g.config.Interventions[i%len(g.config.Interventions)]

		for _, instrument := range g.config.Instruments {
			pair, err := g.generatePair(subjectID, intervention, instrument)
			if err != nil {
				continue
			}
			pairs = append(pairs, pair)
		}
	}

	return pairs
}

// generatePair draws one subject's trajectory on one instrument
func (g *CohortGenerator) generatePair(subjectID core.SubjectID, intervention string, instrument assessment.InstrumentKind) (assessment.Pair, error) {
	profile, err := assessment.ProfileFor(instrument)
	if err != nil {
		return assessment.Pair{}, err
	}

	baseline := g.symptomaticBaseline(profile)

	var change float64
	if g.rng.Float64() < g.config.ImprovementRate {
		// Improvers move between 0.8x and 2x the MCID
		change = profile.MCID * (0.8 + g.rng.Float64()*1.2)
	} else {
		// Non-improvers drift around their baseline
		change = g.rng.NormFloat64() * profile.MCID * 0.4
	}

	followup := baseline - change
	if !profile.LowerIsBetter {
		followup = baseline + change
	}
	followup = clampScore(followup, profile)

	elapsedDays := 42 + g.rng.Intn(43)

	return assessment.NewPair(subjectID, intervention, instrument, baseline, followup, elapsedDays)
}

// symptomaticBaseline draws a baseline in the instrument's clinical region,
// so cohorts have room to recover.
func (g *CohortGenerator) symptomaticBaseline(profile assessment.InstrumentProfile) float64 {
	low, high := profile.MinScore, profile.MaxScore
	if profile.HasCutoff {
		if profile.LowerIsBetter {
			low = profile.Cutoff
		} else {
			high = profile.Cutoff
		}
	} else {
		// No cutoff: draw from the worse half of the range
		mid := (profile.MinScore + profile.MaxScore) / 2
		if profile.LowerIsBetter {
			low = mid
		} else {
			high = mid
		}
	}
	return clampScore(low+g.rng.Float64()*(high-low), profile)
}

func clampScore(score float64, profile assessment.InstrumentProfile) float64 {
	score = math.Round(score)
	if score < profile.MinScore {
		return profile.MinScore
	}
	if score > profile.MaxScore {
		return profile.MaxScore
	}
	return score
}

// Service types used by the synthetic utilization stream
var serviceTypes = []string{"individual_therapy", "group_session", "case_management", "crisis_support"}

// GenerateUtilization generates per-subject service usage. Crisis support is
// deliberately rare so k-anonymity suppression has something to suppress.
func (g *CohortGenerator) GenerateUtilization() []ports.UtilizationRecord {
	var records []ports.UtilizationRecord

	for i := 0; i < g.config.SubjectCount; i++ {
		subjectID := core.SubjectID(fmt.Sprintf("subject_%04d", i+1))

		for _, service := range serviceTypes {
			usageProbability := 0.6
			if service == "crisis_support" {
				usageProbability = 0.05
			}
			if g.rng.Float64() > usageProbability {
				continue
			}

			sessions := 4 + g.rng.Intn(17)
			perSession := 45.0 + g.rng.NormFloat64()*8.0
			if perSession < 15 {
				perSession = 15
			}

			records = append(records, ports.UtilizationRecord{
				SubjectID:       subjectID,
				ServiceType:     service,
				Sessions:        sessions,
				DurationMinutes: math.Round(float64(sessions) * perSession),
				Completed:       g.rng.Float64() < 0.75,
			})
		}
	}

	return records
}

// GenerateScoreSeries generates a weekly longitudinal series for trend
// analysis: score = start + weeklyChange*week + noise, clamped to the
// instrument's range.
func (g *CohortGenerator) GenerateScoreSeries(instrument assessment.InstrumentKind, weeks int, start, weeklyChange, noise float64) ([]outcome.ScorePoint, error) {
	profile, err := assessment.ProfileFor(instrument)
	if err != nil {
		return nil, err
	}

	points := make([]outcome.ScorePoint, 0, weeks)
	for week := 0; week < weeks; week++ {
		observedAt := g.config.StartDate.AddDate(0, 0, 7*week)
		score := start + weeklyChange*float64(week) + g.rng.NormFloat64()*noise
		points = append(points, outcome.ScorePoint{
			ObservedAt: core.NewTimestamp(observedAt),
			Score:      clampScore(score, profile),
		})
	}
	return points, nil
}
