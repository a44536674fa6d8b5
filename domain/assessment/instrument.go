package assessment

import (
	"sort"
	"strings"

	"clinsight/domain/core"
)

// InstrumentKind identifies a supported assessment instrument.
// The set is closed: every kind is declared here and profiled below,
// so an unknown instrument is detectable at the boundary.
type InstrumentKind string

const (
	InstrumentPHQ9             InstrumentKind = "phq9"
	InstrumentGAD7             InstrumentKind = "gad7"
	InstrumentPSS10            InstrumentKind = "pss10"
	InstrumentDASS21Depression InstrumentKind = "dass21_depression"
	InstrumentDASS21Anxiety    InstrumentKind = "dass21_anxiety"
	InstrumentDASS21Stress     InstrumentKind = "dass21_stress"
	InstrumentK10              InstrumentKind = "k10"
	InstrumentSWLS             InstrumentKind = "swls"
	InstrumentWEMWBS           InstrumentKind = "wemwbs"
)

// InstrumentProfile holds the fixed clinical calibration for one instrument:
// score range, minimal clinically important difference, test-retest
// reliability, and (where established) the clinical cutoff score.
type InstrumentProfile struct {
	Kind          InstrumentKind `json:"kind"`
	DisplayName   string         `json:"display_name"`
	MinScore      float64        `json:"min_score"`
	MaxScore      float64        `json:"max_score"`
	MCID          float64        `json:"mcid"`
	Reliability   float64        `json:"reliability"`
	Cutoff        float64        `json:"cutoff,omitempty"`
	HasCutoff     bool           `json:"has_cutoff"`
	LowerIsBetter bool           `json:"lower_is_better"`
}

// profiles is the closed instrument table. Values are published estimates for
// each scale; DASS-21 subscales use the doubled 0-42 scoring convention.
var profiles = map[InstrumentKind]InstrumentProfile{
	InstrumentPHQ9: {
		Kind: InstrumentPHQ9, DisplayName: "PHQ-9 (Depression)",
		MinScore: 0, MaxScore: 27, MCID: 5, Reliability: 0.84,
		Cutoff: 10, HasCutoff: true, LowerIsBetter: true,
	},
	InstrumentGAD7: {
		Kind: InstrumentGAD7, DisplayName: "GAD-7 (Anxiety)",
		MinScore: 0, MaxScore: 21, MCID: 4, Reliability: 0.83,
		Cutoff: 10, HasCutoff: true, LowerIsBetter: true,
	},
	InstrumentPSS10: {
		Kind: InstrumentPSS10, DisplayName: "PSS-10 (Perceived Stress)",
		MinScore: 0, MaxScore: 40, MCID: 5, Reliability: 0.85,
		HasCutoff: false, LowerIsBetter: true,
	},
	InstrumentDASS21Depression: {
		Kind: InstrumentDASS21Depression, DisplayName: "DASS-21 Depression",
		MinScore: 0, MaxScore: 42, MCID: 5, Reliability: 0.71,
		Cutoff: 10, HasCutoff: true, LowerIsBetter: true,
	},
	InstrumentDASS21Anxiety: {
		Kind: InstrumentDASS21Anxiety, DisplayName: "DASS-21 Anxiety",
		MinScore: 0, MaxScore: 42, MCID: 4, Reliability: 0.79,
		Cutoff: 8, HasCutoff: true, LowerIsBetter: true,
	},
	InstrumentDASS21Stress: {
		Kind: InstrumentDASS21Stress, DisplayName: "DASS-21 Stress",
		MinScore: 0, MaxScore: 42, MCID: 6, Reliability: 0.81,
		Cutoff: 15, HasCutoff: true, LowerIsBetter: true,
	},
	InstrumentK10: {
		Kind: InstrumentK10, DisplayName: "K10 (Psychological Distress)",
		MinScore: 10, MaxScore: 50, MCID: 5, Reliability: 0.80,
		Cutoff: 20, HasCutoff: true, LowerIsBetter: true,
	},
	InstrumentSWLS: {
		Kind: InstrumentSWLS, DisplayName: "SWLS (Life Satisfaction)",
		MinScore: 5, MaxScore: 35, MCID: 3, Reliability: 0.82,
		Cutoff: 20, HasCutoff: true, LowerIsBetter: false,
	},
	InstrumentWEMWBS: {
		Kind: InstrumentWEMWBS, DisplayName: "WEMWBS (Mental Wellbeing)",
		MinScore: 14, MaxScore: 70, MCID: 3, Reliability: 0.83,
		HasCutoff: false, LowerIsBetter: false,
	},
}

// aliases maps common external spellings to canonical kinds so provider
// adapters can accept real-world identifiers.
var aliases = map[string]InstrumentKind{
	"phq-9":             InstrumentPHQ9,
	"gad-7":             InstrumentGAD7,
	"pss":               InstrumentPSS10,
	"pss-10":            InstrumentPSS10,
	"dass-21-d":         InstrumentDASS21Depression,
	"dass-21-a":         InstrumentDASS21Anxiety,
	"dass-21-s":         InstrumentDASS21Stress,
	"dass21-depression": InstrumentDASS21Depression,
	"dass21-anxiety":    InstrumentDASS21Anxiety,
	"dass21-stress":     InstrumentDASS21Stress,
	"k-10":              InstrumentK10,
}

// ProfileFor returns the calibration profile for a kind.
// Unknown kinds fail; there is no default-reliability fallback.
func ProfileFor(kind InstrumentKind) (InstrumentProfile, error) {
	p, ok := profiles[kind]
	if !ok {
		return InstrumentProfile{}, core.NewUnsupportedInstrumentError(string(kind))
	}
	return p, nil
}

// ParseInstrument normalizes an external identifier into an InstrumentKind
func ParseInstrument(s string) (InstrumentKind, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.ReplaceAll(normalized, " ", "_")

	if _, ok := profiles[InstrumentKind(normalized)]; ok {
		return InstrumentKind(normalized), nil
	}
	if kind, ok := aliases[normalized]; ok {
		return kind, nil
	}
	return "", core.NewUnsupportedInstrumentError(s)
}

// AllProfiles returns every supported profile in stable kind order
func AllProfiles() []InstrumentProfile {
	out := make([]InstrumentProfile, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

// ValidateScore checks a raw score against the instrument range
func (p InstrumentProfile) ValidateScore(score float64) error {
	if score < p.MinScore || score > p.MaxScore {
		return core.ErrInvalidScore
	}
	return nil
}

// FavorableChange returns the score movement in the instrument's favorable
// direction: positive means the subject improved.
func (p InstrumentProfile) FavorableChange(baseline, followup float64) float64 {
	if p.LowerIsBetter {
		return baseline - followup
	}
	return followup - baseline
}

// InClinicalRange reports whether a score sits on the clinical side of the
// cutoff. Always false when the instrument defines no cutoff.
func (p InstrumentProfile) InClinicalRange(score float64) bool {
	if !p.HasCutoff {
		return false
	}
	if p.LowerIsBetter {
		return score >= p.Cutoff
	}
	return score < p.Cutoff
}

// Recovered reports a transition from the clinical range at baseline to the
// non-clinical range at follow-up.
func (p InstrumentProfile) Recovered(baseline, followup float64) bool {
	return p.InClinicalRange(baseline) && !p.InClinicalRange(followup)
}

// Deteriorated reports the inverse transition.
func (p InstrumentProfile) Deteriorated(baseline, followup float64) bool {
	return !p.InClinicalRange(baseline) && p.InClinicalRange(followup)
}
