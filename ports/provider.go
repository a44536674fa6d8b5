package ports

import (
	"context"

	"clinsight/domain/assessment"
	"clinsight/domain/core"
)

// AssessmentDataProvider defines the interface for fetching clinical data
// from a backing source (postgres, excel export, upstream API, or the
// synthetic generator).
type AssessmentDataProvider interface {
	// FetchAssessmentPairs returns completed baseline/follow-up pairs inside
	// the window. Empty filter slices mean no filtering on that dimension.
	FetchAssessmentPairs(ctx context.Context, window core.Window, interventions []string, instruments []assessment.InstrumentKind) ([]assessment.Pair, error)

	// FetchUtilizationRecords returns per-subject service usage inside the
	// window, one record per subject and service type.
	FetchUtilizationRecords(ctx context.Context, window core.Window) ([]UtilizationRecord, error)
}

// UtilizationRecord is one subject's usage of one service type
type UtilizationRecord struct {
	SubjectID       core.SubjectID `json:"subject_id"`
	ServiceType     string         `json:"service_type"`
	Sessions        int            `json:"sessions"`
	DurationMinutes float64        `json:"duration_minutes"`
	Completed       bool           `json:"completed"`
}
