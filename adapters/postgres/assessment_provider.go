package postgres

import (
	"context"
	"fmt"
	"math"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"clinsight/domain/assessment"
	"clinsight/domain/core"
	"clinsight/ports"
)

// AssessmentProviderImpl implements AssessmentDataProvider for PostgreSQL
type AssessmentProviderImpl struct {
	db *sqlx.DB
}

// NewAssessmentProvider creates a new PostgreSQL assessment provider
func NewAssessmentProvider(db *sqlx.DB) ports.AssessmentDataProvider {
	return &AssessmentProviderImpl{db: db}
}

// FetchAssessmentPairs joins baseline and follow-up rows per subject, group,
// and instrument. Only pairs whose follow-up lands inside the window count;
// rows failing instrument-range validation are dropped.
func (p *AssessmentProviderImpl) FetchAssessmentPairs(ctx context.Context, window core.Window, interventions []string, instruments []assessment.InstrumentKind) ([]assessment.Pair, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}

	query := `
		SELECT b.subject_id, b.intervention, b.instrument, b.score AS baseline, f.score AS followup,
		       EXTRACT(EPOCH FROM (f.observed_at - b.observed_at)) / 86400.0 AS elapsed_days
		FROM assessments b
		JOIN assessments f
		  ON f.subject_id = b.subject_id
		 AND f.intervention = b.intervention
		 AND f.instrument = b.instrument
		WHERE b.phase = 'baseline'
		  AND f.phase = 'followup'
		  AND f.observed_at > b.observed_at
		  AND f.observed_at >= $1
		  AND f.observed_at < $2
	`

	args := []interface{}{window.Start.Time(), window.End.Time()}
	if len(interventions) > 0 {
		args = append(args, pq.Array(interventions))
		query += fmt.Sprintf(" AND b.intervention = ANY($%d)", len(args))
	}
	if len(instruments) > 0 {
		names := make([]string, len(instruments))
		for i, kind := range instruments {
			names[i] = string(kind)
		}
		args = append(args, pq.Array(names))
		query += fmt.Sprintf(" AND b.instrument = ANY($%d)", len(args))
	}
	query += " ORDER BY b.intervention, b.instrument, b.subject_id"

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch assessment pairs: %w", err)
	}
	defer rows.Close()

	var pairs []assessment.Pair
	for rows.Next() {
		var subjectID, intervention, instrumentName string
		var baseline, followup, elapsedDays float64
		if err := rows.Scan(&subjectID, &intervention, &instrumentName, &baseline, &followup, &elapsedDays); err != nil {
			return nil, fmt.Errorf("failed to scan assessment pair: %w", err)
		}

		kind, err := assessment.ParseInstrument(instrumentName)
		if err != nil {
			continue
		}
		pair, err := assessment.NewPair(core.SubjectID(subjectID), intervention, kind, baseline, followup, int(math.Round(elapsedDays)))
		if err != nil {
			continue
		}
		pairs = append(pairs, pair)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("assessment pair iteration failed: %w", err)
	}

	return pairs, nil
}

// FetchUtilizationRecords returns per-subject service enrollments whose
// enrollment date falls inside the window.
func (p *AssessmentProviderImpl) FetchUtilizationRecords(ctx context.Context, window core.Window) ([]ports.UtilizationRecord, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT subject_id, service_type, sessions, duration_minutes, completed
		FROM service_enrollments
		WHERE enrolled_at >= $1 AND enrolled_at < $2
		ORDER BY subject_id, service_type
	`, window.Start.Time(), window.End.Time())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch utilization records: %w", err)
	}
	defer rows.Close()

	var records []ports.UtilizationRecord
	for rows.Next() {
		var record ports.UtilizationRecord
		var subjectID string
		if err := rows.Scan(&subjectID, &record.ServiceType, &record.Sessions, &record.DurationMinutes, &record.Completed); err != nil {
			return nil, fmt.Errorf("failed to scan utilization record: %w", err)
		}
		record.SubjectID = core.SubjectID(subjectID)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("utilization iteration failed: %w", err)
	}

	return records, nil
}
