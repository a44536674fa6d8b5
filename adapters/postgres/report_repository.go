package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"clinsight/domain/core"
	"clinsight/domain/privacy"
	"clinsight/domain/report"
	"clinsight/ports"
)

// ReportRepositoryImpl implements ReportRepository for PostgreSQL. The full
// report is stored as JSONB alongside the listing projection columns.
type ReportRepositoryImpl struct {
	db *sqlx.DB
}

// NewReportRepository creates a new PostgreSQL report repository
func NewReportRepository(db *sqlx.DB) ports.ReportRepository {
	return &ReportRepositoryImpl{db: db}
}

// Save inserts a composed report. Reports are immutable, so a duplicate ID
// is an error rather than an upsert.
func (r *ReportRepositoryImpl) Save(ctx context.Context, rep *report.ClinicalIntelligenceReport) error {
	payload, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("failed to serialize report %s: %w", rep.ID, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO reports (id, generated_at, window_start, window_end,
		                     groups_analyzed, groups_skipped, data_quality, budget_health, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, rep.ID.String(), rep.GeneratedAt.Time(), rep.Window.Start.Time(), rep.Window.End.Time(),
		rep.GroupsAnalyzed(), rep.GroupsSkipped(), rep.DataQualityScore, string(rep.BudgetSnapshot.Health), payload)
	if err != nil {
		return fmt.Errorf("failed to save report %s: %w", rep.ID, err)
	}
	return nil
}

// GetByID loads a full report from its stored payload
func (r *ReportRepositoryImpl) GetByID(ctx context.Context, id core.ReportID) (*report.ClinicalIntelligenceReport, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx, `SELECT payload FROM reports WHERE id = $1`, id.String()).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.NewReportNotFoundError(id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load report %s: %w", id, err)
	}

	var rep report.ClinicalIntelligenceReport
	if err := json.Unmarshal(payload, &rep); err != nil {
		return nil, fmt.Errorf("failed to decode report %s: %w", id, err)
	}
	return &rep, nil
}

// List returns report summaries, newest first
func (r *ReportRepositoryImpl) List(ctx context.Context, limit, offset int) ([]report.Summary, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, generated_at, window_start, window_end,
		       groups_analyzed, groups_skipped, data_quality, budget_health
		FROM reports
		ORDER BY generated_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var summaries []report.Summary
	for rows.Next() {
		var summary report.Summary
		var id, health string
		var generatedAt, windowStart, windowEnd sql.NullTime
		if err := rows.Scan(&id, &generatedAt, &windowStart, &windowEnd,
			&summary.GroupsAnalyzed, &summary.GroupsSkipped, &summary.DataQualityScore, &health); err != nil {
			return nil, fmt.Errorf("failed to scan report summary: %w", err)
		}
		summary.ID = core.ReportID(id)
		summary.GeneratedAt = core.NewTimestamp(generatedAt.Time)
		summary.Window = core.NewWindow(windowStart.Time, windowEnd.Time)
		summary.BudgetHealth = privacy.BudgetHealth(health)
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("report summary iteration failed: %w", err)
	}
	return summaries, nil
}
