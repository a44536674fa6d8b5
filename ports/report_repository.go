package ports

import (
	"context"

	"clinsight/domain/core"
	"clinsight/domain/report"
)

// ReportRepository defines the interface for report persistence
type ReportRepository interface {
	Save(ctx context.Context, rep *report.ClinicalIntelligenceReport) error
	GetByID(ctx context.Context, id core.ReportID) (*report.ClinicalIntelligenceReport, error)
	List(ctx context.Context, limit, offset int) ([]report.Summary, error)
}
