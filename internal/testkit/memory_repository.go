package testkit

import (
	"context"
	"sync"

	"clinsight/domain/core"
	"clinsight/domain/report"
)

// MemoryReportRepository stores reports in process memory. It backs the
// synthetic demo mode and handler tests; nothing survives a restart.
type MemoryReportRepository struct {
	mu      sync.RWMutex
	reports map[core.ReportID]*report.ClinicalIntelligenceReport
	order   []core.ReportID // newest first
}

// NewMemoryReportRepository creates an empty in-memory repository
func NewMemoryReportRepository() *MemoryReportRepository {
	return &MemoryReportRepository{
		reports: make(map[core.ReportID]*report.ClinicalIntelligenceReport),
	}
}

// Save stores a report. Reports are immutable, so an existing ID is rejected.
func (m *MemoryReportRepository) Save(ctx context.Context, rep *report.ClinicalIntelligenceReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.reports[rep.ID]; exists {
		return core.ErrReportExists
	}
	m.reports[rep.ID] = rep
	m.order = append([]core.ReportID{rep.ID}, m.order...)
	return nil
}

// GetByID retrieves a stored report
func (m *MemoryReportRepository) GetByID(ctx context.Context, id core.ReportID) (*report.ClinicalIntelligenceReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	rep, ok := m.reports[id]
	if !ok {
		return nil, core.NewReportNotFoundError(string(id))
	}
	return rep, nil
}

// List returns report summaries newest first
func (m *MemoryReportRepository) List(ctx context.Context, limit, offset int) ([]report.Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if offset >= len(m.order) {
		return []report.Summary{}, nil
	}

	end := offset + limit
	if end > len(m.order) {
		end = len(m.order)
	}

	summaries := make([]report.Summary, 0, end-offset)
	for _, id := range m.order[offset:end] {
		summaries = append(summaries, m.reports[id].Summarize())
	}
	return summaries, nil
}
