package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"clinsight/domain/assessment"
	"clinsight/domain/core"
	"clinsight/ports"
)

// Workbook sheet names expected in a clinic export
const (
	assessmentSheet  = "Assessments"
	utilizationSheet = "Utilization"
)

// Accepted date layouts, tried in order
var dateLayouts = []string{"2006-01-02", time.RFC3339, "01/02/2006"}

// ExportProvider reads clinic data from an .xlsx export (or a .csv holding
// assessments only) and serves it through the AssessmentDataProvider port.
// The file is re-read on every fetch so a refreshed export needs no restart.
type ExportProvider struct {
	filePath string
	fileType string
	logger   *zap.Logger
}

// NewExportProvider creates a provider for an export file
func NewExportProvider(filePath string, logger *zap.Logger) *ExportProvider {
	fileType := "xlsx"
	if strings.ToLower(filepath.Ext(filePath)) == ".csv" {
		fileType = "csv"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportProvider{filePath: filePath, fileType: fileType, logger: logger}
}

// FetchAssessmentPairs reads and filters assessment rows from the export
func (p *ExportProvider) FetchAssessmentPairs(ctx context.Context, window core.Window, interventions []string, instruments []assessment.InstrumentKind) ([]assessment.Pair, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := window.Validate(); err != nil {
		return nil, err
	}

	rows, err := p.readSheet(assessmentSheet)
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("export %s has no assessment rows", p.filePath)
	}

	columns, err := headerIndex(rows[0], "subject_id", "intervention", "instrument",
		"baseline_score", "followup_score", "baseline_date", "followup_date")
	if err != nil {
		return nil, fmt.Errorf("assessment sheet: %w", err)
	}

	interventionSet := stringSet(interventions)
	instrumentSet := make(map[assessment.InstrumentKind]struct{}, len(instruments))
	for _, kind := range instruments {
		instrumentSet[kind] = struct{}{}
	}

	var pairs []assessment.Pair
	skipped := 0
	for _, row := range rows[1:] {
		pair, ok := p.parseAssessmentRow(row, columns, window)
		if !ok {
			skipped++
			continue
		}
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
		pairs = append(pairs, pair)
	}

	if skipped > 0 {
		p.logger.Warn("skipped unparseable assessment rows",
			zap.String("file", p.filePath), zap.Int("skipped", skipped))
	}
	return pairs, nil
}

// FetchUtilizationRecords reads service usage rows. CSV exports carry no
// utilization sheet, so they yield an empty slice.
func (p *ExportProvider) FetchUtilizationRecords(ctx context.Context, window core.Window) ([]ports.UtilizationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := window.Validate(); err != nil {
		return nil, err
	}
	if p.fileType == "csv" {
		return nil, nil
	}

	rows, err := p.readSheet(utilizationSheet)
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, nil
	}

	columns, err := headerIndex(rows[0], "subject_id", "service_type", "sessions",
		"duration_minutes", "completed", "enrolled_date")
	if err != nil {
		return nil, fmt.Errorf("utilization sheet: %w", err)
	}

	var records []ports.UtilizationRecord
	skipped := 0
	for _, row := range rows[1:] {
		record, ok := parseUtilizationRow(row, columns, window)
		if !ok {
			skipped++
			continue
		}
		records = append(records, record)
	}

	if skipped > 0 {
		p.logger.Warn("skipped unparseable utilization rows",
			zap.String("file", p.filePath), zap.Int("skipped", skipped))
	}
	return records, nil
}

// readSheet loads all rows of one sheet (xlsx) or the whole file (csv)
func (p *ExportProvider) readSheet(sheet string) ([][]string, error) {
	if _, err := os.Stat(p.filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("export file not found: %s", p.filePath)
	}

	if p.fileType == "csv" {
		file, err := os.Open(p.filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open CSV export: %w", err)
		}
		defer file.Close()
		return csv.NewReader(file).ReadAll()
	}

	f, err := excelize.OpenFile(p.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel export: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	return rows, nil
}

func (p *ExportProvider) parseAssessmentRow(row []string, columns map[string]int, window core.Window) (assessment.Pair, bool) {
	subjectID := cell(row, columns["subject_id"])
	intervention := cell(row, columns["intervention"])
	kind, err := assessment.ParseInstrument(cell(row, columns["instrument"]))
	if err != nil {
		return assessment.Pair{}, false
	}

	baseline, err := strconv.ParseFloat(cell(row, columns["baseline_score"]), 64)
	if err != nil {
		return assessment.Pair{}, false
	}
	followup, err := strconv.ParseFloat(cell(row, columns["followup_score"]), 64)
	if err != nil {
		return assessment.Pair{}, false
	}

	baselineDate, err := parseDate(cell(row, columns["baseline_date"]))
	if err != nil {
		return assessment.Pair{}, false
	}
	followupDate, err := parseDate(cell(row, columns["followup_date"]))
	if err != nil {
		return assessment.Pair{}, false
	}
	if !window.Contains(core.NewTimestamp(followupDate)) || !followupDate.After(baselineDate) {
		return assessment.Pair{}, false
	}

	elapsedDays := int(math.Round(followupDate.Sub(baselineDate).Hours() / 24))
	pair, err := assessment.NewPair(core.SubjectID(subjectID), intervention, kind, baseline, followup, elapsedDays)
	if err != nil {
		return assessment.Pair{}, false
	}
	return pair, true
}

func parseUtilizationRow(row []string, columns map[string]int, window core.Window) (ports.UtilizationRecord, bool) {
	enrolled, err := parseDate(cell(row, columns["enrolled_date"]))
	if err != nil || !window.Contains(core.NewTimestamp(enrolled)) {
		return ports.UtilizationRecord{}, false
	}

	sessions, err := strconv.Atoi(cell(row, columns["sessions"]))
	if err != nil || sessions < 0 {
		return ports.UtilizationRecord{}, false
	}
	duration, err := strconv.ParseFloat(cell(row, columns["duration_minutes"]), 64)
	if err != nil || duration < 0 {
		return ports.UtilizationRecord{}, false
	}
	completed, err := parseBool(cell(row, columns["completed"]))
	if err != nil {
		return ports.UtilizationRecord{}, false
	}

	subjectID := cell(row, columns["subject_id"])
	serviceType := cell(row, columns["service_type"])
	if subjectID == "" || serviceType == "" {
		return ports.UtilizationRecord{}, false
	}

	return ports.UtilizationRecord{
		SubjectID:       core.SubjectID(subjectID),
		ServiceType:     serviceType,
		Sessions:        sessions,
		DurationMinutes: duration,
		Completed:       completed,
	}, true
}

// headerIndex maps required column names to their positions,
// case-insensitively.
func headerIndex(header []string, required ...string) (map[string]int, error) {
	positions := make(map[string]int, len(header))
	for i, name := range header {
		positions[strings.ToLower(strings.TrimSpace(name))] = i
	}

	columns := make(map[string]int, len(required))
	for _, name := range required {
		pos, ok := positions[name]
		if !ok {
			return nil, fmt.Errorf("missing required column %q", name)
		}
		columns[name] = pos
	}
	return columns, nil
}

func cell(row []string, index int) string {
	if index >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[index])
}

func parseDate(value string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}

func parseBool(value string) (bool, error) {
	switch strings.ToLower(value) {
	case "yes", "y", "true", "1", "completed":
		return true, nil
	case "no", "n", "false", "0", "dropped":
		return false, nil
	default:
		return false, fmt.Errorf("unrecognized boolean %q", value)
	}
}

func stringSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
