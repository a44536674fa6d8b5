package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"clinsight/domain/assessment"
	"clinsight/domain/core"
	apperrors "clinsight/internal/errors"
	"clinsight/ports"
)

const (
	defaultPageSize = 500
	defaultMaxPages = 50
)

// Config describes the upstream clinical records API
type Config struct {
	BaseURL  string
	AuthMode string // bearer | api_key | basic
	Token    string
	Username string
	Password string
	Timeout  time.Duration
	PageSize int
	MaxPages int
}

// RecordsProvider fetches assessment and service usage data from a clinical
// records API. Responses are paginated with offset/limit and wrap rows in a
// top-level "data" array alongside a "has_more" flag.
type RecordsProvider struct {
	config     Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewRecordsProvider creates a provider backed by the records API
func NewRecordsProvider(config Config, logger *zap.Logger) *RecordsProvider {
	if config.PageSize <= 0 {
		config.PageSize = defaultPageSize
	}
	if config.MaxPages <= 0 {
		config.MaxPages = defaultMaxPages
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordsProvider{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger,
	}
}

// FetchAssessmentPairs retrieves paired assessments from /v1/assessments
func (p *RecordsProvider) FetchAssessmentPairs(ctx context.Context, window core.Window, interventions []string, instruments []assessment.InstrumentKind) ([]assessment.Pair, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}

	params := p.windowParams(window)
	if len(interventions) > 0 {
		params.Set("interventions", strings.Join(interventions, ","))
	}
	if len(instruments) > 0 {
		names := make([]string, len(instruments))
		for i, kind := range instruments {
			names[i] = string(kind)
		}
		params.Set("instruments", strings.Join(names, ","))
	}

	var pairs []assessment.Pair
	skipped := 0
	err := p.fetchPaged(ctx, "/v1/assessments", params, func(record gjson.Result) {
		kind, err := assessment.ParseInstrument(record.Get("instrument").String())
		if err != nil {
			skipped++
			return
		}
		pair, err := assessment.NewPair(
			core.SubjectID(record.Get("subject_id").String()),
			record.Get("intervention").String(),
			kind,
			record.Get("baseline_score").Float(),
			record.Get("followup_score").Float(),
			int(record.Get("elapsed_days").Int()),
		)
		if err != nil {
			skipped++
			return
		}
		pairs = append(pairs, pair)
	})
	if err != nil {
		return nil, err
	}

	if skipped > 0 {
		p.logger.Warn("skipped malformed assessment records from API",
			zap.String("base_url", p.config.BaseURL), zap.Int("skipped", skipped))
	}
	return pairs, nil
}

// FetchUtilizationRecords retrieves service usage rows from /v1/utilization
func (p *RecordsProvider) FetchUtilizationRecords(ctx context.Context, window core.Window) ([]ports.UtilizationRecord, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}

	var records []ports.UtilizationRecord
	skipped := 0
	err := p.fetchPaged(ctx, "/v1/utilization", p.windowParams(window), func(record gjson.Result) {
		subjectID := record.Get("subject_id").String()
		serviceType := record.Get("service_type").String()
		sessions := record.Get("sessions").Int()
		duration := record.Get("duration_minutes").Float()
		if subjectID == "" || serviceType == "" || sessions < 0 || duration < 0 {
			skipped++
			return
		}
		records = append(records, ports.UtilizationRecord{
			SubjectID:       core.SubjectID(subjectID),
			ServiceType:     serviceType,
			Sessions:        int(sessions),
			DurationMinutes: duration,
			Completed:       record.Get("completed").Bool(),
		})
	})
	if err != nil {
		return nil, err
	}

	if skipped > 0 {
		p.logger.Warn("skipped malformed utilization records from API",
			zap.String("base_url", p.config.BaseURL), zap.Int("skipped", skipped))
	}
	return records, nil
}

// fetchPaged walks offset/limit pages of an endpoint, feeding each row of the
// "data" array to collect, until has_more goes false or MaxPages is reached.
func (p *RecordsProvider) fetchPaged(ctx context.Context, path string, params url.Values, collect func(gjson.Result)) error {
	for page := 0; page < p.config.MaxPages; page++ {
		params.Set("offset", fmt.Sprintf("%d", page*p.config.PageSize))
		params.Set("limit", fmt.Sprintf("%d", p.config.PageSize))

		body, err := p.get(ctx, path, params)
		if err != nil {
			return err
		}

		data := gjson.GetBytes(body, "data")
		if !data.Exists() || !data.IsArray() {
			return apperrors.ExternalServiceError("records-api",
				fmt.Errorf("response from %s has no data array", path))
		}

		rows := data.Array()
		for _, row := range rows {
			collect(row)
		}

		if !gjson.GetBytes(body, "has_more").Bool() || len(rows) == 0 {
			return nil
		}
	}

	p.logger.Warn("stopped paging before upstream was exhausted",
		zap.String("path", path), zap.Int("max_pages", p.config.MaxPages))
	return nil
}

func (p *RecordsProvider) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	requestURL := strings.TrimRight(p.config.BaseURL, "/") + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	switch p.config.AuthMode {
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+p.config.Token)
	case "api_key":
		req.Header.Set("X-API-Key", p.config.Token)
	case "basic":
		req.SetBasicAuth(p.config.Username, p.config.Password)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.ExternalServiceError("records-api", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.ExternalServiceError("records-api",
			fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.ExternalServiceError("records-api",
			fmt.Errorf("%s returned status %d: %s", path, resp.StatusCode, truncate(string(body), 200)))
	}
	return body, nil
}

func (p *RecordsProvider) windowParams(window core.Window) url.Values {
	params := url.Values{}
	params.Set("window_start", window.Start.Time().Format(time.RFC3339))
	params.Set("window_end", window.End.Time().Format(time.RFC3339))
	return params
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
