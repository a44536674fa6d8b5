package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"clinsight/domain/assessment"
	"clinsight/domain/core"
	"clinsight/domain/outcome"
	domainPrivacy "clinsight/domain/privacy"
	"clinsight/domain/report"
	"clinsight/internal/privacy"
	"clinsight/internal/stats"
	"clinsight/ports"
)

// Composition weights for the report-level data quality score
const (
	qualitySampleWeight   = 0.6
	qualityEvidenceWeight = 0.4
)

// Recommendation thresholds over privatized aggregates
const (
	lowEngagementSessions  = 5.0
	lowCompletionRate      = 0.5
	highSkippedShareCutoff = 0.5
)

// ComposerConfig holds composition settings
type ComposerConfig struct {
	MinimumSampleSize   int
	MaxConcurrentGroups int
	OutcomeTier         domainPrivacy.Tier
	UtilizationTier     domainPrivacy.Tier
}

// DefaultComposerConfig returns the standard composition settings
func DefaultComposerConfig() ComposerConfig {
	return ComposerConfig{
		MinimumSampleSize:   10,
		MaxConcurrentGroups: 4,
		OutcomeTier:         domainPrivacy.TierMedium,
		UtilizationTier:     domainPrivacy.TierLow,
	}
}

// ComposeRequest parameterizes one report composition
type ComposeRequest struct {
	WindowStart   time.Time                   `json:"window_start"`
	WindowEnd     time.Time                   `json:"window_end"`
	Interventions []string                    `json:"interventions,omitempty"`
	Instruments   []assessment.InstrumentKind `json:"instruments,omitempty"`

	// Zero means use the composer's configured minimum
	MinimumSampleSize int `json:"minimum_sample_size,omitempty"`

	// Non-empty restricts every computation to consented subjects
	SubjectAllowlist []core.SubjectID `json:"subject_allowlist,omitempty"`
}

// OutcomeComposer orchestrates one report: fetch, group, analyze, privatize,
// assemble. Stateless across calls; the privacy engine passed to
// ComposeReport carries all epoch state.
type OutcomeComposer struct {
	provider ports.AssessmentDataProvider
	stats    *stats.Engine
	logger   *zap.Logger
	config   ComposerConfig
}

// NewOutcomeComposer wires a composer, normalizing out-of-range settings
func NewOutcomeComposer(provider ports.AssessmentDataProvider, statsEngine *stats.Engine, logger *zap.Logger, config ComposerConfig) *OutcomeComposer {
	defaults := DefaultComposerConfig()
	if config.MinimumSampleSize < 3 {
		config.MinimumSampleSize = defaults.MinimumSampleSize
	}
	if config.MaxConcurrentGroups < 1 {
		config.MaxConcurrentGroups = defaults.MaxConcurrentGroups
	}
	if config.OutcomeTier.Name == "" {
		config.OutcomeTier = defaults.OutcomeTier
	}
	if config.UtilizationTier.Name == "" {
		config.UtilizationTier = defaults.UtilizationTier
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &OutcomeComposer{
		provider: provider,
		stats:    statsEngine,
		logger:   logger,
		config:   config,
	}
}

// ComposeReport runs the full composition pipeline against one privacy
// epoch. Per-group and per-metric failures degrade the report instead of
// failing it; only provider failures, an invalid window, and cancellation
// are fatal. Epsilon spent before cancellation is not rolled back.
func (c *OutcomeComposer) ComposeReport(ctx context.Context, req ComposeRequest, engine *privacy.Engine) (*report.ClinicalIntelligenceReport, error) {
	window := core.NewWindow(req.WindowStart, req.WindowEnd)
	if err := window.Validate(); err != nil {
		return nil, fmt.Errorf("compose request window: %w", err)
	}

	minimumSampleSize := req.MinimumSampleSize
	if minimumSampleSize <= 0 {
		minimumSampleSize = c.config.MinimumSampleSize
	}

	c.logger.Info("composing outcome report",
		zap.Time("window_start", req.WindowStart),
		zap.Time("window_end", req.WindowEnd),
		zap.Int("minimum_sample_size", minimumSampleSize),
		zap.Int("allowlisted_subjects", len(req.SubjectAllowlist)))

	// 1. Fetch pairs, apply consent, group by (intervention, instrument)
	pairs, err := c.provider.FetchAssessmentPairs(ctx, window, req.Interventions, req.Instruments)
	if err != nil {
		return nil, err
	}
	pairs = filterPairsByConsent(pairs, req.SubjectAllowlist)
	groups := assessment.GroupPairs(pairs)

	// 2. Drop groups below the minimum sample size
	var skipped []report.SkippedGroup
	eligible := make(map[assessment.GroupKey][]assessment.Pair)
	for key, groupPairs := range groups {
		if len(groupPairs) < minimumSampleSize {
			skipped = append(skipped, report.SkippedGroup{
				Intervention: key.Intervention,
				Instrument:   key.Instrument,
				SampleSize:   len(groupPairs),
				Reason:       fmt.Sprintf("sample size %d below minimum %d", len(groupPairs), minimumSampleSize),
			})
			continue
		}
		eligible[key] = groupPairs
	}

	// 3. Analyze surviving groups under the concurrency bound
	analyses, analysisSkips, err := c.analyzeGroups(ctx, eligible)
	if err != nil {
		return nil, err
	}
	skipped = append(skipped, analysisSkips...)
	sortAnalyses(analyses)
	sortSkipped(skipped)

	// 4. Privatize per-group outcome rates
	recoveryRates, improvementRates, exhausted := c.privatizeOutcomeRates(engine, analyses)

	// 5. Privatize service utilization, unless the budget already ran dry
	var utilizationMetrics map[string]domainPrivacy.PrivateResult
	if !exhausted {
		utilizationMetrics, exhausted = c.privatizeUtilization(ctx, engine, window, req.SubjectAllowlist)
	}

	// 6-8. Recommendations, quality score, final assembly
	rep := &report.ClinicalIntelligenceReport{
		ID:                 core.NewReportID(),
		GeneratedAt:        core.Now(),
		Window:             window,
		Interventions:      req.Interventions,
		Instruments:        req.Instruments,
		MinimumSampleSize:  minimumSampleSize,
		Analyses:           analyses,
		SkippedGroups:      skipped,
		RecoveryRates:      recoveryRates,
		ImprovementRates:   improvementRates,
		UtilizationMetrics: utilizationMetrics,
		DataQualityScore:   dataQualityScore(analyses),
		BudgetExhausted:    exhausted,
	}
	rep.Recommendations = buildReportRecommendations(rep)
	rep.BudgetSnapshot = engine.BudgetStatus()
	rep.Fingerprint = rep.ComputeFingerprint()

	c.logger.Info("report composed",
		zap.String("report_id", rep.ID.String()),
		zap.Int("groups_analyzed", rep.GroupsAnalyzed()),
		zap.Int("groups_skipped", rep.GroupsSkipped()),
		zap.Float64("quality", rep.DataQualityScore),
		zap.Float64("budget_percent_used", rep.BudgetSnapshot.PercentUsed),
		zap.Bool("budget_exhausted", rep.BudgetExhausted))

	return rep, nil
}

// analyzeGroups runs per-group clinical analysis bounded by the configured
// concurrency. Cancellation between submissions aborts the remaining groups
// and fails the composition.
func (c *OutcomeComposer) analyzeGroups(ctx context.Context, groups map[assessment.GroupKey][]assessment.Pair) ([]outcome.ClinicalOutcomeAnalysis, []report.SkippedGroup, error) {
	keys := make([]assessment.GroupKey, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Label() < keys[j].Label() })

	sem := semaphore.NewWeighted(int64(c.config.MaxConcurrentGroups))
	var wg sync.WaitGroup
	var mu sync.Mutex
	var analyses []outcome.ClinicalOutcomeAnalysis
	var skipped []report.SkippedGroup

	for _, key := range keys {
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return nil, nil, fmt.Errorf("composition cancelled with %d groups pending: %w", len(keys)-len(analyses)-len(skipped), err)
		}

		wg.Add(1)
		go func(key assessment.GroupKey, groupPairs []assessment.Pair) {
			defer wg.Done()
			defer sem.Release(1)

			analysis, err := c.stats.AnalyzeOutcome(key.Intervention, key.Instrument, groupPairs)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				c.logger.Warn("group analysis skipped",
					zap.String("group", key.Label()),
					zap.Int("sample_size", len(groupPairs)),
					zap.Error(err))
				skipped = append(skipped, report.SkippedGroup{
					Intervention: key.Intervention,
					Instrument:   key.Instrument,
					SampleSize:   len(groupPairs),
					Reason:       err.Error(),
				})
				return
			}
			analyses = append(analyses, *analysis)
		}(key, groups[key])
	}

	wg.Wait()
	return analyses, skipped, nil
}

// privatizeOutcomeRates privatizes recovery and reliable-improvement rates
// per analysis. A budget refusal omits that metric; when the budget cannot
// fund even the cheapest remaining query, privatization stops early.
func (c *OutcomeComposer) privatizeOutcomeRates(engine *privacy.Engine, analyses []outcome.ClinicalOutcomeAnalysis) (map[string]domainPrivacy.PrivateResult, map[string]domainPrivacy.PrivateResult, bool) {
	recoveryRates := make(map[string]domainPrivacy.PrivateResult)
	improvementRates := make(map[string]domainPrivacy.PrivateResult)

	for i := range analyses {
		analysis := &analyses[i]
		label := analysis.Intervention + "/" + string(analysis.Instrument)

		if analysis.CutoffDefined {
			name := fmt.Sprintf("recovery_rate_%s", label)
			result, err := engine.PrivateProportion(name, analysis.RecoveredCount, analysis.SampleSize, c.config.OutcomeTier)
			if exhausted := c.recordOrOmit(engine, recoveryRates, label, result, err, name); exhausted {
				return recoveryRates, improvementRates, true
			}
		}

		name := fmt.Sprintf("reliable_improvement_rate_%s", label)
		result, err := engine.PrivateProportion(name, analysis.ReliableChange.Improved, analysis.SampleSize, c.config.OutcomeTier)
		if exhausted := c.recordOrOmit(engine, improvementRates, label, result, err, name); exhausted {
			return recoveryRates, improvementRates, true
		}
	}

	return recoveryRates, improvementRates, false
}

// privatizeUtilization fetches service usage, applies k-anonymity over
// service-type groups, and privatizes the session, duration, and completion
// aggregates. A fetch failure drops the utilization section, never the report.
func (c *OutcomeComposer) privatizeUtilization(ctx context.Context, engine *privacy.Engine, window core.Window, allowlist []core.SubjectID) (map[string]domainPrivacy.PrivateResult, bool) {
	records, err := c.provider.FetchUtilizationRecords(ctx, window)
	if err != nil {
		c.logger.Warn("utilization metrics unavailable", zap.Error(err))
		return nil, false
	}
	records = filterRecordsByConsent(records, allowlist)
	if len(records) == 0 {
		return nil, false
	}

	kept, suppressedGroups := privacy.ApplyKAnonymity(records, func(r ports.UtilizationRecord) string {
		return r.ServiceType
	}, engine.KThreshold())
	if suppressedGroups > 0 {
		c.logger.Info("utilization groups suppressed",
			zap.Int("suppressed_groups", suppressedGroups),
			zap.Int("records_kept", len(kept)))
	}
	if len(kept) == 0 {
		return nil, false
	}

	metrics := make(map[string]domainPrivacy.PrivateResult)

	// Sessions per subject across all surviving services
	perSubject := make(map[core.SubjectID]float64)
	for _, record := range kept {
		perSubject[record.SubjectID] += float64(record.Sessions)
	}
	sessionCounts := make([]float64, 0, len(perSubject))
	for _, count := range perSubject {
		sessionCounts = append(sessionCounts, count)
	}

	result, err := engine.PrivateMean("avg_sessions_per_subject", sessionCounts, c.config.UtilizationTier)
	if err == nil {
		result.SuppressedGroups = suppressedGroups
	}
	if exhausted := c.recordOrOmit(engine, metrics, "avg_sessions_per_subject", result, err, "avg_sessions_per_subject"); exhausted {
		return metrics, true
	}

	// Average session duration across records
	durations := make([]float64, 0, len(kept))
	for _, record := range kept {
		if record.Sessions > 0 {
			durations = append(durations, record.DurationMinutes/float64(record.Sessions))
		}
	}
	result, err = engine.PrivateMean("avg_session_duration_minutes", durations, c.config.UtilizationTier)
	if err == nil {
		result.SuppressedGroups = suppressedGroups
	}
	if exhausted := c.recordOrOmit(engine, metrics, "avg_session_duration_minutes", result, err, "avg_session_duration_minutes"); exhausted {
		return metrics, true
	}

	// Completion rate per surviving service type
	type completionTally struct{ completed, total int }
	byService := make(map[string]*completionTally)
	for _, record := range kept {
		tally, ok := byService[record.ServiceType]
		if !ok {
			tally = &completionTally{}
			byService[record.ServiceType] = tally
		}
		tally.total++
		if record.Completed {
			tally.completed++
		}
	}
	services := make([]string, 0, len(byService))
	for service := range byService {
		services = append(services, service)
	}
	sort.Strings(services)

	for _, service := range services {
		tally := byService[service]
		name := fmt.Sprintf("completion_rate_%s", service)
		result, err := engine.PrivateProportion(name, tally.completed, tally.total, c.config.UtilizationTier)
		if exhausted := c.recordOrOmit(engine, metrics, name, result, err, name); exhausted {
			return metrics, true
		}
	}

	return metrics, false
}

// recordOrOmit stores a successful result, or logs and omits a failed
// metric. Returns true when the budget can no longer fund the cheapest
// possible remaining query.
func (c *OutcomeComposer) recordOrOmit(engine *privacy.Engine, into map[string]domainPrivacy.PrivateResult, key string, result *domainPrivacy.PrivateResult, err error, metric string) bool {
	if err == nil {
		into[key] = *result
		return false
	}

	if core.IsBudgetError(err) {
		c.logger.Warn("metric omitted, budget refused", zap.String("metric", metric), zap.Error(err))
		return !engine.CanSpend(c.cheapestEpsilon())
	}

	c.logger.Debug("metric omitted", zap.String("metric", metric), zap.Error(err))
	return false
}

// cheapestEpsilon is the smallest spend any remaining metric could make.
// Outcome metrics are proportions costing twice their tier's epsilon;
// utilization starts with means costing a single epsilon.
func (c *OutcomeComposer) cheapestEpsilon() float64 {
	epsilon := 2.0 * c.config.OutcomeTier.Epsilon
	if c.config.UtilizationTier.Epsilon < epsilon {
		epsilon = c.config.UtilizationTier.Epsilon
	}
	return epsilon
}

// buildReportRecommendations applies the fixed report-level heuristics.
// Order is deterministic: engagement, per-service completion, data coverage.
func buildReportRecommendations(rep *report.ClinicalIntelligenceReport) []string {
	var recommendations []string

	if sessions, ok := rep.UtilizationMetrics["avg_sessions_per_subject"]; ok && sessions.Value < lowEngagementSessions {
		recommendations = append(recommendations,
			fmt.Sprintf("Average sessions per subject is low (%.1f); review engagement and retention pathways.", sessions.Value))
	}

	serviceNames := make([]string, 0, len(rep.UtilizationMetrics))
	for name := range rep.UtilizationMetrics {
		serviceNames = append(serviceNames, name)
	}
	sort.Strings(serviceNames)
	for _, name := range serviceNames {
		const prefix = "completion_rate_"
		if len(name) <= len(prefix) || name[:len(prefix)] != prefix {
			continue
		}
		if metric := rep.UtilizationMetrics[name]; metric.Value < lowCompletionRate {
			recommendations = append(recommendations,
				fmt.Sprintf("Completion rate for %s is below %.0f%%; investigate barriers to finishing care.", name[len(prefix):], lowCompletionRate*100))
		}
	}

	totalGroups := rep.GroupsAnalyzed() + rep.GroupsSkipped()
	if totalGroups > 0 {
		skippedShare := float64(rep.GroupsSkipped()) / float64(totalGroups)
		if skippedShare > highSkippedShareCutoff {
			recommendations = append(recommendations,
				fmt.Sprintf("%d of %d groups were excluded; expand assessment collection so more cohorts reach the minimum sample size.", rep.GroupsSkipped(), totalGroups))
		}
	}

	return recommendations
}

// dataQualityScore averages the banded sample-size and evidence scores over
// the included analyses.
func dataQualityScore(analyses []outcome.ClinicalOutcomeAnalysis) float64 {
	if len(analyses) == 0 {
		return 0
	}

	total := 0.0
	for i := range analyses {
		total += qualitySampleWeight*outcome.SampleSizeBandScore(analyses[i].SampleSize) +
			qualityEvidenceWeight*outcome.EvidenceBandScore(analyses[i].EvidenceQuality)
	}
	return total / float64(len(analyses))
}

func filterPairsByConsent(pairs []assessment.Pair, allowlist []core.SubjectID) []assessment.Pair {
	if len(allowlist) == 0 {
		return pairs
	}
	allowed := make(map[core.SubjectID]struct{}, len(allowlist))
	for _, id := range allowlist {
		allowed[id] = struct{}{}
	}
	filtered := make([]assessment.Pair, 0, len(pairs))
	for _, pair := range pairs {
		if _, ok := allowed[pair.SubjectID]; ok {
			filtered = append(filtered, pair)
		}
	}
	return filtered
}

func filterRecordsByConsent(records []ports.UtilizationRecord, allowlist []core.SubjectID) []ports.UtilizationRecord {
	if len(allowlist) == 0 {
		return records
	}
	allowed := make(map[core.SubjectID]struct{}, len(allowlist))
	for _, id := range allowlist {
		allowed[id] = struct{}{}
	}
	filtered := make([]ports.UtilizationRecord, 0, len(records))
	for _, record := range records {
		if _, ok := allowed[record.SubjectID]; ok {
			filtered = append(filtered, record)
		}
	}
	return filtered
}

func sortAnalyses(analyses []outcome.ClinicalOutcomeAnalysis) {
	sort.Slice(analyses, func(i, j int) bool {
		if analyses[i].Intervention != analyses[j].Intervention {
			return analyses[i].Intervention < analyses[j].Intervention
		}
		return analyses[i].Instrument < analyses[j].Instrument
	})
}

func sortSkipped(skipped []report.SkippedGroup) {
	sort.Slice(skipped, func(i, j int) bool {
		if skipped[i].Intervention != skipped[j].Intervention {
			return skipped[i].Intervention < skipped[j].Intervention
		}
		return skipped[i].Instrument < skipped[j].Instrument
	})
}
