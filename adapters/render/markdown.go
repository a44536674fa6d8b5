package render

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"clinsight/domain/assessment"
	domainPrivacy "clinsight/domain/privacy"
	"clinsight/domain/report"
)

// MarkdownRenderer formats a composed report for human review. The markdown
// output is the canonical text form; HTML is derived from it.
type MarkdownRenderer struct{}

// NewMarkdownRenderer creates a report renderer
func NewMarkdownRenderer() *MarkdownRenderer {
	return &MarkdownRenderer{}
}

// RenderMarkdown produces the full markdown document for a report
func (r *MarkdownRenderer) RenderMarkdown(rep *report.ClinicalIntelligenceReport) string {
	var doc strings.Builder

	doc.WriteString(fmt.Sprintf(`# Clinical Outcome Report

**Report ID:** %s
**Generated:** %s
**Reporting window:** %s to %s
**Data quality score:** %.2f

`, rep.ID,
		rep.GeneratedAt.Time().Format(time.RFC1123),
		rep.Window.Start.Time().Format("2006-01-02"),
		rep.Window.End.Time().Format("2006-01-02"),
		rep.DataQualityScore))

	r.writeSummary(&doc, rep)
	r.writeAnalyses(&doc, rep)
	r.writePrivatizedRates(&doc, rep)
	r.writeUtilization(&doc, rep)
	r.writeSkippedGroups(&doc, rep)
	r.writeRecommendations(&doc, rep)
	r.writeBudget(&doc, rep)

	doc.WriteString(fmt.Sprintf("\n---\n\n*Content fingerprint: `%s`*\n", rep.Fingerprint))
	return doc.String()
}

// RenderHTML converts the markdown document into a standalone HTML page
func (r *MarkdownRenderer) RenderHTML(rep *report.ClinicalIntelligenceReport) []byte {
	source := r.RenderMarkdown(rep)

	extensions := parser.CommonExtensions | parser.AutoHeadingIDs | parser.Tables
	p := parser.NewWithExtensions(extensions)

	opts := mdhtml.RendererOptions{Flags: mdhtml.CommonFlags}
	renderer := mdhtml.NewRenderer(opts)

	body := markdown.ToHTML([]byte(source), p, renderer)

	var page strings.Builder
	page.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	page.WriteString(fmt.Sprintf("<title>Clinical Outcome Report %s</title>\n", rep.ID))
	page.WriteString("<style>body{font-family:sans-serif;max-width:60rem;margin:2rem auto;padding:0 1rem;line-height:1.5}table{border-collapse:collapse}th,td{border:1px solid #ccc;padding:0.3rem 0.6rem;text-align:left}code{background:#f4f4f4;padding:0.1rem 0.3rem}</style>\n")
	page.WriteString("</head>\n<body>\n")
	page.Write(body)
	page.WriteString("</body>\n</html>\n")
	return []byte(page.String())
}

func (r *MarkdownRenderer) writeSummary(doc *strings.Builder, rep *report.ClinicalIntelligenceReport) {
	doc.WriteString("## Summary\n\n")
	doc.WriteString(fmt.Sprintf("- Groups analyzed: %d\n", rep.GroupsAnalyzed()))
	doc.WriteString(fmt.Sprintf("- Groups excluded: %d\n", rep.GroupsSkipped()))
	doc.WriteString(fmt.Sprintf("- Minimum group size: %d subjects\n", rep.MinimumSampleSize))

	significant := 0
	for _, a := range rep.Analyses {
		if a.Test.Significant {
			significant++
		}
	}
	doc.WriteString(fmt.Sprintf("- Statistically significant outcomes: %d of %d\n", significant, len(rep.Analyses)))

	if rep.BudgetExhausted {
		doc.WriteString("- **Privacy budget was exhausted before all aggregates could be published.** Omitted metrics are absent rather than zero.\n")
	}
	doc.WriteString("\n")
}

func (r *MarkdownRenderer) writeAnalyses(doc *strings.Builder, rep *report.ClinicalIntelligenceReport) {
	if len(rep.Analyses) == 0 {
		doc.WriteString("## Outcome Analyses\n\nNo group met the minimum sample size in this window.\n\n")
		return
	}

	doc.WriteString("## Outcome Analyses\n\n")
	for _, a := range rep.Analyses {
		doc.WriteString(fmt.Sprintf("### %s / %s\n\n", a.Intervention, instrumentLabel(a.Instrument)))
		doc.WriteString(fmt.Sprintf("- Sample size: %d paired assessments (mean follow-up %.0f days)\n",
			a.SampleSize, a.MeanElapsedDays))
		doc.WriteString(fmt.Sprintf("- Mean score change: %.2f (95%% CI %.2f to %.2f)\n",
			a.Test.Differences.Mean,
			a.Test.Differences.ConfidenceInterval.Lower,
			a.Test.Differences.ConfidenceInterval.Upper))
		doc.WriteString(fmt.Sprintf("- Paired t-test: t(%d) = %.3f, p = %s, %s\n",
			a.Test.DegreesOfFreedom, a.Test.TStatistic,
			formatPValue(a.Test.PValue), significanceText(a.Test.Significant)))
		doc.WriteString(fmt.Sprintf("- Effect size: Cohen's d = %.2f (%s)\n", a.Test.EffectSize, a.Test.EffectBand))
		doc.WriteString(fmt.Sprintf("- MCID (%.0f points) achieved by %.1f%% of subjects\n", a.MCID, a.MCIDAchieversPct))
		doc.WriteString(fmt.Sprintf("- Reliable change: %d improved, %d unchanged, %d deteriorated\n",
			a.ReliableChange.Improved, a.ReliableChange.Unchanged, a.ReliableChange.Deteriorated))

		if a.CutoffDefined {
			doc.WriteString(fmt.Sprintf("- Clinical cutoff transitions: %d recovered (%.1f%%), %d deteriorated (%.1f%%)\n",
				a.RecoveredCount, a.RecoveryRate*100, a.DeterioratedCount, a.DeteriorationRate*100))
		}

		doc.WriteString(fmt.Sprintf("- Clinical significance: **%s**, evidence quality: **%s**\n",
			a.SignificanceRating, a.EvidenceQuality))

		if len(a.Recommendations) > 0 {
			doc.WriteString("\nGroup notes:\n")
			for _, rec := range a.Recommendations {
				doc.WriteString(fmt.Sprintf("- %s\n", rec))
			}
		}
		doc.WriteString("\n")
	}
}

func (r *MarkdownRenderer) writePrivatizedRates(doc *strings.Builder, rep *report.ClinicalIntelligenceReport) {
	if len(rep.RecoveryRates) == 0 && len(rep.ImprovementRates) == 0 {
		return
	}

	doc.WriteString("## Privatized Outcome Rates\n\n")
	doc.WriteString("Published values carry calibrated noise; the stated intervals reflect both sampling and privacy uncertainty.\n\n")
	doc.WriteString("| Group | Metric | Value | 95% Interval | Epsilon | Utility |\n")
	doc.WriteString("|-------|--------|-------|--------------|---------|--------|\n")

	for _, label := range sortedKeys(rep.RecoveryRates) {
		writeRateRow(doc, label, "recovery rate", rep.RecoveryRates[label])
	}
	for _, label := range sortedKeys(rep.ImprovementRates) {
		writeRateRow(doc, label, "reliable improvement rate", rep.ImprovementRates[label])
	}
	doc.WriteString("\n")
}

func (r *MarkdownRenderer) writeUtilization(doc *strings.Builder, rep *report.ClinicalIntelligenceReport) {
	if len(rep.UtilizationMetrics) == 0 {
		return
	}

	doc.WriteString("## Service Utilization\n\n")
	suppressed := 0
	for _, name := range sortedKeys(rep.UtilizationMetrics) {
		result := rep.UtilizationMetrics[name]
		if result.SuppressedGroups > suppressed {
			suppressed = result.SuppressedGroups
		}
		doc.WriteString(fmt.Sprintf("- %s: %.2f", utilizationLabel(name), result.Value))
		if result.ConfidenceInterval != nil {
			doc.WriteString(fmt.Sprintf(" (95%% interval %.2f to %.2f)",
				result.ConfidenceInterval.Lower, result.ConfidenceInterval.Upper))
		}
		doc.WriteString("\n")
	}
	if suppressed > 0 {
		doc.WriteString(fmt.Sprintf("\n%d service group(s) were suppressed for having too few distinct subjects.\n", suppressed))
	}
	doc.WriteString("\n")
}

func (r *MarkdownRenderer) writeSkippedGroups(doc *strings.Builder, rep *report.ClinicalIntelligenceReport) {
	if len(rep.SkippedGroups) == 0 {
		return
	}

	doc.WriteString("## Excluded Groups\n\n")
	for _, skipped := range rep.SkippedGroups {
		doc.WriteString(fmt.Sprintf("- %s / %s (n=%d): %s\n",
			skipped.Intervention, instrumentLabel(skipped.Instrument), skipped.SampleSize, skipped.Reason))
	}
	doc.WriteString("\n")
}

func (r *MarkdownRenderer) writeRecommendations(doc *strings.Builder, rep *report.ClinicalIntelligenceReport) {
	if len(rep.Recommendations) == 0 {
		return
	}

	doc.WriteString("## Recommendations\n\n")
	for _, rec := range rep.Recommendations {
		doc.WriteString(fmt.Sprintf("- %s\n", rec))
	}
	doc.WriteString("\n")
}

func (r *MarkdownRenderer) writeBudget(doc *strings.Builder, rep *report.ClinicalIntelligenceReport) {
	status := rep.BudgetSnapshot
	doc.WriteString("## Privacy Accounting\n\n")
	doc.WriteString(fmt.Sprintf("- Budget: %.2f epsilon total, %.2f used (%.0f%%), %.2f remaining\n",
		status.Total, status.Used, status.PercentUsed, status.Remaining))
	doc.WriteString(fmt.Sprintf("- Budget health: **%s**\n", budgetHealthText(status.Health)))
	if len(status.RecentEntries) > 0 {
		doc.WriteString(fmt.Sprintf("- Recent privacy operations: %d\n", len(status.RecentEntries)))
	}
}

func writeRateRow(doc *strings.Builder, label, metric string, result domainPrivacy.PrivateResult) {
	interval := "n/a"
	if result.ConfidenceInterval != nil {
		interval = fmt.Sprintf("%.1f%% to %.1f%%",
			result.ConfidenceInterval.Lower*100, result.ConfidenceInterval.Upper*100)
	}
	doc.WriteString(fmt.Sprintf("| %s | %s | %.1f%% | %s | %.2f | %.2f |\n",
		label, metric, result.Value*100, interval, result.EpsilonSpent, result.UtilityScore))
}

func instrumentLabel(kind assessment.InstrumentKind) string {
	profile, err := assessment.ProfileFor(kind)
	if err != nil {
		return string(kind)
	}
	return profile.DisplayName
}

// utilizationLabel turns a metric key like "completion_rate_group_session"
// into readable text.
func utilizationLabel(name string) string {
	if service, ok := strings.CutPrefix(name, "completion_rate_"); ok {
		return fmt.Sprintf("Completion rate, %s", strings.ReplaceAll(service, "_", " "))
	}
	switch name {
	case "avg_sessions_per_subject":
		return "Average sessions per subject"
	case "avg_session_duration_minutes":
		return "Average session duration (minutes)"
	default:
		return strings.ReplaceAll(name, "_", " ")
	}
}

func formatPValue(p float64) string {
	if p < 0.001 {
		return "< 0.001"
	}
	return fmt.Sprintf("%.3f", p)
}

func significanceText(significant bool) string {
	if significant {
		return "statistically significant"
	}
	return "not statistically significant"
}

func budgetHealthText(health domainPrivacy.BudgetHealth) string {
	switch health {
	case domainPrivacy.BudgetCritical:
		return "critical, budget nearly exhausted"
	case domainPrivacy.BudgetWarning:
		return "warning, elevated consumption"
	default:
		return "healthy"
	}
}

func sortedKeys(m map[string]domainPrivacy.PrivateResult) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
