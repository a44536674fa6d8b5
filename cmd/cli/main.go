package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"clinsight/adapters/render"
	"clinsight/app"
	"clinsight/domain/assessment"
	"clinsight/internal/config"
	"clinsight/internal/container"
	"clinsight/internal/logging"
	"clinsight/internal/testkit"
	"clinsight/ports"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinsight-cli",
		Short: "ClinSight CLI for one-shot report composition and dev tooling",
	}

	rootCmd.AddCommand(
		newComposeCmd(),
		newInstrumentsCmd(),
		newSeedExportCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newComposeCmd() *cobra.Command {
	var from, to string
	var interventions, instruments []string
	var minGroupSize int
	var budget float64
	var seed uint64
	var format, output string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Compose one privacy-preserving outcome report and print it",
		Long: `Compose a report over the configured data source (SOURCE env var)
for the given window, then render it to stdout or a file.

Example: clinsight-cli compose --from 2026-01-01 --to 2026-07-01 --format markdown`,
		RunE: func(cmd *cobra.Command, args []string) error {
			windowStart, err := time.Parse("2006-01-02", from)
			if err != nil {
				return fmt.Errorf("invalid --from date (use YYYY-MM-DD): %w", err)
			}
			windowEnd, err := time.Parse("2006-01-02", to)
			if err != nil {
				return fmt.Errorf("invalid --to date (use YYYY-MM-DD): %w", err)
			}

			instrumentKinds := make([]assessment.InstrumentKind, 0, len(instruments))
			for _, name := range instruments {
				kind, err := assessment.ParseInstrument(name)
				if err != nil {
					return err
				}
				instrumentKinds = append(instrumentKinds, kind)
			}

			godotenv.Load()
			appConfig, err := config.Load()
			if err != nil {
				return err
			}
			if budget > 0 {
				appConfig.Privacy.TotalBudget = budget
			}
			if seed != 0 {
				appConfig.Privacy.Seed = seed
			}

			logger := zap.NewNop()
			if verbose {
				logger = logging.NewZapLogger(appConfig.Logging)
			}

			ctx := cmd.Context()
			c, err := container.New(appConfig, logger)
			if err != nil {
				return err
			}
			if err := c.Init(ctx); err != nil {
				return err
			}
			defer c.Shutdown(ctx)

			rep, err := c.Composer.ComposeReport(ctx, app.ComposeRequest{
				WindowStart:       windowStart,
				WindowEnd:         windowEnd,
				Interventions:     interventions,
				Instruments:       instrumentKinds,
				MinimumSampleSize: minGroupSize,
			}, c.PrivacyEngine)
			if err != nil {
				return err
			}

			if c.DB != nil {
				if err := c.Reports.Save(ctx, rep); err != nil {
					fmt.Fprintf(os.Stderr, "warning: report composed but not stored: %v\n", err)
				}
			}

			var body []byte
			renderer := render.NewMarkdownRenderer()
			switch format {
			case "markdown":
				body = []byte(renderer.RenderMarkdown(rep))
			case "html":
				body = renderer.RenderHTML(rep)
			case "json":
				body, err = json.MarshalIndent(rep, "", "  ")
				if err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown format %q (markdown, html, json)", format)
			}

			if output == "-" {
				_, err = os.Stdout.Write(body)
				return err
			}
			if err := os.WriteFile(output, body, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "report %s written to %s\n", rep.ID, output)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Window start date, inclusive (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Window end date, exclusive (YYYY-MM-DD)")
	cmd.Flags().StringSliceVar(&interventions, "interventions", nil, "Restrict to these intervention labels")
	cmd.Flags().StringSliceVar(&instruments, "instruments", nil, "Restrict to these instruments (e.g. phq9,gad7)")
	cmd.Flags().IntVar(&minGroupSize, "min-group-size", 0, "Minimum pairs per group (0 uses configured default)")
	cmd.Flags().Float64Var(&budget, "budget", 0, "Override the epoch privacy budget")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Pin the noise seed for reproducible runs")
	cmd.Flags().StringVar(&format, "format", "markdown", "Output format: markdown, html, or json")
	cmd.Flags().StringVar(&output, "output", "-", "Output file, or - for stdout")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Log composition progress")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")

	return cmd
}

func newInstrumentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "instruments",
		Short: "List supported assessment instruments and their calibration",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KIND\tNAME\tRANGE\tMCID\tRELIABILITY\tCUTOFF")
			for _, p := range assessment.AllProfiles() {
				cutoff := "-"
				if p.HasCutoff {
					cutoff = fmt.Sprintf("%.0f", p.Cutoff)
				}
				fmt.Fprintf(w, "%s\t%s\t%.0f-%.0f\t%.0f\t%.2f\t%s\n",
					p.Kind, p.DisplayName, p.MinScore, p.MaxScore, p.MCID, p.Reliability, cutoff)
			}
			return w.Flush()
		},
	}
}

func newSeedExportCmd() *cobra.Command {
	var output string
	var subjects int
	var seed int64
	var improvement float64

	cmd := &cobra.Command{
		Use:   "seed-export",
		Short: "Write a synthetic clinic export workbook for development",
		Long: `Generate a deterministic synthetic cohort and write it as an .xlsx
export with Assessments and Utilization sheets, readable by SOURCE=excel.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := testkit.DefaultCohortConfig()
			if subjects > 0 {
				cfg.SubjectCount = subjects
			}
			if seed != 0 {
				cfg.Seed = seed
			}
			if improvement > 0 {
				cfg.ImprovementRate = improvement
			}

			generator := testkit.NewCohortGenerator(cfg)
			pairs := generator.GeneratePairs()
			utilization := generator.GenerateUtilization()

			if err := writeExportWorkbook(output, cfg, pairs, utilization); err != nil {
				return err
			}
			fmt.Printf("wrote %d assessment pairs and %d utilization records to %s\n",
				len(pairs), len(utilization), output)
			return nil
		},
	}

	cmd.Flags().StringVar(&output, "output", "clinic_export.xlsx", "Workbook path to write")
	cmd.Flags().IntVar(&subjects, "subjects", 0, "Cohort size (0 uses the default)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Generator seed (0 uses the default)")
	cmd.Flags().Float64Var(&improvement, "improvement", 0, "Fraction of subjects that improve")

	return cmd
}

// writeExportWorkbook lays the cohort out in the clinic export format the
// excel adapter reads back. Observation dates are synthesized inside the
// cohort window.
func writeExportWorkbook(path string, cfg testkit.CohortGeneratorConfig, pairs []assessment.Pair, utilization []ports.UtilizationRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	const assessmentSheet = "Assessments"
	const utilizationSheet = "Utilization"

	if err := f.SetSheetName(f.GetSheetName(0), assessmentSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(utilizationSheet); err != nil {
		return err
	}

	assessmentHeaders := []string{
		"subject_id", "intervention", "instrument",
		"baseline_score", "followup_score", "baseline_date", "followup_date",
	}
	if err := writeRow(f, assessmentSheet, 1, toCells(assessmentHeaders)); err != nil {
		return err
	}
	for i, pair := range pairs {
		baselineDate := cfg.StartDate.AddDate(0, 0, i%45)
		followupDate := baselineDate.AddDate(0, 0, pair.ElapsedDays)
		row := []interface{}{
			string(pair.SubjectID), pair.Intervention, string(pair.Instrument),
			pair.Baseline, pair.Followup,
			baselineDate.Format("2006-01-02"), followupDate.Format("2006-01-02"),
		}
		if err := writeRow(f, assessmentSheet, i+2, row); err != nil {
			return err
		}
	}

	utilizationHeaders := []string{
		"subject_id", "service_type", "sessions",
		"duration_minutes", "completed", "enrolled_date",
	}
	if err := writeRow(f, utilizationSheet, 1, toCells(utilizationHeaders)); err != nil {
		return err
	}
	for i, record := range utilization {
		completed := "no"
		if record.Completed {
			completed = "yes"
		}
		enrolled := cfg.StartDate.AddDate(0, 0, i%60)
		row := []interface{}{
			string(record.SubjectID), record.ServiceType, record.Sessions,
			record.DurationMinutes, completed, enrolled.Format("2006-01-02"),
		}
		if err := writeRow(f, utilizationSheet, i+2, row); err != nil {
			return err
		}
	}

	return f.SaveAs(path)
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	for col, value := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, value); err != nil {
			return err
		}
	}
	return nil
}

func toCells(headers []string) []interface{} {
	cells := make([]interface{}, len(headers))
	for i, h := range headers {
		cells[i] = h
	}
	return cells
}
