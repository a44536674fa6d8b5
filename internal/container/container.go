package container

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	recordsAPI "clinsight/adapters/api"
	"clinsight/adapters/excel"
	"clinsight/adapters/postgres"
	"clinsight/app"
	domainPrivacy "clinsight/domain/privacy"
	"clinsight/internal/config"
	"clinsight/internal/errors"
	"clinsight/internal/privacy"
	"clinsight/internal/stats"
	"clinsight/internal/testkit"
	"clinsight/ports"
)

// Container holds all application dependencies and manages their lifecycle.
// Every entrypoint (server, CLI) builds one and reads its fields.
type Container struct {
	Config *config.Config
	Logger *zap.Logger

	// Infrastructure; nil unless a database is configured
	DB *sqlx.DB

	// Data access
	Provider ports.AssessmentDataProvider
	Reports  ports.ReportRepository

	// Engines and services
	StatsEngine   *stats.Engine
	PrivacyEngine *privacy.Engine
	Composer      *app.OutcomeComposer
}

// New creates an uninitialized container
func New(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Container{Config: cfg, Logger: logger}, nil
}

// Init wires the data source, persistence, and engines from config
func (c *Container) Init(ctx context.Context) error {
	if err := c.initDataSource(ctx); err != nil {
		return fmt.Errorf("failed to initialize data source: %w", err)
	}
	if err := c.initEngines(); err != nil {
		return fmt.Errorf("failed to initialize engines: %w", err)
	}

	c.Logger.Info("container initialized",
		zap.String("source", c.Config.Source.Kind),
		zap.Bool("database", c.DB != nil))
	return nil
}

// initDataSource selects the provider from SOURCE and opens the database
// when the source (or report persistence) needs it.
func (c *Container) initDataSource(ctx context.Context) error {
	switch c.Config.Source.Kind {
	case config.SourcePostgres:
		db, err := c.openDatabase(ctx)
		if err != nil {
			return err
		}
		c.DB = db
		c.Provider = postgres.NewAssessmentProvider(db)
		c.Reports = postgres.NewReportRepository(db)
		return nil

	case config.SourceExcel:
		c.Logger.Info("using excel export data source",
			zap.String("file", c.Config.Source.ExcelFile))
		c.Provider = excel.NewExportProvider(c.Config.Source.ExcelFile, c.Logger)

	case config.SourceAPI:
		c.Logger.Info("using records API data source",
			zap.String("base_url", c.Config.Source.APIBaseURL))
		c.Provider = recordsAPI.NewRecordsProvider(recordsAPI.Config{
			BaseURL:  c.Config.Source.APIBaseURL,
			AuthMode: c.Config.Source.APIAuthMode,
			Token:    c.Config.Source.APIToken,
			Timeout:  c.Config.Source.APITimeout,
		}, c.Logger)

	default:
		c.Logger.Info("using synthetic cohort data source")
		c.Provider = testkit.NewSyntheticProvider(testkit.DefaultCohortConfig())
	}

	// Non-postgres sources still persist reports when a database is
	// configured; otherwise reports live in memory for the process.
	if c.Config.Database.URL != "" {
		db, err := c.openDatabase(ctx)
		if err != nil {
			return err
		}
		c.DB = db
		c.Reports = postgres.NewReportRepository(db)
	} else {
		c.Logger.Info("no database configured, storing reports in memory")
		c.Reports = testkit.NewMemoryReportRepository()
	}
	return nil
}

func (c *Container) openDatabase(ctx context.Context) (*sqlx.DB, error) {
	if c.Config.Database.URL == "" {
		return nil, errors.ConfigInvalid("DATABASE_URL is required for the postgres source")
	}

	db, err := sqlx.ConnectContext(ctx, "postgres", c.Config.Database.URL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := postgres.NewMigrator(db).Up(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "database migration failed")
	}
	return db, nil
}

func (c *Container) initEngines() error {
	tier, err := domainPrivacy.TierByName(c.Config.Privacy.Tier)
	if err != nil {
		return err
	}
	c.PrivacyEngine = privacy.NewEngine(privacy.Config{
		TotalBudget: c.Config.Privacy.TotalBudget,
		KThreshold:  c.Config.Privacy.KThreshold,
		DefaultTier: tier,
		Seed:        c.Config.Privacy.Seed,
	})

	outcomeTier, err := domainPrivacy.TierByName(c.Config.Report.OutcomeTier)
	if err != nil {
		return err
	}
	utilizationTier, err := domainPrivacy.TierByName(c.Config.Report.UtilizationTier)
	if err != nil {
		return err
	}

	c.StatsEngine = stats.New(stats.Config{
		Alpha:           c.Config.Stats.Alpha,
		ConfidenceLevel: c.Config.Stats.ConfidenceLevel,
	})

	c.Composer = app.NewOutcomeComposer(c.Provider, c.StatsEngine, c.Logger, app.ComposerConfig{
		MinimumSampleSize:   c.Config.Report.MinimumSampleSize,
		MaxConcurrentGroups: c.Config.Report.MaxConcurrentGroups,
		OutcomeTier:         outcomeTier,
		UtilizationTier:     utilizationTier,
	})
	return nil
}

// Shutdown releases held resources
func (c *Container) Shutdown(ctx context.Context) error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
