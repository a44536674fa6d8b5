package postgres

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// migration is one versioned schema step. The list is append-only; editing
// an applied migration trips the checksum guard.
type migration struct {
	Version string
	SQL     string
}

var migrations = []migration{
	{
		Version: "001_assessments",
		SQL: `
			CREATE TABLE IF NOT EXISTS assessments (
				id BIGSERIAL PRIMARY KEY,
				subject_id TEXT NOT NULL,
				intervention TEXT NOT NULL,
				instrument TEXT NOT NULL,
				phase TEXT NOT NULL CHECK (phase IN ('baseline', 'followup')),
				score DOUBLE PRECISION NOT NULL,
				observed_at TIMESTAMPTZ NOT NULL
			);
			CREATE UNIQUE INDEX IF NOT EXISTS idx_assessments_phase
				ON assessments (subject_id, intervention, instrument, phase);
			CREATE INDEX IF NOT EXISTS idx_assessments_group
				ON assessments (intervention, instrument, observed_at);
		`,
	},
	{
		Version: "002_service_enrollments",
		SQL: `
			CREATE TABLE IF NOT EXISTS service_enrollments (
				id BIGSERIAL PRIMARY KEY,
				subject_id TEXT NOT NULL,
				service_type TEXT NOT NULL,
				sessions INTEGER NOT NULL,
				duration_minutes DOUBLE PRECISION NOT NULL,
				completed BOOLEAN NOT NULL,
				enrolled_at TIMESTAMPTZ NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_enrollments_window
				ON service_enrollments (enrolled_at);
		`,
	},
	{
		Version: "003_reports",
		SQL: `
			CREATE TABLE IF NOT EXISTS reports (
				id TEXT PRIMARY KEY,
				generated_at TIMESTAMPTZ NOT NULL,
				window_start TIMESTAMPTZ NOT NULL,
				window_end TIMESTAMPTZ NOT NULL,
				groups_analyzed INTEGER NOT NULL,
				groups_skipped INTEGER NOT NULL,
				data_quality DOUBLE PRECISION NOT NULL,
				budget_health TEXT NOT NULL,
				payload JSONB NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_reports_generated
				ON reports (generated_at DESC);
		`,
	},
}

// Migrator applies pending schema migrations with checksum bookkeeping
type Migrator struct {
	db *sqlx.DB
}

// NewMigrator creates a new migrator
func NewMigrator(db *sqlx.DB) *Migrator {
	return &Migrator{db: db}
}

// Up applies every pending migration in order
func (m *Migrator) Up(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			checksum TEXT NOT NULL,
			applied_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := m.appliedMigrations(ctx)
	if err != nil {
		return err
	}

	for _, mig := range migrations {
		checksum := fmt.Sprintf("%x", sha256.Sum256([]byte(mig.SQL)))

		if existing, ok := applied[mig.Version]; ok {
			if existing != checksum {
				return fmt.Errorf("migration %s changed after being applied", mig.Version)
			}
			continue
		}

		if err := m.apply(ctx, mig, checksum); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", mig.Version, err)
		}
	}

	return nil
}

func (m *Migrator) appliedMigrations(ctx context.Context) (map[string]string, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT version, checksum FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("failed to read applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]string)
	for rows.Next() {
		var version, checksum string
		if err := rows.Scan(&version, &checksum); err != nil {
			return nil, err
		}
		applied[version] = checksum
	}
	return applied, rows.Err()
}

func (m *Migrator) apply(ctx context.Context, mig migration, checksum string) error {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, mig.SQL); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, checksum) VALUES ($1, $2)`,
		mig.Version, checksum); err != nil {
		return err
	}

	return tx.Commit()
}
