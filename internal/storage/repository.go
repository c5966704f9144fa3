package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"verbrauch/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository persists source configurations and monthly reports. It
// implements both store.ConfigStore and store.ReportStore.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, queries: New(db)}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// List implements store.ConfigStore.
func (r *SQLiteRepository) List(ctx context.Context) ([]core.SourceConfig, error) {
	rows, err := r.queries.ListSourceConfigs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list source configs: %w", err)
	}
	return configsFromRows(rows), nil
}

// ListEnabled implements store.ConfigStore.
func (r *SQLiteRepository) ListEnabled(ctx context.Context) ([]core.SourceConfig, error) {
	rows, err := r.queries.ListEnabledSourceConfigs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list enabled source configs: %w", err)
	}
	return configsFromRows(rows), nil
}

// Get implements store.ConfigStore.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (core.SourceConfig, error) {
	row, err := r.queries.GetSourceConfig(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.SourceConfig{}, core.ErrConfigNotFound
	}
	if err != nil {
		return core.SourceConfig{}, fmt.Errorf("get source config %s: %w", id, err)
	}
	return configFromRow(row), nil
}

// Save implements store.ConfigStore. It validates before writing and
// overwrites any existing config with the same ID.
func (r *SQLiteRepository) Save(ctx context.Context, cfg core.SourceConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	err := r.queries.UpsertSourceConfig(ctx, UpsertSourceConfigParams{
		ID:               cfg.ID,
		Name:             cfg.Name,
		Type:             string(cfg.Type),
		URL:              cfg.URL,
		Username:         cfg.Username,
		Password:         cfg.Password,
		Port:             int64(cfg.Port),
		OrganizationName: cfg.OrganizationName,
		Enabled:          cfg.Enabled,
	})
	if err != nil {
		return fmt.Errorf("save source config %s: %w", cfg.ID, err)
	}
	return nil
}

// Delete implements store.ConfigStore.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	affected, err := r.queries.DeleteSourceConfig(ctx, id)
	if err != nil {
		return fmt.Errorf("delete source config %s: %w", id, err)
	}
	if affected == 0 {
		return core.ErrConfigNotFound
	}
	return nil
}

// SaveReport implements store.ReportStore. The category payload is stored as
// JSON; the report is small and always read wholesale.
func (r *SQLiteRepository) SaveReport(ctx context.Context, rep core.MonthlyReport) error {
	categories, err := json.Marshal(rep.Categories)
	if err != nil {
		return fmt.Errorf("encode report categories: %w", err)
	}
	meta, err := json.Marshal(rep.Meta)
	if err != nil {
		return fmt.Errorf("encode report meta: %w", err)
	}
	err = r.queries.UpsertReport(ctx, UpsertReportParams{
		ID:         rep.ID,
		Month:      int64(rep.Month),
		Year:       int64(rep.Year),
		CapturedAt: rep.CapturedAt,
		Title:      rep.Title,
		Categories: string(categories),
		Meta:       string(meta),
	})
	if err != nil {
		return fmt.Errorf("save report %s: %w", rep.ID, err)
	}
	return nil
}

// GetReport implements store.ReportStore.
func (r *SQLiteRepository) GetReport(ctx context.Context, id string) (core.MonthlyReport, error) {
	row, err := r.queries.GetReport(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.MonthlyReport{}, core.ErrReportNotFound
	}
	if err != nil {
		return core.MonthlyReport{}, fmt.Errorf("get report %s: %w", id, err)
	}
	return reportFromRow(row)
}

// ListReports implements store.ReportStore, newest period first.
func (r *SQLiteRepository) ListReports(ctx context.Context) ([]core.MonthlyReport, error) {
	rows, err := r.queries.ListReports(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	out := make([]core.MonthlyReport, 0, len(rows))
	for _, row := range rows {
		rep, err := reportFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	return out, nil
}

// DeleteReport implements store.ReportStore.
func (r *SQLiteRepository) DeleteReport(ctx context.Context, id string) error {
	affected, err := r.queries.DeleteReport(ctx, id)
	if err != nil {
		return fmt.Errorf("delete report %s: %w", id, err)
	}
	if affected == 0 {
		return core.ErrReportNotFound
	}
	return nil
}

func configFromRow(row SourceConfigRow) core.SourceConfig {
	return core.SourceConfig{
		ID:               row.ID,
		Name:             row.Name,
		Type:             core.SourceType(row.Type),
		URL:              row.URL,
		Username:         row.Username,
		Password:         row.Password,
		Port:             int(row.Port),
		OrganizationName: row.OrganizationName,
		Enabled:          row.Enabled,
	}
}

func configsFromRows(rows []SourceConfigRow) []core.SourceConfig {
	out := make([]core.SourceConfig, 0, len(rows))
	for _, row := range rows {
		out = append(out, configFromRow(row))
	}
	return out
}

func reportFromRow(row ReportRow) (core.MonthlyReport, error) {
	rep := core.MonthlyReport{
		ID:         row.ID,
		Month:      int(row.Month),
		Year:       int(row.Year),
		CapturedAt: row.CapturedAt,
		Title:      row.Title,
	}
	if err := json.Unmarshal([]byte(row.Categories), &rep.Categories); err != nil {
		return core.MonthlyReport{}, fmt.Errorf("decode categories of report %s: %w", row.ID, err)
	}
	if err := json.Unmarshal([]byte(row.Meta), &rep.Meta); err != nil {
		return core.MonthlyReport{}, fmt.Errorf("decode meta of report %s: %w", row.ID, err)
	}
	return rep, nil
}
