package storage

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is the subset of *sql.DB and *sql.Tx the query layer needs.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Queries holds the hand-written SQL behind the repository, one method per
// statement.
type Queries struct {
	db DBTX
}

// SourceConfigRow mirrors one source_configs row.
type SourceConfigRow struct {
	ID               string
	Name             string
	Type             string
	URL              string
	Username         string
	Password         string
	Port             int64
	OrganizationName string
	Enabled          bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ReportRow mirrors one reports row. Categories and Meta hold JSON.
type ReportRow struct {
	ID         string
	Month      int64
	Year       int64
	CapturedAt time.Time
	Title      string
	Categories string
	Meta       string
}

const upsertSourceConfig = `
INSERT INTO source_configs (id, name, type, url, username, password, port, organization_name, enabled, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (id) DO UPDATE SET
    name = excluded.name,
    type = excluded.type,
    url = excluded.url,
    username = excluded.username,
    password = excluded.password,
    port = excluded.port,
    organization_name = excluded.organization_name,
    enabled = excluded.enabled,
    updated_at = CURRENT_TIMESTAMP
`

type UpsertSourceConfigParams struct {
	ID               string
	Name             string
	Type             string
	URL              string
	Username         string
	Password         string
	Port             int64
	OrganizationName string
	Enabled          bool
}

func (q *Queries) UpsertSourceConfig(ctx context.Context, arg UpsertSourceConfigParams) error {
	_, err := q.db.ExecContext(ctx, upsertSourceConfig,
		arg.ID, arg.Name, arg.Type, arg.URL, arg.Username, arg.Password,
		arg.Port, arg.OrganizationName, arg.Enabled)
	return err
}

const getSourceConfig = `
SELECT id, name, type, url, username, password, port, organization_name, enabled, created_at, updated_at
FROM source_configs WHERE id = ?
`

func (q *Queries) GetSourceConfig(ctx context.Context, id string) (SourceConfigRow, error) {
	var row SourceConfigRow
	err := q.db.QueryRowContext(ctx, getSourceConfig, id).Scan(
		&row.ID, &row.Name, &row.Type, &row.URL, &row.Username, &row.Password,
		&row.Port, &row.OrganizationName, &row.Enabled, &row.CreatedAt, &row.UpdatedAt)
	return row, err
}

const listSourceConfigs = `
SELECT id, name, type, url, username, password, port, organization_name, enabled, created_at, updated_at
FROM source_configs ORDER BY name COLLATE NOCASE
`

func (q *Queries) ListSourceConfigs(ctx context.Context) ([]SourceConfigRow, error) {
	return q.querySourceConfigs(ctx, listSourceConfigs)
}

const listEnabledSourceConfigs = `
SELECT id, name, type, url, username, password, port, organization_name, enabled, created_at, updated_at
FROM source_configs WHERE enabled = 1 ORDER BY name COLLATE NOCASE
`

func (q *Queries) ListEnabledSourceConfigs(ctx context.Context) ([]SourceConfigRow, error) {
	return q.querySourceConfigs(ctx, listEnabledSourceConfigs)
}

func (q *Queries) querySourceConfigs(ctx context.Context, query string) ([]SourceConfigRow, error) {
	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SourceConfigRow
	for rows.Next() {
		var row SourceConfigRow
		if err := rows.Scan(
			&row.ID, &row.Name, &row.Type, &row.URL, &row.Username, &row.Password,
			&row.Port, &row.OrganizationName, &row.Enabled, &row.CreatedAt, &row.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

const deleteSourceConfig = `DELETE FROM source_configs WHERE id = ?`

func (q *Queries) DeleteSourceConfig(ctx context.Context, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteSourceConfig, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const upsertReport = `
INSERT INTO reports (id, month, year, captured_at, title, categories, meta)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    captured_at = excluded.captured_at,
    title = excluded.title,
    categories = excluded.categories,
    meta = excluded.meta
`

type UpsertReportParams struct {
	ID         string
	Month      int64
	Year       int64
	CapturedAt time.Time
	Title      string
	Categories string
	Meta       string
}

func (q *Queries) UpsertReport(ctx context.Context, arg UpsertReportParams) error {
	_, err := q.db.ExecContext(ctx, upsertReport,
		arg.ID, arg.Month, arg.Year, arg.CapturedAt, arg.Title, arg.Categories, arg.Meta)
	return err
}

const getReport = `
SELECT id, month, year, captured_at, title, categories, meta
FROM reports WHERE id = ?
`

func (q *Queries) GetReport(ctx context.Context, id string) (ReportRow, error) {
	var row ReportRow
	err := q.db.QueryRowContext(ctx, getReport, id).Scan(
		&row.ID, &row.Month, &row.Year, &row.CapturedAt, &row.Title, &row.Categories, &row.Meta)
	return row, err
}

const listReports = `
SELECT id, month, year, captured_at, title, categories, meta
FROM reports ORDER BY year DESC, month DESC
`

func (q *Queries) ListReports(ctx context.Context) ([]ReportRow, error) {
	rows, err := q.db.QueryContext(ctx, listReports)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReportRow
	for rows.Next() {
		var row ReportRow
		if err := rows.Scan(
			&row.ID, &row.Month, &row.Year, &row.CapturedAt, &row.Title, &row.Categories, &row.Meta); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

const deleteReport = `DELETE FROM reports WHERE id = ?`

func (q *Queries) DeleteReport(ctx context.Context, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteReport, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
