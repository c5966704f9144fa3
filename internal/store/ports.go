package store

import (
	"context"

	"verbrauch/internal/core"
)

// Ports for the persistence adapters. The sqlite repository implements both;
// the memory store backs tests and the zero-setup default backend.
type (
	// ConfigStore keeps the source server configurations.
	ConfigStore interface {
		List(ctx context.Context) ([]core.SourceConfig, error)
		Get(ctx context.Context, id string) (core.SourceConfig, error)
		// Save inserts or overwrites by config ID.
		Save(ctx context.Context, cfg core.SourceConfig) error
		Delete(ctx context.Context, id string) error
		ListEnabled(ctx context.Context) ([]core.SourceConfig, error)
	}

	// ReportStore keeps assembled monthly reports keyed by report ID. Method
	// names are disambiguated from ConfigStore so one repository can satisfy
	// both ports.
	ReportStore interface {
		// SaveReport overwrites any prior report stored under the same ID.
		SaveReport(ctx context.Context, r core.MonthlyReport) error
		GetReport(ctx context.Context, id string) (core.MonthlyReport, error)
		// ListReports returns all reports sorted descending by (year, month).
		ListReports(ctx context.Context) ([]core.MonthlyReport, error)
		DeleteReport(ctx context.Context, id string) error
	}
)
