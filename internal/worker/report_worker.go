// Package worker runs report generation off the request path: it consumes
// queued report jobs and backfills the previous month on a schedule.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"verbrauch/internal/amqp"
	"verbrauch/internal/core"
	"verbrauch/internal/report"
)

// ReportExporter pushes a finished report to an external destination, such
// as the billing spreadsheet. Optional.
type ReportExporter interface {
	Export(ctx context.Context, rep core.MonthlyReport) error
}

// ReportWorker handles queued report jobs and the monthly backfill.
type ReportWorker struct {
	generator *report.Generator
	exporter  ReportExporter
	now       func() time.Time
}

func NewReportWorker(generator *report.Generator, exporter ReportExporter) *ReportWorker {
	return &ReportWorker{
		generator: generator,
		exporter:  exporter,
		now:       time.Now,
	}
}

// HandleReportJob processes one queued job. A hard generation error is
// returned so the delivery gets requeued; export failures are logged only,
// since the report itself is already persisted.
func (w *ReportWorker) HandleReportJob(ctx context.Context, msg *amqp.ReportJobMessage) error {
	res, err := w.generator.GenerateMonthly(ctx, msg.Month, msg.Year)
	if err != nil {
		return fmt.Errorf("generate report %d/%d: %w", msg.Month, msg.Year, err)
	}

	if res.Advisory != report.AdvisoryNone {
		slog.WarnContext(ctx, "Report generated with degraded data",
			"report_id", res.Report.ID,
			"advisory", string(res.Advisory),
			"failed_sources", len(res.SourceErrors))
	}

	w.exportReport(ctx, res.Report)
	return nil
}

// RunScheduledCheck generates the previous month's report once per tick if
// it does not exist yet. It blocks until ctx is cancelled.
func (w *ReportWorker) RunScheduledCheck(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run once at startup so a restarted worker catches up immediately.
	w.ensurePreviousMonth(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping scheduled report check", "reason", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			w.ensurePreviousMonth(ctx)
		}
	}
}

func (w *ReportWorker) ensurePreviousMonth(ctx context.Context) {
	month, year := report.PreviousPeriod(w.now())

	res, generated, err := w.generator.EnsureMonth(ctx, month, year)
	if err != nil {
		slog.ErrorContext(ctx, "Scheduled report generation failed",
			"month", month, "year", year, "error", err)
		return
	}
	if !generated {
		slog.DebugContext(ctx, "Report already exists, skipping",
			"month", month, "year", year)
		return
	}

	slog.InfoContext(ctx, "Scheduled report generated",
		"report_id", res.Report.ID,
		"customers", res.Report.Meta.TotalCustomers)
	w.exportReport(ctx, res.Report)
}

func (w *ReportWorker) exportReport(ctx context.Context, rep core.MonthlyReport) {
	if w.exporter == nil {
		return
	}
	if err := w.exporter.Export(ctx, rep); err != nil {
		slog.ErrorContext(ctx, "Failed to export report",
			"report_id", rep.ID, "error", err)
		return
	}
	slog.InfoContext(ctx, "Report exported", "report_id", rep.ID)
}
