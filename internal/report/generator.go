package report

import (
	"context"
	"fmt"
	"time"

	"verbrauch/internal/core"
	applog "verbrauch/internal/log"
	"verbrauch/internal/store"
	"verbrauch/internal/veeam"
)

// Advisory classifies the quality of a generated report. A report is always
// assembled and persisted; the advisory tells the caller what to surface.
type Advisory string

const (
	AdvisoryNone            Advisory = ""
	AdvisoryNoActiveSources Advisory = "no_active_sources"
	AdvisoryAllSourcesDown  Advisory = "all_sources_down"
	AdvisoryEmptyAggregate  Advisory = "empty_aggregate"
	AdvisoryPartial         Advisory = "partial"
)

// SourceError carries one failed source fetch for display next to the report.
type SourceError struct {
	ConfigName string
	Message    string
}

// GenerateResult pairs the persisted report with its fetch diagnostics.
type GenerateResult struct {
	Report       core.MonthlyReport
	Advisory     Advisory
	SourceErrors []SourceError
}

// SourceFetcher is the slice of the Veeam client the generator needs.
type SourceFetcher interface {
	FetchAll(ctx context.Context, configs []core.SourceConfig) []veeam.Result
}

// Generator orchestrates a report run: load enabled configs, fetch all
// sources, normalize, assemble, persist.
type Generator struct {
	fetcher SourceFetcher
	configs store.ConfigStore
	reports store.ReportStore
	log     *applog.Logger
	now     func() time.Time
}

func NewGenerator(fetcher SourceFetcher, configs store.ConfigStore, reports store.ReportStore, logger *applog.Logger) *Generator {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig()).WithComponent("report")
	}
	return &Generator{
		fetcher: fetcher,
		configs: configs,
		reports: reports,
		log:     logger,
		now:     time.Now,
	}
}

// GenerateMonthly builds and persists the report for the given period,
// overwriting any prior report for the same month. Source failures degrade
// the report but never abort it; only invalid input or a failed write is a
// hard error.
func (g *Generator) GenerateMonthly(ctx context.Context, month, year int) (GenerateResult, error) {
	if err := core.ValidatePeriod(month, year); err != nil {
		return GenerateResult{}, err
	}

	configs, err := g.configs.ListEnabled(ctx)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("load source configs: %w", err)
	}

	results := g.fetcher.FetchAll(ctx, configs)

	var srcErrs []SourceError
	for _, res := range results {
		if !res.OK() {
			srcErrs = append(srcErrs, SourceError{ConfigName: res.Config.Name, Message: res.Err})
		}
	}

	rep := Assemble(month, year, g.now(), Normalize(results))
	if err := g.reports.SaveReport(ctx, rep); err != nil {
		return GenerateResult{}, fmt.Errorf("persist report %s: %w", rep.ID, err)
	}

	out := GenerateResult{Report: rep, SourceErrors: srcErrs}
	switch {
	case len(configs) == 0:
		out.Advisory = AdvisoryNoActiveSources
	case len(srcErrs) == len(results) && len(results) > 0:
		out.Advisory = AdvisoryAllSourcesDown
	case len(srcErrs) > 0:
		out.Advisory = AdvisoryPartial
	case rep.Meta.TotalCustomers == 0:
		// Every source answered but none carried usage data.
		out.Advisory = AdvisoryEmptyAggregate
	}

	g.log.InfoContext(ctx, "report generated",
		"report_id", rep.ID,
		"sources", len(configs),
		"failed_sources", len(srcErrs),
		"customers", rep.Meta.TotalCustomers,
	)
	return out, nil
}

// EnsureMonth generates the report for the given period only if none exists
// yet. The scheduler uses it so a manual regeneration is never clobbered.
func (g *Generator) EnsureMonth(ctx context.Context, month, year int) (GenerateResult, bool, error) {
	if err := core.ValidatePeriod(month, year); err != nil {
		return GenerateResult{}, false, err
	}
	if _, err := g.reports.GetReport(ctx, core.ReportID(year, month)); err == nil {
		return GenerateResult{}, false, nil
	}
	res, err := g.GenerateMonthly(ctx, month, year)
	if err != nil {
		return GenerateResult{}, false, err
	}
	return res, true, nil
}

// PreviousPeriod returns the billing period of the month before t. Going via
// the first of the month keeps late-month dates from overshooting.
func PreviousPeriod(t time.Time) (month, year int) {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	prev := first.AddDate(0, 0, -1)
	return int(prev.Month()), prev.Year()
}
