package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"verbrauch/internal/core"
	applog "verbrauch/internal/log"
	"verbrauch/internal/store/memory"
	"verbrauch/internal/veeam"
)

// fakeFetcher replays canned results keyed by config ID, preserving input
// order the way the real client does.
type fakeFetcher struct {
	results map[string]veeam.Result
}

func (f *fakeFetcher) FetchAll(_ context.Context, configs []core.SourceConfig) []veeam.Result {
	out := make([]veeam.Result, 0, len(configs))
	for _, cfg := range configs {
		res, ok := f.results[cfg.ID]
		if !ok {
			res = veeam.Result{Config: cfg, Err: "no canned result"}
		}
		res.Config = cfg
		out = append(out, res)
	}
	return out
}

func testGenerator(t *testing.T, fetcher *fakeFetcher, configs ...core.SourceConfig) (*Generator, *memory.Store) {
	t.Helper()
	s := memory.New()
	for _, cfg := range configs {
		if err := s.Save(context.Background(), cfg); err != nil {
			t.Fatalf("seed config: %v", err)
		}
	}
	g := NewGenerator(fetcher, s, s, applog.New(applog.DefaultConfig()))
	g.now = func() time.Time { return time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC) }
	return g, s
}

func enabledCC(id, name string) core.SourceConfig {
	return core.SourceConfig{
		ID: id, Name: name, Type: core.CloudConnect,
		URL: "https://" + id + ".example.com", Username: "svc", Password: "pw", Enabled: true,
	}
}

func TestGenerateMonthlyHappyPath(t *testing.T) {
	fetcher := &fakeFetcher{results: map[string]veeam.Result{
		"cc1": {Payload: &veeam.Payload{Repositories: []veeam.Repository{
			{Name: "r1", Customer: "Acme", UsageGB: 1024},
		}}},
	}}
	g, s := testGenerator(t, fetcher, enabledCC("cc1", "CC Primary"))

	res, err := g.GenerateMonthly(context.Background(), 3, 2024)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Advisory != AdvisoryNone {
		t.Errorf("advisory = %q", res.Advisory)
	}
	if len(res.SourceErrors) != 0 {
		t.Errorf("source errors = %+v", res.SourceErrors)
	}

	stored, err := s.GetReport(context.Background(), "verbrauch-2024-03")
	if err != nil {
		t.Fatalf("stored report: %v", err)
	}
	if stored.Meta.TotalCustomers != 1 {
		t.Errorf("meta = %+v", stored.Meta)
	}
}

func TestGenerateMonthlyPartialFailure(t *testing.T) {
	fetcher := &fakeFetcher{results: map[string]veeam.Result{
		"cc1": {Payload: &veeam.Payload{Repositories: []veeam.Repository{
			{Name: "r1", Customer: "Acme", UsageGB: 2048},
		}}},
		"cc2": {Err: "HTTP 503: Service Unavailable"},
	}}
	g, _ := testGenerator(t, fetcher, enabledCC("cc1", "CC Primary"), enabledCC("cc2", "CC Secondary"))

	res, err := g.GenerateMonthly(context.Background(), 3, 2024)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Advisory != AdvisoryPartial {
		t.Errorf("advisory = %q", res.Advisory)
	}
	if len(res.SourceErrors) != 1 || res.SourceErrors[0].ConfigName != "CC Secondary" {
		t.Errorf("source errors = %+v", res.SourceErrors)
	}
	// The healthy source's data still made it into the report.
	cc := findCategory(t, res.Report.Categories, CategoryCloudConnect)
	if len(cc.Usages) != 1 || cc.Usages[0].Usage != 2.0 {
		t.Errorf("usages = %+v", cc.Usages)
	}
}

func TestGenerateMonthlyAllSourcesDown(t *testing.T) {
	fetcher := &fakeFetcher{results: map[string]veeam.Result{
		"cc1": {Err: "connection refused"},
	}}
	g, s := testGenerator(t, fetcher, enabledCC("cc1", "CC Primary"))

	res, err := g.GenerateMonthly(context.Background(), 3, 2024)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Advisory != AdvisoryAllSourcesDown {
		t.Errorf("advisory = %q", res.Advisory)
	}
	// An empty report is still persisted.
	if _, err := s.GetReport(context.Background(), "verbrauch-2024-03"); err != nil {
		t.Errorf("empty report not persisted: %v", err)
	}
}

func TestGenerateMonthlyEmptyAggregate(t *testing.T) {
	fetcher := &fakeFetcher{results: map[string]veeam.Result{
		"cc1": {Payload: &veeam.Payload{}},
	}}
	g, s := testGenerator(t, fetcher, enabledCC("cc1", "CC Primary"))

	res, err := g.GenerateMonthly(context.Background(), 3, 2024)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	// All sources answered, none carried usage data.
	if res.Advisory != AdvisoryEmptyAggregate {
		t.Errorf("advisory = %q", res.Advisory)
	}
	if len(res.SourceErrors) != 0 {
		t.Errorf("source errors = %+v", res.SourceErrors)
	}
	stored, err := s.GetReport(context.Background(), "verbrauch-2024-03")
	if err != nil {
		t.Fatalf("empty report not persisted: %v", err)
	}
	if stored.Meta.TotalCustomers != 0 {
		t.Errorf("meta = %+v", stored.Meta)
	}
}

func TestGenerateMonthlyNoActiveSources(t *testing.T) {
	g, _ := testGenerator(t, &fakeFetcher{})

	res, err := g.GenerateMonthly(context.Background(), 3, 2024)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Advisory != AdvisoryNoActiveSources {
		t.Errorf("advisory = %q", res.Advisory)
	}
	if res.Report.Meta.TotalCustomers != 0 {
		t.Errorf("meta = %+v", res.Report.Meta)
	}
}

func TestGenerateMonthlyRejectsBadPeriod(t *testing.T) {
	g, _ := testGenerator(t, &fakeFetcher{})
	if _, err := g.GenerateMonthly(context.Background(), 13, 2024); !errors.Is(err, core.ErrInvalidMonth) {
		t.Errorf("err = %v", err)
	}
	if _, err := g.GenerateMonthly(context.Background(), 1, 1999); !errors.Is(err, core.ErrInvalidYear) {
		t.Errorf("err = %v", err)
	}
}

func TestGenerateMonthlyOverwritesSamePeriod(t *testing.T) {
	fetcher := &fakeFetcher{results: map[string]veeam.Result{
		"cc1": {Payload: &veeam.Payload{Repositories: []veeam.Repository{
			{Name: "r1", Customer: "Acme", UsageGB: 1024},
		}}},
	}}
	g, s := testGenerator(t, fetcher, enabledCC("cc1", "CC Primary"))

	if _, err := g.GenerateMonthly(context.Background(), 3, 2024); err != nil {
		t.Fatalf("first run: %v", err)
	}
	fetcher.results["cc1"] = veeam.Result{Payload: &veeam.Payload{Repositories: []veeam.Repository{
		{Name: "r1", Customer: "Acme", UsageGB: 2048},
	}}}
	if _, err := g.GenerateMonthly(context.Background(), 3, 2024); err != nil {
		t.Fatalf("second run: %v", err)
	}

	list, err := s.ListReports(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("got %d reports, want 1", len(list))
	}
	cc := findCategory(t, list[0].Categories, CategoryCloudConnect)
	if cc.Usages[0].Usage != 2.0 {
		t.Errorf("usage after regeneration = %v", cc.Usages[0].Usage)
	}
}

func TestEnsureMonthSkipsExisting(t *testing.T) {
	fetcher := &fakeFetcher{results: map[string]veeam.Result{}}
	g, s := testGenerator(t, fetcher)

	seed := core.MonthlyReport{ID: core.ReportID(2024, 2), Year: 2024, Month: 2}
	if err := s.SaveReport(context.Background(), seed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, generated, err := g.EnsureMonth(context.Background(), 2, 2024)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if generated {
		t.Error("expected existing report to be kept")
	}

	_, generated, err = g.EnsureMonth(context.Background(), 1, 2024)
	if err != nil {
		t.Fatalf("ensure new: %v", err)
	}
	if !generated {
		t.Error("expected missing month to be generated")
	}
}

func TestPreviousPeriod(t *testing.T) {
	cases := []struct {
		in          time.Time
		month, year int
	}{
		{time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC), 2, 2024},
		{time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 12, 2023},
		{time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC), 6, 2024},
	}
	for _, c := range cases {
		m, y := PreviousPeriod(c.in)
		if m != c.month || y != c.year {
			t.Errorf("PreviousPeriod(%s) = %d/%d, want %d/%d", c.in, m, y, c.month, c.year)
		}
	}
}
