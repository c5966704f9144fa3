package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"verbrauch/internal/core"
	"verbrauch/internal/report"
	"verbrauch/internal/store/memory"
	"verbrauch/internal/veeam"
)

type fakeGenerator struct {
	result  report.GenerateResult
	err     error
	reports *memory.Store
	calls   int
}

func (f *fakeGenerator) GenerateMonthly(ctx context.Context, month, year int) (report.GenerateResult, error) {
	f.calls++
	if f.err != nil {
		return report.GenerateResult{}, f.err
	}
	res := f.result
	if res.Report.ID == "" {
		res.Report = core.MonthlyReport{
			ID: core.ReportID(year, month), Month: month, Year: year,
			CapturedAt: time.Now(), Title: "Verbrauchsbericht " + core.MonthName(month),
		}
	}
	if f.reports != nil {
		_ = f.reports.SaveReport(ctx, res.Report)
	}
	return res, nil
}

type fakeTester struct{ err error }

func (f fakeTester) TestConnection(context.Context, veeam.Params) error { return f.err }

type fakePublisher struct {
	published []string
	err       error
}

func (f *fakePublisher) PublishReportJob(_ context.Context, month, year int) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, core.ReportID(year, month))
	return nil
}

func newTestServer(t *testing.T, gen ReportGenerator, tester ConnectionTester, pub JobPublisher) (*Server, *memory.Store) {
	t.Helper()
	s := memory.New()
	srv := NewServer(":0", s, s, gen, tester, pub)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv, s
}

func postForm(srv *Server, path string, form url.Values) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestIndexAndHealth(t *testing.T) {
	srv, _ := newTestServer(t, &fakeGenerator{}, fakeTester{}, nil)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != 200 {
		t.Fatalf("index status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Bericht erstellen") {
		t.Fatalf("index body missing heading")
	}

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		srv.Handler.ServeHTTP(rr, req)
		if rr.Code != 200 {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestSaveAndDeleteConfig(t *testing.T) {
	srv, store := newTestServer(t, &fakeGenerator{}, fakeTester{}, nil)

	form := url.Values{
		"name":     {"CC Primary"},
		"type":     {"cloudconnect"},
		"url":      {"https://cc.example.com"},
		"username": {"svc"},
		"password": {"pw"},
		"enabled":  {"1"},
	}
	rr := postForm(srv, "/configs", form)
	if rr.Code != 200 {
		t.Fatalf("save status=%d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), "config:saved") {
		t.Errorf("missing trigger header: %s", rr.Header().Get("HX-Trigger"))
	}

	configs, err := store.List(context.Background())
	if err != nil || len(configs) != 1 {
		t.Fatalf("configs = %v, %v", configs, err)
	}
	if configs[0].ID == "" {
		t.Error("server did not assign an ID")
	}

	rr = postForm(srv, "/configs/delete", url.Values{"id": {configs[0].ID}})
	if rr.Code != 200 {
		t.Fatalf("delete status=%d", rr.Code)
	}
	if left, _ := store.List(context.Background()); len(left) != 0 {
		t.Errorf("config not deleted: %v", left)
	}
}

func TestSaveConfigValidation(t *testing.T) {
	srv, _ := newTestServer(t, &fakeGenerator{}, fakeTester{}, nil)

	// Missing URL
	rr := postForm(srv, "/configs", url.Values{
		"name": {"x"}, "type": {"vbr"}, "username": {"svc"},
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rr.Code)
	}

	// Unknown type
	rr = postForm(srv, "/configs", url.Values{
		"name": {"x"}, "type": {"netapp"}, "url": {"https://x.example.com"}, "username": {"svc"},
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rr.Code)
	}
}

func TestTestConnectionEndpoint(t *testing.T) {
	okSrv, _ := newTestServer(t, &fakeGenerator{}, fakeTester{}, nil)
	form := url.Values{
		"type": {"vbr"}, "url": {"https://vbr.example.com"}, "username": {"svc"}, "password": {"pw"},
	}
	rr := postForm(okSrv, "/configs/test", form)
	if rr.Code != 200 || !strings.Contains(rr.Body.String(), "erfolgreich") {
		t.Errorf("status=%d body=%s", rr.Code, rr.Body.String())
	}

	failSrv, _ := newTestServer(t, &fakeGenerator{}, fakeTester{err: errors.New("HTTP 401")}, nil)
	rr = postForm(failSrv, "/configs/test", form)
	if !strings.Contains(rr.Body.String(), "fehlgeschlagen") {
		t.Errorf("body = %s", rr.Body.String())
	}
}

func TestGenerateReportInline(t *testing.T) {
	gen := &fakeGenerator{}
	srv, store := newTestServer(t, gen, fakeTester{}, nil)
	gen.reports = store

	rr := postForm(srv, "/reports/generate", url.Values{"month": {"3"}, "year": {"2024"}})
	if rr.Code != 200 {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if gen.calls != 1 {
		t.Errorf("generator calls = %d", gen.calls)
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), "report:generated") {
		t.Errorf("trigger header = %s", rr.Header().Get("HX-Trigger"))
	}
}

func TestGenerateReportQueued(t *testing.T) {
	pub := &fakePublisher{}
	gen := &fakeGenerator{}
	srv, _ := newTestServer(t, gen, fakeTester{}, pub)

	rr := postForm(srv, "/reports/generate", url.Values{"month": {"3"}, "year": {"2024"}})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status=%d", rr.Code)
	}
	if gen.calls != 0 {
		t.Errorf("inline generation despite publisher")
	}
	if len(pub.published) != 1 || pub.published[0] != "verbrauch-2024-03" {
		t.Errorf("published = %v", pub.published)
	}
}

func TestGenerateReportRejectsBadPeriod(t *testing.T) {
	srv, _ := newTestServer(t, &fakeGenerator{}, fakeTester{}, nil)
	rr := postForm(srv, "/reports/generate", url.Values{"month": {"13"}, "year": {"2024"}})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rr.Code)
	}
}

func TestGenerateReportPartialAdvisory(t *testing.T) {
	gen := &fakeGenerator{result: report.GenerateResult{
		Advisory:     report.AdvisoryPartial,
		SourceErrors: []report.SourceError{{ConfigName: "CC Secondary", Message: "HTTP 503"}},
	}}
	srv, _ := newTestServer(t, gen, fakeTester{}, nil)

	rr := postForm(srv, "/reports/generate", url.Values{"month": {"3"}, "year": {"2024"}})
	if rr.Code != 200 {
		t.Fatalf("status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "CC Secondary") {
		t.Errorf("body missing failed source: %s", rr.Body.String())
	}
}

func TestGenerateReportEmptyAggregateAdvisory(t *testing.T) {
	gen := &fakeGenerator{result: report.GenerateResult{
		Advisory: report.AdvisoryEmptyAggregate,
	}}
	srv, _ := newTestServer(t, gen, fakeTester{}, nil)

	rr := postForm(srv, "/reports/generate", url.Values{"month": {"3"}, "year": {"2024"}})
	if rr.Code != 200 {
		t.Fatalf("status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "keine Verbrauchsdaten") &&
		!strings.Contains(rr.Body.String(), "kein Server hat Verbrauchsdaten") {
		t.Errorf("body missing empty-data warning: %s", rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `class="warning"`) {
		t.Errorf("expected warning styling: %s", rr.Body.String())
	}
}

func seedReport(t *testing.T, store *memory.Store) core.MonthlyReport {
	t.Helper()
	rep := core.MonthlyReport{
		ID: "verbrauch-2024-03", Month: 3, Year: 2024,
		CapturedAt: time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC),
		Title:      "Verbrauchsbericht März 2024",
		Categories: []core.ServiceCategory{{
			ID: "bcloud_connect", Type: core.CategoryStorage,
			DisplayName: "Cloud Connect Backup", Unit: core.UnitTB,
			Usages: []core.UsageRecord{
				{CustomerID: "acme", CustomerName: "Acme GmbH", Usage: 1.5, Unit: core.UnitTB, Status: core.StatusActive},
			},
			TotalUsage: 1.5,
		}},
		Meta: core.ReportMeta{TotalCustomers: 1, ActiveCustomers: 1},
	}
	if err := store.SaveReport(context.Background(), rep); err != nil {
		t.Fatalf("seed report: %v", err)
	}
	return rep
}

func TestReportOverviewPartial(t *testing.T) {
	srv, store := newTestServer(t, &fakeGenerator{}, fakeTester{}, nil)

	// No reports yet.
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ui/report-overview", nil))
	if !strings.Contains(rr.Body.String(), "Noch keine Berichte") {
		t.Errorf("empty body = %s", rr.Body.String())
	}

	seedReport(t, store)

	rr = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ui/report-overview", nil))
	body := rr.Body.String()
	if !strings.Contains(body, "Acme GmbH") || !strings.Contains(body, "1.5") {
		t.Errorf("overview body = %s", body)
	}
}

func TestExportEndpoints(t *testing.T) {
	srv, store := newTestServer(t, &fakeGenerator{}, fakeTester{}, nil)
	rep := seedReport(t, store)

	cases := []struct {
		format, contentType string
	}{
		{"text", "text/plain; charset=utf-8"},
		{"csv", "text/csv; charset=utf-8"},
		{"pdf", "application/pdf"},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/reports/export?id="+rep.ID+"&format="+tc.format, nil)
		srv.Handler.ServeHTTP(rr, req)
		if rr.Code != 200 {
			t.Errorf("%s: status=%d", tc.format, rr.Code)
			continue
		}
		if got := rr.Header().Get("Content-Type"); got != tc.contentType {
			t.Errorf("%s: content type = %s", tc.format, got)
		}
		if !strings.Contains(rr.Header().Get("Content-Disposition"), rep.ID) {
			t.Errorf("%s: disposition = %s", tc.format, rr.Header().Get("Content-Disposition"))
		}
	}

	// Unknown report
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/reports/export?id=verbrauch-1999-01", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestDeleteReport(t *testing.T) {
	srv, store := newTestServer(t, &fakeGenerator{}, fakeTester{}, nil)
	rep := seedReport(t, store)

	rr := postForm(srv, "/reports/delete", url.Values{"id": {rep.ID}})
	if rr.Code != 200 {
		t.Fatalf("status=%d", rr.Code)
	}
	if _, err := store.GetReport(context.Background(), rep.ID); !errors.Is(err, core.ErrReportNotFound) {
		t.Errorf("report still present: %v", err)
	}

	rr = postForm(srv, "/reports/delete", url.Values{"id": {rep.ID}})
	if rr.Code != http.StatusNotFound {
		t.Errorf("double delete status = %d", rr.Code)
	}
}

func TestReportsPage(t *testing.T) {
	srv, store := newTestServer(t, &fakeGenerator{}, fakeTester{}, nil)
	seedReport(t, store)

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/reports", nil))
	if rr.Code != 200 {
		t.Fatalf("status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "März 2024") {
		t.Errorf("body missing period: %s", rr.Body.String())
	}
}
