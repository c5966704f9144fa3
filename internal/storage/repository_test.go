package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"verbrauch/internal/core"
)

func testRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "verbrauch.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func sampleConfig(id, name string, enabled bool) core.SourceConfig {
	return core.SourceConfig{
		ID:       id,
		Name:     name,
		Type:     core.CloudConnect,
		URL:      "https://cc.example.com",
		Username: "svc",
		Password: "secret",
		Port:     6180,
		Enabled:  enabled,
	}
}

func TestConfigCRUD(t *testing.T) {
	ctx := context.Background()
	repo := testRepo(t)

	cfg := sampleConfig("cc1", "Cloud Connect Primary", true)
	if err := repo.Save(ctx, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := repo.Get(ctx, "cc1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != cfg {
		t.Errorf("roundtrip mismatch:\n got %+v\nwant %+v", got, cfg)
	}

	cfg.Name = "Cloud Connect Renamed"
	cfg.Enabled = false
	if err := repo.Save(ctx, cfg); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err = repo.Get(ctx, "cc1")
	if err != nil {
		t.Fatalf("get after upsert: %v", err)
	}
	if got.Name != "Cloud Connect Renamed" || got.Enabled {
		t.Errorf("upsert not applied: %+v", got)
	}

	if err := repo.Delete(ctx, "cc1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.Get(ctx, "cc1"); !errors.Is(err, core.ErrConfigNotFound) {
		t.Errorf("get after delete = %v", err)
	}
	if err := repo.Delete(ctx, "cc1"); !errors.Is(err, core.ErrConfigNotFound) {
		t.Errorf("double delete = %v", err)
	}
}

func TestSaveValidatesConfig(t *testing.T) {
	repo := testRepo(t)
	bad := sampleConfig("x", "", true)
	if err := repo.Save(context.Background(), bad); !errors.Is(err, core.ErrEmptyName) {
		t.Errorf("err = %v", err)
	}
}

func TestListOrdersAndFilters(t *testing.T) {
	ctx := context.Background()
	repo := testRepo(t)

	for _, c := range []core.SourceConfig{
		sampleConfig("b", "beta", true),
		sampleConfig("a", "Alpha", true),
		sampleConfig("c", "Gamma", false),
	} {
		if err := repo.Save(ctx, c); err != nil {
			t.Fatalf("save %s: %v", c.ID, err)
		}
	}

	all, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].Name != "Alpha" || all[1].Name != "beta" {
		t.Errorf("list order = %+v", all)
	}

	enabled, err := repo.ListEnabled(ctx)
	if err != nil {
		t.Fatalf("list enabled: %v", err)
	}
	if len(enabled) != 2 {
		t.Errorf("enabled = %+v", enabled)
	}
}

func TestReportRoundtrip(t *testing.T) {
	ctx := context.Background()
	repo := testRepo(t)

	rep := core.MonthlyReport{
		ID:         core.ReportID(2024, 3),
		Month:      3,
		Year:       2024,
		CapturedAt: time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC),
		Title:      "Verbrauchsbericht März 2024",
		Categories: []core.ServiceCategory{
			{
				ID:          "bcloud_connect",
				Type:        core.CategoryStorage,
				DisplayName: "Cloud Connect Backup",
				Unit:        core.UnitTB,
				Usages: []core.UsageRecord{
					{CustomerID: "acme", CustomerName: "Acme", Usage: 1.5, Unit: core.UnitTB, Status: core.StatusActive},
				},
				TotalUsage: 1.5,
			},
		},
		Meta: core.ReportMeta{TotalCustomers: 1, ActiveCustomers: 1, GeneratedBy: "verbrauch"},
	}
	if err := repo.SaveReport(ctx, rep); err != nil {
		t.Fatalf("save report: %v", err)
	}

	got, err := repo.GetReport(ctx, rep.ID)
	if err != nil {
		t.Fatalf("get report: %v", err)
	}
	if got.Title != rep.Title || len(got.Categories) != 1 {
		t.Errorf("roundtrip = %+v", got)
	}
	if got.Categories[0].Usages[0].CustomerID != "acme" {
		t.Errorf("usages = %+v", got.Categories[0].Usages)
	}
	if !got.CapturedAt.Equal(rep.CapturedAt) {
		t.Errorf("captured at = %s", got.CapturedAt)
	}
}

func TestReportOverwriteAndList(t *testing.T) {
	ctx := context.Background()
	repo := testRepo(t)

	for _, p := range []struct{ y, m int }{{2023, 12}, {2024, 2}, {2024, 1}} {
		rep := core.MonthlyReport{
			ID: core.ReportID(p.y, p.m), Month: p.m, Year: p.y,
			CapturedAt: time.Now().UTC(), Title: "t",
			Categories: []core.ServiceCategory{},
		}
		if err := repo.SaveReport(ctx, rep); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	// Regenerating a period replaces the stored report instead of duplicating.
	again := core.MonthlyReport{
		ID: core.ReportID(2024, 2), Month: 2, Year: 2024,
		CapturedAt: time.Now().UTC(), Title: "regenerated",
		Categories: []core.ServiceCategory{},
	}
	if err := repo.SaveReport(ctx, again); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	list, err := repo.ListReports(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("got %d reports, want 3", len(list))
	}
	wantOrder := []string{"verbrauch-2024-02", "verbrauch-2024-01", "verbrauch-2023-12"}
	for i, id := range wantOrder {
		if list[i].ID != id {
			t.Errorf("list[%d] = %s, want %s", i, list[i].ID, id)
		}
	}
	if list[0].Title != "regenerated" {
		t.Errorf("overwrite lost: %+v", list[0])
	}
}

func TestGetReportNotFound(t *testing.T) {
	repo := testRepo(t)
	if _, err := repo.GetReport(context.Background(), "verbrauch-1999-01"); !errors.Is(err, core.ErrReportNotFound) {
		t.Errorf("err = %v", err)
	}
	if err := repo.DeleteReport(context.Background(), "verbrauch-1999-01"); !errors.Is(err, core.ErrReportNotFound) {
		t.Errorf("delete err = %v", err)
	}
}
