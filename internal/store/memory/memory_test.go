package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"verbrauch/internal/core"
)

func validConfig(id, name string) core.SourceConfig {
	return core.SourceConfig{
		ID: id, Name: name, Type: core.VBR,
		URL: "https://vbr.example.com", Username: "svc", Password: "pw", Enabled: true,
	}
}

func TestConfigRoundtrip(t *testing.T) {
	ctx := context.Background()
	s := New()

	cfg := validConfig("a", "Alpha")
	if err := s.Save(ctx, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.Get(ctx, "a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Alpha" {
		t.Errorf("got name %q", got.Name)
	}

	// Save under the same ID overwrites.
	cfg.Name = "Alpha 2"
	if err := s.Save(ctx, cfg); err != nil {
		t.Fatalf("resave: %v", err)
	}
	all, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 || all[0].Name != "Alpha 2" {
		t.Errorf("list after overwrite = %+v", all)
	}

	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, "a"); !errors.Is(err, core.ErrConfigNotFound) {
		t.Errorf("get after delete = %v", err)
	}
}

func TestSaveRejectsInvalidConfig(t *testing.T) {
	s := New()
	bad := validConfig("a", "Alpha")
	bad.URL = ""
	if err := s.Save(context.Background(), bad); err == nil {
		t.Error("expected validation error")
	}
}

func TestListEnabled(t *testing.T) {
	ctx := context.Background()
	s := New()
	on := validConfig("on", "On")
	off := validConfig("off", "Off")
	off.Enabled = false
	_ = s.Save(ctx, on)
	_ = s.Save(ctx, off)

	enabled, err := s.ListEnabled(ctx)
	if err != nil {
		t.Fatalf("list enabled: %v", err)
	}
	if len(enabled) != 1 || enabled[0].ID != "on" {
		t.Errorf("enabled = %+v", enabled)
	}
}

func TestReportsSortedDescending(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, p := range []struct{ y, m int }{{2023, 12}, {2024, 3}, {2024, 1}} {
		r := core.MonthlyReport{
			ID: core.ReportID(p.y, p.m), Year: p.y, Month: p.m, CapturedAt: time.Now(),
		}
		if err := s.SaveReport(ctx, r); err != nil {
			t.Fatalf("save report: %v", err)
		}
	}

	list, err := s.ListReports(ctx)
	if err != nil {
		t.Fatalf("list reports: %v", err)
	}
	want := []string{"verbrauch-2024-03", "verbrauch-2024-01", "verbrauch-2023-12"}
	if len(list) != len(want) {
		t.Fatalf("got %d reports", len(list))
	}
	for i, id := range want {
		if list[i].ID != id {
			t.Errorf("list[%d] = %s, want %s", i, list[i].ID, id)
		}
	}
}
