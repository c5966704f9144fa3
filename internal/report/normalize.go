// Package report turns raw adapter payloads into consolidated monthly
// consumption reports.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"verbrauch/internal/core"
	"verbrauch/internal/veeam"
)

// The billed service categories, in report order. Every report carries all of
// them, empty or not, so consecutive months stay comparable column by column.
const (
	CategoryCloudConnect     = "bcloud_connect"
	CategoryO365Storage      = "veeam_o365_s3"
	CategoryO365Licensing    = "o365_licensing"
	CategoryVBRTape          = "veeam_br_tape"
	CategoryCloudConnectTape = "cloud_connect_tape"
)

type categorySpec struct {
	id      string
	ctype   core.CategoryType
	display string
	unit    core.Unit
	extract func([]veeam.Result) []core.UsageRecord
}

var categorySpecs = []categorySpec{
	{
		id:      CategoryCloudConnect,
		ctype:   core.CategoryStorage,
		display: "Cloud Connect Backup",
		unit:    core.UnitTB,
		extract: extractCloudConnect,
	},
	{
		id:      CategoryO365Storage,
		ctype:   core.CategoryStorage,
		display: "Microsoft 365 Backup",
		unit:    core.UnitGB,
		extract: extractO365Storage,
	},
	{
		id:      CategoryO365Licensing,
		ctype:   core.CategoryLicensing,
		display: "Microsoft 365 Lizenzen",
		unit:    core.UnitLicenses,
		extract: extractO365Licensing,
	},
	{
		id:      CategoryVBRTape,
		ctype:   core.CategoryTape,
		display: "Backup & Replication Tape",
		unit:    core.UnitTB,
		extract: extractVBRTape,
	},
	{
		id:      CategoryCloudConnectTape,
		ctype:   core.CategoryTape,
		display: "Cloud Connect Tape",
		unit:    core.UnitTB,
		// No upstream API reports tape usage for Cloud Connect tenants yet;
		// the category exists so the billing layout stays stable.
		extract: func([]veeam.Result) []core.UsageRecord { return nil },
	},
}

// Normalize maps successful adapter results into the fixed set of service
// categories. Failed results contribute nothing; they are accounted for by
// the generator, not here.
func Normalize(results []veeam.Result) []core.ServiceCategory {
	cats := make([]core.ServiceCategory, 0, len(categorySpecs))
	for _, spec := range categorySpecs {
		records := consolidate(spec.extract(results), spec.unit)
		sortByCustomerName(records)

		var total float64
		for _, r := range records {
			total += r.Usage
		}
		cats = append(cats, core.ServiceCategory{
			ID:          spec.id,
			Type:        spec.ctype,
			DisplayName: spec.display,
			Unit:        spec.unit,
			Usages:      records,
			TotalUsage:  core.Round2(total),
		})
	}
	return cats
}

// Assemble builds the full report envelope around normalized categories.
func Assemble(month, year int, capturedAt time.Time, cats []core.ServiceCategory) core.MonthlyReport {
	return core.MonthlyReport{
		ID:         core.ReportID(year, month),
		Month:      month,
		Year:       year,
		CapturedAt: capturedAt,
		Title:      fmt.Sprintf("Verbrauchsbericht %s %d", core.MonthName(month), year),
		Categories: cats,
		Meta:       buildMeta(cats),
	}
}

func extractCloudConnect(results []veeam.Result) []core.UsageRecord {
	var records []core.UsageRecord
	for _, res := range results {
		if res.Config.Type != core.CloudConnect || !res.OK() {
			continue
		}
		for _, repo := range res.Payload.Repositories {
			records = append(records, core.UsageRecord{
				CustomerID:   core.CustomerKey(repo.Customer),
				CustomerName: repo.Customer,
				Usage:        core.ToTB(repo.UsageGB, core.UnitGB),
				Unit:         core.UnitTB,
				Status:       core.StatusActive,
			})
		}
	}
	return records
}

func extractO365Storage(results []veeam.Result) []core.UsageRecord {
	var records []core.UsageRecord
	for _, res := range results {
		if res.Config.Type != core.Office365 || !res.OK() {
			continue
		}
		for _, org := range res.Payload.Organizations {
			name := customerNameForO365(res.Config, org)
			records = append(records, core.UsageRecord{
				CustomerID:   core.CustomerKey(name),
				CustomerName: name,
				Usage:        org.SizeGB,
				Unit:         core.UnitGB,
				Status:       core.StatusActive,
			})
		}
	}
	return records
}

func extractO365Licensing(results []veeam.Result) []core.UsageRecord {
	var records []core.UsageRecord
	for _, res := range results {
		if res.Config.Type != core.Office365 || !res.OK() {
			continue
		}
		for _, org := range res.Payload.Organizations {
			if org.Mailboxes <= 0 {
				continue
			}
			name := customerNameForO365(res.Config, org)
			records = append(records, core.UsageRecord{
				CustomerID:   core.CustomerKey(name),
				CustomerName: name,
				Usage:        float64(org.Mailboxes),
				Unit:         core.UnitLicenses,
				Status:       core.StatusActive,
			})
		}
	}
	return records
}

func extractVBRTape(results []veeam.Result) []core.UsageRecord {
	var records []core.UsageRecord
	for _, res := range results {
		if res.Config.Type != core.VBR || !res.OK() {
			continue
		}
		for _, job := range res.Payload.BackupJobs {
			if !strings.Contains(strings.ToLower(job.Name), "tape") {
				continue
			}
			records = append(records, core.UsageRecord{
				CustomerID:   core.CustomerKey(job.Name),
				CustomerName: job.Name,
				Usage:        core.ToTB(job.SizeGB, core.UnitGB),
				Unit:         core.UnitTB,
				Status:       core.StatusActive,
			})
		}
	}
	return records
}

// customerNameForO365 prefers the configured organization name over the
// tenant name the API reports, so reports show the billing name operators
// entered rather than the technical Azure tenant id.
func customerNameForO365(cfg core.SourceConfig, org veeam.Organization) string {
	if strings.TrimSpace(cfg.OrganizationName) != "" {
		return cfg.OrganizationName
	}
	if strings.TrimSpace(org.Name) != "" {
		return org.Name
	}
	return "Unknown Customer"
}

// consolidate merges records that share a customer key by summing their
// usage. The first occurrence wins for display name and unit.
func consolidate(records []core.UsageRecord, unit core.Unit) []core.UsageRecord {
	if len(records) == 0 {
		return []core.UsageRecord{}
	}
	merged := make(map[string]*core.UsageRecord, len(records))
	order := make([]string, 0, len(records))
	for _, rec := range records {
		if existing, ok := merged[rec.CustomerID]; ok {
			existing.Usage = core.Round2(existing.Usage + rec.Usage)
			continue
		}
		cp := rec
		cp.Unit = unit
		cp.Usage = core.Round2(cp.Usage)
		merged[rec.CustomerID] = &cp
		order = append(order, rec.CustomerID)
	}
	out := make([]core.UsageRecord, 0, len(order))
	for _, key := range order {
		out = append(out, *merged[key])
	}
	return out
}

func sortByCustomerName(records []core.UsageRecord) {
	if len(records) < 2 {
		return
	}
	coll := collate.New(language.German, collate.IgnoreCase)
	sort.SliceStable(records, func(i, j int) bool {
		return coll.CompareString(records[i].CustomerName, records[j].CustomerName) < 0
	})
}

// buildMeta counts distinct customers across all categories, so a customer
// billed for both storage and licenses is counted once.
func buildMeta(cats []core.ServiceCategory) core.ReportMeta {
	total := map[string]struct{}{}
	active := map[string]struct{}{}
	removed := map[string]struct{}{}
	for _, cat := range cats {
		for _, rec := range cat.Usages {
			total[rec.CustomerID] = struct{}{}
			if rec.Status == core.StatusRemoved {
				removed[rec.CustomerID] = struct{}{}
			} else {
				active[rec.CustomerID] = struct{}{}
			}
		}
	}
	return core.ReportMeta{
		TotalCustomers:   len(total),
		ActiveCustomers:  len(active),
		RemovedCustomers: len(removed),
		GeneratedBy:      "verbrauch",
	}
}
