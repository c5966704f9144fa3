// Package export renders monthly reports into the formats billing hands on:
// plain text for mail bodies, CSV, PDF, and a Google Sheets upload.
package export

import (
	"strconv"
	"strings"

	"verbrauch/internal/core"
)

// Section headings of the German billing mail layout.
const (
	textStorageHeading   = "Speicher Verbrauch (je Kunde)"
	textTapeHeading      = "TAPE Verbrauch (je Kunde)"
	textLicensingHeading = "Lizenzierung"
	capturedDateLabel    = "erfasst am"
)

// Text renders the report in the layout billing pastes into the monthly
// mail: a heading per category type, one line per customer, removed
// customers marked with "(entfernt)".
func Text(rep core.MonthlyReport) string {
	var b strings.Builder
	b.WriteString(rep.Title)
	b.WriteByte('\n')
	b.WriteString("Hier die Daten für " + core.MonthName(rep.Month) +
		" (" + capturedDateLabel + " " + rep.CapturedAt.Format("02.01.2006") + ")\n\n")

	writeTextSection(&b, textStorageHeading, categoriesOfType(rep, core.CategoryStorage))
	writeTextSection(&b, textTapeHeading, categoriesOfType(rep, core.CategoryTape))
	writeTextSection(&b, textLicensingHeading, categoriesOfType(rep, core.CategoryLicensing))

	return b.String()
}

func writeTextSection(b *strings.Builder, heading string, cats []core.ServiceCategory) {
	if len(cats) == 0 {
		return
	}
	b.WriteString(heading + "\n\n")
	for _, cat := range cats {
		b.WriteString(cat.DisplayName + "\n")
		for _, u := range cat.Usages {
			b.WriteString(u.CustomerName + " " + FormatUsage(u.Usage) + " " + string(u.Unit))
			if u.Status == core.StatusRemoved {
				b.WriteString(" (entfernt)")
			}
			b.WriteByte('\n')
			if u.Note != "" {
				b.WriteString(u.Note + "\n")
			}
		}
		b.WriteByte('\n')
	}
}

func categoriesOfType(rep core.MonthlyReport, t core.CategoryType) []core.ServiceCategory {
	var out []core.ServiceCategory
	for _, cat := range rep.Categories {
		if cat.Type == t {
			out = append(out, cat)
		}
	}
	return out
}

// FormatUsage prints a quantity without trailing zeros, so 1.50 reads "1.5"
// and 40 reads "40".
func FormatUsage(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
