package export

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"verbrauch/internal/core"
)

// CSV renders the report as a flat table, one row per customer and category.
// The delimiter is a semicolon so German Excel opens it without an import
// dialog.
func CSV(rep core.MonthlyReport) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = ';'

	rows := [][]string{
		{"Bericht", "Kategorie", "Kunde", "Verbrauch", "Einheit", "Status", "Hinweis"},
	}
	for _, cat := range rep.Categories {
		for _, u := range cat.Usages {
			rows = append(rows, []string{
				rep.ID,
				cat.DisplayName,
				u.CustomerName,
				FormatUsage(u.Usage),
				string(u.Unit),
				string(u.Status),
				u.Note,
			})
		}
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	return buf.Bytes(), nil
}
