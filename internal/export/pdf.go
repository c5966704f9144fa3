package export

import (
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"verbrauch/internal/core"
)

// PDF renders the report as a printable document: title block, one table
// per category, category totals, and the customer counts at the end.
func PDF(rep core.MonthlyReport) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Seite {current} von {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(12, rep.Title, props.Text{
			Size:  18,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)
	m.AddRow(8,
		text.NewCol(12, capturedDateLabel+" "+rep.CapturedAt.Format("02.01.2006"), props.Text{
			Size: 10,
		}),
	)
	m.AddRow(6, col.New(12))

	for _, cat := range rep.Categories {
		if len(cat.Usages) == 0 {
			continue
		}

		m.AddRow(10,
			text.NewCol(12, cat.DisplayName, props.Text{
				Size:  12,
				Style: fontstyle.Bold,
			}),
		)
		m.AddRow(8,
			text.NewCol(8, "Kunde", props.Text{Style: fontstyle.Bold, Size: 9}),
			text.NewCol(2, "Verbrauch", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
			text.NewCol(2, "Einheit", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		)
		for _, u := range cat.Usages {
			name := u.CustomerName
			if u.Status == core.StatusRemoved {
				name += " (entfernt)"
			}
			m.AddRow(7,
				text.NewCol(8, name, props.Text{Size: 9}),
				text.NewCol(2, FormatUsage(u.Usage), props.Text{Size: 9, Align: align.Right}),
				text.NewCol(2, string(u.Unit), props.Text{Size: 9, Align: align.Right}),
			)
		}
		m.AddRow(8,
			text.NewCol(8, "Gesamt", props.Text{Style: fontstyle.Bold, Size: 9}),
			text.NewCol(2, FormatUsage(cat.TotalUsage), props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
			text.NewCol(2, string(cat.Unit), props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		)
		m.AddRow(4, col.New(12))
	}

	m.AddRow(8,
		text.NewCol(12, fmt.Sprintf("Kunden gesamt: %d, aktiv: %d, entfernt: %d",
			rep.Meta.TotalCustomers, rep.Meta.ActiveCustomers, rep.Meta.RemovedCustomers), props.Text{
			Size: 9,
		}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate pdf: %w", err)
	}
	return doc.GetBytes(), nil
}
