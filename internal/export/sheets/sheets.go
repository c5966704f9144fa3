// Package sheets uploads finished reports into a Google spreadsheet, one tab
// per billing period, so billing can work with the numbers directly.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"verbrauch/internal/core"
	"verbrauch/internal/export"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
}

// NewFromEnv creates a Sheets client from environment variables.
// Required: GOOGLE_SPREADSHEET_ID plus service account credentials via
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS.
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	credentialsJSON, err := loadCredentials()
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Client{svc: svc, spreadsheetID: spreadsheetID}, nil
}

func loadCredentials() ([]byte, error) {
	if inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")); inline != "" {
		return []byte(inline), nil
	}
	file := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if file == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return data, nil
}

// Export writes the report into a tab named after the report ID, creating
// the tab if needed and replacing its contents otherwise. Re-exporting a
// regenerated month is therefore idempotent.
func (c *Client) Export(ctx context.Context, rep core.MonthlyReport) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	if err := c.ensureSheet(ctx, rep.ID); err != nil {
		return err
	}

	clearRange := fmt.Sprintf("%s!A:G", rep.ID)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear sheet %s: %w", rep.ID, err)
	}

	vr := &gsheet.ValueRange{Values: reportRows(rep)}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, fmt.Sprintf("%s!A1", rep.ID), vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write sheet %s: %w", rep.ID, err)
	}
	return nil
}

func (c *Client) ensureSheet(ctx context.Context, title string) error {
	meta, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, sheet := range meta.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == title {
			return nil
		}
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{
				Properties: &gsheet.SheetProperties{Title: title},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", title, err)
	}
	return nil
}

func reportRows(rep core.MonthlyReport) [][]any {
	rows := [][]any{
		{rep.Title},
		{capturedLine(rep)},
		{},
		{"Kategorie", "Kunde", "Verbrauch", "Einheit", "Status"},
	}
	for _, cat := range rep.Categories {
		for _, u := range cat.Usages {
			rows = append(rows, []any{
				cat.DisplayName, u.CustomerName, export.FormatUsage(u.Usage), string(u.Unit), string(u.Status),
			})
		}
		if len(cat.Usages) > 0 {
			rows = append(rows, []any{
				cat.DisplayName + " Gesamt", "", export.FormatUsage(cat.TotalUsage), string(cat.Unit), "",
			})
		}
	}
	return rows
}

func capturedLine(rep core.MonthlyReport) string {
	return fmt.Sprintf("erfasst am %s", rep.CapturedAt.Format("02.01.2006"))
}
