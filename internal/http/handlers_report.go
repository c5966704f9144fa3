package http

import (
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"verbrauch/internal/core"
	"verbrauch/internal/export"
	"verbrauch/internal/report"
)

// handleIndex serves the dashboard page. The report overview itself loads
// as an htmx partial.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded", "url", r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	month, year := report.PreviousPeriod(time.Now())
	data := struct {
		Month     int
		Year      int
		MonthName string
	}{
		Month:     month,
		Year:      year,
		MonthName: core.MonthName(month),
	}

	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Index template execution failed", "error", err, "template", "index.html")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleReports serves the stored reports page, newest period first.
func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowedError("GET").Write(w)
		return
	}
	if s.templates == nil {
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	reports, err := s.getReports(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Report list error", "error", err)
		http.Error(w, "Fehler beim Laden der Berichte", http.StatusInternalServerError)
		return
	}

	type row struct {
		ID        string
		Title     string
		Period    string
		Captured  string
		Customers int
	}
	data := struct{ Reports []row }{}
	for _, rep := range reports {
		data.Reports = append(data.Reports, row{
			ID:        rep.ID,
			Title:     rep.Title,
			Period:    fmt.Sprintf("%s %d", core.MonthName(rep.Month), rep.Year),
			Captured:  rep.CapturedAt.Format("02.01.2006 15:04"),
			Customers: rep.Meta.TotalCustomers,
		})
	}

	if err := s.templates.ExecuteTemplate(w, "reports.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Reports template execution failed", "error", err, "template", "reports.html")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleGenerateReport starts a report run for the submitted period. With a
// queue configured the job goes to the worker; otherwise it runs inline and
// the response reflects the outcome.
func (s *Server) handleGenerateReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		MethodNotAllowedError("POST").Write(w)
		return
	}
	if err := r.ParseForm(); err != nil {
		BadRequestError("Ungültiges Anfrageformat").Write(w)
		return
	}

	month, year, err := parsePeriod(r.Form.Get("month"), r.Form.Get("year"))
	if err != nil {
		UnprocessableEntityError("Ungültiger Zeitraum: " + err.Error()).Write(w)
		return
	}

	if s.publisher != nil {
		if err := s.publisher.PublishReportJob(r.Context(), month, year); err != nil {
			slog.ErrorContext(r.Context(), "Report job publish error", "error", err, "month", month, "year", year)
			InternalServerError("Bericht konnte nicht eingeplant werden").Write(w)
			return
		}
		NewHTMXResponse().
			Status(http.StatusAccepted).
			TriggerSuccessNotification("Bericht wird im Hintergrund erstellt").
			BodyHTML(`<div class="success">Berichterstellung für ` + core.MonthName(month) + ` ` + strconv.Itoa(year) + ` eingeplant</div>`).
			Write(w)
		return
	}

	res, err := s.generator.GenerateMonthly(r.Context(), month, year)
	if err != nil {
		slog.ErrorContext(r.Context(), "Report generation error", "error", err, "month", month, "year", year)
		InternalServerError("Fehler bei der Berichterstellung").Write(w)
		return
	}
	s.invalidateReports(res.Report.ID)

	builder := NewHTMXResponse().TriggerReportGenerated(year, month)
	switch res.Advisory {
	case report.AdvisoryNoActiveSources:
		builder.TriggerWarningNotification("Keine aktiven Server konfiguriert").
			BodyHTML(`<div class="warning">Bericht erstellt, aber es sind keine aktiven Server konfiguriert.</div>`)
	case report.AdvisoryAllSourcesDown:
		builder.TriggerWarningNotification("Alle Server waren nicht erreichbar").
			BodyHTML(`<div class="warning">Bericht erstellt, aber kein Server war erreichbar.</div>`)
	case report.AdvisoryEmptyAggregate:
		builder.TriggerWarningNotification("Keine Verbrauchsdaten gefunden").
			BodyHTML(`<div class="warning">Bericht erstellt, aber kein Server hat Verbrauchsdaten geliefert.</div>`)
	case report.AdvisoryPartial:
		builder.TriggerWarningNotification("Einige Server waren nicht erreichbar").
			BodyHTML(`<div class="warning">Bericht erstellt. Nicht erreichbar: ` +
				template.HTMLEscapeString(sourceErrorNames(res.SourceErrors)) + `</div>`)
	default:
		builder.TriggerSuccessNotification("Bericht erstellt").
			BodyHTML(`<div class="success">` + template.HTMLEscapeString(res.Report.Title) + ` erstellt</div>`)
	}
	builder.Write(w)
}

func (s *Server) handleDeleteReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		MethodNotAllowedError("POST").Write(w)
		return
	}
	if err := r.ParseForm(); err != nil {
		BadRequestError("Ungültiges Anfrageformat").Write(w)
		return
	}

	id := strings.TrimSpace(r.Form.Get("id"))
	if id == "" {
		BadRequestError("Fehlende Berichts-ID").Write(w)
		return
	}

	if err := s.reports.DeleteReport(r.Context(), id); err != nil {
		if err == core.ErrReportNotFound {
			NotFoundError("Bericht nicht gefunden").Write(w)
			return
		}
		slog.ErrorContext(r.Context(), "Report delete error", "error", err, "report_id", id)
		InternalServerError("Fehler beim Löschen").Write(w)
		return
	}
	s.invalidateReports(id)

	NewHTMXResponse().
		TriggerReportDeleted(id).
		TriggerSuccessNotification("Bericht gelöscht").
		BodyHTML(`<div class="success">Bericht gelöscht</div>`).
		Write(w)
}

// handleExportReport streams one report as text, CSV, or PDF download.
func (s *Server) handleExportReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowedError("GET").Write(w)
		return
	}

	id := strings.TrimSpace(r.URL.Query().Get("id"))
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format == "" {
		format = "text"
	}
	if id == "" {
		http.Error(w, "missing report id", http.StatusBadRequest)
		return
	}

	rep, err := s.getReport(r.Context(), id)
	if err != nil {
		if err == core.ErrReportNotFound {
			http.NotFound(w, r)
			return
		}
		slog.ErrorContext(r.Context(), "Report load error", "error", err, "report_id", id)
		http.Error(w, "Fehler beim Laden des Berichts", http.StatusInternalServerError)
		return
	}

	switch format {
	case "text":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="`+rep.ID+`.txt"`)
		_, _ = w.Write([]byte(export.Text(rep)))
	case "csv":
		out, err := export.CSV(rep)
		if err != nil {
			slog.ErrorContext(r.Context(), "CSV export error", "error", err, "report_id", id)
			http.Error(w, "Export fehlgeschlagen", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="`+rep.ID+`.csv"`)
		_, _ = w.Write(out)
	case "pdf":
		out, err := export.PDF(rep)
		if err != nil {
			slog.ErrorContext(r.Context(), "PDF export error", "error", err, "report_id", id)
			http.Error(w, "Export fehlgeschlagen", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="`+rep.ID+`.pdf"`)
		_, _ = w.Write(out)
	default:
		http.Error(w, "unsupported format: "+format, http.StatusBadRequest)
	}
}

// handleReportOverview renders the report overview partial. Without an id
// parameter it shows the most recent report.
func (s *Server) handleReportOverview(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	var rep core.MonthlyReport
	if id := strings.TrimSpace(r.URL.Query().Get("id")); id != "" {
		got, err := s.getReport(r.Context(), id)
		if err != nil {
			s.renderOverviewPlaceholder(w, r, err)
			return
		}
		rep = got
	} else {
		reports, err := s.getReports(r.Context())
		if err != nil {
			s.renderOverviewPlaceholder(w, r, err)
			return
		}
		if len(reports) == 0 {
			_, _ = w.Write([]byte(`<section id="report-overview" class="report-overview"><div class="placeholder">Noch keine Berichte vorhanden. Erstellen Sie den ersten Bericht.</div></section>`))
			return
		}
		rep = reports[0]
	}

	if s.templates == nil {
		_, _ = w.Write([]byte(`<section id="report-overview" class="report-overview"><div class="placeholder">` +
			template.HTMLEscapeString(rep.Title) + `</div></section>`))
		return
	}

	type usageRow struct {
		Customer string
		Usage    string
		Unit     string
		Removed  bool
	}
	type catBlock struct {
		DisplayName string
		Unit        string
		Total       string
		Rows        []usageRow
	}
	data := struct {
		ID         string
		Title      string
		Captured   string
		Customers  int
		Active     int
		Removed    int
		Categories []catBlock
	}{
		ID:        rep.ID,
		Title:     rep.Title,
		Captured:  rep.CapturedAt.Format("02.01.2006 15:04"),
		Customers: rep.Meta.TotalCustomers,
		Active:    rep.Meta.ActiveCustomers,
		Removed:   rep.Meta.RemovedCustomers,
	}
	for _, cat := range rep.Categories {
		if len(cat.Usages) == 0 {
			continue
		}
		block := catBlock{
			DisplayName: cat.DisplayName,
			Unit:        string(cat.Unit),
			Total:       export.FormatUsage(cat.TotalUsage),
		}
		for _, u := range cat.Usages {
			block.Rows = append(block.Rows, usageRow{
				Customer: u.CustomerName,
				Usage:    export.FormatUsage(u.Usage),
				Unit:     string(u.Unit),
				Removed:  u.Status == core.StatusRemoved,
			})
		}
		data.Categories = append(data.Categories, block)
	}

	if err := s.templates.ExecuteTemplate(w, "report_overview.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution error", "error", err, "template", "report_overview.html", "report_id", rep.ID)
		_, _ = w.Write([]byte(`<section id="report-overview" class="report-overview"><div class="placeholder">Fehler beim Rendern des Berichts</div></section>`))
	}
}

func (s *Server) renderOverviewPlaceholder(w http.ResponseWriter, r *http.Request, err error) {
	if err == core.ErrReportNotFound {
		_, _ = w.Write([]byte(`<section id="report-overview" class="report-overview"><div class="placeholder">Bericht nicht gefunden</div></section>`))
		return
	}
	slog.ErrorContext(r.Context(), "Report overview error", "error", err)
	_, _ = w.Write([]byte(`<section id="report-overview" class="report-overview"><div class="placeholder">Fehler beim Laden des Berichts</div></section>`))
}

func parsePeriod(monthStr, yearStr string) (int, int, error) {
	month, err := strconv.Atoi(strings.TrimSpace(monthStr))
	if err != nil {
		return 0, 0, core.ErrInvalidMonth
	}
	year, err := strconv.Atoi(strings.TrimSpace(yearStr))
	if err != nil {
		return 0, 0, core.ErrInvalidYear
	}
	if err := core.ValidatePeriod(month, year); err != nil {
		return 0, 0, err
	}
	return month, year, nil
}

func sourceErrorNames(errs []report.SourceError) string {
	names := make([]string, 0, len(errs))
	for _, e := range errs {
		names = append(names, e.ConfigName)
	}
	return strings.Join(names, ", ")
}
