package http

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"verbrauch/internal/core"
	"verbrauch/internal/veeam"
)

// handleConfigs serves the configuration page on GET and saves a source
// config on POST.
func (s *Server) handleConfigs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.renderConfigsPage(w, r)
	case http.MethodPost:
		s.handleSaveConfig(w, r)
	default:
		MethodNotAllowedError("GET, POST").Write(w)
	}
}

func (s *Server) renderConfigsPage(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded", "url", r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	configs, err := s.configs.List(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Config list error", "error", err)
	}

	type row struct {
		ID          string
		Name        string
		TypeLabel   string
		URL         string
		Port        int
		Enabled     bool
	}
	data := struct {
		Configs []row
		Types   []core.SourceType
	}{
		Types: []core.SourceType{core.CloudConnect, core.VBR, core.Office365},
	}
	for _, cfg := range configs {
		port := cfg.Port
		if port == 0 {
			port = core.DefaultPort(cfg.Type)
		}
		data.Configs = append(data.Configs, row{
			ID:        cfg.ID,
			Name:      cfg.Name,
			TypeLabel: cfg.Type.DisplayName(),
			URL:       cfg.URL,
			Port:      port,
			Enabled:   cfg.Enabled,
		})
	}

	if err := s.templates.ExecuteTemplate(w, "configs.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Configs template execution failed", "error", err, "template", "configs.html")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleSaveConfig(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		slog.ErrorContext(r.Context(), "Parse form error", "error", err, "method", r.Method, "url", r.URL.Path)
		BadRequestError("Ungültiges Anfrageformat").Write(w)
		return
	}

	cfg := configFromForm(r)
	if cfg.ID == "" {
		cfg.ID = newConfigID()
	}

	if err := cfg.Validate(); err != nil {
		UnprocessableEntityError("Ungültige Konfiguration: " + err.Error()).Write(w)
		return
	}

	if err := s.configs.Save(r.Context(), cfg); err != nil {
		slog.ErrorContext(r.Context(), "Config save error", "error", err, "config_id", cfg.ID)
		InternalServerError("Fehler beim Speichern").Write(w)
		return
	}

	NewHTMXResponse().
		TriggerConfigSaved(cfg.ID).
		TriggerSuccessNotification("Konfiguration gespeichert").
		BodyHTML(`<div class="success">Server „` + template.HTMLEscapeString(cfg.Name) + `" gespeichert</div>`).
		Write(w)
}

func (s *Server) handleDeleteConfig(w http.ResponseWriter, r *http.Request) {
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
		BadRequestError("Fehlende Konfigurations-ID").Write(w)
		return
	}

	if err := s.configs.Delete(r.Context(), id); err != nil {
		if err == core.ErrConfigNotFound {
			NotFoundError("Konfiguration nicht gefunden").Write(w)
			return
		}
		slog.ErrorContext(r.Context(), "Config delete error", "error", err, "config_id", id)
		InternalServerError("Fehler beim Löschen").Write(w)
		return
	}

	NewHTMXResponse().
		TriggerConfigDeleted(id).
		TriggerSuccessNotification("Konfiguration entfernt").
		BodyHTML(`<div class="success">Die Konfiguration wurde erfolgreich entfernt.</div>`).
		Write(w)
}

// handleTestConnection probes the submitted server without saving anything.
func (s *Server) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		MethodNotAllowedError("POST").Write(w)
		return
	}
	if err := r.ParseForm(); err != nil {
		BadRequestError("Ungültiges Anfrageformat").Write(w)
		return
	}

	cfg := configFromForm(r)
	params := veeam.Params{
		Type:     cfg.Type,
		URL:      strings.TrimRight(cfg.URL, "/"),
		Username: cfg.Username,
		Password: cfg.Password,
		Port:     cfg.Port,
	}
	if !params.Type.Valid() || params.URL == "" {
		UnprocessableEntityError("Servertyp und URL werden benötigt").Write(w)
		return
	}

	if err := s.tester.TestConnection(r.Context(), params); err != nil {
		slog.WarnContext(r.Context(), "Connection test failed",
			"type", string(params.Type), "url", params.URL, "error", err)
		NewHTMXResponse().
			Status(http.StatusOK).
			BodyHTML(`<div class="error">Verbindung fehlgeschlagen: ` + template.HTMLEscapeString(err.Error()) + `</div>`).
			Write(w)
		return
	}

	NewHTMXResponse().
		BodyHTML(`<div class="success">Verbindung erfolgreich</div>`).
		Write(w)
}

func configFromForm(r *http.Request) core.SourceConfig {
	port := 0
	if v := strings.TrimSpace(r.Form.Get("port")); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			port = p
		}
	}
	return core.SourceConfig{
		ID:               strings.TrimSpace(r.Form.Get("id")),
		Name:             sanitizeInput(r.Form.Get("name")),
		Type:             core.SourceType(strings.TrimSpace(r.Form.Get("type"))),
		URL:              strings.TrimSpace(r.Form.Get("url")),
		Username:         strings.TrimSpace(r.Form.Get("username")),
		Password:         r.Form.Get("password"),
		Port:             port,
		OrganizationName: sanitizeInput(r.Form.Get("organization_name")),
		Enabled:          r.Form.Get("enabled") != "",
	}
}

// sanitizeInput removes control characters and trims whitespace
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func newConfigID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("cfg_%d", time.Now().UnixNano())
	}
	return "cfg_" + hex.EncodeToString(bytes)
}
