package core

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"
)

const (
	CloudConnect SourceType = "cloudconnect"
	VBR          SourceType = "vbr"
	Office365    SourceType = "office365"
)

const (
	UnitTB       Unit = "TB"
	UnitGB       Unit = "GB"
	UnitLicenses Unit = "licenses"
)

const (
	StatusActive  Status = "active"
	StatusRemoved Status = "removed"
)

type (
	// SourceType discriminates the three backup product families a source
	// server can belong to.
	SourceType string

	Unit string

	Status string

	// SourceConfig identifies one configured backup server. OrganizationName
	// is only meaningful for Office365 sources.
	SourceConfig struct {
		ID               string
		Name             string
		Type             SourceType
		URL              string
		Username         string
		Password         string
		Port             int // 0 means the type default
		OrganizationName string
		Enabled          bool
	}

	// UsageRecord is a single normalized consumption fact for one customer.
	UsageRecord struct {
		CustomerID   string
		CustomerName string
		Usage        float64
		Unit         Unit
		Status       Status
		Note         string
	}

	CategoryType string

	// ServiceCategory buckets usage records under one billed service.
	ServiceCategory struct {
		ID          string
		Type        CategoryType
		DisplayName string
		Unit        Unit
		Usages      []UsageRecord
		TotalUsage  float64
	}

	ReportMeta struct {
		TotalCustomers   int
		ActiveCustomers  int
		RemovedCustomers int
		GeneratedBy      string
	}

	// MonthlyReport is the assembled billing artifact, immutable once built
	// and overwritten wholesale under the same ID on regeneration.
	MonthlyReport struct {
		ID         string
		Month      int
		Year       int
		CapturedAt time.Time
		Title      string
		Categories []ServiceCategory
		Meta       ReportMeta
	}
)

const (
	CategoryStorage   CategoryType = "storage"
	CategoryTape      CategoryType = "tape"
	CategoryLicensing CategoryType = "licensing"
)

var (
	ErrEmptyName      = errors.New("empty server name")
	ErrEmptyURL       = errors.New("empty server url")
	ErrEmptyUsername  = errors.New("empty username")
	ErrInvalidType    = errors.New("invalid source type")
	ErrInvalidPort    = errors.New("invalid port")
	ErrInvalidMonth   = errors.New("invalid month")
	ErrInvalidYear    = errors.New("invalid year")
	ErrReportNotFound = errors.New("report not found")
	ErrConfigNotFound = errors.New("configuration not found")
)

// DefaultPort returns the product's well-known API port.
func DefaultPort(t SourceType) int {
	switch t {
	case CloudConnect:
		return 6180
	case VBR:
		return 9419
	case Office365:
		return 443
	default:
		return 9419
	}
}

func (t SourceType) Valid() bool {
	switch t {
	case CloudConnect, VBR, Office365:
		return true
	}
	return false
}

// DisplayName returns the product name shown in the configuration UI.
func (t SourceType) DisplayName() string {
	switch t {
	case CloudConnect:
		return "Veeam Cloud Connect"
	case VBR:
		return "Veeam Backup & Replication"
	case Office365:
		return "Veeam Backup for Microsoft 365"
	default:
		return string(t)
	}
}

func (c SourceConfig) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if !c.Type.Valid() {
		return ErrInvalidType
	}
	raw := strings.TrimSpace(c.URL)
	if raw == "" {
		return ErrEmptyURL
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid server url %q: scheme must be http or https", c.URL)
	}
	if strings.TrimSpace(c.Username) == "" {
		return ErrEmptyUsername
	}
	if c.Port < 0 || c.Port > 65535 {
		return ErrInvalidPort
	}
	return nil
}

// BaseURL joins the endpoint URL with the configured port, falling back to
// the type default when no port is set.
func (c SourceConfig) BaseURL() string {
	port := c.Port
	if port == 0 {
		port = DefaultPort(c.Type)
	}
	return fmt.Sprintf("%s:%d", strings.TrimRight(strings.TrimSpace(c.URL), "/"), port)
}

// CustomerKey derives the merge key for a customer display name. Same name
// always yields the same key: lowercase, every rune outside [a-z0-9]
// replaced by an underscore.
func CustomerKey(displayName string) string {
	lower := strings.ToLower(displayName)
	var b strings.Builder
	b.Grow(len(lower))
	for _, r := range lower {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// ReportID builds the deterministic report key for a billing period, so that
// regenerating the same month overwrites the prior report.
func ReportID(year, month int) string {
	return fmt.Sprintf("verbrauch-%04d-%02d", year, month)
}

// ValidatePeriod checks a report period for plausibility.
func ValidatePeriod(month, year int) error {
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	if year < 2000 || year > 2200 {
		return ErrInvalidYear
	}
	return nil
}

var germanMonths = [...]string{
	"Januar", "Februar", "März", "April", "Mai", "Juni",
	"Juli", "August", "September", "Oktober", "November", "Dezember",
}

// MonthName returns the German month name used in report titles and exports.
func MonthName(month int) string {
	if month < 1 || month > 12 {
		return "Unbekannt"
	}
	return germanMonths[month-1]
}

// Round2 rounds to two decimal places, the precision carried by all usage
// quantities end to end.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// BytesToGB converts a raw byte count into gigabytes rounded to two decimals.
func BytesToGB(b int64) float64 {
	return Round2(float64(b) / (1 << 30))
}

// ToTB normalizes a quantity into terabytes. GB divides by 1024, a value
// already in TB passes through untouched, as does anything unconvertible.
func ToTB(value float64, unit Unit) float64 {
	switch unit {
	case UnitGB:
		return Round2(value / 1024)
	case UnitTB:
		return value
	default:
		return value
	}
}
