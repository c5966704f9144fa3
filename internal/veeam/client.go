// Package veeam talks to the three Veeam product APIs a source server can
// expose and maps their payloads into primitive usage records.
package veeam

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"verbrauch/internal/core"
	applog "verbrauch/internal/log"
)

const (
	// DefaultFetchTimeout bounds one adapter call end to end. The upstream
	// APIs have no server-side deadline, so a hung connection would block a
	// report run forever without this.
	DefaultFetchTimeout = 30 * time.Second

	probeTimeout = 10 * time.Second
)

// Repository is one tenant repository reported by a Cloud Connect server.
type Repository struct {
	Name     string
	Customer string
	UsageGB  float64
}

// BackupJob is one job reported by a Backup & Replication server, sized by
// its most recent session.
type BackupJob struct {
	Name   string
	SizeGB float64
	Status string // result of the most recent session
}

// Organization is one tenant organization reported by a Microsoft 365 server.
type Organization struct {
	Name      string
	SizeGB    float64
	Mailboxes int
}

// Payload carries the primitive usage records of one adapter call. Only the
// slice matching the source type is populated.
type Payload struct {
	Repositories  []Repository
	BackupJobs    []BackupJob
	Organizations []Organization
}

// Result is the per-config outcome of one adapter call. Err is empty on
// success; a non-empty Err means the whole call failed and Payload is nil.
type Result struct {
	Config  core.SourceConfig
	Payload *Payload
	Err     string
}

func (r Result) OK() bool { return r.Err == "" }

// Params identifies a server for a connection probe before a config is saved.
type Params struct {
	Type     core.SourceType
	URL      string
	Username string
	Password string
	Port     int
}

// Client issues requests against Veeam servers. Construct it with NewClient;
// it holds no global state.
type Client struct {
	http    *http.Client
	log     *applog.Logger
	timeout time.Duration
}

// NewClient builds a client around the given HTTP client. A nil httpClient
// gets a default with sane transport timeouts; a zero timeout falls back to
// DefaultFetchTimeout.
func NewClient(httpClient *http.Client, timeout time.Duration, logger *applog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultFetchTimeout}
	}
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	if logger == nil {
		logger = applog.New(applog.DefaultConfig()).WithComponent("veeam")
	}
	return &Client{http: httpClient, log: logger, timeout: timeout}
}

// Fetch runs the list-entities plus per-entity usage calls for one source
// server and never returns an error: top-level failures land in Result.Err.
func (c *Client) Fetch(ctx context.Context, cfg core.SourceConfig) Result {
	switch cfg.Type {
	case core.CloudConnect:
		return c.fetchCloudConnect(ctx, cfg)
	case core.VBR:
		return c.fetchVBR(ctx, cfg)
	case core.Office365:
		return c.fetchOffice365(ctx, cfg)
	default:
		return Result{Config: cfg, Err: fmt.Sprintf("unknown source type %q", cfg.Type)}
	}
}

// TestConnection probes a server's info endpoint without side effects. Used
// by the configuration form before a config is saved.
func (c *Client) TestConnection(ctx context.Context, p Params) error {
	port := p.Port
	if port == 0 {
		port = core.DefaultPort(p.Type)
	}
	var path string
	switch p.Type {
	case core.CloudConnect, core.VBR:
		path = "/api/v1/serverInfo"
	case core.Office365:
		path = "/api/v3/organizations"
	default:
		return fmt.Errorf("unknown source type %q", p.Type)
	}

	cctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	url := fmt.Sprintf("%s:%d%s", p.URL, port, path)
	var probe json.RawMessage
	if err := c.getJSON(cctx, url, p.Username, p.Password, &probe); err != nil {
		return fmt.Errorf("probe %s: %w", url, err)
	}
	return nil
}

// getJSON performs an authenticated GET and decodes the body into out.
func (c *Client) getJSON(ctx context.Context, url, username, password string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(username, password)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
