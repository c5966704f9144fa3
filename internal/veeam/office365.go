package veeam

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"verbrauch/internal/core"
)

type organizationList struct {
	Data []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"data"`
}

type backupData struct {
	Data struct {
		TotalSize    int64 `json:"totalSize"`
		MailboxCount int   `json:"mailboxCount"`
	} `json:"data"`
}

// fetchOffice365 lists the organizations of a Microsoft 365 backup server
// and resolves each organization's repository size and mailbox count.
func (c *Client) fetchOffice365(ctx context.Context, cfg core.SourceConfig) Result {
	base := cfg.BaseURL()

	var orgs organizationList
	if err := c.getJSON(ctx, base+"/api/v3/organizations", cfg.Username, cfg.Password, &orgs); err != nil {
		return Result{Config: cfg, Err: fmt.Sprintf("fetch organizations: %v", err)}
	}

	slots := make([]*Organization, len(orgs.Data))
	var g errgroup.Group
	g.SetLimit(maxEntityFetches)
	for i, org := range orgs.Data {
		g.Go(func() error {
			url := fmt.Sprintf("%s/api/v3/organizations/%s/backupData", base, org.ID)
			var bd backupData
			if err := c.getJSON(ctx, url, cfg.Username, cfg.Password, &bd); err != nil {
				c.log.WarnContext(ctx, "Backup data lookup failed, dropping organization",
					"server", cfg.Name, "organization", org.Name, "error", err)
				return nil
			}
			name := org.Name
			if name == "" {
				name = "Unknown Organization"
			}
			slots[i] = &Organization{
				Name:      name,
				SizeGB:    core.BytesToGB(bd.Data.TotalSize),
				Mailboxes: bd.Data.MailboxCount,
			}
			return nil
		})
	}
	_ = g.Wait()

	payload := &Payload{}
	for _, o := range slots {
		if o != nil {
			payload.Organizations = append(payload.Organizations, *o)
		}
	}
	return Result{Config: cfg, Payload: payload}
}
