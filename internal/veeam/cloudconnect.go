package veeam

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"verbrauch/internal/core"
)

type tenantList struct {
	Data []struct {
		InstanceUID string `json:"instanceUid"`
		Name        string `json:"name"`
		TenantName  string `json:"tenantName"`
	} `json:"data"`
}

type quotaList struct {
	Data []struct {
		UsedSpace int64 `json:"usedSpace"`
	} `json:"data"`
}

// fetchCloudConnect lists the tenants of a Cloud Connect server and resolves
// each tenant's quota usage. A failed quota lookup drops that tenant only;
// the sibling lookups keep running.
func (c *Client) fetchCloudConnect(ctx context.Context, cfg core.SourceConfig) Result {
	base := cfg.BaseURL()

	var tenants tenantList
	if err := c.getJSON(ctx, base+"/api/v1/tenants", cfg.Username, cfg.Password, &tenants); err != nil {
		return Result{Config: cfg, Err: fmt.Sprintf("fetch tenants: %v", err)}
	}

	// One slot per tenant so completion order cannot reshuffle the batch.
	repos := make([]*Repository, len(tenants.Data))
	var g errgroup.Group
	g.SetLimit(maxEntityFetches)
	for i, tenant := range tenants.Data {
		g.Go(func() error {
			url := fmt.Sprintf("%s/api/v1/tenants/%s/quotas", base, tenant.InstanceUID)
			var quotas quotaList
			if err := c.getJSON(ctx, url, cfg.Username, cfg.Password, &quotas); err != nil {
				c.log.WarnContext(ctx, "Quota lookup failed, dropping tenant",
					"server", cfg.Name, "tenant", tenant.Name, "error", err)
				return nil
			}
			var usedSpace int64
			if len(quotas.Data) > 0 {
				usedSpace = quotas.Data[0].UsedSpace
			}
			name := tenant.Name
			if name == "" {
				name = "Unknown Repository"
			}
			customer := tenant.TenantName
			if customer == "" {
				customer = "Unknown Customer"
			}
			repos[i] = &Repository{
				Name:     name,
				Customer: customer,
				UsageGB:  core.BytesToGB(usedSpace),
			}
			return nil
		})
	}
	_ = g.Wait() // entity funcs never return errors

	payload := &Payload{}
	for _, r := range repos {
		if r != nil {
			payload.Repositories = append(payload.Repositories, *r)
		}
	}
	return Result{Config: cfg, Payload: payload}
}
