package veeam

import (
	"context"

	"golang.org/x/sync/errgroup"

	"verbrauch/internal/core"
)

// maxEntityFetches caps the concurrent per-entity usage lookups inside one
// adapter call so a server with hundreds of tenants is not hammered at once.
const maxEntityFetches = 8

// FetchAll dispatches one adapter call per enabled config, each under its own
// deadline. The batch settles completely: every enabled config yields exactly
// one Result, in input order, and one slow or failing server never delays or
// fails the others.
func (c *Client) FetchAll(ctx context.Context, configs []core.SourceConfig) []Result {
	enabled := make([]core.SourceConfig, 0, len(configs))
	for _, cfg := range configs {
		if cfg.Enabled {
			enabled = append(enabled, cfg)
		}
	}
	if len(enabled) == 0 {
		return []Result{}
	}

	results := make([]Result, len(enabled))
	var g errgroup.Group
	for i, cfg := range enabled {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()
			results[i] = c.Fetch(cctx, cfg)
			if !results[i].OK() {
				c.log.WarnContext(ctx, "Source fetch failed",
					"server", cfg.Name, "type", string(cfg.Type), "reason", results[i].Err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
