package veeam

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"verbrauch/internal/core"
)

type jobList struct {
	Data []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"data"`
}

type sessionList struct {
	Data []struct {
		DataSize int64  `json:"dataSize"`
		Result   string `json:"result"`
	} `json:"data"`
}

// fetchVBR lists the backup jobs of a Backup & Replication server and sizes
// each job by its most recent session. Jobs whose session lookup fails are
// dropped from the batch.
func (c *Client) fetchVBR(ctx context.Context, cfg core.SourceConfig) Result {
	base := cfg.BaseURL()

	var jobs jobList
	if err := c.getJSON(ctx, base+"/api/v1/backupJobs", cfg.Username, cfg.Password, &jobs); err != nil {
		return Result{Config: cfg, Err: fmt.Sprintf("fetch backup jobs: %v", err)}
	}

	slots := make([]*BackupJob, len(jobs.Data))
	var g errgroup.Group
	g.SetLimit(maxEntityFetches)
	for i, job := range jobs.Data {
		g.Go(func() error {
			url := fmt.Sprintf("%s/api/v1/backupJobs/%s/backupSessions", base, job.ID)
			var sessions sessionList
			if err := c.getJSON(ctx, url, cfg.Username, cfg.Password, &sessions); err != nil {
				c.log.WarnContext(ctx, "Session lookup failed, dropping job",
					"server", cfg.Name, "job", job.Name, "error", err)
				return nil
			}
			name := job.Name
			if name == "" {
				name = "Unknown Job"
			}
			out := &BackupJob{Name: name, Status: "Unknown"}
			if len(sessions.Data) > 0 {
				latest := sessions.Data[0]
				out.SizeGB = core.BytesToGB(latest.DataSize)
				if latest.Result != "" {
					out.Status = latest.Result
				}
			}
			slots[i] = out
			return nil
		})
	}
	_ = g.Wait()

	payload := &Payload{}
	for _, j := range slots {
		if j != nil {
			payload.BackupJobs = append(payload.BackupJobs, *j)
		}
	}
	return Result{Config: cfg, Payload: payload}
}
