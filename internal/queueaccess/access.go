// Package queueaccess gives the CLI one job surface whether the daemon is
// running (HTTP API) or not (direct store access).
package queueaccess

import (
	"context"

	"slidecast/internal/api"
	"slidecast/internal/config"
	"slidecast/internal/queue"
)

// Access provides job operations regardless of HTTP or direct store backing.
type Access interface {
	Start(ctx context.Context, req api.StartRequest) (string, error)
	List(ctx context.Context, statuses []string) ([]api.Job, error)
	Describe(ctx context.Context, id string) (*api.Job, error)
	Status(ctx context.Context, id string) (api.JobStatus, error)
	Result(ctx context.Context, id string) (api.JobResult, error)
	Retry(ctx context.Context, ids []string) (api.RetryJobsResult, error)
	Rerun(ctx context.Context, id string, req api.RerunRequest) (string, error)
	Cancel(ctx context.Context, id string) (api.CancelJobResult, error)
	ClearCompleted(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (map[string]int, error)
}

// NewHTTPAccess returns an Access backed by the daemon API.
func NewHTTPAccess(client *Client) Access {
	return &httpAccess{client: client}
}

// NewStoreAccess returns an Access backed by direct DB access.
func NewStoreAccess(cfg *config.Config, store *queue.Store) Access {
	return &storeAccess{service: api.NewJobService(cfg, store)}
}

type httpAccess struct {
	client *Client
}

func (a *httpAccess) Start(ctx context.Context, req api.StartRequest) (string, error) {
	return a.client.StartJob(ctx, req)
}

func (a *httpAccess) List(ctx context.Context, statuses []string) ([]api.Job, error) {
	return a.client.ListJobs(ctx, statuses)
}

func (a *httpAccess) Describe(ctx context.Context, id string) (*api.Job, error) {
	detail, err := a.client.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	return &detail.Job, nil
}

func (a *httpAccess) Status(ctx context.Context, id string) (api.JobStatus, error) {
	detail, err := a.client.GetJob(ctx, id)
	if err != nil {
		return api.JobStatus{}, err
	}
	return detail.Status, nil
}

func (a *httpAccess) Result(ctx context.Context, id string) (api.JobResult, error) {
	return a.client.GetResult(ctx, id)
}

func (a *httpAccess) Retry(ctx context.Context, ids []string) (api.RetryJobsResult, error) {
	if len(ids) == 0 {
		return a.client.RetryAll(ctx)
	}
	out := api.RetryJobsResult{Items: make([]api.RetryJobResult, 0, len(ids))}
	for _, id := range ids {
		res, err := a.client.RetryJob(ctx, id)
		if err != nil {
			return api.RetryJobsResult{}, err
		}
		out.UpdatedCount += res.UpdatedCount
		out.Items = append(out.Items, res.Items...)
	}
	return out, nil
}

func (a *httpAccess) Rerun(ctx context.Context, id string, req api.RerunRequest) (string, error) {
	return a.client.RerunJob(ctx, id, req)
}

func (a *httpAccess) Cancel(ctx context.Context, id string) (api.CancelJobResult, error) {
	return a.client.CancelJob(ctx, id)
}

func (a *httpAccess) ClearCompleted(ctx context.Context) (int64, error) {
	return a.client.ClearCompleted(ctx)
}

func (a *httpAccess) Stats(ctx context.Context) (map[string]int, error) {
	status, err := a.client.DaemonStatus(ctx)
	if err != nil {
		return nil, err
	}
	return status.Workflow.QueueStats, nil
}

type storeAccess struct {
	service *api.JobService
}

func (a *storeAccess) Start(ctx context.Context, req api.StartRequest) (string, error) {
	return a.service.StartJob(ctx, req)
}

func (a *storeAccess) List(ctx context.Context, statuses []string) ([]api.Job, error) {
	parsed, err := ParseStatuses(statuses)
	if err != nil {
		return nil, err
	}
	return a.service.List(ctx, parsed...)
}

func (a *storeAccess) Describe(ctx context.Context, id string) (*api.Job, error) {
	return a.service.Describe(ctx, id)
}

func (a *storeAccess) Status(ctx context.Context, id string) (api.JobStatus, error) {
	return a.service.GetStatus(ctx, id)
}

func (a *storeAccess) Result(ctx context.Context, id string) (api.JobResult, error) {
	return a.service.GetResult(ctx, id)
}

func (a *storeAccess) Retry(ctx context.Context, ids []string) (api.RetryJobsResult, error) {
	if len(ids) == 0 {
		updated, err := a.service.RetryAll(ctx)
		return api.RetryJobsResult{UpdatedCount: updated}, err
	}
	return a.service.Retry(ctx, ids...)
}

func (a *storeAccess) Rerun(ctx context.Context, id string, req api.RerunRequest) (string, error) {
	return a.service.Rerun(ctx, id, req)
}

func (a *storeAccess) Cancel(ctx context.Context, id string) (api.CancelJobResult, error) {
	return a.service.Cancel(ctx, id)
}

func (a *storeAccess) ClearCompleted(ctx context.Context) (int64, error) {
	return a.service.ClearCompleted(ctx)
}

func (a *storeAccess) Stats(ctx context.Context) (map[string]int, error) {
	return a.service.Stats(ctx)
}
